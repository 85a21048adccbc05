package services

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
)

// ParseInterpretation extracts songs and a playlist name from raw model output.
// It tries the text as-is, then the contents of a fenced code block, then the
// span between the first '{' and the last '}'. It never fails: unusable input
// yields domain.EmptyResult.
func ParseInterpretation(raw string) domain.InterpretationResult {
	var obj map[string]any
	if !ExtractJSONObject(raw, &obj) {
		return domain.EmptyResult()
	}
	return fillResult(obj)
}

// ExtractJSONObject decodes the first usable JSON object candidate in raw into
// dst, which must be a non-nil pointer. Each candidate is decoded into a fresh
// value, so dst is only written on success.
func ExtractJSONObject(raw string, dst any) bool {
	target := reflect.ValueOf(dst)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return false
	}
	for _, candidate := range jsonCandidates(raw) {
		fresh := reflect.New(target.Elem().Type())
		if err := json.Unmarshal([]byte(candidate), fresh.Interface()); err == nil {
			target.Elem().Set(fresh.Elem())
			return true
		}
	}
	return false
}

func jsonCandidates(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	out := []string{trimmed}
	if fenced, ok := stripFence(trimmed); ok && fenced != "" {
		out = append(out, fenced)
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		out = append(out, trimmed[start:end+1])
	}
	return out
}

// stripFence returns the body of the first ``` block, dropping an optional
// language tag on the opening line. An unterminated fence runs to the end.
func stripFence(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]

	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && isFenceTag(rest[:nl]) {
		rest = rest[nl+1:]
	}

	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

func isFenceTag(s string) bool {
	for _, r := range strings.TrimSpace(s) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' && r != '+' {
			return false
		}
	}
	return true
}

func fillResult(obj map[string]any) domain.InterpretationResult {
	result := domain.EmptyResult()

	if list, ok := obj["songs"].([]any); ok {
		for _, item := range list {
			if s := songString(item); s != "" {
				result.Songs = append(result.Songs, s)
			}
		}
	}

	for _, key := range []string{"playlist_name", "playlistName"} {
		if name, ok := obj[key].(string); ok && strings.TrimSpace(name) != "" {
			result.PlaylistName = strings.TrimSpace(name)
			break
		}
	}

	for k, v := range obj {
		switch k {
		case "songs", "playlist_name", "playlistName":
			continue
		}
		if result.Parameters == nil {
			result.Parameters = make(map[string]any)
		}
		result.Parameters[k] = v
	}

	return result
}

// songString accepts "Title - Artist" strings and {title, artist} objects.
func songString(item any) string {
	switch v := item.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		title, _ := v["title"].(string)
		artist, _ := v["artist"].(string)
		title, artist = strings.TrimSpace(title), strings.TrimSpace(artist)
		switch {
		case title == "":
			return ""
		case artist == "":
			return title
		default:
			return fmt.Sprintf("%s - %s", title, artist)
		}
	default:
		return ""
	}
}

// stringField returns obj[key] as trimmed text. Numbers and booleans are
// formatted; anything else yields "".
func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// floatField reads a number that the model may have quoted.
func floatField(obj map[string]any, key string) (float64, bool) {
	switch v := obj[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// listField flattens obj[key] into display strings. A bare string counts as a
// comma-separated list; objects are rendered by listItem.
func listField(obj map[string]any, key string) []string {
	out := []string{}
	switch v := obj[key].(type) {
	case []any:
		for _, item := range v {
			if s := listItem(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func listItem(item any) string {
	switch v := item.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64, bool:
		return fmt.Sprint(v)
	case map[string]any:
		if s := songString(v); s != "" {
			return s
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := listItem(v[k]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " - ")
	default:
		return ""
	}
}
