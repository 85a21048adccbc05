package spotify

import (
	"fmt"
	"strings"
	"unicode"
)

// noiseTokens are release qualifiers that narrow a search for no benefit.
// Words that also appear in real titles ("live", "mix", "radio") are kept.
var noiseTokens = map[string]struct{}{
	"deluxe":     {},
	"edition":    {},
	"explicit":   {},
	"feat":       {},
	"featuring":  {},
	"ft":         {},
	"remaster":   {},
	"remastered": {},
	"version":    {},
}

// normalizeQuery cleans the title and artist of a "track:... artist:..."
// query separately. Any other query is cleaned as a whole.
func normalizeQuery(query string) string {
	rest, ok := strings.CutPrefix(query, "track:")
	if ok {
		if title, artist, found := strings.Cut(rest, " artist:"); found {
			return fmt.Sprintf("track:%s artist:%s",
				fallbackIfEmpty(normalizeSearchInput(title), title),
				fallbackIfEmpty(normalizeSearchInput(artist), artist))
		}
	}
	return fallbackIfEmpty(normalizeSearchInput(query), query)
}

func normalizeSearchInput(input string) string {
	if input == "" {
		return ""
	}

	lower := strings.ToLower(input)
	filtered := stripBracketedSegments(lower)
	tokens := strings.Fields(cleanSeparators(filtered))

	cleaned := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, drop := noiseTokens[token]; drop {
			continue
		}
		cleaned = append(cleaned, token)
	}

	return strings.Join(cleaned, " ")
}

func stripBracketedSegments(input string) string {
	var out strings.Builder
	depth := 0
	for _, r := range input {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				out.WriteRune(r)
			}
		}
	}

	return out.String()
}

// cleanSeparators turns punctuation into single spaces. Apostrophes are
// dropped so contractions stay one word.
func cleanSeparators(input string) string {
	var out strings.Builder
	lastSpace := false
	for _, r := range input {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
			lastSpace = false
			continue
		}
		if r == '\'' || r == '’' {
			continue
		}
		if !lastSpace {
			out.WriteRune(' ')
			lastSpace = true
		}
	}

	return out.String()
}

func fallbackIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return strings.TrimSpace(fallback)
	}

	return value
}
