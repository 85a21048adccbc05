package domain

import "strings"

// ResolvedTrack is a suggestion matched to a concrete catalog entry.
type ResolvedTrack struct {
	URI         string `json:"uri"`
	Title       string `json:"name"`
	Artist      string `json:"artist"`
	Popularity  int    `json:"popularity"`
	AlbumName   string `json:"album,omitempty"`
	AlbumArtURL string `json:"album_art_url,omitempty"`
}

// SplitSuggestion splits a "Title - Artist" suggestion. When no separator is
// present the whole string is returned as the title.
func SplitSuggestion(s string) (title string, artist string) {
	s = strings.TrimSpace(s)
	idx := strings.LastIndex(s, " - ")
	if idx < 0 {
		return s, ""
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+3:])
}
