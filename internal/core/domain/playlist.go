package domain

import "time"

// PublishedPlaylist identifies a playlist created in the catalog.
type PublishedPlaylist struct {
	ID  string
	URL string
}

// PlaylistRecord is one entry of an owner's history.
type PlaylistRecord struct {
	OwnerID      string         `json:"-" dynamodbav:"-"`
	PlaylistURL  string         `json:"playlist_url" dynamodbav:"playlist_url"`
	SourcePrompt string         `json:"prompt" dynamodbav:"prompt"`
	Parameters   map[string]any `json:"parameters" dynamodbav:"parameters"`
	CreatedAt    time.Time      `json:"created_at" dynamodbav:"created_at"`
}

// TrackList is an ordered set of resolved tracks keyed by URI.
type TrackList struct {
	tracks []ResolvedTrack
	seen   map[string]struct{}
}

// NewTrackList returns an empty list with room for n tracks.
func NewTrackList(n int) *TrackList {
	return &TrackList{
		tracks: make([]ResolvedTrack, 0, n),
		seen:   make(map[string]struct{}, n),
	}
}

// Add appends t unless a track with the same URI is already present.
// It reports whether the track was added.
func (l *TrackList) Add(t ResolvedTrack) bool {
	if _, dup := l.seen[t.URI]; dup {
		return false
	}
	l.seen[t.URI] = struct{}{}
	l.tracks = append(l.tracks, t)
	return true
}

// Tracks returns the tracks in insertion order.
func (l *TrackList) Tracks() []ResolvedTrack {
	return l.tracks
}

// Len returns the number of tracks.
func (l *TrackList) Len() int {
	return len(l.tracks)
}

// URIs returns the catalog URIs in insertion order.
func (l *TrackList) URIs() []string {
	uris := make([]string, len(l.tracks))
	for i, t := range l.tracks {
		uris[i] = t.URI
	}
	return uris
}
