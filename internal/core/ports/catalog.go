package ports

import (
	"context"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"golang.org/x/oauth2"
)

// CatalogTrack is a search candidate.
type CatalogTrack struct {
	URI         string
	Name        string
	ArtistName  string
	Popularity  int
	AlbumName   string
	AlbumArtURL string
}

// ToResolved maps a candidate onto the domain track.
func (c CatalogTrack) ToResolved() domain.ResolvedTrack {
	return domain.ResolvedTrack{
		URI:         c.URI,
		Title:       c.Name,
		Artist:      c.ArtistName,
		Popularity:  c.Popularity,
		AlbumName:   c.AlbumName,
		AlbumArtURL: c.AlbumArtURL,
	}
}

// CatalogSearcher finds tracks for a free-text query. A nil auth means the
// adapter's own application credentials.
type CatalogSearcher interface {
	Search(ctx context.Context, query string, limit int, auth oauth2.TokenSource) ([]CatalogTrack, error)
}

// PlaylistService creates and fills playlists on behalf of the token owner.
type PlaylistService interface {
	CurrentUserID(ctx context.Context, auth oauth2.TokenSource) (string, error)
	CreatePlaylist(ctx context.Context, ownerID, name, description string, auth oauth2.TokenSource) (domain.PublishedPlaylist, error)
	AddTracks(ctx context.Context, playlistID string, uris []string, auth oauth2.TokenSource) error
}
