package spotify

import (
	"strings"

	"github.com/ewilliams-labs/aidj/internal/core/ports"
)

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyImage struct {
	URL string `json:"url"`
}

type spotifyAlbum struct {
	Name   string         `json:"name"`
	Images []spotifyImage `json:"images"`
}

// spotifyTrack is the track object returned by search.
type spotifyTrack struct {
	ID         string          `json:"id"`
	URI        string          `json:"uri"`
	Name       string          `json:"name"`
	Popularity int             `json:"popularity"`
	Artists    []spotifyArtist `json:"artists"`
	Album      spotifyAlbum    `json:"album"`
}

// toCatalog flattens the artist list and picks the first album image.
func (st spotifyTrack) toCatalog() ports.CatalogTrack {
	names := make([]string, 0, len(st.Artists))
	for _, a := range st.Artists {
		names = append(names, a.Name)
	}

	cover := ""
	if len(st.Album.Images) > 0 {
		cover = st.Album.Images[0].URL
	}

	uri := st.URI
	if uri == "" && st.ID != "" {
		uri = "spotify:track:" + st.ID
	}

	return ports.CatalogTrack{
		URI:         uri,
		Name:        st.Name,
		ArtistName:  strings.Join(names, ", "),
		Popularity:  st.Popularity,
		AlbumName:   st.Album.Name,
		AlbumArtURL: cover,
	}
}

type searchResponse struct {
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

type spotifyUser struct {
	ID string `json:"id"`
}

type createPlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

// spotifyPlaylist is the subset of the create-playlist response we read.
type spotifyPlaylist struct {
	ID           string `json:"id"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

type addTracksRequest struct {
	URIs []string `json:"uris"`
}
