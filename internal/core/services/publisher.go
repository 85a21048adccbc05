package services

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

// Publisher creates a playlist for the token owner and fills it.
type Publisher struct {
	playlists ports.PlaylistService
	now       func() time.Time
	logger    *log.Logger
}

// NewPublisher returns a Publisher backed by playlists.
func NewPublisher(playlists ports.PlaylistService, logger *log.Logger) *Publisher {
	return &Publisher{
		playlists: playlists,
		now:       time.Now,
		logger:    logging.Component(logger, "publisher"),
	}
}

// Description is the text attached to every generated playlist.
func Description(at time.Time) string {
	return fmt.Sprintf("Created by AI DJ - %s UTC", at.UTC().Format("2006-01-02 15:04"))
}

// Publish creates the playlist and adds uris in a single batch. A failure after
// creation leaves the empty playlist in place; the returned *domain.PublishError
// carries its URL.
func (p *Publisher) Publish(ctx context.Context, ownerID, name string, uris []string, auth oauth2.TokenSource) (domain.PublishedPlaylist, error) {
	userID, err := p.playlists.CurrentUserID(ctx, auth)
	if err != nil {
		return domain.PublishedPlaylist{}, &domain.PublishError{Stage: domain.StageIdentity, Err: err}
	}

	pl, err := p.playlists.CreatePlaylist(ctx, userID, name, Description(p.now()), auth)
	if err != nil {
		return domain.PublishedPlaylist{}, &domain.PublishError{Stage: domain.StageCreate, Err: err}
	}
	p.logger.Info("playlist created", "owner", ownerID, "catalog_user", userID, "playlist", pl.ID)

	if len(uris) > 0 {
		if err := p.playlists.AddTracks(ctx, pl.ID, uris, auth); err != nil {
			return domain.PublishedPlaylist{}, &domain.PublishError{Stage: domain.StageAddTracks, PlaylistURL: pl.URL, Err: err}
		}
	}

	return pl, nil
}
