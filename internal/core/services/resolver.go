package services

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

// Resolver maps song suggestions to catalog tracks, one search per suggestion.
type Resolver struct {
	searcher ports.CatalogSearcher
	logger   *log.Logger
}

// NewResolver returns a Resolver backed by searcher.
func NewResolver(searcher ports.CatalogSearcher, logger *log.Logger) *Resolver {
	return &Resolver{
		searcher: searcher,
		logger:   logging.Component(logger, "resolver"),
	}
}

// Resolve searches each suggestion in order and keeps the first hit. A failed
// search only drops that suggestion. Tracks already seen by URI are skipped.
func (r *Resolver) Resolve(ctx context.Context, suggestions []string, auth oauth2.TokenSource) *domain.TrackList {
	found := domain.NewTrackList(len(suggestions))

	for i, suggestion := range suggestions {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("resolution abandoned", "remaining", len(suggestions)-i, "err", err)
			break
		}

		candidates, err := r.searcher.Search(ctx, SearchQuery(suggestion), 1, auth)
		if err != nil {
			r.logger.Warn("search failed", "suggestion", suggestion, "err", err)
			continue
		}
		if len(candidates) == 0 {
			r.logger.Debug("no match", "suggestion", suggestion)
			continue
		}
		if !found.Add(candidates[0].ToResolved()) {
			r.logger.Debug("duplicate track", "suggestion", suggestion, "uri", candidates[0].URI)
		}
	}

	r.logger.Info(fmt.Sprintf("found %d of %d", found.Len(), len(suggestions)))
	return found
}

// SearchQuery builds a fielded catalog query from a "Title - Artist" string.
func SearchQuery(suggestion string) string {
	title, artist := domain.SplitSuggestion(suggestion)
	if artist == "" {
		return title
	}
	return fmt.Sprintf("track:%s artist:%s", title, artist)
}
