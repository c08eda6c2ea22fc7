// Package service holds the application logic between the HTTP handlers
// and storage: authentication, feeds, engagement toggles and comment trees.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/UkralStul/echonymous/internal/auth"
	"github.com/UkralStul/echonymous/internal/cursor"
	"github.com/UkralStul/echonymous/internal/dataloader"
	"github.com/UkralStul/echonymous/internal/events"
	"github.com/UkralStul/echonymous/internal/pagination"
	"github.com/UkralStul/echonymous/internal/storage"
)

type Service struct {
	store  storage.Storage
	tokens *auth.Manager
	events events.Publisher
	now    func() time.Time
}

// New wires a service. A nil publisher drops events.
func New(store storage.Storage, tokens *auth.Manager, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Multi{}
	}
	return &Service{
		store:  store,
		tokens: tokens,
		events: publisher,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// publish never fails the caller; delivery problems are logged.
func (s *Service) publish(ctx context.Context, ev events.Event) {
	ev.At = s.now()
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("event", string(ev.Type)).Str("postId", ev.PostID).Msg("failed to publish event")
	}
}

func (s *Service) loaders(ctx context.Context, viewerID string) *dataloader.Loaders {
	return dataloader.ForViewer(ctx, s.store, viewerID)
}

// pageArgs decodes the cursor and asks storage for one row past limit.
func pageArgs(cur string, limit int) (storage.PageArgs, int, error) {
	before, err := cursor.Decode(cur)
	if err != nil {
		return storage.PageArgs{}, 0, err
	}
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	return storage.PageArgs{Limit: pagination.Fetch(limit), Before: before}, limit, nil
}
