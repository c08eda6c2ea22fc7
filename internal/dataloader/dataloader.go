package dataloader

import (
	"context"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader"
	"github.com/pkg/errors"

	"github.com/UkralStul/echonymous/internal/auth"
	"github.com/UkralStul/echonymous/internal/domain"
)

type contextKey string

const key = contextKey("dataloaders")

// StatsSource is the part of storage the loaders batch against.
type StatsSource interface {
	GetPostStats(ctx context.Context, postIDs []string, viewerID string) (map[string]domain.PostStats, error)
	GetCommentStats(ctx context.Context, commentIDs []string, viewerID string) (map[string]domain.CommentStats, error)
}

// Loaders batch engagement lookups for one viewer. Results are not cached,
// so a toggle followed by a load in the same request sees the new counts.
type Loaders struct {
	PostStats    *dataloader.Loader
	CommentStats *dataloader.Loader
}

// NewLoaders creates loaders that resolve stats as seen by viewerID.
func NewLoaders(src StatsSource, viewerID string) *Loaders {
	opts := []dataloader.Option{
		dataloader.WithCache(&dataloader.NoCache{}),
		dataloader.WithWait(time.Millisecond * 1),
	}

	postFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		stats, err := src.GetPostStats(ctx, keys.Keys(), viewerID)
		return results(keys, err, func(id string) interface{} { return stats[id] })
	}
	commentFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		stats, err := src.GetCommentStats(ctx, keys.Keys(), viewerID)
		return results(keys, err, func(id string) interface{} { return stats[id] })
	}

	return &Loaders{
		PostStats:    dataloader.NewBatchedLoader(postFn, opts...),
		CommentStats: dataloader.NewBatchedLoader(commentFn, opts...),
	}
}

// results orders batch output like keys. A batch error fails every key.
func results(keys dataloader.Keys, err error, get func(id string) interface{}) []*dataloader.Result {
	out := make([]*dataloader.Result, len(keys))
	for i, k := range keys {
		if err != nil {
			out[i] = &dataloader.Result{Error: err}
			continue
		}
		out[i] = &dataloader.Result{Data: get(k.String())}
	}
	return out
}

// Middleware puts loaders for the authenticated user into the request
// context. It must run after the auth middleware.
func Middleware(src StatsSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewerID, _ := auth.UserIDFromContext(r.Context())
			ctx := context.WithValue(r.Context(), key, NewLoaders(src, viewerID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// For extracts the loaders from the context, or nil.
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(key).(*Loaders)
	return l
}

// ForViewer returns the request's loaders, or fresh ones for viewerID when
// the context carries none.
func ForViewer(ctx context.Context, src StatsSource, viewerID string) *Loaders {
	if l := For(ctx); l != nil {
		return l
	}
	return NewLoaders(src, viewerID)
}

// LoadPostStats loads stats for every id. All loads are queued before any
// is awaited so they land in one batch.
func (l *Loaders) LoadPostStats(ctx context.Context, ids []string) (map[string]domain.PostStats, error) {
	out := make(map[string]domain.PostStats, len(ids))
	err := loadAll(ctx, l.PostStats, ids, func(id string, v interface{}) {
		out[id], _ = v.(domain.PostStats)
	})
	return out, errors.Wrap(err, "failed to load post stats")
}

// LoadCommentStats is LoadPostStats for comments.
func (l *Loaders) LoadCommentStats(ctx context.Context, ids []string) (map[string]domain.CommentStats, error) {
	out := make(map[string]domain.CommentStats, len(ids))
	err := loadAll(ctx, l.CommentStats, ids, func(id string, v interface{}) {
		out[id], _ = v.(domain.CommentStats)
	})
	return out, errors.Wrap(err, "failed to load comment stats")
}

func loadAll(ctx context.Context, loader *dataloader.Loader, ids []string, set func(id string, v interface{})) error {
	thunks := make([]dataloader.Thunk, len(ids))
	for i, id := range ids {
		thunks[i] = loader.Load(ctx, dataloader.StringKey(id))
	}
	for i, thunk := range thunks {
		v, err := thunk()
		if err != nil {
			return err
		}
		set(ids[i], v)
	}
	return nil
}
