// Package pagination builds feed pages from rows fetched with one extra row
// past the requested limit.
package pagination

import (
	"time"

	"github.com/UkralStul/echonymous/internal/cursor"
)

// DefaultLimit applies when the caller gives no usable limit.
const DefaultLimit = 10

// Page is one page of a feed.
type Page[T any] struct {
	Content    []T     `json:"content"`
	NextCursor *string `json:"nextCursor"`
	HasNext    bool    `json:"hasNext"`
}

// Fetch returns how many rows to request for a page of limit items.
func Fetch(limit int) int { return limit + 1 }

// New trims rows to limit. The extra row, if present, only sets HasNext.
// NextCursor is the timestamp of the last kept row, and nil on the last page.
func New[T any](rows []T, limit int, createdAt func(T) time.Time) Page[T] {
	hasNext := len(rows) > limit
	if hasNext {
		rows = rows[:limit]
	}

	page := Page[T]{Content: make([]T, len(rows)), HasNext: hasNext}
	copy(page.Content, rows)
	if hasNext && len(rows) > 0 {
		next := cursor.Encode(createdAt(rows[len(rows)-1]))
		page.NextCursor = &next
	}
	return page
}

// Map converts every item on the page, keeping the cursor state.
func Map[T, U any](p Page[T], f func(T) U) Page[U] {
	out := Page[U]{Content: make([]U, len(p.Content)), NextCursor: p.NextCursor, HasNext: p.HasNext}
	for i, item := range p.Content {
		out.Content[i] = f(item)
	}
	return out
}
