// Package events fans domain events out to in-process subscribers and,
// optionally, to NATS.
package events

import (
	"context"
	"time"

	"github.com/UkralStul/echonymous/internal/domain"
)

// Type doubles as the NATS subject an event is published on.
type Type string

const (
	PostCreated    Type = "post.created"
	PostLiked      Type = "post.liked"
	PostEchoed     Type = "post.echoed"
	CommentCreated Type = "comment.created"
)

type Event struct {
	Type    Type            `json:"type"`
	PostID  string          `json:"postId"`
	UserID  string          `json:"userId"`
	Active  bool            `json:"active,omitempty"`
	Count   int             `json:"count,omitempty"`
	Comment *domain.Comment `json:"comment,omitempty"`
	At      time.Time       `json:"at"`
}

// Publisher delivers events. Publish must not block on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Multi publishes to every publisher in order and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
