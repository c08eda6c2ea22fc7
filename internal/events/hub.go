package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Hub keeps per-post subscriber channels.
type Hub struct {
	mu sync.RWMutex
	//          map[postID] map[subscriberID] channel
	subs   map[string]map[string]chan Event
	buffer int
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[string]map[string]chan Event),
		buffer: 16,
	}
}

// Subscribe registers a channel for events on postID. The returned cancel
// func unregisters and closes the channel; it is safe to call twice.
func (h *Hub) Subscribe(postID string) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	subID := uuid.NewString()

	h.mu.Lock()
	if h.subs[postID] == nil {
		h.subs[postID] = make(map[string]chan Event)
	}
	h.subs[postID][subID] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if postSubs, ok := h.subs[postID]; ok {
				delete(postSubs, subID)
				if len(postSubs) == 0 {
					delete(h.subs, postID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish hands ev to every subscriber of ev.PostID. Subscribers whose
// buffer is full miss the event.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[ev.PostID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions for postID.
func (h *Hub) Subscribers(postID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[postID])
}
