package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/UkralStul/echonymous/internal/events"
	"github.com/UkralStul/echonymous/internal/service"
)

const (
	pingInterval = 10 * time.Second
	writeWait    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// liveMessage is one frame on the live comment stream.
type liveMessage struct {
	Type    events.Type         `json:"type"`
	Comment service.CommentView `json:"comment"`
}

// liveComments streams comments created on a post over a WebSocket until
// the client goes away.
func (h *Handler) liveComments(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postId")
	viewer := viewerID(r)

	// The post must exist before subscribing.
	if _, err := h.svc.Post(r.Context(), viewer, postID); err != nil {
		writeError(w, r, err)
		return
	}

	// Subscribe before the upgrade so nothing published after the client
	// sees the 101 response is missed.
	ch, cancel := h.hub.Subscribe(postID)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("postId", postID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reads only detect the client closing the connection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	log.Debug().Str("postId", postID).Str("userId", viewer).
		Int("subscribers", h.hub.Subscribers(postID)).
		Msg("live subscriber connected")
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Type != events.CommentCreated || ev.Comment == nil {
				continue
			}
			msg := liveMessage{Type: ev.Type, Comment: service.NewCommentView(ev.Comment, viewer)}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
