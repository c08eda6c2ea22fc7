// Package httpapi exposes the service over HTTP with a chi router.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/UkralStul/echonymous/internal/auth"
	"github.com/UkralStul/echonymous/internal/dataloader"
	"github.com/UkralStul/echonymous/internal/events"
	"github.com/UkralStul/echonymous/internal/pagination"
	"github.com/UkralStul/echonymous/internal/service"
)

type Handler struct {
	svc    *service.Service
	tokens *auth.Manager
	stats  dataloader.StatsSource
	hub    *events.Hub
}

func NewHandler(svc *service.Service, tokens *auth.Manager, stats dataloader.StatsSource, hub *events.Hub) *Handler {
	return &Handler{svc: svc, tokens: tokens, stats: stats, hub: hub}
}

// Routes builds the router with every endpoint mounted.
func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/health", h.health)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.signup)
		r.Post("/login", h.login)
	})

	router.Group(func(r chi.Router) {
		r.Use(requireAuth(h.tokens))
		r.Use(dataloader.Middleware(h.stats))

		r.Route("/posts", func(r chi.Router) {
			r.Post("/upload-text", h.uploadText)
			r.Post("/upload-audio", h.uploadAudio)
			r.Get("/text-feed", h.textFeed)
			r.Get("/text-feed/{id}", h.textPost)
			r.Get("/user-feed", h.userFeed)
			r.Get("/echoed", h.echoedPosts)
			r.Put("/edit-text-feed/{postId}", h.editTextPost)
			r.Delete("/delete-text-feed/{postId}", h.deleteTextPost)
			r.Post("/{postId}/like", h.togglePostLike)
			r.Post("/{postId}/echo", h.togglePostEcho)
		})

		r.Route("/comments", func(r chi.Router) {
			r.Post("/post/{postId}", h.createComment)
			r.Get("/post/{postId}", h.postComments)
			r.Get("/post/{postId}/live", h.liveComments)
			r.Put("/{commentId}", h.updateComment)
			r.Delete("/{commentId}", h.deleteComment)
			r.Get("/{commentId}/replies", h.replies)
			r.Post("/{commentId}/like", h.toggleCommentLike)
		})
	})

	return router
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeOK(w, "OK", nil)
}

// pageParams reads ?cursor and ?limit. A missing, malformed or
// non-positive limit falls back to the default page size.
func pageParams(r *http.Request) (string, int) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = pagination.DefaultLimit
	}
	return q.Get("cursor"), limit
}
