package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/UkralStul/echonymous/internal/auth"
	"github.com/UkralStul/echonymous/internal/config"
	"github.com/UkralStul/echonymous/internal/events"
	"github.com/UkralStul/echonymous/internal/httpapi"
	"github.com/UkralStul/echonymous/internal/service"
	"github.com/UkralStul/echonymous/internal/storage"
	"github.com/UkralStul/echonymous/internal/storage/inmemory"
	"github.com/UkralStul/echonymous/internal/storage/postgres"
)

func main() {
	storageType := flag.String("storage", "in-memory", "Storage type (in-memory or postgres)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogger(cfg)

	var store storage.Storage
	log.Info().Str("storage", *storageType).Msg("starting server")
	switch *storageType {
	case "postgres":
		if cfg.DatabaseURL == "" {
			log.Fatal().Msg("DATABASE_URL must be set for postgres storage")
		}
		store, err = postgres.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
	case "in-memory":
		store = inmemory.New()
	default:
		log.Fatal().Str("storage", *storageType).Msg("unknown storage type")
	}

	hub := events.NewHub()
	publishers := events.Multi{hub}
	if cfg.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer nc.Close()
		publishers = append(publishers, nc)

		for _, subject := range []string{"post.*", "comment.*"} {
			sub, err := nc.Subscribe(subject, logEvent)
			if err != nil {
				log.Fatal().Err(err).Str("subject", subject).Msg("failed to subscribe to NATS")
			}
			defer sub.Unsubscribe()
		}
	}

	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTExpiration)
	svc := service.New(store, tokens, publishers)

	if *storageType == "in-memory" {
		// Sample data for local testing.
		fillWithMockData(svc)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.NewHandler(svc, tokens, store, hub).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	log.Info().Str("addr", srv.Addr).Msg("listening")
	// serve returns instead of exiting so deferred cleanup still runs.
	if err := serve(srv, stop); err != nil {
		log.Error().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

// serve runs srv until stop fires or the listener fails, then shuts it down.
func serve(srv *http.Server, stop <-chan os.Signal) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Wrap(srv.Shutdown(ctx), "graceful shutdown failed")
}

// logEvent records activity seen on the message bus.
func logEvent(ev events.Event) {
	log.Debug().
		Str("type", string(ev.Type)).
		Str("postId", ev.PostID).
		Str("userId", ev.UserID).
		Int("count", ev.Count).
		Msg("event received")
}

func setupLogger(cfg *config.Config) {
	zerolog.SetGlobalLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.Development() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func fillWithMockData(svc *service.Service) {
	ctx := context.Background()

	// 1. Two users. Both sign in with "password123".
	alice, err := svc.Signup(ctx, service.SignupInput{Email: "alice@example.com", Username: "alice", Password: "password123"})
	if err != nil {
		log.Fatal().Err(err).Msg("fillWithMockData: failed to create user alice")
	}
	bob, err := svc.Signup(ctx, service.SignupInput{Email: "bob@example.com", Username: "bob", Password: "password123"})
	if err != nil {
		log.Fatal().Err(err).Msg("fillWithMockData: failed to create user bob")
	}

	// 2. A text post, with a comment thread and some engagement.
	post, err := svc.CreateTextPost(ctx, alice.User.ID, "Tech", "Cursor pagination with timestamps works well for feeds.")
	if err != nil {
		log.Fatal().Err(err).Msg("fillWithMockData: failed to create post")
	}

	c1, err := svc.CreateComment(ctx, bob.User.ID, post.ID, nil, "Until two posts share a timestamp.")
	if err != nil {
		log.Fatal().Err(err).Msg("fillWithMockData: failed to create comment")
	}
	if _, err := svc.CreateComment(ctx, alice.User.ID, post.ID, &c1.CommentID, "Microsecond precision makes that rare."); err != nil {
		log.Fatal().Err(err).Msg("fillWithMockData: failed to create reply")
	}
	if _, err := svc.ToggleLike(ctx, bob.User.ID, post.ID); err != nil {
		log.Fatal().Err(err).Msg("fillWithMockData: failed to like post")
	}
	if _, err := svc.ToggleEcho(ctx, bob.User.ID, post.ID); err != nil {
		log.Fatal().Err(err).Msg("fillWithMockData: failed to echo post")
	}

	// 3. An audio post in another category.
	audio, err := svc.CreateAudioPost(ctx, bob.User.ID, "Music", "/uploads/audio/demo.mp3")
	if err != nil {
		log.Fatal().Err(err).Msg("fillWithMockData: failed to create audio post")
	}

	log.Info().Str("postId", post.ID).Str("audioPostId", audio.ID).Msg("mock data filled successfully")
}
