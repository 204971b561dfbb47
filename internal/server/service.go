package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/lanefield/brag/internal/clustering"
	"github.com/lanefield/brag/internal/metering"
)

// Pinger reports whether the backing database answers.
type Pinger interface {
	Ping() error
}

// ProjectDirectory resolves tokens and verifies project ownership.
type ProjectDirectory interface {
	TokenResolver
	CountOwnedProjects(ctx context.Context, userID string, projectIDs []string) (int64, error)
}

// Service is the HTTP API service.
type Service struct {
	engine *clustering.Engine
	gate   *metering.Gate
	users  ProjectDirectory
	store  Pinger

	version   string
	startTime time.Time

	server *http.Server
}

// Options configures a Service.
type Options struct {
	Port        int
	MaxBodySize int64
	Version     string
}

// NewService creates the HTTP service and builds its router.
func NewService(engine *clustering.Engine, gate *metering.Gate, users ProjectDirectory, store Pinger, opts Options) *Service {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = 1 << 20
	}
	s := &Service{
		engine:    engine,
		gate:      gate,
		users:     users,
		store:     store,
		version:   opts.Version,
		startTime: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(MaxBodySize(opts.MaxBodySize))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(users))
		// No write timeout here: generation streams progress events for as
		// long as the run takes.
		r.Post("/workstreams/generate", s.handleGenerateWorkstreams)
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests. Blocks until the server stops.
func (s *Service) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("HTTP service listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Service) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP service")
	return s.server.Shutdown(ctx)
}
