// Package mockbackend is a local development backend for portfolio-pulse.
// It accepts interaction events, streams canned chat replies, serves the
// admin API, and publishes document processing logs over SSE. State is kept
// in memory and lost on restart.
package mockbackend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/portfolio-pulse/internal/admin"
)

// Config configures a Server.
type Config struct {
	Port          int
	AdminUsername string
	AdminPassword string
	JWTSecret     string
	TokenTTL      time.Duration

	// ChunkDelay paces chat chunks; StepDelay paces document processing steps.
	ChunkDelay time.Duration
	StepDelay  time.Duration

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	Router *chi.Mux
	Port   int

	logger      *slog.Logger
	store       *store
	broadcaster *Broadcaster

	adminMu  sync.Mutex
	admin    admin.Admin
	password string
	secret   []byte
	tokenTTL time.Duration

	chunkDelay time.Duration
	stepDelay  time.Duration
	now        func() time.Time

	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

// New builds the server and its routes.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	s := &Server{
		Port:        cfg.Port,
		logger:      logger,
		store:       newStore(),
		broadcaster: NewBroadcaster(logger, now),
		admin: admin.Admin{
			ID:       "admin_1",
			Username: cfg.AdminUsername,
			Email:    cfg.AdminUsername + "@localhost",
			Role:     "admin",
		},
		password:   cfg.AdminPassword,
		secret:     []byte(cfg.JWTSecret),
		tokenTTL:   ttl,
		chunkDelay: cfg.ChunkDelay,
		stepDelay:  cfg.StepDelay,
		now:        now,
		quit:       make(chan struct{}),
	}
	s.Router = s.routes()
	return s
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "portfolio-mock")
	})

	r.Route("/api", func(r chi.Router) {
		// Streaming routes run for as long as the client stays connected.
		r.Post("/chat/send", s.handleChatSend)
		r.Get("/documents/logs/{id}", s.handleDocumentLogs)

		r.Group(func(r chi.Router) {
			r.Use(TimeoutMiddleware(30 * time.Second))

			r.Post("/interactions/{endpoint}", s.handleRecordInteraction)
			r.Delete("/chat/history/{sessionId}", s.handleClearChat)
			r.Post("/admin/login", s.handleLogin)
			r.Post("/admin/logout", s.handleLogout)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)

				r.Get("/interactions/all", s.handleListInteractions)
				r.Get("/admin/me", s.handleMe)
				r.Get("/admin/dashboard/stats", s.handleDashboardStats)
				r.Get("/admin/chat-conversations", s.handleListConversations)

				r.Get("/documents", s.handleListDocuments)
				r.Post("/documents", s.handleCreateDocument)
				r.Get("/documents/{id}", s.handleGetDocument)
				r.Patch("/documents/{id}", s.handleUpdateDocument)
				r.Delete("/documents/{id}", s.handleDeleteDocument)

				r.Get("/notifications/preferences", s.handleListPreferences)
				r.Put("/notifications/preferences", s.handleUpdatePreference)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.Router
}

// Broadcaster exposes the processing log fan-out.
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting mock backend", slog.Int("port", s.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down mock backend")
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close stops background document processing and waits for it to exit.
func (s *Server) Close() {
	s.quitOnce.Do(func() { close(s.quit) })
	s.wg.Wait()
}

// sleep waits for d, returning false if the server is closing or ctx ends.
func (s *Server) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-s.quit:
			return false
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.quit:
		return false
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
