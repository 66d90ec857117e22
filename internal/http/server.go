package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/davidbz/sonargate/internal/config"
	"github.com/davidbz/sonargate/internal/diagnostics"
	"github.com/davidbz/sonargate/internal/http/middleware"
	"github.com/davidbz/sonargate/internal/observability"
)

// Server represents the HTTP server.
type Server struct {
	config      config.ServerConfig
	handler     *Handler
	middlewares middleware.Middleware
	trail       *diagnostics.Logger

	mu     sync.Mutex
	srv    *http.Server
	closed bool
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.Config,
	handler *Handler,
	middlewares middleware.Middleware,
	trail *diagnostics.Logger,
) *Server {
	return &Server{
		config:      cfg.Server,
		handler:     handler,
		middlewares: middlewares,
		trail:       trail,
	}
}

// Routes builds the request multiplexer wrapped in the middleware chain.
func (s *Server) Routes(ctx context.Context) http.Handler {
	s.trail.Trace(ctx, diagnostics.MsgHandlerSetup, nil)

	mux := http.NewServeMux()
	routes := map[string]http.HandlerFunc{
		"/v1/chat/completions": s.handler.HandleCompletion,
		"/v1/diagnostics":      s.handler.HandleDiagnostics,
		"/health":              s.handler.HandleHealth,
	}
	for pattern, fn := range routes {
		mux.HandleFunc(pattern, fn)
		s.trail.Trace(ctx, diagnostics.MsgHandlerRegistered, map[string]string{"route": pattern})
	}

	if s.middlewares == nil {
		return mux
	}
	return s.middlewares(mux)
}

// Start starts the HTTP server. It returns nil without listening when
// Shutdown has already been called.
func (s *Server) Start() error {
	ctx := context.Background()
	s.trail.Trace(ctx, diagnostics.MsgServerStart, nil)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Routes(ctx),
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
	}
	s.srv = srv
	s.mu.Unlock()

	observability.FromContext(ctx).Info("starting HTTP server", observability.Int("port", s.config.Port))
	s.trail.Trace(ctx, diagnostics.MsgServerReady, map[string]int{"port": s.config.Port})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.trail.Error(ctx, "HTTP server stopped", err)
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.FromContext(ctx).Info("shutting down HTTP server")

	s.mu.Lock()
	s.closed = true
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
