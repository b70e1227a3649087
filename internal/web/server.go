// Package web serves the local HTTP API: probe listing, manual
// refreshes, panel snapshots, a live event stream, and prometheus
// metrics. Everything except health and metrics is guarded by the
// local bearer token.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jandubois/usagebar/internal/metrics"
	"github.com/jandubois/usagebar/internal/panel"
	"github.com/jandubois/usagebar/internal/probe"
)

const shutdownTimeout = 30 * time.Second

// Options configures the server.
type Options struct {
	Addr     string
	Token    string // bearer token guarding the API routes
	Version  string
	Panel    *panel.Panel
	Registry *probe.Registry
}

// Server is the local API server.
type Server struct {
	panel    *panel.Panel
	registry *probe.Registry
	token    string
	version  string
	server   *http.Server
}

// NewServer creates the local API server.
func NewServer(opts Options) *Server {
	s := &Server{
		panel:    opts.Panel,
		registry: opts.Registry,
		token:    opts.Token,
		version:  opts.Version,
	}
	s.server = &http.Server{
		Addr:    opts.Addr,
		Handler: s.routes(),
	}
	return s
}

// Run starts the server and shuts it down when ctx is cancelled.
// Request contexts derive from ctx so event streams end with it.
func (s *Server) Run(ctx context.Context) error {
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)

	// Open routes
	r.Get("/api/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	// Token-guarded API
	r.Group(func(r chi.Router) {
		r.Use(requireBearer(s.token))
		r.Get("/api/probes", s.handleProbes)
		r.Post("/api/batches", s.handleCreateBatch)
		r.Get("/api/snapshot", s.handleSnapshot)
		r.Get("/api/events", s.handleEvents)
	})

	return r
}
