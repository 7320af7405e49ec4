package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownTimeout bounds the graceful stop of the operations server.
const shutdownTimeout = 5 * time.Second

// OpsServer serves /health and /metrics.
type OpsServer struct {
	addr          string
	registry      *prometheus.Registry
	healthChecker *HealthChecker
	logger        *slog.Logger
	metrics       *Metrics

	mu       sync.Mutex
	server   *http.Server
	boundTo  net.Addr
	listenCh chan struct{}
}

// OpsOption is a functional option for configuring OpsServer.
type OpsOption func(*OpsServer)

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) OpsOption {
	return func(s *OpsServer) {
		s.healthChecker = hc
	}
}

// WithLogger sets the logger for the operations server.
func WithLogger(logger *slog.Logger) OpsOption {
	return func(s *OpsServer) {
		s.logger = logger
	}
}

// NewOpsServer creates an operations server listening on addr and
// exposing reg on /metrics. Its own request metrics are registered in reg.
func NewOpsServer(addr string, reg *prometheus.Registry, opts ...OpsOption) *OpsServer {
	s := &OpsServer{
		addr:     addr,
		registry: reg,
		logger:   slog.Default(),
		listenCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.healthChecker == nil {
		s.healthChecker = NewHealthChecker(nil, "")
	}
	s.metrics = NewMetrics(reg)
	return s
}

// Handler returns the router with every operations route.
func (s *OpsServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware(s.metrics))
	r.Use(RequestIDMiddleware(s.logger))
	r.Use(AccessLogMiddleware)
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/health", s.healthChecker.Handler())
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		Registry: s.registry,
	}))
	// Favicon handler to prevent browser 404 noise
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *OpsServer) Start(ctx context.Context) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.boundTo = l.Addr()
	close(s.listenCh)
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting operations server", "addr", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down operations server")
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

// Addr waits until Start is listening and returns the bound address.
// It returns nil if ctx is done first.
func (s *OpsServer) Addr(ctx context.Context) net.Addr {
	select {
	case <-s.listenCh:
	case <-ctx.Done():
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundTo
}

func (s *OpsServer) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("error during operations server shutdown", "error", err)
		return err
	}
	s.logger.Info("operations server shutdown complete")
	return nil
}
