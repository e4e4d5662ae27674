// Package httpapi is the bot's admin HTTP surface: liveness/readiness
// probes and the Prometheus scrape endpoint, served on one small chi mux
// separate from the Telegram long-poll/webhook path.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rssbot/internal/metrics"
)

// Server is the admin HTTP server: /healthz, /readyz and /metrics.
//
//	srv := httpapi.New(":9091", logger)
//	go srv.Start(ctx)
//	srv.SetReady(true) // once the store has loaded and the scheduler is up
type Server struct {
	addr    string
	logger  *slog.Logger
	isReady *atomic.Bool
	server  *http.Server
}

type healthResponse struct {
	Status string `json:"status"`
}

// New builds a Server bound to addr. Call Start to begin serving.
func New(addr string, logger *slog.Logger) *Server {
	ready := &atomic.Bool{}
	return &Server{addr: addr, logger: logger, isReady: ready}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)
	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		metrics.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start))
	})
}

// Start runs the server until ctx is cancelled, then shuts down within 5s.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin http server starting", slog.String("addr", s.addr))
		if err := s.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("admin http server shutting down")
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("admin http server shutdown failed", slog.Any("error", err))
			return err
		}
		return http.ErrServerClosed
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return err
		}
		s.logger.Error("admin http server failed", slog.Any("error", err))
		return err
	}
}

// SetReady flips the readiness probe. The bot calls this once its store
// has loaded and the scheduler has started.
func (s *Server) SetReady(ready bool) {
	s.isReady.Store(ready)
	s.logger.Info("readiness changed", slog.Bool("ready", ready))
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, "ok", s.logger)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.isReady.Load() {
		writeHealth(w, http.StatusOK, "ok", s.logger)
		return
	}
	writeHealth(w, http.StatusServiceUnavailable, "not ready", s.logger)
}

func writeHealth(w http.ResponseWriter, status int, state string, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(healthResponse{Status: state}); err != nil {
		logger.Error("failed to encode health response", slog.Any("error", err))
	}
}
