package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/pingsantohq/dailyping/internal/health"
	"github.com/pingsantohq/dailyping/internal/metrics"
	"github.com/pingsantohq/dailyping/pkg/types"
)

const shutdownTimeout = 3 * time.Second

// Config controls HTTP server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// StatusSource reports loop readiness.
type StatusSource interface {
	Status(now time.Time) health.Status
}

// ReportSource returns the in-progress daily report without resetting it.
type ReportSource interface {
	Peek() types.DailyReport
}

// Dependencies holds external collaborators required by the server.
type Dependencies struct {
	Logger  *slog.Logger
	Metrics *metrics.Store
	Health  StatusSource
	Reports ReportSource
	Now     func() time.Time
}

// Server wraps http.Server for convenience.
type Server struct {
	*http.Server
	deps Dependencies
}

// New constructs the status server.
func New(cfg Config, deps Dependencies) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:9320"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := mux.NewRouter()
	if deps.Metrics != nil {
		r.Handle("/metrics", metrics.NewHTTPHandler(deps.Metrics)).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }).Methods(http.MethodGet)
	r.HandleFunc("/readyz", readyHandler(deps)).Methods(http.MethodGet)
	r.HandleFunc("/status", statusHandler(deps)).Methods(http.MethodGet)
	r.HandleFunc("/report", reportHandler(deps)).Methods(http.MethodGet)

	s := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return &Server{Server: s, deps: deps}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("status server listening", "addr", "http://"+s.Addr)
		errCh <- s.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func readyHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Health == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		st := deps.Health.Status(deps.Now())
		if !st.Ready {
			http.Error(w, strings.Join(st.Reasons, "; "), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func statusHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Health == nil {
			http.Error(w, "status unavailable", http.StatusNotFound)
			return
		}
		writeJSON(w, deps.Logger, deps.Health.Status(deps.Now()))
	}
}

func reportHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Reports == nil {
			http.Error(w, "report unavailable", http.StatusNotFound)
			return
		}
		writeJSON(w, deps.Logger, deps.Reports.Peek())
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response failed", "error", err)
	}
}
