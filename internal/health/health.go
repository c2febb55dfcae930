// Package health serves the liveness endpoint. It reports the process
// and its database connection so a supervisor can restart a wedged bot.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const (
	checkTimeout    = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Pinger checks the database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP health endpoint.
type Server struct {
	addr   string
	pinger Pinger
	logger *slog.Logger
}

// NewServer creates a health Server listening on addr.
func NewServer(addr string, pinger Pinger, logger *slog.Logger) *Server {
	return &Server{
		addr:   addr,
		pinger: pinger,
		logger: logger.With("component", "health"),
	}
}

type response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Handler returns the health route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Run serves /health until the context is cancelled, then shuts the
// listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Health endpoint listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checkCtx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := response{Status: "ok", Checks: map[string]string{"database": "ok"}}
	status := http.StatusOK

	if err := s.pinger.Ping(checkCtx); err != nil {
		s.logger.WarnContext(r.Context(), "Health check failed", "error", err)
		resp.Status = "degraded"
		resp.Checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.WarnContext(r.Context(), "Failed to write health response", "error", err)
	}
}
