package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// APIServer provides an HTTP interface for a running execution queue.
type APIServer struct {
	server *http.Server
	queue  *Queue
	logger *zap.Logger
}

// NewAPIServer creates a new APIServer listening on port.
func NewAPIServer(queue *Queue, port int, logger *zap.Logger) *APIServer {
	s := &APIServer{
		queue:  queue,
		logger: logger.Named("api-server"),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *APIServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/status", s.statusHandler)
	r.Get("/health", s.healthHandler)
	r.Post("/stop", s.stopHandler)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Handler returns the HTTP handler of the server.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

type statusResponse struct {
	Snapshot
	Uptime string `json:"uptime,omitempty"`
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.queue.Snapshot()
	resp := statusResponse{Snapshot: snap}
	if !snap.StartedAt.IsZero() {
		resp.Uptime = time.Since(snap.StartedAt).Round(time.Second).String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) stopHandler(w http.ResponseWriter, r *http.Request) {
	if !s.queue.Active() {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "no active trading session"})
		return
	}
	s.queue.Stop()
	s.logger.Info("Trading stopped via API", zap.String("remote_addr", r.RemoteAddr))
	s.writeJSON(w, http.StatusOK, s.queue.Snapshot())
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}
