// Package health exposes run progress and Prometheus metrics over
// HTTP while an export is in flight.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/tracker"
)

// Server provides HTTP endpoints for run monitoring.
type Server struct {
	tracker *tracker.Tracker
	server  *http.Server
}

// NewServer creates a server on the given port.
func NewServer(tr *tracker.Tracker, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		tracker: tr,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/progress", s.handleProgress)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	stats := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"total":             stats.Total,
		"succeeded":         stats.Succeeded,
		"failed":            stats.Failed,
		"timed_out":         stats.TimedOut,
		"downloads":         stats.Downloads,
		"download_failures": stats.DownloadFailures,
		"success_rate":      s.tracker.SuccessRate(),
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
