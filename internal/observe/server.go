// Package observe exposes a running labelling job over HTTP and writes its
// metrics to a node-exporter textfile when the job ends.
package observe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psantana5/dftd-labeler/pkg/logging"
	"github.com/psantana5/dftd-labeler/pkg/models"
)

// StatusFunc returns a snapshot of the job being run
type StatusFunc func() models.JobResult

// NewRouter serves /metrics, /health and /progress
func NewRouter(gatherer prometheus.Gatherer, status StatusFunc) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}).Methods("GET")

	r.HandleFunc("/progress", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, status())
	}).Methods("GET")

	return r
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// Server is the observation HTTP server
type Server struct {
	srv      *http.Server
	listener net.Listener
}

// Start listens on addr and serves handler in the background
func Start(addr string, handler http.Handler, logger *logging.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s := &Server{
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Observation server stopped", map[string]interface{}{"error": err.Error()})
		}
	}()
	logger.Info("Observation server listening", map[string]interface{}{"addr": ln.Addr().String()})
	return s, nil
}

// Addr returns the address the server listens on
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
