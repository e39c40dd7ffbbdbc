// Package server serves the dashboard over HTTP together with liveness,
// readiness and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/evidence"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusStarting  Status = "starting"
	StatusStopping  Status = "stopping"
)

const checkTimeout = 5 * time.Second

// HealthResponse is the JSON body of /healthz and /readyz
type HealthResponse struct {
	Status    Status            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Renderer produces the dashboard page
type Renderer interface {
	Render(ctx context.Context) ([]byte, error)
}

// Checker is a readiness dependency
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// StoreChecker is ready when the evidence store can be listed
type StoreChecker struct {
	Store evidence.Store
}

func (c StoreChecker) Name() string { return "evidence" }

func (c StoreChecker) Check(ctx context.Context) error {
	_, err := c.Store.List(ctx, evidence.RunsPrefix)
	return err
}

type Server struct {
	http      *http.Server
	renderer  Renderer
	checkers  []Checker
	version   string
	startTime time.Time

	mu     sync.RWMutex
	status Status
}

func New(port int, version string, renderer Renderer, checkers ...Checker) *Server {
	s := &Server{
		renderer:  renderer,
		checkers:  checkers,
		version:   version,
		startTime: time.Now(),
		status:    StatusStarting,
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler routes every endpoint
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.livenessHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.readinessHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/", s.dashboardHandler).Methods(http.MethodGet, http.MethodHead)
	return r
}

func (s *Server) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Server) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", s.http.Addr).Info("Starting dashboard server")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.SetStatus(StatusHealthy)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.SetStatus(StatusStopping)
	logrus.Info("Stopping dashboard server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	page, err := s.renderer.Render(r.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to render dashboard")
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

func (s *Server) livenessHandler(w http.ResponseWriter, _ *http.Request) {
	status := s.GetStatus()
	if status == StatusStopping {
		s.writeHealth(w, status, http.StatusServiceUnavailable, nil)
		return
	}
	s.writeHealth(w, status, http.StatusOK, nil)
}

func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	status := s.GetStatus()
	if status != StatusHealthy {
		s.writeHealth(w, status, http.StatusServiceUnavailable, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	details := map[string]string{}
	ready := true
	for _, checker := range s.checkers {
		if err := checker.Check(ctx); err != nil {
			details[checker.Name()] = err.Error()
			ready = false
			continue
		}
		details[checker.Name()] = string(StatusHealthy)
	}

	if !ready {
		s.writeHealth(w, StatusUnhealthy, http.StatusServiceUnavailable, details)
		return
	}
	s.writeHealth(w, StatusHealthy, http.StatusOK, details)
}

func (s *Server) writeHealth(w http.ResponseWriter, status Status, code int, details map[string]string) {
	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startTime).String(),
		Version:   s.version,
		Details:   details,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logrus.WithError(err).Error("Failed to encode health response")
	}
}
