// Package server serves the HTTP surface of `kiln watch`: health probes,
// the last build's status, a build event stream and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a single health check.
type HealthCheck struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse is the response from health endpoints.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// HealthChecker performs one health check.
type HealthChecker func(ctx context.Context) HealthCheck

// HealthServer provides HTTP health check endpoints.
type HealthServer struct {
	mu      sync.RWMutex
	checks  map[string]HealthChecker
	routes  map[string]http.Handler
	status  *BuildStatus
	events  *EventHub
	version string
	ready   bool
	live    bool
}

// HealthConfig configures the health server.
type HealthConfig struct {
	Version string

	// Status, when set, is served on /status and checked on /health.
	Status *BuildStatus

	// Metrics, when set, is served on /metrics.
	Metrics http.Handler

	// Events, when set, streams build events on /events.
	Events *EventHub
}

// NewHealthServer creates a new health server. It starts live and not
// ready; the watcher marks it ready after the first build.
func NewHealthServer(config *HealthConfig) *HealthServer {
	s := &HealthServer{
		checks: make(map[string]HealthChecker),
		routes: make(map[string]http.Handler),
		live:   true,
	}
	if config == nil {
		return s
	}
	s.version = config.Version
	if config.Status != nil {
		s.status = config.Status
		s.checks["build"] = BuildHealthChecker(config.Status)
	}
	if config.Metrics != nil {
		s.routes["/metrics"] = config.Metrics
	}
	if config.Events != nil {
		s.events = config.Events
		s.routes["/events"] = config.Events
	}
	return s
}

// RegisterCheck adds a health check.
func (s *HealthServer) RegisterCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = checker
}

// SetReady marks the server as ready to accept traffic.
func (s *HealthServer) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// SetLive marks the server as live (or not).
func (s *HealthServer) SetLive(live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = live
}

// Handler returns an http.Handler for the health endpoints.
func (s *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/live", s.handleLive)
	mux.HandleFunc("/healthz", s.handleHealth) // Kubernetes alias
	mux.HandleFunc("/readyz", s.handleReady)   // Kubernetes alias
	mux.HandleFunc("/livez", s.handleLive)     // Kubernetes alias
	if s.status != nil {
		mux.HandleFunc("/status", s.handleStatus)
	}
	for path, h := range s.routes {
		mux.Handle(path, h)
	}
	return mux
}

// ListenAndServe serves the endpoints on addr until ctx ends, then shuts
// the listener down.
func (s *HealthServer) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 5 * time.Second,
		// No write timeout: /events responses stay open.
	}
	if s.events != nil {
		server.RegisterOnShutdown(s.events.Close)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleHealth runs every check; checks are reported in name order.
func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	checks := make(map[string]HealthChecker, len(s.checks))
	for k, v := range s.checks {
		names = append(names, k)
		checks[k] = v
	}
	version := s.version
	s.mu.RUnlock()
	sort.Strings(names)

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   version,
		Checks:    make([]HealthCheck, 0, len(names)),
	}

	for _, name := range names {
		check := checks[name](ctx)
		check.Name = name
		response.Checks = append(response.Checks, check)

		if check.Status == HealthStatusUnhealthy {
			response.Status = HealthStatusUnhealthy
		} else if check.Status == HealthStatusDegraded && response.Status == HealthStatusHealthy {
			response.Status = HealthStatusDegraded
		}
	}

	statusCode := http.StatusOK
	if response.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, response)
}

func (s *HealthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()
	probe(w, ready)
}

func (s *HealthServer) handleLive(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	live := s.live
	s.mu.RUnlock()
	probe(w, live)
}

func (s *HealthServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.status.Last()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no build has finished yet"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func probe(w http.ResponseWriter, ok bool) {
	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
	}
	if !ok {
		response.Status = HealthStatusUnhealthy
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Common health checkers

// DependencyHealthChecker reports a remote dependency, such as Temporal or
// the graph database, as unhealthy when checkFn fails.
func DependencyHealthChecker(component string, checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: component + " connection failed: " + err.Error(),
			}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: component + " connection OK",
		}
	}
}

// BuildHealthChecker is degraded while the last build has errors.
func BuildHealthChecker(status *BuildStatus) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		summary, ok := status.Last()
		if !ok {
			return HealthCheck{Status: HealthStatusHealthy, Message: "No build yet"}
		}
		details := map[string]string{
			"root":     summary.Root,
			"builds":   fmt.Sprint(summary.Sequence),
			"errors":   fmt.Sprint(summary.Errors),
			"warnings": fmt.Sprint(summary.Warnings),
		}
		if !summary.Success {
			return HealthCheck{
				Status:  HealthStatusDegraded,
				Message: fmt.Sprintf("Last build failed with %d error(s)", summary.Errors),
				Details: details,
			}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: "Last build succeeded", Details: details}
	}
}

// OutputRootHealthChecker checks that root can hold artifacts. A missing
// root is degraded since the next build creates it.
func OutputRootHealthChecker(fs afero.Fs, root string) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		details := map[string]string{"path": root}
		info, err := fs.Stat(root)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return HealthCheck{Status: HealthStatusDegraded, Message: "Output root does not exist yet", Details: details}
		case err != nil:
			return HealthCheck{Status: HealthStatusUnhealthy, Message: "Output root: " + err.Error(), Details: details}
		case !info.IsDir():
			return HealthCheck{Status: HealthStatusUnhealthy, Message: "Output root is not a directory", Details: details}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: "Output root OK", Details: details}
	}
}
