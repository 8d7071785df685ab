package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reviewflow/reviewflow/api"
)

// checkTimeout bounds one readiness probe across all registered checks.
const checkTimeout = 5 * time.Second

// HealthCheck is one named readiness probe, typically a store ping.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// checkResult is the wire form of one executed probe.
type checkResult struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// HealthHandler serves liveness, readiness, and build-info endpoints.
type HealthHandler struct {
	mu     sync.RWMutex
	checks []HealthCheck
	logger *zap.Logger
}

// NewHealthHandler creates a health handler with no checks registered.
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger: logger.With(zap.String("component", "health_handler")),
	}
}

// RegisterCheck adds a readiness probe. Safe to call before serving starts.
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// Register wires the health routes onto the mux.
func (h *HealthHandler) Register(mux *http.ServeMux, version api.VersionResponse) {
	mux.HandleFunc("GET /healthz", h.HandleHealthz)
	mux.HandleFunc("GET /readyz", h.HandleReady)
	mux.HandleFunc("GET /version", h.HandleVersion(version))
}

// HandleHealthz is the liveness probe: the process is up.
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]string{"status": "ok"})
}

// HandleReady runs every registered check; any failure yields 503.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	// Probes run concurrently so one slow backend doesn't serialize the
	// whole readiness response. Each goroutine owns its slot in results.
	results := make([]checkResult, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			start := time.Now()
			err := check.Check(gctx)
			results[i] = checkResult{
				Name:      check.Name,
				Healthy:   err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				results[i].Error = err.Error()
				h.logger.Warn("readiness check failed",
					zap.String("check", check.Name),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	ready := true
	for _, res := range results {
		if !res.Healthy {
			ready = false
			break
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, r, status, map[string]any{
		"ready":  ready,
		"checks": results,
	})
}

// HandleVersion returns a handler serving static build information.
func (h *HealthHandler) HandleVersion(version api.VersionResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, r, version)
	}
}
