package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records the service's Prometheus metrics.
type Collector struct {
	// HTTP surface
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Review pipeline
	workflowsCreatedTotal prometheus.Counter
	workflowsDeletedTotal prometheus.Counter
	decisionsTotal        *prometheus.CounterVec
	checkpointsReadyTotal *prometheus.CounterVec
	autoApprovalTotal     *prometheus.CounterVec
	pendingReviews        prometheus.Gauge

	// Persistence
	storeOpDuration *prometheus.HistogramVec

	// Eventing
	eventsDroppedTotal prometheus.Counter

	logger *zap.Logger
}

// NewCollector registers the reviewflow metrics under the given namespace.
// Register it once per process: promauto panics on duplicate registration.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.workflowsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_created_total",
			Help:      "Total number of review workflows created",
		},
	)

	c.workflowsDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_deleted_total",
			Help:      "Total number of review workflows deleted",
		},
	)

	c.decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_decisions_total",
			Help:      "Total number of reviewer decisions recorded",
		},
		[]string{"checkpoint", "decision"},
	)

	c.checkpointsReadyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_ready_total",
			Help:      "Total number of checkpoints marked ready for review",
		},
		[]string{"checkpoint"},
	)

	c.autoApprovalTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_approval_checks_total",
			Help:      "Total number of auto-approval evaluations by outcome",
		},
		[]string{"checkpoint", "outcome"}, // outcome: approved, withheld
	)

	c.pendingReviews = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_reviews",
			Help:      "Checkpoints currently waiting on a human reviewer",
		},
	)

	c.storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Workflow store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "backend"},
	)

	c.eventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Review events dropped on a full bus buffer",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWorkflowCreated counts a new workflow.
func (c *Collector) RecordWorkflowCreated() { c.workflowsCreatedTotal.Inc() }

// RecordWorkflowDeleted counts a removed workflow.
func (c *Collector) RecordWorkflowDeleted() { c.workflowsDeletedTotal.Inc() }

// RecordDecision counts one reviewer decision against a checkpoint.
func (c *Collector) RecordDecision(checkpoint, decision string) {
	c.decisionsTotal.WithLabelValues(checkpoint, decision).Inc()
}

// RecordCheckpointReady counts a checkpoint entering review.
func (c *Collector) RecordCheckpointReady(checkpoint string) {
	c.checkpointsReadyTotal.WithLabelValues(checkpoint).Inc()
}

// RecordAutoApproval counts one auto-approval evaluation.
func (c *Collector) RecordAutoApproval(checkpoint string, approved bool) {
	outcome := "withheld"
	if approved {
		outcome = "approved"
	}
	c.autoApprovalTotal.WithLabelValues(checkpoint, outcome).Inc()
}

// SetPendingReviews publishes the current pending-review count. This is the
// observational hook for review latency; the core has no SLA or expiry.
func (c *Collector) SetPendingReviews(n int) {
	c.pendingReviews.Set(float64(n))
}

// RecordStoreOperation records one store call.
func (c *Collector) RecordStoreOperation(operation, backend string, duration time.Duration) {
	c.storeOpDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

// RecordEventsDropped counts events discarded on a full bus buffer.
func (c *Collector) RecordEventsDropped(n int64) {
	c.eventsDroppedTotal.Add(float64(n))
}

// statusCode buckets HTTP statuses to keep label cardinality low.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
