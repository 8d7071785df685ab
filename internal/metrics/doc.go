// Package metrics registers and records the service's Prometheus metrics:
// the HTTP surface, review-pipeline counters (workflows, decisions,
// checkpoints, auto-approval), store operation latency, and the
// pending-review gauge. Metrics register via promauto under a single
// namespace; create one Collector per process.
// This package is internal and should not be imported by external projects.
package metrics
