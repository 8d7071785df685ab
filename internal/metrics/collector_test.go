package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// promauto registers against the default registry, so every test gets its
// own namespace to avoid duplicate-registration panics.
var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.decisionsTotal)
	assert.NotNil(t, collector.checkpointsReadyTotal)
	assert.NotNil(t, collector.autoApprovalTotal)
	assert.NotNil(t, collector.pendingReviews)
	assert.NotNil(t, collector.storeOpDuration)
}

func TestRecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("GET", "/api/v1/workflows", 200, 100*time.Millisecond)
	collector.RecordHTTPRequest("GET", "/api/v1/workflows", 200, 50*time.Millisecond)
	collector.RecordHTTPRequest("POST", "/api/v1/workflows", 409, 10*time.Millisecond)

	ok := collector.httpRequestsTotal.WithLabelValues("GET", "/api/v1/workflows", "2xx")
	assert.Equal(t, 2.0, testutil.ToFloat64(ok))

	conflict := collector.httpRequestsTotal.WithLabelValues("POST", "/api/v1/workflows", "4xx")
	assert.Equal(t, 1.0, testutil.ToFloat64(conflict))

	assert.Greater(t, testutil.CollectAndCount(collector.httpRequestDuration), 0)
}

func TestRecordWorkflowLifecycle(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordWorkflowCreated()
	collector.RecordWorkflowCreated()
	collector.RecordWorkflowDeleted()

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.workflowsCreatedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.workflowsDeletedTotal))
}

func TestRecordDecision(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDecision("intake_review", "approve")
	collector.RecordDecision("intake_review", "approve")
	collector.RecordDecision("regulatory_review", "request_revision")

	approvals := collector.decisionsTotal.WithLabelValues("intake_review", "approve")
	assert.Equal(t, 2.0, testutil.ToFloat64(approvals))

	revisions := collector.decisionsTotal.WithLabelValues("regulatory_review", "request_revision")
	assert.Equal(t, 1.0, testutil.ToFloat64(revisions))
}

func TestRecordAutoApproval(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordAutoApproval("intake_review", true)
	collector.RecordAutoApproval("intake_review", false)
	collector.RecordAutoApproval("intake_review", false)

	approved := collector.autoApprovalTotal.WithLabelValues("intake_review", "approved")
	assert.Equal(t, 1.0, testutil.ToFloat64(approved))

	withheld := collector.autoApprovalTotal.WithLabelValues("intake_review", "withheld")
	assert.Equal(t, 2.0, testutil.ToFloat64(withheld))
}

func TestPendingReviewsGauge(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.SetPendingReviews(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(collector.pendingReviews))

	collector.SetPendingReviews(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.pendingReviews))
}

func TestRecordStoreOperation(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordStoreOperation("save", "redis", 5*time.Millisecond)
	assert.Greater(t, testutil.CollectAndCount(collector.storeOpDuration), 0)
}

func TestRecordEventsDropped(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordEventsDropped(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.eventsDroppedTotal))
}

func TestConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/healthz", 200, time.Millisecond)
			collector.RecordDecision("final_review", "approve")
			collector.RecordCheckpointReady("final_review")
		}()
	}
	wg.Wait()

	requests := collector.httpRequestsTotal.WithLabelValues("GET", "/healthz", "2xx")
	assert.Equal(t, 10.0, testutil.ToFloat64(requests))

	ready := collector.checkpointsReadyTotal.WithLabelValues("final_review")
	assert.Equal(t, 10.0, testutil.ToFloat64(ready))
}

func TestStatusCodeBuckets(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(204))
	assert.Equal(t, "3xx", statusCode(302))
	assert.Equal(t, "4xx", statusCode(409))
	assert.Equal(t, "5xx", statusCode(503))
	assert.Equal(t, "unknown", statusCode(42))
}
