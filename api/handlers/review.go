package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/internal/metrics"
	"github.com/reviewflow/reviewflow/review"
)

// ReviewHandler serves the cross-workflow review endpoints: the pending
// queue and the static checkpoint catalog.
type ReviewHandler struct {
	engine    *review.Engine
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewReviewHandler creates a review handler. The collector may be nil; the
// pending-reviews gauge is then not published.
func NewReviewHandler(engine *review.Engine, collector *metrics.Collector, logger *zap.Logger) *ReviewHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewHandler{
		engine:    engine,
		collector: collector,
		logger:    logger.With(zap.String("component", "review_handler")),
	}
}

// Register wires the review routes onto the mux.
func (h *ReviewHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/pending", h.HandlePending)
	mux.HandleFunc("GET /api/v1/checkpoint-types", h.HandleCheckpointTypes)
}

// HandlePending lists every checkpoint currently waiting on a reviewer,
// oldest first, across all workflows.
func (h *ReviewHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.engine.PendingReviews(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if h.collector != nil {
		h.collector.SetPendingReviews(len(pending))
	}
	WriteSuccess(w, r, pending)
}

// HandleCheckpointTypes dumps the checkpoint catalog in pipeline order.
func (h *ReviewHandler) HandleCheckpointTypes(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.engine.Registry().All())
}
