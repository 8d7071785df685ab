package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/api"
	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/types"
)

// CheckpointHandler serves the checkpoint-level endpoints: initialization,
// producer submissions, reviewer decisions, and auto-approval inspection.
type CheckpointHandler struct {
	engine *review.Engine
	logger *zap.Logger
}

// NewCheckpointHandler creates a checkpoint handler over the review engine.
func NewCheckpointHandler(engine *review.Engine, logger *zap.Logger) *CheckpointHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckpointHandler{
		engine: engine,
		logger: logger.With(zap.String("component", "checkpoint_handler")),
	}
}

// Register wires the checkpoint routes onto the mux.
func (h *CheckpointHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/workflows/{id}/checkpoints/init", h.HandleInit)
	mux.HandleFunc("GET /api/v1/workflows/{id}/checkpoints", h.HandleList)
	mux.HandleFunc("GET /api/v1/workflows/{id}/checkpoints/{type}", h.HandleGet)
	mux.HandleFunc("POST /api/v1/workflows/{id}/checkpoints/{type}/ready", h.HandleMarkReady)
	mux.HandleFunc("POST /api/v1/workflows/{id}/checkpoints/{type}/claim", h.HandleClaim)
	mux.HandleFunc("POST /api/v1/workflows/{id}/checkpoints/{type}/approve", h.HandleApprove)
	mux.HandleFunc("POST /api/v1/workflows/{id}/checkpoints/{type}/reject", h.HandleReject)
	mux.HandleFunc("POST /api/v1/workflows/{id}/checkpoints/{type}/revision", h.HandleRequestRevision)
	mux.HandleFunc("GET /api/v1/workflows/{id}/checkpoints/{type}/auto-approval", h.HandleAutoApproval)
	mux.HandleFunc("GET /api/v1/workflows/{id}/checkpoints/{type}/revision-feedback", h.HandleRevisionFeedback)
}

// checkpointType resolves and validates the {type} path parameter against
// the registry.
func (h *CheckpointHandler) checkpointType(r *http.Request) (review.CheckpointType, error) {
	raw, err := pathValue(r, "type")
	if err != nil {
		return "", err
	}
	t := review.CheckpointType(raw)
	if _, err := h.engine.Registry().Get(t); err != nil {
		return "", err
	}
	return t, nil
}

// HandleInit creates the configured checkpoints for a workflow. Calling it
// again is a no-op; existing feedback is never overwritten.
func (h *CheckpointHandler) HandleInit(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	wf, err := h.engine.InitializeCheckpoints(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, wf.OrderedCheckpoints())
}

// HandleList returns the workflow's checkpoint summaries in pipeline order.
func (h *CheckpointHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	summary, err := h.engine.Summary(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, summary.Checkpoints)
}

// HandleGet returns one checkpoint in full, including its review
// instructions and feedback history.
func (h *CheckpointHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	t, err := h.checkpointType(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	wf, err := h.engine.Get(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	cp, ok := wf.Checkpoint(t)
	if !ok {
		WriteErrorMessage(w, r, types.ErrNotFound,
			"workflow "+id+" has no "+string(t)+" checkpoint")
		return
	}
	WriteSuccess(w, r, cp)
}

// HandleMarkReady attaches a producer payload and moves the checkpoint to
// READY_FOR_REVIEW.
func (h *CheckpointHandler) HandleMarkReady(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	t, err := h.checkpointType(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req api.MarkReadyRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	cp, err := h.engine.MarkReadyForReview(r.Context(), id, t, req.Payload)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, cp)
}

// HandleClaim moves a checkpoint to UNDER_REVIEW for the named reviewer.
func (h *CheckpointHandler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	t, err := h.checkpointType(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req api.ClaimRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	cp, err := h.engine.StartReview(r.Context(), id, t, req.ReviewerID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, cp)
}

// HandleApprove records an approval decision.
func (h *CheckpointHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	t, err := h.checkpointType(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req api.ApproveRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	cp, err := h.engine.SubmitDecision(r.Context(), id, t, review.Decision{
		ReviewerID:   req.ReviewerID,
		ReviewerName: req.ReviewerName,
		Kind:         review.DecisionApproved,
		Comments:     req.Comments,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, cp)
}

// HandleReject records a rejection; the workflow fails.
func (h *CheckpointHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	t, err := h.checkpointType(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req api.RejectRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	cp, err := h.engine.SubmitDecision(r.Context(), id, t, review.Decision{
		ReviewerID:     req.ReviewerID,
		ReviewerName:   req.ReviewerName,
		Kind:           review.DecisionRejected,
		Comments:       req.Comments,
		SpecificIssues: req.SpecificIssues,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, cp)
}

// HandleRequestRevision sends a checkpoint back to its producers.
func (h *CheckpointHandler) HandleRequestRevision(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	t, err := h.checkpointType(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req api.RevisionRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	cp, err := h.engine.RequestRevision(r.Context(), id, t, review.Decision{
		ReviewerID:       req.ReviewerID,
		ReviewerName:     req.ReviewerName,
		Comments:         req.Comments,
		SpecificIssues:   req.SpecificIssues,
		SuggestedChanges: req.SuggestedChanges,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, cp)
}

// HandleAutoApproval evaluates the checkpoint's thresholds against its
// stored payload without mutating anything.
func (h *CheckpointHandler) HandleAutoApproval(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	t, err := h.checkpointType(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	result, err := h.engine.CheckAutoApproval(r.Context(), id, t)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, result)
}

// HandleRevisionFeedback returns the checkpoint's revision-requested
// feedback entries, oldest first.
func (h *CheckpointHandler) HandleRevisionFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	t, err := h.checkpointType(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	feedback, err := h.engine.RevisionFeedback(r.Context(), id, t)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, feedback)
}
