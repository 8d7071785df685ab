package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/api"
	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/types"
)

// WorkflowHandler serves the workflow-level endpoints: lifecycle, status,
// producer outputs, and error records.
type WorkflowHandler struct {
	engine *review.Engine
	logger *zap.Logger
}

// NewWorkflowHandler creates a workflow handler over the review engine.
func NewWorkflowHandler(engine *review.Engine, logger *zap.Logger) *WorkflowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowHandler{
		engine: engine,
		logger: logger.With(zap.String("component", "workflow_handler")),
	}
}

// Register wires the workflow routes onto the mux.
func (h *WorkflowHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/workflows", h.HandleCreate)
	mux.HandleFunc("GET /api/v1/workflows", h.HandleList)
	mux.HandleFunc("GET /api/v1/workflows/{id}", h.HandleGet)
	mux.HandleFunc("DELETE /api/v1/workflows/{id}", h.HandleDelete)
	mux.HandleFunc("PATCH /api/v1/workflows/{id}/status", h.HandleUpdateStatus)
	mux.HandleFunc("POST /api/v1/workflows/{id}/result", h.HandleSetResult)
	mux.HandleFunc("GET /api/v1/workflows/{id}/summary", h.HandleSummary)
	mux.HandleFunc("GET /api/v1/workflows/{id}/next-checkpoint", h.HandleNextCheckpoint)
	mux.HandleFunc("POST /api/v1/workflows/{id}/outputs/{producer}", h.HandleStoreOutput)
	mux.HandleFunc("GET /api/v1/workflows/{id}/outputs/{producer}", h.HandleGetOutput)
	mux.HandleFunc("POST /api/v1/workflows/{id}/errors", h.HandleRecordError)
}

// HandleCreate starts a new workflow from the submitted input data.
func (h *WorkflowHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateWorkflowRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	wf, err := h.engine.Create(r.Context(), review.CreateRequest{
		InputData:  req.InputData,
		ProtocolID: req.ProtocolID,
		Metadata:   req.Metadata,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteCreated(w, r, wf)
}

// HandleList returns workflow summaries, optionally filtered by status.
func (h *WorkflowHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var status review.WorkflowStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := review.ParseWorkflowStatus(raw)
		if err != nil {
			WriteErrorMessage(w, r, types.ErrInvalidRequest, "unknown workflow status "+raw)
			return
		}
		status = parsed
	}

	workflows, err := h.engine.List(r.Context(), status)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	summaries := make([]*review.WorkflowSummary, len(workflows))
	for i, wf := range workflows {
		summaries[i] = review.Summarize(wf)
	}
	WriteSuccess(w, r, summaries)
}

// HandleGet returns the full workflow aggregate.
func (h *WorkflowHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	wf, err := h.engine.Get(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, wf)
}

// HandleDelete removes a workflow; deleting an absent id is a 404.
func (h *WorkflowHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	deleted, err := h.engine.Delete(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if !deleted {
		WriteErrorMessage(w, r, types.ErrNotFound, "workflow "+id+" not found")
		return
	}
	WriteSuccess(w, r, api.DeleteResponse{Deleted: true})
}

// HandleUpdateStatus applies an explicit workflow status change, guarded by
// the workflow transition table.
func (h *WorkflowHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req api.UpdateStatusRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	wf, err := h.engine.UpdateStatus(r.Context(), id, review.WorkflowStatus(req.Status))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, wf)
}

// HandleSetResult attaches the final assembled document payload.
func (h *WorkflowHandler) HandleSetResult(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req api.SetResultRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	wf, err := h.engine.SetFinalResult(r.Context(), id, req.Result)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, wf)
}

// HandleSummary returns the display projection of a workflow.
func (h *WorkflowHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
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
	WriteSuccess(w, r, summary)
}

// HandleNextCheckpoint returns the pipeline frontier; a null checkpoint with
// all_approved true means every gate has passed.
func (h *WorkflowHandler) HandleNextCheckpoint(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	cp, err := h.engine.NextCheckpoint(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, api.NextCheckpointResponse{
		Checkpoint:  cp,
		AllApproved: cp == nil,
	})
}

// HandleStoreOutput records the last-known output of a named producer.
func (h *WorkflowHandler) HandleStoreOutput(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	producer, err := pathValue(r, "producer")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req api.StoreOutputRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	if _, err := h.engine.StoreProducerOutput(r.Context(), id, producer, req.Output); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, api.ProducerOutputResponse{Producer: producer, Output: req.Output})
}

// HandleGetOutput fetches the last-known output of a named producer.
func (h *WorkflowHandler) HandleGetOutput(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	producer, err := pathValue(r, "producer")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	output, err := h.engine.ProducerOutput(r.Context(), id, producer)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, api.ProducerOutputResponse{Producer: producer, Output: output})
}

// HandleRecordError appends a pipeline error record to a workflow.
func (h *WorkflowHandler) HandleRecordError(w http.ResponseWriter, r *http.Request) {
	id, err := pathValue(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req api.RecordErrorRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	wf, err := h.engine.RecordError(r.Context(), id, req.Stage, req.Message)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, api.ErrorRecordsResponse{WorkflowID: wf.ID, Errors: wf.Errors})
}
