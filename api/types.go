package api

import (
	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/types"
)

// CreateWorkflowRequest starts a new review workflow.
type CreateWorkflowRequest struct {
	InputData  types.Attrs       `json:"input_data,omitempty"`
	ProtocolID string            `json:"protocol_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// UpdateStatusRequest applies an explicit workflow status change.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// SetResultRequest attaches the final assembled document payload.
type SetResultRequest struct {
	Result types.Attrs `json:"result"`
}

// MarkReadyRequest submits a producer payload to a checkpoint.
type MarkReadyRequest struct {
	Payload types.Attrs `json:"payload"`
}

// ClaimRequest claims a checkpoint for a reviewer.
type ClaimRequest struct {
	ReviewerID string `json:"reviewer_id"`
}

// ApproveRequest records an approval. Comments are optional.
type ApproveRequest struct {
	ReviewerID   string `json:"reviewer_id"`
	ReviewerName string `json:"reviewer_name,omitempty"`
	Comments     string `json:"comments,omitempty"`
}

// RejectRequest records a rejection. Comments are required.
type RejectRequest struct {
	ReviewerID     string   `json:"reviewer_id"`
	ReviewerName   string   `json:"reviewer_name,omitempty"`
	Comments       string   `json:"comments"`
	SpecificIssues []string `json:"specific_issues,omitempty"`
}

// RevisionRequest sends a checkpoint back to its producers. Comments are
// required.
type RevisionRequest struct {
	ReviewerID       string   `json:"reviewer_id"`
	ReviewerName     string   `json:"reviewer_name,omitempty"`
	Comments         string   `json:"comments"`
	SpecificIssues   []string `json:"specific_issues,omitempty"`
	SuggestedChanges string   `json:"suggested_changes,omitempty"`
}

// StoreOutputRequest records the last-known output of a named producer.
type StoreOutputRequest struct {
	Output types.Attrs `json:"output"`
}

// RecordErrorRequest appends a pipeline error record to a workflow.
type RecordErrorRequest struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// DeleteResponse acknowledges a workflow deletion.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// NextCheckpointResponse carries the pipeline frontier. Checkpoint is null
// and AllApproved true once every gate is approved.
type NextCheckpointResponse struct {
	Checkpoint  *review.Checkpoint `json:"checkpoint"`
	AllApproved bool               `json:"all_approved"`
}

// ProducerOutputResponse carries one stored producer output.
type ProducerOutputResponse struct {
	Producer string      `json:"producer"`
	Output   types.Attrs `json:"output"`
}

// ErrorRecordsResponse carries a workflow's accumulated pipeline errors.
type ErrorRecordsResponse struct {
	WorkflowID string               `json:"workflow_id"`
	Errors     []review.ErrorRecord `json:"errors"`
}

// VersionResponse carries build information.
type VersionResponse struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}
