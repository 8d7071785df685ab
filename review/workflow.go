package review

import (
	"sort"
	"time"

	"github.com/reviewflow/reviewflow/types"
)

// ErrorRecord is one pipeline error attached to a workflow, ordered by
// occurrence.
type ErrorRecord struct {
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ReviewerFeedback is an immutable record of one human decision against a
// checkpoint. Entries are append-only: never edited, never removed.
type ReviewerFeedback struct {
	ReviewerID       string       `json:"reviewer_id"`
	ReviewerName     string       `json:"reviewer_name,omitempty"`
	Timestamp        time.Time    `json:"timestamp"`
	Decision         DecisionKind `json:"decision"`
	Comments         string       `json:"comments,omitempty"`
	SpecificIssues   []string     `json:"specific_issues,omitempty"`
	SuggestedChanges string       `json:"suggested_changes,omitempty"`
}

// Checkpoint is one review gate instance inside a workflow aggregate. It is
// created by checkpoint initialization and never deleted individually.
type Checkpoint struct {
	Type              CheckpointType     `json:"type"`
	Name              string             `json:"name"`
	Order             int                `json:"order"`
	Status            CheckpointStatus   `json:"status"`
	Payload           types.Attrs        `json:"payload,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	ReviewStartedAt   *time.Time         `json:"review_started_at,omitempty"`
	ReviewCompletedAt *time.Time         `json:"review_completed_at,omitempty"`
	Feedback          []ReviewerFeedback `json:"feedback"`
	RevisionCount     int                `json:"revision_count"`
	Metadata          map[string]string  `json:"metadata,omitempty"`
}

// Workflow is the aggregate root for one end-to-end review run. It is
// persisted as a single self-describing document and mutated only through
// Engine operations; Version is the optimistic-concurrency stamp bumped by
// every successful save.
type Workflow struct {
	ID                string                         `json:"id"`
	ProtocolID        string                         `json:"protocol_id,omitempty"`
	Status            WorkflowStatus                 `json:"status"`
	Version           int64                          `json:"version"`
	CreatedAt         time.Time                      `json:"created_at"`
	UpdatedAt         time.Time                      `json:"updated_at"`
	InputData         types.Attrs                    `json:"input_data,omitempty"`
	Checkpoints       map[CheckpointType]*Checkpoint `json:"checkpoints"`
	CurrentCheckpoint CheckpointType                 `json:"current_checkpoint,omitempty"`
	ProducerOutputs   map[string]types.Attrs         `json:"producer_outputs,omitempty"`
	FinalResult       types.Attrs                    `json:"final_result,omitempty"`
	Errors            []ErrorRecord                  `json:"errors,omitempty"`
	Metadata          map[string]string              `json:"metadata,omitempty"`
}

// NewWorkflow builds a fresh aggregate in NOT_STARTED with version 1.
func NewWorkflow(id string, input types.Attrs, now time.Time) *Workflow {
	return &Workflow{
		ID:          id,
		Status:      WorkflowNotStarted,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
		InputData:   input.Clone(),
		Checkpoints: make(map[CheckpointType]*Checkpoint),
	}
}

// Checkpoint returns the named checkpoint instance, if initialized.
func (w *Workflow) Checkpoint(t CheckpointType) (*Checkpoint, bool) {
	cp, ok := w.Checkpoints[t]
	return cp, ok
}

// Initialized reports whether checkpoints have been created for this
// workflow. Initialization is all-or-nothing, so any entry means all gates
// exist.
func (w *Workflow) Initialized() bool {
	return len(w.Checkpoints) > 0
}

// OrderedCheckpoints returns the checkpoint instances in ascending
// pipeline order.
func (w *Workflow) OrderedCheckpoints() []*Checkpoint {
	out := make([]*Checkpoint, 0, len(w.Checkpoints))
	for _, cp := range w.Checkpoints {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// NextCheckpoint returns the lowest-order checkpoint not yet APPROVED — the
// pipeline frontier — or nil when every checkpoint is approved. An
// uninitialized workflow has no frontier.
func (w *Workflow) NextCheckpoint() *Checkpoint {
	for _, cp := range w.OrderedCheckpoints() {
		if cp.Status != CheckpointApproved {
			return cp
		}
	}
	return nil
}

// AllApproved reports whether every initialized checkpoint is APPROVED.
// An uninitialized workflow is never all-approved.
func (w *Workflow) AllApproved() bool {
	if !w.Initialized() {
		return false
	}
	for _, cp := range w.Checkpoints {
		if cp.Status != CheckpointApproved {
			return false
		}
	}
	return true
}

// Progress returns approved checkpoints over total, in [0,1]. Zero for an
// uninitialized workflow.
func (w *Workflow) Progress() float64 {
	if len(w.Checkpoints) == 0 {
		return 0
	}
	approved := 0
	for _, cp := range w.Checkpoints {
		if cp.Status == CheckpointApproved {
			approved++
		}
	}
	return float64(approved) / float64(len(w.Checkpoints))
}

// Touch bumps the aggregate's updated-at stamp.
func (w *Workflow) Touch(now time.Time) {
	w.UpdatedAt = now
}

// Clone returns a deep copy of the aggregate. Stores hand out clones so
// callers can mutate freely between load and save.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := *w
	out.InputData = w.InputData.Clone()
	out.FinalResult = w.FinalResult.Clone()

	out.Checkpoints = make(map[CheckpointType]*Checkpoint, len(w.Checkpoints))
	for t, cp := range w.Checkpoints {
		out.Checkpoints[t] = cp.clone()
	}

	if w.ProducerOutputs != nil {
		out.ProducerOutputs = make(map[string]types.Attrs, len(w.ProducerOutputs))
		for name, attrs := range w.ProducerOutputs {
			out.ProducerOutputs[name] = attrs.Clone()
		}
	}
	if w.Errors != nil {
		out.Errors = make([]ErrorRecord, len(w.Errors))
		copy(out.Errors, w.Errors)
	}
	out.Metadata = cloneStringMap(w.Metadata)
	return &out
}

func (c *Checkpoint) clone() *Checkpoint {
	out := *c
	out.Payload = c.Payload.Clone()
	if c.ReviewStartedAt != nil {
		ts := *c.ReviewStartedAt
		out.ReviewStartedAt = &ts
	}
	if c.ReviewCompletedAt != nil {
		ts := *c.ReviewCompletedAt
		out.ReviewCompletedAt = &ts
	}
	if c.Feedback != nil {
		out.Feedback = make([]ReviewerFeedback, len(c.Feedback))
		copy(out.Feedback, c.Feedback)
		for i, fb := range c.Feedback {
			if fb.SpecificIssues != nil {
				issues := make([]string, len(fb.SpecificIssues))
				copy(issues, fb.SpecificIssues)
				out.Feedback[i].SpecificIssues = issues
			}
		}
	}
	out.Metadata = cloneStringMap(c.Metadata)
	return &out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CheckpointSummary is the display projection of one checkpoint.
type CheckpointSummary struct {
	Type          CheckpointType   `json:"type"`
	Name          string           `json:"name"`
	Status        CheckpointStatus `json:"status"`
	Order         int              `json:"order"`
	RevisionCount int              `json:"revision_count"`
	FeedbackCount int              `json:"feedback_count"`
}

// WorkflowSummary is the display projection of a workflow aggregate.
type WorkflowSummary struct {
	ID                string              `json:"id"`
	ProtocolID        string              `json:"protocol_id,omitempty"`
	Status            WorkflowStatus      `json:"status"`
	CurrentCheckpoint CheckpointType      `json:"current_checkpoint,omitempty"`
	Progress          float64             `json:"progress"`
	Checkpoints       []CheckpointSummary `json:"checkpoints"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Summarize projects a workflow aggregate for list and summary endpoints.
func Summarize(w *Workflow) *WorkflowSummary {
	ordered := w.OrderedCheckpoints()
	checkpoints := make([]CheckpointSummary, len(ordered))
	for i, cp := range ordered {
		checkpoints[i] = CheckpointSummary{
			Type:          cp.Type,
			Name:          cp.Name,
			Status:        cp.Status,
			Order:         cp.Order,
			RevisionCount: cp.RevisionCount,
			FeedbackCount: len(cp.Feedback),
		}
	}
	return &WorkflowSummary{
		ID:                w.ID,
		ProtocolID:        w.ProtocolID,
		Status:            w.Status,
		CurrentCheckpoint: w.CurrentCheckpoint,
		Progress:          w.Progress(),
		Checkpoints:       checkpoints,
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
	}
}

// PendingReview is one checkpoint currently waiting on a reviewer, across
// all workflows.
type PendingReview struct {
	WorkflowID string         `json:"workflow_id"`
	ProtocolID string         `json:"protocol_id,omitempty"`
	Type       CheckpointType `json:"type"`
	Name       string         `json:"name"`
	Order      int            `json:"order"`
	ReadySince time.Time      `json:"ready_since"`
	AgeSeconds float64        `json:"age_seconds"`
}
