package review

import "github.com/reviewflow/reviewflow/types"

// WorkflowStatus defines the lifecycle status of a review workflow.
type WorkflowStatus string

const (
	WorkflowNotStarted        WorkflowStatus = "not_started"        // Created, no checkpoint activity yet
	WorkflowInProgress        WorkflowStatus = "in_progress"        // Producers are working
	WorkflowAwaitingReview    WorkflowStatus = "awaiting_review"    // At least one checkpoint waits on a human
	WorkflowRevisionRequested WorkflowStatus = "revision_requested" // A reviewer sent work back
	WorkflowCompleted         WorkflowStatus = "completed"          // All checkpoints approved
	WorkflowFailed            WorkflowStatus = "failed"             // A reviewer rejected a checkpoint
	WorkflowCancelled         WorkflowStatus = "cancelled"          // Abandoned by the caller
)

// CheckpointStatus defines the lifecycle status of a single checkpoint.
type CheckpointStatus string

const (
	CheckpointPending           CheckpointStatus = "pending"            // Waiting on upstream producers
	CheckpointReadyForReview    CheckpointStatus = "ready_for_review"   // Producer output attached, awaiting a reviewer
	CheckpointUnderReview       CheckpointStatus = "under_review"       // Claimed by a reviewer
	CheckpointApproved          CheckpointStatus = "approved"           // Terminal
	CheckpointRejected          CheckpointStatus = "rejected"           // Terminal
	CheckpointRevisionRequested CheckpointStatus = "revision_requested" // Sent back to producers
	CheckpointSkipped           CheckpointStatus = "skipped"            // Gate waived, counts as passed
)

// validWorkflowTransitions defines the legal workflow status transitions.
// Same-status writes are treated as no-ops and allowed everywhere.
var validWorkflowTransitions = map[WorkflowStatus][]WorkflowStatus{
	WorkflowNotStarted:        {WorkflowInProgress, WorkflowAwaitingReview, WorkflowFailed, WorkflowCancelled},
	WorkflowInProgress:        {WorkflowAwaitingReview, WorkflowRevisionRequested, WorkflowCompleted, WorkflowFailed, WorkflowCancelled},
	WorkflowAwaitingReview:    {WorkflowInProgress, WorkflowRevisionRequested, WorkflowCompleted, WorkflowFailed, WorkflowCancelled},
	WorkflowRevisionRequested: {WorkflowInProgress, WorkflowAwaitingReview, WorkflowFailed, WorkflowCancelled},
	WorkflowCompleted:         {},
	WorkflowFailed:            {},
	WorkflowCancelled:         {},
}

// validCheckpointTransitions defines the legal checkpoint status transitions.
// A re-submission keeps ready_for_review as a self-edge so producers can
// replace a payload that nobody has claimed yet.
var validCheckpointTransitions = map[CheckpointStatus][]CheckpointStatus{
	CheckpointPending:           {CheckpointReadyForReview, CheckpointSkipped},
	CheckpointReadyForReview:    {CheckpointReadyForReview, CheckpointUnderReview, CheckpointApproved, CheckpointRejected, CheckpointRevisionRequested},
	CheckpointUnderReview:       {CheckpointApproved, CheckpointRejected, CheckpointRevisionRequested},
	CheckpointRevisionRequested: {CheckpointReadyForReview},
	CheckpointApproved:          {},
	CheckpointRejected:          {},
	CheckpointSkipped:           {},
}

// CanTransitionWorkflow checks whether a workflow status transition is legal.
func CanTransitionWorkflow(from, to WorkflowStatus) bool {
	if from == to {
		return true
	}
	allowed, ok := validWorkflowTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// CanTransitionCheckpoint checks whether a checkpoint status transition is legal.
func CanTransitionCheckpoint(from, to CheckpointStatus) bool {
	allowed, ok := validCheckpointTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the workflow status admits no further transitions.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed || s == WorkflowCancelled
}

// Valid reports whether s is a known workflow status.
func (s WorkflowStatus) Valid() bool {
	_, ok := validWorkflowTransitions[s]
	return ok
}

// IsTerminal reports whether the checkpoint status admits no further transitions.
func (s CheckpointStatus) IsTerminal() bool {
	return s == CheckpointApproved || s == CheckpointRejected || s == CheckpointSkipped
}

// Valid reports whether s is a known checkpoint status.
func (s CheckpointStatus) Valid() bool {
	_, ok := validCheckpointTransitions[s]
	return ok
}

// ParseWorkflowStatus validates a wire value such as a query parameter.
func ParseWorkflowStatus(raw string) (WorkflowStatus, error) {
	s := WorkflowStatus(raw)
	if !s.Valid() {
		return "", types.NewErrorf(types.ErrValidation, "unknown workflow status %q", raw)
	}
	return s, nil
}

// ParseCheckpointStatus validates a wire value such as a query parameter.
func ParseCheckpointStatus(raw string) (CheckpointStatus, error) {
	s := CheckpointStatus(raw)
	if !s.Valid() {
		return "", types.NewErrorf(types.ErrValidation, "unknown checkpoint status %q", raw)
	}
	return s, nil
}

// workflowTransitionError builds the canonical invalid-transition error for
// workflow status changes.
func workflowTransitionError(from, to WorkflowStatus) error {
	return types.NewErrorf(types.ErrInvalidTransition,
		"invalid workflow transition: %s -> %s", from, to)
}

// checkpointTransitionError builds the canonical invalid-transition error
// for checkpoint status changes.
func checkpointTransitionError(t CheckpointType, from, to CheckpointStatus) error {
	return types.NewErrorf(types.ErrInvalidTransition,
		"checkpoint %s: invalid transition: %s -> %s", t, from, to)
}
