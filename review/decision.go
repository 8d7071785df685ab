package review

import (
	"strings"
	"time"

	"github.com/reviewflow/reviewflow/types"
)

// DecisionKind is the kind of human decision recorded against a checkpoint.
type DecisionKind string

const (
	DecisionApproved          DecisionKind = "approved"
	DecisionRejected          DecisionKind = "rejected"
	DecisionRevisionRequested DecisionKind = "revision_requested"
)

// Valid reports whether k is a known decision kind.
func (k DecisionKind) Valid() bool {
	switch k {
	case DecisionApproved, DecisionRejected, DecisionRevisionRequested:
		return true
	}
	return false
}

// AutoApprovalReviewer is the reviewer id recorded when the engine
// auto-approves a checkpoint whose thresholds are met.
const AutoApprovalReviewer = "system:auto-approval"

// Decision is one reviewer verdict to be applied to a checkpoint.
// ReviewerID is always required; Comments are required for rejections and
// revision requests (approvals may omit them).
type Decision struct {
	ReviewerID       string       `json:"reviewer_id"`
	ReviewerName     string       `json:"reviewer_name,omitempty"`
	Kind             DecisionKind `json:"kind"`
	Comments         string       `json:"comments,omitempty"`
	SpecificIssues   []string     `json:"specific_issues,omitempty"`
	SuggestedChanges string       `json:"suggested_changes,omitempty"`
}

// Validate checks the decision's required fields.
func (d Decision) Validate() error {
	if !d.Kind.Valid() {
		return types.NewErrorf(types.ErrValidation, "unknown decision kind %q", string(d.Kind))
	}
	if strings.TrimSpace(d.ReviewerID) == "" {
		return types.NewError(types.ErrValidation, "reviewer_id is required")
	}
	if d.Kind == DecisionRejected || d.Kind == DecisionRevisionRequested {
		if strings.TrimSpace(d.Comments) == "" {
			return types.NewErrorf(types.ErrValidation, "comments are required for %s decisions", d.Kind)
		}
	}
	return nil
}

// feedback builds the immutable record appended to the checkpoint's
// feedback list.
func (d Decision) feedback(now time.Time) ReviewerFeedback {
	fb := ReviewerFeedback{
		ReviewerID:       d.ReviewerID,
		ReviewerName:     d.ReviewerName,
		Timestamp:        now,
		Decision:         d.Kind,
		Comments:         d.Comments,
		SuggestedChanges: d.SuggestedChanges,
	}
	if len(d.SpecificIssues) > 0 {
		fb.SpecificIssues = make([]string, len(d.SpecificIssues))
		copy(fb.SpecificIssues, d.SpecificIssues)
	}
	return fb
}

// trigger identifies one row group of the checkpoint transition table.
type trigger string

const (
	triggerMarkReady       trigger = "mark_ready"
	triggerClaim           trigger = "claim"
	triggerApprove         trigger = "approve"
	triggerReject          trigger = "reject"
	triggerRequestRevision trigger = "request_revision"
)

// triggerTargets maps each trigger to the checkpoint status it produces.
// Which source statuses admit the trigger is decided by
// validCheckpointTransitions, so the whole table lives in one place.
var triggerTargets = map[trigger]CheckpointStatus{
	triggerMarkReady:       CheckpointReadyForReview,
	triggerClaim:           CheckpointUnderReview,
	triggerApprove:         CheckpointApproved,
	triggerReject:          CheckpointRejected,
	triggerRequestRevision: CheckpointRevisionRequested,
}

// decisionTrigger maps a reviewer decision to its transition trigger.
func decisionTrigger(k DecisionKind) trigger {
	switch k {
	case DecisionApproved:
		return triggerApprove
	case DecisionRejected:
		return triggerReject
	default:
		return triggerRequestRevision
	}
}
