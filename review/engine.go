package review

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/types"
)

// errNoop signals that a mutation closure decided nothing needs saving.
var errNoop = errors.New("review: no-op mutation")

// defaultMaxSaveRetries bounds how often a load-mutate-save cycle is
// replayed after a compare-and-swap conflict.
const defaultMaxSaveRetries = 3

// Engine drives the checkpoint state machine. Every mutation is one
// load-mutate-save cycle against the workflow store, replayed on
// optimistic-concurrency conflicts. All dependencies are explicit; there is
// no process-wide state.
type Engine struct {
	store          Store
	registry       *Registry
	bus            EventBus
	logger         *zap.Logger
	autoApprove    bool
	maxSaveRetries int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEventBus attaches an event bus; events are published after each
// successful save.
func WithEventBus(bus EventBus) EngineOption {
	return func(e *Engine) { e.bus = bus }
}

// WithAutoApprove enables immediate auto-approval when a checkpoint is
// marked ready and its thresholds are met.
func WithAutoApprove(enabled bool) EngineOption {
	return func(e *Engine) { e.autoApprove = enabled }
}

// WithMaxSaveRetries overrides how many times a conflicting save is retried.
func WithMaxSaveRetries(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.maxSaveRetries = n
		}
	}
}

// NewEngine creates an engine over the given store and registry.
func NewEngine(store Store, registry *Registry, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:          store,
		registry:       registry,
		logger:         logger.With(zap.String("component", "review_engine")),
		maxSaveRetries: defaultMaxSaveRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's checkpoint catalog.
func (e *Engine) Registry() *Registry { return e.registry }

// CreateRequest carries the inputs for a new workflow.
type CreateRequest struct {
	InputData  types.Attrs
	ProtocolID string
	Metadata   map[string]string
}

// Create starts a new workflow aggregate.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*Workflow, error) {
	wf, err := e.store.Create(ctx, req.InputData)
	if err != nil {
		return nil, err
	}
	if req.ProtocolID != "" || len(req.Metadata) > 0 {
		wf.ProtocolID = req.ProtocolID
		wf.Metadata = cloneStringMap(req.Metadata)
		if err := e.store.Save(ctx, wf); err != nil {
			return nil, err
		}
	}
	e.logger.Info("workflow created",
		zap.String("workflow_id", wf.ID),
		zap.String("protocol_id", wf.ProtocolID))
	e.publish(Event{
		Type:           EventWorkflowCreated,
		WorkflowID:     wf.ID,
		WorkflowStatus: wf.Status,
		Timestamp:      time.Now().UTC(),
	})
	return wf, nil
}

// Get loads one workflow aggregate.
func (e *Engine) Get(ctx context.Context, id string) (*Workflow, error) {
	return e.store.Load(ctx, id)
}

// List returns workflows, optionally filtered by status.
func (e *Engine) List(ctx context.Context, status WorkflowStatus) ([]*Workflow, error) {
	return e.store.List(ctx, status)
}

// Delete removes a workflow aggregate. It returns false when the id is
// unknown.
func (e *Engine) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := e.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		e.logger.Info("workflow deleted", zap.String("workflow_id", id))
		e.publish(Event{
			Type:       EventWorkflowDeleted,
			WorkflowID: id,
			Timestamp:  time.Now().UTC(),
		})
	}
	return deleted, nil
}

// InitializeCheckpoints creates one PENDING checkpoint per registry entry,
// in ascending order, carrying the entry's metadata. Initialization is
// all-or-nothing and idempotent: a workflow that already has checkpoints is
// returned unchanged so feedback history can never be overwritten.
func (e *Engine) InitializeCheckpoints(ctx context.Context, id string) (*Workflow, error) {
	initialized := false
	wf, err := e.update(ctx, id, func(wf *Workflow) error {
		if wf.Initialized() {
			initialized = false
			return errNoop
		}
		now := time.Now().UTC()
		for _, cfg := range e.registry.All() {
			wf.Checkpoints[cfg.Type] = newCheckpoint(cfg, now)
		}
		wf.Touch(now)
		initialized = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if initialized {
		e.logger.Info("checkpoints initialized",
			zap.String("workflow_id", id),
			zap.Int("count", e.registry.Len()))
	} else {
		e.logger.Debug("checkpoints already initialized", zap.String("workflow_id", id))
	}
	return wf, nil
}

// newCheckpoint builds a PENDING instance from a registry entry.
func newCheckpoint(cfg CheckpointConfig, now time.Time) *Checkpoint {
	return &Checkpoint{
		Type:      cfg.Type,
		Name:      cfg.Name,
		Order:     cfg.Order,
		Status:    CheckpointPending,
		CreatedAt: now,
		UpdatedAt: now,
		Feedback:  []ReviewerFeedback{},
		Metadata: map[string]string{
			"description":         cfg.Description,
			"review_instructions": cfg.ReviewInstructions,
			"required_producers":  joinProducers(cfg.RequiredProducers),
		},
	}
}

func joinProducers(producers []string) string {
	out := ""
	for i, p := range producers {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

// MarkReadyForReview attaches a producer payload to a checkpoint and moves
// it to READY_FOR_REVIEW, setting the workflow to AWAITING_REVIEW and
// pointing its current checkpoint at this gate. Marks are allowed out of
// pipeline order — producers may re-run earlier stages — the frontier stays
// authoritative through NextCheckpoint. With auto-approval enabled, a
// payload that meets every threshold is approved in the same save.
func (e *Engine) MarkReadyForReview(ctx context.Context, id string, t CheckpointType, payload types.Attrs) (*Checkpoint, error) {
	cfg, err := e.registry.Get(t)
	if err != nil {
		return nil, err
	}

	autoApproved := false
	wf, err := e.update(ctx, id, func(wf *Workflow) error {
		cp, ok := wf.Checkpoint(t)
		if !ok {
			return types.NewErrorf(types.ErrNotFound,
				"workflow %s has no %s checkpoint (not initialized?)", id, t)
		}
		now := time.Now().UTC()
		if err := e.transition(wf, cp, triggerMarkReady, now); err != nil {
			return err
		}
		cp.Payload = payload.Clone()

		autoApproved = false
		if e.autoApprove {
			if res := cfg.EvaluateAutoApproval(cp.Payload); res.CanApprove {
				d := Decision{
					ReviewerID: AutoApprovalReviewer,
					Kind:       DecisionApproved,
					Comments:   "Auto-approved: all configured thresholds met",
				}
				if err := e.applyDecision(wf, cp, d, now); err != nil {
					return err
				}
				autoApproved = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cp, _ := wf.Checkpoint(t)
	e.logger.Info("checkpoint ready for review",
		zap.String("workflow_id", id),
		zap.String("checkpoint", string(t)),
		zap.Bool("auto_approved", autoApproved))
	e.publish(Event{
		Type:           EventCheckpointReady,
		WorkflowID:     id,
		CheckpointType: t,
		WorkflowStatus: wf.Status,
		Checkpoint:     cp.Status,
		Timestamp:      time.Now().UTC(),
	})
	if autoApproved {
		e.publish(Event{
			Type:           EventReviewDecision,
			WorkflowID:     id,
			CheckpointType: t,
			WorkflowStatus: wf.Status,
			Checkpoint:     cp.Status,
			Decision:       DecisionApproved,
			Actor:          AutoApprovalReviewer,
			Timestamp:      time.Now().UTC(),
		})
	}
	return cp, nil
}

// StartReview claims a checkpoint for a reviewer, moving it to
// UNDER_REVIEW and stamping the review start time.
func (e *Engine) StartReview(ctx context.Context, id string, t CheckpointType, reviewerID string) (*Checkpoint, error) {
	if _, err := e.registry.Get(t); err != nil {
		return nil, err
	}
	if reviewerID == "" {
		return nil, types.NewError(types.ErrValidation, "reviewer_id is required")
	}

	wf, err := e.update(ctx, id, func(wf *Workflow) error {
		cp, ok := wf.Checkpoint(t)
		if !ok {
			return types.NewErrorf(types.ErrNotFound,
				"workflow %s has no %s checkpoint (not initialized?)", id, t)
		}
		return e.transition(wf, cp, triggerClaim, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	cp, _ := wf.Checkpoint(t)
	e.logger.Info("review started",
		zap.String("workflow_id", id),
		zap.String("checkpoint", string(t)),
		zap.String("reviewer", reviewerID))
	e.publish(Event{
		Type:           EventReviewStarted,
		WorkflowID:     id,
		CheckpointType: t,
		WorkflowStatus: wf.Status,
		Checkpoint:     cp.Status,
		Actor:          reviewerID,
		Timestamp:      time.Now().UTC(),
	})
	return cp, nil
}

// SubmitDecision validates and applies one reviewer decision: the feedback
// record is appended and the checkpoint plus workflow statuses move under
// the consolidated transition table, all persisted by a single save.
func (e *Engine) SubmitDecision(ctx context.Context, id string, t CheckpointType, d Decision) (*Checkpoint, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if _, err := e.registry.Get(t); err != nil {
		return nil, err
	}

	wf, err := e.update(ctx, id, func(wf *Workflow) error {
		cp, ok := wf.Checkpoint(t)
		if !ok {
			return types.NewErrorf(types.ErrNotFound,
				"workflow %s has no %s checkpoint (not initialized?)", id, t)
		}
		return e.applyDecision(wf, cp, d, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	cp, _ := wf.Checkpoint(t)
	e.logger.Info("review decision recorded",
		zap.String("workflow_id", id),
		zap.String("checkpoint", string(t)),
		zap.String("decision", string(d.Kind)),
		zap.String("reviewer", d.ReviewerID))
	e.publish(Event{
		Type:           EventReviewDecision,
		WorkflowID:     id,
		CheckpointType: t,
		WorkflowStatus: wf.Status,
		Checkpoint:     cp.Status,
		Decision:       d.Kind,
		Actor:          d.ReviewerID,
		Timestamp:      time.Now().UTC(),
	})
	return cp, nil
}

// Approve records an approval decision.
func (e *Engine) Approve(ctx context.Context, id string, t CheckpointType, reviewerID, comments string) (*Checkpoint, error) {
	return e.SubmitDecision(ctx, id, t, Decision{
		ReviewerID: reviewerID,
		Kind:       DecisionApproved,
		Comments:   comments,
	})
}

// Reject records a rejection decision; the workflow fails.
func (e *Engine) Reject(ctx context.Context, id string, t CheckpointType, reviewerID, comments string, specificIssues []string) (*Checkpoint, error) {
	return e.SubmitDecision(ctx, id, t, Decision{
		ReviewerID:     reviewerID,
		Kind:           DecisionRejected,
		Comments:       comments,
		SpecificIssues: specificIssues,
	})
}

// RequestRevision records a revision request; the checkpoint goes back to
// the producers.
func (e *Engine) RequestRevision(ctx context.Context, id string, t CheckpointType, d Decision) (*Checkpoint, error) {
	d.Kind = DecisionRevisionRequested
	return e.SubmitDecision(ctx, id, t, d)
}

// applyDecision appends feedback and applies the matching transition. The
// transition is validated first so an illegal decision never leaves a
// feedback record behind.
func (e *Engine) applyDecision(wf *Workflow, cp *Checkpoint, d Decision, now time.Time) error {
	if err := e.transition(wf, cp, decisionTrigger(d.Kind), now); err != nil {
		return err
	}
	cp.Feedback = append(cp.Feedback, d.feedback(now))
	return nil
}

// transition is the single consolidated transition function: every
// checkpoint status change and its workflow-level side effects pass through
// here, so the table is enforced in exactly one place.
func (e *Engine) transition(wf *Workflow, cp *Checkpoint, trg trigger, now time.Time) error {
	to, ok := triggerTargets[trg]
	if !ok {
		return types.NewErrorf(types.ErrInternalError, "unknown transition trigger %q", string(trg))
	}
	if !CanTransitionCheckpoint(cp.Status, to) {
		return checkpointTransitionError(cp.Type, cp.Status, to)
	}

	switch trg {
	case triggerMarkReady:
		if err := setWorkflowStatus(wf, WorkflowAwaitingReview); err != nil {
			return err
		}
		wf.CurrentCheckpoint = cp.Type
	case triggerClaim:
		ts := now
		cp.ReviewStartedAt = &ts
	case triggerApprove:
		ts := now
		cp.ReviewCompletedAt = &ts
	case triggerReject:
		ts := now
		cp.ReviewCompletedAt = &ts
		if err := setWorkflowStatus(wf, WorkflowFailed); err != nil {
			return err
		}
	case triggerRequestRevision:
		cp.RevisionCount++
		if err := setWorkflowStatus(wf, WorkflowRevisionRequested); err != nil {
			return err
		}
	}

	cp.Status = to
	cp.UpdatedAt = now
	wf.Touch(now)

	// Completion is automatic: the approval that closes the last open
	// checkpoint completes the workflow within the same save.
	if trg == triggerApprove && wf.AllApproved() {
		if err := setWorkflowStatus(wf, WorkflowCompleted); err != nil {
			return err
		}
	}
	return nil
}

// setWorkflowStatus applies a guarded workflow-level status change.
// Same-status writes are no-ops.
func setWorkflowStatus(wf *Workflow, to WorkflowStatus) error {
	if wf.Status == to {
		return nil
	}
	if !CanTransitionWorkflow(wf.Status, to) {
		return workflowTransitionError(wf.Status, to)
	}
	wf.Status = to
	return nil
}

// CheckAutoApproval evaluates a checkpoint's thresholds against its stored
// payload. Pure: no mutation.
func (e *Engine) CheckAutoApproval(ctx context.Context, id string, t CheckpointType) (AutoApprovalResult, error) {
	cfg, err := e.registry.Get(t)
	if err != nil {
		return AutoApprovalResult{}, err
	}
	wf, err := e.store.Load(ctx, id)
	if err != nil {
		return AutoApprovalResult{}, err
	}
	cp, ok := wf.Checkpoint(t)
	if !ok {
		return AutoApprovalResult{}, types.NewErrorf(types.ErrNotFound,
			"workflow %s has no %s checkpoint (not initialized?)", id, t)
	}
	return cfg.EvaluateAutoApproval(cp.Payload), nil
}

// NextCheckpoint returns the pipeline frontier: the lowest-order checkpoint
// not yet APPROVED, or nil when all are approved.
func (e *Engine) NextCheckpoint(ctx context.Context, id string) (*Checkpoint, error) {
	wf, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !wf.Initialized() {
		return nil, types.NewErrorf(types.ErrValidation,
			"workflow %s checkpoints are not initialized", id)
	}
	return wf.NextCheckpoint(), nil
}

// AllApproved reports whether every checkpoint is APPROVED.
func (e *Engine) AllApproved(ctx context.Context, id string) (bool, error) {
	wf, err := e.store.Load(ctx, id)
	if err != nil {
		return false, err
	}
	return wf.AllApproved(), nil
}

// CanProceed reports whether the pipeline may move past the named
// checkpoint: it must be APPROVED or SKIPPED.
func (e *Engine) CanProceed(ctx context.Context, id string, t CheckpointType) (bool, error) {
	if _, err := e.registry.Get(t); err != nil {
		return false, err
	}
	wf, err := e.store.Load(ctx, id)
	if err != nil {
		return false, err
	}
	cp, ok := wf.Checkpoint(t)
	if !ok {
		return false, nil
	}
	return cp.Status == CheckpointApproved || cp.Status == CheckpointSkipped, nil
}

// Summary projects a workflow for display.
func (e *Engine) Summary(ctx context.Context, id string) (*WorkflowSummary, error) {
	wf, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return Summarize(wf), nil
}

// PendingReviews lists every checkpoint currently READY_FOR_REVIEW across
// all workflows, oldest first. Damaged records were already skipped by the
// store's List.
func (e *Engine) PendingReviews(ctx context.Context) ([]PendingReview, error) {
	workflows, err := e.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	pending := make([]PendingReview, 0)
	for _, wf := range workflows {
		for _, cp := range wf.OrderedCheckpoints() {
			if cp.Status != CheckpointReadyForReview {
				continue
			}
			pending = append(pending, PendingReview{
				WorkflowID: wf.ID,
				ProtocolID: wf.ProtocolID,
				Type:       cp.Type,
				Name:       cp.Name,
				Order:      cp.Order,
				ReadySince: cp.UpdatedAt,
				AgeSeconds: now.Sub(cp.UpdatedAt).Seconds(),
			})
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].ReadySince.Equal(pending[j].ReadySince) {
			return pending[i].ReadySince.Before(pending[j].ReadySince)
		}
		if pending[i].WorkflowID != pending[j].WorkflowID {
			return pending[i].WorkflowID < pending[j].WorkflowID
		}
		return pending[i].Order < pending[j].Order
	})
	return pending, nil
}

// UpdateStatus applies an explicit workflow-level status change, guarded by
// the workflow transition table.
func (e *Engine) UpdateStatus(ctx context.Context, id string, status WorkflowStatus) (*Workflow, error) {
	if !status.Valid() {
		return nil, types.NewErrorf(types.ErrValidation, "unknown workflow status %q", string(status))
	}
	changed := false
	wf, err := e.update(ctx, id, func(wf *Workflow) error {
		if wf.Status == status {
			changed = false
			return errNoop
		}
		if err := setWorkflowStatus(wf, status); err != nil {
			return err
		}
		wf.Touch(time.Now().UTC())
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		e.logger.Info("workflow status updated",
			zap.String("workflow_id", id),
			zap.String("status", string(status)))
		e.publish(Event{
			Type:           EventWorkflowStatusChanged,
			WorkflowID:     id,
			WorkflowStatus: status,
			Timestamp:      time.Now().UTC(),
		})
	}
	return wf, nil
}

// SetFinalResult attaches the final assembled document payload.
func (e *Engine) SetFinalResult(ctx context.Context, id string, result types.Attrs) (*Workflow, error) {
	return e.update(ctx, id, func(wf *Workflow) error {
		wf.FinalResult = result.Clone()
		wf.Touch(time.Now().UTC())
		return nil
	})
}

// StoreProducerOutput records the last-known output of a named producer.
func (e *Engine) StoreProducerOutput(ctx context.Context, id, producer string, output types.Attrs) (*Workflow, error) {
	if producer == "" {
		return nil, types.NewError(types.ErrValidation, "producer name is required")
	}
	return e.update(ctx, id, func(wf *Workflow) error {
		if wf.ProducerOutputs == nil {
			wf.ProducerOutputs = make(map[string]types.Attrs)
		}
		wf.ProducerOutputs[producer] = output.Clone()
		wf.Touch(time.Now().UTC())
		return nil
	})
}

// ProducerOutput returns the last-known output of a named producer.
func (e *Engine) ProducerOutput(ctx context.Context, id, producer string) (types.Attrs, error) {
	wf, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	out, ok := wf.ProducerOutputs[producer]
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound,
			"workflow %s has no output from producer %q", id, producer)
	}
	return out.Clone(), nil
}

// RecordError appends a pipeline error record to the workflow.
func (e *Engine) RecordError(ctx context.Context, id, stage, message string) (*Workflow, error) {
	if stage == "" || message == "" {
		return nil, types.NewError(types.ErrValidation, "stage and message are required")
	}
	return e.update(ctx, id, func(wf *Workflow) error {
		now := time.Now().UTC()
		wf.Errors = append(wf.Errors, ErrorRecord{Stage: stage, Message: message, Timestamp: now})
		wf.Touch(now)
		return nil
	})
}

// RevisionFeedback returns the checkpoint's revision-requested feedback
// entries, oldest first.
func (e *Engine) RevisionFeedback(ctx context.Context, id string, t CheckpointType) ([]ReviewerFeedback, error) {
	if _, err := e.registry.Get(t); err != nil {
		return nil, err
	}
	wf, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	cp, ok := wf.Checkpoint(t)
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound,
			"workflow %s has no %s checkpoint (not initialized?)", id, t)
	}
	out := make([]ReviewerFeedback, 0)
	for _, fb := range cp.Feedback {
		if fb.Decision == DecisionRevisionRequested {
			out = append(out, fb)
		}
	}
	return out, nil
}

// update runs one load-mutate-save cycle, replaying it when the save loses
// a compare-and-swap race. The closure must be safe to re-apply against a
// freshly loaded aggregate. A closure returning errNoop skips the save and
// yields the loaded aggregate.
func (e *Engine) update(ctx context.Context, id string, mutate func(*Workflow) error) (*Workflow, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxSaveRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, types.NewError(types.ErrInternalError, "retry interrupted").WithCause(ctx.Err())
			case <-time.After(retryDelay(attempt)):
			}
		}

		wf, err := e.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(wf); err != nil {
			if errors.Is(err, errNoop) {
				return wf, nil
			}
			return nil, err
		}
		if err := e.store.Save(ctx, wf); err != nil {
			if types.IsConflict(err) {
				lastErr = err
				e.logger.Debug("save conflict, retrying",
					zap.String("workflow_id", id),
					zap.Int("attempt", attempt+1))
				continue
			}
			return nil, err
		}
		return wf, nil
	}
	return nil, lastErr
}

// retryDelay backs off linearly with jitter so competing writers spread out.
func retryDelay(attempt int) time.Duration {
	return time.Duration(attempt)*25*time.Millisecond + rand.N(10*time.Millisecond)
}

func (e *Engine) publish(event Event) {
	if e.bus != nil {
		e.bus.Publish(event)
	}
}
