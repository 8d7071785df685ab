package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/types"
)

// MemoryStore keeps workflow aggregates in a process-local map. It is the
// backend for tests and ephemeral deployments; everything is lost on
// restart. The mutex makes the version check and the write one critical
// section, so Save has true compare-and-swap semantics.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*review.Workflow
	logger    *zap.Logger
}

var _ review.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		workflows: make(map[string]*review.Workflow),
		logger:    logger.With(zap.String("component", "memory_store")),
	}
}

// Create assigns a fresh id and persists a NOT_STARTED aggregate.
func (s *MemoryStore) Create(ctx context.Context, input types.Attrs) (*review.Workflow, error) {
	wf := review.NewWorkflow(uuid.NewString(), input, time.Now().UTC())

	s.mu.Lock()
	s.workflows[wf.ID] = wf.Clone()
	s.mu.Unlock()

	return wf, nil
}

// Load returns a deep copy of the aggregate for id.
func (s *MemoryStore) Load(ctx context.Context, id string) (*review.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf, ok := s.workflows[id]
	if !ok {
		return nil, errNotFound(id)
	}
	return wf.Clone(), nil
}

// Save persists the aggregate when its version still matches the stored
// one, then reflects the bumped version and updated-at back onto wf.
func (s *MemoryStore) Save(ctx context.Context, wf *review.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.workflows[wf.ID]
	if !ok {
		return errNotFound(wf.ID)
	}
	if current.Version != wf.Version {
		return errConflict(wf.ID, wf.Version)
	}

	wf.Version++
	wf.UpdatedAt = time.Now().UTC()
	s.workflows[wf.ID] = wf.Clone()
	return nil
}

// Delete removes the aggregate, reporting false for absent ids.
func (s *MemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[id]; !ok {
		return false, nil
	}
	delete(s.workflows, id)
	return true, nil
}

// List returns all aggregates, optionally filtered by status, oldest first.
func (s *MemoryStore) List(ctx context.Context, status review.WorkflowStatus) ([]*review.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*review.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		if matchesFilter(wf, status) {
			out = append(out, wf.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

// Ping always succeeds for the in-memory backend.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error { return nil }
