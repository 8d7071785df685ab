// Package mocks provides review.Store wrappers that inject failures for
// engine tests.
package mocks

import (
	"context"
	"sync/atomic"

	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/types"
)

// ConflictingStore wraps a Store and fails the first N Save calls with a
// CONFLICT error, simulating lost compare-and-swap races.
type ConflictingStore struct {
	review.Store
	remaining atomic.Int64
	conflicts atomic.Int64
}

// NewConflictingStore wraps inner so its next n Save calls conflict.
func NewConflictingStore(inner review.Store, n int) *ConflictingStore {
	s := &ConflictingStore{Store: inner}
	s.remaining.Store(int64(n))
	return s
}

// Save returns a CONFLICT error while injected conflicts remain, then
// delegates to the wrapped store.
func (s *ConflictingStore) Save(ctx context.Context, wf *review.Workflow) error {
	if s.remaining.Add(-1) >= 0 {
		s.conflicts.Add(1)
		return types.NewErrorf(types.ErrConflict,
			"workflow %s version conflict (injected)", wf.ID)
	}
	return s.Store.Save(ctx, wf)
}

// Conflicts returns how many Save calls were failed.
func (s *ConflictingStore) Conflicts() int64 {
	return s.conflicts.Load()
}

// FailingStore wraps a Store and fails every mutating call with the given
// error. Reads pass through.
type FailingStore struct {
	review.Store
	Err error
}

func (s *FailingStore) Create(ctx context.Context, input types.Attrs) (*review.Workflow, error) {
	return nil, s.Err
}

func (s *FailingStore) Save(ctx context.Context, wf *review.Workflow) error {
	return s.Err
}

func (s *FailingStore) Delete(ctx context.Context, id string) (bool, error) {
	return false, s.Err
}
