package review

import (
	"context"

	"github.com/reviewflow/reviewflow/types"
)

// Store is durable persistence for workflow aggregates, keyed by workflow
// id. Implementations live in the store package; the engine depends only on
// this interface.
//
// Save is a compare-and-swap write: it succeeds only when the stored
// version equals wf.Version, then persists the aggregate with version
// wf.Version+1 and a fresh updated-at, reflecting both back onto wf. A
// version mismatch yields a CONFLICT error; callers reload and retry.
//
// Load of an absent id yields NOT_FOUND. Load of a damaged record yields
// STORAGE — the two are never conflated, so callers can tell "absent" from
// "damaged". List skips damaged records instead of aborting enumeration.
//
// Implementations hand out deep copies: mutating a returned aggregate has
// no effect until it is saved.
type Store interface {
	// Create assigns a fresh unique id and persists a NOT_STARTED
	// aggregate carrying the given input data.
	Create(ctx context.Context, input types.Attrs) (*Workflow, error)

	// Load returns the aggregate for id.
	Load(ctx context.Context, id string) (*Workflow, error)

	// Save persists the aggregate under compare-and-swap semantics.
	Save(ctx context.Context, wf *Workflow) error

	// Delete removes the aggregate. It returns false for absent ids.
	Delete(ctx context.Context, id string) (bool, error)

	// List returns all aggregates, or only those with the given status
	// when it is non-empty.
	List(ctx context.Context, status WorkflowStatus) ([]*Workflow, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
