package store

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/types"
)

// encodeWorkflow renders the aggregate as its persisted JSON document.
func encodeWorkflow(wf *review.Workflow) ([]byte, error) {
	data, err := json.Marshal(wf)
	if err != nil {
		return nil, types.NewErrorf(types.ErrStorage, "encode workflow %s", wf.ID).WithCause(err)
	}
	return data, nil
}

// decodeWorkflow parses a persisted document. A record that fails to decode
// is damaged, not absent: the error carries the STORAGE code so callers can
// tell the two apart.
func decodeWorkflow(id string, data []byte) (*review.Workflow, error) {
	var wf review.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, types.NewErrorf(types.ErrStorage, "workflow record %s is damaged", id).WithCause(err)
	}
	return &wf, nil
}

func errNotFound(id string) error {
	return types.NewErrorf(types.ErrNotFound, "workflow %s not found", id)
}

func errConflict(id string, version int64) error {
	return types.NewErrorf(types.ErrConflict,
		"workflow %s version %d is stale", id, version).WithRetryable(true)
}

// validID rejects ids that could escape a key namespace or a directory.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/\\") && id != "." && id != ".."
}

// matchesFilter applies the optional status filter of List.
func matchesFilter(wf *review.Workflow, status review.WorkflowStatus) bool {
	return status == "" || wf.Status == status
}

// sortByCreation orders List results oldest first, with the id as a
// deterministic tiebreak.
func sortByCreation(workflows []*review.Workflow) {
	sort.Slice(workflows, func(i, j int) bool {
		if !workflows[i].CreatedAt.Equal(workflows[j].CreatedAt) {
			return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
		}
		return workflows[i].ID < workflows[j].ID
	})
}
