package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/types"
)

// runStoreConformance exercises the review.Store contract shared by every
// backend. Backend-specific behavior (corrupted records, transactions) is
// covered in the per-backend test files.
func runStoreConformance(t *testing.T, open func(t *testing.T) review.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("create assigns fresh aggregate", func(t *testing.T) {
		s := open(t)
		input := types.Attrs{"species": types.String("mouse")}

		wf, err := s.Create(ctx, input)
		require.NoError(t, err)
		assert.NotEmpty(t, wf.ID)
		assert.Equal(t, review.WorkflowNotStarted, wf.Status)
		assert.Equal(t, int64(1), wf.Version)
		assert.True(t, input.Equal(wf.InputData))

		other, err := s.Create(ctx, nil)
		require.NoError(t, err)
		assert.NotEqual(t, wf.ID, other.ID)
	})

	t.Run("load absent id is not found", func(t *testing.T) {
		s := open(t)
		_, err := s.Load(ctx, "no-such-workflow")
		require.Error(t, err)
		assert.True(t, types.IsNotFound(err))
	})

	t.Run("save load round-trip", func(t *testing.T) {
		s := open(t)
		wf, err := s.Create(ctx, types.Attrs{
			"completeness_score": types.Number(0.95),
			"species":            types.String("mouse"),
			"tags":               types.StringList([]string{"acute", "surgical"}),
		})
		require.NoError(t, err)

		wf.Status = review.WorkflowInProgress
		wf.Metadata = map[string]string{"source": "intake"}
		wf.Errors = append(wf.Errors, review.ErrorRecord{
			Stage:     "intake",
			Message:   "retried once",
			Timestamp: time.Now().UTC(),
		})
		require.NoError(t, s.Save(ctx, wf))
		assert.Equal(t, int64(2), wf.Version)

		loaded, err := s.Load(ctx, wf.ID)
		require.NoError(t, err)
		assert.Equal(t, wf.ID, loaded.ID)
		assert.Equal(t, wf.Status, loaded.Status)
		assert.Equal(t, wf.Version, loaded.Version)
		assert.True(t, wf.InputData.Equal(loaded.InputData))
		assert.Equal(t, wf.Metadata, loaded.Metadata)
		require.Len(t, loaded.Errors, 1)
		assert.Equal(t, "intake", loaded.Errors[0].Stage)
	})

	t.Run("save rejects stale version", func(t *testing.T) {
		s := open(t)
		wf, err := s.Create(ctx, nil)
		require.NoError(t, err)

		stale, err := s.Load(ctx, wf.ID)
		require.NoError(t, err)

		wf.Status = review.WorkflowInProgress
		require.NoError(t, s.Save(ctx, wf))

		stale.Status = review.WorkflowCancelled
		err = s.Save(ctx, stale)
		require.Error(t, err)
		assert.True(t, types.IsConflict(err))

		// The winning write is untouched.
		loaded, err := s.Load(ctx, wf.ID)
		require.NoError(t, err)
		assert.Equal(t, review.WorkflowInProgress, loaded.Status)
	})

	t.Run("save after delete is not found", func(t *testing.T) {
		s := open(t)
		wf, err := s.Create(ctx, nil)
		require.NoError(t, err)

		deleted, err := s.Delete(ctx, wf.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		err = s.Save(ctx, wf)
		require.Error(t, err)
		assert.True(t, types.IsNotFound(err))
	})

	t.Run("delete absent id reports false", func(t *testing.T) {
		s := open(t)
		deleted, err := s.Delete(ctx, "no-such-workflow")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("list filters by status", func(t *testing.T) {
		s := open(t)
		a, err := s.Create(ctx, nil)
		require.NoError(t, err)
		b, err := s.Create(ctx, nil)
		require.NoError(t, err)

		b.Status = review.WorkflowFailed
		require.NoError(t, s.Save(ctx, b))

		all, err := s.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		failed, err := s.List(ctx, review.WorkflowFailed)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, b.ID, failed[0].ID)

		completed, err := s.List(ctx, review.WorkflowCompleted)
		require.NoError(t, err)
		assert.Empty(t, completed)
		_ = a
	})

	t.Run("loaded aggregates are private copies", func(t *testing.T) {
		s := open(t)
		wf, err := s.Create(ctx, types.Attrs{"species": types.String("mouse")})
		require.NoError(t, err)

		loaded, err := s.Load(ctx, wf.ID)
		require.NoError(t, err)
		loaded.Status = review.WorkflowFailed
		loaded.InputData["species"] = types.String("rat")

		again, err := s.Load(ctx, wf.ID)
		require.NoError(t, err)
		assert.Equal(t, review.WorkflowNotStarted, again.Status)
		v, _ := again.InputData["species"].AsString()
		assert.Equal(t, "mouse", v)
	})

	t.Run("ping succeeds", func(t *testing.T) {
		s := open(t)
		assert.NoError(t, s.Ping(ctx))
	})
}
