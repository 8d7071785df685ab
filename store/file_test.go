package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/types"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestFileStoreConformance(t *testing.T) {
	runStoreConformance(t, func(t *testing.T) review.Store {
		return newFileStore(t)
	})
}

// One corrupted record must not poison the store: List skips it, while a
// direct Load surfaces STORAGE — never NOT_FOUND — so callers can tell
// "absent" from "damaged".
func TestFileStoreCorruptedRecord(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	valid, err := s.Create(ctx, types.Attrs{"species": types.String("mouse")})
	require.NoError(t, err)

	corruptedPath := filepath.Join(dir, "damaged-workflow.json")
	require.NoError(t, os.WriteFile(corruptedPath, []byte("{not json"), 0o644))

	listed, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, valid.ID, listed[0].ID)

	_, err = s.Load(ctx, "damaged-workflow")
	require.Error(t, err)
	assert.True(t, types.IsStorage(err))
	assert.False(t, types.IsNotFound(err))
}

// A document holding a JSON object where an attribute value belongs is
// damaged under the closed variant model, not merely stale.
func TestFileStoreRejectsObjectAttrs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	doc := `{"id":"w1","status":"not_started","version":1,"checkpoints":{},"input_data":{"nested":{"oops":true}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "w1.json"), []byte(doc), 0o644))

	_, err = s.Load(ctx, "w1")
	require.Error(t, err)
	assert.True(t, types.IsStorage(err))
}

func TestFileStoreSaveOnDamagedRecord(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	wf, err := s.Create(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, wf.ID+".json"), []byte("garbage"), 0o644))

	err = s.Save(ctx, wf)
	require.Error(t, err)
	assert.True(t, types.IsStorage(err))
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)

	s1, err := NewFileStore(dir, logger)
	require.NoError(t, err)
	wf, err := s1.Create(ctx, types.Attrs{"species": types.String("mouse")})
	require.NoError(t, err)
	wf.Status = review.WorkflowInProgress
	require.NoError(t, s1.Save(ctx, wf))

	s2, err := NewFileStore(dir, logger)
	require.NoError(t, err)
	loaded, err := s2.Load(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, review.WorkflowInProgress, loaded.Status)
	assert.Equal(t, wf.Version, loaded.Version)
}

func TestFileStoreIgnoresForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "backup"), 0o755))

	listed, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestFileStoreRejectsTraversalIDs(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	_, err := s.Load(ctx, "../escape")
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))

	deleted, err := s.Delete(ctx, "../escape")
	require.NoError(t, err)
	assert.False(t, deleted)
}
