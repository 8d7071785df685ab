package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/types"
)

// FileStore persists one JSON document per workflow under a data directory.
// Writes go to a temp file and are renamed into place, so a crash never
// leaves a half-written record behind. An in-process mutex serializes the
// version check against the write, which makes Save a real compare-and-swap
// for a single-node deployment.
type FileStore struct {
	dir    string
	mu     sync.Mutex
	logger *zap.Logger
}

var _ review.Store = (*FileStore)(nil)

// NewFileStore creates the data directory if needed and returns a store
// over it.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, types.NewErrorf(types.ErrStorage, "create data directory %s", dir).WithCause(err)
	}
	return &FileStore{
		dir:    dir,
		logger: logger.With(zap.String("component", "file_store"), zap.String("dir", dir)),
	}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Create assigns a fresh id and persists a NOT_STARTED aggregate.
func (s *FileStore) Create(ctx context.Context, input types.Attrs) (*review.Workflow, error) {
	wf := review.NewWorkflow(uuid.NewString(), input, time.Now().UTC())
	data, err := encodeWorkflow(wf)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeDocument(wf.ID, data); err != nil {
		return nil, err
	}
	return wf, nil
}

// Load reads one record. An absent file is NOT_FOUND; a file that does not
// parse is STORAGE — the two are never conflated.
func (s *FileStore) Load(ctx context.Context, id string) (*review.Workflow, error) {
	if !validID(id) {
		return nil, errNotFound(id)
	}
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, errNotFound(id)
	}
	if err != nil {
		return nil, types.NewErrorf(types.ErrStorage, "read workflow %s", id).WithCause(err)
	}
	return decodeWorkflow(id, data)
}

// Save persists the aggregate when its version still matches the stored
// document, then reflects the bumped version and updated-at back onto wf.
func (s *FileStore) Save(ctx context.Context, wf *review.Workflow) error {
	if !validID(wf.ID) {
		return errNotFound(wf.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(wf.ID))
	if os.IsNotExist(err) {
		return errNotFound(wf.ID)
	}
	if err != nil {
		return types.NewErrorf(types.ErrStorage, "read workflow %s", wf.ID).WithCause(err)
	}
	current, err := decodeWorkflow(wf.ID, data)
	if err != nil {
		return err
	}
	if current.Version != wf.Version {
		return errConflict(wf.ID, wf.Version)
	}

	wf.Version++
	wf.UpdatedAt = time.Now().UTC()
	doc, err := encodeWorkflow(wf)
	if err != nil {
		wf.Version--
		return err
	}
	if err := s.writeDocument(wf.ID, doc); err != nil {
		wf.Version--
		return err
	}
	return nil
}

// Delete removes the record, reporting false for absent ids.
func (s *FileStore) Delete(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, types.NewErrorf(types.ErrStorage, "delete workflow %s", id).WithCause(err)
	}
	return true, nil
}

// List enumerates every record, optionally filtered by status, oldest
// first. A damaged record is logged and skipped — one bad file must not
// take the whole listing down.
func (s *FileStore) List(ctx context.Context, status review.WorkflowStatus) ([]*review.Workflow, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, types.NewErrorf(types.ErrStorage, "list data directory %s", s.dir).WithCause(err)
	}

	out := make([]*review.Workflow, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		wf, err := s.Load(ctx, id)
		if err != nil {
			s.logger.Warn("skipping unreadable workflow record",
				zap.String("workflow_id", id),
				zap.Error(err))
			continue
		}
		if matchesFilter(wf, status) {
			out = append(out, wf)
		}
	}
	sortByCreation(out)
	return out, nil
}

// Ping verifies the data directory is still there.
func (s *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return types.NewErrorf(types.ErrStorage, "data directory %s unavailable", s.dir).WithCause(err)
	}
	if !info.IsDir() {
		return types.NewErrorf(types.ErrStorage, "%s is not a directory", s.dir)
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }

// writeDocument writes atomically: temp file in the same directory, fsync,
// rename over the target.
func (s *FileStore) writeDocument(id string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, fmt.Sprintf(".%s-*.tmp", id))
	if err != nil {
		return types.NewErrorf(types.ErrStorage, "write workflow %s", id).WithCause(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return types.NewErrorf(types.ErrStorage, "write workflow %s", id).WithCause(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return types.NewErrorf(types.ErrStorage, "sync workflow %s", id).WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		return types.NewErrorf(types.ErrStorage, "close workflow %s", id).WithCause(err)
	}
	if err := os.Rename(tmpName, s.path(id)); err != nil {
		return types.NewErrorf(types.ErrStorage, "commit workflow %s", id).WithCause(err)
	}
	return nil
}
