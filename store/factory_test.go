package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reviewflow/reviewflow/config"
	"github.com/reviewflow/reviewflow/types"
)

func TestOpenMemoryBackend(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Backend: "memory"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}

func TestOpenFileBackend(t *testing.T) {
	cfg := config.StorageConfig{Backend: "file", FileDir: t.TempDir()}
	s, err := Open(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
}

func TestOpenSQLiteBackend(t *testing.T) {
	cfg := config.StorageConfig{Backend: "database"}
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = ":memory:"
	s, err := Open(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &DatabaseStore{}, s)
	assert.NoError(t, s.Close())
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "etcd"}, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
}
