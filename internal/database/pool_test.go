package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{Conn: mockDB})
	gormDB, err := gorm.Open(dialector, &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	return mockDB, mock, gormDB
}

func newTestPool(t *testing.T, gormDB *gorm.DB, cfg PoolConfig) *PoolManager {
	t.Helper()
	pm, err := NewPoolManager(gormDB, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { pm.Close() })
	return pm
}

func TestNewPoolManagerRequiresDB(t *testing.T) {
	_, err := NewPoolManager(nil, DefaultPoolConfig(), zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestPoolManagerAppliesLimits(t *testing.T) {
	mockDB, _, gormDB := setupMockDB(t)
	defer mockDB.Close()

	cfg := PoolConfig{
		MaxOpenConns:    7,
		MaxIdleConns:    3,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}
	pm := newTestPool(t, gormDB, cfg)

	assert.Equal(t, 7, pm.Stats().MaxOpenConnections)
	assert.Same(t, gormDB, pm.DB())
}

func TestPoolManagerPing(t *testing.T) {
	mockDB, mock, gormDB := setupMockDB(t)
	defer mockDB.Close()

	mock.ExpectPing()

	pm := newTestPool(t, gormDB, PoolConfig{MaxOpenConns: 5, MaxIdleConns: 2})
	assert.NoError(t, pm.Ping(context.Background()))
}

func TestPoolManagerPingAfterClose(t *testing.T) {
	mockDB, mock, gormDB := setupMockDB(t)
	defer mockDB.Close()

	mock.ExpectClose()

	pm := newTestPool(t, gormDB, PoolConfig{MaxOpenConns: 5, MaxIdleConns: 2})
	require.NoError(t, pm.Close())

	err := pm.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")

	// Second close is a no-op.
	assert.NoError(t, pm.Close())
}

func TestPoolManagerGetStats(t *testing.T) {
	mockDB, _, gormDB := setupMockDB(t)
	defer mockDB.Close()

	pm := newTestPool(t, gormDB, PoolConfig{MaxOpenConns: 4, MaxIdleConns: 2})

	stats := pm.GetStats()
	assert.Equal(t, 4, stats.MaxOpenConnections)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
}

func TestWithTransactionCommits(t *testing.T) {
	mockDB, mock, gormDB := setupMockDB(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE workflows").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	pm := newTestPool(t, gormDB, PoolConfig{MaxOpenConns: 5, MaxIdleConns: 2})

	err := pm.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return tx.Exec("UPDATE workflows SET version = version + 1 WHERE id = ?", "wf-1").Error
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	mockDB, mock, gormDB := setupMockDB(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	pm := newTestPool(t, gormDB, PoolConfig{MaxOpenConns: 5, MaxIdleConns: 2})

	boom := errors.New("boom")
	err := pm.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionAfterClose(t *testing.T) {
	mockDB, mock, gormDB := setupMockDB(t)
	defer mockDB.Close()

	mock.ExpectClose()

	pm := newTestPool(t, gormDB, PoolConfig{MaxOpenConns: 5, MaxIdleConns: 2})
	require.NoError(t, pm.Close())

	err := pm.WithTransaction(context.Background(), func(tx *gorm.DB) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}
