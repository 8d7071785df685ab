package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/reviewflow/reviewflow/internal/database"
	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/types"
)

// DatabaseConfig configures the SQL backend.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" json:"driver"` // postgres | mysql | sqlite
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
	SSLMode  string `yaml:"ssl_mode" json:"ssl_mode"`
	// Path is the database file for the sqlite driver.
	Path string `yaml:"path" json:"path"`
	// Pool limits; zero values fall back to the pool defaults.
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// DSN renders the driver-specific connection string.
func (c DatabaseConfig) DSN() string {
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case "sqlite":
		return c.Path
	default: // postgres
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
	}
}

// Dialector returns the gorm dialector for the configured driver.
func (c DatabaseConfig) Dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case "postgres":
		return postgres.Open(c.DSN()), nil
	case "mysql":
		return mysql.Open(c.DSN()), nil
	case "sqlite":
		return sqlite.Open(c.DSN()), nil
	default:
		return nil, types.NewErrorf(types.ErrValidation, "unsupported database driver %q", c.Driver)
	}
}

// workflowRecord is the single-table layout: the whole aggregate lives in
// the document column, with id/status/version lifted out for indexing and
// the compare-and-swap predicate.
type workflowRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Status    string    `gorm:"size:32;index"`
	Version   int64     `gorm:"not null"`
	Document  string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (workflowRecord) TableName() string { return "workflows" }

// DatabaseStore persists aggregates in one SQL table via gorm. Save uses an
// UPDATE guarded on the stored version, so the compare-and-swap is a single
// statement regardless of driver.
type DatabaseStore struct {
	db     *gorm.DB
	pool   *database.PoolManager
	logger *zap.Logger
}

var _ review.Store = (*DatabaseStore)(nil)

// NewDatabaseStore wraps an existing gorm handle.
func NewDatabaseStore(db *gorm.DB, logger *zap.Logger) *DatabaseStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatabaseStore{
		db:     db,
		logger: logger.With(zap.String("component", "database_store")),
	}
}

// OpenDatabaseStore connects per config and ensures the schema exists.
func OpenDatabaseStore(cfg DatabaseConfig, logger *zap.Logger) (*DatabaseStore, error) {
	dialector, err := cfg.Dialector()
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, types.NewErrorf(types.ErrStorage, "connect to %s database", cfg.Driver).WithCause(err)
	}

	poolCfg := database.DefaultPoolConfig()
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	pool, err := database.NewPoolManager(db, poolCfg, logger)
	if err != nil {
		return nil, types.NewError(types.ErrStorage, "configure database pool").WithCause(err)
	}

	s := NewDatabaseStore(db, logger)
	s.pool = pool
	if err := s.AutoMigrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// AutoMigrate creates or updates the workflows table.
func (s *DatabaseStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&workflowRecord{}); err != nil {
		return types.NewError(types.ErrStorage, "migrate workflows table").WithCause(err)
	}
	return nil
}

// Create assigns a fresh id and persists a NOT_STARTED aggregate.
func (s *DatabaseStore) Create(ctx context.Context, input types.Attrs) (*review.Workflow, error) {
	wf := review.NewWorkflow(uuid.NewString(), input, time.Now().UTC())
	data, err := encodeWorkflow(wf)
	if err != nil {
		return nil, err
	}
	rec := workflowRecord{
		ID:        wf.ID,
		Status:    string(wf.Status),
		Version:   wf.Version,
		Document:  string(data),
		CreatedAt: wf.CreatedAt,
		UpdatedAt: wf.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, types.NewErrorf(types.ErrStorage, "create workflow %s", wf.ID).WithCause(err)
	}
	return wf, nil
}

// Load returns the aggregate behind one row. An absent row is NOT_FOUND;
// an undecodable document column is STORAGE.
func (s *DatabaseStore) Load(ctx context.Context, id string) (*review.Workflow, error) {
	var rec workflowRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNotFound(id)
	}
	if err != nil {
		return nil, types.NewErrorf(types.ErrStorage, "read workflow %s", id).WithCause(err)
	}
	return decodeWorkflow(id, []byte(rec.Document))
}

// Save persists via UPDATE ... WHERE id = ? AND version = ?; zero affected
// rows means either the row vanished or another writer won the race.
func (s *DatabaseStore) Save(ctx context.Context, wf *review.Workflow) error {
	nextVersion := wf.Version + 1
	updatedAt := time.Now().UTC()

	next := wf.Clone()
	next.Version = nextVersion
	next.UpdatedAt = updatedAt
	data, err := encodeWorkflow(next)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Model(&workflowRecord{}).
		Where("id = ? AND version = ?", wf.ID, wf.Version).
		Updates(map[string]any{
			"status":     string(next.Status),
			"version":    nextVersion,
			"document":   string(data),
			"updated_at": updatedAt,
		})
	if res.Error != nil {
		return types.NewErrorf(types.ErrStorage, "save workflow %s", wf.ID).WithCause(res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&workflowRecord{}).
			Where("id = ?", wf.ID).
			Count(&count).Error; err != nil {
			return types.NewErrorf(types.ErrStorage, "save workflow %s", wf.ID).WithCause(err)
		}
		if count == 0 {
			return errNotFound(wf.ID)
		}
		return errConflict(wf.ID, wf.Version)
	}

	wf.Version = nextVersion
	wf.UpdatedAt = updatedAt
	return nil
}

// Delete removes the row, reporting false for absent ids.
func (s *DatabaseStore) Delete(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&workflowRecord{}, "id = ?", id)
	if res.Error != nil {
		return false, types.NewErrorf(types.ErrStorage, "delete workflow %s", id).WithCause(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// List enumerates rows, optionally filtered on the indexed status column,
// oldest first. A row whose document does not decode is logged and skipped.
func (s *DatabaseStore) List(ctx context.Context, status review.WorkflowStatus) ([]*review.Workflow, error) {
	query := s.db.WithContext(ctx).Model(&workflowRecord{}).Order("created_at ASC, id ASC")
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	var records []workflowRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, types.NewError(types.ErrStorage, "list workflows").WithCause(err)
	}

	out := make([]*review.Workflow, 0, len(records))
	for _, rec := range records {
		wf, err := decodeWorkflow(rec.ID, []byte(rec.Document))
		if err != nil {
			s.logger.Warn("skipping unreadable workflow record",
				zap.String("workflow_id", rec.ID),
				zap.Error(err))
			continue
		}
		out = append(out, wf)
	}
	return out, nil
}

// Ping verifies the underlying connection.
func (s *DatabaseStore) Ping(ctx context.Context) error {
	if s.pool != nil {
		if err := s.pool.Ping(ctx); err != nil {
			return types.NewError(types.ErrStorage, "database unavailable").WithCause(err)
		}
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return types.NewError(types.ErrStorage, "database unavailable").WithCause(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return types.NewError(types.ErrStorage, "database unavailable").WithCause(err)
	}
	return nil
}

// PoolStats reports connection-pool statistics when the store owns its pool.
func (s *DatabaseStore) PoolStats() (database.PoolStats, bool) {
	if s.pool == nil {
		return database.PoolStats{}, false
	}
	return s.pool.GetStats(), true
}

// Close releases the connection pool.
func (s *DatabaseStore) Close() error {
	if s.pool != nil {
		return s.pool.Close()
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
