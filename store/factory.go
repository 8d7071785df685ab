package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/config"
	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/types"
)

// Open builds the workflow store selected by the storage configuration.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (review.Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(logger), nil
	case "file":
		return NewFileStore(cfg.FileDir, logger)
	case "redis":
		return NewRedisStore(RedisConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
		}, logger)
	case "database":
		return OpenDatabaseStore(DatabaseConfig{
			Driver:          cfg.Database.Driver,
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Name,
			SSLMode:         cfg.Database.SSLMode,
			Path:            cfg.Database.Path,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
	case "mongo":
		return NewMongoStore(ctx, MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		}, logger)
	default:
		return nil, types.NewErrorf(types.ErrValidation, "unknown storage backend %q", cfg.Backend)
	}
}
