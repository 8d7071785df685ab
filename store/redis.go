package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/types"
)

const (
	redisKeyPrefix = "reviewflow:workflow:"
	redisIndexKey  = "reviewflow:workflows"
)

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr         string `yaml:"addr" json:"addr"`
	Password     string `yaml:"password" json:"password"`
	DB           int    `yaml:"db" json:"db"`
	PoolSize     int    `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int    `yaml:"min_idle_conns" json:"min_idle_conns"`
	MaxRetries   int    `yaml:"max_retries" json:"max_retries"`
}

// DefaultRedisConfig returns sensible local defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	}
}

// RedisStore persists each aggregate as a JSON value behind one key, with a
// set of ids as the List index. Save runs a WATCH/MULTI transaction on the
// workflow key so the version check and the write commit atomically.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

var _ review.Store = (*RedisStore)(nil)

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, types.NewErrorf(types.ErrStorage, "connect to redis at %s", cfg.Addr).WithCause(err)
	}

	return &RedisStore{
		client: client,
		logger: logger.With(zap.String("component", "redis_store")),
	}, nil
}

func redisKey(id string) string { return redisKeyPrefix + id }

// Create assigns a fresh id and persists a NOT_STARTED aggregate.
func (s *RedisStore) Create(ctx context.Context, input types.Attrs) (*review.Workflow, error) {
	wf := review.NewWorkflow(uuid.NewString(), input, time.Now().UTC())
	data, err := encodeWorkflow(wf)
	if err != nil {
		return nil, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKey(wf.ID), data, 0)
		pipe.SAdd(ctx, redisIndexKey, wf.ID)
		return nil
	})
	if err != nil {
		return nil, types.NewErrorf(types.ErrStorage, "create workflow %s", wf.ID).WithCause(err)
	}
	return wf, nil
}

// Load returns the aggregate behind one key. An absent key is NOT_FOUND; a
// value that does not parse is STORAGE.
func (s *RedisStore) Load(ctx context.Context, id string) (*review.Workflow, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errNotFound(id)
	}
	if err != nil {
		return nil, types.NewErrorf(types.ErrStorage, "read workflow %s", id).WithCause(err)
	}
	return decodeWorkflow(id, data)
}

// Save persists under WATCH/MULTI: the transaction aborts when another
// writer touches the key between the version check and the commit.
func (s *RedisStore) Save(ctx context.Context, wf *review.Workflow) error {
	key := redisKey(wf.ID)
	nextVersion := wf.Version + 1
	updatedAt := time.Now().UTC()

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
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

		next := wf.Clone()
		next.Version = nextVersion
		next.UpdatedAt = updatedAt
		doc, err := encodeWorkflow(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			pipe.SAdd(ctx, redisIndexKey, wf.ID)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return errConflict(wf.ID, wf.Version)
	}
	if err != nil {
		if types.GetErrorCode(err) != "" {
			return err
		}
		return types.NewErrorf(types.ErrStorage, "save workflow %s", wf.ID).WithCause(err)
	}

	wf.Version = nextVersion
	wf.UpdatedAt = updatedAt
	return nil
}

// Delete removes the key and its index entry, reporting false for absent ids.
func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	var delCmd *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		delCmd = pipe.Del(ctx, redisKey(id))
		pipe.SRem(ctx, redisIndexKey, id)
		return nil
	})
	if err != nil {
		return false, types.NewErrorf(types.ErrStorage, "delete workflow %s", id).WithCause(err)
	}
	return delCmd.Val() > 0, nil
}

// List walks the id index, skipping stale entries and damaged values.
func (s *RedisStore) List(ctx context.Context, status review.WorkflowStatus) ([]*review.Workflow, error) {
	ids, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, types.NewErrorf(types.ErrStorage, "list workflows").WithCause(err)
	}

	out := make([]*review.Workflow, 0, len(ids))
	for _, id := range ids {
		wf, err := s.Load(ctx, id)
		if types.IsNotFound(err) {
			// Stale index entry; the key itself is gone.
			continue
		}
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

// Ping verifies the redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return types.NewError(types.ErrStorage, "redis unavailable").WithCause(err)
	}
	return nil
}

// Close releases the redis client.
func (s *RedisStore) Close() error { return s.client.Close() }
