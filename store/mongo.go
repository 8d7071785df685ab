package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/types"
)

// MongoConfig configures the mongo backend.
type MongoConfig struct {
	URI        string `yaml:"uri" json:"uri"`
	Database   string `yaml:"database" json:"database"`
	Collection string `yaml:"collection" json:"collection"`
}

// DefaultMongoConfig returns sensible local defaults.
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "reviewflow",
		Collection: "workflows",
	}
}

// mongoRecord mirrors workflowRecord for mongo: the aggregate rides in the
// document field, with status and version lifted out for filtering and the
// compare-and-swap predicate.
type mongoRecord struct {
	ID        string    `bson:"_id"`
	Status    string    `bson:"status"`
	Version   int64     `bson:"version"`
	Document  []byte    `bson:"document"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore persists aggregates in one collection. Save replaces the
// record filtered on {_id, version}, so the compare-and-swap is a single
// server-side operation.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.Logger
}

var _ review.Store = (*MongoStore)(nil)

// NewMongoStore connects per config and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Collection == "" {
		cfg.Collection = "workflows"
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, types.NewError(types.ErrStorage, "connect to mongo").WithCause(err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, types.NewError(types.ErrStorage, "connect to mongo").WithCause(err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		logger: logger.With(zap.String("component", "mongo_store")),
	}, nil
}

func (s *MongoStore) record(wf *review.Workflow) (mongoRecord, error) {
	data, err := encodeWorkflow(wf)
	if err != nil {
		return mongoRecord{}, err
	}
	return mongoRecord{
		ID:        wf.ID,
		Status:    string(wf.Status),
		Version:   wf.Version,
		Document:  data,
		CreatedAt: wf.CreatedAt,
		UpdatedAt: wf.UpdatedAt,
	}, nil
}

// Create assigns a fresh id and persists a NOT_STARTED aggregate.
func (s *MongoStore) Create(ctx context.Context, input types.Attrs) (*review.Workflow, error) {
	wf := review.NewWorkflow(uuid.NewString(), input, time.Now().UTC())
	rec, err := s.record(wf)
	if err != nil {
		return nil, err
	}
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		return nil, types.NewErrorf(types.ErrStorage, "create workflow %s", wf.ID).WithCause(err)
	}
	return wf, nil
}

// Load returns the aggregate behind one document. An absent document is
// NOT_FOUND; an undecodable payload is STORAGE.
func (s *MongoStore) Load(ctx context.Context, id string) (*review.Workflow, error) {
	var rec mongoRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNotFound(id)
	}
	if err != nil {
		return nil, types.NewErrorf(types.ErrStorage, "read workflow %s", id).WithCause(err)
	}
	return decodeWorkflow(id, rec.Document)
}

// Save replaces the record filtered on {_id, version}; no match means
// either the record vanished or another writer won the race.
func (s *MongoStore) Save(ctx context.Context, wf *review.Workflow) error {
	nextVersion := wf.Version + 1
	updatedAt := time.Now().UTC()

	next := wf.Clone()
	next.Version = nextVersion
	next.UpdatedAt = updatedAt
	rec, err := s.record(next)
	if err != nil {
		return err
	}

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": wf.ID, "version": wf.Version}, rec)
	if err != nil {
		return types.NewErrorf(types.ErrStorage, "save workflow %s", wf.ID).WithCause(err)
	}
	if res.MatchedCount == 0 {
		count, err := s.coll.CountDocuments(ctx, bson.M{"_id": wf.ID})
		if err != nil {
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

// Delete removes the document, reporting false for absent ids.
func (s *MongoStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, types.NewErrorf(types.ErrStorage, "delete workflow %s", id).WithCause(err)
	}
	return res.DeletedCount > 0, nil
}

// List enumerates documents, optionally filtered by status, oldest first.
// A document whose payload does not decode is logged and skipped.
func (s *MongoStore) List(ctx context.Context, status review.WorkflowStatus) ([]*review.Workflow, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}

	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, types.NewError(types.ErrStorage, "list workflows").WithCause(err)
	}
	defer cursor.Close(ctx)

	out := make([]*review.Workflow, 0)
	for cursor.Next(ctx) {
		var rec mongoRecord
		if err := cursor.Decode(&rec); err != nil {
			s.logger.Warn("skipping undecodable workflow record", zap.Error(err))
			continue
		}
		wf, err := decodeWorkflow(rec.ID, rec.Document)
		if err != nil {
			s.logger.Warn("skipping unreadable workflow record",
				zap.String("workflow_id", rec.ID),
				zap.Error(err))
			continue
		}
		out = append(out, wf)
	}
	if err := cursor.Err(); err != nil {
		return nil, types.NewError(types.ErrStorage, "list workflows").WithCause(err)
	}
	sortByCreation(out)
	return out, nil
}

// Ping verifies the mongo connection.
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return types.NewError(types.ErrStorage, "mongo unavailable").WithCause(err)
	}
	return nil
}

// Close disconnects from mongo.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
