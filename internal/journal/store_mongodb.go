package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDBStore implements Store for MongoDB. Retention is enforced by a TTL
// index rather than a cleanup loop.
type MongoDBStore struct {
	collection *mongo.Collection
}

// NewMongoDBStore creates the collection indexes if they don't exist.
func NewMongoDBStore(ctx context.Context, database *mongo.Database, retentionDays int) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	collection := database.Collection(TableName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "backend", Value: 1}}},
		{Keys: bson.D{{Key: "status_code", Value: 1}}},
		{Keys: bson.D{{Key: "request_id", Value: 1}}},
	}
	if retentionDays > 0 {
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retentionDays * 24 * 60 * 60)),
		})
	} else {
		indexes = append(indexes, mongo.IndexModel{Keys: bson.D{{Key: "timestamp", Value: -1}}})
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		slog.Warn("failed to create some MongoDB indexes", "error", err)
	}

	return &MongoDBStore{collection: collection}, nil
}

// WriteBatch inserts entries unordered, so one bad document does not stop the rest.
func (s *MongoDBStore) WriteBatch(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	docs := make([]interface{}, len(entries))
	for i, e := range entries {
		docs[i] = e
	}

	_, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		var bulkErr mongo.BulkWriteException
		if errors.As(err, &bulkErr) {
			slog.Warn("partial journal insert failure",
				"total", len(entries),
				"errors", len(bulkErr.WriteErrors),
			)
			return nil
		}
		return fmt.Errorf("failed to insert journal entries: %w", err)
	}
	return nil
}

// Flush is a no-op for MongoDB as writes are synchronous.
func (s *MongoDBStore) Flush(_ context.Context) error {
	return nil
}

// Close is a no-op; the client belongs to the storage layer.
func (s *MongoDBStore) Close() error {
	return nil
}
