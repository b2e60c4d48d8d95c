// Path: internal/storage/mongo_storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"top-loras/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoModelStorage mirrors ranked LoRA records into a MongoDB collection.
type MongoModelStorage struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoModelStorage creates a new storage adapter for models.
func NewMongoModelStorage(db *mongo.Database, collectionName string) *MongoModelStorage {
	return &MongoModelStorage{
		collection: db.Collection(collectionName),
		now:        time.Now,
	}
}

// BulkUpsert implements the ModelStorage interface. Entries are keyed by
// task and canonical id, and entries of the task that are missing from
// records are deleted afterwards, so the catalog holds the latest ranking of
// every task. Records without a canonical id are not mirrored; their
// fallback keys are only valid within one run. A ranking with no mirrorable
// record leaves the task's entries untouched.
func (s *MongoModelStorage) BulkUpsert(ctx context.Context, task string, records []domain.ModelRecord) error {
	fetchedAt := s.now().UTC()
	var writeModels []mongo.WriteModel
	keys := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		key := domain.CatalogKey(task, rec.ID)
		keys = append(keys, key)
		entry := domain.CatalogEntry{Key: key, ModelRecord: rec, Task: task, FetchedAt: fetchedAt}
		writeModels = append(writeModels, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": key}).
			SetReplacement(entry).
			SetUpsert(true))
	}
	if len(writeModels) == 0 {
		return nil
	}

	// Unordered so one bad document does not stop the rest.
	opts := options.BulkWrite().SetOrdered(false)
	if _, err := s.collection.BulkWrite(ctx, writeModels, opts); err != nil {
		return err
	}

	_, err := s.collection.DeleteMany(ctx, bson.M{"task": task, "_id": bson.M{"$nin": keys}})
	if err != nil {
		return fmt.Errorf("failed to prune stale %q entries: %w", task, err)
	}
	return nil
}

// FindByID implements the ModelStorage interface. A model ranked under
// several tasks resolves to its most recently fetched entry.
func (s *MongoModelStorage) FindByID(ctx context.Context, id string) (*domain.ModelRecord, error) {
	var entry domain.CatalogEntry
	opts := options.FindOne().SetSort(bson.D{{Key: "fetchedAt", Value: -1}})
	err := s.collection.FindOne(ctx, bson.M{"model_id": id}, opts).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // Return nil, nil if not found
		}
		return nil, err
	}
	return &entry.ModelRecord, nil
}

// TopByTask implements the ModelStorage interface. The empty task is the
// untagged global ranking, not a wildcard.
func (s *MongoModelStorage) TopByTask(ctx context.Context, task string, limit int64) ([]domain.ModelRecord, error) {
	filter := bson.M{"task": task}
	opts := options.Find().SetSort(bson.D{{Key: "downloads", Value: -1}}).SetLimit(limit)
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []domain.CatalogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	out := make([]domain.ModelRecord, len(entries))
	for i, e := range entries {
		out[i] = e.ModelRecord
	}
	return out, nil
}
