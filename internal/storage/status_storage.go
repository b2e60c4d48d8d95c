// Path: internal/storage/status_storage.go
package storage

import (
	"context"
	"errors"
	"time"

	"top-loras/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStatusStorage keeps one fetch status document per cache key.
type MongoStatusStorage struct {
	collection *mongo.Collection
}

// NewMongoStatusStorage creates a new storage adapter for fetch status.
func NewMongoStatusStorage(db *mongo.Database, collectionName string) *MongoStatusStorage {
	return &MongoStatusStorage{
		collection: db.Collection(collectionName),
	}
}

// GetStatus implements the StatusStorage interface. A key that was never
// fetched yields nil, nil.
func (s *MongoStatusStorage) GetStatus(ctx context.Context, key string) (*domain.StatusDocument, error) {
	var doc domain.StatusDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// SetStatus implements the StatusStorage interface.
func (s *MongoStatusStorage) SetStatus(ctx context.Context, doc domain.StatusDocument) error {
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

// ListStatus returns every status document.
func (s *MongoStatusStorage) ListStatus(ctx context.Context) ([]domain.StatusDocument, error) {
	cursor, err := s.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []domain.StatusDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
