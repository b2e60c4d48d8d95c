// Path: internal/service/storage.go
package service

import (
	"context"

	"top-loras/internal/domain"
	"top-loras/internal/images"
	"top-loras/internal/scraper"

	"github.com/tidwall/gjson"
)

// Aggregator fetches raw listings from the upstream search API.
type Aggregator interface {
	FetchListings(ctx context.Context, q scraper.Query) ([]gjson.Result, error)
}

// CoverFetcher downloads cover images for a ranked result list.
type CoverFetcher interface {
	FetchCovers(ctx context.Context, records []domain.ModelRecord, dir string) images.Report
}

// ModelStorage defines the interface for mirroring ranked records.
type ModelStorage interface {
	// BulkUpsert replaces the task's ranking, keyed by task and canonical id.
	BulkUpsert(ctx context.Context, task string, records []domain.ModelRecord) error

	// FindByID retrieves a single record by its canonical id.
	FindByID(ctx context.Context, id string) (*domain.ModelRecord, error)

	TopByTask(ctx context.Context, task string, limit int64) ([]domain.ModelRecord, error)
}

// StatusStorage persists how the last fetch for each cache key ended.
type StatusStorage interface {
	GetStatus(ctx context.Context, key string) (*domain.StatusDocument, error)
	SetStatus(ctx context.Context, doc domain.StatusDocument) error
	ListStatus(ctx context.Context) ([]domain.StatusDocument, error)
}
