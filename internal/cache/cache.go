// Path: internal/cache/cache.go
package cache

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"top-loras/internal/domain"
	"top-loras/internal/metrics"
)

// Store persists result lists with a timestamp. Load never fails: missing,
// unreadable or expired documents all read as a miss.
type Store interface {
	Load(ctx context.Context, key string, ttl time.Duration) ([]domain.ModelRecord, bool)
	Save(ctx context.Context, key string, records []domain.ModelRecord) domain.Outcome
}

// Clock returns the current time; tests substitute a fixed one.
type Clock func() time.Time

// encode renders a cache document the way it is stored on disk.
func encode(doc domain.CacheDocument) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode parses a cache document and applies the expiry rule: the document
// is stale once now - _cached_at exceeds ttl.
func decode(raw []byte, now time.Time, ttl time.Duration) ([]domain.ModelRecord, error) {
	var doc domain.CacheDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse cache document: %w", err)
	}
	if doc.CachedAt == 0 {
		return nil, errMissingTimestamp
	}
	if doc.Age(now) > ttl {
		return nil, errExpired
	}
	if doc.Results == nil {
		doc.Results = []domain.ModelRecord{}
	}
	return doc.Results, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

type cacheError string

func (e cacheError) Error() string { return string(e) }

const (
	errMissingTimestamp cacheError = "cache document has no timestamp"
	errExpired          cacheError = "cache document expired"
)

func recordLookup(hit bool) {
	if hit {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()
}

// FileStore keeps one JSON document per key, where the key is the file path.
type FileStore struct {
	now Clock
}

// NewFileStore creates a file-backed store.
func NewFileStore() *FileStore {
	return &FileStore{now: time.Now}
}

// WithClock replaces the store's time source.
func (s *FileStore) WithClock(c Clock) *FileStore {
	s.now = c
	return s
}

// Load implements the Store interface.
func (s *FileStore) Load(_ context.Context, key string, ttl time.Duration) ([]domain.ModelRecord, bool) {
	raw, err := os.ReadFile(key)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithField("key", key).Warnf("Failed to read cache: %v", err)
		}
		recordLookup(false)
		return nil, false
	}
	records, err := decode(raw, s.now(), ttl)
	if err != nil {
		if err != errExpired {
			log.WithField("key", key).Warnf("Failed to load cache: %v", err)
		}
		recordLookup(false)
		return nil, false
	}
	recordLookup(true)
	return records, true
}

// Save implements the Store interface. The document is written to a temporary
// file and renamed into place.
func (s *FileStore) Save(_ context.Context, key string, records []domain.ModelRecord) domain.Outcome {
	if records == nil {
		records = []domain.ModelRecord{}
	}
	raw, err := encode(domain.CacheDocument{CachedAt: unixSeconds(s.now()), Results: records})
	if err != nil {
		return domain.Failed("encode cache document: %v", err)
	}

	dir := filepath.Dir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.Failed("create cache directory: %v", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(key)+".*.tmp")
	if err != nil {
		return domain.Failed("create temp file: %v", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return domain.Failed("write cache document: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.Failed("close cache document: %v", err)
	}
	if err := os.Rename(tmp.Name(), key); err != nil {
		return domain.Failed("replace cache document: %v", err)
	}
	return domain.Succeeded()
}
