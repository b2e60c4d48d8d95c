// Path: internal/cache/redis.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"top-loras/internal/domain"
)

// DefaultRedisPrefix namespaces cache documents in a shared Redis.
const DefaultRedisPrefix = "toploras:"

// RedisStore keeps cache documents in Redis so several daemons can share one
// cache. Expiry follows the document timestamp, not a Redis TTL, so stale
// documents stay readable to callers that ask with a longer ttl.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    Clock
}

// NewRedisStore connects to url and verifies the connection.
func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	log.WithField("prefix", prefix).Info("Redis cache connected")
	return &RedisStore{client: client, prefix: prefix, now: time.Now}, nil
}

// WithClock replaces the store's time source.
func (s *RedisStore) WithClock(c Clock) *RedisStore {
	s.now = c
	return s
}

// redisKey maps a document path such as cache/top_loras_x.json to
// <prefix>cache/top_loras_x. The whole cleaned path is kept so documents
// with the same file name in different directories stay apart.
func (s *RedisStore) redisKey(key string) string {
	clean := filepath.ToSlash(filepath.Clean(key))
	return s.prefix + strings.TrimSuffix(clean, path.Ext(clean))
}

// Load implements the Store interface.
func (s *RedisStore) Load(ctx context.Context, key string, ttl time.Duration) ([]domain.ModelRecord, bool) {
	raw, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithField("key", key).Warnf("Failed to read cache from redis: %v", err)
		}
		recordLookup(false)
		return nil, false
	}
	records, err := decode(raw, s.now(), ttl)
	if err != nil {
		if err != errExpired {
			log.WithField("key", key).Warnf("Failed to load cache from redis: %v", err)
		}
		recordLookup(false)
		return nil, false
	}
	recordLookup(true)
	return records, true
}

// Save implements the Store interface.
func (s *RedisStore) Save(ctx context.Context, key string, records []domain.ModelRecord) domain.Outcome {
	if records == nil {
		records = []domain.ModelRecord{}
	}
	raw, err := encode(domain.CacheDocument{CachedAt: unixSeconds(s.now()), Results: records})
	if err != nil {
		return domain.Failed("encode cache document: %v", err)
	}
	if err := s.client.Set(ctx, s.redisKey(key), raw, 0).Err(); err != nil {
		return domain.Failed("set cache in redis: %v", err)
	}
	return domain.Succeeded()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
