package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"top-loras/internal/cache"
	"top-loras/internal/config"
)

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	store, closer, err := NewStore(ctx, config.CacheConfig{Backend: "file"})
	require.NoError(t, err)
	assert.IsType(t, &cache.FileStore{}, store)
	assert.Nil(t, closer)

	mr := miniredis.RunT(t)
	store, closer, err = NewStore(ctx, config.CacheConfig{Backend: "redis", RedisURL: "redis://" + mr.Addr(), RedisPrefix: "t:"})
	require.NoError(t, err)
	assert.IsType(t, &cache.RedisStore{}, store)
	require.NotNil(t, closer)
	assert.NoError(t, closer(ctx))

	_, _, err = NewStore(ctx, config.CacheConfig{Backend: "memcached"})
	assert.Error(t, err)
}

func TestBuildWithoutDatabase(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Cache.Dir = t.TempDir()

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, a.Service)

	done := make(chan struct{})
	go func() {
		a.LogEvents()
		close(done)
	}()
	a.Close(context.Background())
	<-done
}
