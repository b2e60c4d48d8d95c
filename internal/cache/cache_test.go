package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"top-loras/internal/domain"
)

func sampleRecords(dir string) []domain.ModelRecord {
	return []domain.ModelRecord{
		{
			ID:         "owner/model-a",
			TitleEN:    "model-a",
			TitleCN:    "示例模型",
			CoverLocal: filepath.Join(dir, "images", "model-a.jpg"),
			Downloads:  50,
			Likes:      3,
			TagsCN:     []string{"写实"},
			TagsEN:     []string{"Photography"},
			BaseModels: []string{"Qwen/Qwen-Image"},
		},
		{ID: "owner/model-b", Downloads: 10, TagsCN: []string{}, TagsEN: []string{}, BaseModels: []string{}},
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "model", SanitizeFilename(""))
	assert.Equal(t, "a_b_c_d", SanitizeFilename(`a/b:c*d`))
	assert.Equal(t, "text_to_image", SanitizeFilename("text  to\timage"))
	long := SanitizeFilename(string(make([]rune, 300)))
	assert.Len(t, []rune(long), 200)
}

func TestResolve(t *testing.T) {
	p := Paths{Dir: "cache", ImagesDir: filepath.Join("cache", "images")}

	global := Resolve(p, "text-to-image-synthesis", false)
	assert.Equal(t, filepath.Join("cache", "top_loras.json"), global.CacheFile)
	assert.Equal(t, filepath.Join("cache", "images"), global.ImagesDir)

	noTask := Resolve(p, "", true)
	assert.Equal(t, global, noTask)

	perTask := Resolve(p, "text-to-image-synthesis", true)
	assert.Equal(t, filepath.Join("cache", "top_loras_text-to-image-synthesis.json"), perTask.CacheFile)
	assert.Equal(t, filepath.Join("cache", "images", "text-to-image-synthesis"), perTask.ImagesDir)
	assert.Equal(t, perTask.CacheFile, perTask.Key())

	other := Resolve(p, "image-to-video", true)
	assert.NotEqual(t, perTask.CacheFile, other.CacheFile)
	assert.NotEqual(t, perTask.ImagesDir, other.ImagesDir)
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	key := filepath.Join(dir, "nested", "cache.json")
	store := NewFileStore()
	records := sampleRecords(dir)

	outcome := store.Save(context.Background(), key, records)
	require.True(t, outcome.OK, outcome.String())

	loaded, ok := store.Load(context.Background(), key, time.Hour)
	require.True(t, ok)
	assert.Equal(t, records, loaded)

	again, ok := store.Load(context.Background(), key, time.Hour)
	require.True(t, ok)
	assert.Equal(t, loaded, again)
}

func TestFileStoreExpiryBoundary(t *testing.T) {
	key := filepath.Join(t.TempDir(), "cache.json")
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	store := NewFileStore().WithClock(clock.now)
	require.True(t, store.Save(context.Background(), key, sampleRecords("x")).OK)

	ttl := 300 * time.Second
	clock.t = clock.t.Add(ttl - time.Second)
	_, ok := store.Load(context.Background(), key, ttl)
	assert.True(t, ok, "just inside the ttl")

	clock.t = clock.t.Add(2 * time.Second)
	_, ok = store.Load(context.Background(), key, ttl)
	assert.False(t, ok, "just past the ttl")

	// Expired documents are ignored, not deleted.
	_, err := os.Stat(key)
	assert.NoError(t, err)
}

func TestFileStoreMisses(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore()

	_, ok := store.Load(context.Background(), filepath.Join(dir, "absent.json"), time.Hour)
	assert.False(t, ok)

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("{not json"), 0o644))
	_, ok = store.Load(context.Background(), garbage, time.Hour)
	assert.False(t, ok)

	noStamp := filepath.Join(dir, "nostamp.json")
	require.NoError(t, os.WriteFile(noStamp, []byte(`{"results": [{"id": "a/b"}]}`), 0o644))
	_, ok = store.Load(context.Background(), noStamp, time.Hour)
	assert.False(t, ok)
}

func TestFileStoreReadsForeignDocuments(t *testing.T) {
	key := filepath.Join(t.TempDir(), "cache.json")
	doc := `{"_cached_at": 1700000000.5, "results": [{"id": "owner/model-a", "title_en": "model-a", "cover_local": null, "downloads": 7}]}`
	require.NoError(t, os.WriteFile(key, []byte(doc), 0o644))

	store := NewFileStore().WithClock(func() time.Time { return time.Unix(1_700_000_100, 0) })
	loaded, ok := store.Load(context.Background(), key, 300*time.Second)
	require.True(t, ok)
	require.Len(t, loaded, 1)
	assert.Equal(t, "owner/model-a", loaded[0].ID)
	assert.Empty(t, loaded[0].CoverLocal)
	assert.Equal(t, int64(7), loaded[0].Downloads)
}

func TestFileStoreSaveFailsOnUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	outcome := NewFileStore().Save(context.Background(), filepath.Join(blocker, "cache.json"), nil)
	assert.False(t, outcome.OK)
	assert.NotEmpty(t, outcome.Reason)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}

	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	store.WithClock(clock.now)

	key := filepath.Join("cache", "top_loras_image-to-video.json")
	records := sampleRecords("x")
	require.True(t, store.Save(context.Background(), key, records).OK)
	assert.True(t, mr.Exists("toploras:cache/top_loras_image-to-video"))

	loaded, ok := store.Load(context.Background(), key, time.Minute)
	require.True(t, ok)
	assert.Equal(t, records, loaded)

	clock.t = clock.t.Add(2 * time.Minute)
	_, ok = store.Load(context.Background(), key, time.Minute)
	assert.False(t, ok)

	_, ok = store.Load(context.Background(), "cache/other.json", time.Hour)
	assert.False(t, ok)
}

func TestRedisStoreKeepsDirectoriesApart(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), "t:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	a := filepath.Join("a", "x.json")
	b := filepath.Join("b", "x.json")
	require.True(t, store.Save(context.Background(), a, []domain.ModelRecord{{ID: "org/a"}}).OK)
	require.True(t, store.Save(context.Background(), b, []domain.ModelRecord{{ID: "org/b"}}).OK)
	assert.True(t, mr.Exists("t:a/x"))
	assert.True(t, mr.Exists("t:b/x"))

	loaded, ok := store.Load(context.Background(), a, time.Hour)
	require.True(t, ok)
	assert.Equal(t, "org/a", loaded[0].ID)
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not a url", "")
	assert.Error(t, err)
}
