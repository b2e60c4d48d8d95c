package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"top-loras/internal/cache"
	"top-loras/internal/config"
	"top-loras/internal/domain"
	"top-loras/internal/scraper"
	"top-loras/internal/service"
)

// taskEcho returns one LoRA listing named after the requested task.
type taskEcho struct {
	mu    sync.Mutex
	tasks []string
}

func (e *taskEcho) FetchListings(_ context.Context, q scraper.Query) ([]gjson.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, q.Task)
	raw := fmt.Sprintf(`[{"Name": "org/%s-lora", "AigcType": "lora", "Downloads": 5}]`, q.Task)
	return gjson.Parse(raw).Array(), nil
}

func TestTasksDefaultToAllPresets(t *testing.T) {
	f := &fetchFlags{}
	assert.Equal(t, []string{"image-to-video", "text-to-image-synthesis"}, f.tasks())

	f.task = "text-to-image"
	assert.Equal(t, []string{"text-to-image-synthesis"}, f.tasks())

	f.allTasks = true
	assert.Len(t, f.tasks(), 2)
}

func TestApplyOnlyOverridesChangedFlags(t *testing.T) {
	cfg := &config.Config{
		Fetch: config.FetchConfig{Limit: 20, Tag: "lora", TTLSeconds: 300, PerTaskCache: true},
		Cache: config.CacheConfig{Dir: "cache", ImagesDir: "cache/images"},
	}
	f := &fetchFlags{limit: 5, tag: "ignored", ttl: 60, noPerTask: true, cacheFile: filepath.Join("out", "x.json"), debug: true}
	changed := map[string]bool{"limit": true, "ttl": true}

	f.apply(cfg, func(name string) bool { return changed[name] })

	assert.Equal(t, 5, cfg.Fetch.Limit)
	assert.Equal(t, "lora", cfg.Fetch.Tag)
	assert.Equal(t, 60, cfg.Fetch.TTLSeconds)
	assert.False(t, cfg.Fetch.PerTaskCache)
	assert.True(t, cfg.Fetch.DownloadImages)
	assert.Equal(t, "out", cfg.Cache.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, []domain.ModelRecord{
		{ID: "org/a", TitleCN: "模型", TitleEN: "Model A", Downloads: 12, Likes: 3},
		{ID: "org/b", TitleEN: "Model B", CoverLocal: "cache/images/Model_B.jpg"},
	})
	out := buf.String()

	assert.Contains(t, out, "Top 2 LoRA Models:")
	assert.Contains(t, out, " 1. 模型\n    EN: Model A\n    ID: org/a")
	assert.Contains(t, out, "    Downloads: 12")
	assert.Contains(t, out, " 2. Model B\n    ID: org/b")
	assert.Contains(t, out, "    Cover Local: cache/images/Model_B.jpg")
	assert.Contains(t, out, "    License: None")

	buf.Reset()
	printResults(&buf, nil)
	assert.Contains(t, buf.String(), "No LoRA models found")
}

func TestVersionCommand(t *testing.T) {
	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, gitVersion, gjson.Get(buf.String(), "GitVersion").String())
}

func TestRunAllTasksKeepsTasksApartWithoutPerTaskCache(t *testing.T) {
	root := t.TempDir()
	paths := cache.Paths{Dir: filepath.Join(root, "cache"), ImagesDir: filepath.Join(root, "cache", "images")}
	fetchCfg := config.FetchConfig{Limit: 5, Tag: "lora", TTLSeconds: 300, PerTaskCache: false}
	agg := &taskEcho{}
	svc := service.NewService(fetchCfg, config.WatcherConfig{}, paths, agg, cache.NewFileStore(), nil, nil)

	f := &fetchFlags{noPerTask: true}
	var out bytes.Buffer
	require.NoError(t, f.run(context.Background(), &out, svc))

	assert.ElementsMatch(t, presetTasks(), agg.tasks)
	for _, task := range presetTasks() {
		key := filepath.Join(paths.Dir, "top_loras_"+task+".json")
		records, ok := cache.NewFileStore().Load(context.Background(), key, time.Hour)
		require.True(t, ok, key)
		require.Len(t, records, 1)
		assert.Equal(t, "org/"+task+"-lora", records[0].ID)
		assert.Contains(t, out.String(), "images="+filepath.Join(paths.ImagesDir, task))
	}
	assert.NoFileExists(t, filepath.Join(paths.Dir, "top_loras.json"))
}
