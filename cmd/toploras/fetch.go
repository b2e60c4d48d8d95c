// Path: cmd/toploras/fetch.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"top-loras/internal/app"
	"top-loras/internal/config"
	"top-loras/internal/domain"
	"top-loras/internal/logging"
	"top-loras/internal/service"
)

type fetchFlags struct {
	limit        int
	tag          string
	task         string
	allTasks     bool
	cacheFile    string
	imagesDir    string
	noPerTask    bool
	pageSize     int
	maxPages     int
	ttl          int
	forceRefresh bool
	debug        bool
}

func newFetchCmd() *cobra.Command {
	f := &fetchFlags{}
	cmd := &cobra.Command{
		Use:          "fetch",
		Short:        "fetch, rank and cache the top LoRA models",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			f.apply(cfg, cmd.Flags().Changed)
			if err := logging.Setup(cfg.Logging); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			application, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close(context.Background())
			go application.LogEvents()

			return f.run(ctx, cmd.OutOrStdout(), application.Service)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&f.limit, "limit", 20, "number of models to return")
	flags.StringVar(&f.tag, "tag", "lora", "tag every listing must carry")
	flags.StringVar(&f.task, "task", "", "task filter, e.g. text-to-image-synthesis or image-to-video")
	flags.BoolVar(&f.allTasks, "all-tasks", false, "fetch every preset task (the default when --task is not set)")
	flags.StringVar(&f.cacheFile, "cache-file", "", "cache document path; with several tasks only its directory is used")
	flags.StringVar(&f.imagesDir, "images-dir", "", "root directory for cover images")
	flags.BoolVar(&f.noPerTask, "no-per-task-cache", false, "use the global cache file and image directory for a single --task")
	flags.IntVar(&f.pageSize, "page-size", 0, "override the per-request page size")
	flags.IntVar(&f.maxPages, "max-pages", 5, "maximum pages to fetch when aggregating results")
	flags.IntVar(&f.ttl, "ttl", 300, "cache TTL in seconds")
	flags.BoolVar(&f.forceRefresh, "force-refresh", false, "ignore the cache and fetch from upstream")
	flags.BoolVar(&f.debug, "debug", false, "enable debug logging")
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// presetTasks lists the upstream task of every preset, in a stable order.
func presetTasks() []string {
	tasks := make([]string, 0, len(config.TaskPresets))
	for _, full := range config.TaskPresets {
		tasks = append(tasks, full)
	}
	sort.Strings(tasks)
	return tasks
}

func (f *fetchFlags) tasks() []string {
	if f.allTasks || f.task == "" {
		return presetTasks()
	}
	return []string{config.ResolveTask(f.task)}
}

// apply lets explicitly set flags override the loaded configuration.
func (f *fetchFlags) apply(cfg *config.Config, changed func(string) bool) {
	if changed("limit") {
		cfg.Fetch.Limit = f.limit
	}
	if changed("tag") {
		cfg.Fetch.Tag = f.tag
	}
	if changed("page-size") {
		cfg.Fetch.PageSize = f.pageSize
	}
	if changed("max-pages") {
		cfg.Fetch.MaxPages = f.maxPages
	}
	if changed("ttl") {
		cfg.Fetch.TTLSeconds = f.ttl
	}
	if f.noPerTask {
		cfg.Fetch.PerTaskCache = false
	}
	if f.imagesDir != "" {
		cfg.Cache.ImagesDir = f.imagesDir
	}
	if f.cacheFile != "" && len(f.tasks()) > 1 {
		cfg.Cache.Dir = filepath.Dir(f.cacheFile)
	}
	if f.debug {
		cfg.Logging.Level = "debug"
	}
	// The one-shot CLI always populates cover_local.
	cfg.Fetch.DownloadImages = true
}

func (f *fetchFlags) run(ctx context.Context, out io.Writer, svc *service.Service) error {
	tasks := f.tasks()
	if len(tasks) > 1 {
		for _, task := range tasks {
			opts := svc.DefaultOptions(task)
			opts.ForceRefresh = f.forceRefresh
			// Each preset always gets its own document and image directory,
			// otherwise the second task would be served the first one's list.
			opts.PerTaskCache = true
			loc := svc.Locate(opts)
			fmt.Fprintf(out, "Fetching task=%s -> cache=%s images=%s\n", task, loc.CacheFile, loc.ImagesDir)

			records, err := svc.FetchTopLoras(ctx, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  %d models\n", len(records))
		}
		return nil
	}

	opts := svc.DefaultOptions(tasks[0])
	opts.ForceRefresh = f.forceRefresh
	opts.CacheFile = f.cacheFile

	start := time.Now()
	records, err := svc.FetchTopLoras(ctx, opts)
	if err != nil {
		return err
	}
	log.Debugf("Fetched in %s", time.Since(start).Round(time.Millisecond))
	printResults(out, records)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

func printResults(out io.Writer, records []domain.ModelRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No LoRA models found (0 results). If you expected results, try increasing --page-size or check your token/permissions.")
		return
	}

	fmt.Fprintf(out, "\nTop %d LoRA Models:\n", len(records))
	fmt.Fprintln(out, strings.Repeat("-", 100))
	for i, m := range records {
		fmt.Fprintf(out, "%2d. %s\n", i+1, m.DisplayTitle())
		if m.TitleCN != "" && m.TitleCN != m.TitleEN {
			fmt.Fprintf(out, "    EN: %s\n", orNone(m.TitleEN))
		}
		fmt.Fprintf(out, "    ID: %s\n", orNone(m.ID))
		fmt.Fprintf(out, "    Author: %s\n", orNone(m.Author))
		fmt.Fprintf(out, "    Downloads: %d\n", m.Downloads)
		fmt.Fprintf(out, "    Likes: %d\n", m.Likes)
		fmt.Fprintf(out, "    License: %s\n", orNone(m.License))
		fmt.Fprintf(out, "    Updated: %s\n", orNone(m.UpdatedAt))
		fmt.Fprintf(out, "    URL: %s\n", orNone(m.ModelScopeURL))
		fmt.Fprintf(out, "    Cover Local: %s\n", orNone(m.CoverLocal))
		fmt.Fprintln(out)
	}
}
