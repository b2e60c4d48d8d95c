// Path: internal/service/service.go
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"top-loras/internal/cache"
	"top-loras/internal/classify"
	"top-loras/internal/config"
	"top-loras/internal/domain"
	"top-loras/internal/events"
	"top-loras/internal/metrics"
	"top-loras/internal/rank"
	"top-loras/internal/scraper"
)

// unlimitedTTL is used by the read path: a cached list is served however old
// it is, the refresher is what keeps it fresh.
const unlimitedTTL = 365 * 24 * time.Hour

// Service is the central orchestrator: fetch-or-serve, the periodic refresher
// and the read path used by the delivery layer.
type Service struct {
	fetchCfg      config.FetchConfig
	watchCfg      config.WatcherConfig
	paths         cache.Paths
	aggregator    Aggregator
	store         cache.Store
	covers        CoverFetcher
	modelStorage  ModelStorage
	statusStorage StatusStorage
	broker        *events.Broker
	now           func() time.Time

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
	statuses map[string]domain.StatusDocument

	stopChan chan struct{} // Used for graceful shutdown
	stopOnce sync.Once
}

// NewService creates a new core application service. covers and broker may be
// nil; the catalog is attached separately with WithCatalog.
func NewService(
	fetchCfg config.FetchConfig,
	watchCfg config.WatcherConfig,
	paths cache.Paths,
	aggregator Aggregator,
	store cache.Store,
	covers CoverFetcher,
	broker *events.Broker,
) *Service {
	return &Service{
		fetchCfg:   fetchCfg,
		watchCfg:   watchCfg,
		paths:      paths,
		aggregator: aggregator,
		store:      store,
		covers:     covers,
		broker:     broker,
		now:        time.Now,
		keyLocks:   make(map[string]*sync.Mutex),
		statuses:   make(map[string]domain.StatusDocument),
		stopChan:   make(chan struct{}),
	}
}

// WithCatalog attaches the MongoDB mirror. Either argument may be nil.
func (s *Service) WithCatalog(models ModelStorage, status StatusStorage) *Service {
	s.modelStorage = models
	s.statusStorage = status
	return s
}

// DefaultOptions builds fetch options for a task from the configured defaults.
func (s *Service) DefaultOptions(task string) domain.FetchOptions {
	return domain.FetchOptions{
		Limit:          s.fetchCfg.Limit,
		Tag:            s.fetchCfg.Tag,
		Task:           config.ResolveTask(task),
		TTL:            s.fetchCfg.TTL(),
		DownloadImages: s.fetchCfg.DownloadImages,
		PerTaskCache:   s.fetchCfg.PerTaskCache,
		PageSize:       s.fetchCfg.PageSize,
		MaxPages:       s.fetchCfg.MaxPages,
	}
}

// Locate returns where a fetch with these options reads and writes.
func (s *Service) Locate(opts domain.FetchOptions) cache.Location {
	loc := cache.Resolve(s.paths, opts.Task, opts.PerTaskCache)
	if opts.CacheFile != "" {
		loc.CacheFile = opts.CacheFile
	}
	if opts.ImagesDir != "" {
		loc.ImagesDir = opts.ImagesDir
	}
	return loc
}

func (s *Service) lockKey(key string) func() {
	s.mu.Lock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// FetchTopLoras returns the top LoRA records for the options, serving from
// cache when a fresh document exists. Only aggregation errors are returned;
// cover downloads, cache writes and the catalog mirror are best effort.
func (s *Service) FetchTopLoras(ctx context.Context, opts domain.FetchOptions) ([]domain.ModelRecord, error) {
	if opts.Limit <= 0 {
		opts.Limit = s.fetchCfg.Limit
	}
	opts.Task = config.ResolveTask(opts.Task)
	loc := s.Locate(opts)
	key := loc.Key()
	logger := log.WithFields(log.Fields{"key": key, "task": opts.Task})

	unlock := s.lockKey(key)
	defer unlock()

	if !opts.ForceRefresh {
		// An empty cached list is not worth serving; refetch instead.
		if cached, ok := s.store.Load(ctx, key, opts.TTL); ok && len(cached) > 0 {
			logger.Debugf("Serving %d records from cache", len(cached))
			metrics.RecordsServed.WithLabelValues(key).Set(float64(len(cached)))
			s.publish(domain.FetchEvent{Key: key, Task: opts.Task, Count: len(cached), FromCache: true})
			return cached, nil
		}
	}

	logger.Info("Fetching listings from upstream")
	listings, err := s.aggregator.FetchListings(ctx, scraper.Query{
		Limit:    opts.Limit,
		Tag:      opts.Tag,
		Task:     opts.Task,
		PageSize: opts.PageSize,
		MaxPages: opts.MaxPages,
	})
	if err != nil {
		err = fmt.Errorf("failed to fetch from ModelScope, check the API token and connectivity: %w", err)
		metrics.FetchFailures.Inc()
		s.recordStatus(ctx, domain.StatusDocument{ID: key, Task: opts.Task, Status: domain.FetchStatusFailed, Error: err.Error()})
		s.publish(domain.FetchEvent{Key: key, Task: opts.Task, Err: err})
		return nil, err
	}

	candidates := classify.ProcessModels(listings)
	ranked := rank.DedupeAndRank(candidates, opts.Limit)
	logger.Infof("Ranked %d records from %d listings (%d candidates)", len(ranked), len(listings), len(candidates))

	if opts.DownloadImages && s.covers != nil && len(ranked) > 0 {
		report := s.covers.FetchCovers(ctx, ranked, loc.ImagesDir)
		entry := logger.WithFields(log.Fields{"downloaded": report.Downloaded, "skipped": report.Skipped, "failed": report.Failed})
		if report.Outcome.OK {
			entry.Debug("Cover images fetched")
		} else {
			entry.Warnf("Cover images: %s", report.Outcome)
		}
	}

	if outcome := s.store.Save(ctx, key, ranked); !outcome.OK {
		logger.Warnf("Failed to write cache: %s", outcome.Reason)
	}

	if s.modelStorage != nil {
		if err := s.modelStorage.BulkUpsert(ctx, opts.Task, ranked); err != nil {
			logger.Warnf("Failed to mirror records to catalog: %v", err)
		}
	}
	s.recordStatus(ctx, domain.StatusDocument{ID: key, Task: opts.Task, Status: domain.FetchStatusOK, Count: len(ranked)})

	metrics.RecordsServed.WithLabelValues(key).Set(float64(len(ranked)))
	s.publish(domain.FetchEvent{Key: key, Task: opts.Task, Count: len(ranked)})
	return ranked, nil
}

func (s *Service) publish(ev domain.FetchEvent) {
	if s.broker != nil {
		s.broker.PublishFetch(ev)
	}
}

func (s *Service) recordStatus(ctx context.Context, doc domain.StatusDocument) {
	doc.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	s.statuses[doc.ID] = doc
	s.mu.Unlock()

	if s.statusStorage == nil {
		return
	}
	if err := s.statusStorage.SetStatus(ctx, doc); err != nil {
		log.WithField("key", doc.ID).Warnf("Failed to persist fetch status: %v", err)
	}
}

// Start runs the refresher until Stop is called or ctx is cancelled.
// It is a long-running, blocking method.
func (s *Service) Start(ctx context.Context) {
	interval := time.Duration(s.watchCfg.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	log.Infof("Starting refresher. Refreshing %d task(s) every %s.", len(s.refreshTasks()), interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run the first cycle immediately on startup.
	s.RunRefreshCycle(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunRefreshCycle(ctx)
		case <-s.stopChan:
			log.Info("Refresher stopped.")
			return
		case <-ctx.Done():
			log.Info("Refresher context cancelled.")
			return
		}
	}
}

// Stop gracefully shuts down the refresher. It is safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		log.Info("Service stopping...")
		close(s.stopChan)
	})
}

func (s *Service) refreshTasks() []string {
	if len(s.fetchCfg.Tasks) == 0 {
		return []string{""}
	}
	return s.fetchCfg.Tasks
}

// RunRefreshCycle force-refreshes every configured task once. A failing task
// is logged and does not stop the others.
func (s *Service) RunRefreshCycle(ctx context.Context) {
	refreshed := 0
	for _, task := range s.refreshTasks() {
		if ctx.Err() != nil {
			return
		}
		opts := s.DefaultOptions(task)
		opts.ForceRefresh = true
		records, err := s.FetchTopLoras(ctx, opts)
		if err != nil {
			log.WithField("task", task).Errorf("Refresh failed: %v", err)
			continue
		}
		log.WithField("task", task).Infof("Refreshed %d records", len(records))
		refreshed++
	}
	log.Infof("Refresh cycle finished: %d/%d task(s) refreshed", refreshed, len(s.refreshTasks()))
}

// Refresh force-refreshes a single task on demand.
func (s *Service) Refresh(ctx context.Context, task string) ([]domain.ModelRecord, error) {
	opts := s.DefaultOptions(task)
	opts.ForceRefresh = true
	return s.FetchTopLoras(ctx, opts)
}

// LoadResults returns the cached list for a task regardless of its age. When
// nothing is cached and the catalog is attached, the catalog answers instead.
// An empty task with no global list merges the lists of the configured
// tasks, which is what a per-task setup has on disk.
func (s *Service) LoadResults(ctx context.Context, task string) ([]domain.ModelRecord, bool) {
	if records, ok := s.loadTask(ctx, task); ok {
		return records, true
	}
	if config.ResolveTask(task) != "" {
		return nil, false
	}

	var all []domain.ModelRecord
	for _, t := range s.fetchCfg.Tasks {
		if config.ResolveTask(t) == "" {
			continue
		}
		if records, ok := s.loadTask(ctx, t); ok {
			all = append(all, records...)
		}
	}
	merged := rank.DedupeAndRank(all, s.fetchCfg.Limit)
	return merged, len(merged) > 0
}

func (s *Service) loadTask(ctx context.Context, task string) ([]domain.ModelRecord, bool) {
	opts := s.DefaultOptions(task)
	if records, ok := s.store.Load(ctx, s.Locate(opts).Key(), unlimitedTTL); ok {
		return records, true
	}
	if s.modelStorage == nil {
		return nil, false
	}
	records, err := s.modelStorage.TopByTask(ctx, opts.Task, int64(opts.Limit))
	if err != nil {
		log.WithField("task", opts.Task).Warnf("Catalog lookup failed: %v", err)
		return nil, false
	}
	return records, len(records) > 0
}

// GetModelByID looks a record up in the catalog, falling back to every cached
// task list. A missing record yields nil, nil.
func (s *Service) GetModelByID(ctx context.Context, id string) (*domain.ModelRecord, error) {
	if s.modelStorage != nil {
		rec, err := s.modelStorage.FindByID(ctx, id)
		if err != nil || rec != nil {
			return rec, err
		}
	}

	tasks := append([]string{""}, s.fetchCfg.Tasks...)
	for _, task := range tasks {
		records, ok := s.loadTask(ctx, task)
		if !ok {
			continue
		}
		for i := range records {
			if records[i].ID == id {
				return &records[i], nil
			}
		}
	}
	return nil, nil
}

// Statuses reports the last fetch outcome per cache key, from the catalog
// when attached and from this process's memory otherwise.
func (s *Service) Statuses(ctx context.Context) ([]domain.StatusDocument, error) {
	if s.statusStorage != nil {
		return s.statusStorage.ListStatus(ctx)
	}

	s.mu.Lock()
	docs := make([]domain.StatusDocument, 0, len(s.statuses))
	for _, doc := range s.statuses {
		docs = append(docs, doc)
	}
	s.mu.Unlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}
