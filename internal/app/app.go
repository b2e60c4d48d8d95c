// Path: internal/app/app.go
package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"top-loras/internal/cache"
	"top-loras/internal/config"
	"top-loras/internal/events"
	"top-loras/internal/images"
	"top-loras/internal/scraper"
	"top-loras/internal/service"
	"top-loras/internal/storage"
)

// App bundles the wired service with the resources it holds open.
type App struct {
	Service *service.Service
	Broker  *events.Broker
	closers []func(context.Context) error

	completed <-chan events.Event
	failed    <-chan events.Event
}

// NewStore selects the cache backend named in the configuration.
func NewStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, func(context.Context) error, error) {
	switch cfg.Backend {
	case "", "file":
		return cache.NewFileStore(), nil, nil
	case "redis":
		rs, err := cache.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return rs, func(context.Context) error { return rs.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Build wires every component from the configuration. The catalog mirror is
// only connected when a database URI is configured.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Broker: events.NewBroker()}
	a.completed = a.Broker.Subscribe(events.TopicFetchCompleted, 16)
	a.failed = a.Broker.Subscribe(events.TopicFetchFailed, 16)

	store, closeStore, err := NewStore(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}
	log.WithField("backend", cfg.Cache.Backend).Debug("Cache store ready")

	paths := cache.Paths{Dir: cfg.Cache.Dir, ImagesDir: cfg.Cache.ImagesDir}
	a.Service = service.NewService(
		cfg.Fetch,
		cfg.Watcher,
		paths,
		scraper.NewScraper(cfg.Upstream),
		store,
		images.NewFetcher(cfg.Images),
		a.Broker,
	)

	if cfg.Database.URI == "" {
		return a, nil
	}

	log.Info("Connecting to MongoDB...")
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Database.URI))
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	a.closers = append(a.closers, client.Disconnect)
	if err := client.Ping(ctx, nil); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(cfg.Database.Name)
	a.Service.WithCatalog(
		storage.NewMongoModelStorage(db, cfg.Database.Collection),
		storage.NewMongoStatusStorage(db, cfg.Database.StatusCollection),
	)
	return a, nil
}

// Close releases everything Build opened, in reverse order.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.Warnf("Error during shutdown: %v", err)
		}
	}
	a.closers = nil
	a.Broker.Close()
}

// LogEvents logs every fetch event until the broker is closed.
func (a *App) LogEvents() {
	completed, failed := a.completed, a.failed
	for completed != nil || failed != nil {
		select {
		case ev, ok := <-completed:
			if !ok {
				completed = nil
				continue
			}
			if fe, ok := ev.Fetch(); ok {
				log.WithFields(log.Fields{"key": fe.Key, "count": fe.Count, "cached": fe.FromCache}).Debug("Fetch completed")
			}
		case ev, ok := <-failed:
			if !ok {
				failed = nil
				continue
			}
			if fe, ok := ev.Fetch(); ok {
				log.WithField("key", fe.Key).Warnf("Fetch failed: %v", fe.Err)
			}
		}
	}
}
