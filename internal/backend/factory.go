// Package backend assembles the remote data gateway selected by
// configuration: the storage adapter, the optional read cache and the
// event-publishing expense service on top.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/cache"
	"expenses/internal/config"
	applog "expenses/internal/log"
	"expenses/internal/services"
	"expenses/internal/store"
	"expenses/internal/store/cached"
	"expenses/internal/store/memory"
	"expenses/internal/store/postgres"
	"expenses/internal/store/postgrest"
	"expenses/internal/store/sqlite"
)

const (
	defaultConnectTimeout = 30 * time.Second
	localCacheEntries     = 64
	redisKeyPrefix        = "expenses:"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// Result is an assembled gateway together with its cleanup.
type Result struct {
	Gateway store.Gateway
	// Cache is the local cache manager, nil unless CACHE_BACKEND=memory.
	Cache   *cache.Manager
	Cleanup CleanupFunc
}

// Factory builds gateways from application configuration.
type Factory struct {
	logger         *applog.Logger
	connectTimeout time.Duration
	publish        bool
}

type Option func(*Factory)

// WithoutEvents skips the AMQP publisher even when AMQP_URL is set.
func WithoutEvents() Option {
	return func(f *Factory) { f.publish = false }
}

// WithConnectTimeout bounds how long a SQL backend may take to answer.
func WithConnectTimeout(d time.Duration) Option {
	return func(f *Factory) { f.connectTimeout = d }
}

func NewFactory(logger *applog.Logger, opts ...Option) *Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	f := &Factory{
		logger:         logger.WithComponent(applog.ComponentBackend),
		connectTimeout: defaultConnectTimeout,
		publish:        true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build creates the gateway described by cfg. On error every resource
// opened so far is released.
func (f *Factory) Build(ctx context.Context, cfg *config.Config) (*Result, error) {
	if cfg == nil {
		return nil, errors.New("backend: config is nil")
	}

	var closers []io.Closer
	fail := func(err error) (*Result, error) {
		closeAll(closers)
		return nil, err
	}

	gw, closer, err := f.storage(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closer)

	gw, manager, closer, err := f.withCache(ctx, cfg, gw)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closer)

	var publisher services.EventPublisher
	if f.publish && cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger.Base())
		if err != nil {
			// Writes still succeed without the bus; the worker's poll
			// fallback catches up.
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events",
				applog.FieldError, err)
		} else {
			publisher = client
			closers = append(closers, client)
			f.logger.InfoContext(ctx, "Initialized AMQP publisher",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	svc := services.NewExpenseService(gw, publisher, f.logger.Base(), closers...)
	result := &Result{Gateway: svc, Cache: manager, Cleanup: svc.Close}
	if manager != nil {
		result.Cleanup = func() error {
			manager.Stop()
			return svc.Close()
		}
	}

	f.logger.InfoContext(ctx, "Backend ready",
		applog.FieldBackend, cfg.DataBackend,
		"cache", cfg.CacheBackend,
		"events", publisher != nil)
	return result, nil
}

func (f *Factory) storage(ctx context.Context, cfg *config.Config) (store.Gateway, io.Closer, error) {
	logger := f.logger.Base()
	switch cfg.DataBackend {
	case config.BackendPostgREST:
		client, err := postgrest.New(postgrest.Config{
			BaseURL: cfg.SupabaseURL,
			APIKey:  cfg.SupabaseKey,
			Logger:  logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize postgrest client: %w", err)
		}
		return client, nil, nil

	case config.BackendPostgres:
		if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		repo, err := postgres.Connect(ctx, cfg.DatabaseURL, f.connectTimeout, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return repo, repo, nil

	case config.BackendSQLite:
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return repo, repo, nil

	case config.BackendMemory:
		f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", cfg.DataDir)
		return memory.NewFromFiles(cfg.DataDir), nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
}

func (f *Factory) withCache(ctx context.Context, cfg *config.Config, gw store.Gateway) (store.Gateway, *cache.Manager, io.Closer, error) {
	switch cfg.CacheBackend {
	case config.CacheMemory:
		local := cache.NewLocalStore(localCacheEntries, cfg.CacheTTL)
		manager := cache.NewManager(f.logger.Base())
		manager.Register(local.Cleaner())
		manager.StartCleanup(cfg.CacheTTL)
		return cached.New(gw, local, cfg.CacheTTL, f.logger.Base()), manager, nil, nil

	case config.CacheRedis:
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		rs := cache.NewRedisStore(client, redisKeyPrefix)
		return cached.New(gw, rs, cfg.CacheTTL, f.logger.Base()), nil, rs, nil
	}
	return gw, nil, nil, nil
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if closers[i] != nil {
			_ = closers[i].Close()
		}
	}
}
