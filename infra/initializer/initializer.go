package initializer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coletivobank/coletivo/infra"
	infracache "github.com/coletivobank/coletivo/infra/cache"
	infraeventbus "github.com/coletivobank/coletivo/infra/eventbus"
	"github.com/coletivobank/coletivo/infra/metrics"
	infrarepository "github.com/coletivobank/coletivo/infra/repository"
	"github.com/coletivobank/coletivo/infra/repository/memory"
	"github.com/coletivobank/coletivo/internal/migrations"
	"github.com/coletivobank/coletivo/pkg/app"
	"github.com/coletivobank/coletivo/pkg/cache"
	"github.com/coletivobank/coletivo/pkg/config"
	"github.com/coletivobank/coletivo/pkg/domain/events"
	"github.com/coletivobank/coletivo/pkg/eventbus"
	"github.com/coletivobank/coletivo/pkg/repository"
	"github.com/redis/go-redis/v9"
)

// InitializeDependencies initializes all the application dependencies.
// Callers release them with deps.Close.
func InitializeDependencies(cfg *config.App) (
	deps *app.Deps,
	err error,
) {
	deps = &app.Deps{}
	logger := setupLogger(cfg.Log)
	deps.Logger = logger
	defer func() {
		if err != nil {
			_ = deps.Close()
			deps = nil
		}
	}()

	deps.Uow, err = initUnitOfWork(cfg, deps, logger)
	if err != nil {
		return deps, err
	}

	client := initRedis(cfg.Redis, logger)
	if client != nil {
		deps.Closers = append(deps.Closers, client.Close)
	}

	deps.EventBus, err = initEventBus(cfg.Redis, client, deps, logger)
	if err != nil {
		return deps, fmt.Errorf("failed to create event bus: %w", err)
	}
	deps.Drafts = initDraftStore(cfg.Redis, client, deps, logger)
	deps.Metrics = metrics.New()

	logger.Info("Dependencies initialized",
		"db_driver", cfg.DB.Driver,
		"redis", client != nil,
	)
	return deps, nil
}

func initUnitOfWork(cfg *config.App, deps *app.Deps, logger *slog.Logger) (repository.UnitOfWork, error) {
	if cfg.DB.Driver == "memory" {
		logger.Warn("Using the in-memory store; data is lost on restart")
		return memory.NewUoW(), nil
	}

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	deps.Closers = append(deps.Closers, sqlDB.Close)

	if cfg.DB.Migrate {
		if err := migrations.Up(sqlDB); err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("Database schema is up to date")
	}

	return infrarepository.NewUoW(
		db,
		infrarepository.WithMaxRetries(cfg.DB.MaxRetries),
		infrarepository.WithLogger(logger),
	), nil
}

// initRedis returns nil when Redis is not configured or not reachable, and
// the callers fall back to in-process implementations.
func initRedis(cfg *config.Redis, logger *slog.Logger) *redis.Client {
	if cfg == nil || cfg.URL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		logger.Warn("Invalid REDIS_URL, falling back to memory", "error", err)
		return nil
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable, falling back to memory", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

func initEventBus(
	cfg *config.Redis,
	client *redis.Client,
	deps *app.Deps,
	logger *slog.Logger,
) (eventbus.Bus, error) {
	if client == nil {
		return infraeventbus.NewWithMemory(logger), nil
	}
	bus, err := infraeventbus.NewWithRedis(client, cfg.KeyPrefix, events.EventTypes, logger,
		infraeventbus.WithConsumer(cfg.Consumer),
		infraeventbus.WithClaimIdle(cfg.ClaimIdle),
	)
	if err != nil {
		return nil, err
	}
	deps.Closers = append(deps.Closers, bus.Close)
	return bus, nil
}

func initDraftStore(
	cfg *config.Redis,
	client *redis.Client,
	deps *app.Deps,
	logger *slog.Logger,
) cache.DraftStore {
	if client != nil {
		return infracache.NewRedisDraftStore(client, cfg.KeyPrefix, logger)
	}
	store := infracache.NewMemoryDraftStore(time.Minute)
	deps.Closers = append(deps.Closers, func() error {
		store.Close()
		return nil
	})
	return store
}
