package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/leozw/domain-guardian/internal/auth"
	"github.com/leozw/domain-guardian/internal/checker"
	"github.com/leozw/domain-guardian/internal/config"
	"github.com/leozw/domain-guardian/internal/lifecycle"
	"github.com/leozw/domain-guardian/internal/metrics"
	"github.com/leozw/domain-guardian/internal/registry"
	"github.com/leozw/domain-guardian/internal/routing"
	"github.com/leozw/domain-guardian/internal/scheduler"
	"github.com/leozw/domain-guardian/internal/storage/postgres"
	"github.com/leozw/domain-guardian/internal/storage/redis"
)

// App holds the components shared by the api and sweeper binaries.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Prometheus *prometheus.Registry
	Metrics    *metrics.Collector

	Registry   *registry.Registry
	Controller *lifecycle.Controller
	Sweeper    *scheduler.Sweeper
	Resolver   *routing.Resolver

	db    *postgres.DB
	cache *redis.Client
}

// New wires the application. Without a database URL records live in memory,
// without a redis URL resolve lookups are not cached.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:     cfg,
		Logger:     logger,
		Prometheus: prometheus.NewRegistry(),
	}
	a.Prometheus.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewCollector(cfg.Mimir, a.Prometheus, logger)

	var (
		store  registry.Store
		spaces routing.SpaceDirectory
	)
	if cfg.Database.URL != "" {
		db, err := postgres.NewConnection(cfg.Database.URL, cfg.Database.MaxConnections, cfg.Database.MaxIdleConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db

		if cfg.Database.AutoMigrate {
			if err := db.Migrate(); err != nil {
				a.Close()
				return nil, err
			}
		}
		store = postgres.NewDomainRepo(db)
		spaces = postgres.NewSpaceRepo(db)
	} else {
		logger.Warn("No database configured, custom domains are kept in memory")
		store = registry.NewMemoryStore()
		spaces = routing.NewMemoryDirectory()
	}

	var opts []registry.Option
	var cache routing.Cache
	if cfg.Redis.URL != "" {
		a.cache = redis.NewClient(cfg.Redis.URL)
		resolveCache := redis.NewResolveCache(a.cache, cfg.Redis.ResolveTTL, logger)
		cache = resolveCache
		opts = append(opts, registry.WithChangeHook(routing.InvalidateHook(resolveCache)))
	}

	a.Registry = registry.New(store, opts...)

	verifier := checker.NewDNSVerifier(checker.DNSVerifierConfig{
		Servers: cfg.DNS.Servers,
		Timeout: cfg.DNS.Timeout,
		Targets: cfg.DNS.Targets,
	}, logger)

	gate := auth.NewAdminGate(cfg.Admin.Secret)
	if !gate.Configured() {
		logger.Warn("No admin secret configured, admin operations are disabled")
	}

	a.Controller = lifecycle.NewController(a.Registry, verifier, gate, a.Metrics, logger)
	a.Sweeper = scheduler.NewSweeper(a.Registry, verifier, a.Controller, gate, a.Metrics, logger, scheduler.SweeperConfig{
		Concurrency:      cfg.Sweep.Concurrency,
		QueriesPerSecond: cfg.Sweep.QueriesPerSecond,
	})
	a.Resolver = routing.NewResolver(a.Registry, spaces, cache, logger)

	return a, nil
}

func (a *App) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.Logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Warn("Failed to close database", zap.Error(err))
		}
	}
}
