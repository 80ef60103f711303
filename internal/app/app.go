// Package app wires configuration into the running components shared by the
// server binary and the command line tool.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/auth"
	"smc-signal-engine/internal/binance"
	"smc-signal-engine/internal/cache"
	"smc-signal-engine/internal/database"
	"smc-signal-engine/internal/events"
	"smc-signal-engine/internal/metrics"
	"smc-signal-engine/internal/scanner"
	"smc-signal-engine/internal/signals"
	"smc-signal-engine/internal/strategy"
)

// App holds every long-lived component
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Recorder
	EventBus *events.EventBus
	Source   binance.MarketDataSource
	Cache    *cache.CacheService
	DB       *database.DB
	Store    signals.Store
	Data     *scanner.TimeframeManager
	Engine   *strategy.Engine
	Scanner  *scanner.Scanner
	JWT      *auth.JWTManager
}

// New builds the application. Components that cannot connect fail the
// build, except the Redis cache which degrades.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		EventBus: events.NewEventBus(),
	}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if cfg.MetricsConfig.Enabled {
		a.Metrics = metrics.New(cfg.MetricsConfig.Namespace, a.Registry)
	}

	a.Source = binance.NewMarketDataSource(cfg.BinanceConfig, logger)

	if cfg.RedisConfig.Enabled {
		cs, err := cache.NewCacheService(cfg.RedisConfig, logger)
		if err != nil {
			return nil, err
		}
		a.Cache = cs
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	scanCfg := scanner.ConfigFromApp(cfg)
	var remote scanner.RemoteCache
	if a.Cache != nil {
		remote = a.Cache
	}
	a.Data = scanner.NewTimeframeManager(a.Source, remote, scanCfg.CacheTTL, a.Metrics, logger)
	a.Engine = strategy.NewEngine(strategy.ConfigFromApp(cfg))
	a.Scanner = scanner.NewScanner(a.Source, a.Data, a.Engine, a.Store, a.EventBus, a.Metrics, scanCfg, logger)

	if cfg.AuthConfig.Enabled {
		jwtManager, err := auth.NewJWTManager(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.Issuer, cfg.AuthConfig.AccessTokenDuration)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.JWT = jwtManager
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context) (signals.Store, error) {
	cfg := a.Config
	switch cfg.SignalsConfig.Store {
	case "memory", "":
		return signals.NewMemoryStore(), nil

	case "redis":
		if a.Cache == nil {
			return nil, errors.New("signals.store=redis requires redis.enabled")
		}
		return signals.NewRedisStore(a.Cache.Client(), cfg.SignalsConfig.KeyPrefix), nil

	case "postgres":
		d := cfg.DatabaseConfig
		db, err := database.NewDB(ctx, database.Config{
			Host:     d.Host,
			Port:     d.Port,
			User:     d.User,
			Password: d.Password,
			Database: d.Database,
			SSLMode:  d.SSLMode,
		}, a.Logger)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.DB = db
		return database.NewSignalStore(db), nil
	}
	return nil, fmt.Errorf("unknown signal store %q", cfg.SignalsConfig.Store)
}

// HealthChecks returns a probe per external dependency
func (a *App) HealthChecks() map[string]func(ctx context.Context) error {
	checks := make(map[string]func(ctx context.Context) error)
	if a.DB != nil {
		checks["database"] = a.DB.HealthCheck
	}
	if a.Cache != nil {
		checks["redis"] = func(ctx context.Context) error {
			if !a.Cache.IsHealthy() {
				return cache.ErrUnavailable
			}
			return nil
		}
	}
	if c, ok := a.Source.(*binance.Client); ok {
		checks["binance"] = func(ctx context.Context) error {
			if state := c.BreakerState(); state == "open" {
				return fmt.Errorf("circuit %s", state)
			}
			return nil
		}
	}
	return checks
}

// Close stops the scanner and releases connections
func (a *App) Close() {
	if a.Scanner != nil {
		a.Scanner.Stop()
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close Redis")
		}
	}
}
