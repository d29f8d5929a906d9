// Command flagd serves flag evaluations from PostgreSQL over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/flagkit/pkg/apikey"
	"github.com/dmitrymomot/flagkit/pkg/config"
	"github.com/dmitrymomot/flagkit/pkg/httpserver"
	"github.com/dmitrymomot/flagkit/pkg/logger"
	"github.com/dmitrymomot/flagkit/pkg/pg"
	"github.com/dmitrymomot/flagkit/pkg/redis"
	"github.com/dmitrymomot/flagkit/svc/flags"
	"github.com/dmitrymomot/flagkit/svc/flags/api"
	"github.com/dmitrymomot/flagkit/svc/flags/keycache"
	"github.com/dmitrymomot/flagkit/svc/flags/pgstore"
)

type appConfig struct {
	Env          string `env:"APP_ENV" envDefault:"development"`
	LogLevel     string `env:"LOG_LEVEL"`
	APIKeySecret string `env:"APIKEY_SECRET,required"`

	HTTP     httpserver.Config
	Postgres pg.Config
	Redis    redis.Config
	KeyCache keycache.Config
}

func main() {
	cfg, err := config.Load[appConfig]()
	if err != nil {
		slog.Error("load configuration", logger.Error(err))
		os.Exit(1)
	}

	log := logger.New(
		logger.WithEnvironment(cfg.Env, "flagd"),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithContextExtractors(api.RequestIDExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("flagd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pgstore.Migrate(ctx, pool, cfg.Postgres, log); err != nil {
		return err
	}

	checks := map[string]httpserver.Check{"postgres": pg.Healthcheck(pool)}

	var client goredis.UniversalClient
	if cfg.KeyCache.Driver == keycache.DriverRedis {
		rc, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		client = rc
		checks["redis"] = redis.Healthcheck(rc)
	}

	envCache, err := keycache.New(cfg.KeyCache, client)
	if err != nil {
		return err
	}

	keys, err := apikey.New(cfg.APIKeySecret)
	if err != nil {
		return errors.Join(errors.New("APIKEY_SECRET"), err)
	}

	svc := flags.NewService(
		pgstore.New(pool, cfg.Postgres),
		flags.WithLogger(log),
		flags.WithKeyGenerator(keys),
		flags.WithEnvironmentCache(envCache),
	)

	routes := api.New(svc, api.WithLogger(log), api.WithReadinessChecks(checks)).Routes()

	// Signals are handled by ctx.
	srv := httpserver.New(cfg.HTTP, httpserver.WithLogger(log), httpserver.WithSignals())
	return srv.Run(ctx, routes)
}
