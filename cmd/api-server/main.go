package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"aiostreams/internal/engine"
	"aiostreams/internal/lifecycle"
	"aiostreams/internal/logging"
	"aiostreams/internal/metrics"
	"aiostreams/internal/prune"
	"aiostreams/internal/ratelimit"
	"aiostreams/internal/server"
	"aiostreams/internal/users"
	"aiostreams/pkg/database"
	"aiostreams/pkg/utils"
)

func main() {
	settings, err := utils.LoadSettings()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(settings.LogLevel, settings.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	store := database.NewHandle()
	m := metrics.New()

	tokenSvc := users.TokenService{
		Secret:   []byte(settings.JWTSecret),
		Issuer:   settings.JWTIssuer,
		Duration: settings.JWTDuration,
	}

	eng := engine.NewAggregator(engine.NewHTTPSource(settings.EngineFetchTimeout), logger.Named("engine"))

	limiter := ratelimit.New(settings.ManifestRateWindow, settings.ManifestRateMax, m)
	go limiter.Sweep(ctx, 10*settings.ManifestRateWindow)

	router := server.NewRouter(server.Deps{
		Settings: &settings,
		Store:    store,
		Tokens:   tokenSvc,
		Engine:   eng,
		Limiter:  limiter,
		Metrics:  m,
		Logger:   logger,
	})

	pruner := prune.NewScheduler(
		users.NewRepo(store),
		settings.PruneInterval,
		settings.PruneMaxDays,
		logger.Named("prune"),
		m,
	)

	orch := lifecycle.New(&settings, router, store, pruner, logger)
	if err := orch.Run(ctx); err != nil {
		logger.Error("service stopped", zap.Error(err))
	}
}
