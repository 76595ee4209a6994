// Command prune removes stale users once and exits. The server prunes on a
// schedule; this is for running it by hand or from cron.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"aiostreams/internal/logging"
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

	maxDays := flag.Int("max-days", settings.PruneMaxDays, "delete users not seen for this many days")
	flag.Parse()

	logger, err := logging.New(settings.LogLevel, settings.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store := database.NewHandle()
	if err := store.Initialise(ctx, settings.DatabaseURI); err != nil {
		logger.Fatal("failed to initialise database", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	n, err := users.NewRepo(store).PruneUsers(ctx, *maxDays)
	if err != nil {
		logger.Fatal("prune failed", zap.Error(err))
	}
	logger.Info("pruned users", zap.Int64("count", n), zap.Int("max_days", *maxDays))
}
