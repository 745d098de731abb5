package main

import (
	"context"
	"flag"

	"github.com/walshy828/oil-analysis/config"
	"github.com/walshy828/oil-analysis/internal/usage"
	"github.com/walshy828/oil-analysis/logger"
	"github.com/walshy828/oil-analysis/pkg/storage/postgres"

	"go.uber.org/zap"
)

// Administrative trigger: rebuild the daily usage series for one
// location on demand. days=0 recalculates the full history.
func main() {
	locationID := flag.Uint("location", 0, "location ID to recalculate")
	days := flag.Int("days", 0, "recent window in days (0 = full history)")
	flag.Parse()

	cfg := config.Load()

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	if *locationID == 0 {
		log.Fatal("-location is required")
	}

	client, err := postgres.InitializeAndMigrate(cfg.Postgres, cfg.Log.Environment, false)
	if err != nil {
		log.Fatal("failed to connect to DB", zap.Error(err))
	}
	defer client.Close()

	normalizer := usage.NewNormalizer(client.Store(), cfg.Usage, log)
	if err := normalizer.Recalculate(context.Background(), *locationID, *days); err != nil {
		log.Fatal("recalculation failed",
			zap.Uint("location_id", *locationID), zap.Error(err))
	}

	log.Info("recalculation complete",
		zap.Uint("location_id", *locationID), zap.Int("days", *days))
}
