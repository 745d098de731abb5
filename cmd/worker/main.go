package main

import (
	"context"

	"github.com/walshy828/oil-analysis/config"
	"github.com/walshy828/oil-analysis/internal/gauge"
	"github.com/walshy828/oil-analysis/internal/ingest"
	"github.com/walshy828/oil-analysis/internal/schedule"
	"github.com/walshy828/oil-analysis/internal/usage"
	"github.com/walshy828/oil-analysis/logger"
	"github.com/walshy828/oil-analysis/pkg/storage/postgres"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	client, err := postgres.InitializeAndMigrate(cfg.Postgres, cfg.Log.Environment, true)
	if err != nil {
		log.Fatal("failed to connect to DB", zap.Error(err))
	}
	defer client.Close()

	store := client.Store()
	ingestSvc := ingest.NewService(store, cfg.Usage, log)
	normalizer := usage.NewNormalizer(store, cfg.Usage, log)

	// live tank-level collection
	if err := gauge.StartCollector(cfg, store, ingestSvc, log); err != nil {
		log.Fatal("gauge collector failed", zap.Error(err))
	}

	// nightly usage recalculation
	runner := schedule.NewRunner(store, normalizer, cfg.Schedule, log)
	runner.Start(context.Background())

	select {}
}
