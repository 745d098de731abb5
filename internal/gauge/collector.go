package gauge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/walshy828/oil-analysis/config"
	"github.com/walshy828/oil-analysis/internal/ingest"
	"github.com/walshy828/oil-analysis/internal/usage"
	gaugeapi "github.com/walshy828/oil-analysis/pkg/gauge"
)

// LocationLister is the slice of the store the collector needs.
type LocationLister interface {
	Locations(ctx context.Context) ([]usage.Location, error)
}

// StartCollector wires the live tank-level pipeline: backfills recent
// history over REST for every location linked to a gauge tank, then
// subscribes to the vendor's WebSocket level stream. Incoming samples
// go through ingestion so they are classified and deduplicated like any
// other reading.
func StartCollector(cfg *config.Config, store LocationLister, ing *ingest.Service, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Gauge.REST.Timeout)
	locations, err := store.Locations(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("list locations: %w", err)
	}

	locationByTank := make(map[string]uint)
	for _, loc := range locations {
		if loc.GaugeTankID != "" {
			locationByTank[loc.GaugeTankID] = loc.ID
		}
	}
	if len(locationByTank) == 0 {
		logger.Warn("no locations linked to a gauge tank, collector idle")
		return nil
	}

	restClient := gaugeapi.NewRESTClient(cfg.Gauge.REST.BaseURL, cfg.Gauge.REST.Timeout)

	// Backfill the recent window so a restart doesn't leave a gap.
	end := time.Now()
	start := end.Add(-48 * time.Hour)

	var topics []string
	for tankID, locationID := range locationByTank {
		backfill(cfg, restClient, ing, logger, tankID, locationID, start, end)
		topics = append(topics, fmt.Sprintf("level.%s", tankID))
	}

	wsClient := gaugeapi.NewWSClient(cfg.Gauge.WS.URL, logger)
	wsClient.SetMessageHandler(MakeMessageHandler(logger, ing, locationByTank))

	if err := wsClient.Connect(topics); err != nil {
		return err
	}
	go wsClient.Listen() // explicitly start listener

	return nil
}

func backfill(cfg *config.Config, restClient *gaugeapi.RESTClient, ing *ingest.Service,
	logger *zap.Logger, tankID string, locationID uint, start, end time.Time) {

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Gauge.REST.Timeout)
	samples, err := restClient.GetLevelHistory(ctx, tankID, start, end)
	cancel()
	if err != nil {
		logger.Warn("failed to backfill level history",
			zap.String("tank_id", tankID), zap.Error(err))
		return
	}

	var failed bool
	for _, sample := range samples {
		dbCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := ing.AddReading(dbCtx, locationID, sample.Gallons, time.UnixMilli(sample.Timestamp).UTC())
		cancel()
		if err != nil {
			logger.Warn("failed to store backfilled reading",
				zap.String("tank_id", tankID), zap.Error(err))
			failed = true
		}
	}

	if failed {
		logger.Warn("backfill finished with errors", zap.String("tank_id", tankID))
	} else {
		logger.Info("backfill completed",
			zap.String("tank_id", tankID), zap.Int("samples", len(samples)))
	}
}
