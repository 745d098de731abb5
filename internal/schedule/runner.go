package schedule

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/walshy828/oil-analysis/config"
	"github.com/walshy828/oil-analysis/internal/usage"
)

// Recalculator is the usage engine's invocation surface.
type Recalculator interface {
	Recalculate(ctx context.Context, locationID uint, days int) error
}

// LocationLister lists the locations to recalculate.
type LocationLister interface {
	Locations(ctx context.Context) ([]usage.Location, error)
}

// Runner executes the nightly usage recalculation: every location, one
// rolling window each, committing per location so one failure never
// rolls back the others.
type Runner struct {
	store  LocationLister
	recalc Recalculator
	cfg    config.ScheduleConfig
	clock  clockwork.Clock
	log    *zap.Logger
}

func NewRunner(store LocationLister, recalc Recalculator, cfg config.ScheduleConfig, log *zap.Logger) *Runner {
	return NewRunnerWithClock(store, recalc, cfg, clockwork.NewRealClock(), log)
}

// NewRunnerWithClock is NewRunner with an injected clock for tests.
func NewRunnerWithClock(store LocationLister, recalc Recalculator, cfg config.ScheduleConfig, clock clockwork.Clock, log *zap.Logger) *Runner {
	return &Runner{
		store:  store,
		recalc: recalc,
		cfg:    cfg,
		clock:  clock,
		log:    log,
	}
}

// Start schedules RunOnce at the configured UTC hour, then every 24
// hours, until ctx is cancelled. The first run waits for the schedule;
// recalculation is idempotent, so there is no catch-up logic.
func (r *Runner) Start(ctx context.Context) {
	go func() {
		for {
			wait := r.untilNextRun()
			select {
			case <-ctx.Done():
				return
			case <-r.clock.After(wait):
			}

			r.RunOnce(ctx)
		}
	}()
}

func (r *Runner) untilNextRun() time.Duration {
	now := r.clock.Now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), r.cfg.Hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// RunOnce recalculates the rolling window for every location. Failures
// are logged and skipped; the batch always finishes.
func (r *Runner) RunOnce(ctx context.Context) {
	r.log.Info("starting scheduled daily usage update",
		zap.Int("window_days", r.cfg.WindowDays))

	locations, err := r.store.Locations(ctx)
	if err != nil {
		r.log.Error("scheduled update failed to list locations", zap.Error(err))
		return
	}

	for _, loc := range locations {
		r.log.Info("updating usage for location",
			zap.String("name", loc.Name), zap.Uint("location_id", loc.ID))

		if err := r.recalc.Recalculate(ctx, loc.ID, r.cfg.WindowDays); err != nil {
			r.log.Error("error updating usage for location",
				zap.Uint("location_id", loc.ID), zap.Error(err))
			continue
		}
	}

	r.log.Info("scheduled daily usage update completed")
}
