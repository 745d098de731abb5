package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/walshy828/oil-analysis/config"
)

// Thresholds for the sustained high-level noise scan. Point-wise
// classification misses days where the sensor sits near full and
// jitters; the pre-clean pass catches those retroactively.
const (
	precleanMinReadings = 3
	precleanMeanGal     = 225.0
	precleanStddevGal   = 1.0
	precleanDefaultDays = 2 * 365
)

// Normalizer rebuilds the daily usage series for a location from tank
// readings, delivery orders, and temperatures. Recalculation is a
// delete-and-replace over the target range, so re-running it with
// unchanged inputs yields identical rows.
type Normalizer struct {
	store Store
	cfg   config.UsageConfig
	clock clockwork.Clock
	log   *zap.Logger

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewNormalizer(store Store, cfg config.UsageConfig, log *zap.Logger) *Normalizer {
	return newNormalizer(store, cfg, clockwork.NewRealClock(), log)
}

// NewNormalizerWithClock is NewNormalizer with an injected clock for tests.
func NewNormalizerWithClock(store Store, cfg config.UsageConfig, clock clockwork.Clock, log *zap.Logger) *Normalizer {
	return newNormalizer(store, cfg, clock, log)
}

func newNormalizer(store Store, cfg config.UsageConfig, clock clockwork.Clock, log *zap.Logger) *Normalizer {
	return &Normalizer{
		store: store,
		cfg:   cfg,
		clock: clock,
		log:   log,
		locks: make(map[uint]*sync.Mutex),
	}
}

// locationLock returns the mutex serializing recalculation for one
// location. Recalculation is delete-then-insert against a shared table;
// two concurrent runs for the same location would race.
func (n *Normalizer) locationLock(locationID uint) *sync.Mutex {
	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := n.locks[locationID]
	if !ok {
		l = &sync.Mutex{}
		n.locks[locationID] = l
	}
	return l
}

// Recalculate rebuilds the daily usage rows for a location. days <= 0
// recalculates the full history; otherwise only rows within the recent
// window are deleted, and intervals wholly before the window are
// skipped. An interval straddling the window boundary is recomputed in
// full, which is safe because the recompute is idempotent.
func (n *Normalizer) Recalculate(ctx context.Context, locationID uint, days int) error {
	lock := n.locationLock(locationID)
	lock.Lock()
	defer lock.Unlock()

	n.log.Info("recalculating usage",
		zap.Uint("location_id", locationID), zap.Int("days", days))

	today := DateOf(n.clock.Now())

	var startLimit *time.Time
	if days > 0 {
		t := today.AddDate(0, 0, -days)
		startLimit = &t
	}

	// Flag sustained high-level noise before anything reads the
	// readings. Committed outside the main transaction, the same way
	// ingestion-time flags are: flags describe the readings, not this
	// recalculation run.
	if err := n.preClean(ctx, locationID, startLimit, today); err != nil {
		return fmt.Errorf("pre-clean readings: %w", err)
	}

	return n.store.InTransaction(ctx, func(s Store) error {
		if err := s.DeleteDailyUsage(ctx, locationID, startLimit); err != nil {
			return fmt.Errorf("delete usage range: %w", err)
		}

		orders, err := s.Orders(ctx, locationID)
		if err != nil {
			return fmt.Errorf("read orders: %w", err)
		}

		if len(orders) == 0 {
			n.log.Warn("no orders for location, falling back to raw sensor data",
				zap.Uint("location_id", locationID))
			start := today.AddDate(0, 0, -precleanDefaultDays)
			if startLimit != nil {
				start = *startLimit
			}
			rows, err := n.processOpenEnded(ctx, s, locationID, start)
			if err != nil {
				return err
			}
			return s.InsertDailyUsage(ctx, rows)
		}

		var prevStart *time.Time
		for i, order := range orders {
			current := DateOf(order.StartDate)

			var start time.Time
			if i == 0 {
				// Bootstrap: the 30 days before the first order form
				// their own interval.
				start = current.AddDate(0, 0, -30)
			} else {
				start = DateOf(orders[i-1].StartDate)
			}

			if startLimit != nil && current.Before(*startLimit) {
				prevStart = &current
				continue
			}

			rows, err := n.distributeInterval(ctx, s, locationID, start, current, order.Gallons)
			if err != nil {
				return fmt.Errorf("interval %s: %w", start.Format("2006-01-02"), err)
			}
			if err := s.InsertDailyUsage(ctx, rows); err != nil {
				return fmt.Errorf("insert interval rows: %w", err)
			}
			prevStart = &current
		}

		if prevStart != nil {
			rows, err := n.processOpenEnded(ctx, s, locationID, *prevStart)
			if err != nil {
				return fmt.Errorf("open interval: %w", err)
			}
			if err := s.InsertDailyUsage(ctx, rows); err != nil {
				return fmt.Errorf("insert open interval rows: %w", err)
			}
		}

		return nil
	})
}

// preClean scans whole days of readings and retroactively marks every
// reading anomalous on days where the tank sits near full with an
// erratic signal (mean > 225 gal and stddev > 1.0).
func (n *Normalizer) preClean(ctx context.Context, locationID uint, startLimit *time.Time, today time.Time) error {
	queryStart := today.AddDate(0, 0, -precleanDefaultDays)
	if startLimit != nil {
		queryStart = *startLimit
	}

	n.log.Info("scanning for high-level sensor noise",
		zap.Uint("location_id", locationID), zap.Time("since", queryStart))

	readings, err := n.store.ReadingsBetween(ctx, locationID, queryStart, today.AddDate(0, 0, 1))
	if err != nil {
		return err
	}

	byDay := make(map[time.Time][]Reading)
	for _, r := range readings {
		if r.IsAnomaly {
			continue
		}
		day := DateOf(r.Timestamp)
		byDay[day] = append(byDay[day], r)
	}

	var ids []uint
	for day, dayReadings := range byDay {
		if len(dayReadings) <= precleanMinReadings {
			continue
		}
		vals := make([]float64, len(dayReadings))
		for i, r := range dayReadings {
			vals[i] = r.Gallons
		}
		avg := mean(vals)
		sd := stddev(vals)
		if avg > precleanMeanGal && sd > precleanStddevGal {
			n.log.Info("marking day as high-level noise",
				zap.Time("day", day),
				zap.Int("readings", len(dayReadings)),
				zap.Float64("avg", avg),
				zap.Float64("stddev", sd))
			for _, r := range dayReadings {
				ids = append(ids, r.ID)
			}
		}
	}

	if len(ids) == 0 {
		return nil
	}
	return n.store.MarkReadingsAnomalous(ctx, ids)
}
