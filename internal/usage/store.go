package usage

import (
	"context"
	"time"
)

// Store is the persistence boundary of the normalization engine. The
// engine assumes valid location IDs and sorted, non-overlapping orders;
// validating those is the caller's job.
type Store interface {
	// ReadingsBetween returns readings in [from, to) ordered by
	// ascending timestamp, including flagged ones.
	ReadingsBetween(ctx context.Context, locationID uint, from, to time.Time) ([]Reading, error)

	// ValidReadingsBetween is ReadingsBetween restricted to readings
	// not flagged as anomalies or fill events.
	ValidReadingsBetween(ctx context.Context, locationID uint, from, to time.Time) ([]Reading, error)

	// MarkReadingsAnomalous flips is_anomaly on the given readings.
	MarkReadingsAnomalous(ctx context.Context, ids []uint) error

	// Orders returns a location's delivery orders sorted by start date.
	Orders(ctx context.Context, locationID uint) ([]Order, error)

	// TemperatureRange returns daily temperatures with dates in [from, to).
	TemperatureRange(ctx context.Context, locationID uint, from, to time.Time) ([]TemperatureDay, error)

	// ConfirmedUsageTotals aggregates gallons and HDD over daily usage
	// rows since the given date whose source is sensor-confirmed
	// (not HDD-estimated) and whose gallons are positive.
	ConfirmedUsageTotals(ctx context.Context, locationID uint, since time.Time) (gallons, hdd float64, err error)

	// DeleteDailyUsage removes daily usage rows for the location. A nil
	// from deletes the full history, otherwise rows dated >= from.
	DeleteDailyUsage(ctx context.Context, locationID uint, from *time.Time) error

	// InsertDailyUsage persists reconciled rows, replacing any existing
	// row with the same location and date.
	InsertDailyUsage(ctx context.Context, rows []DailyUsage) error

	// InTransaction runs fn against a transactional view of the store,
	// committing on nil and rolling back on error.
	InTransaction(ctx context.Context, fn func(Store) error) error
}
