package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/walshy828/oil-analysis/internal/usage"
)

// Store implements the data access the usage engine, ingestion, and
// the nightly job need, on top of a gorm connection or transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// InTransaction satisfies usage.Store: fn runs against a transactional
// view, committed on nil and rolled back on error.
func (s *Store) InTransaction(ctx context.Context, fn func(usage.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Locations(ctx context.Context) ([]usage.Location, error) {
	var recs []LocationRecord
	err := s.db.WithContext(ctx).Order("id").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	out := make([]usage.Location, len(recs))
	for i, rec := range recs {
		out[i] = toLocation(rec)
	}
	return out, nil
}

func (s *Store) LocationByID(ctx context.Context, id uint) (*usage.Location, error) {
	var rec LocationRecord
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if err != nil {
		return nil, fmt.Errorf("location %d: %w", id, err)
	}
	loc := toLocation(rec)
	return &loc, nil
}

func (s *Store) ReadingsBetween(ctx context.Context, locationID uint, from, to time.Time) ([]usage.Reading, error) {
	return s.readings(ctx, locationID, from, to, false)
}

func (s *Store) ValidReadingsBetween(ctx context.Context, locationID uint, from, to time.Time) ([]usage.Reading, error) {
	return s.readings(ctx, locationID, from, to, true)
}

func (s *Store) readings(ctx context.Context, locationID uint, from, to time.Time, validOnly bool) ([]usage.Reading, error) {
	q := s.db.WithContext(ctx).
		Where("location_id = ? AND timestamp >= ? AND timestamp < ?", locationID, from, to)
	if validOnly {
		q = q.Where("is_anomaly = ? AND is_fill_event = ?", false, false)
	}

	var recs []TankReadingRecord
	if err := q.Order("timestamp").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("read readings: %w", err)
	}
	out := make([]usage.Reading, len(recs))
	for i, rec := range recs {
		out[i] = toReading(rec)
	}
	return out, nil
}

// ReadingAt returns the reading with the exact timestamp, or nil when
// none exists.
func (s *Store) ReadingAt(ctx context.Context, locationID uint, ts time.Time) (*usage.Reading, error) {
	var rec TankReadingRecord
	err := s.db.WithContext(ctx).
		Where("location_id = ? AND timestamp = ?", locationID, ts).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading at %s: %w", ts.Format(time.RFC3339), err)
	}
	r := toReading(rec)
	return &r, nil
}

// ReadingTimes returns every reading timestamp for a location, for
// import-side deduplication.
func (s *Store) ReadingTimes(ctx context.Context, locationID uint) ([]time.Time, error) {
	var times []time.Time
	err := s.db.WithContext(ctx).
		Model(&TankReadingRecord{}).
		Where("location_id = ?", locationID).
		Pluck("timestamp", &times).Error
	if err != nil {
		return nil, fmt.Errorf("read reading times: %w", err)
	}
	return times, nil
}

// InsertReadings persists readings, silently skipping rows whose
// (location, timestamp) already exists. Returns the number inserted.
func (s *Store) InsertReadings(ctx context.Context, rows []usage.Reading) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	recs := make([]TankReadingRecord, len(rows))
	for i, r := range rows {
		recs[i] = toReadingRecord(r)
		recs[i].ID = 0
	}

	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "location_id"},
			{Name: "timestamp"},
		},
		DoNothing: true,
	}).Create(&recs)

	if tx.Error != nil {
		return 0, fmt.Errorf("insert readings: %w", tx.Error)
	}
	return int(tx.RowsAffected), nil
}

func (s *Store) MarkReadingsAnomalous(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&TankReadingRecord{}).
		Where("id IN ?", ids).
		Update("is_anomaly", true).Error
	if err != nil {
		return fmt.Errorf("mark readings anomalous: %w", err)
	}
	return nil
}

func (s *Store) Orders(ctx context.Context, locationID uint) ([]usage.Order, error) {
	var recs []OilOrderRecord
	err := s.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("start_date").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	out := make([]usage.Order, len(recs))
	for i, rec := range recs {
		out[i] = toOrder(rec)
	}
	return out, nil
}

func (s *Store) TemperatureRange(ctx context.Context, locationID uint, from, to time.Time) ([]usage.TemperatureDay, error) {
	var recs []TemperatureRecord
	err := s.db.WithContext(ctx).
		Where("location_id = ? AND date >= ? AND date < ?", locationID, from, to).
		Order("date").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("read temperatures: %w", err)
	}
	out := make([]usage.TemperatureDay, len(recs))
	for i, rec := range recs {
		out[i] = toTemperatureDay(rec)
	}
	return out, nil
}

// ConfirmedUsageTotals sums gallons and HDD over sensor-confirmed daily
// usage rows since the cutoff, feeding the k-factor estimate.
func (s *Store) ConfirmedUsageTotals(ctx context.Context, locationID uint, since time.Time) (float64, float64, error) {
	var totals struct {
		Gallons float64
		HDD     float64
	}
	err := s.db.WithContext(ctx).
		Model(&DailyUsageRecord{}).
		Select("COALESCE(SUM(gallons), 0) AS gallons, COALESCE(SUM(hdd), 0) AS hdd").
		Where("location_id = ? AND date >= ?", locationID, since).
		Where("source NOT LIKE ?", "hdd%").
		Where("gallons > 0").
		Scan(&totals).Error
	if err != nil {
		return 0, 0, fmt.Errorf("confirmed usage totals: %w", err)
	}
	return totals.Gallons, totals.HDD, nil
}

func (s *Store) DeleteDailyUsage(ctx context.Context, locationID uint, from *time.Time) error {
	q := s.db.WithContext(ctx).Where("location_id = ?", locationID)
	if from != nil {
		q = q.Where("date >= ?", *from)
	}
	if err := q.Delete(&DailyUsageRecord{}).Error; err != nil {
		return fmt.Errorf("delete daily usage: %w", err)
	}
	return nil
}

// InsertDailyUsage writes usage rows, overwriting any existing row for
// the same (location, date). A windowed recalculation recomputes a
// straddling interval in full, so its pre-window days must replace the
// rows that survived the windowed delete.
func (s *Store) InsertDailyUsage(ctx context.Context, rows []usage.DailyUsage) error {
	if len(rows) == 0 {
		return nil
	}
	recs := make([]DailyUsageRecord, len(rows))
	for i, row := range rows {
		recs[i] = toUsageRecord(row)
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "location_id"},
			{Name: "date"},
		},
		UpdateAll: true,
	}).Create(&recs).Error
	if err != nil {
		return fmt.Errorf("insert daily usage: %w", err)
	}
	return nil
}
