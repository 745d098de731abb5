package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/walshy828/oil-analysis/config"
	"github.com/walshy828/oil-analysis/internal/usage"
)

// Store is what ingestion needs from persistence.
type Store interface {
	LocationByID(ctx context.Context, id uint) (*usage.Location, error)
	ReadingAt(ctx context.Context, locationID uint, ts time.Time) (*usage.Reading, error)
	ReadingTimes(ctx context.Context, locationID uint) ([]time.Time, error)
	ReadingsBetween(ctx context.Context, locationID uint, from, to time.Time) ([]usage.Reading, error)
	InsertReadings(ctx context.Context, rows []usage.Reading) (int, error)
}

// Header aliases accepted in uploaded reading CSVs. Vendor exports are
// not consistent about naming.
var (
	timeAliases   = []string{"t", "Time", "timestamp", "Read Date"}
	gallonAliases = []string{"g", "Gallons", "volume", "Tank Volume"}
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2006-01-02 15:04",
}

// ImportResult summarizes a CSV import.
type ImportResult struct {
	NewReadings       int
	SkippedDuplicates int
	TotalProcessed    int
}

// Service ingests tank readings, classifying them on the way in so the
// quality flags are always populated.
type Service struct {
	store      Store
	classifier usage.Classifier
	cfg        config.UsageConfig
	log        *zap.Logger
}

func NewService(store Store, cfg config.UsageConfig, log *zap.Logger) *Service {
	return &Service{
		store:      store,
		classifier: usage.NewClassifier(cfg),
		cfg:        cfg,
		log:        log,
	}
}

// ImportCSV parses a readings CSV, classifies the batch, and inserts
// readings whose timestamps are not already stored. Invalid rows are
// skipped, not errors; vendor exports are messy.
func (s *Service) ImportCSV(ctx context.Context, locationID uint, r io.Reader) (ImportResult, error) {
	loc, err := s.store.LocationByID(ctx, locationID)
	if err != nil {
		return ImportResult{}, fmt.Errorf("location lookup: %w", err)
	}
	capacity := loc.TankCapacity
	if capacity <= 0 {
		capacity = s.cfg.DefaultTankCapacity
	}

	raw, err := parseReadingsCSV(r, locationID)
	if err != nil {
		return ImportResult{}, err
	}
	if len(raw) == 0 {
		return ImportResult{}, nil
	}

	processed := s.classifier.Classify(raw, capacity)

	existing, err := s.store.ReadingTimes(ctx, locationID)
	if err != nil {
		return ImportResult{}, fmt.Errorf("existing timestamps: %w", err)
	}
	seen := make(map[time.Time]bool, len(existing))
	for _, ts := range existing {
		seen[ts.UTC()] = true
	}

	var fresh []usage.Reading
	skipped := 0
	for _, reading := range processed {
		if seen[reading.Timestamp.UTC()] {
			skipped++
			continue
		}
		fresh = append(fresh, reading)
	}

	inserted, err := s.store.InsertReadings(ctx, fresh)
	if err != nil {
		return ImportResult{}, fmt.Errorf("insert readings: %w", err)
	}

	s.log.Info("readings import complete",
		zap.Uint("location_id", locationID),
		zap.Int("new", inserted),
		zap.Int("skipped", skipped),
		zap.Int("processed", len(processed)))

	return ImportResult{
		NewReadings:       inserted,
		SkippedDuplicates: skipped,
		TotalProcessed:    len(processed),
	}, nil
}

// AddReading ingests a single live reading, classifying it against the
// preceding 48 hours of history. A duplicate timestamp is a no-op that
// returns the stored reading.
func (s *Service) AddReading(ctx context.Context, locationID uint, gallons float64, ts time.Time) (usage.Reading, error) {
	if existing, err := s.store.ReadingAt(ctx, locationID, ts); err != nil {
		return usage.Reading{}, err
	} else if existing != nil {
		return *existing, nil
	}

	loc, err := s.store.LocationByID(ctx, locationID)
	if err != nil {
		return usage.Reading{}, fmt.Errorf("location lookup: %w", err)
	}
	capacity := loc.TankCapacity
	if capacity <= 0 {
		capacity = s.cfg.DefaultTankCapacity
	}

	// Context window for the stability check.
	history, err := s.store.ReadingsBetween(ctx, locationID, ts.Add(-s.cfg.StabilityWindow), ts)
	if err != nil {
		return usage.Reading{}, fmt.Errorf("read context window: %w", err)
	}
	history = append(history, usage.Reading{
		LocationID: locationID,
		Timestamp:  ts,
		Gallons:    gallons,
	})
	sort.Slice(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})

	processed := s.classifier.Classify(history, capacity)

	var classified usage.Reading
	for _, r := range processed {
		if r.Timestamp.Equal(ts) {
			classified = r
			break
		}
	}

	if _, err := s.store.InsertReadings(ctx, []usage.Reading{classified}); err != nil {
		return usage.Reading{}, fmt.Errorf("insert reading: %w", err)
	}
	return classified, nil
}

// parseReadingsCSV extracts (timestamp, gallons) pairs, tolerating the
// known header aliases and timestamp layouts. Rows that don't parse are
// dropped.
func parseReadingsCSV(r io.Reader, locationID uint) ([]usage.Reading, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	tsCol := findColumn(header, timeAliases)
	galCol := findColumn(header, gallonAliases)
	if tsCol < 0 || galCol < 0 {
		return nil, fmt.Errorf("csv header missing time or gallons column")
	}

	var out []usage.Reading
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}
		if tsCol >= len(row) || galCol >= len(row) {
			continue
		}

		ts, ok := parseTimestamp(strings.Trim(row[tsCol], `"`))
		if !ok {
			continue
		}
		gallons, err := strconv.ParseFloat(strings.TrimSpace(row[galCol]), 64)
		if err != nil {
			continue
		}

		out = append(out, usage.Reading{
			LocationID: locationID,
			Timestamp:  ts,
			Gallons:    gallons,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func findColumn(header []string, aliases []string) int {
	for _, alias := range aliases {
		for i, name := range header {
			if strings.TrimSpace(name) == alias {
				return i
			}
		}
	}
	return -1
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
