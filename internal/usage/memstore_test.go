package usage

import (
	"context"
	"sort"
	"strings"
	"time"
)

// memStore is an in-memory Store for engine tests.
type memStore struct {
	readings []Reading
	orders   []Order
	temps    []TemperatureDay
	rows     []DailyUsage
	nextID   uint
}

func newMemStore() *memStore {
	return &memStore{nextID: 1}
}

func (m *memStore) addReadings(rs ...Reading) {
	for _, r := range rs {
		r.ID = m.nextID
		m.nextID++
		m.readings = append(m.readings, r)
	}
	sort.Slice(m.readings, func(i, j int) bool {
		return m.readings[i].Timestamp.Before(m.readings[j].Timestamp)
	})
}

func (m *memStore) ReadingsBetween(_ context.Context, locationID uint, from, to time.Time) ([]Reading, error) {
	return m.filterReadings(locationID, from, to, false), nil
}

func (m *memStore) ValidReadingsBetween(_ context.Context, locationID uint, from, to time.Time) ([]Reading, error) {
	return m.filterReadings(locationID, from, to, true), nil
}

func (m *memStore) filterReadings(locationID uint, from, to time.Time, validOnly bool) []Reading {
	var out []Reading
	for _, r := range m.readings {
		if r.LocationID != locationID || r.Timestamp.Before(from) || !r.Timestamp.Before(to) {
			continue
		}
		if validOnly && (r.IsAnomaly || r.IsFillEvent) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (m *memStore) MarkReadingsAnomalous(_ context.Context, ids []uint) error {
	flagged := make(map[uint]bool, len(ids))
	for _, id := range ids {
		flagged[id] = true
	}
	for i := range m.readings {
		if flagged[m.readings[i].ID] {
			m.readings[i].IsAnomaly = true
		}
	}
	return nil
}

func (m *memStore) Orders(_ context.Context, locationID uint) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.LocationID == locationID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

func (m *memStore) TemperatureRange(_ context.Context, locationID uint, from, to time.Time) ([]TemperatureDay, error) {
	var out []TemperatureDay
	for _, t := range m.temps {
		if t.LocationID == locationID && !t.Date.Before(from) && t.Date.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) ConfirmedUsageTotals(_ context.Context, locationID uint, since time.Time) (float64, float64, error) {
	var gallons, hdd float64
	for _, row := range m.rows {
		if row.LocationID != locationID || row.Date.Before(since) {
			continue
		}
		if strings.HasPrefix(row.Source, "hdd") || row.Gallons <= 0 {
			continue
		}
		gallons += row.Gallons
		hdd += row.HDD
	}
	return gallons, hdd, nil
}

func (m *memStore) DeleteDailyUsage(_ context.Context, locationID uint, from *time.Time) error {
	var kept []DailyUsage
	for _, row := range m.rows {
		if row.LocationID == locationID && (from == nil || !row.Date.Before(*from)) {
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept
	return nil
}

func (m *memStore) InsertDailyUsage(_ context.Context, rows []DailyUsage) error {
	for _, row := range rows {
		replaced := false
		for i := range m.rows {
			if m.rows[i].LocationID == row.LocationID && m.rows[i].Date.Equal(row.Date) {
				m.rows[i] = row
				replaced = true
				break
			}
		}
		if !replaced {
			m.rows = append(m.rows, row)
		}
	}
	return nil
}

func (m *memStore) InTransaction(_ context.Context, fn func(Store) error) error {
	return fn(m)
}

func (m *memStore) rowsByDate(locationID uint) []DailyUsage {
	var out []DailyUsage
	for _, row := range m.rows {
		if row.LocationID == locationID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// declineDay appends n evenly spaced readings on the given day falling
// linearly from startLevel to endLevel.
func declineDay(m *memStore, locationID uint, day time.Time, startLevel, endLevel float64, n int) {
	step := (startLevel - endLevel) / float64(n-1)
	for i := 0; i < n; i++ {
		m.addReadings(Reading{
			LocationID: locationID,
			Timestamp:  day.Add(time.Duration(i) * 2 * time.Hour),
			Gallons:    startLevel - float64(i)*step,
		})
	}
}
