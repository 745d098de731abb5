package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/walshy828/oil-analysis/config"
	"github.com/walshy828/oil-analysis/internal/usage"
)

type fakeStore struct {
	location usage.Location
	readings []usage.Reading
	nextID   uint
}

func newFakeStore(capacity float64) *fakeStore {
	return &fakeStore{
		location: usage.Location{ID: 1, Name: "test", TankCapacity: capacity},
		nextID:   1,
	}
}

func (f *fakeStore) LocationByID(_ context.Context, id uint) (*usage.Location, error) {
	loc := f.location
	loc.ID = id
	return &loc, nil
}

func (f *fakeStore) ReadingAt(_ context.Context, locationID uint, ts time.Time) (*usage.Reading, error) {
	for _, r := range f.readings {
		if r.LocationID == locationID && r.Timestamp.Equal(ts) {
			out := r
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ReadingTimes(_ context.Context, locationID uint) ([]time.Time, error) {
	var out []time.Time
	for _, r := range f.readings {
		if r.LocationID == locationID {
			out = append(out, r.Timestamp)
		}
	}
	return out, nil
}

func (f *fakeStore) ReadingsBetween(_ context.Context, locationID uint, from, to time.Time) ([]usage.Reading, error) {
	var out []usage.Reading
	for _, r := range f.readings {
		if r.LocationID == locationID && !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertReadings(_ context.Context, rows []usage.Reading) (int, error) {
	for _, r := range rows {
		r.ID = f.nextID
		f.nextID++
		f.readings = append(f.readings, r)
	}
	return len(rows), nil
}

func newTestService(store Store) *Service {
	return NewService(store, config.DefaultUsageConfig(), zap.NewNop())
}

func TestImportCSV(t *testing.T) {
	store := newFakeStore(275)
	svc := newTestService(store)

	csv := `t,g
2026-01-01 08:00:00,150.0
2026-01-01 10:00:00,149.5
2026-01-01 12:00:00,149.0
`
	res, err := svc.ImportCSV(context.Background(), 1, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 3, res.NewReadings)
	assert.Equal(t, 0, res.SkippedDuplicates)
	assert.Equal(t, 3, res.TotalProcessed)
	assert.Len(t, store.readings, 3)
}

func TestImportCSVVendorHeadersAndLayouts(t *testing.T) {
	store := newFakeStore(275)
	svc := newTestService(store)

	// Vendor export style: quoted US dates, aliased column names.
	csv := `Read Date,Tank Volume
"1/2/2026 08:00",150.0
"1/2/2026 10:30:00",149.5
`
	res, err := svc.ImportCSV(context.Background(), 1, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewReadings)

	want := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
	assert.True(t, store.readings[0].Timestamp.Equal(want))
}

func TestImportCSVSkipsMalformedRows(t *testing.T) {
	store := newFakeStore(275)
	svc := newTestService(store)

	csv := `timestamp,volume
2026-01-01 08:00:00,150.0
not-a-date,149.5
2026-01-01 10:00:00,not-a-number
2026-01-01 12:00:00
2026-01-01 14:00:00,148.0
`
	res, err := svc.ImportCSV(context.Background(), 1, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewReadings)
	assert.Equal(t, 2, res.TotalProcessed)
}

func TestImportCSVMissingColumns(t *testing.T) {
	svc := newTestService(newFakeStore(275))

	_, err := svc.ImportCSV(context.Background(), 1, strings.NewReader("a,b\n1,2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing time or gallons column")
}

func TestImportCSVSkipsDuplicateTimestamps(t *testing.T) {
	store := newFakeStore(275)
	svc := newTestService(store)

	first := `t,g
2026-01-01 08:00:00,150.0
2026-01-01 10:00:00,149.5
`
	_, err := svc.ImportCSV(context.Background(), 1, strings.NewReader(first))
	require.NoError(t, err)

	// Re-upload with one overlapping and one new row.
	second := `t,g
2026-01-01 10:00:00,149.5
2026-01-01 12:00:00,149.0
`
	res, err := svc.ImportCSV(context.Background(), 1, strings.NewReader(second))
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewReadings)
	assert.Equal(t, 1, res.SkippedDuplicates)
	assert.Len(t, store.readings, 3)
}

func TestImportCSVClassifiesFillEvents(t *testing.T) {
	store := newFakeStore(275)
	svc := newTestService(store)

	csv := `t,g
2026-01-01 08:00:00,100.0
2026-01-01 10:00:00,99.0
2026-01-01 12:00:00,240.0
`
	_, err := svc.ImportCSV(context.Background(), 1, strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, store.readings, 3)
	assert.True(t, store.readings[2].IsFillEvent)
}

func TestAddReading(t *testing.T) {
	store := newFakeStore(275)
	svc := newTestService(store)
	ctx := context.Background()

	base := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	_, err := svc.AddReading(ctx, 1, 120.0, base)
	require.NoError(t, err)

	r, err := svc.AddReading(ctx, 1, 119.5, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, r.IsFillEvent)
	assert.False(t, r.IsAnomaly)
	assert.Len(t, store.readings, 2)
}

func TestAddReadingClassifiesAgainstHistory(t *testing.T) {
	store := newFakeStore(275)
	svc := newTestService(store)
	ctx := context.Background()

	base := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	_, err := svc.AddReading(ctx, 1, 100.0, base)
	require.NoError(t, err)

	// A 140-gallon jump over the prior reading is a delivery.
	r, err := svc.AddReading(ctx, 1, 240.0, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, r.IsFillEvent)
}

func TestAddReadingDuplicateIsNoOp(t *testing.T) {
	store := newFakeStore(275)
	svc := newTestService(store)
	ctx := context.Background()

	ts := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	first, err := svc.AddReading(ctx, 1, 120.0, ts)
	require.NoError(t, err)

	again, err := svc.AddReading(ctx, 1, 999.0, ts)
	require.NoError(t, err)
	assert.Equal(t, first.Gallons, again.Gallons)
	assert.Len(t, store.readings, 1)
}

func TestImportCSVEmptyInput(t *testing.T) {
	svc := newTestService(newFakeStore(275))

	res, err := svc.ImportCSV(context.Background(), 1, strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, res.TotalProcessed)
}
