package gauge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/walshy828/oil-analysis/config"
	"github.com/walshy828/oil-analysis/internal/ingest"
	"github.com/walshy828/oil-analysis/internal/usage"
)

type recordingStore struct {
	readings []usage.Reading
}

func (s *recordingStore) LocationByID(_ context.Context, id uint) (*usage.Location, error) {
	return &usage.Location{ID: id, TankCapacity: 275}, nil
}

func (s *recordingStore) ReadingAt(_ context.Context, locationID uint, ts time.Time) (*usage.Reading, error) {
	for _, r := range s.readings {
		if r.LocationID == locationID && r.Timestamp.Equal(ts) {
			out := r
			return &out, nil
		}
	}
	return nil, nil
}

func (s *recordingStore) ReadingTimes(_ context.Context, _ uint) ([]time.Time, error) {
	return nil, nil
}

func (s *recordingStore) ReadingsBetween(_ context.Context, locationID uint, from, to time.Time) ([]usage.Reading, error) {
	var out []usage.Reading
	for _, r := range s.readings {
		if r.LocationID == locationID && !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *recordingStore) InsertReadings(_ context.Context, rows []usage.Reading) (int, error) {
	s.readings = append(s.readings, rows...)
	return len(rows), nil
}

func newTestHandler(store ingest.Store) func(msg []byte) {
	ing := ingest.NewService(store, config.DefaultUsageConfig(), zap.NewNop())
	return MakeMessageHandler(zap.NewNop(), ing, map[string]uint{"NS-1003": 1})
}

func TestHandlerStoresLevelPush(t *testing.T) {
	store := &recordingStore{}
	handler := newTestHandler(store)

	handler([]byte(`{
		"topic": "level.NS-1003",
		"data": [
			{"ts": 1767571200000, "gallons": "151.2", "battery": "92"},
			{"ts": 1767578400000, "gallons": "150.8", "battery": "92"}
		]
	}`))

	require.Len(t, store.readings, 2)
	assert.Equal(t, uint(1), store.readings[0].LocationID)
	assert.Equal(t, 151.2, store.readings[0].Gallons)
	assert.True(t, store.readings[0].Timestamp.Equal(time.UnixMilli(1767571200000).UTC()))
}

func TestHandlerIgnoresNonLevelTopics(t *testing.T) {
	store := &recordingStore{}
	handler := newTestHandler(store)

	handler([]byte(`{"op": "subscribe", "success": true}`))
	handler([]byte(`{"topic": "battery.NS-1003", "data": []}`))

	assert.Empty(t, store.readings)
}

func TestHandlerIgnoresUnknownTank(t *testing.T) {
	store := &recordingStore{}
	handler := newTestHandler(store)

	handler([]byte(`{"topic": "level.NS-9999", "data": [{"ts": 1767571200000, "gallons": "100.0"}]}`))

	assert.Empty(t, store.readings)
}

func TestHandlerSkipsUnparseableGallons(t *testing.T) {
	store := &recordingStore{}
	handler := newTestHandler(store)

	handler([]byte(`{
		"topic": "level.NS-1003",
		"data": [
			{"ts": 1767571200000, "gallons": "garbage"},
			{"ts": 1767578400000, "gallons": "150.8"}
		]
	}`))

	require.Len(t, store.readings, 1)
	assert.Equal(t, 150.8, store.readings[0].Gallons)
}

func TestHandlerMalformedJSON(t *testing.T) {
	store := &recordingStore{}
	handler := newTestHandler(store)

	handler([]byte(`{not json`))

	assert.Empty(t, store.readings)
}

func TestTopicHelpers(t *testing.T) {
	assert.True(t, isLevelTopic("level.NS-1003"))
	assert.False(t, isLevelTopic("pong"))
	assert.Equal(t, "NS-1003", extractTankFromTopic("level.NS-1003"))
	assert.Equal(t, "", extractTankFromTopic("nodot"))
}
