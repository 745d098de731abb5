package usage

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/stretchr/testify/assert"

	"github.com/walshy828/oil-analysis/config"
)

func testNormalizer(store Store) *Normalizer {
	return NewNormalizer(store, config.DefaultUsageConfig(), zap.NewNop())
}

func makeAllocs(hdd float64, gallons ...float64) []*allocation {
	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*allocation, len(gallons))
	for i, g := range gallons {
		out[i] = &allocation{
			date:    day.AddDate(0, 0, i),
			gallons: g,
			hdd:     hdd,
		}
	}
	return out
}

func sumAllocs(allocs []*allocation) float64 {
	var sum float64
	for _, a := range allocs {
		sum += a.gallons
	}
	return sum
}

func TestCapAndRedistributePreservesTotal(t *testing.T) {
	n := testNormalizer(newMemStore())

	// Winter days (HDD 20): cap is 15. The 30-gallon day sheds 15,
	// spread over the four uncapped days.
	allocs := makeAllocs(20, 30, 1, 1, 1, 1)
	n.capAndRedistribute(allocs, allocs[0].date, allocs[4].date, 34)

	assert.Equal(t, 15.0, allocs[0].gallons)
	assert.True(t, allocs[0].capped)
	assert.Equal(t, ReasonSeasonalCap, allocs[0].reason)
	for _, a := range allocs[1:] {
		assert.InDelta(t, 4.75, a.gallons, 1e-9)
		assert.False(t, a.capped)
	}
	assert.InDelta(t, 34.0, sumAllocs(allocs), 1e-9)
}

func TestCapSummerThreshold(t *testing.T) {
	n := testNormalizer(newMemStore())

	allocs := makeAllocs(0, 3, 0.5, 0.5)
	n.capAndRedistribute(allocs, allocs[0].date, allocs[2].date, 4)

	assert.Equal(t, 2.0, allocs[0].gallons, "summer cap is 2 gal/day")
	assert.Equal(t, ReasonSeasonalCap, allocs[0].reason)
}

func TestCapAllDaysCappedUndershoots(t *testing.T) {
	n := testNormalizer(newMemStore())

	allocs := makeAllocs(20, 40, 40, 40)
	n.capAndRedistribute(allocs, allocs[0].date, allocs[2].date, 120)

	// Nothing left to absorb the excess; total undershoots the target.
	assert.InDelta(t, 45.0, sumAllocs(allocs), 1e-9)
	for _, a := range allocs {
		assert.Equal(t, 15.0, a.gallons)
	}
}

func TestCapKeepsExistingReason(t *testing.T) {
	n := testNormalizer(newMemStore())

	allocs := makeAllocs(20, 30, 1, 1)
	allocs[0].reason = ReasonHighTankNoise
	n.capAndRedistribute(allocs, allocs[0].date, allocs[2].date, 32)

	assert.Equal(t, ReasonHighTankNoise, allocs[0].reason)
}

func TestSmoothSpikes(t *testing.T) {
	n := testNormalizer(newMemStore())

	allocs := makeAllocs(20, 2, 2, 2, 2, 10, 2, 2, 2, 2)
	n.smoothSpikes(allocs)

	spiked := allocs[4]
	assert.True(t, spiked.smoothed)
	assert.InDelta(t, 2.0, spiked.gallons, 1e-9, "spike replaced by neighbor mean")
	assert.Equal(t, 10.0, spiked.preSmooth)
	assert.Equal(t, ReasonSpikeSmoothed, spiked.reason)

	for i, a := range allocs {
		if i != 4 {
			assert.False(t, a.smoothed)
		}
	}
}

func TestSmoothSpikesSkipsShortIntervals(t *testing.T) {
	n := testNormalizer(newMemStore())

	allocs := makeAllocs(20, 2, 2, 10, 2, 2, 2)
	n.smoothSpikes(allocs)

	assert.Equal(t, 10.0, allocs[2].gallons, "fewer than 7 days, no smoothing")
}

func TestSmoothSpikesUsesPreSmoothingSnapshot(t *testing.T) {
	n := testNormalizer(newMemStore())

	// Two spikes: smoothing the first must not change the neighbor
	// window the second is judged against.
	allocs := makeAllocs(20, 2, 2, 2, 12, 2, 2, 12, 2, 2, 2)
	n.smoothSpikes(allocs)

	assert.True(t, allocs[3].smoothed)
	assert.True(t, allocs[6].smoothed)
	// Neighbor means still include the other spike's original value.
	assert.InDelta(t, (2+2+2+2+2+12)/6.0, allocs[3].gallons, 1e-9)
}

func TestSmoothSpikesIgnoresTinyValues(t *testing.T) {
	n := testNormalizer(newMemStore())

	// 0.4 is more than double a zero median but below the floor.
	allocs := makeAllocs(0, 0, 0, 0, 0.4, 0, 0, 0, 0)
	n.smoothSpikes(allocs)
	assert.False(t, allocs[3].smoothed)
}
