package usage

import (
	"fmt"
	"strings"
	"time"

	"github.com/walshy828/oil-analysis/config"
)

const (
	// Intraday level rise that counts as a delivery rather than drift.
	intradayFillRiseGal = 20.0
	// Tolerated end-over-start rise before the day is called drifting.
	driftToleranceGal = 0.5
)

// DaySummary is the reduction of one calendar day's readings to a
// single consumption estimate.
type DaySummary struct {
	// Drop is the estimated gallons consumed. Negative means a fill
	// event was detected intraday; callers zero it and tag the day.
	Drop       float64
	Unreliable bool
	Notes      string
}

// FillDetected reports whether the day contained an intraday fill.
func (s DaySummary) FillDetected() bool {
	return s.Drop < 0
}

// SummarizeDay reduces readings around a calendar day to a DaySummary.
// The input window is [day, day+1+4h) to include the overnight tail,
// but only readings dated on the day itself feed the statistics.
// Readings flagged as anomalies or fill events must already be
// filtered out by the caller's query; this function additionally
// skips them defensively. Pure function, no persistence.
func SummarizeDay(cfg config.UsageConfig, readings []Reading, day time.Time) DaySummary {
	day = DateOf(day)

	if len(readings) == 0 {
		return DaySummary{Drop: 0, Unreliable: true, Notes: "No sensor readings available"}
	}

	var vals []float64
	for _, r := range readings {
		if r.IsAnomaly || r.IsFillEvent {
			continue
		}
		if DateOf(r.Timestamp).Equal(day) {
			vals = append(vals, r.Gallons)
		}
	}

	if len(vals) < 5 {
		return DaySummary{
			Drop:       0,
			Unreliable: true,
			Notes:      fmt.Sprintf("Insufficient readings (%d)", len(vals)),
		}
	}

	n := len(vals)
	k := n / 5
	if k < 1 {
		k = 1
	}

	startLevel := median(vals[:k])
	endLevel := median(vals[n-k:])
	sd := stddev(vals)

	notes := []string{fmt.Sprintf("Readings: %d, Start: %.1f, End: %.1f, Std: %.2f", n, startLevel, endLevel, sd)}

	// Sensors are inaccurate near a full tank.
	if startLevel > cfg.HighTankLevelGal {
		notes = append(notes, fmt.Sprintf("HIGH TANK: Sensor unreliable above %.0fgal", cfg.HighTankLevelGal))
		return DaySummary{Drop: 0, Unreliable: true, Notes: strings.Join(notes, " | ")}
	}

	if endLevel > startLevel+intradayFillRiseGal {
		notes = append(notes, fmt.Sprintf("FILL EVENT: Level rose %.1fgal", endLevel-startLevel))
		return DaySummary{Drop: -1, Unreliable: false, Notes: strings.Join(notes, " | ")}
	}

	// A rise that doesn't qualify as a fill means the day's data can't
	// be trusted at all.
	if endLevel > startLevel+driftToleranceGal {
		notes = append(notes, fmt.Sprintf("SENSOR DRIFT: End (%.1f) > Start (%.1f) - data unreliable", endLevel, startLevel))
		return DaySummary{Drop: 0, Unreliable: true, Notes: strings.Join(notes, " | ")}
	}

	// Percentile spread resists single-point noise better than min/max.
	drop := percentile(vals, 95) - percentile(vals, 5)
	if drop < 0 {
		drop = 0
	}
	notes = append(notes, fmt.Sprintf("P95-P05 drop: %.2fgal", drop))

	return DaySummary{Drop: drop, Unreliable: false, Notes: strings.Join(notes, " | ")}
}
