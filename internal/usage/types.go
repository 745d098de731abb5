package usage

import "time"

// Sources for a daily usage row.
const (
	SourceSensorRaw      = "sensor_raw"
	SourceSensorAdjusted = "sensor_adjusted"
	SourceHDDEstimated   = "hdd_estimated"
)

// Adjustment reasons. Empty string means no adjustment.
const (
	ReasonFillEvent     = "fill_event"
	ReasonHighTankNoise = "high_tank_noise"
	ReasonSeasonalCap   = "seasonal_cap"
	ReasonSpikeSmoothed = "spike_smoothed"
)

// Location is the slice of the locations table the engine cares about.
type Location struct {
	ID           uint
	Name         string
	TankCapacity float64
	GaugeTankID  string
}

// Reading is a single tank-level observation with its quality flags.
type Reading struct {
	ID                 uint
	LocationID         uint
	Timestamp          time.Time
	Gallons            float64
	IsAnomaly          bool
	IsFillEvent        bool
	IsPostFillUnstable bool
}

// Order is a fuel delivery covering a date range. A nil EndDate means
// the order is still in effect.
type Order struct {
	ID             uint
	LocationID     uint
	StartDate      time.Time
	EndDate        *time.Time
	Gallons        float64
	PricePerGallon float64
}

// TemperatureDay is one day's low/high for a location.
type TemperatureDay struct {
	LocationID uint
	Date       time.Time
	LowTemp    float64
	HighTemp   float64
}

// HDD returns the heating degree days for the day: max(0, 65 - avg).
func (t TemperatureDay) HDD() float64 {
	avg := (t.LowTemp + t.HighTemp) / 2.0
	if avg >= 65.0 {
		return 0.0
	}
	return 65.0 - avg
}

// DailyUsage is one reconciled day of consumption. Rows are rebuilt
// wholesale by Recalculate; nothing else writes them.
type DailyUsage struct {
	LocationID       uint
	Date             time.Time
	Gallons          float64
	IsEstimated      bool
	Source           string
	HDD              float64
	RawSensorValue   *float64
	AdjustmentReason string
	Notes            string
}

// DateOf truncates a timestamp to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
