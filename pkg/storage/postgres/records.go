package postgres

import (
	"time"

	"github.com/walshy828/oil-analysis/internal/usage"
)

// LocationRecord is a physical site with an oil tank.
type LocationRecord struct {
	ID           uint      `gorm:"primaryKey"`
	Name         string    `gorm:"type:text;not null;uniqueIndex"`
	Address      string    `gorm:"type:text"`
	City         string    `gorm:"type:text"`
	State        string    `gorm:"type:varchar(50)"`
	ZipCode      string    `gorm:"type:varchar(20)"`
	TankCapacity float64   `gorm:"type:numeric;default:275"`
	GaugeTankID  string    `gorm:"type:text;index"` // vendor tank serial for live collection
	Latitude     *float64  `gorm:"type:numeric"`
	Longitude    *float64  `gorm:"type:numeric"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (LocationRecord) TableName() string {
	return "locations"
}

// TankReadingRecord is a single gauge observation with quality flags.
type TankReadingRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index doubles as the dedupe guard for re-imported CSVs
	LocationID uint      `gorm:"not null;index:idx_readings_location_timestamp,unique"`
	Timestamp  time.Time `gorm:"not null;index:idx_readings_location_timestamp,unique"`

	Gallons float64 `gorm:"type:numeric;not null"`

	IsAnomaly          bool `gorm:"not null;default:false"`
	IsFillEvent        bool `gorm:"not null;default:false"`
	IsPostFillUnstable bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (TankReadingRecord) TableName() string {
	return "tank_readings"
}

// OilOrderRecord is a delivery. A NULL end date means the order is
// still the one in effect.
type OilOrderRecord struct {
	ID             uint       `gorm:"primaryKey"`
	LocationID     uint       `gorm:"not null;index"`
	StartDate      time.Time  `gorm:"not null;index"`
	EndDate        *time.Time `gorm:"index"`
	Gallons        float64    `gorm:"type:numeric;not null"`
	PricePerGallon float64    `gorm:"type:numeric;not null"`
	CreatedAt      time.Time  `gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime"`
}

func (OilOrderRecord) TableName() string {
	return "oil_orders"
}

// TemperatureRecord is one day's low/high for a location.
type TemperatureRecord struct {
	ID         uint      `gorm:"primaryKey"`
	LocationID uint      `gorm:"not null;index:idx_temperatures_location_date,unique"`
	Date       time.Time `gorm:"not null;index:idx_temperatures_location_date,unique"`
	LowTemp    float64   `gorm:"type:numeric;not null"`
	HighTemp   float64   `gorm:"type:numeric;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (TemperatureRecord) TableName() string {
	return "temperatures"
}

// DailyUsageRecord is the reconciled consumption series. It is a
// materialized output: recalculation deletes and rewrites ranges, no
// other writer touches it.
type DailyUsageRecord struct {
	ID         uint      `gorm:"primaryKey"`
	LocationID uint      `gorm:"not null;index:idx_daily_usage_location_date,unique"`
	Date       time.Time `gorm:"not null;index:idx_daily_usage_location_date,unique"`

	Gallons     float64 `gorm:"type:numeric;not null"`
	IsEstimated bool    `gorm:"not null;default:false"`
	Source      string  `gorm:"type:varchar(32);not null"`
	HDD         float64 `gorm:"type:numeric;not null"`

	RawSensorValue   *float64 `gorm:"type:numeric"`
	AdjustmentReason *string  `gorm:"type:varchar(32)"`
	Notes            *string  `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (DailyUsageRecord) TableName() string {
	return "daily_usage"
}

func toLocation(rec LocationRecord) usage.Location {
	return usage.Location{
		ID:           rec.ID,
		Name:         rec.Name,
		TankCapacity: rec.TankCapacity,
		GaugeTankID:  rec.GaugeTankID,
	}
}

func toReading(rec TankReadingRecord) usage.Reading {
	return usage.Reading{
		ID:                 rec.ID,
		LocationID:         rec.LocationID,
		Timestamp:          rec.Timestamp,
		Gallons:            rec.Gallons,
		IsAnomaly:          rec.IsAnomaly,
		IsFillEvent:        rec.IsFillEvent,
		IsPostFillUnstable: rec.IsPostFillUnstable,
	}
}

func toReadingRecord(r usage.Reading) TankReadingRecord {
	return TankReadingRecord{
		ID:                 r.ID,
		LocationID:         r.LocationID,
		Timestamp:          r.Timestamp,
		Gallons:            r.Gallons,
		IsAnomaly:          r.IsAnomaly,
		IsFillEvent:        r.IsFillEvent,
		IsPostFillUnstable: r.IsPostFillUnstable,
	}
}

func toOrder(rec OilOrderRecord) usage.Order {
	return usage.Order{
		ID:             rec.ID,
		LocationID:     rec.LocationID,
		StartDate:      rec.StartDate,
		EndDate:        rec.EndDate,
		Gallons:        rec.Gallons,
		PricePerGallon: rec.PricePerGallon,
	}
}

func toTemperatureDay(rec TemperatureRecord) usage.TemperatureDay {
	return usage.TemperatureDay{
		LocationID: rec.LocationID,
		Date:       rec.Date,
		LowTemp:    rec.LowTemp,
		HighTemp:   rec.HighTemp,
	}
}

func toUsageRecord(row usage.DailyUsage) DailyUsageRecord {
	rec := DailyUsageRecord{
		LocationID:     row.LocationID,
		Date:           row.Date,
		Gallons:        row.Gallons,
		IsEstimated:    row.IsEstimated,
		Source:         row.Source,
		HDD:            row.HDD,
		RawSensorValue: row.RawSensorValue,
	}
	if row.AdjustmentReason != "" {
		reason := row.AdjustmentReason
		rec.AdjustmentReason = &reason
	}
	if row.Notes != "" {
		notes := row.Notes
		rec.Notes = &notes
	}
	return rec
}
