package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// allocation is a daily usage row under construction. The cap and
// smoothing passes annotate it before it is converted to a DailyUsage.
type allocation struct {
	date        time.Time
	gallons     float64
	source      string
	hdd         float64
	rawSensor   float64
	isEstimated bool
	reason      string
	notes       string

	capped    bool
	preCap    float64
	smoothed  bool
	preSmooth float64
}

func (a *allocation) toRow(locationID uint) DailyUsage {
	parts := []string{}
	if a.notes != "" {
		parts = append(parts, a.notes)
	}
	if a.capped {
		parts = append(parts, fmt.Sprintf("Capped from %.2f to %.2f", a.preCap, a.gallons))
	}
	if a.smoothed {
		parts = append(parts, fmt.Sprintf("Spike smoothed from %.2f", a.preSmooth))
	}

	raw := a.rawSensor
	return DailyUsage{
		LocationID:       locationID,
		Date:             a.date,
		Gallons:          a.gallons,
		IsEstimated:      a.isEstimated,
		Source:           a.source,
		HDD:              a.hdd,
		RawSensorValue:   &raw,
		AdjustmentReason: a.reason,
		Notes:            strings.Join(parts, " | "),
	}
}

// dayStat is the per-day input to strategy selection: HDD plus the
// sensor-day summary, with unreliable days already replaced by the HDD
// fallback estimate.
type dayStat struct {
	date       time.Time
	hdd        float64
	drop       float64
	rawSensor  float64
	unreliable bool
	reason     string
	notes      string
}

// kFactor estimates the location's gallons-per-HDD efficiency from the
// last 90 days of sensor-confirmed usage. Falls back to the configured
// default when there is not enough heating history to trust the ratio.
func (n *Normalizer) kFactor(ctx context.Context, s Store, locationID uint) float64 {
	cutoff := DateOf(n.clock.Now()).AddDate(0, 0, -90)
	gallons, hdd, err := s.ConfirmedUsageTotals(ctx, locationID, cutoff)
	if err != nil {
		n.log.Warn("k-factor lookup failed, using default",
			zap.Uint("location_id", locationID), zap.Error(err))
		return n.cfg.DefaultKFactor
	}
	if hdd > 50 && gallons > 0 {
		k := gallons / hdd
		if k > n.cfg.MaxKFactor {
			return n.cfg.MaxKFactor
		}
		return k
	}
	return n.cfg.DefaultKFactor
}

// buildDayStats assembles HDD and sensor summaries for each day in
// [start, end). Missing temperature means HDD 0; unreliable sensor days
// fall back to HDD*k + base load.
func (n *Normalizer) buildDayStats(ctx context.Context, s Store, locationID uint, start, end time.Time, k float64) ([]dayStat, error) {
	// One query for the whole interval; the summarizer slices per day.
	// The 4h tail past the interval matches the per-day window shape.
	readings, err := s.ValidReadingsBetween(ctx, locationID, start, end.Add(4*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("read readings: %w", err)
	}

	temps, err := s.TemperatureRange(ctx, locationID, start, end)
	if err != nil {
		return nil, fmt.Errorf("read temperatures: %w", err)
	}
	hddByDay := make(map[time.Time]float64, len(temps))
	for _, t := range temps {
		hddByDay[DateOf(t.Date)] = t.HDD()
	}

	var stats []dayStat
	for day := DateOf(start); day.Before(end); day = day.AddDate(0, 0, 1) {
		windowEnd := day.AddDate(0, 0, 1).Add(4 * time.Hour)
		var dayReadings []Reading
		for _, r := range readings {
			if !r.Timestamp.Before(day) && r.Timestamp.Before(windowEnd) {
				dayReadings = append(dayReadings, r)
			}
		}

		summary := SummarizeDay(n.cfg, dayReadings, day)
		hdd := hddByDay[day]

		st := dayStat{
			date:       day,
			hdd:        hdd,
			drop:       summary.Drop,
			rawSensor:  summary.Drop,
			unreliable: summary.Unreliable,
			notes:      summary.Notes,
		}

		if summary.FillDetected() {
			st.reason = ReasonFillEvent
			st.notes += " | Fill detected (level increase >20gal)"
			st.drop = 0
		}

		if summary.Unreliable {
			estimate := hdd*k + n.cfg.BaseLoadGal
			st.reason = ReasonHighTankNoise
			st.notes += fmt.Sprintf(" | Fallback to HDD estimate: %.2f", estimate)
			st.drop = estimate
		}

		stats = append(stats, st)
	}
	return stats, nil
}

// distributeInterval spreads targetGallons across [start, end) and
// returns the finished rows. Strategy: if the summed sensor drops land
// within the trust band of the target, the sensor shape is scaled to
// the target; otherwise the sensor is distrusted for the whole interval
// and the HDD-plus-base-load shape is used instead. The choice is
// binary because partial sensor failure corrupts the shape, not just
// the magnitude.
func (n *Normalizer) distributeInterval(ctx context.Context, s Store, locationID uint, start, end time.Time, targetGallons float64) ([]DailyUsage, error) {
	days := int(end.Sub(start).Hours() / 24)
	if days <= 0 {
		return nil, nil
	}

	k := n.kFactor(ctx, s, locationID)
	stats, err := n.buildDayStats(ctx, s, locationID, start, end, k)
	if err != nil {
		return nil, err
	}

	var totalDrop float64
	for _, st := range stats {
		totalDrop += st.drop
	}

	ratio := 0.0
	if targetGallons > 0 {
		ratio = totalDrop / targetGallons
	}
	useSensor := ratio > 0.5 && ratio < 1.5 && totalDrop > 5.0

	source := SourceHDDEstimated
	if useSensor {
		source = SourceSensorAdjusted
	}

	var estimates []float64
	var totalEstimated float64
	if !useSensor {
		for _, st := range stats {
			load := st.hdd*k + n.cfg.BaseLoadGal
			estimates = append(estimates, load)
			totalEstimated += load
		}
	}

	allocs := make([]*allocation, len(stats))
	for i, st := range stats {
		var share float64
		if useSensor {
			if totalDrop > 0 {
				share = st.drop / totalDrop
			}
		} else {
			if totalEstimated > 0 {
				share = estimates[i] / totalEstimated
			} else {
				share = 1.0 / float64(days)
			}
		}

		allocs[i] = &allocation{
			date:        st.date,
			gallons:     share * targetGallons,
			source:      source,
			hdd:         st.hdd,
			rawSensor:   st.rawSensor,
			isEstimated: source != SourceSensorAdjusted,
			reason:      st.reason,
			notes:       st.notes,
		}
	}

	n.capAndRedistribute(allocs, start, end, targetGallons)
	n.smoothSpikes(allocs)

	rows := make([]DailyUsage, len(allocs))
	for i, a := range allocs {
		rows[i] = a.toRow(locationID)
	}
	return rows, nil
}

// processOpenEnded handles the stretch from the last order to today,
// where no delivered total exists to reconcile against. Each day keeps
// its direct estimate: the sensor drop when trustworthy, the HDD
// fallback otherwise. Caps apply per day; there is no redistribution.
func (n *Normalizer) processOpenEnded(ctx context.Context, s Store, locationID uint, start time.Time) ([]DailyUsage, error) {
	end := DateOf(n.clock.Now())
	if !start.Before(end) {
		return nil, nil
	}

	k := n.kFactor(ctx, s, locationID)
	stats, err := n.buildDayStats(ctx, s, locationID, start, end, k)
	if err != nil {
		return nil, err
	}

	allocs := make([]*allocation, len(stats))
	for i, st := range stats {
		a := &allocation{
			date:      st.date,
			gallons:   st.drop,
			source:    SourceSensorRaw,
			hdd:       st.hdd,
			rawSensor: st.rawSensor,
			reason:    st.reason,
			notes:     st.notes,
		}
		if st.unreliable {
			a.source = SourceHDDEstimated
			a.isEstimated = true
		}

		dayCap := n.dailyCap(st.hdd)
		if a.gallons > dayCap {
			a.notes += fmt.Sprintf(" | Capped from %.2f to %g", a.gallons, dayCap)
			a.reason = ReasonSeasonalCap
			a.gallons = dayCap
		}
		allocs[i] = a
	}

	n.smoothSpikes(allocs)

	rows := make([]DailyUsage, len(allocs))
	for i, a := range allocs {
		rows[i] = a.toRow(locationID)
	}
	return rows, nil
}

func (n *Normalizer) dailyCap(hdd float64) float64 {
	if hdd < 5 {
		return n.cfg.SummerCapGal
	}
	return n.cfg.WinterCapGal
}
