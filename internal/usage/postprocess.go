package usage

import (
	"time"

	"go.uber.org/zap"
)

// capAndRedistribute clamps physically implausible single-day
// allocations and spreads the excess evenly over the uncapped days so
// the interval total is preserved. The cap is seasonal: days with
// HDD < 5 get the summer cap, all others the winter cap. When every day
// is capped the excess cannot be absorbed; the interval then undershoots
// the delivered total, which is logged rather than hidden.
func (n *Normalizer) capAndRedistribute(allocs []*allocation, start, end time.Time, targetGallons float64) {
	var excess float64
	capped := make(map[int]bool)

	for i, a := range allocs {
		dayCap := n.dailyCap(a.hdd)
		if a.gallons > dayCap {
			a.preCap = a.gallons
			excess += a.gallons - dayCap
			a.gallons = dayCap
			a.capped = true
			if a.reason == "" {
				a.reason = ReasonSeasonalCap
			}
			capped[i] = true
		}
	}

	if excess <= 0 {
		return
	}

	uncapped := len(allocs) - len(capped)
	if uncapped == 0 {
		n.log.Warn("interval volume exceeds max burn rate for all days",
			zap.Time("start", start),
			zap.Time("end", end),
			zap.Float64("target_gallons", targetGallons))
		return
	}

	fill := excess / float64(uncapped)
	for i, a := range allocs {
		if !capped[i] {
			a.gallons += fill
		}
	}
}

// smoothSpikes replaces local one-day spikes with the mean of their
// neighbors. A day is a spike when it exceeds both twice the median of
// its +/-3-day window and the median plus 1.5 gallons, and is itself
// above half a gallon (tiny values otherwise trip the ratio test).
// Windows read from a snapshot of the pre-smoothing values, so the
// result does not depend on scan order. Runs after capping: capping is
// global to the interval, this catches what it leaves behind.
func (n *Normalizer) smoothSpikes(allocs []*allocation) {
	if len(allocs) < 7 {
		return
	}

	values := make([]float64, len(allocs))
	for i, a := range allocs {
		values[i] = a.gallons
	}

	for i, a := range allocs {
		lo := i - 3
		if lo < 0 {
			lo = 0
		}
		hi := i + 4
		if hi > len(values) {
			hi = len(values)
		}

		var neighbors []float64
		for j := lo; j < hi; j++ {
			if j != i {
				neighbors = append(neighbors, values[j])
			}
		}
		if len(neighbors) == 0 {
			continue
		}

		localMedian := median(neighbors)
		current := values[i]

		threshold := localMedian * 2.0
		if localMedian+1.5 > threshold {
			threshold = localMedian + 1.5
		}

		if current > threshold && current > 0.5 {
			smoothed := mean(neighbors)
			a.preSmooth = current
			a.gallons = smoothed
			a.smoothed = true
			if a.reason == "" {
				a.reason = ReasonSpikeSmoothed
			}
			n.log.Info("spike smoothed",
				zap.Time("date", a.date),
				zap.Float64("from", current),
				zap.Float64("to", smoothed),
				zap.Float64("local_median", localMedian))
		}
	}
}
