package usage

import (
	"github.com/walshy828/oil-analysis/config"
)

// Classifier flags individual tank readings as noise, fill events, or
// post-fill instability. It is shared by ingestion and recalculation.
type Classifier struct {
	cfg config.UsageConfig
}

func NewClassifier(cfg config.UsageConfig) Classifier {
	return Classifier{cfg: cfg}
}

// Classify runs a single pass over readings sorted by ascending
// timestamp and returns a copy with the three quality flags set:
//
//  1. Small increases (sensor noise) - flagged as anomaly
//  2. Large increases (fill events) - flagged as fill
//  3. Erratic readings near max capacity shortly after a fill - flagged unstable
//
// The fill-tracking state is local to the call, so re-running on the
// same inputs always produces identical flags.
func (c Classifier) Classify(readings []Reading, tankCapacity float64) []Reading {
	if len(readings) == 0 {
		return nil
	}
	if tankCapacity <= 0 {
		tankCapacity = c.cfg.DefaultTankCapacity
	}
	nearFull := tankCapacity * c.cfg.NearFullFraction

	out := make([]Reading, len(readings))
	copy(out, readings)

	var fillEventTime *int // index into out, nil when no fill is being tracked

	for i := range out {
		out[i].IsAnomaly = false
		out[i].IsFillEvent = false
		out[i].IsPostFillUnstable = false

		if i == 0 {
			continue
		}

		delta := out[i].Gallons - out[i-1].Gallons

		switch {
		case delta > c.cfg.FillThresholdGal:
			out[i].IsFillEvent = true
			idx := i
			fillEventTime = &idx
		case delta > 0 && delta <= c.cfg.NoiseThresholdGal:
			out[i].IsAnomaly = true
		}

		if fillEventTime != nil {
			sinceFill := out[i].Timestamp.Sub(out[*fillEventTime].Timestamp)
			if sinceFill < c.cfg.StabilityWindow {
				// Near-full readings fluctuating by more than a gallon
				// while the tank settles.
				if out[i].Gallons > nearFull && (delta > 1.0 || delta < -1.0) {
					out[i].IsPostFillUnstable = true
				}
			} else {
				fillEventTime = nil
			}
		}
	}

	return out
}
