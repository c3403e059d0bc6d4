// Package anomaly classifies the last point of daily count series: a single
// series against its own robust baseline, or one key of a cohort against
// both its own history and the cohort-wide normal variability.
package anomaly

import (
	"math"

	"go.uber.org/zap"

	"github.com/mozilla/spikes/internal/spikes/robust"
	"github.com/mozilla/spikes/internal/spikes/series"
)

// Reason tells which rule flagged a key.
type Reason string

// Detection rules, in evaluation order.
const (
	ReasonZero Reason = "zero" // the key had no history in the window
	ReasonRate Reason = "rate" // percent growth beyond the cohort envelope
	ReasonDiff Reason = "diff" // absolute growth beyond the cohort envelope
)

// Spike describes a key flagged by Detector.Detect.
type Spike struct {
	Key     string    `json:"key"`
	Window  int       `json:"window"`
	Diff    float64   `json:"diff"`
	Reason  Reason    `json:"reason"`
	Numbers []float64 `json:"numbers"`
}

// Detector searches trailing windows from WinMax down to WinMin for a
// window in which today's value of a key is out of its own range and out of
// the cohort's normal variability.
type Detector struct {
	Coeff  float64
	WinMin int
	WinMax int

	logger *zap.Logger
}

// NewDetector creates a Detector. A nil logger discards decision traces.
func NewDetector(coeff float64, winMin, winMax int, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		Coeff:  coeff,
		WinMin: winMin,
		WinMax: winMax,
		logger: logger,
	}
}

// Detect evaluates the series of key against cal, which must be built from
// the cohort the series belongs to. A nil cal calibrates on the key alone,
// so only the zero rule can fire. The first window that triggers wins.
func (d *Detector) Detect(key string, numbers []float64, cal *Calibration) (Spike, bool) {
	if len(numbers) < 2 {
		return Spike{}, false
	}
	if cal == nil {
		cal = NewCalibration(series.Cohort{key: numbers}, DefaultCalibrationOptions())
	}
	last := numbers[len(numbers)-1]
	history := numbers[:len(numbers)-1]

	for win := d.WinMax; win >= d.WinMin; win-- {
		m, e := robust.MeanStd(series.Tail(history, win))
		m = math.Ceil(m)
		if e != 0 {
			e = math.Ceil(e)
		} else {
			e = 1
		}

		diff := last - m
		if !(diff > d.Coeff*e) {
			continue
		}

		env := cal.Envelope(win)
		reason, ok := decide(last, m, env)
		d.logger.Debug("key out of its own range",
			zap.String("key", key),
			zap.Int("window", win),
			zap.Float64("mean", m),
			zap.Float64("dispersion", e),
			zap.Float64("diff", diff),
			zap.Float64("cohort_mean_rate", env.MeanRate),
			zap.Float64("cohort_rate_dispersion", env.RateDispersion),
			zap.Float64("cohort_mean_diff", env.MeanDiff),
			zap.Float64("cohort_diff_dispersion", env.DiffDispersion),
			zap.String("reason", string(reason)),
		)
		if ok {
			return Spike{
				Key:     key,
				Window:  win,
				Diff:    diff,
				Reason:  reason,
				Numbers: numbers,
			}, true
		}
	}
	return Spike{}, false
}

func decide(last, m float64, env Envelope) (Reason, bool) {
	if m == 0 {
		return ReasonZero, true
	}
	rate := math.RoundToEven(100 * (last/m - 1))
	if rate-env.MeanRate > env.RateDispersion {
		return ReasonRate, true
	}
	if last-m-env.MeanDiff > env.DiffDispersion {
		return ReasonDiff, true
	}
	return "", false
}
