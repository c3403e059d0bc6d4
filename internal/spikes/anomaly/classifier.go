package anomaly

import (
	"math"

	"github.com/mozilla/spikes/internal/spikes/baseline"
	"github.com/mozilla/spikes/internal/spikes/robust"
)

// Verdict is the direction of a detected change.
type Verdict string

// Verdicts returned by Classify.
const (
	VerdictUp   Verdict = "up"
	VerdictDown Verdict = "down"
	VerdictNone Verdict = "none"
)

// Classification is the result of Classify. Baseline covers the series
// without its last point and is kept for plotting.
type Classification struct {
	Verdict  Verdict           `json:"verdict"`
	Today    float64           `json:"today"`
	Center   float64           `json:"center"` // ceiled mean baseline level over the window
	Band     float64           `json:"band"`   // ceiled half-width of the normal range
	Coeff    float64           `json:"coeff"`
	Window   int               `json:"window"`
	Baseline baseline.Baseline `json:"-"`
}

// Classify decides whether the last value of x is a spike or a drop relative
// to the robust baseline of the preceding values. The baseline level and
// dispersion are averaged over the last win points; the normal range is
// Center ± ceil(coeff·ceil(dispersion)). Both bounds are strict and the
// verdict also requires a move in the same direction versus yesterday.
func Classify(x []float64, coeff float64, win int) Classification {
	c := Classification{Verdict: VerdictNone, Coeff: coeff, Window: win}
	if len(x) < 2 {
		return c
	}

	history := x[:len(x)-1]
	c.Today = x[len(x)-1]
	c.Baseline = baseline.MultiMoving(history, robust.MethodMean, coeff)

	level, dispersion := c.Baseline.TailMean(win)
	c.Center = math.Ceil(level)
	c.Band = math.Ceil(coeff * math.Ceil(dispersion))

	yesterday := history[len(history)-1]
	switch {
	case c.Today > c.Center+c.Band && c.Today > yesterday:
		c.Verdict = VerdictUp
	case c.Today < c.Center-c.Band && c.Today < yesterday:
		c.Verdict = VerdictDown
	}
	return c
}

// Bands is the smoothed normal range along the whole history, for plotting.
type Bands struct {
	Center []float64 `json:"center"`
	Upper  []float64 `json:"upper"`
	Lower  []float64 `json:"lower"`
}

// Bands smooths the baseline with a trailing window and applies the same
// rounding as Classify at every point.
func (c Classification) Bands() Bands {
	center := baseline.MovingAverage(c.Baseline.Level, c.Window)
	disp := baseline.MovingAverage(c.Baseline.Dispersion, c.Window)

	b := Bands{
		Center: make([]float64, len(center)),
		Upper:  make([]float64, len(center)),
		Lower:  make([]float64, len(center)),
	}
	for i := range center {
		m := math.Ceil(center[i])
		d := math.Ceil(c.Coeff * math.Ceil(disp[i]))
		b.Center[i] = m
		b.Upper[i] = m + d
		b.Lower[i] = m - d
	}
	return b
}
