package anomaly

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/mozilla/spikes/internal/spikes/esd"
	"github.com/mozilla/spikes/internal/spikes/robust"
	"github.com/mozilla/spikes/internal/spikes/series"
)

// Envelope is the normal day-over-window variability of a cohort: the mean
// and dispersion of the percent rate of change and of the absolute diff of
// today against each key's trailing mean, after ESD outliers are removed.
// A field is NaN when no key survived.
type Envelope struct {
	MeanRate       float64
	RateDispersion float64
	MeanDiff       float64
	DiffDispersion float64
}

// CalibrationOptions configures the outlier removal inside a calibration.
type CalibrationOptions struct {
	MaxOutliers int
	Alpha       float64
	Method      robust.Method
}

// DefaultCalibrationOptions returns the options used for crash signatures.
func DefaultCalibrationOptions() CalibrationOptions {
	return CalibrationOptions{
		MaxOutliers: esd.DefaultMaxOutliers,
		Alpha:       esd.DefaultAlpha,
		Method:      robust.MethodMean,
	}
}

// Calibration caches one Envelope per window for a single cohort and run.
// It must not outlive the cohort snapshot it was built from. Safe for
// concurrent use; each window is computed once.
type Calibration struct {
	RunID string

	cohort series.Cohort
	keys   []string
	opts   CalibrationOptions

	mu       sync.Mutex
	byWindow map[int]Envelope
}

// NewCalibration binds a calibration to cohort. The cohort is read, never
// modified.
func NewCalibration(cohort series.Cohort, opts CalibrationOptions) *Calibration {
	return &Calibration{
		RunID:    uuid.New().String(),
		cohort:   cohort,
		keys:     cohort.Keys(),
		opts:     opts,
		byWindow: make(map[int]Envelope),
	}
}

// Envelope returns the cohort envelope for the given trailing window.
func (c *Calibration) Envelope(win int) Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()

	if env, ok := c.byWindow[win]; ok {
		return env
	}
	env := c.compute(win)
	c.byWindow[win] = env
	return env
}

// Len returns the number of windows computed so far.
func (c *Calibration) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byWindow)
}

func (c *Calibration) compute(win int) Envelope {
	rates := make([]float64, len(c.keys))
	diffs := make([]float64, len(c.keys))
	for i, k := range c.keys {
		x := c.cohort[k]
		if len(x) == 0 {
			rates[i], diffs[i] = math.NaN(), math.NaN()
			continue
		}
		last := x[len(x)-1]
		m := math.Ceil(robust.Mean(series.Tail(x[:len(x)-1], win)))
		diffs[i] = last - m
		if m == 0 {
			rates[i] = math.NaN()
			continue
		}
		rates[i] = 100 * (last/m - 1)
	}

	var env Envelope
	env.MeanRate, env.RateDispersion = c.survivors(rates)
	env.MeanRate = math.RoundToEven(env.MeanRate)
	env.RateDispersion = math.RoundToEven(env.RateDispersion)

	env.MeanDiff, env.DiffDispersion = c.survivors(diffs)
	env.MeanDiff = math.Ceil(env.MeanDiff)
	env.DiffDispersion = math.Ceil(env.DiffDispersion)
	return env
}

// survivors drops ESD outliers from x and returns mean and std of the rest.
func (c *Calibration) survivors(x []float64) (float64, float64) {
	keep := make([]bool, len(x))
	for i := range keep {
		keep[i] = true
	}
	for _, j := range esd.Test(x, c.opts.MaxOutliers, c.opts.Alpha, c.opts.Method) {
		keep[j] = false
	}
	return robust.MeanStd(robust.Active(x, keep))
}
