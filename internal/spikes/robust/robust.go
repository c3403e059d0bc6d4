// Package robust provides the two location/dispersion estimators used by the
// outlier test and the piecewise baseline.
package robust

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// ErrUnknownMethod is returned by ParseMethod for an unrecognized name.
var ErrUnknownMethod = errors.New("unknown centering method")

// Method selects how the center and dispersion of a sample are estimated.
type Method int

const (
	// MethodMean uses the arithmetic mean and the population standard deviation.
	MethodMean Method = iota
	// MethodMedian uses the median and the median absolute deviation.
	MethodMedian
)

func (m Method) String() string {
	switch m {
	case MethodMean:
		return "mean"
	case MethodMedian:
		return "median"
	default:
		return "unknown"
	}
}

// ParseMethod maps "mean" or "median" to a Method. The empty string selects MethodMean.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "mean", "":
		return MethodMean, nil
	case "median":
		return MethodMedian, nil
	default:
		return MethodMean, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Estimate returns the center and dispersion of xs.
// An empty sample yields (NaN, NaN).
func (m Method) Estimate(xs []float64) (center, dispersion float64) {
	if len(xs) == 0 {
		return math.NaN(), math.NaN()
	}
	if m == MethodMedian {
		return medianMAD(xs)
	}
	return stat.PopMeanStdDev(xs, nil)
}

// MeanStd returns the mean and population standard deviation of xs.
func MeanStd(xs []float64) (mean, std float64) {
	return MethodMean.Estimate(xs)
}

// Mean returns the arithmetic mean of xs, or NaN when xs is empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

func medianMAD(xs []float64) (float64, float64) {
	med, err := stats.Median(xs)
	if err != nil {
		return math.NaN(), math.NaN()
	}
	mad, err := stats.MedianAbsoluteDeviation(xs)
	if err != nil {
		return med, math.NaN()
	}
	return med, mad
}

// Active returns the entries of xs whose mask flag is set and which are not NaN.
// A nil mask keeps every non-NaN entry.
func Active(xs []float64, mask []bool) []float64 {
	out := make([]float64, 0, len(xs))
	for i, x := range xs {
		if math.IsNaN(x) || (mask != nil && !mask[i]) {
			continue
		}
		out = append(out, x)
	}
	return out
}
