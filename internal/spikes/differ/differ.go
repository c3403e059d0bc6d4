// Package differ computes directional deltas between the last point of a
// daily series and a reference point. Every function reports ok == false
// when the series did not increase.
package differ

import (
	"errors"
	"fmt"
	"math"

	"github.com/mozilla/spikes/internal/spikes/robust"
)

// ErrUnknownDiffer is returned by ByName for an unrecognized differ name.
var ErrUnknownDiffer = errors.New("unknown differ")

// SameDayLag is the distance to the same weekday one week earlier.
const SameDayLag = 7

// Func computes a delta for a series, oldest first.
type Func func(x []float64) (float64, bool)

func delta(prev, last float64) (float64, bool) {
	d := last - prev
	return d, d > 0
}

func relative(prev, last float64) (float64, bool) {
	var d float64
	switch {
	case prev != 0:
		d = last/prev - 1
	case last == 0:
		d = 0
	default:
		d = math.Inf(1)
	}
	return d, d > 0
}

// Diff is last minus previous.
func Diff(x []float64) (float64, bool) {
	if len(x) < 2 {
		return 0, false
	}
	return delta(x[len(x)-2], x[len(x)-1])
}

// DiffP is the relative change from previous to last. It is +Inf when the
// previous value is zero and the last one is not.
func DiffP(x []float64) (float64, bool) {
	if len(x) < 2 {
		return 0, false
	}
	return relative(x[len(x)-2], x[len(x)-1])
}

// DiffSameDay compares the last value with the one SameDayLag steps back.
func DiffSameDay(x []float64) (float64, bool) {
	if len(x) <= SameDayLag {
		return 0, false
	}
	return delta(x[len(x)-1-SameDayLag], x[len(x)-1])
}

// DiffSameDayP is the relative form of DiffSameDay.
func DiffSameDayP(x []float64) (float64, bool) {
	if len(x) <= SameDayLag {
		return 0, false
	}
	return relative(x[len(x)-1-SameDayLag], x[len(x)-1])
}

// DiffMean returns a Func comparing the last value with the mean of the
// ndays values preceding it.
func DiffMean(ndays int) Func {
	return func(x []float64) (float64, bool) {
		prev, ok := trailingMean(x, ndays)
		if !ok {
			return 0, false
		}
		return delta(prev, x[len(x)-1])
	}
}

// DiffMeanP is the relative form of DiffMean.
func DiffMeanP(ndays int) Func {
	return func(x []float64) (float64, bool) {
		prev, ok := trailingMean(x, ndays)
		if !ok {
			return 0, false
		}
		return relative(prev, x[len(x)-1])
	}
}

func trailingMean(x []float64, ndays int) (float64, bool) {
	if len(x) < 2 || ndays < 1 {
		return 0, false
	}
	start := len(x) - 1 - ndays
	if start < 0 {
		start = 0
	}
	return robust.Mean(x[start : len(x)-1]), true
}

// ByName resolves a differ by its configuration name. The mean-based
// differs take their window from ndays.
func ByName(name string, ndays int) (Func, error) {
	switch name {
	case "diff", "":
		return Diff, nil
	case "diff_p":
		return DiffP, nil
	case "diff_same_day":
		return DiffSameDay, nil
	case "diff_same_day_p":
		return DiffSameDayP, nil
	case "diff_mean":
		return DiffMean(ndays), nil
	case "diff_mean_p":
		return DiffMeanP(ndays), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDiffer, name)
	}
}

// Percent renders the change from prev to last the way crash reports show it.
func Percent(prev, last float64) string {
	if prev == 0 {
		if last == 0 {
			return "0%"
		}
		return "+Inf%"
	}
	return fmt.Sprintf("+%d%%", int(math.RoundToEven((last/prev-1)*100)))
}
