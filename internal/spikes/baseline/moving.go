// Package baseline estimates the robust, piecewise-constant "normal" level
// of a daily series together with its local dispersion.
package baseline

import (
	"math"

	"github.com/mozilla/spikes/internal/spikes/robust"
)

// Baseline holds a level and a dispersion for every point of a series.
type Baseline struct {
	Level      []float64
	Dispersion []float64
}

func newBaseline(n int) Baseline {
	return Baseline{Level: make([]float64, n), Dispersion: make([]float64, n)}
}

// Len returns the number of points covered by the baseline.
func (b Baseline) Len() int {
	return len(b.Level)
}

// TailMean averages the last win levels and dispersions. A window larger
// than the baseline covers all of it.
func (b Baseline) TailMean(win int) (level, dispersion float64) {
	start := b.Len() - win
	if start < 0 {
		start = 0
	}
	return robust.Mean(b.Level[start:]), robust.Mean(b.Dispersion[start:])
}

func (b Baseline) reversed() Baseline {
	return Baseline{Level: reversed(b.Level), Dispersion: reversed(b.Dispersion)}
}

// span is an inclusive index range of one segment.
type span struct {
	start, end int
}

// Moving scans x left to right and splits it into segments: a point joins
// the current segment when its distance to the center of the segment
// extended by it is at most coeff times the extended dispersion. Every
// point then receives its own segment's center and dispersion.
func Moving(x []float64, method robust.Method, coeff float64) Baseline {
	b := newBaseline(len(x))
	if len(x) == 0 {
		return b
	}

	for _, s := range segment(x, method, coeff) {
		c, d := method.Estimate(x[s.start : s.end+1])
		for k := s.start; k <= s.end; k++ {
			b.Level[k] = c
			b.Dispersion[k] = d
		}
	}
	return b
}

func segment(x []float64, method robust.Method, coeff float64) []span {
	spans := []span{{0, 0}}
	for i := 1; i < len(x); i++ {
		last := len(spans) - 1
		c, d := method.Estimate(x[spans[last].start : i+1])
		if math.Abs(x[i]-c) <= coeff*d {
			spans[last].end = i
			continue
		}
		spans = append(spans, span{i, i})
	}
	return spans
}

// MultiMoving runs Moving from every split point of x and keeps, for each
// point, the candidate with the smallest dispersion. The result is
// non-causal and costs O(n²) estimator calls.
//
// Candidate rows of the n×n table:
//   - row 0: forward pass over x;
//   - row n-1: backward pass over x;
//   - row i in between: backward pass over x[:i+1] spliced with a forward
//     pass over x[i:]. At the splice point i the forward statistic is used
//     when its dispersion is strictly smaller.
//
// Ties between rows go to the lowest row.
func MultiMoving(x []float64, method robust.Method, coeff float64) Baseline {
	n := len(x)
	if n == 0 {
		return newBaseline(0)
	}

	rows := make([]Baseline, n)
	rows[0] = Moving(x, method, coeff)
	rows[n-1] = Moving(reversed(x), method, coeff).reversed()
	for i := 1; i < n-1; i++ {
		rows[i] = splice(x, i, method, coeff)
	}

	out := newBaseline(n)
	for col := 0; col < n; col++ {
		best := 0
		for r := 1; r < n; r++ {
			if rows[r].Dispersion[col] < rows[best].Dispersion[col] {
				best = r
			}
		}
		out.Level[col] = rows[best].Level[col]
		out.Dispersion[col] = rows[best].Dispersion[col]
	}
	return out
}

func splice(x []float64, i int, method robust.Method, coeff float64) Baseline {
	left := Moving(reversed(x[:i+1]), method, coeff)
	right := Moving(x[i:], method, coeff)

	// left[0] and right[0] both describe x[i].
	if right.Dispersion[0] < left.Dispersion[0] {
		left.Level[0] = right.Level[0]
		left.Dispersion[0] = right.Dispersion[0]
	}

	row := newBaseline(len(x))
	for k := 0; k <= i; k++ {
		row.Level[k] = left.Level[i-k]
		row.Dispersion[k] = left.Dispersion[i-k]
	}
	copy(row.Level[i+1:], right.Level[1:])
	copy(row.Dispersion[i+1:], right.Dispersion[1:])
	return row
}

// MovingAverage is the trailing mean of x over win points. The first win-1
// points average over the shorter prefix available.
func MovingAverage(x []float64, win int) []float64 {
	out := make([]float64, len(x))
	if win < 1 {
		win = 1
	}
	var sum float64
	for k, v := range x {
		sum += v
		if k >= win {
			sum -= x[k-win]
		}
		out[k] = sum / float64(min(k+1, win))
	}
	return out
}

func reversed(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[len(x)-1-i] = v
	}
	return out
}
