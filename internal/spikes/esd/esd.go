// Package esd implements the generalized extreme Studentized deviate test
// for outliers (Rosner 1983; NIST/SEMATECH e-Handbook, section 1.3.5.17).
package esd

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mozilla/spikes/internal/spikes/robust"
)

// Defaults used by the cross-key calibration.
const (
	DefaultAlpha       = 0.05
	DefaultMaxOutliers = 10
)

// Critical returns the critical value lambda_i of the test for the i-th
// candidate outlier among n points at significance alpha. ok is false when
// the t-distribution has no degree of freedom left.
func Critical(n, i int, alpha float64) (lambda float64, ok bool) {
	df := n - i - 1
	if df < 1 {
		return 0, false
	}
	p := 1 - alpha/(2*float64(n-i+1))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}.Quantile(p)
	lambda = float64(n-i) * t / math.Sqrt((float64(df)+t*t)*float64(n-i+1))
	return lambda, true
}

// Test flags up to r outliers in x and returns their indices in the order
// they were flagged, most extreme first, not in array order. NaN entries
// never take part in the test.
func Test(x []float64, r int, alpha float64, method robust.Method) []int {
	return TestMasked(x, nil, r, alpha, method)
}

// TestMasked is Test restricted to the entries whose mask flag is set.
// A nil mask selects every entry. n in the critical value is always len(x).
func TestMasked(x []float64, mask []bool, r int, alpha float64, method robust.Method) []int {
	n := len(x)
	active := make([]bool, n)
	for i, v := range x {
		active[i] = !math.IsNaN(v) && (mask == nil || mask[i])
	}

	var outliers []int
	for i := 1; i <= r; i++ {
		values := robust.Active(x, active)
		if len(values) == 0 {
			break
		}
		center, dispersion := method.Estimate(values)
		if dispersion == 0 || math.IsNaN(dispersion) {
			break
		}

		j, dev := farthest(x, active, center)
		lambda, ok := Critical(n, i, alpha)
		if !ok || !(dev > lambda*dispersion) {
			break
		}
		outliers = append(outliers, j)
		active[j] = false
	}
	return outliers
}

// farthest returns the first active index with the largest |x - center|.
func farthest(x []float64, active []bool, center float64) (int, float64) {
	best, bestDev := -1, -1.0
	for i, v := range x {
		if !active[i] {
			continue
		}
		if dev := math.Abs(v - center); dev > bestDev {
			best, bestDev = i, dev
		}
	}
	return best, bestDev
}
