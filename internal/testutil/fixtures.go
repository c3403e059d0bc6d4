// Package testutil builds series fixtures for tests.
package testutil

import (
	"fmt"

	"github.com/mozilla/spikes/internal/spikes/series"
)

// NewCohort returns n keys k1..kn sharing the same numbers, suitable as the
// calm background of a cohort. Every key gets its own copy of numbers.
func NewCohort(n int, numbers []float64, opts ...func(series.Cohort)) series.Cohort {
	c := make(series.Cohort, n)
	for i := 1; i <= n; i++ {
		c[fmt.Sprintf("k%d", i)] = append([]float64(nil), numbers...)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithKey adds or replaces a key.
func WithKey(key string, numbers ...float64) func(series.Cohort) {
	return func(c series.Cohort) { c[key] = numbers }
}

// WithoutKey removes a key.
func WithoutKey(key string) func(series.Cohort) {
	return func(c series.Cohort) { delete(c, key) }
}

// Signatures returns a day of signature counts in which sgn::foo4 and
// sgn::foo5 exploded.
func Signatures(opts ...func(series.Cohort)) series.Cohort {
	c := series.Cohort{
		"sgn::foo1":  {1, 5},
		"sgn::foo2":  {10, 17},
		"sgn::foo3":  {7, 13},
		"sgn::foo4":  {12, 1141},
		"sgn::foo5":  {21, 836},
		"sgn::foo6":  {8, 4},
		"sgn::foo7":  {13, 4},
		"sgn::foo8":  {13, 19},
		"sgn::foo9":  {19, 25},
		"sgn::foo10": {32, 55},
		"sgn::foo11": {3, 9},
		"sgn::foo12": {37, 53},
		"sgn::foo13": {32, 55},
		"sgn::foo14": {47, 48},
		"sgn::foo15": {105, 115},
		"sgn::foo16": {437, 523},
		"sgn::foo17": {149, 213},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Channels returns a week of channel totals: nightly spikes today, aurora
// stays in range.
func Channels() map[string][]float64 {
	return map[string][]float64{
		"nightly": {10, 20, 15, 9, 14, 17, 50},
		"aurora":  {100, 200, 150, 90, 140, 170, 150},
	}
}
