// Package series holds the data model shared by the detectors: daily count
// series, cohorts of series on a common date axis, and date-keyed counts.
package series

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrLengthMismatch is returned by Cohort.Validate.
var ErrLengthMismatch = errors.New("cohort series lengths differ")

// LabelLayout renders a day of the date axis, e.g. "Fri 06-10".
const LabelLayout = "Mon 01-02"

// Cohort maps a key to its daily series. All series share one date axis,
// oldest first, so they have the same length.
type Cohort map[string][]float64

// Keys returns the keys in lexical order.
func (c Cohort) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the common series length, or 0 for an empty cohort.
func (c Cohort) Len() int {
	for _, x := range c {
		return len(x)
	}
	return 0
}

// Validate checks that every series has the same length.
func (c Cohort) Validate() error {
	want := -1
	for _, k := range c.Keys() {
		n := len(c[k])
		if want < 0 {
			want = n
			continue
		}
		if n != want {
			return fmt.Errorf("%w: %q has %d points, want %d", ErrLengthMismatch, k, n, want)
		}
	}
	return nil
}

// Top keeps the n keys with the largest last value. Ties keep the
// lexically smaller key. n <= 0 or n >= len(c) returns c unchanged.
func (c Cohort) Top(n int) Cohort {
	if n <= 0 || n >= len(c) {
		return c
	}
	keys := c.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		return last(c[keys[i]]) > last(c[keys[j]])
	})
	out := make(Cohort, n)
	for _, k := range keys[:n] {
		out[k] = c[k]
	}
	return out
}

func last(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return x[len(x)-1]
}

// Tail returns the last win points of x, or all of x when it is shorter.
func Tail(x []float64, win int) []float64 {
	if win < 0 {
		win = 0
	}
	start := len(x) - win
	if start < 0 {
		start = 0
	}
	return x[start:]
}

// Counts maps a day to a count. Days are truncated to midnight UTC.
type Counts map[time.Time]float64

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FromSlice builds Counts for values ending on day end, oldest first.
func FromSlice(end time.Time, values []float64) Counts {
	days := Dates(end, len(values)-1)
	c := make(Counts, len(values))
	for i, v := range values {
		c[days[i]] = v
	}
	return c
}

// Array returns the counts ordered by day.
func (c Counts) Array() []float64 {
	days := make([]time.Time, 0, len(c))
	for d := range c {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	out := make([]float64, len(days))
	for i, d := range days {
		out[i] = c[d]
	}
	return out
}

// Add sums other into c day by day.
func (c Counts) Add(other Counts) {
	for d, v := range other {
		c[d] += v
	}
}

// Clone returns a copy of c.
func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	for d, v := range c {
		out[d] = v
	}
	return out
}

// Dates returns the ndays+1 days ending on end, oldest first.
func Dates(end time.Time, ndays int) []time.Time {
	if ndays < 0 {
		return nil
	}
	end = Day(end)
	out := make([]time.Time, ndays+1)
	for i := range out {
		out[i] = end.AddDate(0, 0, i-ndays)
	}
	return out
}

// Label renders a day of the date axis.
func Label(t time.Time) string {
	return t.Format(LabelLayout)
}

// Point is one labelled value of a series.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Labelled pairs the values of a series ending on end with day labels.
func Labelled(end time.Time, values []float64) []Point {
	days := Dates(end, len(values)-1)
	out := make([]Point, len(values))
	for i, v := range values {
		out[i] = Point{Label: Label(days[i]), Value: v}
	}
	return out
}
