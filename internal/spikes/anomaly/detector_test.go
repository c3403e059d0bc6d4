package anomaly

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/mozilla/spikes/internal/spikes/series"
)

func flatCohort(n int, numbers ...float64) series.Cohort {
	c := make(series.Cohort, n)
	for i := 1; i <= n; i++ {
		c[fmt.Sprintf("k%d", i)] = numbers
	}
	return c
}

func TestDetector_ReturnsSmallestTriggeringWindowOnlyWhenLargerOnesDoNot(t *testing.T) {
	numbers := []float64{100, 100, 0, 0, 0, 10}
	cohort := series.Cohort{"k": numbers}
	d := NewDetector(3, 3, 5, nil)

	s, ok := d.Detect("k", numbers, NewCalibration(cohort, DefaultCalibrationOptions()))
	if !ok {
		t.Fatal("Detect() ok = false, want true")
	}
	if s.Window != 3 {
		t.Errorf("Detect() Window = %d, want 3", s.Window)
	}
	if s.Diff != 10 || s.Reason != ReasonZero {
		t.Errorf("Detect() = %+v, want diff 10 reason zero", s)
	}
}

func TestDetector_FirstWindowWins(t *testing.T) {
	cohort := flatCohort(9, 10, 10, 10, 10, 10, 11)
	hot := []float64{10, 10, 12, 8, 10, 40}
	cohort["hot"] = hot

	s, ok := NewDetector(2, 2, 5, nil).Detect("hot", hot, NewCalibration(cohort, DefaultCalibrationOptions()))
	if !ok {
		t.Fatal("Detect() ok = false, want true")
	}
	if s.Window != 5 || s.Diff != 30 || s.Reason != ReasonRate {
		t.Errorf("Detect() = %+v, want window 5 diff 30 reason rate", s)
	}
}

func TestDetector_RateRule(t *testing.T) {
	cohort := flatCohort(9, 10, 10, 10, 11)
	hot := []float64{10, 12, 8, 40}
	cohort["hot"] = hot
	cal := NewCalibration(cohort, DefaultCalibrationOptions())
	d := NewDetector(2, 3, 3, nil)

	s, ok := d.Detect("hot", hot, cal)
	if !ok || s.Reason != ReasonRate || s.Window != 3 {
		t.Errorf("Detect(hot) = %+v, %v; want rate spike at window 3", s, ok)
	}
	if _, ok := d.Detect("k1", cohort["k1"], cal); ok {
		t.Error("Detect(k1) ok = true, want false")
	}

	env := cal.Envelope(3)
	if env.MeanRate != 10 || env.RateDispersion != 0 || env.MeanDiff != 1 || env.DiffDispersion != 0 {
		t.Errorf("Envelope(3) = %+v, want {10 0 1 0}", env)
	}
}

func TestDetector_DiffRule(t *testing.T) {
	cohort := make(series.Cohort)
	for i := 1; i <= 6; i++ {
		cohort[fmt.Sprintf("s%d", i)] = []float64{10, 10, 10, 20}
	}
	big := []float64{1000, 1000, 1000, 1500}
	cohort["big"] = big
	cal := NewCalibration(cohort, DefaultCalibrationOptions())
	d := NewDetector(2, 3, 3, nil)

	s, ok := d.Detect("big", big, cal)
	if !ok || s.Reason != ReasonDiff || s.Diff != 500 {
		t.Errorf("Detect(big) = %+v, %v; want diff spike of 500", s, ok)
	}
	if _, ok := d.Detect("s1", cohort["s1"], cal); ok {
		t.Error("Detect(s1) ok = true, want false")
	}
}

func TestDetector_CohortWideGrowthIsNotASpike(t *testing.T) {
	cohort := flatCohort(9, 10, 12, 8, 40)
	cal := NewCalibration(cohort, DefaultCalibrationOptions())
	if s, ok := NewDetector(2, 3, 3, nil).Detect("k1", cohort["k1"], cal); ok {
		t.Errorf("Detect() = %+v, want no spike when every key grew alike", s)
	}
	if cal.Len() != 1 {
		t.Errorf("Calibration.Len() = %d, want 1", cal.Len())
	}
}

func TestDetector_ShortSeries(t *testing.T) {
	if _, ok := NewDetector(2, 1, 3, nil).Detect("k", []float64{5}, NewCalibration(series.Cohort{}, DefaultCalibrationOptions())); ok {
		t.Error("Detect() ok = true for a single point, want false")
	}
}

func TestDetector_NilCalibration(t *testing.T) {
	tests := []struct {
		name       string
		numbers    []float64
		wantOK     bool
		wantReason Reason
	}{
		{name: "from zero", numbers: []float64{0, 0, 0, 10}, wantOK: true, wantReason: ReasonZero},
		{name: "growth without a cohort", numbers: []float64{10, 10, 10, 40}, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := NewDetector(2, 3, 3, nil).Detect("k", tt.numbers, nil)
			if ok != tt.wantOK || s.Reason != tt.wantReason {
				t.Errorf("Detect() = %+v, %v; want reason %q, %v", s, ok, tt.wantReason, tt.wantOK)
			}
		})
	}
}

func TestCalibration_Memoized(t *testing.T) {
	cohort := flatCohort(9, 10, 10, 10, 11)
	cohort["hot"] = []float64{10, 12, 8, 40}
	cal := NewCalibration(cohort, DefaultCalibrationOptions())

	first := cal.Envelope(3)
	cohort["hot"][3] = 4000 // a stale snapshot must keep serving the cached envelope
	if second := cal.Envelope(3); second != first {
		t.Errorf("Envelope(3) changed between calls: %+v then %+v", first, second)
	}
	cal.Envelope(2)
	if cal.Len() != 2 {
		t.Errorf("Len() = %d, want 2", cal.Len())
	}
}

func TestCalibration_ScopedToCohort(t *testing.T) {
	calm := NewCalibration(flatCohort(5, 10, 10, 10, 11), DefaultCalibrationOptions())
	busy := NewCalibration(flatCohort(5, 10, 10, 10, 30), DefaultCalibrationOptions())
	if calm.RunID == busy.RunID {
		t.Error("calibrations share a run ID")
	}
	if a, b := calm.Envelope(3), busy.Envelope(3); a == b {
		t.Errorf("Envelope(3) identical across cohorts: %+v", a)
	}
}

func TestCalibration_NoSurvivors(t *testing.T) {
	cal := NewCalibration(series.Cohort{"z": {0, 0, 0, 5}}, DefaultCalibrationOptions())
	env := cal.Envelope(3)
	if !math.IsNaN(env.MeanRate) || !math.IsNaN(env.RateDispersion) {
		t.Errorf("Envelope() rate = %v/%v, want NaN when no key has a rate", env.MeanRate, env.RateDispersion)
	}
	if env.MeanDiff != 5 || env.DiffDispersion != 0 {
		t.Errorf("Envelope() diff = %v/%v, want 5/0", env.MeanDiff, env.DiffDispersion)
	}
}

func TestCalibration_ConcurrentUse(t *testing.T) {
	cohort := flatCohort(20, 10, 12, 9, 11, 10, 14)
	cal := NewCalibration(cohort, DefaultCalibrationOptions())
	want := cal.Envelope(4)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(win int) {
			defer wg.Done()
			if env := cal.Envelope(win); win == 4 && env != want {
				t.Errorf("Envelope(4) = %+v, want %+v", env, want)
			}
		}(2 + i%4)
	}
	wg.Wait()
	if cal.Len() != 4 {
		t.Errorf("Len() = %d, want 4", cal.Len())
	}
}
