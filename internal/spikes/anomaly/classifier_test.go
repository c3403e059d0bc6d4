package anomaly

import (
	"math"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		x           []float64
		coeff       float64
		win         int
		wantVerdict Verdict
	}{
		{
			name:        "nightly spike",
			x:           []float64{10, 20, 15, 9, 14, 17, 50},
			coeff:       5,
			win:         3,
			wantVerdict: VerdictUp,
		},
		{
			name:        "aurora within range",
			x:           []float64{100, 200, 150, 90, 140, 170, 150},
			coeff:       5,
			win:         3,
			wantVerdict: VerdictNone,
		},
		{
			name:        "drop",
			x:           []float64{50, 52, 49, 51, 50, 48, 20},
			coeff:       3,
			win:         3,
			wantVerdict: VerdictDown,
		},
		{
			name:        "too short",
			x:           []float64{50},
			coeff:       3,
			win:         3,
			wantVerdict: VerdictNone,
		},
		{
			name:        "all NaN",
			x:           []float64{math.NaN(), math.NaN(), math.NaN()},
			coeff:       3,
			win:         3,
			wantVerdict: VerdictNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.x, tt.coeff, tt.win)
			if c.Verdict != tt.wantVerdict {
				t.Errorf("Classify() Verdict = %v, want %v", c.Verdict, tt.wantVerdict)
			}
			if len(tt.x) > 1 && c.Baseline.Len() != len(tt.x)-1 {
				t.Errorf("Classify() baseline len = %d, want %d", c.Baseline.Len(), len(tt.x)-1)
			}
		})
	}
}

func TestClassify_CenterAndBand(t *testing.T) {
	c := Classify([]float64{10, 20, 15, 9, 14, 17, 50}, 5, 3)
	if c.Center != 15 || c.Band != 10 {
		t.Errorf("Classify() center/band = %v/%v, want 15/10", c.Center, c.Band)
	}
}

func TestClassify_StrictBounds(t *testing.T) {
	history := []float64{10, 20, 15, 9, 14, 17}
	tests := []struct {
		name  string
		today float64
		want  Verdict
	}{
		{name: "exactly at upper bound", today: 25, want: VerdictNone},
		{name: "just above upper bound", today: 26, want: VerdictUp},
		{name: "exactly at lower bound", today: 5, want: VerdictNone},
		{name: "just below lower bound", today: 4, want: VerdictDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := append(append([]float64(nil), history...), tt.today)
			if got := Classify(x, 5, 3).Verdict; got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify_RequiresMoveVersusYesterday(t *testing.T) {
	// Today is above the normal range but below yesterday's value.
	c := Classify([]float64{10, 11, 10, 12, 11, 10, 200, 150}, 2, 4)
	if c.Today <= c.Center+c.Band {
		t.Fatalf("fixture: today %v should exceed %v", c.Today, c.Center+c.Band)
	}
	if c.Verdict != VerdictNone {
		t.Errorf("Classify() = %v, want none", c.Verdict)
	}
}

func TestClassify_WiderCoeffNeverAddsVerdict(t *testing.T) {
	inputs := [][]float64{
		{10, 20, 15, 9, 14, 17, 50},
		{100, 200, 150, 90, 140, 170, 150},
		{50, 52, 49, 51, 50, 48, 20},
	}
	coeffs := []float64{1, 1.5, 2, 3, 4, 5, 6, 8, 10, 12, 15, 20}
	for _, x := range inputs {
		seenNone := false
		for _, coeff := range coeffs {
			v := Classify(x, coeff, 3).Verdict
			if seenNone && v != VerdictNone {
				t.Errorf("Classify(%v, coeff=%v) = %v after a none verdict at a smaller coeff", x, coeff, v)
			}
			if v == VerdictNone {
				seenNone = true
			}
		}
	}
}

func TestClassification_Bands(t *testing.T) {
	c := Classify([]float64{10, 20, 15, 9, 14, 17, 50}, 5, 3)
	b := c.Bands()
	if len(b.Center) != 6 || len(b.Upper) != 6 || len(b.Lower) != 6 {
		t.Fatalf("Bands() lengths = %d/%d/%d, want 6", len(b.Center), len(b.Upper), len(b.Lower))
	}
	for i := range b.Center {
		if b.Upper[i] < b.Center[i] || b.Lower[i] > b.Center[i] {
			t.Errorf("Bands()[%d] = %v/%v/%v, want lower <= center <= upper", i, b.Lower[i], b.Center[i], b.Upper[i])
		}
	}
	last := len(b.Center) - 1
	if b.Center[last] != c.Center || b.Upper[last] != c.Center+c.Band {
		t.Errorf("Bands() last point = %v/%v, want %v/%v", b.Center[last], b.Upper[last], c.Center, c.Center+c.Band)
	}
}
