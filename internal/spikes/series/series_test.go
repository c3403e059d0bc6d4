package series

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestCohort_KeysAndLen(t *testing.T) {
	c := Cohort{"b": {1, 2}, "a": {3, 4}, "c": {5, 6}}
	if got := c.Keys(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Keys() = %v", got)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if (Cohort{}).Len() != 0 {
		t.Error("empty cohort Len() != 0")
	}
}

func TestCohort_Validate(t *testing.T) {
	if err := (Cohort{"a": {1, 2}, "b": {3, 4}}).Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	err := (Cohort{"a": {1, 2}, "b": {3, 4, 5}}).Validate()
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("Validate() = %v, want ErrLengthMismatch", err)
	}
}

func TestCohort_Top(t *testing.T) {
	c := Cohort{
		"low":  {1, 1},
		"high": {1, 50},
		"mid":  {1, 20},
		"tie":  {1, 20},
	}
	top := c.Top(2)
	if len(top) != 2 {
		t.Fatalf("Top(2) len = %d", len(top))
	}
	if _, ok := top["high"]; !ok {
		t.Error("Top(2) dropped high")
	}
	if _, ok := top["mid"]; !ok {
		t.Error("Top(2) should keep mid over tie")
	}
	if got := c.Top(0); len(got) != 4 {
		t.Errorf("Top(0) len = %d, want 4", len(got))
	}
}

func TestTail(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	if got := Tail(x, 2); !slices.Equal(got, []float64{3, 4}) {
		t.Errorf("Tail(2) = %v", got)
	}
	if got := Tail(x, 10); !slices.Equal(got, x) {
		t.Errorf("Tail(10) = %v", got)
	}
	if got := Tail(x, 0); len(got) != 0 {
		t.Errorf("Tail(0) = %v", got)
	}
}

func TestCounts(t *testing.T) {
	end := time.Date(2016, 6, 10, 15, 4, 0, 0, time.UTC)
	c := FromSlice(end, []float64{1, 2, 3})
	if got := c.Array(); !slices.Equal(got, []float64{1, 2, 3}) {
		t.Errorf("Array() = %v", got)
	}
	if c[Day(end)] != 3 {
		t.Errorf("last day count = %v, want 3", c[Day(end)])
	}

	other := FromSlice(end, []float64{10, 20, 30})
	sum := c.Clone()
	sum.Add(other)
	if got := sum.Array(); !slices.Equal(got, []float64{11, 22, 33}) {
		t.Errorf("Add() = %v", got)
	}
	if got := c.Array(); !slices.Equal(got, []float64{1, 2, 3}) {
		t.Errorf("Clone() shares storage: %v", got)
	}
}

func TestDatesAndLabels(t *testing.T) {
	end := time.Date(2016, 6, 10, 0, 0, 0, 0, time.UTC)
	days := Dates(end, 2)
	if len(days) != 3 || !days[0].Equal(time.Date(2016, 6, 8, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Dates() = %v", days)
	}
	if got := Label(end); got != "Fri 06-10" {
		t.Errorf("Label() = %q, want %q", got, "Fri 06-10")
	}
	pts := Labelled(end, []float64{7, 8})
	if pts[0].Label != "Thu 06-09" || pts[1].Value != 8 {
		t.Errorf("Labelled() = %+v", pts)
	}
}
