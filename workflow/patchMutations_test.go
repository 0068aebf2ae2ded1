package workflow

import (
	"math"
	"testing"
	"time"
)

func cand(id, daysAgo int, referenced, preferred bool) DeletionCandidate {
	return DeletionCandidate{
		ID:         id,
		CreatedAt:  time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -daysAgo),
		Referenced: referenced,
		Preferred:  preferred,
	}
}

func TestSelectForDeletion_NeverPicksReferenced(t *testing.T) {
	cands := []DeletionCandidate{
		cand(1, 0, true, false),
		cand(2, 1, false, false),
		cand(3, 2, true, false),
		cand(4, 3, false, false),
	}
	picked := SelectForDeletion(cands, 10)
	if len(picked) != 2 {
		t.Fatalf("picked %v, want exactly the 2 unreferenced ids", picked)
	}
	for _, id := range picked {
		if id == 1 || id == 3 {
			t.Fatalf("picked referenced id %d", id)
		}
	}
}

func TestSelectForDeletion_NewestFirst(t *testing.T) {
	cands := []DeletionCandidate{
		cand(1, 5, false, false),
		cand(2, 1, false, false),
		cand(3, 3, false, false),
	}
	picked := SelectForDeletion(cands, 2)
	if len(picked) != 2 || picked[0] != 2 || picked[1] != 3 {
		t.Fatalf("picked %v, want [2 3]", picked)
	}
}

func TestSelectForDeletion_PreferredBeforeNewer(t *testing.T) {
	cands := []DeletionCandidate{
		cand(1, 0, false, false), // newest but not preferred
		cand(2, 9, false, true),
		cand(3, 5, false, true),
	}
	picked := SelectForDeletion(cands, 3)
	if len(picked) != 3 {
		t.Fatalf("picked %v", picked)
	}
	// Preferred first (newest among them), then the rest.
	if picked[0] != 3 || picked[1] != 2 || picked[2] != 1 {
		t.Fatalf("picked %v, want [3 2 1]", picked)
	}
}

func TestSelectForDeletion_Bounds(t *testing.T) {
	cands := []DeletionCandidate{cand(1, 0, false, false)}
	if got := SelectForDeletion(cands, 0); got != nil {
		t.Fatalf("n=0 returned %v", got)
	}
	if got := SelectForDeletion(nil, 5); len(got) != 0 {
		t.Fatalf("empty candidates returned %v", got)
	}
}

func sumFloats(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func TestSpreadValueDelta_MovesSumExactly(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		delta  float64
	}{
		{"increase", []float64{1000, 2000, 3000}, 450},
		{"decrease", []float64{1000, 2000, 3000}, -900},
		{"uneven cents", []float64{10.10, 20.20, 30.30}, 0.10},
		{"single value", []float64{5000}, -123.45},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := sumFloats(tc.values)
			out := SpreadValueDelta(tc.values, tc.delta)
			if len(out) != len(tc.values) {
				t.Fatalf("length changed: %v", out)
			}
			after := sumFloats(out)
			if math.Abs(after-(before+tc.delta)) > 0.011 {
				t.Errorf("sum moved by %.2f, want %.2f", after-before, tc.delta)
			}
		})
	}
}

func TestSpreadValueDelta_FloorsAtOneCent(t *testing.T) {
	out := SpreadValueDelta([]float64{0.50, 0.50, 10000}, -2000)
	for _, v := range out {
		if v < 0.01 {
			t.Fatalf("value dropped below floor: %v", out)
		}
	}
	// The big value absorbs what the small ones cannot give up.
	if math.Abs(sumFloats(out)-8001) > 0.011 {
		t.Errorf("sum = %.2f, want 8001.00", sumFloats(out))
	}
}

func TestSpreadValueDelta_NoOpCases(t *testing.T) {
	if got := SpreadValueDelta(nil, 100); len(got) != 0 {
		t.Fatalf("nil values returned %v", got)
	}
	in := []float64{1, 2, 3}
	out := SpreadValueDelta(in, 0)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("zero delta mutated values: %v", out)
		}
	}
	if &out[0] == &in[0] {
		t.Fatal("expected a copy, got the input slice")
	}
}

func TestSpreadValueDelta_DoesNotMutateInput(t *testing.T) {
	in := []float64{100, 200, 300}
	SpreadValueDelta(in, -50)
	if in[0] != 100 || in[1] != 200 || in[2] != 300 {
		t.Fatalf("input mutated: %v", in)
	}
}
