package workflow

import (
	"testing"
	"time"
)

func TestSeededRNG_SameSeedSameSequence(t *testing.T) {
	a := NewSeededRNGFromString("demo-seed")
	b := NewSeededRNGFromString("demo-seed")
	for i := 0; i < 1000; i++ {
		va, vb := a.Next(), b.Next()
		if va != vb {
			t.Fatalf("draw %d diverged: %v vs %v", i, va, vb)
		}
		if va < 0 || va >= 1 {
			t.Fatalf("draw %d out of [0,1): %v", i, va)
		}
	}
}

func TestSeededRNG_DifferentSeedsDiverge(t *testing.T) {
	a := NewSeededRNGFromString("seed-a")
	b := NewSeededRNGFromString("seed-b")
	same := 0
	for i := 0; i < 100; i++ {
		if a.Next() == b.Next() {
			same++
		}
	}
	if same == 100 {
		t.Fatal("different seeds produced identical sequences")
	}
}

// Child streams must not depend on how many draws the parent made, otherwise
// a resumed job would re-derive different sub-streams.
func TestSeededRNG_ChildIsPositionIndependent(t *testing.T) {
	fresh := NewSeededRNGFromString("job-7")
	drained := NewSeededRNGFromString("job-7")
	for i := 0; i < 500; i++ {
		drained.Next()
	}

	ca := fresh.Child("deals-2025-03")
	cb := drained.Child("deals-2025-03")
	for i := 0; i < 100; i++ {
		if ca.Next() != cb.Next() {
			t.Fatalf("child draw %d depends on parent position", i)
		}
	}
}

func TestSeededRNG_ChildrenAreIndependent(t *testing.T) {
	r := NewSeededRNGFromString("job-7")
	a := r.Child("companies")
	b := r.Child("contacts")
	same := 0
	for i := 0; i < 100; i++ {
		if a.Next() == b.Next() {
			same++
		}
	}
	if same == 100 {
		t.Fatal("sibling children produced identical sequences")
	}
}

func TestSeededRNG_IntInclusiveRange(t *testing.T) {
	r := NewSeededRNGFromString("int-range")
	sawMin, sawMax := false, false
	for i := 0; i < 5000; i++ {
		v := r.Int(3, 7)
		if v < 3 || v > 7 {
			t.Fatalf("Int(3,7) returned %d", v)
		}
		if v == 3 {
			sawMin = true
		}
		if v == 7 {
			sawMax = true
		}
	}
	if !sawMin || !sawMax {
		t.Errorf("5000 draws never hit both endpoints (min=%v max=%v)", sawMin, sawMax)
	}
	if got := r.Int(5, 5); got != 5 {
		t.Errorf("Int(5,5) = %d, want 5", got)
	}
}

func TestSeededRNG_BoolProbability(t *testing.T) {
	r := NewSeededRNGFromString("bool")
	hits := 0
	for i := 0; i < 10000; i++ {
		if r.Bool(0.3) {
			hits++
		}
	}
	if hits < 2700 || hits > 3300 {
		t.Errorf("Bool(0.3) hit %d/10000 times", hits)
	}
}

func TestSeededRNG_DealValueStaysInRange(t *testing.T) {
	r := NewSeededRNGFromString("deal-values")
	for i := 0; i < 2000; i++ {
		v := r.DealValue(1000, 150000, 25000, 0.1)
		if v < 1000 || v > 150000 {
			t.Fatalf("deal value %v outside [1000, 150000]", v)
		}
	}
	// avg*1.5 above max must still clamp.
	for i := 0; i < 500; i++ {
		v := r.DealValue(100, 500, 400, 1.0)
		if v < 100 || v > 500 {
			t.Fatalf("whale value %v outside [100, 500]", v)
		}
	}
}

func TestSeededRNG_BusinessDateIsWeekdayWorkingHours(t *testing.T) {
	r := NewSeededRNGFromString("biz-date")
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 23, 59, 0, 0, time.UTC)
	for i := 0; i < 1000; i++ {
		d := r.BusinessDate(start, end)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			t.Fatalf("business date on weekend: %v", d)
		}
		if d.Hour() < 9 || d.Hour() > 18 {
			t.Fatalf("business date outside 9-18: %v", d)
		}
		if d.Before(start) || d.After(end) {
			t.Fatalf("business date outside range: %v", d)
		}
	}
}

func TestPickWeighted_FavorsHeavyWeight(t *testing.T) {
	r := NewSeededRNGFromString("weighted")
	items := []string{"rare", "common"}
	weights := []float64{0.1, 0.9}
	common := 0
	for i := 0; i < 5000; i++ {
		if PickWeighted(r, items, weights) == "common" {
			common++
		}
	}
	if common < 4200 || common > 4800 {
		t.Errorf("heavy item picked %d/5000 times", common)
	}
}

func TestPickMultiple_DistinctAndComplete(t *testing.T) {
	r := NewSeededRNGFromString("multi")
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}

	picked := PickMultiple(r, items, 3)
	if len(picked) != 3 {
		t.Fatalf("got %d items, want 3", len(picked))
	}
	seen := map[int]bool{}
	for _, v := range picked {
		if seen[v] {
			t.Fatalf("duplicate pick %d", v)
		}
		seen[v] = true
	}

	all := PickMultiple(r, items, 20)
	if len(all) != len(items) {
		t.Fatalf("oversized n returned %d items, want %d", len(all), len(items))
	}
}

func TestShuffle_IsDeterministicPermutation(t *testing.T) {
	a := []int{1, 2, 3, 4, 5, 6}
	b := []int{1, 2, 3, 4, 5, 6}
	Shuffle(NewSeededRNGFromString("shuffle"), a)
	Shuffle(NewSeededRNGFromString("shuffle"), b)

	seen := map[int]bool{}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed shuffled differently at %d", i)
		}
		seen[a[i]] = true
	}
	if len(seen) != 6 {
		t.Fatalf("shuffle lost elements: %v", a)
	}
}
