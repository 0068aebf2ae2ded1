package utils

import (
	"testing"
	"time"
)

func TestIsValidMonth(t *testing.T) {
	valid := []string{"2025-01", "2025-12", "1999-06"}
	for _, m := range valid {
		if !IsValidMonth(m) {
			t.Errorf("IsValidMonth(%q) = false", m)
		}
	}
	invalid := []string{"", "2025", "2025-13", "2025-00", "2025-1", "25-01", "2025/01", "March 2025"}
	for _, m := range invalid {
		if IsValidMonth(m) {
			t.Errorf("IsValidMonth(%q) = true", m)
		}
	}
}

func TestParseMonth(t *testing.T) {
	got, err := ParseMonth("2025-03")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseMonth = %v, want %v", got, want)
	}
	if _, err := ParseMonth("2025-3"); err == nil {
		t.Error("expected error for malformed month")
	}
}

func TestMonthRange(t *testing.T) {
	first := time.Date(2024, 11, 20, 5, 0, 0, 0, time.UTC)
	last := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	got := MonthRange(first, last)
	want := []string{"2024-11", "2024-12", "2025-01", "2025-02"}
	if len(got) != len(want) {
		t.Fatalf("MonthRange = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MonthRange[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	single := MonthRange(last, last)
	if len(single) != 1 || single[0] != "2025-02" {
		t.Errorf("single month range = %v", single)
	}
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{
		1.005:   1.01,
		1.004:   1.0,
		-2.675:  -2.68,
		100:     100,
		0.00001: 0,
	}
	for in, want := range cases {
		if got := Round2(in); got != want {
			t.Errorf("Round2(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	want := []int{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("UniqueSlice = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("UniqueSlice[%d] = %d, want %d (order must be first-seen)", i, got[i], want[i])
		}
	}
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"b": 1, "a": 2, "c": 3}
	got := SortedKeys(m)
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortedKeys = %v", got)
		}
	}
}
