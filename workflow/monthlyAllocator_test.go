package workflow

import (
	"math"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/models"
)

func testTarget() models.MonthlyTarget {
	return models.MonthlyTarget{
		Month:          "2025-03",
		Leads:          40,
		Contacts:       120,
		Companies:      18,
		Deals:          35,
		ClosedWonCount: 9,
		ClosedWonValue: 220000,
		PipelineValue:  900000,
	}
}

func TestAllocateMonth_CountsSumExactly(t *testing.T) {
	alloc, err := AllocateMonth(NewSeededRNGFromString("month"), testTarget())
	if err != nil {
		t.Fatal(err)
	}
	if alloc.Month != "2025-03" {
		t.Fatalf("month = %q", alloc.Month)
	}
	if len(alloc.Days) != 31 {
		t.Fatalf("march has 31 days, got %d", len(alloc.Days))
	}

	target := testTarget()
	for _, metric := range models.CountMetrics {
		sum := 0
		for _, day := range alloc.Days {
			sum += day.Counts[metric]
		}
		if sum != target.CountMetric(metric) {
			t.Errorf("%s: days sum to %d, target %d", metric, sum, target.CountMetric(metric))
		}
	}
}

func TestAllocateMonth_ValuesSumWithinCent(t *testing.T) {
	alloc, err := AllocateMonth(NewSeededRNGFromString("month"), testTarget())
	if err != nil {
		t.Fatal(err)
	}
	target := testTarget()
	for _, metric := range models.ValueMetrics {
		var sum float64
		for _, day := range alloc.Days {
			sum += day.Values[metric]
		}
		if math.Abs(sum-target.ValueMetric(metric)) > 0.011 {
			t.Errorf("%s: days sum to %.2f, target %.2f", metric, sum, target.ValueMetric(metric))
		}
	}
}

func TestAllocateMonth_NothingOnWeekends(t *testing.T) {
	alloc, err := AllocateMonth(NewSeededRNGFromString("month"), testTarget())
	if err != nil {
		t.Fatal(err)
	}
	for _, day := range alloc.Days {
		wd := day.Date.Weekday()
		isWeekend := wd == time.Saturday || wd == time.Sunday
		if isWeekend != !day.IsBusinessDay {
			t.Fatalf("%v: IsBusinessDay=%v", day.Date, day.IsBusinessDay)
		}
		if !day.IsBusinessDay {
			for metric, n := range day.Counts {
				if n != 0 {
					t.Fatalf("%v (weekend) got %d %s", day.Date, n, metric)
				}
			}
			for metric, v := range day.Values {
				if v != 0 {
					t.Fatalf("%v (weekend) got %.2f %s", day.Date, v, metric)
				}
			}
		}
	}
}

func TestAllocateMonth_Deterministic(t *testing.T) {
	a, err := AllocateMonth(NewSeededRNGFromString("repeat"), testTarget())
	if err != nil {
		t.Fatal(err)
	}
	b, err := AllocateMonth(NewSeededRNGFromString("repeat"), testTarget())
	if err != nil {
		t.Fatal(err)
	}
	for d := range a.Days {
		for _, metric := range models.CountMetrics {
			if a.Days[d].Counts[metric] != b.Days[d].Counts[metric] {
				t.Fatalf("day %d %s differs between runs", d, metric)
			}
		}
		for _, metric := range models.ValueMetrics {
			if a.Days[d].Values[metric] != b.Days[d].Values[metric] {
				t.Fatalf("day %d %s differs between runs", d, metric)
			}
		}
	}
}

func TestAllocateMonth_RejectsBadMonth(t *testing.T) {
	target := testTarget()
	target.Month = "March 2025"
	if _, err := AllocateMonth(NewSeededRNGFromString("bad"), target); err == nil {
		t.Fatal("expected error for malformed month")
	}
}

func TestGenerateTimestamp_OnGivenDayInBusinessHours(t *testing.T) {
	rng := NewSeededRNGFromString("ts")
	day := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		ts := GenerateTimestamp(rng, day)
		if ts.Year() != 2025 || ts.Month() != 3 || ts.Day() != 12 {
			t.Fatalf("timestamp moved off the day: %v", ts)
		}
		if ts.Hour() < 9 || ts.Hour() > 18 {
			t.Fatalf("timestamp outside business hours: %v", ts)
		}
	}
}
