package workflow

import (
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/models"
	"bitbucket.org/mmdatafocus/demodata_backend/utils"
)

// DayAllocation carries one calendar day's share of a month's targets.
type DayAllocation struct {
	Date          time.Time          `json:"date"`
	IsBusinessDay bool               `json:"is_business_day"`
	Counts        map[string]int     `json:"counts"`
	Values        map[string]float64 `json:"values"`
}

// MonthAllocation decomposes one month's targets across its calendar days.
// Invariant: per metric, day allocations sum back to the month target —
// exactly for counts, within rounding for values — and nothing lands on a
// non-business day.
type MonthAllocation struct {
	Month  string               `json:"month"`
	Target models.MonthlyTarget `json:"target"`
	Days   []DayAllocation      `json:"days"`
}

// Weekday weighting: Monday ramps up, mid-week peaks, Friday tapers,
// weekends get nothing.
func weekdayWeight(wd time.Weekday) float64 {
	switch wd {
	case time.Monday:
		return 0.8
	case time.Tuesday, time.Wednesday, time.Thursday:
		return 1.2
	case time.Friday:
		return 0.6
	default:
		return 0
	}
}

// AllocateMonth spreads target counts and values across the month's
// business days with weekday weighting and bounded random perturbation.
func AllocateMonth(rng *SeededRNG, target models.MonthlyTarget) (*MonthAllocation, error) {
	first, err := utils.ParseMonth(target.Month)
	if err != nil {
		return nil, err
	}
	next := first.AddDate(0, 1, 0)
	numDays := int(next.Sub(first).Hours() / 24)

	alloc := &MonthAllocation{Month: target.Month, Target: target}
	weights := make([]float64, numDays)
	for d := 0; d < numDays; d++ {
		date := first.AddDate(0, 0, d)
		w := weekdayWeight(date.Weekday())
		weights[d] = w
		alloc.Days = append(alloc.Days, DayAllocation{
			Date:          date,
			IsBusinessDay: w > 0,
			Counts:        map[string]int{},
			Values:        map[string]float64{},
		})
	}

	for _, metric := range models.CountMetrics {
		total := target.CountMetric(metric)
		counts := allocateCounts(rng.Child("count-"+metric), weights, total)
		for d := range alloc.Days {
			alloc.Days[d].Counts[metric] = counts[d]
		}
	}

	for _, metric := range models.ValueMetrics {
		total := target.ValueMetric(metric)
		values := allocateDayValues(rng.Child("value-"+metric), weights, total)
		for d := range alloc.Days {
			alloc.Days[d].Values[metric] = values[d]
		}
	}

	return alloc, nil
}

// allocateCounts distributes an integer total across days: ideal weighted
// share, perturbed by up to ±30%, rounded, then nudged one unit at a time on
// randomly chosen business days until the exact total is restored.
func allocateCounts(rng *SeededRNG, weights []float64, total int) []int {
	n := len(weights)
	counts := make([]int, n)
	if total <= 0 {
		return counts
	}

	var sumW float64
	for _, w := range weights {
		sumW += w
	}
	if sumW <= 0 {
		return counts
	}

	var business []int
	sum := 0
	for d, w := range weights {
		if w <= 0 {
			continue
		}
		business = append(business, d)
		ideal := float64(total) * w / sumW
		perturbed := ideal * rng.Float(0.7, 1.3)
		counts[d] = int(perturbed + 0.5)
		sum += counts[d]
	}

	for sum != total {
		d := business[rng.Int(0, len(business)-1)]
		if sum < total {
			counts[d]++
			sum++
		} else if counts[d] > 0 {
			counts[d]--
			sum--
		}
	}
	return counts
}

// allocateDayValues uses the same weighting but lets the last business day
// absorb the exact remainder, guaranteeing floating-point exactness of the
// month total.
func allocateDayValues(rng *SeededRNG, weights []float64, total float64) []float64 {
	n := len(weights)
	values := make([]float64, n)
	if total <= 0 {
		return values
	}

	var sumW float64
	lastBusiness := -1
	for d, w := range weights {
		sumW += w
		if w > 0 {
			lastBusiness = d
		}
	}
	if sumW <= 0 || lastBusiness < 0 {
		return values
	}

	var allocated float64
	for d, w := range weights {
		if w <= 0 || d == lastBusiness {
			continue
		}
		ideal := total * w / sumW
		v := utils.Round2(ideal * rng.Float(0.7, 1.3))
		values[d] = v
		allocated += v
	}
	values[lastBusiness] = utils.Round2(total - allocated)
	return values
}

// GenerateTimestamp places an instant on the given day, biased toward core
// business hours.
func GenerateTimestamp(rng *SeededRNG, day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		rng.BusinessHour(), rng.Int(0, 59), rng.Int(0, 59), 0, time.UTC)
}
