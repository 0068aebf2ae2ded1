package workflow

import (
	"math"

	"bitbucket.org/mmdatafocus/demodata_backend/models"
	"github.com/shopspring/decimal"
)

// MetricResult is one metric's pass/fail line in a verification report.
type MetricResult struct {
	Metric    string          `json:"metric"`
	Target    decimal.Decimal `json:"target"`
	Actual    decimal.Decimal `json:"actual"`
	Delta     decimal.Decimal `json:"delta"`
	Tolerance decimal.Decimal `json:"tolerance"`
	Passed    bool            `json:"passed"`
}

type MonthVerification struct {
	Month   string         `json:"month"`
	Passed  bool           `json:"passed"`
	Metrics []MetricResult `json:"metrics"`
}

// VerificationReport passes only when every month passes, and a month only
// when every metric passes.
type VerificationReport struct {
	Passed    bool                   `json:"passed"`
	Tolerance models.ToleranceConfig `json:"tolerance"`
	Months    []MonthVerification    `json:"months"`
}

// VerifyKpis compares actual snapshots against monthly targets: count
// metrics with an absolute tolerance, value metrics with a tolerance
// relative to the target magnitude.
func VerifyKpis(targets []models.MonthlyTarget, actuals []models.MonthlyKpiSnapshot, tol models.ToleranceConfig) *VerificationReport {
	actualByMonth := make(map[string]models.MonthlyKpiSnapshot, len(actuals))
	for _, a := range actuals {
		actualByMonth[a.Month] = a
	}

	report := &VerificationReport{Passed: true, Tolerance: tol}
	for _, target := range targets {
		actual := actualByMonth[target.Month]
		mv := MonthVerification{Month: target.Month, Passed: true}

		for _, metric := range models.CountMetrics {
			want := int64(target.CountMetric(metric))
			got := actual.CountMetric(metric)
			diff := got - want
			passed := abs64(diff) <= int64(tol.CountAbs)
			mv.Metrics = append(mv.Metrics, MetricResult{
				Metric:    metric,
				Target:    decimal.NewFromInt(want),
				Actual:    decimal.NewFromInt(got),
				Delta:     decimal.NewFromInt(diff),
				Tolerance: decimal.NewFromInt(int64(tol.CountAbs)),
				Passed:    passed,
			})
			if !passed {
				mv.Passed = false
			}
		}

		for _, metric := range models.ValueMetrics {
			want := target.ValueMetric(metric)
			got := actual.ValueMetric(metric)
			allowed := math.Abs(want) * tol.ValueRel
			if want == 0 {
				// Relative tolerance collapses at zero; fall back to a cent.
				allowed = 0.01
			}
			wantDec := decimal.NewFromFloat(want).Round(2)
			delta := got.Sub(wantDec)
			passed := delta.Abs().LessThanOrEqual(decimal.NewFromFloat(allowed))
			mv.Metrics = append(mv.Metrics, MetricResult{
				Metric:    metric,
				Target:    wantDec,
				Actual:    got,
				Delta:     delta,
				Tolerance: decimal.NewFromFloat(allowed).Round(4),
				Passed:    passed,
			})
			if !passed {
				mv.Passed = false
			}
		}

		if !mv.Passed {
			report.Passed = false
		}
		report.Months = append(report.Months, mv)
	}
	return report
}

// DiffEntry reports one metric's movement across a patch, for audit.
// Independent of pass/fail.
type DiffEntry struct {
	Month    string          `json:"month"`
	Metric   string          `json:"metric"`
	Before   decimal.Decimal `json:"before"`
	After    decimal.Decimal `json:"after"`
	Delta    decimal.Decimal `json:"delta"`
	DeltaPct decimal.Decimal `json:"delta_pct"`
}

// ComputeDiff lines up before/after snapshots month by month across all
// metrics.
func ComputeDiff(before, after []models.MonthlyKpiSnapshot) []DiffEntry {
	beforeByMonth := make(map[string]models.MonthlyKpiSnapshot, len(before))
	for _, b := range before {
		beforeByMonth[b.Month] = b
	}

	var entries []DiffEntry
	for _, a := range after {
		b := beforeByMonth[a.Month]
		for _, metric := range models.CountMetrics {
			entries = append(entries, diffEntry(a.Month, metric,
				decimal.NewFromInt(b.CountMetric(metric)),
				decimal.NewFromInt(a.CountMetric(metric))))
		}
		for _, metric := range models.ValueMetrics {
			entries = append(entries, diffEntry(a.Month, metric,
				b.ValueMetric(metric), a.ValueMetric(metric)))
		}
	}
	return entries
}

func diffEntry(month, metric string, before, after decimal.Decimal) DiffEntry {
	delta := after.Sub(before)
	pct := decimal.Zero
	if !before.IsZero() {
		pct = delta.Div(before).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return DiffEntry{
		Month:    month,
		Metric:   metric,
		Before:   before,
		After:    after,
		Delta:    delta,
		DeltaPct: pct,
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
