package workflow

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/models"
	"github.com/shopspring/decimal"
)

func snapshot(month string, contacts, deals int64, wonValue float64) models.MonthlyKpiSnapshot {
	return models.MonthlyKpiSnapshot{
		Month:          month,
		Leads:          contacts / 3,
		Contacts:       contacts,
		Companies:      contacts / 8,
		Deals:          deals,
		ClosedWonCount: deals / 4,
		ClosedWonValue: decimal.NewFromFloat(wonValue),
		PipelineValue:  decimal.NewFromFloat(wonValue * 4),
		MeasuredAt:     time.Now().UTC(),
	}
}

func matchingTarget(s models.MonthlyKpiSnapshot) models.MonthlyTarget {
	won, _ := s.ClosedWonValue.Float64()
	pipe, _ := s.PipelineValue.Float64()
	return models.MonthlyTarget{
		Month:          s.Month,
		Leads:          int(s.Leads),
		Contacts:       int(s.Contacts),
		Companies:      int(s.Companies),
		Deals:          int(s.Deals),
		ClosedWonCount: int(s.ClosedWonCount),
		ClosedWonValue: won,
		PipelineValue:  pipe,
	}
}

func TestVerifyKpis_ExactMatchPasses(t *testing.T) {
	actual := snapshot("2025-03", 120, 36, 200000)
	report := VerifyKpis([]models.MonthlyTarget{matchingTarget(actual)},
		[]models.MonthlyKpiSnapshot{actual}, models.DefaultTolerance())
	if !report.Passed {
		t.Fatalf("exact match failed: %+v", report.Months)
	}
	if len(report.Months) != 1 || len(report.Months[0].Metrics) != 7 {
		t.Fatalf("expected 1 month with 7 metric lines, got %+v", report.Months)
	}
}

func TestVerifyKpis_CountOffByOneFails(t *testing.T) {
	actual := snapshot("2025-03", 120, 36, 200000)
	target := matchingTarget(actual)
	target.Contacts++

	report := VerifyKpis([]models.MonthlyTarget{target},
		[]models.MonthlyKpiSnapshot{actual}, models.DefaultTolerance())
	if report.Passed {
		t.Fatal("count off by one passed with zero absolute tolerance")
	}
	for _, m := range report.Months[0].Metrics {
		if m.Metric == models.MetricContacts && m.Passed {
			t.Error("contacts metric marked passed")
		}
		if m.Metric == models.MetricDeals && !m.Passed {
			t.Error("deals metric should still pass")
		}
	}
}

func TestVerifyKpis_CountToleranceAllowsSlack(t *testing.T) {
	actual := snapshot("2025-03", 120, 36, 200000)
	target := matchingTarget(actual)
	target.Contacts += 2

	tol := models.ToleranceConfig{CountAbs: 2, ValueRel: 0.005}
	report := VerifyKpis([]models.MonthlyTarget{target},
		[]models.MonthlyKpiSnapshot{actual}, tol)
	if !report.Passed {
		t.Fatal("delta of 2 should pass with CountAbs=2")
	}
}

func TestVerifyKpis_ValueRelativeTolerance(t *testing.T) {
	target := matchingTarget(snapshot("2025-03", 120, 36, 100000))

	// 0.4% off: within the 0.5% default.
	within := snapshot("2025-03", 120, 36, 100000)
	within.ClosedWonValue = decimal.NewFromFloat(99600)
	within.PipelineValue = decimal.NewFromFloat(400000)
	report := VerifyKpis([]models.MonthlyTarget{target},
		[]models.MonthlyKpiSnapshot{within}, models.DefaultTolerance())
	if !report.Passed {
		t.Fatalf("0.4%% deviation failed: %+v", report.Months[0].Metrics)
	}

	// 2% off: outside.
	outside := snapshot("2025-03", 120, 36, 100000)
	outside.ClosedWonValue = decimal.NewFromFloat(98000)
	outside.PipelineValue = decimal.NewFromFloat(400000)
	report = VerifyKpis([]models.MonthlyTarget{target},
		[]models.MonthlyKpiSnapshot{outside}, models.DefaultTolerance())
	if report.Passed {
		t.Fatal("2% deviation passed with 0.5% relative tolerance")
	}
}

func TestVerifyKpis_ZeroValueTargetUsesCentFallback(t *testing.T) {
	actual := models.MonthlyKpiSnapshot{Month: "2025-03"}
	target := models.MonthlyTarget{Month: "2025-03"}
	report := VerifyKpis([]models.MonthlyTarget{target},
		[]models.MonthlyKpiSnapshot{actual}, models.DefaultTolerance())
	if !report.Passed {
		t.Fatal("all-zero month failed")
	}

	actual.ClosedWonValue = decimal.NewFromFloat(0.50)
	report = VerifyKpis([]models.MonthlyTarget{target},
		[]models.MonthlyKpiSnapshot{actual}, models.DefaultTolerance())
	if report.Passed {
		t.Fatal("50 cents against a zero target passed")
	}
}

func TestVerifyKpis_MissingActualMonthFails(t *testing.T) {
	target := matchingTarget(snapshot("2025-03", 120, 36, 200000))
	report := VerifyKpis([]models.MonthlyTarget{target}, nil, models.DefaultTolerance())
	if report.Passed {
		t.Fatal("month with no measured data passed")
	}
}

func TestComputeDiff_ReportsMovement(t *testing.T) {
	before := []models.MonthlyKpiSnapshot{snapshot("2025-03", 100, 20, 100000)}
	after := []models.MonthlyKpiSnapshot{snapshot("2025-03", 150, 20, 120000)}

	entries := ComputeDiff(before, after)
	if len(entries) != 7 {
		t.Fatalf("got %d entries, want 7", len(entries))
	}

	byMetric := map[string]DiffEntry{}
	for _, e := range entries {
		byMetric[e.Metric] = e
	}

	contacts := byMetric[models.MetricContacts]
	if !contacts.Delta.Equal(decimal.NewFromInt(50)) {
		t.Errorf("contacts delta = %s, want 50", contacts.Delta)
	}
	if !contacts.DeltaPct.Equal(decimal.NewFromInt(50)) {
		t.Errorf("contacts delta pct = %s, want 50", contacts.DeltaPct)
	}

	deals := byMetric[models.MetricDeals]
	if !deals.Delta.IsZero() {
		t.Errorf("deals delta = %s, want 0", deals.Delta)
	}
	if !byMetric[models.MetricClosedWonValue].Delta.Equal(decimal.NewFromInt(20000)) {
		t.Errorf("won value delta = %s", byMetric[models.MetricClosedWonValue].Delta)
	}
}
