package workflow

import (
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/models"
	"github.com/shopspring/decimal"
)

var validateNow = time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)

func syntheticTenant() *models.DemoTenant {
	return &models.DemoTenant{
		ID:             "tenant-1",
		Name:           "Acme Demo",
		IsSynthetic:    true,
		DataStartMonth: "2025-01",
	}
}

func currentKpis(month string, contacts, deals int64) []models.MonthlyKpiSnapshot {
	return []models.MonthlyKpiSnapshot{{
		Month:          month,
		Leads:          contacts / 3,
		Contacts:       contacts,
		Companies:      contacts / 8,
		Deals:          deals,
		ClosedWonCount: deals / 4,
		ClosedWonValue: decimal.NewFromInt(100000),
		PipelineValue:  decimal.NewFromInt(400000),
	}}
}

func deltaPlan(mode models.PatchMode, months ...models.MonthlyTarget) *models.PatchPlan {
	return &models.PatchPlan{
		Mode:      mode,
		PlanType:  models.PatchPlanDeltas,
		Months:    months,
		Tolerance: models.DefaultTolerance(),
	}
}

func hasError(v *PatchValidation, substr string) bool {
	for _, e := range v.Errors {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func TestValidatePatchPlan_AdditiveDeltasPass(t *testing.T) {
	plan := deltaPlan(models.PatchModeAdditive,
		models.MonthlyTarget{Month: "2025-03", Contacts: 20, Deals: 5, PipelineValue: 50000})
	v := ValidatePatchPlan(syntheticTenant(), plan, currentKpis("2025-03", 100, 20), validateNow)
	if !v.Valid {
		t.Fatalf("valid additive plan rejected: %v", v.Errors)
	}
	if len(v.Deltas) != 1 || v.Deltas[0].Contacts != 20 {
		t.Fatalf("deltas not carried through: %+v", v.Deltas)
	}
	if v.EstimatedRecords[models.EntityContact] != 20 {
		t.Errorf("estimated contacts = %d", v.EstimatedRecords[models.EntityContact])
	}
	if v.EstimatedSeconds < 1 {
		t.Errorf("estimated seconds = %d", v.EstimatedSeconds)
	}
}

func TestValidatePatchPlan_AdditiveRejectsNegativeDeltas(t *testing.T) {
	plan := deltaPlan(models.PatchModeAdditive,
		models.MonthlyTarget{Month: "2025-03", Contacts: -10})
	v := ValidatePatchPlan(syntheticTenant(), plan, currentKpis("2025-03", 100, 20), validateNow)
	if v.Valid {
		t.Fatal("additive plan with negative delta accepted")
	}
	if !hasError(v, "additive mode forbids") {
		t.Errorf("unexpected errors: %v", v.Errors)
	}
}

func TestValidatePatchPlan_ReconcileAllowsNegativeDeltas(t *testing.T) {
	plan := deltaPlan(models.PatchModeReconcile,
		models.MonthlyTarget{Month: "2025-03", Contacts: -10, Deals: -2})
	v := ValidatePatchPlan(syntheticTenant(), plan, currentKpis("2025-03", 100, 20), validateNow)
	if !v.Valid {
		t.Fatalf("reconcile plan with negative deltas rejected: %v", v.Errors)
	}
}

func TestValidatePatchPlan_TargetsComputeDeltasAgainstActuals(t *testing.T) {
	plan := &models.PatchPlan{
		Mode:     models.PatchModeReconcile,
		PlanType: models.PatchPlanTargets,
		Months: []models.MonthlyTarget{{
			Month:          "2025-03",
			Leads:          40,
			Contacts:       150,
			Companies:      12,
			Deals:          25,
			ClosedWonCount: 5,
			ClosedWonValue: 120000,
			PipelineValue:  400000,
		}},
		Tolerance: models.DefaultTolerance(),
	}
	v := ValidatePatchPlan(syntheticTenant(), plan, currentKpis("2025-03", 100, 20), validateNow)
	if !v.Valid {
		t.Fatalf("rejected: %v", v.Errors)
	}
	d := v.Deltas[0]
	if d.Contacts != 50 {
		t.Errorf("contacts delta = %d, want 50", d.Contacts)
	}
	if d.Deals != 5 {
		t.Errorf("deals delta = %d, want 5", d.Deals)
	}
	if d.ClosedWonValue != 20000 {
		t.Errorf("won value delta = %.2f, want 20000", d.ClosedWonValue)
	}
	if d.PipelineValue != 0 {
		t.Errorf("pipeline delta = %.2f, want 0", d.PipelineValue)
	}
}

func TestValidatePatchPlan_RejectsNonSyntheticTenant(t *testing.T) {
	tenant := syntheticTenant()
	tenant.IsSynthetic = false
	plan := deltaPlan(models.PatchModeAdditive, models.MonthlyTarget{Month: "2025-03", Contacts: 5})
	v := ValidatePatchPlan(tenant, plan, nil, validateNow)
	if v.Valid {
		t.Fatal("non-synthetic tenant accepted")
	}
}

func TestValidatePatchPlan_MonthChecks(t *testing.T) {
	cases := []struct {
		name  string
		month string
		want  string
	}{
		{"bad format", "March", "YYYY-MM"},
		{"future", "2025-09", "future"},
		{"before history", "2024-10", "precedes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan := deltaPlan(models.PatchModeAdditive,
				models.MonthlyTarget{Month: tc.month, Contacts: 5})
			v := ValidatePatchPlan(syntheticTenant(), plan, nil, validateNow)
			if v.Valid {
				t.Fatal("accepted")
			}
			if !hasError(v, tc.want) {
				t.Errorf("want error containing %q, got %v", tc.want, v.Errors)
			}
		})
	}
}

func TestValidatePatchPlan_DuplicateAndOutOfOrderMonths(t *testing.T) {
	plan := deltaPlan(models.PatchModeAdditive,
		models.MonthlyTarget{Month: "2025-03", Contacts: 5},
		models.MonthlyTarget{Month: "2025-03", Contacts: 5})
	v := ValidatePatchPlan(syntheticTenant(), plan, nil, validateNow)
	if v.Valid || !hasError(v, "more than once") {
		t.Errorf("duplicate month accepted: %v", v.Errors)
	}

	plan = deltaPlan(models.PatchModeAdditive,
		models.MonthlyTarget{Month: "2025-04", Contacts: 5},
		models.MonthlyTarget{Month: "2025-03", Contacts: 5})
	v = ValidatePatchPlan(syntheticTenant(), plan, nil, validateNow)
	if v.Valid || !hasError(v, "chronological") {
		t.Errorf("out-of-order months accepted: %v", v.Errors)
	}
}

func TestValidatePatchPlan_TargetInvariantViolations(t *testing.T) {
	plan := &models.PatchPlan{
		Mode:     models.PatchModeReconcile,
		PlanType: models.PatchPlanTargets,
		Months: []models.MonthlyTarget{{
			Month:    "2025-03",
			Leads:    50,
			Contacts: 20,
		}},
		Tolerance: models.DefaultTolerance(),
	}
	v := ValidatePatchPlan(syntheticTenant(), plan, currentKpis("2025-03", 100, 20), validateNow)
	if v.Valid || !hasError(v, "leads") {
		t.Errorf("leads > contacts accepted: %v", v.Errors)
	}
}

func TestValidatePatchPlan_SteepGrowthWarns(t *testing.T) {
	plan := &models.PatchPlan{
		Mode:     models.PatchModeReconcile,
		PlanType: models.PatchPlanTargets,
		Months: []models.MonthlyTarget{
			{Month: "2025-03", Contacts: 100, Deals: 10},
			{Month: "2025-04", Contacts: 500, Deals: 12},
		},
		Tolerance: models.DefaultTolerance(),
	}
	current := append(currentKpis("2025-03", 100, 10), currentKpis("2025-04", 120, 12)...)
	v := ValidatePatchPlan(syntheticTenant(), plan, current, validateNow)
	if !v.Valid {
		t.Fatalf("plan rejected: %v", v.Errors)
	}
	if len(v.Warnings) == 0 {
		t.Fatal("5x growth produced no warning")
	}
	if !strings.Contains(v.Warnings[0], "contacts") {
		t.Errorf("warning = %q", v.Warnings[0])
	}
}

func TestValidatePatchPlan_MetricsOnlySkipsRecordEstimates(t *testing.T) {
	plan := deltaPlan(models.PatchModeMetricsOnly,
		models.MonthlyTarget{Month: "2025-03", Contacts: 500, Deals: 100})
	v := ValidatePatchPlan(syntheticTenant(), plan, currentKpis("2025-03", 100, 20), validateNow)
	if !v.Valid {
		t.Fatalf("rejected: %v", v.Errors)
	}
	if len(v.EstimatedRecords) != 0 {
		t.Errorf("metrics-only plan estimated records: %v", v.EstimatedRecords)
	}
}

func TestMonthDeltas_Predicates(t *testing.T) {
	if (MonthDeltas{}).HasNegative() {
		t.Error("zero deltas reported negative")
	}
	if !(MonthDeltas{}).IsZero() {
		t.Error("zero deltas not reported zero")
	}
	if !(MonthDeltas{ClosedWonValue: -0.5}).HasNegative() {
		t.Error("negative value delta not detected")
	}
	if (MonthDeltas{Leads: 1}).IsZero() {
		t.Error("non-zero deltas reported zero")
	}
}

// The patch engine runs a baseline-free validation pass before it marks the
// job running or queries any KPIs, so structural errors must surface with a
// nil snapshot and a structurally sound plan must not be rejected by one.
func TestValidatePatchPlan_StructuralErrorsNeedNoBaseline(t *testing.T) {
	bad := deltaPlan(models.PatchModeReconcile,
		models.MonthlyTarget{Month: "March 2025", Contacts: 10})
	v := ValidatePatchPlan(syntheticTenant(), bad, nil, validateNow)
	if v.Valid {
		t.Fatal("malformed month accepted without a baseline")
	}
	if !hasError(v, "YYYY-MM") {
		t.Errorf("unexpected errors: %v", v.Errors)
	}

	future := deltaPlan(models.PatchModeReconcile,
		models.MonthlyTarget{Month: "2025-09", Contacts: 10})
	if v := ValidatePatchPlan(syntheticTenant(), future, nil, validateNow); v.Valid {
		t.Fatal("future month accepted without a baseline")
	}

	good := deltaPlan(models.PatchModeReconcile,
		models.MonthlyTarget{Month: "2025-03", Contacts: -10, Deals: 5})
	if v := ValidatePatchPlan(syntheticTenant(), good, nil, validateNow); !v.Valid {
		t.Fatalf("sound reconcile plan rejected without a baseline: %v", v.Errors)
	}
}
