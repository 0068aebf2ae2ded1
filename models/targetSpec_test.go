package models

import "testing"

func TestMonthlyTarget_Validate(t *testing.T) {
	good := MonthlyTarget{
		Month: "2025-03", Leads: 30, Contacts: 100, Deals: 20,
		ClosedWonCount: 5, ClosedWonValue: 100000, PipelineValue: 400000,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid target rejected: %v", err)
	}

	bad := good
	bad.Leads = 200
	if err := bad.Validate(); err == nil {
		t.Error("leads > contacts accepted")
	}

	bad = good
	bad.ClosedWonCount = 25
	if err := bad.Validate(); err == nil {
		t.Error("wins > deals accepted")
	}

	bad = good
	bad.ClosedWonCount = 0
	if err := bad.Validate(); err == nil {
		t.Error("won value without won count accepted")
	}
}

func TestMonthlyTarget_MetricAccessors(t *testing.T) {
	m := MonthlyTarget{
		Month: "2025-03", Leads: 1, Contacts: 2, Companies: 3, Deals: 4,
		ClosedWonCount: 5, ClosedWonValue: 6.5, PipelineValue: 7.5,
	}
	counts := map[string]int{
		MetricLeads: 1, MetricContacts: 2, MetricCompanies: 3,
		MetricDeals: 4, MetricClosedWonCount: 5,
	}
	for metric, want := range counts {
		if got := m.CountMetric(metric); got != want {
			t.Errorf("CountMetric(%s) = %d, want %d", metric, got, want)
		}
	}
	if m.ValueMetric(MetricClosedWonValue) != 6.5 || m.ValueMetric(MetricPipelineValue) != 7.5 {
		t.Error("value metric accessors wrong")
	}
	if m.CountMetric("unknown") != 0 || m.ValueMetric("unknown") != 0 {
		t.Error("unknown metric should read zero")
	}
}

func TestToleranceConfig_OrDefaults(t *testing.T) {
	// A configured CountAbs survives an unset ValueRel.
	got := ToleranceConfig{CountAbs: 2}.OrDefaults()
	if got.CountAbs != 2 {
		t.Errorf("CountAbs = %d, want the configured 2", got.CountAbs)
	}
	if got.ValueRel != 0.005 {
		t.Errorf("ValueRel = %v, want default 0.005", got.ValueRel)
	}

	// Fully configured tolerances pass through untouched; CountAbs zero is
	// the strict setting, not an unset one.
	got = ToleranceConfig{CountAbs: 0, ValueRel: 0.01}.OrDefaults()
	if got.CountAbs != 0 || got.ValueRel != 0.01 {
		t.Errorf("configured tolerance changed: %+v", got)
	}
}
