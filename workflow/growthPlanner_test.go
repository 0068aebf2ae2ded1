package workflow

import (
	"math"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/models"
)

func testGrowthConfig(curve string) models.GrowthConfig {
	return models.GrowthConfig{
		Months: 6,
		Curve:  curve,
		Targets: models.AggregateTargets{
			Leads:          400,
			Contacts:       1000,
			Companies:      150,
			Deals:          250,
			ClosedWonCount: 60,
			ClosedWonValue: 500000,
			PipelineValue:  2000000,
		},
	}
}

var planEnd = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func TestPlanMonthlyTargets_PreservesTotals(t *testing.T) {
	for _, curve := range []string{"linear", "front-loaded", "hockey-stick"} {
		t.Run(curve, func(t *testing.T) {
			cfg := testGrowthConfig(curve)
			targets, err := PlanMonthlyTargets(cfg, planEnd)
			if err != nil {
				t.Fatal(err)
			}
			if len(targets) != 6 {
				t.Fatalf("got %d months, want 6", len(targets))
			}

			var leads, contacts, companies, deals, wins int
			var wonValue, pipeValue float64
			for _, m := range targets {
				leads += m.Leads
				contacts += m.Contacts
				companies += m.Companies
				deals += m.Deals
				wins += m.ClosedWonCount
				wonValue += m.ClosedWonValue
				pipeValue += m.PipelineValue
			}
			if leads != cfg.Targets.Leads {
				t.Errorf("leads total %d, want %d", leads, cfg.Targets.Leads)
			}
			if contacts != cfg.Targets.Contacts {
				t.Errorf("contacts total %d, want %d", contacts, cfg.Targets.Contacts)
			}
			if companies != cfg.Targets.Companies {
				t.Errorf("companies total %d, want %d", companies, cfg.Targets.Companies)
			}
			if deals != cfg.Targets.Deals {
				t.Errorf("deals total %d, want %d", deals, cfg.Targets.Deals)
			}
			if wins != cfg.Targets.ClosedWonCount {
				t.Errorf("wins total %d, want %d", wins, cfg.Targets.ClosedWonCount)
			}
			if math.Abs(wonValue-cfg.Targets.ClosedWonValue) > 0.011 {
				t.Errorf("won value total %.2f, want %.2f", wonValue, cfg.Targets.ClosedWonValue)
			}
			if math.Abs(pipeValue-cfg.Targets.PipelineValue) > 0.011 {
				t.Errorf("pipeline value total %.2f, want %.2f", pipeValue, cfg.Targets.PipelineValue)
			}
		})
	}
}

func TestPlanMonthlyTargets_MonthsEndAtGivenMonth(t *testing.T) {
	targets, err := PlanMonthlyTargets(testGrowthConfig("linear"), planEnd)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2025-01", "2025-02", "2025-03", "2025-04", "2025-05", "2025-06"}
	for i, m := range targets {
		if m.Month != want[i] {
			t.Errorf("month %d = %s, want %s", i, m.Month, want[i])
		}
	}
}

func TestPlanMonthlyTargets_EveryMonthSatisfiesInvariants(t *testing.T) {
	for _, curve := range []string{"linear", "front-loaded", "hockey-stick"} {
		targets, err := PlanMonthlyTargets(testGrowthConfig(curve), planEnd)
		if err != nil {
			t.Fatal(err)
		}
		for _, m := range targets {
			if err := m.Validate(); err != nil {
				t.Errorf("%s: %v", curve, err)
			}
		}
	}
}

func TestPlanMonthlyTargets_CurveShapes(t *testing.T) {
	front, err := PlanMonthlyTargets(testGrowthConfig("front-loaded"), planEnd)
	if err != nil {
		t.Fatal(err)
	}
	if front[0].Contacts <= front[len(front)-1].Contacts {
		t.Errorf("front-loaded should start heavy: first %d, last %d",
			front[0].Contacts, front[len(front)-1].Contacts)
	}

	hockey, err := PlanMonthlyTargets(testGrowthConfig("hockey-stick"), planEnd)
	if err != nil {
		t.Fatal(err)
	}
	if hockey[len(hockey)-1].Contacts <= hockey[0].Contacts {
		t.Errorf("hockey-stick should end heavy: first %d, last %d",
			hockey[0].Contacts, hockey[len(hockey)-1].Contacts)
	}
}

func TestPlanMonthlyTargets_RejectsBadInput(t *testing.T) {
	cfg := testGrowthConfig("linear")
	cfg.Months = 0
	if _, err := PlanMonthlyTargets(cfg, planEnd); err == nil {
		t.Error("expected error for zero months")
	}

	cfg = testGrowthConfig("exponential-blowup")
	if _, err := PlanMonthlyTargets(cfg, planEnd); err == nil {
		t.Error("expected error for unknown curve")
	}
}

func TestPlanMonthlyTargets_SingleMonthGetsEverything(t *testing.T) {
	cfg := testGrowthConfig("linear")
	cfg.Months = 1
	targets, err := PlanMonthlyTargets(cfg, planEnd)
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 1 {
		t.Fatalf("got %d months", len(targets))
	}
	if targets[0].Contacts != cfg.Targets.Contacts || targets[0].Deals != cfg.Targets.Deals {
		t.Errorf("single month did not receive full targets: %+v", targets[0])
	}
}
