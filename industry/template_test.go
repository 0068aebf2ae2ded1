package industry

import (
	"testing"

	"bitbucket.org/mmdatafocus/demodata_backend/models"
)

func TestForCode_KnownAndFallback(t *testing.T) {
	if got := ForCode("saas").Code; got != "saas" {
		t.Errorf("ForCode(saas).Code = %q", got)
	}
	if got := ForCode("CONSULTING").Code; got != "consulting" {
		t.Errorf("lookup is not case-insensitive: %q", got)
	}
	if got := ForCode("underwater-basket-weaving").Code; got != "saas" {
		t.Errorf("unknown industry should fall back to saas, got %q", got)
	}
}

func TestTemplates_AreInternallyConsistent(t *testing.T) {
	for _, code := range SupportedIndustries() {
		tpl := ForCode(code)
		t.Run(code, func(t *testing.T) {
			var won, lost int
			for _, s := range tpl.Stages {
				switch s.Type {
				case models.StageTypeWon:
					won++
				case models.StageTypeLost:
					lost++
				}
			}
			if won != 1 || lost != 1 {
				t.Errorf("expected exactly one won and one lost stage, got %d/%d", won, lost)
			}

			if tpl.DealValueMin <= 0 || tpl.DealValueMax <= tpl.DealValueMin {
				t.Errorf("deal value bounds invalid: min=%v max=%v", tpl.DealValueMin, tpl.DealValueMax)
			}
			if tpl.DealValueAvg < tpl.DealValueMin || tpl.DealValueAvg > tpl.DealValueMax {
				t.Errorf("avg deal value %v outside [%v, %v]", tpl.DealValueAvg, tpl.DealValueMin, tpl.DealValueMax)
			}
			if tpl.WinRate <= 0 || tpl.WinRate >= 1 {
				t.Errorf("win rate %v outside (0,1)", tpl.WinRate)
			}
			if len(tpl.ActivityTypes) != len(tpl.ActivityTypeWeights) {
				t.Error("activity type and weight lengths differ")
			}
			if tpl.TeamSize < 1 {
				t.Errorf("team size %d", tpl.TeamSize)
			}
			if len(tpl.CompanyNamePatterns) == 0 || len(tpl.TagNames) == 0 {
				t.Error("missing name patterns or tags")
			}

			stages, weights := tpl.OpenStages()
			if len(stages) == 0 || len(stages) != len(weights) {
				t.Errorf("open stages malformed: %d stages, %d weights", len(stages), len(weights))
			}
			for _, s := range stages {
				if s.Type != models.StageTypeOpen {
					t.Errorf("OpenStages returned %s stage %q", s.Type, s.Name)
				}
			}
		})
	}
}
