package workflow

import (
	"fmt"
	"math"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/models"
	"bitbucket.org/mmdatafocus/demodata_backend/utils"
	"github.com/go-playground/validator/v10"
)

var planValidate = validator.New()

// MonthDeltas is the per-month change a patch will apply. Negative numbers
// are legal only outside additive mode.
type MonthDeltas struct {
	Month          string  `json:"month"`
	Leads          int     `json:"leads"`
	Contacts       int     `json:"contacts"`
	Companies      int     `json:"companies"`
	Deals          int     `json:"deals"`
	ClosedWonCount int     `json:"closed_won_count"`
	ClosedWonValue float64 `json:"closed_won_value"`
	PipelineValue  float64 `json:"pipeline_value"`
}

func (d MonthDeltas) HasNegative() bool {
	return d.Leads < 0 || d.Contacts < 0 || d.Companies < 0 || d.Deals < 0 ||
		d.ClosedWonCount < 0 || d.ClosedWonValue < 0 || d.PipelineValue < 0
}

func (d MonthDeltas) IsZero() bool {
	return d.Leads == 0 && d.Contacts == 0 && d.Companies == 0 && d.Deals == 0 &&
		d.ClosedWonCount == 0 && d.ClosedWonValue == 0 && d.PipelineValue == 0
}

// PatchValidation is the preview/validation result surfaced before any
// mutation: hard errors, advisory warnings, computed deltas and effort
// estimates.
type PatchValidation struct {
	Valid            bool                      `json:"valid"`
	Errors           []string                  `json:"errors"`
	Warnings         []string                  `json:"warnings"`
	Deltas           []MonthDeltas             `json:"deltas"`
	EstimatedRecords map[models.EntityType]int `json:"estimated_records"`
	EstimatedSeconds int                       `json:"estimated_seconds"`
}

func (v *PatchValidation) addError(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
	v.Valid = false
}

func (v *PatchValidation) addWarning(format string, args ...interface{}) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

// Observed engine throughput; only feeds the duration estimate.
const patchRecordsPerSecond = 25

// ValidatePatchPlan checks a proposed plan against business and mode
// constraints and computes the deltas the engine would execute. current must
// cover the plan's month range (measured actuals, overrides applied).
func ValidatePatchPlan(tenant *models.DemoTenant, plan *models.PatchPlan, current []models.MonthlyKpiSnapshot, now time.Time) *PatchValidation {
	res := &PatchValidation{Valid: true, EstimatedRecords: map[models.EntityType]int{}}

	if tenant == nil || !tenant.IsSynthetic {
		res.addError("tenant is not a recognized synthetic tenant")
		return res
	}
	if !plan.Mode.IsValid() {
		res.addError("unknown patch mode %q", plan.Mode)
		return res
	}
	if !plan.PlanType.IsValid() {
		res.addError("unknown plan type %q", plan.PlanType)
		return res
	}
	if err := planValidate.Struct(plan); err != nil {
		for field, tag := range utils.ProcessValidationErrors(err) {
			res.addError("plan field %s failed %q constraint", field, tag)
		}
		return res
	}

	currentMonth := utils.FormatMonth(now)
	seen := map[string]bool{}
	prevMonth := ""
	for _, m := range plan.Months {
		if !utils.IsValidMonth(m.Month) {
			res.addError("month %q is not in YYYY-MM format", m.Month)
			continue
		}
		if seen[m.Month] {
			res.addError("month %s appears more than once", m.Month)
		}
		seen[m.Month] = true
		if prevMonth != "" && m.Month <= prevMonth {
			res.addError("months must be in chronological order (%s after %s)", m.Month, prevMonth)
		}
		prevMonth = m.Month
		if m.Month > currentMonth {
			res.addError("month %s is in the future", m.Month)
		}
		if tenant.DataStartMonth != "" && m.Month < tenant.DataStartMonth {
			res.addError("month %s precedes the tenant's data history (%s)", m.Month, tenant.DataStartMonth)
		}
	}
	if len(res.Errors) > 0 {
		return res
	}

	// Logical invariants apply to target plans; delta plans express relative
	// movement and are bounded against actuals below.
	if plan.PlanType == models.PatchPlanTargets {
		for _, m := range plan.Months {
			if err := m.Validate(); err != nil {
				res.addError("%v", err)
			}
		}
		if plan.Mode == models.PatchModeAdditive {
			for _, m := range plan.Months {
				if m.Leads < 0 || m.Contacts < 0 || m.Companies < 0 || m.Deals < 0 ||
					m.ClosedWonCount < 0 || m.ClosedWonValue < 0 || m.PipelineValue < 0 {
					res.addError("month %s: additive mode does not accept negative values", m.Month)
				}
			}
		}
	}
	if len(res.Errors) > 0 {
		return res
	}

	currentByMonth := make(map[string]models.MonthlyKpiSnapshot, len(current))
	for _, c := range current {
		currentByMonth[c.Month] = c
	}

	for _, m := range plan.Months {
		var d MonthDeltas
		if plan.PlanType == models.PatchPlanDeltas {
			d = MonthDeltas{
				Month:          m.Month,
				Leads:          m.Leads,
				Contacts:       m.Contacts,
				Companies:      m.Companies,
				Deals:          m.Deals,
				ClosedWonCount: m.ClosedWonCount,
				ClosedWonValue: m.ClosedWonValue,
				PipelineValue:  m.PipelineValue,
			}
		} else {
			cur := currentByMonth[m.Month]
			d = MonthDeltas{
				Month:          m.Month,
				Leads:          m.Leads - int(cur.Leads),
				Contacts:       m.Contacts - int(cur.Contacts),
				Companies:      m.Companies - int(cur.Companies),
				Deals:          m.Deals - int(cur.Deals),
				ClosedWonCount: m.ClosedWonCount - int(cur.ClosedWonCount),
				ClosedWonValue: utils.Round2(m.ClosedWonValue - mustFloat(cur.ClosedWonValue.Float64())),
				PipelineValue:  utils.Round2(m.PipelineValue - mustFloat(cur.PipelineValue.Float64())),
			}
		}

		if plan.Mode == models.PatchModeAdditive && d.HasNegative() {
			res.addError("month %s: computed delta would reduce a current value, which additive mode forbids", d.Month)
		}
		res.Deltas = append(res.Deltas, d)
	}

	// Advisory only: steep month-over-month growth makes demo data look
	// implausible but is not an error.
	if plan.PlanType == models.PatchPlanTargets {
		for i := 1; i < len(plan.Months); i++ {
			prev, cur := plan.Months[i-1], plan.Months[i]
			warnGrowth(res, prev.Month, cur.Month, "contacts", prev.Contacts, cur.Contacts)
			warnGrowth(res, prev.Month, cur.Month, "deals", prev.Deals, cur.Deals)
		}
	}

	if plan.Mode != models.PatchModeMetricsOnly {
		for _, d := range res.Deltas {
			if d.Contacts > 0 {
				res.EstimatedRecords[models.EntityContact] += d.Contacts
			}
			if d.Companies > 0 {
				res.EstimatedRecords[models.EntityCompany] += d.Companies
			}
			if d.Deals > 0 {
				res.EstimatedRecords[models.EntityDeal] += d.Deals
			}
			if d.Contacts > 0 {
				// Activity volume rides on contacts; template-level ratios
				// refine this at execution time.
				res.EstimatedRecords[models.EntityActivity] += int(math.Round(float64(d.Contacts) * 2))
			}
		}
	}
	totalRecords := 0
	for _, n := range res.EstimatedRecords {
		totalRecords += n
	}
	res.EstimatedSeconds = totalRecords/patchRecordsPerSecond + 1

	return res
}

func warnGrowth(res *PatchValidation, prevMonth, curMonth, metric string, prev, cur int) {
	if prev > 0 && cur > prev*3 {
		growth := (float64(cur)/float64(prev) - 1) * 100
		res.addWarning("%s grows %.0f%% from %s to %s (over 200%%)", metric, growth, prevMonth, curMonth)
	}
}

func mustFloat(v float64, _ bool) float64 { return v }
