package models

import (
	"fmt"
	"time"
)

// ToleranceConfig governs pass/fail verification: counts use an absolute
// tolerance (commonly 0, i.e. exact), values a relative one (commonly 0.005).
type ToleranceConfig struct {
	CountAbs int     `json:"count_abs"`
	ValueRel float64 `json:"value_rel"`
}

func DefaultTolerance() ToleranceConfig {
	return ToleranceConfig{CountAbs: 0, ValueRel: 0.005}
}

// OrDefaults fills unset fields per field. A zero ValueRel means "not
// configured"; a zero CountAbs is the legitimate strict setting and is kept.
func (t ToleranceConfig) OrDefaults() ToleranceConfig {
	if t.ValueRel == 0 {
		t.ValueRel = DefaultTolerance().ValueRel
	}
	return t
}

// MonthlyTarget is one month's worth of metric targets.
// Invariants (enforced by validation, relied on by allocation):
// leads <= contacts; closedWonCount <= deals; closedWonValue > 0 implies
// closedWonCount > 0.
type MonthlyTarget struct {
	Month          string   `json:"month" validate:"required"`
	Leads          int      `json:"leads" validate:"min=0"`
	Contacts       int      `json:"contacts" validate:"min=0"`
	Companies      int      `json:"companies" validate:"min=0"`
	Deals          int      `json:"deals" validate:"min=0"`
	ClosedWonCount int      `json:"closed_won_count" validate:"min=0"`
	ClosedWonValue float64  `json:"closed_won_value" validate:"min=0"`
	PipelineValue  float64  `json:"pipeline_value" validate:"min=0"`
	AvgDealSize    *float64 `json:"avg_deal_size,omitempty"`
	WinRate        *float64 `json:"win_rate,omitempty"`
}

// CountMetric returns the integer target for a count metric name.
func (t MonthlyTarget) CountMetric(metric string) int {
	switch metric {
	case MetricLeads:
		return t.Leads
	case MetricContacts:
		return t.Contacts
	case MetricCompanies:
		return t.Companies
	case MetricDeals:
		return t.Deals
	case MetricClosedWonCount:
		return t.ClosedWonCount
	}
	return 0
}

// ValueMetric returns the monetary target for a value metric name.
func (t MonthlyTarget) ValueMetric(metric string) float64 {
	switch metric {
	case MetricClosedWonValue:
		return t.ClosedWonValue
	case MetricPipelineValue:
		return t.PipelineValue
	}
	return 0
}

func (t MonthlyTarget) Validate() error {
	if t.Leads > t.Contacts {
		return fmt.Errorf("month %s: leads (%d) cannot exceed contacts (%d)", t.Month, t.Leads, t.Contacts)
	}
	if t.ClosedWonCount > t.Deals {
		return fmt.Errorf("month %s: closed-won count (%d) cannot exceed deals created (%d)", t.Month, t.ClosedWonCount, t.Deals)
	}
	if t.ClosedWonValue > 0 && t.ClosedWonCount == 0 {
		return fmt.Errorf("month %s: closed-won value %.2f requires a closed-won count > 0", t.Month, t.ClosedWonValue)
	}
	return nil
}

// AggregateTargets is the legacy single-number target set a GrowthPlanner
// spreads across months.
type AggregateTargets struct {
	Leads          int     `json:"leads"`
	Contacts       int     `json:"contacts"`
	Companies      int     `json:"companies"`
	Deals          int     `json:"deals"`
	ClosedWonCount int     `json:"closed_won_count"`
	ClosedWonValue float64 `json:"closed_won_value"`
	PipelineValue  float64 `json:"pipeline_value"`
}

type GrowthConfig struct {
	Months  int              `json:"months" validate:"required,min=1,max=24"`
	Curve   string           `json:"curve" validate:"required,oneof=linear front-loaded hockey-stick"`
	Targets AggregateTargets `json:"targets"`
	WinRate *float64         `json:"win_rate,omitempty"`
}

// TargetSpec is the persisted target specification of a generation job:
// either a growth-curve config (legacy mode) or an explicit monthly plan.
type TargetSpec struct {
	PlanType  string          `json:"plan_type"` // "growth-curve" | "monthly"
	Growth    *GrowthConfig   `json:"growth,omitempty"`
	Months    []MonthlyTarget `json:"months,omitempty"`
	Tolerance ToleranceConfig `json:"tolerance"`
}

// JobLogEntry is one structured line of a job's accumulated log.
type JobLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}
