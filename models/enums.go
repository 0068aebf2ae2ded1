package models

import (
	"database/sql/driver"
	"fmt"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "Pending"
	JobStatusRunning   JobStatus = "Running"
	JobStatusCompleted JobStatus = "Completed"
	JobStatusFailed    JobStatus = "Failed"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s JobStatus) Value() (driver.Value, error) { return string(s), nil }

func (s *JobStatus) Scan(v interface{}) error {
	switch x := v.(type) {
	case string:
		*s = JobStatus(x)
	case []byte:
		*s = JobStatus(x)
	default:
		return fmt.Errorf("cannot scan %T into JobStatus", v)
	}
	return nil
}

// GenerationPhase values execute strictly in the order listed by
// GenerationPhaseOrder. The persisted phase pointer plus the state blob are
// the only cross-invocation state a generation job carries.
type GenerationPhase string

const (
	PhaseInit       GenerationPhase = "init"
	PhaseTenant     GenerationPhase = "tenant"
	PhaseUsers      GenerationPhase = "users"
	PhasePipeline   GenerationPhase = "pipeline"
	PhaseTags       GenerationPhase = "tags"
	PhaseCompanies  GenerationPhase = "companies"
	PhaseContacts   GenerationPhase = "contacts"
	PhaseDeals      GenerationPhase = "deals"
	PhaseActivities GenerationPhase = "activities"
	PhaseVerify     GenerationPhase = "verify"
	PhaseCompleted  GenerationPhase = "completed"
)

var GenerationPhaseOrder = []GenerationPhase{
	PhaseInit, PhaseTenant, PhaseUsers, PhasePipeline, PhaseTags,
	PhaseCompanies, PhaseContacts, PhaseDeals, PhaseActivities,
	PhaseVerify, PhaseCompleted,
}

// NextPhase returns the phase following p, or PhaseCompleted when p is last.
func NextPhase(p GenerationPhase) GenerationPhase {
	for i, cur := range GenerationPhaseOrder {
		if cur == p && i+1 < len(GenerationPhaseOrder) {
			return GenerationPhaseOrder[i+1]
		}
	}
	return PhaseCompleted
}

// PhaseProgress maps a phase to the percentage reported when the phase begins.
func PhaseProgress(p GenerationPhase) int {
	switch p {
	case PhaseInit:
		return 0
	case PhaseTenant:
		return 5
	case PhaseUsers:
		return 10
	case PhasePipeline:
		return 15
	case PhaseTags:
		return 18
	case PhaseCompanies:
		return 20
	case PhaseContacts:
		return 40
	case PhaseDeals:
		return 60
	case PhaseActivities:
		return 80
	case PhaseVerify:
		return 95
	case PhaseCompleted:
		return 100
	}
	return 0
}

type PatchMode string

const (
	PatchModeAdditive    PatchMode = "additive"
	PatchModeReconcile   PatchMode = "reconcile"
	PatchModeMetricsOnly PatchMode = "metrics-only"
)

func (m PatchMode) IsValid() bool {
	switch m {
	case PatchModeAdditive, PatchModeReconcile, PatchModeMetricsOnly:
		return true
	}
	return false
}

type PatchPlanType string

const (
	PatchPlanTargets PatchPlanType = "targets"
	PatchPlanDeltas  PatchPlanType = "deltas"
)

func (t PatchPlanType) IsValid() bool {
	return t == PatchPlanTargets || t == PatchPlanDeltas
}

// StageType classifies pipeline stages for KPI aggregation: closed-won
// metrics count deals in Won stages, pipeline metrics count deals in any
// non-Lost stage.
type StageType string

const (
	StageTypeOpen StageType = "Open"
	StageTypeWon  StageType = "Won"
	StageTypeLost StageType = "Lost"
)

type DealStatus string

const (
	DealStatusOpen DealStatus = "Open"
	DealStatusWon  DealStatus = "Won"
	DealStatusLost DealStatus = "Lost"
)

type LifecycleStage string

const (
	LifecycleStageLead     LifecycleStage = "Lead"
	LifecycleStageContact  LifecycleStage = "Contact"
	LifecycleStageCustomer LifecycleStage = "Customer"
)

type ActivityType string

const (
	ActivityTypeCall    ActivityType = "Call"
	ActivityTypeEmail   ActivityType = "Email"
	ActivityTypeMeeting ActivityType = "Meeting"
	ActivityTypeTask    ActivityType = "Task"
	ActivityTypeNote    ActivityType = "Note"
)

type EntityType string

const (
	EntityCompany  EntityType = "Company"
	EntityContact  EntityType = "Contact"
	EntityDeal     EntityType = "Deal"
	EntityActivity EntityType = "Activity"
)

// Metric names used in targets, KPI snapshots, diff reports and overrides.
const (
	MetricLeads          = "leads"
	MetricContacts       = "contacts"
	MetricCompanies      = "companies"
	MetricDeals          = "deals"
	MetricClosedWonCount = "closedWonCount"
	MetricClosedWonValue = "closedWonValue"
	MetricPipelineValue  = "pipelineValue"
)

// CountMetrics are verified with an absolute tolerance, ValueMetrics with a
// relative one.
var CountMetrics = []string{MetricLeads, MetricContacts, MetricCompanies, MetricDeals, MetricClosedWonCount}

var ValueMetrics = []string{MetricClosedWonValue, MetricPipelineValue}
