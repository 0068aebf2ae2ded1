package models

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// PatchPlan is the persisted plan of a patch job: per-month targets or
// deltas, with the tolerance config used for the post-patch verification.
type PatchPlan struct {
	Mode     PatchMode     `json:"mode" validate:"required"`
	PlanType PatchPlanType `json:"plan_type" validate:"required"`
	// No dive: delta plans legitimately carry negative month values, the
	// numeric checks live in the plan validator.
	Months    []MonthlyTarget `json:"months" validate:"required,min=1,max=24"`
	Tolerance ToleranceConfig `json:"tolerance"`
}

// PatchJob is one mutation attempt against an existing tenant. Once
// completed it is never re-executed; re-invocation returns cached results.
type PatchJob struct {
	ID              string        `gorm:"primary_key;size:64" json:"id"`
	TenantId        string        `gorm:"size:64;not null;index" json:"tenant_id"`
	GenerationJobId string        `gorm:"size:64;index" json:"generation_job_id"`
	Mode            PatchMode     `gorm:"size:20;not null" json:"mode"`
	PlanType        PatchPlanType `gorm:"size:10;not null" json:"plan_type"`
	Plan            []byte        `gorm:"type:json" json:"plan"`
	State           []byte        `gorm:"type:json" json:"-"`
	Seed            string        `gorm:"size:120;not null" json:"seed"`
	FromMonth       string        `gorm:"size:7" json:"from_month"`
	ToMonth         string        `gorm:"size:7" json:"to_month"`
	Status          JobStatus     `gorm:"size:20;not null;index" json:"status"`
	Progress        int           `gorm:"not null;default:0" json:"progress"`
	Step            string        `gorm:"size:255" json:"step"`
	Logs            []byte        `gorm:"type:json" json:"logs"`
	BeforeSnapshot  []byte        `gorm:"type:json" json:"before_snapshot"`
	AfterSnapshot   []byte        `gorm:"type:json" json:"after_snapshot"`
	DiffReport      []byte        `gorm:"type:json" json:"diff_report"`
	EntityCounts    []byte        `gorm:"type:json" json:"entity_counts"`
	ErrorMessage    string        `gorm:"size:1000" json:"error_message"`
	ErrorStack      string        `gorm:"type:text" json:"-"`
	StartedAt       *time.Time    `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// PatchEntityCounts aggregates created/modified/deleted record counts by
// entity type for the completed-job report.
type PatchEntityCounts struct {
	Created  map[EntityType]int `json:"created"`
	Modified map[EntityType]int `json:"modified"`
	Deleted  map[EntityType]int `json:"deleted"`
}

func NewPatchEntityCounts() *PatchEntityCounts {
	return &PatchEntityCounts{
		Created:  map[EntityType]int{},
		Modified: map[EntityType]int{},
		Deleted:  map[EntityType]int{},
	}
}

func (j *PatchJob) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(j).Error
}

func (j *PatchJob) Update(tx *gorm.DB, ctx context.Context, fillable map[string]interface{}) error {
	return tx.WithContext(ctx).Model(j).Updates(fillable).Error
}

func GetPatchJob(tx *gorm.DB, ctx context.Context, id string) (*PatchJob, error) {
	var j PatchJob
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&j).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (j *PatchJob) GetPlan() (*PatchPlan, error) {
	var plan PatchPlan
	if err := json.Unmarshal(j.Plan, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (j *PatchJob) SetPlan(plan *PatchPlan) error {
	b, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	j.Plan = b
	j.Mode = plan.Mode
	j.PlanType = plan.PlanType
	if len(plan.Months) > 0 {
		j.FromMonth = plan.Months[0].Month
		j.ToMonth = plan.Months[len(plan.Months)-1].Month
	}
	return nil
}

func (j *PatchJob) MarkFailed(tx *gorm.DB, ctx context.Context, errMsg, stack string) error {
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.ErrorStack = stack
	j.CompletedAt = &now
	return tx.WithContext(ctx).Model(j).Updates(map[string]interface{}{
		"status":        j.Status,
		"error_message": j.ErrorMessage,
		"error_stack":   j.ErrorStack,
		"completed_at":  j.CompletedAt,
	}).Error
}
