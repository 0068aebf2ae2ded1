package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/config"
	"gorm.io/gorm"
)

// GenerationJob is one synthetic-tenant build. It is mutated exclusively by
// the chunked generator; the State blob plus Phase pointer make every
// invocation stateless beyond what it reads from this record.
type GenerationJob struct {
	ID           string          `gorm:"primary_key;size:64" json:"id"`
	TenantId     string          `gorm:"size:64;not null;index" json:"tenant_id"`
	Status       JobStatus       `gorm:"size:20;not null;index" json:"status"`
	Phase        GenerationPhase `gorm:"size:20;not null" json:"phase"`
	Progress     int             `gorm:"not null;default:0" json:"progress"`
	Step         string          `gorm:"size:255" json:"step"`
	Seed         string          `gorm:"size:120;not null" json:"seed"`
	TargetSpec   []byte          `gorm:"type:json" json:"target_spec"`
	State        []byte          `gorm:"type:json" json:"-"`
	Logs         []byte          `gorm:"type:json" json:"logs"`
	Metrics      []byte          `gorm:"type:json" json:"metrics"`
	ErrorMessage string          `gorm:"size:1000" json:"error_message"`
	ErrorStack   string          `gorm:"type:text" json:"-"`
	StartedAt    *time.Time      `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (j *GenerationJob) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(j).Error
}

func (j *GenerationJob) Update(tx *gorm.DB, ctx context.Context, fillable map[string]interface{}) error {
	return tx.WithContext(ctx).Model(j).Updates(fillable).Error
}

func GetGenerationJob(tx *gorm.DB, ctx context.Context, id string) (*GenerationJob, error) {
	var j GenerationJob
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&j).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (j *GenerationJob) GetTargetSpec() (*TargetSpec, error) {
	var spec TargetSpec
	if err := json.Unmarshal(j.TargetSpec, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (j *GenerationJob) SetTargetSpec(spec *TargetSpec) error {
	b, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	j.TargetSpec = b
	return nil
}

// AppendLog appends a structured entry to the job's log column. Logging must
// never fail a running job, so marshal errors are swallowed after being
// reported to the process logger.
func (j *GenerationJob) AppendLog(tx *gorm.DB, ctx context.Context, level, message string) {
	var entries []JobLogEntry
	if len(j.Logs) > 0 {
		_ = json.Unmarshal(j.Logs, &entries)
	}
	entries = append(entries, JobLogEntry{Timestamp: time.Now().UTC(), Level: level, Message: message})
	b, err := json.Marshal(entries)
	if err != nil {
		config.LogError(config.GetLogger(), "generationJob.go", "AppendLog", "marshal log entries", j.ID, err)
		return
	}
	j.Logs = b
	if err := tx.WithContext(ctx).Model(j).Update("logs", j.Logs).Error; err != nil {
		config.LogError(config.GetLogger(), "generationJob.go", "AppendLog", "persist log entries", j.ID, err)
	}
}

// Checkpoint persists phase, progress, step and the state blob in one write.
// The write must be fully committed before a continuation is requested.
func (j *GenerationJob) Checkpoint(tx *gorm.DB, ctx context.Context, state []byte) error {
	j.State = state
	return tx.WithContext(ctx).Model(j).Updates(map[string]interface{}{
		"phase":    j.Phase,
		"progress": j.Progress,
		"step":     j.Step,
		"status":   j.Status,
		"state":    j.State,
	}).Error
}

// MarkFailed transitions the job to Failed, capturing message and stack.
// Already-inserted records are intentionally left in place.
func (j *GenerationJob) MarkFailed(tx *gorm.DB, ctx context.Context, errMsg, stack string) error {
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
		"state":         j.State,
	}).Error
}
