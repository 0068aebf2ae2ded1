package models

import (
	"context"

	"gorm.io/gorm"
)

// PipelineStage mirrors an IndustryTemplate stage definition for one tenant.
type PipelineStage struct {
	ID          int       `gorm:"primary_key" json:"id"`
	TenantId    string    `gorm:"size:64;not null;index" json:"tenant_id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	StageType   StageType `gorm:"size:20;not null" json:"stage_type"`
	Position    int       `gorm:"not null" json:"position"`
	Probability float64   `json:"probability"`
	SourceJobId string    `gorm:"size:64;index" json:"source_job_id"`
}

// StageClassification is the won/lost/open split the aggregator and the
// patch engine both need. Derived once per tenant and passed around.
type StageClassification struct {
	WonStageIds  []int
	LostStageIds []int
	OpenStageIds []int
	Stages       []PipelineStage
}

func ClassifyStages(tx *gorm.DB, ctx context.Context, tenantId string) (*StageClassification, error) {
	var stages []PipelineStage
	if err := tx.WithContext(ctx).
		Where("tenant_id = ?", tenantId).
		Order("position ASC").
		Find(&stages).Error; err != nil {
		return nil, err
	}

	sc := &StageClassification{Stages: stages}
	for _, s := range stages {
		switch s.StageType {
		case StageTypeWon:
			sc.WonStageIds = append(sc.WonStageIds, s.ID)
		case StageTypeLost:
			sc.LostStageIds = append(sc.LostStageIds, s.ID)
		default:
			sc.OpenStageIds = append(sc.OpenStageIds, s.ID)
		}
	}
	return sc, nil
}

// Tag is a label generated records may reference; kept per tenant so demo
// dashboards have something to filter on.
type Tag struct {
	ID          int    `gorm:"primary_key" json:"id"`
	TenantId    string `gorm:"size:64;not null;index" json:"tenant_id"`
	Name        string `gorm:"size:80;not null" json:"name"`
	Color       string `gorm:"size:20" json:"color"`
	SourceJobId string `gorm:"size:64;index" json:"source_job_id"`
}
