package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Activity struct {
	ID          int          `gorm:"primary_key" json:"id"`
	TenantId    string       `gorm:"size:64;not null;index:idx_activity_tenant_created" json:"tenant_id"`
	Type        ActivityType `gorm:"size:20;not null" json:"type"`
	Subject     string       `gorm:"size:255" json:"subject"`
	ContactId   *int         `gorm:"index" json:"contact_id"`
	DealId      *int         `gorm:"index" json:"deal_id"`
	OwnerId     int          `json:"owner_id"`
	CompletedAt *time.Time   `json:"completed_at"`
	IsDemoData  bool         `gorm:"not null;default:true" json:"is_demo_data"`
	SourceJobId string       `gorm:"size:64;index" json:"source_job_id"`
	SourceMonth string       `gorm:"size:7;index" json:"source_month"`
	CreatedAt   time.Time    `gorm:"index:idx_activity_tenant_created" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func StoreActivities(tx *gorm.DB, ctx context.Context, activities []*Activity, batchSize int) error {
	if len(activities) == 0 {
		return nil
	}
	return tx.WithContext(ctx).CreateInBatches(activities, batchSize).Error
}
