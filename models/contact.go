package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Contact is a generated person record. Leads are contacts whose lifecycle
// stage is Lead, so the invariant leads <= contacts holds structurally.
type Contact struct {
	ID             int            `gorm:"primary_key" json:"id"`
	TenantId       string         `gorm:"size:64;not null;index:idx_contact_tenant_created" json:"tenant_id"`
	FirstName      string         `gorm:"size:120;not null" json:"first_name"`
	LastName       string         `gorm:"size:120;not null" json:"last_name"`
	Email          string         `gorm:"size:255" json:"email"`
	Phone          string         `gorm:"size:30" json:"phone"`
	Title          string         `gorm:"size:120" json:"title"`
	LifecycleStage LifecycleStage `gorm:"size:20;not null;default:Contact;index" json:"lifecycle_stage"`
	CompanyId      *int           `gorm:"index" json:"company_id"`
	OwnerId        int            `json:"owner_id"`
	IsDemoData     bool           `gorm:"not null;default:true" json:"is_demo_data"`
	SourceJobId    string         `gorm:"size:64;index" json:"source_job_id"`
	SourceMonth    string         `gorm:"size:7;index" json:"source_month"`
	CreatedAt      time.Time      `gorm:"index:idx_contact_tenant_created" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func StoreContacts(tx *gorm.DB, ctx context.Context, contacts []*Contact, batchSize int) error {
	if len(contacts) == 0 {
		return nil
	}
	return tx.WithContext(ctx).CreateInBatches(contacts, batchSize).Error
}
