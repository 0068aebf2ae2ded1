package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Company is a generated account record. CreatedAt is set explicitly by the
// generator (not autoCreateTime) because KPI aggregation buckets by the
// synthetic creation month, not by insert time.
type Company struct {
	ID          int       `gorm:"primary_key" json:"id"`
	TenantId    string    `gorm:"size:64;not null;index:idx_company_tenant_created" json:"tenant_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Domain      string    `gorm:"size:255" json:"domain"`
	Industry    string    `gorm:"size:120" json:"industry"`
	City        string    `gorm:"size:120" json:"city"`
	State       string    `gorm:"size:120" json:"state"`
	PostalCode  string    `gorm:"size:20" json:"postal_code"`
	Address     string    `gorm:"size:255" json:"address"`
	Phone       string    `gorm:"size:30" json:"phone"`
	OwnerId     int       `json:"owner_id"`
	IsDemoData  bool      `gorm:"not null;default:true" json:"is_demo_data"`
	SourceJobId string    `gorm:"size:64;index" json:"source_job_id"`
	SourceMonth string    `gorm:"size:7;index" json:"source_month"`
	CreatedAt   time.Time `gorm:"index:idx_company_tenant_created" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func StoreCompanies(tx *gorm.DB, ctx context.Context, companies []*Company, batchSize int) error {
	if len(companies) == 0 {
		return nil
	}
	return tx.WithContext(ctx).CreateInBatches(companies, batchSize).Error
}
