package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Deal is a generated opportunity. Status is denormalized from the stage's
// StageType so monthly aggregate queries never need a join.
type Deal struct {
	ID                int             `gorm:"primary_key" json:"id"`
	TenantId          string          `gorm:"size:64;not null;index:idx_deal_tenant_created" json:"tenant_id"`
	Name              string          `gorm:"size:255;not null" json:"name"`
	Value             decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"value"`
	Currency          string          `gorm:"size:8;not null;default:USD" json:"currency"`
	StageId           int             `gorm:"index" json:"stage_id"`
	Status            DealStatus      `gorm:"size:10;not null;index" json:"status"`
	ContactId         *int            `gorm:"index" json:"contact_id"`
	CompanyId         *int            `gorm:"index" json:"company_id"`
	OwnerId           int             `json:"owner_id"`
	ExpectedCloseDate *time.Time      `json:"expected_close_date"`
	ClosedAt          *time.Time      `gorm:"index" json:"closed_at"`
	IsDemoData        bool            `gorm:"not null;default:true" json:"is_demo_data"`
	SourceJobId       string          `gorm:"size:64;index" json:"source_job_id"`
	SourceMonth       string          `gorm:"size:7;index" json:"source_month"`
	CreatedAt         time.Time       `gorm:"index:idx_deal_tenant_created" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func StoreDeals(tx *gorm.DB, ctx context.Context, deals []*Deal, batchSize int) error {
	if len(deals) == 0 {
		return nil
	}
	return tx.WithContext(ctx).CreateInBatches(deals, batchSize).Error
}
