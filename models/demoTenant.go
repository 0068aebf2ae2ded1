package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// DemoTenant is a synthetic CRM workspace. Only tenants flagged IsSynthetic
// are eligible for generation and patching; the engines refuse everything
// else so a mistyped id can never mutate a real tenant.
type DemoTenant struct {
	ID           string `gorm:"primary_key;size:64" json:"id"`
	Name         string `gorm:"size:255;not null" json:"name"`
	CountryCode  string `gorm:"size:8;not null;default:US" json:"country_code"`
	IndustryCode string `gorm:"size:64;not null" json:"industry_code"`
	IsSynthetic  bool   `gorm:"not null;default:false;index" json:"is_synthetic"`
	// DataStartMonth is the first month of the tenant's synthetic history,
	// set by the generator. Patch plans may not reach before it.
	DataStartMonth string    `gorm:"size:7" json:"data_start_month"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *DemoTenant) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(t).Error
}

func GetDemoTenant(tx *gorm.DB, ctx context.Context, id string) (*DemoTenant, error) {
	var t DemoTenant
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// DemoUser is a seeded workspace member used as record owner for generated
// contacts, deals and activities.
type DemoUser struct {
	ID          int       `gorm:"primary_key" json:"id"`
	TenantId    string    `gorm:"size:64;not null;index" json:"tenant_id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	Email       string    `gorm:"size:120" json:"email"`
	Role        string    `gorm:"size:50" json:"role"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	SourceJobId string    `gorm:"size:64;index" json:"source_job_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func ActiveDemoUsers(tx *gorm.DB, ctx context.Context, tenantId string) ([]DemoUser, error) {
	var users []DemoUser
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND is_active = 1", tenantId).
		Order("id ASC").
		Find(&users).Error
	return users, err
}
