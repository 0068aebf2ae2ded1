package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MetricOverride layers numeric deltas on top of measured actuals for one
// tenant-month without touching underlying records. Used only by
// metrics-only patches; repeated patches for the same month accumulate.
type MetricOverride struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	TenantId            string          `gorm:"size:64;not null;index:uniq_override,unique" json:"tenant_id"`
	Month               string          `gorm:"size:7;not null;index:uniq_override,unique" json:"month"`
	LeadsDelta          int             `gorm:"not null;default:0" json:"leads_delta"`
	ContactsDelta       int             `gorm:"not null;default:0" json:"contacts_delta"`
	CompaniesDelta      int             `gorm:"not null;default:0" json:"companies_delta"`
	DealsDelta          int             `gorm:"not null;default:0" json:"deals_delta"`
	ClosedWonCountDelta int             `gorm:"not null;default:0" json:"closed_won_count_delta"`
	ClosedWonValueDelta decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"closed_won_value_delta"`
	PipelineValueDelta  decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"pipeline_value_delta"`
	LastPatchJobId      string          `gorm:"size:64" json:"last_patch_job_id"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Accumulate adds another override on top of this one.
func (o *MetricOverride) Accumulate(delta MetricOverride) {
	o.LeadsDelta += delta.LeadsDelta
	o.ContactsDelta += delta.ContactsDelta
	o.CompaniesDelta += delta.CompaniesDelta
	o.DealsDelta += delta.DealsDelta
	o.ClosedWonCountDelta += delta.ClosedWonCountDelta
	o.ClosedWonValueDelta = o.ClosedWonValueDelta.Add(delta.ClosedWonValueDelta)
	o.PipelineValueDelta = o.PipelineValueDelta.Add(delta.PipelineValueDelta)
}

// UpsertMetricOverride additively merges a delta into the (tenant, month)
// override row, creating it when absent. Callers hold the per-tenant job
// lock, so read-modify-write is race-free; the unique index backstops
// creation.
func UpsertMetricOverride(tx *gorm.DB, ctx context.Context, delta *MetricOverride) error {
	var existing MetricOverride
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND month = ?", delta.TenantId, delta.Month).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.WithContext(ctx).Create(delta).Error
	}
	if err != nil {
		return err
	}
	existing.Accumulate(*delta)
	existing.LastPatchJobId = delta.LastPatchJobId
	return tx.WithContext(ctx).Save(&existing).Error
}

// MetricOverridesByMonth loads all overrides for a tenant keyed by month.
func MetricOverridesByMonth(tx *gorm.DB, ctx context.Context, tenantId string) (map[string]MetricOverride, error) {
	var rows []MetricOverride
	if err := tx.WithContext(ctx).Where("tenant_id = ?", tenantId).Find(&rows).Error; err != nil {
		return nil, err
	}
	byMonth := make(map[string]MetricOverride, len(rows))
	for _, r := range rows {
		byMonth[r.Month] = r
	}
	return byMonth, nil
}
