package models

import "time"

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

// IdempotencyKey provides durable, DB-backed idempotency for continuation
// handlers: continuation delivery is at-least-once (HTTP retries, Pub/Sub
// redelivery), so each hop carries a unique invocation id that is claimed
// here before any work runs.
// Unique constraint: (tenant_id, handler_name, invocation_id).
type IdempotencyKey struct {
	ID           int               `gorm:"primary_key" json:"id"`
	TenantId     string            `gorm:"size:64;not null;index:uniq_idem,unique" json:"tenant_id"`
	HandlerName  string            `gorm:"size:100;not null;index:uniq_idem,unique" json:"handler_name"`
	InvocationId string            `gorm:"size:255;not null;index:uniq_idem,unique" json:"invocation_id"`
	Status       IdempotencyStatus `gorm:"size:20;not null;index" json:"status"`
	LastError    *string           `gorm:"type:text" json:"last_error"`
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}
