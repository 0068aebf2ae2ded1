package workflow

import (
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/models"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var ErrIdempotencyInProgress = errors.New("idempotency in progress")

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// BeginIdempotency inserts STARTED. If SUCCEEDED exists, returns (true, nil)
// meaning "skip safely". Continuation delivery is at-least-once, so every
// handler claims its invocation id here before doing work.
func BeginIdempotency(tx *gorm.DB, tenantId, handlerName, invocationId string) (skip bool, err error) {
	key := models.IdempotencyKey{
		TenantId:     tenantId,
		HandlerName:  handlerName,
		InvocationId: invocationId,
		Status:       models.IdempotencyStatusStarted,
	}
	if err := tx.Create(&key).Error; err == nil {
		return false, nil
	} else if !isDuplicateKeyErr(err) {
		return false, err
	}

	var existing models.IdempotencyKey
	if err := tx.Where("tenant_id = ? AND handler_name = ? AND invocation_id = ?", tenantId, handlerName, invocationId).
		First(&existing).Error; err != nil {
		return false, err
	}

	switch existing.Status {
	case models.IdempotencyStatusSucceeded:
		return true, nil
	case models.IdempotencyStatusStarted:
		// Another worker may be mid-flight; ask the caller to retry later.
		// A stale row gets reclaimed by setting STARTED again.
		if time.Since(existing.UpdatedAt) < 5*time.Minute {
			return false, ErrIdempotencyInProgress
		}
		return false, tx.Model(&models.IdempotencyKey{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
	default:
		return false, tx.Model(&models.IdempotencyKey{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
	}
}

func MarkIdempotencySucceeded(tx *gorm.DB, tenantId, handlerName, invocationId string) error {
	return tx.Model(&models.IdempotencyKey{}).
		Where("tenant_id = ? AND handler_name = ? AND invocation_id = ?", tenantId, handlerName, invocationId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusSucceeded, "last_error": nil}).Error
}

func MarkIdempotencyFailed(tx *gorm.DB, tenantId, handlerName, invocationId string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return tx.Model(&models.IdempotencyKey{}).
		Where("tenant_id = ? AND handler_name = ? AND invocation_id = ?", tenantId, handlerName, invocationId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusFailed, "last_error": &msg}).Error
}
