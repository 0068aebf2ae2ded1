package utils

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/demodata_backend/config"
)

// check if id exists, using tenant_id in WHERE, return RecordNotFound Error
func ValidateResourceId[T any](ctx context.Context, tenantId string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, tenantId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, tenantId string, column string, value interface{}) error {
	count, err := ResourceCountWhere[T](ctx, tenantId, column+" = ?", value)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}

// count records, using WHERE tenant_id = ? AND $condition
// tenant_id can be blank for platform-admin scope
func ResourceCountWhere[T any](ctx context.Context, tenantId string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if tenantId != "" {
		dbCtx.Where("tenant_id = ?", tenantId)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
