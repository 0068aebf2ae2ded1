// demo-data-cleanup removes all synthetic data of a tenant, in an order that
// respects foreign key references. Refuses to touch tenants not flagged as
// synthetic. With -drop-tenant the tenant row itself goes as well.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... go run ./cmd/demo-data-cleanup -tenant <tenant-id> [-drop-tenant]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/demodata_backend/config"
	"bitbucket.org/mmdatafocus/demodata_backend/models"
)

func main() {
	tenantId := flag.String("tenant", "", "Required: tenant id to clean up")
	dropTenant := flag.Bool("drop-tenant", false, "Also delete the tenant row and its jobs")
	flag.Parse()

	if strings.TrimSpace(*tenantId) == "" {
		fmt.Fprintln(os.Stderr, "-tenant is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized. Set DB_* env vars.")
		os.Exit(1)
	}

	ctx := context.Background()
	tenant, err := models.GetDemoTenant(db, ctx, *tenantId)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load tenant %s: %v\n", *tenantId, err)
		os.Exit(1)
	}
	if !tenant.IsSynthetic {
		fmt.Fprintf(os.Stderr, "tenant %s is not synthetic, refusing to delete its data\n", tenant.ID)
		os.Exit(1)
	}

	// Children before parents: activities reference deals and contacts, deals
	// reference contacts and companies, contacts reference companies.
	steps := []struct {
		name  string
		model interface{}
	}{
		{"activities", &models.Activity{}},
		{"deals", &models.Deal{}},
		{"contacts", &models.Contact{}},
		{"companies", &models.Company{}},
		{"tags", &models.Tag{}},
		{"pipeline stages", &models.PipelineStage{}},
		{"users", &models.DemoUser{}},
		{"metric overrides", &models.MetricOverride{}},
	}
	for _, step := range steps {
		res := db.WithContext(ctx).Where("tenant_id = ?", tenant.ID).Delete(step.model)
		if res.Error != nil {
			fmt.Fprintf(os.Stderr, "failed to delete %s: %v\n", step.name, res.Error)
			os.Exit(1)
		}
		fmt.Printf("deleted %d %s\n", res.RowsAffected, step.name)
	}

	if *dropTenant {
		jobSteps := []struct {
			name  string
			model interface{}
		}{
			{"generation jobs", &models.GenerationJob{}},
			{"patch jobs", &models.PatchJob{}},
			{"idempotency keys", &models.IdempotencyKey{}},
		}
		for _, step := range jobSteps {
			res := db.WithContext(ctx).Where("tenant_id = ?", tenant.ID).Delete(step.model)
			if res.Error != nil {
				fmt.Fprintf(os.Stderr, "failed to delete %s: %v\n", step.name, res.Error)
				os.Exit(1)
			}
			fmt.Printf("deleted %d %s\n", res.RowsAffected, step.name)
		}
		if err := db.WithContext(ctx).Delete(&models.DemoTenant{}, "id = ?", tenant.ID).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to delete tenant: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("deleted tenant %s\n", tenant.ID)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
