// kpi-verify measures a tenant's monthly KPIs and checks them against the
// targets of a completed generation job. Exits non-zero when verification
// fails, so it can gate demo environment promotions.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... go run ./cmd/kpi-verify -job <generation-job-id>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/demodata_backend/config"
	"bitbucket.org/mmdatafocus/demodata_backend/models"
	"bitbucket.org/mmdatafocus/demodata_backend/utils"
	"bitbucket.org/mmdatafocus/demodata_backend/workflow"
)

func main() {
	jobId := flag.String("job", "", "Required: generation job id to verify against")
	verbose := flag.Bool("v", false, "Print every metric line, not just failures")
	asJSON := flag.Bool("json", false, "Print the full verification report as JSON")
	flag.Parse()

	if strings.TrimSpace(*jobId) == "" {
		fmt.Fprintln(os.Stderr, "-job is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized. Set DB_* env vars.")
		os.Exit(1)
	}

	ctx := context.Background()
	job, err := models.GetGenerationJob(db, ctx, *jobId)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load job %s: %v\n", *jobId, err)
		os.Exit(1)
	}

	spec, err := job.GetTargetSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to decode job target spec: %v\n", err)
		os.Exit(1)
	}
	months := spec.Months
	if spec.PlanType == "growth-curve" {
		months, err = workflow.PlanMonthlyTargets(*spec.Growth, job.CreatedAt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to expand growth plan: %v\n", err)
			os.Exit(1)
		}
	}
	if len(months) == 0 {
		fmt.Fprintln(os.Stderr, "job target spec has no months")
		os.Exit(1)
	}

	fromMonth := months[0].Month
	toMonth := months[len(months)-1].Month
	actuals, err := models.QueryMonthlyKpis(db, ctx, job.TenantId, fromMonth, toMonth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to measure KPIs: %v\n", err)
		os.Exit(1)
	}

	report := workflow.VerifyKpis(months, actuals, spec.Tolerance.OrDefaults())

	if *asJSON {
		utils.MarshalToPrint(report)
		if !report.Passed {
			os.Exit(2)
		}
		return
	}

	for _, mv := range report.Months {
		status := "PASS"
		if !mv.Passed {
			status = "FAIL"
		}
		fmt.Printf("%s  %s\n", mv.Month, status)
		for _, m := range mv.Metrics {
			if m.Passed && !*verbose {
				continue
			}
			fmt.Printf("    %-18s target=%s actual=%s delta=%s\n",
				m.Metric, m.Target.String(), m.Actual.String(), m.Delta.String())
		}
	}

	if !report.Passed {
		fmt.Fprintf(os.Stderr, "verification failed for tenant %s (%s..%s)\n", job.TenantId, fromMonth, toMonth)
		os.Exit(2)
	}
	fmt.Printf("verification passed for tenant %s (%s..%s)\n", job.TenantId, fromMonth, toMonth)
}
