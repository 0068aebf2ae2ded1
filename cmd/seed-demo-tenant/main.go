// seed-demo-tenant creates a synthetic tenant and drives a full generation
// job to completion in-process, re-invoking the generator whenever it
// checkpoints. Useful for local development and demo environment seeding.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/seed-demo-tenant -name "Acme Demo" -industry saas -months 6 -contacts 1200 -deals 300
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/config"
	"bitbucket.org/mmdatafocus/demodata_backend/industry"
	"bitbucket.org/mmdatafocus/demodata_backend/localization"
	"bitbucket.org/mmdatafocus/demodata_backend/models"
	"bitbucket.org/mmdatafocus/demodata_backend/utils"
	"bitbucket.org/mmdatafocus/demodata_backend/workflow"
	"github.com/google/uuid"
)

func main() {
	name := flag.String("name", "", "Required: tenant display name")
	country := flag.String("country", "US", "Country code for localization")
	industryCode := flag.String("industry", "saas", "Industry template code")
	seed := flag.String("seed", "", "Deterministic seed (default: random uuid)")
	specFile := flag.String("spec", "", "Optional: path to a target spec JSON file; overrides the flags below")
	months := flag.Int("months", 6, "Growth curve length in months (1-24)")
	curve := flag.String("curve", "linear", "Growth curve: linear, front-loaded, hockey-stick")
	leads := flag.Int("leads", 400, "Total leads")
	contacts := flag.Int("contacts", 1000, "Total contacts")
	companies := flag.Int("companies", 150, "Total companies")
	deals := flag.Int("deals", 250, "Total deals")
	wonCount := flag.Int("won-count", 60, "Total closed-won deals")
	wonValue := flag.Float64("won-value", 500000, "Total closed-won value")
	pipelineValue := flag.Float64("pipeline-value", 2000000, "Total pipeline value")
	flag.Parse()

	if strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "-name is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized. Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	spec := &models.TargetSpec{
		PlanType: "growth-curve",
		Growth: &models.GrowthConfig{
			Months: *months,
			Curve:  *curve,
			Targets: models.AggregateTargets{
				Leads:          *leads,
				Contacts:       *contacts,
				Companies:      *companies,
				Deals:          *deals,
				ClosedWonCount: *wonCount,
				ClosedWonValue: *wonValue,
				PipelineValue:  *pipelineValue,
			},
		},
		Tolerance: models.DefaultTolerance(),
	}
	if strings.TrimSpace(*specFile) != "" {
		raw, err := os.ReadFile(*specFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read spec file: %v\n", err)
			os.Exit(1)
		}
		spec = &models.TargetSpec{}
		if err := utils.UnmarshalFromJSON(raw, spec); err != nil {
			fmt.Fprintf(os.Stderr, "invalid spec file: %v\n", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	tenant := &models.DemoTenant{
		ID:           uuid.NewString(),
		Name:         *name,
		CountryCode:  localization.ForCountry(*country).CountryCode(),
		IndustryCode: industry.ForCode(*industryCode).Code,
		IsSynthetic:  true,
	}
	if err := tenant.Store(db, ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create tenant: %v\n", err)
		os.Exit(1)
	}

	jobSeed := *seed
	if jobSeed == "" {
		jobSeed = uuid.NewString()
	}
	job := &models.GenerationJob{
		ID:       uuid.NewString(),
		TenantId: tenant.ID,
		Status:   models.JobStatusPending,
		Phase:    models.PhaseInit,
		Seed:     jobSeed,
	}
	if err := job.SetTargetSpec(spec); err != nil {
		fmt.Fprintf(os.Stderr, "invalid target spec: %v\n", err)
		os.Exit(1)
	}
	if err := job.Store(db, ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create job: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("tenant %s, job %s, seed %s\n", tenant.ID, job.ID, jobSeed)

	// Drive the job to a terminal state in-process; each Run invocation does
	// one time-budget slice.
	gen := workflow.NewChunkedGenerator(db)
	for {
		if err := gen.Run(ctx, job.ID); err != nil && !errors.Is(err, utils.ErrJobAlreadyCompleted) {
			fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
			os.Exit(1)
		}
		current, err := models.GetGenerationJob(db, ctx, job.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to reload job: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("phase=%s progress=%d%% step=%q\n", current.Phase, current.Progress, current.Step)
		if current.Status.IsTerminal() {
			if current.Status == models.JobStatusFailed {
				fmt.Fprintf(os.Stderr, "job failed: %s\n", current.ErrorMessage)
				os.Exit(2)
			}
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Println("generation completed")
}
