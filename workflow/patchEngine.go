package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/config"
	"bitbucket.org/mmdatafocus/demodata_backend/models"
	"bitbucket.org/mmdatafocus/demodata_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PatchState is the checkpoint blob of a patch job. Months are applied one
// per transaction, so a month is either fully in or fully absent; the list
// below records the fully-committed ones.
type PatchState struct {
	CompletedMonths []string                  `json:"completed_months"`
	Counts          *models.PatchEntityCounts `json:"counts"`
}

// PatchEngine mutates an existing synthetic tenant toward new targets. Runs
// are idempotent: a terminal job is never re-executed, an interrupted one
// resumes from its completed-months checkpoint.
type PatchEngine struct {
	db         *gorm.DB
	logger     *logrus.Logger
	continuer  ContinuationTrigger
	timeBudget time.Duration
	batchSize  int
	now        func() time.Time
}

func NewPatchEngine(db *gorm.DB) *PatchEngine {
	return &PatchEngine{
		db:         db,
		logger:     config.GetLogger(),
		continuer:  NewContinuerFromEnv(),
		timeBudget: config.GeneratorTimeBudget(),
		batchSize:  config.PatchBatchSize(),
		now:        time.Now,
	}
}

func (e *PatchEngine) Run(ctx context.Context, patchId string) (err error) {
	job, err := models.GetPatchJob(e.db, ctx, patchId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return err
	}
	if job.Status.IsTerminal() {
		e.logger.WithFields(logrus.Fields{"patchId": job.ID, "status": job.Status}).
			Info("patch job already terminal, returning cached result")
		return utils.ErrJobAlreadyCompleted
	}

	ctx = utils.SetTenantIdInContext(ctx, job.TenantId)
	ctx = utils.SetJobIdInContext(ctx, job.ID)

	tenant, err := models.GetDemoTenant(e.db, ctx, job.TenantId)
	if err != nil {
		return fmt.Errorf("tenant %s not found: %w", job.TenantId, err)
	}
	if !tenant.IsSynthetic {
		_ = job.MarkFailed(e.db, ctx, "tenant is not synthetic", "")
		return utils.ErrPatchBlocked
	}

	plan, err := job.GetPlan()
	if err != nil {
		return fmt.Errorf("unreadable patch plan: %w", err)
	}

	if err := AcquireTenantJobLock(e.db, job.TenantId); err != nil {
		return err
	}
	defer ReleaseTenantJobLock(e.db, job.TenantId)

	defer func() {
		if r := recover(); r != nil {
			stack := utils.CaptureStack()
			config.LogError(e.logger, "patchEngine.go", "Run", "panic in patch job", job.ID, fmt.Errorf("%v", r))
			_ = job.MarkFailed(e.db, ctx, fmt.Sprintf("panic: %v", r), stack)
			err = fmt.Errorf("patch job %s panicked: %v", job.ID, r)
		}
	}()

	state := &PatchState{}
	if len(job.State) > 0 {
		if err := json.Unmarshal(job.State, state); err != nil {
			return fmt.Errorf("corrupt patch state for job %s: %w", job.ID, err)
		}
	}
	if state.Counts == nil {
		state.Counts = models.NewPatchEntityCounts()
	}

	// Structural and month-range errors need no baseline and must fail the
	// job before it ever reports running or queries a possibly bad range.
	if pre := ValidatePatchPlan(tenant, plan, nil, e.now()); !pre.Valid {
		msg := strings.Join(pre.Errors, "; ")
		_ = job.MarkFailed(e.db, ctx, msg, "")
		return fmt.Errorf("%w: %s", utils.ErrValidationFailed, msg)
	}

	before, persisted, err := e.loadBeforeSnapshot(ctx, job, tenant)
	if err != nil {
		return err
	}

	validation := ValidatePatchPlan(tenant, plan, before, e.now())
	if !validation.Valid {
		msg := strings.Join(validation.Errors, "; ")
		_ = job.MarkFailed(e.db, ctx, msg, "")
		return fmt.Errorf("%w: %s", utils.ErrValidationFailed, msg)
	}

	// Only a fully validated plan transitions the job to running.
	if !persisted {
		if err := e.markRunning(ctx, job, before); err != nil {
			return err
		}
	}

	deadline := e.now().Add(e.timeBudget)
	completed := map[string]bool{}
	for _, m := range state.CompletedMonths {
		completed[m] = true
	}

	for i, d := range validation.Deltas {
		if completed[d.Month] {
			continue
		}
		if e.now().After(deadline) {
			return e.yield(ctx, job, state)
		}

		if !d.IsZero() {
			if plan.Mode == models.PatchModeMetricsOnly {
				err = e.applyMetricOverride(ctx, job, d)
			} else {
				err = e.applyMonth(ctx, job, tenant, plan.Mode, d, before, state.Counts)
			}
			if err != nil {
				config.LogError(e.logger, "patchEngine.go", "Run", "apply month "+d.Month, job.ID, err)
				_ = job.MarkFailed(e.db, ctx, err.Error(), utils.CaptureStack())
				return err
			}
		}

		state.CompletedMonths = append(state.CompletedMonths, d.Month)
		job.Progress = 10 + 80*(i+1)/len(validation.Deltas)
		job.Step = fmt.Sprintf("month %s applied", d.Month)
		if err := e.checkpoint(ctx, job, state); err != nil {
			return err
		}
	}

	return e.finish(ctx, job, tenant, before, state)
}

// loadBeforeSnapshot returns the KPI baseline the deltas are computed
// against: the persisted one on a resumed invocation (the baseline must not
// drift mid-job), otherwise a fresh read-only measurement. Persisting is
// markRunning's job, after validation passes.
func (e *PatchEngine) loadBeforeSnapshot(ctx context.Context, job *models.PatchJob, tenant *models.DemoTenant) ([]models.MonthlyKpiSnapshot, bool, error) {
	if len(job.BeforeSnapshot) > 0 {
		var before []models.MonthlyKpiSnapshot
		if err := json.Unmarshal(job.BeforeSnapshot, &before); err != nil {
			return nil, false, fmt.Errorf("corrupt before snapshot: %w", err)
		}
		return before, true, nil
	}
	before, err := models.QueryMonthlyKpisWithOverrides(e.db, ctx, tenant.ID, job.FromMonth, job.ToMonth)
	if err != nil {
		return nil, false, err
	}
	return before, false, nil
}

func (e *PatchEngine) markRunning(ctx context.Context, job *models.PatchJob, before []models.MonthlyKpiSnapshot) error {
	blob, err := json.Marshal(before)
	if err != nil {
		return err
	}
	now := e.now().UTC()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	job.BeforeSnapshot = blob
	return job.Update(e.db, ctx, map[string]interface{}{
		"status":          job.Status,
		"started_at":      job.StartedAt,
		"before_snapshot": job.BeforeSnapshot,
		"step":            "before snapshot taken",
	})
}

func (e *PatchEngine) applyMetricOverride(ctx context.Context, job *models.PatchJob, d MonthDeltas) error {
	return models.UpsertMetricOverride(e.db, ctx, &models.MetricOverride{
		TenantId:            job.TenantId,
		Month:               d.Month,
		LeadsDelta:          d.Leads,
		ContactsDelta:       d.Contacts,
		CompaniesDelta:      d.Companies,
		DealsDelta:          d.Deals,
		ClosedWonCountDelta: d.ClosedWonCount,
		ClosedWonValueDelta: decimal.NewFromFloat(d.ClosedWonValue),
		PipelineValueDelta:  decimal.NewFromFloat(d.PipelineValue),
		LastPatchJobId:      job.ID,
	})
}

// applyMonth executes one month's entity mutations in a single transaction.
// Records tagged with this job's id short-circuit the month: their presence
// means a prior invocation committed it but crashed before checkpointing.
func (e *PatchEngine) applyMonth(ctx context.Context, job *models.PatchJob, tenant *models.DemoTenant, mode models.PatchMode, d MonthDeltas, before []models.MonthlyKpiSnapshot, counts *models.PatchEntityCounts) error {
	tagged, err := e.taggedRecordCount(ctx, job, d.Month)
	if err != nil {
		return err
	}
	if tagged > 0 {
		e.logger.WithFields(logrus.Fields{"patchId": job.ID, "month": d.Month, "tagged": tagged}).
			Info("month already carries this patch's records, skipping")
		return nil
	}

	var beforeMonth models.MonthlyKpiSnapshot
	for _, b := range before {
		if b.Month == d.Month {
			beforeMonth = b
			break
		}
	}

	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if mode == models.PatchModeReconcile {
			if err := e.applyDeletions(tx, ctx, job, d, counts); err != nil {
				return err
			}
		}
		if err := e.applyAdditions(tx, ctx, job, tenant, d, counts); err != nil {
			return err
		}
		return e.adjustDealValues(tx, ctx, job, mode, d, beforeMonth, counts)
	})
}

func (e *PatchEngine) taggedRecordCount(ctx context.Context, job *models.PatchJob, month string) (int64, error) {
	var total int64
	for _, model := range []interface{}{&models.Company{}, &models.Contact{}, &models.Deal{}, &models.Activity{}} {
		var n int64
		if err := e.db.WithContext(ctx).Model(model).
			Where("tenant_id = ? AND source_job_id = ? AND source_month = ?", job.TenantId, job.ID, month).
			Count(&n).Error; err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (e *PatchEngine) checkpoint(ctx context.Context, job *models.PatchJob, state *PatchState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal patch state: %w", err)
	}
	job.State = blob
	return job.Update(e.db, ctx, map[string]interface{}{
		"state":    job.State,
		"progress": job.Progress,
		"step":     job.Step,
		"status":   job.Status,
	})
}

func (e *PatchEngine) yield(ctx context.Context, job *models.PatchJob, state *PatchState) error {
	if err := e.checkpoint(ctx, job, state); err != nil {
		return err
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	e.logger.WithFields(logrus.Fields{"patchId": job.ID, "progress": job.Progress}).
		Info("time budget reached, requesting patch continuation")
	e.continuer.Trigger(ctx, NewContinuationMessage(job.TenantId, "patch", job.ID, correlationId))
	return nil
}

func (e *PatchEngine) finish(ctx context.Context, job *models.PatchJob, tenant *models.DemoTenant, before []models.MonthlyKpiSnapshot, state *PatchState) error {
	models.InvalidateKpiCache(tenant.ID, job.FromMonth, job.ToMonth)

	after, err := models.QueryMonthlyKpisWithOverrides(e.db, ctx, tenant.ID, job.FromMonth, job.ToMonth)
	if err != nil {
		return err
	}
	afterBlob, err := json.Marshal(after)
	if err != nil {
		return err
	}
	diffBlob, err := json.Marshal(ComputeDiff(before, after))
	if err != nil {
		return err
	}
	countsBlob, err := json.Marshal(state.Counts)
	if err != nil {
		return err
	}

	now := e.now().UTC()
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	job.Step = "completed"
	job.CompletedAt = &now
	if err := e.checkpoint(ctx, job, state); err != nil {
		return err
	}
	return job.Update(e.db, ctx, map[string]interface{}{
		"status":         job.Status,
		"progress":       job.Progress,
		"step":           job.Step,
		"completed_at":   job.CompletedAt,
		"after_snapshot": afterBlob,
		"diff_report":    diffBlob,
		"entity_counts":  countsBlob,
	})
}
