package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/config"
	"bitbucket.org/mmdatafocus/demodata_backend/industry"
	"bitbucket.org/mmdatafocus/demodata_backend/localization"
	"bitbucket.org/mmdatafocus/demodata_backend/models"
	"bitbucket.org/mmdatafocus/demodata_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GenerationState is the JSON blob a generation job checkpoints between
// invocations. Entity phases materialize their full pending queues at phase
// entry (specs carry every generated attribute), so a resumed invocation only
// consumes queues and never replays RNG draws. Id slices are append-only.
type GenerationState struct {
	Months []models.MonthlyTarget `json:"months"`

	UserIds  []int `json:"user_ids"`
	StageIds []int `json:"stage_ids"` // template stage order
	TagIds   []int `json:"tag_ids"`

	CompanyIds  []int `json:"company_ids"`
	ContactIds  []int `json:"contact_ids"`
	DealIds     []int `json:"deal_ids"`
	ActivityIds []int `json:"activity_ids"`

	PendingCompanies  []CompanySpec  `json:"pending_companies,omitempty"`
	PendingContacts   []ContactSpec  `json:"pending_contacts,omitempty"`
	PendingDeals      []DealSpec     `json:"pending_deals,omitempty"`
	PendingActivities []ActivitySpec `json:"pending_activities,omitempty"`

	CompaniesPlanned  bool `json:"companies_planned"`
	ContactsPlanned   bool `json:"contacts_planned"`
	DealsPlanned      bool `json:"deals_planned"`
	ActivitiesPlanned bool `json:"activities_planned"`

	// Cursors index into the pending queues; everything before the cursor is
	// already inserted. Queues are kept intact so spec index i always maps to
	// id slice position i.
	CompanyCursor  int `json:"company_cursor"`
	ContactCursor  int `json:"contact_cursor"`
	DealCursor     int `json:"deal_cursor"`
	ActivityCursor int `json:"activity_cursor"`
}

// ChunkedGenerator drives a generation job through its phases within a time
// budget, checkpointing and requesting a continuation when the budget runs
// out. Every invocation is stateless beyond the job record it loads.
type ChunkedGenerator struct {
	db         *gorm.DB
	logger     *logrus.Logger
	continuer  ContinuationTrigger
	timeBudget time.Duration
	batchSize  int
	now        func() time.Time
}

func NewChunkedGenerator(db *gorm.DB) *ChunkedGenerator {
	return &ChunkedGenerator{
		db:         db,
		logger:     config.GetLogger(),
		continuer:  NewContinuerFromEnv(),
		timeBudget: config.GeneratorTimeBudget(),
		batchSize:  config.GeneratorBatchSize(),
		now:        time.Now,
	}
}

// Run executes as much of the job as fits in the time budget. It returns nil
// both when the job completed and when it checkpointed and requested a
// continuation; the job record carries the authoritative status. Invoking a
// job already in a terminal state returns utils.ErrJobAlreadyCompleted,
// which callers treat as a no-op.
func (g *ChunkedGenerator) Run(ctx context.Context, jobId string) (err error) {
	job, err := models.GetGenerationJob(g.db, ctx, jobId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return err
	}
	if job.Status.IsTerminal() {
		g.logger.WithFields(logrus.Fields{"jobId": job.ID, "status": job.Status}).
			Info("generation job already terminal, nothing to do")
		return utils.ErrJobAlreadyCompleted
	}

	ctx = utils.SetTenantIdInContext(ctx, job.TenantId)
	ctx = utils.SetJobIdInContext(ctx, job.ID)

	if err := AcquireTenantJobLock(g.db, job.TenantId); err != nil {
		return err
	}
	defer ReleaseTenantJobLock(g.db, job.TenantId)

	state := &GenerationState{}
	if len(job.State) > 0 {
		if err := json.Unmarshal(job.State, state); err != nil {
			return fmt.Errorf("corrupt generation state for job %s: %w", job.ID, err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			stack := utils.CaptureStack()
			config.LogError(g.logger, "chunkedGenerator.go", "Run", "panic in generation job", job.ID, fmt.Errorf("%v", r))
			_ = job.MarkFailed(g.db, ctx, fmt.Sprintf("panic: %v", r), stack)
			err = fmt.Errorf("generation job %s panicked: %v", job.ID, r)
		}
	}()

	if job.Status == models.JobStatusPending {
		now := g.now().UTC()
		job.Status = models.JobStatusRunning
		job.StartedAt = &now
		if err := job.Update(g.db, ctx, map[string]interface{}{
			"status": job.Status, "started_at": job.StartedAt,
		}); err != nil {
			return err
		}
		job.AppendLog(g.db, ctx, "info", "generation started")
	}

	deadline := g.now().Add(g.timeBudget)

	for job.Phase != models.PhaseCompleted {
		if g.now().After(deadline) {
			return g.yield(ctx, job, state)
		}

		done, err := g.runPhase(ctx, job, state, deadline)
		if err != nil {
			config.LogError(g.logger, "chunkedGenerator.go", "Run", string(job.Phase), job.ID, err)
			_ = job.MarkFailed(g.db, ctx, err.Error(), utils.CaptureStack())
			return err
		}
		if !done {
			return g.yield(ctx, job, state)
		}

		job.Phase = models.NextPhase(job.Phase)
		job.Progress = models.PhaseProgress(job.Phase)
		job.Step = fmt.Sprintf("phase %s", job.Phase)
		if err := g.checkpoint(ctx, job, state); err != nil {
			return err
		}
	}

	return g.finish(ctx, job, state)
}

func (g *ChunkedGenerator) runPhase(ctx context.Context, job *models.GenerationJob, state *GenerationState, deadline time.Time) (bool, error) {
	switch job.Phase {
	case models.PhaseInit:
		return true, g.phaseInit(ctx, job, state)
	case models.PhaseTenant:
		return true, g.phaseTenant(ctx, job, state)
	case models.PhaseUsers:
		return true, g.phaseUsers(ctx, job, state)
	case models.PhasePipeline:
		return true, g.phasePipeline(ctx, job, state)
	case models.PhaseTags:
		return true, g.phaseTags(ctx, job, state)
	case models.PhaseCompanies:
		return g.phaseCompanies(ctx, job, state, deadline)
	case models.PhaseContacts:
		return g.phaseContacts(ctx, job, state, deadline)
	case models.PhaseDeals:
		return g.phaseDeals(ctx, job, state, deadline)
	case models.PhaseActivities:
		return g.phaseActivities(ctx, job, state, deadline)
	case models.PhaseVerify:
		return true, g.phaseVerify(ctx, job, state)
	}
	return false, fmt.Errorf("unknown generation phase %q", job.Phase)
}

// phaseInit resolves the target spec into the monthly plan the rest of the
// job runs from.
func (g *ChunkedGenerator) phaseInit(ctx context.Context, job *models.GenerationJob, state *GenerationState) error {
	spec, err := job.GetTargetSpec()
	if err != nil {
		return fmt.Errorf("unreadable target spec: %w", err)
	}

	switch spec.PlanType {
	case "growth-curve":
		if spec.Growth == nil {
			return errors.New("growth-curve plan without growth config")
		}
		endMonth := job.CreatedAt.UTC()
		months, err := PlanMonthlyTargets(*spec.Growth, endMonth)
		if err != nil {
			return err
		}
		state.Months = months
	case "monthly":
		if len(spec.Months) == 0 {
			return errors.New("monthly plan without months")
		}
		for i := 1; i < len(spec.Months); i++ {
			if spec.Months[i].Month <= spec.Months[i-1].Month {
				return fmt.Errorf("monthly plan out of order at %s", spec.Months[i].Month)
			}
		}
		for _, m := range spec.Months {
			if !utils.IsValidMonth(m.Month) {
				return fmt.Errorf("invalid month %q", m.Month)
			}
			if err := m.Validate(); err != nil {
				return err
			}
		}
		state.Months = spec.Months
	default:
		return fmt.Errorf("unknown plan type %q", spec.PlanType)
	}

	job.AppendLog(g.db, ctx, "info",
		fmt.Sprintf("plan resolved: %d months (%s..%s)",
			len(state.Months), state.Months[0].Month, state.Months[len(state.Months)-1].Month))
	return nil
}

// phaseTenant flags the tenant synthetic and records the first month of its
// history. An existing non-synthetic tenant is a hard error.
func (g *ChunkedGenerator) phaseTenant(ctx context.Context, job *models.GenerationJob, state *GenerationState) error {
	tenant, err := models.GetDemoTenant(g.db, ctx, job.TenantId)
	if err != nil {
		return fmt.Errorf("tenant %s not found: %w", job.TenantId, err)
	}
	if !tenant.IsSynthetic {
		return fmt.Errorf("tenant %s is not synthetic, refusing to generate", tenant.ID)
	}

	startMonth := ""
	if len(state.Months) > 0 {
		startMonth = state.Months[0].Month
	}
	return g.db.WithContext(ctx).Model(tenant).
		Update("data_start_month", startMonth).Error
}

func (g *ChunkedGenerator) phaseUsers(ctx context.Context, job *models.GenerationJob, state *GenerationState) error {
	if len(state.UserIds) > 0 {
		return nil
	}
	tenant, err := models.GetDemoTenant(g.db, ctx, job.TenantId)
	if err != nil {
		return err
	}
	tpl := industry.ForCode(tenant.IndustryCode)
	loc := localization.ForCountry(tenant.CountryCode)
	rng := NewSeededRNGFromString(job.Seed).Child("users")

	users := make([]*models.DemoUser, 0, tpl.TeamSize)
	for i := 0; i < tpl.TeamSize; i++ {
		first := loc.FirstName(rng)
		last := loc.LastName(rng)
		role := "rep"
		if i == 0 {
			role = "manager"
		}
		users = append(users, &models.DemoUser{
			TenantId:    job.TenantId,
			Name:        first + " " + last,
			Email:       loc.Email(first, last, "demo.example.com"),
			Role:        role,
			IsActive:    true,
			SourceJobId: job.ID,
		})
	}
	if err := g.db.WithContext(ctx).Create(&users).Error; err != nil {
		return err
	}
	for _, u := range users {
		state.UserIds = append(state.UserIds, u.ID)
	}
	return nil
}

func (g *ChunkedGenerator) phasePipeline(ctx context.Context, job *models.GenerationJob, state *GenerationState) error {
	if len(state.StageIds) > 0 {
		return nil
	}
	tenant, err := models.GetDemoTenant(g.db, ctx, job.TenantId)
	if err != nil {
		return err
	}
	tpl := industry.ForCode(tenant.IndustryCode)

	stages := make([]*models.PipelineStage, 0, len(tpl.Stages))
	for i, def := range tpl.Stages {
		stages = append(stages, &models.PipelineStage{
			TenantId:    job.TenantId,
			Name:        def.Name,
			StageType:   def.Type,
			Position:    i + 1,
			Probability: def.Probability,
			SourceJobId: job.ID,
		})
	}
	if err := g.db.WithContext(ctx).Create(&stages).Error; err != nil {
		return err
	}
	for _, s := range stages {
		state.StageIds = append(state.StageIds, s.ID)
	}
	return nil
}

func (g *ChunkedGenerator) phaseTags(ctx context.Context, job *models.GenerationJob, state *GenerationState) error {
	if len(state.TagIds) > 0 {
		return nil
	}
	tenant, err := models.GetDemoTenant(g.db, ctx, job.TenantId)
	if err != nil {
		return err
	}
	tpl := industry.ForCode(tenant.IndustryCode)
	rng := NewSeededRNGFromString(job.Seed).Child("tags")
	colors := []string{"#2563eb", "#16a34a", "#d97706", "#dc2626", "#7c3aed", "#0891b2"}

	// Template tag names are deduped; tags are filter labels and a repeat
	// would just split the same filter in two.
	names := utils.UniqueSlice(tpl.TagNames)
	tags := make([]*models.Tag, 0, len(names))
	for _, name := range names {
		tags = append(tags, &models.Tag{
			TenantId:    job.TenantId,
			Name:        name,
			Color:       Pick(rng, colors),
			SourceJobId: job.ID,
		})
	}
	if err := g.db.WithContext(ctx).Create(&tags).Error; err != nil {
		return err
	}
	for _, t := range tags {
		state.TagIds = append(state.TagIds, t.ID)
	}
	return nil
}

// phaseVerify measures actual KPIs and compares them against the plan. A
// failed verification fails the job; already-inserted records stay in place
// for inspection.
func (g *ChunkedGenerator) phaseVerify(ctx context.Context, job *models.GenerationJob, state *GenerationState) error {
	if len(state.Months) == 0 {
		return errors.New("verify phase reached without a monthly plan")
	}
	from := state.Months[0].Month
	to := state.Months[len(state.Months)-1].Month

	actuals, err := models.QueryMonthlyKpis(g.db, ctx, job.TenantId, from, to)
	if err != nil {
		return err
	}

	spec, err := job.GetTargetSpec()
	if err != nil {
		return err
	}
	tol := spec.Tolerance.OrDefaults()

	report := VerifyKpis(state.Months, actuals, tol)
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return err
	}
	job.Metrics = reportJSON
	if err := job.Update(g.db, ctx, map[string]interface{}{"metrics": job.Metrics}); err != nil {
		return err
	}
	models.InvalidateKpiCache(job.TenantId, from, to)

	if !report.Passed {
		return fmt.Errorf("kpi verification failed for %d of %d months", failedMonths(report), len(report.Months))
	}
	job.AppendLog(g.db, ctx, "info", "kpi verification passed")
	return nil
}

func failedMonths(r *VerificationReport) int {
	n := 0
	for _, m := range r.Months {
		if !m.Passed {
			n++
		}
	}
	return n
}

func (g *ChunkedGenerator) checkpoint(ctx context.Context, job *models.GenerationJob, state *GenerationState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal generation state: %w", err)
	}
	return job.Checkpoint(g.db, ctx, blob)
}

// yield checkpoints and requests a continuation. The checkpoint commits
// before the trigger fires, so a lost continuation only costs latency, never
// correctness.
func (g *ChunkedGenerator) yield(ctx context.Context, job *models.GenerationJob, state *GenerationState) error {
	if err := g.checkpoint(ctx, job, state); err != nil {
		return err
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	g.logger.WithFields(logrus.Fields{
		"jobId": job.ID, "phase": job.Phase, "progress": job.Progress,
	}).Info("time budget reached, requesting continuation")
	g.continuer.Trigger(ctx, NewContinuationMessage(job.TenantId, "generation", job.ID, correlationId))
	return nil
}

func (g *ChunkedGenerator) finish(ctx context.Context, job *models.GenerationJob, state *GenerationState) error {
	now := g.now().UTC()
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	job.Step = "completed"
	job.CompletedAt = &now
	if err := g.checkpoint(ctx, job, state); err != nil {
		return err
	}
	if err := job.Update(g.db, ctx, map[string]interface{}{
		"status": job.Status, "completed_at": job.CompletedAt,
	}); err != nil {
		return err
	}
	job.AppendLog(g.db, ctx, "info", fmt.Sprintf(
		"generation completed: %d companies, %d contacts, %d deals, %d activities",
		len(state.CompanyIds), len(state.ContactIds), len(state.DealIds), len(state.ActivityIds)))
	return nil
}
