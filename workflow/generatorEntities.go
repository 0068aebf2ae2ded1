package workflow

import (
	"context"
	"fmt"
	"math"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/industry"
	"bitbucket.org/mmdatafocus/demodata_backend/localization"
	"bitbucket.org/mmdatafocus/demodata_backend/models"
	"bitbucket.org/mmdatafocus/demodata_backend/utils"
	"github.com/shopspring/decimal"
)

// Entity specs carry every generated attribute so insertion is a pure queue
// drain: resuming a half-done phase re-reads the queue instead of replaying
// RNG draws.

type CompanySpec struct {
	Name       string    `json:"name"`
	Domain     string    `json:"domain"`
	Industry   string    `json:"industry"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
	Address    string    `json:"address"`
	Phone      string    `json:"phone"`
	OwnerId    int       `json:"owner_id"`
	Month      string    `json:"month"`
	CreatedAt  time.Time `json:"created_at"`
}

type ContactSpec struct {
	FirstName      string                `json:"first_name"`
	LastName       string                `json:"last_name"`
	Email          string                `json:"email"`
	Phone          string                `json:"phone"`
	Title          string                `json:"title"`
	LifecycleStage models.LifecycleStage `json:"lifecycle_stage"`
	CompanyId      *int                  `json:"company_id,omitempty"`
	OwnerId        int                   `json:"owner_id"`
	Month          string                `json:"month"`
	CreatedAt      time.Time             `json:"created_at"`
}

type DealSpec struct {
	Name              string            `json:"name"`
	Value             float64           `json:"value"`
	StageId           int               `json:"stage_id"`
	Status            models.DealStatus `json:"status"`
	ContactId         *int              `json:"contact_id,omitempty"`
	CompanyId         *int              `json:"company_id,omitempty"`
	OwnerId           int               `json:"owner_id"`
	Month             string            `json:"month"`
	CreatedAt         time.Time         `json:"created_at"`
	ClosedAt          *time.Time        `json:"closed_at,omitempty"`
	ExpectedCloseDate *time.Time        `json:"expected_close_date,omitempty"`
}

type ActivitySpec struct {
	Type        models.ActivityType `json:"type"`
	Subject     string              `json:"subject"`
	ContactId   *int                `json:"contact_id,omitempty"`
	DealId      *int                `json:"deal_id,omitempty"`
	OwnerId     int                 `json:"owner_id"`
	Month       string              `json:"month"`
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

var contactTitles = []string{
	"CEO", "CTO", "VP Sales", "VP Marketing", "Head of Operations",
	"Product Manager", "Account Executive", "Director of Finance",
	"Operations Manager", "Founder",
}

var dealNamePrefixes = []string{
	"New Business", "Expansion", "Renewal", "Pilot", "Upsell",
}

var activitySubjects = map[models.ActivityType][]string{
	models.ActivityTypeCall:    {"Intro call", "Follow-up call", "Pricing call", "Check-in call"},
	models.ActivityTypeEmail:   {"Sent proposal", "Follow-up email", "Shared case study", "Contract draft"},
	models.ActivityTypeMeeting: {"Discovery meeting", "Product demo", "Quarterly review", "Kickoff meeting"},
	models.ActivityTypeTask:    {"Prepare proposal", "Update CRM notes", "Send contract", "Schedule demo"},
	models.ActivityTypeNote:    {"Budget confirmed", "Champion identified", "Competitor mentioned", "Timeline discussed"},
}

func monthBounds(month string) (time.Time, time.Time) {
	first, _ := utils.ParseMonth(month)
	return first, first.AddDate(0, 1, 0).Add(-time.Minute)
}

// progressWithin interpolates the job progress between the current phase's
// start percentage and the next phase's.
func progressWithin(phase models.GenerationPhase, done, total int) int {
	lo := models.PhaseProgress(phase)
	hi := models.PhaseProgress(models.NextPhase(phase))
	if total <= 0 {
		return lo
	}
	return lo + (hi-lo)*done/total
}

func (g *ChunkedGenerator) loadGenContext(ctx context.Context, job *models.GenerationJob) (*models.DemoTenant, industry.Template, localization.Provider, error) {
	tenant, err := models.GetDemoTenant(g.db, ctx, job.TenantId)
	if err != nil {
		return nil, industry.Template{}, nil, err
	}
	return tenant, industry.ForCode(tenant.IndustryCode), localization.ForCountry(tenant.CountryCode), nil
}

func pickOwner(rng *SeededRNG, userIds []int) int {
	if len(userIds) == 0 {
		return 0
	}
	return userIds[rng.Int(0, len(userIds)-1)]
}

// --- companies ---

func (g *ChunkedGenerator) phaseCompanies(ctx context.Context, job *models.GenerationJob, state *GenerationState, deadline time.Time) (bool, error) {
	if !state.CompaniesPlanned {
		if err := g.planCompanies(ctx, job, state); err != nil {
			return false, err
		}
		state.CompaniesPlanned = true
		if err := g.checkpoint(ctx, job, state); err != nil {
			return false, err
		}
	}

	for state.CompanyCursor < len(state.PendingCompanies) {
		if g.now().After(deadline) {
			return false, nil
		}
		end := state.CompanyCursor + g.batchSize
		if end > len(state.PendingCompanies) {
			end = len(state.PendingCompanies)
		}

		rows := make([]*models.Company, 0, end-state.CompanyCursor)
		for _, spec := range state.PendingCompanies[state.CompanyCursor:end] {
			rows = append(rows, &models.Company{
				TenantId:    job.TenantId,
				Name:        spec.Name,
				Domain:      spec.Domain,
				Industry:    spec.Industry,
				City:        spec.City,
				State:       spec.State,
				PostalCode:  spec.PostalCode,
				Address:     spec.Address,
				Phone:       spec.Phone,
				OwnerId:     spec.OwnerId,
				IsDemoData:  true,
				SourceJobId: job.ID,
				SourceMonth: spec.Month,
				CreatedAt:   spec.CreatedAt,
			})
		}
		if err := models.StoreCompanies(g.db, ctx, rows, g.batchSize); err != nil {
			return false, err
		}
		for _, r := range rows {
			state.CompanyIds = append(state.CompanyIds, r.ID)
		}
		state.CompanyCursor = end
		job.Progress = progressWithin(models.PhaseCompanies, end, len(state.PendingCompanies))
		job.Step = fmt.Sprintf("companies %d/%d", end, len(state.PendingCompanies))
		if err := g.checkpoint(ctx, job, state); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (g *ChunkedGenerator) planCompanies(ctx context.Context, job *models.GenerationJob, state *GenerationState) error {
	tenant, tpl, loc, err := g.loadGenContext(ctx, job)
	if err != nil {
		return err
	}
	root := NewSeededRNGFromString(job.Seed)

	for _, m := range state.Months {
		alloc, err := AllocateMonth(root.Child("alloc-"+m.Month), m)
		if err != nil {
			return err
		}
		rng := root.Child("companies-" + m.Month)
		for _, day := range alloc.Days {
			for i := 0; i < day.Counts[models.MetricCompanies]; i++ {
				name := loc.CompanyName(rng, Pick(rng, tpl.CompanyNamePatterns))
				state.PendingCompanies = append(state.PendingCompanies, CompanySpec{
					Name:       name,
					Domain:     loc.CompanyDomain(name),
					Industry:   tenant.IndustryCode,
					City:       loc.City(rng),
					State:      loc.State(rng),
					PostalCode: loc.PostalCode(rng),
					Address:    loc.StreetAddress(rng),
					Phone:      loc.Phone(rng),
					OwnerId:    pickOwner(rng, state.UserIds),
					Month:      m.Month,
					CreatedAt:  GenerateTimestamp(rng, day.Date),
				})
			}
		}
	}
	job.AppendLog(g.db, ctx, "info", fmt.Sprintf("planned %d companies", len(state.PendingCompanies)))
	return nil
}

// --- contacts ---

func (g *ChunkedGenerator) phaseContacts(ctx context.Context, job *models.GenerationJob, state *GenerationState, deadline time.Time) (bool, error) {
	if !state.ContactsPlanned {
		if err := g.planContacts(ctx, job, state); err != nil {
			return false, err
		}
		state.ContactsPlanned = true
		if err := g.checkpoint(ctx, job, state); err != nil {
			return false, err
		}
	}

	for state.ContactCursor < len(state.PendingContacts) {
		if g.now().After(deadline) {
			return false, nil
		}
		end := state.ContactCursor + g.batchSize
		if end > len(state.PendingContacts) {
			end = len(state.PendingContacts)
		}

		rows := make([]*models.Contact, 0, end-state.ContactCursor)
		for _, spec := range state.PendingContacts[state.ContactCursor:end] {
			rows = append(rows, &models.Contact{
				TenantId:       job.TenantId,
				FirstName:      spec.FirstName,
				LastName:       spec.LastName,
				Email:          spec.Email,
				Phone:          spec.Phone,
				Title:          spec.Title,
				LifecycleStage: spec.LifecycleStage,
				CompanyId:      spec.CompanyId,
				OwnerId:        spec.OwnerId,
				IsDemoData:     true,
				SourceJobId:    job.ID,
				SourceMonth:    spec.Month,
				CreatedAt:      spec.CreatedAt,
			})
		}
		if err := models.StoreContacts(g.db, ctx, rows, g.batchSize); err != nil {
			return false, err
		}
		for _, r := range rows {
			state.ContactIds = append(state.ContactIds, r.ID)
		}
		state.ContactCursor = end
		job.Progress = progressWithin(models.PhaseContacts, end, len(state.PendingContacts))
		job.Step = fmt.Sprintf("contacts %d/%d", end, len(state.PendingContacts))
		if err := g.checkpoint(ctx, job, state); err != nil {
			return false, err
		}
	}
	return true, nil
}

// planContacts materializes every contact of the plan.
func (g *ChunkedGenerator) planContacts(ctx context.Context, job *models.GenerationJob, state *GenerationState) error {
	_, _, loc, err := g.loadGenContext(ctx, job)
	if err != nil {
		return err
	}
	specs, err := buildContactSpecs(job.Seed, state.Months, loc, state.CompanyIds, state.UserIds)
	if err != nil {
		return err
	}
	state.PendingContacts = specs
	job.AppendLog(g.db, ctx, "info", fmt.Sprintf("planned %d contacts", len(state.PendingContacts)))
	return nil
}

// buildContactSpecs derives the full contact plan from the seed alone, so
// re-planning after a crash yields the same queue. Lead status is spread
// over the month's contacts by shuffle, so the monthly lead count is exact
// while per-day lifecycle mix stays organic.
func buildContactSpecs(seed string, months []models.MonthlyTarget, loc localization.Provider, companyIds, userIds []int) ([]ContactSpec, error) {
	root := NewSeededRNGFromString(seed)
	var specs []ContactSpec

	for _, m := range months {
		alloc, err := AllocateMonth(root.Child("alloc-"+m.Month), m)
		if err != nil {
			return nil, err
		}
		rng := root.Child("contacts-" + m.Month)

		monthStart := len(specs)
		for _, day := range alloc.Days {
			for i := 0; i < day.Counts[models.MetricContacts]; i++ {
				first := loc.FirstName(rng)
				last := loc.LastName(rng)
				var companyId *int
				if len(companyIds) > 0 && rng.Bool(0.85) {
					id := companyIds[rng.Int(0, len(companyIds)-1)]
					companyId = &id
				}
				stage := models.LifecycleStageContact
				if rng.Bool(0.25) {
					stage = models.LifecycleStageCustomer
				}
				specs = append(specs, ContactSpec{
					FirstName:      first,
					LastName:       last,
					Email:          loc.Email(first, last, "example.com"),
					Phone:          loc.Phone(rng),
					Title:          Pick(rng, contactTitles),
					LifecycleStage: stage,
					CompanyId:      companyId,
					OwnerId:        pickOwner(rng, userIds),
					Month:          m.Month,
					CreatedAt:      GenerateTimestamp(rng, day.Date),
				})
			}
		}

		// Exactly m.Leads of this month's contacts become leads.
		monthIdx := make([]int, 0, len(specs)-monthStart)
		for i := monthStart; i < len(specs); i++ {
			monthIdx = append(monthIdx, i)
		}
		Shuffle(rng.Child("lead-pick"), monthIdx)
		for i := 0; i < m.Leads && i < len(monthIdx); i++ {
			specs[monthIdx[i]].LifecycleStage = models.LifecycleStageLead
		}
	}
	return specs, nil
}

// --- deals ---

func (g *ChunkedGenerator) phaseDeals(ctx context.Context, job *models.GenerationJob, state *GenerationState, deadline time.Time) (bool, error) {
	if !state.DealsPlanned {
		if err := g.planDeals(ctx, job, state); err != nil {
			return false, err
		}
		state.DealsPlanned = true
		if err := g.checkpoint(ctx, job, state); err != nil {
			return false, err
		}
	}

	for state.DealCursor < len(state.PendingDeals) {
		if g.now().After(deadline) {
			return false, nil
		}
		end := state.DealCursor + g.batchSize
		if end > len(state.PendingDeals) {
			end = len(state.PendingDeals)
		}

		rows := make([]*models.Deal, 0, end-state.DealCursor)
		for _, spec := range state.PendingDeals[state.DealCursor:end] {
			rows = append(rows, &models.Deal{
				TenantId:          job.TenantId,
				Name:              spec.Name,
				Value:             decimal.NewFromFloat(spec.Value),
				Currency:          "USD",
				StageId:           spec.StageId,
				Status:            spec.Status,
				ContactId:         spec.ContactId,
				CompanyId:         spec.CompanyId,
				OwnerId:           spec.OwnerId,
				ExpectedCloseDate: spec.ExpectedCloseDate,
				ClosedAt:          spec.ClosedAt,
				IsDemoData:        true,
				SourceJobId:       job.ID,
				SourceMonth:       spec.Month,
				CreatedAt:         spec.CreatedAt,
			})
		}
		if err := models.StoreDeals(g.db, ctx, rows, g.batchSize); err != nil {
			return false, err
		}
		for _, r := range rows {
			state.DealIds = append(state.DealIds, r.ID)
		}
		state.DealCursor = end
		job.Progress = progressWithin(models.PhaseDeals, end, len(state.PendingDeals))
		job.Step = fmt.Sprintf("deals %d/%d", end, len(state.PendingDeals))
		if err := g.checkpoint(ctx, job, state); err != nil {
			return false, err
		}
	}
	return true, nil
}

// planDeals materializes every deal with its outcome and value. Won values
// sum to the month's closed-won target and won+open values to the pipeline
// target; closed deals close inside their creation month so both the
// created_at and closed_at buckets land on the planned month.
func (g *ChunkedGenerator) planDeals(ctx context.Context, job *models.GenerationJob, state *GenerationState) error {
	_, tpl, loc, err := g.loadGenContext(ctx, job)
	if err != nil {
		return err
	}
	root := NewSeededRNGFromString(job.Seed)

	wonStageId, lostStageId := 0, 0
	openStageIds := make([]int, 0, len(tpl.Stages))
	openStageWeights := make([]float64, 0, len(tpl.Stages))
	for i, def := range tpl.Stages {
		if i >= len(state.StageIds) {
			break
		}
		switch def.Type {
		case models.StageTypeWon:
			wonStageId = state.StageIds[i]
		case models.StageTypeLost:
			lostStageId = state.StageIds[i]
		default:
			openStageIds = append(openStageIds, state.StageIds[i])
			openStageWeights = append(openStageWeights, def.Probability)
		}
	}

	for _, m := range state.Months {
		alloc, err := AllocateMonth(root.Child("alloc-"+m.Month), m)
		if err != nil {
			return err
		}
		rng := root.Child("deals-" + m.Month)
		_, monthEnd := monthBounds(m.Month)

		constraints := ValueConstraints{
			MinValue:   tpl.DealValueMin,
			MaxValue:   tpl.DealValueMax,
			AvgValue:   tpl.DealValueAvg,
			WhaleRatio: tpl.WhaleRatio,
		}
		if m.AvgDealSize != nil && *m.AvgDealSize > 0 {
			constraints.AvgValue = *m.AvgDealSize
		}

		wonCount := m.ClosedWonCount
		if wonCount > m.Deals {
			wonCount = m.Deals
		}
		pv := AllocatePipelineValues(root.Child("deal-values-"+m.Month),
			m.Deals, wonCount, m.ClosedWonValue, m.PipelineValue, constraints)

		// Spread outcomes over creation order with a shuffled index so wins
		// are not clustered at the start of the month.
		order := make([]int, m.Deals)
		for i := range order {
			order[i] = i
		}
		Shuffle(rng.Child("outcomes"), order)
		outcome := make([]models.DealStatus, m.Deals)
		value := make([]float64, m.Deals)
		for i, idx := range order {
			switch {
			case i < len(pv.Won):
				outcome[idx] = models.DealStatusWon
				value[idx] = pv.Won[i]
			case i < len(pv.Won)+len(pv.Open):
				outcome[idx] = models.DealStatusOpen
				value[idx] = pv.Open[i-len(pv.Won)]
			default:
				outcome[idx] = models.DealStatusLost
				value[idx] = pv.Lost[i-len(pv.Won)-len(pv.Open)]
			}
		}

		n := 0
		for _, day := range alloc.Days {
			for i := 0; i < day.Counts[models.MetricDeals]; i++ {
				createdAt := GenerateTimestamp(rng, day.Date)
				spec := DealSpec{
					Name:      fmt.Sprintf("%s - %s", Pick(rng, dealNamePrefixes), loc.LastName(rng)),
					Value:     utils.Round2(value[n]),
					Status:    outcome[n],
					OwnerId:   pickOwner(rng, state.UserIds),
					Month:     m.Month,
					CreatedAt: createdAt,
				}
				if len(state.ContactIds) > 0 && rng.Bool(0.9) {
					id := state.ContactIds[rng.Int(0, len(state.ContactIds)-1)]
					spec.ContactId = &id
				}
				if len(state.CompanyIds) > 0 && rng.Bool(0.8) {
					id := state.CompanyIds[rng.Int(0, len(state.CompanyIds)-1)]
					spec.CompanyId = &id
				}
				switch outcome[n] {
				case models.DealStatusWon:
					spec.StageId = wonStageId
					closedAt := rng.BusinessDate(createdAt, monthEnd)
					spec.ClosedAt = &closedAt
				case models.DealStatusLost:
					spec.StageId = lostStageId
					closedAt := rng.BusinessDate(createdAt, monthEnd)
					spec.ClosedAt = &closedAt
				default:
					if len(openStageIds) > 0 {
						spec.StageId = PickWeighted(rng, openStageIds, openStageWeights)
					}
					expected := createdAt.AddDate(0, 0, rng.Int(30, 90))
					spec.ExpectedCloseDate = &expected
				}
				state.PendingDeals = append(state.PendingDeals, spec)
				n++
			}
		}
	}
	job.AppendLog(g.db, ctx, "info", fmt.Sprintf("planned %d deals", len(state.PendingDeals)))
	return nil
}

// --- activities ---

func (g *ChunkedGenerator) phaseActivities(ctx context.Context, job *models.GenerationJob, state *GenerationState, deadline time.Time) (bool, error) {
	if !state.ActivitiesPlanned {
		if err := g.planActivities(ctx, job, state); err != nil {
			return false, err
		}
		state.ActivitiesPlanned = true
		if err := g.checkpoint(ctx, job, state); err != nil {
			return false, err
		}
	}

	for state.ActivityCursor < len(state.PendingActivities) {
		if g.now().After(deadline) {
			return false, nil
		}
		end := state.ActivityCursor + g.batchSize
		if end > len(state.PendingActivities) {
			end = len(state.PendingActivities)
		}

		rows := make([]*models.Activity, 0, end-state.ActivityCursor)
		for _, spec := range state.PendingActivities[state.ActivityCursor:end] {
			rows = append(rows, &models.Activity{
				TenantId:    job.TenantId,
				Type:        spec.Type,
				Subject:     spec.Subject,
				ContactId:   spec.ContactId,
				DealId:      spec.DealId,
				OwnerId:     spec.OwnerId,
				CompletedAt: spec.CompletedAt,
				IsDemoData:  true,
				SourceJobId: job.ID,
				SourceMonth: spec.Month,
				CreatedAt:   spec.CreatedAt,
			})
		}
		if err := models.StoreActivities(g.db, ctx, rows, g.batchSize); err != nil {
			return false, err
		}
		for _, r := range rows {
			state.ActivityIds = append(state.ActivityIds, r.ID)
		}
		state.ActivityCursor = end
		job.Progress = progressWithin(models.PhaseActivities, end, len(state.PendingActivities))
		job.Step = fmt.Sprintf("activities %d/%d", end, len(state.PendingActivities))
		if err := g.checkpoint(ctx, job, state); err != nil {
			return false, err
		}
	}
	return true, nil
}

// planActivities samples a slice of the generated contacts and gives each a
// burst of activities inside the contact's creation month. A biased share is
// linked to a deal of the same month, which is what makes demo timelines
// look like real selling.
func (g *ChunkedGenerator) planActivities(ctx context.Context, job *models.GenerationJob, state *GenerationState) error {
	_, tpl, _, err := g.loadGenContext(ctx, job)
	if err != nil {
		return err
	}
	root := NewSeededRNGFromString(job.Seed)
	now := g.now().UTC()

	dealIdxByMonth := map[string][]int{}
	for i, d := range state.PendingDeals {
		dealIdxByMonth[d.Month] = append(dealIdxByMonth[d.Month], i)
	}

	for _, m := range state.Months {
		rng := root.Child("activities-" + m.Month)
		_, monthEnd := monthBounds(m.Month)

		var monthContacts []int
		for i, c := range state.PendingContacts {
			if c.Month == m.Month {
				monthContacts = append(monthContacts, i)
			}
		}
		sampleSize := int(math.Round(float64(len(monthContacts)) * tpl.ContactSampleRatio))
		sampled := PickMultiple(rng.Child("sample"), monthContacts, sampleSize)

		for _, ci := range sampled {
			contact := state.PendingContacts[ci]
			count := rng.Int(1, int(math.Max(tpl.ActivitiesPerContact*2-1, 1)))
			for a := 0; a < count; a++ {
				typ := PickWeighted(rng, tpl.ActivityTypes, tpl.ActivityTypeWeights)
				createdAt := rng.BusinessDate(contact.CreatedAt, monthEnd)
				contactId := state.ContactIds[ci]
				spec := ActivitySpec{
					Type:      typ,
					Subject:   Pick(rng, activitySubjects[typ]),
					ContactId: &contactId,
					OwnerId:   contact.OwnerId,
					Month:     m.Month,
					CreatedAt: createdAt,
				}
				if monthDeals := dealIdxByMonth[m.Month]; len(monthDeals) > 0 && rng.Bool(tpl.DealActivityBias) {
					di := monthDeals[rng.Int(0, len(monthDeals)-1)]
					if di < len(state.DealIds) {
						dealId := state.DealIds[di]
						spec.DealId = &dealId
					}
				}
				if createdAt.Before(now) && rng.Bool(0.8) {
					done := createdAt.Add(time.Duration(rng.Int(1, 72)) * time.Hour)
					spec.CompletedAt = &done
				}
				state.PendingActivities = append(state.PendingActivities, spec)
			}
		}
	}
	job.AppendLog(g.db, ctx, "info", fmt.Sprintf("planned %d activities", len(state.PendingActivities)))
	return nil
}
