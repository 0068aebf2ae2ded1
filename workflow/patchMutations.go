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
	"gorm.io/gorm"
)

// DeletionCandidate is the minimal record view deletion selection works on.
// Selection itself is pure so the FK-safety rules are testable without a
// database.
type DeletionCandidate struct {
	ID         int
	CreatedAt  time.Time
	Referenced bool
	Preferred  bool
}

// SelectForDeletion returns up to n candidate ids, preferring preferred
// candidates, then newest first, never selecting a referenced one.
func SelectForDeletion(cands []DeletionCandidate, n int) []int {
	if n <= 0 {
		return nil
	}
	picked := make([]int, 0, n)
	for pass := 0; pass < 2 && len(picked) < n; pass++ {
		best := -1
		for {
			best = -1
			for i, c := range cands {
				if c.Referenced {
					continue
				}
				if pass == 0 && !c.Preferred {
					continue
				}
				if alreadyPicked(picked, c.ID) {
					continue
				}
				if best < 0 || c.CreatedAt.After(cands[best].CreatedAt) {
					best = i
				}
			}
			if best < 0 || len(picked) >= n {
				break
			}
			picked = append(picked, cands[best].ID)
		}
	}
	return picked
}

func alreadyPicked(picked []int, id int) bool {
	for _, p := range picked {
		if p == id {
			return true
		}
	}
	return false
}

// SpreadValueDelta distributes delta across values so the sum moves by
// exactly delta (within 2-decimal rounding) and no value drops below 0.01.
// Unabsorbable remainder lands on the largest value.
func SpreadValueDelta(values []float64, delta float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	copy(out, values)
	if n == 0 || delta == 0 {
		return out
	}

	share := utils.Round2(delta / float64(n))
	remaining := delta
	for i := range out {
		step := share
		if i == n-1 {
			step = utils.Round2(remaining)
		}
		v := utils.Round2(out[i] + step)
		if v < 0.01 {
			v = 0.01
		}
		remaining = utils.Round2(remaining - utils.Round2(v-out[i]))
		out[i] = v
	}
	if remaining != 0 {
		maxIdx := 0
		for i := 1; i < n; i++ {
			if out[i] > out[maxIdx] {
				maxIdx = i
			}
		}
		v := utils.Round2(out[maxIdx] + remaining)
		if v >= 0.01 {
			out[maxIdx] = v
		}
	}
	return out
}

type dealRow struct {
	ID        int
	Value     decimal.Decimal
	CreatedAt time.Time
}

// applyDeletions removes records for the month's negative deltas in
// foreign-key-safe order: activities of doomed deals first, then deals (won
// before the rest), then contacts, then companies. Contacts and companies
// still referenced by surviving records are never deleted.
func (e *PatchEngine) applyDeletions(tx *gorm.DB, ctx context.Context, job *models.PatchJob, d MonthDeltas, counts *models.PatchEntityCounts) error {
	start, _ := utils.ParseMonth(d.Month)
	end := start.AddDate(0, 1, 0)

	wonDel := 0
	if d.ClosedWonCount < 0 {
		wonDel = -d.ClosedWonCount
	}
	dealsDel := 0
	if d.Deals < 0 {
		dealsDel = -d.Deals
	}

	if wonDel > 0 {
		var rows []dealRow
		if err := tx.WithContext(ctx).Model(&models.Deal{}).
			Where("tenant_id = ? AND status = ? AND closed_at >= ? AND closed_at < ?",
				job.TenantId, models.DealStatusWon, start, end).
			Order("created_at DESC").Limit(wonDel).Find(&rows).Error; err != nil {
			return err
		}
		if err := e.deleteDeals(tx, ctx, job, dealIds(rows), counts); err != nil {
			return err
		}
	}

	if rest := dealsDel - wonDel; rest > 0 {
		// Lost deals go first; open deals carry pipeline value the plan may
		// still want.
		for _, status := range []models.DealStatus{models.DealStatusLost, models.DealStatusOpen} {
			if rest <= 0 {
				break
			}
			var rows []dealRow
			if err := tx.WithContext(ctx).Model(&models.Deal{}).
				Where("tenant_id = ? AND status = ? AND created_at >= ? AND created_at < ?",
					job.TenantId, status, start, end).
				Order("created_at DESC").Limit(rest).Find(&rows).Error; err != nil {
				return err
			}
			if err := e.deleteDeals(tx, ctx, job, dealIds(rows), counts); err != nil {
				return err
			}
			rest -= len(rows)
		}
	}

	if err := e.deleteContacts(tx, ctx, job, d, start, end, counts); err != nil {
		return err
	}

	if d.Companies < 0 {
		if err := e.deleteCompanies(tx, ctx, job, -d.Companies, start, end, counts); err != nil {
			return err
		}
	}
	return nil
}

func dealIds(rows []dealRow) []int {
	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func (e *PatchEngine) deleteDeals(tx *gorm.DB, ctx context.Context, job *models.PatchJob, ids []int, counts *models.PatchEntityCounts) error {
	if len(ids) == 0 {
		return nil
	}
	res := tx.WithContext(ctx).
		Where("tenant_id = ? AND deal_id IN ?", job.TenantId, ids).
		Delete(&models.Activity{})
	if res.Error != nil {
		return res.Error
	}
	counts.Deleted[models.EntityActivity] += int(res.RowsAffected)

	res = tx.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", job.TenantId, ids).
		Delete(&models.Deal{})
	if res.Error != nil {
		return res.Error
	}
	counts.Deleted[models.EntityDeal] += int(res.RowsAffected)
	return nil
}

// deleteContacts handles both the contacts and the leads delta. A deleted
// lead counts against both; a leads reduction beyond the contact reduction is
// applied by demoting leads to plain contacts.
func (e *PatchEngine) deleteContacts(tx *gorm.DB, ctx context.Context, job *models.PatchJob, d MonthDeltas, start, end time.Time, counts *models.PatchEntityCounts) error {
	contactsDel := 0
	if d.Contacts < 0 {
		contactsDel = -d.Contacts
	}
	leadsDel := 0
	if d.Leads < 0 {
		leadsDel = -d.Leads
	}
	if contactsDel == 0 && leadsDel == 0 {
		return nil
	}

	deletedLeads := 0
	if contactsDel > 0 {
		var contacts []models.Contact
		if err := tx.WithContext(ctx).
			Select("id", "created_at", "lifecycle_stage").
			Where("tenant_id = ? AND created_at >= ? AND created_at < ?", job.TenantId, start, end).
			Order("created_at DESC").
			Limit(contactsDel*3 + 50).
			Find(&contacts).Error; err != nil {
			return err
		}
		candidateIds := make([]int, 0, len(contacts))
		for _, c := range contacts {
			candidateIds = append(candidateIds, c.ID)
		}
		referenced, err := referencedContactIds(tx, ctx, job.TenantId, candidateIds)
		if err != nil {
			return err
		}

		cands := make([]DeletionCandidate, 0, len(contacts))
		for _, c := range contacts {
			cands = append(cands, DeletionCandidate{
				ID:         c.ID,
				CreatedAt:  c.CreatedAt,
				Referenced: referenced[c.ID],
				Preferred:  leadsDel > 0 && c.LifecycleStage == models.LifecycleStageLead,
			})
		}
		picked := SelectForDeletion(cands, contactsDel)
		if len(picked) > 0 {
			res := tx.WithContext(ctx).Where("tenant_id = ? AND id IN ?", job.TenantId, picked).Delete(&models.Contact{})
			if res.Error != nil {
				return res.Error
			}
			counts.Deleted[models.EntityContact] += int(res.RowsAffected)
		}
		for _, c := range contacts {
			if c.LifecycleStage == models.LifecycleStageLead && alreadyPicked(picked, c.ID) {
				deletedLeads++
			}
		}
	}

	if flip := leadsDel - deletedLeads; flip > 0 {
		var ids []int
		if err := tx.WithContext(ctx).Model(&models.Contact{}).
			Where("tenant_id = ? AND lifecycle_stage = ? AND created_at >= ? AND created_at < ?",
				job.TenantId, models.LifecycleStageLead, start, end).
			Order("created_at DESC").Limit(flip).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) > 0 {
			res := tx.WithContext(ctx).Model(&models.Contact{}).
				Where("tenant_id = ? AND id IN ?", job.TenantId, ids).
				Update("lifecycle_stage", models.LifecycleStageContact)
			if res.Error != nil {
				return res.Error
			}
			counts.Modified[models.EntityContact] += int(res.RowsAffected)
		}
	}
	return nil
}

func (e *PatchEngine) deleteCompanies(tx *gorm.DB, ctx context.Context, job *models.PatchJob, n int, start, end time.Time, counts *models.PatchEntityCounts) error {
	var companies []models.Company
	if err := tx.WithContext(ctx).
		Select("id", "created_at").
		Where("tenant_id = ? AND created_at >= ? AND created_at < ?", job.TenantId, start, end).
		Order("created_at DESC").
		Limit(n*3 + 50).
		Find(&companies).Error; err != nil {
		return err
	}
	candidateIds := make([]int, 0, len(companies))
	for _, c := range companies {
		candidateIds = append(candidateIds, c.ID)
	}
	referenced, err := referencedCompanyIds(tx, ctx, job.TenantId, candidateIds)
	if err != nil {
		return err
	}

	cands := make([]DeletionCandidate, 0, len(companies))
	for _, c := range companies {
		cands = append(cands, DeletionCandidate{ID: c.ID, CreatedAt: c.CreatedAt, Referenced: referenced[c.ID]})
	}
	picked := SelectForDeletion(cands, n)
	if len(picked) == 0 {
		return nil
	}
	res := tx.WithContext(ctx).Where("tenant_id = ? AND id IN ?", job.TenantId, picked).Delete(&models.Company{})
	if res.Error != nil {
		return res.Error
	}
	counts.Deleted[models.EntityCompany] += int(res.RowsAffected)
	return nil
}

func referencedContactIds(tx *gorm.DB, ctx context.Context, tenantId string, candidates []int) (map[int]bool, error) {
	set := map[int]bool{}
	if len(candidates) == 0 {
		return set, nil
	}
	for _, model := range []interface{}{&models.Deal{}, &models.Activity{}} {
		var refs []int
		if err := tx.WithContext(ctx).Model(model).
			Where("tenant_id = ? AND contact_id IN ?", tenantId, candidates).
			Pluck("contact_id", &refs).Error; err != nil {
			return nil, err
		}
		for _, id := range refs {
			set[id] = true
		}
	}
	return set, nil
}

func referencedCompanyIds(tx *gorm.DB, ctx context.Context, tenantId string, candidates []int) (map[int]bool, error) {
	set := map[int]bool{}
	if len(candidates) == 0 {
		return set, nil
	}
	for _, model := range []interface{}{&models.Contact{}, &models.Deal{}} {
		var refs []int
		if err := tx.WithContext(ctx).Model(model).
			Where("tenant_id = ? AND company_id IN ?", tenantId, candidates).
			Pluck("company_id", &refs).Error; err != nil {
			return nil, err
		}
		for _, id := range refs {
			set[id] = true
		}
	}
	return set, nil
}

// applyAdditions creates records for the month's positive deltas using the
// same day/value allocation primitives as the generator, every row tagged
// with the patch job id and source month.
func (e *PatchEngine) applyAdditions(tx *gorm.DB, ctx context.Context, job *models.PatchJob, tenant *models.DemoTenant, d MonthDeltas, counts *models.PatchEntityCounts) error {
	addCompanies := maxInt(d.Companies, 0)
	addContacts := maxInt(d.Contacts, 0)
	addLeads := minInt(maxInt(d.Leads, 0), addContacts)
	addDeals := maxInt(d.Deals, 0)
	wonNew := minInt(maxInt(d.ClosedWonCount, 0), addDeals)
	wonFlip := maxInt(d.ClosedWonCount, 0) - wonNew
	leadFlip := maxInt(d.Leads, 0) - addLeads

	if addCompanies == 0 && addContacts == 0 && addDeals == 0 && wonFlip == 0 && leadFlip == 0 {
		return nil
	}

	tpl := industry.ForCode(tenant.IndustryCode)
	loc := localization.ForCountry(tenant.CountryCode)
	users, err := models.ActiveDemoUsers(tx, ctx, tenant.ID)
	if err != nil {
		return err
	}
	userIds := make([]int, 0, len(users))
	for _, u := range users {
		userIds = append(userIds, u.ID)
	}
	sc, err := models.ClassifyStages(tx, ctx, tenant.ID)
	if err != nil {
		return err
	}

	rng := NewSeededRNGFromString(job.Seed).Child("patch-" + d.Month)
	start, _ := utils.ParseMonth(d.Month)
	monthEnd := start.AddDate(0, 1, 0).Add(-time.Minute)

	target := models.MonthlyTarget{
		Month:          d.Month,
		Leads:          addLeads,
		Contacts:       addContacts,
		Companies:      addCompanies,
		Deals:          addDeals,
		ClosedWonCount: wonNew,
		ClosedWonValue: math.Max(d.ClosedWonValue, 0),
		PipelineValue:  math.Max(d.PipelineValue, 0),
	}
	alloc, err := AllocateMonth(rng.Child("alloc"), target)
	if err != nil {
		return err
	}

	companyIds, err := e.addCompanies(tx, ctx, job, tenant, tpl, loc, rng, alloc, userIds, counts)
	if err != nil {
		return err
	}
	contacts, err := e.addContacts(tx, ctx, job, target, loc, rng, alloc, userIds, companyIds, counts)
	if err != nil {
		return err
	}
	if err := e.addDeals(tx, ctx, job, target, tpl, loc, rng, alloc, sc, userIds, contacts, companyIds, monthEnd, counts); err != nil {
		return err
	}
	if err := e.addActivities(tx, ctx, job, d.Month, tpl, rng, contacts, monthEnd, counts); err != nil {
		return err
	}

	if wonFlip > 0 && len(sc.WonStageIds) > 0 {
		if err := e.flipOpenDealsToWon(tx, ctx, job, rng, sc.WonStageIds[0], wonFlip, start, monthEnd, counts); err != nil {
			return err
		}
	}
	if leadFlip > 0 {
		var ids []int
		if err := tx.WithContext(ctx).Model(&models.Contact{}).
			Where("tenant_id = ? AND lifecycle_stage <> ? AND created_at >= ? AND created_at < ?",
				job.TenantId, models.LifecycleStageLead, start, start.AddDate(0, 1, 0)).
			Order("created_at DESC").Limit(leadFlip).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) > 0 {
			res := tx.WithContext(ctx).Model(&models.Contact{}).
				Where("tenant_id = ? AND id IN ?", job.TenantId, ids).
				Update("lifecycle_stage", models.LifecycleStageLead)
			if res.Error != nil {
				return res.Error
			}
			counts.Modified[models.EntityContact] += int(res.RowsAffected)
		}
	}
	return nil
}

func (e *PatchEngine) addCompanies(tx *gorm.DB, ctx context.Context, job *models.PatchJob, tenant *models.DemoTenant, tpl industry.Template, loc localization.Provider, rng *SeededRNG, alloc *MonthAllocation, userIds []int, counts *models.PatchEntityCounts) ([]int, error) {
	crng := rng.Child("companies")
	var rows []*models.Company
	for _, day := range alloc.Days {
		for i := 0; i < day.Counts[models.MetricCompanies]; i++ {
			name := loc.CompanyName(crng, Pick(crng, tpl.CompanyNamePatterns))
			rows = append(rows, &models.Company{
				TenantId:    job.TenantId,
				Name:        name,
				Domain:      loc.CompanyDomain(name),
				Industry:    tenant.IndustryCode,
				City:        loc.City(crng),
				State:       loc.State(crng),
				PostalCode:  loc.PostalCode(crng),
				Address:     loc.StreetAddress(crng),
				Phone:       loc.Phone(crng),
				OwnerId:     pickOwner(crng, userIds),
				IsDemoData:  true,
				SourceJobId: job.ID,
				SourceMonth: alloc.Month,
				CreatedAt:   GenerateTimestamp(crng, day.Date),
			})
		}
	}
	if err := models.StoreCompanies(tx, ctx, rows, e.batchSize); err != nil {
		return nil, err
	}
	counts.Created[models.EntityCompany] += len(rows)

	// Link new contacts against the tenant's recent companies, not only the
	// ones this patch created.
	var ids []int
	if err := tx.WithContext(ctx).Model(&models.Company{}).
		Where("tenant_id = ?", job.TenantId).
		Order("id DESC").Limit(200).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (e *PatchEngine) addContacts(tx *gorm.DB, ctx context.Context, job *models.PatchJob, target models.MonthlyTarget, loc localization.Provider, rng *SeededRNG, alloc *MonthAllocation, userIds, companyIds []int, counts *models.PatchEntityCounts) ([]*models.Contact, error) {
	crng := rng.Child("contacts")
	var rows []*models.Contact
	for _, day := range alloc.Days {
		for i := 0; i < day.Counts[models.MetricContacts]; i++ {
			first := loc.FirstName(crng)
			last := loc.LastName(crng)
			var companyId *int
			if len(companyIds) > 0 && crng.Bool(0.85) {
				id := companyIds[crng.Int(0, len(companyIds)-1)]
				companyId = &id
			}
			rows = append(rows, &models.Contact{
				TenantId:       job.TenantId,
				FirstName:      first,
				LastName:       last,
				Email:          loc.Email(first, last, "example.com"),
				Phone:          loc.Phone(crng),
				Title:          Pick(crng, contactTitles),
				LifecycleStage: models.LifecycleStageContact,
				CompanyId:      companyId,
				OwnerId:        pickOwner(crng, userIds),
				IsDemoData:     true,
				SourceJobId:    job.ID,
				SourceMonth:    alloc.Month,
				CreatedAt:      GenerateTimestamp(crng, day.Date),
			})
		}
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	Shuffle(crng.Child("lead-pick"), idx)
	for i := 0; i < target.Leads && i < len(idx); i++ {
		rows[idx[i]].LifecycleStage = models.LifecycleStageLead
	}

	if err := models.StoreContacts(tx, ctx, rows, e.batchSize); err != nil {
		return nil, err
	}
	counts.Created[models.EntityContact] += len(rows)
	return rows, nil
}

func (e *PatchEngine) addDeals(tx *gorm.DB, ctx context.Context, job *models.PatchJob, target models.MonthlyTarget, tpl industry.Template, loc localization.Provider, rng *SeededRNG, alloc *MonthAllocation, sc *models.StageClassification, userIds []int, contacts []*models.Contact, companyIds []int, monthEnd time.Time, counts *models.PatchEntityCounts) error {
	if target.Deals == 0 {
		return nil
	}
	drng := rng.Child("deals")

	constraints := ValueConstraints{
		MinValue:   tpl.DealValueMin,
		MaxValue:   tpl.DealValueMax,
		AvgValue:   tpl.DealValueAvg,
		WhaleRatio: tpl.WhaleRatio,
	}
	pv := AllocatePipelineValues(rng.Child("values"),
		target.Deals, target.ClosedWonCount, target.ClosedWonValue, target.PipelineValue, constraints)

	wonStageId, lostStageId := 0, 0
	if len(sc.WonStageIds) > 0 {
		wonStageId = sc.WonStageIds[0]
	}
	if len(sc.LostStageIds) > 0 {
		lostStageId = sc.LostStageIds[0]
	}
	var openStageIds []int
	var openStageWeights []float64
	for _, s := range sc.Stages {
		if s.StageType == models.StageTypeOpen {
			openStageIds = append(openStageIds, s.ID)
			openStageWeights = append(openStageWeights, s.Probability)
		}
	}

	order := make([]int, target.Deals)
	for i := range order {
		order[i] = i
	}
	Shuffle(drng.Child("outcomes"), order)
	outcome := make([]models.DealStatus, target.Deals)
	value := make([]float64, target.Deals)
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

	var rows []*models.Deal
	n := 0
	for _, day := range alloc.Days {
		for i := 0; i < day.Counts[models.MetricDeals]; i++ {
			createdAt := GenerateTimestamp(drng, day.Date)
			row := &models.Deal{
				TenantId:    job.TenantId,
				Name:        fmt.Sprintf("%s - %s", Pick(drng, dealNamePrefixes), loc.LastName(drng)),
				Value:       decimal.NewFromFloat(utils.Round2(value[n])),
				Currency:    "USD",
				Status:      outcome[n],
				OwnerId:     pickOwner(drng, userIds),
				IsDemoData:  true,
				SourceJobId: job.ID,
				SourceMonth: alloc.Month,
				CreatedAt:   createdAt,
			}
			if len(contacts) > 0 && drng.Bool(0.9) {
				id := contacts[drng.Int(0, len(contacts)-1)].ID
				row.ContactId = &id
			}
			if len(companyIds) > 0 && drng.Bool(0.8) {
				id := companyIds[drng.Int(0, len(companyIds)-1)]
				row.CompanyId = &id
			}
			switch outcome[n] {
			case models.DealStatusWon:
				row.StageId = wonStageId
				closedAt := drng.BusinessDate(createdAt, monthEnd)
				row.ClosedAt = &closedAt
			case models.DealStatusLost:
				row.StageId = lostStageId
				closedAt := drng.BusinessDate(createdAt, monthEnd)
				row.ClosedAt = &closedAt
			default:
				if len(openStageIds) > 0 {
					row.StageId = PickWeighted(drng, openStageIds, openStageWeights)
				}
				expected := createdAt.AddDate(0, 0, drng.Int(30, 90))
				row.ExpectedCloseDate = &expected
			}
			rows = append(rows, row)
			n++
		}
	}
	if err := models.StoreDeals(tx, ctx, rows, e.batchSize); err != nil {
		return err
	}
	counts.Created[models.EntityDeal] += len(rows)
	return nil
}

func (e *PatchEngine) addActivities(tx *gorm.DB, ctx context.Context, job *models.PatchJob, month string, tpl industry.Template, rng *SeededRNG, contacts []*models.Contact, monthEnd time.Time, counts *models.PatchEntityCounts) error {
	if len(contacts) == 0 {
		return nil
	}
	arng := rng.Child("activities")
	now := e.now().UTC()

	var rows []*models.Activity
	for _, c := range contacts {
		if !arng.Bool(tpl.ContactSampleRatio) {
			continue
		}
		count := arng.Int(1, int(math.Max(tpl.ActivitiesPerContact*2-1, 1)))
		for a := 0; a < count; a++ {
			typ := PickWeighted(arng, tpl.ActivityTypes, tpl.ActivityTypeWeights)
			createdAt := arng.BusinessDate(c.CreatedAt, monthEnd)
			contactId := c.ID
			row := &models.Activity{
				TenantId:    job.TenantId,
				Type:        typ,
				Subject:     Pick(arng, activitySubjects[typ]),
				ContactId:   &contactId,
				OwnerId:     c.OwnerId,
				IsDemoData:  true,
				SourceJobId: job.ID,
				SourceMonth: month,
				CreatedAt:   createdAt,
			}
			if createdAt.Before(now) && arng.Bool(0.8) {
				done := createdAt.Add(time.Duration(arng.Int(1, 72)) * time.Hour)
				row.CompletedAt = &done
			}
			rows = append(rows, row)
		}
	}
	if err := models.StoreActivities(tx, ctx, rows, e.batchSize); err != nil {
		return err
	}
	counts.Created[models.EntityActivity] += len(rows)
	return nil
}

// flipOpenDealsToWon converts existing open deals of the month into wins for
// a closed-won count increase that exceeds the deals increase.
func (e *PatchEngine) flipOpenDealsToWon(tx *gorm.DB, ctx context.Context, job *models.PatchJob, rng *SeededRNG, wonStageId, n int, start, monthEnd time.Time, counts *models.PatchEntityCounts) error {
	var rows []dealRow
	if err := tx.WithContext(ctx).Model(&models.Deal{}).
		Where("tenant_id = ? AND status = ? AND created_at >= ? AND created_at < ?",
			job.TenantId, models.DealStatusOpen, start, start.AddDate(0, 1, 0)).
		Order("created_at DESC").Limit(n).Find(&rows).Error; err != nil {
		return err
	}
	frng := rng.Child("won-flip")
	for _, r := range rows {
		closedAt := frng.BusinessDate(r.CreatedAt, monthEnd)
		res := tx.WithContext(ctx).Model(&models.Deal{}).
			Where("tenant_id = ? AND id = ?", job.TenantId, r.ID).
			Updates(map[string]interface{}{
				"status":              models.DealStatusWon,
				"stage_id":            wonStageId,
				"closed_at":           closedAt,
				"expected_close_date": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		counts.Modified[models.EntityDeal] += int(res.RowsAffected)
	}
	return nil
}

// adjustDealValues closes the residual gap between the month's measured
// monetary sums and the plan, spreading it across existing deal values. Only
// reconcile mode may touch pre-existing records.
func (e *PatchEngine) adjustDealValues(tx *gorm.DB, ctx context.Context, job *models.PatchJob, mode models.PatchMode, d MonthDeltas, before models.MonthlyKpiSnapshot, counts *models.PatchEntityCounts) error {
	if mode != models.PatchModeReconcile {
		return nil
	}
	start, _ := utils.ParseMonth(d.Month)
	end := start.AddDate(0, 1, 0)

	wonTarget := utils.Round2(before.ClosedWonValue.InexactFloat64() + d.ClosedWonValue)
	if err := e.adjustValueGap(tx, ctx, job, wonTarget,
		"status = ? AND closed_at >= ? AND closed_at < ?",
		[]interface{}{models.DealStatusWon, start, end}, counts); err != nil {
		return err
	}

	pipeTarget := utils.Round2(before.PipelineValue.InexactFloat64() + d.PipelineValue)
	// Pipeline sums every non-lost deal; the gap is absorbed by open deals so
	// the closed-won sum just fixed above stays exact.
	return e.adjustValueGapOver(tx, ctx, job, pipeTarget,
		"status <> ? AND created_at >= ? AND created_at < ?",
		[]interface{}{models.DealStatusLost, start, end},
		"status = ? AND created_at >= ? AND created_at < ?",
		[]interface{}{models.DealStatusOpen, start, end}, counts)
}

func (e *PatchEngine) adjustValueGap(tx *gorm.DB, ctx context.Context, job *models.PatchJob, target float64, cond string, args []interface{}, counts *models.PatchEntityCounts) error {
	return e.adjustValueGapOver(tx, ctx, job, target, cond, args, cond, args, counts)
}

// adjustValueGapOver measures the sum over measureCond and spreads the gap to
// target across the deals matching adjustCond, largest first.
func (e *PatchEngine) adjustValueGapOver(tx *gorm.DB, ctx context.Context, job *models.PatchJob, target float64, measureCond string, measureArgs []interface{}, adjustCond string, adjustArgs []interface{}, counts *models.PatchEntityCounts) error {
	var sum decimal.Decimal
	if err := tx.WithContext(ctx).Model(&models.Deal{}).
		Select("COALESCE(SUM(value), 0)").
		Where("tenant_id = ?", job.TenantId).
		Where(measureCond, measureArgs...).
		Scan(&sum).Error; err != nil {
		return err
	}
	gap := utils.Round2(target - sum.InexactFloat64())
	if math.Abs(gap) < 0.01 {
		return nil
	}

	var rows []dealRow
	if err := tx.WithContext(ctx).Model(&models.Deal{}).
		Where("tenant_id = ?", job.TenantId).
		Where(adjustCond, adjustArgs...).
		Order("value DESC").Limit(20).Find(&rows).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		e.logger.WithField("patchId", job.ID).
			Warnf("value gap %.2f has no deals to absorb it", gap)
		return nil
	}

	values := make([]float64, len(rows))
	for i, r := range rows {
		values[i] = r.Value.InexactFloat64()
	}
	adjusted := SpreadValueDelta(values, gap)
	for i, r := range rows {
		if adjusted[i] == values[i] {
			continue
		}
		res := tx.WithContext(ctx).Model(&models.Deal{}).
			Where("tenant_id = ? AND id = ?", job.TenantId, r.ID).
			Update("value", decimal.NewFromFloat(adjusted[i]))
		if res.Error != nil {
			return res.Error
		}
		counts.Modified[models.EntityDeal] += int(res.RowsAffected)
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
