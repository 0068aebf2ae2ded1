package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/config"
	"bitbucket.org/mmdatafocus/demodata_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MonthlyKpiSnapshot is a point-in-time measurement of a tenant's actual
// metrics for one month. Used as the "before"/"after" snapshots around a
// patch and as the verification input after generation.
type MonthlyKpiSnapshot struct {
	Month          string          `json:"month"`
	Leads          int64           `json:"leads"`
	Contacts       int64           `json:"contacts"`
	Companies      int64           `json:"companies"`
	Deals          int64           `json:"deals"`
	ClosedWonCount int64           `json:"closed_won_count"`
	ClosedWonValue decimal.Decimal `json:"closed_won_value"`
	PipelineValue  decimal.Decimal `json:"pipeline_value"`
	MeasuredAt     time.Time       `json:"measured_at"`
}

func (s MonthlyKpiSnapshot) CountMetric(metric string) int64 {
	switch metric {
	case MetricLeads:
		return s.Leads
	case MetricContacts:
		return s.Contacts
	case MetricCompanies:
		return s.Companies
	case MetricDeals:
		return s.Deals
	case MetricClosedWonCount:
		return s.ClosedWonCount
	}
	return 0
}

func (s MonthlyKpiSnapshot) ValueMetric(metric string) decimal.Decimal {
	switch metric {
	case MetricClosedWonValue:
		return s.ClosedWonValue
	case MetricPipelineValue:
		return s.PipelineValue
	}
	return decimal.Zero
}

type monthCountRow struct {
	Month string `gorm:"column:month"`
	N     int64  `gorm:"column:n"`
}

type monthValueRow struct {
	Month string          `gorm:"column:month"`
	Total decimal.Decimal `gorm:"column:total"`
}

const contactCountByMonthSql = `
SELECT DATE_FORMAT(created_at, '%Y-%m') AS month, COUNT(*) AS n
FROM contacts
WHERE tenant_id = @tenantId
  AND created_at >= @from AND created_at < @to
GROUP BY DATE_FORMAT(created_at, '%Y-%m')`

const leadCountByMonthSql = `
SELECT DATE_FORMAT(created_at, '%Y-%m') AS month, COUNT(*) AS n
FROM contacts
WHERE tenant_id = @tenantId
  AND lifecycle_stage = 'Lead'
  AND created_at >= @from AND created_at < @to
GROUP BY DATE_FORMAT(created_at, '%Y-%m')`

const companyCountByMonthSql = `
SELECT DATE_FORMAT(created_at, '%Y-%m') AS month, COUNT(*) AS n
FROM companies
WHERE tenant_id = @tenantId
  AND created_at >= @from AND created_at < @to
GROUP BY DATE_FORMAT(created_at, '%Y-%m')`

const dealCountByMonthSql = `
SELECT DATE_FORMAT(created_at, '%Y-%m') AS month, COUNT(*) AS n
FROM deals
WHERE tenant_id = @tenantId
  AND created_at >= @from AND created_at < @to
GROUP BY DATE_FORMAT(created_at, '%Y-%m')`

// Closed-won buckets by close date, not create date: a deal created in March
// and won in April counts toward April's closed-won metrics.
const closedWonByMonthSql = `
SELECT DATE_FORMAT(closed_at, '%Y-%m') AS month, COUNT(*) AS n, COALESCE(SUM(value), 0) AS total
FROM deals
WHERE tenant_id = @tenantId
  AND status = 'Won'
  AND closed_at >= @from AND closed_at < @to
GROUP BY DATE_FORMAT(closed_at, '%Y-%m')`

// Pipeline-added value: everything created in the month that is not lost.
const pipelineValueByMonthSql = `
SELECT DATE_FORMAT(created_at, '%Y-%m') AS month, COALESCE(SUM(value), 0) AS total
FROM deals
WHERE tenant_id = @tenantId
  AND status <> 'Lost'
  AND created_at >= @from AND created_at < @to
GROUP BY DATE_FORMAT(created_at, '%Y-%m')`

type closedWonRow struct {
	Month string          `gorm:"column:month"`
	N     int64           `gorm:"column:n"`
	Total decimal.Decimal `gorm:"column:total"`
}

// QueryMonthlyKpis measures actual per-month metrics for a tenant over the
// inclusive month range [fromMonth, toMonth].
func QueryMonthlyKpis(tx *gorm.DB, ctx context.Context, tenantId, fromMonth, toMonth string) ([]MonthlyKpiSnapshot, error) {
	from, err := utils.ParseMonth(fromMonth)
	if err != nil {
		return nil, err
	}
	last, err := utils.ParseMonth(toMonth)
	if err != nil {
		return nil, err
	}
	to := last.AddDate(0, 1, 0)

	params := map[string]interface{}{"tenantId": tenantId, "from": from, "to": to}

	countQueries := map[string]string{
		MetricContacts:  contactCountByMonthSql,
		MetricLeads:     leadCountByMonthSql,
		MetricCompanies: companyCountByMonthSql,
		MetricDeals:     dealCountByMonthSql,
	}

	counts := map[string]map[string]int64{}
	for metric, sql := range countQueries {
		var rows []monthCountRow
		if err := tx.WithContext(ctx).Raw(sql, params).Scan(&rows).Error; err != nil {
			return nil, err
		}
		byMonth := map[string]int64{}
		for _, r := range rows {
			byMonth[r.Month] = r.N
		}
		counts[metric] = byMonth
	}

	var wonRows []closedWonRow
	if err := tx.WithContext(ctx).Raw(closedWonByMonthSql, params).Scan(&wonRows).Error; err != nil {
		return nil, err
	}
	wonCount := map[string]int64{}
	wonValue := map[string]decimal.Decimal{}
	for _, r := range wonRows {
		wonCount[r.Month] = r.N
		wonValue[r.Month] = r.Total
	}

	var pipeRows []monthValueRow
	if err := tx.WithContext(ctx).Raw(pipelineValueByMonthSql, params).Scan(&pipeRows).Error; err != nil {
		return nil, err
	}
	pipeValue := map[string]decimal.Decimal{}
	for _, r := range pipeRows {
		pipeValue[r.Month] = r.Total
	}

	now := time.Now().UTC()
	var snapshots []MonthlyKpiSnapshot
	for _, month := range utils.MonthRange(from, last) {
		snap := MonthlyKpiSnapshot{
			Month:          month,
			Leads:          counts[MetricLeads][month],
			Contacts:       counts[MetricContacts][month],
			Companies:      counts[MetricCompanies][month],
			Deals:          counts[MetricDeals][month],
			ClosedWonCount: wonCount[month],
			ClosedWonValue: orZero(wonValue[month]),
			PipelineValue:  orZero(pipeValue[month]),
			MeasuredAt:     now,
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// QueryMonthlyKpisWithOverrides layers MetricOverride deltas on top of the
// measured actuals. This is what the reporting surface (and post-patch
// verification of metrics-only jobs) consumes.
func QueryMonthlyKpisWithOverrides(tx *gorm.DB, ctx context.Context, tenantId, fromMonth, toMonth string) ([]MonthlyKpiSnapshot, error) {
	cacheKey := "DemoKpi:" + tenantId + ":" + fromMonth + ":" + toMonth
	var cached []MonthlyKpiSnapshot
	if hit, err := config.GetRedisObject(cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	snapshots, err := QueryMonthlyKpis(tx, ctx, tenantId, fromMonth, toMonth)
	if err != nil {
		return nil, err
	}
	overrides, err := MetricOverridesByMonth(tx, ctx, tenantId)
	if err != nil {
		return nil, err
	}
	for i := range snapshots {
		o, ok := overrides[snapshots[i].Month]
		if !ok {
			continue
		}
		snapshots[i].Leads += int64(o.LeadsDelta)
		snapshots[i].Contacts += int64(o.ContactsDelta)
		snapshots[i].Companies += int64(o.CompaniesDelta)
		snapshots[i].Deals += int64(o.DealsDelta)
		snapshots[i].ClosedWonCount += int64(o.ClosedWonCountDelta)
		snapshots[i].ClosedWonValue = snapshots[i].ClosedWonValue.Add(o.ClosedWonValueDelta)
		snapshots[i].PipelineValue = snapshots[i].PipelineValue.Add(o.PipelineValueDelta)
	}

	// Short TTL: the cache only smooths dashboard polling, jobs always
	// invalidate after mutating.
	_ = config.SetRedisObject(cacheKey, snapshots, 30*time.Second)
	return snapshots, nil
}

// InvalidateKpiCache drops any cached snapshots for a tenant month range.
func InvalidateKpiCache(tenantId, fromMonth, toMonth string) {
	_ = config.RemoveRedisKey("DemoKpi:" + tenantId + ":" + fromMonth + ":" + toMonth)
}

func orZero(d decimal.Decimal) decimal.Decimal {
	// decimal zero value is already 0; this just normalizes exponent noise
	// from SUM() scans so snapshots compare cleanly in tests.
	return d.Round(2)
}
