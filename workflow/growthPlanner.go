package workflow

import (
	"fmt"
	"math"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/models"
	"bitbucket.org/mmdatafocus/demodata_backend/utils"
)

// GrowthPlanner converts a single aggregate target set into a monthly target
// series following a growth curve. Legacy mode: newer jobs submit explicit
// monthly plans instead.

// curveWeights returns one positive weight per month. Later months weigh
// more under "linear" and "hockey-stick"; "front-loaded" is the reverse.
func curveWeights(curve string, months int) ([]float64, error) {
	w := make([]float64, months)
	switch curve {
	case "linear":
		for i := range w {
			w[i] = float64(i + 1)
		}
	case "front-loaded":
		for i := range w {
			w[i] = float64(months - i)
		}
	case "hockey-stick":
		for i := range w {
			w[i] = math.Pow(1.6, float64(i))
		}
	default:
		return nil, fmt.Errorf("unknown growth curve %q", curve)
	}
	return w, nil
}

// distributeInt splits an integer total by weight, folding rounding drift
// into the last month so the series sums back exactly.
func distributeInt(total int, weights []float64) []int {
	n := len(weights)
	out := make([]int, n)
	if total <= 0 || n == 0 {
		return out
	}
	var sumW float64
	for _, w := range weights {
		sumW += w
	}
	allocated := 0
	for i := 0; i < n-1; i++ {
		out[i] = int(math.Round(float64(total) * weights[i] / sumW))
		allocated += out[i]
	}
	out[n-1] = total - allocated
	if out[n-1] < 0 {
		out[n-1] = 0
	}
	return out
}

func distributeFloat(total float64, weights []float64) []float64 {
	n := len(weights)
	out := make([]float64, n)
	if total <= 0 || n == 0 {
		return out
	}
	var sumW float64
	for _, w := range weights {
		sumW += w
	}
	var allocated float64
	for i := 0; i < n-1; i++ {
		out[i] = utils.Round2(total * weights[i] / sumW)
		allocated += out[i]
	}
	out[n-1] = utils.Round2(total - allocated)
	if out[n-1] < 0 {
		out[n-1] = 0
	}
	return out
}

// PlanMonthlyTargets expands a growth config into per-month targets for the
// cfg.Months months ending at endMonth (inclusive). The result preserves the
// aggregate sums (modulo the per-metric rounding fold) and the invariants:
// leads <= contacts, wins <= deals, value implies count.
func PlanMonthlyTargets(cfg models.GrowthConfig, endMonth time.Time) ([]models.MonthlyTarget, error) {
	if cfg.Months < 1 || cfg.Months > 24 {
		return nil, fmt.Errorf("growth config months must be 1-24, got %d", cfg.Months)
	}
	weights, err := curveWeights(cfg.Curve, cfg.Months)
	if err != nil {
		return nil, err
	}

	end := time.Date(endMonth.Year(), endMonth.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, -(cfg.Months - 1), 0)

	t := cfg.Targets
	leads := distributeInt(t.Leads, weights)
	contacts := distributeInt(t.Contacts, weights)
	companies := distributeInt(t.Companies, weights)
	deals := distributeInt(t.Deals, weights)
	wonCounts := distributeInt(t.ClosedWonCount, weights)
	wonValues := distributeFloat(t.ClosedWonValue, weights)
	pipeValues := distributeFloat(t.PipelineValue, weights)

	targets := make([]models.MonthlyTarget, cfg.Months)
	for i := 0; i < cfg.Months; i++ {
		targets[i] = models.MonthlyTarget{
			Month:          utils.FormatMonth(start.AddDate(0, i, 0)),
			Leads:          leads[i],
			Contacts:       contacts[i],
			Companies:      companies[i],
			Deals:          deals[i],
			ClosedWonCount: wonCounts[i],
			ClosedWonValue: wonValues[i],
			PipelineValue:  pipeValues[i],
			WinRate:        cfg.WinRate,
		}
	}

	capLeadsToContacts(targets)
	capWinsToDeals(targets)

	for i := range targets {
		// A month can round to closed-won value without a win; give the value
		// to the nearest month that has one instead of shipping an
		// unsatisfiable target.
		if targets[i].ClosedWonValue > 0 && targets[i].ClosedWonCount == 0 {
			moved := false
			for j := i + 1; j < len(targets); j++ {
				if targets[j].ClosedWonCount > 0 {
					targets[j].ClosedWonValue = utils.Round2(targets[j].ClosedWonValue + targets[i].ClosedWonValue)
					moved = true
					break
				}
			}
			if !moved {
				for j := i - 1; j >= 0; j-- {
					if targets[j].ClosedWonCount > 0 {
						targets[j].ClosedWonValue = utils.Round2(targets[j].ClosedWonValue + targets[i].ClosedWonValue)
						break
					}
				}
			}
			targets[i].ClosedWonValue = 0
		}
	}

	return targets, nil
}

// capLeadsToContacts trims any month where rounding pushed leads past
// contacts, re-adding the trimmed counts to months with slack so the series
// total is preserved.
func capLeadsToContacts(targets []models.MonthlyTarget) {
	trimmed := 0
	for i := range targets {
		if targets[i].Leads > targets[i].Contacts {
			trimmed += targets[i].Leads - targets[i].Contacts
			targets[i].Leads = targets[i].Contacts
		}
	}
	for i := len(targets) - 1; i >= 0 && trimmed > 0; i-- {
		slack := targets[i].Contacts - targets[i].Leads
		if slack <= 0 {
			continue
		}
		add := slack
		if add > trimmed {
			add = trimmed
		}
		targets[i].Leads += add
		trimmed -= add
	}
}

func capWinsToDeals(targets []models.MonthlyTarget) {
	trimmed := 0
	for i := range targets {
		if targets[i].ClosedWonCount > targets[i].Deals {
			trimmed += targets[i].ClosedWonCount - targets[i].Deals
			targets[i].ClosedWonCount = targets[i].Deals
		}
	}
	for i := len(targets) - 1; i >= 0 && trimmed > 0; i-- {
		slack := targets[i].Deals - targets[i].ClosedWonCount
		if slack <= 0 {
			continue
		}
		add := slack
		if add > trimmed {
			add = trimmed
		}
		targets[i].ClosedWonCount += add
		trimmed -= add
	}
}
