package workflow

import (
	"math"

	"bitbucket.org/mmdatafocus/demodata_backend/utils"
)

// ValueConstraints bounds individual generated monetary values.
type ValueConstraints struct {
	MinValue   float64 `json:"min_value"`
	MaxValue   float64 `json:"max_value"`
	AvgValue   float64 `json:"avg_value"`
	WhaleRatio float64 `json:"whale_ratio"`
}

// AllocateValues produces count positive values summing to targetTotal
// within 2-decimal rounding. Values are drawn independently (whale branch
// uniform in the upper range, normal branch log-normal around the per-item
// target) and then adjusted to hit the total exactly.
func AllocateValues(rng *SeededRNG, count int, targetTotal float64, c ValueConstraints) []float64 {
	if count <= 0 {
		return nil
	}
	perItem := targetTotal / float64(count)

	values := make([]float64, count)
	for i := range values {
		if rng.Bool(c.WhaleRatio) {
			lo := math.Max(c.AvgValue*1.5, perItem*1.5)
			// Whale math can push the lower bound past MaxValue; clamp to
			// range rather than produce an out-of-range draw.
			if lo > c.MaxValue {
				lo = c.MaxValue
			}
			values[i] = rng.Float(lo, c.MaxValue)
		} else {
			v := rng.LogNormal(math.Log(math.Max(perItem, 1)), 0.5)
			upper := c.MaxValue * 0.8
			if v < c.MinValue {
				v = c.MinValue
			}
			if v > upper {
				v = upper
			}
			values[i] = v
		}
	}

	adjustToTarget(rng, values, targetTotal, c)
	return values
}

// adjustToTarget mutates values so their sum equals target to within 0.01.
func adjustToTarget(rng *SeededRNG, values []float64, target float64, c ValueConstraints) {
	n := len(values)
	for i := range values {
		values[i] = utils.Round2(values[i])
	}

	sum := sumValues(values)
	diff := utils.Round2(target - sum)
	if diff == 0 {
		return
	}

	// Small aggregate error: absorb it entirely into the last element. One
	// percent of a large target can still dwarf a minimum-value element, so
	// the result goes through the same range repair as the rescale path.
	if math.Abs(diff) <= math.Abs(target)*0.01 {
		values[n-1] = utils.Round2(values[n-1] + diff)
		repairLast(values, c)
		return
	}

	// Large error: proportionally rescale everything but the last element,
	// clamped to constraints, then hand the remainder to the last element.
	if sum != 0 {
		factor := target / sum
		for i := 0; i < n-1; i++ {
			v := utils.Round2(values[i] * factor)
			if v < c.MinValue {
				v = c.MinValue
			}
			if v > c.MaxValue {
				v = c.MaxValue
			}
			values[i] = v
		}
	}
	values[n-1] = utils.Round2(target - sumValues(values[:n-1]))

	// Clamping can leave the first n-1 elements summing past the target,
	// which would drive the remainder element negative. Pin it inside the
	// range and move the difference onto elements with slack.
	repairLast(values, c)

	// Bounded random redistribution to erase residual rounding error (the
	// last element may have been pushed out of range by the remainder).
	for attempt := 0; attempt < 50; attempt++ {
		rem := utils.Round2(target - sumValues(values))
		if rem == 0 {
			return
		}
		i := rng.Int(0, n-1)
		v := utils.Round2(values[i] + rem)
		if v >= c.MinValue && v <= c.MaxValue {
			values[i] = v
			return
		}
	}

	// Stubborn remainder: dump it onto the current maximum element. A
	// sub-cent result is skipped: positivity beats sum exactness when the
	// target itself is infeasible for the constraints.
	rem := utils.Round2(target - sumValues(values))
	if rem != 0 {
		maxIdx := 0
		for i := 1; i < n; i++ {
			if values[i] > values[maxIdx] {
				maxIdx = i
			}
		}
		if v := utils.Round2(values[maxIdx] + rem); v >= 0.01 {
			values[maxIdx] = v
		}
	}
}

// repairLast pins the last element inside [MinValue, MaxValue] and shifts the
// difference across earlier elements that have room, preserving the sum.
func repairLast(values []float64, c ValueConstraints) {
	n := len(values)
	last := values[n-1]
	switch {
	case last < c.MinValue:
		need := utils.Round2(c.MinValue - last)
		values[n-1] = c.MinValue
		for i := 0; i < n-1 && need > 0; i++ {
			slack := utils.Round2(values[i] - c.MinValue)
			if slack <= 0 {
				continue
			}
			take := math.Min(slack, need)
			values[i] = utils.Round2(values[i] - take)
			need = utils.Round2(need - take)
		}
	case last > c.MaxValue:
		over := utils.Round2(last - c.MaxValue)
		values[n-1] = c.MaxValue
		for i := 0; i < n-1 && over > 0; i++ {
			room := utils.Round2(c.MaxValue - values[i])
			if room <= 0 {
				continue
			}
			add := math.Min(room, over)
			values[i] = utils.Round2(values[i] + add)
			over = utils.Round2(over - add)
		}
	}
}

// PipelineValues is the three-way split a deals month needs: won values sum
// to the closed-won target, open values sum to the rest of the pipeline
// target, lost values carry no sum constraint.
type PipelineValues struct {
	Won  []float64
	Open []float64
	Lost []float64
}

// AllocatePipelineValues splits (dealCount - wonCount) residual deals 60/40
// into open and lost pools and allocates values for all three sequences.
func AllocatePipelineValues(rng *SeededRNG, dealCount, wonCount int, wonTotal, pipelineTotal float64, c ValueConstraints) PipelineValues {
	if wonCount > dealCount {
		wonCount = dealCount
	}
	rest := dealCount - wonCount
	openCount := int(math.Round(float64(rest) * 0.6))
	lostCount := rest - openCount

	pv := PipelineValues{}
	if wonCount > 0 {
		pv.Won = AllocateValues(rng.Child("won"), wonCount, wonTotal, c)
	}
	if openCount > 0 {
		openTarget := utils.Round2(pipelineTotal - wonTotal)
		floor := c.MinValue * float64(openCount)
		if openTarget < floor {
			openTarget = utils.Round2(floor)
		}
		pv.Open = AllocateValues(rng.Child("open"), openCount, openTarget, c)
	}
	if lostCount > 0 {
		lostRng := rng.Child("lost")
		pv.Lost = make([]float64, lostCount)
		for i := range pv.Lost {
			pv.Lost[i] = utils.Round2(lostRng.DealValue(c.MinValue, c.MaxValue, c.AvgValue, c.WhaleRatio))
		}
	}
	return pv
}

func sumValues(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}
