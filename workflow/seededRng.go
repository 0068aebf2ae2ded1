package workflow

import (
	"fmt"
	"math"
	"time"
)

// SeededRNG is a deterministic Mulberry32 generator. Identical seed plus
// identical call sequence yields a bit-identical output sequence, which is
// what makes regeneration and patching reproducible.
//
// One instance serves one logical stream; parallel streams derive from
// Child(), never from sharing an instance.
type SeededRNG struct {
	seed  uint32
	state uint32
}

func NewSeededRNG(seed uint32) *SeededRNG {
	if seed == 0 {
		seed = 1
	}
	return &SeededRNG{seed: seed, state: seed}
}

// NewSeededRNGFromString hashes a string seed (FNV-1a) to a non-zero 32-bit state.
func NewSeededRNGFromString(seed string) *SeededRNG {
	var h uint32 = 2166136261
	for i := 0; i < len(seed); i++ {
		h ^= uint32(seed[i])
		h *= 16777619
	}
	if h == 0 {
		h = 1
	}
	return NewSeededRNG(h)
}

// Child derives an independent-looking but fully deterministic sub-generator,
// reseeded from the parent's seed and the suffix. Child streams do not
// depend on how many draws the parent has made.
func (r *SeededRNG) Child(suffix string) *SeededRNG {
	return NewSeededRNGFromString(fmt.Sprintf("%d-%s", r.seed, suffix))
}

// Next returns the next value in [0, 1).
func (r *SeededRNG) Next() float64 {
	r.state += 0x6D2B79F5
	t := r.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}

// Int returns an integer in [min, max] inclusive.
func (r *SeededRNG) Int(min, max int) int {
	if max <= min {
		return min
	}
	return min + int(r.Next()*float64(max-min+1))
}

func (r *SeededRNG) Float(min, max float64) float64 {
	return min + r.Next()*(max-min)
}

func (r *SeededRNG) Bool(p float64) bool {
	return r.Next() < p
}

// Pareto samples a bounded-below Pareto distribution.
func (r *SeededRNG) Pareto(min, alpha float64) float64 {
	u := r.Next()
	// u == 1 cannot occur (Next is half-open), so no division by zero.
	return min / math.Pow(1-u, 1/alpha)
}

// LogNormal samples exp(N(mu, sigma)) using one Box-Muller draw.
func (r *SeededRNG) LogNormal(mu, sigma float64) float64 {
	u1 := r.Next()
	u2 := r.Next()
	if u1 <= 0 {
		u1 = 1e-12
	}
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return math.Exp(mu + sigma*z)
}

// Date returns a uniformly picked instant in [start, end].
func (r *SeededRNG) Date(start, end time.Time) time.Time {
	if !end.After(start) {
		return start
	}
	span := end.Sub(start)
	return start.Add(time.Duration(r.Next() * float64(span)))
}

// BusinessDate picks an instant in [start, end] clamped to a weekday during
// business hours. After a bounded number of retries it forces the first
// Monday at 9am on or after start, so it always terminates.
func (r *SeededRNG) BusinessDate(start, end time.Time) time.Time {
	for attempt := 0; attempt < 10; attempt++ {
		t := r.Date(start, end)
		wd := t.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		hour := r.BusinessHour()
		minute := r.Int(0, 59)
		candidate := time.Date(t.Year(), t.Month(), t.Day(), hour, minute, r.Int(0, 59), 0, t.Location())
		if !candidate.Before(start) && !candidate.After(end) {
			return candidate
		}
	}
	monday := start
	for monday.Weekday() != time.Monday {
		monday = monday.AddDate(0, 0, 1)
	}
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 9, 0, 0, 0, monday.Location())
}

// BusinessHour is biased toward core hours: 10-16 with 80% probability,
// otherwise one of the edge hours 9, 17, 18.
func (r *SeededRNG) BusinessHour() int {
	if r.Bool(0.8) {
		return r.Int(10, 16)
	}
	edges := []int{9, 17, 18}
	return edges[r.Int(0, len(edges)-1)]
}

// DealValue blends a whale branch (upper-range uniform, probability
// whaleRatio) with a log-normal branch centered on avg. Results are always
// clamped into [min, max], including when avg*1.5 exceeds max.
func (r *SeededRNG) DealValue(min, max, avg, whaleRatio float64) float64 {
	if r.Bool(whaleRatio) {
		lo := avg * 1.5
		if lo > max {
			lo = max
		}
		if lo < min {
			lo = min
		}
		return r.Float(lo, max)
	}
	v := r.LogNormal(math.Log(math.Max(avg, 1)), 0.5)
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return v
}

// Pick returns one element of an ordered sequence.
func Pick[T any](r *SeededRNG, items []T) T {
	return items[r.Int(0, len(items)-1)]
}

// PickWeighted returns one element with probability proportional to its weight.
func PickWeighted[T any](r *SeededRNG, items []T, weights []float64) T {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return Pick(r, items)
	}
	target := r.Next() * total
	var acc float64
	for i, w := range weights {
		acc += w
		if target < acc {
			return items[i]
		}
	}
	return items[len(items)-1]
}

// PickMultiple returns n distinct elements (or all of them when n >= len).
func PickMultiple[T any](r *SeededRNG, items []T, n int) []T {
	if n >= len(items) {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}
	shuffled := make([]T, len(items))
	copy(shuffled, items)
	Shuffle(r, shuffled)
	return shuffled[:n]
}

// Shuffle permutes items in place (Fisher-Yates).
func Shuffle[T any](r *SeededRNG, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := r.Int(0, i)
		items[i], items[j] = items[j], items[i]
	}
}
