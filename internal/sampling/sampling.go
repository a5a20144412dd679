// Package sampling selects audit-evidence samples from a population. Every
// method runs off an explicit seed so a regulator can replay the exact draw;
// an unseeded, time-based PRNG would be indefensible in an audit.
package sampling

import (
	"math/rand"
	"sort"

	"attest/internal/domain"
)

// Stratum is a named partition of the population with a known size. Strata
// are contiguous: the first covers indices [0, Size), the next picks up where
// it left off, and so on.
type Stratum struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Request describes one sampling draw.
type Request struct {
	PopulationSize int                   `json:"population_size"`
	SampleSize     int                   `json:"sample_size"`
	Method         domain.SamplingMethod `json:"method"`
	Seed           int64                 `json:"seed"`
	// Strata is required for the stratified method and ignored otherwise.
	Strata []Stratum `json:"strata,omitempty"`
}

// Result carries the selected indices in ascending order.
type Result struct {
	SelectedIndices []int `json:"selected_indices"`
}

func (r Request) validate() error {
	if r.PopulationSize <= 0 {
		return &domain.SamplingError{Field: "population_size", Reason: "must be positive"}
	}
	if r.SampleSize <= 0 {
		return &domain.SamplingError{Field: "sample_size", Reason: "must be positive"}
	}
	if r.SampleSize > r.PopulationSize {
		return &domain.SamplingError{Field: "sample_size", Reason: "exceeds population size"}
	}
	if r.Method == domain.SampleStratified {
		if len(r.Strata) == 0 {
			return &domain.SamplingError{Field: "strata", Reason: "required for stratified sampling"}
		}
		total := 0
		for _, s := range r.Strata {
			if s.Size <= 0 {
				return &domain.SamplingError{Field: "strata", Reason: "stratum " + s.Name + " has non-positive size"}
			}
			total += s.Size
		}
		if total != r.PopulationSize {
			return &domain.SamplingError{Field: "strata", Reason: "stratum sizes do not sum to population size"}
		}
	}
	return nil
}

// Sample draws SampleSize distinct indices in [0, PopulationSize) using the
// requested method. Identical requests reproduce identical results.
func Sample(req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	rng := rand.New(rand.NewSource(req.Seed))

	var picked []int
	switch req.Method {
	case domain.SampleSimpleRandom:
		picked = simpleRandom(rng, req.PopulationSize, req.SampleSize, 0)
	case domain.SampleSystematic:
		picked = systematic(rng, req.PopulationSize, req.SampleSize)
	case domain.SampleStratified:
		picked = stratified(rng, req.Strata, req.SampleSize)
	default:
		return Result{}, &domain.SamplingError{Field: "method", Reason: "unknown method " + string(req.Method)}
	}

	sort.Ints(picked)
	return Result{SelectedIndices: picked}, nil
}

// simpleRandom draws n distinct indices from [offset, offset+population)
// without replacement via a partial Fisher-Yates shuffle.
func simpleRandom(rng *rand.Rand, population, n, offset int) []int {
	pool := make([]int, population)
	for i := range pool {
		pool[i] = offset + i
	}
	for i := 0; i < n; i++ {
		j := i + rng.Intn(population-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// systematic selects every k-th index from a random start, k = floor(N/n).
// The start sits inside the first interval, so the last index stays in range.
func systematic(rng *rand.Rand, population, n int) []int {
	k := population / n
	start := 0
	if k > 1 {
		start = rng.Intn(k)
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, start+i*k)
	}
	return out
}

// stratified allocates the sample proportionally across strata using
// largest-remainder rounding so the allocation sums to exactly n, then draws
// simple-random within each stratum.
func stratified(rng *rand.Rand, strata []Stratum, n int) []int {
	population := 0
	for _, s := range strata {
		population += s.Size
	}

	type alloc struct {
		idx       int
		count     int
		remainder float64
	}
	allocs := make([]alloc, len(strata))
	assigned := 0
	for i, s := range strata {
		exact := float64(n) * float64(s.Size) / float64(population)
		count := int(exact)
		allocs[i] = alloc{idx: i, count: count, remainder: exact - float64(count)}
		assigned += count
	}
	// Hand leftover units to the largest remainders; ties break on stratum
	// order so the allocation itself is deterministic.
	sort.SliceStable(allocs, func(a, b int) bool { return allocs[a].remainder > allocs[b].remainder })
	for i := 0; assigned < n; i++ {
		a := &allocs[i%len(allocs)]
		if a.count < strata[a.idx].Size {
			a.count++
			assigned++
		}
	}
	sort.SliceStable(allocs, func(a, b int) bool { return allocs[a].idx < allocs[b].idx })

	out := make([]int, 0, n)
	offset := 0
	for i, s := range strata {
		count := allocs[i].count
		if count > s.Size {
			count = s.Size
		}
		out = append(out, simpleRandom(rng, s.Size, count, offset)...)
		offset += s.Size
	}
	return out
}
