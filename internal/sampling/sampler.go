// Package sampling provides the seeded random primitives shared by the dataset generators.
package sampling

import (
	"math/rand"
)

// Sampler wraps a seeded random source. It is not safe for concurrent use; parallel
// workers each own a Sampler.
type Sampler struct {
	rand *rand.Rand
}

// New returns a Sampler seeded deterministically.
func New(seed int64) *Sampler {
	return &Sampler{rand: rand.New(rand.NewSource(seed))}
}

// Intn returns a uniform int in [0, n).
func (s *Sampler) Intn(n int) int {
	return s.rand.Intn(n)
}

// IntRange returns a uniform int in [lo, hi], both ends inclusive.
func (s *Sampler) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rand.Intn(hi-lo+1)
}

// Float64 returns a uniform float in [0, 1).
func (s *Sampler) Float64() float64 {
	return s.rand.Float64()
}

// Uniform returns a uniform float in [lo, hi).
func (s *Sampler) Uniform(lo, hi float64) float64 {
	return lo + s.rand.Float64()*(hi-lo)
}

// Normal draws from a Gaussian with the given mean and standard deviation.
func (s *Sampler) Normal(mean, std float64) float64 {
	return mean + s.rand.NormFloat64()*std
}

// Categorical returns an index drawn with probability proportional to its weight.
// Weights need not be normalised. When the weights sum to zero or less the draw is uniform.
func (s *Sampler) Categorical(weights []float64) int {
	if len(weights) == 0 {
		return -1
	}
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return s.rand.Intn(len(weights))
	}

	target := s.rand.Float64() * total
	var acc float64
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if target < acc {
			return i
		}
	}
	// float rounding can leave target == total
	return last
}

// SampleIndices returns k distinct indices from [0, n) using Floyd's algorithm.
// k is clamped to n.
func (s *Sampler) SampleIndices(n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	chosen := make(map[int]struct{}, k)
	out := make([]int, 0, k)
	for j := n - k; j < n; j++ {
		t := s.rand.Intn(j + 1)
		if _, ok := chosen[t]; ok {
			t = j
		}
		chosen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Digits returns n random decimal digits.
func (s *Sampler) Digits(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = s.rand.Intn(10)
	}
	return out
}
