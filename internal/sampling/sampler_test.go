package sampling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntRange(t *testing.T) {
	s := New(1)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		v := s.IntRange(2, 4)
		require.GreaterOrEqual(t, v, 2)
		require.LessOrEqual(t, v, 4)
		seen[v] = true
	}
	assert.Len(t, seen, 3, "both bounds should be reachable")
	assert.Equal(t, 7, s.IntRange(7, 7))
}

func TestCategorical(t *testing.T) {
	tests := []struct {
		name    string
		weights []float64
		allowed map[int]bool
	}{
		{name: "single positive weight", weights: []float64{0, 0, 1, 0}, allowed: map[int]bool{2: true}},
		{name: "zero weights fall back to uniform", weights: []float64{0, 0, 0}, allowed: map[int]bool{0: true, 1: true, 2: true}},
		{name: "unnormalised", weights: []float64{3, 0, 7}, allowed: map[int]bool{0: true, 2: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(42)
			for i := 0; i < 500; i++ {
				idx := s.Categorical(tt.weights)
				assert.True(t, tt.allowed[idx], "unexpected index %d", idx)
			}
		})
	}

	assert.Equal(t, -1, New(1).Categorical(nil))
}

func TestCategoricalProportions(t *testing.T) {
	s := New(7)
	counts := make([]int, 2)
	const draws = 20000
	for i := 0; i < draws; i++ {
		counts[s.Categorical([]float64{0.25, 0.75})]++
	}
	assert.InDelta(t, 0.75, float64(counts[1])/draws, 0.02)
}

func TestSampleIndices(t *testing.T) {
	s := New(3)

	idx := s.SampleIndices(100, 10)
	require.Len(t, idx, 10)
	seen := map[int]bool{}
	for _, v := range idx {
		assert.False(t, seen[v], "duplicate index %d", v)
		assert.True(t, v >= 0 && v < 100)
		seen[v] = true
	}

	assert.Len(t, s.SampleIndices(5, 9), 5, "k is clamped to n")
	assert.Nil(t, s.SampleIndices(5, 0))
}

func TestSameSeedSameStream(t *testing.T) {
	a, b := New(99), New(99)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Normal(10, 2), b.Normal(10, 2))
	}
}
