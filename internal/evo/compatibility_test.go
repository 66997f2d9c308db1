package evo

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraitDistance(t *testing.T) {
	cases := []struct {
		name   string
		metric TraitDistance
		a, b   []float64
		want   float64
	}{
		{name: "identical", a: []float64{1, 2}, b: []float64{1, 2}, want: 0},
		{name: "euclidean", a: []float64{0, 0}, b: []float64{3, 4}, want: 5},
		{name: "weighted", metric: TraitDistance{Weights: []float64{4}}, a: []float64{0, 0}, b: []float64{1, 0}, want: 2},
		{name: "mismatch penalty", metric: TraitDistance{MismatchPenalty: 0.5}, a: []float64{1}, b: []float64{1, 7, 9}, want: 1},
		{name: "empty", a: nil, b: nil, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewGenome("a", tc.a)
			b := NewGenome("b", tc.b)
			assert.InDelta(t, tc.want, tc.metric.Distance(a, b), 1e-12)
			assert.InDelta(t, tc.want, tc.metric.Distance(b, a), 1e-12)
		})
	}
}

func TestCompatibilityFunc(t *testing.T) {
	metric := CompatibilityFunc(func(a, b *Genome) float64 {
		return math.Abs(a.Score - b.Score)
	})
	assert.Equal(t, 2.0, metric.Distance(scored("a", 1), scored("b", 3)))
}

func TestCachedMetricMemoizesSymmetricPairs(t *testing.T) {
	calls := 0
	cache := NewCachedMetric(CompatibilityFunc(func(a, b *Genome) float64 {
		calls++
		return TraitDistance{}.Distance(a, b)
	}))
	a := NewGenome("a", []float64{0})
	b := NewGenome("b", []float64{2})

	assert.Equal(t, 2.0, cache.Distance(a, b))
	assert.Equal(t, 2.0, cache.Distance(b, a))
	assert.Equal(t, 1, calls)
	hits, misses := cache.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	cache.Reset()
	hits, misses = cache.Stats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
	cache.Distance(a, b)
	assert.Equal(t, 2, calls)
}

func TestCachedMetricConcurrentUse(t *testing.T) {
	cache := NewCachedMetric(TraitDistance{})
	genomes := []*Genome{
		NewGenome("a", []float64{0}),
		NewGenome("b", []float64{1}),
		NewGenome("c", []float64{3}),
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range genomes {
				for j := range genomes {
					cache.Distance(genomes[i], genomes[j])
				}
			}
		}()
	}
	wg.Wait()

	hits, misses := cache.Stats()
	require.Equal(t, 8*9, hits+misses)
	assert.Equal(t, 3.0, cache.Distance(genomes[0], genomes[2]))
}
