package evo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreComparatorCompare(t *testing.T) {
	nan := math.NaN()
	cases := []struct {
		name       string
		comparator ScoreComparator
		a, b       float64
		want       int
	}{
		{name: "maximize better", comparator: MaximizeScore(), a: 3, b: 1, want: -1},
		{name: "maximize worse", comparator: MaximizeScore(), a: 1, b: 3, want: 1},
		{name: "maximize tie", comparator: MaximizeScore(), a: 2, b: 2, want: 0},
		{name: "minimize better", comparator: MinimizeScore(), a: 1, b: 3, want: -1},
		{name: "minimize worse", comparator: MinimizeScore(), a: 3, b: 1, want: 1},
		{name: "nan ranks last when maximizing", comparator: MaximizeScore(), a: nan, b: -100, want: 1},
		{name: "nan ranks last when minimizing", comparator: MinimizeScore(), a: 100, b: nan, want: -1},
		{name: "inf ranks last", comparator: MaximizeScore(), a: math.Inf(1), b: 0, want: 1},
		{name: "both invalid", comparator: MinimizeScore(), a: nan, b: math.Inf(-1), want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := &Genome{ID: "a", Score: tc.a, AdjustedScore: tc.a}
			b := &Genome{ID: "b", Score: tc.b, AdjustedScore: tc.b}
			assert.Equal(t, tc.want, tc.comparator.Compare(a, b))
		})
	}
}

func TestScoreComparatorUsesAdjustedScore(t *testing.T) {
	a := &Genome{ID: "a", Score: 1, AdjustedScore: 10}
	b := &Genome{ID: "b", Score: 5, AdjustedScore: 2}

	assert.Equal(t, 1, MaximizeScore().Compare(a, b))
	assert.Equal(t, -1, MaximizeAdjustedScore().Compare(a, b))
	assert.Equal(t, 1, MinimizeAdjustedScore().Compare(a, b))
}

func TestScoreComparatorIsBetterThan(t *testing.T) {
	assert.True(t, MaximizeScore().IsBetterThan(2, 1))
	assert.False(t, MaximizeScore().IsBetterThan(1, 1))
	assert.True(t, MinimizeScore().IsBetterThan(1, 2))
	assert.False(t, MinimizeScore().IsBetterThan(2, 2))
	assert.False(t, MaximizeScore().IsBetterThan(math.NaN(), 1))
	assert.True(t, MaximizeScore().IsBetterThan(-5, math.NaN()))
	assert.False(t, MinimizeScore().IsBetterThan(math.NaN(), math.NaN()))
}

func TestScoreComparatorNames(t *testing.T) {
	assert.Equal(t, "maximize", MaximizeScore().Name())
	assert.Equal(t, "minimize_adjusted", MinimizeAdjustedScore().Name())
	assert.True(t, MinimizeScore().ShouldMinimize())
	assert.False(t, MaximizeAdjustedScore().ShouldMinimize())
}

func TestSortGenomesIsStableForTies(t *testing.T) {
	genomes := []*Genome{
		scored("b", 1), scored("a", 3), scored("c", 1), scored("d", math.NaN()), scored("e", 3),
	}
	sortGenomes(genomes, ComparatorOrdering{Comparator: MaximizeScore()})

	ids := make([]string, len(genomes))
	for i, g := range genomes {
		ids[i] = g.ID
	}
	assert.Equal(t, []string{"a", "e", "b", "c", "d"}, ids)
}

func TestSortSpeciesByLeader(t *testing.T) {
	pop, err := NewPopulation(10)
	assert.NoError(t, err)
	weak := scored("weak", 1)
	strong := scored("strong", 9)
	gone := scored("gone", 100)
	pop.setGenomes([]*Genome{weak, strong, gone})
	spGone := pop.spawnSpecies(gone)
	spWeak := pop.spawnSpecies(weak)
	spStrong := pop.spawnSpecies(strong)
	pop.setGenomes([]*Genome{weak, strong})

	sortSpeciesByLeader(pop.species, pop, MinimizeScore())
	assert.Equal(t, []string{spWeak.ID, spStrong.ID, spGone.ID}, pop.speciesIDs())

	sortSpeciesByLeader(pop.species, pop, MaximizeScore())
	assert.Equal(t, []string{spStrong.ID, spWeak.ID, spGone.ID}, pop.speciesIDs())
}
