package evo

import (
	"cmp"
	"sort"
)

// SelectionComparator ranks genomes. Compare returns a negative value when a
// is better than b. IsBetterThan is strict.
type SelectionComparator interface {
	Name() string
	Compare(a, b *Genome) int
	IsBetterThan(a, b float64) bool
}

// ScoreFunction tells share calculation which direction is better.
type ScoreFunction interface {
	ShouldMinimize() bool
}

// ScoreComparator compares genomes on their raw or adjusted score. Invalid
// scores (NaN, ±Inf) always rank last.
type ScoreComparator struct {
	Minimize bool
	Adjusted bool
}

func MaximizeScore() ScoreComparator         { return ScoreComparator{} }
func MinimizeScore() ScoreComparator         { return ScoreComparator{Minimize: true} }
func MaximizeAdjustedScore() ScoreComparator { return ScoreComparator{Adjusted: true} }
func MinimizeAdjustedScore() ScoreComparator { return ScoreComparator{Minimize: true, Adjusted: true} }

func (c ScoreComparator) Name() string {
	name := "maximize"
	if c.Minimize {
		name = "minimize"
	}
	if c.Adjusted {
		name += "_adjusted"
	}
	return name
}

func (c ScoreComparator) ShouldMinimize() bool {
	return c.Minimize
}

func (c ScoreComparator) Compare(a, b *Genome) int {
	sa, sb := c.score(a), c.score(b)
	va, vb := validScore(sa), validScore(sb)
	switch {
	case !va && !vb:
		return 0
	case !va:
		return 1
	case !vb:
		return -1
	}
	if c.Minimize {
		return cmp.Compare(sa, sb)
	}
	return cmp.Compare(sb, sa)
}

func (c ScoreComparator) IsBetterThan(a, b float64) bool {
	if !validScore(a) {
		return false
	}
	if !validScore(b) {
		return true
	}
	if c.Minimize {
		return a < b
	}
	return a > b
}

func (c ScoreComparator) score(g *Genome) float64 {
	if c.Adjusted {
		return g.AdjustedScore
	}
	return g.Score
}

// GenomeOrdering sorts the members of a species for later mate and elite
// selection, most desirable first.
type GenomeOrdering interface {
	Less(a, b *Genome) bool
}

// ComparatorOrdering orders genomes by a selection comparator, keeping the
// existing order between equally ranked genomes.
type ComparatorOrdering struct {
	Comparator SelectionComparator
}

func (o ComparatorOrdering) Less(a, b *Genome) bool {
	return o.Comparator.Compare(a, b) < 0
}

func sortGenomes(genomes []*Genome, ordering GenomeOrdering) {
	sort.SliceStable(genomes, func(i, j int) bool {
		return ordering.Less(genomes[i], genomes[j])
	})
}

// sortSpeciesByLeader orders species best-first by comparing their leaders.
// Species whose leader is not part of the current generation sort last.
func sortSpeciesByLeader(species []*Species, p *Population, comparator SelectionComparator) {
	sort.SliceStable(species, func(i, j int) bool {
		li, okI := p.Leader(species[i])
		lj, okJ := p.Leader(species[j])
		switch {
		case !okI:
			return false
		case !okJ:
			return true
		}
		return comparator.Compare(li, lj) < 0
	})
}
