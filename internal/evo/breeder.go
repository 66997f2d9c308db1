package evo

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var ErrNoSpecies = errors.New("population has no species to breed from")

// Breeder turns the offspring counts of a speciated population into the next
// generation. Every species carries its leader over unchanged and fills the
// rest of its quota with children of its best members.
type Breeder struct {
	Operator   Operator
	Comparator SelectionComparator
	// SurvivalRatio is the best-first fraction of each species allowed to
	// parent children. At least one member always qualifies.
	SurvivalRatio float64
	NextID        func() string
}

func (b *Breeder) Breed(ctx context.Context, pop *Population) ([]*Genome, error) {
	if b.Operator == nil || b.Comparator == nil || b.NextID == nil {
		return nil, errors.New("breeder requires operator, comparator and id source")
	}
	species := pop.Species()
	if len(species) == 0 {
		return nil, ErrNoSpecies
	}

	ordering := ComparatorOrdering{Comparator: b.Comparator}
	next := make([]*Genome, 0, pop.Size)
	var fallback *Genome
	for _, sp := range species {
		quota := min(sp.OffspringCount, pop.Size-len(next))
		members := pop.MemberGenomes(sp)
		if quota <= 0 || len(members) == 0 {
			continue
		}
		sortGenomes(members, ordering)

		if leader, ok := pop.Leader(sp); ok {
			next = append(next, leader)
			quota--
			if fallback == nil {
				fallback = leader
			}
		}

		parents := members[:b.parentCount(len(members))]
		for i := 0; i < quota; i++ {
			child, err := b.spawn(ctx, parents[i%len(parents)])
			if err != nil {
				return nil, err
			}
			next = append(next, child)
		}
	}
	if fallback == nil {
		return nil, ErrNoSpecies
	}

	for len(next) < pop.Size {
		child, err := b.spawn(ctx, fallback)
		if err != nil {
			return nil, err
		}
		next = append(next, child)
	}
	return next, nil
}

func (b *Breeder) spawn(ctx context.Context, parent *Genome) (*Genome, error) {
	child, err := b.Operator.Apply(ctx, parent, b.NextID())
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", b.Operator.Name(), parent.ID, err)
	}
	return child, nil
}

func (b *Breeder) parentCount(size int) int {
	ratio := b.SurvivalRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	return max(1, int(math.Ceil(float64(size)*ratio)))
}
