package evo

import (
	"context"
	"errors"
	"math/rand"
)

var ErrNoTraits = errors.New("genome has no traits")

// PerturbRandomTrait shifts one randomly chosen trait by a uniform delta in
// [-MaxDelta, MaxDelta].
type PerturbRandomTrait struct {
	Rand     *rand.Rand
	MaxDelta float64
}

func (o *PerturbRandomTrait) Name() string {
	return "perturb_random_trait"
}

func (o *PerturbRandomTrait) Apply(ctx context.Context, parent *Genome, childID string) (*Genome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(parent.Traits) == 0 {
		return nil, ErrNoTraits
	}

	child := NewGenome(childID, parent.Traits)
	idx := o.Rand.Intn(len(child.Traits))
	child.Traits[idx] += (o.Rand.Float64()*2 - 1) * o.MaxDelta
	return child, nil
}

// PerturbAllTraits adds gaussian noise with standard deviation Sigma to every
// trait.
type PerturbAllTraits struct {
	Rand  *rand.Rand
	Sigma float64
}

func (o *PerturbAllTraits) Name() string {
	return "perturb_all_traits"
}

func (o *PerturbAllTraits) Apply(ctx context.Context, parent *Genome, childID string) (*Genome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(parent.Traits) == 0 {
		return nil, ErrNoTraits
	}

	child := NewGenome(childID, parent.Traits)
	for i := range child.Traits {
		child.Traits[i] += o.Rand.NormFloat64() * o.Sigma
	}
	return child, nil
}
