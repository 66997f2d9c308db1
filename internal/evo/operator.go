package evo

import "context"

// Operator derives a child genome from parent. The child carries childID, no
// score and no species; parent is left untouched.
type Operator interface {
	Name() string
	Apply(ctx context.Context, parent *Genome, childID string) (*Genome, error)
}
