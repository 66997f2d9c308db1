package niche

import (
	"context"
	"fmt"
	"math/rand"

	"niche/internal/evo"
)

const seedTraitRange = 5.0

type genomeIDs struct {
	n int
}

func newGenomeIDs() *genomeIDs {
	return &genomeIDs{}
}

func (g *genomeIDs) next() string {
	g.n++
	return fmt.Sprintf("g-%06d", g.n)
}

// seedGenomes draws every trait uniformly from [-seedTraitRange, seedTraitRange).
func seedGenomes(rng *rand.Rand, ids *genomeIDs, size, traits int) []*evo.Genome {
	genomes := make([]*evo.Genome, 0, size)
	for range size {
		values := make([]float64, traits)
		for i := range values {
			values[i] = (rng.Float64()*2 - 1) * seedTraitRange
		}
		genomes = append(genomes, evo.NewGenome(ids.next(), values))
	}
	return genomes
}

// sphereObjective scores the squared distance from the origin. Maximizing
// runs see 1/(1+d²) so the optimum is 1.
func sphereObjective(minimize bool) evo.Evaluator {
	return evo.EvaluatorFunc(func(ctx context.Context, genome *evo.Genome) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		sum := 0.0
		for _, v := range genome.Traits {
			sum += v * v
		}
		if minimize {
			return sum, nil
		}
		return 1 / (1 + sum), nil
	})
}
