package evo

import "math"

// Genome is one candidate solution of a generation. SpeciesID is a lookup key
// into the owning Population and is rewritten by every speciation pass.
type Genome struct {
	ID            string
	Score         float64
	AdjustedScore float64
	Traits        []float64
	SpeciesID     string
}

// NewGenome returns an unevaluated genome; both scores start as NaN.
func NewGenome(id string, traits []float64) *Genome {
	return &Genome{
		ID:            id,
		Score:         math.NaN(),
		AdjustedScore: math.NaN(),
		Traits:        append([]float64(nil), traits...),
	}
}

// SetScore records a raw score and resets the adjusted score to match it.
func (g *Genome) SetScore(score float64) {
	g.Score = score
	g.AdjustedScore = score
}

// Evaluated reports whether the genome carries a usable score.
func (g *Genome) Evaluated() bool {
	return validScore(g.Score)
}

func validScore(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
