package evo

// ShareCalculator aggregates a species' members into its offspring share.
// maxScore is the best valid score seen in the generation being speciated.
type ShareCalculator interface {
	Name() string
	Share(sp *Species, members []*Genome, minimize bool, maxScore float64) float64
}

// MeanShare averages the adjusted score of members with a valid score. When
// minimizing, each score is measured as its distance below maxScore.
type MeanShare struct{}

func (MeanShare) Name() string {
	return "mean"
}

func (MeanShare) Share(sp *Species, members []*Genome, minimize bool, maxScore float64) float64 {
	total := 0.0
	count := 0
	for _, g := range members {
		if !validScore(g.AdjustedScore) {
			continue
		}
		if minimize {
			total += maxScore - g.AdjustedScore
		} else {
			total += g.AdjustedScore
		}
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// SizeAdjustedShare divides every member's adjusted score by the species size
// before averaging, so large species do not crowd out small ones.
type SizeAdjustedShare struct{}

func (SizeAdjustedShare) Name() string {
	return "size_adjusted"
}

func (SizeAdjustedShare) Share(sp *Species, members []*Genome, minimize bool, maxScore float64) float64 {
	share := MeanShare{}.Share(sp, members, minimize, maxScore)
	if len(members) > 1 {
		share /= float64(len(members))
	}
	return share
}
