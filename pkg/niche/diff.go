package niche

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"niche/internal/model"
)

type SpeciesDiffRequest struct {
	RunID  string
	Latest bool
	// ToGeneration defaults to the last stored generation and FromGeneration
	// to the one before it.
	FromGeneration *int
	ToGeneration   *int
}

type SpeciesChange struct {
	ID            string `json:"id"`
	FromLeader    string `json:"from_leader"`
	ToLeader      string `json:"to_leader"`
	FromSize      int    `json:"from_size"`
	ToSize        int    `json:"to_size"`
	FromOffspring int    `json:"from_offspring"`
	ToOffspring   int    `json:"to_offspring"`
}

type SpeciesDiff struct {
	RunID          string          `json:"run_id"`
	FromGeneration int             `json:"from_generation"`
	ToGeneration   int             `json:"to_generation"`
	ThresholdDelta float64         `json:"threshold_delta"`
	Added          []string        `json:"added"`
	Removed        []string        `json:"removed"`
	Changed        []SpeciesChange `json:"changed"`
	UnchangedCount int             `json:"unchanged_count"`
}

// SpeciesDiff compares the species sets of two generations of a run.
func (c *Client) SpeciesDiff(ctx context.Context, req SpeciesDiffRequest) (SpeciesDiff, error) {
	to, err := c.Species(ctx, SpeciesRequest{RunID: req.RunID, Latest: req.Latest, Generation: req.ToGeneration})
	if err != nil {
		return SpeciesDiff{}, err
	}

	fromGeneration := to.Generation - 1
	if req.FromGeneration != nil {
		fromGeneration = *req.FromGeneration
	}
	if fromGeneration < 0 {
		return SpeciesDiff{}, errors.New("species diff needs at least two generations")
	}
	if fromGeneration >= to.Generation {
		return SpeciesDiff{}, fmt.Errorf("from generation %d must precede to generation %d", fromGeneration, to.Generation)
	}
	from, err := c.Species(ctx, SpeciesRequest{RunID: to.RunID, Generation: &fromGeneration})
	if err != nil {
		return SpeciesDiff{}, err
	}
	return diffSnapshots(from, to), nil
}

func diffSnapshots(from, to model.SpeciationSnapshot) SpeciesDiff {
	diff := SpeciesDiff{
		RunID:          to.RunID,
		FromGeneration: from.Generation,
		ToGeneration:   to.Generation,
		ThresholdDelta: to.Threshold - from.Threshold,
		Added:          []string{},
		Removed:        []string{},
		Changed:        []SpeciesChange{},
	}

	before := make(map[string]model.SpeciesRecord, len(from.Species))
	for _, sp := range from.Species {
		before[sp.ID] = sp
	}
	for _, sp := range to.Species {
		prev, ok := before[sp.ID]
		if !ok {
			diff.Added = append(diff.Added, sp.ID)
			continue
		}
		delete(before, sp.ID)
		if prev.LeaderID == sp.LeaderID && len(prev.Members) == len(sp.Members) && prev.OffspringCount == sp.OffspringCount {
			diff.UnchangedCount++
			continue
		}
		diff.Changed = append(diff.Changed, SpeciesChange{
			ID:            sp.ID,
			FromLeader:    prev.LeaderID,
			ToLeader:      sp.LeaderID,
			FromSize:      len(prev.Members),
			ToSize:        len(sp.Members),
			FromOffspring: prev.OffspringCount,
			ToOffspring:   sp.OffspringCount,
		})
	}
	for id := range before {
		diff.Removed = append(diff.Removed, id)
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Slice(diff.Changed, func(i, j int) bool { return diff.Changed[i].ID < diff.Changed[j].ID })
	return diff
}
