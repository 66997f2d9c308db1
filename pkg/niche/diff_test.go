package niche

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"niche/internal/model"
)

func TestDiffSnapshots(t *testing.T) {
	from := model.SpeciationSnapshot{
		RunID:      "run-1",
		Generation: 2,
		Threshold:  1.0,
		Species: []model.SpeciesRecord{
			{ID: "sp-001", LeaderID: "g1", Members: []string{"g1", "g2"}, OffspringCount: 3},
			{ID: "sp-002", LeaderID: "g3", Members: []string{"g3"}, OffspringCount: 1},
			{ID: "sp-003", LeaderID: "g4", Members: []string{"g4"}, OffspringCount: 1},
		},
	}
	to := model.SpeciationSnapshot{
		RunID:      "run-1",
		Generation: 3,
		Threshold:  0.99,
		Species: []model.SpeciesRecord{
			{ID: "sp-001", LeaderID: "g1", Members: []string{"g1", "g2"}, OffspringCount: 3},
			{ID: "sp-003", LeaderID: "g9", Members: []string{"g9", "g4"}, OffspringCount: 1},
			{ID: "sp-004", LeaderID: "g7", Members: []string{"g7"}, OffspringCount: 1},
		},
	}

	diff := diffSnapshots(from, to)
	assert.Equal(t, 2, diff.FromGeneration)
	assert.Equal(t, 3, diff.ToGeneration)
	assert.InDelta(t, -0.01, diff.ThresholdDelta, 1e-12)
	assert.Equal(t, []string{"sp-004"}, diff.Added)
	assert.Equal(t, []string{"sp-002"}, diff.Removed)
	assert.Equal(t, 1, diff.UnchangedCount)
	require.Len(t, diff.Changed, 1)
	assert.Equal(t, SpeciesChange{
		ID: "sp-003", FromLeader: "g4", ToLeader: "g9", FromSize: 1, ToSize: 2, FromOffspring: 1, ToOffspring: 1,
	}, diff.Changed[0])
}

func TestClientSpeciesDiff(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, Options{})
	summary, err := client.Run(ctx, smallRun())
	require.NoError(t, err)

	diff, err := client.SpeciesDiff(ctx, SpeciesDiffRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, diff.RunID)
	assert.Equal(t, 4, diff.FromGeneration)
	assert.Equal(t, 5, diff.ToGeneration)
	assert.Equal(t, summary.SpeciesByGeneration[5],
		summary.SpeciesByGeneration[4]+len(diff.Added)-len(diff.Removed))

	from, to := 0, 3
	diff, err = client.SpeciesDiff(ctx, SpeciesDiffRequest{RunID: summary.RunID, FromGeneration: &from, ToGeneration: &to})
	require.NoError(t, err)
	assert.Equal(t, 0, diff.FromGeneration)
	assert.Equal(t, 3, diff.ToGeneration)

	_, err = client.SpeciesDiff(ctx, SpeciesDiffRequest{RunID: summary.RunID, FromGeneration: &to, ToGeneration: &from})
	require.Error(t, err)
}
