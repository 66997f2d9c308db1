package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"niche/internal/model"
)

func TestDecodeSnapshotFixture(t *testing.T) {
	data, err := os.ReadFile(fixturePath("speciation_snapshot_v1.json"))
	require.NoError(t, err)

	snapshot, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, "run-fixture-1", snapshot.RunID)
	assert.Equal(t, 4, snapshot.Generation)
	require.Len(t, snapshot.Species, 2)
	assert.Equal(t, "g-0003", snapshot.Species[0].LeaderID)
	assert.Equal(t, []string{"g-0002", "g-0004", "g-0006"}, snapshot.Species[1].Members)

	offspring := 0
	for _, sp := range snapshot.Species {
		offspring += sp.OffspringCount
	}
	assert.Equal(t, snapshot.PopulationSize, offspring)
}

func TestDecodeRunRejectsNewerSchema(t *testing.T) {
	data, err := os.ReadFile(fixturePath("run_v2.json"))
	require.NoError(t, err)

	_, err = DecodeRun(data)
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestDecodeRejectsUnversionedRecords(t *testing.T) {
	_, err := DecodeRun([]byte(`{"id":"r1"}`))
	require.ErrorIs(t, err, ErrVersionMismatch)

	_, err = DecodeSnapshot([]byte(`{"run_id":"r1"}`))
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := DecodeRun([]byte(`{`))
	require.Error(t, err)
	_, err = DecodeGenerationDiagnostics([]byte(`[{"generation":"x"}]`))
	require.Error(t, err)
}

func TestEncodeDecodeRun(t *testing.T) {
	run := model.RunRecord{
		VersionedRecord:        CurrentVersion(),
		ID:                     "run-1",
		CreatedAtUTC:           "2026-10-18T12:00:00Z",
		PopulationSize:         40,
		Generations:            12,
		Seed:                   7,
		Minimize:               true,
		CompatibilityThreshold: 1.0,
		StagnationLimit:        15,
		MaxSpecies:             40,
		FinalBestScore:         0.125,
		FinalBestGenomeID:      "g-0031",
	}
	data, err := EncodeRun(run)
	require.NoError(t, err)

	decoded, err := DecodeRun(data)
	require.NoError(t, err)
	assert.Equal(t, run, decoded)
}

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}
