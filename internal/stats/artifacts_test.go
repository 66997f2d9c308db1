package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"niche/internal/model"
)

func testArtifacts() RunArtifacts {
	return RunArtifacts{
		Run: model.RunRecord{ID: "run-123", PopulationSize: 10, Generations: 2, Seed: 1, Minimize: true, FinalBestScore: 0.25},
		Diagnostics: []model.GenerationDiagnostics{
			{Generation: 0, BestScore: 0.5, MeanScore: 2.5, SpeciesCount: 3, SpeciationThreshold: 1},
			{Generation: 1, BestScore: 0.25, MeanScore: 1.75, SpeciesCount: 2, SpeciationThreshold: 1.01},
		},
		SpeciesHistory: []model.SpeciationSnapshot{
			{RunID: "run-123", Generation: 0, Species: []model.SpeciesRecord{{ID: "sp-001", LeaderID: "g1", Members: []string{"g1"}}}},
		},
	}
}

func TestWriteRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()

	runDir, err := WriteRunArtifacts(baseDir, testArtifacts())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(baseDir, "run-123"), runDir)

	for _, file := range []string{runFile, diagnosticsFile, speciesFile, seriesFile} {
		_, err := os.Stat(filepath.Join(runDir, file))
		require.NoError(t, err, file)
	}

	run, ok, err := ReadRunRecord(runDir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testArtifacts().Run, run)

	series, ok, err := ReadSeries(runDir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []SeriesPoint{
		{Generation: 0, BestScore: 0.5, MeanScore: 2.5, Species: 3, Threshold: 1},
		{Generation: 1, BestScore: 0.25, MeanScore: 1.75, Species: 2, Threshold: 1.01},
	}, series)

	data, err := os.ReadFile(filepath.Join(runDir, speciesFile))
	require.NoError(t, err)
	var history []model.SpeciationSnapshot
	require.NoError(t, json.Unmarshal(data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "sp-001", history[0].Species[0].ID)
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	artifacts := testArtifacts()
	artifacts.Run.ID = ""
	_, err := WriteRunArtifacts(t.TempDir(), artifacts)
	require.EqualError(t, err, "run id is required")
}

func TestReadMissingArtifacts(t *testing.T) {
	dir := t.TempDir()

	_, ok, err := ReadRunRecord(dir)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ReadSeries(dir)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadSeriesRejectsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, seriesFile),
		[]byte("generation,best_score,mean_score,species,threshold\n0,abc,1,2,1\n"), 0o644))
	_, _, err := ReadSeries(dir)
	require.ErrorContains(t, err, "best_score")

	require.NoError(t, os.WriteFile(filepath.Join(dir, seriesFile), []byte("generation,best\n"), 0o644))
	_, _, err = ReadSeries(dir)
	require.Error(t, err)
}
