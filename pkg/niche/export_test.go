package niche

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"niche/internal/stats"
)

func TestClientExport(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, Options{})
	summary, err := client.Run(ctx, smallRun())
	require.NoError(t, err)

	outDir := t.TempDir()
	result, err := client.Export(ctx, ExportRequest{Latest: true, OutDir: outDir})
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, result.RunID)
	assert.Equal(t, filepath.Join(outDir, summary.RunID), result.Dir)
	assert.Equal(t, 6, result.Generations)

	run, ok, err := stats.ReadRunRecord(result.Dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, summary.FinalBestScore, run.FinalBestScore)

	series, ok, err := stats.ReadSeries(result.Dir)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, series, 6)
	for gen, point := range series {
		assert.Equal(t, gen, point.Generation)
		assert.Equal(t, summary.BestByGeneration[gen], point.BestScore)
		assert.Equal(t, summary.SpeciesByGeneration[gen], point.Species)
	}
}

func TestClientExportErrors(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, Options{})

	_, err := client.Export(ctx, ExportRequest{Latest: true})
	require.EqualError(t, err, "export requires an output directory")

	_, err = client.Export(ctx, ExportRequest{RunID: "missing", OutDir: t.TempDir()})
	require.EqualError(t, err, "run not found: missing")
}
