package niche

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"niche/internal/model"
	"niche/internal/stats"
)

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportResult struct {
	RunID       string
	Dir         string
	Generations int
}

// Export writes a stored run, its diagnostics and every species snapshot
// to OutDir/<run id>.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	if req.OutDir == "" {
		return ExportResult{}, errors.New("export requires an output directory")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "export")
	if err != nil {
		return ExportResult{}, err
	}

	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return ExportResult{}, err
	}
	if !ok {
		return ExportResult{}, fmt.Errorf("run not found: %s", runID)
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return ExportResult{}, err
	}
	if !ok {
		return ExportResult{}, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}

	history := make([]model.SpeciationSnapshot, 0, len(diagnostics))
	for _, d := range diagnostics {
		snapshot, ok, err := c.store.GetSnapshot(ctx, runID, d.Generation)
		if err != nil {
			return ExportResult{}, err
		}
		if !ok {
			return ExportResult{}, fmt.Errorf("species snapshot %d not found for run id: %s", d.Generation, runID)
		}
		history = append(history, snapshot)
	}

	dir, err := stats.WriteRunArtifacts(req.OutDir, stats.RunArtifacts{
		Run:            run,
		Diagnostics:    diagnostics,
		SpeciesHistory: history,
	})
	if err != nil {
		return ExportResult{}, fmt.Errorf("export run %s: %w", runID, err)
	}
	c.logger.Debug("run exported", zap.String("run_id", runID), zap.String("dir", dir))
	return ExportResult{RunID: runID, Dir: dir, Generations: len(history)}, nil
}
