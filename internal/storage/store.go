package storage

import (
	"context"

	"niche/internal/model"
)

// Store persists runs, their per-generation species snapshots and diagnostics.
// Get methods report a missing record with ok == false and a nil error.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns all runs, oldest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveSnapshot(ctx context.Context, snapshot model.SpeciationSnapshot) error
	GetSnapshot(ctx context.Context, runID string, generation int) (model.SpeciationSnapshot, bool, error)
	GetLatestSnapshot(ctx context.Context, runID string) (model.SpeciationSnapshot, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
}
