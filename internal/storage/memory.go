package storage

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"

	"niche/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	snapshots   map[string]map[int]model.SpeciationSnapshot
	diagnostics map[string][]model.GenerationDiagnostics
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.snapshots = make(map[string]map[int]model.SpeciationSnapshot)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := slices.Collect(maps.Values(s.runs))
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC != runs[j].CreatedAtUTC {
			return runs[i].CreatedAtUTC < runs[j].CreatedAtUTC
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snapshot model.SpeciationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	byGeneration, ok := s.snapshots[snapshot.RunID]
	if !ok {
		byGeneration = make(map[int]model.SpeciationSnapshot)
		s.snapshots[snapshot.RunID] = byGeneration
	}
	byGeneration[snapshot.Generation] = copySnapshot(snapshot)
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, runID string, generation int) (model.SpeciationSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[runID][generation]
	if !ok {
		return model.SpeciationSnapshot{}, false, nil
	}
	return copySnapshot(snapshot), true, nil
}

func (s *MemoryStore) GetLatestSnapshot(_ context.Context, runID string) (model.SpeciationSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byGeneration := s.snapshots[runID]
	if len(byGeneration) == 0 {
		return model.SpeciationSnapshot{}, false, nil
	}
	latest := slices.Max(slices.Collect(maps.Keys(byGeneration)))
	return copySnapshot(byGeneration[latest]), true, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.diagnostics[runID] = copyDiagnostics(diagnostics)
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	return copyDiagnostics(diagnostics), true, nil
}

func copySnapshot(snapshot model.SpeciationSnapshot) model.SpeciationSnapshot {
	species := make([]model.SpeciesRecord, 0, len(snapshot.Species))
	for _, record := range snapshot.Species {
		record.Members = append([]string(nil), record.Members...)
		species = append(species, record)
	}
	snapshot.Species = species
	return snapshot
}

func copyDiagnostics(diagnostics []model.GenerationDiagnostics) []model.GenerationDiagnostics {
	copied := make([]model.GenerationDiagnostics, 0, len(diagnostics))
	for _, diag := range diagnostics {
		diag.SpeciesDisbanded = maps.Clone(diag.SpeciesDisbanded)
		copied = append(copied, diag)
	}
	return copied
}
