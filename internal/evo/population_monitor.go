package evo

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"niche/internal/model"
)

// Evaluator scores a single genome.
type Evaluator interface {
	Evaluate(ctx context.Context, genome *Genome) (float64, error)
}

type EvaluatorFunc func(ctx context.Context, genome *Genome) (float64, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, genome *Genome) (float64, error) {
	return f(ctx, genome)
}

type MonitorConfig struct {
	PopulationSize int
	Comparator     ScoreComparator
	ValidationMode bool
	// Evaluator may be nil when genomes arrive already scored.
	Evaluator Evaluator
	Workers   int
	Share     ShareCalculator
	Logger    *zap.Logger
	Metrics   *Metrics
}

// PopulationMonitor drives one evolutionary run: it scores each generation,
// tracks the best genome and runs threshold speciation over the result.
type PopulationMonitor struct {
	cfg        MonitorConfig
	logger     *zap.Logger
	population *Population
	speciation *ThresholdSpeciation

	mu         sync.Mutex
	best       *Genome
	generation int
}

func NewPopulationMonitor(cfg MonitorConfig, state *SpeciationState) (*PopulationMonitor, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	population, err := NewPopulation(cfg.PopulationSize)
	if err != nil {
		return nil, err
	}

	m := &PopulationMonitor{
		cfg:        cfg,
		logger:     cfg.Logger,
		population: population,
	}
	m.speciation, err = NewThresholdSpeciation(m, state,
		WithLogger(cfg.Logger),
		WithMetrics(cfg.Metrics),
		WithShareCalculator(cfg.Share),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PopulationMonitor) Population() *Population {
	return m.population
}

func (m *PopulationMonitor) SelectionComparator() SelectionComparator {
	return m.cfg.Comparator
}

func (m *PopulationMonitor) ScoreFunction() ScoreFunction {
	return m.cfg.Comparator
}

func (m *PopulationMonitor) BestGenome() *Genome {
	return m.best
}

func (m *PopulationMonitor) BestScore() float64 {
	if m.best == nil {
		return math.NaN()
	}
	return m.best.Score
}

func (m *PopulationMonitor) ValidationMode() bool {
	return m.cfg.ValidationMode
}

func (m *PopulationMonitor) Speciation() *ThresholdSpeciation {
	return m.speciation
}

// Generation is the number of completed steps.
func (m *PopulationMonitor) Generation() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Step scores one generation, updates the best genome and speciates it. The
// genomes are modified in place.
func (m *PopulationMonitor) Step(ctx context.Context, genomes []*Genome) (model.GenerationDiagnostics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(genomes) == 0 {
		return model.GenerationDiagnostics{}, fmt.Errorf("generation %d has no genomes", m.generation)
	}
	if err := m.evaluate(ctx, genomes); err != nil {
		return model.GenerationDiagnostics{}, err
	}
	m.updateBest(genomes)

	if err := m.speciation.PerformSpeciation(genomes); err != nil {
		return model.GenerationDiagnostics{}, fmt.Errorf("speciate generation %d: %w", m.generation, err)
	}
	if cache, ok := m.speciation.State().Metric.(interface{ Reset() }); ok {
		cache.Reset()
	}

	diag := m.diagnostics(genomes)
	m.generation++
	m.logger.Info("generation speciated",
		zap.Int("generation", diag.Generation),
		zap.Float64("best_score", diag.BestScore),
		zap.Int("species", diag.SpeciesCount),
		zap.Float64("threshold", diag.SpeciationThreshold),
	)
	return diag, nil
}

// Snapshot captures the species set after the last completed step.
func (m *PopulationMonitor) Snapshot(runID string) model.SpeciationSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	species := m.population.Species()
	records := make([]model.SpeciesRecord, 0, len(species))
	for _, sp := range species {
		records = append(records, model.SpeciesRecord{
			ID:                sp.ID,
			LeaderID:          sp.LeaderID,
			Members:           append([]string(nil), sp.Members...),
			BestScore:         finiteOrZero(sp.BestScore),
			GensNoImprovement: sp.GensNoImprovement,
			Age:               sp.Age,
			OffspringCount:    sp.OffspringCount,
			OffspringShare:    finiteOrZero(sp.OffspringShare),
		})
	}
	return model.SpeciationSnapshot{
		RunID:          runID,
		Generation:     m.generation - 1,
		Threshold:      m.speciation.State().Threshold,
		PopulationSize: m.population.Size,
		Species:        records,
	}
}

func (m *PopulationMonitor) evaluate(ctx context.Context, genomes []*Genome) error {
	if m.cfg.Evaluator == nil {
		return ctx.Err()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for _, genome := range genomes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			score, err := m.cfg.Evaluator.Evaluate(ctx, genome)
			if err != nil {
				return fmt.Errorf("evaluate genome %s: %w", genome.ID, err)
			}
			genome.SetScore(score)
			return nil
		})
	}
	return g.Wait()
}

func (m *PopulationMonitor) updateBest(genomes []*Genome) {
	for _, genome := range genomes {
		if !genome.Evaluated() {
			continue
		}
		if m.best == nil || m.cfg.Comparator.IsBetterThan(genome.Score, m.best.Score) {
			m.best = genome
		}
	}
}

func (m *PopulationMonitor) diagnostics(genomes []*Genome) model.GenerationDiagnostics {
	stats := m.speciation.Stats()
	diag := model.GenerationDiagnostics{
		Generation:          m.generation,
		BestScore:           finiteOrZero(m.BestScore()),
		SpeciesCount:        stats.SpeciesCount,
		SpeciationThreshold: stats.Threshold,
		ThresholdDelta:      stats.ThresholdDelta,
		MaxSpecies:          stats.MaxSpecies,
		MeanSpeciesSize:     stats.MeanSpeciesSize,
		LargestSpeciesSize:  stats.LargestSpeciesSize,
		SpeciesCreated:      stats.Created,
		OffspringTotal:      stats.OffspringTotal,
		LevelingResidual:    stats.LevelingResidual,
		EvenSplit:           stats.EvenSplit,
	}
	if len(stats.Disbanded) > 0 {
		diag.SpeciesDisbanded = make(map[string]int, len(stats.Disbanded))
		for reason, n := range stats.Disbanded {
			diag.SpeciesDisbanded[string(reason)] = n
		}
	}

	sum := 0.0
	valid := 0
	worst := math.NaN()
	for _, genome := range genomes {
		if !genome.Evaluated() {
			diag.InvalidScores++
			continue
		}
		sum += genome.Score
		valid++
		if math.IsNaN(worst) || m.cfg.Comparator.IsBetterThan(worst, genome.Score) {
			worst = genome.Score
		}
	}
	if valid > 0 {
		diag.MeanScore = sum / float64(valid)
		diag.WorstScore = worst
	}
	return diag
}

// finiteOrZero keeps persisted records JSON-encodable; unevaluated scores are
// stored as 0.
func finiteOrZero(v float64) float64 {
	if !validScore(v) {
		return 0
	}
	return v
}
