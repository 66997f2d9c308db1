package niche

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"niche/internal/config"
	"niche/internal/evo"
	"niche/internal/model"
	"niche/internal/storage"
)

const (
	defaultDBPath = "niche.db"

	// createdAtLayout sorts lexicographically in time order.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z"
)

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *zap.Logger
	// Registerer receives the speciation metrics; nil disables them.
	Registerer prometheus.Registerer
}

type Client struct {
	store   storage.Store
	logger  *zap.Logger
	metrics *evo.Metrics

	initOnce sync.Once
	initErr  error
}

// RunRequest configures Client.Run. Zero values take defaults, except for
// the pointer fields where nil takes the default and any set value is used
// as is: a MaxSpecies below 1 disables threshold adjustment.
type RunRequest struct {
	PopulationSize         int
	Generations            int
	Traits                 int
	Seed                   int64
	Minimize               bool
	Workers                int
	CompatibilityThreshold *float64
	MaxSpecies             *int
	StagnationLimit        int
	Share                  string
	Operator               string
	SurvivalRatio          float64
	MismatchPenalty        float64
	CacheDistances         bool
	ValidationMode         bool
}

type RunSummary struct {
	RunID               string
	Generations         int
	BestByGeneration    []float64
	SpeciesByGeneration []int
	FinalThreshold      float64
	FinalBestScore      float64
	FinalBestGenomeID   string
}

type RunsRequest struct {
	Limit int
}

type SpeciesRequest struct {
	RunID  string
	Latest bool
	// Generation selects a stored generation; nil means the last one.
	Generation *int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	// Limit keeps the oldest generations; 0 means all.
	Limit int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	client := &Client{
		store:  store,
		logger: logger,
	}
	if opts.Registerer != nil {
		client.metrics = evo.NewMetrics(opts.Registerer)
	}
	return client, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Init prepares the backing store. Every other method calls it on demand.
func (c *Client) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

// RunRequestFromConfig maps a configuration file onto a run request.
func RunRequestFromConfig(cfg *config.Config) RunRequest {
	threshold := cfg.Speciation.CompatibilityThreshold
	maxSpecies := cfg.Speciation.MaxSpecies
	return RunRequest{
		PopulationSize:         cfg.Run.PopulationSize,
		Generations:            cfg.Run.Generations,
		Traits:                 cfg.Run.Traits,
		Seed:                   cfg.Run.Seed,
		Minimize:               cfg.Run.Minimize,
		Workers:                cfg.Run.Workers,
		CompatibilityThreshold: &threshold,
		MaxSpecies:             &maxSpecies,
		StagnationLimit:        cfg.Speciation.StagnationLimit,
		Share:                  cfg.Speciation.Share,
		MismatchPenalty:        cfg.Speciation.MismatchPenalty,
		CacheDistances:         cfg.Speciation.CacheDistances,
		ValidationMode:         cfg.Run.ValidationMode,
	}
}

// Run evolves a population of random trait vectors towards the origin,
// speciating every generation, and persists the run with its per-generation
// snapshots and diagnostics.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.PopulationSize <= 0 {
		req.PopulationSize = 50
	}
	if req.Generations <= 0 {
		req.Generations = 20
	}
	if req.Traits <= 0 {
		req.Traits = 4
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}
	if req.Share == "" {
		req.Share = "mean"
	}
	if req.Operator == "" {
		req.Operator = "perturb_all_traits"
	}
	if req.SurvivalRatio <= 0 {
		req.SurvivalRatio = 0.5
	}
	threshold := evo.DefaultCompatibilityThreshold
	if req.CompatibilityThreshold != nil {
		threshold = *req.CompatibilityThreshold
	}
	maxSpecies := evo.DefaultMaxSpecies
	if req.MaxSpecies != nil {
		maxSpecies = *req.MaxSpecies
	}
	if req.StagnationLimit == 0 {
		req.StagnationLimit = evo.DefaultStagnationLimit
	}
	if req.MismatchPenalty < 0 {
		return RunSummary{}, errors.New("mismatch penalty must be >= 0")
	}
	if req.StagnationLimit < 0 {
		return RunSummary{}, errors.New("stagnation limit must be >= 0")
	}
	share, err := shareFromName(req.Share)
	if err != nil {
		return RunSummary{}, err
	}
	operator, err := evo.ResolveOperator(req.Operator, rand.New(rand.NewSource(req.Seed+1000)))
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	var metric evo.CompatibilityMetric = evo.TraitDistance{MismatchPenalty: req.MismatchPenalty}
	if req.CacheDistances {
		metric = evo.NewCachedMetric(metric)
	}
	state, err := evo.NewSpeciationState(metric)
	if err != nil {
		return RunSummary{}, err
	}
	state.Threshold = threshold
	state.MaxSpecies = maxSpecies
	state.StagnationLimit = req.StagnationLimit

	comparator := evo.MaximizeScore()
	if req.Minimize {
		comparator = evo.MinimizeScore()
	}

	runID := uuid.NewString()
	logger := c.logger.With(zap.String("run_id", runID))
	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		PopulationSize: req.PopulationSize,
		Comparator:     comparator,
		ValidationMode: req.ValidationMode,
		Evaluator:      sphereObjective(req.Minimize),
		Workers:        req.Workers,
		Share:          share,
		Logger:         logger,
		Metrics:        c.metrics,
	}, state)
	if err != nil {
		return RunSummary{}, err
	}

	ids := newGenomeIDs()
	breeder := &evo.Breeder{
		Operator:      operator,
		Comparator:    comparator,
		SurvivalRatio: req.SurvivalRatio,
		NextID:        ids.next,
	}

	run := model.RunRecord{
		VersionedRecord:        storage.CurrentVersion(),
		ID:                     runID,
		CreatedAtUTC:           time.Now().UTC().Format(createdAtLayout),
		PopulationSize:         req.PopulationSize,
		Generations:            req.Generations,
		Seed:                   req.Seed,
		Minimize:               req.Minimize,
		CompatibilityThreshold: threshold,
		StagnationLimit:        req.StagnationLimit,
		MaxSpecies:             maxSpecies,
	}
	logger.Info("run started",
		zap.Int("population_size", req.PopulationSize),
		zap.Int("generations", req.Generations),
		zap.Int64("seed", req.Seed),
		zap.String("share", share.Name()),
		zap.String("operator", operator.Name()),
	)

	genomes := seedGenomes(rand.New(rand.NewSource(req.Seed)), ids, req.PopulationSize, req.Traits)
	summary := RunSummary{RunID: runID}
	diagnostics := make([]model.GenerationDiagnostics, 0, req.Generations)
	for gen := 0; gen < req.Generations; gen++ {
		diag, err := monitor.Step(ctx, genomes)
		if err != nil {
			return RunSummary{}, fmt.Errorf("run %s: %w", runID, err)
		}
		diagnostics = append(diagnostics, diag)
		summary.BestByGeneration = append(summary.BestByGeneration, diag.BestScore)
		summary.SpeciesByGeneration = append(summary.SpeciesByGeneration, diag.SpeciesCount)

		snapshot := monitor.Snapshot(runID)
		snapshot.VersionedRecord = storage.CurrentVersion()
		if err := c.store.SaveSnapshot(ctx, snapshot); err != nil {
			return RunSummary{}, fmt.Errorf("save snapshot %d: %w", gen, err)
		}

		if gen == req.Generations-1 {
			break
		}
		genomes, err = breeder.Breed(ctx, monitor.Population())
		if err != nil {
			return RunSummary{}, fmt.Errorf("breed generation %d: %w", gen+1, err)
		}
	}

	if err := c.store.SaveGenerationDiagnostics(ctx, runID, diagnostics); err != nil {
		return RunSummary{}, err
	}

	summary.Generations = len(diagnostics)
	summary.FinalThreshold = state.Threshold
	if best := monitor.BestGenome(); best != nil {
		summary.FinalBestScore = best.Score
		summary.FinalBestGenomeID = best.ID
	}
	run.FinalBestScore = summary.FinalBestScore
	run.FinalBestGenomeID = summary.FinalBestGenomeID
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}

	logger.Info("run finished",
		zap.Float64("best_score", summary.FinalBestScore),
		zap.String("best_genome", summary.FinalBestGenomeID),
		zap.Float64("threshold", summary.FinalThreshold),
	)
	return summary, nil
}

// Runs lists stored runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.RunRecord, 0, min(len(runs), req.Limit))
	for i := len(runs) - 1; i >= 0 && len(out) < req.Limit; i-- {
		out = append(out, runs[i])
	}
	return out, nil
}

// Species returns the species set stored for one generation of a run.
func (c *Client) Species(ctx context.Context, req SpeciesRequest) (model.SpeciationSnapshot, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "species")
	if err != nil {
		return model.SpeciationSnapshot{}, err
	}

	var (
		snapshot model.SpeciationSnapshot
		ok       bool
	)
	if req.Generation != nil {
		snapshot, ok, err = c.store.GetSnapshot(ctx, runID, *req.Generation)
	} else {
		snapshot, ok, err = c.store.GetLatestSnapshot(ctx, runID)
	}
	if err != nil {
		return model.SpeciationSnapshot{}, err
	}
	if !ok {
		return model.SpeciationSnapshot{}, fmt.Errorf("species snapshot not found for run id: %s", runID)
	}
	return snapshot, nil
}

// Diagnostics returns a run's per-generation diagnostics in generation order.
// A positive Limit keeps the first Limit generations.
func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "diagnostics")
	if err != nil {
		return nil, err
	}

	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	return diagnostics, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	if latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return "", err
		}
		if len(runs) == 0 {
			return "", errors.New("no runs available")
		}
		return runs[len(runs)-1].ID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return runID, nil
}

func shareFromName(name string) (evo.ShareCalculator, error) {
	switch name {
	case "mean":
		return evo.MeanShare{}, nil
	case "size_adjusted":
		return evo.SizeAdjustedShare{}, nil
	default:
		return nil, fmt.Errorf("unsupported share calculator: %s", name)
	}
}
