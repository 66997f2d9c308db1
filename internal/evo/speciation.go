package evo

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultCompatibilityThreshold = 1.0
	DefaultStagnationLimit        = 15
	DefaultMaxSpecies             = 40

	// DefaultDoubleEqual is the tolerance under which the summed species
	// share counts as zero.
	DefaultDoubleEqual = 1e-7

	thresholdIncrement = 0.01
)

// ErrDuplicateMember is returned in validation mode when a genome is added to
// a species that already lists it.
var ErrDuplicateMember = errors.New("species already contains genome")

// DisbandReason labels why a species left the population.
type DisbandReason string

const (
	ReasonLeaderLost DisbandReason = "leader_lost"
	ReasonStagnant   DisbandReason = "stagnant"
	ReasonNoMembers  DisbandReason = "no_members"
	ReasonNoShare    DisbandReason = "no_share"
	ReasonLeveled    DisbandReason = "leveled"
)

// RunOwner is the evolutionary run a speciation engine is bound to.
type RunOwner interface {
	Population() *Population
	SelectionComparator() SelectionComparator
	ScoreFunction() ScoreFunction
	// BestGenome is the best genome known to the run, nil before the first
	// generation has been scored.
	BestGenome() *Genome
	// BestScore is the run's current best score, NaN when unknown.
	BestScore() float64
	ValidationMode() bool
}

// SpeciationState is the per-run state of threshold speciation. It is created
// once per run and mutated by every pass.
type SpeciationState struct {
	Threshold       float64
	MaxSpecies      int
	StagnationLimit int
	Metric          CompatibilityMetric
}

func NewSpeciationState(metric CompatibilityMetric) (*SpeciationState, error) {
	if metric == nil {
		return nil, fmt.Errorf("compatibility metric is required")
	}
	return &SpeciationState{
		Threshold:       DefaultCompatibilityThreshold,
		MaxSpecies:      DefaultMaxSpecies,
		StagnationLimit: DefaultStagnationLimit,
		Metric:          metric,
	}, nil
}

// AdjustThreshold nudges the threshold by a fixed step: up when there are more
// species than MaxSpecies, down when fewer than two. MaxSpecies < 1 disables
// the adjustment. It returns the applied change.
func (s *SpeciationState) AdjustThreshold(speciesCount int) float64 {
	if s.MaxSpecies < 1 {
		return 0
	}
	switch {
	case speciesCount > s.MaxSpecies:
		s.Threshold += thresholdIncrement
		return thresholdIncrement
	case speciesCount < 2:
		s.Threshold -= thresholdIncrement
		return -thresholdIncrement
	}
	return 0
}

// SpeciationStats captures per-pass species partitioning diagnostics.
type SpeciationStats struct {
	SpeciesCount       int
	MaxSpecies         int
	Threshold          float64
	ThresholdDelta     float64
	MeanSpeciesSize    float64
	LargestSpeciesSize int
	Created            int
	Disbanded          map[DisbandReason]int
	MaxScore           float64
	TotalShare         float64
	EvenSplit          bool
	OffspringTotal     int
	// LevelingResidual is target size minus allocated offspring after
	// leveling: negative when the top species alone exceeds the target, the
	// whole target when no species survived allocation.
	LevelingResidual int
}

// DisbandedTotal sums removals over all reasons.
func (s SpeciationStats) DisbandedTotal() int {
	total := 0
	for _, n := range s.Disbanded {
		total += n
	}
	return total
}

type Option func(*ThresholdSpeciation)

func WithLogger(logger *zap.Logger) Option {
	return func(t *ThresholdSpeciation) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(t *ThresholdSpeciation) {
		t.metrics = metrics
	}
}

func WithShareCalculator(share ShareCalculator) Option {
	return func(t *ThresholdSpeciation) {
		if share != nil {
			t.share = share
		}
	}
}

func WithGenomeOrdering(ordering GenomeOrdering) Option {
	return func(t *ThresholdSpeciation) {
		t.ordering = ordering
	}
}

// ThresholdSpeciation partitions each generation into species by comparing
// genomes against species leaders, keeps the species count near a target by
// moving the compatibility threshold, and divides the next generation's
// offspring between species by their share of fitness.
type ThresholdSpeciation struct {
	owner    RunOwner
	state    *SpeciationState
	share    ShareCalculator
	ordering GenomeOrdering
	logger   *zap.Logger
	metrics  *Metrics
	stats    SpeciationStats
}

func NewThresholdSpeciation(owner RunOwner, state *SpeciationState, opts ...Option) (*ThresholdSpeciation, error) {
	if owner == nil {
		return nil, fmt.Errorf("run owner is required")
	}
	if owner.Population() == nil {
		return nil, fmt.Errorf("run owner has no population")
	}
	if state == nil {
		return nil, fmt.Errorf("speciation state is required")
	}
	if state.Metric == nil {
		return nil, fmt.Errorf("compatibility metric is required")
	}
	t := &ThresholdSpeciation{
		owner:  owner,
		state:  state,
		share:  MeanShare{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *ThresholdSpeciation) State() *SpeciationState {
	return t.state
}

// Stats returns the diagnostics of the last pass.
func (t *ThresholdSpeciation) Stats() SpeciationStats {
	out := t.stats
	out.Disbanded = make(map[DisbandReason]int, len(t.stats.Disbanded))
	for k, v := range t.stats.Disbanded {
		out.Disbanded[k] = v
	}
	return out
}

// PerformSpeciation runs one full pass over a scored generation: reset,
// threshold adjustment, assignment, offspring allocation and leveling. The
// population's species set and every genome's SpeciesID are updated in place.
func (t *ThresholdSpeciation) PerformSpeciation(genomes []*Genome) error {
	start := time.Now()
	t.stats = SpeciationStats{Disbanded: map[DisbandReason]int{}}

	unassigned := t.resetSpecies(genomes)
	if err := t.speciateAndCalculateSpawnLevels(unassigned); err != nil {
		return err
	}

	t.finishStats()
	t.metrics.observe(t.stats, time.Since(start))
	t.logger.Debug("speciation pass complete",
		zap.Int("species", t.stats.SpeciesCount),
		zap.Float64("threshold", t.stats.Threshold),
		zap.Int("created", t.stats.Created),
		zap.Int("disbanded", t.stats.DisbandedTotal()),
		zap.Int("offspring", t.stats.OffspringTotal),
		zap.Int("leveling_residual", t.stats.LevelingResidual),
	)
	return nil
}

// AddSpeciesMember appends genome to sp and promotes it to leader when it
// outranks the current leader.
func (t *ThresholdSpeciation) AddSpeciesMember(sp *Species, genome *Genome) error {
	if t.owner.ValidationMode() && sp.HasMember(genome.ID) {
		return fmt.Errorf("%w: species=%s genome=%s", ErrDuplicateMember, sp.ID, genome.ID)
	}

	leader, ok := t.owner.Population().Leader(sp)
	if !ok || t.owner.SelectionComparator().Compare(genome, leader) < 0 {
		sp.BestScore = genome.Score
		sp.GensNoImprovement = 0
		sp.LeaderID = genome.ID
	}

	sp.Members = append(sp.Members, genome.ID)
	genome.SpeciesID = sp.ID
	return nil
}

// resetSpecies purges every species, disbands those whose leader did not
// survive or that stagnated behind the run's best, and returns the genomes
// that still need a species.
func (t *ThresholdSpeciation) resetSpecies(genomes []*Genome) []*Genome {
	pop := t.owner.Population()
	pop.setGenomes(genomes)
	comparator := t.owner.SelectionComparator()
	bestScore := t.owner.BestScore()

	assigned := make(map[string]struct{}, pop.SpeciesCount())
	for _, id := range pop.speciesIDs() {
		sp, ok := pop.FindSpecies(id)
		if !ok {
			continue
		}
		sp.Purge()

		leader, alive := pop.Leader(sp)
		switch {
		case !alive:
			t.disband(sp, ReasonLeaderLost)
			continue
		case sp.GensNoImprovement > t.state.StagnationLimit && comparator.IsBetterThan(bestScore, sp.BestScore):
			// The leader is not marked assigned, so it re-enters assignment.
			t.disband(sp, ReasonStagnant)
			continue
		}
		leader.SpeciesID = sp.ID
		assigned[leader.ID] = struct{}{}
	}

	result := make([]*Genome, 0, len(genomes))
	for _, g := range genomes {
		if _, ok := assigned[g.ID]; ok {
			continue
		}
		result = append(result, g)
	}
	return result
}

func (t *ThresholdSpeciation) speciateAndCalculateSpawnLevels(genomes []*Genome) error {
	pop := t.owner.Population()

	t.stats.ThresholdDelta = t.state.AdjustThreshold(pop.SpeciesCount())
	if t.stats.ThresholdDelta != 0 {
		t.logger.Debug("compatibility threshold adjusted",
			zap.Float64("threshold", t.state.Threshold),
			zap.Float64("delta", t.stats.ThresholdDelta),
			zap.Int("species", pop.SpeciesCount()),
		)
		if t.state.Threshold < 0 && t.stats.ThresholdDelta < 0 {
			// Only identical genomes can share a species below zero.
			t.logger.Warn("compatibility threshold is negative",
				zap.Float64("threshold", t.state.Threshold),
			)
		}
	}

	maxScore := 0.0
	for _, genome := range genomes {
		if validScore(genome.Score) {
			maxScore = math.Max(genome.Score, maxScore)
		}

		matched := false
		for _, sp := range pop.species {
			leader, ok := pop.Leader(sp)
			if !ok {
				continue
			}
			if t.state.Metric.Distance(genome, leader) <= t.state.Threshold {
				if err := t.AddSpeciesMember(sp, genome); err != nil {
					return err
				}
				matched = true
				break
			}
		}
		if !matched {
			sp := pop.spawnSpecies(genome)
			t.stats.Created++
			t.logger.Debug("species created", zap.String("species", sp.ID), zap.String("leader", genome.ID))
		}
	}
	t.stats.MaxScore = maxScore

	minimize := t.owner.ScoreFunction().ShouldMinimize()
	total := 0.0
	for _, sp := range pop.species {
		sp.OffspringShare = max(0, t.share.Share(sp, pop.MemberGenomes(sp), minimize, maxScore))
		total += sp.OffspringShare
	}
	t.stats.TotalShare = total

	if total < DefaultDoubleEqual {
		t.stats.EvenSplit = true
		t.divideEven()
	} else {
		t.divideByFittestSpecies(total)
	}

	t.levelOff()
	return nil
}

// divideEven hands every species the same offspring count regardless of
// fitness. Used when no species has a meaningful share. Species without
// members are disbanded first.
func (t *ThresholdSpeciation) divideEven() {
	pop := t.owner.Population()
	for _, id := range pop.speciesIDs() {
		if sp, ok := pop.FindSpecies(id); ok && sp.Size() == 0 {
			t.disband(sp, ReasonNoMembers)
		}
	}
	if len(pop.species) == 0 {
		return
	}
	ratio := 1.0 / float64(len(pop.species))
	share := roundHalfUp(ratio * float64(pop.Size))
	for _, sp := range pop.species {
		sp.OffspringCount = share
	}
}

// divideByFittestSpecies gives each species offspring in proportion to its
// share of totalShare and prunes species that end up with nothing to breed.
func (t *ThresholdSpeciation) divideByFittestSpecies(totalShare float64) {
	pop := t.owner.Population()
	bestID := t.bestSpeciesID()
	ordering := t.genomeOrdering()

	for _, id := range pop.speciesIDs() {
		sp, ok := pop.FindSpecies(id)
		if !ok {
			continue
		}

		share := roundHalfUp(sp.OffspringShare / totalShare * float64(pop.Size))
		if share < 0 {
			share = 0
		}
		if sp.ID == bestID && share == 0 {
			share = 1
		}

		switch {
		case sp.Size() == 0:
			t.disband(sp, ReasonNoMembers)
		case share == 0:
			t.disband(sp, ReasonNoShare)
		case sp.GensNoImprovement > t.state.StagnationLimit && sp.ID != bestID:
			t.disband(sp, ReasonStagnant)
		default:
			sp.OffspringCount = share
			members := pop.MemberGenomes(sp)
			sortGenomes(members, ordering)
			sp.Members = sp.Members[:0]
			for _, g := range members {
				sp.Members = append(sp.Members, g.ID)
			}
		}
	}
}

// levelOff corrects rounding drift so offspring counts add up to the
// population size. Excess is trimmed from the weakest species first; any
// shortfall goes to the best species.
func (t *ThresholdSpeciation) levelOff() {
	pop := t.owner.Population()
	if len(pop.species) == 0 {
		t.stats.LevelingResidual = pop.Size
		return
	}
	sortSpeciesByLeader(pop.species, pop, t.owner.SelectionComparator())

	top := pop.species[0]
	if top.OffspringCount == 0 {
		top.OffspringCount = 1
	}

	diff := pop.Size - pop.OffspringTotal()
	if diff < 0 {
		for index := len(pop.species) - 1; diff != 0 && index > 0; index-- {
			sp := pop.species[index]
			trim := min(sp.OffspringCount, -diff)
			sp.OffspringCount -= trim
			if sp.OffspringCount == 0 {
				t.disband(sp, ReasonLeveled)
			}
			diff += trim
		}
	} else {
		top.OffspringCount += diff
		diff = 0
	}
	t.stats.LevelingResidual = diff
	if diff != 0 {
		t.logger.Warn("offspring leveling left an over-allocation",
			zap.String("top_species", top.ID),
			zap.Int("top_offspring", top.OffspringCount),
			zap.Int("population_size", pop.Size),
			zap.Int("residual", diff),
		)
	}
}

func (t *ThresholdSpeciation) disband(sp *Species, reason DisbandReason) {
	pop := t.owner.Population()
	if !pop.removeSpecies(sp.ID) {
		return
	}
	for _, id := range sp.Members {
		if g, ok := pop.Genome(id); ok && g.SpeciesID == sp.ID {
			g.SpeciesID = ""
		}
	}
	t.stats.Disbanded[reason]++
	t.logger.Debug("species disbanded",
		zap.String("species", sp.ID),
		zap.String("reason", string(reason)),
		zap.Int("members", sp.Size()),
		zap.Int("gens_no_improvement", sp.GensNoImprovement),
	)
}

func (t *ThresholdSpeciation) bestSpeciesID() string {
	best := t.owner.BestGenome()
	if best == nil {
		return ""
	}
	return best.SpeciesID
}

func (t *ThresholdSpeciation) genomeOrdering() GenomeOrdering {
	if t.ordering != nil {
		return t.ordering
	}
	return ComparatorOrdering{Comparator: t.owner.SelectionComparator()}
}

func (t *ThresholdSpeciation) finishStats() {
	pop := t.owner.Population()
	t.stats.SpeciesCount = pop.SpeciesCount()
	t.stats.MaxSpecies = t.state.MaxSpecies
	t.stats.Threshold = t.state.Threshold
	t.stats.OffspringTotal = pop.OffspringTotal()

	members := 0
	for _, sp := range pop.species {
		members += sp.Size()
		if sp.Size() > t.stats.LargestSpeciesSize {
			t.stats.LargestSpeciesSize = sp.Size()
		}
	}
	if len(pop.species) > 0 {
		t.stats.MeanSpeciesSize = float64(members) / float64(len(pop.species))
	}
}

// roundHalfUp rounds x to the nearest integer, halves towards +Inf.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
