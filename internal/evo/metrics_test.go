package evo

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserveSpeciationPass(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	run := newTestRun(t, 6)
	engine := newTestEngine(t, run, WithMetrics(metrics))

	genomes := []*Genome{
		scored("a", 3, 0), scored("b", 2, 0.1), scored("c", 1, 5), scored("d", 1, 5.2),
		scored("e", 1, 10), scored("f", 1, 10.1),
	}
	run.trackBest(genomes)
	require.NoError(t, engine.PerformSpeciation(genomes))

	stats := engine.Stats()
	assert.Equal(t, float64(stats.SpeciesCount), testutil.ToFloat64(metrics.speciesCount))
	assert.Equal(t, stats.Threshold, testutil.ToFloat64(metrics.threshold))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.speciesCreated))
	assert.Equal(t, float64(stats.LevelingResidual), testutil.ToFloat64(metrics.levelingResidual))

	count, err := testutil.GatherAndCount(reg, "niche_speciation_pass_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetricsCountDisbandedByReason(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.observe(SpeciationStats{
		Disbanded: map[DisbandReason]int{ReasonLeaderLost: 2, ReasonStagnant: 1},
	}, 0)
	metrics.observe(SpeciationStats{
		Disbanded: map[DisbandReason]int{ReasonLeaderLost: 1},
	}, 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.speciesDisbanded.WithLabelValues(string(ReasonLeaderLost))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.speciesDisbanded.WithLabelValues(string(ReasonStagnant))))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.observe(SpeciationStats{SpeciesCount: 3}, 0)
	})
}

func TestNewMetricsRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
