package evo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports speciation pass results. A nil *Metrics is a valid no-op.
type Metrics struct {
	speciesCount     prometheus.Gauge
	threshold        prometheus.Gauge
	speciesCreated   prometheus.Counter
	speciesDisbanded *prometheus.CounterVec
	levelingResidual prometheus.Gauge
	passDuration     prometheus.Histogram
}

// NewMetrics registers the speciation collectors with reg. A nil registerer
// creates working but unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		speciesCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "niche",
			Subsystem: "speciation",
			Name:      "species",
			Help:      "Number of species after the last speciation pass.",
		}),
		threshold: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "niche",
			Subsystem: "speciation",
			Name:      "compatibility_threshold",
			Help:      "Compatibility threshold used by the last speciation pass.",
		}),
		speciesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "niche",
			Subsystem: "speciation",
			Name:      "species_created_total",
			Help:      "Species founded by genomes that matched no existing species.",
		}),
		speciesDisbanded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "niche",
			Subsystem: "speciation",
			Name:      "species_disbanded_total",
			Help:      "Species removed from the population, by reason.",
		}, []string{"reason"}),
		levelingResidual: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "niche",
			Subsystem: "speciation",
			Name:      "leveling_residual",
			Help:      "Target population size minus allocated offspring after leveling; 0 when the quota is met exactly.",
		}),
		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "niche",
			Subsystem: "speciation",
			Name:      "pass_duration_seconds",
			Help:      "Wall time of one speciation pass.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}
}

func (m *Metrics) observe(stats SpeciationStats, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.speciesCount.Set(float64(stats.SpeciesCount))
	m.threshold.Set(stats.Threshold)
	m.speciesCreated.Add(float64(stats.Created))
	for reason, n := range stats.Disbanded {
		m.speciesDisbanded.WithLabelValues(string(reason)).Add(float64(n))
	}
	m.levelingResidual.Set(float64(stats.LevelingResidual))
	m.passDuration.Observe(elapsed.Seconds())
}
