package evo

import (
	"math"
	"sync"
)

// CompatibilityMetric measures how far apart two genomes are. Smaller is more
// compatible; results must be non-negative.
type CompatibilityMetric interface {
	Distance(a, b *Genome) float64
}

// CompatibilityFunc adapts a plain function to CompatibilityMetric.
type CompatibilityFunc func(a, b *Genome) float64

func (f CompatibilityFunc) Distance(a, b *Genome) float64 {
	return f(a, b)
}

// TraitDistance is a weighted Euclidean distance over trait vectors. Traits
// present in only one genome add MismatchPenalty each.
type TraitDistance struct {
	Weights         []float64
	MismatchPenalty float64
}

func (m TraitDistance) Distance(a, b *Genome) float64 {
	shared := min(len(a.Traits), len(b.Traits))
	sum := 0.0
	for i := 0; i < shared; i++ {
		d := a.Traits[i] - b.Traits[i]
		sum += m.weight(i) * d * d
	}
	excess := math.Abs(float64(len(a.Traits) - len(b.Traits)))
	return math.Sqrt(sum) + m.MismatchPenalty*excess
}

func (m TraitDistance) weight(i int) float64 {
	if i < len(m.Weights) {
		return m.Weights[i]
	}
	return 1.0
}

type genomePair struct {
	lo, hi string
}

// CachedMetric memoizes a symmetric metric by genome id pair. Call Reset
// whenever genomes may change under an existing id.
type CachedMetric struct {
	Metric CompatibilityMetric

	mu        sync.Mutex
	distances map[genomePair]float64
	hits      int
	misses    int
}

func NewCachedMetric(metric CompatibilityMetric) *CachedMetric {
	return &CachedMetric{
		Metric:    metric,
		distances: map[genomePair]float64{},
	}
}

func (c *CachedMetric) Distance(a, b *Genome) float64 {
	key := genomePair{lo: a.ID, hi: b.ID}
	if key.lo > key.hi {
		key.lo, key.hi = key.hi, key.lo
	}

	c.mu.Lock()
	if d, ok := c.distances[key]; ok {
		c.hits++
		c.mu.Unlock()
		return d
	}
	c.misses++
	c.mu.Unlock()

	d := c.Metric.Distance(a, b)

	c.mu.Lock()
	c.distances[key] = d
	c.mu.Unlock()
	return d
}

// Stats returns cache hits and misses since the last Reset.
func (c *CachedMetric) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *CachedMetric) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.distances = map[genomePair]float64{}
	c.hits = 0
	c.misses = 0
}
