package evo

import (
	"fmt"
	"slices"
)

// Population owns the species set and the genome arena of the current
// generation. Species and genomes refer to each other only by id.
type Population struct {
	Size int

	species       []*Species
	genomes       map[string]*Genome
	nextSpeciesID int
}

func NewPopulation(size int) (*Population, error) {
	if size <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	return &Population{
		Size:          size,
		genomes:       map[string]*Genome{},
		nextSpeciesID: 1,
	}, nil
}

// Species returns the species set in its current order. The slice is a copy;
// the species themselves are shared.
func (p *Population) Species() []*Species {
	return append([]*Species(nil), p.species...)
}

func (p *Population) SpeciesCount() int {
	return len(p.species)
}

func (p *Population) FindSpecies(id string) (*Species, bool) {
	for _, sp := range p.species {
		if sp.ID == id {
			return sp, true
		}
	}
	return nil, false
}

// Genome looks up a genome of the current generation.
func (p *Population) Genome(id string) (*Genome, bool) {
	g, ok := p.genomes[id]
	return g, ok
}

// Leader resolves the leader genome of sp in the current generation.
func (p *Population) Leader(sp *Species) (*Genome, bool) {
	return p.Genome(sp.LeaderID)
}

// MemberGenomes resolves the member ids of sp, skipping ids that are not part
// of the current generation.
func (p *Population) MemberGenomes(sp *Species) []*Genome {
	out := make([]*Genome, 0, len(sp.Members))
	for _, id := range sp.Members {
		if g, ok := p.genomes[id]; ok {
			out = append(out, g)
		}
	}
	return out
}

// AddSpecies appends an existing species, e.g. one restored from a snapshot.
func (p *Population) AddSpecies(sp *Species) error {
	if sp == nil || sp.ID == "" {
		return fmt.Errorf("species id is required")
	}
	if _, exists := p.FindSpecies(sp.ID); exists {
		return fmt.Errorf("species already present: %s", sp.ID)
	}
	var n int
	if _, err := fmt.Sscanf(sp.ID, "sp-%d", &n); err == nil && n >= p.nextSpeciesID {
		p.nextSpeciesID = n + 1
	}
	p.species = append(p.species, sp)
	return nil
}

// OffspringTotal sums the offspring counts of the current species set.
func (p *Population) OffspringTotal() int {
	total := 0
	for _, sp := range p.species {
		total += sp.OffspringCount
	}
	return total
}

func (p *Population) setGenomes(genomes []*Genome) {
	arena := make(map[string]*Genome, len(genomes))
	for _, g := range genomes {
		arena[g.ID] = g
	}
	p.genomes = arena
}

func (p *Population) spawnSpecies(leader *Genome) *Species {
	sp := newSpecies(fmt.Sprintf("sp-%03d", p.nextSpeciesID), leader)
	p.nextSpeciesID++
	leader.SpeciesID = sp.ID
	p.species = append(p.species, sp)
	return sp
}

func (p *Population) removeSpecies(id string) bool {
	idx := slices.IndexFunc(p.species, func(sp *Species) bool { return sp.ID == id })
	if idx < 0 {
		return false
	}
	p.species = slices.Delete(p.species, idx, idx+1)
	return true
}

func (p *Population) speciesIDs() []string {
	ids := make([]string, len(p.species))
	for i, sp := range p.species {
		ids[i] = sp.ID
	}
	return ids
}
