package evo

import "slices"

// Species is a cluster of compatible genomes. Members holds genome ids in
// selection order; the leader is re-seeded into Members on every purge, so a
// surviving species always lists its leader first until members are sorted.
type Species struct {
	ID                string
	LeaderID          string
	Members           []string
	BestScore         float64
	GensNoImprovement int
	Age               int
	OffspringCount    int
	OffspringShare    float64
}

func newSpecies(id string, leader *Genome) *Species {
	return &Species{
		ID:        id,
		LeaderID:  leader.ID,
		Members:   []string{leader.ID},
		BestScore: leader.Score,
	}
}

// Purge starts a new generation for the species: membership shrinks back to
// the leader, allocation is cleared and the age and stagnation counters move
// forward. Promotion of a better leader resets the stagnation counter again.
func (s *Species) Purge() {
	s.Members = s.Members[:0]
	if s.LeaderID != "" {
		s.Members = append(s.Members, s.LeaderID)
	}
	s.Age++
	s.GensNoImprovement++
	s.OffspringCount = 0
	s.OffspringShare = 0
}

// HasMember reports whether id is listed in the member sequence.
func (s *Species) HasMember(id string) bool {
	return slices.Contains(s.Members, id)
}

// Size is the number of listed members, leader included.
func (s *Species) Size() int {
	return len(s.Members)
}
