package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one evolutionary run and the settings it started with.
type RunRecord struct {
	VersionedRecord
	ID                     string  `json:"id"`
	CreatedAtUTC           string  `json:"created_at_utc"`
	PopulationSize         int     `json:"population_size"`
	Generations            int     `json:"generations"`
	Seed                   int64   `json:"seed"`
	Minimize               bool    `json:"minimize"`
	CompatibilityThreshold float64 `json:"compatibility_threshold"`
	StagnationLimit        int     `json:"stagnation_limit"`
	MaxSpecies             int     `json:"max_species"`
	FinalBestScore         float64 `json:"final_best_score"`
	FinalBestGenomeID      string  `json:"final_best_genome_id,omitempty"`
}

type SpeciesRecord struct {
	ID                string   `json:"id"`
	LeaderID          string   `json:"leader_id"`
	Members           []string `json:"members"`
	BestScore         float64  `json:"best_score"`
	GensNoImprovement int      `json:"gens_no_improvement"`
	Age               int      `json:"age"`
	OffspringCount    int      `json:"offspring_count"`
	OffspringShare    float64  `json:"offspring_share"`
}

// SpeciationSnapshot is the species set of a run after one generation.
type SpeciationSnapshot struct {
	VersionedRecord
	RunID          string          `json:"run_id"`
	Generation     int             `json:"generation"`
	Threshold      float64         `json:"threshold"`
	PopulationSize int             `json:"population_size"`
	Species        []SpeciesRecord `json:"species"`
}

type GenerationDiagnostics struct {
	Generation          int            `json:"generation"`
	BestScore           float64        `json:"best_score"`
	MeanScore           float64        `json:"mean_score"`
	WorstScore          float64        `json:"worst_score"`
	InvalidScores       int            `json:"invalid_scores"`
	SpeciesCount        int            `json:"species_count"`
	SpeciationThreshold float64        `json:"speciation_threshold"`
	ThresholdDelta      float64        `json:"threshold_delta"`
	MaxSpecies          int            `json:"max_species"`
	MeanSpeciesSize     float64        `json:"mean_species_size"`
	LargestSpeciesSize  int            `json:"largest_species_size"`
	SpeciesCreated      int            `json:"species_created"`
	SpeciesDisbanded    map[string]int `json:"species_disbanded,omitempty"`
	OffspringTotal      int            `json:"offspring_total"`
	LevelingResidual    int            `json:"leveling_residual"`
	EvenSplit           bool           `json:"even_split"`
}
