package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the nichectl configuration file.
type Config struct {
	Speciation SpeciationConfig `yaml:"speciation"`
	Run        RunConfig        `yaml:"run"`
	Store      StoreConfig      `yaml:"store"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type SpeciationConfig struct {
	CompatibilityThreshold float64 `yaml:"compatibility_threshold"`
	// MaxSpecies below 1 disables threshold adjustment.
	MaxSpecies      int     `yaml:"max_species" validate:"min=-1"`
	StagnationLimit int     `yaml:"stagnation_limit" validate:"min=1"`
	Share           string  `yaml:"share" validate:"oneof=mean size_adjusted"`
	MismatchPenalty float64 `yaml:"mismatch_penalty" validate:"min=0"`
	CacheDistances  bool    `yaml:"cache_distances"`
}

type RunConfig struct {
	PopulationSize int   `yaml:"population_size" validate:"required,min=1"`
	Generations    int   `yaml:"generations" validate:"required,min=1"`
	Traits         int   `yaml:"traits" validate:"required,min=1"`
	Seed           int64 `yaml:"seed"`
	Minimize       bool  `yaml:"minimize"`
	Workers        int   `yaml:"workers" validate:"min=1"`
	ValidationMode bool  `yaml:"validation_mode"`
}

type StoreConfig struct {
	Kind   string `yaml:"kind" validate:"oneof=memory sqlite"`
	DBPath string `yaml:"db_path" validate:"required_if=Kind sqlite"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

func Default() *Config {
	return &Config{
		Speciation: SpeciationConfig{
			CompatibilityThreshold: 1.0,
			MaxSpecies:             40,
			StagnationLimit:        15,
			Share:                  "mean",
			CacheDistances:         true,
		},
		Run: RunConfig{
			PopulationSize: 100,
			Generations:    25,
			Traits:         4,
			Seed:           1,
			Minimize:       true,
			Workers:        4,
		},
		Store: StoreConfig{
			Kind:   "memory",
			DBPath: "niche.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of the defaults. A missing file yields the
// defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if kind := os.Getenv("NICHE_STORE"); kind != "" {
		c.Store.Kind = kind
	}
	if path := os.Getenv("NICHE_DB_PATH"); path != "" {
		c.Store.DBPath = path
	}
	if level := os.Getenv("NICHE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
