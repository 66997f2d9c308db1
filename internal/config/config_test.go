package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"NICHE_STORE", "NICHE_DB_PATH", "NICHE_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "niche.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
speciation:
  compatibility_threshold: 2.5
  max_species: 8
run:
  population_size: 60
  minimize: false
store:
  kind: sqlite
  db_path: runs.db
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2.5, cfg.Speciation.CompatibilityThreshold)
	assert.Equal(t, 8, cfg.Speciation.MaxSpecies)
	assert.Equal(t, 15, cfg.Speciation.StagnationLimit)
	assert.Equal(t, 60, cfg.Run.PopulationSize)
	assert.False(t, cfg.Run.Minimize)
	assert.Equal(t, "sqlite", cfg.Store.Kind)
	assert.Equal(t, "runs.db", cfg.Store.DBPath)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run: [1, 2"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NICHE_STORE", "sqlite")
	t.Setenv("NICHE_DB_PATH", "/tmp/env.db")
	t.Setenv("NICHE_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Kind)
	assert.Equal(t, "/tmp/env.db", cfg.Store.DBPath)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "population size", mutate: func(c *Config) { c.Run.PopulationSize = 0 }, field: "PopulationSize"},
		{name: "workers", mutate: func(c *Config) { c.Run.Workers = 0 }, field: "Workers"},
		{name: "store kind", mutate: func(c *Config) { c.Store.Kind = "postgres" }, field: "Kind"},
		{name: "sqlite needs path", mutate: func(c *Config) { c.Store = StoreConfig{Kind: "sqlite"} }, field: "DBPath"},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, field: "Level"},
		{name: "share", mutate: func(c *Config) { c.Speciation.Share = "median" }, field: "Share"},
		{name: "stagnation", mutate: func(c *Config) { c.Speciation.StagnationLimit = 0 }, field: "StagnationLimit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tc.field, verrs[0].Field())
		})
	}
}

func TestValidateAllowsNegativeThresholdAndNoMaxSpecies(t *testing.T) {
	cfg := Default()
	cfg.Speciation.CompatibilityThreshold = -0.5
	cfg.Speciation.MaxSpecies = -1
	assert.NoError(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "niche.yaml")
	cfg := Default()
	cfg.Run.Seed = 42
	cfg.Speciation.Share = "size_adjusted"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
