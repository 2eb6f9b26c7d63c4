// Package config gathers the settings of a run from defaults, an optional
// YAML file and PLACEALIGN_ environment variables. Command flags are applied
// last by the caller.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/placealign/internal/distance"
	"github.com/lehigh-university-libraries/placealign/internal/matcher"
	"github.com/lehigh-university-libraries/placealign/internal/pipeline"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "PLACEALIGN_"

// ConflictSkip leaves every link of a conflicting authority untouched. It is
// the only supported policy.
const ConflictSkip = "skip"

// Config is the full configuration of a run.
type Config struct {
	DBDriver       string         `yaml:"db_driver"`
	DBDSN          string         `yaml:"db_dsn"`
	Workers        int            `yaml:"workers"`
	ChunkSize      int            `yaml:"chunk_size"`
	TargetTimeout  time.Duration  `yaml:"target_timeout"`
	Country        string         `yaml:"country"`
	Language       string         `yaml:"language"`
	OutputDir      string         `yaml:"output_dir"`
	FileSize       int            `yaml:"file_size"`
	Simplified     bool           `yaml:"simplified"`
	Prune          bool           `yaml:"prune"`
	ConflictPolicy string         `yaml:"conflict_policy"`
	Matcher        matcher.Config `yaml:"matcher"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		DBDriver:       "sqlite",
		DBDSN:          "placealign.db",
		Workers:        pipeline.DefaultWorkers(),
		ChunkSize:      pipeline.DefaultChunkSize,
		TargetTimeout:  2 * time.Hour,
		Country:        "FR",
		Language:       "fr",
		OutputDir:      "output",
		FileSize:       50000,
		ConflictPolicy: ConflictSkip,
		Matcher:        matcher.DefaultConfig(),
	}
}

// Load returns the defaults overlaid with the file at path, if any, and
// then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path. Keys absent from the file keep
// their current value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays the PLACEALIGN_ variables found through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	get := func(name string) string { return strings.TrimSpace(getenv(EnvPrefix + name)) }

	if v := get("DB_DRIVER"); v != "" {
		c.DBDriver = v
	}
	if v := get("DB_DSN"); v != "" {
		c.DBDSN = v
	}
	if v := get("COUNTRY"); v != "" {
		c.Country = strings.ToUpper(v)
	}
	if v := get("LANGUAGE"); v != "" {
		c.Language = strings.ToLower(v)
	}
	if v := get("OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	for name, dst := range map[string]*int{"WORKERS": &c.Workers, "CHUNK_SIZE": &c.ChunkSize, "FILE_SIZE": &c.FileSize} {
		v := get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("failed to parse %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}
	if v := get("TARGET_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("failed to parse %sTARGET_TIMEOUT: %w", EnvPrefix, err)
		}
		c.TargetTimeout = d
	}
	return nil
}

// Validate checks the values a run cannot start without.
func (c Config) Validate() error {
	switch {
	case c.DBDriver == "":
		return fmt.Errorf("database driver is required")
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	case c.ChunkSize < 1:
		return fmt.Errorf("chunk size must be at least 1, got %d", c.ChunkSize)
	case c.FileSize < 1:
		return fmt.Errorf("file size must be at least 1, got %d", c.FileSize)
	case c.TargetTimeout <= 0:
		return fmt.Errorf("target timeout must be positive, got %s", c.TargetTimeout)
	case c.ConflictPolicy != "" && c.ConflictPolicy != ConflictSkip:
		return fmt.Errorf("unsupported conflict policy %q", c.ConflictPolicy)
	}
	if _, err := distance.ByName(c.Matcher.Distance); err != nil {
		return err
	}
	for name, v := range map[string]float64{
		"geo_threshold":               c.Matcher.GeoThreshold,
		"minhash_threshold":           c.Matcher.MinHashThreshold,
		"topographic_threshold":       c.Matcher.TopographicThreshold,
		"topographic_loose_threshold": c.Matcher.TopographicLooseThreshold,
		"foreign_country_distance":    c.Matcher.ForeignCountryDistance,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("matcher %s must be within [0, 1], got %v", name, v)
		}
	}
	if c.Matcher.NGramSize < 1 {
		return fmt.Errorf("matcher ngram_size must be at least 1, got %d", c.Matcher.NGramSize)
	}
	return nil
}

// Pool returns the worker pool sizing.
func (c Config) Pool() pipeline.Options {
	return pipeline.Options{ChunkSize: c.ChunkSize, Workers: c.Workers}
}
