// Package config loads engine tunables from YAML files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/probelab/traceq/pkg/traceq/fact"
	"github.com/probelab/traceq/pkg/traceq/internalerr"
)

// Thresholds tunes the significance classifier.
type Thresholds struct {
	MemoryBytes    int64 `yaml:"memory_bytes"`
	RecursionCalls int   `yaml:"recursion_calls"`
	PatternMatches int   `yaml:"pattern_matches"`
}

// Limits bounds query and trace size for untrusted input.
type Limits struct {
	MaxConditions int `yaml:"max_conditions"`
	MaxFrames     int `yaml:"max_frames"`
}

// Config holds every engine tunable.
type Config struct {
	Thresholds Thresholds `yaml:"thresholds"`
	Limits     Limits     `yaml:"limits"`
	// Predicates optionally overrides the declared schema
	// (predicate name to arity).
	Predicates map[string]int `yaml:"predicates"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Thresholds: Thresholds{
			MemoryBytes:    1 << 20,
			RecursionCalls: 10,
			PatternMatches: 5,
		},
		Limits: Limits{
			MaxConditions: 8,
			MaxFrames:     512,
		},
	}
}

// Load reads a YAML config file. Fields left unset keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects nonsensical tunables.
func (c Config) Validate() error {
	if c.Thresholds.MemoryBytes < 0 {
		return fmt.Errorf("%w: memory_bytes must not be negative", internalerr.ErrInvalidConfig)
	}
	if c.Thresholds.RecursionCalls < 0 || c.Thresholds.PatternMatches < 0 {
		return fmt.Errorf("%w: thresholds must not be negative", internalerr.ErrInvalidConfig)
	}
	if c.Limits.MaxConditions < 1 {
		return fmt.Errorf("%w: max_conditions must be at least 1", internalerr.ErrInvalidConfig)
	}
	if c.Limits.MaxFrames < 1 {
		return fmt.Errorf("%w: max_frames must be at least 1", internalerr.ErrInvalidConfig)
	}
	for name, arity := range c.Predicates {
		if name == "" || arity < 1 {
			return fmt.Errorf("%w: predicate %q with arity %d", internalerr.ErrInvalidConfig, name, arity)
		}
	}
	return nil
}

// Schema returns the declared predicate schema: the override when present,
// the default otherwise.
func (c Config) Schema() fact.Schema {
	if len(c.Predicates) == 0 {
		return fact.DefaultSchema()
	}
	schema := make(fact.Schema, len(c.Predicates))
	for name, arity := range c.Predicates {
		schema[name] = arity
	}
	return schema
}
