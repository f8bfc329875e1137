// Copyright (c) 2025 FeatureForge Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Workflow templates. The template tunes which gates a run applies.
const (
	// TemplateTDD runs the full RED/YELLOW/GREEN pipeline with the
	// coverage gate enabled.
	TemplateTDD = "tdd"
	// TemplateMVP disables the coverage gate and the review pass for
	// fast incremental delivery.
	TemplateMVP = "mvp"
	// TemplateFull is TDD plus the review annotation in GREEN.
	TemplateFull = "full"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultMaxRetries      = 3
	DefaultMinCoverage     = 80.0
	DefaultConcurrency     = 4
	DefaultCallTimeoutSecs = 300
	DefaultCacheTTLSecs    = 3600
	DefaultCacheSizeBudget = 64 << 20 // 64 MiB
)

// Config is the recognized configuration surface for a workflow run.
type Config struct {
	Template string `yaml:"template"`

	MaxRetries       int     `yaml:"max_retries"`
	MinCoverage      float64 `yaml:"min_coverage"`
	ConcurrencyLimit int     `yaml:"concurrency_limit"`

	CallTimeoutSeconds   int   `yaml:"call_timeout_seconds"`
	CacheTTLSeconds      int   `yaml:"cache_ttl_seconds"`
	CacheSizeBudgetBytes int64 `yaml:"cache_size_budget_bytes"`

	// ToleratePartialFailure controls whether dependents of a FAILED
	// feature are still attempted (true) or marked BLOCKED (false).
	ToleratePartialFailure bool `yaml:"tolerate_partial_failure"`

	// EnableReview turns the GREEN review annotation on. Derived from
	// the template by ApplyDefaults when unset in the file.
	EnableReview bool `yaml:"enable_review"`
}

// Load reads configuration from a YAML file, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a ready-to-use configuration with all defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields and applies template adjustments.
func (c *Config) ApplyDefaults() {
	if c.Template == "" {
		c.Template = TemplateTDD
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MinCoverage == 0 && c.Template != TemplateMVP {
		c.MinCoverage = DefaultMinCoverage
	}
	if c.ConcurrencyLimit <= 0 {
		c.ConcurrencyLimit = DefaultConcurrency
	}
	if c.CallTimeoutSeconds <= 0 {
		c.CallTimeoutSeconds = DefaultCallTimeoutSecs
	}
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = DefaultCacheTTLSecs
	}
	if c.CacheSizeBudgetBytes <= 0 {
		c.CacheSizeBudgetBytes = DefaultCacheSizeBudget
	}

	switch c.Template {
	case TemplateMVP:
		c.MinCoverage = 0
		c.EnableReview = false
	case TemplateFull:
		c.EnableReview = true
	}
}

// Validate rejects configurations the pipeline cannot honor. A bad
// configuration is a structural error and aborts the run.
func (c *Config) Validate() error {
	switch c.Template {
	case TemplateTDD, TemplateMVP, TemplateFull:
	default:
		return fmt.Errorf("unknown workflow template %q", c.Template)
	}
	if c.MinCoverage < 0 || c.MinCoverage > 100 {
		return fmt.Errorf("min_coverage must be between 0 and 100, got %.1f", c.MinCoverage)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.ConcurrencyLimit < 1 {
		return fmt.Errorf("concurrency_limit must be at least 1, got %d", c.ConcurrencyLimit)
	}
	return nil
}

// CallTimeout is the per-collaborator-call timeout.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// CacheTTL is the default cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
