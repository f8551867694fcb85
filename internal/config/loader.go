package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every validation failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Coordinator.TriggerCount < 0 {
		errs = append(errs, fmt.Errorf("coordinator.trigger_count must be non-negative, got %d", cfg.Coordinator.TriggerCount))
	}
	if cfg.Coordinator.MinSegmentsForTimeTrigger < 0 {
		errs = append(errs, fmt.Errorf("coordinator.min_segments_for_time_trigger must be non-negative, got %d", cfg.Coordinator.MinSegmentsForTimeTrigger))
	}
	if cfg.Coordinator.TimeThreshold < 0 {
		errs = append(errs, fmt.Errorf("coordinator.time_threshold must be non-negative, got %s", cfg.Coordinator.TimeThreshold))
	}
	if cfg.Coordinator.LLMTimeout < 0 {
		errs = append(errs, fmt.Errorf("coordinator.llm_timeout must be non-negative, got %s", cfg.Coordinator.LLMTimeout))
	}

	return errors.Join(errs...)
}
