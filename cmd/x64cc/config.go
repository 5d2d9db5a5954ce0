package main

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// TargetConfig overrides the demo's default calling-convention/optimize
// settings without touching the command line, for scripted or CI use.
type TargetConfig struct {
	CallConvention string `yaml:"call_convention"`
	Optimize       *bool  `yaml:"optimize"`
}

// loadTargetConfig reads path if it is non-empty, returning a zero
// TargetConfig otherwise. A missing or empty path is not an error.
func loadTargetConfig(path string) (TargetConfig, error) {
	if path == "" {
		return TargetConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return TargetConfig{}, fmt.Errorf("read target config: %w", err)
	}

	var cfg TargetConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return TargetConfig{}, fmt.Errorf("parse target config: %w", err)
	}

	slog.Info("loaded target config", "path", path, "call_convention", cfg.CallConvention)
	return cfg, nil
}
