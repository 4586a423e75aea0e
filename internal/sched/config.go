package sched

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors config.yml
type Config struct {
	YieldBudgetMS      int    `yaml:"yield_budget_ms"`       // 5 (by default)
	MaxYieldIntervalMS int    `yaml:"max_yield_interval_ms"` // 300 (by default)
	FrameRate          int    `yaml:"frame_rate"`            // 0 = use yield_budget_ms
	LogLevel           string `yaml:"log_level"`             // info (by default)
	LogFormat          string `yaml:"log_format"`            // console (by default)
	EventsCSV          string `yaml:"events_csv"`            // optional trace file
}

// DefaultConfig is used when no config file is given or found.
func DefaultConfig() Config {
	return Config{
		YieldBudgetMS:      5,
		MaxYieldIntervalMS: 300,
		LogLevel:           "info",
		LogFormat:          "console",
	}
}

// YieldBudget is the time slice before ShouldYield starts returning true.
func (c Config) YieldBudget() time.Duration {
	return time.Duration(c.YieldBudgetMS) * time.Millisecond
}

// MaxYieldInterval bounds a slice when the host can report pending input.
func (c Config) MaxYieldInterval() time.Duration {
	return time.Duration(c.MaxYieldIntervalMS) * time.Millisecond
}

// Load reads YAML and overrides defaults; empty path or a missing file =
// defaults only.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg.clamp(), nil
}

// sanity clamps
func (c Config) clamp() Config {
	def := DefaultConfig()
	if c.YieldBudgetMS <= 0 {
		c.YieldBudgetMS = def.YieldBudgetMS
	}
	if c.MaxYieldIntervalMS <= 0 {
		c.MaxYieldIntervalMS = def.MaxYieldIntervalMS
	}
	if c.FrameRate < 0 || c.FrameRate > maxFrameRate {
		c.FrameRate = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	return c
}
