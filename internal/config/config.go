package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Analysis strategies
const (
	StrategyParallel   = "parallel"
	StrategySinglePass = "single_pass"
)

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// Config represents the application configuration
type Config struct {
	LogPath         string          `yaml:"log_path"`
	Grammar         string          `yaml:"grammar"`
	Output          string          `yaml:"output"`
	AnalyzerConfig  AnalyzerConfig  `yaml:"analyzer"`
	DashboardConfig DashboardConfig `yaml:"dashboard"`
	WatchConfig     WatchConfig     `yaml:"watch"`
	HistoryConfig   HistoryConfig   `yaml:"history"`
}

// AnalyzerConfig contains aggregation settings
type AnalyzerConfig struct {
	TopN     int    `yaml:"top_n"`
	Strategy string `yaml:"strategy"` // "parallel" or "single_pass"
}

// DashboardConfig contains web dashboard settings
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Host    string `yaml:"host"`
}

// WatchConfig contains file watching settings
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

// HistoryConfig contains report archive settings
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoadConfig loads configuration from a YAML file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		// Return default configuration if file doesn't exist
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		LogPath: "access.log",
		Grammar: "access",
		Output:  OutputText,
		AnalyzerConfig: AnalyzerConfig{
			TopN:     3,
			Strategy: StrategyParallel,
		},
		DashboardConfig: DashboardConfig{
			Enabled: false,
			Port:    8080,
			Host:    "localhost",
		},
		WatchConfig: WatchConfig{
			DebounceMS: 250,
		},
		HistoryConfig: HistoryConfig{
			Enabled: false,
			Path:    "logflow-history.db",
		},
	}
}

// Validate checks the configuration for values the analyzer cannot use
func (c *Config) Validate() error {
	switch c.AnalyzerConfig.Strategy {
	case StrategyParallel, StrategySinglePass:
	default:
		return fmt.Errorf("unknown strategy %q", c.AnalyzerConfig.Strategy)
	}

	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("unknown output format %q", c.Output)
	}

	if c.AnalyzerConfig.TopN < 0 {
		return fmt.Errorf("top_n must not be negative, got %d", c.AnalyzerConfig.TopN)
	}

	if c.DashboardConfig.Port < 0 || c.DashboardConfig.Port > 65535 {
		return fmt.Errorf("dashboard port out of range: %d", c.DashboardConfig.Port)
	}

	if c.WatchConfig.DebounceMS < 0 {
		return fmt.Errorf("debounce_ms must not be negative, got %d", c.WatchConfig.DebounceMS)
	}

	return nil
}
