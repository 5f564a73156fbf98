// Package config loads and validates the ceflags application
// configuration: compiler path, worker pool sizing, metrics/reporting
// settings, and safety limits.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root ceflags configuration.
type Config struct {
	Framework FrameworkConfig `yaml:"framework"`
	Compiler  CompilerConfig  `yaml:"compiler"`
	Pool      PoolConfig      `yaml:"pool"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Reporting ReportingConfig `yaml:"reporting"`
	Emergency EmergencyConfig `yaml:"emergency"`
	Engine    EngineConfig    `yaml:"engine"`
	Safety    SafetyConfig    `yaml:"safety"`
}

// FrameworkConfig contains general framework settings.
type FrameworkConfig struct {
	Version   string `yaml:"version"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// CompilerConfig describes the compiler under search.
type CompilerConfig struct {
	CC      string `yaml:"cc"`
	BaseOpt string `yaml:"base_opt"`
}

// PoolConfig sizes the BuildBenchmarkPool.
type PoolConfig struct {
	Processes     int           `yaml:"processes"`
	BenchmarkTime time.Duration `yaml:"benchmark_timeout"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

// ReportingConfig contains reporting and output settings.
type ReportingConfig struct {
	OutputDir string   `yaml:"output_dir"`
	KeepLastN int      `yaml:"keep_last_n"`
	Formats   []string `yaml:"formats"`
}

// EmergencyConfig contains graceful-stop settings.
type EmergencyConfig struct {
	StopFile           string        `yaml:"stop_file"`
	AutoCleanupTimeout time.Duration `yaml:"auto_cleanup_timeout"`
}

// EngineConfig contains CEEngine/MinimizeEngine tunables.
type EngineConfig struct {
	DropPessimizingFlags bool    `yaml:"drop_pessimizing_flags"`
	MaxIterations        int     `yaml:"max_iterations"`
	MinimizeTolerance    float64 `yaml:"minimize_tolerance"`
}

// SafetyConfig contains safety limits.
type SafetyConfig struct {
	MaxDuration         time.Duration `yaml:"max_duration"`
	RequireConfirmation bool          `yaml:"require_confirmation"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			Version:   "v1",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Compiler: CompilerConfig{
			CC:      "cc",
			BaseOpt: "-O2",
		},
		Pool: PoolConfig{
			Processes:     0,
			BenchmarkTime: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr:    ":9464",
			Enabled: false,
		},
		Reporting: ReportingConfig{
			OutputDir: "./workspace",
			KeepLastN: 50,
			Formats:   []string{"text", "csv"},
		},
		Emergency: EmergencyConfig{
			StopFile:           "/tmp/ceflags-emergency-stop",
			AutoCleanupTimeout: 5 * time.Minute,
		},
		Engine: EngineConfig{
			DropPessimizingFlags: false,
			MaxIterations:        0,
			MinimizeTolerance:    0,
		},
		Safety: SafetyConfig{
			MaxDuration:         1 * time.Hour,
			RequireConfirmation: false,
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults for
// a missing path and expanding environment variables in the file content.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	ccEnvSet := os.Getenv("CEFLAGS_CC") != ""
	ccEnv := os.Getenv("CEFLAGS_CC")

	expandedData := []byte(os.ExpandEnv(string(data)))

	if err := yaml.Unmarshal(expandedData, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if ccEnvSet {
		cfg.Compiler.CC = ccEnv
	}

	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Compiler.CC == "" {
		return fmt.Errorf("compiler.cc is required")
	}

	if c.Reporting.OutputDir == "" {
		return fmt.Errorf("reporting.output_dir is required")
	}

	if c.Pool.Processes < 0 {
		return fmt.Errorf("pool.processes must be >= 0 (0 means host CPU count)")
	}

	if c.Engine.MinimizeTolerance < 0 {
		return fmt.Errorf("engine.minimize_tolerance must be >= 0")
	}

	return nil
}
