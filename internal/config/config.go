// Package config loads simulator settings from defaults, a YAML file and
// SPIKEGRID_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"spikegrid/internal/logging"
	"spikegrid/internal/network"
	"spikegrid/internal/nn"
	"spikegrid/internal/storage"
)

type Config struct {
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

type SimulationConfig struct {
	// Workers is the size of the propagation worker pool.
	Workers int `json:"workers" yaml:"workers"`

	// MaxShellLevel bounds the placement search; 0 searches without limit.
	MaxShellLevel int `json:"max_shell_level" yaml:"max_shell_level"`

	InitialStrength int `json:"initial_strength" yaml:"initial_strength"`
	RewardBound     int `json:"reward_bound" yaml:"reward_bound"`

	// Seed drives placement tie-breaks. 0 picks a time-based seed.
	Seed int64 `json:"seed" yaml:"seed"`

	// ClockInterval is the period of the background recovery clock.
	ClockInterval time.Duration `json:"clock_interval" yaml:"clock_interval"`
}

type StorageConfig struct {
	// Kind is "memory" or "sqlite".
	Kind   string `json:"kind" yaml:"kind"`
	DBPath string `json:"db_path" yaml:"db_path"`
}

type LoggingConfig struct {
	// Level is "info" (default), "debug" or "trace".
	Level string `json:"level" yaml:"level"`
}

func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Workers:         4,
			InitialStrength: nn.DefaultInitialStrength,
			RewardBound:     network.DefaultRewardBound,
			ClockInterval:   10 * time.Millisecond,
		},
		Storage: StorageConfig{
			Kind:   storage.DefaultStoreKind(),
			DBPath: "spikegrid.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path when it is non-empty and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.Storage.DBPath = os.ExpandEnv(cfg.Storage.DBPath)
	return cfg, nil
}

// ApplyEnvOverrides overlays SPIKEGRID_* variables. Malformed numbers are
// reported rather than ignored.
func ApplyEnvOverrides(cfg *Config) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"SPIKEGRID_WORKERS", &cfg.Simulation.Workers},
		{"SPIKEGRID_MAX_SHELL_LEVEL", &cfg.Simulation.MaxShellLevel},
		{"SPIKEGRID_INITIAL_STRENGTH", &cfg.Simulation.InitialStrength},
		{"SPIKEGRID_REWARD_BOUND", &cfg.Simulation.RewardBound},
	}
	for _, o := range ints {
		v, ok := lookupEnv(o.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", o.key, err)
		}
		*o.dst = n
	}

	if v, ok := lookupEnv("SPIKEGRID_SEED"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SPIKEGRID_SEED: %w", err)
		}
		cfg.Simulation.Seed = n
	}
	if v, ok := lookupEnv("SPIKEGRID_CLOCK_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SPIKEGRID_CLOCK_INTERVAL: %w", err)
		}
		cfg.Simulation.ClockInterval = d
	}
	if v, ok := lookupEnv("SPIKEGRID_STORE"); ok {
		cfg.Storage.Kind = v
	}
	if v, ok := lookupEnv("SPIKEGRID_DB_PATH"); ok {
		cfg.Storage.DBPath = v
	}
	if v, ok := lookupEnv("SPIKEGRID_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (c *Config) Validate() error {
	if c.Simulation.Workers <= 0 {
		return fmt.Errorf("workers must be > 0, got %d", c.Simulation.Workers)
	}
	if c.Simulation.MaxShellLevel < 0 {
		return fmt.Errorf("max_shell_level must be >= 0, got %d", c.Simulation.MaxShellLevel)
	}
	if c.Simulation.InitialStrength < -nn.StrengthLimit || c.Simulation.InitialStrength > nn.StrengthLimit {
		return fmt.Errorf("initial_strength must be within [-%d, %d], got %d", nn.StrengthLimit, nn.StrengthLimit, c.Simulation.InitialStrength)
	}
	if c.Simulation.RewardBound <= 0 {
		return fmt.Errorf("reward_bound must be > 0, got %d", c.Simulation.RewardBound)
	}
	if c.Simulation.ClockInterval <= 0 {
		return fmt.Errorf("clock_interval must be > 0, got %v", c.Simulation.ClockInterval)
	}
	if !storage.ValidStoreKind(c.Storage.Kind) {
		return fmt.Errorf("invalid store kind: %s (valid: memory, sqlite)", c.Storage.Kind)
	}
	if c.Storage.Kind == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("db_path is required for the sqlite store")
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: trace, debug, info, warn, error, or empty for default)", c.Logging.Level)
	}
	return nil
}

// NetworkConfig maps the simulation section onto a network configuration.
func (c *Config) NetworkConfig() network.Config {
	return network.Config{
		Workers:         c.Simulation.Workers,
		MaxShellLevel:   c.Simulation.MaxShellLevel,
		InitialStrength: c.Simulation.InitialStrength,
		RewardBound:     c.Simulation.RewardBound,
		Seed:            c.Simulation.Seed,
	}
}
