package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Simulation.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Simulation.Workers)
	}
	if cfg.Simulation.MaxShellLevel != 0 {
		t.Errorf("expected unbounded shell search, got %d", cfg.Simulation.MaxShellLevel)
	}
	if cfg.Simulation.InitialStrength != 1 || cfg.Simulation.RewardBound != 1000 {
		t.Errorf("unexpected simulation defaults: %+v", cfg.Simulation)
	}
	if cfg.Simulation.ClockInterval != 10*time.Millisecond {
		t.Errorf("expected 10ms clock, got %v", cfg.Simulation.ClockInterval)
	}
	if cfg.Storage.Kind != "memory" {
		t.Errorf("expected memory store, got %q", cfg.Storage.Kind)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected info level, got %q", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spikegrid.yaml")
	content := `
simulation:
  workers: 8
  max_shell_level: 5
  seed: 42
  clock_interval: 25ms
storage:
  kind: sqlite
  db_path: /tmp/grid.db
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Simulation.Workers != 8 || cfg.Simulation.MaxShellLevel != 5 || cfg.Simulation.Seed != 42 {
		t.Fatalf("unexpected simulation: %+v", cfg.Simulation)
	}
	if cfg.Simulation.ClockInterval != 25*time.Millisecond {
		t.Fatalf("expected 25ms clock, got %v", cfg.Simulation.ClockInterval)
	}
	if cfg.Simulation.RewardBound != 1000 {
		t.Fatalf("expected unset fields to keep defaults, got %d", cfg.Simulation.RewardBound)
	}
	if cfg.Storage.Kind != "sqlite" || cfg.Storage.DBPath != "/tmp/grid.db" {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected level: %q", cfg.Logging.Level)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("simulation: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil || !strings.Contains(err.Error(), "parsing config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SPIKEGRID_WORKERS", "16")
	t.Setenv("SPIKEGRID_SEED", "-9")
	t.Setenv("SPIKEGRID_CLOCK_INTERVAL", "1s")
	t.Setenv("SPIKEGRID_STORE", "sqlite")
	t.Setenv("SPIKEGRID_DB_PATH", "override.db")
	t.Setenv("SPIKEGRID_LOG_LEVEL", "trace")

	cfg := Default()
	if err := ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Simulation.Workers != 16 || cfg.Simulation.Seed != -9 || cfg.Simulation.ClockInterval != time.Second {
		t.Fatalf("unexpected simulation: %+v", cfg.Simulation)
	}
	if cfg.Storage.Kind != "sqlite" || cfg.Storage.DBPath != "override.db" || cfg.Logging.Level != "trace" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestApplyEnvOverridesRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("SPIKEGRID_REWARD_BOUND", "lots")
	if err := ApplyEnvOverrides(Default()); err == nil || !strings.Contains(err.Error(), "SPIKEGRID_REWARD_BOUND") {
		t.Fatalf("expected reward bound error, got %v", err)
	}
}

func TestLoadAppliesEnvAfterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spikegrid.yaml")
	if err := os.WriteFile(path, []byte("simulation:\n  workers: 3\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SPIKEGRID_WORKERS", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Simulation.Workers != 5 {
		t.Fatalf("expected env to win, got %d", cfg.Simulation.Workers)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero workers", func(c *Config) { c.Simulation.Workers = 0 }, "workers"},
		{"negative shell level", func(c *Config) { c.Simulation.MaxShellLevel = -1 }, "max_shell_level"},
		{"strength out of range", func(c *Config) { c.Simulation.InitialStrength = 2000 }, "initial_strength"},
		{"zero reward bound", func(c *Config) { c.Simulation.RewardBound = 0 }, "reward_bound"},
		{"zero clock", func(c *Config) { c.Simulation.ClockInterval = 0 }, "clock_interval"},
		{"unknown store", func(c *Config) { c.Storage.Kind = "postgres" }, "store kind"},
		{"sqlite without path", func(c *Config) { c.Storage.Kind = "sqlite"; c.Storage.DBPath = "" }, "db_path"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestNetworkConfig(t *testing.T) {
	cfg := Default()
	cfg.Simulation.Seed = 7
	cfg.Simulation.MaxShellLevel = 3
	nc := cfg.NetworkConfig()
	if nc.Workers != 4 || nc.Seed != 7 || nc.MaxShellLevel != 3 || nc.RewardBound != 1000 {
		t.Fatalf("unexpected network config: %+v", nc)
	}
}
