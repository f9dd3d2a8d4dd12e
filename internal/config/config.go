package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the global weld configuration.
type Config struct {
	Pump    PumpConfig          `yaml:"pump"`
	Audit   AuditConfig         `yaml:"audit"`
	Log     LogConfig           `yaml:"log"`
	Filters map[string][]string `yaml:"filters"`
}

// PumpConfig controls the execution pumps and the scheduler loop.
type PumpConfig struct {
	ReadBuffer   int    `yaml:"read_buffer"`
	PollInterval string `yaml:"poll_interval"`
}

// DefaultPollInterval is used when no poll_interval is configured.
const DefaultPollInterval = 2 * time.Millisecond

// PollIntervalDuration parses the configured idle-tick sleep or returns the
// default.
func (p *PumpConfig) PollIntervalDuration() time.Duration {
	if p.PollInterval != "" {
		dur, err := time.ParseDuration(p.PollInterval)
		if err == nil {
			return dur
		}
	}
	return DefaultPollInterval
}

// AuditConfig controls audit log settings.
type AuditConfig struct {
	Path      string `yaml:"path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	// Level is a zap level name ("debug", "info", ...). Empty or "off"
	// disables logging.
	Level string `yaml:"level"`
}

// NewLogger builds a zap logger at the configured level, writing to stderr.
func (l LogConfig) NewLogger() (*zap.Logger, error) {
	if l.Level == "" || l.Level == "off" {
		return zap.NewNop(), nil
	}
	lvl, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Pump: PumpConfig{
			ReadBuffer: 32 * 1024,
		},
		Audit: AuditConfig{
			Path:      filepath.Join(home, ".local", "share", "weld", "audit.jsonl"),
			MaxSizeMB: 100,
		},
	}
}

// Load reads the config from the standard location
// (~/.config/weld/config.yaml). If the file doesn't exist, returns the
// default config.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	path := filepath.Join(home, ".config", "weld", "config.yaml")
	return LoadFrom(path)
}

// LoadFrom reads the config from the given path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	// Expand ~ in audit path.
	if cfg.Audit.Path != "" && cfg.Audit.Path[0] == '~' {
		home, _ := os.UserHomeDir()
		cfg.Audit.Path = filepath.Join(home, cfg.Audit.Path[1:])
	}

	return cfg, nil
}

// ConfigPath returns the standard config file path.
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "weld", "config.yaml")
}
