// Package config handles configuration parsing for termengine.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/acolita/termengine/internal/adapters/realfs"
	"github.com/acolita/termengine/internal/ports"
	"gopkg.in/yaml.v3"
)

// Limits applied by Validate.
const (
	MaxRows = 1000
	MaxCols = 1000

	MinChunkSize = 64
	MaxChunkSize = 1 << 20
)

// DefaultConfigPath returns the default config file path:
// $XDG_CONFIG_HOME/termengine/config.yaml or ~/.config/termengine/config.yaml
func DefaultConfigPath(fsys ...ports.FileSystem) string {
	f := pick(fsys)
	dir := f.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := f.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "termengine", "config.yaml")
}

// Config represents the top-level configuration.
type Config struct {
	Shell     ShellConfig     `yaml:"shell"`
	Terminal  TerminalConfig  `yaml:"terminal"`
	Runner    RunnerConfig    `yaml:"runner"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
	Recording RecordingConfig `yaml:"recording"`
}

// ShellConfig defines how interactive shells are started.
type ShellConfig struct {
	Path string            `yaml:"path"` // custom shell path (overrides detection)
	Args []string          `yaml:"args"` // arguments for the configured shell
	Env  map[string]string `yaml:"env"`  // extra environment for shells and commands
}

// TerminalConfig defines the PTY presented to shells.
type TerminalConfig struct {
	Rows int    `yaml:"rows"`
	Cols int    `yaml:"cols"`
	Term string `yaml:"term"` // TERM exported to the child
}

// RunnerConfig defines one-shot command execution settings.
type RunnerConfig struct {
	Timeout   time.Duration `yaml:"timeout"`    // default per-command limit; 0 means none
	ChunkSize int           `yaml:"chunk_size"` // longest output chunk in bytes
}

// SecurityConfig defines command and directory policy.
type SecurityConfig struct {
	CommandBlocklist []string `yaml:"command_blocklist"` // Regex patterns for blocked commands
	CommandAllowlist []string `yaml:"command_allowlist"` // If set, only these patterns allowed
	AllowedDirs      []string `yaml:"allowed_dirs"`      // Glob patterns for working directories
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // "debug", "info", "warn", "error"
	Sanitize bool   `yaml:"sanitize"` // sanitize sensitive data from logs
}

// RecordingConfig defines session recording settings.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // enable session recording
	Path      string `yaml:"path"`       // directory to store recordings
	MaskInput bool   `yaml:"mask_input"` // record input as asterisks
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Terminal: TerminalConfig{
			Rows: 24,
			Cols: 80,
			Term: "xterm-256color",
		},
		Runner: RunnerConfig{
			ChunkSize: 4096,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Sanitize: true,
		},
		Recording: RecordingConfig{
			MaskInput: true,
		},
	}
}

func pick(fsys []ports.FileSystem) ports.FileSystem {
	if len(fsys) > 0 && fsys[0] != nil {
		return fsys[0]
	}
	return realfs.New()
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
// An optional FileSystem can be passed for testing; if omitted, the real OS is used.
func Load(path string, fsys ...ports.FileSystem) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := pick(fsys).ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Validate rejects settings that cannot work and clamps the rest into range.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging level %q", c.Logging.Level)
	}

	if c.Terminal.Rows <= 0 {
		c.Terminal.Rows = 24
	}
	if c.Terminal.Cols <= 0 {
		c.Terminal.Cols = 80
	}
	c.Terminal.Rows = min(c.Terminal.Rows, MaxRows)
	c.Terminal.Cols = min(c.Terminal.Cols, MaxCols)

	if c.Runner.Timeout < 0 {
		c.Runner.Timeout = 0
	}
	if c.Runner.ChunkSize <= 0 {
		c.Runner.ChunkSize = 4096
	}
	c.Runner.ChunkSize = max(MinChunkSize, min(c.Runner.ChunkSize, MaxChunkSize))

	if c.Recording.Enabled && c.Recording.Path == "" {
		return errors.New("recording enabled without a path")
	}

	return nil
}

// Save writes the configuration to a YAML file. The file is replaced
// atomically through a temporary file in the same directory.
// An optional FileSystem can be passed for testing; if omitted, the real OS is used.
func Save(cfg *Config, path string, fsys ...ports.FileSystem) error {
	f := pick(fsys)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := f.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := f.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := f.Rename(tmp, path); err != nil {
		_ = f.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
