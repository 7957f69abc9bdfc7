// Package config loads ce2seq settings from defaults, an optional YAML or
// TOML file and CE2SEQ_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akr81/CounterExample2Sequence/internal/logging"
	"github.com/akr81/CounterExample2Sequence/internal/plantuml"
	"github.com/akr81/CounterExample2Sequence/internal/table"
	"github.com/akr81/CounterExample2Sequence/internal/trace"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CE2SEQ_"

// ErrMissingFile is returned when an explicitly named config file cannot be read
var ErrMissingFile = errors.New("cannot read config file")

// Config holds all settings
type Config struct {
	Dialect string        `yaml:"dialect" toml:"dialect" env:"DIALECT"`
	Init    string        `yaml:"init" toml:"init" env:"INIT"` // Promela model with initial values
	Table   TableConfig   `yaml:"table" toml:"table" envPrefix:"TABLE_"`
	Diagram DiagramConfig `yaml:"diagram" toml:"diagram" envPrefix:"DIAGRAM_"`
	Sparse  SparseConfig  `yaml:"sparse" toml:"sparse" envPrefix:"SPARSE_"`
	Store   StoreConfig   `yaml:"store" toml:"store" envPrefix:"STORE_"`
	Log     LogConfig     `yaml:"log" toml:"log" envPrefix:"LOG_"`
}

// TableConfig controls the table writer
type TableConfig struct {
	Output string `yaml:"output" toml:"output" env:"OUTPUT"`
	Format string `yaml:"format" toml:"format" env:"FORMAT"` // Empty infers from Output
}

// DiagramConfig controls diagram rendering
type DiagramConfig struct {
	Server  string        `yaml:"server" toml:"server" env:"SERVER"`
	Output  string        `yaml:"output" toml:"output" env:"OUTPUT"`
	Scale   float64       `yaml:"scale" toml:"scale" env:"SCALE"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout" env:"TIMEOUT"`
	Fetch   bool          `yaml:"fetch" toml:"fetch" env:"FETCH"`
}

// SparseConfig controls sparse-diff reconstruction
type SparseConfig struct {
	CarryOver bool `yaml:"carry_over" toml:"carry_over" env:"CARRY_OVER"`
}

// StoreConfig locates the run database; an empty Path disables it
type StoreConfig struct {
	Path string `yaml:"path" toml:"path" env:"PATH"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" env:"LEVEL"`
	Format string `yaml:"format" toml:"format" env:"FORMAT"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Dialect: string(trace.DialectAuto),
		Table: TableConfig{
			Output: "variable_table.csv",
		},
		Diagram: DiagramConfig{
			Server:  plantuml.DefaultServer,
			Output:  "sequence_diagram.png",
			Scale:   plantuml.DefaultScale,
			Timeout: plantuml.DefaultTimeout,
			Fetch:   true,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// ResolvePath returns the config file named by flag, else by CE2SEQ_CONFIG
func ResolvePath(flag string, environ []string) string {
	if flag != "" {
		return flag
	}
	for _, kv := range environ {
		if strings.HasPrefix(kv, EnvPrefix+"CONFIG=") {
			return strings.TrimPrefix(kv, EnvPrefix+"CONFIG=")
		}
	}
	return ""
}

// Load applies the file at path (if any) and then environ on top of the defaults
func Load(path string, environ []string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrMissingFile, path, err)
		}
		if err := Decode(data, filepath.Ext(path), cfg); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(cfg, environ); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// Decode parses a config document into cfg based on the file extension
func Decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", ext)
	}
	return nil
}

// ApplyEnv overrides cfg from CE2SEQ_* entries of environ
func ApplyEnv(cfg *Config, environ []string) error {
	vars := make(map[string]string)
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			vars[k] = v
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars, Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks values that cannot be checked by type alone
func (c *Config) Validate() error {
	if _, err := trace.ParseDialect(c.Dialect); err != nil {
		return err
	}
	if c.Table.Format != "" {
		if _, err := table.ParseFormat(c.Table.Format); err != nil {
			return err
		}
	}
	if c.Diagram.Scale <= 0 {
		return fmt.Errorf("diagram.scale must be positive, got %g", c.Diagram.Scale)
	}
	if c.Diagram.Timeout <= 0 {
		return fmt.Errorf("diagram.timeout must be positive, got %s", c.Diagram.Timeout)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return err
	}
	return nil
}

// TableFormat resolves the table format, inferring it from the output path when unset
func (c *Config) TableFormat() table.Format {
	if c.Table.Format != "" {
		if f, err := table.ParseFormat(c.Table.Format); err == nil {
			return f
		}
	}
	return table.FormatForPath(c.Table.Output)
}

// Logging converts the log settings; call after Validate
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level, _ = logging.ParseLevel(c.Log.Level)
	cfg.Format, _ = logging.ParseFormat(c.Log.Format)
	return cfg
}
