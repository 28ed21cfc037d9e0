package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/bcl"
	"github.com/oarkflow/dipper"
	"github.com/oarkflow/json"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/coderun"
)

// Config describes an engine, the values it starts with and, optionally,
// the script it runs and the HTTP host that serves it.
type Config struct {
	Name    string         `json:"name" yaml:"name"`
	Runtime RuntimeSpec    `json:"runtime" yaml:"runtime"`
	Cache   CacheSpec      `json:"cache" yaml:"cache"`
	Values  []ValueSpec    `json:"values" yaml:"values"`
	State   map[string]any `json:"state" yaml:"state"`
	Script  string         `json:"script" yaml:"script"`
	Server  ServerSpec     `json:"server" yaml:"server"`
}

type RuntimeSpec struct {
	LoopLimit          int  `json:"loop_limit" yaml:"loop_limit"`
	MaxExpressionDepth int  `json:"max_expression_depth" yaml:"max_expression_depth"`
	LogExecution       bool `json:"log_execution" yaml:"log_execution"`
}

type CacheSpec struct {
	Enabled     bool `json:"enabled" yaml:"enabled"`
	MaxPrograms int  `json:"max_programs" yaml:"max_programs"`
}

// ValueSpec binds a host value. Exactly one of Value and Path is set;
// Path is a dotted lookup into Config.State.
type ValueSpec struct {
	Name     string `json:"name" yaml:"name"`
	Value    any    `json:"value" yaml:"value"`
	Path     string `json:"path" yaml:"path"`
	ReadOnly bool   `json:"read_only" yaml:"read_only"`
}

type ServerSpec struct {
	Addr        string `json:"addr" yaml:"addr"`
	MaxSessions int    `json:"max_sessions" yaml:"max_sessions"`
	TickRate    int    `json:"tick_rate" yaml:"tick_rate"`
}

// Load reads a config file, choosing the decoder by extension.
func Load(path string) (*Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return loadConfig(path, yaml.Unmarshal)
	case ".json":
		return loadConfig(path, func(data []byte, v any) error {
			return json.Unmarshal(data, v)
		})
	case ".bcl":
		return loadConfig(path, func(data []byte, v any) error {
			_, err := bcl.Unmarshal(data, v)
			return err
		})
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
}

// LoadFromString decodes raw config text, useful for tests.
func LoadFromString(content, format string) (*Config, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return decodeConfig([]byte(content), yaml.Unmarshal)
	case "json":
		return decodeConfig([]byte(content), func(data []byte, v any) error {
			return json.Unmarshal(data, v)
		})
	case "bcl":
		return decodeConfig([]byte(content), func(data []byte, v any) error {
			_, err := bcl.Unmarshal(data, v)
			return err
		})
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Runtime.LoopLimit < 0 {
		return fmt.Errorf("runtime.loop_limit must not be negative")
	}
	if cfg.Runtime.MaxExpressionDepth < 0 {
		return fmt.Errorf("runtime.max_expression_depth must not be negative")
	}
	if cfg.Cache.Enabled && cfg.Cache.MaxPrograms <= 0 {
		return fmt.Errorf("cache.max_programs must be positive when the cache is enabled")
	}
	if cfg.Server.MaxSessions < 0 || cfg.Server.TickRate < 0 {
		return fmt.Errorf("server limits must not be negative")
	}
	seen := make(map[string]bool, len(cfg.Values))
	for idx, v := range cfg.Values {
		if v.Name == "" {
			return fmt.Errorf("value at index %d is missing a name", idx)
		}
		if seen[v.Name] {
			return fmt.Errorf("value %s is declared twice", v.Name)
		}
		seen[v.Name] = true
		if v.Path != "" && v.Value != nil {
			return fmt.Errorf("value %s sets both value and path", v.Name)
		}
		if v.Path == "" && v.Value == nil {
			return fmt.Errorf("value %s needs a value or a path", v.Name)
		}
	}
	return nil
}

// RuntimeConfig converts the runtime section, filling zero fields from
// the process defaults.
func (cfg *Config) RuntimeConfig() coderun.RuntimeConfig {
	rc := coderun.GetRuntimeConfig()
	if cfg.Runtime.LoopLimit > 0 {
		rc.LoopLimit = cfg.Runtime.LoopLimit
	}
	if cfg.Runtime.MaxExpressionDepth > 0 {
		rc.MaxExpressionDepth = cfg.Runtime.MaxExpressionDepth
	}
	rc.LogExecution = cfg.Runtime.LogExecution
	return rc
}

// Options returns the engine options the config describes. A program
// cache is created when the cache section enables one.
func (cfg *Config) Options() ([]coderun.Option, error) {
	opts := []coderun.Option{
		coderun.WithName(cfg.Name),
		coderun.WithRuntimeConfig(cfg.RuntimeConfig()),
	}
	if cfg.Cache.Enabled {
		cache, err := coderun.NewProgramCache(cfg.Cache.MaxPrograms)
		if err != nil {
			return nil, err
		}
		opts = append(opts, coderun.WithProgramCache(cache))
	}
	return opts, nil
}

// Apply registers the configured values in e. Read-write values behave
// like script variables and are dropped by the next Compile, so values a
// script must see are usually marked read_only.
func (cfg *Config) Apply(e *coderun.Engine) error {
	for _, v := range cfg.Values {
		value, err := cfg.resolve(v)
		if err != nil {
			return err
		}
		perm := coderun.ReadWrite
		if v.ReadOnly {
			perm = coderun.ReadOnly
		}
		if err := e.RegisterValue(v.Name, value, perm); err != nil {
			return fmt.Errorf("value %s: %w", v.Name, err)
		}
	}
	return nil
}

func (cfg *Config) resolve(v ValueSpec) (any, error) {
	if v.Path == "" {
		return v.Value, nil
	}
	value, err := dipper.Get(cfg.State, v.Path)
	if err != nil {
		return nil, fmt.Errorf("value %s: path %s: %w", v.Name, v.Path, err)
	}
	if value == nil {
		return nil, fmt.Errorf("value %s: path %s resolved to nothing", v.Name, v.Path)
	}
	return value, nil
}

func loadConfig(path string, fn func([]byte, any) error) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeConfig(raw, fn)
}

func decodeConfig(data []byte, fn func([]byte, any) error) (*Config, error) {
	var cfg Config
	if err := fn(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.State == nil {
		cfg.State = make(map[string]any)
	}
	return &cfg, cfg.Validate()
}
