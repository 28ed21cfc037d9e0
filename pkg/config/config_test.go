package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oarkflow/coderun"
)

const yamlConfig = `
name: demo
runtime:
  loop_limit: 50
  log_execution: false
cache:
  enabled: true
  max_programs: 16
state:
  player:
    health: 80
    tags: [hero, tank]
values:
  - name: limit
    value: 3
    read_only: true
  - name: health
    path: player.health
    read_only: true
  - name: tags
    path: player.tags
    read_only: true
script: |
  n = 0
  loop n < limit:
      n = n + 1
`

func TestLoadFromStringYAML(t *testing.T) {
	cfg, err := LoadFromString(yamlConfig, "yaml")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Name != "demo" || len(cfg.Values) != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	rc := cfg.RuntimeConfig()
	if rc.LoopLimit != 50 {
		t.Fatalf("expected loop limit 50, got %d", rc.LoopLimit)
	}
	if rc.MaxExpressionDepth != coderun.GetRuntimeConfig().MaxExpressionDepth {
		t.Fatalf("zero depth should fall back to the default, got %d", rc.MaxExpressionDepth)
	}
	if !strings.Contains(cfg.Script, "loop n < limit:") {
		t.Fatalf("script not decoded: %q", cfg.Script)
	}
}

func TestApplyResolvesPaths(t *testing.T) {
	cfg, err := LoadFromString(yamlConfig, "yml")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("options failed: %v", err)
	}
	e, err := coderun.New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := cfg.Apply(e); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if err := e.Compile(cfg.Script); err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	for name, want := range map[string]string{
		"n":      "3",
		"health": "80",
		"tags":   `["hero", "tank"]`,
	} {
		v, ok := e.GetValue(name)
		if !ok || v.Inspect() != want {
			t.Fatalf("%s: expected %s, got %v", name, want, v)
		}
	}
	if !e.Environment().IsReadOnly("health") {
		t.Fatalf("health should be read-only")
	}
}

func TestLoadFromStringJSON(t *testing.T) {
	cfg, err := LoadFromString(`{"runtime":{"max_expression_depth":8},"values":[{"name":"on","value":true}]}`, "json")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.RuntimeConfig().MaxExpressionDepth != 8 {
		t.Fatalf("depth not applied")
	}
	e, _ := coderun.New()
	if err := cfg.Apply(e); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if e.Environment().IsReadOnly("on") {
		t.Fatalf("values are read-write unless marked")
	}
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	if err := os.WriteFile(path, []byte(yamlConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, err := Load(filepath.Join(dir, "engine.toml")); err == nil {
		t.Fatalf("expected unsupported format error")
	}
	if _, err := LoadFromString("", "ini"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"negative loop", Config{Runtime: RuntimeSpec{LoopLimit: -1}}, "loop_limit"},
		{"cache size", Config{Cache: CacheSpec{Enabled: true}}, "max_programs"},
		{"missing name", Config{Values: []ValueSpec{{Value: 1}}}, "missing a name"},
		{"duplicate", Config{Values: []ValueSpec{{Name: "a", Value: 1}, {Name: "a", Value: 2}}}, "declared twice"},
		{"both", Config{Values: []ValueSpec{{Name: "a", Value: 1, Path: "x"}}}, "both value and path"},
		{"neither", Config{Values: []ValueSpec{{Name: "a"}}}, "needs a value or a path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
	var nilCfg *Config
	if nilCfg.Validate() == nil {
		t.Fatalf("nil config should not validate")
	}
}

func TestApplyMissingPath(t *testing.T) {
	cfg := &Config{
		State:  map[string]any{"a": map[string]any{"b": 1}},
		Values: []ValueSpec{{Name: "x", Path: "a.c"}},
	}
	e, _ := coderun.New()
	if err := cfg.Apply(e); err == nil {
		t.Fatalf("expected unresolved path to fail")
	}
}
