package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// validConfig returns a valid configuration for testing.
func validConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Scripts: ScriptsConfig{
			Dir: ".relay/scripts",
		},
		Backend: BackendConfig{
			Default: "script",
			Timeout: 12 * time.Hour,
		},
		History: HistoryConfig{
			Path: ".relay/history.db",
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_LogLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Log.Level = level
		if err := Validate(cfg); err != nil {
			t.Errorf("Validate() with level %q error = %v", level, err)
		}
	}

	cfg := validConfig()
	cfg.Log.Level = "verbose"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() error = nil for bad log level")
	}
	if !strings.Contains(err.Error(), "log level") {
		t.Errorf("error = %v, want log level mention", err)
	}
}

func TestValidate_LogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Format = "xml"
	if err := Validate(cfg); err == nil {
		t.Error("Validate() error = nil for bad log format")
	}
}

func TestValidate_EmptyScriptsDir(t *testing.T) {
	cfg := validConfig()
	cfg.Scripts.Dir = ""
	if err := Validate(cfg); err == nil {
		t.Error("Validate() error = nil for empty scripts dir")
	}
}

func TestValidate_NegativeTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Backend.Timeout = -time.Second
	if err := Validate(cfg); err == nil {
		t.Error("Validate() error = nil for negative timeout")
	}
}

func TestLoader_Defaults(t *testing.T) {
	withWorkdir(t, t.TempDir())

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Scripts.Dir != ".relay/scripts" {
		t.Errorf("Scripts.Dir = %q", cfg.Scripts.Dir)
	}
	if cfg.Backend.Default != "script" {
		t.Errorf("Backend.Default = %q", cfg.Backend.Default)
	}
	if cfg.Backend.Timeout != 12*time.Hour {
		t.Errorf("Backend.Timeout = %v, want 12h", cfg.Backend.Timeout)
	}
	if cfg.History.Path != ".relay/history.db" {
		t.Errorf("History.Path = %q", cfg.History.Path)
	}
}

func TestLoader_ProjectConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
log:
  level: debug
scripts:
  dir: custom/scripts
backend:
  timeout: 30m
  raw_passthrough: true
`
	if err := os.WriteFile(filepath.Join(dir, ".relay.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	withWorkdir(t, dir)

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Scripts.Dir != "custom/scripts" {
		t.Errorf("Scripts.Dir = %q", cfg.Scripts.Dir)
	}
	if cfg.Backend.Timeout != 30*time.Minute {
		t.Errorf("Backend.Timeout = %v, want 30m", cfg.Backend.Timeout)
	}
	if !cfg.Backend.RawPassthrough {
		t.Error("Backend.RawPassthrough = false, want true")
	}
}

func TestLoader_ExplicitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader().WithConfigFile(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoader_EnvOverride(t *testing.T) {
	withWorkdir(t, t.TempDir())
	t.Setenv("RELAY_LOG_LEVEL", "error")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want env override", cfg.Log.Level)
	}
}

func TestLoader_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".relay.yaml"),
		[]byte("log:\n  level: shouty\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	withWorkdir(t, dir)

	if _, err := NewLoader().Load(); err == nil {
		t.Error("Load() error = nil for invalid config")
	}
}

// DefaultConfigYAML must stay parseable and valid, it is what init writes.
func TestDefaultConfigYAML_Loads(t *testing.T) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(DefaultConfigYAML), &raw); err != nil {
		t.Fatalf("default config does not parse: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".relay.yaml")
	if err := os.WriteFile(path, []byte(DefaultConfigYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewLoader().WithConfigFile(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func withWorkdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
