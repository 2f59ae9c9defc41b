package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Scripts ScriptsConfig `mapstructure:"scripts"`
	Backend BackendConfig `mapstructure:"backend"`
	History HistoryConfig `mapstructure:"history"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ScriptsConfig configures where subagent scripts live.
type ScriptsConfig struct {
	Dir string `mapstructure:"dir"`
}

// BackendConfig configures the default backend behavior.
type BackendConfig struct {
	// Default names the backend used when none is requested.
	Default string `mapstructure:"default"`

	// Model is the default model identifier passed to subagents.
	Model string `mapstructure:"model"`

	// Timeout bounds a single execution (Go duration string in YAML).
	Timeout time.Duration `mapstructure:"timeout"`

	// RawPassthrough keeps original structured lines in progress events.
	RawPassthrough bool `mapstructure:"raw_passthrough"`

	// Preflight enables resource checks before each spawn.
	Preflight bool `mapstructure:"preflight"`

	// Env holds backend-level environment overrides.
	Env map[string]string `mapstructure:"env"`
}

// HistoryConfig configures run-history persistence.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables history.
	Path string `mapstructure:"path"`
}
