package config

import (
	"fmt"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

// Validate checks configuration for invalid values.
func Validate(cfg *Config) error {
	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level %q (debug, info, warn, error)", cfg.Log.Level)
	}
	if !validLogFormats[cfg.Log.Format] {
		return fmt.Errorf("invalid log format %q (auto, text, json)", cfg.Log.Format)
	}
	if cfg.Scripts.Dir == "" {
		return fmt.Errorf("scripts.dir must not be empty")
	}
	if cfg.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}
	return nil
}
