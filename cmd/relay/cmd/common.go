package cmd

import (
	"os"

	"github.com/spf13/viper"

	"github.com/relayforge/relay/internal/backend"
	"github.com/relayforge/relay/internal/backend/script"
	"github.com/relayforge/relay/internal/config"
	"github.com/relayforge/relay/internal/core"
	"github.com/relayforge/relay/internal/logging"
)

// loadConfig loads configuration honoring flags, env and config files.
func loadConfig() (*config.Config, *logging.Logger, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader = loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logger := logging.New(logCfg)

	return cfg, logger, nil
}

// buildRegistry creates the backend registry with the script backend
// configured from cfg.
func buildRegistry(cfg *config.Config, logger *logging.Logger) *backend.Registry {
	reg := backend.NewRegistry(logger)
	cwd, _ := os.Getwd()
	reg.Configure(script.BackendName, core.BackendConfig{
		Name:           script.BackendName,
		ScriptsDir:     cfg.Scripts.Dir,
		ProjectDir:     cwd,
		Model:          cfg.Backend.Model,
		Timeout:        cfg.Backend.Timeout,
		RawPassthrough: cfg.Backend.RawPassthrough,
		Preflight:      cfg.Backend.Preflight,
		Env:            cfg.Backend.Env,
	})
	return reg
}
