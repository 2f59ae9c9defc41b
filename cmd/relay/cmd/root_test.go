package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String()
}

func TestRootCommand_Properties(t *testing.T) {
	assert.Equal(t, "relay", rootCmd.Use)
	assert.True(t, rootCmd.SilenceUsage)
	assert.True(t, rootCmd.SilenceErrors)

	for _, name := range []string{"run", "doctor", "history", "version", "init"} {
		found := false
		for _, sub := range rootCmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "subcommand %s not registered", name)
	}
}

func TestHistoryCommand_HasExportSubcommand(t *testing.T) {
	found := false
	for _, sub := range historyCmd.Commands() {
		if sub.Name() == "export" {
			found = true
		}
	}
	assert.True(t, found)
	assert.NotNil(t, historyCmd.PersistentFlags().Lookup("limit"))
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "log-level", "log-format"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "flag %s", name)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("v1.2.3", "abc123", "2026-01-15")

	output := captureStdout(t, func() {
		versionCmd.Run(versionCmd, nil)
	})

	assert.Contains(t, output, "relay")
	assert.Contains(t, output, "v1.2.3")
	assert.Contains(t, output, "abc123")
	assert.Contains(t, output, "2026-01-15")
}

func TestInitCommand(t *testing.T) {
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	defer func() { _ = os.Chdir(oldDir) }()
	require.NoError(t, os.Chdir(tmpDir))

	output := captureStdout(t, func() {
		err := runInit(initCmd, nil)
		assert.NoError(t, err)
	})
	assert.Contains(t, output, ".relay.yaml")

	data, err := os.ReadFile(".relay.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "scripts:")

	info, err := os.Stat(".relay/scripts")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Second run refuses without --force.
	initForce = false
	err = runInit(initCmd, nil)
	assert.Error(t, err)

	initForce = true
	defer func() { initForce = false }()
	_ = captureStdout(t, func() {
		assert.NoError(t, runInit(initCmd, nil))
	})
}

func TestLoadConfig_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	defer func() { _ = os.Chdir(oldDir) }()
	require.NoError(t, os.Chdir(tmpDir))

	viper.Reset()
	cfgFile = ""

	cfg, logger, err := loadConfig()
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, "script", cfg.Backend.Default)
	assert.Equal(t, ".relay/scripts", cfg.Scripts.Dir)
}

func TestBuildRegistry(t *testing.T) {
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	defer func() { _ = os.Chdir(oldDir) }()
	require.NoError(t, os.Chdir(tmpDir))

	viper.Reset()
	cfgFile = ""

	cfg, logger, err := loadConfig()
	require.NoError(t, err)

	reg := buildRegistry(cfg, logger)
	assert.True(t, reg.Has("script"))

	b, err := reg.Get("script")
	require.NoError(t, err)
	assert.Equal(t, "script", b.Name())
}
