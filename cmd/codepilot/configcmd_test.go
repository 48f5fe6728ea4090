package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigCommandPrintsLoadedSettings(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "codepilot.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
ai_provider: claude
model: claude-sonnet-4-5
api_key: test-key
preset_id: printing-focused
max_attempts: 3
`), 0o644))

	configPath = yamlPath
	envPath = filepath.Join(dir, ".env")
	t.Cleanup(func() { configPath = "codepilot.yaml"; envPath = ".env" })

	var out bytes.Buffer
	configCmd.SetOut(&out)
	configCmd.SetArgs(nil)
	require.NoError(t, configCmd.RunE(configCmd, nil))

	require.Contains(t, out.String(), "provider:            claude")
	require.Contains(t, out.String(), "preset_id:           printing-focused")
	require.NotContains(t, out.String(), "test-key")
}

func TestConfigCommandRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "codepilot.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
ai_provider: not-a-real-provider
`), 0o644))

	configPath = yamlPath
	envPath = filepath.Join(dir, ".env")
	t.Cleanup(func() { configPath = "codepilot.yaml"; envPath = ".env" })

	var out bytes.Buffer
	configCmd.SetOut(&out)
	err := configCmd.RunE(configCmd, nil)
	require.Error(t, err)
}
