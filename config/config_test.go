package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CODEPILOT_AI_PROVIDER", "CODEPILOT_MODEL", "CODEPILOT_API_KEY",
		"CODEPILOT_BASE_URL", "CODEPILOT_PRESET_ID", "CODEPILOT_ENABLE_CODE_REVIEW",
		"CODEPILOT_ENABLE_CONSENSUS", "CODEPILOT_MAX_ATTEMPTS", "CODEPILOT_AUTO_EXECUTE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
ai_provider: claude
model: claude-sonnet-4
api_key: sk-test
max_attempts: 2
enable_consensus: true
`), 0644))

	cfg, err := Load(yamlPath, filepath.Join(dir, ".env"))
	require.NoError(t, err)
	require.Equal(t, ProviderClaude, cfg.Provider)
	require.Equal(t, "claude-sonnet-4", cfg.Model)
	require.Equal(t, 2, cfg.MaxAttempts)
	require.True(t, cfg.EnableConsensus)
	require.Equal(t, "default", cfg.PresetID)
}

func TestEnvOverridesYAMLFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
ai_provider: claude
model: claude-sonnet-4
api_key: sk-file
`), 0644))
	t.Setenv("CODEPILOT_API_KEY", "sk-env")
	t.Setenv("CODEPILOT_MAX_ATTEMPTS", "5")

	cfg, err := Load(yamlPath, filepath.Join(dir, ".env"))
	require.NoError(t, err)
	require.Equal(t, "sk-env", cfg.APIKey)
	require.Equal(t, 5, cfg.MaxAttempts)
}

func TestEnvCanExplicitlyDisableABooleanYAMLFileEnabled(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
ai_provider: claude
model: claude-sonnet-4
api_key: sk-file
enable_consensus: true
`), 0644))
	t.Setenv("CODEPILOT_ENABLE_CONSENSUS", "false")

	cfg, err := Load(yamlPath, filepath.Join(dir, ".env"))
	require.NoError(t, err)
	require.False(t, cfg.EnableConsensus)
}

func TestValidateRejectsUnrecognizedProvider(t *testing.T) {
	cfg := Config{Provider: "bogus", Model: "m", APIKey: "k", PresetID: "default", MaxAttempts: 1}
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsOutOfRangeMaxAttempts(t *testing.T) {
	cfg := Config{Provider: ProviderClaude, Model: "m", APIKey: "k", PresetID: "default", MaxAttempts: 6}
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateAllowsMissingAPIKeyForBedrockScheme(t *testing.T) {
	cfg := Config{
		Provider: ProviderClaude, Model: "anthropic.claude-3-sonnet", PresetID: "default",
		MaxAttempts: 1, BaseURL: "bedrock://us-east-1",
	}
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnrecognizedPreset(t *testing.T) {
	cfg := Config{Provider: ProviderClaude, Model: "m", APIKey: "k", PresetID: "nope", MaxAttempts: 1}
	err := cfg.Validate()
	require.Error(t, err)
}
