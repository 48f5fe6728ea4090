// Package config loads and validates the recognized configuration options
// (spec §6.6) and builds the model.Client they select. Grounded on
// haricheung-agentic-shell/cmd/agsh/main.go's env-var-driven client wiring:
// godotenv.Load first, then environment variables override a YAML file,
// mirroring that repo's "{TIER}_{KEY} falls back to OPENAI_{KEY}" shape
// generalized here to "env overrides file" for every recognized option.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cadforge/codepilot/model"
	"github.com/cadforge/codepilot/model/anthropic"
	"github.com/cadforge/codepilot/model/bedrock"
	"github.com/cadforge/codepilot/model/openai"
	"github.com/cadforge/codepilot/telemetry"
)

// Provider is the enumerated ai_provider value (spec §6.6).
type Provider string

const (
	ProviderClaude   Provider = "claude"
	ProviderOpenAI   Provider = "openai"
	ProviderGemini   Provider = "gemini"
	ProviderDeepSeek Provider = "deepseek"
	ProviderQwen     Provider = "qwen"
	ProviderKimi     Provider = "kimi"
	ProviderOllama   Provider = "ollama"
	ProviderRunPod   Provider = "runpod"
)

// openAICompatible is the subset of Provider values served by the same
// OpenAI-compatible Chat Completions adapter, distinguished only by
// BaseURL (spec §4 domain stack, model/openai).
var openAICompatible = map[Provider]bool{
	ProviderOpenAI:   true,
	ProviderDeepSeek: true,
	ProviderQwen:     true,
	ProviderKimi:     true,
	ProviderOllama:   true,
	ProviderRunPod:   true,
}

// defaultBaseURL gives each OpenAI-compatible provider a sane default
// endpoint when BaseURL is left unset. ollama and runpod have no universal
// hosted default and must set BaseURL explicitly.
var defaultBaseURL = map[Provider]string{
	ProviderDeepSeek: "https://api.deepseek.com/v1",
	ProviderQwen:     "https://dashscope.aliyuncs.com/compatible-mode/v1",
	ProviderKimi:     "https://api.moonshot.cn/v1",
}

const bedrockScheme = "bedrock://"

// Config is the validated result of every recognized option in spec §6.6.
type Config struct {
	Provider         Provider `yaml:"ai_provider"`
	Model            string   `yaml:"model"`
	APIKey           string   `yaml:"api_key"`
	BaseURL          string   `yaml:"base_url"`
	PresetID         string   `yaml:"preset_id"`
	EnableCodeReview bool     `yaml:"enable_code_review"`
	EnableConsensus  bool     `yaml:"enable_consensus"`
	MaxAttempts      int      `yaml:"max_attempts"`
	AutoExecute      bool     `yaml:"auto_execute"`
}

var validPresets = map[string]bool{
	"default": true, "printing-focused": true, "cnc-focused": true,
}

// overlay mirrors Config for merge purposes, but the three boolean options
// are *bool so merge can tell "not set by this layer" (nil) apart from
// "explicitly set to false" — a plain bool can't, which let an env override
// of e.g. CODEPILOT_ENABLE_CONSENSUS=false silently fail to turn off a
// setting a file layer had enabled.
type overlay struct {
	Provider         Provider `yaml:"ai_provider"`
	Model            string   `yaml:"model"`
	APIKey           string   `yaml:"api_key"`
	BaseURL          string   `yaml:"base_url"`
	PresetID         string   `yaml:"preset_id"`
	EnableCodeReview *bool    `yaml:"enable_code_review"`
	EnableConsensus  *bool    `yaml:"enable_consensus"`
	MaxAttempts      int      `yaml:"max_attempts"`
	AutoExecute      *bool    `yaml:"auto_execute"`
}

// Load reads env-var overlaid configuration: a YAML file at yamlPath (if
// non-empty and present) overlaid by environment variables. A .env file at
// envPath (if present, via godotenv — missing is not an error) is loaded
// into the process environment first, without replacing variables that are
// already set, so its values also override the YAML file.
func Load(yamlPath, envPath string) (Config, error) {
	_ = godotenv.Load(envPath)

	cfg := Config{PresetID: "default", MaxAttempts: 3}
	if yamlPath != "" {
		if raw, err := os.ReadFile(yamlPath); err == nil {
			var fileCfg overlay
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", yamlPath, err)
			}
			cfg = merge(cfg, fileCfg)
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", yamlPath, err)
		}
	}

	cfg = merge(cfg, fromEnv())
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv() overlay {
	var c overlay
	c.Provider = Provider(os.Getenv("CODEPILOT_AI_PROVIDER"))
	c.Model = os.Getenv("CODEPILOT_MODEL")
	c.APIKey = os.Getenv("CODEPILOT_API_KEY")
	c.BaseURL = os.Getenv("CODEPILOT_BASE_URL")
	c.PresetID = os.Getenv("CODEPILOT_PRESET_ID")
	if v := os.Getenv("CODEPILOT_ENABLE_CODE_REVIEW"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.EnableCodeReview = &b
		}
	}
	if v := os.Getenv("CODEPILOT_ENABLE_CONSENSUS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.EnableConsensus = &b
		}
	}
	if v := os.Getenv("CODEPILOT_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxAttempts = n
		}
	}
	if v := os.Getenv("CODEPILOT_AUTO_EXECUTE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.AutoExecute = &b
		}
	}
	return c
}

// merge overlays the set fields of override onto base. A *bool field
// overrides base only when non-nil, so an overlay can explicitly force a
// boolean option to false rather than only ever turning it on.
func merge(base Config, override overlay) Config {
	if override.Provider != "" {
		base.Provider = override.Provider
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.APIKey != "" {
		base.APIKey = override.APIKey
	}
	if override.BaseURL != "" {
		base.BaseURL = override.BaseURL
	}
	if override.PresetID != "" {
		base.PresetID = override.PresetID
	}
	if override.MaxAttempts != 0 {
		base.MaxAttempts = override.MaxAttempts
	}
	if override.EnableCodeReview != nil {
		base.EnableCodeReview = *override.EnableCodeReview
	}
	if override.EnableConsensus != nil {
		base.EnableConsensus = *override.EnableConsensus
	}
	if override.AutoExecute != nil {
		base.AutoExecute = *override.AutoExecute
	}
	return base
}

// Validate checks the recognized-options constraints from spec §6.6.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderClaude, ProviderOpenAI, ProviderGemini, ProviderDeepSeek,
		ProviderQwen, ProviderKimi, ProviderOllama, ProviderRunPod:
	default:
		return fmt.Errorf("config: unrecognized ai_provider %q", c.Provider)
	}
	if c.Provider == ProviderGemini {
		return fmt.Errorf("config: ai_provider %q has no adapter in this build", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("config: model is required")
	}
	if c.APIKey == "" && !strings.HasPrefix(c.BaseURL, bedrockScheme) {
		return fmt.Errorf("config: api_key is required")
	}
	if !validPresets[c.PresetID] {
		return fmt.Errorf("config: unrecognized preset_id %q", c.PresetID)
	}
	if c.MaxAttempts < 1 || c.MaxAttempts > 5 {
		return fmt.Errorf("config: max_attempts must be between 1 and 5, got %d", c.MaxAttempts)
	}
	return nil
}

// NewModelClient constructs the model.Client the configuration selects:
// the direct Anthropic adapter for claude, the OpenAI-compatible adapter
// (pointed at the provider's default or overridden BaseURL) for every
// openAICompatible provider, or the Bedrock adapter when BaseURL carries
// the bedrock:// scheme (spec §4 domain stack's additive provider).
func (c Config) NewModelClient(ctx context.Context) (model.Client, error) {
	client, err := c.newModelClient(ctx)
	if err != nil {
		return nil, err
	}
	// 60k TPM is a conservative default shared across providers; the
	// adaptive limiter backs off on rate_limited responses and probes back
	// up on success (model/ratelimit.go), so a provider-specific tier is not
	// required up front.
	return model.NewAdaptiveRateLimiter(60000, 300000).Middleware()(client), nil
}

func (c Config) newModelClient(ctx context.Context) (model.Client, error) {
	if strings.HasPrefix(c.BaseURL, bedrockScheme) {
		return c.newBedrockClient(ctx)
	}
	switch c.Provider {
	case ProviderClaude:
		return anthropic.NewFromAPIKey(c.APIKey, c.Model)
	default:
		if !openAICompatible[c.Provider] {
			return nil, fmt.Errorf("config: provider %q has no OpenAI-compatible adapter", c.Provider)
		}
		baseURL := c.BaseURL
		if baseURL == "" {
			baseURL = defaultBaseURL[c.Provider]
		}
		if baseURL == "" {
			return nil, fmt.Errorf("config: base_url is required for provider %q", c.Provider)
		}
		return openai.NewCompatible(string(c.Provider), baseURL, c.APIKey, c.Model)
	}
}

func (c Config) newBedrockClient(ctx context.Context) (model.Client, error) {
	region := strings.TrimPrefix(c.BaseURL, bedrockScheme)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(telemetry.NewTracedHTTPClient(nil)),
	)
	if err != nil {
		return nil, fmt.Errorf("config: load aws config: %w", err)
	}
	runtime := bedrockruntime.NewFromConfig(awsCfg)
	return bedrock.New(runtime, bedrock.Options{DefaultModel: c.Model})
}
