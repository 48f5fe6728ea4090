// Package openai provides a model.Client implementation backed by the OpenAI
// Chat Completions API, using github.com/openai/openai-go. Because the API is
// OpenAI-compatible across a wide range of hosted and self-hosted providers,
// the same adapter serves deepseek, qwen, kimi, ollama, and runpod-hosted
// models by overriding BaseURL (spec §6.4's provider-agnostic LlmClient).
package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/ssestream"
	"github.com/openai/openai-go/v2/shared"

	"github.com/cadforge/codepilot/model"
	"github.com/cadforge/codepilot/telemetry"
)

type (
	// ChatClient captures the subset of the openai-go client used by the
	// adapter, so tests can substitute a fake.
	ChatClient interface {
		New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
		NewStreaming(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk]
	}

	// Options configures the adapter. BaseURL and Provider let the same
	// client type serve any OpenAI-compatible endpoint.
	Options struct {
		// DefaultModel is used when Request.Model is empty.
		DefaultModel string
		// MaxTokens caps completion length when Request.MaxTokens is zero.
		MaxTokens int
		// Temperature is used when Request.Temperature is zero.
		Temperature float64
		// Provider labels the backing service in ProviderError (e.g.
		// "deepseek", "qwen", "ollama"); defaults to "openai".
		Provider string
	}

	// Client implements model.Client via the Chat Completions API.
	Client struct {
		chat         ChatClient
		defaultModel string
		maxTok       int
		temp         float64
		provider     string
	}
)

// New builds a client from an explicit ChatClient, typically
// &sdk.Client{}.Chat.Completions for the hosted API or a client constructed
// with option.WithBaseURL for an OpenAI-compatible endpoint.
func New(chat ChatClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model identifier is required")
	}
	provider := opts.Provider
	if provider == "" {
		provider = "openai"
	}
	return &Client{chat: chat, defaultModel: opts.DefaultModel, maxTok: opts.MaxTokens, temp: opts.Temperature, provider: provider}, nil
}

// NewCompatible constructs a Client pointed at an OpenAI-compatible endpoint
// (deepseek, qwen, kimi, ollama, runpod, ...) identified by baseURL, using
// apiKey for bearer auth. Self-hosted endpoints (ollama) commonly accept any
// non-empty apiKey value.
// HTTP transport is wrapped with otelhttp so outbound chat-completion calls
// produce spans (spec §4 domain stack), same as NewFromAPIKey.
func NewCompatible(provider, baseURL, apiKey, defaultModel string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("openai: base url is required")
	}
	sdk := openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL), option.WithHTTPClient(telemetry.NewTracedHTTPClient(nil)))
	return New(&sdk.Chat.Completions, Options{DefaultModel: defaultModel, Provider: provider})
}

// NewFromAPIKey constructs a client against the hosted OpenAI API, with its
// HTTP transport wrapped with otelhttp so outbound calls produce spans.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	sdk := openai.NewClient(option.WithAPIKey(apiKey), option.WithHTTPClient(telemetry.NewTracedHTTPClient(nil)))
	return New(&sdk.Chat.Completions, Options{DefaultModel: defaultModel})
}

// Complete issues a non-streaming chat completion request.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.chat.New(ctx, *params)
	if err != nil {
		return nil, translateError(c.provider, "chat.completions.new", err)
	}
	return translateResponse(resp), nil
}

// Stream issues a streaming chat completion request.
func (c *Client) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	stream := c.chat.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		return nil, translateError(c.provider, "chat.completions.new (stream)", err)
	}
	return newStreamer(stream), nil
}

func (c *Client) prepareRequest(req *model.Request) (*openai.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		switch m.Role {
		case model.ConversationRoleSystem:
			messages = append(messages, openai.SystemMessage(m.Text))
		case model.ConversationRoleUser:
			messages = append(messages, openai.UserMessage(m.Text))
		case model.ConversationRoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Text))
		default:
			return nil, errors.New("openai: unsupported message role")
		}
	}
	if len(messages) == 0 {
		return nil, errors.New("openai: at least one non-empty message is required")
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelID),
		Messages: messages,
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}
	temp := float64(req.Temperature)
	if temp == 0 {
		temp = c.temp
	}
	if temp > 0 {
		params.Temperature = openai.Float(temp)
	}
	return &params, nil
}

func translateResponse(resp *openai.ChatCompletion) *model.Response {
	out := &model.Response{}
	if len(resp.Choices) > 0 {
		out.Text = resp.Choices[0].Message.Content
		out.StopReason = string(resp.Choices[0].FinishReason)
	}
	out.Usage = model.TokenUsage{
		InputTokens:     int(resp.Usage.PromptTokens),
		OutputTokens:    int(resp.Usage.CompletionTokens),
		TotalTokens:     int(resp.Usage.TotalTokens),
		CacheReadTokens: int(resp.Usage.PromptTokensDetails.CachedTokens),
	}
	return out
}
