// Package anthropic provides a model.Client implementation backed by the
// Anthropic Claude Messages API. Unlike a general tool-calling agent runtime,
// the pipeline's model calls are always plain text (a plan, a review verdict,
// or code wrapped in a single fenced/tagged block), so this adapter skips
// tool definitions, tool_use/tool_result blocks, and thinking entirely.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/cadforge/codepilot/model"
	"github.com/cadforge/codepilot/telemetry"
)

type (
	// MessagesClient captures the subset of the Anthropic SDK used by the
	// adapter, so tests can supply a fake in place of *sdk.MessageService.
	MessagesClient interface {
		New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
		NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
	}

	// Options configures the default model identifiers and sampling
	// parameters used when a model.Request leaves them unset.
	Options struct {
		// DefaultModel is used when Request.Model is empty.
		DefaultModel string
		// MaxTokens caps completion length when Request.MaxTokens is zero.
		MaxTokens int
		// Temperature is used when Request.Temperature is zero.
		Temperature float64
	}

	// Client implements model.Client on top of Anthropic Claude Messages.
	Client struct {
		msg          MessagesClient
		defaultModel string
		maxTok       int
		temp         float64
	}
)

// New builds an Anthropic-backed model client.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model identifier is required")
	}
	return &Client{
		msg:          msg,
		defaultModel: opts.DefaultModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a client whose HTTP transport is wrapped with
// otelhttp so outbound Messages calls produce spans (spec §4 domain stack).
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey), option.WithHTTPClient(telemetry.NewTracedHTTPClient(nil)))
	return New(&ac.Messages, Options{DefaultModel: defaultModel})
}

// Complete issues a non-streaming Messages.New request.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return nil, translateError("messages.new", err)
	}
	return translateResponse(msg), nil
}

// Stream invokes Messages.NewStreaming, surfacing incremental text chunks.
func (c *Client) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	stream := c.msg.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		return nil, translateError("messages.new (stream)", err)
	}
	return newStreamer(stream), nil
}

func (c *Client) prepareRequest(req *model.Request) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	if maxTokens <= 0 {
		return nil, errors.New("anthropic: max_tokens must be positive")
	}

	var system []sdk.TextBlockParam
	var conversation []sdk.MessageParam
	for _, m := range req.Messages {
		if m.Text == "" {
			continue
		}
		switch m.Role {
		case model.ConversationRoleSystem:
			system = append(system, sdk.TextBlockParam{Text: m.Text})
		case model.ConversationRoleUser:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Text)))
		case model.ConversationRoleAssistant:
			conversation = append(conversation, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Text)))
		default:
			return nil, fmt.Errorf("anthropic: unsupported message role %q", m.Role)
		}
	}
	if len(conversation) == 0 {
		return nil, errors.New("anthropic: at least one user/assistant message is required")
	}

	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  conversation,
		Model:     sdk.Model(modelID),
	}
	if len(system) > 0 {
		params.System = system
	}
	temp := float64(req.Temperature)
	if temp == 0 {
		temp = c.temp
	}
	if temp > 0 {
		params.Temperature = sdk.Float(temp)
	}
	return &params, nil
}

func translateResponse(msg *sdk.Message) *model.Response {
	resp := &model.Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		if block.Type == "text" {
			resp.Text += block.Text
		}
	}
	if u := msg.Usage; u.InputTokens != 0 || u.OutputTokens != 0 || u.CacheReadInputTokens != 0 || u.CacheCreationInputTokens != 0 {
		resp.Usage = model.TokenUsage{
			InputTokens:      int(u.InputTokens),
			OutputTokens:     int(u.OutputTokens),
			TotalTokens:      int(u.InputTokens + u.OutputTokens),
			CacheReadTokens:  int(u.CacheReadInputTokens),
			CacheWriteTokens: int(u.CacheCreationInputTokens),
		}
	}
	return resp
}
