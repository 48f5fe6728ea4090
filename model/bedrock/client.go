// Package bedrock provides a model.Client implementation backed by the AWS
// Bedrock Converse API, additive to the direct Anthropic adapter for
// deployments that route Claude traffic through an AWS account (spec §6.4's
// provider-agnostic LlmClient contract). Tool configuration, document
// blocks, and thinking are all out of scope: the pipeline only ever asks the
// model for plan text or a code block.
package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/cadforge/codepilot/model"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client the
// adapter needs, matching *bedrockruntime.Client so tests can substitute a
// fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Options configures the Bedrock adapter.
type Options struct {
	// DefaultModel is the Bedrock model/inference-profile ID used when
	// Request.Model is empty.
	DefaultModel string
	// MaxTokens caps completion length when Request.MaxTokens is zero.
	MaxTokens int
	// Temperature is used when Request.Temperature is zero.
	Temperature float32
}

// Client implements model.Client on top of AWS Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	maxTok       int
	temp         float32
}

// New builds a Bedrock-backed model client.
func New(runtime RuntimeClient, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model identifier is required")
	}
	return &Client{runtime: runtime, defaultModel: opts.DefaultModel, maxTok: opts.MaxTokens, temp: opts.Temperature}, nil
}

// Complete issues a Converse request.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	modelID, messages, system, inferCfg, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	output, err := c.runtime.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(modelID),
		Messages:        messages,
		System:          system,
		InferenceConfig: inferCfg,
	})
	if err != nil {
		return nil, translateError("converse", err)
	}
	return translateResponse(output), nil
}

// Stream issues a ConverseStream request.
func (c *Client) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	modelID, messages, system, inferCfg, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	out, err := c.runtime.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:         aws.String(modelID),
		Messages:        messages,
		System:          system,
		InferenceConfig: inferCfg,
	})
	if err != nil {
		return nil, translateError("converse stream", err)
	}
	stream := out.GetStream()
	if stream == nil {
		return nil, errors.New("bedrock: stream output missing event stream")
	}
	return newStreamer(stream), nil
}

func (c *Client) prepareRequest(req *model.Request) (string, []brtypes.Message, []brtypes.SystemContentBlock, *brtypes.InferenceConfiguration, error) {
	if len(req.Messages) == 0 {
		return "", nil, nil, nil, errors.New("bedrock: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	var system []brtypes.SystemContentBlock
	var messages []brtypes.Message
	for _, m := range req.Messages {
		if m.Text == "" {
			continue
		}
		switch m.Role {
		case model.ConversationRoleSystem:
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Text})
		case model.ConversationRoleUser:
			messages = append(messages, brtypes.Message{Role: brtypes.ConversationRoleUser, Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Text}}})
		case model.ConversationRoleAssistant:
			messages = append(messages, brtypes.Message{Role: brtypes.ConversationRoleAssistant, Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Text}}})
		default:
			return "", nil, nil, nil, fmt.Errorf("bedrock: unsupported message role %q", m.Role)
		}
	}
	if len(messages) == 0 {
		return "", nil, nil, nil, errors.New("bedrock: at least one user/assistant message is required")
	}

	var cfg brtypes.InferenceConfiguration
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	if maxTokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(maxTokens)) //nolint:gosec
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.temp
	}
	if temp > 0 {
		cfg.Temperature = aws.Float32(temp)
	}
	var inferCfg *brtypes.InferenceConfiguration
	if cfg.MaxTokens != nil || cfg.Temperature != nil {
		inferCfg = &cfg
	}
	return modelID, messages, system, inferCfg, nil
}

func translateResponse(out *bedrockruntime.ConverseOutput) *model.Response {
	resp := &model.Response{StopReason: string(out.StopReason)}
	if msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
				resp.Text += text.Value
			}
		}
	}
	if out.Usage != nil {
		resp.Usage = model.TokenUsage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	return resp
}

// isRateLimited reports whether err represents Bedrock throttling (HTTP 429
// or a ThrottlingException error code).
func isRateLimited(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == 429
}
