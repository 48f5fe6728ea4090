// Package model defines the provider-agnostic request/response types used by
// the CAD pipeline's model client (spec §6.4, "LlmClient"). It deliberately
// omits tool-calling: the pipeline's model calls only ever produce plan text
// or a single fenced/tagged code block, never structured tool invocations.
package model

import "context"

// ConversationRole identifies the speaker for a message.
type ConversationRole string

const (
	ConversationRoleSystem    ConversationRole = "system"
	ConversationRoleUser      ConversationRole = "user"
	ConversationRoleAssistant ConversationRole = "assistant"
)

// Message is a single chat message in the transcript sent to a provider.
type Message struct {
	Role ConversationRole
	Text string
}

// TokenUsage tracks token counts for a model call.
type TokenUsage struct {
	InputTokens      int
	OutputTokens     int
	TotalTokens      int
	CacheReadTokens  int
	CacheWriteTokens int
}

// Request captures the inputs for a single model invocation.
type Request struct {
	// RunID identifies the logical pipeline run, for provider-side tracing.
	RunID string
	// Model is the provider-specific model identifier. Empty selects the
	// adapter's configured default.
	Model string
	// Messages is the ordered transcript, system message(s) first.
	Messages []Message
	// Temperature controls sampling; used heavily by Consensus (spec §4.K)
	// to diversify parallel generations.
	Temperature float32
	// MaxTokens caps output tokens.
	MaxTokens int
}

// Response is the result of a non-streaming invocation.
type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// ChunkType classifies a streaming chunk.
type ChunkType string

const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeUsage ChunkType = "usage"
	ChunkTypeStop  ChunkType = "stop"
)

// Chunk is a single streaming event from the model.
type Chunk struct {
	Type       ChunkType
	Text       string
	UsageDelta *TokenUsage
	StopReason string
}

// Streamer delivers incremental model output. Callers must drain Recv until
// io.EOF (or another terminal error) and then Close.
type Streamer interface {
	Recv() (Chunk, error)
	Close() error
}

// Client is the provider-agnostic model client (spec §6.4 LlmClient).
type Client interface {
	// Complete performs a non-streaming invocation. Used by Planner,
	// Executor retries, IterativeBuilder step generation, Reviewer, and the
	// pipeline's initial code generation — every model call the pipeline
	// makes.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Stream performs a streaming invocation. The pipeline does not call
	// it, so no CodeChunk events are published during code generation.
	Stream(ctx context.Context, req *Request) (Streamer, error)
}
