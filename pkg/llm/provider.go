package llm

import (
	"context"
	"encoding/json"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system", "tool"
	Content string

	// Tool plumbing: an assistant message may carry the calls the model
	// requested; a tool message answers one of them.
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is one fully accumulated function call requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON as produced by the model
}

// ToolDefinition declares a callable capability to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON schema
}

// ToolOutput is one tool answer handed back to the model. Grounded
// reports whether the content is backed by at least one admitted source;
// a degraded or empty result answers the model but stays ungrounded.
type ToolOutput struct {
	Content  string
	Grounded bool
}

// Tool is a capability the model may invoke mid-turn. Results are
// untrusted external data re-injected into context, not pre-validated fact.
type Tool interface {
	Definition() ToolDefinition
	Invoke(ctx context.Context, arguments json.RawMessage) (ToolOutput, error)
}

// Usage carries token accounting for one completed call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamEvent is one event read from a provider token stream. Either
// Delta is set (content), or Done is set (terminal, with finish reason,
// any accumulated tool calls, and usage when the provider reports it).
type StreamEvent struct {
	Delta        string
	Done         bool
	FinishReason string
	ToolCalls    []ToolCall
	Usage        *Usage
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// LLMProvider is the non-streaming contract, used for auxiliary calls
// (query expansion) where a full response is fine.
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}

// StreamProvider drives one streaming model call with tools attached.
// Events arrive in generation order on the first channel; a provider-level
// failure (including a failure to open the stream) arrives on the second.
// Both channels are closed when the call is over.
type StreamProvider interface {
	StreamChat(ctx context.Context, history []Message, tools []ToolDefinition, options ...Option) (<-chan StreamEvent, <-chan error)
}
