package openai

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"

	"ai-tutor-be/pkg/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the streaming contract against the OpenAI
// chat-completions API (or any openai-compatible gateway via BaseURL).
type OpenAIProvider struct {
	client     *goopenai.Client
	modelName  string
	maxRetries int
	retryWait  time.Duration
}

var _ llm.StreamProvider = &OpenAIProvider{}

func NewOpenAIProvider(apiKey, modelName, baseURL string, maxRetries int) *OpenAIProvider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &OpenAIProvider{
		client:     goopenai.NewClientWithConfig(cfg),
		modelName:  modelName,
		maxRetries: maxRetries,
		retryWait:  500 * time.Millisecond,
	}
}

// StreamChat opens one streaming completion with tools attached and
// forwards events in generation order. Transient failures to OPEN the
// stream are retried a bounded number of times; once the first token has
// been read, failures surface as-is so already-sent content is never
// duplicated.
func (p *OpenAIProvider) StreamChat(
	ctx context.Context,
	history []llm.Message,
	tools []llm.ToolDefinition,
	opts ...llm.Option,
) (<-chan llm.StreamEvent, <-chan error) {
	eventChan := make(chan llm.StreamEvent, 16)
	errChan := make(chan error, 1)

	go func() {
		defer close(eventChan)
		defer close(errChan)

		req := p.buildRequest(history, tools, opts...)

		stream, err := p.openWithRetry(ctx, req)
		if err != nil {
			errChan <- err
			return
		}
		defer stream.Close()

		var (
			finishReason string
			usage        *llm.Usage
			toolCallsMap = make(map[int]*llm.ToolCall)
		)

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				emit(ctx, eventChan, llm.StreamEvent{
					Done:         true,
					FinishReason: finishReason,
					ToolCalls:    collectToolCalls(toolCallsMap),
					Usage:        usage,
				})
				return
			}
			if err != nil {
				errChan <- err
				return
			}

			// The usage frame arrives with no choices when stream_options
			// requests it.
			if response.Usage != nil {
				usage = &llm.Usage{
					PromptTokens:     response.Usage.PromptTokens,
					CompletionTokens: response.Usage.CompletionTokens,
					TotalTokens:      response.Usage.TotalTokens,
				}
			}
			if len(response.Choices) == 0 {
				continue
			}

			choice := response.Choices[0]

			if choice.Delta.Content != "" {
				if !emit(ctx, eventChan, llm.StreamEvent{Delta: choice.Delta.Content}) {
					return
				}
			}

			// Tool-call fragments: arguments accumulate as raw string pieces
			for _, tc := range choice.Delta.ToolCalls {
				if tc.Index == nil {
					continue
				}
				call, exists := toolCallsMap[*tc.Index]
				if !exists {
					call = &llm.ToolCall{}
					toolCallsMap[*tc.Index] = call
				}
				if tc.ID != "" {
					call.ID = tc.ID
				}
				if tc.Function.Name != "" {
					call.Name = tc.Function.Name
				}
				call.Arguments += tc.Function.Arguments
			}

			if choice.FinishReason != "" {
				finishReason = string(choice.FinishReason)
			}
		}
	}()

	return eventChan, errChan
}

func (p *OpenAIProvider) buildRequest(history []llm.Message, tools []llm.ToolDefinition, opts ...llm.Option) goopenai.ChatCompletionRequest {
	options := &llm.Options{Temperature: 0.7}
	for _, opt := range opts {
		opt(options)
	}

	model := p.modelName
	if options.Model != "" {
		model = options.Model
	}

	messages := make([]goopenai.ChatCompletionMessage, len(history))
	for i, msg := range history {
		m := goopenai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		messages[i] = m
	}

	req := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(options.Temperature),
		Stream:      true,
		StreamOptions: &goopenai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if options.MaxTokens > 0 {
		req.MaxTokens = options.MaxTokens
	}

	for _, tool := range tools {
		req.Tools = append(req.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return req
}

func (p *OpenAIProvider) openWithRetry(ctx context.Context, req goopenai.ChatCompletionRequest) (*goopenai.ChatCompletionStream, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.retryWait * time.Duration(attempt)):
			}
		}

		stream, err := p.client.CreateChatCompletionStream(ctx, req)
		if err == nil {
			return stream, nil
		}
		lastErr = err

		// Context errors are not transient
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
	}
	return nil, lastErr
}

// emit sends one event unless the context ends first. A consumer that
// stopped reading after cancellation must not strand the producer on a
// full buffer, or the stream is never closed.
func emit(ctx context.Context, events chan<- llm.StreamEvent, event llm.StreamEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func collectToolCalls(m map[int]*llm.ToolCall) []llm.ToolCall {
	if len(m) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(m))
	for i := range m {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	calls := make([]llm.ToolCall, 0, len(m))
	for _, i := range indexes {
		calls = append(calls, *m[i])
	}
	return calls
}
