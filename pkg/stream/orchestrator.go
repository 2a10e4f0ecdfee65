package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-tutor-be/internal/constant"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/llm"

	"github.com/google/uuid"
)

// maxToolRounds bounds the model/tool back-and-forth within one turn. A
// well-behaved model needs one or two rounds; the cap stops pathological
// loops from holding a connection forever.
const maxToolRounds = 4

// userSafeError is what the learner sees whatever went wrong internally.
const userSafeError = "Une erreur est survenue pendant la génération de la réponse. Réessaie dans un instant."

// Result summarizes one finished stream for the caller, terminal chunk
// included. Usage is always populated, estimated when the provider did
// not report it.
type Result struct {
	Content       string
	FinishReason  string
	Usage         llm.Usage
	UsedRetrieval bool
	Failed        bool
}

// RunInput is everything one streaming turn needs.
type RunInput struct {
	StreamId  string
	Model     string
	SessionId uuid.UUID
	History   []llm.Message
	Tools     []llm.Tool
}

// Orchestrator drives one streaming model turn: it forwards content
// deltas, runs the tool loop in between model rounds, and guarantees the
// stream ends with exactly one terminal chunk.
type Orchestrator struct {
	provider    llm.StreamProvider
	callTimeout time.Duration
	log         logger.ILogger
}

func NewOrchestrator(provider llm.StreamProvider, callTimeout time.Duration, log logger.ILogger) *Orchestrator {
	return &Orchestrator{
		provider:    provider,
		callTimeout: callTimeout,
		log:         log,
	}
}

// Run executes the turn and emits wire chunks on the returned channel.
// The channel always ends with one terminal chunk and is then closed,
// whatever happens underneath. The final Result is delivered on the
// second channel after the stream closes.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) (<-chan Chunk, <-chan Result) {
	chunks := make(chan Chunk, 16)
	results := make(chan Result, 1)

	go func() {
		defer close(chunks)
		defer close(results)
		results <- o.run(ctx, in, chunks)
	}()

	return chunks, results
}

func (o *Orchestrator) run(ctx context.Context, in RunInput, chunks chan<- Chunk) Result {
	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	toolDefs := make([]llm.ToolDefinition, 0, len(in.Tools))
	toolsByName := make(map[string]llm.Tool, len(in.Tools))
	for _, tool := range in.Tools {
		def := tool.Definition()
		toolDefs = append(toolDefs, def)
		toolsByName[def.Name] = tool
	}

	var (
		history       = append([]llm.Message(nil), in.History...)
		content       string
		usage         llm.Usage
		usedRetrieval bool
	)

	for round := 0; round < maxToolRounds; round++ {
		events, errs := o.provider.StreamChat(ctx, history, toolDefs)

		done, err := o.pump(ctx, in, events, errs, &content, chunks)
		if err != nil {
			o.log.Error("stream", "model stream failed", map[string]interface{}{
				"streamId":  in.StreamId,
				"sessionId": in.SessionId.String(),
				"round":     round,
				"error":     err.Error(),
			})
			chunks <- NewErrorChunk(in.StreamId, in.Model, errorCode(err), userSafeError)
			return Result{
				Content:       content,
				FinishReason:  constant.FinishReasonError,
				Usage:         o.finalUsage(usage, in.History, content),
				UsedRetrieval: usedRetrieval,
				Failed:        true,
			}
		}

		if done.Usage != nil {
			usage.PromptTokens += done.Usage.PromptTokens
			usage.CompletionTokens += done.Usage.CompletionTokens
			usage.TotalTokens += done.Usage.TotalTokens
		}

		if len(done.ToolCalls) == 0 {
			finalUsage := o.finalUsage(usage, in.History, content)
			chunks <- NewDoneChunk(in.StreamId, in.Model, content, finishReason(done.FinishReason),
				finalUsage, Metadata{SessionId: in.SessionId, UsedRetrieval: usedRetrieval})
			return Result{
				Content:       content,
				FinishReason:  finishReason(done.FinishReason),
				Usage:         finalUsage,
				UsedRetrieval: usedRetrieval,
			}
		}

		// Tool round: answer every requested call, then go back to the model
		history = append(history, llm.Message{
			Role:      constant.ChatRoleAssistant,
			Content:   "",
			ToolCalls: done.ToolCalls,
		})
		for _, call := range done.ToolCalls {
			history = append(history, o.invokeTool(ctx, in, toolsByName, call, &usedRetrieval))
		}
	}

	// Round cap reached without a final answer
	o.log.Error("stream", "tool round cap reached", map[string]interface{}{
		"streamId":  in.StreamId,
		"sessionId": in.SessionId.String(),
	})
	chunks <- NewErrorChunk(in.StreamId, in.Model, "tool_loop", userSafeError)
	return Result{
		Content:       content,
		FinishReason:  constant.FinishReasonError,
		Usage:         o.finalUsage(usage, in.History, content),
		UsedRetrieval: usedRetrieval,
		Failed:        true,
	}
}

// pump reads one provider round to completion, forwarding content chunks.
func (o *Orchestrator) pump(
	ctx context.Context,
	in RunInput,
	events <-chan llm.StreamEvent,
	errs <-chan error,
	content *string,
	chunks chan<- Chunk,
) (llm.StreamEvent, error) {
	for {
		select {
		case <-ctx.Done():
			return llm.StreamEvent{}, ctx.Err()

		case err, ok := <-errs:
			if ok && err != nil {
				return llm.StreamEvent{}, err
			}
			// error channel closed without error, keep reading events
			errs = nil

		case event, ok := <-events:
			if !ok {
				return llm.StreamEvent{}, errors.New("stream: provider closed without terminal event")
			}
			if event.Done {
				return event, nil
			}
			if event.Delta != "" {
				*content += event.Delta
				chunks <- NewContentChunk(in.StreamId, in.Model, event.Delta, *content)
			}
		}
	}
}

func (o *Orchestrator) invokeTool(
	ctx context.Context,
	in RunInput,
	toolsByName map[string]llm.Tool,
	call llm.ToolCall,
	usedRetrieval *bool,
) llm.Message {
	tool, ok := toolsByName[call.Name]
	if !ok {
		o.log.Warn("stream", "model requested unknown tool", map[string]interface{}{
			"streamId": in.StreamId,
			"tool":     call.Name,
		})
		return llm.Message{
			Role:       "tool",
			ToolCallID: call.ID,
			Content:    fmt.Sprintf(`{"error":"unknown tool %q"}`, call.Name),
		}
	}

	output, err := tool.Invoke(ctx, json.RawMessage(call.Arguments))
	if err != nil {
		o.log.Error("stream", "tool invocation failed", map[string]interface{}{
			"streamId": in.StreamId,
			"tool":     call.Name,
			"error":    err.Error(),
		})
		output = llm.ToolOutput{Content: `{"error":"tool unavailable"}`}
	}
	// Only a grounded result marks the turn: a tool call that admitted
	// nothing leaves usedRetrieval false.
	if output.Grounded {
		*usedRetrieval = true
	}

	return llm.Message{
		Role:       "tool",
		ToolCallID: call.ID,
		Content:    output.Content,
	}
}

// finalUsage fills in an estimate when the provider reported nothing.
// Roughly four characters per token for French text.
func (o *Orchestrator) finalUsage(reported llm.Usage, history []llm.Message, content string) llm.Usage {
	if reported.TotalTokens > 0 {
		return reported
	}
	promptChars := 0
	for _, m := range history {
		promptChars += len(m.Content)
	}
	estimated := llm.Usage{
		PromptTokens:     promptChars / 4,
		CompletionTokens: len(content) / 4,
	}
	estimated.TotalTokens = estimated.PromptTokens + estimated.CompletionTokens
	return estimated
}

func finishReason(reported string) string {
	switch reported {
	case "length", "max_tokens":
		return constant.FinishReasonLength
	case "", "stop", "tool_calls":
		return constant.FinishReasonStop
	default:
		return reported
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "model_error"
	}
}
