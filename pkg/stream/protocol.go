package stream

import (
	"time"

	"ai-tutor-be/pkg/llm"

	"github.com/google/uuid"
)

// Chunk types on the wire. A stream is zero or more content chunks
// followed by exactly one terminal chunk (done or error).
const (
	ChunkTypeContent = "content"
	ChunkTypeDone    = "done"
	ChunkTypeError   = "error"
)

// UsageInfo mirrors provider token accounting in the terminal chunk.
type UsageInfo struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Metadata travels only on the done chunk.
type Metadata struct {
	SessionId     uuid.UUID `json:"sessionId"`
	UsedRetrieval bool      `json:"usedRetrieval"`
}

// ErrorInfo travels only on the error chunk. Message is always safe to
// show a learner; internal detail stays in logs.
type ErrorInfo struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Chunk is one wire frame of the streaming protocol.
type Chunk struct {
	Type         string     `json:"type"`
	Id           string     `json:"id"`
	Model        string     `json:"model"`
	Timestamp    int64      `json:"timestamp"`
	Role         string     `json:"role,omitempty"`
	Delta        string     `json:"delta,omitempty"`
	Content      string     `json:"content,omitempty"`
	FinishReason string     `json:"finishReason,omitempty"`
	Usage        *UsageInfo `json:"usage,omitempty"`
	Metadata     *Metadata  `json:"metadata,omitempty"`
	Error        *ErrorInfo `json:"error,omitempty"`
}

// frameBase stamps the fields every chunk shares.
func frameBase(chunkType, streamId, model string) Chunk {
	return Chunk{
		Type:      chunkType,
		Id:        streamId,
		Model:     model,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewContentChunk carries one delta plus the cumulative text so far.
func NewContentChunk(streamId, model, delta, cumulative string) Chunk {
	c := frameBase(ChunkTypeContent, streamId, model)
	c.Role = "assistant"
	c.Delta = delta
	c.Content = cumulative
	return c
}

// NewDoneChunk is the successful terminal frame.
func NewDoneChunk(streamId, model, content, finishReason string, usage llm.Usage, meta Metadata) Chunk {
	c := frameBase(ChunkTypeDone, streamId, model)
	c.Role = "assistant"
	c.Content = content
	c.FinishReason = finishReason
	c.Usage = &UsageInfo{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}
	c.Metadata = &meta
	return c
}

// NewErrorChunk is the failing terminal frame. code identifies the error
// class for the client; message is the user-safe text.
func NewErrorChunk(streamId, model, code, message string) Chunk {
	c := frameBase(ChunkTypeError, streamId, model)
	c.Error = &ErrorInfo{Message: message, Code: code}
	return c
}

// IsTerminal reports whether the chunk ends the stream.
func (c Chunk) IsTerminal() bool {
	return c.Type == ChunkTypeDone || c.Type == ChunkTypeError
}
