package stream

import (
	"encoding/json"
	"testing"

	"ai-tutor-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentChunk_WireShape(t *testing.T) {
	chunk := NewContentChunk("s1", "gpt-4o-mini", "Bon", "Bon")

	raw, err := json.Marshal(chunk)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "content", decoded["type"])
	assert.Equal(t, "s1", decoded["id"])
	assert.Equal(t, "assistant", decoded["role"])
	assert.Equal(t, "Bon", decoded["delta"])
	assert.NotContains(t, decoded, "usage", "content chunks carry no usage")
	assert.NotContains(t, decoded, "error")
	assert.NotContains(t, decoded, "metadata")
}

func TestDoneChunk_WireShape(t *testing.T) {
	sessionId := uuid.New()
	chunk := NewDoneChunk("s1", "gpt-4o-mini", "Bonjour !", "stop",
		llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		Metadata{SessionId: sessionId, UsedRetrieval: true})

	raw, err := json.Marshal(chunk)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "done", decoded["type"])
	assert.Equal(t, "Bonjour !", decoded["content"])
	assert.Equal(t, "stop", decoded["finishReason"])

	usage := decoded["usage"].(map[string]interface{})
	assert.EqualValues(t, 15, usage["totalTokens"])

	meta := decoded["metadata"].(map[string]interface{})
	assert.Equal(t, sessionId.String(), meta["sessionId"])
	assert.Equal(t, true, meta["usedRetrieval"])
}

func TestErrorChunk_WireShape(t *testing.T) {
	chunk := NewErrorChunk("s1", "gpt-4o-mini", "timeout", "Une erreur est survenue.")

	raw, err := json.Marshal(chunk)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "error", decoded["type"])
	errInfo := decoded["error"].(map[string]interface{})
	assert.Equal(t, "timeout", errInfo["code"])
	assert.Equal(t, "Une erreur est survenue.", errInfo["message"])
	assert.NotContains(t, decoded, "usage")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, NewContentChunk("s", "m", "d", "d").IsTerminal())
	assert.True(t, NewDoneChunk("s", "m", "c", "stop", llm.Usage{}, Metadata{}).IsTerminal())
	assert.True(t, NewErrorChunk("s", "m", "code", "msg").IsTerminal())
}
