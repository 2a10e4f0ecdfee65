package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ai-tutor-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchTool_Definition(t *testing.T) {
	tool := NewSearchTool(nil, "cm1", "maths", logger.NewNopLogger())

	def := tool.Definition()

	assert.Equal(t, "search_curriculum", def.Name)
	props := def.Parameters["properties"].(map[string]interface{})
	_, hasQuery := props["query"]
	assert.True(t, hasQuery)
	assert.Equal(t, []string{"query"}, def.Parameters["required"])
}

func TestSearchTool_InvokeReturnsResultJSON(t *testing.T) {
	repo := &fakeRepo{semantic: strongChunks("les fractions équivalentes")}
	engine := newTestEngine(repo, &fakeExpander{})
	tool := NewSearchTool(engine, "cm1", "maths", logger.NewNopLogger())

	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"query":"fractions"}`))

	require.NoError(t, err)
	var result Result
	require.NoError(t, json.Unmarshal([]byte(out.Content), &result))
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, "les fractions équivalentes", result.Chunks[0].Content)
	assert.True(t, out.Grounded, "an admitted chunk makes the result grounded")
}

func TestSearchTool_EmptyIndexNotGrounded(t *testing.T) {
	engine := newTestEngine(&fakeRepo{}, &fakeExpander{response: "reformulée"})
	tool := NewSearchTool(engine, "cm1", "maths", logger.NewNopLogger())

	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"query":"fractions"}`))

	require.NoError(t, err)
	var result Result
	require.NoError(t, json.Unmarshal([]byte(out.Content), &result))
	assert.Empty(t, result.Chunks)
	assert.False(t, out.Grounded, "no admitted chunk, no grounding")
}

func TestSearchTool_MalformedArgumentsDegrade(t *testing.T) {
	engine := newTestEngine(&fakeRepo{}, &fakeExpander{})
	tool := NewSearchTool(engine, "cm1", "maths", logger.NewNopLogger())

	out, err := tool.Invoke(context.Background(), json.RawMessage(`{not json`))

	require.NoError(t, err, "the model gets an empty result, never an error")
	var result Result
	require.NoError(t, json.Unmarshal([]byte(out.Content), &result))
	assert.Empty(t, result.Chunks)
	assert.False(t, out.Grounded)
}

func TestSearchTool_SearchFailureDegrades(t *testing.T) {
	repo := &fakeRepo{
		semanticErr: errors.New("db down"),
		keywordErr:  errors.New("db down"),
	}
	engine := newTestEngine(repo, &fakeExpander{})
	tool := NewSearchTool(engine, "cm1", "maths", logger.NewNopLogger())

	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"query":"fractions"}`))

	require.NoError(t, err)
	var result Result
	require.NoError(t, json.Unmarshal([]byte(out.Content), &result))
	assert.Empty(t, result.Chunks)
	assert.False(t, out.Grounded)
}
