package retrieval

import (
	"context"
	"encoding/json"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/llm"
)

// SearchTool exposes the engine to the model as a callable tool, scoped
// to one request's level and subject. The model decides per turn whether
// to call it, based on the declared description.
type SearchTool struct {
	engine  *Engine
	level   string
	subject string
	log     logger.ILogger
}

func NewSearchTool(engine *Engine, level, subject string, log logger.ILogger) *SearchTool {
	return &SearchTool{
		engine:  engine,
		level:   level,
		subject: subject,
		log:     log,
	}
}

var _ llm.Tool = &SearchTool{}

func (t *SearchTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name: "search_curriculum",
		Description: "Recherche des extraits du programme scolaire officiel pour ancrer la réponse. " +
			"À utiliser dès que la question porte sur une notion, une méthode ou une définition du cours. " +
			"Inutile pour les salutations ou les questions sur la conversation elle-même.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "La notion ou question à rechercher, reformulée en termes du programme",
				},
			},
			"required": []string{"query"},
		},
	}
}

type searchArguments struct {
	Query string `json:"query"`
}

// Invoke runs the hybrid search and returns a JSON result for the model.
// A search failure yields an empty result rather than an error: the model
// answers ungrounded instead of the whole turn dying. The output is only
// marked grounded when at least one chunk was admitted, so an empty or
// degraded search never counts as grounding.
func (t *SearchTool) Invoke(ctx context.Context, arguments json.RawMessage) (llm.ToolOutput, error) {
	var args searchArguments
	if err := json.Unmarshal(arguments, &args); err != nil {
		t.log.Warn("retrieval", "malformed tool arguments", map[string]interface{}{
			"arguments": string(arguments),
			"error":     err.Error(),
		})
		return emptyResult(), nil
	}

	result, err := t.engine.Search(ctx, Query{
		Text:    args.Query,
		Level:   t.level,
		Subject: t.subject,
	})
	if err != nil {
		t.log.Error("retrieval", "search failed, returning empty result to model", map[string]interface{}{
			"query":   args.Query,
			"level":   t.level,
			"subject": t.subject,
			"error":   err.Error(),
		})
		return emptyResult(), nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return emptyResult(), nil
	}
	return llm.ToolOutput{
		Content:  string(payload),
		Grounded: len(result.Chunks) > 0,
	}, nil
}

func emptyResult() llm.ToolOutput {
	empty, _ := json.Marshal(&Result{Chunks: []Chunk{}})
	return llm.ToolOutput{Content: string(empty)}
}
