package retrieval

import (
	"context"
	"fmt"
	"strings"

	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/embedding"
	"ai-tutor-be/pkg/llm"
)

// Query scopes one retrieval to a level/subject pair.
type Query struct {
	Text          string
	Level         string
	Subject       string
	Limit         int
	MinSimilarity float64 // 0 = use configured default
}

// Chunk is one retrieved curriculum fragment with provenance.
type Chunk struct {
	Content    string   `json:"content"`
	Score      float64  `json:"score"`  // fused RRF score
	Source     string   `json:"source"` // originating document
	Origins    []string `json:"origins"`
	Similarity float64  `json:"similarity"` // best raw source score
}

// Result is what one hybrid search returns.
type Result struct {
	Chunks        []Chunk `json:"chunks"`
	FusedScore    float64 `json:"fusedScore"` // best fused score, 0 when empty
	UsedExpansion bool    `json:"usedExpansion"`
}

// Engine runs semantic and keyword searches independently, fuses their
// rankings and optionally expands weak queries. It is only ever invoked
// through the model tool, never directly by the orchestrator.
type Engine struct {
	repo      contract.CurriculumChunkRepository
	embedder  embedding.Provider
	expander  llm.LLMProvider
	tuning    config.TuningConfig
	log       logger.ILogger
}

func NewEngine(
	repo contract.CurriculumChunkRepository,
	embedder embedding.Provider,
	expander llm.LLMProvider,
	tuning config.TuningConfig,
	log logger.ILogger,
) *Engine {
	return &Engine{
		repo:     repo,
		embedder: embedder,
		expander: expander,
		tuning:   tuning,
		log:      log,
	}
}

// Search executes the hybrid retrieval for one query. A single source
// failing degrades to the other source; both failing returns an error the
// tool layer converts to an empty result.
func (e *Engine) Search(ctx context.Context, query Query) (*Result, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = e.tuning.ResultLimit
	}
	if limit > e.tuning.ResultHardCap {
		limit = e.tuning.ResultHardCap
	}
	minSim := query.MinSimilarity
	if minSim <= 0 {
		minSim = e.tuning.MinSimilarity
	}

	lists, bestSim, err := e.searchSources(ctx, query)
	if err != nil {
		return nil, err
	}

	fused := fuseRRF(lists, e.tuning.FusionK)
	hits := admit(fused, minSim)

	usedExpansion := false
	// Expansion carries a model-call cost: only when results are both few
	// AND weak, never unconditionally.
	if len(hits) < e.tuning.ExpansionMinHits && bestSim < minSim {
		expanded, expErr := e.expandQuery(ctx, query.Text)
		if expErr != nil {
			e.log.Warn("retrieval", "query expansion failed", map[string]interface{}{
				"error": expErr.Error(),
			})
		} else if expanded != "" && expanded != query.Text {
			usedExpansion = true
			expQuery := query
			expQuery.Text = expanded

			expLists, expBest, expErr := e.searchSources(ctx, expQuery)
			if expErr == nil {
				if expBest > bestSim {
					bestSim = expBest
				}
				fused = fuseRRF(append(lists, expLists...), e.tuning.FusionK)
				hits = admit(fused, minSim)
			}
		}
	}

	if len(hits) > limit {
		hits = hits[:limit]
	}

	result := &Result{UsedExpansion: usedExpansion}
	for _, cand := range hits {
		result.Chunks = append(result.Chunks, Chunk{
			Content:    cand.chunk.Content,
			Score:      cand.fusedScore,
			Source:     cand.chunk.Source,
			Origins:    cand.origins,
			Similarity: cand.bestSim,
		})
	}
	if len(hits) > 0 {
		result.FusedScore = hits[0].fusedScore
	}

	e.log.Debug("retrieval", "hybrid search done", map[string]interface{}{
		"hits":          len(result.Chunks),
		"bestSim":       bestSim,
		"usedExpansion": usedExpansion,
	})

	return result, nil
}

// Confidence reports the tier a similarity falls in: "low", "accepted",
// "high" or "very_high".
func (e *Engine) Confidence(similarity float64) string {
	switch {
	case similarity >= e.tuning.VeryHighSim:
		return "very_high"
	case similarity >= e.tuning.HighSimilarity:
		return "high"
	case similarity >= e.tuning.MinSimilarity:
		return "accepted"
	default:
		return "low"
	}
}

// searchSources runs both backends independently. The searches share no
// state, so losing one of them only narrows the candidate pool.
func (e *Engine) searchSources(ctx context.Context, query Query) ([]RankedList, float64, error) {
	scope := contract.SearchScope{Level: query.Level, Subject: query.Subject}
	poolSize := e.tuning.ResultHardCap

	var semantic, keyword []*entity.ScoredChunk

	embRes, err := e.embedder.Generate(ctx, query.Text, "RETRIEVAL_QUERY")
	if err != nil {
		e.log.Warn("retrieval", "embedding generation failed, semantic source skipped", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		// DB threshold 0: ranks below the acceptance tier still vote in
		// fusion and inform the expansion decision.
		semantic, err = e.repo.SearchSemanticWithScore(ctx, embRes.Values, poolSize, scope, 0)
		if err != nil {
			e.log.Warn("retrieval", "semantic search failed", map[string]interface{}{
				"error": err.Error(),
			})
			semantic = nil
		}
	}

	keyword, kwErr := e.repo.SearchKeyword(ctx, query.Text, poolSize, scope)
	if kwErr != nil {
		e.log.Warn("retrieval", "keyword search failed", map[string]interface{}{
			"error": kwErr.Error(),
		})
		keyword = nil
	}

	if semantic == nil && keyword == nil {
		return nil, 0, fmt.Errorf("retrieval: all search sources failed")
	}

	bestSim := 0.0
	for _, s := range semantic {
		if s.Score > bestSim {
			bestSim = s.Score
		}
	}

	lists := []RankedList{
		{Source: "semantic", Weight: e.tuning.SemanticWeight, Chunks: semantic},
		{Source: "keyword", Weight: e.tuning.KeywordWeight, Chunks: keyword},
	}
	return lists, bestSim, nil
}

// admit keeps fused candidates whose best raw source score clears the
// acceptance tier. Keyword-only hits carry normalized ts_rank, which is
// deliberately held to the same bar.
func admit(fused []fusedCandidate, minSim float64) []fusedCandidate {
	var kept []fusedCandidate
	for _, cand := range fused {
		if cand.bestSim >= minSim {
			kept = append(kept, cand)
		}
	}
	return kept
}

func (e *Engine) expandQuery(ctx context.Context, original string) (string, error) {
	prompt := fmt.Sprintf(
		"Reformule la requête de recherche suivante pour une base de cours scolaires français. "+
			"Garde le sens, ajoute les termes du programme qui manquent. "+
			"Réponds uniquement avec la requête reformulée, sans commentaire.\n\nRequête: %s",
		original,
	)

	expanded, err := e.expander.Generate(ctx, prompt, llm.WithTemperature(0.2), llm.WithMaxTokens(80))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(expanded), nil
}
