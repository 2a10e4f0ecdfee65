package retrieval

import (
	"context"
	"errors"
	"testing"

	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/embedding"
	"ai-tutor-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	semantic    []*entity.ScoredChunk
	keyword     []*entity.ScoredChunk
	semanticErr error
	keywordErr  error

	// results served after the first call, used by expansion tests
	semanticLater []*entity.ScoredChunk
	calls         int
}

func (f *fakeRepo) CreateBulk(ctx context.Context, chunks []*entity.CurriculumChunk) error {
	return nil
}
func (f *fakeRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeRepo) Count(ctx context.Context, scope contract.SearchScope) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) SearchSemanticWithScore(ctx context.Context, emb []float32, limit int, scope contract.SearchScope, threshold float64) ([]*entity.ScoredChunk, error) {
	f.calls++
	if f.semanticErr != nil {
		return nil, f.semanticErr
	}
	if f.calls > 1 && f.semanticLater != nil {
		return f.semanticLater, nil
	}
	return f.semantic, nil
}

func (f *fakeRepo) SearchKeyword(ctx context.Context, query string, limit int, scope contract.SearchScope) ([]*entity.ScoredChunk, error) {
	if f.keywordErr != nil {
		return nil, f.keywordErr
	}
	return f.keyword, nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Generate(ctx context.Context, text, taskType string) (*embedding.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &embedding.Result{Values: []float32{0.1, 0.2, 0.3}}, nil
}

type fakeExpander struct {
	response string
	err      error
	called   bool
}

func (f *fakeExpander) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return f.response, f.err
}

func (f *fakeExpander) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	f.called = true
	return f.response, f.err
}

func testTuning() config.TuningConfig {
	return config.TuningConfig{
		FusionK:          60,
		SemanticWeight:   0.7,
		KeywordWeight:    0.3,
		MinSimilarity:    0.65,
		HighSimilarity:   0.80,
		VeryHighSim:      0.90,
		ResultLimit:      3,
		ResultHardCap:    10,
		ExpansionMinHits: 3,
	}
}

func newTestEngine(repo *fakeRepo, expander *fakeExpander) *Engine {
	return NewEngine(repo, &fakeEmbedder{}, expander, testTuning(), logger.NewNopLogger())
}

func strongChunks(contents ...string) []*entity.ScoredChunk {
	var out []*entity.ScoredChunk
	score := 0.95
	for _, c := range contents {
		out = append(out, scored(newChunk(c), score))
		score -= 0.05
	}
	return out
}

func TestSearch_StrongResultsNoExpansion(t *testing.T) {
	repo := &fakeRepo{
		semantic: strongChunks("a", "b", "c", "d"),
	}
	expander := &fakeExpander{response: "reformulée"}
	engine := newTestEngine(repo, expander)

	result, err := engine.Search(context.Background(), Query{Text: "les fractions", Level: "cm1", Subject: "maths"})

	require.NoError(t, err)
	assert.Len(t, result.Chunks, 3, "default limit caps the result")
	assert.False(t, result.UsedExpansion)
	assert.False(t, expander.called, "expansion must not run when results are strong")
	assert.Equal(t, "a", result.Chunks[0].Content)
	assert.Equal(t, result.Chunks[0].Score, result.FusedScore)
}

func TestSearch_ExpansionOnlyWhenFewAndWeak(t *testing.T) {
	tests := []struct {
		name         string
		semantic     []*entity.ScoredChunk
		wantExpanded bool
	}{
		{
			name:         "few hits but strong best similarity",
			semantic:     []*entity.ScoredChunk{scored(newChunk("fort"), 0.88)},
			wantExpanded: false,
		},
		{
			name:         "few hits and weak best similarity",
			semantic:     []*entity.ScoredChunk{scored(newChunk("faible"), 0.40)},
			wantExpanded: true,
		},
		{
			name:         "nothing at all",
			semantic:     []*entity.ScoredChunk{},
			wantExpanded: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepo{semantic: tc.semantic, keyword: []*entity.ScoredChunk{}}
			expander := &fakeExpander{response: "requête reformulée"}
			engine := newTestEngine(repo, expander)

			result, err := engine.Search(context.Background(), Query{Text: "question floue", Level: "cm1", Subject: "maths"})

			require.NoError(t, err)
			assert.Equal(t, tc.wantExpanded, expander.called)
			assert.Equal(t, tc.wantExpanded, result.UsedExpansion)
		})
	}
}

func TestSearch_ExpansionMergesNewResults(t *testing.T) {
	repo := &fakeRepo{
		semantic:      []*entity.ScoredChunk{scored(newChunk("faible"), 0.30)},
		keyword:       []*entity.ScoredChunk{},
		semanticLater: strongChunks("trouvé par expansion"),
	}
	expander := &fakeExpander{response: "requête enrichie"}
	engine := newTestEngine(repo, expander)

	result, err := engine.Search(context.Background(), Query{Text: "vague", Level: "ce2", Subject: "maths"})

	require.NoError(t, err)
	assert.True(t, result.UsedExpansion)
	require.NotEmpty(t, result.Chunks)
	assert.Equal(t, "trouvé par expansion", result.Chunks[0].Content)
}

func TestSearch_ExpansionFailureDegrades(t *testing.T) {
	repo := &fakeRepo{semantic: []*entity.ScoredChunk{scored(newChunk("faible"), 0.30)}}
	expander := &fakeExpander{err: errors.New("model down")}
	engine := newTestEngine(repo, expander)

	result, err := engine.Search(context.Background(), Query{Text: "vague", Level: "ce2", Subject: "maths"})

	require.NoError(t, err, "a failed expansion never fails the search")
	assert.False(t, result.UsedExpansion)
	assert.Empty(t, result.Chunks, "weak hits stay filtered out")
}

func TestSearch_SingleSourceFailureDegrades(t *testing.T) {
	repo := &fakeRepo{
		semanticErr: errors.New("pgvector down"),
		keyword:     strongChunks("par mot-clé"),
	}
	engine := newTestEngine(repo, &fakeExpander{response: "x"})

	result, err := engine.Search(context.Background(), Query{Text: "pythagore", Level: "quatrieme", Subject: "maths"})

	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)
	assert.Equal(t, []string{"keyword"}, result.Chunks[0].Origins)
}

func TestSearch_AllSourcesFailed(t *testing.T) {
	repo := &fakeRepo{
		semanticErr: errors.New("db down"),
		keywordErr:  errors.New("db down"),
	}
	engine := newTestEngine(repo, &fakeExpander{})

	_, err := engine.Search(context.Background(), Query{Text: "x", Level: "cp", Subject: "maths"})

	assert.Error(t, err)
}

func TestSearch_HardCapBoundsExplicitLimit(t *testing.T) {
	repo := &fakeRepo{
		semantic: strongChunks("a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"),
	}
	engine := newTestEngine(repo, &fakeExpander{})

	result, err := engine.Search(context.Background(), Query{
		Text: "tout", Level: "cm2", Subject: "maths", Limit: 50,
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Chunks), 10)
}

func TestConfidenceTiers(t *testing.T) {
	engine := newTestEngine(&fakeRepo{}, &fakeExpander{})

	tests := []struct {
		similarity float64
		want       string
	}{
		{0.50, "low"},
		{0.64, "low"},
		{0.65, "accepted"},
		{0.79, "accepted"},
		{0.80, "high"},
		{0.89, "high"},
		{0.90, "very_high"},
		{0.99, "very_high"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, engine.Confidence(tc.similarity), "similarity %.2f", tc.similarity)
	}
}
