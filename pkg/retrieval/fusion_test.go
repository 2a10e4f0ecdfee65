package retrieval

import (
	"math"
	"testing"

	"ai-tutor-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func scored(chunk *entity.CurriculumChunk, score float64) *entity.ScoredChunk {
	return &entity.ScoredChunk{Chunk: chunk, Score: score}
}

func newChunk(content string) *entity.CurriculumChunk {
	return &entity.CurriculumChunk{Id: uuid.New(), Content: content}
}

func TestFuseRRF_AgreementBeatsSingleSource(t *testing.T) {
	shared := newChunk("fractions équivalentes")
	semOnly := newChunk("addition de fractions")
	kwOnly := newChunk("tableau de proportionnalité")

	lists := []RankedList{
		{Source: "semantic", Weight: 0.7, Chunks: []*entity.ScoredChunk{
			scored(semOnly, 0.91),
			scored(shared, 0.85),
		}},
		{Source: "keyword", Weight: 0.3, Chunks: []*entity.ScoredChunk{
			scored(shared, 0.60),
			scored(kwOnly, 0.40),
		}},
	}

	fused := fuseRRF(lists, 60)

	assert.Len(t, fused, 3)
	// shared: 0.7/62 + 0.3/61 > semOnly: 0.7/61
	assert.Equal(t, shared.Id, fused[0].chunk.Id, "chunk present in both lists should rank first")
	assert.Equal(t, semOnly.Id, fused[1].chunk.Id)
	assert.ElementsMatch(t, []string{"semantic", "keyword"}, fused[0].origins)
	assert.Equal(t, 0.85, fused[0].bestSim, "bestSim keeps the strongest raw score")
}

func TestFuseRRF_ScoreFormula(t *testing.T) {
	chunk := newChunk("théorème de Pythagore")

	lists := []RankedList{
		{Source: "semantic", Weight: 0.7, Chunks: []*entity.ScoredChunk{scored(chunk, 0.9)}},
		{Source: "keyword", Weight: 0.3, Chunks: []*entity.ScoredChunk{scored(chunk, 0.5)}},
	}

	fused := fuseRRF(lists, 60)

	expected := 0.7/61.0 + 0.3/61.0
	assert.InDelta(t, expected, fused[0].fusedScore, 1e-12)
}

func TestFuseRRF_RankDiscount(t *testing.T) {
	first := newChunk("rang un")
	second := newChunk("rang deux")

	lists := []RankedList{
		{Source: "semantic", Weight: 1.0, Chunks: []*entity.ScoredChunk{
			scored(first, 0.9),
			scored(second, 0.8),
		}},
	}

	fused := fuseRRF(lists, 60)

	assert.InDelta(t, 1.0/61.0, fused[0].fusedScore, 1e-12)
	assert.InDelta(t, 1.0/62.0, fused[1].fusedScore, 1e-12)
	assert.Greater(t, fused[0].fusedScore, fused[1].fusedScore)
}

func TestFuseRRF_EmptyLists(t *testing.T) {
	fused := fuseRRF([]RankedList{
		{Source: "semantic", Weight: 0.7, Chunks: nil},
		{Source: "keyword", Weight: 0.3, Chunks: nil},
	}, 60)

	assert.Empty(t, fused)
}

func TestFuseRRF_DefaultsKWhenInvalid(t *testing.T) {
	chunk := newChunk("seul")
	lists := []RankedList{
		{Source: "semantic", Weight: 1.0, Chunks: []*entity.ScoredChunk{scored(chunk, 0.9)}},
	}

	fused := fuseRRF(lists, 0)

	assert.False(t, math.IsInf(fused[0].fusedScore, 1))
	assert.InDelta(t, 1.0/61.0, fused[0].fusedScore, 1e-12)
}
