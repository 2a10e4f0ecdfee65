package contract

import (
	"context"

	"ai-tutor-be/internal/entity"

	"github.com/google/uuid"
)

// SearchScope narrows every query to one level/subject pair; chunks for
// other grades must never leak into an answer.
type SearchScope struct {
	Level   string
	Subject string
}

type CurriculumChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.CurriculumChunk) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context, scope SearchScope) (int64, error)

	// SearchSemanticWithScore runs a cosine-similarity search and returns
	// chunks whose similarity is at least threshold, best first.
	SearchSemanticWithScore(ctx context.Context, embedding []float32, limit int, scope SearchScope, threshold float64) ([]*entity.ScoredChunk, error)

	// SearchKeyword runs a French full-text search over chunk content and
	// returns ts_rank-ordered matches.
	SearchKeyword(ctx context.Context, query string, limit int, scope SearchScope) ([]*entity.ScoredChunk, error)
}
