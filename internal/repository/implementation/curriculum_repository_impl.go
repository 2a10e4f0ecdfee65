package implementation

import (
	"context"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/mapper"
	"ai-tutor-be/internal/model"
	"ai-tutor-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type CurriculumChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CurriculumChunkMapper
}

func NewCurriculumChunkRepository(db *gorm.DB) contract.CurriculumChunkRepository {
	return &CurriculumChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewCurriculumChunkMapper(),
	}
}

func (r *CurriculumChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.CurriculumChunk) error {
	models := make([]*model.CurriculumChunk, len(chunks))
	for i, c := range chunks {
		models[i] = r.mapper.ToModel(c)
	}

	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}

	// Update IDs back to entities
	for i, m := range models {
		*chunks[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *CurriculumChunkRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.CurriculumChunk{}, id).Error
}

func (r *CurriculumChunkRepositoryImpl) Count(ctx context.Context, scope contract.SearchScope) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.CurriculumChunk{}).
		Where("level = ? AND subject = ?", scope.Level, scope.Subject).
		Count(&count).Error
	return count, err
}

// SearchSemanticWithScore returns chunks with cosine similarity scores.
// pgvector's <=> operator yields cosine distance, so similarity is
// 1 - (embedding_value <=> query_vector).
func (r *CurriculumChunkRepositoryImpl) SearchSemanticWithScore(
	ctx context.Context,
	embedding []float32,
	limit int,
	scope contract.SearchScope,
	threshold float64,
) ([]*entity.ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.CurriculumChunk
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("curriculum_chunks").
		Select("curriculum_chunks.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("level = ? AND subject = ?", scope.Level, scope.Subject).
		Where("deleted_at IS NULL").
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error

	if err != nil {
		return nil, err
	}

	scored := make([]*entity.ScoredChunk, len(results))
	for i, res := range results {
		scored[i] = &entity.ScoredChunk{
			Chunk: r.mapper.ToEntity(&res.CurriculumChunk),
			Score: res.Similarity,
		}
	}
	return scored, nil
}

// SearchKeyword runs a French full-text search. ts_rank is normalized with
// flag 32 (rank/(rank+1)) so scores land in [0,1) like similarities do.
func (r *CurriculumChunkRepositoryImpl) SearchKeyword(
	ctx context.Context,
	query string,
	limit int,
	scope contract.SearchScope,
) ([]*entity.ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.CurriculumChunk
		Rank float64
	}
	var results []result

	err := r.db.WithContext(ctx).
		Table("curriculum_chunks").
		Select("curriculum_chunks.*, ts_rank(to_tsvector('french', content), plainto_tsquery('french', ?), 32) as rank", query).
		Where("level = ? AND subject = ?", scope.Level, scope.Subject).
		Where("deleted_at IS NULL").
		Where("to_tsvector('french', content) @@ plainto_tsquery('french', ?)", query).
		Order("rank DESC").
		Limit(limit).
		Scan(&results).Error

	if err != nil {
		return nil, err
	}

	scored := make([]*entity.ScoredChunk, len(results))
	for i, res := range results {
		scored[i] = &entity.ScoredChunk{
			Chunk: r.mapper.ToEntity(&res.CurriculumChunk),
			Score: res.Rank,
		}
	}
	return scored, nil
}
