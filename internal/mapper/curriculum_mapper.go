package mapper

import (
	"encoding/json"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type CurriculumChunkMapper struct{}

func NewCurriculumChunkMapper() *CurriculumChunkMapper {
	return &CurriculumChunkMapper{}
}

func (m *CurriculumChunkMapper) ToEntity(c *model.CurriculumChunk) *entity.CurriculumChunk {
	if c == nil {
		return nil
	}

	var deletedAt *time.Time
	if c.DeletedAt.Valid {
		t := c.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	var metadata map[string]interface{}
	if len(c.Metadata) > 0 {
		// Best effort: malformed metadata should not break a search result
		_ = json.Unmarshal(c.Metadata, &metadata)
	}

	return &entity.CurriculumChunk{
		Id:        c.Id,
		Content:   c.Content,
		Source:    c.Source,
		Subject:   c.Subject,
		Level:     c.Level,
		Metadata:  metadata,
		Embedding: c.EmbeddingValue.Slice(),
		CreatedAt: c.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
	}
}

func (m *CurriculumChunkMapper) ToModel(c *entity.CurriculumChunk) *model.CurriculumChunk {
	if c == nil {
		return nil
	}

	var metadata datatypes.JSON
	if c.Metadata != nil {
		if raw, err := json.Marshal(c.Metadata); err == nil {
			metadata = raw
		}
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.CurriculumChunk{
		Id:             c.Id,
		Content:        c.Content,
		Source:         c.Source,
		Subject:        c.Subject,
		Level:          c.Level,
		Metadata:       metadata,
		EmbeddingValue: pgvector.NewVector(c.Embedding),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      updatedAt,
	}
}

func (m *CurriculumChunkMapper) ToEntities(chunks []*model.CurriculumChunk) []*entity.CurriculumChunk {
	entities := make([]*entity.CurriculumChunk, len(chunks))
	for i, c := range chunks {
		entities[i] = m.ToEntity(c)
	}
	return entities
}
