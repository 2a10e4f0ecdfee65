package entity

import (
	"time"

	"github.com/google/uuid"
)

// CurriculumChunk is one indexed fragment of teaching material. The offline
// ingestion pipeline owns writes; the tutor pipeline only searches.
type CurriculumChunk struct {
	Id        uuid.UUID
	Content   string
	Source    string // originating document or manual
	Subject   string
	Level     string
	Metadata  map[string]interface{}
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
}

// ScoredChunk pairs a chunk with the similarity or rank score the search
// backend computed for it.
type ScoredChunk struct {
	Chunk *CurriculumChunk
	Score float64 // 0.0 to 1.0 (1.0 = identical) for semantic, normalized ts_rank for keyword
}
