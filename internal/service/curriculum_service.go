package service

import (
	"context"
	"fmt"
	"time"

	"ai-tutor-be/internal/constant"
	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/embedding"

	"github.com/google/uuid"
)

type ICurriculumService interface {
	// Ingest embeds and indexes curriculum fragments for one level/subject.
	Ingest(ctx context.Context, req *dto.IngestCurriculumRequest) (int, error)

	// DeleteChunk removes one indexed fragment.
	DeleteChunk(ctx context.Context, id uuid.UUID) error

	// CountChunks reports the index size for one level/subject pair.
	CountChunks(ctx context.Context, level, subject string) (int64, error)
}

type curriculumService struct {
	repo     contract.CurriculumChunkRepository
	embedder embedding.Provider
	log      logger.ILogger
}

func NewCurriculumService(
	repo contract.CurriculumChunkRepository,
	embedder embedding.Provider,
	log logger.ILogger,
) ICurriculumService {
	return &curriculumService{
		repo:     repo,
		embedder: embedder,
		log:      log,
	}
}

func (s *curriculumService) Ingest(ctx context.Context, req *dto.IngestCurriculumRequest) (int, error) {
	if !constant.IsValidLevel(req.Level) {
		return 0, fmt.Errorf("unknown education level %q", req.Level)
	}

	chunks := make([]*entity.CurriculumChunk, 0, len(req.Fragments))
	for i, fragment := range req.Fragments {
		res, err := s.embedder.Generate(ctx, fragment.Content, "RETRIEVAL_DOCUMENT")
		if err != nil {
			return 0, fmt.Errorf("embed fragment %d: %w", i, err)
		}
		chunks = append(chunks, &entity.CurriculumChunk{
			Id:        uuid.New(),
			Content:   fragment.Content,
			Source:    req.Source,
			Subject:   req.Subject,
			Level:     req.Level,
			Metadata:  fragment.Metadata,
			Embedding: res.Values,
			CreatedAt: time.Now(),
		})
	}

	if err := s.repo.CreateBulk(ctx, chunks); err != nil {
		return 0, fmt.Errorf("index fragments: %w", err)
	}

	s.log.Info("curriculum", "fragments indexed", map[string]interface{}{
		"source":  req.Source,
		"level":   req.Level,
		"subject": req.Subject,
		"count":   len(chunks),
	})
	return len(chunks), nil
}

func (s *curriculumService) DeleteChunk(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *curriculumService) CountChunks(ctx context.Context, level, subject string) (int64, error) {
	return s.repo.Count(ctx, contract.SearchScope{Level: level, Subject: subject})
}
