package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/filecontext"
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/prompt"
	"ai-tutor-be/pkg/retrieval"
	"ai-tutor-be/pkg/stream"
	"ai-tutor-be/pkg/window"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type ITutorService interface {
	// Ask runs one tutoring turn and returns the wire chunk stream. The
	// channel always ends with exactly one terminal chunk.
	Ask(ctx context.Context, userId uuid.UUID, req *dto.AskRequest) (<-chan stream.Chunk, error)

	// UploadFile stores a learner document for later turns.
	UploadFile(ctx context.Context, fileName, mimeType string, content []byte) (*filecontext.AttachedFile, error)
}

type tutorService struct {
	resolver     *filecontext.Resolver
	engine       *retrieval.Engine
	optimizer    *window.Optimizer
	prompts      *prompt.Builder
	orchestrator *stream.Orchestrator
	pubSub       *gochannel.GoChannel
	usageTopic   string
	modelName    string
	log          logger.ILogger
}

func NewTutorService(
	resolver *filecontext.Resolver,
	engine *retrieval.Engine,
	optimizer *window.Optimizer,
	prompts *prompt.Builder,
	orchestrator *stream.Orchestrator,
	pubSub *gochannel.GoChannel,
	cfg *config.Config,
	log logger.ILogger,
) ITutorService {
	return &tutorService{
		resolver:     resolver,
		engine:       engine,
		optimizer:    optimizer,
		prompts:      prompts,
		orchestrator: orchestrator,
		pubSub:       pubSub,
		usageTopic:   cfg.Keys.UsageTopic,
		modelName:    cfg.Ai.LLMModel,
		log:          log,
	}
}

func (s *tutorService) UploadFile(ctx context.Context, fileName, mimeType string, content []byte) (*filecontext.AttachedFile, error) {
	return s.resolver.Save(ctx, fileName, mimeType, content)
}

func (s *tutorService) Ask(ctx context.Context, userId uuid.UUID, req *dto.AskRequest) (<-chan stream.Chunk, error) {
	fileContexts, attachedFailed := s.resolveFiles(ctx, req)

	history := s.buildHistory(req, fileContexts)

	searchTool := retrieval.NewSearchTool(s.engine, req.Level, req.Subject, s.log)

	streamId := uuid.NewString()
	chunks, results := s.orchestrator.Run(ctx, stream.RunInput{
		StreamId:  streamId,
		Model:     s.modelName,
		SessionId: req.SessionId,
		History:   history,
		Tools:     []llm.Tool{searchTool},
	})

	if attachedFailed {
		s.log.Warn("tutor", "turn started without requested file context", map[string]interface{}{
			"streamId":  streamId,
			"sessionId": req.SessionId.String(),
		})
	}

	// Consume the result off the request path: usage accounting must not
	// delay or break the learner-facing stream.
	go s.publishTurnCompleted(userId, req, results)

	return chunks, nil
}

// resolveFiles gathers the prompt context of the attached file (with the
// current question) and of every file from prior turns. File failures
// degrade the turn, they never abort it.
func (s *tutorService) resolveFiles(ctx context.Context, req *dto.AskRequest) ([]string, bool) {
	var (
		contexts       []string
		attachedFailed bool
	)

	if req.FileId != nil {
		fc, err := s.resolver.Resolve(ctx, *req.FileId, req.Message, req.Level)
		if err != nil {
			s.log.Warn("tutor", "attached file unavailable", map[string]interface{}{
				"fileId": req.FileId.String(),
				"error":  err.Error(),
			})
			attachedFailed = true
		} else {
			contexts = append(contexts, fc.ContextText)
		}
	}

	var historyIds []uuid.UUID
	for _, turn := range req.History {
		if turn.FileId != nil && (req.FileId == nil || *turn.FileId != *req.FileId) {
			historyIds = append(historyIds, *turn.FileId)
		}
	}
	for _, fc := range s.resolver.ResolveSession(ctx, historyIds, req.Level) {
		contexts = append(contexts, fc.ContextText)
	}

	return contexts, attachedFailed
}

func (s *tutorService) buildHistory(req *dto.AskRequest, fileContexts []string) []llm.Message {
	systemPrompt := s.prompts.Build(prompt.Input{
		Subject:      req.Subject,
		Level:        req.Level,
		FirstName:    req.FirstName,
		Message:      req.Message,
		FileContexts: fileContexts,
		HasSearch:    true,
	})

	// Only prior turns go through the window optimizer: the system prompt
	// and the current message are never trimmed away.
	turns := make([]llm.Message, 0, len(req.History))
	for _, turn := range req.History {
		turns = append(turns, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	turns = s.optimizer.Optimize(turns)

	history := make([]llm.Message, 0, len(turns)+2)
	history = append(history, llm.Message{Role: "system", Content: systemPrompt})
	history = append(history, turns...)
	history = append(history, llm.Message{Role: "user", Content: req.Message})
	return history
}

func (s *tutorService) publishTurnCompleted(userId uuid.UUID, req *dto.AskRequest, results <-chan stream.Result) {
	result, ok := <-results
	if !ok {
		return
	}

	payload, err := json.Marshal(dto.TurnCompletedMessage{
		UserId:           userId,
		SessionId:        req.SessionId,
		Subject:          req.Subject,
		Level:            req.Level,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		TotalTokens:      result.Usage.TotalTokens,
		UsedRetrieval:    result.UsedRetrieval,
		FinishReason:     result.FinishReason,
		CompletedAt:      time.Now().UTC(),
	})
	if err != nil {
		s.log.Error("tutor", "failed to marshal turn-completed payload", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.pubSub.Publish(s.usageTopic, msg); err != nil {
		s.log.Error("tutor", "failed to publish turn-completed message", map[string]interface{}{
			"sessionId": req.SessionId.String(),
			"error":     err.Error(),
		})
	}
}
