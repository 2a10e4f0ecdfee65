package filecontext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-tutor-be/internal/constant"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/cache"
	"ai-tutor-be/pkg/extraction"
	"ai-tutor-be/pkg/retrieval"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// chunkSize is the per-entry payload limit for chunked storage.
const chunkSize = 768 * 1024

// chunkThreshold is the size above which uploads switch to chunked storage.
const chunkThreshold = 1024 * 1024

// Resolver owns attached-file metadata and cached analyses. File bytes
// are only held for the duration of one request; the cache store keeps
// the persistent copy.
type Resolver struct {
	store     cache.Store
	extractor extraction.Extractor
	engine    *retrieval.Engine
	ttl       cache.TTLPolicy
	log       logger.ILogger
}

func NewResolver(
	store cache.Store,
	extractor extraction.Extractor,
	engine *retrieval.Engine,
	ttl cache.TTLPolicy,
	log logger.ILogger,
) *Resolver {
	return &Resolver{
		store:     store,
		extractor: extractor,
		engine:    engine,
		ttl:       ttl,
		log:       log,
	}
}

// Save stores an uploaded file, choosing monolithic or chunked layout by
// size, and returns its metadata. TTL follows the size staircase.
func (r *Resolver) Save(ctx context.Context, fileName, mimeType string, content []byte) (*AttachedFile, error) {
	file := &AttachedFile{
		FileId:    uuid.New(),
		FileName:  fileName,
		MimeType:  mimeType,
		SizeBytes: int64(len(content)),
	}

	ttl := r.ttl.ForSize(len(content))

	if len(content) <= chunkThreshold {
		file.Storage = Monolithic{}
		file.StorageMode = "monolithic"
		if err := r.store.SetWithTTL(ctx, blobKey(file.FileId), content, ttl); err != nil {
			return nil, fmt.Errorf("store blob: %w", err)
		}
	} else {
		total := (len(content) + chunkSize - 1) / chunkSize
		file.Storage = Chunked{TotalChunks: total}
		file.StorageMode = "chunked"
		file.TotalChunks = total
		for i := 0; i < total; i++ {
			start := i * chunkSize
			end := start + chunkSize
			if end > len(content) {
				end = len(content)
			}
			if err := r.store.SetWithTTL(ctx, chunkKey(file.FileId, i), content[start:end], ttl); err != nil {
				return nil, fmt.Errorf("store chunk %d: %w", i, err)
			}
		}
	}

	meta, err := json.Marshal(file)
	if err != nil {
		return nil, err
	}
	if err := r.store.SetWithTTL(ctx, metaKey(file.FileId), meta, ttl); err != nil {
		return nil, fmt.Errorf("store metadata: %w", err)
	}

	return file, nil
}

// Resolve returns the prompt context for one attached file, applying the
// analysis cache policy:
//
//	(a) cached analysis, no question  -> returned unchanged
//	(b) cached analysis + question    -> contextual wrapper, no re-extraction
//	(c) no cached analysis            -> full pipeline, result persisted
func (r *Resolver) Resolve(ctx context.Context, fileId uuid.UUID, question, level string) (*FileContext, error) {
	file, err := r.loadMetadata(ctx, fileId)
	if err != nil {
		return nil, err
	}

	if analysis, err := r.loadAnalysis(ctx, fileId); err == nil {
		fc := &FileContext{File: *file, Analysis: *analysis, FromCache: true}
		if question == "" {
			fc.ContextText = analysis.ExtractedText
		} else {
			fc.ContextText = wrapWithQuestion(analysis.ExtractedText, question)
		}
		return fc, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		// Real store failure, not a miss: degrade to the full pipeline
		r.log.Warn("filecontext", "analysis cache read failed", map[string]interface{}{
			"fileId": fileId.String(),
			"error":  err.Error(),
		})
	}

	analysis, err := r.runPipeline(ctx, file, level)
	if err != nil {
		return nil, err
	}

	fc := &FileContext{File: *file, Analysis: *analysis}
	if question == "" {
		fc.ContextText = analysis.ExtractedText
	} else {
		fc.ContextText = wrapWithQuestion(analysis.ExtractedText, question)
	}
	return fc, nil
}

// ResolveSession resolves every file referenced across prior turns in
// parallel. One file failing is logged and skipped; it never aborts the
// whole request.
func (r *Resolver) ResolveSession(ctx context.Context, fileIds []uuid.UUID, level string) []*FileContext {
	if len(fileIds) == 0 {
		return nil
	}

	var (
		mu       sync.Mutex
		resolved = make(map[uuid.UUID]*FileContext)
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range dedupe(fileIds) {
		id := id
		g.Go(func() error {
			fc, err := r.Resolve(gctx, id, "", level)
			if err != nil {
				r.log.Warn("filecontext", "session file skipped", map[string]interface{}{
					"fileId": id.String(),
					"error":  err.Error(),
				})
				return nil // isolation: never propagate
			}
			mu.Lock()
			resolved[id] = fc
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// Preserve the caller's order
	var contexts []*FileContext
	seen := make(map[uuid.UUID]bool)
	for _, id := range fileIds {
		if fc, ok := resolved[id]; ok && !seen[id] {
			contexts = append(contexts, fc)
			seen[id] = true
		}
	}
	return contexts
}

func (r *Resolver) loadMetadata(ctx context.Context, fileId uuid.UUID) (*AttachedFile, error) {
	raw, err := r.store.Get(ctx, metaKey(fileId))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFile, fileId)
	}
	if err != nil {
		return nil, err
	}

	var file AttachedFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", fileId, err)
	}
	if err := file.normalize(); err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *Resolver) loadAnalysis(ctx context.Context, fileId uuid.UUID) (*CachedAnalysis, error) {
	raw, err := r.store.Get(ctx, analysisKey(fileId))
	if err != nil {
		return nil, err
	}
	var analysis CachedAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// loadContent reconstructs the file bytes, switching on the storage
// variant. Chunked reads fan out in parallel and fail atomically: any
// absent chunk yields ErrMissingChunk, never truncated content.
func (r *Resolver) loadContent(ctx context.Context, file *AttachedFile) ([]byte, error) {
	switch storage := file.Storage.(type) {
	case Monolithic:
		raw, err := r.store.Get(ctx, blobKey(file.FileId))
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: blob for %s", ErrMissingChunk, file.FileId)
		}
		return raw, err

	case Chunked:
		parts := make([][]byte, storage.TotalChunks)
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < storage.TotalChunks; i++ {
			i := i
			g.Go(func() error {
				raw, err := r.store.Get(gctx, chunkKey(file.FileId, i))
				if errors.Is(err, cache.ErrCacheMiss) {
					return fmt.Errorf("%w: chunk %d of %s", ErrMissingChunk, i, file.FileId)
				}
				if err != nil {
					return err
				}
				parts[i] = raw
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var content []byte
		for _, part := range parts {
			content = append(content, part...)
		}
		return content, nil

	default:
		return nil, fmt.Errorf("filecontext: unhandled storage variant %T", storage)
	}
}

// runPipeline is the cache-miss path: reconstruct bytes, extract and
// classify, optionally ground course material against the curriculum,
// persist under the analysis key.
func (r *Resolver) runPipeline(ctx context.Context, file *AttachedFile, level string) (*CachedAnalysis, error) {
	content, err := r.loadContent(ctx, file)
	if err != nil {
		return nil, err
	}

	extracted, err := r.extractor.Extract(ctx, file.FileName, file.MimeType, content)
	if err != nil {
		return nil, fmt.Errorf("analysis pipeline: %w", err)
	}

	analysis := &CachedAnalysis{
		ExtractedText: extracted.Text,
		DocumentType:  extracted.DocumentType,
		Subject:       extracted.Subject,
		GeneratedAt:   time.Now().UTC(),
	}

	// Course material gets grounded against the curriculum index; other
	// document types are used as-is.
	if extracted.DocumentType == constant.DocumentTypeCourse && r.engine != nil && extracted.Subject != "" {
		result, err := r.engine.Search(ctx, retrieval.Query{
			Text:    headline(extracted.Text),
			Level:   level,
			Subject: extracted.Subject,
		})
		if err != nil {
			r.log.Warn("filecontext", "analysis retrieval skipped", map[string]interface{}{
				"fileId": file.FileId.String(),
				"error":  err.Error(),
			})
		} else if len(result.Chunks) > 0 {
			analysis.UsedRetrieval = true
		}
	}

	raw, err := json.Marshal(analysis)
	if err != nil {
		return nil, err
	}
	if err := r.store.SetWithTTL(ctx, analysisKey(file.FileId), raw, r.ttl.ForSize(len(raw))); err != nil {
		// The analysis is still usable this turn; next request re-runs
		r.log.Warn("filecontext", "analysis persist failed", map[string]interface{}{
			"fileId": file.FileId.String(),
			"error":  err.Error(),
		})
	}

	return analysis, nil
}

// wrapWithQuestion builds the lightweight contextual wrapper: the cached
// text embedded unmodified, with the learner's question alongside.
func wrapWithQuestion(extractedText, question string) string {
	return fmt.Sprintf(
		"<document>\n%s\n</document>\n\n<question_sur_le_document>\n%s\n</question_sur_le_document>",
		extractedText, question,
	)
}

// headline keeps the first few hundred characters for the analysis-time
// retrieval query; the full text would blow the search input.
func headline(text string) string {
	const maxLen = 400
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen]
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	var out []uuid.UUID
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
