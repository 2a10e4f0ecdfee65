package filecontext

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/cache"
	"ai-tutor-be/pkg/extraction"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	analysis extraction.Analysis
	err      error

	calls    int
	received []byte
}

func (f *fakeExtractor) Extract(ctx context.Context, fileName, mimeType string, content []byte) (*extraction.Analysis, error) {
	f.calls++
	f.received = append([]byte(nil), content...)
	if f.err != nil {
		return nil, f.err
	}
	a := f.analysis
	return &a, nil
}

func testTTL() cache.TTLPolicy {
	return cache.TTLPolicy{
		Small:  24 * time.Hour,
		Medium: 6 * time.Hour,
		Large:  2 * time.Hour,
		Huge:   30 * time.Minute,
	}
}

func newTestResolver(store cache.Store, extractor *fakeExtractor) *Resolver {
	return NewResolver(store, extractor, nil, testTTL(), logger.NewNopLogger())
}

func patterned(size int) []byte {
	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i % 251)
	}
	return content
}

func TestSave_SmallFileIsMonolithic(t *testing.T) {
	store := cache.NewMemoryStore()
	resolver := newTestResolver(store, &fakeExtractor{})

	file, err := resolver.Save(context.Background(), "cours.pdf", "application/pdf", patterned(10*1024))

	require.NoError(t, err)
	assert.Equal(t, "monolithic", file.StorageMode)
	assert.IsType(t, Monolithic{}, file.Storage)

	_, err = store.Get(context.Background(), blobKey(file.FileId))
	assert.NoError(t, err, "blob key must exist")
}

func TestSave_LargeFileIsChunked(t *testing.T) {
	store := cache.NewMemoryStore()
	resolver := newTestResolver(store, &fakeExtractor{})

	// 2MB -> three 768KB chunks
	file, err := resolver.Save(context.Background(), "manuel.pdf", "application/pdf", patterned(2*1024*1024))

	require.NoError(t, err)
	assert.Equal(t, "chunked", file.StorageMode)
	require.IsType(t, Chunked{}, file.Storage)
	assert.Equal(t, 3, file.Storage.(Chunked).TotalChunks)

	for i := 0; i < 3; i++ {
		_, err := store.Get(context.Background(), chunkKey(file.FileId, i))
		assert.NoError(t, err, "chunk %d must exist", i)
	}
}

func TestResolve_ChunkedReconstructionIsByteIdentical(t *testing.T) {
	store := cache.NewMemoryStore()
	extractor := &fakeExtractor{analysis: extraction.Analysis{Text: "texte extrait", DocumentType: "other"}}
	resolver := newTestResolver(store, extractor)

	original := patterned(2*1024*1024 + 137)
	file, err := resolver.Save(context.Background(), "manuel.pdf", "application/pdf", original)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), file.FileId, "", "cm1")

	require.NoError(t, err)
	assert.True(t, bytes.Equal(original, extractor.received),
		"reconstructed content must match the original byte for byte")
}

func TestResolve_MissingChunkFailsAtomically(t *testing.T) {
	store := cache.NewMemoryStore()
	extractor := &fakeExtractor{analysis: extraction.Analysis{Text: "x"}}
	resolver := newTestResolver(store, extractor)

	file, err := resolver.Save(context.Background(), "manuel.pdf", "application/pdf", patterned(3*1024*1024))
	require.NoError(t, err)

	// Drop a middle chunk, as eviction would
	require.NoError(t, store.Delete(context.Background(), chunkKey(file.FileId, 1)))

	_, err = resolver.Resolve(context.Background(), file.FileId, "", "cm1")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingChunk)
	assert.Equal(t, 0, extractor.calls, "partial content must never reach extraction")
}

func TestResolve_UnknownFile(t *testing.T) {
	resolver := newTestResolver(cache.NewMemoryStore(), &fakeExtractor{})

	_, err := resolver.Resolve(context.Background(), uuid.New(), "", "cm1")

	assert.ErrorIs(t, err, ErrUnknownFile)
}

func TestResolve_AnalysisCachePolicy(t *testing.T) {
	store := cache.NewMemoryStore()
	extractor := &fakeExtractor{analysis: extraction.Analysis{
		Text:         "Le théorème de Pythagore relie les côtés du triangle rectangle.",
		DocumentType: "exercise",
		Subject:      "maths",
	}}
	resolver := newTestResolver(store, extractor)

	file, err := resolver.Save(context.Background(), "exo.pdf", "application/pdf", patterned(4*1024))
	require.NoError(t, err)

	// First resolve runs the full pipeline and persists the analysis
	fc1, err := resolver.Resolve(context.Background(), file.FileId, "", "quatrieme")
	require.NoError(t, err)
	assert.Equal(t, 1, extractor.calls)
	assert.False(t, fc1.FromCache)
	assert.Equal(t, extractor.analysis.Text, fc1.ContextText)

	// Second general resolve reuses the cached analysis verbatim
	fc2, err := resolver.Resolve(context.Background(), file.FileId, "", "quatrieme")
	require.NoError(t, err)
	assert.Equal(t, 1, extractor.calls, "cached analysis must skip re-extraction")
	assert.True(t, fc2.FromCache)
	assert.Equal(t, extractor.analysis.Text, fc2.ContextText)

	// Question-specific resolve wraps the cached text without re-running
	// the pipeline and without overwriting the cached analysis
	fc3, err := resolver.Resolve(context.Background(), file.FileId, "Explique l'étape 2", "quatrieme")
	require.NoError(t, err)
	assert.Equal(t, 1, extractor.calls)
	assert.True(t, fc3.FromCache)
	assert.Contains(t, fc3.ContextText, extractor.analysis.Text, "cached text embedded unmodified")
	assert.Contains(t, fc3.ContextText, "Explique l'étape 2")

	// The cached entry stays the general analysis
	fc4, err := resolver.Resolve(context.Background(), file.FileId, "", "quatrieme")
	require.NoError(t, err)
	assert.Equal(t, extractor.analysis.Text, fc4.ContextText)
}

func TestResolve_ExtractionFailureSurfaces(t *testing.T) {
	store := cache.NewMemoryStore()
	extractor := &fakeExtractor{err: errors.New("service down")}
	resolver := newTestResolver(store, extractor)

	file, err := resolver.Save(context.Background(), "doc.pdf", "application/pdf", patterned(1024))
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), file.FileId, "", "cm1")

	assert.Error(t, err)
	_, err = store.Get(context.Background(), analysisKey(file.FileId))
	assert.ErrorIs(t, err, cache.ErrCacheMiss, "failed analyses must not be cached")
}

func TestResolveSession_SkipsFailedFiles(t *testing.T) {
	store := cache.NewMemoryStore()
	extractor := &fakeExtractor{analysis: extraction.Analysis{Text: "contenu"}}
	resolver := newTestResolver(store, extractor)

	good, err := resolver.Save(context.Background(), "a.pdf", "application/pdf", patterned(512))
	require.NoError(t, err)
	missing := uuid.New()

	contexts := resolver.ResolveSession(context.Background(), []uuid.UUID{missing, good.FileId}, "cm1")

	require.Len(t, contexts, 1)
	assert.Equal(t, "contenu", contexts[0].ContextText)
}

func TestAttachedFile_NormalizeRejectsBadMetadata(t *testing.T) {
	tests := []struct {
		name string
		file AttachedFile
		ok   bool
	}{
		{"monolithic", AttachedFile{StorageMode: "monolithic"}, true},
		{"chunked with count", AttachedFile{StorageMode: "chunked", TotalChunks: 4}, true},
		{"chunked without count", AttachedFile{StorageMode: "chunked"}, false},
		{"unknown mode", AttachedFile{StorageMode: "sharded"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.file.normalize()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
