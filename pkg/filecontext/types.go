package filecontext

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrMissingChunk means a chunked file cannot be reconstructed because at
// least one chunk key is gone. Partial content is never returned.
var ErrMissingChunk = errors.New("filecontext: missing chunk")

// ErrUnknownFile means no metadata exists for the requested file id.
var ErrUnknownFile = errors.New("filecontext: unknown file")

// Storage is the tagged storage variant of an attached file. Exactly one
// concrete type applies; reconstruction switches exhaustively on it.
type Storage interface {
	isStorage()
}

// Monolithic stores the whole payload under a single cache key.
type Monolithic struct{}

// Chunked splits the payload over TotalChunks cache keys. TotalChunks
// must be > 0 and every chunk key must be present to reconstruct.
type Chunked struct {
	TotalChunks int `json:"totalChunks"`
}

func (Monolithic) isStorage() {}
func (Chunked) isStorage()    {}

// AttachedFile is the cached metadata of one uploaded file.
type AttachedFile struct {
	FileId    uuid.UUID `json:"fileId"`
	FileName  string    `json:"fileName"`
	MimeType  string    `json:"mimeType"`
	SizeBytes int64     `json:"sizeBytes"`
	Storage   Storage   `json:"-"`

	// wire representation of the variant
	StorageMode string `json:"storageMode"` // "monolithic" | "chunked"
	TotalChunks int    `json:"totalChunks,omitempty"`
}

// normalize rebuilds the tagged variant after JSON decoding.
func (f *AttachedFile) normalize() error {
	switch f.StorageMode {
	case "monolithic":
		f.Storage = Monolithic{}
		return nil
	case "chunked":
		if f.TotalChunks <= 0 {
			return fmt.Errorf("filecontext: chunked file %s with totalChunks=%d", f.FileId, f.TotalChunks)
		}
		f.Storage = Chunked{TotalChunks: f.TotalChunks}
		return nil
	default:
		return fmt.Errorf("filecontext: unknown storage mode %q", f.StorageMode)
	}
}

// CachedAnalysis is the persisted outcome of one full analysis pipeline
// run. General requests reuse it verbatim; question-specific requests wrap
// it without overwriting.
type CachedAnalysis struct {
	ExtractedText string    `json:"extractedText"`
	DocumentType  string    `json:"documentType"`
	Subject       string    `json:"subject"`
	UsedRetrieval bool      `json:"usedRetrieval"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// FileContext is the per-request view of one resolved file: the prompt
// text to inject plus the analysis it came from.
type FileContext struct {
	File        AttachedFile
	Analysis    CachedAnalysis
	ContextText string
	FromCache   bool
}

// Cache key layout. Content is immutable per file id, so concurrent
// writers racing on these keys is benign.
func metaKey(fileId uuid.UUID) string { return "file:" + fileId.String() + ":meta" }
func blobKey(fileId uuid.UUID) string { return "file:" + fileId.String() + ":blob" }

func analysisKey(fileId uuid.UUID) string { return "file:" + fileId.String() + ":analysis" }

func chunkKey(fileId uuid.UUID, index int) string {
	return fmt.Sprintf("file:%s:chunk:%d", fileId, index)
}
