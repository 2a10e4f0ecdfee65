package embedding

import "context"

// Result is a generated embedding vector.
type Result struct {
	Values []float32
}

// Provider defines the interface for generating text embeddings.
// taskType distinguishes query-time from document-time embeddings for
// backends that care ("RETRIEVAL_QUERY" / "RETRIEVAL_DOCUMENT").
type Provider interface {
	Generate(ctx context.Context, text string, taskType string) (*Result, error)
}
