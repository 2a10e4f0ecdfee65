package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss signals an absent key. A miss is not a failure: callers
// fall back to the full pipeline and repopulate.
var ErrCacheMiss = errors.New("cache: key not found")

// Store is an opaque key/value store with per-entry TTL. It holds file
// blobs, file chunks and cached analyses; no business logic lives here.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// TTLPolicy is the staircase mapping payload size to retention: small
// payloads are cheap to keep around, large blobs get evicted sooner.
type TTLPolicy struct {
	Small  time.Duration // <= 64KB
	Medium time.Duration // <= 1MB
	Large  time.Duration // <= 8MB
	Huge   time.Duration // anything bigger
}

const (
	smallLimit  = 64 * 1024
	mediumLimit = 1024 * 1024
	largeLimit  = 8 * 1024 * 1024
)

// ForSize picks the TTL step for a payload of the given size.
func (p TTLPolicy) ForSize(sizeBytes int) time.Duration {
	switch {
	case sizeBytes <= smallLimit:
		return p.Small
	case sizeBytes <= mediumLimit:
		return p.Medium
	case sizeBytes <= largeLimit:
		return p.Large
	default:
		return p.Huge
	}
}
