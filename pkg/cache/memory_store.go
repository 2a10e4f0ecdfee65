package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	c *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		c: gocache.New(gocache.NoExpiration, 5*time.Minute),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, found := s.c.Get(key)
	if !found {
		return nil, ErrCacheMiss
	}
	return val.([]byte), nil
}

func (s *MemoryStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.c.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

var _ Store = (*MemoryStore)(nil)
