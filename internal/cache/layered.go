package cache

import (
	"context"
	"time"

	"github.com/ppiankov/veille/internal/model"
)

// LayeredStore fronts a durable store with a memory layer
type LayeredStore struct {
	memory  *MemoryStore
	durable Store
}

// NewLayeredStore creates a new layered store
func NewLayeredStore(memoryTTL time.Duration, durable Store) *LayeredStore {
	return &LayeredStore{
		memory:  NewMemoryStore(memoryTTL, 10*time.Minute),
		durable: durable,
	}
}

// Read checks memory first, then the durable store
func (s *LayeredStore) Read(ctx context.Context, query string) (*model.CacheEntry, error) {
	if entry, _ := s.memory.Read(ctx, query); entry != nil {
		return entry, nil
	}

	entry, err := s.durable.Read(ctx, query)
	if err != nil || entry == nil {
		return entry, err
	}

	// Promote to memory
	s.memory.put(*entry)
	return entry, nil
}

// Write stores the batch in both layers; the durable error wins
func (s *LayeredStore) Write(ctx context.Context, query string, records []model.Record, at time.Time) error {
	_ = s.memory.Write(ctx, query, records, at)
	return s.durable.Write(ctx, query, records, at)
}

// Purge removes old batches from both layers
func (s *LayeredStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	_, _ = s.memory.Purge(ctx, olderThan)
	return s.durable.Purge(ctx, olderThan)
}

// Stats reports the durable layer
func (s *LayeredStore) Stats(ctx context.Context) (Stats, error) {
	return s.durable.Stats(ctx)
}

// Close closes both layers
func (s *LayeredStore) Close() error {
	_ = s.memory.Close()
	return s.durable.Close()
}
