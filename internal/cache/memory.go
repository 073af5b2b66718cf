package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/veille/internal/model"
)

// MemoryStore keeps the latest batch per query in process memory.
// As the memory backend it never expires entries; as the front layer of
// LayeredStore it expires them after the layer TTL.
type MemoryStore struct {
	cache *gocache.Cache
	mu    sync.Mutex
}

// NewMemoryStore creates a new memory store
func NewMemoryStore(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Read implements Store
func (s *MemoryStore) Read(ctx context.Context, query string) (*model.CacheEntry, error) {
	if val, found := s.cache.Get(CacheKey(query)); found {
		entry := val.(model.CacheEntry)
		entry.Records = append([]model.Record(nil), entry.Records...)
		return &entry, nil
	}
	return nil, nil
}

// Write implements Store. Only the newest batch per query is retained.
func (s *MemoryStore) Write(ctx context.Context, query string, records []model.Record, at time.Time) error {
	if len(records) == 0 {
		return nil
	}
	s.put(model.CacheEntry{Query: query, Timestamp: at.UTC(), Records: records})
	return nil
}

func (s *MemoryStore) put(entry model.CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := CacheKey(entry.Query)
	if val, found := s.cache.Get(key); found {
		if current := val.(model.CacheEntry); current.Timestamp.After(entry.Timestamp) {
			return
		}
	}
	entry.Records = append([]model.Record(nil), entry.Records...)
	s.cache.Set(key, entry, gocache.DefaultExpiration)
}

// Purge implements Store
func (s *MemoryStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	var removed int64
	for key, item := range s.cache.Items() {
		entry := item.Object.(model.CacheEntry)
		if entry.Timestamp.Before(olderThan) {
			removed += int64(len(entry.Records))
			s.cache.Delete(key)
		}
	}
	return removed, nil
}

// Stats implements Store
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Backend: "memory"}
	for _, item := range s.cache.Items() {
		entry := item.Object.(model.CacheEntry)
		st.Queries++
		st.Rows += int64(len(entry.Records))
		if entry.Timestamp.After(st.Newest) {
			st.Newest = entry.Timestamp
		}
		if st.Oldest.IsZero() || entry.Timestamp.Before(st.Oldest) {
			st.Oldest = entry.Timestamp
		}
	}
	return st, nil
}

// Close implements Store
func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}
