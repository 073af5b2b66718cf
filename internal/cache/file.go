package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/veille/internal/model"
)

// FileStore keeps each query's batches in one JSON file under dir
type FileStore struct {
	dir string
	mu  sync.Mutex
}

type fileBatches struct {
	Query   string             `json:"query"`
	Batches []model.CacheEntry `json:"batches"`
}

// NewFileStore creates a file-backed store
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Read implements Store
func (s *FileStore) Read(ctx context.Context, query string) (*model.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb, err := s.load(s.path(query))
	if err != nil {
		return nil, err
	}
	if fb == nil || len(fb.Batches) == 0 {
		return nil, nil
	}

	latest := fb.Batches[0]
	for _, b := range fb.Batches[1:] {
		if b.Timestamp.After(latest.Timestamp) {
			latest = b
		}
	}
	return &latest, nil
}

// Write implements Store
func (s *FileStore) Write(ctx context.Context, query string, records []model.Record, at time.Time) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(query)
	fb, err := s.load(path)
	if err != nil {
		return err
	}
	if fb == nil {
		fb = &fileBatches{Query: query}
	}
	fb.Batches = append(fb.Batches, model.CacheEntry{
		Query:     query,
		Timestamp: at.UTC(),
		Records:   records,
	})
	return s.save(path, fb)
}

// Purge implements Store
func (s *FileStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrCacheUnavailable, err)
	}

	var removed int64
	for _, path := range paths {
		fb, err := s.load(path)
		if err != nil || fb == nil {
			continue
		}
		kept := fb.Batches[:0]
		for _, b := range fb.Batches {
			if b.Timestamp.Before(olderThan) {
				removed += int64(len(b.Records))
				continue
			}
			kept = append(kept, b)
		}
		fb.Batches = kept
		if len(kept) == 0 {
			_ = os.Remove(path)
			continue
		}
		if err := s.save(path, fb); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Stats implements Store
func (s *FileStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Backend: "file:" + s.dir}
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return st, fmt.Errorf("%w: %v", model.ErrCacheUnavailable, err)
	}
	for _, path := range paths {
		fb, err := s.load(path)
		if err != nil || fb == nil || len(fb.Batches) == 0 {
			continue
		}
		st.Queries++
		for _, b := range fb.Batches {
			st.Rows += int64(len(b.Records))
			if b.Timestamp.After(st.Newest) {
				st.Newest = b.Timestamp
			}
			if st.Oldest.IsZero() || b.Timestamp.Before(st.Oldest) {
				st.Oldest = b.Timestamp
			}
		}
	}
	return st, nil
}

// Close implements Store
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) load(path string) (*fileBatches, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", model.ErrCacheUnavailable, err)
	}

	var fb fileBatches
	if err := json.Unmarshal(data, &fb); err != nil {
		return nil, fmt.Errorf("%w: corrupt cache file %s: %v", model.ErrCacheUnavailable, filepath.Base(path), err)
	}
	return &fb, nil
}

func (s *FileStore) save(path string, fb *fileBatches) error {
	data, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("marshal batches: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write: %v", model.ErrCacheUnavailable, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: rename: %v", model.ErrCacheUnavailable, err)
	}
	return nil
}

// path generates the file path for a query
func (s *FileStore) path(query string) string {
	key := strings.TrimPrefix(CacheKey(query), "veille:v1:")
	return filepath.Join(s.dir, key+".json")
}
