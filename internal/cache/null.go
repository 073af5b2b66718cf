package cache

import (
	"context"
	"time"

	"github.com/ppiankov/veille/internal/model"
)

// NullStore never holds anything; selected when caching is disabled
// or the configured backend could not be opened.
type NullStore struct{}

func (NullStore) Read(ctx context.Context, query string) (*model.CacheEntry, error) { return nil, nil }

func (NullStore) Write(ctx context.Context, query string, records []model.Record, at time.Time) error {
	return nil
}

func (NullStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) { return 0, nil }

func (NullStore) Stats(ctx context.Context) (Stats, error) { return Stats{Backend: "none"}, nil }

func (NullStore) Close() error { return nil }
