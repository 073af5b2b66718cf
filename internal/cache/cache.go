package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ppiankov/veille/internal/model"
)

// Store persists fetch batches keyed by the effective query.
// Writes are append-only: each call stores one new batch.
type Store interface {
	// Read returns the most recent batch for query, or nil when none exists.
	// Validity against a TTL is decided by the caller via model.CacheEntry.IsValid.
	Read(ctx context.Context, query string) (*model.CacheEntry, error)

	// Write appends records as a new batch stamped with at
	Write(ctx context.Context, query string, records []model.Record, at time.Time) error

	// Purge removes batches older than the cutoff and returns the rows removed
	Purge(ctx context.Context, olderThan time.Time) (int64, error)

	// Stats describes the store contents
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// Stats summarizes stored rows
type Stats struct {
	Backend string
	Rows    int64
	Queries int64
	Newest  time.Time
	Oldest  time.Time
}

// CacheKey generates a stable key from a query string
func CacheKey(query string) string {
	hash := sha256.Sum256([]byte(query))
	return "veille:v1:" + hex.EncodeToString(hash[:])
}

// Lookup reads the latest batch and reports whether it is valid for ttl at now.
// A ttl of zero or less accepts any age (offline fallback).
func Lookup(ctx context.Context, s Store, query string, ttl time.Duration, now time.Time) (bool, *model.CacheEntry, error) {
	entry, err := s.Read(ctx, query)
	if err != nil {
		return false, nil, err
	}
	if entry == nil || len(entry.Records) == 0 {
		return false, nil, nil
	}
	if ttl > 0 && !entry.IsValid(now, ttl) {
		return false, entry, nil
	}
	return true, entry, nil
}
