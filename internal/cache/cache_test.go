package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ppiankov/veille/internal/model"
)

func sampleRecords(keyword string) []model.Record {
	return []model.Record{
		{
			ID:            model.RecordID(keyword, model.SourceNewsFeed, "https://news.example/1"),
			Keyword:       keyword,
			Title:         "Nouvelle IA en santé",
			URL:           "https://news.example/1",
			SourceType:    model.SourceNewsFeed,
			SourceName:    "Le Devoir",
			PublishedDate: "2025-10-01",
			Abstract:      "Un hôpital québécois adopte un agent.",
		},
		{
			ID:            model.RecordID(keyword, model.SourceAcademicSearch, "http://arxiv.org/abs/1"),
			Keyword:       keyword,
			Title:         "Agentic finance",
			URL:           "http://arxiv.org/abs/1",
			SourceType:    model.SourceAcademicSearch,
			SourceName:    "arXiv (cs.AI)",
			PublishedDate: model.UnknownDate,
		},
	}
}

// stores returns one fresh instance of every backend
func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	sqlite, err := OpenSQLite(filepath.Join(dir, "db", "cache.db"))
	require.NoError(t, err)
	layeredDB, err := OpenSQLite(filepath.Join(dir, "layered.db"))
	require.NoError(t, err)
	file, err := NewFileStore(filepath.Join(dir, "files"))
	require.NoError(t, err)

	all := map[string]Store{
		"sqlite":  sqlite,
		"file":    file,
		"memory":  NewMemoryStore(time.Hour, time.Minute),
		"layered": NewLayeredStore(time.Minute, layeredDB),
	}
	t.Cleanup(func() {
		for _, s := range all {
			_ = s.Close()
		}
	})
	return all
}

func TestStore_WriteThenRead(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			at := time.Date(2025, 10, 2, 9, 0, 0, 0, time.UTC)
			records := sampleRecords("ia")
			require.NoError(t, store.Write(ctx, "ia santé", records, at))

			entry, err := store.Read(ctx, "ia santé")
			require.NoError(t, err)
			require.NotNil(t, entry)
			assert.True(t, entry.Timestamp.Equal(at), "timestamp %v", entry.Timestamp)
			if diff := cmp.Diff(records, entry.Records); diff != "" {
				t.Errorf("records mismatch (-want +got):\n%s", diff)
			}

			missing, err := store.Read(ctx, "other query")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestStore_LatestBatchWins(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			old := time.Now().Add(-48 * time.Hour)
			recent := time.Now().Add(-time.Hour)

			require.NoError(t, store.Write(ctx, "ia", sampleRecords("ia"), old))
			require.NoError(t, store.Write(ctx, "ia", sampleRecords("ia")[:1], recent))

			entry, err := store.Read(ctx, "ia")
			require.NoError(t, err)
			require.NotNil(t, entry)
			assert.Len(t, entry.Records, 1)
			assert.WithinDuration(t, recent, entry.Timestamp, time.Millisecond)
		})
	}
}

func TestStore_EmptyWriteIsNoop(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Write(ctx, "ia", nil, time.Now()))
			entry, err := store.Read(ctx, "ia")
			require.NoError(t, err)
			assert.Nil(t, entry)
		})
	}
}

func TestStore_Purge(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Now()
			require.NoError(t, store.Write(ctx, "old", sampleRecords("old"), now.Add(-40*24*time.Hour)))
			require.NoError(t, store.Write(ctx, "new", sampleRecords("new"), now))

			removed, err := store.Purge(ctx, now.Add(-30*24*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, int64(2), removed)

			entry, err := store.Read(ctx, "old")
			require.NoError(t, err)
			assert.Nil(t, entry)

			st, err := store.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(2), st.Rows)
			assert.Equal(t, int64(1), st.Queries)
		})
	}
}

func TestSQLiteStore_AppendOnlyKeepsDuplicates(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	at := time.Now()
	require.NoError(t, store.Write(ctx, "ia", sampleRecords("ia"), at.Add(-time.Minute)))
	require.NoError(t, store.Write(ctx, "ia", sampleRecords("ia"), at))

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.Rows, "identical batches are stored side by side")
	assert.Equal(t, int64(1), st.Queries)
}

func TestLookup_TTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0, 0)
	ttl := 24 * time.Hour
	now := time.Now()

	// Stamped one hour past the TTL: rows exist but the entry is invalid
	require.NoError(t, store.Write(ctx, "ia", sampleRecords("ia"), now.Add(-ttl-time.Hour)))

	valid, entry, err := Lookup(ctx, store, "ia", ttl, now)
	require.NoError(t, err)
	assert.False(t, valid)
	require.NotNil(t, entry, "expired entries are still returned for offline fallback")
	assert.Len(t, entry.Records, 2)

	valid, _, err = Lookup(ctx, store, "ia", 0, now)
	require.NoError(t, err)
	assert.True(t, valid, "ttl <= 0 accepts any age")

	require.NoError(t, store.Write(ctx, "ia", sampleRecords("ia"), now.Add(-time.Minute)))
	valid, _, err = Lookup(ctx, store, "ia", ttl, now)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestFileStore_CorruptFileIsCacheUnavailable(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.path("ia"), []byte("{broken"), 0o644))

	_, err = store.Read(context.Background(), "ia")
	assert.ErrorIs(t, err, model.ErrCacheUnavailable)
}

func TestOpen_Backends(t *testing.T) {
	dir := t.TempDir()
	logger := zap.NewNop()

	s := Open(model.CacheConfig{Backend: "sqlite", Path: filepath.Join(dir, "a.db"), MemoryTTL: time.Minute}, logger)
	_, layered := s.(*LayeredStore)
	assert.True(t, layered)
	_ = s.Close()

	s = Open(model.CacheConfig{Backend: "file", Path: filepath.Join(dir, "files")}, logger)
	_, isFile := s.(*FileStore)
	assert.True(t, isFile)

	assert.IsType(t, NullStore{}, Open(model.CacheConfig{Backend: "none"}, logger))
	assert.IsType(t, NullStore{}, Open(model.CacheConfig{Backend: "redis"}, logger), "unknown backend degrades")

	// A path below a regular file cannot be created
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	assert.IsType(t, NullStore{}, Open(model.CacheConfig{Backend: "sqlite", Path: filepath.Join(blocker, "c.db")}, logger))
}

func TestOpen_MemoryBackendKeepsExpiredBatches(t *testing.T) {
	ctx := context.Background()
	s := Open(model.CacheConfig{Backend: "memory", TTL: 50 * time.Millisecond}, zap.NewNop())
	defer func() { _ = s.Close() }()

	at := time.Now().Add(-48 * time.Hour)
	require.NoError(t, s.Write(ctx, "ia", sampleRecords("ia"), at))
	time.Sleep(100 * time.Millisecond)

	valid, entry, err := Lookup(ctx, s, "ia", time.Hour, time.Now())
	require.NoError(t, err)
	assert.False(t, valid, "a 48h old batch is past the TTL")
	require.NotNil(t, entry, "expired batches stay readable for the offline fallback")
	assert.Len(t, entry.Records, 2)

	removed, err := s.Purge(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, entry, err = Lookup(ctx, s, "ia", 0, time.Now())
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("ia santé"), CacheKey("ia santé"))
	assert.NotEqual(t, CacheKey("ia"), CacheKey("ia santé"))
	assert.Contains(t, CacheKey("ia"), "veille:v1:")
}
