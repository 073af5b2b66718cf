package cache

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/ppiankov/veille/internal/model"
)

// DefaultPath returns the default durable cache location for a backend
func DefaultPath(backend string) (string, error) {
	switch backend {
	case "file":
		return filepath.Join(xdg.CacheHome, "veille", "batches"), nil
	default:
		return xdg.DataFile(filepath.Join("veille", "veille_cache.db"))
	}
}

// Open builds the configured store. A backend that cannot be opened degrades
// to NullStore with a warning so runs continue uncached.
func Open(cfg model.CacheConfig, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := open(cfg)
	if err != nil {
		logger.Warn("cache unavailable, continuing without cache",
			zap.String("backend", cfg.Backend),
			zap.Error(err),
		)
		return NullStore{}
	}
	return store
}

func open(cfg model.CacheConfig) (Store, error) {
	backend := strings.ToLower(cfg.Backend)

	path := cfg.Path
	if path == "" && (backend == "sqlite" || backend == "file" || backend == "") {
		p, err := DefaultPath(backend)
		if err != nil {
			return nil, fmt.Errorf("resolve cache path: %w", err)
		}
		path = p
	}

	var durable Store
	switch backend {
	case "sqlite", "":
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		durable = s
	case "file":
		s, err := NewFileStore(path)
		if err != nil {
			return nil, err
		}
		durable = s
	case "memory":
		// validity is decided by Lookup; only Purge removes batches
		return NewMemoryStore(gocache.NoExpiration, 0), nil
	case "none":
		return NullStore{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s (supported: sqlite, file, memory, none)", cfg.Backend)
	}

	if cfg.MemoryTTL > 0 {
		return NewLayeredStore(cfg.MemoryTTL, durable), nil
	}
	return durable, nil
}
