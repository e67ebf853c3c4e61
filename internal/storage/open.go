package storage

import (
	"context"
	"fmt"

	"github.com/chat-upload-api/backend/internal/config"
	"github.com/labstack/gommon/log"
)

// Open builds the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig, logger *log.Logger) (Store, error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendDuckDB:
		return NewDuckDBStore(ctx, DuckDBOptions{
			Path:        cfg.DuckDBPath,
			Threads:     cfg.DuckDBThreads,
			MemoryLimit: cfg.DuckDBMemoryLimit,
		}, logger)
	case config.BackendPostgres:
		return NewPostgresStore(ctx, cfg.PostgresDSN, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
