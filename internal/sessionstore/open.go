package sessionstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/discord-core/internal/config"
	"github.com/rickgao/discord-core/internal/database"
)

// Open builds the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.SessionStoreConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case "", config.DriverMemory:
		return NewMemory(), nil

	case config.DriverSQLite:
		return NewSQLite(cfg.Path, logger)

	case config.DriverPostgres:
		pool, err := database.Connect(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store, err := NewPostgres(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		store.owned = true
		return store, nil

	default:
		return nil, fmt.Errorf("unknown session store driver %q", cfg.Driver)
	}
}
