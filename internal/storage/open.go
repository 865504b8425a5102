package storage

import (
	"context"
	"errors"
	"strings"

	"likhtar/internal/config"
	logx "likhtar/pkg/logx"
)

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(ctx context.Context, cfg *config.StorageConfig, log logx.Logger) (Store, error) {
	if cfg == nil {
		return nil, nil
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "postgres", "postgresql", "pgx":
		return openPostgres(ctx, cfg.DSN, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg.Path, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
