// Package storage provides the compliance.Store backends.
//
// Two backends are available:
//
//   - SQLite: durable storage through database/sql, using either the mattn
//     driver ("sqlite3", cgo) or the modernc driver ("sqlite", pure Go)
//   - Memory: an in-process store for tests and throwaway runs
//
// DryRun wraps either backend and discards writes.
//
// # Usage
//
//	store, err := storage.Open(&cfg.Storage, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mercator-hq/warden/pkg/compliance"
	"mercator-hq/warden/pkg/config"
)

// DriverMemory selects the in-memory backend.
const DriverMemory = "memory"

// Open returns the backend selected by cfg.Driver. For SQLite the parent
// directory of the database file is created when missing.
func Open(cfg *config.StorageConfig, logger *slog.Logger) (compliance.Store, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverMattn, DriverModernc:
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, compliance.NewStorageError("sqlite", "mkdir", err)
			}
		}
		return NewSQLite(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
