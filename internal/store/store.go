// Package store persists pantry records and sync configurations. Two
// backends exist: SQLite (default, single file) and Postgres (pgxpool).
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sharedharvest/pantry-directory/internal/model"
)

// Store defines the persistence interface for the directory core. Pantry
// reads and listings return only active records; soft-deleted rows stay in
// the tables but never surface here.
type Store interface {
	// Pantry records
	CreatePantry(ctx context.Context, rec model.PantryRecord) (*model.PantryRecord, error)
	GetPantry(ctx context.Context, id string) (*model.PantryRecord, error)
	ListActivePantries(ctx context.Context) ([]model.PantryRecord, error)

	// Sync configurations
	CreateSyncConfig(ctx context.Context, cfg model.SyncConfiguration) (*model.SyncConfiguration, error)
	GetSyncConfig(ctx context.Context, id string) (*model.SyncConfiguration, error)
	ListSyncConfigs(ctx context.Context) ([]model.SyncConfiguration, error)
	UpdateSyncStatus(ctx context.Context, id string, status model.SyncStatus, lastError string, syncTime *time.Time) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New creates a Store for the configured driver ("sqlite" or "postgres").
func New(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLite(databaseURL)
	case "postgres":
		return NewPostgres(ctx, databaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// checkRowsAffected converts a zero-row update into a not-found error.
func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "store: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Errorf("store: %s %s not found", entity, id)
	}
	return nil
}
