package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sharedharvest/pantry-directory/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pantries (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	address     TEXT NOT NULL DEFAULT '',
	city        TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL DEFAULT '',
	postal_code TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL DEFAULT '',
	website     TEXT NOT NULL DEFAULT '',
	latitude    REAL,
	longitude   REAL,
	hours       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	services    TEXT NOT NULL DEFAULT '[]',
	access_mode TEXT NOT NULL DEFAULT '',
	active      INTEGER NOT NULL DEFAULT 1,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sync_configs (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	kind             TEXT NOT NULL DEFAULT '',
	credentials      TEXT NOT NULL DEFAULT '{}',
	mapping          TEXT NOT NULL DEFAULT '{}',
	last_sync_status TEXT NOT NULL DEFAULT 'pending',
	last_error       TEXT NOT NULL DEFAULT '',
	last_sync_time   DATETIME,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_pantries_active ON pantries(active);
CREATE INDEX IF NOT EXISTS idx_pantries_state ON pantries(state);
CREATE INDEX IF NOT EXISTS idx_sync_configs_status ON sync_configs(last_sync_status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreatePantry(ctx context.Context, rec model.PantryRecord) (*model.PantryRecord, error) {
	rec.ID = uuid.New().String()
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Active = true

	servicesJSON, err := json.Marshal(rec.Services)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal services")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pantries (id, name, address, city, state, postal_code, phone, email, website,
			latitude, longitude, hours, description, services, access_mode, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Address, rec.City, rec.State, rec.PostalCode, rec.Phone, rec.Email, rec.Website,
		rec.Latitude, rec.Longitude, rec.Hours, rec.Description, string(servicesJSON), string(rec.AccessMode),
		boolToInt(rec.Active), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert pantry")
	}
	return &rec, nil
}

const pantryColumns = `id, name, address, city, state, postal_code, phone, email, website,
	latitude, longitude, hours, description, services, access_mode, active, created_at, updated_at`

func (s *SQLiteStore) GetPantry(ctx context.Context, id string) (*model.PantryRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pantryColumns+` FROM pantries WHERE id = ? AND active = 1`, id,
	)
	rec, err := scanPantry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get pantry %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) ListActivePantries(ctx context.Context) ([]model.PantryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pantryColumns+` FROM pantries WHERE active = 1 ORDER BY name, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list active pantries")
	}
	defer rows.Close()

	var out []model.PantryRecord
	for rows.Next() {
		rec, err := scanPantry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pantry")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate pantries")
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPantry(row rowScanner) (*model.PantryRecord, error) {
	var (
		rec          model.PantryRecord
		servicesJSON string
		accessMode   string
		active       int
	)
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Address, &rec.City, &rec.State, &rec.PostalCode,
		&rec.Phone, &rec.Email, &rec.Website, &rec.Latitude, &rec.Longitude,
		&rec.Hours, &rec.Description, &servicesJSON, &accessMode, &active,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if servicesJSON != "" && servicesJSON != "[]" {
		if err := json.Unmarshal([]byte(servicesJSON), &rec.Services); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal services")
		}
	}
	rec.AccessMode = model.AccessMode(accessMode)
	rec.Active = active != 0
	return &rec, nil
}

func (s *SQLiteStore) CreateSyncConfig(ctx context.Context, cfg model.SyncConfiguration) (*model.SyncConfiguration, error) {
	cfg.ID = uuid.New().String()
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	if cfg.LastSyncStatus == "" {
		cfg.LastSyncStatus = model.SyncStatusPending
	}

	credsJSON, err := json.Marshal(cfg.Credentials)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal credentials")
	}
	mappingJSON, err := json.Marshal(cfg.Mapping)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal mapping")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sync_configs (id, name, kind, credentials, mapping, last_sync_status, last_error, last_sync_time, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID, cfg.Name, cfg.Kind, string(credsJSON), string(mappingJSON),
		string(cfg.LastSyncStatus), cfg.LastError, cfg.LastSyncTime, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert sync config")
	}
	return &cfg, nil
}

const syncConfigColumns = `id, name, kind, credentials, mapping, last_sync_status, last_error, last_sync_time, created_at, updated_at`

func (s *SQLiteStore) GetSyncConfig(ctx context.Context, id string) (*model.SyncConfiguration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+syncConfigColumns+` FROM sync_configs WHERE id = ?`, id,
	)
	cfg, err := scanSyncConfig(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get sync config %s", id)
	}
	return cfg, nil
}

func (s *SQLiteStore) ListSyncConfigs(ctx context.Context) ([]model.SyncConfiguration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+syncConfigColumns+` FROM sync_configs ORDER BY name, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sync configs")
	}
	defer rows.Close()

	var out []model.SyncConfiguration
	for rows.Next() {
		cfg, err := scanSyncConfig(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync config")
		}
		out = append(out, *cfg)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate sync configs")
}

func scanSyncConfig(row rowScanner) (*model.SyncConfiguration, error) {
	var (
		cfg         model.SyncConfiguration
		credsJSON   string
		mappingJSON string
		status      string
	)
	err := row.Scan(
		&cfg.ID, &cfg.Name, &cfg.Kind, &credsJSON, &mappingJSON,
		&status, &cfg.LastError, &cfg.LastSyncTime, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(credsJSON), &cfg.Credentials); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal credentials")
	}
	if err := json.Unmarshal([]byte(mappingJSON), &cfg.Mapping); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal mapping")
	}
	cfg.LastSyncStatus = model.SyncStatus(status)
	return &cfg, nil
}

func (s *SQLiteStore) UpdateSyncStatus(ctx context.Context, id string, status model.SyncStatus, lastError string, syncTime *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_configs SET last_sync_status = ?, last_error = ?, last_sync_time = COALESCE(?, last_sync_time), updated_at = ? WHERE id = ?`,
		string(status), lastError, syncTime, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update sync status %s", id)
	}
	return checkRowsAffected(res, "sync config", id)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
