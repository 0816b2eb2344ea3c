package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sharedharvest/pantry-directory/internal/db"
	"github.com/sharedharvest/pantry-directory/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
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
	latitude    DOUBLE PRECISION,
	longitude   DOUBLE PRECISION,
	hours       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	services    JSONB NOT NULL DEFAULT '[]',
	access_mode TEXT NOT NULL DEFAULT '',
	active      BOOLEAN NOT NULL DEFAULT true,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_configs (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	kind             TEXT NOT NULL DEFAULT '',
	credentials      JSONB NOT NULL DEFAULT '{}',
	mapping          JSONB NOT NULL DEFAULT '{}',
	last_sync_status TEXT NOT NULL DEFAULT 'pending',
	last_error       TEXT NOT NULL DEFAULT '',
	last_sync_time   TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pantries_active ON pantries(active);
CREATE INDEX IF NOT EXISTS idx_pantries_state ON pantries(state);
CREATE INDEX IF NOT EXISTS idx_sync_configs_status ON sync_configs(last_sync_status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreatePantry(ctx context.Context, rec model.PantryRecord) (*model.PantryRecord, error) {
	rec.ID = uuid.New().String()
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Active = true

	servicesJSON, err := json.Marshal(rec.Services)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal services")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO pantries (id, name, address, city, state, postal_code, phone, email, website,
			latitude, longitude, hours, description, services, access_mode, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		rec.ID, rec.Name, rec.Address, rec.City, rec.State, rec.PostalCode, rec.Phone, rec.Email, rec.Website,
		rec.Latitude, rec.Longitude, rec.Hours, rec.Description, servicesJSON, string(rec.AccessMode),
		rec.Active, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert pantry")
	}
	return &rec, nil
}

func (s *PostgresStore) GetPantry(ctx context.Context, id string) (*model.PantryRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pantryColumns+` FROM pantries WHERE id = $1 AND active`, id,
	)
	rec, err := scanPantryPG(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get pantry %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListActivePantries(ctx context.Context) ([]model.PantryRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pantryColumns+` FROM pantries WHERE active ORDER BY name, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list active pantries")
	}
	defer rows.Close()

	var out []model.PantryRecord
	for rows.Next() {
		rec, err := scanPantryPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan pantry")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate pantries")
}

func scanPantryPG(row pgx.Row) (*model.PantryRecord, error) {
	var (
		rec          model.PantryRecord
		servicesJSON []byte
		accessMode   string
	)
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Address, &rec.City, &rec.State, &rec.PostalCode,
		&rec.Phone, &rec.Email, &rec.Website, &rec.Latitude, &rec.Longitude,
		&rec.Hours, &rec.Description, &servicesJSON, &accessMode, &rec.Active,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(servicesJSON) > 0 {
		if err := json.Unmarshal(servicesJSON, &rec.Services); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal services")
		}
	}
	rec.AccessMode = model.AccessMode(accessMode)
	return &rec, nil
}

func (s *PostgresStore) CreateSyncConfig(ctx context.Context, cfg model.SyncConfiguration) (*model.SyncConfiguration, error) {
	cfg.ID = uuid.New().String()
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	if cfg.LastSyncStatus == "" {
		cfg.LastSyncStatus = model.SyncStatusPending
	}

	credsJSON, err := json.Marshal(cfg.Credentials)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal credentials")
	}
	mappingJSON, err := json.Marshal(cfg.Mapping)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal mapping")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sync_configs (id, name, kind, credentials, mapping, last_sync_status, last_error, last_sync_time, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		cfg.ID, cfg.Name, cfg.Kind, credsJSON, mappingJSON,
		string(cfg.LastSyncStatus), cfg.LastError, cfg.LastSyncTime, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert sync config")
	}
	return &cfg, nil
}

func (s *PostgresStore) GetSyncConfig(ctx context.Context, id string) (*model.SyncConfiguration, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+syncConfigColumns+` FROM sync_configs WHERE id = $1`, id,
	)
	cfg, err := scanSyncConfigPG(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get sync config %s", id)
	}
	return cfg, nil
}

func (s *PostgresStore) ListSyncConfigs(ctx context.Context) ([]model.SyncConfiguration, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+syncConfigColumns+` FROM sync_configs ORDER BY name, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sync configs")
	}
	defer rows.Close()

	var out []model.SyncConfiguration
	for rows.Next() {
		cfg, err := scanSyncConfigPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync config")
		}
		out = append(out, *cfg)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate sync configs")
}

func scanSyncConfigPG(row pgx.Row) (*model.SyncConfiguration, error) {
	var (
		cfg         model.SyncConfiguration
		credsJSON   []byte
		mappingJSON []byte
		status      string
	)
	err := row.Scan(
		&cfg.ID, &cfg.Name, &cfg.Kind, &credsJSON, &mappingJSON,
		&status, &cfg.LastError, &cfg.LastSyncTime, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(credsJSON, &cfg.Credentials); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal credentials")
	}
	if err := json.Unmarshal(mappingJSON, &cfg.Mapping); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal mapping")
	}
	cfg.LastSyncStatus = model.SyncStatus(status)
	return &cfg, nil
}

func (s *PostgresStore) UpdateSyncStatus(ctx context.Context, id string, status model.SyncStatus, lastError string, syncTime *time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_configs SET last_sync_status = $1, last_error = $2, last_sync_time = COALESCE($3, last_sync_time), updated_at = $4 WHERE id = $5`,
		string(status), lastError, syncTime, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update sync status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: sync config %s not found", id)
	}
	return nil
}
