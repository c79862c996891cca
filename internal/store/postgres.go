package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
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
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS business_configs (
	scope      TEXT PRIMARY KEY,
	version    BIGINT NOT NULL,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS config_audit (
	id          TEXT PRIMARY KEY,
	scope       TEXT NOT NULL,
	old_version BIGINT NOT NULL,
	new_version BIGINT NOT NULL,
	diff        JSONB NOT NULL,
	reason      TEXT NOT NULL,
	actor       TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS snapshot_cache (
	key        TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_config_audit_scope ON config_audit(scope);
CREATE INDEX IF NOT EXISTS idx_config_audit_actor ON config_audit(actor);
CREATE INDEX IF NOT EXISTS idx_snapshot_cache_expires_at ON snapshot_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetConfig(ctx context.Context, scope string) (*ConfigRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT scope, version, payload, updated_at FROM business_configs WHERE scope = $1`,
		scope,
	)
	var rec ConfigRecord
	err := row.Scan(&rec.Scope, &rec.Version, &rec.Payload, &rec.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get config %s", scope)
	}
	return &rec, nil
}

func (s *PostgresStore) CompareAndPutConfig(ctx context.Context, scope string, expectedVersion int64, payload json.RawMessage) (*ConfigRecord, error) {
	now := time.Now().UTC()
	newVersion := expectedVersion + 1

	var tag pgconn.CommandTag
	var err error
	if expectedVersion == 0 {
		tag, err = s.pool.Exec(ctx,
			`INSERT INTO business_configs (scope, version, payload, updated_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (scope) DO NOTHING`,
			scope, newVersion, payload, now,
		)
	} else {
		tag, err = s.pool.Exec(ctx,
			`UPDATE business_configs SET version = $1, payload = $2, updated_at = $3
			 WHERE scope = $4 AND version = $5`,
			newVersion, payload, now, scope, expectedVersion,
		)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: put config %s", scope)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Wrapf(ErrVersionConflict, "scope %s: expected version %d", scope, expectedVersion)
	}

	return &ConfigRecord{
		Scope:     scope,
		Version:   newVersion,
		Payload:   append(json.RawMessage(nil), payload...),
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) ListConfigScopes(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT scope FROM business_configs ORDER BY scope`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list config scopes")
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scope")
		}
		scopes = append(scopes, scope)
	}
	return scopes, eris.Wrap(rows.Err(), "postgres: list config scopes iterate")
}

func (s *PostgresStore) AppendAudit(ctx context.Context, rec AuditRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO config_audit (id, scope, old_version, new_version, diff, reason, actor, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Scope, rec.OldVersion, rec.NewVersion, rec.Diff, rec.Reason, rec.Actor, rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: append audit for %s", rec.Scope)
}

func (s *PostgresStore) ListAudit(ctx context.Context, filter AuditFilter) ([]AuditRecord, error) {
	query := `SELECT id, scope, old_version, new_version, diff, reason, actor, created_at FROM config_audit WHERE 1=1`
	var args []any
	argNum := 1

	if filter.Scope != "" {
		query += fmt.Sprintf(` AND scope = $%d`, argNum)
		args = append(args, filter.Scope)
		argNum++
	}
	if filter.Actor != "" {
		query += fmt.Sprintf(` AND actor = $%d`, argNum)
		args = append(args, filter.Actor)
		argNum++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argNum)
	args = append(args, effectiveLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit")
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		if err := rows.Scan(&rec.ID, &rec.Scope, &rec.OldVersion, &rec.NewVersion, &rec.Diff, &rec.Reason, &rec.Actor, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list audit iterate")
}

func (s *PostgresStore) GetCachedSnapshot(ctx context.Context, key string) (json.RawMessage, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data FROM snapshot_cache WHERE key = $1 AND expires_at > now()`,
		key,
	)
	var data json.RawMessage
	err := row.Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached snapshot")
	}
	return data, nil
}

func (s *PostgresStore) SetCachedSnapshot(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO snapshot_cache (key, data, cached_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, data, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached snapshot")
}

func (s *PostgresStore) DeleteExpiredSnapshots(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM snapshot_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired snapshots")
	}
	return int(tag.RowsAffected()), nil
}
