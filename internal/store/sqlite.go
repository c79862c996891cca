package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
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
CREATE TABLE IF NOT EXISTS business_configs (
	scope      TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS config_audit (
	id          TEXT PRIMARY KEY,
	scope       TEXT NOT NULL,
	old_version INTEGER NOT NULL,
	new_version INTEGER NOT NULL,
	diff        TEXT NOT NULL,
	reason      TEXT NOT NULL,
	actor       TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS snapshot_cache (
	key        TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_config_audit_scope ON config_audit(scope);
CREATE INDEX IF NOT EXISTS idx_config_audit_actor ON config_audit(actor);
CREATE INDEX IF NOT EXISTS idx_snapshot_cache_expires_at ON snapshot_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetConfig(ctx context.Context, scope string) (*ConfigRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT scope, version, payload, updated_at FROM business_configs WHERE scope = ?`,
		scope,
	)
	var rec ConfigRecord
	var payload string
	err := row.Scan(&rec.Scope, &rec.Version, &payload, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get config %s", scope)
	}
	rec.Payload = json.RawMessage(payload)
	return &rec, nil
}

func (s *SQLiteStore) CompareAndPutConfig(ctx context.Context, scope string, expectedVersion int64, payload json.RawMessage) (*ConfigRecord, error) {
	now := time.Now().UTC()
	newVersion := expectedVersion + 1

	var res sql.Result
	var err error
	if expectedVersion == 0 {
		// Create: must not exist. The PRIMARY KEY rejects a racing create.
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO business_configs (scope, version, payload, updated_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(scope) DO NOTHING`,
			scope, newVersion, string(payload), now,
		)
	} else {
		// Conditional update: zero rows affected means the version moved.
		res, err = s.db.ExecContext(ctx,
			`UPDATE business_configs SET version = ?, payload = ?, updated_at = ?
			 WHERE scope = ? AND version = ?`,
			newVersion, string(payload), now, scope, expectedVersion,
		)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: put config %s", scope)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return nil, eris.Wrapf(ErrVersionConflict, "scope %s: expected version %d", scope, expectedVersion)
	}

	return &ConfigRecord{
		Scope:     scope,
		Version:   newVersion,
		Payload:   append(json.RawMessage(nil), payload...),
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) ListConfigScopes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT scope FROM business_configs ORDER BY scope`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list config scopes")
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan scope")
		}
		scopes = append(scopes, scope)
	}
	return scopes, eris.Wrap(rows.Err(), "sqlite: list config scopes iterate")
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, rec AuditRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config_audit (id, scope, old_version, new_version, diff, reason, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Scope, rec.OldVersion, rec.NewVersion, string(rec.Diff), rec.Reason, rec.Actor, rec.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: append audit for %s", rec.Scope)
}

func (s *SQLiteStore) ListAudit(ctx context.Context, filter AuditFilter) ([]AuditRecord, error) {
	query := `SELECT id, scope, old_version, new_version, diff, reason, actor, created_at FROM config_audit WHERE 1=1`
	var args []any

	if filter.Scope != "" {
		query += ` AND scope = ?`
		args = append(args, filter.Scope)
	}
	if filter.Actor != "" {
		query += ` AND actor = ?`
		args = append(args, filter.Actor)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, effectiveLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var diff string
		if err := rows.Scan(&rec.ID, &rec.Scope, &rec.OldVersion, &rec.NewVersion, &diff, &rec.Reason, &rec.Actor, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit")
		}
		rec.Diff = json.RawMessage(diff)
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list audit iterate")
}

func (s *SQLiteStore) GetCachedSnapshot(ctx context.Context, key string) (json.RawMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM snapshot_cache WHERE key = ? AND expires_at > datetime('now')`,
		key,
	)
	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached snapshot")
	}
	return json.RawMessage(data), nil
}

func (s *SQLiteStore) SetCachedSnapshot(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshot_cache (key, data, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, string(data), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached snapshot")
}

func (s *SQLiteStore) DeleteExpiredSnapshots(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshot_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired snapshots")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
