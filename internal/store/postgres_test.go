package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_GetConfig_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT scope, version, payload, updated_at FROM business_configs`).
		WithArgs("global").
		WillReturnRows(pgxmock.NewRows([]string{"scope", "version", "payload", "updated_at"}))

	rec, err := s.GetConfig(context.Background(), "global")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetConfig_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT scope, version, payload, updated_at FROM business_configs`).
		WithArgs("domain:7").
		WillReturnRows(pgxmock.
			NewRows([]string{"scope", "version", "payload", "updated_at"}).
			AddRow("domain:7", int64(3), json.RawMessage(`{"weights":{}}`), now))

	rec, err := s.GetConfig(context.Background(), "domain:7")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(3), rec.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompareAndPut_Update(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE business_configs SET version = \$1`).
		WithArgs(int64(4), json.RawMessage(`{"a":1}`), pgxmock.AnyArg(), "global", int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	rec, err := s.CompareAndPutConfig(context.Background(), "global", 3, json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompareAndPut_VersionConflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE business_configs SET version = \$1`).
		WithArgs(int64(4), json.RawMessage(`{}`), pgxmock.AnyArg(), "global", int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	_, err := s.CompareAndPutConfig(context.Background(), "global", 3, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrVersionConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompareAndPut_CreateRace(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// ON CONFLICT DO NOTHING inserts zero rows when another writer won.
	mock.ExpectExec(`INSERT INTO business_configs`).
		WithArgs("category:toys", int64(1), json.RawMessage(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	_, err := s.CompareAndPutConfig(context.Background(), "category:toys", 0, json.RawMessage(`{}`))
	assert.True(t, eris.Is(err, ErrVersionConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendAudit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO config_audit`).
		WithArgs("rec-1", "global", int64(1), int64(2), json.RawMessage(`{"weights":{}}`), "tune weights", "alice", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.AppendAudit(context.Background(), AuditRecord{
		ID:         "rec-1",
		Scope:      "global",
		OldVersion: 1,
		NewVersion: 2,
		Diff:       json.RawMessage(`{"weights":{}}`),
		Reason:     "tune weights",
		Actor:      "alice",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAudit_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, scope, old_version, new_version, diff, reason, actor, created_at FROM config_audit`).
		WithArgs("global", "alice", 50).
		WillReturnRows(pgxmock.
			NewRows([]string{"id", "scope", "old_version", "new_version", "diff", "reason", "actor", "created_at"}).
			AddRow("rec-1", "global", int64(1), int64(2), json.RawMessage(`{}`), "r", "alice", now))

	recs, err := s.ListAudit(context.Background(), AuditFilter{Scope: "global", Actor: "alice", Limit: 50})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "alice", recs[0].Actor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SnapshotCache(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO snapshot_cache`).
		WithArgs("product:B000X", json.RawMessage(`{}`), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT data FROM snapshot_cache`).
		WithArgs("product:B000X").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(json.RawMessage(`{}`)))

	require.NoError(t, s.SetCachedSnapshot(context.Background(), "product:B000X", json.RawMessage(`{}`), time.Hour))

	data, err := s.GetCachedSnapshot(context.Background(), "product:B000X")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}
