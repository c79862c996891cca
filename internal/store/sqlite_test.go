package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestSQLite_GetConfig_Missing(t *testing.T) {
	s := newTestSQLite(t)
	rec, err := s.GetConfig(context.Background(), "global")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSQLite_CreateThenUpdate(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec, err := s.CompareAndPutConfig(ctx, "global", 0, json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
	assert.False(t, rec.UpdatedAt.IsZero())

	rec, err = s.CompareAndPutConfig(ctx, "global", 1, json.RawMessage(`{"a":2}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)

	got, err := s.GetConfig(ctx, "global")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.JSONEq(t, `{"a":2}`, string(got.Payload))
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSQLite_StaleVersionConflicts(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.CompareAndPutConfig(ctx, "global", 0, json.RawMessage(`{}`))
	require.NoError(t, err)

	// Racing create: the row exists, INSERT ... DO NOTHING affects no rows.
	_, err = s.CompareAndPutConfig(ctx, "global", 0, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrVersionConflict))

	// Stale update: the conditional UPDATE matches no row.
	_, err = s.CompareAndPutConfig(ctx, "global", 5, json.RawMessage(`{}`))
	assert.True(t, eris.Is(err, ErrVersionConflict))

	got, err := s.GetConfig(ctx, "global")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
}

func TestSQLite_CreateOnMissingScopeRequiresVersionZero(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.CompareAndPutConfig(context.Background(), "domain:7", 3, json.RawMessage(`{}`))
	assert.True(t, eris.Is(err, ErrVersionConflict))
}

func TestSQLite_ListConfigScopes(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for _, scope := range []string{"global", "domain:1", "category:Toys & Games"} {
		_, err := s.CompareAndPutConfig(ctx, scope, 0, json.RawMessage(`{}`))
		require.NoError(t, err)
	}

	scopes, err := s.ListConfigScopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"category:Toys & Games", "domain:1", "global"}, scopes)
}

func TestSQLite_AuditFilterAndOrder(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, actor := range []string{"alice", "bob", "alice"} {
		require.NoError(t, s.AppendAudit(ctx, AuditRecord{
			ID:         string(rune('a' + i)),
			Scope:      "global",
			OldVersion: int64(i),
			NewVersion: int64(i + 1),
			Diff:       json.RawMessage(`{"lookback_days":30}`),
			Reason:     "tune lookback",
			Actor:      actor,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recs, err := s.ListAudit(ctx, AuditFilter{Scope: "global", Actor: "alice"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	// Newest first.
	assert.Equal(t, int64(3), recs[0].NewVersion)
	assert.JSONEq(t, `{"lookback_days":30}`, string(recs[0].Diff))
	assert.Equal(t, "tune lookback", recs[0].Reason)

	recs, err = s.ListAudit(ctx, AuditFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = s.ListAudit(ctx, AuditFilter{Actor: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSQLite_SnapshotCacheTTL(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SetCachedSnapshot(ctx, "product:B000X", json.RawMessage(`{"asin":"B000X"}`), time.Hour))

	data, err := s.GetCachedSnapshot(ctx, "product:B000X")
	require.NoError(t, err)
	assert.JSONEq(t, `{"asin":"B000X"}`, string(data))

	// Upsert replaces the payload for an existing key.
	require.NoError(t, s.SetCachedSnapshot(ctx, "product:B000X", json.RawMessage(`{"asin":"B000X","v":2}`), time.Hour))
	data, err = s.GetCachedSnapshot(ctx, "product:B000X")
	require.NoError(t, err)
	assert.JSONEq(t, `{"asin":"B000X","v":2}`, string(data))

	// An already-expired entry reads as a miss and is swept.
	require.NoError(t, s.SetCachedSnapshot(ctx, "product:B000Y", json.RawMessage(`{"asin":"B000Y"}`), -time.Hour))
	data, err = s.GetCachedSnapshot(ctx, "product:B000Y")
	require.NoError(t, err)
	assert.Nil(t, data)

	n, err := s.DeleteExpiredSnapshots(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The live entry survives the sweep.
	data, err = s.GetCachedSnapshot(ctx, "product:B000X")
	require.NoError(t, err)
	assert.NotNil(t, data)
}
