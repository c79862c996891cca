// Package store persists business configurations, their audit trail, and the
// raw-snapshot cache. Three backends: in-memory (tests), SQLite (local), and
// Postgres (production).
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// ErrVersionConflict is returned by CompareAndPutConfig when the caller's
// expected version no longer matches the stored version. The caller must
// re-fetch and retry; writes are never silently overwritten.
var ErrVersionConflict = eris.New("store: config version conflict")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// ConfigRecord is one stored configuration scope with its version.
type ConfigRecord struct {
	Scope     string          `json:"scope"`
	Version   int64           `json:"version"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AuditRecord is one append-only entry in the configuration audit trail.
// Records are never mutated after insertion.
type AuditRecord struct {
	ID         string          `json:"id"`
	Scope      string          `json:"scope"`
	OldVersion int64           `json:"old_version"`
	NewVersion int64           `json:"new_version"`
	Diff       json.RawMessage `json:"diff"`
	Reason     string          `json:"reason"`
	Actor      string          `json:"actor"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AuditFilter specifies criteria for listing audit records.
type AuditFilter struct {
	Scope string `json:"scope,omitempty"`
	Actor string `json:"actor,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Store is the persistence interface behind the configuration resolver and
// the snapshot cache.
type Store interface {
	// Configurations
	GetConfig(ctx context.Context, scope string) (*ConfigRecord, error)
	// CompareAndPutConfig writes payload at version expectedVersion+1 iff the
	// stored version still equals expectedVersion (0 means "create, must not
	// exist"). On mismatch it returns ErrVersionConflict and leaves the
	// stored record untouched.
	CompareAndPutConfig(ctx context.Context, scope string, expectedVersion int64, payload json.RawMessage) (*ConfigRecord, error)
	ListConfigScopes(ctx context.Context) ([]string, error)

	// Audit trail
	AppendAudit(ctx context.Context, rec AuditRecord) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]AuditRecord, error)

	// Snapshot cache (keyed by endpoint+params)
	GetCachedSnapshot(ctx context.Context, key string) (json.RawMessage, error)
	SetCachedSnapshot(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) error
	DeleteExpiredSnapshots(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultAuditLimit = 100

func effectiveLimit(limit int) int {
	if limit <= 0 {
		return defaultAuditLimit
	}
	return limit
}
