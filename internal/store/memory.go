package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// MemoryStore is an in-process Store for tests and ephemeral runs. The
// compare-and-put under a single mutex gives the same exactly-one-winner
// guarantee the SQL backends get from conditional updates.
type MemoryStore struct {
	mu        sync.RWMutex
	configs   map[string]ConfigRecord
	audit     []AuditRecord
	snapshots map[string]cachedSnapshot

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

type cachedSnapshot struct {
	data      json.RawMessage
	expiresAt time.Time
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		configs:   make(map[string]ConfigRecord),
		snapshots: make(map[string]cachedSnapshot),
		nowFunc:   time.Now,
	}
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                      { return nil }

func (s *MemoryStore) GetConfig(ctx context.Context, scope string) (*ConfigRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.configs[scope]
	if !ok {
		return nil, nil
	}
	out := rec
	out.Payload = append(json.RawMessage(nil), rec.Payload...)
	return &out, nil
}

func (s *MemoryStore) CompareAndPutConfig(ctx context.Context, scope string, expectedVersion int64, payload json.RawMessage) (*ConfigRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.configs[scope]
	if exists && current.Version != expectedVersion {
		return nil, eris.Wrapf(ErrVersionConflict, "scope %s: expected %d, have %d", scope, expectedVersion, current.Version)
	}
	if !exists && expectedVersion != 0 {
		return nil, eris.Wrapf(ErrVersionConflict, "scope %s: expected %d, not stored", scope, expectedVersion)
	}

	rec := ConfigRecord{
		Scope:     scope,
		Version:   expectedVersion + 1,
		Payload:   append(json.RawMessage(nil), payload...),
		UpdatedAt: s.nowFunc().UTC(),
	}
	s.configs[scope] = rec
	out := rec
	return &out, nil
}

func (s *MemoryStore) ListConfigScopes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scopes := make([]string, 0, len(s.configs))
	for scope := range s.configs {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes, nil
}

func (s *MemoryStore) AppendAudit(ctx context.Context, rec AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.nowFunc().UTC()
	}
	s.audit = append(s.audit, rec)
	return nil
}

func (s *MemoryStore) ListAudit(ctx context.Context, filter AuditFilter) ([]AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := effectiveLimit(filter.Limit)
	var out []AuditRecord
	// Newest first.
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.audit[i]
		if filter.Scope != "" && rec.Scope != filter.Scope {
			continue
		}
		if filter.Actor != "" && rec.Actor != filter.Actor {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *MemoryStore) GetCachedSnapshot(ctx context.Context, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.snapshots[key]
	if !ok || !entry.expiresAt.After(s.nowFunc()) {
		return nil, nil
	}
	return append(json.RawMessage(nil), entry.data...), nil
}

func (s *MemoryStore) SetCachedSnapshot(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[key] = cachedSnapshot{
		data:      append(json.RawMessage(nil), data...),
		expiresAt: s.nowFunc().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) DeleteExpiredSnapshots(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	n := 0
	for key, entry := range s.snapshots {
		if !entry.expiresAt.After(now) {
			delete(s.snapshots, key)
			n++
		}
	}
	return n, nil
}
