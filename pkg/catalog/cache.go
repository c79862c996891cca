package catalog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arbscout/sourcing-cli/internal/model"
)

// SnapshotStore is the durable second cache tier. Satisfied by
// internal/store implementations.
type SnapshotStore interface {
	GetCachedSnapshot(ctx context.Context, key string) (json.RawMessage, error)
	SetCachedSnapshot(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) error
}

// Cache is a two-tier TTL snapshot cache: a process-local map for hot keys
// and an optional durable store tier shared across runs. Cache failures
// never fail a fetch; they only cost an upstream call.
type Cache struct {
	ttl   time.Duration
	store SnapshotStore

	mu      sync.RWMutex
	entries map[string]cacheEntry

	nowFunc func() time.Time
}

type cacheEntry struct {
	snap      *model.RawSnapshot
	expiresAt time.Time
}

// NewCache builds a cache with the given TTL. store may be nil for a
// memory-only cache.
func NewCache(ttl time.Duration, store SnapshotStore) *Cache {
	return &Cache{
		ttl:     ttl,
		store:   store,
		entries: make(map[string]cacheEntry),
		nowFunc: time.Now,
	}
}

// Get returns a fresh snapshot for key, checking memory before the store
// tier. A store hit is promoted into memory.
func (c *Cache) Get(ctx context.Context, key string) (*model.RawSnapshot, bool) {
	now := c.nowFunc()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.snap, true
	}

	if c.store == nil {
		return nil, false
	}
	data, err := c.store.GetCachedSnapshot(ctx, key)
	if err != nil {
		zap.L().Warn("snapshot cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	var snap model.RawSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		zap.L().Warn("snapshot cache entry malformed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{snap: &snap, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
	return &snap, true
}

// Put stores a snapshot in both tiers.
func (c *Cache) Put(ctx context.Context, key string, snap *model.RawSnapshot) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{snap: snap, expiresAt: c.nowFunc().Add(c.ttl)}
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		zap.L().Warn("snapshot cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetCachedSnapshot(ctx, key, data, c.ttl); err != nil {
		zap.L().Warn("snapshot cache write failed", zap.String("key", key), zap.Error(err))
	}
}
