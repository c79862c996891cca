package bizconfig

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/arbscout/sourcing-cli/internal/store"
)

// Resolver layers stored scope overlays on top of the embedded defaults and
// mediates every configuration write. Reads build a fresh merged copy per
// call, so callers may mutate the result freely; writes go through
// optimistic-concurrency version checks in the store.
type Resolver struct {
	store    store.Store
	defaults BusinessConfig
}

// NewResolver builds a Resolver over the given store.
func NewResolver(st store.Store) (*Resolver, error) {
	defaults, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	return &Resolver{store: st, defaults: defaults}, nil
}

// SourceFlag records one scope overlay that contributed to an effective
// configuration, with the stored version that was applied.
type SourceFlag struct {
	Scope   string `json:"scope"`
	Version int64  `json:"version"`
}

// EffectiveConfig is a fully merged configuration plus the scopes that
// shaped it, in precedence order.
type EffectiveConfig struct {
	Config  BusinessConfig `json:"config"`
	Sources []SourceFlag   `json:"sources"`
}

// GetEffective resolves the configuration for a domain/category pair by
// merging global, domain, and category overlays onto the defaults, in that
// order. Pass domainID <= 0 or an empty category to skip that layer.
// Resolution never fails outright: an unreadable or missing scope falls back
// to whatever the layers below it produced.
func (r *Resolver) GetEffective(ctx context.Context, domainID int, category string) (*EffectiveConfig, error) {
	merged, err := configToMap(r.defaults)
	if err != nil {
		return nil, err
	}

	chain := []Scope{GlobalScope()}
	if domainID > 0 {
		chain = append(chain, DomainScope(domainID))
	}
	if category != "" {
		chain = append(chain, CategoryScope(category))
	}

	var sources []SourceFlag
	for _, sc := range chain {
		rec, err := r.store.GetConfig(ctx, sc.String())
		if err != nil {
			zap.L().Warn("config scope unreadable, falling back",
				zap.String("scope", sc.String()), zap.Error(err))
			continue
		}
		if rec == nil {
			continue
		}
		overlay, err := decodePatch(rec.Payload)
		if err != nil {
			zap.L().Warn("config scope payload malformed, skipping",
				zap.String("scope", sc.String()), zap.Error(err))
			continue
		}
		merged = deepMerge(merged, overlay)
		sources = append(sources, SourceFlag{Scope: sc.String(), Version: rec.Version})
	}

	cfg, err := mapToConfig(merged)
	if err != nil {
		return nil, err
	}
	return &EffectiveConfig{Config: cfg, Sources: sources}, nil
}

// UpdateRequest describes one scoped configuration write.
type UpdateRequest struct {
	Scope           Scope
	Patch           json.RawMessage
	ExpectedVersion int64
	Reason          string
	Actor           string
}

// UpdateResult is what a successful write produced: the stored record, the
// appended audit entry, and the effective configuration the scope now
// resolves to.
type UpdateResult struct {
	Record    *store.ConfigRecord
	Audit     store.AuditRecord
	Effective BusinessConfig
}

// Update merges the patch into the scope's stored overlay, validates the
// configuration the write would produce, and commits it at
// ExpectedVersion+1. A stale ExpectedVersion surfaces store.ErrVersionConflict;
// a broken invariant surfaces *ValidationError. Either way the stored
// version is untouched.
func (r *Resolver) Update(ctx context.Context, req UpdateRequest) (*UpdateResult, error) {
	if req.Reason == "" || req.Actor == "" {
		return nil, eris.New("bizconfig: updates require a reason and an actor")
	}

	patch, err := decodePatch(req.Patch)
	if err != nil {
		return nil, err
	}

	scopeKey := req.Scope.String()
	cur, err := r.store.GetConfig(ctx, scopeKey)
	if err != nil {
		return nil, eris.Wrapf(err, "bizconfig: load scope %s", scopeKey)
	}
	curOverlay := map[string]any{}
	if cur != nil {
		if curOverlay, err = decodePatch(cur.Payload); err != nil {
			return nil, eris.Wrapf(err, "bizconfig: stored payload for %s", scopeKey)
		}
	}
	newOverlay := deepMerge(curOverlay, patch)

	prospective, err := r.prospectiveConfig(ctx, req.Scope, newOverlay)
	if err != nil {
		return nil, err
	}
	if err := Validate(prospective); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(newOverlay)
	if err != nil {
		return nil, eris.Wrap(err, "bizconfig: marshal overlay")
	}
	rec, err := r.store.CompareAndPutConfig(ctx, scopeKey, req.ExpectedVersion, payload)
	if err != nil {
		return nil, err
	}

	audit := store.AuditRecord{
		ID:         uuid.NewString(),
		Scope:      scopeKey,
		OldVersion: req.ExpectedVersion,
		NewVersion: rec.Version,
		Diff:       append(json.RawMessage(nil), req.Patch...),
		Reason:     req.Reason,
		Actor:      req.Actor,
		CreatedAt:  rec.UpdatedAt,
	}
	if err := r.store.AppendAudit(ctx, audit); err != nil {
		return nil, eris.Wrapf(err, "bizconfig: append audit for %s", scopeKey)
	}

	zap.L().Info("configuration updated",
		zap.String("scope", scopeKey),
		zap.Int64("old_version", req.ExpectedVersion),
		zap.Int64("new_version", rec.Version),
		zap.String("actor", req.Actor))

	return &UpdateResult{Record: rec, Audit: audit, Effective: prospective}, nil
}

// prospectiveConfig resolves what the effective configuration at the written
// scope would be if overlay were committed, so invariants are checked against
// the merged result rather than the bare patch.
func (r *Resolver) prospectiveConfig(ctx context.Context, scope Scope, overlay map[string]any) (BusinessConfig, error) {
	merged, err := configToMap(r.defaults)
	if err != nil {
		return BusinessConfig{}, err
	}
	if scope.Kind != ScopeGlobal {
		global, err := r.store.GetConfig(ctx, GlobalScope().String())
		if err != nil {
			return BusinessConfig{}, eris.Wrap(err, "bizconfig: load global scope")
		}
		if global != nil {
			gm, err := decodePatch(global.Payload)
			if err != nil {
				return BusinessConfig{}, eris.Wrap(err, "bizconfig: stored global payload")
			}
			merged = deepMerge(merged, gm)
		}
	}
	merged = deepMerge(merged, overlay)
	return mapToConfig(merged)
}

// ListAudit returns audit records matching the filter, newest first.
func (r *Resolver) ListAudit(ctx context.Context, filter store.AuditFilter) ([]store.AuditRecord, error) {
	return r.store.ListAudit(ctx, filter)
}

// ListScopes returns every scope that has a stored overlay.
func (r *Resolver) ListScopes(ctx context.Context) ([]string, error) {
	return r.store.ListConfigScopes(ctx)
}

// GetScope returns the stored overlay record for one scope, or nil when the
// scope has never been written.
func (r *Resolver) GetScope(ctx context.Context, scope Scope) (*store.ConfigRecord, error) {
	return r.store.GetConfig(ctx, scope.String())
}

// Defaults returns the embedded baseline configuration.
func (r *Resolver) Defaults() BusinessConfig {
	return r.defaults
}
