package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"curation-service/internal/cache"
	"curation-service/internal/logger"
	"curation-service/internal/metrics"
)

// ActiveConfigStore is the durable source for the active configuration id
// (implementation: postgresql.ConfigRepository).
type ActiveConfigStore interface {
	ActiveSetting(ctx context.Context) (uuid.UUID, bool, error)
	SaveActiveSetting(ctx context.Context, id uuid.UUID) error
	FindActiveFlagged(ctx context.Context) (uuid.UUID, bool, error)
}

const (
	activeConfigCacheKey   = "active_weight_config_id"
	DefaultActiveConfigTTL = 45 * time.Second
)

type cachedActive struct {
	ID *uuid.UUID `json:"id"`
}

// ActiveConfigResolver answers "which weight configuration is active" from a
// process-local tier, then a shared tier, then the store. A null answer is
// cached like any other. Concurrent misses may refill twice; both compute the
// same value.
type ActiveConfigResolver struct {
	store   ActiveConfigStore
	local   cache.Store
	shared  cache.Store
	ttl     time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewActiveConfigResolver wires the tiers. Pass cache.Noop{} as shared when no
// shared cache is configured.
func NewActiveConfigResolver(store ActiveConfigStore, local, shared cache.Store, ttl time.Duration, log *logger.Logger, m *metrics.Metrics) *ActiveConfigResolver {
	if ttl <= 0 {
		ttl = DefaultActiveConfigTTL
	}
	if shared == nil {
		shared = cache.Noop{}
	}
	return &ActiveConfigResolver{
		store:   store,
		local:   local,
		shared:  shared,
		ttl:     ttl,
		log:     log.With("component", "active_config"),
		metrics: m,
	}
}

// Resolve returns the active configuration id; Valid is false when none is active.
func (r *ActiveConfigResolver) Resolve(ctx context.Context) (uuid.NullUUID, error) {
	if v, ok := r.read(ctx, r.local, "local"); ok {
		r.metrics.IncCacheLookup("active_config", metrics.CacheHitLocal)
		return v, nil
	}

	if v, ok := r.read(ctx, r.shared, "shared"); ok {
		r.metrics.IncCacheLookup("active_config", metrics.CacheHitShared)
		r.write(ctx, r.local, "local", v)
		return v, nil
	}

	r.metrics.IncCacheLookup("active_config", metrics.CacheMiss)
	v, err := r.fromStore(ctx)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	r.write(ctx, r.local, "local", v)
	r.write(ctx, r.shared, "shared", v)
	return v, nil
}

// Invalidate drops both tiers. Shared-tier failures are logged only; the local
// drop always succeeds, so this process never serves the old value again.
func (r *ActiveConfigResolver) Invalidate(ctx context.Context) {
	if err := r.local.Delete(ctx, activeConfigCacheKey); err != nil {
		r.log.Warn("local cache invalidate failed", "error", err)
	}
	if err := r.shared.Delete(ctx, activeConfigCacheKey); err != nil {
		r.log.Warn("shared cache invalidate failed", "error", err)
	}
}

func (r *ActiveConfigResolver) fromStore(ctx context.Context) (uuid.NullUUID, error) {
	id, ok, err := r.store.ActiveSetting(ctx)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	if ok {
		return uuid.NullUUID{UUID: id, Valid: true}, nil
	}

	id, ok, err = r.store.FindActiveFlagged(ctx)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	if !ok {
		return uuid.NullUUID{}, nil
	}

	if err := r.store.SaveActiveSetting(ctx, id); err != nil {
		r.log.Warn("active config self-heal failed", "config_id", id, "error", err)
	} else {
		r.log.Info("active config setting restored from flag", "config_id", id)
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

func (r *ActiveConfigResolver) read(ctx context.Context, tier cache.Store, name string) (uuid.NullUUID, bool) {
	raw, ok, err := tier.Get(ctx, activeConfigCacheKey)
	if err != nil {
		r.log.Warn("cache read failed", "tier", name, "error", err)
		return uuid.NullUUID{}, false
	}
	if !ok {
		return uuid.NullUUID{}, false
	}
	var c cachedActive
	if err := json.Unmarshal(raw, &c); err != nil {
		r.log.Warn("cache entry malformed", "tier", name, "error", err)
		return uuid.NullUUID{}, false
	}
	if c.ID == nil {
		return uuid.NullUUID{}, true
	}
	return uuid.NullUUID{UUID: *c.ID, Valid: true}, true
}

func (r *ActiveConfigResolver) write(ctx context.Context, tier cache.Store, name string, v uuid.NullUUID) {
	var c cachedActive
	if v.Valid {
		id := v.UUID
		c.ID = &id
	}
	raw, _ := json.Marshal(c)
	if err := tier.Set(ctx, activeConfigCacheKey, raw, r.ttl); err != nil {
		r.log.Warn("cache write failed", "tier", name, "error", err)
	}
}
