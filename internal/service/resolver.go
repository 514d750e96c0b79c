package service

import (
	"context"
	"errors"
	"sync"

	"github.com/coderisedev/cs-sub003/internal/cache"
	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type tenantLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
}

// TenantResolver maps a request identifier to an active tenant. Unknown,
// malformed, suspended and deleted identifiers all yield
// domain.ErrNotFoundOrInactive so callers cannot tell them apart.
type TenantResolver struct {
	lookup tenantLookup
	cache  cache.TenantCache
	logger *zap.Logger

	// generation advances on every invalidation. A lookup that started
	// before an invalidation must not write its result back.
	mu         sync.RWMutex
	generation uint64
}

func NewTenantResolver(lookup tenantLookup, c cache.TenantCache, logger *zap.Logger) *TenantResolver {
	if c == nil {
		c = cache.Nop{}
	}
	return &TenantResolver{lookup: lookup, cache: c, logger: logger}
}

func (r *TenantResolver) ResolveByID(ctx context.Context, raw string) (*domain.Tenant, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, domain.ErrNotFoundOrInactive
	}
	return r.resolve(ctx, cache.KeyForID(id), func() (*domain.Tenant, error) {
		return r.lookup.FindByID(ctx, id)
	})
}

func (r *TenantResolver) ResolveBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	slug = domain.NormalizeSlug(slug)
	if !domain.ValidSlug(slug) {
		return nil, domain.ErrNotFoundOrInactive
	}
	return r.resolve(ctx, cache.SlugKey(slug), func() (*domain.Tenant, error) {
		return r.lookup.FindBySlug(ctx, slug)
	})
}

// Invalidate drops every cached entry for t. Registered as a directory
// status hook.
func (r *TenantResolver) Invalidate(ctx context.Context, t *domain.Tenant) {
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.cache.Delete(ctx, cache.KeysFor(t)...)
}

func (r *TenantResolver) resolve(ctx context.Context, key string, load func() (*domain.Tenant, error)) (*domain.Tenant, error) {
	if t, ok := r.cache.Get(ctx, key); ok && t.IsActive() {
		return t, nil
	}

	r.mu.RLock()
	gen := r.generation
	r.mu.RUnlock()

	t, err := load()
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			return nil, domain.ErrNotFoundOrInactive
		}
		return nil, err
	}
	if !t.IsActive() {
		return nil, domain.ErrNotFoundOrInactive
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.generation != gen {
		r.logger.Debug("tenant changed during lookup, not caching",
			zap.String("tenant_id", t.ID.String()))
		return t, nil
	}
	for _, k := range cache.KeysFor(t) {
		r.cache.Set(ctx, k, t)
	}
	return t, nil
}
