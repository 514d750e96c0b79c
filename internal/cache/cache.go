// Package cache holds short-lived tenant lookups for the resolution
// middleware. Every implementation expires entries after an explicit TTL and
// supports eager invalidation.
package cache

import (
	"context"
	"time"

	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type TenantCache interface {
	Get(ctx context.Context, key string) (*domain.Tenant, bool)
	Set(ctx context.Context, key string, t *domain.Tenant)
	Delete(ctx context.Context, keys ...string)
}

func IDKey(t *domain.Tenant) string     { return KeyForID(t.ID) }
func KeyForID(id uuid.UUID) string      { return "id:" + id.String() }
func SlugKey(slug string) string        { return "slug:" + slug }
func KeysFor(t *domain.Tenant) []string { return []string{IDKey(t), SlugKey(t.Slug)} }

// Nop caches nothing. Used when the TTL is zero.
type Nop struct{}

func (Nop) Get(context.Context, string) (*domain.Tenant, bool) { return nil, false }
func (Nop) Set(context.Context, string, *domain.Tenant)        {}
func (Nop) Delete(context.Context, ...string)                  {}

const DefaultMaxEntries = 10000

// Local is an in-process LRU cache whose entries expire after the TTL.
type Local struct {
	lru *expirable.LRU[string, domain.Tenant]
}

func NewLocal(ttl time.Duration, maxEntries int) *Local {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Local{lru: expirable.NewLRU[string, domain.Tenant](maxEntries, nil, ttl)}
}

func (c *Local) Get(_ context.Context, key string) (*domain.Tenant, bool) {
	t, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return &t, true
}

func (c *Local) Set(_ context.Context, key string, t *domain.Tenant) {
	c.lru.Add(key, *t)
}

func (c *Local) Delete(_ context.Context, keys ...string) {
	for _, k := range keys {
		c.lru.Remove(k)
	}
}

func (c *Local) Len() int {
	return c.lru.Len()
}
