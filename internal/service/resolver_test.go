package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coderisedev/cs-sub003/internal/cache"
	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingLookup struct {
	tenantLookup
	calls atomic.Int32
}

func (c *countingLookup) FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	c.calls.Add(1)
	return c.tenantLookup.FindByID(ctx, id)
}

func (c *countingLookup) FindBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	c.calls.Add(1)
	return c.tenantLookup.FindBySlug(ctx, slug)
}

func newResolver(f *fixture, ttl time.Duration) (*TenantResolver, *countingLookup) {
	lookup := &countingLookup{tenantLookup: f.directory}
	var c cache.TenantCache = cache.Nop{}
	if ttl > 0 {
		c = cache.NewLocal(ttl, 0)
	}
	r := NewTenantResolver(lookup, c, zap.NewNop())
	f.directory.OnStatusChange(r.Invalidate)
	return r, lookup
}

func TestTenantResolver_ResolvesActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	res := f.provision(t, "acme")
	r, _ := newResolver(f, 0)

	bySlug, err := r.ResolveBySlug(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, res.Tenant.ID, bySlug.ID)

	byID, err := r.ResolveByID(ctx, res.Tenant.ID.String())
	require.NoError(t, err)
	assert.Equal(t, res.Tenant.ID, byID.ID)
}

func TestTenantResolver_UniformFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	suspended := f.provision(t, "suspended")
	deleted := f.provision(t, "deleted")
	_, err := f.directory.SetStatus(ctx, suspended.Tenant.ID, domain.TenantStatusSuspended)
	require.NoError(t, err)
	_, err = f.directory.SetStatus(ctx, deleted.Tenant.ID, domain.TenantStatusDeleted)
	require.NoError(t, err)

	r, _ := newResolver(f, time.Minute)

	slugs := []string{"unknown", "suspended", "deleted", "Not A Slug", ""}
	for _, slug := range slugs {
		_, err := r.ResolveBySlug(ctx, slug)
		assert.Equal(t, domain.ErrNotFoundOrInactive, err, "slug %q", slug)
	}

	ids := []string{uuid.NewString(), suspended.Tenant.ID.String(), deleted.Tenant.ID.String(), "not-a-uuid"}
	for _, id := range ids {
		_, err := r.ResolveByID(ctx, id)
		assert.Equal(t, domain.ErrNotFoundOrInactive, err, "id %q", id)
	}
}

func TestTenantResolver_CachesActiveTenants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	res := f.provision(t, "acme")
	r, lookup := newResolver(f, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := r.ResolveBySlug(ctx, "acme")
		require.NoError(t, err)
	}
	_, err := r.ResolveByID(ctx, res.Tenant.ID.String())
	require.NoError(t, err)

	assert.Equal(t, int32(1), lookup.calls.Load(), "one lookup fills both keys")
}

func TestTenantResolver_DoesNotCacheInactive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	res := f.provision(t, "acme")
	_, err := f.directory.SetStatus(ctx, res.Tenant.ID, domain.TenantStatusSuspended)
	require.NoError(t, err)
	r, lookup := newResolver(f, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := r.ResolveBySlug(ctx, "acme")
		assert.ErrorIs(t, err, domain.ErrNotFoundOrInactive)
	}
	assert.Equal(t, int32(2), lookup.calls.Load())
}

func TestTenantResolver_StatusChangeInvalidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	res := f.provision(t, "acme")
	r, _ := newResolver(f, time.Hour)

	_, err := r.ResolveBySlug(ctx, "acme")
	require.NoError(t, err)

	_, err = f.directory.SetStatus(ctx, res.Tenant.ID, domain.TenantStatusSuspended)
	require.NoError(t, err)

	_, err = r.ResolveBySlug(ctx, "acme")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrInactive)
	_, err = r.ResolveByID(ctx, res.Tenant.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFoundOrInactive)

	_, err = f.directory.SetStatus(ctx, res.Tenant.ID, domain.TenantStatusActive)
	require.NoError(t, err)

	got, err := r.ResolveBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantStatusActive, got.Status)
}

// suspendingLookup suspends the tenant right after reading it, so the
// resolver holds an active snapshot of a tenant that is no longer active.
type suspendingLookup struct {
	tenantLookup
	directory *TenantDirectory
	once      sync.Once
	err       error
}

func (s *suspendingLookup) FindBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	t, err := s.tenantLookup.FindBySlug(ctx, slug)
	if err == nil {
		s.once.Do(func() {
			_, s.err = s.directory.SetStatus(ctx, t.ID, domain.TenantStatusSuspended)
		})
	}
	return t, err
}

func TestTenantResolver_StatusChangeDuringLookupIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	res := f.provision(t, "acme")

	lookup := &suspendingLookup{tenantLookup: f.directory, directory: f.directory}
	r := NewTenantResolver(lookup, cache.NewLocal(time.Hour, 0), zap.NewNop())
	f.directory.OnStatusChange(r.Invalidate)

	snapshot, err := r.ResolveBySlug(ctx, "acme")
	require.NoError(t, err)
	require.NoError(t, lookup.err)
	assert.Equal(t, domain.TenantStatusActive, snapshot.Status)

	stored, err := f.directory.FindByID(ctx, res.Tenant.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TenantStatusSuspended, stored.Status)

	_, err = r.ResolveBySlug(ctx, "acme")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrInactive)
	_, err = r.ResolveByID(ctx, res.Tenant.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFoundOrInactive)
}
