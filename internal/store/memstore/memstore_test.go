package memstore

import (
	"context"
	"testing"

	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/coderisedev/cs-sub003/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTenant(slug string) *domain.Tenant {
	return &domain.Tenant{Name: slug, Slug: slug, ExternalIdentityID: "idp|" + slug}
}

func TestStore_CreateDefaultsAndUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := newTenant("acme")
	require.NoError(t, s.Create(ctx, a))
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, domain.TenantStatusActive, a.Status)
	assert.Equal(t, domain.TenantPlanFree, a.Plan)

	assert.ErrorIs(t, s.Create(ctx, newTenant("acme")), store.ErrConflict)

	dup := newTenant("other")
	dup.ExternalIdentityID = a.ExternalIdentityID
	assert.ErrorIs(t, s.Create(ctx, dup), store.ErrConflict)
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := newTenant("acme")
	require.NoError(t, s.Create(ctx, a))

	got, err := s.GetByID(ctx, a.ID)
	require.NoError(t, err)
	got.Status = domain.TenantStatusSuspended

	again, err := s.GetBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantStatusActive, again.Status)
}

func TestStore_UpdateStatusDeletedIsTerminal(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := newTenant("acme")
	require.NoError(t, s.Create(ctx, a))

	deleted, err := s.UpdateStatus(ctx, a.ID, domain.TenantStatusDeleted)
	require.NoError(t, err)
	require.NotNil(t, deleted.DeletedAt)

	_, err = s.UpdateStatus(ctx, a.ID, domain.TenantStatusActive)
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.UpdateStatus(ctx, a.ID, domain.TenantStatusDeleted)
	assert.NoError(t, err)

	_, err = s.GetBySlug(ctx, "acme")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.UpdateStatus(ctx, uuid.New(), domain.TenantStatusActive)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_LinksAndHardDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := newTenant("acme")
	require.NoError(t, s.Create(ctx, a))
	tid := a.ID.String()

	require.NoError(t, s.Link(ctx, domain.RelationTenantSalesChannel, tid, "sc_1"))
	require.NoError(t, s.Link(ctx, domain.RelationTenantSalesChannel, tid, "sc_1"))
	require.NoError(t, s.Link(ctx, domain.RelationTenantProduct, tid, "p_1"))
	require.NoError(t, s.Link(ctx, domain.RelationTenantProduct, tid, "p_2"))
	assert.Equal(t, 3, s.LinkCount())

	products, err := s.Objects(ctx, domain.RelationTenantProduct, tid)
	require.NoError(t, err)
	assert.Equal(t, []string{"p_1", "p_2"}, products)

	owners, err := s.Subjects(ctx, domain.RelationTenantProduct, "p_2")
	require.NoError(t, err)
	assert.Equal(t, []string{tid}, owners)

	assert.ErrorIs(t, s.Link(ctx, domain.RelationTenantProduct, uuid.NewString(), "p_3"), store.ErrNotFound)
	assert.ErrorIs(t, s.HardDelete(ctx, a.ID), store.ErrConflict)

	for _, p := range products {
		require.NoError(t, s.Unlink(ctx, domain.RelationTenantProduct, tid, p))
	}
	require.NoError(t, s.Unlink(ctx, domain.RelationTenantSalesChannel, tid, "sc_1"))
	require.NoError(t, s.HardDelete(ctx, a.ID))
	require.NoError(t, s.HardDelete(ctx, a.ID), "deleting a missing tenant is a no-op")

	_, err = s.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_SalesChannelHasOneTenant(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, b := newTenant("acme"), newTenant("globex")
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	require.NoError(t, s.Link(ctx, domain.RelationTenantSalesChannel, a.ID.String(), "sc_1"))
	require.NoError(t, s.Link(ctx, domain.RelationTenantSalesChannel, a.ID.String(), "sc_1"))

	err := s.Link(ctx, domain.RelationTenantSalesChannel, b.ID.String(), "sc_1")
	assert.ErrorIs(t, err, store.ErrLinkTaken)
	assert.ErrorIs(t, err, store.ErrConflict)

	owners, err := s.Subjects(ctx, domain.RelationTenantSalesChannel, "sc_1")
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID.String()}, owners)

	// Products may be linked to many channels.
	require.NoError(t, s.Link(ctx, domain.RelationProductSalesChannel, "p_1", "sc_1"))
	require.NoError(t, s.Link(ctx, domain.RelationProductSalesChannel, "p_2", "sc_1"))
}
