package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coderisedev/cs-sub003/internal/backend"
	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/coderisedev/cs-sub003/internal/store/memstore"
	"go.uber.org/zap"
)

var errInjected = errors.New("injected failure")

// flakyLinks fails Link or Unlink for one relation a fixed number of times.
// A negative count fails forever.
type flakyLinks struct {
	domain.LinkStore

	mu          sync.Mutex
	relation    domain.Relation
	linkFails   int
	unlinkFails int
	linkCalls   int
}

func (f *flakyLinks) Link(ctx context.Context, rel domain.Relation, subjectID, objectID string) error {
	f.mu.Lock()
	if rel == f.relation {
		f.linkCalls++
		if f.linkFails != 0 {
			f.linkFails--
			f.mu.Unlock()
			return errInjected
		}
	}
	f.mu.Unlock()
	return f.LinkStore.Link(ctx, rel, subjectID, objectID)
}

func (f *flakyLinks) Unlink(ctx context.Context, rel domain.Relation, subjectID, objectID string) error {
	f.mu.Lock()
	if rel == f.relation && f.unlinkFails != 0 {
		f.unlinkFails--
		f.mu.Unlock()
		return errInjected
	}
	f.mu.Unlock()
	return f.LinkStore.Unlink(ctx, rel, subjectID, objectID)
}

func (f *flakyLinks) heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkFails = 0
	f.unlinkFails = 0
}

// flakyTenants fails Create with a fixed error.
type flakyTenants struct {
	domain.TenantStore
	createErr error
}

func (f *flakyTenants) Create(ctx context.Context, t *domain.Tenant) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.TenantStore.Create(ctx, t)
}

// slowChannels delays channel creation so concurrent steps overlap.
type slowChannels struct {
	domain.SalesChannelBackend
	delay time.Duration
}

func (s *slowChannels) Create(ctx context.Context, in domain.CreateSalesChannelInput) (*domain.SalesChannel, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.SalesChannelBackend.Create(ctx, in)
}

// timeoutChannels lets the backend create the channel but reports a
// deadline to the caller for the first fails calls. A negative count fails
// forever.
type timeoutChannels struct {
	domain.SalesChannelBackend

	mu    sync.Mutex
	fails int
}

func (tc *timeoutChannels) Create(ctx context.Context, in domain.CreateSalesChannelInput) (*domain.SalesChannel, error) {
	sc, err := tc.SalesChannelBackend.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.fails != 0 {
		tc.fails--
		return nil, context.DeadlineExceeded
	}
	return sc, nil
}

type fixture struct {
	store       *memstore.Store
	tenants     *flakyTenants
	links       *flakyLinks
	channels    *backend.MockSalesChannels
	catalog     *backend.MockCatalog
	carts       *backend.MockCarts
	directory   *TenantDirectory
	provisioner *Provisioner
	gateway     *ScopedGateway
}

func newFixture(t *testing.T, parallel bool) *fixture {
	t.Helper()
	logger := zap.NewNop()

	f := &fixture{
		store:    memstore.New(),
		channels: backend.NewMockSalesChannels(),
		catalog:  backend.NewMockCatalog(),
		carts:    backend.NewMockCarts(),
	}
	f.tenants = &flakyTenants{TenantStore: f.store}
	f.links = &flakyLinks{LinkStore: f.store}
	f.directory = NewTenantDirectory(f.tenants, logger)
	f.provisioner = NewProvisioner(f.directory, f.links, f.channels, ProvisionConfig{
		StepTimeout:         time.Second,
		StepRetries:         1,
		Parallel:            parallel,
		CompensationTimeout: time.Second,
	}, logger)
	f.gateway = NewScopedGateway(f.links, f.catalog, f.carts, time.Second, 1, logger)
	return f
}

func (f *fixture) provision(t *testing.T, slug string) *ProvisionResult {
	t.Helper()
	res, err := f.provisioner.Provision(context.Background(), CreateTenantInput{
		Name:               slug + " store",
		Slug:               slug,
		ExternalIdentityID: "idp|" + slug,
	})
	if err != nil {
		t.Fatalf("provision %s: %v", slug, err)
	}
	return res
}

func scoped(t *domain.Tenant) context.Context {
	return domain.WithScope(context.Background(), domain.Scope{TenantID: t.ID, TenantSlug: t.Slug})
}

// allTenants lists every tenant record, deleted ones included.
func (f *fixture) allTenants(t *testing.T) []domain.Tenant {
	t.Helper()
	all, err := f.store.List(context.Background(), domain.TenantFilter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("list tenants: %v", err)
	}
	return all
}
