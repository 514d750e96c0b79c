package service

import (
	"context"
	"strings"
	"time"

	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/coderisedev/cs-sub003/internal/saga"
	"go.uber.org/zap"
)

// ScopedGateway is the only path to tenant-owned commerce resources. Every
// operation reads the tenant from the request scope and restricts results to
// resources linked to that tenant.
type ScopedGateway struct {
	links   domain.LinkStore
	catalog domain.CatalogBackend
	carts   domain.CartBackend
	policy  saga.Policy
	logger  *zap.Logger
}

func NewScopedGateway(links domain.LinkStore, catalog domain.CatalogBackend, carts domain.CartBackend, stepTimeout time.Duration, stepRetries int, logger *zap.Logger) *ScopedGateway {
	return &ScopedGateway{
		links:   links,
		catalog: catalog,
		carts:   carts,
		policy:  stepPolicy(stepTimeout, stepRetries),
		logger:  logger,
	}
}

func scopeFrom(ctx context.Context) (domain.Scope, error) {
	s, ok := domain.ScopeFromContext(ctx)
	if !ok {
		return domain.Scope{}, domain.ErrMissingScope
	}
	return s, nil
}

// ListProducts returns the products linked to the scoped tenant. A tenant
// with no products gets an empty list, never the global catalog.
func (g *ScopedGateway) ListProducts(ctx context.Context) ([]domain.Product, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := g.links.Objects(ctx, domain.RelationTenantProduct, scope.TenantID.String())
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	products, err := g.catalog.ListProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	owned := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		owned[id] = struct{}{}
	}
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if _, ok := owned[p.ID]; !ok {
			g.logger.Warn("catalog returned unrequested product",
				zap.String("tenant_id", scope.TenantID.String()),
				zap.String("product_id", p.ID))
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// GetProduct returns domain.ErrProductNotFound for products owned by other
// tenants, the same as for products that do not exist.
func (g *ScopedGateway) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	owned, err := g.owns(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, domain.ErrProductNotFound
	}
	return g.catalog.GetProduct(ctx, id)
}

// CreateProduct creates the product in the catalog tagged with the tenant,
// then links it to the tenant and every tenant sales channel. A link failure
// returns *domain.PartiallyLinkedResourceError; RelinkProduct repairs it.
func (g *ScopedGateway) CreateProduct(ctx context.Context, in domain.CreateProductInput) (*domain.Product, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, domain.NewValidationError("title", "is required")
	}
	metadata := make(map[string]string, len(in.Metadata)+1)
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	metadata[domain.MetadataTenantID] = scope.TenantID.String()
	in.Metadata = metadata

	p, err := g.catalog.CreateProduct(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := g.linkProduct(ctx, scope, p.ID); err != nil {
		g.logger.Warn("product created but not linked",
			zap.String("tenant_id", scope.TenantID.String()),
			zap.String("product_id", p.ID),
			zap.Error(err))
		return p, &domain.PartiallyLinkedResourceError{ResourceType: "product", ResourceID: p.ID, Err: err}
	}

	g.logger.Info("product created",
		zap.String("tenant_id", scope.TenantID.String()),
		zap.String("product_id", p.ID))
	return p, nil
}

// RelinkProduct rewrites the ownership links of a product the catalog
// attributes to the scoped tenant. Linking is idempotent.
func (g *ScopedGateway) RelinkProduct(ctx context.Context, id string) (*domain.Product, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	p, err := g.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Metadata[domain.MetadataTenantID] != scope.TenantID.String() {
		return nil, domain.ErrProductNotFound
	}

	if err := g.linkProduct(ctx, scope, p.ID); err != nil {
		return p, &domain.PartiallyLinkedResourceError{ResourceType: "product", ResourceID: p.ID, Err: err}
	}

	g.logger.Info("product relinked",
		zap.String("tenant_id", scope.TenantID.String()),
		zap.String("product_id", p.ID))
	return p, nil
}

// CreateCart opens a cart on the tenant's first sales channel.
func (g *ScopedGateway) CreateCart(ctx context.Context, in domain.CreateCartInput) (*domain.Cart, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	channels, err := g.links.Objects(ctx, domain.RelationTenantSalesChannel, scope.TenantID.String())
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		return nil, domain.ErrNoSalesChannel
	}

	in.SalesChannelID = channels[0]
	return g.carts.CreateCart(ctx, in)
}

func (g *ScopedGateway) owns(ctx context.Context, scope domain.Scope, productID string) (bool, error) {
	owners, err := g.links.Subjects(ctx, domain.RelationTenantProduct, productID)
	if err != nil {
		return false, err
	}
	tenantID := scope.TenantID.String()
	for _, o := range owners {
		if o == tenantID {
			return true, nil
		}
	}
	return false, nil
}

func (g *ScopedGateway) linkProduct(ctx context.Context, scope domain.Scope, productID string) error {
	tenantID := scope.TenantID.String()
	if err := g.policy.Do(ctx, func(ctx context.Context) error {
		return g.links.Link(ctx, domain.RelationTenantProduct, tenantID, productID)
	}); err != nil {
		return err
	}

	channels, err := g.links.Objects(ctx, domain.RelationTenantSalesChannel, tenantID)
	if err != nil {
		return err
	}
	for _, ch := range channels {
		if err := g.policy.Do(ctx, func(ctx context.Context) error {
			return g.links.Link(ctx, domain.RelationProductSalesChannel, productID, ch)
		}); err != nil {
			return err
		}
	}
	return nil
}
