package domain

import (
	"context"

	"github.com/google/uuid"
)

// TenantStore persists tenant records. Create must check slug and external
// identity uniqueness and insert in one atomic operation.
type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	GetByExternalID(ctx context.Context, externalID string) (*Tenant, error)
	List(ctx context.Context, filter TenantFilter) ([]Tenant, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status TenantStatus) (*Tenant, error)
	HardDelete(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}

// LinkStore is the resource link graph. Link and Unlink are idempotent and
// each call is atomic on its own.
type LinkStore interface {
	Link(ctx context.Context, rel Relation, subjectID, objectID string) error
	Unlink(ctx context.Context, rel Relation, subjectID, objectID string) error
	Objects(ctx context.Context, rel Relation, subjectID string) ([]string, error)
	Subjects(ctx context.Context, rel Relation, objectID string) ([]string, error)
}

// SalesChannelBackend is the external service owning sales channels.
// Delete of an unknown channel succeeds.
type SalesChannelBackend interface {
	Create(ctx context.Context, in CreateSalesChannelInput) (*SalesChannel, error)
	Delete(ctx context.Context, id string) error
}

// CatalogBackend owns full product records.
type CatalogBackend interface {
	CreateProduct(ctx context.Context, in CreateProductInput) (*Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context, ids []string) ([]Product, error)
}

type CartBackend interface {
	CreateCart(ctx context.Context, in CreateCartInput) (*Cart, error)
}

// Subject is a verified identity-provider principal.
type Subject struct {
	ID     string
	Issuer string
	Scopes []string
}

// SubjectVerifier turns a bearer token into verified subject claims.
type SubjectVerifier interface {
	Verify(ctx context.Context, token string) (*Subject, error)
}
