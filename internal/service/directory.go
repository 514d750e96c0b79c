package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/coderisedev/cs-sub003/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusHook observes tenant status writes. It fires for every SetStatus
// call that reached the store, including failed ones.
type StatusHook func(ctx context.Context, t *domain.Tenant)

type CreateTenantInput struct {
	Name               string            `json:"name"`
	Slug               string            `json:"slug"`
	ExternalIdentityID string            `json:"external_identity_id"`
	Plan               domain.TenantPlan `json:"plan,omitempty"`
	Settings           map[string]any    `json:"settings,omitempty"`
}

// TenantDirectory is the authoritative registry of tenants.
type TenantDirectory struct {
	store  domain.TenantStore
	logger *zap.Logger

	mu    sync.RWMutex
	hooks []StatusHook
}

func NewTenantDirectory(s domain.TenantStore, logger *zap.Logger) *TenantDirectory {
	return &TenantDirectory{store: s, logger: logger}
}

// OnStatusChange registers a hook run after every status write.
func (d *TenantDirectory) OnStatusChange(h StatusHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, h)
}

// Validate normalizes in place and rejects malformed input.
func (d *TenantDirectory) Validate(in *CreateTenantInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = domain.NormalizeSlug(in.Slug)
	in.ExternalIdentityID = strings.TrimSpace(in.ExternalIdentityID)
	if in.Plan == "" {
		in.Plan = domain.TenantPlanFree
	}

	switch {
	case in.Name == "":
		return domain.NewValidationError("name", "is required")
	case in.Slug == "":
		return domain.NewValidationError("slug", "is required")
	case !domain.ValidSlug(in.Slug):
		return domain.NewValidationError("slug", "must be lowercase letters, digits and single hyphens")
	case in.ExternalIdentityID == "":
		return domain.NewValidationError("external_identity_id", "is required")
	case !in.Plan.Valid():
		return domain.NewValidationError("plan", "must be one of free, pro, enterprise")
	}
	return nil
}

func (d *TenantDirectory) Create(ctx context.Context, in CreateTenantInput) (*domain.Tenant, error) {
	if err := d.Validate(&in); err != nil {
		return nil, err
	}

	t := &domain.Tenant{
		Name:               in.Name,
		Slug:               in.Slug,
		ExternalIdentityID: in.ExternalIdentityID,
		Status:             domain.TenantStatusActive,
		Plan:               in.Plan,
		Settings:           in.Settings,
	}
	if err := d.store.Create(ctx, t); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}

	d.logger.Info("tenant created",
		zap.String("tenant_id", t.ID.String()),
		zap.String("slug", t.Slug))
	return t, nil
}

// FindByID returns the tenant in any status, including deleted.
func (d *TenantDirectory) FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	t, err := d.store.GetByID(ctx, id)
	return t, translate(err)
}

// FindBySlug ignores deleted tenants.
func (d *TenantDirectory) FindBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	slug = domain.NormalizeSlug(slug)
	if !domain.ValidSlug(slug) {
		return nil, domain.ErrTenantNotFound
	}
	t, err := d.store.GetBySlug(ctx, slug)
	return t, translate(err)
}

// FindByExternalID ignores deleted tenants.
func (d *TenantDirectory) FindByExternalID(ctx context.Context, externalID string) (*domain.Tenant, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, domain.ErrTenantNotFound
	}
	t, err := d.store.GetByExternalID(ctx, externalID)
	return t, translate(err)
}

func (d *TenantDirectory) List(ctx context.Context, filter domain.TenantFilter) ([]domain.Tenant, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.NewValidationError("status", "must be one of active, suspended, deleted")
	}
	tenants, err := d.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if tenants == nil {
		tenants = []domain.Tenant{}
	}
	return tenants, nil
}

// SetStatus moves a tenant between active, suspended and deleted. Deleted
// is terminal; setting the current status again is a no-op.
func (d *TenantDirectory) SetStatus(ctx context.Context, id uuid.UUID, status domain.TenantStatus) (*domain.Tenant, error) {
	if !status.Valid() {
		return nil, domain.NewValidationError("status", "must be one of active, suspended, deleted")
	}

	current, err := d.store.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !current.Status.CanTransition(status) {
		return nil, domain.ErrTenantDeleted
	}

	updated, err := d.store.UpdateStatus(ctx, id, status)
	if err != nil {
		// The write may have landed before the error surfaced.
		d.notify(ctx, current)
		if errors.Is(err, store.ErrConflict) {
			return nil, domain.ErrTenantDeleted
		}
		return nil, translate(err)
	}
	d.notify(ctx, updated)

	if current.Status != updated.Status {
		d.logger.Info("tenant status changed",
			zap.String("tenant_id", id.String()),
			zap.String("from", string(current.Status)),
			zap.String("to", string(updated.Status)))
	}
	return updated, nil
}

// Delete hard-deletes a tenant that owns no resources yet. It exists for
// provisioning rollback; operators use SetStatus(deleted).
func (d *TenantDirectory) Delete(ctx context.Context, id uuid.UUID) error {
	if err := d.store.HardDelete(ctx, id); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.ErrTenantReferenced
		}
		return err
	}
	d.logger.Info("tenant removed", zap.String("tenant_id", id.String()))
	return nil
}

func (d *TenantDirectory) Ping(ctx context.Context) error {
	return d.store.Ping(ctx)
}

func (d *TenantDirectory) notify(ctx context.Context, t *domain.Tenant) {
	d.mu.RLock()
	hooks := d.hooks
	d.mu.RUnlock()
	for _, h := range hooks {
		h(ctx, t)
	}
}

func translate(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrTenantNotFound
	}
	return err
}
