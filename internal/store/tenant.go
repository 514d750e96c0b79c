package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tenantColumns = `id, name, slug, external_identity_id, status, plan, settings, created_at, updated_at, deleted_at`

type TenantStore struct {
	db *pgxpool.Pool
}

func NewTenantStore(db *pgxpool.Pool) *TenantStore {
	return &TenantStore{db: db}
}

// Create inserts a tenant. The partial unique indexes on slug and
// external_identity_id make the uniqueness check part of the insert itself.
func (s *TenantStore) Create(ctx context.Context, t *domain.Tenant) error {
	if t.Status == "" {
		t.Status = domain.TenantStatusActive
	}
	if t.Plan == "" {
		t.Plan = domain.TenantPlanFree
	}
	settings := t.Settings
	if settings == nil {
		settings = map[string]any{}
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO tenants (name, slug, external_identity_id, status, plan, settings)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		t.Name, t.Slug, t.ExternalIdentityID, string(t.Status), string(t.Plan), settings,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *TenantStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return s.getOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
}

func (s *TenantStore) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return s.getOne(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1 AND status <> 'deleted'`, slug)
}

func (s *TenantStore) GetByExternalID(ctx context.Context, externalID string) (*domain.Tenant, error) {
	return s.getOne(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE external_identity_id = $1 AND status <> 'deleted'`, externalID)
}

func (s *TenantStore) List(ctx context.Context, filter domain.TenantFilter) ([]domain.Tenant, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	} else if !filter.IncludeDeleted {
		where = append(where, "status <> 'deleted'")
	}

	query := `SELECT ` + tenantColumns + ` FROM tenants`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

// UpdateStatus moves a tenant to status. Leaving deleted is refused with
// ErrConflict; deleted -> deleted is a no-op.
func (s *TenantStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TenantStatus) (*domain.Tenant, error) {
	t, err := s.getOne(ctx,
		`UPDATE tenants
		 SET status = $2::text,
		     updated_at = NOW(),
		     deleted_at = CASE WHEN $2::text = 'deleted' THEN NOW() ELSE deleted_at END
		 WHERE id = $1 AND status <> 'deleted'
		 RETURNING `+tenantColumns,
		id, string(status),
	)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}
	return nil, ErrConflict
}

// HardDelete removes a tenant that owns no links. Deleting a missing tenant
// succeeds so the call is safe to repeat.
func (s *TenantStore) HardDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM tenants
		 WHERE id = $1
		   AND NOT EXISTS (SELECT 1 FROM tenant_sales_channels WHERE tenant_id = $1)
		   AND NOT EXISTS (SELECT 1 FROM tenant_products WHERE tenant_id = $1)`,
		id,
	)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return ErrConflict
		}
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrConflict
	}
	return nil
}

func (s *TenantStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *TenantStore) getOne(ctx context.Context, query string, args ...any) (*domain.Tenant, error) {
	t, err := scanTenant(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var (
		t         domain.Tenant
		status    string
		plan      string
		deletedAt *time.Time
	)
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.ExternalIdentityID, &status, &plan,
		&t.Settings, &t.CreatedAt, &t.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TenantStatus(status)
	t.Plan = domain.TenantPlan(plan)
	t.DeletedAt = deletedAt
	return &t, nil
}
