// Package memstore is an in-process tenant directory and link graph with the
// same semantics as the Postgres stores. It backs STORE_DRIVER=memory and
// the tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/coderisedev/cs-sub003/internal/store"
	"github.com/google/uuid"
)

type linkKey struct {
	rel     domain.Relation
	subject string
	object  string
}

// Store implements both domain.TenantStore and domain.LinkStore.
type Store struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*domain.Tenant
	links   map[linkKey]time.Time
	seq     int64
	now     func() time.Time
}

func New() *Store {
	return &Store{
		tenants: make(map[uuid.UUID]*domain.Tenant),
		links:   make(map[linkKey]time.Time),
		now:     time.Now,
	}
}

func (s *Store) Create(ctx context.Context, t *domain.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.tenants {
		if existing.Status == domain.TenantStatusDeleted {
			continue
		}
		if existing.Slug == t.Slug || existing.ExternalIdentityID == t.ExternalIdentityID {
			return store.ErrConflict
		}
	}

	if t.Status == "" {
		t.Status = domain.TenantStatusActive
	}
	if t.Plan == "" {
		t.Plan = domain.TenantPlanFree
	}
	t.ID = uuid.New()
	t.CreatedAt = s.tick()
	t.UpdatedAt = t.CreatedAt
	s.tenants[t.ID] = cloneTenant(t)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTenant(t), nil
}

func (s *Store) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return s.findLive(func(t *domain.Tenant) bool { return t.Slug == slug })
}

func (s *Store) GetByExternalID(ctx context.Context, externalID string) (*domain.Tenant, error) {
	return s.findLive(func(t *domain.Tenant) bool { return t.ExternalIdentityID == externalID })
}

func (s *Store) List(ctx context.Context, filter domain.TenantFilter) ([]domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Tenant
	for _, t := range s.tenants {
		switch {
		case filter.Status != "" && t.Status != filter.Status:
			continue
		case filter.Status == "" && !filter.IncludeDeleted && t.Status == domain.TenantStatusDeleted:
			continue
		}
		out = append(out, *cloneTenant(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TenantStatus) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if t.Status == domain.TenantStatusDeleted {
		if status == domain.TenantStatusDeleted {
			return cloneTenant(t), nil
		}
		return nil, store.ErrConflict
	}

	t.Status = status
	t.UpdatedAt = s.tick()
	if status == domain.TenantStatusDeleted {
		at := t.UpdatedAt
		t.DeletedAt = &at
	}
	return cloneTenant(t), nil
}

func (s *Store) HardDelete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[id]; !ok {
		return nil
	}
	subject := id.String()
	for k := range s.links {
		if k.subject == subject && (k.rel == domain.RelationTenantSalesChannel || k.rel == domain.RelationTenantProduct) {
			return store.ErrConflict
		}
	}
	delete(s.tenants, id)
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Link(ctx context.Context, rel domain.Relation, subjectID, objectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rel == domain.RelationTenantSalesChannel || rel == domain.RelationTenantProduct {
		id, err := uuid.Parse(subjectID)
		if err != nil {
			return store.ErrNotFound
		}
		if _, ok := s.tenants[id]; !ok {
			return store.ErrNotFound
		}
	}
	k := linkKey{rel: rel, subject: subjectID, object: objectID}
	if _, ok := s.links[k]; ok {
		return nil
	}
	if rel == domain.RelationTenantSalesChannel {
		for other := range s.links {
			if other.rel == rel && other.object == objectID {
				return store.ErrLinkTaken
			}
		}
	}
	s.links[k] = s.tick()
	return nil
}

func (s *Store) Unlink(ctx context.Context, rel domain.Relation, subjectID, objectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.links, linkKey{rel: rel, subject: subjectID, object: objectID})
	return nil
}

func (s *Store) Objects(ctx context.Context, rel domain.Relation, subjectID string) ([]string, error) {
	return s.collect(func(k linkKey) (string, bool) {
		return k.object, k.rel == rel && k.subject == subjectID
	}), nil
}

func (s *Store) Subjects(ctx context.Context, rel domain.Relation, objectID string) ([]string, error) {
	return s.collect(func(k linkKey) (string, bool) {
		return k.subject, k.rel == rel && k.object == objectID
	}), nil
}

// LinkCount returns the number of stored links across all relations.
func (s *Store) LinkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links)
}

func (s *Store) findLive(match func(*domain.Tenant) bool) (*domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tenants {
		if t.Status != domain.TenantStatusDeleted && match(t) {
			return cloneTenant(t), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) collect(pick func(linkKey) (string, bool)) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct {
		id string
		at time.Time
	}
	var entries []entry
	for k, at := range s.links {
		if id, ok := pick(k); ok {
			entries = append(entries, entry{id: id, at: at})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].at.Equal(entries[j].at) {
			return entries[i].id < entries[j].id
		}
		return entries[i].at.Before(entries[j].at)
	})

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

// tick offsets the clock by a per-store sequence so rows created within the
// same clock reading still order by insertion.
func (s *Store) tick() time.Time {
	s.seq++
	return s.now().Add(time.Duration(s.seq))
}

func cloneTenant(t *domain.Tenant) *domain.Tenant {
	c := *t
	if t.Settings != nil {
		c.Settings = make(map[string]any, len(t.Settings))
		for k, v := range t.Settings {
			c.Settings[k] = v
		}
	}
	if t.DeletedAt != nil {
		at := *t.DeletedAt
		c.DeletedAt = &at
	}
	return &c
}
