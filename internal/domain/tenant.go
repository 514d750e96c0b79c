package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusDeleted   TenantStatus = "deleted"
)

func (s TenantStatus) Valid() bool {
	switch s {
	case TenantStatusActive, TenantStatusSuspended, TenantStatusDeleted:
		return true
	}
	return false
}

// CanTransition reports whether a tenant in status s may move to next.
// Deleted is terminal; every other move, including a no-op, is allowed.
func (s TenantStatus) CanTransition(next TenantStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == TenantStatusDeleted {
		return next == TenantStatusDeleted
	}
	return true
}

type TenantPlan string

const (
	TenantPlanFree       TenantPlan = "free"
	TenantPlanPro        TenantPlan = "pro"
	TenantPlanEnterprise TenantPlan = "enterprise"
)

func (p TenantPlan) Valid() bool {
	switch p {
	case TenantPlanFree, TenantPlanPro, TenantPlanEnterprise:
		return true
	}
	return false
}

type Tenant struct {
	ID                 uuid.UUID      `json:"id"`
	Name               string         `json:"name"`
	Slug               string         `json:"slug"`
	ExternalIdentityID string         `json:"external_identity_id"`
	Status             TenantStatus   `json:"status"`
	Plan               TenantPlan     `json:"plan"`
	Settings           map[string]any `json:"settings,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          *time.Time     `json:"deleted_at,omitempty"`
}

func (t *Tenant) IsActive() bool {
	return t != nil && t.Status == TenantStatusActive
}

// TenantFilter narrows directory listings.
type TenantFilter struct {
	Status         TenantStatus
	IncludeDeleted bool
}

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9]|-[a-z0-9]){0,62}$`)

// NormalizeSlug trims and lowercases a slug without validating it.
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidSlug reports whether s is a well-formed, already normalized slug:
// 1-63 chars of [a-z0-9], single inner hyphens only.
func ValidSlug(s string) bool {
	return len(s) <= 63 && slugPattern.MatchString(s)
}
