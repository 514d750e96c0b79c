package domain

import (
	"context"

	"github.com/google/uuid"
)

// Scope is the resolved tenant identity attached to a request.
type Scope struct {
	TenantID   uuid.UUID
	TenantSlug string
}

type scopeKey struct{}

func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFromContext returns the tenant scope set by the resolution middleware.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	if !ok || s.TenantID == uuid.Nil {
		return Scope{}, false
	}
	return s, true
}
