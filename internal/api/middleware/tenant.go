package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// TenantHeader carries the tenant id on admin resource routes.
const TenantHeader = "X-Tenant-ID"

const tenantContextKey contextKey = "tenant"

// TenantResolver is satisfied by service.TenantResolver.
type TenantResolver interface {
	ResolveByID(ctx context.Context, raw string) (*domain.Tenant, error)
	ResolveBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
}

// TenantFromContext returns the resolved tenant, or nil.
func TenantFromContext(ctx context.Context) *domain.Tenant {
	t, _ := ctx.Value(tenantContextKey).(*domain.Tenant)
	return t
}

// TenantFromHeader resolves the tenant named by the X-Tenant-ID header.
// A missing header is a 400; anything that does not resolve to an active
// tenant is the same 404.
func TenantFromHeader(resolver TenantResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(TenantHeader))
			if raw == "" {
				writeError(w, http.StatusBadRequest, TenantHeader+" header is required")
				return
			}
			t, err := resolver.ResolveByID(r.Context(), raw)
			serveScoped(w, r, next, t, err, logger)
		})
	}
}

// TenantFromSlug resolves the tenant from the named URL parameter.
func TenantFromSlug(resolver TenantResolver, param string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, err := resolver.ResolveBySlug(r.Context(), chi.URLParam(r, param))
			serveScoped(w, r, next, t, err, logger)
		})
	}
}

func serveScoped(w http.ResponseWriter, r *http.Request, next http.Handler, t *domain.Tenant, err error, logger *zap.Logger) {
	ri := infoFromContext(r.Context())
	if err != nil {
		// Lookup failures look exactly like an unknown tenant to the caller.
		if !errors.Is(err, domain.ErrNotFoundOrInactive) {
			logger.Error("tenant resolution failed",
				zap.String("request_id", RequestIDFromContext(r.Context())),
				zap.Error(err))
		}
		if ri != nil {
			ri.tenantRejected = true
		}
		writeError(w, http.StatusNotFound, domain.ErrNotFoundOrInactive.Error())
		return
	}

	if ri != nil {
		ri.tenantID = t.ID.String()
	}
	ctx := context.WithValue(r.Context(), tenantContextKey, t)
	ctx = domain.WithScope(ctx, domain.Scope{TenantID: t.ID, TenantSlug: t.Slug})
	next.ServeHTTP(w, r.WithContext(ctx))
}
