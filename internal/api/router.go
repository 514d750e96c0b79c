package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/coderisedev/cs-sub003/internal/api/handlers"
	mw "github.com/coderisedev/cs-sub003/internal/api/middleware"
	"github.com/coderisedev/cs-sub003/internal/backend"
	"github.com/coderisedev/cs-sub003/internal/buildconfig"
	"github.com/coderisedev/cs-sub003/internal/cache"
	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/coderisedev/cs-sub003/internal/identity"
	"github.com/coderisedev/cs-sub003/internal/service"
	"github.com/coderisedev/cs-sub003/internal/store"
	"github.com/coderisedev/cs-sub003/internal/store/memstore"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Dependencies are the stores and collaborators the app is assembled from.
type Dependencies struct {
	Tenants  domain.TenantStore
	Links    domain.LinkStore
	Backends *backend.Clients
	Cache    cache.TenantCache

	// Verifier guards admin routes. Nil leaves them open.
	Verifier domain.SubjectVerifier

	Provision      service.ProvisionConfig
	RateLimitRPS   float64
	RateLimitBurst int
}

// App holds the router and the services behind it.
type App struct {
	Router      *chi.Mux
	Directory   *service.TenantDirectory
	Resolver    *service.TenantResolver
	Provisioner *service.Provisioner
	Gateway     *service.ScopedGateway
	startTime   time.Time
	counters    mw.Counters
}

func NewApp(deps Dependencies, logger *zap.Logger) *App {
	// Services
	directory := service.NewTenantDirectory(deps.Tenants, logger)
	resolver := service.NewTenantResolver(directory, deps.Cache, logger)
	directory.OnStatusChange(resolver.Invalidate)
	provisioner := service.NewProvisioner(directory, deps.Links, deps.Backends.SalesChannels, deps.Provision, logger)
	gateway := service.NewScopedGateway(deps.Links, deps.Backends.Catalog, deps.Backends.Carts,
		deps.Provision.StepTimeout, deps.Provision.StepRetries, logger)

	// Handlers
	tenantHandler := handlers.NewTenantHandler(directory, provisioner, logger)
	productHandler := handlers.NewProductHandler(gateway, logger)
	cartHandler := handlers.NewCartHandler(gateway, logger)

	r := chi.NewRouter()

	app := &App{
		Router:      r,
		Directory:   directory,
		Resolver:    resolver,
		Provisioner: provisioner,
		Gateway:     gateway,
		startTime:   time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.counters)

	// Global middleware (order matters)
	r.Use(mw.RequestID)                  // Request ID and shared request info first
	r.Use(middleware.RealIP)             // Extract real IP
	r.Use(metricsCollector.Middleware)   // Collect metrics
	r.Use(mw.Logging(logger))            // Log all requests
	r.Use(middleware.Recoverer)          // Recover from panics
	r.Use(mw.RateLimit(rateLimit(deps))) // Rate limiting

	// Health and metrics (no auth)
	r.Get("/health", healthHandler(directory))
	r.Get("/metrics", app.metricsHandler())

	// Admin routes
	r.Group(func(r chi.Router) {
		if deps.Verifier != nil {
			r.Use(mw.AdminAuth(deps.Verifier))
		}

		r.Route("/tenants", func(r chi.Router) {
			r.Post("/", tenantHandler.Create)
			r.Get("/", tenantHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", tenantHandler.GetByID)
				r.Put("/status", tenantHandler.SetStatus)
			})
		})

		r.Route("/admin/products", func(r chi.Router) {
			r.Use(mw.TenantFromHeader(resolver, logger))
			r.Get("/", productHandler.List)
			r.Post("/", productHandler.Create)
			r.Post("/{id}/relink", productHandler.Relink)
		})
	})

	// Storefront routes, resolved by slug
	r.Route("/shop/{tenant_slug}", func(r chi.Router) {
		r.Use(mw.TenantFromSlug(resolver, "tenant_slug", logger))
		r.Get("/products", productHandler.List)
		r.Get("/products/{id}", productHandler.GetByID)
		r.Post("/cart", cartHandler.Create)
	})

	return app
}

func rateLimit(deps Dependencies) (float64, int) {
	rps, burst := deps.RateLimitRPS, deps.RateLimitBurst
	if rps <= 0 {
		rps = 100
	}
	if burst <= 0 {
		burst = 20
	}
	return rps, burst
}

type pinger interface {
	Ping(ctx context.Context) error
}

func healthHandler(p pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info := buildconfig.VersionInfo()
		if err := p.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error(), "version": info["version"]})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": info["version"], "commit": info["commit"]})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds":         uptime.Seconds(),
			"uptime_human":           uptime.Round(time.Second).String(),
			"request_count":          app.counters.Requests.Load(),
			"client_error_count":     app.counters.ClientErrors.Load(),
			"server_error_count":     app.counters.ServerErrors.Load(),
			"tenant_rejected_count":  app.counters.TenantRejected.Load(),
			"partially_linked_count": app.counters.PartiallyLinked.Load(),
			"goroutines":             runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.TenantStore         = (*store.TenantStore)(nil)
	_ domain.LinkStore           = (*store.LinkStore)(nil)
	_ domain.TenantStore         = (*memstore.Store)(nil)
	_ domain.LinkStore           = (*memstore.Store)(nil)
	_ domain.SalesChannelBackend = (*backend.SalesChannelClient)(nil)
	_ domain.SalesChannelBackend = (*backend.MockSalesChannels)(nil)
	_ domain.CatalogBackend      = (*backend.CatalogClient)(nil)
	_ domain.CatalogBackend      = (*backend.MockCatalog)(nil)
	_ domain.CartBackend         = (*backend.CartClient)(nil)
	_ domain.CartBackend         = (*backend.MockCarts)(nil)
	_ domain.SubjectVerifier     = (*identity.JWTVerifier)(nil)
	_ cache.TenantCache          = (*cache.Local)(nil)
	_ cache.TenantCache          = (*cache.Redis)(nil)
	_ mw.TenantResolver          = (*service.TenantResolver)(nil)
)
