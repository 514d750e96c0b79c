package api

import (
	"context"
	"fmt"

	"github.com/coderisedev/cs-sub003/internal/backend"
	"github.com/coderisedev/cs-sub003/internal/cache"
	"github.com/coderisedev/cs-sub003/internal/config"
	"github.com/coderisedev/cs-sub003/internal/identity"
	"github.com/coderisedev/cs-sub003/internal/service"
	"github.com/coderisedev/cs-sub003/internal/store"
	"github.com/coderisedev/cs-sub003/internal/store/memstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Store driver constants
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DependenciesFromConfig assembles Dependencies from the environment. The
// returned cleanup closes every connection that was opened.
func DependenciesFromConfig(ctx context.Context, logger *zap.Logger) (Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := Dependencies{
		Provision: service.ProvisionConfig{
			StepTimeout: config.StepTimeout(),
			StepRetries: config.StepRetries(),
			Parallel:    config.ProvisionParallel(),
		},
		RateLimitRPS:   config.RateLimitRPS(),
		RateLimitBurst: config.RateLimitBurst(),
	}

	switch driver := config.StoreDriver(); driver {
	case DriverPostgres:
		dbURL := config.DatabaseURL()
		if dbURL == "" {
			return deps, cleanup, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return deps, cleanup, fmt.Errorf("connect to database: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return deps, cleanup, fmt.Errorf("ping database: %w", err)
		}
		logger.Info("connected to database")

		if err := store.Migrate(ctx, pool, config.MigrationsPath(), logger); err != nil {
			return deps, cleanup, fmt.Errorf("migrate: %w", err)
		}
		deps.Tenants = store.NewTenantStore(pool)
		deps.Links = store.NewLinkStore(pool)

	case DriverMemory:
		mem := memstore.New()
		deps.Tenants = mem
		deps.Links = mem
		logger.Warn("using in-memory store; data is lost on restart")

	default:
		return deps, cleanup, fmt.Errorf("unknown store driver: %s (valid options: postgres, memory)", driver)
	}

	backends, err := backend.NewClients(config.BackendProvider(), backend.Config{
		SalesChannelURL: config.SalesChannelURL(),
		CatalogURL:      config.CatalogURL(),
		CartURL:         config.CartURL(),
		APIKey:          config.BackendAPIKey(),
		Timeout:         config.StepTimeout(),
	}, logger)
	if err != nil {
		return deps, cleanup, err
	}
	deps.Backends = backends
	logger.Info("backend clients initialized", zap.String("provider", config.BackendProvider()))

	ttl := config.TenantCacheTTL()
	switch {
	case ttl == 0:
		deps.Cache = cache.Nop{}
	case config.RedisURL() != "":
		client, err := cache.NewRedisClient(config.RedisURL())
		if err != nil {
			return deps, cleanup, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable; tenant lookups fall through to the store", zap.Error(err))
		}
		deps.Cache = cache.NewRedis(client, ttl, "", logger)
	default:
		deps.Cache = cache.NewLocal(ttl, cache.DefaultMaxEntries)
	}

	if secret := config.AdminJWTSecret(); secret != "" {
		deps.Verifier = identity.NewJWTVerifier([]byte(secret), config.AdminJWTIssuer())
	} else {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes are unauthenticated")
	}

	return deps, cleanup, nil
}
