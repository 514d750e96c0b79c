package backend

import (
	"fmt"
	"time"

	"github.com/coderisedev/cs-sub003/internal/domain"
	"go.uber.org/zap"
)

// Provider constants
const (
	ProviderHTTP = "http"
	ProviderMock = "mock"
)

// Clients groups the external commerce backends the service talks to.
type Clients struct {
	SalesChannels domain.SalesChannelBackend
	Catalog       domain.CatalogBackend
	Carts         domain.CartBackend
}

type Config struct {
	SalesChannelURL string
	CatalogURL      string
	CartURL         string
	APIKey          string
	Timeout         time.Duration
}

// NewClients builds backend clients for the named provider.
// Returns an error if the provider is unknown or a required URL is missing.
func NewClients(provider string, cfg Config, logger *zap.Logger) (*Clients, error) {
	switch provider {
	case ProviderHTTP:
		if cfg.SalesChannelURL == "" {
			return nil, fmt.Errorf("SALES_CHANNEL_URL is required for http backends")
		}
		if cfg.CatalogURL == "" {
			return nil, fmt.Errorf("CATALOG_URL is required for http backends")
		}
		if cfg.CartURL == "" {
			return nil, fmt.Errorf("CART_URL is required for http backends")
		}
		return &Clients{
			SalesChannels: NewSalesChannelClient(cfg.SalesChannelURL, cfg.APIKey, cfg.Timeout, logger),
			Catalog:       NewCatalogClient(cfg.CatalogURL, cfg.APIKey, cfg.Timeout, logger),
			Carts:         NewCartClient(cfg.CartURL, cfg.APIKey, cfg.Timeout, logger),
		}, nil

	case ProviderMock:
		return &Clients{
			SalesChannels: NewMockSalesChannels(),
			Catalog:       NewMockCatalog(),
			Carts:         NewMockCarts(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown backend provider: %s (valid options: http, mock)", provider)
	}
}
