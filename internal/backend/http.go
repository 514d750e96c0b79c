package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coderisedev/cs-sub003/internal/buildconfig"
	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// StatusError is a non-2xx answer from a backend.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Body)
}

func newRestClient(baseURL, apiKey string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", buildconfig.UserAgent())
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return c
}

func statusError(op string, resp *resty.Response) error {
	return &StatusError{Op: op, StatusCode: resp.StatusCode(), Body: resp.String()}
}

// SalesChannelClient talks to the sales-channel backend.
type SalesChannelClient struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewSalesChannelClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *SalesChannelClient {
	return &SalesChannelClient{http: newRestClient(baseURL, apiKey, timeout), logger: logger}
}

type salesChannelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type salesChannelResponse struct {
	SalesChannel domain.SalesChannel `json:"sales_channel"`
}

func (c *SalesChannelClient) Create(ctx context.Context, in domain.CreateSalesChannelInput) (*domain.SalesChannel, error) {
	var out salesChannelResponse
	req := c.http.R().
		SetContext(ctx).
		SetBody(salesChannelRequest{Name: in.Name, Description: in.Description}).
		SetResult(&out)
	if in.IdempotencyKey != "" {
		req.SetHeader("Idempotency-Key", in.IdempotencyKey)
	}

	resp, err := req.Post("/sales-channels")
	if err != nil {
		return nil, fmt.Errorf("create sales channel: %w", err)
	}
	if resp.IsError() {
		return nil, statusError("create sales channel", resp)
	}

	c.logger.Debug("sales channel created", zap.String("sales_channel_id", out.SalesChannel.ID))
	return &out.SalesChannel, nil
}

// Delete removes a sales channel. A 404 counts as success.
func (c *SalesChannelClient) Delete(ctx context.Context, id string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Delete("/sales-channels/{id}")
	if err != nil {
		return fmt.Errorf("delete sales channel: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	if resp.IsError() {
		return statusError("delete sales channel", resp)
	}
	return nil
}

// CatalogClient talks to the catalog backend.
type CatalogClient struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewCatalogClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *CatalogClient {
	return &CatalogClient{http: newRestClient(baseURL, apiKey, timeout), logger: logger}
}

type productResponse struct {
	Product domain.Product `json:"product"`
}

type productListResponse struct {
	Products []domain.Product `json:"products"`
}

func (c *CatalogClient) CreateProduct(ctx context.Context, in domain.CreateProductInput) (*domain.Product, error) {
	var out productResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(in).
		SetResult(&out).
		Post("/products")
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	if resp.IsError() {
		return nil, statusError("create product", resp)
	}
	return &out.Product, nil
}

func (c *CatalogClient) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var out productResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		Get("/products/{id}")
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, domain.ErrProductNotFound
	}
	if resp.IsError() {
		return nil, statusError("get product", resp)
	}
	return &out.Product, nil
}

// ListProducts fetches the given ids. Ids unknown to the catalog are absent
// from the result.
func (c *CatalogClient) ListProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	var out productListResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(url.Values{"id": ids}).
		SetResult(&out).
		Get("/products")
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if resp.IsError() {
		return nil, statusError("list products", resp)
	}

	return out.Products, nil
}

// CartClient talks to the cart backend.
type CartClient struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewCartClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *CartClient {
	return &CartClient{http: newRestClient(baseURL, apiKey, timeout), logger: logger}
}

type cartResponse struct {
	Cart domain.Cart `json:"cart"`
}

func (c *CartClient) CreateCart(ctx context.Context, in domain.CreateCartInput) (*domain.Cart, error) {
	var out cartResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(in).
		SetResult(&out).
		Post("/carts")
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	if resp.IsError() {
		return nil, statusError("create cart", resp)
	}
	return &out.Cart, nil
}
