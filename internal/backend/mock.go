package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coderisedev/cs-sub003/internal/domain"
)

// MockSalesChannels is an in-process sales-channel backend. It honors
// idempotency keys the way the real backend does.
// Set the error fields to force failures; calls are recorded for assertions.
type MockSalesChannels struct {
	mu       sync.Mutex
	seq      int
	channels map[string]domain.SalesChannel
	byKey    map[string]string

	CreateError error
	DeleteError error

	CreateCalls []domain.CreateSalesChannelInput
	DeleteCalls []string
}

func NewMockSalesChannels() *MockSalesChannels {
	return &MockSalesChannels{
		channels: make(map[string]domain.SalesChannel),
		byKey:    make(map[string]string),
	}
}

func (m *MockSalesChannels) Create(ctx context.Context, in domain.CreateSalesChannelInput) (*domain.SalesChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = append(m.CreateCalls, in)
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	if id, ok := m.byKey[in.IdempotencyKey]; ok {
		if sc, live := m.channels[id]; live {
			return &sc, nil
		}
	}
	m.seq++
	sc := domain.SalesChannel{
		ID:          fmt.Sprintf("sc_%04d", m.seq),
		Name:        in.Name,
		Description: in.Description,
	}
	m.channels[sc.ID] = sc
	if in.IdempotencyKey != "" {
		m.byKey[in.IdempotencyKey] = sc.ID
	}
	return &sc, nil
}

func (m *MockSalesChannels) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, id)
	if m.DeleteError != nil {
		return m.DeleteError
	}
	delete(m.channels, id)
	return nil
}

// Get reports whether a live channel exists.
func (m *MockSalesChannels) Get(id string) (domain.SalesChannel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.channels[id]
	return sc, ok
}

// Count returns the number of live channels.
func (m *MockSalesChannels) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}

// MockCatalog is an in-process catalog backend.
type MockCatalog struct {
	mu       sync.Mutex
	seq      int
	products map[string]domain.Product

	CreateError error
	ListError   error

	ListCalls [][]string
}

func NewMockCatalog() *MockCatalog {
	return &MockCatalog{products: make(map[string]domain.Product)}
}

func (m *MockCatalog) CreateProduct(ctx context.Context, in domain.CreateProductInput) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateError != nil {
		return nil, m.CreateError
	}
	m.seq++
	p := domain.Product{
		ID:          fmt.Sprintf("prod_%04d", m.seq),
		Title:       in.Title,
		Description: in.Description,
		Metadata:    copyMetadata(in.Metadata),
		CreatedAt:   time.Now().UTC(),
	}
	m.products[p.ID] = p
	return &p, nil
}

func (m *MockCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (m *MockCatalog) ListProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListCalls = append(m.ListCalls, append([]string(nil), ids...))
	if m.ListError != nil {
		return nil, m.ListError
	}
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// MockCarts is an in-process cart backend.
type MockCarts struct {
	mu    sync.Mutex
	seq   int
	carts map[string]domain.Cart

	CreateError error
}

func NewMockCarts() *MockCarts {
	return &MockCarts{carts: make(map[string]domain.Cart)}
}

func (m *MockCarts) CreateCart(ctx context.Context, in domain.CreateCartInput) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateError != nil {
		return nil, m.CreateError
	}
	m.seq++
	c := domain.Cart{
		ID:             fmt.Sprintf("cart_%04d", m.seq),
		SalesChannelID: in.SalesChannelID,
		CurrencyCode:   in.CurrencyCode,
		Email:          in.Email,
		CreatedAt:      time.Now().UTC(),
	}
	m.carts[c.ID] = c
	return &c, nil
}

func copyMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
