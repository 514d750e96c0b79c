package domain

import "time"

// SalesChannel is the visibility unit a tenant's catalog and carts attach to.
// It lives in the external sales-channel backend.
type SalesChannel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsDisabled  bool   `json:"is_disabled"`
}

type CreateSalesChannelInput struct {
	Name           string
	Description    string
	IdempotencyKey string
}

// MetadataTenantID is the catalog metadata key recording which tenant created
// a product.
const MetadataTenantID = "tenant_id"

type Product struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type CreateProductInput struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Cart struct {
	ID             string    `json:"id"`
	SalesChannelID string    `json:"sales_channel_id"`
	CurrencyCode   string    `json:"currency_code,omitempty"`
	Email          string    `json:"email,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type CreateCartInput struct {
	SalesChannelID string `json:"sales_channel_id"`
	CurrencyCode   string `json:"currency_code,omitempty"`
	Email          string `json:"email,omitempty"`
}
