package handlers

import (
	"errors"
	"net/http"

	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/coderisedev/cs-sub003/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProductHandler serves tenant-scoped catalog routes. The tenant scope is
// set by the resolution middleware in front of every route.
type ProductHandler struct {
	gateway *service.ScopedGateway
	logger  *zap.Logger
}

func NewProductHandler(gateway *service.ScopedGateway, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{gateway: gateway, logger: logger}
}

type listProductsResponse struct {
	Products []domain.Product `json:"products"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.gateway.ListProducts(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list products")
		return
	}
	writeJSON(w, http.StatusOK, listProductsResponse{Products: products})
}

func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	product, err := h.gateway.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get product")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProductInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.gateway.CreateProduct(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to create product")
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Relink(w http.ResponseWriter, r *http.Request) {
	product, err := h.gateway.RelinkProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var partial *domain.PartiallyLinkedResourceError
		if errors.As(err, &partial) {
			h.logger.Warn("relink incomplete", zap.String("product_id", partial.ResourceID), zap.Error(partial.Err))
		}
		writeServiceError(w, r, h.logger, err, "failed to relink product")
		return
	}
	writeJSON(w, http.StatusOK, product)
}
