package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/coderisedev/cs-sub003/internal/service"
	"go.uber.org/zap"
)

type CartHandler struct {
	gateway *service.ScopedGateway
	logger  *zap.Logger
}

func NewCartHandler(gateway *service.ScopedGateway, logger *zap.Logger) *CartHandler {
	return &CartHandler{gateway: gateway, logger: logger}
}

type createCartRequest struct {
	CurrencyCode string `json:"currency_code"`
	Email        string `json:"email"`
}

func (h *CartHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCartRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, err := h.gateway.CreateCart(r.Context(), domain.CreateCartInput{
		CurrencyCode: req.CurrencyCode,
		Email:        req.Email,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to create cart")
		return
	}
	writeJSON(w, http.StatusCreated, cart)
}
