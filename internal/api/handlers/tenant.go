package handlers

import (
	"net/http"
	"strconv"

	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/coderisedev/cs-sub003/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TenantHandler struct {
	directory   *service.TenantDirectory
	provisioner *service.Provisioner
	logger      *zap.Logger
}

func NewTenantHandler(directory *service.TenantDirectory, provisioner *service.Provisioner, logger *zap.Logger) *TenantHandler {
	return &TenantHandler{directory: directory, provisioner: provisioner, logger: logger}
}

// Create provisions a tenant with its default sales channel.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTenantInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.provisioner.Provision(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to provision tenant")
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

type listTenantsResponse struct {
	Tenants []domain.Tenant `json:"tenants"`
}

func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.TenantFilter{Status: domain.TenantStatus(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("include_deleted"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "include_deleted must be a boolean")
			return
		}
		filter.IncludeDeleted = v
	}

	tenants, err := h.directory.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list tenants")
		return
	}

	writeJSON(w, http.StatusOK, listTenantsResponse{Tenants: tenants})
}

func (h *TenantHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	tenant, err := h.directory.FindByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get tenant")
		return
	}

	writeJSON(w, http.StatusOK, tenant)
}

type setStatusRequest struct {
	Status domain.TenantStatus `json:"status"`
}

func (h *TenantHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tenant, err := h.directory.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to update tenant status")
		return
	}

	writeJSON(w, http.StatusOK, tenant)
}
