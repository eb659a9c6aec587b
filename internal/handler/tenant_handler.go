package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vertragio/clm-api/internal/dto"
	"github.com/vertragio/clm-api/internal/models"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
	"github.com/vertragio/clm-api/pkg/response"
)

type tenantService interface {
	Create(ctx context.Context, req dto.CreateTenantRequest) (*models.Tenant, error)
	Get(ctx context.Context, id string) (*models.Tenant, error)
	ListActive(ctx context.Context) ([]models.Tenant, error)
	UpdateSettings(ctx context.Context, id string, settings json.RawMessage) (*models.Tenant, error)
	Deactivate(ctx context.Context, id string) (*models.Tenant, error)
}

// TenantHandler exposes tenant administration.
type TenantHandler struct {
	service tenantService
}

// NewTenantHandler builds a new handler.
func NewTenantHandler(service tenantService) *TenantHandler {
	return &TenantHandler{service: service}
}

// Create godoc
// @Summary Onboard a tenant
// @Tags Tenants
// @Accept json
// @Produce json
// @Param payload body dto.CreateTenantRequest true "Tenant payload"
// @Success 201 {object} response.Envelope
// @Router /tenants [post]
func (h *TenantHandler) Create(c *gin.Context) {
	var req dto.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid tenant payload"))
		return
	}
	tenant, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tenant)
}

// Get godoc
// @Summary Get a tenant
// @Tags Tenants
// @Produce json
// @Param id path string true "Tenant id"
// @Success 200 {object} response.Envelope
// @Router /tenants/{id} [get]
func (h *TenantHandler) Get(c *gin.Context) {
	tenant, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tenant, nil)
}

// List godoc
// @Summary List active tenants
// @Tags Tenants
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tenants [get]
func (h *TenantHandler) List(c *gin.Context) {
	tenants, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tenants, nil)
}

// UpdateSettings godoc
// @Summary Replace tenant settings
// @Tags Tenants
// @Accept json
// @Produce json
// @Param id path string true "Tenant id"
// @Param payload body dto.UpdateTenantSettingsRequest true "Settings payload"
// @Success 200 {object} response.Envelope
// @Router /tenants/{id}/settings [put]
func (h *TenantHandler) UpdateSettings(c *gin.Context) {
	var req dto.UpdateTenantSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}
	tenant, err := h.service.UpdateSettings(c.Request.Context(), c.Param("id"), req.Settings)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tenant, nil)
}

// Deactivate godoc
// @Summary Deactivate a tenant
// @Tags Tenants
// @Produce json
// @Param id path string true "Tenant id"
// @Success 200 {object} response.Envelope
// @Router /tenants/{id} [delete]
func (h *TenantHandler) Deactivate(c *gin.Context) {
	tenant, err := h.service.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tenant, nil)
}
