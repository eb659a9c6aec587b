package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vertragio/clm-api/internal/dto"
	"github.com/vertragio/clm-api/internal/models"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
	"github.com/vertragio/clm-api/pkg/response"
)

type archiveService interface {
	ArchiveAged(ctx context.Context, scope models.Scope, retentionDays int) (*models.ArchiveReport, error)
	ArchiveManual(ctx context.Context, contractID, actor string) (*models.ContractArchive, error)
	Get(ctx context.Context, id string) (*models.ContractArchive, error)
	List(ctx context.Context, filter models.ArchiveFilter) ([]models.ContractArchive, error)
}

// ArchiveHandler exposes the retention pipeline.
type ArchiveHandler struct {
	service archiveService
}

// NewArchiveHandler builds a new handler.
func NewArchiveHandler(service archiveService) *ArchiveHandler {
	return &ArchiveHandler{service: service}
}

// Sweep godoc
// @Summary Run a retention sweep
// @Tags Archive
// @Accept json
// @Produce json
// @Param payload body dto.SweepRequest false "Sweep parameters"
// @Success 200 {object} response.Envelope
// @Router /archives/sweep [post]
func (h *ArchiveHandler) Sweep(c *gin.Context) {
	var req dto.SweepRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sweep payload"))
			return
		}
	}
	scope := scopeFromContext(c)
	if req.TenantID != "" {
		scope = models.ForTenant(req.TenantID)
	}
	report, err := h.service.ArchiveAged(c.Request.Context(), scope, req.RetentionDays)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ArchiveContract godoc
// @Summary Archive a single contract
// @Tags Archive
// @Produce json
// @Param id path string true "Contract id"
// @Success 201 {object} response.Envelope
// @Router /contracts/{id}/archive [post]
func (h *ArchiveHandler) ArchiveContract(c *gin.Context) {
	archive, err := h.service.ArchiveManual(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, archive)
}

// Get godoc
// @Summary Get an archive entry
// @Tags Archive
// @Produce json
// @Param id path string true "Archive id"
// @Success 200 {object} response.Envelope
// @Router /archives/{id} [get]
func (h *ArchiveHandler) Get(c *gin.Context) {
	archive, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, archive, nil)
}

// List godoc
// @Summary List archive entries
// @Tags Archive
// @Produce json
// @Param original_id query string false "Original contract id"
// @Param reason query string false "Archive reason"
// @Success 200 {object} response.Envelope
// @Router /archives [get]
func (h *ArchiveHandler) List(c *gin.Context) {
	filter := models.ArchiveFilter{
		Scope:      scopeFromContext(c),
		OriginalID: c.Query("original_id"),
		Reason:     c.Query("reason"),
		Limit:      queryInt(c, "limit"),
		Offset:     queryInt(c, "offset"),
	}
	archives, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, archives, nil)
}
