package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vertragio/clm-api/internal/dto"
	"github.com/vertragio/clm-api/internal/models"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
	"github.com/vertragio/clm-api/pkg/response"
)

type duplicateService interface {
	Scan(ctx context.Context, scope models.Scope) (int, error)
	List(ctx context.Context, filter models.DuplicateFilter) ([]models.ContractDuplicate, error)
	Get(ctx context.Context, id string) (*models.ContractDuplicate, error)
	Resolve(ctx context.Context, id string, req dto.ResolveDuplicateRequest, actor string) (*models.ContractDuplicate, error)
}

// DuplicateHandler exposes the duplicate review queue.
type DuplicateHandler struct {
	service duplicateService
}

// NewDuplicateHandler builds a new handler.
func NewDuplicateHandler(service duplicateService) *DuplicateHandler {
	return &DuplicateHandler{service: service}
}

// Scan godoc
// @Summary Run duplicate detection for the current scope
// @Tags Duplicates
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /duplicates/scan [post]
func (h *DuplicateHandler) Scan(c *gin.Context) {
	flagged, err := h.service.Scan(c.Request.Context(), scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"flagged": flagged}, nil)
}

// List godoc
// @Summary List flagged duplicate pairs
// @Tags Duplicates
// @Produce json
// @Param status query string false "Resolution status filter"
// @Param min_score query number false "Minimum similarity score"
// @Success 200 {object} response.Envelope
// @Router /duplicates [get]
func (h *DuplicateHandler) List(c *gin.Context) {
	filter := models.DuplicateFilter{
		Scope:  scopeFromContext(c),
		Status: models.DuplicateStatus(c.Query("status")),
		Limit:  queryInt(c, "limit"),
		Offset: queryInt(c, "offset"),
	}
	if raw := c.Query("min_score"); raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "min_score must be numeric"))
			return
		}
		filter.MinScore = score
	}
	dups, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dups, nil)
}

// Get godoc
// @Summary Get a flagged duplicate pair
// @Tags Duplicates
// @Produce json
// @Param id path string true "Duplicate id"
// @Success 200 {object} response.Envelope
// @Router /duplicates/{id} [get]
func (h *DuplicateHandler) Get(c *gin.Context) {
	dup, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dup, nil)
}

// Resolve godoc
// @Summary Merge or dismiss a duplicate pair
// @Tags Duplicates
// @Accept json
// @Produce json
// @Param id path string true "Duplicate id"
// @Param payload body dto.ResolveDuplicateRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /duplicates/{id}/resolve [post]
func (h *DuplicateHandler) Resolve(c *gin.Context) {
	var req dto.ResolveDuplicateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	dup, err := h.service.Resolve(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dup, nil)
}
