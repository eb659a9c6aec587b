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

type deletionService interface {
	Submit(ctx context.Context, req dto.CreateDeletionRequest, scope models.Scope, requestedBy string) (*models.DeletionRequest, error)
	Get(ctx context.Context, id string) (*models.DeletionRequest, error)
	List(ctx context.Context, filter models.DeletionFilter) ([]models.DeletionRequest, error)
	Process(ctx context.Context, id, processedBy string) (*models.DeletionRequest, error)
}

// DeletionHandler exposes GDPR deletion requests.
type DeletionHandler struct {
	service deletionService
}

// NewDeletionHandler builds a new handler.
func NewDeletionHandler(service deletionService) *DeletionHandler {
	return &DeletionHandler{service: service}
}

// Submit godoc
// @Summary Submit a deletion request
// @Tags Deletion
// @Accept json
// @Produce json
// @Param payload body dto.CreateDeletionRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /deletions [post]
func (h *DeletionHandler) Submit(c *gin.Context) {
	var req dto.CreateDeletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid deletion payload"))
		return
	}
	request, err := h.service.Submit(c.Request.Context(), req, scopeFromContext(c), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Get godoc
// @Summary Get a deletion request
// @Tags Deletion
// @Produce json
// @Param id path string true "Request id"
// @Success 200 {object} response.Envelope
// @Router /deletions/{id} [get]
func (h *DeletionHandler) Get(c *gin.Context) {
	request, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// List godoc
// @Summary List deletion requests
// @Tags Deletion
// @Produce json
// @Param status query string false "Status filter"
// @Param type query string false "Request type filter"
// @Success 200 {object} response.Envelope
// @Router /deletions [get]
func (h *DeletionHandler) List(c *gin.Context) {
	filter := models.DeletionFilter{
		Scope:  scopeFromContext(c),
		Status: models.DeletionStatus(c.Query("status")),
		Type:   models.DeletionRequestType(c.Query("type")),
		Limit:  queryInt(c, "limit"),
		Offset: queryInt(c, "offset"),
	}
	requests, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Process godoc
// @Summary Process a deletion request now
// @Tags Deletion
// @Produce json
// @Param id path string true "Request id"
// @Success 200 {object} response.Envelope
// @Router /deletions/{id}/process [post]
func (h *DeletionHandler) Process(c *gin.Context) {
	request, err := h.service.Process(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
