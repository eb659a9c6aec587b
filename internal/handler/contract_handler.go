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

type contractService interface {
	Create(ctx context.Context, req dto.CreateContractRequest, scope models.Scope) (*models.Contract, error)
	Get(ctx context.Context, id string) (*models.Contract, error)
	List(ctx context.Context, filter models.ContractFilter) ([]models.Contract, error)
	Update(ctx context.Context, id string, req dto.UpdateContractRequest, actor string) (*models.Contract, error)
	History(ctx context.Context, id string) ([]models.ContractHistory, error)
}

// ContractHandler exposes contract CRUD and history endpoints.
type ContractHandler struct {
	service contractService
}

// NewContractHandler builds a new handler.
func NewContractHandler(service contractService) *ContractHandler {
	return &ContractHandler{service: service}
}

// Create godoc
// @Summary Register a contract
// @Tags Contracts
// @Accept json
// @Produce json
// @Param payload body dto.CreateContractRequest true "Contract payload"
// @Success 201 {object} response.Envelope
// @Router /contracts [post]
func (h *ContractHandler) Create(c *gin.Context) {
	var req dto.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid contract payload"))
		return
	}
	contract, err := h.service.Create(c.Request.Context(), req, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, contract)
}

// Get godoc
// @Summary Get a contract
// @Tags Contracts
// @Produce json
// @Param id path string true "Contract id"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id} [get]
func (h *ContractHandler) Get(c *gin.Context) {
	contract, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contract, nil)
}

// List godoc
// @Summary List contracts
// @Tags Contracts
// @Produce json
// @Param status query string false "Status filter"
// @Param assigned_to query string false "Assignee filter"
// @Param search query string false "Text search"
// @Success 200 {object} response.Envelope
// @Router /contracts [get]
func (h *ContractHandler) List(c *gin.Context) {
	filter := models.ContractFilter{
		Scope:      scopeFromContext(c),
		Status:     models.ContractStatus(c.Query("status")),
		AssignedTo: c.Query("assigned_to"),
		Search:     c.Query("search"),
		Limit:      queryInt(c, "limit"),
		Offset:     queryInt(c, "offset"),
	}
	contracts, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contracts, nil)
}

// Update godoc
// @Summary Update contract fields
// @Tags Contracts
// @Accept json
// @Produce json
// @Param id path string true "Contract id"
// @Param payload body dto.UpdateContractRequest true "Field updates"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id} [patch]
func (h *ContractHandler) Update(c *gin.Context) {
	var req dto.UpdateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}
	contract, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contract, nil)
}

// History godoc
// @Summary Get contract change history
// @Tags Contracts
// @Produce json
// @Param id path string true "Contract id"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id}/history [get]
func (h *ContractHandler) History(c *gin.Context) {
	history, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

func queryInt(c *gin.Context, name string) int {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return value
}
