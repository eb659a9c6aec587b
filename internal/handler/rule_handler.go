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

type ruleService interface {
	Create(ctx context.Context, req dto.CreateRuleRequest, scope models.Scope) (*models.ValidationRule, error)
	List(ctx context.Context, scope models.Scope) ([]models.ValidationRule, error)
	Update(ctx context.Context, id string, req dto.UpdateRuleRequest) (*models.ValidationRule, error)
	Delete(ctx context.Context, id string) error
}

// RuleHandler exposes validation rule administration.
type RuleHandler struct {
	service ruleService
}

// NewRuleHandler builds a new handler.
func NewRuleHandler(service ruleService) *RuleHandler {
	return &RuleHandler{service: service}
}

// Create godoc
// @Summary Create a validation rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param payload body dto.CreateRuleRequest true "Rule payload"
// @Success 201 {object} response.Envelope
// @Router /rules [post]
func (h *RuleHandler) Create(c *gin.Context) {
	var req dto.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rule payload"))
		return
	}
	rule, err := h.service.Create(c.Request.Context(), req, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// List godoc
// @Summary List validation rules for the current scope
// @Tags Rules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rules [get]
func (h *RuleHandler) List(c *gin.Context) {
	rules, err := h.service.List(c.Request.Context(), scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// Update godoc
// @Summary Update a validation rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param id path string true "Rule id"
// @Param payload body dto.UpdateRuleRequest true "Rule updates"
// @Success 200 {object} response.Envelope
// @Router /rules/{id} [put]
func (h *RuleHandler) Update(c *gin.Context) {
	var req dto.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rule payload"))
		return
	}
	rule, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// Delete godoc
// @Summary Delete a validation rule
// @Tags Rules
// @Param id path string true "Rule id"
// @Success 204
// @Router /rules/{id} [delete]
func (h *RuleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
