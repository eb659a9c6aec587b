package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vertragio/clm-api/internal/dto"
	"github.com/vertragio/clm-api/internal/models"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
	"github.com/vertragio/clm-api/pkg/response"
)

type workflowService interface {
	Transition(ctx context.Context, contractID string, req dto.TransitionRequest, actor string) (*models.WorkflowTransition, error)
	Transitions(ctx context.Context, filter models.TransitionFilter) ([]models.WorkflowTransition, error)
	RequestApproval(ctx context.Context, contractID string, req dto.RequestApprovalRequest, requestedBy string) (*models.ContractApproval, error)
	ResolveApproval(ctx context.Context, approvalID string, req dto.ResolveApprovalRequest) (*models.ContractApproval, error)
	OpenApproval(ctx context.Context, contractID string) (*models.ContractApproval, error)
	CreateSLA(ctx context.Context, contractID string, req dto.CreateSLARequest) (*models.ContractSLA, error)
	SLAs(ctx context.Context, contractID string) ([]models.ContractSLA, error)
}

// WorkflowHandler exposes status transitions, approvals and SLAs.
type WorkflowHandler struct {
	service workflowService
}

// NewWorkflowHandler builds a new handler.
func NewWorkflowHandler(service workflowService) *WorkflowHandler {
	return &WorkflowHandler{service: service}
}

// Transition godoc
// @Summary Transition a contract to a new status
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Contract id"
// @Param payload body dto.TransitionRequest true "Transition payload"
// @Success 201 {object} response.Envelope
// @Router /contracts/{id}/transitions [post]
func (h *WorkflowHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transition payload"))
		return
	}
	transition, err := h.service.Transition(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, transition)
}

// Transitions godoc
// @Summary List transitions for a contract
// @Tags Workflow
// @Produce json
// @Param id path string true "Contract id"
// @Param since query string false "RFC3339 lower bound"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id}/transitions [get]
func (h *WorkflowHandler) Transitions(c *gin.Context) {
	filter := models.TransitionFilter{
		ContractID: c.Param("id"),
		ToStatus:   models.ContractStatus(c.Query("to_status")),
		Limit:      queryInt(c, "limit"),
		Offset:     queryInt(c, "offset"),
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "since must be RFC3339"))
			return
		}
		filter.Since = &since
	}
	transitions, err := h.service.Transitions(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transitions, nil)
}

// RequestApproval godoc
// @Summary Open an approval round
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Contract id"
// @Param payload body dto.RequestApprovalRequest true "Approval payload"
// @Success 201 {object} response.Envelope
// @Router /contracts/{id}/approvals [post]
func (h *WorkflowHandler) RequestApproval(c *gin.Context) {
	var req dto.RequestApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
		return
	}
	approval, err := h.service.RequestApproval(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, approval)
}

// OpenApproval godoc
// @Summary Get the pending approval for a contract
// @Tags Workflow
// @Produce json
// @Param id path string true "Contract id"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id}/approvals/open [get]
func (h *WorkflowHandler) OpenApproval(c *gin.Context) {
	approval, err := h.service.OpenApproval(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval, nil)
}

// ResolveApproval godoc
// @Summary Resolve a pending approval
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Approval id"
// @Param payload body dto.ResolveApprovalRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /approvals/{id}/resolve [post]
func (h *WorkflowHandler) ResolveApproval(c *gin.Context) {
	var req dto.ResolveApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	approval, err := h.service.ResolveApproval(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval, nil)
}

// CreateSLA godoc
// @Summary Attach an SLA target to a contract
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Contract id"
// @Param payload body dto.CreateSLARequest true "SLA payload"
// @Success 201 {object} response.Envelope
// @Router /contracts/{id}/slas [post]
func (h *WorkflowHandler) CreateSLA(c *gin.Context) {
	var req dto.CreateSLARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sla payload"))
		return
	}
	sla, err := h.service.CreateSLA(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sla)
}

// SLAs godoc
// @Summary List SLA targets for a contract
// @Tags Workflow
// @Produce json
// @Param id path string true "Contract id"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id}/slas [get]
func (h *WorkflowHandler) SLAs(c *gin.Context) {
	slas, err := h.service.SLAs(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slas, nil)
}
