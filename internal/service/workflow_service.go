package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vertragio/clm-api/internal/dto"
	"github.com/vertragio/clm-api/internal/models"
	"github.com/vertragio/clm-api/internal/repository"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
)

type workflowStore interface {
	ApplyTransition(ctx context.Context, params repository.ApplyTransitionParams) (*models.WorkflowTransition, error)
	ListTransitions(ctx context.Context, filter models.TransitionFilter) ([]models.WorkflowTransition, error)
	CreateApproval(ctx context.Context, approval *models.ContractApproval) error
	GetApproval(ctx context.Context, id string) (*models.ContractApproval, error)
	OpenApproval(ctx context.Context, contractID string) (*models.ContractApproval, error)
	ResolveApproval(ctx context.Context, params repository.ResolveApprovalParams) error
	MarkSLAOutcome(ctx context.Context, contractID string, resolvedAt time.Time) error
	UpsertSLA(ctx context.Context, sla *models.ContractSLA) error
	ListSLAs(ctx context.Context, contractID string) ([]models.ContractSLA, error)
}

type contractReader interface {
	GetByID(ctx context.Context, id string) (*models.Contract, error)
}

type metricsCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type transitionRecorder interface {
	RecordWorkflowTransition(from, to string)
}

// WorkflowService drives the contract status machine. All status writes
// go through Transition; nothing else in the system changes a status.
type WorkflowService struct {
	repo      workflowStore
	contracts contractReader
	validator payloadValidator
	cache     metricsCacheInvalidator
	telemetry transitionRecorder
	logger    *zap.Logger
}

// NewWorkflowService constructs the service. cache and telemetry may be
// nil; the related side effects are then skipped.
func NewWorkflowService(repo workflowStore, contracts contractReader, validator payloadValidator, cache metricsCacheInvalidator, telemetry transitionRecorder, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		repo:      repo,
		contracts: contracts,
		validator: validator,
		cache:     cache,
		telemetry: telemetry,
		logger:    logger,
	}
}

// Transition moves a contract to a new status. The forward-only graph
// offen -> inbearb -> fertig is enforced unless the caller overrides
// with a reason. The target state's validation rules run against the
// contract payload before anything is written; the write itself is one
// atomic unit of status swap, audit entry, history rows and metrics
// invalidation.
func (s *WorkflowService) Transition(ctx context.Context, contractID string, req dto.TransitionRequest, actor string) (*models.WorkflowTransition, error) {
	toStatus := models.ContractStatus(strings.ToLower(strings.TrimSpace(string(req.ToStatus))))
	if !toStatus.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown target status %q", req.ToStatus))
	}

	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}

	if toStatus == contract.Status {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, fmt.Sprintf("contract is already %s", toStatus))
	}
	if req.Override {
		if strings.TrimSpace(req.Reason) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "override transitions require a reason")
		}
	} else if toStatus != contract.Status.NextStatus() {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition,
			fmt.Sprintf("cannot move from %s to %s without override", contract.Status, toStatus))
	}

	scope := contract.Scope()
	payload := contract.Fields()
	payload["status"] = string(toStatus)
	violations, err := s.validator.Evaluate(ctx, scope, payload, contract.ID)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidationFailed, violations)
	}

	now := time.Now().UTC()
	fromStatus := contract.Status
	transition, err := s.repo.ApplyTransition(ctx, repository.ApplyTransitionParams{
		ContractID: contract.ID,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		Actor:      optionalString(actor),
		Reason:     optionalString(req.Reason),
		Metadata:   req.Metadata,
		Changes: []models.ContractHistory{{
			FieldName: "status",
			OldValue:  cloneString(string(fromStatus)),
			NewValue:  cloneString(string(toStatus)),
			ChangedBy: optionalString(actor),
		}},
		Scope: scope,
		Date:  now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrRetryableConflict, "contract status changed concurrently, re-read and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
	}

	if toStatus == models.ContractStatusFertig {
		if err := s.repo.MarkSLAOutcome(ctx, contract.ID, now); err != nil {
			s.logger.Warn("failed to mark sla outcome",
				zap.String("contract_id", contract.ID), zap.Error(err))
		}
	}

	s.invalidateMetricsCache(ctx, scope)
	if s.telemetry != nil {
		s.telemetry.RecordWorkflowTransition(string(fromStatus), string(toStatus))
	}

	s.logger.Info("contract transitioned",
		zap.String("contract_id", contract.ID),
		zap.String("from", string(fromStatus)),
		zap.String("to", string(toStatus)),
		zap.Bool("override", req.Override))
	return transition, nil
}

// Transitions returns audit log entries matching the filter.
func (s *WorkflowService) Transitions(ctx context.Context, filter models.TransitionFilter) ([]models.WorkflowTransition, error) {
	transitions, err := s.repo.ListTransitions(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transitions")
	}
	return transitions, nil
}

// RequestApproval opens an approval round for a contract. At most one
// round may be pending at a time.
func (s *WorkflowService) RequestApproval(ctx context.Context, contractID string, req dto.RequestApprovalRequest, requestedBy string) (*models.ContractApproval, error) {
	if _, err := s.contracts.GetByID(ctx, contractID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}

	approval := &models.ContractApproval{
		ContractID:  contractID,
		ApproverID:  strings.TrimSpace(req.ApproverID),
		RequestedBy: optionalString(requestedBy),
		Comments:    optionalString(req.Comments),
		Status:      models.ApprovalStatusPending,
	}
	if approval.ApproverID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "approver_id is required")
	}
	if err := s.repo.CreateApproval(ctx, approval); err != nil {
		if errors.Is(err, repository.ErrDuplicatePending) {
			return nil, appErrors.ErrApprovalAlreadyPending
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create approval")
	}
	return approval, nil
}

// ResolveApproval records an approve or reject decision. Exactly one
// caller wins a race on the same pending approval; the loser gets a
// precondition failure.
func (s *WorkflowService) ResolveApproval(ctx context.Context, approvalID string, req dto.ResolveApprovalRequest) (*models.ContractApproval, error) {
	decision := models.ApprovalStatus(strings.ToLower(strings.TrimSpace(string(req.Decision))))
	if decision != models.ApprovalStatusApproved && decision != models.ApprovalStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("decision must be approved or rejected, got %q", req.Decision))
	}

	approval, err := s.repo.GetApproval(ctx, approvalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval")
	}
	if approval.Status != models.ApprovalStatusPending {
		return nil, appErrors.ErrApprovalNotPending
	}

	now := time.Now().UTC()
	err = s.repo.ResolveApproval(ctx, repository.ResolveApprovalParams{
		ApprovalID: approval.ID,
		ContractID: approval.ContractID,
		Decision:   decision,
		Comments:   optionalString(req.Comments),
		ActionDate: now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrApprovalNotPending
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve approval")
	}

	approval.Status = decision
	approval.ActionDate = &now
	if comments := optionalString(req.Comments); comments != nil {
		approval.Comments = comments
	}
	return approval, nil
}

// OpenApproval returns the pending approval on a contract, if any.
func (s *WorkflowService) OpenApproval(ctx context.Context, contractID string) (*models.ContractApproval, error) {
	approval, err := s.repo.OpenApproval(ctx, contractID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open approval")
	}
	return approval, nil
}

// CreateSLA attaches a timing target to a contract.
func (s *WorkflowService) CreateSLA(ctx context.Context, contractID string, req dto.CreateSLARequest) (*models.ContractSLA, error) {
	if _, err := s.contracts.GetByID(ctx, contractID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	sla := &models.ContractSLA{
		ContractID:  contractID,
		SLAType:     strings.TrimSpace(req.SLAType),
		TargetValue: strings.TrimSpace(req.TargetValue),
		Status:      models.SLAStatusPending,
		DueDate:     req.DueDate,
	}
	if sla.SLAType == "" || sla.TargetValue == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "sla_type and target_value are required")
	}
	if err := s.repo.UpsertSLA(ctx, sla); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store sla")
	}
	return sla, nil
}

// SLAs lists the SLA rows attached to a contract.
func (s *WorkflowService) SLAs(ctx context.Context, contractID string) ([]models.ContractSLA, error) {
	slas, err := s.repo.ListSLAs(ctx, contractID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slas")
	}
	return slas, nil
}

func (s *WorkflowService) invalidateMetricsCache(ctx context.Context, scope models.Scope) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, metricsCachePattern(scope)); err != nil {
		s.logger.Warn("failed to invalidate metrics cache", zap.Error(err))
	}
}
