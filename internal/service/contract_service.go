package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/vertragio/clm-api/internal/dto"
	"github.com/vertragio/clm-api/internal/models"
	"github.com/vertragio/clm-api/internal/repository"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
)

type contractStore interface {
	Create(ctx context.Context, contract *models.Contract) error
	GetByID(ctx context.Context, id string) (*models.Contract, error)
	List(ctx context.Context, filter models.ContractFilter) ([]models.Contract, error)
	UpdateFields(ctx context.Context, params repository.UpdateFieldsParams) error
	History(ctx context.Context, contractID string) ([]models.ContractHistory, error)
}

type payloadValidator interface {
	Evaluate(ctx context.Context, scope models.Scope, payload map[string]string, excludeContractID string) ([]models.Violation, error)
}

// ContractService owns validation-gated contract mutations. Status
// changes are not handled here; they go through the workflow engine.
type ContractService struct {
	repo      contractStore
	validator payloadValidator
	logger    *zap.Logger
}

// NewContractService constructs the service.
func NewContractService(repo contractStore, validator payloadValidator, logger *zap.Logger) *ContractService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContractService{repo: repo, validator: validator, logger: logger}
}

// Create validates and stores a new contract in the given scope.
// Violations abort the operation before any write.
func (s *ContractService) Create(ctx context.Context, req dto.CreateContractRequest, scope models.Scope) (*models.Contract, error) {
	contract := &models.Contract{
		TenantID:       scope.Ref(),
		Auftrag:        strings.TrimSpace(req.Auftrag),
		Titel:          strings.TrimSpace(req.Titel),
		Standort:       strings.TrimSpace(req.Standort),
		GeraetNr:       strings.TrimSpace(req.GeraetNr),
		Beschreibung:   optionalString(req.Beschreibung),
		AssignedTo:     optionalString(req.AssignedTo),
		Status:         models.ContractStatusOffen,
		ApprovalStatus: models.ApprovalStatusPending,
	}

	violations, err := s.validator.Evaluate(ctx, scope, contract.Fields(), "")
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidationFailed, violations)
	}

	if err := s.repo.Create(ctx, contract); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create contract")
	}
	return contract, nil
}

// Get returns one contract.
func (s *ContractService) Get(ctx context.Context, id string) (*models.Contract, error) {
	contract, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	return contract, nil
}

// List returns contracts matching the filter.
func (s *ContractService) List(ctx context.Context, filter models.ContractFilter) ([]models.Contract, error) {
	contracts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contracts")
	}
	return contracts, nil
}

// History returns the append-only change log of a contract.
func (s *ContractService) History(ctx context.Context, id string) ([]models.ContractHistory, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract history")
	}
	return history, nil
}

// Update applies a gated field update: every changed field passes the
// validation engine first, then the update and its history rows commit
// atomically. A concurrent writer surfaces as a retryable conflict.
func (s *ContractService) Update(ctx context.Context, id string, req dto.UpdateContractRequest, actor string) (*models.Contract, error) {
	contract, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expectedUpdatedAt := contract.UpdatedAt
	before := contract.Fields()

	applyOptional(&contract.Auftrag, req.Auftrag)
	applyOptional(&contract.Titel, req.Titel)
	applyOptional(&contract.Standort, req.Standort)
	applyOptional(&contract.GeraetNr, req.GeraetNr)
	if req.Beschreibung != nil {
		contract.Beschreibung = optionalString(*req.Beschreibung)
	}
	if req.AssignedTo != nil {
		contract.AssignedTo = optionalString(*req.AssignedTo)
	}

	scope := contract.Scope()
	violations, err := s.validator.Evaluate(ctx, scope, contract.Fields(), contract.ID)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidationFailed, violations)
	}

	changes := diffFields(before, contract.Fields(), actor)
	if len(changes) == 0 {
		return contract, nil
	}

	err = s.repo.UpdateFields(ctx, repository.UpdateFieldsParams{
		Contract:          contract,
		Changes:           changes,
		ExpectedUpdatedAt: expectedUpdatedAt,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrRetryableConflict, "contract changed since read, retry the update")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update contract")
	}
	return contract, nil
}

// diffFields builds history rows for every field whose value changed.
func diffFields(before, after map[string]string, actor string) []models.ContractHistory {
	var changes []models.ContractHistory
	for field, newValue := range after {
		oldValue, had := before[field]
		if had && oldValue == newValue {
			continue
		}
		change := models.ContractHistory{
			FieldName: field,
			NewValue:  cloneString(newValue),
			ChangedBy: optionalString(actor),
		}
		if had {
			change.OldValue = cloneString(oldValue)
		}
		changes = append(changes, change)
	}
	for field, oldValue := range before {
		if _, still := after[field]; !still {
			changes = append(changes, models.ContractHistory{
				FieldName: field,
				OldValue:  cloneString(oldValue),
				ChangedBy: optionalString(actor),
			})
		}
	}
	return changes
}

func applyOptional(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func cloneString(value string) *string {
	v := value
	return &v
}
