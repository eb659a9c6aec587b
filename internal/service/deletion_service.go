package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/vertragio/clm-api/internal/dto"
	"github.com/vertragio/clm-api/internal/models"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
)

type deletionStore interface {
	Create(ctx context.Context, request *models.DeletionRequest) error
	GetByID(ctx context.Context, id string) (*models.DeletionRequest, error)
	Claim(ctx context.Context, id string) error
	Complete(ctx context.Context, id, processedBy string, processedAt time.Time) error
	Reject(ctx context.Context, id, note, processedBy string, processedAt time.Time) error
	List(ctx context.Context, filter models.DeletionFilter) ([]models.DeletionRequest, error)
	NextPending(ctx context.Context) (*models.DeletionRequest, error)
}

type deletionContractStore interface {
	GetByID(ctx context.Context, id string) (*models.Contract, error)
	List(ctx context.Context, filter models.ContractFilter) ([]models.Contract, error)
	ReassignUserRefs(ctx context.Context, userID string) error
	AnonymizeHistoryByUser(ctx context.Context, userID string) error
}

type deletionArchiveStore interface {
	DeleteByOriginal(ctx context.Context, originalID string) error
	AnonymizeByUser(ctx context.Context, userID string) error
}

type deletionWorkflowStore interface {
	AnonymizeActor(ctx context.Context, userID string) error
}

type contractRemover interface {
	ArchiveForDeletion(ctx context.Context, contractID, actor string) error
}

// DeletionService executes GDPR-style deletion requests. A request is
// claimed (pending -> processing) before any work so two workers never
// double-process; each individual step is delete-if-exists so an
// operator re-run of a stuck request is safe.
type DeletionService struct {
	repo      deletionStore
	contracts deletionContractStore
	archives  deletionArchiveStore
	workflow  deletionWorkflowStore
	archiver  contractRemover
	logger    *zap.Logger
}

// NewDeletionService constructs the service.
func NewDeletionService(repo deletionStore, contracts deletionContractStore, archives deletionArchiveStore, workflow deletionWorkflowStore, archiver contractRemover, logger *zap.Logger) *DeletionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeletionService{
		repo:      repo,
		contracts: contracts,
		archives:  archives,
		workflow:  workflow,
		archiver:  archiver,
		logger:    logger,
	}
}

// Submit records a new pending deletion request.
func (s *DeletionService) Submit(ctx context.Context, req dto.CreateDeletionRequest, scope models.Scope, requestedBy string) (*models.DeletionRequest, error) {
	requestType := models.DeletionRequestType(strings.ToLower(strings.TrimSpace(req.RequestType)))
	if !requestType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown request type %q", req.RequestType))
	}
	targetID := strings.TrimSpace(req.TargetID)
	if targetID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target_id is required")
	}

	request := &models.DeletionRequest{
		TenantID:    scope.Ref(),
		RequestedBy: requestedBy,
		RequestType: requestType,
		TargetID:    targetID,
		Status:      models.DeletionStatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create deletion request")
	}
	return request, nil
}

// Get returns one deletion request.
func (s *DeletionService) Get(ctx context.Context, id string) (*models.DeletionRequest, error) {
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deletion request")
	}
	return request, nil
}

// List returns deletion requests matching the filter.
func (s *DeletionService) List(ctx context.Context, filter models.DeletionFilter) ([]models.DeletionRequest, error) {
	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deletion requests")
	}
	return requests, nil
}

// Process claims and executes one request. A failure partway leaves the
// request in processing (never back to pending) so an operator sees it is
// stuck rather than having it silently retried from scratch. A blocked
// dependency rejects the request instead.
func (s *DeletionService) Process(ctx context.Context, id, processedBy string) (*models.DeletionRequest, error) {
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch request.Status {
	case models.DeletionStatusPending:
		if err := s.repo.Claim(ctx, request.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrRetryableConflict, "deletion request claimed by another worker")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim deletion request")
		}
	case models.DeletionStatusProcessing:
		// Stuck request being re-run by an operator; every step below
		// is delete-if-exists, so repeating them is safe.
	default:
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("deletion request is %s", request.Status))
	}
	request.Status = models.DeletionStatusProcessing

	if err := s.executeSteps(ctx, request, processedBy); err != nil {
		if isDependencyViolation(err) {
			return s.rejectBlocked(ctx, request, processedBy, err)
		}
		s.logger.Error("deletion request stuck in processing",
			zap.String("request_id", request.ID),
			zap.String("request_type", string(request.RequestType)),
			zap.Error(err))
		return request, err
	}

	now := time.Now().UTC()
	if err := s.repo.Complete(ctx, request.ID, processedBy, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "deletion request resolved concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete deletion request")
	}
	request.Status = models.DeletionStatusCompleted
	request.ProcessedAt = &now
	request.ProcessedBy = &processedBy
	return request, nil
}

// ProcessNext pops and processes the oldest pending request. Returns
// false when the queue is empty. Polled by the deletion worker.
func (s *DeletionService) ProcessNext(ctx context.Context, processedBy string) (bool, error) {
	request, err := s.repo.NextPending(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to poll deletion requests")
	}
	if _, err := s.Process(ctx, request.ID, processedBy); err != nil {
		// A lost claim race just means another worker has it.
		if appErrors.IsRetryable(err) {
			return false, nil
		}
		return true, err
	}
	return true, nil
}

func (s *DeletionService) executeSteps(ctx context.Context, request *models.DeletionRequest, actor string) error {
	switch request.RequestType {
	case models.DeletionTypeContract:
		return s.deleteContract(ctx, request.TargetID, actor)
	case models.DeletionTypeUserData:
		return s.deleteUserData(ctx, request.TargetID)
	case models.DeletionTypeAllData:
		if err := s.deleteUserContracts(ctx, request, actor); err != nil {
			return err
		}
		return s.deleteUserData(ctx, request.TargetID)
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown request type %q", request.RequestType))
	}
}

// deleteContract removes the live contract through the snapshot-then-
// remove path, then purges every archive entry so no copy survives.
func (s *DeletionService) deleteContract(ctx context.Context, contractID, actor string) error {
	err := s.archiver.ArchiveForDeletion(ctx, contractID, actor)
	if err != nil && appErrors.FromError(err).Code != appErrors.ErrNotFound.Code {
		return err
	}
	return s.archives.DeleteByOriginal(ctx, contractID)
}

// deleteUserData anonymizes a user's traces across live and archived
// data: history authorship, transition and approval actors, assignment
// and approver references, and archive authorship.
func (s *DeletionService) deleteUserData(ctx context.Context, userID string) error {
	if err := s.contracts.AnonymizeHistoryByUser(ctx, userID); err != nil {
		return err
	}
	if err := s.workflow.AnonymizeActor(ctx, userID); err != nil {
		return err
	}
	if err := s.contracts.ReassignUserRefs(ctx, userID); err != nil {
		return err
	}
	return s.archives.AnonymizeByUser(ctx, userID)
}

// deleteUserContracts removes every live contract assigned to the user
// within the request's tenant scope.
func (s *DeletionService) deleteUserContracts(ctx context.Context, request *models.DeletionRequest, actor string) error {
	scope := models.GlobalScope()
	if request.TenantID != nil {
		scope = models.ForTenant(*request.TenantID)
	}
	for {
		batch, err := s.contracts.List(ctx, models.ContractFilter{
			Scope:      scope,
			AssignedTo: request.TargetID,
			Limit:      200,
		})
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		for i := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.deleteContract(ctx, batch[i].ID, actor); err != nil {
				return err
			}
		}
	}
}

func (s *DeletionService) rejectBlocked(ctx context.Context, request *models.DeletionRequest, processedBy string, cause error) (*models.DeletionRequest, error) {
	now := time.Now().UTC()
	note := fmt.Sprintf("dependency order not satisfiable: %v", cause)
	if err := s.repo.Reject(ctx, request.ID, note, processedBy, now); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject deletion request")
	}
	request.Status = models.DeletionStatusRejected
	request.Note = &note
	request.ProcessedAt = &now
	request.ProcessedBy = &processedBy
	return request, appErrors.Clone(appErrors.ErrDeletionBlocked, note)
}

// isDependencyViolation reports whether the failure is a foreign key
// constraint the delete order cannot satisfy.
func isDependencyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
