package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vertragio/clm-api/internal/models"
	"github.com/vertragio/clm-api/internal/repository"
	"github.com/vertragio/clm-api/pkg/config"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
)

type archiveStore interface {
	ArchiveContract(ctx context.Context, params repository.ArchiveContractParams) error
	GetByID(ctx context.Context, id string) (*models.ContractArchive, error)
	ListByOriginal(ctx context.Context, originalID string) ([]models.ContractArchive, error)
	List(ctx context.Context, filter models.ArchiveFilter) ([]models.ContractArchive, error)
}

type archiveContractSource interface {
	GetByID(ctx context.Context, id string) (*models.Contract, error)
	History(ctx context.Context, contractID string) ([]models.ContractHistory, error)
	ListAgedCompleted(ctx context.Context, scope models.Scope, cutoff time.Time, limit int) ([]models.Contract, error)
}

// ArchiveService implements the retention pipeline: snapshot a contract
// and its history, insert the write-once archive row, and remove the
// live row, all within one transaction per contract.
type ArchiveService struct {
	repo      archiveStore
	contracts archiveContractSource
	cfg       config.RetentionConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewArchiveService constructs the service.
func NewArchiveService(repo archiveStore, contracts archiveContractSource, cfg config.RetentionConfig, logger *zap.Logger) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Days <= 0 {
		cfg.Days = 365
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RetentionYears <= 0 {
		cfg.RetentionYears = 7
	}
	return &ArchiveService{repo: repo, contracts: contracts, cfg: cfg, logger: logger, now: time.Now}
}

// ArchiveAged sweeps completed contracts whose last modification is
// older than the retention window and archives each one. Every contract
// is its own transaction: a failure or a cancellation mid-run leaves the
// remainder live and still matching the predicate, so the next run picks
// them up.
func (s *ArchiveService) ArchiveAged(ctx context.Context, scope models.Scope, retentionDays int) (*models.ArchiveReport, error) {
	if retentionDays <= 0 {
		retentionDays = s.cfg.Days
	}
	report := &models.ArchiveReport{StartedAt: s.now().UTC()}
	cutoff := report.StartedAt.AddDate(0, 0, -retentionDays)

	for {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			break
		}
		batch, err := s.contracts.ListAgedCompleted(ctx, scope, cutoff, s.cfg.BatchSize)
		if err != nil {
			report.FinishedAt = s.now().UTC()
			return report, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to select archival candidates")
		}
		if len(batch) == 0 {
			break
		}
		report.Candidates += len(batch)

		progressed := false
		for i := range batch {
			if err := ctx.Err(); err != nil {
				report.Cancelled = true
				break
			}
			contract := &batch[i]
			if err := s.archiveOne(ctx, contract, models.ArchiveReasonRetention, "", models.ContractStatusFertig); err != nil {
				report.Failed++
				report.FailedIDs = append(report.FailedIDs, contract.ID)
				s.logger.Error("archival failed for contract, skipping",
					zap.String("contract_id", contract.ID), zap.Error(err))
				continue
			}
			report.Archived++
			progressed = true
		}
		if report.Cancelled {
			break
		}
		// Every candidate in the batch failed; selecting again would
		// return the same rows forever.
		if !progressed {
			break
		}
	}

	report.FinishedAt = s.now().UTC()
	s.logger.Info("retention sweep finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("archived", report.Archived),
		zap.Int("failed", report.Failed),
		zap.Bool("cancelled", report.Cancelled))
	return report, nil
}

// ArchiveManual archives a single contract on operator request,
// regardless of status or age.
func (s *ArchiveService) ArchiveManual(ctx context.Context, contractID, actor string) (*models.ContractArchive, error) {
	contract, err := s.loadContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := s.archiveOne(ctx, contract, models.ArchiveReasonManual, actor, ""); err != nil {
		return nil, err
	}
	return s.latestArchive(ctx, contractID)
}

// ArchiveForDeletion snapshots and removes a contract as part of a
// deletion request.
func (s *ArchiveService) ArchiveForDeletion(ctx context.Context, contractID, actor string) error {
	contract, err := s.loadContract(ctx, contractID)
	if err != nil {
		return err
	}
	return s.archiveOne(ctx, contract, models.ArchiveReasonDataRequest, actor, "")
}

// ArchiveForMerge removes the losing contract of a duplicate merge
// through the same snapshot-then-remove path.
func (s *ArchiveService) ArchiveForMerge(ctx context.Context, contractID, actor string) error {
	contract, err := s.loadContract(ctx, contractID)
	if err != nil {
		return err
	}
	return s.archiveOne(ctx, contract, models.ArchiveReasonMerge, actor, "")
}

// Get returns one archive entry.
func (s *ArchiveService) Get(ctx context.Context, id string) (*models.ContractArchive, error) {
	archive, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archive entry")
	}
	return archive, nil
}

// List returns archive entries matching the filter.
func (s *ArchiveService) List(ctx context.Context, filter models.ArchiveFilter) ([]models.ContractArchive, error) {
	archives, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list archive entries")
	}
	return archives, nil
}

// archiveOne builds the immutable snapshots and hands them to the
// repository as one snapshot-then-remove transaction.
func (s *ArchiveService) archiveOne(ctx context.Context, contract *models.Contract, reason, actor string, expectedStatus models.ContractStatus) error {
	history, err := s.contracts.History(ctx, contract.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrArchiveStepFailed.Code, appErrors.ErrArchiveStepFailed.Status, "failed to snapshot contract history")
	}
	contractData, err := json.Marshal(contract)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrArchiveStepFailed.Code, appErrors.ErrArchiveStepFailed.Status, "failed to encode contract snapshot")
	}
	historyData, err := json.Marshal(history)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrArchiveStepFailed.Code, appErrors.ErrArchiveStepFailed.Status, "failed to encode history snapshot")
	}

	archivedAt := s.now().UTC()
	archive := &models.ContractArchive{
		OriginalID:     contract.ID,
		TenantID:       contract.TenantID,
		ContractData:   contractData,
		HistoryData:    historyData,
		ArchivedBy:     optionalString(actor),
		ArchivedAt:     archivedAt,
		RetentionUntil: archivedAt.AddDate(s.cfg.RetentionYears, 0, 0),
		Reason:         reason,
	}

	err = s.repo.ArchiveContract(ctx, repository.ArchiveContractParams{
		Archive:           archive,
		ExpectedStatus:    expectedStatus,
		ExpectedUpdatedAt: contract.UpdatedAt,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrArchiveStepFailed, "contract changed or vanished before removal")
		}
		return appErrors.Wrap(err, appErrors.ErrArchiveStepFailed.Code, appErrors.ErrArchiveStepFailed.Status, "failed to archive contract")
	}
	return nil
}

func (s *ArchiveService) loadContract(ctx context.Context, contractID string) (*models.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	return contract, nil
}

func (s *ArchiveService) latestArchive(ctx context.Context, originalID string) (*models.ContractArchive, error) {
	archives, err := s.repo.ListByOriginal(ctx, originalID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archive entry")
	}
	if len(archives) == 0 {
		return nil, appErrors.ErrNotFound
	}
	return &archives[0], nil
}
