package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vertragio/clm-api/internal/dto"
	"github.com/vertragio/clm-api/internal/models"
	"github.com/vertragio/clm-api/pkg/config"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
)

type duplicateStore interface {
	InsertIfAbsent(ctx context.Context, dup *models.ContractDuplicate) (bool, error)
	GetByID(ctx context.Context, id string) (*models.ContractDuplicate, error)
	GetByPair(ctx context.Context, a, b string) (*models.ContractDuplicate, error)
	List(ctx context.Context, filter models.DuplicateFilter) ([]models.ContractDuplicate, error)
	Resolve(ctx context.Context, id string, status models.DuplicateStatus, actor string, resolvedAt time.Time) error
	ReassignHistory(ctx context.Context, fromContractID, toContractID string) error
}

type contractScanner interface {
	GetByID(ctx context.Context, id string) (*models.Contract, error)
	List(ctx context.Context, filter models.ContractFilter) ([]models.Contract, error)
}

type mergeArchiver interface {
	ArchiveForMerge(ctx context.Context, contractID, actor string) error
}

// DuplicateService scores contract pairs for near-duplication and runs
// the merge/dismiss resolution workflow. Comparator weights and the
// flagging threshold come from configuration, not per-call arguments.
type DuplicateService struct {
	repo      duplicateStore
	contracts contractScanner
	archiver  mergeArchiver
	cfg       config.DuplicatesConfig
	logger    *zap.Logger
}

// NewDuplicateService constructs the service.
func NewDuplicateService(repo duplicateStore, contracts contractScanner, archiver mergeArchiver, cfg config.DuplicatesConfig, logger *zap.Logger) *DuplicateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TitleWeight == 0 && cfg.EquipmentWeight == 0 && cfg.LocationWeight == 0 {
		cfg.TitleWeight, cfg.EquipmentWeight, cfg.LocationWeight = 0.5, 0.3, 0.2
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = 0.8
	}
	return &DuplicateService{repo: repo, contracts: contracts, archiver: archiver, cfg: cfg, logger: logger}
}

// Score computes the weighted similarity of two contracts and the
// human-readable reasons for each comparator that fired.
func (s *DuplicateService) Score(a, b *models.Contract) (float64, []string) {
	var score float64
	var reasons []string

	if sim := bigramSimilarity(a.Titel, b.Titel); sim > 0 {
		score += s.cfg.TitleWeight * sim
		if sim >= 0.8 {
			reasons = append(reasons, fmt.Sprintf("titles match at %.0f%%", sim*100))
		}
	}
	if equalNormalized(a.GeraetNr, b.GeraetNr) {
		score += s.cfg.EquipmentWeight
		reasons = append(reasons, "identical equipment number")
	}
	if sim := locationSimilarity(a.Standort, b.Standort); sim > 0 {
		score += s.cfg.LocationWeight * sim
		if sim >= 0.8 {
			reasons = append(reasons, "matching location")
		}
	}
	if score > 1 {
		score = 1
	}
	return score, reasons
}

// ScoreAndFlag evaluates one pair and flags it when the score reaches
// the threshold. Re-running on an already-flagged pair inserts nothing.
func (s *DuplicateService) ScoreAndFlag(ctx context.Context, a, b *models.Contract) (*models.ContractDuplicate, bool, error) {
	if a.ID == b.ID {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "cannot compare a contract with itself")
	}
	score, reasons := s.Score(a, b)
	if score < s.cfg.Threshold {
		return nil, false, nil
	}

	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode duplicate reasons")
	}
	dup := &models.ContractDuplicate{
		Contract1ID:     a.ID,
		Contract2ID:     b.ID,
		SimilarityScore: score,
		Reasons:         reasonsJSON,
		Status:          models.DuplicateStatusPending,
	}
	inserted, err := s.repo.InsertIfAbsent(ctx, dup)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag duplicate pair")
	}
	if !inserted {
		existing, err := s.repo.GetByPair(ctx, a.ID, b.ID)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing duplicate pair")
		}
		return existing, false, nil
	}
	return dup, true, nil
}

// Scan compares all contracts within a scope pairwise and flags every
// pair at or above the threshold. Returns the number of newly flagged
// pairs. Existing flags are left untouched.
func (s *DuplicateService) Scan(ctx context.Context, scope models.Scope) (int, error) {
	var contracts []models.Contract
	offset := 0
	for {
		page, err := s.contracts.List(ctx, models.ContractFilter{Scope: scope, Limit: 200, Offset: offset})
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contracts for duplicate scan")
		}
		contracts = append(contracts, page...)
		if len(page) < 200 {
			break
		}
		offset += len(page)
	}

	flagged := 0
	for i := range contracts {
		if err := ctx.Err(); err != nil {
			return flagged, err
		}
		for j := i + 1; j < len(contracts); j++ {
			_, inserted, err := s.ScoreAndFlag(ctx, &contracts[i], &contracts[j])
			if err != nil {
				s.logger.Warn("duplicate scoring failed for pair",
					zap.String("contract1_id", contracts[i].ID),
					zap.String("contract2_id", contracts[j].ID),
					zap.Error(err))
				continue
			}
			if inserted {
				flagged++
			}
		}
	}
	return flagged, nil
}

// List returns flagged pairs matching the filter.
func (s *DuplicateService) List(ctx context.Context, filter models.DuplicateFilter) ([]models.ContractDuplicate, error) {
	dups, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list duplicate pairs")
	}
	return dups, nil
}

// Get returns one flagged pair.
func (s *DuplicateService) Get(ctx context.Context, id string) (*models.ContractDuplicate, error) {
	dup, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load duplicate pair")
	}
	return dup, nil
}

// Resolve applies a merge or dismiss decision to a pending pair. A merge
// moves the losing contract's history onto the canonical one and removes
// the loser through the archival path, so the merge stays auditable.
func (s *DuplicateService) Resolve(ctx context.Context, id string, req dto.ResolveDuplicateRequest, actor string) (*models.ContractDuplicate, error) {
	dup, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if dup.Status != models.DuplicateStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "duplicate pair already resolved")
	}

	decision := strings.ToLower(strings.TrimSpace(req.Decision))
	now := time.Now().UTC()

	switch decision {
	case "dismiss":
		if err := s.repo.Resolve(ctx, dup.ID, models.DuplicateStatusDismissed, actor, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "duplicate pair resolved concurrently")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to dismiss duplicate pair")
		}
		dup.Status = models.DuplicateStatusDismissed
	case "merge":
		canonical := strings.TrimSpace(req.CanonicalID)
		if canonical != dup.Contract1ID && canonical != dup.Contract2ID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "canonical_id must be one of the paired contracts")
		}
		loser := dup.Contract1ID
		if canonical == dup.Contract1ID {
			loser = dup.Contract2ID
		}
		if _, err := s.contracts.GetByID(ctx, canonical); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "canonical contract no longer exists")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load canonical contract")
		}

		if err := s.repo.ReassignHistory(ctx, loser, canonical); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move history to canonical contract")
		}
		if err := s.archiver.ArchiveForMerge(ctx, loser, actor); err != nil {
			return nil, err
		}
		if err := s.repo.Resolve(ctx, dup.ID, models.DuplicateStatusMerged, actor, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "duplicate pair resolved concurrently")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark duplicate pair merged")
		}
		dup.Status = models.DuplicateStatusMerged
		s.logger.Info("duplicate pair merged",
			zap.String("canonical_id", canonical),
			zap.String("merged_id", loser))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("decision must be merge or dismiss, got %q", req.Decision))
	}

	dup.ResolvedBy = &actor
	dup.ResolvedAt = &now
	return dup, nil
}

// bigramSimilarity is the Sørensen–Dice coefficient over character
// bigrams of the normalized inputs.
func bigramSimilarity(a, b string) float64 {
	a, b = normalizeText(a), normalizeText(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	bigramsA := bigrams(a)
	bigramsB := bigrams(b)
	if len(bigramsA) == 0 || len(bigramsB) == 0 {
		return 0
	}
	overlap := 0
	for gram, count := range bigramsA {
		if other, ok := bigramsB[gram]; ok {
			if other < count {
				count = other
			}
			overlap += count
		}
	}
	totalA, totalB := 0, 0
	for _, count := range bigramsA {
		totalA += count
	}
	for _, count := range bigramsB {
		totalB += count
	}
	return 2 * float64(overlap) / float64(totalA+totalB)
}

func bigrams(s string) map[string]int {
	runes := []rune(s)
	grams := make(map[string]int)
	for i := 0; i+1 < len(runes); i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}

// locationSimilarity is exact match on the normalized value, falling
// back to token overlap for multi-part locations like "Berlin, Halle 3".
func locationSimilarity(a, b string) float64 {
	a, b = normalizeText(a), normalizeText(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	set := make(map[string]bool, len(tokensA))
	for _, token := range tokensA {
		set[token] = true
	}
	shared := 0
	for _, token := range tokensB {
		if set[token] {
			shared++
		}
	}
	union := len(set)
	for _, token := range tokensB {
		if !set[token] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func equalNormalized(a, b string) bool {
	a, b = normalizeText(a), normalizeText(b)
	return a != "" && a == b
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
