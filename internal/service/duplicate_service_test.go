package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vertragio/clm-api/internal/dto"
	"github.com/vertragio/clm-api/internal/models"
	"github.com/vertragio/clm-api/pkg/config"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
)

type mockDuplicateStore struct {
	pairs      map[string]*models.ContractDuplicate // keyed by canonical "a|b"
	byID       map[string]*models.ContractDuplicate
	reassigned [][2]string
	resolveErr error
}

func pairKey(a, b string) string {
	lo, hi := models.CanonicalPair(a, b)
	return lo + "|" + hi
}

func (m *mockDuplicateStore) InsertIfAbsent(ctx context.Context, dup *models.ContractDuplicate) (bool, error) {
	if m.pairs == nil {
		m.pairs = make(map[string]*models.ContractDuplicate)
		m.byID = make(map[string]*models.ContractDuplicate)
	}
	dup.Contract1ID, dup.Contract2ID = models.CanonicalPair(dup.Contract1ID, dup.Contract2ID)
	key := pairKey(dup.Contract1ID, dup.Contract2ID)
	if _, ok := m.pairs[key]; ok {
		return false, nil
	}
	if dup.ID == "" {
		dup.ID = "dup-" + key
	}
	cp := *dup
	m.pairs[key] = &cp
	m.byID[dup.ID] = &cp
	return true, nil
}

func (m *mockDuplicateStore) GetByID(ctx context.Context, id string) (*models.ContractDuplicate, error) {
	if dup, ok := m.byID[id]; ok {
		cp := *dup
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDuplicateStore) GetByPair(ctx context.Context, a, b string) (*models.ContractDuplicate, error) {
	if dup, ok := m.pairs[pairKey(a, b)]; ok {
		cp := *dup
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDuplicateStore) List(ctx context.Context, filter models.DuplicateFilter) ([]models.ContractDuplicate, error) {
	var dups []models.ContractDuplicate
	for _, dup := range m.pairs {
		dups = append(dups, *dup)
	}
	return dups, nil
}

func (m *mockDuplicateStore) Resolve(ctx context.Context, id string, status models.DuplicateStatus, actor string, resolvedAt time.Time) error {
	if m.resolveErr != nil {
		return m.resolveErr
	}
	if dup, ok := m.byID[id]; ok {
		dup.Status = status
	}
	return nil
}

func (m *mockDuplicateStore) ReassignHistory(ctx context.Context, fromContractID, toContractID string) error {
	m.reassigned = append(m.reassigned, [2]string{fromContractID, toContractID})
	return nil
}

type mockContractScanner struct {
	contracts []models.Contract
}

func (m *mockContractScanner) GetByID(ctx context.Context, id string) (*models.Contract, error) {
	for i := range m.contracts {
		if m.contracts[i].ID == id {
			cp := m.contracts[i]
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockContractScanner) List(ctx context.Context, filter models.ContractFilter) ([]models.Contract, error) {
	if filter.Offset >= len(m.contracts) {
		return nil, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(m.contracts) {
		end = len(m.contracts)
	}
	return m.contracts[filter.Offset:end], nil
}

type mockMergeArchiver struct {
	archived []string
	err      error
}

func (m *mockMergeArchiver) ArchiveForMerge(ctx context.Context, contractID, actor string) error {
	if m.err != nil {
		return m.err
	}
	m.archived = append(m.archived, contractID)
	return nil
}

func newDuplicateFixture(contracts ...models.Contract) (*DuplicateService, *mockDuplicateStore, *mockMergeArchiver) {
	store := &mockDuplicateStore{}
	archiver := &mockMergeArchiver{}
	svc := NewDuplicateService(store, &mockContractScanner{contracts: contracts}, archiver, config.DuplicatesConfig{}, zap.NewNop())
	return svc, store, archiver
}

func TestScoreIdenticalFields(t *testing.T) {
	svc, _, _ := newDuplicateFixture()

	a := &models.Contract{ID: "c1", Titel: "Wartung Pumpe Nord", GeraetNr: "G-0042", Standort: "Halle 3"}
	b := &models.Contract{ID: "c2", Titel: "Wartung Pumpe Nord", GeraetNr: "G-0042", Standort: "Halle 3"}
	score, reasons := svc.Score(a, b)
	assert.InDelta(t, 1.0, score, 0.001)
	assert.Len(t, reasons, 3)
}

func TestScoreUnrelatedContracts(t *testing.T) {
	svc, _, _ := newDuplicateFixture()

	a := &models.Contract{ID: "c1", Titel: "Wartung Pumpe", GeraetNr: "G-0001", Standort: "Halle 1"}
	b := &models.Contract{ID: "c2", Titel: "Elektrik Revision", GeraetNr: "G-9999", Standort: "Lager Süd"}
	score, _ := svc.Score(a, b)
	assert.Less(t, score, 0.8)
}

func TestScoreCaseAndWhitespaceInsensitive(t *testing.T) {
	svc, _, _ := newDuplicateFixture()

	a := &models.Contract{ID: "c1", Titel: "Wartung  Pumpe", GeraetNr: "g-0042"}
	b := &models.Contract{ID: "c2", Titel: "wartung pumpe", GeraetNr: "G-0042"}
	score, _ := svc.Score(a, b)
	assert.InDelta(t, 0.8, score, 0.001, "full title weight plus equipment weight")
}

func TestScoreAndFlagBelowThreshold(t *testing.T) {
	svc, store, _ := newDuplicateFixture()

	a := &models.Contract{ID: "c1", Titel: "Wartung"}
	b := &models.Contract{ID: "c2", Titel: "Revision"}
	dup, inserted, err := svc.ScoreAndFlag(context.Background(), a, b)
	require.NoError(t, err)
	assert.Nil(t, dup)
	assert.False(t, inserted)
	assert.Empty(t, store.pairs)
}

func TestScoreAndFlagSelfComparison(t *testing.T) {
	svc, _, _ := newDuplicateFixture()

	a := &models.Contract{ID: "c1"}
	_, _, err := svc.ScoreAndFlag(context.Background(), a, a)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScanFlagsPairsOnce(t *testing.T) {
	twin := models.Contract{Titel: "Wartung Pumpe Nord", GeraetNr: "G-0042", Standort: "Halle 3"}
	first, second := twin, twin
	first.ID = "c1"
	second.ID = "c2"
	other := models.Contract{ID: "c3", Titel: "Elektrik Revision", GeraetNr: "G-9999", Standort: "Lager"}

	svc, store, _ := newDuplicateFixture(first, second, other)

	flagged, err := svc.Scan(context.Background(), models.GlobalScope())
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)
	assert.Len(t, store.pairs, 1)

	// Second pass finds the same pair already flagged.
	flagged, err = svc.Scan(context.Background(), models.GlobalScope())
	require.NoError(t, err)
	assert.Zero(t, flagged)
	assert.Len(t, store.pairs, 1)
}

func TestResolveDismiss(t *testing.T) {
	svc, store, archiver := newDuplicateFixture()
	store.pairs = map[string]*models.ContractDuplicate{}
	store.byID = map[string]*models.ContractDuplicate{
		"d1": {ID: "d1", Contract1ID: "c1", Contract2ID: "c2", Status: models.DuplicateStatusPending},
	}

	dup, err := svc.Resolve(context.Background(), "d1", dto.ResolveDuplicateRequest{Decision: "dismiss"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.DuplicateStatusDismissed, dup.Status)
	assert.Empty(t, archiver.archived, "dismiss must not touch contracts")
}

func TestResolveMerge(t *testing.T) {
	canonical := models.Contract{ID: "c1", Titel: "Wartung"}
	loser := models.Contract{ID: "c2", Titel: "Wartung"}
	svc, store, archiver := newDuplicateFixture(canonical, loser)
	store.pairs = map[string]*models.ContractDuplicate{}
	store.byID = map[string]*models.ContractDuplicate{
		"d1": {ID: "d1", Contract1ID: "c1", Contract2ID: "c2", Status: models.DuplicateStatusPending},
	}

	dup, err := svc.Resolve(context.Background(), "d1", dto.ResolveDuplicateRequest{Decision: "merge", CanonicalID: "c1"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.DuplicateStatusMerged, dup.Status)
	require.Len(t, store.reassigned, 1)
	assert.Equal(t, [2]string{"c2", "c1"}, store.reassigned[0], "history moves from loser to canonical")
	assert.Equal(t, []string{"c2"}, archiver.archived, "loser goes through the archival path")
}

func TestResolveMergeCanonicalMustBeInPair(t *testing.T) {
	svc, store, _ := newDuplicateFixture()
	store.byID = map[string]*models.ContractDuplicate{
		"d1": {ID: "d1", Contract1ID: "c1", Contract2ID: "c2", Status: models.DuplicateStatusPending},
	}

	_, err := svc.Resolve(context.Background(), "d1", dto.ResolveDuplicateRequest{Decision: "merge", CanonicalID: "c9"}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestResolveAlreadyResolved(t *testing.T) {
	svc, store, _ := newDuplicateFixture()
	store.byID = map[string]*models.ContractDuplicate{
		"d1": {ID: "d1", Contract1ID: "c1", Contract2ID: "c2", Status: models.DuplicateStatusDismissed},
	}

	_, err := svc.Resolve(context.Background(), "d1", dto.ResolveDuplicateRequest{Decision: "merge", CanonicalID: "c1"}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestBigramSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, bigramSimilarity("Wartung", "wartung"))
	assert.Zero(t, bigramSimilarity("", "Wartung"))
	sim := bigramSimilarity("Wartung Pumpe Nord", "Wartung Pumpe Süd")
	assert.Greater(t, sim, 0.5)
	assert.Less(t, sim, 1.0)
}

func TestLocationSimilarityTokenOverlap(t *testing.T) {
	assert.Equal(t, 1.0, locationSimilarity("Halle 3", "halle 3"))
	sim := locationSimilarity("Berlin, Halle 3", "Halle 3")
	assert.Greater(t, sim, 0.0)
	assert.Less(t, sim, 1.0)
	assert.Zero(t, locationSimilarity("", "Halle 3"))
}
