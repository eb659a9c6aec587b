package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vertragio/clm-api/internal/models"
	"github.com/vertragio/clm-api/internal/repository"
	"github.com/vertragio/clm-api/pkg/config"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
)

type mockArchiveStore struct {
	archives     map[string]*models.ContractArchive
	failFor      map[string]error
	archiveLog   []repository.ArchiveContractParams
	removed      *mockArchiveContracts
	beforeRemove func(params repository.ArchiveContractParams)
}

func (m *mockArchiveStore) ArchiveContract(ctx context.Context, params repository.ArchiveContractParams) error {
	if err, ok := m.failFor[params.Archive.OriginalID]; ok {
		return err
	}
	if m.beforeRemove != nil {
		m.beforeRemove(params)
	}
	// The conditional delete rolls back when the live row no longer
	// matches the updated_at read at snapshot time.
	if m.removed != nil {
		live, ok := m.removed.contracts[params.Archive.OriginalID]
		if !ok || !live.UpdatedAt.Equal(params.ExpectedUpdatedAt) {
			return sql.ErrNoRows
		}
	}
	if m.archives == nil {
		m.archives = make(map[string]*models.ContractArchive)
	}
	archive := params.Archive
	if archive.ID == "" {
		archive.ID = "arch-" + archive.OriginalID
	}
	cp := *archive
	m.archives[archive.ID] = &cp
	m.archiveLog = append(m.archiveLog, params)
	if m.removed != nil {
		m.removed.remove(archive.OriginalID)
	}
	return nil
}

func (m *mockArchiveStore) GetByID(ctx context.Context, id string) (*models.ContractArchive, error) {
	if archive, ok := m.archives[id]; ok {
		cp := *archive
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockArchiveStore) ListByOriginal(ctx context.Context, originalID string) ([]models.ContractArchive, error) {
	var archives []models.ContractArchive
	for _, archive := range m.archives {
		if archive.OriginalID == originalID {
			archives = append(archives, *archive)
		}
	}
	return archives, nil
}

func (m *mockArchiveStore) List(ctx context.Context, filter models.ArchiveFilter) ([]models.ContractArchive, error) {
	var archives []models.ContractArchive
	for _, archive := range m.archives {
		archives = append(archives, *archive)
	}
	return archives, nil
}

type mockArchiveContracts struct {
	contracts map[string]*models.Contract
	history   map[string][]models.ContractHistory
}

func (m *mockArchiveContracts) remove(id string) {
	delete(m.contracts, id)
}

func (m *mockArchiveContracts) GetByID(ctx context.Context, id string) (*models.Contract, error) {
	if contract, ok := m.contracts[id]; ok {
		cp := *contract
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockArchiveContracts) History(ctx context.Context, contractID string) ([]models.ContractHistory, error) {
	return m.history[contractID], nil
}

func (m *mockArchiveContracts) ListAgedCompleted(ctx context.Context, scope models.Scope, cutoff time.Time, limit int) ([]models.Contract, error) {
	var aged []models.Contract
	for _, contract := range m.contracts {
		if contract.Status == models.ContractStatusFertig && contract.UpdatedAt.Before(cutoff) {
			aged = append(aged, *contract)
			if len(aged) >= limit {
				break
			}
		}
	}
	return aged, nil
}

func newArchiveFixture(contracts ...*models.Contract) (*ArchiveService, *mockArchiveStore, *mockArchiveContracts) {
	source := &mockArchiveContracts{
		contracts: make(map[string]*models.Contract),
		history:   make(map[string][]models.ContractHistory),
	}
	for _, contract := range contracts {
		source.contracts[contract.ID] = contract
	}
	store := &mockArchiveStore{removed: source}
	svc := NewArchiveService(store, source, config.RetentionConfig{Days: 365, BatchSize: 100, RetentionYears: 7}, zap.NewNop())
	return svc, store, source
}

func agedContract(id string) *models.Contract {
	return &models.Contract{
		ID:        id,
		Auftrag:   "A-" + id,
		Titel:     "Alt " + id,
		Status:    models.ContractStatusFertig,
		UpdatedAt: time.Now().AddDate(-2, 0, 0),
	}
}

func TestArchiveAgedSweep(t *testing.T) {
	svc, store, source := newArchiveFixture(
		agedContract("c1"),
		agedContract("c2"),
		&models.Contract{ID: "c3", Status: models.ContractStatusFertig, UpdatedAt: time.Now()},
		&models.Contract{ID: "c4", Status: models.ContractStatusOffen, UpdatedAt: time.Now().AddDate(-2, 0, 0)},
	)

	report, err := svc.ArchiveAged(context.Background(), models.GlobalScope(), 365)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Archived)
	assert.Zero(t, report.Failed)
	assert.False(t, report.Cancelled)

	assert.NotContains(t, source.contracts, "c1")
	assert.NotContains(t, source.contracts, "c2")
	assert.Contains(t, source.contracts, "c3", "recently touched contracts stay")
	assert.Contains(t, source.contracts, "c4", "open contracts stay")
	assert.Len(t, store.archives, 2)
}

func TestArchiveAgedPartialFailure(t *testing.T) {
	svc, store, _ := newArchiveFixture(agedContract("c1"), agedContract("c2"))
	store.failFor = map[string]error{"c1": sql.ErrNoRows}

	report, err := svc.ArchiveAged(context.Background(), models.GlobalScope(), 365)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Archived)
	assert.GreaterOrEqual(t, report.Failed, 1)
	assert.Contains(t, report.FailedIDs, "c1")
}

func TestArchiveAgedStopsWhenWholeBatchFails(t *testing.T) {
	svc, store, _ := newArchiveFixture(agedContract("c1"))
	store.failFor = map[string]error{"c1": sql.ErrNoRows}

	report, err := svc.ArchiveAged(context.Background(), models.GlobalScope(), 365)
	require.NoError(t, err)
	assert.Zero(t, report.Archived)
	assert.Equal(t, 1, report.Failed)
}

func TestArchiveAgedCancellation(t *testing.T) {
	svc, _, _ := newArchiveFixture(agedContract("c1"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.ArchiveAged(ctx, models.GlobalScope(), 365)
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Zero(t, report.Archived)
}

func TestArchiveSnapshotContents(t *testing.T) {
	contract := agedContract("c1")
	actor := "user-1"
	svc, store, source := newArchiveFixture(contract)
	source.history["c1"] = []models.ContractHistory{
		{ID: "h1", ContractID: "c1", FieldName: "titel"},
	}

	archive, err := svc.ArchiveManual(context.Background(), "c1", actor)
	require.NoError(t, err)
	assert.Equal(t, "c1", archive.OriginalID)
	assert.Equal(t, models.ArchiveReasonManual, archive.Reason)
	require.NotNil(t, archive.ArchivedBy)
	assert.Equal(t, actor, *archive.ArchivedBy)

	var snapshot models.Contract
	require.NoError(t, json.Unmarshal(archive.ContractData, &snapshot))
	assert.Equal(t, contract.Auftrag, snapshot.Auftrag)

	var history []models.ContractHistory
	require.NoError(t, json.Unmarshal(archive.HistoryData, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "h1", history[0].ID)

	require.Len(t, store.archiveLog, 1)
	assert.Empty(t, store.archiveLog[0].ExpectedStatus, "manual archival is unconditional")
}

func TestArchiveRetentionUntilSevenYears(t *testing.T) {
	svc, store, _ := newArchiveFixture(agedContract("c1"))

	_, err := svc.ArchiveManual(context.Background(), "c1", "user-1")
	require.NoError(t, err)

	require.Len(t, store.archiveLog, 1)
	archive := store.archiveLog[0].Archive
	assert.Equal(t, archive.ArchivedAt.AddDate(7, 0, 0), archive.RetentionUntil)
}

func TestArchiveManualUnknownContract(t *testing.T) {
	svc, _, _ := newArchiveFixture()

	_, err := svc.ArchiveManual(context.Background(), "missing", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestArchiveForDeletionReason(t *testing.T) {
	svc, store, _ := newArchiveFixture(agedContract("c1"))

	require.NoError(t, svc.ArchiveForDeletion(context.Background(), "c1", "admin"))
	require.Len(t, store.archiveLog, 1)
	assert.Equal(t, models.ArchiveReasonDataRequest, store.archiveLog[0].Archive.Reason)
}

func TestArchiveForMergeReason(t *testing.T) {
	svc, store, _ := newArchiveFixture(agedContract("c1"))

	require.NoError(t, svc.ArchiveForMerge(context.Background(), "c1", "admin"))
	require.Len(t, store.archiveLog, 1)
	assert.Equal(t, models.ArchiveReasonMerge, store.archiveLog[0].Archive.Reason)
}

func TestArchiveAgedContractChangedDuringSnapshot(t *testing.T) {
	contract := agedContract("c1")
	svc, store, source := newArchiveFixture(contract)
	source.history["c1"] = []models.ContractHistory{
		{ID: "h1", ContractID: "c1", FieldName: "titel"},
	}

	// A writer commits a field change, with its history row, after the
	// snapshot was read but before the conditional delete runs.
	store.beforeRemove = func(params repository.ArchiveContractParams) {
		store.beforeRemove = nil
		source.history["c1"] = append(source.history["c1"], models.ContractHistory{
			ID: "h2", ContractID: "c1", FieldName: "beschreibung",
		})
		contract.UpdatedAt = contract.UpdatedAt.Add(time.Hour)
	}

	report, err := svc.ArchiveAged(context.Background(), models.GlobalScope(), 365)
	require.NoError(t, err)
	assert.Zero(t, report.Archived, "stale snapshot must not be committed")
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.FailedIDs, "c1")
	assert.Empty(t, store.archives)
	require.Contains(t, source.contracts, "c1", "contract survives until a clean snapshot lands")

	report, err = svc.ArchiveAged(context.Background(), models.GlobalScope(), 365)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Archived)
	require.Len(t, store.archiveLog, 1)

	var history []models.ContractHistory
	require.NoError(t, json.Unmarshal(store.archiveLog[0].Archive.HistoryData, &history))
	require.Len(t, history, 2, "retried snapshot carries the late history row")
	assert.NotContains(t, source.contracts, "c1")
}

func TestArchiveRetentionSweepConditionalOnStatus(t *testing.T) {
	svc, store, _ := newArchiveFixture(agedContract("c1"))

	_, err := svc.ArchiveAged(context.Background(), models.GlobalScope(), 365)
	require.NoError(t, err)
	require.Len(t, store.archiveLog, 1)
	assert.Equal(t, models.ContractStatusFertig, store.archiveLog[0].ExpectedStatus)
	assert.Equal(t, models.ArchiveReasonRetention, store.archiveLog[0].Archive.Reason)
}
