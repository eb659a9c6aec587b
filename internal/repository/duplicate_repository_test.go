package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertragio/clm-api/internal/models"
)

func newDuplicateMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestDuplicateRepositoryInsertIfAbsent(t *testing.T) {
	db, mock, cleanup := newDuplicateMock(t)
	defer cleanup()
	repo := NewDuplicateRepository(db)

	mock.ExpectExec("INSERT INTO contract_duplicates").
		WithArgs(sqlmock.AnyArg(), "c1", "c2", 0.91, sqlmock.AnyArg(), "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// Pair arrives in reverse order; the canonical ordering must win.
	dup := &models.ContractDuplicate{Contract1ID: "c2", Contract2ID: "c1", SimilarityScore: 0.91}
	inserted, err := repo.InsertIfAbsent(context.Background(), dup)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "c1", dup.Contract1ID)
	assert.Equal(t, "c2", dup.Contract2ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuplicateRepositoryInsertIfAbsentConflict(t *testing.T) {
	db, mock, cleanup := newDuplicateMock(t)
	defer cleanup()
	repo := NewDuplicateRepository(db)

	mock.ExpectExec("INSERT INTO contract_duplicates").
		WithArgs(sqlmock.AnyArg(), "c1", "c2", 0.85, sqlmock.AnyArg(), "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.InsertIfAbsent(context.Background(), &models.ContractDuplicate{
		Contract1ID: "c1", Contract2ID: "c2", SimilarityScore: 0.85,
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuplicateRepositoryResolve(t *testing.T) {
	db, mock, cleanup := newDuplicateMock(t)
	defer cleanup()
	repo := NewDuplicateRepository(db)

	resolvedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE contract_duplicates SET status").
		WithArgs(models.DuplicateStatusDismissed, "user-1", resolvedAt, "d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Resolve(context.Background(), "d1", models.DuplicateStatusDismissed, "user-1", resolvedAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuplicateRepositoryResolveAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newDuplicateMock(t)
	defer cleanup()
	repo := NewDuplicateRepository(db)

	mock.ExpectExec("UPDATE contract_duplicates SET status").
		WithArgs(models.DuplicateStatusMerged, "user-1", sqlmock.AnyArg(), "d1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Resolve(context.Background(), "d1", models.DuplicateStatusMerged, "user-1", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuplicateRepositoryListScoped(t *testing.T) {
	db, mock, cleanup := newDuplicateMock(t)
	defer cleanup()
	repo := NewDuplicateRepository(db)

	rows := sqlmock.NewRows([]string{"id", "contract1_id", "contract2_id", "similarity_score", "reasons", "status", "created_at", "resolved_by", "resolved_at"}).
		AddRow("d1", "c1", "c2", 0.93, []byte(`["title similarity 0.93"]`), "pending", time.Now(), nil, nil)
	mock.ExpectQuery("SELECT (.+) FROM contract_duplicates d JOIN contracts c1 ON c1.id = d.contract1_id WHERE c1.tenant_id = \\$1 AND d.status = \\$2").
		WithArgs("tenant-1", models.DuplicateStatusPending).
		WillReturnRows(rows)

	dups, err := repo.List(context.Background(), models.DuplicateFilter{
		Scope:  models.ForTenant("tenant-1"),
		Status: models.DuplicateStatusPending,
	})
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, 0.93, dups[0].SimilarityScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuplicateRepositoryReassignHistory(t *testing.T) {
	db, mock, cleanup := newDuplicateMock(t)
	defer cleanup()
	repo := NewDuplicateRepository(db)

	mock.ExpectExec("UPDATE contract_history SET contract_id").
		WithArgs("loser", "canonical").
		WillReturnResult(sqlmock.NewResult(0, 4))

	require.NoError(t, repo.ReassignHistory(context.Background(), "loser", "canonical"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
