package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertragio/clm-api/internal/models"
)

func newMetricsMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func metricsRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tenant_id", "metric_date", "total_contracts", "status_distribution",
		"completion_rate", "new_contracts_today", "completed_today", "stale", "computed_at"})
}

func TestMetricsRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newMetricsMock(t)
	defer cleanup()
	repo := NewMetricsRepository(db)

	mock.ExpectExec("INSERT INTO contract_metrics").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 3, sqlmock.AnyArg(),
			33.33, 1, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	metrics := &models.ContractMetrics{
		Date:               time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		TotalContracts:     3,
		StatusDistribution: []byte(`{"offen":1,"inbearb":1,"fertig":1}`),
		CompletionRate:     33.33,
		NewContractsToday:  1,
		CompletedToday:     1,
	}
	err := repo.Upsert(context.Background(), metrics)
	require.NoError(t, err)
	assert.NotEmpty(t, metrics.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsRepositoryGetScoped(t *testing.T) {
	db, mock, cleanup := newMetricsMock(t)
	defer cleanup()
	repo := NewMetricsRepository(db)

	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM contract_metrics WHERE tenant_id = \\$1 AND metric_date = \\$2").
		WithArgs("tenant-1", "2026-03-14").
		WillReturnRows(metricsRows().
			AddRow("m1", "tenant-1", date, 3, []byte(`{"offen":1,"inbearb":1,"fertig":1}`), 33.33, 1, 1, false, time.Now()))

	metrics, err := repo.Get(context.Background(), models.ForTenant("tenant-1"), date)
	require.NoError(t, err)
	assert.Equal(t, 33.33, metrics.CompletionRate)
	assert.False(t, metrics.Stale)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsRepositoryGetGlobal(t *testing.T) {
	db, mock, cleanup := newMetricsMock(t)
	defer cleanup()
	repo := NewMetricsRepository(db)

	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM contract_metrics WHERE tenant_id IS NULL AND metric_date = \\$1").
		WithArgs("2026-03-14").
		WillReturnRows(metricsRows().
			AddRow("m2", nil, date, 10, []byte(`{"offen":10}`), 0.0, 0, 0, false, time.Now()))

	metrics, err := repo.Get(context.Background(), models.GlobalScope(), date)
	require.NoError(t, err)
	assert.Equal(t, 10, metrics.TotalContracts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsRepositoryRange(t *testing.T) {
	db, mock, cleanup := newMetricsMock(t)
	defer cleanup()
	repo := NewMetricsRepository(db)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM contract_metrics WHERE tenant_id IS NULL AND metric_date BETWEEN \\$1 AND \\$2 ORDER BY metric_date ASC").
		WithArgs("2026-03-01", "2026-03-07").
		WillReturnRows(metricsRows().
			AddRow("m1", nil, from, 1, []byte(`{}`), 0.0, 1, 0, false, time.Now()).
			AddRow("m2", nil, to, 2, []byte(`{}`), 50.0, 1, 1, false, time.Now()))

	rows, err := repo.Range(context.Background(), models.GlobalScope(), from, to)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsRepositoryInvalidate(t *testing.T) {
	db, mock, cleanup := newMetricsMock(t)
	defer cleanup()
	repo := NewMetricsRepository(db)

	mock.ExpectExec("UPDATE contract_metrics SET stale = TRUE").
		WithArgs("tenant-1", "2026-03-14").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Invalidate(context.Background(), models.ForTenant("tenant-1"), time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
