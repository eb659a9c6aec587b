package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vertragio/clm-api/internal/models"
)

const metricsColumns = `id, tenant_id, metric_date, total_contracts, status_distribution, completion_rate,
       new_contracts_today, completed_today, stale, computed_at`

// MetricsRepository persists daily contract rollups.
type MetricsRepository struct {
	db *sqlx.DB
}

// NewMetricsRepository constructs the repository.
func NewMetricsRepository(db *sqlx.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// Upsert overwrites the rollup row for (tenant, date) with freshly
// computed values. Last writer wins; repeated runs converge.
func (r *MetricsRepository) Upsert(ctx context.Context, metrics *models.ContractMetrics) error {
	if metrics.ID == "" {
		metrics.ID = uuid.NewString()
	}
	if metrics.ComputedAt.IsZero() {
		metrics.ComputedAt = time.Now().UTC()
	}
	const query = `INSERT INTO contract_metrics
	(id, tenant_id, metric_date, total_contracts, status_distribution, completion_rate, new_contracts_today, completed_today, stale, computed_at)
	VALUES (:id, :tenant_id, :metric_date, :total_contracts, :status_distribution, :completion_rate, :new_contracts_today, :completed_today, FALSE, :computed_at)
	ON CONFLICT (COALESCE(tenant_id::text, 'global'), metric_date) DO UPDATE SET
		total_contracts = EXCLUDED.total_contracts,
		status_distribution = EXCLUDED.status_distribution,
		completion_rate = EXCLUDED.completion_rate,
		new_contracts_today = EXCLUDED.new_contracts_today,
		completed_today = EXCLUDED.completed_today,
		stale = FALSE,
		computed_at = EXCLUDED.computed_at`
	if _, err := r.db.NamedExecContext(ctx, query, metrics); err != nil {
		return fmt.Errorf("upsert contract metrics: %w", err)
	}
	return nil
}

// Get returns the rollup row for (scope, date).
func (r *MetricsRepository) Get(ctx context.Context, scope models.Scope, date time.Time) (*models.ContractMetrics, error) {
	args := make([]interface{}, 0, 2)
	condition := scopeCondition(scope, "tenant_id", &args)
	args = append(args, date.UTC().Format("2006-01-02"))
	query := fmt.Sprintf("SELECT %s FROM contract_metrics WHERE %s AND metric_date = $%d", metricsColumns, condition, len(args))
	var metrics models.ContractMetrics
	if err := r.db.GetContext(ctx, &metrics, query, args...); err != nil {
		return nil, err
	}
	return &metrics, nil
}

// Range returns rollup rows for a scope between two dates inclusive,
// oldest first. Feeds the analytics export.
func (r *MetricsRepository) Range(ctx context.Context, scope models.Scope, from, to time.Time) ([]models.ContractMetrics, error) {
	args := make([]interface{}, 0, 3)
	condition := scopeCondition(scope, "tenant_id", &args)
	args = append(args, from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
	query := fmt.Sprintf("SELECT %s FROM contract_metrics WHERE %s AND metric_date BETWEEN $%d AND $%d ORDER BY metric_date ASC",
		metricsColumns, condition, len(args)-1, len(args))
	var rows []models.ContractMetrics
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("range contract metrics: %w", err)
	}
	return rows, nil
}

// Invalidate marks the rollup for (scope, date) stale without touching
// its values. No-op when the row does not exist yet.
func (r *MetricsRepository) Invalidate(ctx context.Context, scope models.Scope, date time.Time) error {
	args := make([]interface{}, 0, 2)
	condition := scopeCondition(scope, "tenant_id", &args)
	args = append(args, date.UTC().Format("2006-01-02"))
	query := fmt.Sprintf("UPDATE contract_metrics SET stale = TRUE WHERE %s AND metric_date = $%d", condition, len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("invalidate contract metrics: %w", err)
	}
	return nil
}

// DeleteByTenant removes rollups for a tenant. Used by all_data deletion.
func (r *MetricsRepository) DeleteByTenant(ctx context.Context, tenantID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM contract_metrics WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("delete tenant metrics: %w", err)
	}
	return nil
}
