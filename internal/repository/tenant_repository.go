package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vertragio/clm-api/internal/models"
)

const tenantColumns = `id, name, slug, active, settings, created_at, updated_at, deactivated_at`

// TenantRepository persists tenant organisations.
type TenantRepository struct {
	db *sqlx.DB
}

// NewTenantRepository constructs the repository.
func NewTenantRepository(db *sqlx.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// Create inserts a new tenant.
func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now
	const query = `INSERT INTO tenants (id, name, slug, active, settings, created_at, updated_at, deactivated_at)
	VALUES (:id, :name, :slug, :active, :settings, :created_at, :updated_at, :deactivated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tenant); err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// GetByID fetches one tenant.
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	var tenant models.Tenant
	if err := r.db.GetContext(ctx, &tenant, query, id); err != nil {
		return nil, err
	}
	return &tenant, nil
}

// GetBySlug fetches one tenant by its unique slug.
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = $1`
	var tenant models.Tenant
	if err := r.db.GetContext(ctx, &tenant, query, slug); err != nil {
		return nil, err
	}
	return &tenant, nil
}

// ListActive returns all active tenants. Drives scoped scheduled jobs.
func (r *TenantRepository) ListActive(ctx context.Context) ([]models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE active = TRUE ORDER BY slug`
	var tenants []models.Tenant
	if err := r.db.SelectContext(ctx, &tenants, query); err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	return tenants, nil
}

// UpdateSettings replaces a tenant's opaque settings document.
func (r *TenantRepository) UpdateSettings(ctx context.Context, id string, settings []byte) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET settings = $2, updated_at = $3 WHERE id = $1`,
		id, settings, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update tenant settings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check tenant update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate soft-deletes a tenant. Tenants are never hard-deleted.
func (r *TenantRepository) Deactivate(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET active = FALSE, deactivated_at = $2, updated_at = $2 WHERE id = $1 AND active = TRUE`,
		id, at)
	if err != nil {
		return fmt.Errorf("deactivate tenant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check tenant deactivate rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
