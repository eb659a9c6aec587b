package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vertragio/clm-api/internal/models"
)

const deletionColumns = `id, tenant_id, requested_by, request_type, target_id, status, note, created_at, processed_at, processed_by`

// DeletionRepository persists deletion requests.
type DeletionRepository struct {
	db *sqlx.DB
}

// NewDeletionRepository constructs the repository.
func NewDeletionRepository(db *sqlx.DB) *DeletionRepository {
	return &DeletionRepository{db: db}
}

// Create inserts a new pending request.
func (r *DeletionRepository) Create(ctx context.Context, request *models.DeletionRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.DeletionStatusPending
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO deletion_requests
	(id, tenant_id, requested_by, request_type, target_id, status, note, created_at, processed_at, processed_by)
	VALUES (:id, :tenant_id, :requested_by, :request_type, :target_id, :status, :note, :created_at, :processed_at, :processed_by)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create deletion request: %w", err)
	}
	return nil
}

// GetByID fetches one request.
func (r *DeletionRepository) GetByID(ctx context.Context, id string) (*models.DeletionRequest, error) {
	query := `SELECT ` + deletionColumns + ` FROM deletion_requests WHERE id = $1`
	var request models.DeletionRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// Claim moves a request from pending to processing. The CAS is the only
// mutual-exclusion mechanism between workers; a lost race returns
// sql.ErrNoRows.
func (r *DeletionRepository) Claim(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE deletion_requests SET status = 'processing' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("claim deletion request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deletion claim rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Complete stamps a processing request as completed.
func (r *DeletionRepository) Complete(ctx context.Context, id, processedBy string, processedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE deletion_requests SET status = 'completed', processed_at = $2, processed_by = $3
		WHERE id = $1 AND status = 'processing'`,
		id, processedAt, processedBy)
	if err != nil {
		return fmt.Errorf("complete deletion request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deletion complete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Reject marks a request rejected with a reason note. Used when the
// dependency order cannot be satisfied; no automatic retry follows.
func (r *DeletionRepository) Reject(ctx context.Context, id, note, processedBy string, processedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE deletion_requests SET status = 'rejected', note = $2, processed_at = $3, processed_by = $4
		WHERE id = $1 AND status IN ('pending','processing')`,
		id, note, processedAt, processedBy)
	if err != nil {
		return fmt.Errorf("reject deletion request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deletion reject rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns requests matching the filter, newest first.
func (r *DeletionRepository) List(ctx context.Context, filter models.DeletionFilter) ([]models.DeletionRequest, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + deletionColumns + ` FROM deletion_requests`)
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)

	if _, scoped := filter.Scope.TenantID(); scoped {
		conditions = append(conditions, scopeCondition(filter.Scope, "tenant_id", &args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("request_type = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.DeletionRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list deletion requests: %w", err)
	}
	return requests, nil
}

// NextPending returns the oldest pending request, or sql.ErrNoRows.
// Polled by the deletion worker.
func (r *DeletionRepository) NextPending(ctx context.Context) (*models.DeletionRequest, error) {
	query := `SELECT ` + deletionColumns + ` FROM deletion_requests WHERE status = 'pending' ORDER BY created_at ASC LIMIT 1`
	var request models.DeletionRequest
	if err := r.db.GetContext(ctx, &request, query); err != nil {
		return nil, err
	}
	return &request, nil
}
