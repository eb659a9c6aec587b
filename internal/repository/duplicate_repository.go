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

const duplicateColumns = `id, contract1_id, contract2_id, similarity_score, reasons, status, created_at, resolved_by, resolved_at`

// DuplicateRepository persists flagged duplicate pairs.
type DuplicateRepository struct {
	db *sqlx.DB
}

// NewDuplicateRepository constructs the repository.
func NewDuplicateRepository(db *sqlx.DB) *DuplicateRepository {
	return &DuplicateRepository{db: db}
}

// InsertIfAbsent stores a new pending pair unless the canonical pair is
// already flagged. Returns true when a row was inserted. Idempotent by
// the unique (contract1_id, contract2_id) key.
func (r *DuplicateRepository) InsertIfAbsent(ctx context.Context, dup *models.ContractDuplicate) (bool, error) {
	if dup.ID == "" {
		dup.ID = uuid.NewString()
	}
	if dup.Status == "" {
		dup.Status = models.DuplicateStatusPending
	}
	if dup.CreatedAt.IsZero() {
		dup.CreatedAt = time.Now().UTC()
	}
	dup.Contract1ID, dup.Contract2ID = models.CanonicalPair(dup.Contract1ID, dup.Contract2ID)
	const query = `INSERT INTO contract_duplicates
	(id, contract1_id, contract2_id, similarity_score, reasons, status, created_at)
	VALUES (:id, :contract1_id, :contract2_id, :similarity_score, :reasons, :status, :created_at)
	ON CONFLICT (contract1_id, contract2_id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, dup)
	if err != nil {
		return false, fmt.Errorf("insert duplicate pair: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check duplicate insert rows: %w", err)
	}
	return affected > 0, nil
}

// GetByID fetches one duplicate record.
func (r *DuplicateRepository) GetByID(ctx context.Context, id string) (*models.ContractDuplicate, error) {
	query := `SELECT ` + duplicateColumns + ` FROM contract_duplicates WHERE id = $1`
	var dup models.ContractDuplicate
	if err := r.db.GetContext(ctx, &dup, query, id); err != nil {
		return nil, err
	}
	return &dup, nil
}

// GetByPair fetches the record for an unordered contract pair.
func (r *DuplicateRepository) GetByPair(ctx context.Context, a, b string) (*models.ContractDuplicate, error) {
	lo, hi := models.CanonicalPair(a, b)
	query := `SELECT ` + duplicateColumns + ` FROM contract_duplicates WHERE contract1_id = $1 AND contract2_id = $2`
	var dup models.ContractDuplicate
	if err := r.db.GetContext(ctx, &dup, query, lo, hi); err != nil {
		return nil, err
	}
	return &dup, nil
}

// List returns duplicate pairs matching the filter, highest score first.
func (r *DuplicateRepository) List(ctx context.Context, filter models.DuplicateFilter) ([]models.ContractDuplicate, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT d.id, d.contract1_id, d.contract2_id, d.similarity_score, d.reasons, d.status, d.created_at, d.resolved_by, d.resolved_at
	FROM contract_duplicates d`)
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)

	if _, scoped := filter.Scope.TenantID(); scoped {
		builder.WriteString(" JOIN contracts c1 ON c1.id = d.contract1_id")
		conditions = append(conditions, scopeCondition(filter.Scope, "c1.tenant_id", &args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("d.status = $%d", len(args)))
	}
	if filter.MinScore > 0 {
		args = append(args, filter.MinScore)
		conditions = append(conditions, fmt.Sprintf("d.similarity_score >= $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY d.similarity_score DESC, d.created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var dups []models.ContractDuplicate
	if err := r.db.SelectContext(ctx, &dups, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list duplicate pairs: %w", err)
	}
	return dups, nil
}

// Resolve stamps the decision on a still-pending pair. A lost CAS
// returns sql.ErrNoRows.
func (r *DuplicateRepository) Resolve(ctx context.Context, id string, status models.DuplicateStatus, actor string, resolvedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE contract_duplicates SET status = $1, resolved_by = $2, resolved_at = $3
		WHERE id = $4 AND status = 'pending'`,
		status, actor, resolvedAt, id,
	)
	if err != nil {
		return fmt.Errorf("resolve duplicate pair: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check duplicate resolve rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReassignHistory moves history rows from one contract onto another,
// used by merge resolution before the losing contract is removed.
func (r *DuplicateRepository) ReassignHistory(ctx context.Context, fromContractID, toContractID string) error {
	const query = `UPDATE contract_history SET contract_id = $2 WHERE contract_id = $1`
	if _, err := r.db.ExecContext(ctx, query, fromContractID, toContractID); err != nil {
		return fmt.Errorf("reassign history to canonical contract: %w", err)
	}
	return nil
}
