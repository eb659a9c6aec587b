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

const archiveColumns = `id, original_id, tenant_id, contract_data, history_data, archived_by, archived_at, retention_until, reason`

// ArchiveRepository persists write-once contract snapshots.
type ArchiveRepository struct {
	db *sqlx.DB
}

// NewArchiveRepository constructs the repository.
func NewArchiveRepository(db *sqlx.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// ArchiveContractParams is one snapshot-then-remove unit.
// ExpectedUpdatedAt is the contract's updated_at read when the snapshot
// was built; every write path bumps it, so the conditional delete proves
// the snapshot still matches the row it removes.
type ArchiveContractParams struct {
	Archive           *models.ContractArchive
	ExpectedStatus    models.ContractStatus
	ExpectedUpdatedAt time.Time
}

// ArchiveContract inserts the archive snapshot and deletes the live
// contract row as one transaction. History, approvals and SLA rows go
// with the contract via ON DELETE CASCADE. The delete is conditional on
// the updated_at (and, for retention, status) read when the snapshot was
// built; if the contract changed or vanished meanwhile the transaction
// rolls back with sql.ErrNoRows so the caller re-reads and retries.
func (r *ArchiveRepository) ArchiveContract(ctx context.Context, params ArchiveContractParams) error {
	archive := params.Archive
	if archive.ID == "" {
		archive.ID = uuid.NewString()
	}
	if archive.ArchivedAt.IsZero() {
		archive.ArchivedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive: %w", err)
	}

	const insert = `INSERT INTO contract_archives
	(id, original_id, tenant_id, contract_data, history_data, archived_by, archived_at, retention_until, reason)
	VALUES (:id, :original_id, :tenant_id, :contract_data, :history_data, :archived_by, :archived_at, :retention_until, :reason)`
	if _, err := tx.NamedExecContext(ctx, insert, archive); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert contract archive: %w", err)
	}

	deleteQuery := `DELETE FROM contracts WHERE id = $1 AND updated_at = $2`
	args := []interface{}{archive.OriginalID, params.ExpectedUpdatedAt}
	if params.ExpectedStatus != "" {
		args = append(args, params.ExpectedStatus)
		deleteQuery += ` AND status = $3`
	}
	res, err := tx.ExecContext(ctx, deleteQuery, args...)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("remove live contract: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("check contract remove rows: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

// GetByID fetches one archive row.
func (r *ArchiveRepository) GetByID(ctx context.Context, id string) (*models.ContractArchive, error) {
	query := `SELECT ` + archiveColumns + ` FROM contract_archives WHERE id = $1`
	var archive models.ContractArchive
	if err := r.db.GetContext(ctx, &archive, query, id); err != nil {
		return nil, err
	}
	return &archive, nil
}

// ListByOriginal returns all archive entries for an original contract id.
func (r *ArchiveRepository) ListByOriginal(ctx context.Context, originalID string) ([]models.ContractArchive, error) {
	query := `SELECT ` + archiveColumns + ` FROM contract_archives WHERE original_id = $1 ORDER BY archived_at DESC`
	var archives []models.ContractArchive
	if err := r.db.SelectContext(ctx, &archives, query, originalID); err != nil {
		return nil, fmt.Errorf("list archives by original: %w", err)
	}
	return archives, nil
}

// List returns archive rows matching the filter, newest first.
func (r *ArchiveRepository) List(ctx context.Context, filter models.ArchiveFilter) ([]models.ContractArchive, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + archiveColumns + ` FROM contract_archives`)
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)

	if _, scoped := filter.Scope.TenantID(); scoped {
		conditions = append(conditions, scopeCondition(filter.Scope, "tenant_id", &args))
	}
	if filter.OriginalID != "" {
		args = append(args, filter.OriginalID)
		conditions = append(conditions, fmt.Sprintf("original_id = $%d", len(args)))
	}
	if filter.Reason != "" {
		args = append(args, filter.Reason)
		conditions = append(conditions, fmt.Sprintf("reason = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY archived_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var archives []models.ContractArchive
	if err := r.db.SelectContext(ctx, &archives, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list contract archives: %w", err)
	}
	return archives, nil
}

// DeleteByOriginal removes archive entries for an original contract id.
// Delete-if-exists semantics: zero affected rows is not an error.
func (r *ArchiveRepository) DeleteByOriginal(ctx context.Context, originalID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM contract_archives WHERE original_id = $1`, originalID); err != nil {
		return fmt.Errorf("delete archives by original: %w", err)
	}
	return nil
}

// AnonymizeByUser detaches a user from archive entries they created.
func (r *ArchiveRepository) AnonymizeByUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE contract_archives SET archived_by = NULL WHERE archived_by = $1`, userID); err != nil {
		return fmt.Errorf("anonymize archive author: %w", err)
	}
	return nil
}
