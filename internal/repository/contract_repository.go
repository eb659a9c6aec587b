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

const contractColumns = `id, tenant_id, auftrag, titel, standort, geraet_nr, beschreibung,
       status, approval_status, assigned_to, approver_id, approval_date, created_at, updated_at`

// ContractRepository persists contracts and their field-change history.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository constructs the repository.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Create inserts a new contract row.
func (r *ContractRepository) Create(ctx context.Context, contract *models.Contract) error {
	if contract.ID == "" {
		contract.ID = uuid.NewString()
	}
	if contract.Status == "" {
		contract.Status = models.ContractStatusOffen
	}
	if contract.ApprovalStatus == "" {
		contract.ApprovalStatus = models.ApprovalStatusPending
	}
	now := time.Now().UTC()
	if contract.CreatedAt.IsZero() {
		contract.CreatedAt = now
	}
	contract.UpdatedAt = now
	const query = `INSERT INTO contracts
	(id, tenant_id, auftrag, titel, standort, geraet_nr, beschreibung, status, approval_status, assigned_to, approver_id, approval_date, created_at, updated_at)
	VALUES (:id, :tenant_id, :auftrag, :titel, :standort, :geraet_nr, :beschreibung, :status, :approval_status, :assigned_to, :approver_id, :approval_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, contract); err != nil {
		return fmt.Errorf("create contract: %w", err)
	}
	return nil
}

// GetByID fetches a contract by identifier.
func (r *ContractRepository) GetByID(ctx context.Context, id string) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	var contract models.Contract
	if err := r.db.GetContext(ctx, &contract, query, id); err != nil {
		return nil, err
	}
	return &contract, nil
}

// List returns contracts matching the filter, newest first.
func (r *ContractRepository) List(ctx context.Context, filter models.ContractFilter) ([]models.Contract, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + contractColumns + ` FROM contracts`)
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)

	if _, scoped := filter.Scope.TenantID(); scoped {
		conditions = append(conditions, scopeCondition(filter.Scope, "tenant_id", &args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(titel ILIKE $%d OR auftrag ILIKE $%d)", len(args), len(args)))
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

	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	return contracts, nil
}

// UpdateFieldsParams carries an accepted field update and its history diff.
type UpdateFieldsParams struct {
	Contract          *models.Contract
	Changes           []models.ContractHistory
	ExpectedUpdatedAt time.Time
}

// UpdateFields persists changed business fields and appends the matching
// history rows in one transaction. The write is conditional on the
// updated_at read at the start of the operation; a stale read returns
// sql.ErrNoRows so the caller can surface a retryable conflict.
func (r *ContractRepository) UpdateFields(ctx context.Context, params UpdateFieldsParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin contract update: %w", err)
	}
	now := time.Now().UTC()
	params.Contract.UpdatedAt = now
	const update = `UPDATE contracts SET
		auftrag = :auftrag, titel = :titel, standort = :standort, geraet_nr = :geraet_nr,
		beschreibung = :beschreibung, assigned_to = :assigned_to, updated_at = :updated_at
	WHERE id = :id AND updated_at = :expected_updated_at`
	res, err := tx.NamedExecContext(ctx, update, map[string]interface{}{
		"id":                  params.Contract.ID,
		"auftrag":             params.Contract.Auftrag,
		"titel":               params.Contract.Titel,
		"standort":            params.Contract.Standort,
		"geraet_nr":           params.Contract.GeraetNr,
		"beschreibung":        params.Contract.Beschreibung,
		"assigned_to":         params.Contract.AssignedTo,
		"updated_at":          now,
		"expected_updated_at": params.ExpectedUpdatedAt,
	})
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update contract: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("check contract update rows: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}
	if err := insertHistoryTx(ctx, tx, params.Contract.ID, params.Changes, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit contract update: %w", err)
	}
	return nil
}

func insertHistoryTx(ctx context.Context, tx *sqlx.Tx, contractID string, changes []models.ContractHistory, now time.Time) error {
	const query = `INSERT INTO contract_history (id, contract_id, field_name, old_value, new_value, changed_by, changed_at)
	VALUES (:id, :contract_id, :field_name, :old_value, :new_value, :changed_by, :changed_at)`
	for i := range changes {
		changes[i].ID = uuid.NewString()
		changes[i].ContractID = contractID
		if changes[i].ChangedAt.IsZero() {
			changes[i].ChangedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, changes[i]); err != nil {
			return fmt.Errorf("append contract history: %w", err)
		}
	}
	return nil
}

// History returns the append-only change log for a contract, oldest first.
func (r *ContractRepository) History(ctx context.Context, contractID string) ([]models.ContractHistory, error) {
	const query = `SELECT id, contract_id, field_name, old_value, new_value, changed_by, changed_at
	FROM contract_history WHERE contract_id = $1 ORDER BY changed_at ASC, id ASC`
	var history []models.ContractHistory
	if err := r.db.SelectContext(ctx, &history, query, contractID); err != nil {
		return nil, fmt.Errorf("load contract history: %w", err)
	}
	return history, nil
}

// FieldValueExists reports whether another live contract in scope already
// carries the given value in the named field. Field names are restricted
// to known columns to keep the query safe.
func (r *ContractRepository) FieldValueExists(ctx context.Context, scope models.Scope, field, value, excludeID string) (bool, error) {
	switch field {
	case "auftrag", "titel", "standort", "geraet_nr":
	default:
		return false, fmt.Errorf("field %q not unique-checkable", field)
	}
	args := []interface{}{value}
	conditions := []string{fmt.Sprintf("%s = $1", field)}
	conditions = append(conditions, scopeCondition(scope, "tenant_id", &args))
	if excludeID != "" {
		args = append(args, excludeID)
		conditions = append(conditions, fmt.Sprintf("id <> $%d", len(args)))
	}
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM contracts WHERE %s)", strings.Join(conditions, " AND "))
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check unique field value: %w", err)
	}
	return exists, nil
}

// CountsByStatus returns total and per-status counts for a scope.
func (r *ContractRepository) CountsByStatus(ctx context.Context, scope models.Scope) (map[models.ContractStatus]int, error) {
	args := make([]interface{}, 0, 1)
	condition := scopeCondition(scope, "tenant_id", &args)
	query := fmt.Sprintf("SELECT status, COUNT(*) AS n FROM contracts WHERE %s GROUP BY status", condition)

	rows := []struct {
		Status models.ContractStatus `db:"status"`
		N      int                   `db:"n"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count contracts by status: %w", err)
	}
	counts := make(map[models.ContractStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}

// CountCreatedOn returns the number of contracts in scope created on the
// given UTC date.
func (r *ContractRepository) CountCreatedOn(ctx context.Context, scope models.Scope, date time.Time) (int, error) {
	args := make([]interface{}, 0, 2)
	condition := scopeCondition(scope, "tenant_id", &args)
	args = append(args, date.UTC().Format("2006-01-02"))
	query := fmt.Sprintf("SELECT COUNT(*) FROM contracts WHERE %s AND created_at::date = $%d", condition, len(args))
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count contracts created on date: %w", err)
	}
	return count, nil
}

// ListAgedCompleted returns completed contracts in scope whose last
// modification is older than the cutoff, oldest first, bounded by limit.
// Retention candidates for the archiver.
func (r *ContractRepository) ListAgedCompleted(ctx context.Context, scope models.Scope, cutoff time.Time, limit int) ([]models.Contract, error) {
	args := []interface{}{models.ContractStatusFertig}
	conditions := []string{"status = $1"}
	if _, scoped := scope.TenantID(); scoped {
		conditions = append(conditions, scopeCondition(scope, "tenant_id", &args))
	}
	args = append(args, cutoff)
	conditions = append(conditions, fmt.Sprintf("updated_at < $%d", len(args)))
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf("SELECT %s FROM contracts WHERE %s ORDER BY updated_at ASC LIMIT %d",
		contractColumns, strings.Join(conditions, " AND "), limit)

	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, query, args...); err != nil {
		return nil, fmt.Errorf("list aged completed contracts: %w", err)
	}
	return contracts, nil
}

// ReassignUserRefs clears assignment and approver references held by a
// user across live contracts. Part of user_data deletion processing.
func (r *ContractRepository) ReassignUserRefs(ctx context.Context, userID string) error {
	const query = `UPDATE contracts SET
		assigned_to = CASE WHEN assigned_to = $1 THEN NULL ELSE assigned_to END,
		approver_id = CASE WHEN approver_id = $1 THEN NULL ELSE approver_id END
	WHERE assigned_to = $1 OR approver_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("reassign contract user refs: %w", err)
	}
	return nil
}

// AnonymizeHistoryByUser detaches a user from history entries they
// authored. Delete-if-exists semantics, safe to re-run.
func (r *ContractRepository) AnonymizeHistoryByUser(ctx context.Context, userID string) error {
	const query = `UPDATE contract_history SET changed_by = NULL WHERE changed_by = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("anonymize history author: %w", err)
	}
	return nil
}
