package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vertragio/clm-api/internal/models"
)

// ErrDuplicatePending marks a violated one-open-approval constraint.
var ErrDuplicatePending = errors.New("pending approval already exists")

// WorkflowRepository persists status transitions and approvals.
type WorkflowRepository struct {
	db *sqlx.DB
}

// NewWorkflowRepository constructs the repository.
func NewWorkflowRepository(db *sqlx.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// ApplyTransitionParams groups the writes of one accepted transition.
type ApplyTransitionParams struct {
	ContractID string
	FromStatus models.ContractStatus
	ToStatus   models.ContractStatus
	Actor      *string
	Reason     *string
	Metadata   []byte
	Changes    []models.ContractHistory
	Scope      models.Scope
	Date       time.Time
}

// ApplyTransition performs one status change as a single transaction:
// a compare-and-swap on the contract status, exactly one transition row,
// the history rows for changed fields, and invalidation of the daily
// metrics row for the scope. A lost CAS returns sql.ErrNoRows.
func (r *WorkflowRepository) ApplyTransition(ctx context.Context, params ApplyTransitionParams) (*models.WorkflowTransition, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx,
		`UPDATE contracts SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		params.ToStatus, now, params.ContractID, params.FromStatus,
	)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("swap contract status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("check status swap rows: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return nil, sql.ErrNoRows
	}

	transition := &models.WorkflowTransition{
		ID:           uuid.NewString(),
		ContractID:   params.ContractID,
		FromStatus:   &params.FromStatus,
		ToStatus:     params.ToStatus,
		TransitionBy: params.Actor,
		Reason:       params.Reason,
		Metadata:     params.Metadata,
		CreatedAt:    now,
	}
	const insertTransition = `INSERT INTO workflow_transitions
	(id, contract_id, from_status, to_status, transition_by, reason, metadata, created_at)
	VALUES (:id, :contract_id, :from_status, :to_status, :transition_by, :reason, :metadata, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertTransition, transition); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("append workflow transition: %w", err)
	}

	if err := insertHistoryTx(ctx, tx, params.ContractID, params.Changes, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}

	if err := invalidateMetricsTx(ctx, tx, params.Scope, params.Date); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return transition, nil
}

// invalidateMetricsTx marks the daily rollup row stale without
// recomputing it; the next aggregation run refreshes it.
func invalidateMetricsTx(ctx context.Context, tx *sqlx.Tx, scope models.Scope, date time.Time) error {
	args := make([]interface{}, 0, 2)
	condition := scopeCondition(scope, "tenant_id", &args)
	args = append(args, date.UTC().Format("2006-01-02"))
	query := fmt.Sprintf("UPDATE contract_metrics SET stale = TRUE WHERE %s AND metric_date = $%d", condition, len(args))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("invalidate daily metrics: %w", err)
	}
	return nil
}

// ListTransitions returns the audit log entries matching the filter,
// newest first.
func (r *WorkflowRepository) ListTransitions(ctx context.Context, filter models.TransitionFilter) ([]models.WorkflowTransition, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT id, contract_id, from_status, to_status, transition_by, reason, metadata, created_at
	FROM workflow_transitions`)
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)

	if filter.ContractID != "" {
		args = append(args, filter.ContractID)
		conditions = append(conditions, fmt.Sprintf("contract_id = $%d", len(args)))
	}
	if filter.ToStatus != "" {
		args = append(args, filter.ToStatus)
		conditions = append(conditions, fmt.Sprintf("to_status = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
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

	var transitions []models.WorkflowTransition
	if err := r.db.SelectContext(ctx, &transitions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list workflow transitions: %w", err)
	}
	return transitions, nil
}

// CountCompletedOn counts transitions into fertig recorded on the given
// UTC date for contracts in scope.
func (r *WorkflowRepository) CountCompletedOn(ctx context.Context, scope models.Scope, date time.Time) (int, error) {
	args := []interface{}{models.ContractStatusFertig, date.UTC().Format("2006-01-02")}
	builder := strings.Builder{}
	builder.WriteString(`SELECT COUNT(*) FROM workflow_transitions t
	JOIN contracts c ON c.id = t.contract_id
	WHERE t.to_status = $1 AND t.created_at::date = $2`)
	if _, scoped := scope.TenantID(); scoped {
		builder.WriteString(" AND ")
		builder.WriteString(scopeCondition(scope, "c.tenant_id", &args))
	} else {
		builder.WriteString(" AND c.tenant_id IS NULL")
	}
	var count int
	if err := r.db.GetContext(ctx, &count, builder.String(), args...); err != nil {
		return 0, fmt.Errorf("count completed transitions: %w", err)
	}
	return count, nil
}

// CreateApproval inserts a pending approval. The partial unique index on
// open approvals enforces at most one per contract; a violation maps to
// ErrDuplicatePending.
func (r *WorkflowRepository) CreateApproval(ctx context.Context, approval *models.ContractApproval) error {
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	if approval.Status == "" {
		approval.Status = models.ApprovalStatusPending
	}
	if approval.RequestedAt.IsZero() {
		approval.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO contract_approvals
	(id, contract_id, approver_id, requested_by, status, comments, requested_at, action_date)
	VALUES (:id, :contract_id, :approver_id, :requested_by, :status, :comments, :requested_at, :action_date)`
	if _, err := r.db.NamedExecContext(ctx, query, approval); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicatePending
		}
		return fmt.Errorf("create approval: %w", err)
	}
	return nil
}

// GetApproval fetches one approval row.
func (r *WorkflowRepository) GetApproval(ctx context.Context, id string) (*models.ContractApproval, error) {
	const query = `SELECT id, contract_id, approver_id, requested_by, status, comments, requested_at, action_date
	FROM contract_approvals WHERE id = $1`
	var approval models.ContractApproval
	if err := r.db.GetContext(ctx, &approval, query, id); err != nil {
		return nil, err
	}
	return &approval, nil
}

// OpenApproval returns the pending approval for a contract if one exists.
func (r *WorkflowRepository) OpenApproval(ctx context.Context, contractID string) (*models.ContractApproval, error) {
	const query = `SELECT id, contract_id, approver_id, requested_by, status, comments, requested_at, action_date
	FROM contract_approvals WHERE contract_id = $1 AND status = 'pending'`
	var approval models.ContractApproval
	if err := r.db.GetContext(ctx, &approval, query, contractID); err != nil {
		return nil, err
	}
	return &approval, nil
}

// ResolveApprovalParams groups the writes of one approval decision.
type ResolveApprovalParams struct {
	ApprovalID string
	ContractID string
	Decision   models.ApprovalStatus
	Comments   *string
	ActionDate time.Time
}

// ResolveApproval stamps the decision on a still-pending approval and
// updates the contract approval status in one transaction. A lost CAS on
// either row returns sql.ErrNoRows.
func (r *WorkflowRepository) ResolveApproval(ctx context.Context, params ResolveApprovalParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approval resolve: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE contract_approvals SET status = $1, comments = COALESCE($2, comments), action_date = $3
		WHERE id = $4 AND status = 'pending'`,
		params.Decision, params.Comments, params.ActionDate, params.ApprovalID,
	)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("resolve approval: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("check approval resolve rows: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE contracts SET approval_status = $1, approver_id = (SELECT approver_id FROM contract_approvals WHERE id = $2),
		approval_date = $3, updated_at = $3 WHERE id = $4`,
		params.Decision, params.ApprovalID, params.ActionDate, params.ContractID,
	); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("stamp contract approval status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approval resolve: %w", err)
	}
	return nil
}

// UpsertSLA records or refreshes an SLA row for a contract.
func (r *WorkflowRepository) UpsertSLA(ctx context.Context, sla *models.ContractSLA) error {
	if sla.ID == "" {
		sla.ID = uuid.NewString()
	}
	const query = `INSERT INTO contract_slas (id, contract_id, sla_type, target_value, actual_value, status, due_date, resolved_at)
	VALUES (:id, :contract_id, :sla_type, :target_value, :actual_value, :status, :due_date, :resolved_at)
	ON CONFLICT (id) DO UPDATE SET actual_value = EXCLUDED.actual_value, status = EXCLUDED.status, resolved_at = EXCLUDED.resolved_at`
	if _, err := r.db.NamedExecContext(ctx, query, sla); err != nil {
		return fmt.Errorf("upsert contract sla: %w", err)
	}
	return nil
}

// ListSLAs returns the SLA rows attached to a contract.
func (r *WorkflowRepository) ListSLAs(ctx context.Context, contractID string) ([]models.ContractSLA, error) {
	const query = `SELECT id, contract_id, sla_type, target_value, actual_value, status, due_date, resolved_at
	FROM contract_slas WHERE contract_id = $1 ORDER BY sla_type`
	var slas []models.ContractSLA
	if err := r.db.SelectContext(ctx, &slas, query, contractID); err != nil {
		return nil, fmt.Errorf("list contract slas: %w", err)
	}
	return slas, nil
}

// AnonymizeActor detaches a user from transition and approval rows they
// acted on. Safe to re-run.
func (r *WorkflowRepository) AnonymizeActor(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE workflow_transitions SET transition_by = NULL WHERE transition_by = $1`, userID); err != nil {
		return fmt.Errorf("anonymize transition actor: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE contract_approvals SET requested_by = NULL WHERE requested_by = $1`, userID); err != nil {
		return fmt.Errorf("anonymize approval requester: %w", err)
	}
	return nil
}

// MarkSLAOutcome stamps open SLA rows for a contract as met or breached
// against the resolution time. Called when a contract reaches fertig.
func (r *WorkflowRepository) MarkSLAOutcome(ctx context.Context, contractID string, resolvedAt time.Time) error {
	const query = `UPDATE contract_slas SET
		status = CASE WHEN due_date IS NOT NULL AND $2 > due_date THEN 'breached' ELSE 'met' END,
		actual_value = to_char($2 AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
		resolved_at = $2
	WHERE contract_id = $1 AND status IN ('pending','at_risk')`
	if _, err := r.db.ExecContext(ctx, query, contractID, resolvedAt); err != nil {
		return fmt.Errorf("mark sla outcome: %w", err)
	}
	return nil
}
