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

const ruleColumns = `id, tenant_id, field_name, rule_type, rule_config, error_message, active, created_at, updated_at`

// ValidationRuleRepository persists tenant-scoped validation rules.
type ValidationRuleRepository struct {
	db *sqlx.DB
}

// NewValidationRuleRepository constructs the repository.
func NewValidationRuleRepository(db *sqlx.DB) *ValidationRuleRepository {
	return &ValidationRuleRepository{db: db}
}

// Create inserts a new rule.
func (r *ValidationRuleRepository) Create(ctx context.Context, rule *models.ValidationRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	const query = `INSERT INTO validation_rules
	(id, tenant_id, field_name, rule_type, rule_config, error_message, active, created_at, updated_at)
	VALUES (:id, :tenant_id, :field_name, :rule_type, :rule_config, :error_message, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("create validation rule: %w", err)
	}
	return nil
}

// GetByID fetches one rule.
func (r *ValidationRuleRepository) GetByID(ctx context.Context, id string) (*models.ValidationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM validation_rules WHERE id = $1`
	var rule models.ValidationRule
	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListActiveForFields returns the active rules applying to the scope
// (tenant rules plus global rules) restricted to the given field names.
func (r *ValidationRuleRepository) ListActiveForFields(ctx context.Context, scope models.Scope, fields []string) ([]models.ValidationRule, error) {
	args := make([]interface{}, 0, len(fields)+1)
	conditions := []string{"active = TRUE", scopeOrGlobalCondition(scope, "tenant_id", &args)}
	if len(fields) > 0 {
		placeholders := make([]string, len(fields))
		for i, field := range fields {
			args = append(args, field)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("field_name IN (%s)", strings.Join(placeholders, ",")))
	}
	query := fmt.Sprintf("SELECT %s FROM validation_rules WHERE %s ORDER BY field_name, rule_type",
		ruleColumns, strings.Join(conditions, " AND "))

	var rules []models.ValidationRule
	if err := r.db.SelectContext(ctx, &rules, query, args...); err != nil {
		return nil, fmt.Errorf("list active validation rules: %w", err)
	}
	return rules, nil
}

// List returns all rules for a scope, tenant rules first.
func (r *ValidationRuleRepository) List(ctx context.Context, scope models.Scope) ([]models.ValidationRule, error) {
	args := make([]interface{}, 0, 1)
	condition := scopeOrGlobalCondition(scope, "tenant_id", &args)
	query := fmt.Sprintf("SELECT %s FROM validation_rules WHERE %s ORDER BY tenant_id NULLS LAST, field_name",
		ruleColumns, condition)
	var rules []models.ValidationRule
	if err := r.db.SelectContext(ctx, &rules, query, args...); err != nil {
		return nil, fmt.Errorf("list validation rules: %w", err)
	}
	return rules, nil
}

// Update overwrites the mutable attributes of a rule.
func (r *ValidationRuleRepository) Update(ctx context.Context, rule *models.ValidationRule) error {
	rule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE validation_rules SET
		field_name = :field_name, rule_type = :rule_type, rule_config = :rule_config,
		error_message = :error_message, active = :active, updated_at = :updated_at
	WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, rule)
	if err != nil {
		return fmt.Errorf("update validation rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rule update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a rule.
func (r *ValidationRuleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM validation_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete validation rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rule delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
