package models

import "time"

// RuleType enumerates supported validation rule kinds.
type RuleType string

const (
	RuleTypeRequired  RuleType = "required"
	RuleTypePattern   RuleType = "pattern"
	RuleTypeEnum      RuleType = "enum"
	RuleTypeRange     RuleType = "range"
	RuleTypeDateRange RuleType = "date_range"
	RuleTypeUnique    RuleType = "unique"
)

// Valid reports whether the rule type is known.
func (t RuleType) Valid() bool {
	switch t {
	case RuleTypeRequired, RuleTypePattern, RuleTypeEnum, RuleTypeRange, RuleTypeDateRange, RuleTypeUnique:
		return true
	}
	return false
}

// ValidationRule is a tenant-configurable constraint evaluated before a
// contract mutation commits. A nil TenantID marks a global rule applied
// to every tenant.
type ValidationRule struct {
	ID           string    `db:"id" json:"id"`
	TenantID     *string   `db:"tenant_id" json:"tenant_id,omitempty"`
	FieldName    string    `db:"field_name" json:"field_name"`
	RuleType     RuleType  `db:"rule_type" json:"rule_type"`
	RuleConfig   []byte    `db:"rule_config" json:"rule_config,omitempty"`
	ErrorMessage string    `db:"error_message" json:"error_message"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Violation is one failed rule evaluation.
type Violation struct {
	Field    string   `json:"field"`
	RuleType RuleType `json:"rule_type"`
	Message  string   `json:"message"`
}

// RuleConfigPattern is the rule_config shape for pattern rules.
type RuleConfigPattern struct {
	Pattern string `json:"pattern" validate:"required"`
}

// RuleConfigEnum is the rule_config shape for enum rules.
type RuleConfigEnum struct {
	Values []string `json:"values" validate:"required,min=1"`
}

// RuleConfigRange is the rule_config shape for range rules. Min/Max bound
// numeric values, MinLength/MaxLength bound string length; exactly one of
// the two pairs should be set.
type RuleConfigRange struct {
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MinLength *int     `json:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty"`
}

// RuleConfigDateRange is the rule_config shape for date_range rules.
// Bounds are relative expressions such as "-30 days" or "+2 years",
// resolved against the evaluation time.
type RuleConfigDateRange struct {
	Min string `json:"min,omitempty"`
	Max string `json:"max,omitempty"`
}
