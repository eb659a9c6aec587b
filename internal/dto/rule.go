package dto

import "encoding/json"

// CreateRuleRequest registers a validation rule. RuleConfig's shape is
// keyed by rule_type and checked before the rule is stored.
type CreateRuleRequest struct {
	FieldName    string          `json:"field_name" validate:"required"`
	RuleType     string          `json:"rule_type" validate:"required"`
	RuleConfig   json.RawMessage `json:"rule_config,omitempty"`
	ErrorMessage string          `json:"error_message"`
	Active       *bool           `json:"active,omitempty"`
}

// UpdateRuleRequest carries a partial rule update. Empty fields are
// left untouched.
type UpdateRuleRequest struct {
	FieldName    string          `json:"field_name"`
	RuleType     string          `json:"rule_type"`
	RuleConfig   json.RawMessage `json:"rule_config,omitempty"`
	ErrorMessage string          `json:"error_message"`
	Active       *bool           `json:"active,omitempty"`
}
