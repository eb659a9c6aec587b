package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vertragio/clm-api/internal/models"
)

type mockRuleStore struct {
	rules   []models.ValidationRule
	lastErr error
}

func (m *mockRuleStore) ListActiveForFields(ctx context.Context, scope models.Scope, fields []string) ([]models.ValidationRule, error) {
	if m.lastErr != nil {
		return nil, m.lastErr
	}
	return m.rules, nil
}

type mockUniqueChecker struct {
	existing map[string]string // field -> taken value
}

func (m *mockUniqueChecker) FieldValueExists(ctx context.Context, scope models.Scope, field, value, excludeID string) (bool, error) {
	return m.existing[field] == value, nil
}

func newValidationServiceForTest(rules []models.ValidationRule, checker *mockUniqueChecker) *ValidationService {
	if checker == nil {
		checker = &mockUniqueChecker{}
	}
	return NewValidationService(&mockRuleStore{rules: rules}, checker, zap.NewNop())
}

func TestEvaluateRequiredRule(t *testing.T) {
	svc := newValidationServiceForTest([]models.ValidationRule{
		{ID: "r1", FieldName: "titel", RuleType: models.RuleTypeRequired, ErrorMessage: "titel is required", Active: true},
	}, nil)

	violations, err := svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"titel": "   "}, "")
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "titel", violations[0].Field)
	assert.Equal(t, "titel is required", violations[0].Message)

	violations, err = svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"titel": "Wartung"}, "")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestEvaluateNonRequiredRulesSkipEmptyValues(t *testing.T) {
	svc := newValidationServiceForTest([]models.ValidationRule{
		{ID: "r1", FieldName: "geraet_nr", RuleType: models.RuleTypePattern, RuleConfig: []byte(`{"pattern":"^G-\\d{4}$"}`), Active: true},
		{ID: "r2", FieldName: "geraet_nr", RuleType: models.RuleTypeEnum, RuleConfig: []byte(`{"values":["G-0001"]}`), Active: true},
	}, nil)

	violations, err := svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"geraet_nr": ""}, "")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestEvaluatePatternRule(t *testing.T) {
	svc := newValidationServiceForTest([]models.ValidationRule{
		{ID: "r1", FieldName: "auftrag", RuleType: models.RuleTypePattern, RuleConfig: []byte(`{"pattern":"^A-\\d+$"}`), Active: true},
	}, nil)

	violations, err := svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"auftrag": "B100"}, "")
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, models.RuleTypePattern, violations[0].RuleType)

	violations, err = svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"auftrag": "A-100"}, "")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestEvaluatePatternRuleInvalidConfigSkipped(t *testing.T) {
	svc := newValidationServiceForTest([]models.ValidationRule{
		{ID: "r1", FieldName: "auftrag", RuleType: models.RuleTypePattern, RuleConfig: []byte(`{"pattern":"["}`), Active: true},
	}, nil)

	violations, err := svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"auftrag": "anything"}, "")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestEvaluateEnumRule(t *testing.T) {
	svc := newValidationServiceForTest([]models.ValidationRule{
		{ID: "r1", FieldName: "standort", RuleType: models.RuleTypeEnum, RuleConfig: []byte(`{"values":["Halle 1","Halle 2"]}`), Active: true},
	}, nil)

	violations, err := svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"standort": "Halle 3"}, "")
	require.NoError(t, err)
	assert.Len(t, violations, 1)

	violations, err = svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"standort": "Halle 2"}, "")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestEvaluateRangeRuleLength(t *testing.T) {
	svc := newValidationServiceForTest([]models.ValidationRule{
		{ID: "r1", FieldName: "titel", RuleType: models.RuleTypeRange, RuleConfig: []byte(`{"min_length":3,"max_length":10}`), Active: true},
	}, nil)

	violations, err := svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"titel": "ab"}, "")
	require.NoError(t, err)
	assert.Len(t, violations, 1)

	violations, err = svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"titel": "abcd"}, "")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestEvaluateRangeRuleNumeric(t *testing.T) {
	svc := newValidationServiceForTest([]models.ValidationRule{
		{ID: "r1", FieldName: "geraet_nr", RuleType: models.RuleTypeRange, RuleConfig: []byte(`{"min":1,"max":100}`), Active: true},
	}, nil)

	violations, err := svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"geraet_nr": "250"}, "")
	require.NoError(t, err)
	assert.Len(t, violations, 1)

	violations, err = svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"geraet_nr": "not a number"}, "")
	require.NoError(t, err)
	assert.Len(t, violations, 1)

	violations, err = svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"geraet_nr": "42"}, "")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestEvaluateDateRangeRuleRelativeBounds(t *testing.T) {
	svc := newValidationServiceForTest([]models.ValidationRule{
		{ID: "r1", FieldName: "beschreibung", RuleType: models.RuleTypeDateRange, RuleConfig: []byte(`{"min":"-30 days","max":"+1 year"}`), Active: true},
	}, nil)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	violations, err := svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"beschreibung": "2026-01-01"}, "")
	require.NoError(t, err)
	assert.Len(t, violations, 1, "older than 30 days should violate")

	violations, err = svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"beschreibung": "2026-03-01"}, "")
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"beschreibung": "2028-01-01"}, "")
	require.NoError(t, err)
	assert.Len(t, violations, 1, "beyond one year should violate")
}

func TestEvaluateUniqueRule(t *testing.T) {
	checker := &mockUniqueChecker{existing: map[string]string{"auftrag": "A-100"}}
	svc := newValidationServiceForTest([]models.ValidationRule{
		{ID: "r1", FieldName: "auftrag", RuleType: models.RuleTypeUnique, Active: true},
	}, checker)

	violations, err := svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"auftrag": "A-100"}, "")
	require.NoError(t, err)
	assert.Len(t, violations, 1)

	violations, err = svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{"auftrag": "A-200"}, "")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestEvaluateCollectsAllViolations(t *testing.T) {
	svc := newValidationServiceForTest([]models.ValidationRule{
		{ID: "r1", FieldName: "titel", RuleType: models.RuleTypeRequired, Active: true},
		{ID: "r2", FieldName: "auftrag", RuleType: models.RuleTypePattern, RuleConfig: []byte(`{"pattern":"^A-\\d+$"}`), Active: true},
	}, nil)

	violations, err := svc.Evaluate(context.Background(), models.GlobalScope(), map[string]string{
		"titel":   "",
		"auftrag": "nope",
	}, "")
	require.NoError(t, err)
	assert.Len(t, violations, 2)
}

func TestResolveRelativeBound(t *testing.T) {
	now := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	bound, err := resolveRelativeBound("-30 days", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -30), bound)

	bound, err = resolveRelativeBound("+2 years", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(2, 0, 0), bound)

	_, err = resolveRelativeBound("next tuesday", now)
	assert.Error(t, err)
}
