package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vertragio/clm-api/internal/dto"
	"github.com/vertragio/clm-api/internal/models"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
)

type mockRuleAdminStore struct {
	rules map[string]*models.ValidationRule
	seq   int
}

func newMockRuleAdminStore() *mockRuleAdminStore {
	return &mockRuleAdminStore{rules: map[string]*models.ValidationRule{}}
}

func (m *mockRuleAdminStore) Create(_ context.Context, rule *models.ValidationRule) error {
	m.seq++
	rule.ID = fmt.Sprintf("rule-%d", m.seq)
	stored := *rule
	m.rules[rule.ID] = &stored
	return nil
}

func (m *mockRuleAdminStore) GetByID(_ context.Context, id string) (*models.ValidationRule, error) {
	rule, ok := m.rules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *rule
	return &copied, nil
}

func (m *mockRuleAdminStore) List(_ context.Context, _ models.Scope) ([]models.ValidationRule, error) {
	out := []models.ValidationRule{}
	for _, rule := range m.rules {
		out = append(out, *rule)
	}
	return out, nil
}

func (m *mockRuleAdminStore) Update(_ context.Context, rule *models.ValidationRule) error {
	if _, ok := m.rules[rule.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *rule
	m.rules[rule.ID] = &stored
	return nil
}

func (m *mockRuleAdminStore) Delete(_ context.Context, id string) error {
	if _, ok := m.rules[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.rules, id)
	return nil
}

func newRuleServiceForTest() (*RuleService, *mockRuleAdminStore) {
	store := newMockRuleAdminStore()
	return NewRuleService(store, nil, zap.NewNop()), store
}

func TestRuleCreatePattern(t *testing.T) {
	svc, store := newRuleServiceForTest()

	rule, err := svc.Create(context.Background(), dto.CreateRuleRequest{
		FieldName:    "geraet_nr",
		RuleType:     "Pattern",
		RuleConfig:   json.RawMessage(`{"pattern": "^GN-[0-9]{3,6}$"}`),
		ErrorMessage: "Gerätenummer hat ein ungültiges Format",
	}, models.ForTenant("tenant-1"))

	require.NoError(t, err)
	assert.Equal(t, models.RuleTypePattern, rule.RuleType)
	assert.True(t, rule.Active)
	require.NotNil(t, rule.TenantID)
	assert.Equal(t, "tenant-1", *rule.TenantID)
	assert.Contains(t, store.rules, rule.ID)
}

func TestRuleCreateInvalidRegex(t *testing.T) {
	svc, store := newRuleServiceForTest()

	_, err := svc.Create(context.Background(), dto.CreateRuleRequest{
		FieldName:  "geraet_nr",
		RuleType:   "pattern",
		RuleConfig: json.RawMessage(`{"pattern": "["}`),
	}, models.GlobalScope())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.rules)
}

func TestRuleCreateUnknownType(t *testing.T) {
	svc, _ := newRuleServiceForTest()

	_, err := svc.Create(context.Background(), dto.CreateRuleRequest{
		FieldName: "titel",
		RuleType:  "spellcheck",
	}, models.GlobalScope())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRuleCreateRequiredNeedsNoConfig(t *testing.T) {
	svc, _ := newRuleServiceForTest()

	rule, err := svc.Create(context.Background(), dto.CreateRuleRequest{
		FieldName: "titel",
		RuleType:  "required",
	}, models.GlobalScope())

	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(rule.RuleConfig))
}

func TestRuleCreateRangeMixedBounds(t *testing.T) {
	svc, _ := newRuleServiceForTest()

	// numeric and length bounds are mutually exclusive
	_, err := svc.Create(context.Background(), dto.CreateRuleRequest{
		FieldName:  "titel",
		RuleType:   "range",
		RuleConfig: json.RawMessage(`{"min": 1, "max_length": 10}`),
	}, models.GlobalScope())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRuleCreateDateRangeBadBound(t *testing.T) {
	svc, _ := newRuleServiceForTest()

	_, err := svc.Create(context.Background(), dto.CreateRuleRequest{
		FieldName:  "due_date",
		RuleType:   "date_range",
		RuleConfig: json.RawMessage(`{"min": "vorgestern"}`),
	}, models.GlobalScope())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRuleUpdateDeactivate(t *testing.T) {
	svc, store := newRuleServiceForTest()
	rule, err := svc.Create(context.Background(), dto.CreateRuleRequest{
		FieldName: "titel",
		RuleType:  "required",
	}, models.GlobalScope())
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(context.Background(), rule.ID, dto.UpdateRuleRequest{Active: &inactive})

	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.False(t, store.rules[rule.ID].Active)
}

func TestRuleUpdateNotFound(t *testing.T) {
	svc, _ := newRuleServiceForTest()

	_, err := svc.Update(context.Background(), "missing", dto.UpdateRuleRequest{FieldName: "titel"})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRuleDelete(t *testing.T) {
	svc, store := newRuleServiceForTest()
	rule, err := svc.Create(context.Background(), dto.CreateRuleRequest{
		FieldName: "titel",
		RuleType:  "required",
	}, models.GlobalScope())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), rule.ID))
	assert.Empty(t, store.rules)

	err = svc.Delete(context.Background(), rule.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
