package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vertragio/clm-api/internal/dto"
	"github.com/vertragio/clm-api/internal/models"
	"github.com/vertragio/clm-api/internal/repository"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
)

type mockWorkflowStore struct {
	applyParams   []repository.ApplyTransitionParams
	applyErr      error
	approvals     map[string]*models.ContractApproval
	createErr     error
	resolveErr    error
	resolved      []repository.ResolveApprovalParams
	slaMarked     []string
	slas          []models.ContractSLA
	transitionLog []models.WorkflowTransition
}

func (m *mockWorkflowStore) ApplyTransition(ctx context.Context, params repository.ApplyTransitionParams) (*models.WorkflowTransition, error) {
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	m.applyParams = append(m.applyParams, params)
	return &models.WorkflowTransition{
		ID:         "t1",
		ContractID: params.ContractID,
		FromStatus: &params.FromStatus,
		ToStatus:   params.ToStatus,
		CreatedAt:  time.Now(),
	}, nil
}

func (m *mockWorkflowStore) ListTransitions(ctx context.Context, filter models.TransitionFilter) ([]models.WorkflowTransition, error) {
	return m.transitionLog, nil
}

func (m *mockWorkflowStore) CreateApproval(ctx context.Context, approval *models.ContractApproval) error {
	if m.createErr != nil {
		return m.createErr
	}
	approval.ID = "a1"
	if m.approvals == nil {
		m.approvals = make(map[string]*models.ContractApproval)
	}
	m.approvals[approval.ID] = approval
	return nil
}

func (m *mockWorkflowStore) GetApproval(ctx context.Context, id string) (*models.ContractApproval, error) {
	if approval, ok := m.approvals[id]; ok {
		cp := *approval
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockWorkflowStore) OpenApproval(ctx context.Context, contractID string) (*models.ContractApproval, error) {
	for _, approval := range m.approvals {
		if approval.ContractID == contractID && approval.Status == models.ApprovalStatusPending {
			cp := *approval
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockWorkflowStore) ResolveApproval(ctx context.Context, params repository.ResolveApprovalParams) error {
	if m.resolveErr != nil {
		return m.resolveErr
	}
	m.resolved = append(m.resolved, params)
	if approval, ok := m.approvals[params.ApprovalID]; ok {
		approval.Status = params.Decision
	}
	return nil
}

func (m *mockWorkflowStore) MarkSLAOutcome(ctx context.Context, contractID string, resolvedAt time.Time) error {
	m.slaMarked = append(m.slaMarked, contractID)
	return nil
}

func (m *mockWorkflowStore) UpsertSLA(ctx context.Context, sla *models.ContractSLA) error {
	m.slas = append(m.slas, *sla)
	return nil
}

func (m *mockWorkflowStore) ListSLAs(ctx context.Context, contractID string) ([]models.ContractSLA, error) {
	return m.slas, nil
}

type mockContractReader struct {
	contracts map[string]*models.Contract
}

func (m *mockContractReader) GetByID(ctx context.Context, id string) (*models.Contract, error) {
	if contract, ok := m.contracts[id]; ok {
		cp := *contract
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type stubValidator struct {
	violations []models.Violation
	payloads   []map[string]string
}

func (v *stubValidator) Evaluate(ctx context.Context, scope models.Scope, payload map[string]string, excludeContractID string) ([]models.Violation, error) {
	v.payloads = append(v.payloads, payload)
	return v.violations, nil
}

type stubCacheInvalidator struct {
	patterns []string
}

func (c *stubCacheInvalidator) DeleteByPattern(ctx context.Context, pattern string) error {
	c.patterns = append(c.patterns, pattern)
	return nil
}

type stubTelemetry struct {
	transitions [][2]string
}

func (s *stubTelemetry) RecordWorkflowTransition(from, to string) {
	s.transitions = append(s.transitions, [2]string{from, to})
}

func newWorkflowFixture(status models.ContractStatus) (*WorkflowService, *mockWorkflowStore, *stubCacheInvalidator, *stubTelemetry) {
	store := &mockWorkflowStore{}
	cache := &stubCacheInvalidator{}
	telemetry := &stubTelemetry{}
	contracts := &mockContractReader{contracts: map[string]*models.Contract{
		"c1": {ID: "c1", Auftrag: "A-100", Titel: "Wartung", Status: status},
	}}
	svc := NewWorkflowService(store, contracts, &stubValidator{}, cache, telemetry, zap.NewNop())
	return svc, store, cache, telemetry
}

func TestTransitionForwardStep(t *testing.T) {
	svc, store, cache, telemetry := newWorkflowFixture(models.ContractStatusOffen)

	transition, err := svc.Transition(context.Background(), "c1", dto.TransitionRequest{ToStatus: "inbearb"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusInBearb, transition.ToStatus)

	require.Len(t, store.applyParams, 1)
	params := store.applyParams[0]
	assert.Equal(t, models.ContractStatusOffen, params.FromStatus)
	require.Len(t, params.Changes, 1)
	assert.Equal(t, "status", params.Changes[0].FieldName)

	assert.NotEmpty(t, cache.patterns)
	require.Len(t, telemetry.transitions, 1)
	assert.Equal(t, [2]string{"offen", "inbearb"}, telemetry.transitions[0])
}

func TestTransitionBackwardWithoutOverride(t *testing.T) {
	svc, store, _, _ := newWorkflowFixture(models.ContractStatusFertig)

	_, err := svc.Transition(context.Background(), "c1", dto.TransitionRequest{ToStatus: "inbearb"}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.applyParams, "rejected transitions must not reach the store")
}

func TestTransitionSkipAheadWithoutOverride(t *testing.T) {
	svc, store, _, _ := newWorkflowFixture(models.ContractStatusOffen)

	_, err := svc.Transition(context.Background(), "c1", dto.TransitionRequest{ToStatus: "fertig"}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.applyParams)
}

func TestTransitionOverrideRequiresReason(t *testing.T) {
	svc, _, _, _ := newWorkflowFixture(models.ContractStatusFertig)

	_, err := svc.Transition(context.Background(), "c1", dto.TransitionRequest{ToStatus: "inbearb", Override: true}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	transition, err := svc.Transition(context.Background(), "c1",
		dto.TransitionRequest{ToStatus: "inbearb", Override: true, Reason: "rework needed"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusInBearb, transition.ToStatus)
}

func TestTransitionSameStatusRejected(t *testing.T) {
	svc, _, _, _ := newWorkflowFixture(models.ContractStatusInBearb)

	_, err := svc.Transition(context.Background(), "c1", dto.TransitionRequest{ToStatus: "inbearb"}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)
}

func TestTransitionValidatesTargetState(t *testing.T) {
	store := &mockWorkflowStore{}
	validator := &stubValidator{violations: []models.Violation{{Field: "titel", RuleType: models.RuleTypeRequired, Message: "titel is required"}}}
	contracts := &mockContractReader{contracts: map[string]*models.Contract{
		"c1": {ID: "c1", Status: models.ContractStatusOffen},
	}}
	svc := NewWorkflowService(store, contracts, validator, nil, nil, zap.NewNop())

	_, err := svc.Transition(context.Background(), "c1", dto.TransitionRequest{ToStatus: "inbearb"}, "")
	require.Error(t, err)
	e := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidationFailed.Code, e.Code)
	assert.NotNil(t, e.Details)
	assert.Empty(t, store.applyParams)

	require.Len(t, validator.payloads, 1)
	assert.Equal(t, "inbearb", validator.payloads[0]["status"], "rules must see the target status")
}

func TestTransitionLostRaceIsRetryable(t *testing.T) {
	svc, store, _, _ := newWorkflowFixture(models.ContractStatusOffen)
	store.applyErr = sql.ErrNoRows

	_, err := svc.Transition(context.Background(), "c1", dto.TransitionRequest{ToStatus: "inbearb"}, "")
	require.Error(t, err)
	assert.True(t, appErrors.IsRetryable(err))
}

func TestTransitionToFertigMarksSLAs(t *testing.T) {
	svc, store, _, _ := newWorkflowFixture(models.ContractStatusInBearb)

	_, err := svc.Transition(context.Background(), "c1", dto.TransitionRequest{ToStatus: "fertig"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, store.slaMarked)
}

func TestTransitionUnknownContract(t *testing.T) {
	svc, _, _, _ := newWorkflowFixture(models.ContractStatusOffen)

	_, err := svc.Transition(context.Background(), "missing", dto.TransitionRequest{ToStatus: "inbearb"}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRequestApprovalDuplicatePending(t *testing.T) {
	svc, store, _, _ := newWorkflowFixture(models.ContractStatusInBearb)
	store.createErr = repository.ErrDuplicatePending

	_, err := svc.RequestApproval(context.Background(), "c1", dto.RequestApprovalRequest{ApproverID: "user-2"}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrApprovalAlreadyPending.Code, appErrors.FromError(err).Code)
}

func TestResolveApproval(t *testing.T) {
	svc, store, _, _ := newWorkflowFixture(models.ContractStatusInBearb)
	store.approvals = map[string]*models.ContractApproval{
		"a1": {ID: "a1", ContractID: "c1", ApproverID: "user-2", Status: models.ApprovalStatusPending},
	}

	approval, err := svc.ResolveApproval(context.Background(), "a1", dto.ResolveApprovalRequest{Decision: "approved"})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, approval.Status)
	assert.NotNil(t, approval.ActionDate)
}

func TestResolveApprovalAlreadyDecided(t *testing.T) {
	svc, store, _, _ := newWorkflowFixture(models.ContractStatusInBearb)
	store.approvals = map[string]*models.ContractApproval{
		"a1": {ID: "a1", ContractID: "c1", Status: models.ApprovalStatusRejected},
	}

	_, err := svc.ResolveApproval(context.Background(), "a1", dto.ResolveApprovalRequest{Decision: "approved"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrApprovalNotPending.Code, appErrors.FromError(err).Code)
}

func TestResolveApprovalInvalidDecision(t *testing.T) {
	svc, _, _, _ := newWorkflowFixture(models.ContractStatusInBearb)

	_, err := svc.ResolveApproval(context.Background(), "a1", dto.ResolveApprovalRequest{Decision: "maybe"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateSLARequiresTypeAndTarget(t *testing.T) {
	svc, _, _, _ := newWorkflowFixture(models.ContractStatusOffen)

	_, err := svc.CreateSLA(context.Background(), "c1", dto.CreateSLARequest{SLAType: " ", TargetValue: ""})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	sla, err := svc.CreateSLA(context.Background(), "c1", dto.CreateSLARequest{SLAType: "resolution_time", TargetValue: "72h"})
	require.NoError(t, err)
	assert.Equal(t, models.SLAStatusPending, sla.Status)
}
