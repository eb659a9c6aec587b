package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertragio/clm-api/internal/dto"
	"github.com/vertragio/clm-api/internal/middleware"
	"github.com/vertragio/clm-api/internal/models"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
)

type contractServiceMock struct {
	createResp   *models.Contract
	createErr    error
	getResp      *models.Contract
	getErr       error
	listResp     []models.Contract
	listFilter   models.ContractFilter
	updateResp   *models.Contract
	updateErr    error
	updateActor  string
	historyResp  []models.ContractHistory
	createdScope models.Scope
}

func (m *contractServiceMock) Create(_ context.Context, _ dto.CreateContractRequest, scope models.Scope) (*models.Contract, error) {
	m.createdScope = scope
	return m.createResp, m.createErr
}

func (m *contractServiceMock) Get(_ context.Context, _ string) (*models.Contract, error) {
	return m.getResp, m.getErr
}

func (m *contractServiceMock) List(_ context.Context, filter models.ContractFilter) ([]models.Contract, error) {
	m.listFilter = filter
	return m.listResp, nil
}

func (m *contractServiceMock) Update(_ context.Context, _ string, _ dto.UpdateContractRequest, actor string) (*models.Contract, error) {
	m.updateActor = actor
	return m.updateResp, m.updateErr
}

func (m *contractServiceMock) History(_ context.Context, _ string) ([]models.ContractHistory, error) {
	return m.historyResp, nil
}

func tenantClaims(userID, tenantID string) *models.JWTClaims {
	claims := &models.JWTClaims{UserID: userID, Role: models.RoleOperator}
	if tenantID != "" {
		claims.TenantID = &tenantID
	}
	return claims
}

func TestContractHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &contractServiceMock{createResp: &models.Contract{ID: "c1", Titel: "Wartung Aufzug Nord"}}
	handler := NewContractHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.CreateContractRequest{Auftrag: "A-1001", Titel: "Wartung Aufzug Nord"})
	req, _ := http.NewRequest(http.MethodPost, "/contracts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, tenantClaims("user-1", "tenant-1"))

	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	tenantID, scoped := mock.createdScope.TenantID()
	require.True(t, scoped)
	assert.Equal(t, "tenant-1", tenantID)
}

func TestContractHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewContractHandler(&contractServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/contracts", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContractHandlerCreateValidationFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &contractServiceMock{createErr: appErrors.ErrValidationFailed}
	handler := NewContractHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.CreateContractRequest{Auftrag: "A-1001"})
	req, _ := http.NewRequest(http.MethodPost, "/contracts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestContractHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewContractHandler(&contractServiceMock{getErr: appErrors.ErrNotFound})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/contracts/missing", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContractHandlerListScopedToTenantClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &contractServiceMock{listResp: []models.Contract{{ID: "c1"}}}
	handler := NewContractHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	// tenant users may not break out of their scope via query params
	req, _ := http.NewRequest(http.MethodGet, "/contracts?status=offen&tenant_id=tenant-9", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, tenantClaims("user-1", "tenant-1"))

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	tenantID, scoped := mock.listFilter.Scope.TenantID()
	require.True(t, scoped)
	assert.Equal(t, "tenant-1", tenantID)
	assert.Equal(t, models.ContractStatusOffen, mock.listFilter.Status)
}

func TestContractHandlerUpdateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &contractServiceMock{updateErr: appErrors.ErrRetryableConflict}
	handler := NewContractHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	titel := "Wartung Aufzug Süd"
	body, _ := json.Marshal(dto.UpdateContractRequest{Titel: &titel})
	req, _ := http.NewRequest(http.MethodPatch, "/contracts/c1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	c.Set(middleware.ContextUserKey, tenantClaims("user-1", "tenant-1"))

	handler.Update(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "user-1", mock.updateActor)
}
