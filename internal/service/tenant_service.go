package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vertragio/clm-api/internal/dto"
	"github.com/vertragio/clm-api/internal/models"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type tenantStore interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	ListActive(ctx context.Context) ([]models.Tenant, error)
	UpdateSettings(ctx context.Context, id string, settings []byte) error
	Deactivate(ctx context.Context, id string, at time.Time) error
}

// TenantService manages tenant onboarding and lifecycle. Tenants are
// only ever soft-deactivated.
type TenantService struct {
	repo   tenantStore
	logger *zap.Logger
}

// NewTenantService constructs the service.
func NewTenantService(repo tenantStore, logger *zap.Logger) *TenantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantService{repo: repo, logger: logger}
}

// Create onboards a new tenant.
func (s *TenantService) Create(ctx context.Context, req dto.CreateTenantRequest) (*models.Tenant, error) {
	name := strings.TrimSpace(req.Name)
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	if !slugPattern.MatchString(slug) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "slug must be lowercase letters, digits and hyphens")
	}
	if _, err := s.repo.GetBySlug(ctx, slug); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "slug already in use")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check tenant slug")
	}

	var settings []byte
	if len(req.Settings) > 0 {
		if !json.Valid(req.Settings) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "settings must be a valid JSON document")
		}
		settings = req.Settings
	}

	tenant := &models.Tenant{
		Name:     name,
		Slug:     slug,
		Active:   true,
		Settings: settings,
	}
	if err := s.repo.Create(ctx, tenant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create tenant")
	}
	s.logger.Info("tenant onboarded", zap.String("tenant_id", tenant.ID), zap.String("slug", slug))
	return tenant, nil
}

// Get returns one tenant by id.
func (s *TenantService) Get(ctx context.Context, id string) (*models.Tenant, error) {
	tenant, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tenant")
	}
	return tenant, nil
}

// ListActive returns all active tenants.
func (s *TenantService) ListActive(ctx context.Context) ([]models.Tenant, error) {
	tenants, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tenants")
	}
	return tenants, nil
}

// UpdateSettings replaces the opaque settings document.
func (s *TenantService) UpdateSettings(ctx context.Context, id string, settings json.RawMessage) (*models.Tenant, error) {
	if len(settings) == 0 || !json.Valid(settings) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "settings must be a valid JSON document")
	}
	if err := s.repo.UpdateSettings(ctx, id, settings); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update tenant settings")
	}
	return s.Get(ctx, id)
}

// Deactivate soft-disables a tenant. Already-inactive tenants conflict.
func (s *TenantService) Deactivate(ctx context.Context, id string) (*models.Tenant, error) {
	if err := s.repo.Deactivate(ctx, id, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := s.Get(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, appErrors.Clone(appErrors.ErrConflict, "tenant is already deactivated")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate tenant")
	}
	return s.Get(ctx, id)
}
