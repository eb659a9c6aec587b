package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vertragio/clm-api/internal/dto"
	"github.com/vertragio/clm-api/internal/models"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
)

type ruleAdminStore interface {
	Create(ctx context.Context, rule *models.ValidationRule) error
	GetByID(ctx context.Context, id string) (*models.ValidationRule, error)
	List(ctx context.Context, scope models.Scope) ([]models.ValidationRule, error)
	Update(ctx context.Context, rule *models.ValidationRule) error
	Delete(ctx context.Context, id string) error
}

// RuleService manages validation rule administration. Rule configs are
// structurally validated here, at the producing boundary, so the
// evaluation engine can trust their shape.
type RuleService struct {
	repo      ruleAdminStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRuleService constructs the service.
func NewRuleService(repo ruleAdminStore, validate *validator.Validate, logger *zap.Logger) *RuleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleService{repo: repo, validator: validate, logger: logger}
}

// Create validates and stores a new rule.
func (s *RuleService) Create(ctx context.Context, req dto.CreateRuleRequest, scope models.Scope) (*models.ValidationRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rule payload")
	}
	ruleType := models.RuleType(strings.ToLower(strings.TrimSpace(req.RuleType)))
	if !ruleType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported rule type")
	}
	config, err := s.normalizeConfig(ruleType, req.RuleConfig)
	if err != nil {
		return nil, err
	}
	rule := &models.ValidationRule{
		TenantID:     scope.Ref(),
		FieldName:    strings.TrimSpace(req.FieldName),
		RuleType:     ruleType,
		RuleConfig:   config,
		ErrorMessage: strings.TrimSpace(req.ErrorMessage),
		Active:       true,
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create rule")
	}
	return rule, nil
}

// List returns the rules applying to a scope, global rules included.
func (s *RuleService) List(ctx context.Context, scope models.Scope) ([]models.ValidationRule, error) {
	rules, err := s.repo.List(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rules")
	}
	return rules, nil
}

// Update overwrites a rule's mutable attributes.
func (s *RuleService) Update(ctx context.Context, id string, req dto.UpdateRuleRequest) (*models.ValidationRule, error) {
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rule")
	}
	if req.FieldName != "" {
		rule.FieldName = strings.TrimSpace(req.FieldName)
	}
	if req.RuleType != "" {
		ruleType := models.RuleType(strings.ToLower(strings.TrimSpace(req.RuleType)))
		if !ruleType.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported rule type")
		}
		rule.RuleType = ruleType
	}
	if len(req.RuleConfig) > 0 {
		config, err := s.normalizeConfig(rule.RuleType, req.RuleConfig)
		if err != nil {
			return nil, err
		}
		rule.RuleConfig = config
	}
	if req.ErrorMessage != "" {
		rule.ErrorMessage = strings.TrimSpace(req.ErrorMessage)
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if err := s.repo.Update(ctx, rule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update rule")
	}
	return rule, nil
}

// Delete removes a rule.
func (s *RuleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete rule")
	}
	return nil
}

// normalizeConfig checks the rule_config document against the shape
// required by the rule type.
func (s *RuleService) normalizeConfig(ruleType models.RuleType, raw json.RawMessage) ([]byte, error) {
	switch ruleType {
	case models.RuleTypeRequired, models.RuleTypeUnique:
		// No configuration required.
		if len(raw) == 0 {
			return []byte(`{}`), nil
		}
		if !json.Valid(raw) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "rule_config must be valid JSON")
		}
		return raw, nil

	case models.RuleTypePattern:
		var cfg models.RuleConfigPattern
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "pattern rule_config must be a JSON object")
		}
		if err := s.validator.Struct(cfg); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "pattern rule requires a pattern field")
		}
		if _, err := regexp.Compile(cfg.Pattern); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "pattern is not a valid regular expression")
		}
		return raw, nil

	case models.RuleTypeEnum:
		var cfg models.RuleConfigEnum
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "enum rule_config must be a JSON object")
		}
		if err := s.validator.Struct(cfg); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "enum rule requires a non-empty values list")
		}
		return raw, nil

	case models.RuleTypeRange:
		var cfg models.RuleConfigRange
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "range rule_config must be a JSON object")
		}
		numeric := cfg.Min != nil || cfg.Max != nil
		length := cfg.MinLength != nil || cfg.MaxLength != nil
		if numeric == length {
			return nil, appErrors.Clone(appErrors.ErrValidation, "range rule requires either numeric or length bounds")
		}
		return raw, nil

	case models.RuleTypeDateRange:
		var cfg models.RuleConfigDateRange
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date_range rule_config must be a JSON object")
		}
		if cfg.Min == "" && cfg.Max == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date_range rule requires at least one bound")
		}
		now := time.Now().UTC()
		if cfg.Min != "" {
			if _, err := resolveRelativeBound(cfg.Min, now); err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, "date_range min bound is not a valid relative expression")
			}
		}
		if cfg.Max != "" {
			if _, err := resolveRelativeBound(cfg.Max, now); err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, "date_range max bound is not a valid relative expression")
			}
		}
		return raw, nil
	}

	return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported rule type")
}
