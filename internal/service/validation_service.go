package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vertragio/clm-api/internal/models"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
)

type ruleStore interface {
	ListActiveForFields(ctx context.Context, scope models.Scope, fields []string) ([]models.ValidationRule, error)
}

type uniqueFieldChecker interface {
	FieldValueExists(ctx context.Context, scope models.Scope, field, value, excludeID string) (bool, error)
}

// ValidationService evaluates tenant-scoped rules against a contract
// payload. Every applicable rule is evaluated; the caller receives the
// full violation list rather than the first failure.
type ValidationService struct {
	rules     ruleStore
	contracts uniqueFieldChecker
	logger    *zap.Logger
	now       func() time.Time
}

// NewValidationService constructs the engine.
func NewValidationService(rules ruleStore, contracts uniqueFieldChecker, logger *zap.Logger) *ValidationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValidationService{rules: rules, contracts: contracts, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Evaluate runs all active rules for the scope (tenant plus global)
// against the payload and returns every violation. excludeContractID is
// skipped by unique checks so updates do not collide with themselves.
func (s *ValidationService) Evaluate(ctx context.Context, scope models.Scope, payload map[string]string, excludeContractID string) ([]models.Violation, error) {
	fields := make([]string, 0, len(payload))
	for field := range payload {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	rules, err := s.rules.ListActiveForFields(ctx, scope, fields)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load validation rules")
	}

	var violations []models.Violation
	for _, rule := range rules {
		value := payload[rule.FieldName]
		violated, err := s.evaluateRule(ctx, scope, rule, value, excludeContractID)
		if err != nil {
			return nil, err
		}
		if violated {
			violations = append(violations, models.Violation{
				Field:    rule.FieldName,
				RuleType: rule.RuleType,
				Message:  ruleMessage(rule),
			})
		}
	}
	return violations, nil
}

func (s *ValidationService) evaluateRule(ctx context.Context, scope models.Scope, rule models.ValidationRule, value, excludeContractID string) (bool, error) {
	trimmed := strings.TrimSpace(value)

	switch rule.RuleType {
	case models.RuleTypeRequired:
		return trimmed == "", nil
	}

	// Only required catches empty values; the remaining rule types pass
	// on absent input so optional fields stay optional.
	if trimmed == "" {
		return false, nil
	}

	switch rule.RuleType {
	case models.RuleTypePattern:
		var cfg models.RuleConfigPattern
		if err := json.Unmarshal(rule.RuleConfig, &cfg); err != nil || cfg.Pattern == "" {
			s.logger.Warn("skipping pattern rule with invalid config", zap.String("rule_id", rule.ID))
			return false, nil
		}
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			s.logger.Warn("skipping pattern rule with invalid regexp", zap.String("rule_id", rule.ID), zap.Error(err))
			return false, nil
		}
		return !re.MatchString(trimmed), nil

	case models.RuleTypeEnum:
		var cfg models.RuleConfigEnum
		if err := json.Unmarshal(rule.RuleConfig, &cfg); err != nil || len(cfg.Values) == 0 {
			s.logger.Warn("skipping enum rule with invalid config", zap.String("rule_id", rule.ID))
			return false, nil
		}
		for _, allowed := range cfg.Values {
			if trimmed == allowed {
				return false, nil
			}
		}
		return true, nil

	case models.RuleTypeRange:
		var cfg models.RuleConfigRange
		if err := json.Unmarshal(rule.RuleConfig, &cfg); err != nil {
			s.logger.Warn("skipping range rule with invalid config", zap.String("rule_id", rule.ID))
			return false, nil
		}
		if cfg.MinLength != nil || cfg.MaxLength != nil {
			length := len([]rune(trimmed))
			if cfg.MinLength != nil && length < *cfg.MinLength {
				return true, nil
			}
			if cfg.MaxLength != nil && length > *cfg.MaxLength {
				return true, nil
			}
			return false, nil
		}
		number, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return true, nil
		}
		if cfg.Min != nil && number < *cfg.Min {
			return true, nil
		}
		if cfg.Max != nil && number > *cfg.Max {
			return true, nil
		}
		return false, nil

	case models.RuleTypeDateRange:
		var cfg models.RuleConfigDateRange
		if err := json.Unmarshal(rule.RuleConfig, &cfg); err != nil {
			s.logger.Warn("skipping date_range rule with invalid config", zap.String("rule_id", rule.ID))
			return false, nil
		}
		date, err := parseDateValue(trimmed)
		if err != nil {
			return true, nil
		}
		now := s.now()
		if cfg.Min != "" {
			bound, err := resolveRelativeBound(cfg.Min, now)
			if err != nil {
				s.logger.Warn("skipping date_range rule with invalid min bound", zap.String("rule_id", rule.ID), zap.Error(err))
			} else if date.Before(bound) {
				return true, nil
			}
		}
		if cfg.Max != "" {
			bound, err := resolveRelativeBound(cfg.Max, now)
			if err != nil {
				s.logger.Warn("skipping date_range rule with invalid max bound", zap.String("rule_id", rule.ID), zap.Error(err))
			} else if date.After(bound) {
				return true, nil
			}
		}
		return false, nil

	case models.RuleTypeUnique:
		exists, err := s.contracts.FieldValueExists(ctx, scope, rule.FieldName, trimmed, excludeContractID)
		if err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check field uniqueness")
		}
		return exists, nil
	}

	s.logger.Warn("skipping rule with unknown type", zap.String("rule_id", rule.ID), zap.String("rule_type", string(rule.RuleType)))
	return false, nil
}

func ruleMessage(rule models.ValidationRule) string {
	if rule.ErrorMessage != "" {
		return rule.ErrorMessage
	}
	return fmt.Sprintf("%s failed %s validation", rule.FieldName, rule.RuleType)
}

func parseDateValue(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

var relativeBoundPattern = regexp.MustCompile(`^([+-]?\d+)\s*(day|week|month|year)s?$`)

// resolveRelativeBound turns expressions like "-30 days" or "+2 years"
// into an absolute time anchored at now.
func resolveRelativeBound(expr string, now time.Time) (time.Time, error) {
	matches := relativeBoundPattern.FindStringSubmatch(strings.TrimSpace(strings.ToLower(expr)))
	if matches == nil {
		return time.Time{}, fmt.Errorf("invalid relative bound %q", expr)
	}
	amount, err := strconv.Atoi(matches[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid relative amount %q", matches[1])
	}
	switch matches[2] {
	case "day":
		return now.AddDate(0, 0, amount), nil
	case "week":
		return now.AddDate(0, 0, amount*7), nil
	case "month":
		return now.AddDate(0, amount, 0), nil
	case "year":
		return now.AddDate(amount, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("invalid relative unit %q", matches[2])
}
