package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vertragio/clm-api/internal/models"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
	"github.com/vertragio/clm-api/pkg/export"
)

type metricsStore interface {
	Upsert(ctx context.Context, metrics *models.ContractMetrics) error
	Get(ctx context.Context, scope models.Scope, date time.Time) (*models.ContractMetrics, error)
	Range(ctx context.Context, scope models.Scope, from, to time.Time) ([]models.ContractMetrics, error)
}

type aggregationSource interface {
	CountsByStatus(ctx context.Context, scope models.Scope) (map[models.ContractStatus]int, error)
	CountCreatedOn(ctx context.Context, scope models.Scope, date time.Time) (int, error)
}

type completionSource interface {
	CountCompletedOn(ctx context.Context, scope models.Scope, date time.Time) (int, error)
}

type tenantLister interface {
	ListActive(ctx context.Context) ([]models.Tenant, error)
}

type metricsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// AggregationService computes the daily contract rollups. Each run is a
// full recomputation from live rows; nothing is incremented in place, so
// repeated runs for the same day converge on the same values.
type AggregationService struct {
	metrics     metricsStore
	contracts   aggregationSource
	transitions completionSource
	tenants     tenantLister
	cache       metricsCache
	cacheTTL    time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewAggregationService constructs the service. cache may be nil.
func NewAggregationService(metrics metricsStore, contracts aggregationSource, transitions completionSource, tenants tenantLister, cache metricsCache, cacheTTL time.Duration, logger *zap.Logger) *AggregationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AggregationService{
		metrics:     metrics,
		contracts:   contracts,
		transitions: transitions,
		tenants:     tenants,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// ComputeDaily recomputes and stores the rollup for one scope and date.
func (s *AggregationService) ComputeDaily(ctx context.Context, scope models.Scope, date time.Time) (*models.ContractMetrics, error) {
	counts, err := s.contracts.CountsByStatus(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count contracts by status")
	}
	distribution := models.StatusCounts{
		Offen:   counts[models.ContractStatusOffen],
		InBearb: counts[models.ContractStatusInBearb],
		Fertig:  counts[models.ContractStatusFertig],
	}
	total := distribution.Offen + distribution.InBearb + distribution.Fertig

	newToday, err := s.contracts.CountCreatedOn(ctx, scope, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count new contracts")
	}
	completedToday, err := s.transitions.CountCompletedOn(ctx, scope, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed contracts")
	}

	distributionJSON, err := json.Marshal(distribution)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode status distribution")
	}

	metrics := &models.ContractMetrics{
		TenantID:           scope.Ref(),
		Date:               truncateToDate(date),
		TotalContracts:     total,
		StatusDistribution: distributionJSON,
		CompletionRate:     completionRate(distribution.Fertig, total),
		NewContractsToday:  newToday,
		CompletedToday:     completedToday,
		ComputedAt:         s.now().UTC(),
	}
	if err := s.metrics.Upsert(ctx, metrics); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store daily metrics")
	}

	if s.cache != nil {
		key := metricsCacheKey(scope, metrics.Date)
		if err := s.cache.Set(ctx, key, metrics, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache daily metrics", zap.String("key", key), zap.Error(err))
		}
	}
	return metrics, nil
}

// RunDailyForAllScopes recomputes today's rollup for the global scope
// and every active tenant. One failing scope does not stop the run.
func (s *AggregationService) RunDailyForAllScopes(ctx context.Context) error {
	date := truncateToDate(s.now().UTC())
	scopes := []models.Scope{models.GlobalScope()}
	if s.tenants != nil {
		tenants, err := s.tenants.ListActive(ctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tenants for aggregation")
		}
		for _, tenant := range tenants {
			scopes = append(scopes, models.ForTenant(tenant.ID))
		}
	}

	var failed int
	for _, scope := range scopes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.ComputeDaily(ctx, scope, date); err != nil {
			failed++
			tenantID, _ := scope.TenantID()
			s.logger.Error("daily aggregation failed for scope",
				zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
	if failed > 0 {
		return appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("daily aggregation failed for %d of %d scopes", failed, len(scopes)))
	}
	return nil
}

// Get returns the rollup for (scope, date), reading through the redis
// cache. A stale row is recomputed before it is returned; a missing row
// is computed on first access.
func (s *AggregationService) Get(ctx context.Context, scope models.Scope, date time.Time) (*models.ContractMetrics, error) {
	date = truncateToDate(date)
	if s.cache != nil {
		var cached models.ContractMetrics
		if err := s.cache.Get(ctx, metricsCacheKey(scope, date), &cached); err == nil && !cached.Stale {
			return &cached, nil
		}
	}

	metrics, err := s.metrics.Get(ctx, scope, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.ComputeDaily(ctx, scope, date)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load daily metrics")
	}
	if metrics.Stale {
		return s.ComputeDaily(ctx, scope, date)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, metricsCacheKey(scope, date), metrics, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache daily metrics", zap.Error(err))
		}
	}
	return metrics, nil
}

// Range returns stored rollups between two dates inclusive.
func (s *AggregationService) Range(ctx context.Context, scope models.Scope, from, to time.Time) ([]models.ContractMetrics, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end precedes range start")
	}
	rows, err := s.metrics.Range(ctx, scope, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load metrics range")
	}
	return rows, nil
}

// Export renders a date range of rollups as CSV or PDF.
func (s *AggregationService) Export(ctx context.Context, scope models.Scope, from, to time.Time, format string) ([]byte, string, error) {
	rows, err := s.Range(ctx, scope, from, to)
	if err != nil {
		return nil, "", err
	}
	dataset := metricsDataset(rows)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv", "":
		payload, err := export.NewCSVExporter().Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := export.NewPDFExporter().Render(dataset, "Vertragsmetriken")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func metricsDataset(rows []models.ContractMetrics) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"date", "total", "offen", "inbearb", "fertig", "completion_rate", "new_today", "completed_today"},
	}
	for _, row := range rows {
		var distribution models.StatusCounts
		if len(row.StatusDistribution) > 0 {
			_ = json.Unmarshal(row.StatusDistribution, &distribution)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"date":            row.Date.Format("2006-01-02"),
			"total":           strconv.Itoa(row.TotalContracts),
			"offen":           strconv.Itoa(distribution.Offen),
			"inbearb":         strconv.Itoa(distribution.InBearb),
			"fertig":          strconv.Itoa(distribution.Fertig),
			"completion_rate": strconv.FormatFloat(row.CompletionRate, 'f', 2, 64),
			"new_today":       strconv.Itoa(row.NewContractsToday),
			"completed_today": strconv.Itoa(row.CompletedToday),
		})
	}
	return dataset
}

// completionRate is the share of completed contracts in percent, rounded
// to two decimals. Zero contracts yields zero, not NaN.
func completionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*10000) / 100
}

func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func metricsCacheKey(scope models.Scope, date time.Time) string {
	return fmt.Sprintf("metrics:%s:%s", scopeCacheSegment(scope), date.UTC().Format("2006-01-02"))
}

func metricsCachePattern(scope models.Scope) string {
	return fmt.Sprintf("metrics:%s:*", scopeCacheSegment(scope))
}

func scopeCacheSegment(scope models.Scope) string {
	if id, ok := scope.TenantID(); ok {
		return id
	}
	return "global"
}
