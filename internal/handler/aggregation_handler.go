package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vertragio/clm-api/internal/models"
	appErrors "github.com/vertragio/clm-api/pkg/errors"
	"github.com/vertragio/clm-api/pkg/response"
)

type aggregationService interface {
	Get(ctx context.Context, scope models.Scope, date time.Time) (*models.ContractMetrics, error)
	ComputeDaily(ctx context.Context, scope models.Scope, date time.Time) (*models.ContractMetrics, error)
	Range(ctx context.Context, scope models.Scope, from, to time.Time) ([]models.ContractMetrics, error)
	Export(ctx context.Context, scope models.Scope, from, to time.Time, format string) ([]byte, string, error)
}

// AggregationHandler exposes the daily contract rollups.
type AggregationHandler struct {
	service aggregationService
}

// NewAggregationHandler builds a new handler.
func NewAggregationHandler(service aggregationService) *AggregationHandler {
	return &AggregationHandler{service: service}
}

// Daily godoc
// @Summary Get the daily rollup for a date
// @Tags Metrics
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /metrics/daily [get]
func (h *AggregationHandler) Daily(c *gin.Context) {
	date, err := queryDate(c, "date", time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	metrics, err := h.service.Get(c.Request.Context(), scopeFromContext(c), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, metrics, nil)
}

// Recompute godoc
// @Summary Force a recompute of the daily rollup
// @Tags Metrics
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /metrics/recompute [post]
func (h *AggregationHandler) Recompute(c *gin.Context) {
	date, err := queryDate(c, "date", time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	metrics, err := h.service.ComputeDaily(c.Request.Context(), scopeFromContext(c), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, metrics, nil)
}

// Range godoc
// @Summary List rollups between two dates
// @Tags Metrics
// @Produce json
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /metrics/range [get]
func (h *AggregationHandler) Range(c *gin.Context) {
	from, to, err := rangeBounds(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	rows, err := h.service.Range(c.Request.Context(), scopeFromContext(c), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Export godoc
// @Summary Export rollups as CSV or PDF
// @Tags Metrics
// @Produce text/csv
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} byte
// @Router /metrics/export [get]
func (h *AggregationHandler) Export(c *gin.Context) {
	from, to, err := rangeBounds(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.service.Export(c.Request.Context(), scopeFromContext(c), from, to, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("contract-metrics-%s-%s.%s", from.Format("2006-01-02"), to.Format("2006-01-02"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

func rangeBounds(c *gin.Context) (time.Time, time.Time, error) {
	from, err := queryDate(c, "from", time.Time{})
	if err != nil || from.IsZero() {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "from date is required as YYYY-MM-DD")
	}
	to, err := queryDate(c, "to", time.Time{})
	if err != nil || to.IsZero() {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "to date is required as YYYY-MM-DD")
	}
	return from, to, nil
}

func queryDate(c *gin.Context, name string, fallback time.Time) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be YYYY-MM-DD", name))
	}
	return date, nil
}
