package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bizops-analytics/internal/analytics"
	"bizops-analytics/internal/middleware"

	"github.com/go-playground/validator/v10"
)

var (
	errBusinessContext = errors.New("business context required")
	errInvalidQuery    = errors.New("invalid query")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type metricQuery struct {
	BranchID     string `validate:"omitempty,max=64"`
	DeliveryType string `validate:"omitempty,max=32"`
	Platform     string `validate:"omitempty,max=32"`
	CategoryID   string `validate:"omitempty,max=64"`
	MenuID       string `validate:"omitempty,max=64"`
	Period       string `validate:"omitempty,oneof=hour day week month"`
	Limit        int    `validate:"gte=0,lte=100"`
}

// MetricRequest is a parsed, tenant-scoped analytics query.
type MetricRequest struct {
	BusinessID string
	Filter     analytics.Filter
	Period     analytics.Period
	Limit      int
}

// ParseMetricRequest reads the shared query parameters. Date-only values are
// interpreted in loc.
func ParseMetricRequest(r *http.Request, loc *time.Location) (MetricRequest, error) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || strings.TrimSpace(authCtx.BusinessID) == "" {
		return MetricRequest{}, errBusinessContext
	}

	query := r.URL.Query()
	q := metricQuery{
		BranchID:     strings.TrimSpace(query.Get("branchId")),
		DeliveryType: strings.TrimSpace(query.Get("deliveryType")),
		Platform:     strings.TrimSpace(query.Get("platform")),
		CategoryID:   strings.TrimSpace(query.Get("categoryId")),
		MenuID:       strings.TrimSpace(query.Get("menuId")),
		Period:       strings.ToLower(strings.TrimSpace(query.Get("period"))),
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return MetricRequest{}, fmt.Errorf("%w: limit must be a number", errInvalidQuery)
		}
		q.Limit = limit
	}
	if err := validate.Struct(q); err != nil {
		return MetricRequest{}, err
	}

	start, err := parseDateParam(query.Get("startDate"), loc)
	if err != nil {
		return MetricRequest{}, fmt.Errorf("%w: startDate %v", errInvalidQuery, err)
	}
	end, err := parseDateParam(query.Get("endDate"), loc)
	if err != nil {
		return MetricRequest{}, fmt.Errorf("%w: endDate %v", errInvalidQuery, err)
	}

	period, err := analytics.ParsePeriod(q.Period)
	if err != nil {
		return MetricRequest{}, err
	}

	f := analytics.Filter{
		BusinessID:   authCtx.BusinessID,
		BranchID:     q.BranchID,
		StartDate:    start,
		EndDate:      end,
		DeliveryType: q.DeliveryType,
		Platform:     q.Platform,
		CategoryID:   q.CategoryID,
		MenuID:       q.MenuID,
	}
	if err := f.Validate(); err != nil {
		return MetricRequest{}, err
	}

	return MetricRequest{BusinessID: authCtx.BusinessID, Filter: f, Period: period, Limit: q.Limit}, nil
}

func parseDateParam(value string, loc *time.Location) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("must be YYYY-MM-DD or RFC3339, got %q", value)
	}
	return &t, nil
}

// CacheParts returns the request's identity for response caching.
func (m MetricRequest) CacheParts() []string {
	return []string{
		m.Filter.BranchID,
		formatBound(m.Filter.StartDate),
		formatBound(m.Filter.EndDate),
		m.Filter.DeliveryType,
		m.Filter.Platform,
		m.Filter.CategoryID,
		m.Filter.MenuID,
		string(m.Period),
		strconv.Itoa(m.Limit),
	}
}

func formatBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
