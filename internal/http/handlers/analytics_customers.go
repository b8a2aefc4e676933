package handlers

import (
	"context"
	"net/http"

	"bizops-analytics/internal/analytics"
)

func (h *Handler) CustomersTopSpenders(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "customers_top_spenders", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.CustomerSpend], error) {
		return h.Analytics.Customers.TopSpenders(ctx, req.BusinessID, req.Filter, req.Limit)
	})
}

func (h *Handler) CustomersRecurring(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "customers_recurring", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.CustomerSpend], error) {
		return h.Analytics.Customers.RecurringCustomers(ctx, req.BusinessID, req.Filter, req.Limit)
	})
}

func (h *Handler) CustomersLifetimeValue(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "customers_lifetime_value", func(ctx context.Context, req MetricRequest) (analytics.Result[analytics.LifetimeValueReport], error) {
		return h.Analytics.Customers.LifetimeValue(ctx, req.BusinessID, req.Filter, req.Limit)
	})
}

func (h *Handler) CustomersRetention(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "customers_retention", func(ctx context.Context, req MetricRequest) (analytics.Result[analytics.RetentionReport], error) {
		return h.Analytics.Customers.Retention(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) CustomersChurn(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "customers_churn", func(ctx context.Context, req MetricRequest) (analytics.Result[analytics.ChurnReport], error) {
		return h.Analytics.Customers.Churn(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) CustomersNewVsReturning(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "customers_new_vs_returning", func(ctx context.Context, req MetricRequest) (analytics.Result[analytics.NewVsReturning], error) {
		return h.Analytics.Customers.NewVsReturning(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) CustomersResponseBehavior(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "customers_response_behavior", func(ctx context.Context, req MetricRequest) (analytics.Result[analytics.ResponseBehavior], error) {
		return h.Analytics.Customers.ResponseBehavior(ctx, req.BusinessID, req.Filter)
	})
}
