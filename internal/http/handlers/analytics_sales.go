package handlers

import (
	"context"
	"net/http"

	"bizops-analytics/internal/analytics"
)

func (h *Handler) SalesRevenue(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "sales_revenue", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.RevenueBucket], error) {
		return h.Analytics.Sales.RevenueByPeriod(ctx, req.BusinessID, req.Filter, req.Period)
	})
}

func (h *Handler) SalesOrderValue(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "sales_order_value", func(ctx context.Context, req MetricRequest) (analytics.Result[analytics.OrderValueSummary], error) {
		return h.Analytics.Sales.OrderValueSummary(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) SalesProfit(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "sales_profit", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.ProfitBucket], error) {
		return h.Analytics.Sales.ProfitByPeriod(ctx, req.BusinessID, req.Filter, req.Period)
	})
}

func (h *Handler) SalesStatusBreakdown(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "sales_status", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.StatusCount], error) {
		return h.Analytics.Sales.StatusBreakdown(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) SalesCancellationRate(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "sales_cancellation_rate", func(ctx context.Context, req MetricRequest) (analytics.Result[analytics.RateSummary], error) {
		return h.Analytics.Sales.CancellationRate(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) SalesRejectionRate(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "sales_rejection_rate", func(ctx context.Context, req MetricRequest) (analytics.Result[analytics.RateSummary], error) {
		return h.Analytics.Sales.RejectionRate(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) SalesPeakHours(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "sales_peak_hours", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.HourCount], error) {
		return h.Analytics.Sales.PeakHours(ctx, req.BusinessID, req.Filter, req.Limit)
	})
}

func (h *Handler) SalesPeakDays(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "sales_peak_days", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.DayCount], error) {
		return h.Analytics.Sales.PeakDays(ctx, req.BusinessID, req.Filter, req.Limit)
	})
}

func (h *Handler) SalesHeatmap(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "sales_heatmap", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.HeatmapCell], error) {
		return h.Analytics.Sales.SalesHeatmap(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) SalesTimeToComplete(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "sales_time_to_complete", func(ctx context.Context, req MetricRequest) (analytics.Result[analytics.CompletionTimeStats], error) {
		return h.Analytics.Sales.TimeToComplete(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) SalesDeliveryTypes(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "sales_delivery_types", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.BreakdownRow], error) {
		return h.Analytics.Sales.DeliveryTypeBreakdown(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) SalesPlatforms(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "sales_platforms", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.BreakdownRow], error) {
		return h.Analytics.Sales.PlatformBreakdown(ctx, req.BusinessID, req.Filter)
	})
}
