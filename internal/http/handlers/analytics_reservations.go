package handlers

import (
	"context"
	"net/http"

	"bizops-analytics/internal/analytics"
)

func (h *Handler) ReservationsSummary(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "reservations_summary", func(ctx context.Context, req MetricRequest) (analytics.Result[analytics.ReservationSummary], error) {
		return h.Analytics.Reservations.ReservationSummary(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) ReservationsPeakHours(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "reservations_peak_hours", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.ReservationHour], error) {
		return h.Analytics.Reservations.PeakReservationHours(ctx, req.BusinessID, req.Filter, req.Limit)
	})
}

func (h *Handler) ReservationsPeakDays(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "reservations_peak_days", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.ReservationDay], error) {
		return h.Analytics.Reservations.PeakReservationDays(ctx, req.BusinessID, req.Filter, req.Limit)
	})
}

func (h *Handler) ReservationsTables(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "reservations_tables", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.TableUsage], error) {
		return h.Analytics.Reservations.TableUtilization(ctx, req.BusinessID, req.Filter)
	})
}
