package handlers

import (
	"context"
	"net/http"

	"bizops-analytics/internal/analytics"
)

func (h *Handler) ChatRequests(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "chat_requests", func(ctx context.Context, req MetricRequest) (analytics.Result[int64], error) {
		return h.Analytics.Chat.RequestsHandled(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) ChatConversations(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "chat_conversations", func(ctx context.Context, req MetricRequest) (analytics.Result[int64], error) {
		return h.Analytics.Chat.Conversations(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) ChatResponseTime(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "chat_response_time", func(ctx context.Context, req MetricRequest) (analytics.Result[analytics.ResponseTime], error) {
		return h.Analytics.Chat.ResponseTime(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) ChatDropOffs(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "chat_drop_offs", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.DropOffPoint], error) {
		return h.Analytics.Chat.DropOffPoints(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) ChatConversion(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "chat_conversion", func(ctx context.Context, req MetricRequest) (analytics.Result[analytics.ConversionRate], error) {
		return h.Analytics.Chat.ConversionRate(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) ChatFallbackRate(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "chat_fallback_rate", func(ctx context.Context, req MetricRequest) (analytics.Result[analytics.FallbackRate], error) {
		return h.Analytics.Chat.FallbackRate(ctx, req.BusinessID, req.Filter)
	})
}
