package handlers

import (
	"context"
	"net/http"

	"bizops-analytics/internal/analytics"
)

func (h *Handler) ItemsPopular(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "items_popular", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.ItemCounter], error) {
		return h.Analytics.Items.PopularItems(ctx, req.BusinessID, req.Filter, req.Limit)
	})
}

func (h *Handler) ItemsMostDelivered(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "items_most_delivered", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.ItemCounter], error) {
		return h.Analytics.Items.MostDeliveredItems(ctx, req.BusinessID, req.Filter, req.Limit)
	})
}

func (h *Handler) ItemsMostOrdered(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "items_most_ordered", func(ctx context.Context, req MetricRequest) (analytics.Result[*analytics.ItemStat], error) {
		return h.Analytics.Items.MostOrderedItem(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) ItemsMostRewarding(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "items_most_rewarding", func(ctx context.Context, req MetricRequest) (analytics.Result[*analytics.ItemStat], error) {
		return h.Analytics.Items.MostRewardingItem(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) ItemsRevenue(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "items_revenue", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.ItemStat], error) {
		return h.Analytics.Items.RevenuePerItem(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) ItemsProfit(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "items_profit", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.ItemStat], error) {
		return h.Analytics.Items.ProfitPerItem(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) ItemsTrend(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "items_trend", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.ItemTrend], error) {
		return h.Analytics.Items.PopularityTrend(ctx, req.BusinessID, req.Filter)
	})
}

func (h *Handler) ItemsBoughtTogether(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "items_bought_together", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.ItemPair], error) {
		return h.Analytics.Items.FrequentlyBoughtTogether(ctx, req.BusinessID, req.Filter, req.Limit)
	})
}

func (h *Handler) ItemsTimeOfDay(w http.ResponseWriter, r *http.Request) {
	serveMetric(h, w, r, "items_time_of_day", func(ctx context.Context, req MetricRequest) (analytics.Result[[]analytics.TimeSlotRanking], error) {
		return h.Analytics.Items.TimeOfDayRankings(ctx, req.BusinessID, req.Filter, req.Limit)
	})
}
