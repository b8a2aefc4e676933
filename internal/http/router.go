package httpapi

import (
	"net/http"

	"bizops-analytics/internal/config"
	"bizops-analytics/internal/http/handlers"
	"bizops-analytics/internal/middleware"
	"bizops-analytics/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(h *handlers.Handler, logger *zap.Logger, cfg config.Config, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"X-Request-Id",
				"Cache-Control",
				"Pragma",
			},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/analytics", func(r chi.Router) {
		r.Use(middleware.BusinessAuth(cfg.JWTSecret))
		r.Use(middleware.TenantRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/dashboard", h.Dashboard)
		r.Get("/status", h.DatastoreStatus)
		r.Get("/reports", h.ReportsList)
		r.Post("/reports", h.ReportsExport)

		r.Route("/sales", func(r chi.Router) {
			r.Get("/revenue", h.SalesRevenue)
			r.Get("/order-value", h.SalesOrderValue)
			r.Get("/profit", h.SalesProfit)
			r.Get("/status", h.SalesStatusBreakdown)
			r.Get("/cancellation-rate", h.SalesCancellationRate)
			r.Get("/rejection-rate", h.SalesRejectionRate)
			r.Get("/peak-hours", h.SalesPeakHours)
			r.Get("/peak-days", h.SalesPeakDays)
			r.Get("/heatmap", h.SalesHeatmap)
			r.Get("/time-to-complete", h.SalesTimeToComplete)
			r.Get("/delivery-types", h.SalesDeliveryTypes)
			r.Get("/platforms", h.SalesPlatforms)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/top-spenders", h.CustomersTopSpenders)
			r.Get("/recurring", h.CustomersRecurring)
			r.Get("/lifetime-value", h.CustomersLifetimeValue)
			r.Get("/retention", h.CustomersRetention)
			r.Get("/churn", h.CustomersChurn)
			r.Get("/new-vs-returning", h.CustomersNewVsReturning)
			r.Get("/response-behavior", h.CustomersResponseBehavior)
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/popular", h.ItemsPopular)
			r.Get("/most-delivered", h.ItemsMostDelivered)
			r.Get("/most-ordered", h.ItemsMostOrdered)
			r.Get("/most-rewarding", h.ItemsMostRewarding)
			r.Get("/revenue", h.ItemsRevenue)
			r.Get("/profit", h.ItemsProfit)
			r.Get("/trend", h.ItemsTrend)
			r.Get("/bought-together", h.ItemsBoughtTogether)
			r.Get("/time-of-day", h.ItemsTimeOfDay)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Get("/requests", h.ChatRequests)
			r.Get("/conversations", h.ChatConversations)
			r.Get("/response-time", h.ChatResponseTime)
			r.Get("/drop-offs", h.ChatDropOffs)
			r.Get("/conversion", h.ChatConversion)
			r.Get("/fallback-rate", h.ChatFallbackRate)
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/summary", h.ReservationsSummary)
			r.Get("/peak-hours", h.ReservationsPeakHours)
			r.Get("/peak-days", h.ReservationsPeakDays)
			r.Get("/tables", h.ReservationsTables)
		})
	})

	r.With(middleware.CronAuth(cfg.CronSecret)).Post("/internal/cache/flush", h.CacheFlush)

	if wsServer != nil {
		r.With(middleware.BusinessAuth(cfg.JWTSecret)).Get("/ws/analytics/dashboard", wsServer.DashboardWS)
	}

	return r
}
