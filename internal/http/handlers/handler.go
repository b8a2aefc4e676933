package handlers

import (
	"context"
	"time"

	"bizops-analytics/internal/analytics"
	"bizops-analytics/internal/cache"
	"bizops-analytics/internal/config"
	"bizops-analytics/internal/storage"

	"go.uber.org/zap"
)

// ReportStore keeps rendered reports.
type ReportStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string, cacheControl string) (string, error)
	List(ctx context.Context, prefix string) ([]storage.Object, error)
	DownloadURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

type Handler struct {
	Analytics *analytics.Service
	Cache     *cache.TTL
	Reports   ReportStore
	Logger    *zap.Logger
	Config    config.Config
	Location  *time.Location
}

func (h *Handler) cacheGet(key string) (any, bool) {
	if h.Cache == nil {
		return nil, false
	}
	return h.Cache.Get(key)
}

func (h *Handler) cacheSet(key string, value any) {
	if h.Cache == nil {
		return
	}
	h.Cache.Set(key, value, h.Config.AnalyticsCacheTTL)
}

func (h *Handler) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}
