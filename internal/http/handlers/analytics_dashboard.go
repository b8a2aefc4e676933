package handlers

import (
	"net/http"

	"bizops-analytics/internal/analytics"
	"bizops-analytics/internal/cache"
	"bizops-analytics/pkg/response"
)

const dashboardCachePrefix = "dashboard"

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	req, err := ParseMetricRequest(r, h.location())
	if err != nil {
		h.writeRequestError(w, err)
		return
	}

	key := cache.Key(dashboardCachePrefix, req.BusinessID, req.CacheParts()...)
	if cached, ok := h.cacheGet(key); ok {
		if d, ok := cached.(analytics.Dashboard); ok {
			response.SuccessWithMeta(w, d, dashboardMeta(d, true))
			return
		}
	}

	d, err := h.Analytics.Dashboard(r.Context(), req.BusinessID, req.Filter, req.Period)
	if err != nil {
		h.writeEngineError(w, r, dashboardCachePrefix, req.BusinessID, err)
		return
	}
	if len(d.Degraded) == 0 {
		h.cacheSet(key, d)
	}
	response.SuccessWithMeta(w, d, dashboardMeta(d, false))
}

func dashboardMeta(d analytics.Dashboard, cached bool) response.Meta {
	meta := response.Meta{Degraded: len(d.Degraded) > 0, Cached: cached}
	if meta.Degraded {
		meta.Reason = d.Degraded[0].Section + ": " + d.Degraded[0].Reason
	}
	return meta
}

// DatastoreStatus reports which datastores serve the caller's business.
func (h *Handler) DatastoreStatus(w http.ResponseWriter, r *http.Request) {
	req, err := ParseMetricRequest(r, h.location())
	if err != nil {
		h.writeRequestError(w, err)
		return
	}
	status, err := h.Analytics.Status(r.Context(), req.BusinessID)
	if err != nil {
		h.writeEngineError(w, r, "status", req.BusinessID, err)
		return
	}
	response.Success(w, status)
}
