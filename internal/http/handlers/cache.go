package handlers

import (
	"net/http"
	"strings"

	"bizops-analytics/internal/metrics"
	"bizops-analytics/pkg/response"

	"go.uber.org/zap"
)

// CacheFlush drops cached analytics for one business, or everything when no
// businessId is given.
func (h *Handler) CacheFlush(w http.ResponseWriter, r *http.Request) {
	if h.Cache == nil {
		response.Success(w, map[string]any{"removed": 0})
		return
	}

	businessID := strings.TrimSpace(r.URL.Query().Get("businessId"))
	if businessID == "" {
		removed := h.Cache.Len()
		h.Cache.Flush()
		metrics.RecordInvalidation("manual")
		h.Logger.Info("analytics cache flushed", zap.Int("removed", removed))
		response.Success(w, map[string]any{"removed": removed})
		return
	}

	removed := h.Cache.InvalidateBusiness(businessID)
	metrics.RecordInvalidation("manual")
	h.Logger.Info("analytics cache invalidated", zap.String("businessId", businessID), zap.Int("removed", removed))
	response.Success(w, map[string]any{"businessId": businessID, "removed": removed})
}
