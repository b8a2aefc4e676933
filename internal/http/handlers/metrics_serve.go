package handlers

import (
	"context"
	"net/http"

	"bizops-analytics/internal/analytics"
	"bizops-analytics/internal/cache"
	"bizops-analytics/pkg/response"
)

type cachedMetric struct {
	Data any
	Meta response.Meta
}

type metricFunc[T any] func(ctx context.Context, req MetricRequest) (analytics.Result[T], error)

// serveMetric parses the request, answers from cache when possible and
// otherwise runs the metric. Degraded results are not cached so recovery of a
// datastore shows up on the next request.
func serveMetric[T any](h *Handler, w http.ResponseWriter, r *http.Request, name string, run metricFunc[T]) {
	req, err := ParseMetricRequest(r, h.location())
	if err != nil {
		h.writeRequestError(w, err)
		return
	}

	key := cache.Key(name, req.BusinessID, req.CacheParts()...)
	if cached, ok := h.cacheGet(key); ok {
		if entry, ok := cached.(cachedMetric); ok {
			meta := entry.Meta
			meta.Cached = true
			response.SuccessWithMeta(w, entry.Data, meta)
			return
		}
	}

	res, err := run(r.Context(), req)
	if err != nil {
		h.writeEngineError(w, r, name, req.BusinessID, err)
		return
	}

	meta := response.Meta{Source: string(res.Source), Degraded: res.Degraded, Reason: res.Reason}
	if !res.Degraded {
		h.cacheSet(key, cachedMetric{Data: res.Data, Meta: meta})
	}
	response.SuccessWithMeta(w, res.Data, meta)
}
