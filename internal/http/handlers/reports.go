package handlers

import (
	"net/http"
	"strconv"
	"time"

	"bizops-analytics/internal/reports"
	"bizops-analytics/internal/storage"
	"bizops-analytics/pkg/response"

	"go.uber.org/zap"
)

// ReportsExport renders the dashboard for the requested range as a PDF. With
// an object store configured the file is uploaded and its URL returned;
// otherwise the PDF is streamed back directly.
func (h *Handler) ReportsExport(w http.ResponseWriter, r *http.Request) {
	req, err := ParseMetricRequest(r, h.location())
	if err != nil {
		h.writeRequestError(w, err)
		return
	}

	d, err := h.Analytics.Dashboard(r.Context(), req.BusinessID, req.Filter, req.Period)
	if err != nil {
		h.writeEngineError(w, r, "report", req.BusinessID, err)
		return
	}

	pdf, err := reports.RenderDashboard(d, h.location())
	if err != nil {
		h.writeEngineError(w, r, "report", req.BusinessID, err)
		return
	}

	if h.Reports == nil {
		w.Header().Set("Content-Type", reports.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="analytics-report.pdf"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdf)
		return
	}

	key := reports.Key(req.BusinessID, d.GeneratedAt)
	url, err := h.Reports.PutObject(r.Context(), key, pdf, reports.ContentType, "private, max-age=0, no-store")
	if err != nil {
		h.Logger.Error("report upload failed", zap.String("businessId", req.BusinessID), zap.String("key", key), zap.Error(err))
		response.Error(w, http.StatusBadGateway, "UPLOAD_FAILED", "Failed to store report")
		return
	}

	response.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data": map[string]any{
			"key":         key,
			"url":         url,
			"generatedAt": d.GeneratedAt.Format(time.RFC3339),
			"degraded":    d.Degraded,
		},
	})
}

const reportLinkExpiry = 30 * time.Minute

type reportListItem struct {
	storage.Object
	URL string `json:"url"`
}

// ReportsList returns the business's previous exports, newest first.
func (h *Handler) ReportsList(w http.ResponseWriter, r *http.Request) {
	req, err := ParseMetricRequest(r, h.location())
	if err != nil {
		h.writeRequestError(w, err)
		return
	}
	if h.Reports == nil {
		response.Success(w, []reportListItem{})
		return
	}

	objects, err := h.Reports.List(r.Context(), reports.Prefix(req.BusinessID))
	if err != nil {
		h.Logger.Error("report listing failed", zap.String("businessId", req.BusinessID), zap.Error(err))
		response.Error(w, http.StatusBadGateway, "STORAGE_ERROR", "Failed to list reports")
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(objects) > limit {
		objects = objects[:limit]
	}

	out := make([]reportListItem, 0, len(objects))
	for _, obj := range objects {
		url, err := h.Reports.DownloadURL(r.Context(), obj.Key, reportLinkExpiry)
		if err != nil {
			h.Logger.Warn("report link failed", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		out = append(out, reportListItem{Object: obj, URL: url})
	}
	response.Success(w, out)
}
