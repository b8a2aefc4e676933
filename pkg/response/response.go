package response

import (
	"net/http"

	"github.com/goccy/go-json"
)

// Meta describes how a metric was produced.
type Meta struct {
	Source   string `json:"source,omitempty"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
	Cached   bool   `json:"cached"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func SuccessWithMeta(w http.ResponseWriter, data any, meta Meta) {
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
		"meta":    meta,
	})
}

func Error(w http.ResponseWriter, status int, code string, message string) {
	JSON(w, status, map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}
