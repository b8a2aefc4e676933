package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bizops-analytics/internal/analytics"
	"bizops-analytics/internal/middleware"
	"bizops-analytics/pkg/response"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

func isValidationError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs) ||
		errors.Is(err, errInvalidQuery) ||
		errors.Is(err, analytics.ErrBusinessRequired) ||
		errors.Is(err, analytics.ErrInvalidRange) ||
		errors.Is(err, analytics.ErrInvalidPeriod)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "oneof":
			parts = append(parts, fe.Field()+" must be one of "+fe.Param())
		case "max":
			parts = append(parts, fe.Field()+" is too long")
		case "min", "gte", "lte":
			parts = append(parts, fe.Field()+" is out of range")
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}

func (h *Handler) writeRequestError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBusinessContext) {
		response.Error(w, http.StatusBadRequest, "BUSINESS_REQUIRED", "Business context required")
		return
	}
	response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", validationMessage(err))
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, metric string, businessID string, err error) {
	if isValidationError(err) {
		h.writeRequestError(w, err)
		return
	}
	h.Logger.Error("analytics computation failed",
		zap.String("metric", metric),
		zap.String("businessId", businessID),
		zap.String("requestId", middleware.GetRequestID(r.Context())),
		zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
		zap.Error(err),
	)
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute "+metric)
}
