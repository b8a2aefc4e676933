package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bizops-analytics/internal/metrics"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	EventsExchange  = "bizops.events"
	InvalidateQueue = "analytics.invalidate"
)

// Topic wildcard '#' matches multi-segment keys such as 'order.status.updated'.
var invalidationRoutingKeys = []string{"order.#", "reservation.#", "message.#"}

var ErrMissingBusiness = errors.New("event has no businessId")

// InvalidationEvent is the part of a domain event the analytics service reads.
type InvalidationEvent struct {
	BusinessID string `json:"businessId"`
	Type       string `json:"type,omitempty"`
}

// Invalidator drops cached results for a business.
type Invalidator interface {
	InvalidateBusiness(businessID string, prefixes ...string) int
}

// Notifier is told when a business's analytics changed.
type Notifier interface {
	NotifyBusiness(businessID string)
}

// EnsureInvalidationTopology declares the exchange, queue and bindings the
// invalidation consumer reads from.
func EnsureInvalidationTopology(qc *Client) error {
	if err := qc.EnsureExchange(EventsExchange); err != nil {
		return fmt.Errorf("declare exchange %s: %w", EventsExchange, err)
	}
	if _, err := qc.EnsureQueue(InvalidateQueue); err != nil {
		return fmt.Errorf("declare queue %s: %w", InvalidateQueue, err)
	}
	for _, key := range invalidationRoutingKeys {
		if err := qc.BindQueue(InvalidateQueue, EventsExchange, key); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// InvalidationHandler returns the consumer callback. Malformed events are
// logged and reported as ErrPermanent so the consumer drops them unretried.
func InvalidationHandler(cache Invalidator, notifier Notifier, logger *zap.Logger) HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, body []byte) error {
		event, err := decodeInvalidation(body)
		if err != nil {
			logger.Warn("dropping analytics invalidation event", zap.Error(err), zap.ByteString("body", body))
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}

		removed := 0
		if cache != nil {
			removed = cache.InvalidateBusiness(event.BusinessID)
		}
		metrics.RecordInvalidation("event")
		if notifier != nil {
			notifier.NotifyBusiness(event.BusinessID)
		}
		logger.Debug("analytics cache invalidated",
			zap.String("businessId", event.BusinessID),
			zap.String("type", event.Type),
			zap.Int("removed", removed),
		)
		return nil
	}
}

func decodeInvalidation(body []byte) (InvalidationEvent, error) {
	var event InvalidationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return InvalidationEvent{}, fmt.Errorf("decode event: %w", err)
	}
	event.BusinessID = strings.TrimSpace(event.BusinessID)
	if event.BusinessID == "" {
		return InvalidationEvent{}, ErrMissingBusiness
	}
	return event, nil
}

// PublishInvalidation emits an invalidation event for businessID.
func PublishInvalidation(ctx context.Context, qc *Client, businessID string, eventType string) error {
	if eventType == "" {
		eventType = "analytics.refresh"
	}
	return qc.PublishJSON(ctx, EventsExchange, "order.analytics.refresh", InvalidationEvent{BusinessID: businessID, Type: eventType})
}
