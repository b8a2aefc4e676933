package queue

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCache struct {
	businesses []string
}

func (r *recordingCache) InvalidateBusiness(businessID string, _ ...string) int {
	r.businesses = append(r.businesses, businessID)
	return 3
}

type recordingNotifier struct {
	businesses []string
}

func (r *recordingNotifier) NotifyBusiness(businessID string) {
	r.businesses = append(r.businesses, businessID)
}

func TestInvalidationHandler(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		want      []string
		permanent bool
	}{
		{name: "order event", body: `{"businessId":"B1","type":"order.completed"}`, want: []string{"B1"}},
		{name: "trims business id", body: `{"businessId":"  B2 "}`, want: []string{"B2"}},
		{name: "missing business is dropped", body: `{"type":"order.created"}`, permanent: true},
		{name: "malformed json is dropped", body: `{`, permanent: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cache := &recordingCache{}
			notifier := &recordingNotifier{}
			handler := InvalidationHandler(cache, notifier, nil)

			err := handler(context.Background(), []byte(tc.body))
			if tc.permanent {
				require.ErrorIs(t, err, ErrPermanent)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.want, cache.businesses)
			assert.Equal(t, tc.want, notifier.businesses)
		})
	}
}

func TestInvalidationHandlerWithoutNotifier(t *testing.T) {
	cache := &recordingCache{}
	handler := InvalidationHandler(cache, nil, nil)
	require.NoError(t, handler(context.Background(), []byte(`{"businessId":"B1"}`)))
	assert.Equal(t, []string{"B1"}, cache.businesses)
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 0, getRetryCount(nil))
	assert.Equal(t, 2, getRetryCount(amqp.Table{"x-retry-count": int32(2)}))
	assert.Equal(t, 4, getRetryCount(amqp.Table{"x-retry-count": int64(4)}))
	assert.Equal(t, 0, getRetryCount(amqp.Table{"x-retry-count": "3"}))
}
