package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAcker struct {
	acks    int
	nacks   int
	requeue []bool
}

func (r *recordingAcker) Ack(uint64, bool) error {
	r.acks++
	return nil
}

func (r *recordingAcker) Nack(_ uint64, _ bool, requeue bool) error {
	r.nacks++
	r.requeue = append(r.requeue, requeue)
	return nil
}

func (r *recordingAcker) Reject(_ uint64, requeue bool) error {
	return r.Nack(0, false, requeue)
}

type recordingPublisher struct {
	err       error
	published []amqp.Publishing
}

func (p *recordingPublisher) PublishWithContext(_ context.Context, _, _ string, _, _ bool, msg amqp.Publishing) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

func TestSettle(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name       string
		handlerErr error
		headers    amqp.Table
		publishErr error
		acks       int
		requeue    []bool
		published  int
	}{
		{name: "success acks", acks: 1},
		{name: "failure republishes with retry count", handlerErr: boom, acks: 1, published: 1},
		{name: "retries exhausted are dropped", handlerErr: boom, headers: amqp.Table{"x-retry-count": int32(3)}, requeue: []bool{false}},
		{name: "permanent failure is dropped", handlerErr: fmt.Errorf("%w: bad body", ErrPermanent), requeue: []bool{false}},
		{name: "failed republish requeues original", handlerErr: boom, publishErr: errors.New("channel closed"), requeue: []bool{true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			acker := &recordingAcker{}
			pub := &recordingPublisher{err: tc.publishErr}
			msg := amqp.Delivery{Acknowledger: acker, Body: []byte(`{}`), Headers: tc.headers}
			handler := func(context.Context, []byte) error { return tc.handlerErr }

			require.NoError(t, settle(context.Background(), pub, "q", msg, handler, 3, 0))
			assert.Equal(t, tc.acks, acker.acks)
			assert.Equal(t, tc.requeue, acker.requeue)
			assert.Len(t, pub.published, tc.published)
		})
	}
}

func TestSettleIncrementsRetryHeader(t *testing.T) {
	acker := &recordingAcker{}
	pub := &recordingPublisher{}
	original := amqp.Table{"x-retry-count": int32(1), "trace": "t1"}
	msg := amqp.Delivery{Acknowledger: acker, Body: []byte(`{}`), Headers: original}

	err := settle(context.Background(), pub, "q", msg, func(context.Context, []byte) error { return errors.New("boom") }, 5, 0)
	require.NoError(t, err)
	require.Len(t, pub.published, 1)
	assert.Equal(t, int32(2), pub.published[0].Headers["x-retry-count"])
	assert.Equal(t, "t1", pub.published[0].Headers["trace"])
	assert.Equal(t, int32(1), original["x-retry-count"])
}

func TestSettleRequeuesOnShutdown(t *testing.T) {
	acker := &recordingAcker{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	msg := amqp.Delivery{Acknowledger: acker, Body: []byte(`{}`)}

	err := settle(ctx, &recordingPublisher{}, "q", msg, func(context.Context, []byte) error { return errors.New("boom") }, 5, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []bool{true}, acker.requeue)
}
