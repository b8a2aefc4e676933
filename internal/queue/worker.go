package queue

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type HandlerFunc func(ctx context.Context, body []byte) error

var (
	ErrConsumerClosed = errors.New("consumer closed")
	// ErrPermanent marks handler failures that retrying cannot fix.
	ErrPermanent = errors.New("permanent failure")
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// ConsumeWithRetry runs handler for every delivery until ctx is cancelled or the
// channel closes. Failed deliveries are republished with an x-retry-count
// header and dropped after maxRetries; ErrPermanent failures are dropped at once.
func (c *Client) ConsumeWithRetry(ctx context.Context, queue string, handler HandlerFunc, maxRetries int, retryDelay time.Duration) error {
	msgs, err := c.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		var msg amqp.Delivery
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok = <-msgs:
			if !ok {
				return ErrConsumerClosed
			}
		}

		if err := settle(ctx, c.ch, queue, msg, handler, maxRetries, retryDelay); err != nil {
			return err
		}
	}
}

// settle handles one delivery and acknowledges it exactly once. A failed
// republish requeues the original.
func settle(ctx context.Context, pub publisher, queue string, msg amqp.Delivery, handler HandlerFunc, maxRetries int, retryDelay time.Duration) error {
	err := handler(ctx, msg.Body)
	if err == nil {
		_ = msg.Ack(false)
		return nil
	}

	retryCount := getRetryCount(msg.Headers)
	if errors.Is(err, ErrPermanent) || retryCount >= maxRetries {
		_ = msg.Nack(false, false)
		return nil
	}

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retry-count"] = int32(retryCount + 1)

	select {
	case <-ctx.Done():
		_ = msg.Nack(false, true)
		return ctx.Err()
	case <-time.After(retryDelay):
	}
	if err := pub.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType: msg.ContentType,
		Body:        msg.Body,
		Headers:     headers,
		Timestamp:   time.Now(),
	}); err != nil {
		_ = msg.Nack(false, true)
		return nil
	}
	_ = msg.Ack(false)
	return nil
}

func getRetryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	if v, ok := headers["x-retry-count"]; ok {
		switch t := v.(type) {
		case int32:
			return int(t)
		case int64:
			return int(t)
		case int:
			return t
		}
	}
	return 0
}
