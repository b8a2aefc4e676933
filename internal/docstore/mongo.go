package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bizops-analytics/internal/metrics"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const breakerName = "docstore"

type Options struct {
	URI            string
	Database       string
	QueryTimeout   time.Duration
	BreakerTimeout time.Duration
}

// Client is the mongo-backed Store. A Client without a connection reports every
// collection as unavailable so the relational fallback takes over.
type Client struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[any]
	logger  *zap.Logger
}

func Connect(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	c := &Client{timeout: opts.QueryTimeout, logger: logger}
	c.breaker = newBreaker(opts.BreakerTimeout, logger)
	if opts.URI == "" {
		return c, fmt.Errorf("mongodb uri is empty")
	}

	clientOptions := options.Client().ApplyURI(opts.URI).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetConnectTimeout(5 * time.Second).
		SetSocketTimeout(10 * time.Second)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return c, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return c, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	c.client = client
	c.db = client.Database(opts.Database)
	return c, nil
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Disconnect(ctx)
}

func (c *Client) Collection(_ context.Context, name string) (Collection, error) {
	if c == nil || c.db == nil {
		return nil, ErrUnavailable
	}
	if c.breaker.State() == gobreaker.StateOpen {
		return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
	}
	return &mongoCollection{coll: c.db.Collection(name), client: c}, nil
}

func newBreaker(timeout time.Duration, logger *zap.Logger) *gobreaker.CircuitBreaker[any] {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			if logger != nil {
				logger.Warn("document store breaker state changed",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			}
		},
	})
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

type mongoCollection struct {
	coll   *mongo.Collection
	client *Client
}

func (m *mongoCollection) execute(ctx context.Context, operation string, fn func(ctx context.Context) (any, error)) (any, error) {
	if m.client.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.client.timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := m.client.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	metrics.RecordDocstoreQuery(m.coll.Name(), operation, time.Since(start))
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, err
}

func (m *mongoCollection) Find(ctx context.Context, filter bson.M) ([]bson.M, error) {
	out, err := m.execute(ctx, "find", func(ctx context.Context) (any, error) {
		cursor, err := m.coll.Find(ctx, filter)
		if err != nil {
			return nil, err
		}
		defer cursor.Close(ctx)
		docs := make([]bson.M, 0)
		if err := cursor.All(ctx, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]bson.M), nil
}

func (m *mongoCollection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	out, err := m.execute(ctx, "find_one", func(ctx context.Context) (any, error) {
		var doc bson.M
		err := m.coll.FindOne(ctx, filter).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return bson.M(nil), nil
		}
		if err != nil {
			return nil, err
		}
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(bson.M), nil
}

func (m *mongoCollection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	out, err := m.execute(ctx, "count", func(ctx context.Context) (any, error) {
		return m.coll.CountDocuments(ctx, filter)
	})
	if err != nil {
		return 0, err
	}
	return out.(int64), nil
}

func (m *mongoCollection) Distinct(ctx context.Context, field string, filter bson.M) ([]any, error) {
	out, err := m.execute(ctx, "distinct", func(ctx context.Context) (any, error) {
		return m.coll.Distinct(ctx, field, filter)
	})
	if err != nil {
		return nil, err
	}
	return out.([]any), nil
}
