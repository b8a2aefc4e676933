package docstore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	OrderLogs   = "order_logs"
	MessageLogs = "message_logs"
)

// ErrUnavailable means no usable handle to the document store could be obtained.
var ErrUnavailable = errors.New("document store unavailable")

// Collection is the narrow read surface over one document collection.
type Collection interface {
	Find(ctx context.Context, filter bson.M) ([]bson.M, error)
	FindOne(ctx context.Context, filter bson.M) (bson.M, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
	Distinct(ctx context.Context, field string, filter bson.M) ([]any, error)
}

// Store hands out collection handles or ErrUnavailable.
type Store interface {
	Collection(ctx context.Context, name string) (Collection, error)
}

// Decode converts raw documents into typed records through a bson round trip.
func Decode[T any](docs []bson.M) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return nil, err
		}
		var item T
		if err := bson.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
