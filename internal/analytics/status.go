package analytics

import (
	"context"

	"bizops-analytics/internal/docstore"
	"bizops-analytics/internal/schema"

	"go.mongodb.org/mongo-driver/bson"
)

// DatastoreStatus describes which paths metrics for a tenant will take.
type DatastoreStatus struct {
	BusinessID        string              `json:"businessId"`
	DocumentStore     bool                `json:"documentStore"`
	HasArchivedOrders bool                `json:"hasArchivedOrders"`
	HasMessageLogs    bool                `json:"hasMessageLogs"`
	Capabilities      schema.Capabilities `json:"capabilities"`
}

// Status probes both datastores for businessID. Document store problems are
// reported in the result; probe failures on the relational side are errors.
func (s *Service) Status(ctx context.Context, businessID string) (DatastoreStatus, error) {
	f, err := scoped(businessID, Filter{})
	if err != nil {
		return DatastoreStatus{}, err
	}
	caps, err := s.core.capabilities(ctx, f.BusinessID)
	if err != nil {
		return DatastoreStatus{}, err
	}
	out := DatastoreStatus{BusinessID: f.BusinessID, Capabilities: caps}
	if s.core.docs == nil {
		return out, nil
	}

	orders, err := s.core.docs.Collection(ctx, docstore.OrderLogs)
	if err != nil {
		return out, nil
	}
	doc, err := orders.FindOne(ctx, bson.M{"businessId": f.BusinessID, "status": statusCompleted})
	if err != nil {
		return out, nil
	}
	out.DocumentStore = true
	out.HasArchivedOrders = doc != nil

	messages, err := s.core.docs.Collection(ctx, docstore.MessageLogs)
	if err != nil {
		return out, nil
	}
	if msg, err := messages.FindOne(ctx, bson.M{"businessId": f.BusinessID}); err == nil && msg != nil {
		out.HasMessageLogs = true
	}
	return out, nil
}
