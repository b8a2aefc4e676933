package analytics

// Source names the datastore a result was computed from.
type Source string

const (
	SourceDocuments  Source = "documents"
	SourceRelational Source = "relational"
	SourceNone       Source = "none"
)

// Result wraps a metric value. Degraded marks data that is a documented default
// or a lossy approximation rather than a computation failure.
type Result[T any] struct {
	Data     T      `json:"data"`
	Source   Source `json:"source"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

func complete[T any](data T, src Source) Result[T] {
	return Result[T]{Data: data, Source: src}
}

func degraded[T any](data T, src Source, reason string) Result[T] {
	return Result[T]{Data: data, Source: src, Degraded: true, Reason: reason}
}

const (
	reasonDocstoreUnavailable = "document store unavailable"
	reasonNoCostColumn        = "order_items.cost_at_time missing; profit reported as revenue"
	reasonNoItemCost          = "item cost not recorded for some lines; their price counted as profit"
	reasonNoCompletedAt       = "orders.completed_at missing"
	reasonNoFirstResponse     = "orders.first_response_at missing"
	reasonNoItemCounters      = "item counter columns missing"
	reasonOrdersUnavailable   = "order counts unavailable"
	reasonNoTableCapacity     = "tables.capacity missing; occupancy not computed"
)
