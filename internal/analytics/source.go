package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"bizops-analytics/internal/db"
	"bizops-analytics/internal/docstore"
	"bizops-analytics/internal/metrics"
	"bizops-analytics/internal/schema"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const (
	statusCart      = "cart"
	statusCompleted = "completed"
	statusCancelled = "cancelled"
	statusRejected  = "rejected"
)

// orderRecord is the shape both datastore paths are normalised into.
type orderRecord struct {
	ID            string
	CustomerPhone string
	CustomerName  string
	Status        string
	DeliveryType  string
	Platform      string
	Total         float64
	CreatedAt     time.Time
	CompletedAt   *time.Time
	Items         []itemLine
}

type itemLine struct {
	ItemID     string
	Name       string
	CategoryID string
	MenuID     string
	Quantity   int64
	Price      float64
	Cost       float64
	CostKnown  bool
}

// key identifies an item across both paths; archived lines may lack an id.
func (l itemLine) key() string {
	if l.ItemID != "" {
		return l.ItemID
	}
	return "name:" + strings.ToLower(strings.TrimSpace(l.Name))
}

type orderLogDoc struct {
	OrderID        string         `bson:"orderId"`
	BusinessID     string         `bson:"businessId"`
	BranchID       string         `bson:"branchId"`
	CustomerPhone  string         `bson:"customerPhone"`
	CustomerName   string         `bson:"customerName"`
	Status         string         `bson:"status"`
	DeliveryType   string         `bson:"deliveryType"`
	Platform       string         `bson:"platform"`
	Items          []orderLogItem `bson:"items"`
	Subtotal       float64        `bson:"subtotal"`
	DeliveryPrice  float64        `bson:"deliveryPrice"`
	Total          float64        `bson:"total"`
	StatusTimeline []statusEntry  `bson:"statusTimeline"`
	CreatedAt      time.Time      `bson:"createdAt"`
	CompletedAt    *time.Time     `bson:"completedAt,omitempty"`
	ArchivedAt     time.Time      `bson:"archivedAt"`
}

type orderLogItem struct {
	ItemID     string   `bson:"itemId"`
	Name       string   `bson:"name"`
	CategoryID string   `bson:"categoryId"`
	MenuID     string   `bson:"menuId"`
	Quantity   int64    `bson:"quantity"`
	Price      float64  `bson:"price"`
	Cost       *float64 `bson:"cost,omitempty"`
}

type statusEntry struct {
	Status    string    `bson:"status"`
	Timestamp time.Time `bson:"timestamp"`
}

// completionTime prefers the timeline entry, then the denormalised field.
func (d orderLogDoc) completionTime() *time.Time {
	for _, entry := range d.StatusTimeline {
		if strings.EqualFold(entry.Status, statusCompleted) && !entry.Timestamp.IsZero() {
			ts := entry.Timestamp
			return &ts
		}
	}
	return d.CompletedAt
}

func (d orderLogDoc) record() orderRecord {
	rec := orderRecord{
		ID:            d.OrderID,
		CustomerPhone: d.CustomerPhone,
		CustomerName:  d.CustomerName,
		Status:        strings.ToLower(d.Status),
		DeliveryType:  d.DeliveryType,
		Platform:      d.Platform,
		Total:         d.Total,
		CreatedAt:     d.CreatedAt,
		CompletedAt:   d.completionTime(),
	}
	for _, item := range d.Items {
		line := itemLine{
			ItemID:     item.ItemID,
			Name:       item.Name,
			CategoryID: item.CategoryID,
			MenuID:     item.MenuID,
			Quantity:   item.Quantity,
			Price:      item.Price,
		}
		if item.Cost != nil {
			line.Cost = *item.Cost
			line.CostKnown = true
		}
		rec.Items = append(rec.Items, line)
	}
	return rec
}

type loadOptions struct {
	items       bool
	completedAt bool
}

// orderSet is what a completed-order loader hands back to the engines.
type orderSet struct {
	orders []orderRecord
	source Source
	caps   schema.Capabilities
}

// completedOrders applies the dual-datastore policy: archived order logs first,
// the live relational tables when no document handle can be used. Relational
// failures are returned to the caller.
func (c *core) completedOrders(ctx context.Context, metric string, f Filter, opts loadOptions) (orderSet, error) {
	caps, err := c.capabilities(ctx, f.BusinessID)
	if err != nil {
		return orderSet{}, err
	}

	archived, docErr := c.archivedOrders(ctx, f)
	if docErr == nil {
		return orderSet{orders: archived, source: SourceDocuments, caps: caps}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return orderSet{}, ctxErr
	}
	c.logger.Warn("order archive unavailable; using live tables",
		zap.String("businessId", f.BusinessID),
		zap.String("metric", metric),
		zap.Error(docErr),
	)
	metrics.RecordFallback(metric)

	orders, err := c.liveCompletedOrders(ctx, f, opts, caps)
	if err != nil {
		return orderSet{}, err
	}
	return orderSet{orders: orders, source: SourceRelational, caps: caps}, nil
}

func (c *core) archivedOrders(ctx context.Context, f Filter) ([]orderRecord, error) {
	if c.docs == nil {
		return nil, docstore.ErrUnavailable
	}
	coll, err := c.docs.Collection(ctx, docstore.OrderLogs)
	if err != nil {
		return nil, err
	}
	query := DocumentQuery(f, orderLogFields)
	query["status"] = statusCompleted
	docs, err := coll.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	logs, err := docstore.Decode[orderLogDoc](docs)
	if err != nil {
		return nil, fmt.Errorf("%w: decode order logs: %v", docstore.ErrUnavailable, err)
	}

	orders := make([]orderRecord, 0, len(logs))
	for _, l := range logs {
		orders = append(orders, l.record())
	}
	sortOrders(orders)
	return orders, nil
}

func (c *core) liveCompletedOrders(ctx context.Context, f Filter, opts loadOptions, caps schema.Capabilities) ([]orderRecord, error) {
	if c.rel == nil {
		return nil, errors.New("relational store not configured")
	}
	conds := BuildConditions(f, orderColumns)
	conds.Add("o.status = ?", statusCompleted)

	columns := []string{
		"o.id", "o.customer_phone", "o.customer_name", "o.status", "o.delivery_type",
		"o.order_source", "o.total", "o.created_at",
	}
	if opts.completedAt && caps.OrderCompletedAt {
		columns = append(columns, "o.completed_at")
	}
	rows, err := c.rel.Query(ctx, `select `+strings.Join(columns, ", ")+`
		from orders o
		where `+conds.Where()+`
		order by o.created_at asc, o.id asc`, conds.Args...)
	if err != nil {
		return nil, err
	}

	orders := make([]orderRecord, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		rec := orderFromRow(row)
		index[rec.ID] = len(orders)
		orders = append(orders, rec)
	}

	if !opts.items || len(orders) == 0 {
		return orders, nil
	}

	costColumn := "null as cost_at_time"
	if caps.OrderItemCost {
		costColumn = "oi.cost_at_time"
	}
	itemRows, err := c.rel.Query(ctx, `select oi.order_id, oi.item_id, i.name, i.category_id, i.menu_id,
			oi.quantity, oi.price_at_time, `+costColumn+`
		from order_items oi
		join orders o on o.id = oi.order_id
		left join items i on i.id = oi.item_id
		where `+conds.Where()+`
		order by oi.order_id asc, oi.item_id asc`, conds.Args...)
	if err != nil {
		return nil, err
	}
	for _, row := range itemRows {
		pos, ok := index[row.String("order_id")]
		if !ok {
			continue
		}
		orders[pos].Items = append(orders[pos].Items, itemFromRow(row))
	}
	return orders, nil
}

func orderFromRow(row db.Row) orderRecord {
	rec := orderRecord{
		ID:            row.String("id"),
		CustomerPhone: row.String("customer_phone"),
		CustomerName:  row.String("customer_name"),
		Status:        strings.ToLower(row.String("status")),
		DeliveryType:  row.String("delivery_type"),
		Platform:      row.String("order_source"),
		Total:         row.Float("total"),
	}
	if created, ok := row.Time("created_at"); ok {
		rec.CreatedAt = created
	}
	if completed, ok := row.Time("completed_at"); ok {
		rec.CompletedAt = &completed
	}
	return rec
}

// itemFromRow reads a null cost as zero and leaves CostKnown unset.
func itemFromRow(row db.Row) itemLine {
	return itemLine{
		ItemID:     row.String("item_id"),
		Name:       row.String("name"),
		CategoryID: row.String("category_id"),
		MenuID:     row.String("menu_id"),
		Quantity:   row.Int("quantity"),
		Price:      row.Float("price_at_time"),
		Cost:       row.Float("cost_at_time"),
		CostKnown:  !row.IsNull("cost_at_time"),
	}
}

// costGap reports whether any selected line had no recorded cost, with the
// reason to attach to the degraded result.
func costGap(set orderSet, f Filter) (string, bool) {
	for _, o := range set.orders {
		for _, line := range matchingLines(f, o.Items) {
			if line.CostKnown {
				continue
			}
			if set.source == SourceRelational && !set.caps.OrderItemCost {
				return reasonNoCostColumn, true
			}
			return reasonNoItemCost, true
		}
	}
	return "", false
}

func sortOrders(orders []orderRecord) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}

// matchingLines keeps the item lines selected by the category/menu filter.
func matchingLines(f Filter, lines []itemLine) []itemLine {
	if f.CategoryID == "" && f.MenuID == "" {
		return lines
	}
	out := make([]itemLine, 0, len(lines))
	for _, line := range lines {
		if f.CategoryID != "" && line.CategoryID != f.CategoryID {
			continue
		}
		if f.MenuID != "" && line.MenuID != f.MenuID {
			continue
		}
		out = append(out, line)
	}
	return out
}

// messageQuery is reused by the chat engine for its document filters.
func messageQuery(f Filter, extra bson.M) bson.M {
	q := DocumentQuery(f, messageLogFields)
	for k, v := range extra {
		q[k] = v
	}
	return q
}
