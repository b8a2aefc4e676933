package analytics

import (
	"context"
	"sort"
	"time"

	"bizops-analytics/internal/db"
	"bizops-analytics/internal/docstore"
	"bizops-analytics/internal/metrics"
	"bizops-analytics/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const (
	directionInbound  = "inbound"
	directionOutbound = "outbound"
)

type ChatEngine struct {
	core *core
}

type ResponseTime struct {
	Responded      int     `json:"responded"`
	Unanswered     int     `json:"unanswered"`
	AverageSeconds float64 `json:"averageSeconds"`
	WindowSeconds  float64 `json:"windowSeconds"`
}

type ConversionRate struct {
	InboundMessages int64   `json:"inboundMessages"`
	Orders          int64   `json:"orders"`
	Rate            float64 `json:"rate"`
}

type DropOffPoint struct {
	MessageType string `json:"messageType"`
	Count       int    `json:"count"`
}

type FallbackRate struct {
	InboundMessages int64   `json:"inboundMessages"`
	FallbackUsed    int64   `json:"fallbackUsed"`
	Rate            float64 `json:"rate"`
}

type messageRecord struct {
	Phone     string
	Direction string
	Type      string
	Fallback  bool
	At        time.Time
}

type messageLogDoc struct {
	BusinessID    string    `bson:"businessId"`
	CustomerPhone string    `bson:"customerPhone"`
	Direction     string    `bson:"direction"`
	MessageType   string    `bson:"messageType"`
	FallbackUsed  bool      `bson:"fallbackUsed"`
	CreatedAt     time.Time `bson:"createdAt"`
}

// messageReader is one place message logs can be read from.
type messageReader interface {
	countInbound(ctx context.Context, f Filter, fallbackOnly bool) (int64, error)
	distinctCustomers(ctx context.Context, f Filter) (int64, error)
	messages(ctx context.Context, f Filter) ([]messageRecord, error)
}

type docMessages struct {
	coll docstore.Collection
}

func (d docMessages) countInbound(ctx context.Context, f Filter, fallbackOnly bool) (int64, error) {
	extra := bson.M{"direction": directionInbound}
	if fallbackOnly {
		extra["fallbackUsed"] = true
	}
	return d.coll.CountDocuments(ctx, messageQuery(f, extra))
}

func (d docMessages) distinctCustomers(ctx context.Context, f Filter) (int64, error) {
	values, err := d.coll.Distinct(ctx, "customerPhone", messageQuery(f, bson.M{"direction": directionInbound}))
	if err != nil {
		return 0, err
	}
	return int64(len(values)), nil
}

func (d docMessages) messages(ctx context.Context, f Filter) ([]messageRecord, error) {
	docs, err := d.coll.Find(ctx, messageQuery(f, nil))
	if err != nil {
		return nil, err
	}
	logs, err := docstore.Decode[messageLogDoc](docs)
	if err != nil {
		return nil, err
	}
	out := make([]messageRecord, 0, len(logs))
	for _, l := range logs {
		out = append(out, messageRecord{
			Phone:     l.CustomerPhone,
			Direction: l.Direction,
			Type:      l.MessageType,
			Fallback:  l.FallbackUsed,
			At:        l.CreatedAt,
		})
	}
	return out, nil
}

type tableMessages struct {
	rel db.Relational
}

func (t tableMessages) countInbound(ctx context.Context, f Filter, fallbackOnly bool) (int64, error) {
	conds := BuildConditions(f, messageColumns)
	conds.Add("m.direction = ?", directionInbound)
	if fallbackOnly {
		conds.Add("m.fallback_used = true")
	}
	rows, err := t.rel.Query(ctx, `select count(*) as count from message_logs m where `+conds.Where(), conds.Args...)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0].Int("count"), nil
}

func (t tableMessages) distinctCustomers(ctx context.Context, f Filter) (int64, error) {
	conds := BuildConditions(f, messageColumns)
	conds.Add("m.direction = ?", directionInbound)
	rows, err := t.rel.Query(ctx, `select count(distinct m.customer_phone) as count from message_logs m where `+conds.Where(), conds.Args...)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0].Int("count"), nil
}

func (t tableMessages) messages(ctx context.Context, f Filter) ([]messageRecord, error) {
	conds := BuildConditions(f, messageColumns)
	rows, err := t.rel.Query(ctx, `select m.customer_phone, m.direction, m.message_type, m.fallback_used, m.created_at
		from message_logs m
		where `+conds.Where()+`
		order by m.created_at asc`, conds.Args...)
	if err != nil {
		return nil, err
	}
	out := make([]messageRecord, 0, len(rows))
	for _, row := range rows {
		rec := messageRecord{
			Phone:     row.String("customer_phone"),
			Direction: row.String("direction"),
			Type:      row.String("message_type"),
			Fallback:  row.Bool("fallback_used"),
		}
		if at, ok := row.Time("created_at"); ok {
			rec.At = at
		}
		out = append(out, rec)
	}
	return out, nil
}

type sourcedReader struct {
	reader messageReader
	source Source
}

// readers lists the usable message sources, document store first.
func (e *ChatEngine) readers(ctx context.Context, f Filter) []sourcedReader {
	c := e.core
	out := make([]sourcedReader, 0, 2)
	if c.docs != nil {
		coll, err := c.docs.Collection(ctx, docstore.MessageLogs)
		if err == nil {
			out = append(out, sourcedReader{reader: docMessages{coll: coll}, source: SourceDocuments})
		} else {
			c.logger.Warn("message log collection unavailable", zap.String("businessId", f.BusinessID), zap.Error(err))
		}
	}
	if c.rel != nil {
		caps, err := c.capabilities(ctx, f.BusinessID)
		if err != nil {
			c.logger.Warn("capability probe failed", zap.String("businessId", f.BusinessID), zap.Error(err))
		} else if caps.MessageLogTable {
			out = append(out, sourcedReader{reader: tableMessages{rel: c.rel}, source: SourceRelational})
		}
	}
	return out
}

// bestEffort runs op against each message source in turn. When none answers,
// the zero value is returned as degraded. Only cancellation is an error.
func bestEffort[T any](ctx context.Context, e *ChatEngine, f Filter, metric string, zero T, op func(messageReader) (T, error)) (Result[T], error) {
	for i, r := range e.readers(ctx, f) {
		v, err := op(r.reader)
		if err == nil {
			if i > 0 {
				metrics.RecordFallback(metric)
			}
			return complete(v, r.source), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result[T]{}, ctxErr
		}
		e.core.logger.Warn("message source failed",
			zap.String("businessId", f.BusinessID),
			zap.String("metric", metric),
			zap.String("source", string(r.source)),
			zap.Error(err),
		)
	}
	metrics.RecordDegraded(metric, "docstore_unavailable")
	return degraded(zero, SourceNone, reasonDocstoreUnavailable), nil
}

// RequestsHandled counts inbound messages.
func (e *ChatEngine) RequestsHandled(ctx context.Context, businessID string, f Filter) (Result[int64], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[int64]{}, err
	}
	return bestEffort(ctx, e, f, "requests_handled", 0, func(r messageReader) (int64, error) {
		return r.countInbound(ctx, f, false)
	})
}

// Conversations counts distinct customers who wrote in.
func (e *ChatEngine) Conversations(ctx context.Context, businessID string, f Filter) (Result[int64], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[int64]{}, err
	}
	return bestEffort(ctx, e, f, "conversations", 0, func(r messageReader) (int64, error) {
		return r.distinctCustomers(ctx, f)
	})
}

// ResponseTime averages the gap between an inbound message and the next outbound
// message to the same customer. Inbound messages without a reply inside the
// window are left out of the average.
func (e *ChatEngine) ResponseTime(ctx context.Context, businessID string, f Filter) (Result[ResponseTime], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[ResponseTime]{}, err
	}
	window := e.core.chatWindow
	zero := ResponseTime{WindowSeconds: window.Seconds()}
	return bestEffort(ctx, e, f, "response_time", zero, func(r messageReader) (ResponseTime, error) {
		msgs, err := r.messages(ctx, replyWindow(f, window))
		if err != nil {
			return ResponseTime{}, err
		}
		out := zero
		total := 0.0
		for _, m := range correlate(msgs, f, window) {
			if !m.answered {
				out.Unanswered++
				continue
			}
			out.Responded++
			total += m.gap.Seconds()
		}
		if out.Responded > 0 {
			out.AverageSeconds = total / float64(out.Responded)
		}
		return out, nil
	})
}

// DropOffPoints groups unanswered inbound messages by message type.
func (e *ChatEngine) DropOffPoints(ctx context.Context, businessID string, f Filter) (Result[[]DropOffPoint], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]DropOffPoint]{}, err
	}
	window := e.core.chatWindow
	return bestEffort(ctx, e, f, "drop_off_points", []DropOffPoint{}, func(r messageReader) ([]DropOffPoint, error) {
		msgs, err := r.messages(ctx, replyWindow(f, window))
		if err != nil {
			return nil, err
		}
		counts := make(map[string]int)
		for _, m := range correlate(msgs, f, window) {
			if m.answered {
				continue
			}
			kind := m.inbound.Type
			if kind == "" {
				kind = "unknown"
			}
			counts[kind]++
		}
		out := make([]DropOffPoint, 0, len(counts))
		for kind, n := range counts {
			out = append(out, DropOffPoint{MessageType: kind, Count: n})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Count == out[j].Count {
				return out[i].MessageType < out[j].MessageType
			}
			return out[i].Count > out[j].Count
		})
		return out, nil
	})
}

// ConversionRate relates non-cart orders to inbound messages in the same window.
func (e *ChatEngine) ConversionRate(ctx context.Context, businessID string, f Filter) (Result[ConversionRate], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[ConversionRate]{}, err
	}
	inbound, err := e.RequestsHandled(ctx, f.BusinessID, f)
	if err != nil {
		return Result[ConversionRate]{}, err
	}
	out := ConversionRate{InboundMessages: inbound.Data}
	if inbound.Degraded {
		return degraded(out, inbound.Source, inbound.Reason), nil
	}

	orders, err := e.placedOrders(ctx, f)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result[ConversionRate]{}, ctxErr
		}
		e.core.logger.Warn("order count unavailable for conversion rate",
			zap.String("businessId", f.BusinessID), zap.Error(err))
		metrics.RecordDegraded("conversion_rate", "orders_unavailable")
		return degraded(out, inbound.Source, reasonOrdersUnavailable), nil
	}
	out.Orders = orders
	out.Rate = utils.Percent(float64(orders), float64(out.InboundMessages))
	return complete(out, inbound.Source), nil
}

func (e *ChatEngine) placedOrders(ctx context.Context, f Filter) (int64, error) {
	if e.core.rel == nil {
		return 0, docstore.ErrUnavailable
	}
	conds := BuildConditions(f, orderColumns)
	conds.Add("o.status <> ?", statusCart)
	rows, err := e.core.rel.Query(ctx, `select count(*) as count from orders o where `+conds.Where(), conds.Args...)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0].Int("count"), nil
}

// FallbackRate is the share of inbound messages answered by the fallback path.
func (e *ChatEngine) FallbackRate(ctx context.Context, businessID string, f Filter) (Result[FallbackRate], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[FallbackRate]{}, err
	}
	return bestEffort(ctx, e, f, "fallback_rate", FallbackRate{}, func(r messageReader) (FallbackRate, error) {
		total, err := r.countInbound(ctx, f, false)
		if err != nil {
			return FallbackRate{}, err
		}
		used, err := r.countInbound(ctx, f, true)
		if err != nil {
			return FallbackRate{}, err
		}
		return FallbackRate{
			InboundMessages: total,
			FallbackUsed:    used,
			Rate:            utils.Percent(float64(used), float64(total)),
		}, nil
	})
}

// replyWindow widens the end bound so replies to late inbound messages are loaded.
func replyWindow(f Filter, window time.Duration) Filter {
	if f.EndDate == nil {
		return f
	}
	return f.WithRange(f.StartDate, timePtr(f.PaddedEnd().Add(window)))
}

type correlation struct {
	inbound  messageRecord
	answered bool
	gap      time.Duration
}

// correlate pairs every inbound message inside f with the next outbound message
// to the same customer, if it arrives within window.
func correlate(msgs []messageRecord, f Filter, window time.Duration) []correlation {
	byPhone := make(map[string][]messageRecord)
	phones := make([]string, 0)
	for _, m := range msgs {
		if _, ok := byPhone[m.Phone]; !ok {
			phones = append(phones, m.Phone)
		}
		byPhone[m.Phone] = append(byPhone[m.Phone], m)
	}
	sort.Strings(phones)

	out := make([]correlation, 0)
	for _, phone := range phones {
		thread := byPhone[phone]
		sort.SliceStable(thread, func(i, j int) bool { return thread[i].At.Before(thread[j].At) })
		for i, m := range thread {
			if m.Direction != directionInbound || !f.Contains(m.At) {
				continue
			}
			c := correlation{inbound: m}
			for _, next := range thread[i+1:] {
				if next.Direction != directionOutbound {
					continue
				}
				if gap := next.At.Sub(m.At); gap <= window {
					c.answered = true
					c.gap = gap
				}
				break
			}
			out = append(out, c)
		}
	}
	return out
}
