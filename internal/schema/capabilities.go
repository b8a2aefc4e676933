package schema

import (
	"context"
	"fmt"
	"time"

	"bizops-analytics/internal/cache"
	"bizops-analytics/internal/db"

	"go.uber.org/zap"
)

// Capabilities lists optional schema features that differ between tenants on
// older migrations. Zero value means "nothing optional is present".
type Capabilities struct {
	OrderItemCost        bool `json:"orderItemCost"`
	OrderCompletedAt     bool `json:"orderCompletedAt"`
	OrderFirstResponseAt bool `json:"orderFirstResponseAt"`
	ItemTimesOrdered     bool `json:"itemTimesOrdered"`
	ItemTimesDelivered   bool `json:"itemTimesDelivered"`
	ReservationNoShow    bool `json:"reservationNoShow"`
	TableCapacity        bool `json:"tableCapacity"`
	MessageLogTable      bool `json:"messageLogTable"`
}

type columnProbe struct {
	table  string
	column string
	set    func(*Capabilities, bool)
}

var columnProbes = []columnProbe{
	{"order_items", "cost_at_time", func(c *Capabilities, v bool) { c.OrderItemCost = v }},
	{"orders", "completed_at", func(c *Capabilities, v bool) { c.OrderCompletedAt = v }},
	{"orders", "first_response_at", func(c *Capabilities, v bool) { c.OrderFirstResponseAt = v }},
	{"items", "times_ordered", func(c *Capabilities, v bool) { c.ItemTimesOrdered = v }},
	{"items", "times_delivered", func(c *Capabilities, v bool) { c.ItemTimesDelivered = v }},
	{"reservations", "no_show", func(c *Capabilities, v bool) { c.ReservationNoShow = v }},
	{"tables", "capacity", func(c *Capabilities, v bool) { c.TableCapacity = v }},
}

// Probe inspects the relational schema once.
func Probe(ctx context.Context, rel db.Relational) (Capabilities, error) {
	var caps Capabilities
	for _, p := range columnProbes {
		ok, err := rel.HasColumn(ctx, p.table, p.column)
		if err != nil {
			return Capabilities{}, err
		}
		p.set(&caps, ok)
	}
	ok, err := rel.HasTable(ctx, "message_logs")
	if err != nil {
		return Capabilities{}, err
	}
	caps.MessageLogTable = ok
	return caps, nil
}

// Prober caches Probe results per tenant.
type Prober struct {
	rel    db.Relational
	cache  *cache.TTL
	ttl    time.Duration
	logger *zap.Logger
}

func NewProber(rel db.Relational, ttl time.Duration, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{rel: rel, cache: cache.NewTTL("schema", 1000), ttl: ttl, logger: logger}
}

func (p *Prober) Capabilities(ctx context.Context, businessID string) (Capabilities, error) {
	key := cache.Key("schema", businessID)
	if cached, ok := p.cache.Get(key); ok {
		return cached.(Capabilities), nil
	}
	caps, err := Probe(ctx, p.rel)
	if err != nil {
		return Capabilities{}, fmt.Errorf("schema probe: %w", err)
	}
	p.logger.Debug("schema capabilities probed", zap.String("businessId", businessID), zap.Any("capabilities", caps))
	p.cache.Set(key, caps, p.ttl)
	return caps, nil
}

// Static serves a fixed capability set; used by tests and the CLI --assume flag.
type Static Capabilities

func (s Static) Capabilities(context.Context, string) (Capabilities, error) {
	return Capabilities(s), nil
}
