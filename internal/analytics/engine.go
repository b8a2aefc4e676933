package analytics

import (
	"context"
	"time"

	"bizops-analytics/internal/db"
	"bizops-analytics/internal/docstore"
	"bizops-analytics/internal/schema"

	"go.uber.org/zap"
)

// CapabilitySource resolves the optional-schema features of a tenant.
type CapabilitySource interface {
	Capabilities(ctx context.Context, businessID string) (schema.Capabilities, error)
}

type Deps struct {
	Relational db.Relational
	Documents  docstore.Store
	Schema     CapabilitySource
	Logger     *zap.Logger
	Location   *time.Location
	Now        func() time.Time

	ChatResponseWindow  time.Duration
	ChurnLookbackMonths int
	FanoutLimit         int
}

type core struct {
	rel    db.Relational
	docs   docstore.Store
	schema CapabilitySource
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time

	chatWindow    time.Duration
	churnLookback int
	fanout        int
}

func newCore(d Deps) *core {
	c := &core{
		rel:           d.Relational,
		docs:          d.Documents,
		schema:        d.Schema,
		logger:        d.Logger,
		loc:           d.Location,
		now:           d.Now,
		chatWindow:    d.ChatResponseWindow,
		churnLookback: d.ChurnLookbackMonths,
		fanout:        d.FanoutLimit,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.schema == nil {
		c.schema = schema.Static{}
	}
	if c.chatWindow <= 0 {
		c.chatWindow = 5 * time.Minute
	}
	if c.churnLookback <= 0 {
		c.churnLookback = 2
	}
	if c.fanout <= 0 {
		c.fanout = 4
	}
	return c
}

func (c *core) capabilities(ctx context.Context, businessID string) (schema.Capabilities, error) {
	return c.schema.Capabilities(ctx, businessID)
}

// Service groups the metric engines behind one set of dependencies.
type Service struct {
	Sales        *SalesEngine
	Customers    *CustomerEngine
	Items        *ItemEngine
	Chat         *ChatEngine
	Reservations *ReservationEngine

	core *core
}

func NewService(d Deps) *Service {
	c := newCore(d)
	return &Service{
		Sales:        &SalesEngine{core: c},
		Customers:    &CustomerEngine{core: c},
		Items:        &ItemEngine{core: c},
		Chat:         &ChatEngine{core: c},
		Reservations: &ReservationEngine{core: c},
		core:         c,
	}
}
