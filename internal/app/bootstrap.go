package app

import (
	"context"
	"fmt"
	"time"

	"bizops-analytics/internal/analytics"
	"bizops-analytics/internal/config"
	"bizops-analytics/internal/db"
	"bizops-analytics/internal/docstore"
	"bizops-analytics/internal/schema"
	"bizops-analytics/internal/utils"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Runtime holds the datastore connections and the analytics service built on
// them. Both the API server and the CLI start from here.
type Runtime struct {
	Pool      *pgxpool.Pool
	Documents *docstore.Client
	Analytics *analytics.Service
	Location  *time.Location
}

// Open connects both datastores. The relational store is required; a document
// store that cannot be reached only logs a warning and leaves metrics on their
// relational fallback.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*Runtime, error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	docs, err := docstore.Connect(ctx, docstore.Options{
		URI:            cfg.MongoURI,
		Database:       cfg.MongoDatabase,
		QueryTimeout:   cfg.AnalyticsQueryTimeout,
		BreakerTimeout: cfg.DocstoreBreakerWindow,
	}, log)
	if err != nil {
		log.Warn("document store unavailable; using relational fallback", zap.Error(err))
	}

	rel := db.NewStore(pool, cfg.AnalyticsQueryTimeout)
	loc := utils.LoadLocation(cfg.AnalyticsTimezone)
	svc := analytics.NewService(analytics.Deps{
		Relational:          rel,
		Documents:           docs,
		Schema:              schema.NewProber(rel, cfg.SchemaProbeTTL, log),
		Logger:              log,
		Location:            loc,
		ChatResponseWindow:  cfg.ChatResponseWindow,
		ChurnLookbackMonths: cfg.ChurnLookbackMonths,
		FanoutLimit:         cfg.AnalyticsFanoutLimit,
	})

	return &Runtime{Pool: pool, Documents: docs, Analytics: svc, Location: loc}, nil
}

func (rt *Runtime) Close(ctx context.Context) {
	if rt == nil {
		return
	}
	_ = rt.Documents.Close(ctx)
	if rt.Pool != nil {
		rt.Pool.Close()
	}
}
