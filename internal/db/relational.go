package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bizops-analytics/internal/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Relational is the read-only query surface the analytics engines consume.
type Relational interface {
	Query(ctx context.Context, sql string, args ...any) ([]Row, error)
	HasColumn(ctx context.Context, table, column string) (bool, error)
	HasTable(ctx context.Context, table string) (bool, error)
}

type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewStore(pool *pgxpool.Pool, timeout time.Duration) *Store {
	return &Store{pool: pool, timeout: timeout}
}

func (s *Store) Query(ctx context.Context, sql string, args ...any) ([]Row, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	operation := queryTable(sql)
	start := time.Now()
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		metrics.RecordDBQuery(operation, time.Since(start), err)
		return nil, fmt.Errorf("query %s: %w", operation, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	metrics.RecordDBQuery(operation, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", operation, err)
	}

	out := make([]Row, 0, len(maps))
	for _, m := range maps {
		out = append(out, Row(m))
	}
	return out, nil
}

func (s *Store) HasColumn(ctx context.Context, table, column string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx, `
		select exists (
			select 1 from information_schema.columns
			where table_schema = current_schema() and table_name = $1 and column_name = $2
		)
	`, table, column).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probe column %s.%s: %w", table, column, err)
	}
	return exists, nil
}

func (s *Store) HasTable(ctx context.Context, table string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx, `
		select exists (
			select 1 from information_schema.tables
			where table_schema = current_schema() and table_name = $1
		)
	`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probe table %s: %w", table, err)
	}
	return exists, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// queryTable extracts the first table after "from" for metric labels.
func queryTable(sql string) string {
	fields := strings.Fields(strings.ToLower(sql))
	for i, field := range fields {
		if field == "from" && i+1 < len(fields) {
			name := strings.Trim(fields[i+1], "(),;")
			if name != "" && name != "select" {
				return name
			}
		}
	}
	return "unknown"
}
