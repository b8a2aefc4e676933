package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"bizops-analytics/internal/metrics"
	"bizops-analytics/internal/utils"
)

type SalesEngine struct {
	core *core
}

type RevenueBucket struct {
	Period  string  `json:"period"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

type OrderValueSummary struct {
	TotalRevenue      float64 `json:"totalRevenue"`
	Orders            int     `json:"orders"`
	AverageOrderValue float64 `json:"averageOrderValue"`
}

type ProfitBucket struct {
	Period  string  `json:"period"`
	Revenue float64 `json:"revenue"`
	Cost    float64 `json:"cost"`
	Profit  float64 `json:"profit"`
	Orders  int     `json:"orders"`
}

type StatusCount struct {
	Status string `json:"status"`
	Orders int    `json:"orders"`
}

type RateSummary struct {
	Count int     `json:"count"`
	Total int     `json:"total"`
	Rate  float64 `json:"rate"`
}

type HourCount struct {
	Hour    int     `json:"hour"`
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
}

type DayCount struct {
	Day     int     `json:"day"`
	DayName string  `json:"dayName"`
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
}

// HeatmapCell is one observed day-of-week x hour cell; absent cells are zero.
type HeatmapCell struct {
	DayOfWeek int     `json:"dayOfWeek"`
	Hour      int     `json:"hour"`
	Orders    int     `json:"orders"`
	Revenue   float64 `json:"revenue"`
}

type CompletionTimeStats struct {
	Orders         int     `json:"orders"`
	AverageMinutes float64 `json:"averageMinutes"`
	MinMinutes     float64 `json:"minMinutes"`
	MaxMinutes     float64 `json:"maxMinutes"`
}

type BreakdownRow struct {
	Key     string  `json:"key"`
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
}

func (e *SalesEngine) RevenueByPeriod(ctx context.Context, businessID string, f Filter, period Period) (Result[[]RevenueBucket], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]RevenueBucket]{}, err
	}
	set, err := e.core.completedOrders(ctx, "revenue_by_period", f, loadOptions{})
	if err != nil {
		return Result[[]RevenueBucket]{}, err
	}
	return complete(revenueBuckets(set.orders, period, e.core.loc), set.source), nil
}

func revenueBuckets(orders []orderRecord, period Period, loc *time.Location) []RevenueBucket {
	byKey := make(map[string]*RevenueBucket)
	for _, o := range orders {
		key := BucketKey(o.CreatedAt.In(loc), period)
		b := byKey[key]
		if b == nil {
			b = &RevenueBucket{Period: key}
			byKey[key] = b
		}
		b.Revenue += o.Total
		b.Orders++
	}
	out := make([]RevenueBucket, 0, len(byKey))
	for _, b := range byKey {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

func (e *SalesEngine) OrderValueSummary(ctx context.Context, businessID string, f Filter) (Result[OrderValueSummary], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[OrderValueSummary]{}, err
	}
	set, err := e.core.completedOrders(ctx, "order_value", f, loadOptions{})
	if err != nil {
		return Result[OrderValueSummary]{}, err
	}
	return complete(orderValueSummary(set.orders), set.source), nil
}

func orderValueSummary(orders []orderRecord) OrderValueSummary {
	summary := OrderValueSummary{Orders: len(orders)}
	for _, o := range orders {
		summary.TotalRevenue += o.Total
	}
	if summary.Orders > 0 {
		summary.AverageOrderValue = summary.TotalRevenue / float64(summary.Orders)
	}
	return summary
}

// ProfitByPeriod needs per-item cost. Lines without a recorded cost count their
// full price as profit and the result is marked degraded.
func (e *SalesEngine) ProfitByPeriod(ctx context.Context, businessID string, f Filter, period Period) (Result[[]ProfitBucket], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]ProfitBucket]{}, err
	}
	set, err := e.core.completedOrders(ctx, "profit_by_period", f, loadOptions{items: true})
	if err != nil {
		return Result[[]ProfitBucket]{}, err
	}

	byKey := make(map[string]*ProfitBucket)
	for _, o := range set.orders {
		key := BucketKey(o.CreatedAt.In(e.core.loc), period)
		b := byKey[key]
		if b == nil {
			b = &ProfitBucket{Period: key}
			byKey[key] = b
		}
		b.Revenue += o.Total
		b.Orders++
		for _, line := range o.Items {
			b.Cost += line.Cost * float64(line.Quantity)
		}
	}
	out := make([]ProfitBucket, 0, len(byKey))
	for _, b := range byKey {
		b.Profit = b.Revenue - b.Cost
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })

	// every line of an order contributes cost, whatever the item filter
	if reason, gap := costGap(set, Filter{}); gap {
		metrics.RecordDegraded("profit_by_period", costLabel(reason))
		return degraded(out, set.source, reason), nil
	}
	return complete(out, set.source), nil
}

// StatusBreakdown reads the live orders table: the archive only holds terminal states.
func (e *SalesEngine) StatusBreakdown(ctx context.Context, businessID string, f Filter) (Result[[]StatusCount], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]StatusCount]{}, err
	}
	counts, err := e.statusCounts(ctx, f)
	if err != nil {
		return Result[[]StatusCount]{}, err
	}
	return complete(counts, SourceRelational), nil
}

func (e *SalesEngine) statusCounts(ctx context.Context, f Filter) ([]StatusCount, error) {
	conds := BuildConditions(f, orderColumns)
	conds.Add("o.status <> ?", statusCart)
	rows, err := e.core.rel.Query(ctx, `select o.status, count(*) as orders
		from orders o
		where `+conds.Where()+`
		group by o.status
		order by orders desc, o.status asc`, conds.Args...)
	if err != nil {
		return nil, err
	}
	out := make([]StatusCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, StatusCount{Status: row.String("status"), Orders: int(row.Int("orders"))})
	}
	return out, nil
}

func (e *SalesEngine) CancellationRate(ctx context.Context, businessID string, f Filter) (Result[RateSummary], error) {
	return e.statusRate(ctx, businessID, f, statusCancelled)
}

func (e *SalesEngine) RejectionRate(ctx context.Context, businessID string, f Filter) (Result[RateSummary], error) {
	return e.statusRate(ctx, businessID, f, statusRejected)
}

func (e *SalesEngine) statusRate(ctx context.Context, businessID string, f Filter, status string) (Result[RateSummary], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[RateSummary]{}, err
	}
	counts, err := e.statusCounts(ctx, f)
	if err != nil {
		return Result[RateSummary]{}, err
	}
	return complete(rateFromCounts(counts, status), SourceRelational), nil
}

func rateFromCounts(counts []StatusCount, status string) RateSummary {
	var summary RateSummary
	for _, c := range counts {
		summary.Total += c.Orders
		if c.Status == status {
			summary.Count += c.Orders
		}
	}
	summary.Rate = utils.Percent(float64(summary.Count), float64(summary.Total))
	return summary
}

func (e *SalesEngine) PeakHours(ctx context.Context, businessID string, f Filter, limit int) (Result[[]HourCount], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]HourCount]{}, err
	}
	set, err := e.core.completedOrders(ctx, "peak_hours", f, loadOptions{})
	if err != nil {
		return Result[[]HourCount]{}, err
	}
	return complete(peakHours(set.orders, e.core.loc, limit), set.source), nil
}

func peakHours(orders []orderRecord, loc *time.Location, limit int) []HourCount {
	byHour := make(map[int]*HourCount)
	for _, o := range orders {
		h := o.CreatedAt.In(loc).Hour()
		row := byHour[h]
		if row == nil {
			row = &HourCount{Hour: h}
			byHour[h] = row
		}
		row.Orders++
		row.Revenue += o.Total
	}
	out := make([]HourCount, 0, len(byHour))
	for _, row := range byHour {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Orders == out[j].Orders {
			return out[i].Hour < out[j].Hour
		}
		return out[i].Orders > out[j].Orders
	})
	return truncate(out, limit)
}

func (e *SalesEngine) PeakDays(ctx context.Context, businessID string, f Filter, limit int) (Result[[]DayCount], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]DayCount]{}, err
	}
	set, err := e.core.completedOrders(ctx, "peak_days", f, loadOptions{})
	if err != nil {
		return Result[[]DayCount]{}, err
	}

	byDay := make(map[time.Weekday]*DayCount)
	for _, o := range set.orders {
		d := o.CreatedAt.In(e.core.loc).Weekday()
		row := byDay[d]
		if row == nil {
			row = &DayCount{Day: int(d), DayName: d.String()}
			byDay[d] = row
		}
		row.Orders++
		row.Revenue += o.Total
	}
	out := make([]DayCount, 0, len(byDay))
	for _, row := range byDay {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Orders == out[j].Orders {
			return out[i].Day < out[j].Day
		}
		return out[i].Orders > out[j].Orders
	})
	return complete(truncate(out, limit), set.source), nil
}

// SalesHeatmap returns observed cells ordered by day then hour.
func (e *SalesEngine) SalesHeatmap(ctx context.Context, businessID string, f Filter) (Result[[]HeatmapCell], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]HeatmapCell]{}, err
	}
	set, err := e.core.completedOrders(ctx, "sales_heatmap", f, loadOptions{})
	if err != nil {
		return Result[[]HeatmapCell]{}, err
	}

	type cellKey struct{ day, hour int }
	cells := make(map[cellKey]*HeatmapCell)
	for _, o := range set.orders {
		local := o.CreatedAt.In(e.core.loc)
		k := cellKey{int(local.Weekday()), local.Hour()}
		cell := cells[k]
		if cell == nil {
			cell = &HeatmapCell{DayOfWeek: k.day, Hour: k.hour}
			cells[k] = cell
		}
		cell.Orders++
		cell.Revenue += o.Total
	}
	out := make([]HeatmapCell, 0, len(cells))
	for _, cell := range cells {
		out = append(out, *cell)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek == out[j].DayOfWeek {
			return out[i].Hour < out[j].Hour
		}
		return out[i].DayOfWeek < out[j].DayOfWeek
	})
	return complete(out, set.source), nil
}

func (e *SalesEngine) TimeToComplete(ctx context.Context, businessID string, f Filter) (Result[CompletionTimeStats], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[CompletionTimeStats]{}, err
	}
	set, err := e.core.completedOrders(ctx, "time_to_complete", f, loadOptions{completedAt: true})
	if err != nil {
		return Result[CompletionTimeStats]{}, err
	}
	if set.source == SourceRelational && !set.caps.OrderCompletedAt {
		metrics.RecordDegraded("time_to_complete", "no_completed_at")
		return degraded(CompletionTimeStats{}, set.source, reasonNoCompletedAt), nil
	}
	return complete(completionStats(set.orders), set.source), nil
}

func completionStats(orders []orderRecord) CompletionTimeStats {
	var stats CompletionTimeStats
	total := 0.0
	stats.MinMinutes = math.MaxFloat64
	for _, o := range orders {
		if o.CompletedAt == nil {
			continue
		}
		minutes := o.CompletedAt.Sub(o.CreatedAt).Minutes()
		if minutes < 0 {
			continue
		}
		stats.Orders++
		total += minutes
		stats.MinMinutes = math.Min(stats.MinMinutes, minutes)
		stats.MaxMinutes = math.Max(stats.MaxMinutes, minutes)
	}
	if stats.Orders == 0 {
		return CompletionTimeStats{}
	}
	stats.AverageMinutes = total / float64(stats.Orders)
	return stats
}

func (e *SalesEngine) DeliveryTypeBreakdown(ctx context.Context, businessID string, f Filter) (Result[[]BreakdownRow], error) {
	return e.breakdown(ctx, businessID, f, "delivery_type_breakdown", func(o orderRecord) string { return o.DeliveryType })
}

func (e *SalesEngine) PlatformBreakdown(ctx context.Context, businessID string, f Filter) (Result[[]BreakdownRow], error) {
	return e.breakdown(ctx, businessID, f, "platform_breakdown", func(o orderRecord) string { return o.Platform })
}

func (e *SalesEngine) breakdown(ctx context.Context, businessID string, f Filter, metric string, keyOf func(orderRecord) string) (Result[[]BreakdownRow], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]BreakdownRow]{}, err
	}
	set, err := e.core.completedOrders(ctx, metric, f, loadOptions{})
	if err != nil {
		return Result[[]BreakdownRow]{}, err
	}
	byKey := make(map[string]*BreakdownRow)
	for _, o := range set.orders {
		key := keyOf(o)
		if key == "" {
			key = "unknown"
		}
		row := byKey[key]
		if row == nil {
			row = &BreakdownRow{Key: key}
			byKey[key] = row
		}
		row.Orders++
		row.Revenue += o.Total
	}
	out := make([]BreakdownRow, 0, len(byKey))
	for _, row := range byKey {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Orders == out[j].Orders {
			return out[i].Key < out[j].Key
		}
		return out[i].Orders > out[j].Orders
	})
	return complete(out, set.source), nil
}

func truncate[T any](values []T, limit int) []T {
	if limit > 0 && len(values) > limit {
		return values[:limit]
	}
	return values
}
