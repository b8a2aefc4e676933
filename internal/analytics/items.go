package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"bizops-analytics/internal/metrics"
	"bizops-analytics/internal/utils"
)

const (
	trendUp     = "up"
	trendDown   = "down"
	trendStable = "stable"

	defaultTrendDays = 30
)

type ItemEngine struct {
	core *core
}

// ItemCounter is an item ranked by an externally maintained counter column.
type ItemCounter struct {
	ItemID string  `json:"itemId"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Count  int64   `json:"count"`
}

type ItemStat struct {
	ItemID        string  `json:"itemId"`
	Name          string  `json:"name"`
	Quantity      int64   `json:"quantity"`
	Orders        int     `json:"orders"`
	Revenue       float64 `json:"revenue"`
	Cost          float64 `json:"cost"`
	Profit        float64 `json:"profit"`
	MarginPercent float64 `json:"marginPercent"`
}

type ItemTrend struct {
	ItemID           string  `json:"itemId"`
	Name             string  `json:"name"`
	CurrentQuantity  int64   `json:"currentQuantity"`
	PreviousQuantity int64   `json:"previousQuantity"`
	ChangePercent    float64 `json:"changePercent"`
	Trend            string  `json:"trend"`
}

type ItemPair struct {
	ItemA string `json:"itemA"`
	NameA string `json:"nameA"`
	ItemB string `json:"itemB"`
	NameB string `json:"nameB"`
	Count int    `json:"count"`
}

type TimeSlotRanking struct {
	Slot  string     `json:"slot"`
	Items []ItemStat `json:"items"`
}

func (e *ItemEngine) PopularItems(ctx context.Context, businessID string, f Filter, limit int) (Result[[]ItemCounter], error) {
	return e.counterRanking(ctx, businessID, f, limit, "times_ordered")
}

func (e *ItemEngine) MostDeliveredItems(ctx context.Context, businessID string, f Filter, limit int) (Result[[]ItemCounter], error) {
	return e.counterRanking(ctx, businessID, f, limit, "times_delivered")
}

// counterRanking returns an empty list for tenants whose items table predates
// the counter columns.
func (e *ItemEngine) counterRanking(ctx context.Context, businessID string, f Filter, limit int, column string) (Result[[]ItemCounter], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]ItemCounter]{}, err
	}
	caps, err := e.core.capabilities(ctx, f.BusinessID)
	if err != nil {
		return Result[[]ItemCounter]{}, err
	}
	present := caps.ItemTimesOrdered
	if column == "times_delivered" {
		present = caps.ItemTimesDelivered
	}
	if !present {
		metrics.RecordDegraded(column, "no_item_counters")
		return degraded([]ItemCounter{}, SourceNone, reasonNoItemCounters), nil
	}

	conds := BuildConditions(f, itemColumns)
	limitArg := conds.Arg(normalizeLimit(limit))
	rows, err := e.core.rel.Query(ctx, `select i.id, i.name, i.price, coalesce(i.`+column+`, 0) as count
		from items i
		where `+conds.Where()+`
		order by count desc, i.name asc
		limit `+limitArg, conds.Args...)
	if err != nil {
		return Result[[]ItemCounter]{}, err
	}
	out := make([]ItemCounter, 0, len(rows))
	for _, row := range rows {
		out = append(out, ItemCounter{
			ItemID: row.String("id"),
			Name:   row.String("name"),
			Price:  row.Float("price"),
			Count:  row.Int("count"),
		})
	}
	return complete(out, SourceRelational), nil
}

// itemStats aggregates sold lines per item in first-seen order.
func itemStats(orders []orderRecord, f Filter) []ItemStat {
	byKey := make(map[string]*ItemStat)
	keys := make([]string, 0)
	for _, o := range orders {
		seen := map[string]bool{}
		for _, line := range matchingLines(f, o.Items) {
			k := line.key()
			stat := byKey[k]
			if stat == nil {
				stat = &ItemStat{ItemID: line.ItemID, Name: line.Name}
				byKey[k] = stat
				keys = append(keys, k)
			}
			if stat.Name == "" {
				stat.Name = line.Name
			}
			if !seen[k] {
				seen[k] = true
				stat.Orders++
			}
			qty := float64(line.Quantity)
			stat.Quantity += line.Quantity
			stat.Revenue += line.Price * qty
			stat.Cost += line.Cost * qty
		}
	}
	out := make([]ItemStat, 0, len(keys))
	for _, k := range keys {
		stat := byKey[k]
		stat.Profit = stat.Revenue - stat.Cost
		stat.MarginPercent = utils.Percent(stat.Profit, stat.Revenue)
		out = append(out, *stat)
	}
	return out
}

func rankItems(stats []ItemStat, value func(ItemStat) float64) {
	sort.SliceStable(stats, func(i, j int) bool {
		vi, vj := value(stats[i]), value(stats[j])
		if vi == vj {
			return stats[i].Name < stats[j].Name
		}
		return vi > vj
	})
}

func byQuantity(s ItemStat) float64 { return float64(s.Quantity) }
func byRevenue(s ItemStat) float64  { return s.Revenue }
func byProfit(s ItemStat) float64   { return s.Profit }

func (e *ItemEngine) soldItems(ctx context.Context, metric string, businessID string, f Filter) ([]ItemStat, orderSet, error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return nil, orderSet{}, err
	}
	set, err := e.core.completedOrders(ctx, metric, f, loadOptions{items: true})
	if err != nil {
		return nil, orderSet{}, err
	}
	return itemStats(set.orders, f), set, nil
}

func costLabel(reason string) string {
	if reason == reasonNoCostColumn {
		return "no_cost_column"
	}
	return "no_item_cost"
}

// MostOrderedItem returns nil data when nothing was sold in the window.
func (e *ItemEngine) MostOrderedItem(ctx context.Context, businessID string, f Filter) (Result[*ItemStat], error) {
	stats, set, err := e.soldItems(ctx, "most_ordered_item", businessID, f)
	if err != nil {
		return Result[*ItemStat]{}, err
	}
	rankItems(stats, byQuantity)
	return complete(first(stats), set.source), nil
}

func (e *ItemEngine) MostRewardingItem(ctx context.Context, businessID string, f Filter) (Result[*ItemStat], error) {
	stats, set, err := e.soldItems(ctx, "most_rewarding_item", businessID, f)
	if err != nil {
		return Result[*ItemStat]{}, err
	}
	rankItems(stats, byProfit)
	if reason, gap := costGap(set, f); gap {
		metrics.RecordDegraded("most_rewarding_item", costLabel(reason))
		return degraded(first(stats), set.source, reason), nil
	}
	return complete(first(stats), set.source), nil
}

func first(stats []ItemStat) *ItemStat {
	if len(stats) == 0 {
		return nil
	}
	top := stats[0]
	return &top
}

func (e *ItemEngine) RevenuePerItem(ctx context.Context, businessID string, f Filter) (Result[[]ItemStat], error) {
	stats, set, err := e.soldItems(ctx, "revenue_per_item", businessID, f)
	if err != nil {
		return Result[[]ItemStat]{}, err
	}
	rankItems(stats, byRevenue)
	return complete(stats, set.source), nil
}

// ProfitPerItem matches RevenuePerItem row for row when cost is not tracked.
func (e *ItemEngine) ProfitPerItem(ctx context.Context, businessID string, f Filter) (Result[[]ItemStat], error) {
	stats, set, err := e.soldItems(ctx, "profit_per_item", businessID, f)
	if err != nil {
		return Result[[]ItemStat]{}, err
	}
	rankItems(stats, byProfit)
	if reason, gap := costGap(set, f); gap {
		metrics.RecordDegraded("profit_per_item", costLabel(reason))
		return degraded(stats, set.source, reason), nil
	}
	return complete(stats, set.source), nil
}

// PopularityTrend compares item quantities in the filter window against the
// window of equal length immediately before it.
func (e *ItemEngine) PopularityTrend(ctx context.Context, businessID string, f Filter) (Result[[]ItemTrend], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]ItemTrend]{}, err
	}
	current, previous := trendWindows(f, e.core.now())

	cur, err := e.core.completedOrders(ctx, "popularity_trend", current, loadOptions{items: true})
	if err != nil {
		return Result[[]ItemTrend]{}, err
	}
	prev, err := e.core.completedOrders(ctx, "popularity_trend", previous, loadOptions{items: true})
	if err != nil {
		return Result[[]ItemTrend]{}, err
	}

	source := cur.source
	if prev.source != cur.source {
		source = SourceRelational
	}
	return complete(popularityTrend(itemStats(cur.orders, f), itemStats(prev.orders, f)), source), nil
}

func trendWindows(f Filter, now time.Time) (Filter, Filter) {
	var start, end time.Time
	switch {
	case f.StartDate != nil && f.EndDate != nil:
		start, end = *f.StartDate, f.PaddedEnd()
	case f.StartDate != nil:
		start, end = *f.StartDate, now
	case f.EndDate != nil:
		end = f.PaddedEnd()
		start = end.AddDate(0, 0, -defaultTrendDays)
	default:
		end = now
		start = now.AddDate(0, 0, -defaultTrendDays)
	}
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		days = 1
	}
	prevStart := start.AddDate(0, 0, -days)
	prevEnd := start.Add(-time.Microsecond)
	return f.WithRange(timePtr(start), timePtr(end)), f.WithRange(timePtr(prevStart), timePtr(prevEnd))
}

func popularityTrend(current, previous []ItemStat) []ItemTrend {
	prevByKey := make(map[string]ItemStat, len(previous))
	for _, s := range previous {
		prevByKey[statKey(s)] = s
	}
	out := make([]ItemTrend, 0, len(current)+len(previous))
	seen := make(map[string]bool, len(current))
	for _, s := range current {
		k := statKey(s)
		seen[k] = true
		out = append(out, trendFor(s.ItemID, s.Name, s.Quantity, prevByKey[k].Quantity))
	}
	for _, s := range previous {
		if !seen[statKey(s)] {
			out = append(out, trendFor(s.ItemID, s.Name, 0, s.Quantity))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CurrentQuantity == out[j].CurrentQuantity {
			return out[i].Name < out[j].Name
		}
		return out[i].CurrentQuantity > out[j].CurrentQuantity
	})
	return out
}

func statKey(s ItemStat) string {
	return itemLine{ItemID: s.ItemID, Name: s.Name}.key()
}

func trendFor(id, name string, current, previous int64) ItemTrend {
	t := ItemTrend{ItemID: id, Name: name, CurrentQuantity: current, PreviousQuantity: previous}
	delta := current - previous
	switch {
	case previous > 0:
		t.ChangePercent = utils.Round2(float64(delta) / float64(previous) * 100)
	case current > 0:
		t.ChangePercent = 100
	}
	switch {
	case delta > 0:
		t.Trend = trendUp
	case delta < 0:
		t.Trend = trendDown
	default:
		t.Trend = trendStable
	}
	return t
}

// FrequentlyBoughtTogether counts unordered item pairs sharing an order. Each
// pair is keyed by (lower key, higher key) and counted once per order.
func (e *ItemEngine) FrequentlyBoughtTogether(ctx context.Context, businessID string, f Filter, limit int) (Result[[]ItemPair], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]ItemPair]{}, err
	}
	set, err := e.core.completedOrders(ctx, "frequently_bought_together", f, loadOptions{items: true})
	if err != nil {
		return Result[[]ItemPair]{}, err
	}
	return complete(boughtTogether(set.orders, normalizeLimit(limit)), set.source), nil
}

func boughtTogether(orders []orderRecord, limit int) []ItemPair {
	type pairKey struct{ a, b string }
	counts := make(map[pairKey]*ItemPair)
	for _, o := range orders {
		lines := make(map[string]itemLine)
		for _, line := range o.Items {
			lines[line.key()] = line
		}
		keys := make([]string, 0, len(lines))
		for k := range lines {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i := 0; i < len(keys); i++ {
			for j := i + 1; j < len(keys); j++ {
				k := pairKey{keys[i], keys[j]}
				p := counts[k]
				if p == nil {
					a, b := lines[keys[i]], lines[keys[j]]
					p = &ItemPair{ItemA: a.ItemID, NameA: a.Name, ItemB: b.ItemID, NameB: b.Name}
					counts[k] = p
				}
				p.Count++
			}
		}
	}

	type ranked struct {
		key  pairKey
		pair ItemPair
	}
	all := make([]ranked, 0, len(counts))
	for k, p := range counts {
		all = append(all, ranked{key: k, pair: *p})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].pair.Count != all[j].pair.Count {
			return all[i].pair.Count > all[j].pair.Count
		}
		if all[i].key.a != all[j].key.a {
			return all[i].key.a < all[j].key.a
		}
		return all[i].key.b < all[j].key.b
	})
	out := make([]ItemPair, 0, len(all))
	for _, r := range all {
		out = append(out, r.pair)
	}
	return truncate(out, limit)
}

var timeSlots = []struct {
	name     string
	from, to int
}{
	{"morning", 5, 11},
	{"afternoon", 12, 16},
	{"evening", 17, 21},
	{"night", 22, 4},
}

func slotFor(hour int) string {
	for _, s := range timeSlots {
		if s.from <= s.to && hour >= s.from && hour <= s.to {
			return s.name
		}
		if s.from > s.to && (hour >= s.from || hour <= s.to) {
			return s.name
		}
	}
	return ""
}

// TimeOfDayRankings ranks items by quantity within each part of the day.
// Every slot is present, possibly with no items.
func (e *ItemEngine) TimeOfDayRankings(ctx context.Context, businessID string, f Filter, limit int) (Result[[]TimeSlotRanking], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]TimeSlotRanking]{}, err
	}
	set, err := e.core.completedOrders(ctx, "time_of_day_rankings", f, loadOptions{items: true})
	if err != nil {
		return Result[[]TimeSlotRanking]{}, err
	}

	bySlot := make(map[string][]orderRecord, len(timeSlots))
	for _, o := range set.orders {
		slot := slotFor(o.CreatedAt.In(e.core.loc).Hour())
		bySlot[slot] = append(bySlot[slot], o)
	}
	out := make([]TimeSlotRanking, 0, len(timeSlots))
	for _, s := range timeSlots {
		stats := itemStats(bySlot[s.name], f)
		rankItems(stats, byQuantity)
		out = append(out, TimeSlotRanking{Slot: s.name, Items: truncate(stats, normalizeLimit(limit))})
	}
	return complete(out, set.source), nil
}
