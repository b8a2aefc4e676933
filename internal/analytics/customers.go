package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"bizops-analytics/internal/metrics"
	"bizops-analytics/internal/utils"
)

const defaultLimit = 10

var retentionWindows = []int{7, 14, 30}

type CustomerEngine struct {
	core *core
}

type CustomerSpend struct {
	Phone             string  `json:"phone"`
	Name              string  `json:"name"`
	Orders            int     `json:"orders"`
	TotalSpent        float64 `json:"totalSpent"`
	AverageOrderValue float64 `json:"averageOrderValue"`
}

type CustomerLifetime struct {
	Phone        string    `json:"phone"`
	Name         string    `json:"name"`
	Orders       int       `json:"orders"`
	TotalSpent   float64   `json:"totalSpent"`
	FirstOrderAt time.Time `json:"firstOrderAt"`
	LastOrderAt  time.Time `json:"lastOrderAt"`
	LifespanDays int       `json:"lifespanDays"`
	OrdersPerDay float64   `json:"ordersPerDay"`
	AverageOrder float64   `json:"averageOrderValue"`
	Segment      string    `json:"segment"`
}

type LifetimeSummary struct {
	TotalCustomers           int     `json:"totalCustomers"`
	TotalRevenue             float64 `json:"totalRevenue"`
	AverageLifetimeValue     float64 `json:"averageLifetimeValue"`
	AverageOrdersPerCustomer float64 `json:"averageOrdersPerCustomer"`
}

type SegmentCount struct {
	Segment   string  `json:"segment"`
	Customers int     `json:"customers"`
	Revenue   float64 `json:"revenue"`
}

type LifetimeValueReport struct {
	Customers []CustomerLifetime `json:"customers"`
	Summary   LifetimeSummary    `json:"summary"`
	Segments  []SegmentCount     `json:"segments"`
}

type RetentionWindow struct {
	Days     int     `json:"days"`
	Retained int     `json:"retained"`
	Rate     float64 `json:"rate"`
}

type RetentionReport struct {
	Customers int               `json:"customers"`
	Windows   []RetentionWindow `json:"windows"`
}

type ChurnedCustomer struct {
	Phone              string    `json:"phone"`
	Name               string    `json:"name"`
	Orders             int       `json:"orders"`
	TotalSpent         float64   `json:"totalSpent"`
	LastOrderAt        time.Time `json:"lastOrderAt"`
	DaysSinceLastOrder int       `json:"daysSinceLastOrder"`
}

type ChurnReport struct {
	LookbackMonths int               `json:"lookbackMonths"`
	TotalCustomers int               `json:"totalCustomers"`
	ChurnedCount   int               `json:"churnedCount"`
	ChurnRate      float64           `json:"churnRate"`
	Churned        []ChurnedCustomer `json:"churned"`
}

type NewVsReturning struct {
	NewCustomers       int     `json:"newCustomers"`
	ReturningCustomers int     `json:"returningCustomers"`
	NewOrders          int     `json:"newOrders"`
	ReturningOrders    int     `json:"returningOrders"`
	NewRevenue         float64 `json:"newRevenue"`
	ReturningRevenue   float64 `json:"returningRevenue"`
}

type ResponseBehavior struct {
	Orders                 int     `json:"orders"`
	AverageResponseSeconds float64 `json:"averageResponseSeconds"`
	Cancelled              int     `json:"cancelled"`
	Rejected               int     `json:"rejected"`
	CancellationRate       float64 `json:"cancellationRate"`
	RejectionRate          float64 `json:"rejectionRate"`
}

// customerAgg collects one customer's completed orders, oldest first.
type customerAgg struct {
	phone  string
	name   string
	orders []orderRecord
	spent  float64
}

func (a *customerAgg) first() time.Time { return a.orders[0].CreatedAt }
func (a *customerAgg) last() time.Time  { return a.orders[len(a.orders)-1].CreatedAt }

// groupByCustomer keeps first-seen order so ties stay stable within a call.
// Orders without a phone cannot be attributed and are skipped.
func groupByCustomer(orders []orderRecord) []*customerAgg {
	byPhone := make(map[string]*customerAgg)
	out := make([]*customerAgg, 0)
	for _, o := range orders {
		if o.CustomerPhone == "" {
			continue
		}
		agg := byPhone[o.CustomerPhone]
		if agg == nil {
			agg = &customerAgg{phone: o.CustomerPhone}
			byPhone[o.CustomerPhone] = agg
			out = append(out, agg)
		}
		if o.CustomerName != "" {
			agg.name = o.CustomerName
		}
		agg.orders = append(agg.orders, o)
		agg.spent += o.Total
	}
	return out
}

func (a *customerAgg) anyMatching(f Filter) bool {
	for _, o := range a.orders {
		if f.matchesOrder(o) {
			return true
		}
	}
	return false
}

func spendOf(a *customerAgg) CustomerSpend {
	return CustomerSpend{
		Phone:             a.phone,
		Name:              a.name,
		Orders:            len(a.orders),
		TotalSpent:        a.spent,
		AverageOrderValue: a.spent / float64(len(a.orders)),
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

func (e *CustomerEngine) TopSpenders(ctx context.Context, businessID string, f Filter, limit int) (Result[[]CustomerSpend], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]CustomerSpend]{}, err
	}
	set, err := e.core.completedOrders(ctx, "top_spenders", f, loadOptions{})
	if err != nil {
		return Result[[]CustomerSpend]{}, err
	}
	return complete(topSpenders(set.orders, normalizeLimit(limit)), set.source), nil
}

func topSpenders(orders []orderRecord, limit int) []CustomerSpend {
	customers := groupByCustomer(orders)
	out := make([]CustomerSpend, 0, len(customers))
	for _, c := range customers {
		out = append(out, spendOf(c))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalSpent > out[j].TotalSpent })
	return truncate(out, limit)
}

// RecurringCustomers lists customers with more than one completed order.
func (e *CustomerEngine) RecurringCustomers(ctx context.Context, businessID string, f Filter, limit int) (Result[[]CustomerSpend], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]CustomerSpend]{}, err
	}
	set, err := e.core.completedOrders(ctx, "recurring_customers", f, loadOptions{})
	if err != nil {
		return Result[[]CustomerSpend]{}, err
	}
	out := make([]CustomerSpend, 0)
	for _, c := range groupByCustomer(set.orders) {
		if len(c.orders) > 1 {
			out = append(out, spendOf(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Orders > out[j].Orders })
	return complete(truncate(out, normalizeLimit(limit)), set.source), nil
}

// LifetimeValue returns every customer ranked by spend (truncated to limit when
// limit > 0) and a summary over all customers.
func (e *CustomerEngine) LifetimeValue(ctx context.Context, businessID string, f Filter, limit int) (Result[LifetimeValueReport], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[LifetimeValueReport]{}, err
	}
	set, err := e.core.completedOrders(ctx, "lifetime_value", f, loadOptions{})
	if err != nil {
		return Result[LifetimeValueReport]{}, err
	}
	return complete(lifetimeValue(set.orders, limit), set.source), nil
}

func lifetimeValue(orders []orderRecord, limit int) LifetimeValueReport {
	customers := groupByCustomer(orders)
	report := LifetimeValueReport{Customers: make([]CustomerLifetime, 0, len(customers))}

	segments := map[string]*SegmentCount{}
	totalOrders := 0
	for _, c := range customers {
		lt := customerLifetime(c)
		report.Customers = append(report.Customers, lt)
		report.Summary.TotalRevenue += lt.TotalSpent
		totalOrders += lt.Orders

		seg := segments[lt.Segment]
		if seg == nil {
			seg = &SegmentCount{Segment: lt.Segment}
			segments[lt.Segment] = seg
		}
		seg.Customers++
		seg.Revenue += lt.TotalSpent
	}

	report.Summary.TotalCustomers = len(customers)
	if len(customers) > 0 {
		report.Summary.AverageLifetimeValue = report.Summary.TotalRevenue / float64(len(customers))
		report.Summary.AverageOrdersPerCustomer = float64(totalOrders) / float64(len(customers))
	}
	for _, name := range []string{"new", "casual", "regular", "vip"} {
		if seg := segments[name]; seg != nil {
			report.Segments = append(report.Segments, *seg)
		}
	}

	sort.SliceStable(report.Customers, func(i, j int) bool {
		return report.Customers[i].TotalSpent > report.Customers[j].TotalSpent
	})
	report.Customers = truncate(report.Customers, limit)
	return report
}

func customerLifetime(c *customerAgg) CustomerLifetime {
	count := len(c.orders)
	lifespan := int(c.last().Sub(c.first()).Hours() / 24)
	perDay := float64(count)
	if lifespan > 0 {
		perDay = float64(count) / math.Max(float64(lifespan), 1)
	}
	return CustomerLifetime{
		Phone:        c.phone,
		Name:         c.name,
		Orders:       count,
		TotalSpent:   c.spent,
		FirstOrderAt: c.first(),
		LastOrderAt:  c.last(),
		LifespanDays: lifespan,
		OrdersPerDay: perDay,
		AverageOrder: c.spent / float64(count),
		Segment:      segmentFor(count),
	}
}

func segmentFor(orders int) string {
	switch {
	case orders >= 10:
		return "vip"
	case orders >= 4:
		return "regular"
	case orders >= 2:
		return "casual"
	default:
		return "new"
	}
}

// Retention measures, for customers whose first order in the window falls inside
// the filter, whether a later order follows within 7, 14 and 30 days. The load
// extends past the filter end so late-window customers are not undercounted.
func (e *CustomerEngine) Retention(ctx context.Context, businessID string, f Filter) (Result[RetentionReport], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[RetentionReport]{}, err
	}
	load := f
	if f.EndDate != nil {
		load = f.WithRange(f.StartDate, timePtr(f.PaddedEnd().AddDate(0, 0, retentionWindows[len(retentionWindows)-1])))
	}
	set, err := e.core.completedOrders(ctx, "retention", load, loadOptions{})
	if err != nil {
		return Result[RetentionReport]{}, err
	}
	return complete(retention(set.orders, f), set.source), nil
}

func retention(orders []orderRecord, f Filter) RetentionReport {
	report := RetentionReport{Windows: make([]RetentionWindow, len(retentionWindows))}
	for i, days := range retentionWindows {
		report.Windows[i].Days = days
	}

	for _, c := range groupByCustomer(orders) {
		start := -1
		for i, o := range c.orders {
			if f.Contains(o.CreatedAt) {
				start = i
				break
			}
		}
		if start < 0 {
			continue
		}
		report.Customers++
		first := c.orders[start].CreatedAt

		var gap time.Duration = -1
		for _, o := range c.orders[start+1:] {
			if d := o.CreatedAt.Sub(first); d >= 0 {
				gap = d
				break
			}
		}
		if gap < 0 {
			continue
		}
		for i, days := range retentionWindows {
			if gap <= time.Duration(days)*24*time.Hour {
				report.Windows[i].Retained++
			}
		}
	}

	for i := range report.Windows {
		report.Windows[i].Rate = utils.Percent(float64(report.Windows[i].Retained), float64(report.Customers))
	}
	return report
}

// Churn flags customers whose last completed order is older than the lookback.
// The filter's date range is ignored: churn is relative to now. The remaining
// predicates pick which customers are considered, while their last order is
// taken from the whole business history.
func (e *CustomerEngine) Churn(ctx context.Context, businessID string, f Filter) (Result[ChurnReport], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[ChurnReport]{}, err
	}
	set, err := e.core.completedOrders(ctx, "churn", f.tenantHistory(nil), loadOptions{items: f.hasItemScope()})
	if err != nil {
		return Result[ChurnReport]{}, err
	}
	return complete(churn(set.orders, f, e.core.now(), e.core.churnLookback), set.source), nil
}

func churn(orders []orderRecord, f Filter, now time.Time, lookbackMonths int) ChurnReport {
	cutoff := now.AddDate(0, -lookbackMonths, 0)
	report := ChurnReport{
		LookbackMonths: lookbackMonths,
		Churned:        make([]ChurnedCustomer, 0),
	}
	for _, c := range groupByCustomer(orders) {
		if !c.anyMatching(f) {
			continue
		}
		report.TotalCustomers++
		last := c.last()
		if !last.Before(cutoff) {
			continue
		}
		report.Churned = append(report.Churned, ChurnedCustomer{
			Phone:              c.phone,
			Name:               c.name,
			Orders:             len(c.orders),
			TotalSpent:         c.spent,
			LastOrderAt:        last,
			DaysSinceLastOrder: int(now.Sub(last).Hours() / 24),
		})
	}
	sort.SliceStable(report.Churned, func(i, j int) bool {
		return report.Churned[i].LastOrderAt.Before(report.Churned[j].LastOrderAt)
	})
	report.ChurnedCount = len(report.Churned)
	report.ChurnRate = utils.Percent(float64(report.ChurnedCount), float64(report.TotalCustomers))
	return report
}

// NewVsReturning classifies orders selected by the filter by whether they are
// the customer's first-ever completed order for the business. History is loaded
// up to the end bound with only the tenant scope applied.
func (e *CustomerEngine) NewVsReturning(ctx context.Context, businessID string, f Filter) (Result[NewVsReturning], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[NewVsReturning]{}, err
	}
	set, err := e.core.completedOrders(ctx, "new_vs_returning", f.tenantHistory(f.EndDate), loadOptions{items: f.hasItemScope()})
	if err != nil {
		return Result[NewVsReturning]{}, err
	}
	return complete(newVsReturning(set.orders, f), set.source), nil
}

func newVsReturning(orders []orderRecord, f Filter) NewVsReturning {
	var out NewVsReturning
	for _, c := range groupByCustomer(orders) {
		seen := false
		for i, o := range c.orders {
			if !f.Contains(o.CreatedAt) || !f.matchesOrder(o) {
				continue
			}
			if i == 0 {
				out.NewOrders++
				out.NewRevenue += o.Total
			} else {
				out.ReturningOrders++
				out.ReturningRevenue += o.Total
			}
			if !seen {
				seen = true
				if i == 0 {
					out.NewCustomers++
				} else {
					out.ReturningCustomers++
				}
			}
		}
	}
	return out
}

// ResponseBehavior reads live orders that have a first response recorded.
func (e *CustomerEngine) ResponseBehavior(ctx context.Context, businessID string, f Filter) (Result[ResponseBehavior], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[ResponseBehavior]{}, err
	}
	caps, err := e.core.capabilities(ctx, f.BusinessID)
	if err != nil {
		return Result[ResponseBehavior]{}, err
	}
	if !caps.OrderFirstResponseAt {
		metrics.RecordDegraded("response_behavior", "no_first_response")
		return degraded(ResponseBehavior{}, SourceNone, reasonNoFirstResponse), nil
	}

	conds := BuildConditions(f, orderColumns)
	conds.Add("o.first_response_at is not null")
	conds.Add("o.status <> ?", statusCart)
	cancelled := conds.Arg(statusCancelled)
	rejected := conds.Arg(statusRejected)
	rows, err := e.core.rel.Query(ctx, `select count(*) as orders,
			coalesce(avg(extract(epoch from (o.first_response_at - o.created_at))), 0) as avg_response_seconds,
			count(*) filter (where o.status = `+cancelled+`) as cancelled,
			count(*) filter (where o.status = `+rejected+`) as rejected
		from orders o
		where `+conds.Where(), conds.Args...)
	if err != nil {
		return Result[ResponseBehavior]{}, err
	}

	var out ResponseBehavior
	if len(rows) > 0 {
		row := rows[0]
		out.Orders = int(row.Int("orders"))
		out.AverageResponseSeconds = row.Float("avg_response_seconds")
		out.Cancelled = int(row.Int("cancelled"))
		out.Rejected = int(row.Int("rejected"))
	}
	out.CancellationRate = utils.Percent(float64(out.Cancelled), float64(out.Orders))
	out.RejectionRate = utils.Percent(float64(out.Rejected), float64(out.Orders))
	return complete(out, SourceRelational), nil
}
