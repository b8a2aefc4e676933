package analytics

import (
	"context"
	"testing"
	"time"

	"bizops-analytics/internal/db"
	"bizops-analytics/internal/docstore"
	"bizops-analytics/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequentlyBoughtTogetherCanonicalPairs(t *testing.T) {
	tests := []struct {
		name   string
		orders []orderRecord
		want   []ItemPair
	}{
		{
			name: "single basket with A and B",
			orders: []orderRecord{{ID: "o1", Items: []itemLine{
				{ItemID: "B", Name: "Bagel", Quantity: 1},
				{ItemID: "A", Name: "Americano", Quantity: 2},
			}}},
			want: []ItemPair{{ItemA: "A", NameA: "Americano", ItemB: "B", NameB: "Bagel", Count: 1}},
		},
		{
			name: "reversed baskets count as one pair",
			orders: []orderRecord{
				{ID: "o1", Items: []itemLine{{ItemID: "A", Name: "Americano"}, {ItemID: "B", Name: "Bagel"}}},
				{ID: "o2", Items: []itemLine{{ItemID: "B", Name: "Bagel"}, {ItemID: "A", Name: "Americano"}}},
			},
			want: []ItemPair{{ItemA: "A", NameA: "Americano", ItemB: "B", NameB: "Bagel", Count: 2}},
		},
		{
			name: "duplicate lines in one order count once",
			orders: []orderRecord{
				{ID: "o1", Items: []itemLine{{ItemID: "A"}, {ItemID: "B"}, {ItemID: "A"}}},
			},
			want: []ItemPair{{ItemA: "A", ItemB: "B", Count: 1}},
		},
		{
			name: "single item baskets produce no pairs",
			orders: []orderRecord{
				{ID: "o1", Items: []itemLine{{ItemID: "A"}}},
			},
			want: []ItemPair{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, boughtTogether(tc.orders, 10))
		})
	}
}

func TestFrequentlyBoughtTogetherRanking(t *testing.T) {
	orders := []orderRecord{
		{ID: "o1", Items: []itemLine{{ItemID: "A"}, {ItemID: "B"}, {ItemID: "C"}}},
		{ID: "o2", Items: []itemLine{{ItemID: "C"}, {ItemID: "B"}}},
	}
	got := boughtTogether(orders, 2)
	assert.Equal(t, []ItemPair{{ItemA: "B", ItemB: "C", Count: 2}, {ItemA: "A", ItemB: "B", Count: 1}}, got)
}

func TestProfitPerItemMatchesRevenueWithoutCost(t *testing.T) {
	env := newTestEnv(schema.Capabilities{OrderItemCost: false}, testNow).withoutDocuments()
	env.rel.
		on("from order_items oi",
			itemRow("o1", "i1", "Latte", 2, 4.5, nil),
			itemRow("o1", "i2", "Bagel", 1, 3, nil),
			itemRow("o2", "i1", "Latte", 1, 4.5, nil),
		).
		on("order by o.created_at asc, o.id asc",
			orderRow("o1", "p1", 12, at(2024, time.June, 1, 9, 0)),
			orderRow("o2", "p2", 4.5, at(2024, time.June, 2, 9, 0)),
		)
	ctx := context.Background()

	revenue, err := env.svc.Items.RevenuePerItem(ctx, "B1", Filter{})
	require.NoError(t, err)
	profit, err := env.svc.Items.ProfitPerItem(ctx, "B1", Filter{})
	require.NoError(t, err)

	assert.False(t, revenue.Degraded)
	assert.True(t, profit.Degraded)
	assert.Equal(t, revenue.Data, profit.Data)
	require.Len(t, profit.Data, 2)
	assert.Equal(t, "Latte", profit.Data[0].Name)
	assert.InDelta(t, 13.5, profit.Data[0].Profit, 1e-9)
	assert.InDelta(t, 100.0, profit.Data[0].MarginPercent, 1e-9)
	assert.Equal(t, 2, profit.Data[0].Orders)
}

func TestMostOrderedAndMostRewarding(t *testing.T) {
	env := newTestEnv(schema.Capabilities{}, testNow)
	cheap := itemDoc("i1", "Water", 10, 1)
	pricey := itemDoc("i2", "Steak", 1, 25)
	pricey["cost"] = 10.0
	env.docs.insert(docstore.OrderLogs, orderDoc("B1", "o1", "p1", 35, at(2024, time.June, 1, 9, 0), cheap, pricey))
	ctx := context.Background()

	ordered, err := env.svc.Items.MostOrderedItem(ctx, "B1", Filter{})
	require.NoError(t, err)
	require.NotNil(t, ordered.Data)
	assert.Equal(t, "Water", ordered.Data.Name)

	rewarding, err := env.svc.Items.MostRewardingItem(ctx, "B1", Filter{})
	require.NoError(t, err)
	require.NotNil(t, rewarding.Data)
	assert.Equal(t, "Steak", rewarding.Data.Name)
	assert.InDelta(t, 15.0, rewarding.Data.Profit, 1e-9)
	assert.True(t, rewarding.Degraded)
	assert.Equal(t, reasonNoItemCost, rewarding.Reason)

	empty := newTestEnv(schema.Capabilities{}, testNow)
	none, err := empty.svc.Items.MostOrderedItem(ctx, "B1", Filter{})
	require.NoError(t, err)
	assert.Nil(t, none.Data)
}

func TestArchivedItemsWithoutCostAreDegraded(t *testing.T) {
	env := newTestEnv(schema.Capabilities{OrderItemCost: true}, testNow)
	env.docs.insert(docstore.OrderLogs,
		orderDoc("B1", "o1", "p1", 12, at(2024, time.June, 1, 9, 0), itemDoc("i1", "Latte", 2, 4.5), itemDoc("i2", "Bagel", 1, 3)),
	)
	ctx := context.Background()

	profit, err := env.svc.Items.ProfitPerItem(ctx, "B1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, SourceDocuments, profit.Source)
	assert.True(t, profit.Degraded)
	assert.Equal(t, reasonNoItemCost, profit.Reason)
	require.Len(t, profit.Data, 2)
	assert.InDelta(t, 9.0, profit.Data[0].Profit, 1e-9)

	rewarding, err := env.svc.Items.MostRewardingItem(ctx, "B1", Filter{})
	require.NoError(t, err)
	assert.True(t, rewarding.Degraded)
	assert.Equal(t, reasonNoItemCost, rewarding.Reason)
	require.NotNil(t, rewarding.Data)
	assert.Equal(t, "Latte", rewarding.Data.Name)
}

func TestItemCostFilterOnlyChecksSelectedLines(t *testing.T) {
	env := newTestEnv(schema.Capabilities{}, testNow)
	coffee := itemDoc("i1", "Latte", 1, 4)
	coffee["categoryId"] = "drinks"
	coffee["cost"] = 1.5
	food := itemDoc("i2", "Bagel", 1, 3)
	food["categoryId"] = "food"
	env.docs.insert(docstore.OrderLogs, orderDoc("B1", "o1", "p1", 7, at(2024, time.June, 1, 9, 0), coffee, food))

	res, err := env.svc.Items.ProfitPerItem(context.Background(), "B1", Filter{CategoryID: "drinks"})
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	require.Len(t, res.Data, 1)
	assert.InDelta(t, 2.5, res.Data[0].Profit, 1e-9)
}

func TestLiveItemsWithNullCostAreDegraded(t *testing.T) {
	env := newTestEnv(schema.Capabilities{OrderItemCost: true}, testNow).withoutDocuments()
	env.rel.
		on("from order_items oi",
			itemRow("o1", "i1", "Latte", 2, 4.5, 1.0),
			itemRow("o1", "i2", "Bagel", 1, 3, nil),
		).
		on("order by o.created_at asc, o.id asc",
			orderRow("o1", "p1", 12, at(2024, time.June, 1, 9, 0)),
		)

	res, err := env.svc.Items.ProfitPerItem(context.Background(), "B1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, SourceRelational, res.Source)
	assert.True(t, res.Degraded)
	assert.Equal(t, reasonNoItemCost, res.Reason)

	items := env.rel.queriesMatching("from order_items oi")
	require.Len(t, items, 1)
	assert.Contains(t, items[0].sql, "oi.cost_at_time")
}

func TestCategoryFilterKeepsMatchingLines(t *testing.T) {
	env := newTestEnv(schema.Capabilities{}, testNow)
	coffee := itemDoc("i1", "Latte", 1, 4)
	coffee["categoryId"] = "drinks"
	food := itemDoc("i2", "Bagel", 1, 3)
	food["categoryId"] = "food"
	env.docs.insert(docstore.OrderLogs,
		orderDoc("B1", "o1", "p1", 7, at(2024, time.June, 1, 9, 0), coffee, food),
		orderDoc("B1", "o2", "p1", 3, at(2024, time.June, 1, 9, 0), food),
	)

	res, err := env.svc.Items.RevenuePerItem(context.Background(), "B1", Filter{CategoryID: "drinks"})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Latte", res.Data[0].Name)
}

func TestCounterRankings(t *testing.T) {
	t.Run("missing counters yield empty degraded list", func(t *testing.T) {
		env := newTestEnv(schema.Capabilities{}, testNow)
		res, err := env.svc.Items.PopularItems(context.Background(), "B1", Filter{}, 5)
		require.NoError(t, err)
		assert.True(t, res.Degraded)
		assert.NotNil(t, res.Data)
		assert.Empty(t, res.Data)
		assert.Empty(t, env.rel.queriesMatching("from items i"))
	})

	t.Run("counters present", func(t *testing.T) {
		env := newTestEnv(schema.Capabilities{ItemTimesOrdered: true, ItemTimesDelivered: true}, testNow)
		env.rel.on("from items i",
			db.Row{"id": "i1", "name": "Latte", "price": 4.5, "count": int64(120)},
			db.Row{"id": "i2", "name": "Bagel", "price": 3.0, "count": int64(80)},
		)
		res, err := env.svc.Items.MostDeliveredItems(context.Background(), "B1", Filter{CategoryID: "drinks"}, 0)
		require.NoError(t, err)
		assert.False(t, res.Degraded)
		assert.Equal(t, []ItemCounter{{ItemID: "i1", Name: "Latte", Price: 4.5, Count: 120}, {ItemID: "i2", Name: "Bagel", Price: 3, Count: 80}}, res.Data)

		q := env.rel.queriesMatching("from items i")[0]
		assert.Contains(t, q.sql, "i.times_delivered")
		assert.Contains(t, q.sql, "i.category_id = $2")
		assert.Contains(t, q.sql, "limit $3")
		assert.Equal(t, []any{"B1", "drinks", defaultLimit}, q.args)
	})
}

func TestTrendWindows(t *testing.T) {
	start := at(2024, time.June, 11, 0, 0)
	end := at(2024, time.June, 20, 0, 0)
	cur, prev := trendWindows(Filter{BusinessID: "B1", StartDate: &start, EndDate: &end}, testNow)

	assert.Equal(t, start, *cur.StartDate)
	assert.Equal(t, at(2024, time.June, 1, 0, 0), *prev.StartDate)
	assert.Equal(t, start.Add(-time.Microsecond), *prev.EndDate)

	cur, prev = trendWindows(Filter{BusinessID: "B1"}, testNow)
	assert.Equal(t, testNow, *cur.EndDate)
	assert.Equal(t, testNow.AddDate(0, 0, -30), *cur.StartDate)
	assert.Equal(t, testNow.AddDate(0, 0, -60), *prev.StartDate)
}

func TestPopularityTrend(t *testing.T) {
	current := []ItemStat{{ItemID: "a", Name: "A", Quantity: 10}, {ItemID: "b", Name: "B", Quantity: 5}, {ItemID: "n", Name: "New", Quantity: 2}}
	previous := []ItemStat{{ItemID: "a", Name: "A", Quantity: 5}, {ItemID: "b", Name: "B", Quantity: 5}, {ItemID: "g", Name: "Gone", Quantity: 4}}

	got := popularityTrend(current, previous)
	assert.Equal(t, []ItemTrend{
		{ItemID: "a", Name: "A", CurrentQuantity: 10, PreviousQuantity: 5, ChangePercent: 100, Trend: trendUp},
		{ItemID: "b", Name: "B", CurrentQuantity: 5, PreviousQuantity: 5, ChangePercent: 0, Trend: trendStable},
		{ItemID: "n", Name: "New", CurrentQuantity: 2, PreviousQuantity: 0, ChangePercent: 100, Trend: trendUp},
		{ItemID: "g", Name: "Gone", CurrentQuantity: 0, PreviousQuantity: 4, ChangePercent: -100, Trend: trendDown},
	}, got)
}

func TestPopularityTrendQueriesBothWindows(t *testing.T) {
	env := newTestEnv(schema.Capabilities{}, testNow)
	env.docs.insert(docstore.OrderLogs,
		orderDoc("B1", "o1", "p1", 4, at(2024, time.June, 10, 9, 0), itemDoc("i1", "Latte", 3, 4)),
		orderDoc("B1", "o2", "p1", 4, at(2024, time.May, 10, 9, 0), itemDoc("i1", "Latte", 1, 4)),
	)
	res, err := env.svc.Items.PopularityTrend(context.Background(), "B1", Filter{})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, int64(3), res.Data[0].CurrentQuantity)
	assert.Equal(t, int64(1), res.Data[0].PreviousQuantity)
	assert.Equal(t, trendUp, res.Data[0].Trend)
	assert.Len(t, env.docs.collection(docstore.OrderLogs).filters, 2)
}

func TestTimeOfDayRankings(t *testing.T) {
	for hour, want := range map[int]string{5: "morning", 11: "morning", 12: "afternoon", 16: "afternoon", 17: "evening", 21: "evening", 22: "night", 0: "night", 4: "night"} {
		assert.Equal(t, want, slotFor(hour), "hour %d", hour)
	}

	env := newTestEnv(schema.Capabilities{}, testNow)
	env.docs.insert(docstore.OrderLogs,
		orderDoc("B1", "o1", "p1", 4, at(2024, time.June, 10, 8, 0), itemDoc("i1", "Latte", 2, 2)),
		orderDoc("B1", "o2", "p1", 9, at(2024, time.June, 10, 23, 0), itemDoc("i2", "Fries", 3, 3)),
	)
	res, err := env.svc.Items.TimeOfDayRankings(context.Background(), "B1", Filter{}, 3)
	require.NoError(t, err)
	require.Len(t, res.Data, 4)
	assert.Equal(t, "morning", res.Data[0].Slot)
	assert.Equal(t, "Latte", res.Data[0].Items[0].Name)
	assert.Empty(t, res.Data[1].Items)
	assert.Empty(t, res.Data[2].Items)
	assert.Equal(t, "Fries", res.Data[3].Items[0].Name)
}
