package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"bizops-analytics/internal/db"
	"bizops-analytics/internal/docstore"
	"bizops-analytics/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMessages(env *testEnv) {
	t0 := at(2024, time.June, 10, 9, 0)
	env.docs.insert(docstore.MessageLogs,
		messageDoc("B1", "p1", directionInbound, "text", t0, false),
		messageDoc("B1", "p1", directionOutbound, "text", t0.Add(2*time.Minute), false),
		messageDoc("B1", "p1", directionInbound, "menu", t0.Add(time.Hour), true),
		messageDoc("B1", "p1", directionOutbound, "text", t0.Add(time.Hour+10*time.Minute), false),
		messageDoc("B1", "p2", directionInbound, "order", t0.Add(2*time.Hour), false),
		messageDoc("B1", "p2", directionInbound, "order", t0.Add(3*time.Hour), false),
		messageDoc("B2", "p9", directionInbound, "text", t0, true),
	)
}

func TestResponseTimeCorrelation(t *testing.T) {
	env := newTestEnv(schema.Capabilities{}, testNow)
	seedMessages(env)

	res, err := env.svc.Chat.ResponseTime(context.Background(), "B1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, SourceDocuments, res.Source)
	assert.Equal(t, ResponseTime{Responded: 1, Unanswered: 3, AverageSeconds: 120, WindowSeconds: 300}, res.Data)
}

func TestCorrelateNextOutboundOnly(t *testing.T) {
	t0 := at(2024, time.June, 10, 9, 0)
	msgs := []messageRecord{
		{Phone: "p1", Direction: directionOutbound, At: t0.Add(3 * time.Minute)},
		{Phone: "p1", Direction: directionInbound, At: t0},
		{Phone: "p1", Direction: directionInbound, At: t0.Add(time.Minute)},
		{Phone: "p2", Direction: directionOutbound, At: t0.Add(time.Minute)},
	}
	got := correlate(msgs, Filter{BusinessID: "B1"}, 5*time.Minute)
	require.Len(t, got, 2)
	assert.Equal(t, 3*time.Minute, got[0].gap)
	assert.Equal(t, 2*time.Minute, got[1].gap)

	narrow := correlate(msgs, Filter{BusinessID: "B1"}, 150*time.Second)
	assert.False(t, narrow[0].answered)
	assert.True(t, narrow[1].answered)
}

func TestDropOffPoints(t *testing.T) {
	env := newTestEnv(schema.Capabilities{}, testNow)
	seedMessages(env)

	res, err := env.svc.Chat.DropOffPoints(context.Background(), "B1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, []DropOffPoint{{MessageType: "order", Count: 2}, {MessageType: "menu", Count: 1}}, res.Data)
}

func TestChatCounts(t *testing.T) {
	env := newTestEnv(schema.Capabilities{}, testNow)
	seedMessages(env)
	ctx := context.Background()

	requests, err := env.svc.Chat.RequestsHandled(ctx, "B1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), requests.Data)

	conversations, err := env.svc.Chat.Conversations(ctx, "B1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), conversations.Data)

	fallback, err := env.svc.Chat.FallbackRate(ctx, "B1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, FallbackRate{InboundMessages: 4, FallbackUsed: 1, Rate: 25}, fallback.Data)
}

func TestChatDegradesWhenNoSource(t *testing.T) {
	env := newTestEnv(schema.Capabilities{}, testNow).withoutDocuments()
	ctx := context.Background()

	requests, err := env.svc.Chat.RequestsHandled(ctx, "B1", Filter{})
	require.NoError(t, err)
	assert.True(t, requests.Degraded)
	assert.Equal(t, SourceNone, requests.Source)
	assert.Zero(t, requests.Data)

	drops, err := env.svc.Chat.DropOffPoints(ctx, "B1", Filter{})
	require.NoError(t, err)
	assert.True(t, drops.Degraded)
	assert.NotNil(t, drops.Data)
	assert.Empty(t, drops.Data)

	rt, err := env.svc.Chat.ResponseTime(ctx, "B1", Filter{})
	require.NoError(t, err)
	assert.True(t, rt.Degraded)
	assert.Equal(t, float64(300), rt.Data.WindowSeconds)
}

func TestChatFallsBackToMessageTable(t *testing.T) {
	env := newTestEnv(schema.Capabilities{MessageLogTable: true}, testNow).withoutDocuments()
	env.rel.on("from message_logs m", db.Row{"count": int64(7)})

	res, err := env.svc.Chat.RequestsHandled(context.Background(), "B1", Filter{})
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, SourceRelational, res.Source)
	assert.Equal(t, int64(7), res.Data)

	q := env.rel.queriesMatching("from message_logs m")[0]
	assert.Contains(t, q.sql, "m.business_id = $1 and m.direction = $2")
	assert.Equal(t, []any{"B1", directionInbound}, q.args)
}

func TestChatDocumentErrorTriesTable(t *testing.T) {
	env := newTestEnv(schema.Capabilities{MessageLogTable: true}, testNow)
	env.docs.collection(docstore.MessageLogs).err = errors.New("timeout")
	env.rel.on("from message_logs m", db.Row{"count": int64(3)})

	res, err := env.svc.Chat.Conversations(context.Background(), "B1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, SourceRelational, res.Source)
	assert.Equal(t, int64(3), res.Data)
}

func TestConversionRate(t *testing.T) {
	t.Run("orders over inbound messages", func(t *testing.T) {
		env := newTestEnv(schema.Capabilities{}, testNow)
		seedMessages(env)
		env.rel.on("select count(*) as count from orders o", db.Row{"count": int64(1)})

		res, err := env.svc.Chat.ConversionRate(context.Background(), "B1", Filter{})
		require.NoError(t, err)
		assert.False(t, res.Degraded)
		assert.Equal(t, ConversionRate{InboundMessages: 4, Orders: 1, Rate: 25}, res.Data)

		q := env.rel.queriesMatching("from orders o")[0]
		assert.Equal(t, []any{"B1", statusCart}, q.args)
	})

	t.Run("order count failure degrades", func(t *testing.T) {
		env := newTestEnv(schema.Capabilities{}, testNow)
		seedMessages(env)
		env.rel.fail("from orders o", errors.New("pool closed"))

		res, err := env.svc.Chat.ConversionRate(context.Background(), "B1", Filter{})
		require.NoError(t, err)
		assert.True(t, res.Degraded)
		assert.Equal(t, reasonOrdersUnavailable, res.Reason)
		assert.Equal(t, int64(4), res.Data.InboundMessages)
		assert.Zero(t, res.Data.Rate)
	})
}

func TestReplyWindowExtendsEnd(t *testing.T) {
	end := at(2024, time.June, 10, 0, 0)
	f := replyWindow(Filter{BusinessID: "B1", EndDate: &end}, 5*time.Minute)
	assert.Equal(t, at(2024, time.June, 11, 0, 4).Add(59*time.Second+999999*time.Microsecond), *f.EndDate)

	open := replyWindow(Filter{BusinessID: "B1"}, 5*time.Minute)
	assert.Nil(t, open.EndDate)
}
