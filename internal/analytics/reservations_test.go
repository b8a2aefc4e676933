package analytics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bizops-analytics/internal/db"
	"bizops-analytics/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationSummary(t *testing.T) {
	tests := []struct {
		name        string
		caps        schema.Capabilities
		wantNoShowF bool
	}{
		{name: "status only", caps: schema.Capabilities{}},
		{name: "with no_show flag", caps: schema.Capabilities{ReservationNoShow: true}, wantNoShowF: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(tc.caps, testNow)
			env.rel.on("as no_shows", db.Row{
				"total":          int64(8),
				"completed":      int64(6),
				"cancelled":      int64(1),
				"no_shows":       int64(1),
				"average_guests": 3.125,
			})

			res, err := env.svc.Reservations.ReservationSummary(context.Background(), "B1", Filter{})
			require.NoError(t, err)
			assert.Equal(t, ReservationSummary{
				Total:          8,
				Completed:      6,
				Cancelled:      1,
				NoShows:        1,
				CompletionRate: 75,
				NoShowRate:     12.5,
				AverageGuests:  3.13,
			}, res.Data)

			q := env.rel.queriesMatching("as no_shows")[0]
			assert.Equal(t, tc.wantNoShowF, strings.Contains(q.sql, "r.no_show, false"))
			assert.Equal(t, []any{"B1", reservationCompleted, reservationCancelled, reservationNoShow}, q.args)
		})
	}
}

func TestReservationSummaryEmptyAndError(t *testing.T) {
	env := newTestEnv(schema.Capabilities{}, testNow)
	res, err := env.svc.Reservations.ReservationSummary(context.Background(), "B1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, ReservationSummary{}, res.Data)

	boom := errors.New("relation does not exist")
	env.rel.fail("from reservations r", boom)
	_, err = env.svc.Reservations.PeakReservationHours(context.Background(), "B1", Filter{}, 3)
	assert.ErrorIs(t, err, boom)
}

func TestPeakReservationHoursAndDays(t *testing.T) {
	env := newTestEnv(schema.Capabilities{}, testNow)
	env.rel.on("select r.date, r.time",
		db.Row{"date": at(2024, time.June, 7, 0, 0), "time": "19:30", "guests": int64(4)},
		db.Row{"date": at(2024, time.June, 7, 0, 0), "time": "19:00", "guests": int64(2)},
		db.Row{"date": at(2024, time.June, 8, 0, 0), "time": "12:15", "guests": int64(6)},
		db.Row{"date": at(2024, time.June, 14, 0, 0), "time": "bad", "guests": int64(2)},
	)
	ctx := context.Background()

	hours, err := env.svc.Reservations.PeakReservationHours(ctx, "B1", Filter{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []ReservationHour{{Hour: 19, Reservations: 2, Guests: 6}, {Hour: 12, Reservations: 1, Guests: 6}}, hours.Data)

	days, err := env.svc.Reservations.PeakReservationDays(ctx, "B1", Filter{}, 1)
	require.NoError(t, err)
	assert.Equal(t, []ReservationDay{{Day: 5, DayName: "Friday", Reservations: 3, Guests: 8}}, days.Data)

	q := env.rel.queriesMatching("select r.date, r.time")[0]
	assert.Contains(t, q.sql, "r.status <> $2")
}

func TestTableUtilization(t *testing.T) {
	rows := []db.Row{
		{"table_id": "t1", "table_name": "Window", "capacity": int64(4), "reservations": int64(2), "guests": int64(6)},
		{"table_id": "t2", "table_name": "Bar", "capacity": nil, "reservations": int64(1), "guests": int64(1)},
	}

	t.Run("with capacity", func(t *testing.T) {
		env := newTestEnv(schema.Capabilities{TableCapacity: true}, testNow)
		env.rel.on("join tables t", rows...)
		res, err := env.svc.Reservations.TableUtilization(context.Background(), "B1", Filter{})
		require.NoError(t, err)
		assert.False(t, res.Degraded)
		require.Len(t, res.Data, 2)
		assert.Equal(t, TableUsage{TableID: "t1", Name: "Window", Capacity: 4, Reservations: 2, Guests: 6, AverageGuests: 3, OccupancyRate: 75}, res.Data[0])
		assert.Zero(t, res.Data[1].OccupancyRate)
		assert.Contains(t, env.rel.queriesMatching("join tables t")[0].sql, "t.capacity as capacity")
	})

	t.Run("without capacity", func(t *testing.T) {
		env := newTestEnv(schema.Capabilities{}, testNow)
		env.rel.on("join tables t", rows[1])
		res, err := env.svc.Reservations.TableUtilization(context.Background(), "B1", Filter{})
		require.NoError(t, err)
		assert.True(t, res.Degraded)
		assert.Contains(t, env.rel.queriesMatching("join tables t")[0].sql, "null as capacity")
	})
}
