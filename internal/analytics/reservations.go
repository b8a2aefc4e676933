package analytics

import (
	"context"
	"sort"
	"time"

	"bizops-analytics/internal/metrics"
	"bizops-analytics/internal/utils"
)

const (
	reservationCompleted = "completed"
	reservationCancelled = "cancelled"
	reservationNoShow    = "no_show"
)

// ReservationEngine reads the live reservations table only.
type ReservationEngine struct {
	core *core
}

type ReservationSummary struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Cancelled      int     `json:"cancelled"`
	NoShows        int     `json:"noShows"`
	CompletionRate float64 `json:"completionRate"`
	NoShowRate     float64 `json:"noShowRate"`
	AverageGuests  float64 `json:"averageGuests"`
}

type ReservationHour struct {
	Hour         int   `json:"hour"`
	Reservations int   `json:"reservations"`
	Guests       int64 `json:"guests"`
}

type ReservationDay struct {
	Day          int    `json:"day"`
	DayName      string `json:"dayName"`
	Reservations int    `json:"reservations"`
	Guests       int64  `json:"guests"`
}

type TableUsage struct {
	TableID       string  `json:"tableId"`
	Name          string  `json:"name"`
	Capacity      int64   `json:"capacity,omitempty"`
	Reservations  int     `json:"reservations"`
	Guests        int64   `json:"guests"`
	AverageGuests float64 `json:"averageGuests"`
	OccupancyRate float64 `json:"occupancyRate"`
}

func (e *ReservationEngine) ReservationSummary(ctx context.Context, businessID string, f Filter) (Result[ReservationSummary], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[ReservationSummary]{}, err
	}
	caps, err := e.core.capabilities(ctx, f.BusinessID)
	if err != nil {
		return Result[ReservationSummary]{}, err
	}

	conds := BuildConditions(f, reservationColumns)
	completed := conds.Arg(reservationCompleted)
	cancelled := conds.Arg(reservationCancelled)
	noShow := conds.Arg(reservationNoShow)
	noShowPredicate := "r.status = " + noShow
	if caps.ReservationNoShow {
		noShowPredicate += " or coalesce(r.no_show, false)"
	}
	rows, err := e.core.rel.Query(ctx, `select count(*) as total,
			count(*) filter (where r.status = `+completed+`) as completed,
			count(*) filter (where r.status = `+cancelled+`) as cancelled,
			count(*) filter (where `+noShowPredicate+`) as no_shows,
			coalesce(avg(r.guests), 0) as average_guests
		from reservations r
		where `+conds.Where(), conds.Args...)
	if err != nil {
		return Result[ReservationSummary]{}, err
	}

	var out ReservationSummary
	if len(rows) > 0 {
		row := rows[0]
		out.Total = int(row.Int("total"))
		out.Completed = int(row.Int("completed"))
		out.Cancelled = int(row.Int("cancelled"))
		out.NoShows = int(row.Int("no_shows"))
		out.AverageGuests = utils.Round2(row.Float("average_guests"))
	}
	out.CompletionRate = utils.Percent(float64(out.Completed), float64(out.Total))
	out.NoShowRate = utils.Percent(float64(out.NoShows), float64(out.Total))
	return complete(out, SourceRelational), nil
}

type reservationSlot struct {
	date   time.Time
	hour   int
	hasHr  bool
	guests int64
}

// activeReservations loads non-cancelled reservations for time-of-day grouping.
func (e *ReservationEngine) activeReservations(ctx context.Context, f Filter) ([]reservationSlot, error) {
	conds := BuildConditions(f, reservationColumns)
	conds.Add("r.status <> ?", reservationCancelled)
	rows, err := e.core.rel.Query(ctx, `select r.date, r.time, r.guests
		from reservations r
		where `+conds.Where()+`
		order by r.date asc, r.time asc`, conds.Args...)
	if err != nil {
		return nil, err
	}
	out := make([]reservationSlot, 0, len(rows))
	for _, row := range rows {
		slot := reservationSlot{guests: row.Int("guests")}
		if d, ok := row.Time("date"); ok {
			slot.date = d
		}
		slot.hour, slot.hasHr = row.ClockHour("time")
		out = append(out, slot)
	}
	return out, nil
}

func (e *ReservationEngine) PeakReservationHours(ctx context.Context, businessID string, f Filter, limit int) (Result[[]ReservationHour], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]ReservationHour]{}, err
	}
	slots, err := e.activeReservations(ctx, f)
	if err != nil {
		return Result[[]ReservationHour]{}, err
	}
	byHour := make(map[int]*ReservationHour)
	for _, s := range slots {
		if !s.hasHr {
			continue
		}
		row := byHour[s.hour]
		if row == nil {
			row = &ReservationHour{Hour: s.hour}
			byHour[s.hour] = row
		}
		row.Reservations++
		row.Guests += s.guests
	}
	out := make([]ReservationHour, 0, len(byHour))
	for _, row := range byHour {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reservations == out[j].Reservations {
			return out[i].Hour < out[j].Hour
		}
		return out[i].Reservations > out[j].Reservations
	})
	return complete(truncate(out, limit), SourceRelational), nil
}

// PeakReservationDays groups by the reservation's calendar date weekday.
func (e *ReservationEngine) PeakReservationDays(ctx context.Context, businessID string, f Filter, limit int) (Result[[]ReservationDay], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]ReservationDay]{}, err
	}
	slots, err := e.activeReservations(ctx, f)
	if err != nil {
		return Result[[]ReservationDay]{}, err
	}
	byDay := make(map[time.Weekday]*ReservationDay)
	for _, s := range slots {
		if s.date.IsZero() {
			continue
		}
		d := s.date.Weekday()
		row := byDay[d]
		if row == nil {
			row = &ReservationDay{Day: int(d), DayName: d.String()}
			byDay[d] = row
		}
		row.Reservations++
		row.Guests += s.guests
	}
	out := make([]ReservationDay, 0, len(byDay))
	for _, row := range byDay {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reservations == out[j].Reservations {
			return out[i].Day < out[j].Day
		}
		return out[i].Reservations > out[j].Reservations
	})
	return complete(truncate(out, limit), SourceRelational), nil
}

// TableUtilization reports per-table load. Occupancy needs tables.capacity.
func (e *ReservationEngine) TableUtilization(ctx context.Context, businessID string, f Filter) (Result[[]TableUsage], error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Result[[]TableUsage]{}, err
	}
	caps, err := e.core.capabilities(ctx, f.BusinessID)
	if err != nil {
		return Result[[]TableUsage]{}, err
	}

	capacity := "null as capacity"
	groupBy := "t.id, t.name"
	if caps.TableCapacity {
		capacity = "t.capacity as capacity"
		groupBy += ", t.capacity"
	}
	conds := BuildConditions(f, reservationColumns)
	conds.Add("r.status <> ?", reservationCancelled)
	rows, err := e.core.rel.Query(ctx, `select t.id as table_id, t.name as table_name, `+capacity+`,
			count(r.id) as reservations, coalesce(sum(r.guests), 0) as guests
		from reservations r
		join tables t on t.id = r.table_id
		where `+conds.Where()+`
		group by `+groupBy+`
		order by reservations desc, t.name asc`, conds.Args...)
	if err != nil {
		return Result[[]TableUsage]{}, err
	}

	out := make([]TableUsage, 0, len(rows))
	for _, row := range rows {
		usage := TableUsage{
			TableID:      row.String("table_id"),
			Name:         row.String("table_name"),
			Capacity:     row.Int("capacity"),
			Reservations: int(row.Int("reservations")),
			Guests:       row.Int("guests"),
		}
		if usage.Reservations > 0 {
			usage.AverageGuests = utils.Round2(float64(usage.Guests) / float64(usage.Reservations))
		}
		usage.OccupancyRate = utils.Percent(usage.AverageGuests, float64(usage.Capacity))
		out = append(out, usage)
	}
	if !caps.TableCapacity {
		metrics.RecordDegraded("table_utilization", "no_table_capacity")
		return degraded(out, SourceRelational, reasonNoTableCapacity), nil
	}
	return complete(out, SourceRelational), nil
}
