package analytics

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const dashboardTopN = 5

type ChatSummary struct {
	RequestsHandled int64   `json:"requestsHandled"`
	Conversations   int64   `json:"conversations"`
	FallbackRate    float64 `json:"fallbackRate"`
}

type DegradedSection struct {
	Section string `json:"section"`
	Reason  string `json:"reason"`
}

type Dashboard struct {
	BusinessID       string             `json:"businessId"`
	Period           Period             `json:"period"`
	GeneratedAt      time.Time          `json:"generatedAt"`
	Summary          OrderValueSummary  `json:"summary"`
	Revenue          []RevenueBucket    `json:"revenue"`
	CancellationRate RateSummary        `json:"cancellationRate"`
	TopSpenders      []CustomerSpend    `json:"topSpenders"`
	PopularItems     []ItemCounter      `json:"popularItems"`
	Reservations     ReservationSummary `json:"reservations"`
	Chat             ChatSummary        `json:"chat"`
	Degraded         []DegradedSection  `json:"degraded"`
}

// Dashboard computes the overview sections concurrently, bounded by the fan-out
// limit. Any hard failure cancels the rest and is returned.
func (s *Service) Dashboard(ctx context.Context, businessID string, f Filter, period Period) (Dashboard, error) {
	f, err := scoped(businessID, f)
	if err != nil {
		return Dashboard{}, err
	}
	if period == "" {
		period = PeriodDay
	}

	out := Dashboard{BusinessID: f.BusinessID, Period: period, GeneratedAt: s.core.now().UTC()}
	var mu sync.Mutex
	note := func(section string, degraded bool, reason string) {
		if !degraded {
			return
		}
		mu.Lock()
		out.Degraded = append(out.Degraded, DegradedSection{Section: section, Reason: reason})
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.core.fanout)

	g.Go(func() error {
		res, err := s.Sales.OrderValueSummary(gctx, f.BusinessID, f)
		if err != nil {
			return err
		}
		out.Summary = res.Data
		return nil
	})
	g.Go(func() error {
		res, err := s.Sales.RevenueByPeriod(gctx, f.BusinessID, f, period)
		if err != nil {
			return err
		}
		out.Revenue = res.Data
		return nil
	})
	g.Go(func() error {
		res, err := s.Sales.CancellationRate(gctx, f.BusinessID, f)
		if err != nil {
			return err
		}
		out.CancellationRate = res.Data
		return nil
	})
	g.Go(func() error {
		res, err := s.Customers.TopSpenders(gctx, f.BusinessID, f, dashboardTopN)
		if err != nil {
			return err
		}
		out.TopSpenders = res.Data
		return nil
	})
	g.Go(func() error {
		res, err := s.Items.PopularItems(gctx, f.BusinessID, f, dashboardTopN)
		if err != nil {
			return err
		}
		out.PopularItems = res.Data
		note("popularItems", res.Degraded, res.Reason)
		return nil
	})
	g.Go(func() error {
		res, err := s.Reservations.ReservationSummary(gctx, f.BusinessID, f)
		if err != nil {
			return err
		}
		out.Reservations = res.Data
		return nil
	})
	g.Go(func() error {
		requests, err := s.Chat.RequestsHandled(gctx, f.BusinessID, f)
		if err != nil {
			return err
		}
		conversations, err := s.Chat.Conversations(gctx, f.BusinessID, f)
		if err != nil {
			return err
		}
		fallback, err := s.Chat.FallbackRate(gctx, f.BusinessID, f)
		if err != nil {
			return err
		}
		out.Chat = ChatSummary{
			RequestsHandled: requests.Data,
			Conversations:   conversations.Data,
			FallbackRate:    fallback.Data.Rate,
		}
		note("chat", requests.Degraded || conversations.Degraded || fallback.Degraded, firstReason(requests.Reason, conversations.Reason, fallback.Reason))
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	sort.Slice(out.Degraded, func(i, j int) bool { return out.Degraded[i].Section < out.Degraded[j].Section })
	return out, nil
}

func firstReason(reasons ...string) string {
	for _, r := range reasons {
		if r != "" {
			return r
		}
	}
	return ""
}
