package analytics

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrBusinessRequired = errors.New("business id is required")
	ErrInvalidRange     = errors.New("start date must not be after end date")
	ErrInvalidPeriod    = errors.New("period must be one of hour, day, week, month")
)

// Filter scopes every metric. BusinessID is always applied; the rest are optional.
type Filter struct {
	BusinessID   string     `json:"businessId"`
	BranchID     string     `json:"branchId,omitempty"`
	StartDate    *time.Time `json:"startDate,omitempty"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	DeliveryType string     `json:"deliveryType,omitempty"`
	Platform     string     `json:"platform,omitempty"`
	CategoryID   string     `json:"categoryId,omitempty"`
	MenuID       string     `json:"menuId,omitempty"`
}

func (f Filter) Validate() error {
	if strings.TrimSpace(f.BusinessID) == "" {
		return ErrBusinessRequired
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(f.PaddedEnd()) {
		return ErrInvalidRange
	}
	return nil
}

// PaddedEnd returns the inclusive upper bound. A date-only end (midnight) is
// widened to the last microsecond of that calendar day.
func (f Filter) PaddedEnd() time.Time {
	if f.EndDate == nil {
		return time.Time{}
	}
	return endOfDay(*f.EndDate)
}

func (f Filter) HasRange() bool {
	return f.StartDate != nil && f.EndDate != nil
}

// Contains reports whether t falls inside the filter's date range.
func (f Filter) Contains(t time.Time) bool {
	if f.StartDate != nil && t.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && t.After(f.PaddedEnd()) {
		return false
	}
	return true
}

// WithRange returns a copy with a new date range; nil clears a bound.
func (f Filter) WithRange(start, end *time.Time) Filter {
	f.StartDate = start
	f.EndDate = end
	return f
}

// tenantHistory keeps the business and branch scope with the given end bound
// and drops every other predicate.
func (f Filter) tenantHistory(end *time.Time) Filter {
	return Filter{BusinessID: f.BusinessID, BranchID: f.BranchID, EndDate: end}
}

// hasItemScope reports whether the filter selects by category or menu.
func (f Filter) hasItemScope() bool {
	return f.CategoryID != "" || f.MenuID != ""
}

// matchesOrder applies the non-date predicates to an order loaded without them.
// Category and menu match when any line of the order does.
func (f Filter) matchesOrder(o orderRecord) bool {
	if f.DeliveryType != "" && o.DeliveryType != f.DeliveryType {
		return false
	}
	if f.Platform != "" && o.Platform != f.Platform {
		return false
	}
	if f.hasItemScope() {
		return len(matchingLines(f, o.Items)) > 0
	}
	return true
}

func scoped(businessID string, f Filter) (Filter, error) {
	f.BusinessID = strings.TrimSpace(businessID)
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func endOfDay(t time.Time) time.Time {
	if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
		return t
	}
	return t.AddDate(0, 0, 1).Add(-time.Microsecond)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
