package analytics

import (
	"fmt"
	"strings"
	"time"
)

type Period string

const (
	PeriodHour  Period = "hour"
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

func ParsePeriod(value string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(value))) {
	case PeriodHour:
		return PeriodHour, nil
	case PeriodDay, "":
		return PeriodDay, nil
	case PeriodWeek:
		return PeriodWeek, nil
	case PeriodMonth:
		return PeriodMonth, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, value)
}

// BucketKey formats t into a sortable bucket key. Weeks follow ISO-8601: the
// key carries the ISO week-year, so 2023-01-01 (a Sunday) is "2022-W52".
func BucketKey(t time.Time, p Period) string {
	switch p {
	case PeriodHour:
		return t.Format("2006-01-02 15") + ":00:00"
	case PeriodWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case PeriodMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
