package db

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"bizops-analytics/internal/utils"

	"github.com/jackc/pgx/v5/pgtype"
)

// Row is one result record keyed by column name.
type Row map[string]any

func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case pgtype.Text:
		return v.String
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (r Row) Float(key string) float64 {
	return utils.AnyToFloat64(r[key])
}

func (r Row) Int(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int16:
		return int64(v)
	case int:
		return int64(v)
	case string:
		parsed, _ := strconv.ParseInt(v, 10, 64)
		return parsed
	default:
		return int64(utils.AnyToFloat64(v))
	}
}

func (r Row) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case pgtype.Bool:
		return v.Valid && v.Bool
	case string:
		return strings.EqualFold(v, "true") || v == "t" || v == "1"
	default:
		return false
	}
}

func (r Row) IsNull(key string) bool {
	v, ok := r[key]
	return !ok || v == nil
}

// Time returns the timestamp stored under key; ok is false for NULL or unknown shapes.
func (r Row) Time(key string) (time.Time, bool) {
	switch v := r[key].(type) {
	case time.Time:
		return v, true
	case pgtype.Timestamptz:
		return v.Time, v.Valid
	case pgtype.Timestamp:
		return v.Time, v.Valid
	case pgtype.Date:
		return v.Time, v.Valid
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// ClockHour returns the hour of a time-of-day column (time, text "HH:MM" or timestamp).
func (r Row) ClockHour(key string) (int, bool) {
	switch v := r[key].(type) {
	case pgtype.Time:
		if !v.Valid {
			return 0, false
		}
		return int(v.Microseconds / int64(time.Hour/time.Microsecond)), true
	case time.Time:
		return v.Hour(), true
	case string:
		parts := strings.SplitN(strings.TrimSpace(v), ":", 2)
		hour, err := strconv.Atoi(parts[0])
		if err != nil || hour < 0 || hour > 23 {
			return 0, false
		}
		return hour, true
	}
	return 0, false
}
