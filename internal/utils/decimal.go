package utils

import (
	"fmt"
	"math"
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
)

func NumericToFloat64(value pgtype.Numeric) float64 {
	if !value.Valid {
		return 0
	}
	f, err := value.Float64Value()
	if err == nil {
		return f.Float64
	}
	// fallback to string parse
	text, err := value.MarshalJSON()
	if err != nil {
		return 0
	}
	var out float64
	if _, err := fmt.Sscan(string(text), &out); err != nil {
		return 0
	}
	return out
}

// AnyToFloat64 converts a driver or bson value into a float64; unknown shapes yield 0.
func AnyToFloat64(value any) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case pgtype.Numeric:
		return NumericToFloat64(v)
	case *pgtype.Numeric:
		if v == nil {
			return 0
		}
		return NumericToFloat64(*v)
	case pgtype.Float8:
		if !v.Valid {
			return 0
		}
		return v.Float64
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return parsed
	case fmt.Stringer:
		parsed, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0
		}
		return parsed
	}
	return 0
}

// Round2 rounds to two decimals for presentation.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// Percent returns part/total*100, or 0 when total is zero.
func Percent(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part * 100 / total
}
