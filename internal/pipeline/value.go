package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseNumber coerces a loosely typed scalar into a finite float64.
// Finite numbers pass through unchanged. Anything else is stringified,
// stripped of every character that is not a digit, sign, decimal point, or
// exponent marker, and parsed. The second return value is false when the
// input has no usable numeric content; downstream treats that as missing.
//
// This tolerates currency symbols, thousands separators, percent signs, and
// surrounding whitespace uniformly: "$1,234.56" -> 1234.56, "12.5%" -> 12.5.
func ParseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		return parseNumericString(n.String())
	case string:
		return parseNumericString(n)
	default:
		return parseNumericString(fmt.Sprint(v))
	}
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumericString(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == '-' || r == '.' || r == 'e' || r == 'E':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}
