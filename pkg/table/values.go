package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// NullKey stands for a missing value inside a row key.
const NullKey = "\x00null"

// KeyOf renders v for exact key comparison. Integral floats render as ints
// so 3 and 3.0 compare equal.
func KeyOf(v any) string {
	if v == nil {
		return NullKey
	}
	if s, ok := AsString(v); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func IsNull(v any) bool {
	return v == nil
}

// AsString formats scalar values. It reports false for nil.
func AsString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case int:
		return strconv.Itoa(x), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e18 {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'g', -1, 64), true
	case float32:
		return AsString(float64(x))
	case bool:
		return strconv.FormatBool(x), true
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), true
	case []byte:
		return string(x), true
	default:
		return "", false
	}
}

// AsInt64 converts integers, integral floats and numeric strings.
func AsInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if ferr != nil || f != math.Trunc(f) {
				return 0, false
			}
			return int64(f), true
		}
		return n, true
	default:
		return 0, false
	}
}

func AsFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func AsBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case int64:
		return x != 0, true
	case int:
		return x != 0, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	default:
		return false, false
	}
}

// Less orders nulls last, numbers numerically and everything else as text.
func Less(a, b any) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	if x, ok := AsInt64(a); ok {
		if y, ok := AsInt64(b); ok {
			return x < y
		}
	}
	if x, ok := AsFloat64(a); ok {
		if y, ok := AsFloat64(b); ok {
			return x < y
		}
	}
	sa, _ := AsString(a)
	sb, _ := AsString(b)
	return sa < sb
}
