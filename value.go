package epicsearch

import (
	"fmt"
	"strconv"
	"time"
)

// Canonical returns the comparison form of a scalar value. Values of
// different Go numeric types that denote the same number share one form.
func Canonical(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// Values flattens a scalar field value into its elements. A nil value has
// no elements and a list yields each element.
func Values(v any) []any {
	switch v := v.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

// CanonicalSet returns the distinct canonical forms of a value's elements.
func CanonicalSet(v any) map[string]struct{} {
	vs := Values(v)
	if len(vs) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(vs))
	for _, e := range vs {
		set[Canonical(e)] = struct{}{}
	}
	return set
}

// CloneValue returns a deep copy of a field value.
func CloneValue(v any) any {
	return cloneValue(v)
}
