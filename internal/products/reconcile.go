package products

import (
	"reflect"

	"github.com/shopspring/decimal"
)

// changedColumns diffs a proposed column set against the current one over an
// allow-list. A column missing from proposed is untouched. Numeric values are
// compared by value, not representation, so "10.0000" does not count as a
// change against 10.
func changedColumns(current, proposed map[string]any, editable []string) map[string]any {
	out := map[string]any{}
	for _, col := range editable {
		pv, ok := proposed[col]
		if !ok {
			continue
		}
		if !normalizedEqual(current[col], pv) {
			out[col] = pv
		}
	}
	return out
}

func normalizedEqual(a, b any) bool {
	a = deref(a)
	b = deref(b)

	if a == nil || b == nil {
		return a == nil && b == nil
	}

	da, aok := toDecimal(a)
	db, bok := toDecimal(b)
	if aok && bok {
		return da.Equal(db)
	}

	return reflect.DeepEqual(a, b)
}

func deref(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer {
		return v
	}
	if rv.IsNil() {
		return nil
	}
	return rv.Elem().Interface()
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case float32:
		return decimal.NewFromFloat(float64(n)), true
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}
