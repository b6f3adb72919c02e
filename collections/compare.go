// Package collections provides the host-side list, map, set and iterator
// types the interpreter expects to find under their java.util names. Every
// type guards its contents with a lock so concurrent callers never observe a
// partial update.
package collections

import (
	"math"
	"reflect"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/pkg/errors"
)

// Comparable lets host types define their own ordering for sort, max and min.
type Comparable interface {
	CompareTo(other interface{}) (int, error)
}

func asFloat(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func asInt(v interface{}) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint()), true
	}
	return 0, false
}

// Compare orders two elements: numbers by value across widths, strings
// lexically, booleans false first, decimals exactly, and Comparable values by
// their own rule.
func Compare(a, b interface{}) (int, error) {
	if ai, ok := asInt(a); ok {
		if bi, ok := asInt(b); ok {
			switch {
			case ai < bi:
				return -1, nil
			case ai > bi:
				return 1, nil
			}
			return 0, nil
		}
	}
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			case math.IsNaN(af) && !math.IsNaN(bf):
				return 1, nil
			case !math.IsNaN(af) && math.IsNaN(bf):
				return -1, nil
			}
			return 0, nil
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, nil
			case !x:
				return -1, nil
			}
			return 1, nil
		}
	case *apd.Decimal:
		if y, ok := b.(*apd.Decimal); ok {
			return x.Cmp(y), nil
		}
	case Comparable:
		return x.CompareTo(b)
	}
	return 0, errors.Errorf("cannot compare %T with %T", a, b)
}

// Equal reports element equality. Numbers compare by value so an int32 sent
// by the interpreter matches an int stored by host code.
func Equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if _, ok := asFloat(a); ok {
		if _, ok := asFloat(b); ok {
			c, err := Compare(a, b)
			return err == nil && c == 0
		}
	}
	if x, ok := a.(*apd.Decimal); ok {
		if y, ok := b.(*apd.Decimal); ok {
			return x.Cmp(y) == 0
		}
	}
	ta := reflect.TypeOf(a)
	if ta == reflect.TypeOf(b) && ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func hashKey(k interface{}) (interface{}, error) {
	if k == nil {
		return nil, nil
	}
	if i, ok := asInt(k); ok {
		return i, nil
	}
	if !reflect.TypeOf(k).Comparable() {
		return nil, errors.Errorf("unhashable key type %T", k)
	}
	return k, nil
}
