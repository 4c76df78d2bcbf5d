package ops

import (
	"encoding/json"
	"math"
	"strconv"
)

// toNumber normalizes any Go numeric value to int64 or float64.
func toNumber(v any) (any, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return uintToNumber(uint64(n)), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return uintToNumber(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return f, true
		}
		return nil, false
	default:
		return nil, false
	}
}

func uintToNumber(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return float64(u)
}

// IsNumber reports whether v is a value Increment can add to.
func IsNumber(v any) bool {
	_, ok := toNumber(v)
	return ok
}

// addNumbers adds two numbers. Integers stay int64 unless the sum
// overflows; any float operand promotes the result to float64.
func addNumbers(a, b any) (any, bool) {
	na, ok := toNumber(a)
	if !ok {
		return nil, false
	}
	nb, ok := toNumber(b)
	if !ok {
		return nil, false
	}
	ia, aInt := na.(int64)
	ib, bInt := nb.(int64)
	if aInt && bInt {
		sum := ia + ib
		if (sum > ia) == (ib > 0) {
			return sum, true
		}
		return float64(ia) + float64(ib), true
	}
	return asFloat(na) + asFloat(nb), true
}

func asFloat(n any) float64 {
	switch v := n.(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}

func numbersEqual(a, b any) (equal bool, comparable bool) {
	na, ok := toNumber(a)
	if !ok {
		return false, false
	}
	nb, ok := toNumber(b)
	if !ok {
		return false, false
	}
	ia, aInt := na.(int64)
	ib, bInt := nb.(int64)
	if aInt && bInt {
		return ia == ib, true
	}
	return asFloat(na) == asFloat(nb), true
}
