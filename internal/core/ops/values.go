package ops

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/cespare/xxhash/v2"
)

// AsList converts any slice except []byte into a fresh []any.
func AsList(v any) ([]any, bool) {
	switch l := v.(type) {
	case nil:
		return nil, false
	case []any:
		out := make([]any, len(l))
		copy(out, l)
		return out, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// SameReference reports whether a and b denote the same server object.
func SameReference(a, b Reference) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	id := a.ObjectID()
	return id != "" && id == b.ObjectID() && a.ClassName() == b.ClassName()
}

// Equal is the equality used by list operations. References compare by
// identity or class+id, numbers numerically, times by instant; maps and
// slices by a fingerprint of their canonical JSON form.
func Equal(a, b any) bool {
	ra, aRef := a.(Reference)
	rb, bRef := b.(Reference)
	if aRef || bRef {
		return aRef && bRef && SameReference(ra, rb)
	}
	if eq, ok := numbersEqual(a, b); ok {
		return eq
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if isComposite(a) || isComposite(b) {
		fa, okA := Fingerprint(a)
		fb, okB := Fingerprint(b)
		if okA && okB {
			return fa == fb
		}
		return reflect.DeepEqual(a, b)
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta != nil && !ta.Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

func isComposite(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		_, isTime := v.(time.Time)
		return !isTime
	default:
		return false
	}
}

// Fingerprint hashes the canonical JSON encoding of v with xxhash. Object
// references are reduced to class/id (or their address when unsaved) so the
// fingerprint follows the same identity rules as Equal.
func Fingerprint(v any) (uint64, bool) {
	b, err := json.Marshal(canonical(v))
	if err != nil {
		return 0, false
	}
	return xxhash.Sum64(b), true
}

func canonical(v any) any {
	switch t := v.(type) {
	case Reference:
		if t.ObjectID() != "" {
			return map[string]any{"$ref": t.ClassName() + "/" + t.ObjectID()}
		}
		return map[string]any{"$ref": fmt.Sprintf("%s@%p", t.ClassName(), t)}
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = canonical(e)
		}
		return out
	case json.Number:
		if n, ok := toNumber(t); ok {
			return n
		}
		return t
	}
	if n, ok := toNumber(v); ok {
		if f, isFloat := n.(float64); isFloat && f == float64(int64(f)) {
			return int64(f)
		}
		return n
	}
	if l, ok := AsList(v); ok {
		for i := range l {
			l[i] = canonical(l[i])
		}
		return l
	}
	return v
}

func indexOf(list []any, v any) int {
	for i, e := range list {
		if Equal(e, v) {
			return i
		}
	}
	return -1
}

// dedupe keeps the first occurrence of every value.
func dedupe(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if indexOf(out, v) < 0 {
			out = append(out, v)
		}
	}
	return out
}
