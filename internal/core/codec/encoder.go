// Package codec converts field values, operations and object states to and
// from their JSON wire form.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/zeusync/objectsync/internal/core/ops"
)

// DateLayout is the wire format of dates. Times are always sent in UTC.
const DateLayout = "2006-01-02T15:04:05.000Z"

// Encoder produces wire values. The zero value is ready to use.
type Encoder struct{}

var _ ops.ValueEncoder = Encoder{}

// EncodeValue converts v to its JSON wire form.
func (e Encoder) EncodeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string, bool, json.Number:
		return t, nil
	case ops.Reference:
		return e.encodePointer(t)
	case time.Time:
		return map[string]any{"__type": "Date", "iso": FormatDate(t)}, nil
	case []byte:
		return map[string]any{"__type": "Bytes", "base64": base64.StdEncoding.EncodeToString(t)}, nil
	case ops.Relation:
		return map[string]any{"__type": "Relation", "className": t.TargetClass}, nil
	case ops.Operation:
		return t.Encode(e)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			enc, err := e.EncodeValue(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = enc
		}
		return out, nil
	}

	if ops.IsNumber(v) {
		return v, nil
	}
	if list, ok := ops.AsList(v); ok {
		out := make([]any, len(list))
		for i, item := range list {
			enc, err := e.EncodeValue(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = enc
		}
		return out, nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return e.EncodeValue(m)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

func (e Encoder) encodePointer(r ops.Reference) (any, error) {
	if r.ObjectID() == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsavedPointer, r.ClassName())
	}
	return map[string]any{
		"__type":    "Pointer",
		"className": r.ClassName(),
		"objectId":  r.ObjectID(),
	}, nil
}

// EncodeOperations encodes an operation set as a save body.
func (e Encoder) EncodeOperations(set map[string]ops.Operation) (map[string]any, error) {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	body := make(map[string]any, len(set))
	for _, k := range keys {
		enc, err := set[k].Encode(e)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		body[k] = enc
	}
	return body, nil
}

// FormatDate renders t in UTC with millisecond precision.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses DateLayout, falling back to RFC 3339.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrMalformedValue, s)
	}
	return t.UTC(), nil
}
