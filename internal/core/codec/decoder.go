package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeusync/objectsync/internal/core/ops"
	"github.com/zeusync/objectsync/internal/core/state"
)

// ObjectFactory materializes decoded pointers and nested objects. Decoders
// without a factory produce Pointer values.
type ObjectFactory interface {
	Pointer(className, objectID string) any
	Object(st *state.State) any
}

// Pointer is a bare object reference.
type Pointer struct {
	Class string
	ID    string
}

func (p Pointer) ClassName() string { return p.Class }
func (p Pointer) ObjectID() string  { return p.ID }

// Decoder turns server payloads into states, values and operations.
type Decoder struct {
	Factory ObjectFactory
}

// NewDecoder returns a decoder that materializes references with factory,
// which may be nil.
func NewDecoder(factory ObjectFactory) *Decoder {
	return &Decoder{Factory: factory}
}

// Unmarshal parses a JSON object keeping numbers exact.
func Unmarshal(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeState builds a state from a server payload. updatedAt falls back to
// createdAt.
func (d *Decoder) DecodeState(className string, data map[string]any) (*state.State, error) {
	st := state.New(className)
	for k, raw := range data {
		switch k {
		case "__type", "className":
			continue
		case "objectId":
			id, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%w: objectId %T", ErrMalformedValue, raw)
			}
			st.ObjectID = id
		case "createdAt", "updatedAt":
			t, err := d.decodeTime(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			if k == "createdAt" {
				st.CreatedAt = t
			} else {
				st.UpdatedAt = t
			}
		default:
			v, err := d.DecodeValue(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			st.ServerData[k] = v
		}
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = st.CreatedAt
	}
	return st, nil
}

func (d *Decoder) decodeTime(raw any) (time.Time, error) {
	switch t := raw.(type) {
	case string:
		return ParseDate(t)
	case map[string]any:
		if iso, ok := t["iso"].(string); ok {
			return ParseDate(iso)
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %T", ErrMalformedValue, raw)
}

// DecodeValue turns a wire value into its local form.
func (d *Decoder) DecodeValue(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: number %q", ErrMalformedValue, t)
		}
		return f, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			dec, err := d.DecodeValue(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = dec
		}
		return out, nil
	case map[string]any:
		if _, ok := t["__op"]; ok {
			return d.DecodeOperation(t)
		}
		if typ, ok := t["__type"].(string); ok {
			return d.decodeTyped(typ, t)
		}
		out := make(map[string]any, len(t))
		for k, item := range t {
			dec, err := d.DecodeValue(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = dec
		}
		return out, nil
	default:
		return v, nil
	}
}

func (d *Decoder) decodeTyped(typ string, m map[string]any) (any, error) {
	switch typ {
	case "Date":
		return d.decodeTime(m)
	case "Bytes":
		s, _ := m["base64"].(string)
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: bytes: %v", ErrMalformedValue, err)
		}
		return b, nil
	case "Pointer":
		class, _ := m["className"].(string)
		id, _ := m["objectId"].(string)
		if class == "" || id == "" {
			return nil, fmt.Errorf("%w: pointer without class or id", ErrMalformedValue)
		}
		if d.Factory == nil {
			return Pointer{Class: class, ID: id}, nil
		}
		return d.Factory.Pointer(class, id), nil
	case "Object":
		class, _ := m["className"].(string)
		if class == "" {
			return nil, fmt.Errorf("%w: object without class", ErrMalformedValue)
		}
		st, err := d.DecodeState(class, m)
		if err != nil {
			return nil, err
		}
		if d.Factory == nil {
			return Pointer{Class: class, ID: st.ObjectID}, nil
		}
		return d.Factory.Object(st), nil
	case "Relation":
		class, _ := m["className"].(string)
		return ops.Relation{TargetClass: class}, nil
	default:
		out := make(map[string]any, len(m))
		for k, item := range m {
			dec, err := d.DecodeValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = dec
		}
		return out, nil
	}
}

// DecodeOperation rebuilds an operation from its wire form.
func (d *Decoder) DecodeOperation(m map[string]any) (ops.Operation, error) {
	name, _ := m["__op"].(string)
	switch name {
	case "Delete":
		return ops.NewDelete(), nil
	case "Increment":
		amount, err := d.DecodeValue(m["amount"])
		if err != nil {
			return nil, err
		}
		return ops.NewIncrement(amount)
	case "Add", "AddUnique", "Remove":
		objects, err := d.decodeObjects(m)
		if err != nil {
			return nil, err
		}
		switch name {
		case "Add":
			return ops.NewAdd(objects...), nil
		case "AddUnique":
			return ops.NewAddUnique(objects...), nil
		default:
			return ops.NewRemove(objects...), nil
		}
	case "AddRelation", "RemoveRelation":
		raw, _ := m["objects"].([]any)
		targets := make([]ops.Reference, 0, len(raw))
		for _, item := range raw {
			p, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: relation target %T", ErrMalformedValue, item)
			}
			class, _ := p["className"].(string)
			id, _ := p["objectId"].(string)
			targets = append(targets, Pointer{Class: class, ID: id})
		}
		if name == "AddRelation" {
			return ops.NewRelationAdd(targets...)
		}
		return ops.NewRelationRemove(targets...)
	case "Batch":
		raw, _ := m["ops"].([]any)
		var merged ops.Operation
		for _, item := range raw {
			sub, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: batch entry %T", ErrMalformedValue, item)
			}
			op, err := d.DecodeOperation(sub)
			if err != nil {
				return nil, err
			}
			if merged == nil {
				merged = op
				continue
			}
			if merged, err = op.MergeWithPrevious(merged); err != nil {
				return nil, err
			}
		}
		if merged == nil {
			return nil, fmt.Errorf("%w: empty batch", ErrMalformedValue)
		}
		return merged, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
}

func (d *Decoder) decodeObjects(m map[string]any) ([]any, error) {
	raw, ok := m["objects"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %v without objects", ErrMalformedValue, m["__op"])
	}
	dec, err := d.DecodeValue(raw)
	if err != nil {
		return nil, err
	}
	return dec.([]any), nil
}
