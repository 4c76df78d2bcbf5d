package ops

import (
	"fmt"
)

// Add appends values to a list field.
type Add struct {
	Objects []any
}

// NewAdd returns an operation appending values to a list.
func NewAdd(values ...any) *Add {
	return &Add{Objects: append([]any(nil), values...)}
}

func (o *Add) Apply(old any, key string) (any, error) {
	if old == nil {
		return append([]any{}, o.Objects...), nil
	}
	list, ok := AsList(old)
	if !ok {
		return nil, mismatch(o, key, old)
	}
	return append(list, o.Objects...), nil
}

func (o *Add) MergeWithPrevious(previous Operation) (Operation, error) {
	switch prev := previous.(type) {
	case nil:
		return o, nil
	case *Delete:
		return NewSet(append([]any{}, o.Objects...)), nil
	case *Set:
		v, err := o.Apply(prev.Value, "")
		if err != nil {
			return nil, fmt.Errorf("%w: %w", invalidMerge(o, previous), err)
		}
		return NewSet(v), nil
	case *Add:
		return NewAdd(append(append([]any{}, prev.Objects...), o.Objects...)...), nil
	default:
		return nil, invalidMerge(o, previous)
	}
}

func (o *Add) Encode(enc ValueEncoder) (any, error) {
	return encodeListOp("Add", o.Objects, enc)
}

func (o *Add) String() string { return "Add" }

// AddUnique appends values not already present. An object reference that
// matches an existing element replaces it in place.
type AddUnique struct {
	Objects []any
}

// NewAddUnique returns an operation appending values not already present.
func NewAddUnique(values ...any) *AddUnique {
	return &AddUnique{Objects: dedupe(values)}
}

func (o *AddUnique) Apply(old any, key string) (any, error) {
	if old == nil {
		return append([]any{}, o.Objects...), nil
	}
	list, ok := AsList(old)
	if !ok {
		return nil, mismatch(o, key, old)
	}
	return addUnique(list, o.Objects), nil
}

func addUnique(list, values []any) []any {
	for _, v := range values {
		i := indexOf(list, v)
		switch {
		case i < 0:
			list = append(list, v)
		case isReference(v):
			list[i] = v
		}
	}
	return list
}

func isReference(v any) bool {
	_, ok := v.(Reference)
	return ok
}

func (o *AddUnique) MergeWithPrevious(previous Operation) (Operation, error) {
	switch prev := previous.(type) {
	case nil:
		return o, nil
	case *Delete:
		return NewSet(append([]any{}, o.Objects...)), nil
	case *Set:
		v, err := o.Apply(prev.Value, "")
		if err != nil {
			return nil, fmt.Errorf("%w: %w", invalidMerge(o, previous), err)
		}
		return NewSet(v), nil
	case *AddUnique:
		return &AddUnique{Objects: addUnique(append([]any{}, prev.Objects...), o.Objects)}, nil
	default:
		return nil, invalidMerge(o, previous)
	}
}

func (o *AddUnique) Encode(enc ValueEncoder) (any, error) {
	return encodeListOp("AddUnique", o.Objects, enc)
}

func (o *AddUnique) String() string { return "AddUnique" }

// Remove deletes every occurrence of the given values from a list field.
type Remove struct {
	Objects []any
}

// NewRemove returns an operation removing every occurrence of values.
func NewRemove(values ...any) *Remove {
	return &Remove{Objects: dedupe(values)}
}

func (o *Remove) Apply(old any, key string) (any, error) {
	if old == nil {
		return []any{}, nil
	}
	list, ok := AsList(old)
	if !ok {
		return nil, mismatch(o, key, old)
	}
	out := make([]any, 0, len(list))
	for _, v := range list {
		if indexOf(o.Objects, v) < 0 {
			out = append(out, v)
		}
	}
	return out, nil
}

func (o *Remove) MergeWithPrevious(previous Operation) (Operation, error) {
	switch prev := previous.(type) {
	case nil:
		return o, nil
	case *Delete:
		return NewSet([]any{}), nil
	case *Set:
		v, err := o.Apply(prev.Value, "")
		if err != nil {
			return nil, fmt.Errorf("%w: %w", invalidMerge(o, previous), err)
		}
		return NewSet(v), nil
	case *Remove:
		return NewRemove(append(append([]any{}, prev.Objects...), o.Objects...)...), nil
	default:
		return nil, invalidMerge(o, previous)
	}
}

func (o *Remove) Encode(enc ValueEncoder) (any, error) {
	return encodeListOp("Remove", o.Objects, enc)
}

func (o *Remove) String() string { return "Remove" }

func encodeListOp(name string, objects []any, enc ValueEncoder) (any, error) {
	encoded, err := enc.EncodeValue(objects)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return map[string]any{"__op": name, "objects": encoded}, nil
}
