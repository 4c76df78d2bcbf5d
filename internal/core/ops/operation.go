// Package ops implements field operations: the edits recorded against a
// single key of an object before they are saved. Every operation can be
// applied to a value, merged with the operation recorded before it on the
// same key, and encoded for the wire.
package ops

import (
	"fmt"
)

// Operation is one pending edit of a single field.
//
// Apply computes the new value of the field from the old one (nil when the
// field is unset). It returns DeleteToken when the field should be removed.
// Apply never mutates old.
//
// MergeWithPrevious folds previous, recorded earlier on the same key, into a
// single operation equivalent to applying previous and then the receiver.
type Operation interface {
	Apply(old any, key string) (any, error)
	MergeWithPrevious(previous Operation) (Operation, error)
	Encode(enc ValueEncoder) (any, error)
	fmt.Stringer
}

// ValueEncoder turns field values into their JSON-compatible wire form.
type ValueEncoder interface {
	EncodeValue(v any) (any, error)
}

// Reference is implemented by server-backed objects that can appear as field
// values. Two references denote the same object when they are the same
// instance or share class name and a non-empty object id.
type Reference interface {
	ClassName() string
	ObjectID() string
}

type deleteToken struct{}

// DeleteToken is returned by Apply when the field must be removed.
var DeleteToken any = deleteToken{}

// IsDeleteToken reports whether an Apply result removes the key.
func IsDeleteToken(v any) bool {
	_, ok := v.(deleteToken)
	return ok
}

func invalidMerge(next, previous Operation) error {
	return fmt.Errorf("%w: %s after %s", ErrInvalidMerge, next, previous)
}

func mismatch(op Operation, key string, old any) error {
	return fmt.Errorf("%w: %s on key %q holding %T", ErrTypeMismatch, op, key, old)
}

// Set replaces the field value.
type Set struct {
	Value any
}

// NewSet returns an operation replacing the value.
func NewSet(value any) *Set { return &Set{Value: value} }

func (o *Set) Apply(_ any, _ string) (any, error) { return o.Value, nil }

func (o *Set) MergeWithPrevious(_ Operation) (Operation, error) { return o, nil }

func (o *Set) Encode(enc ValueEncoder) (any, error) { return enc.EncodeValue(o.Value) }

func (o *Set) String() string { return "Set" }

// Delete removes the field.
type Delete struct{}

// NewDelete returns an operation removing the key.
func NewDelete() *Delete { return &Delete{} }

func (o *Delete) Apply(_ any, _ string) (any, error) { return DeleteToken, nil }

func (o *Delete) MergeWithPrevious(_ Operation) (Operation, error) { return o, nil }

func (o *Delete) Encode(_ ValueEncoder) (any, error) {
	return map[string]any{"__op": "Delete"}, nil
}

func (o *Delete) String() string { return "Delete" }
