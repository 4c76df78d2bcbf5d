package object

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/zeusync/objectsync/internal/core/ops"
)

var readOnlyKeys = map[string]struct{}{
	"objectId":  {},
	"createdAt": {},
	"updatedAt": {},
}

func (o *Object) checkMutable(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidValue)
	}
	if _, ok := readOnlyKeys[key]; ok {
		return fmt.Errorf("%w: %s", ErrImmutableKey, key)
	}
	if o.class != nil && o.ObjectID() != "" {
		for _, k := range o.class.ImmutableKeys {
			if k == key {
				return fmt.Errorf("%w: %s.%s", ErrImmutableKey, o.ClassName(), key)
			}
		}
	}
	return nil
}

// performOperation applies op to the estimated value of key and folds it
// into the current set. Nothing changes when either step fails.
func (o *Object) performOperation(key string, op ops.Operation) error {
	if err := o.checkMutable(key); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	value, err := op.Apply(o.estimated[key], key)
	if err != nil {
		return err
	}
	current := o.currentSet()
	merged, err := op.MergeWithPrevious(current.ops[key])
	if errors.Is(err, ops.ErrInvalidMerge) {
		// Edits that do not compose are pinned to the value they produce.
		merged, err = pin(value)
	}
	if err != nil {
		return err
	}
	current.ops[key] = merged
	if ops.IsDeleteToken(value) {
		delete(o.estimated, key)
	} else {
		o.estimated[key] = value
	}
	return nil
}

// Set replaces the value of key.
func (o *Object) Set(key string, value any) error {
	v, err := normalize(value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return o.performOperation(key, ops.NewSet(v))
}

// Unset removes key.
func (o *Object) Unset(key string) error {
	return o.performOperation(key, ops.NewDelete())
}

// Increment adds one to the numeric value of key.
func (o *Object) Increment(key string) error {
	return o.IncrementBy(key, int64(1))
}

// IncrementBy adds amount to the numeric value of key. A missing key
// starts from zero.
func (o *Object) IncrementBy(key string, amount any) error {
	op, err := ops.NewIncrement(amount)
	if err != nil {
		return err
	}
	return o.performOperation(key, op)
}

// AddToList appends values to the list at key.
func (o *Object) AddToList(key string, values ...any) error {
	list, err := normalizeList(values)
	if err != nil {
		return fmt.Errorf("add to %s: %w", key, err)
	}
	return o.performOperation(key, ops.NewAdd(list...))
}

// AddUniqueToList appends the values not already in the list at key.
func (o *Object) AddUniqueToList(key string, values ...any) error {
	list, err := normalizeList(values)
	if err != nil {
		return fmt.Errorf("add unique to %s: %w", key, err)
	}
	return o.performOperation(key, ops.NewAddUnique(list...))
}

// RemoveFromList removes every occurrence of values from the list at key.
func (o *Object) RemoveFromList(key string, values ...any) error {
	list, err := normalizeList(values)
	if err != nil {
		return fmt.Errorf("remove from %s: %w", key, err)
	}
	return o.performOperation(key, ops.NewRemove(list...))
}

func normalizeList(values []any) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		n, err := normalize(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// normalize validates a field value and converts it to the stored form:
// entities become *Object, slices []any and maps map[string]any.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string, json.Number, time.Time, ops.Relation:
		return t, nil
	case Entity:
		if t.object() == nil {
			return nil, fmt.Errorf("%w: nil object", ErrInvalidValue)
		}
		return t.object(), nil
	case ops.Operation:
		return nil, fmt.Errorf("%w: operation %s", ErrInvalidValue, t)
	case []byte:
		return append([]byte(nil), t...), nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			n, err := normalize(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	}

	if ops.IsNumber(v) {
		return v, nil
	}
	if list, ok := ops.AsList(v); ok {
		return normalizeList(list)
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return normalize(m)
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidValue, v)
}

// Relation is a handle on a relation field.
type Relation struct {
	parent *Object
	key    string
}

// Relation returns a handle for editing the relation stored at key.
func (o *Object) Relation(key string) *Relation {
	return &Relation{parent: o, key: key}
}

// TargetClass is the class of related objects, empty until known.
func (r *Relation) TargetClass() string {
	v, _ := r.parent.Get(r.key)
	rel, _ := v.(ops.Relation)
	return rel.TargetClass
}

// Add adds saved targets to the relation.
func (r *Relation) Add(targets ...Entity) error {
	refs, err := references(targets)
	if err != nil {
		return err
	}
	op, err := ops.NewRelationAdd(refs...)
	if err != nil {
		return err
	}
	return r.parent.performOperation(r.key, op)
}

// Remove removes saved targets from the relation.
func (r *Relation) Remove(targets ...Entity) error {
	refs, err := references(targets)
	if err != nil {
		return err
	}
	op, err := ops.NewRelationRemove(refs...)
	if err != nil {
		return err
	}
	return r.parent.performOperation(r.key, op)
}

func references(targets []Entity) ([]ops.Reference, error) {
	refs := make([]ops.Reference, len(targets))
	for i, t := range targets {
		o := Unwrap(t)
		if o == nil {
			return nil, fmt.Errorf("%w: nil relation target", ErrInvalidValue)
		}
		refs[i] = o
	}
	return refs, nil
}
