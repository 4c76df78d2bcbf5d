package ops

import (
	"fmt"
)

// Relation is the local value of a relation field. Only the target class is
// tracked; membership lives on the server.
type Relation struct {
	TargetClass string
}

// RelationOp adds and removes related objects by id.
type RelationOp struct {
	TargetClass string
	Adds        []string
	Removes     []string
}

// NewRelationAdd adds saved targets of one class to a relation.
func NewRelationAdd(targets ...Reference) (*RelationOp, error) {
	class, ids, err := relationTargets(targets)
	if err != nil {
		return nil, err
	}
	return &RelationOp{TargetClass: class, Adds: ids}, nil
}

// NewRelationRemove removes saved targets of one class from a relation.
func NewRelationRemove(targets ...Reference) (*RelationOp, error) {
	class, ids, err := relationTargets(targets)
	if err != nil {
		return nil, err
	}
	return &RelationOp{TargetClass: class, Removes: ids}, nil
}

func relationTargets(targets []Reference) (string, []string, error) {
	if len(targets) == 0 {
		return "", nil, ErrNoRelationTargets
	}
	class := targets[0].ClassName()
	ids := make([]string, 0, len(targets))
	for _, t := range targets {
		if t.ClassName() != class {
			return "", nil, fmt.Errorf("%w: %s and %s", ErrRelationClassMismatch, class, t.ClassName())
		}
		if t.ObjectID() == "" {
			return "", nil, ErrUnsavedRelationTarget
		}
		ids = appendID(ids, t.ObjectID())
	}
	return class, ids, nil
}

func (o *RelationOp) Apply(old any, key string) (any, error) {
	if len(o.Adds) == 0 && len(o.Removes) == 0 {
		return old, nil
	}
	switch v := old.(type) {
	case nil:
		return Relation{TargetClass: o.TargetClass}, nil
	case Relation:
		if v.TargetClass != "" && v.TargetClass != o.TargetClass {
			return nil, fmt.Errorf("%w: key %q holds %s, got %s", ErrRelationClassMismatch, key, v.TargetClass, o.TargetClass)
		}
		return Relation{TargetClass: o.TargetClass}, nil
	default:
		return nil, mismatch(o, key, old)
	}
}

func (o *RelationOp) MergeWithPrevious(previous Operation) (Operation, error) {
	switch prev := previous.(type) {
	case nil:
		return o, nil
	case *RelationOp:
		if prev.TargetClass != o.TargetClass {
			return nil, fmt.Errorf("%w: %s and %s", ErrRelationClassMismatch, prev.TargetClass, o.TargetClass)
		}
		adds := append([]string(nil), o.Adds...)
		for _, id := range prev.Adds {
			if !containsID(o.Removes, id) {
				adds = appendID(adds, id)
			}
		}
		removes := append([]string(nil), o.Removes...)
		for _, id := range prev.Removes {
			if !containsID(o.Adds, id) {
				removes = appendID(removes, id)
			}
		}
		return &RelationOp{TargetClass: o.TargetClass, Adds: adds, Removes: removes}, nil
	default:
		return nil, invalidMerge(o, previous)
	}
}

func (o *RelationOp) Encode(enc ValueEncoder) (any, error) {
	var encoded []any
	if len(o.Adds) > 0 {
		op, err := o.encodeTargets("AddRelation", o.Adds, enc)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, op)
	}
	if len(o.Removes) > 0 {
		op, err := o.encodeTargets("RemoveRelation", o.Removes, enc)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, op)
	}
	switch len(encoded) {
	case 0:
		return nil, nil
	case 1:
		return encoded[0], nil
	default:
		return map[string]any{"__op": "Batch", "ops": encoded}, nil
	}
}

func (o *RelationOp) encodeTargets(name string, ids []string, enc ValueEncoder) (any, error) {
	objects := make([]any, 0, len(ids))
	for _, id := range ids {
		v, err := enc.EncodeValue(pointer{class: o.TargetClass, id: id})
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		objects = append(objects, v)
	}
	return map[string]any{"__op": name, "objects": objects}, nil
}

func (o *RelationOp) String() string {
	return fmt.Sprintf("Relation(+%d,-%d)", len(o.Adds), len(o.Removes))
}

// pointer is a bare reference used to encode relation targets.
type pointer struct {
	class string
	id    string
}

func (p pointer) ClassName() string { return p.class }
func (p pointer) ObjectID() string  { return p.id }

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func appendID(ids []string, id string) []string {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}
