package object

import (
	"errors"
	"fmt"
	"sort"
)

type objectKey struct {
	class string
	id    string
}

func keyOf(o *Object) objectKey {
	return objectKey{class: o.ClassName(), id: o.ObjectID()}
}

// walk calls visit for every object reachable from v through nested maps and
// lists. It does not descend into the objects themselves.
func walk(v any, visit func(*Object) error) error {
	switch t := v.(type) {
	case *Object:
		if t == nil {
			return nil
		}
		return visit(t)
	case map[string]any:
		for _, k := range sortedKeys(t) {
			if err := walk(t[k], visit); err != nil {
				return err
			}
		}
	case []any:
		for _, item := range t {
			if err := walk(item, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// collector gathers the dirty objects reachable from a set of roots,
// children before parents. seen bounds the walk; seenNew holds the id-less
// objects on the current path and resets at every saved object.
type collector struct {
	seen map[*Object]struct{}
	out  []*Object
}

func collectDirty(roots []*Object) ([]*Object, error) {
	c := &collector{seen: map[*Object]struct{}{}}
	for _, root := range roots {
		if err := c.visit(root, nil); err != nil {
			return nil, err
		}
	}
	return c.out, nil
}

func (c *collector) visit(o *Object, seenNew map[*Object]struct{}) error {
	var scoped map[*Object]struct{}
	if o.ObjectID() == "" {
		if _, ok := seenNew[o]; ok {
			return fmt.Errorf("%w: %s", ErrCircularDependency, o)
		}
		scoped = make(map[*Object]struct{}, len(seenNew)+1)
		for k := range seenNew {
			scoped[k] = struct{}{}
		}
		scoped[o] = struct{}{}
	}

	if _, ok := c.seen[o]; ok {
		return nil
	}
	c.seen[o] = struct{}{}

	if err := walk(o.snapshot(), func(child *Object) error {
		return c.visit(child, scoped)
	}); err != nil {
		return err
	}

	if o.isDirtySelf() {
		c.out = append(c.out, o)
	}
	return nil
}

// canBeSerialized reports whether every object referenced by o already has
// an id.
func canBeSerialized(o *Object) bool {
	return walk(o.snapshot(), func(child *Object) error {
		if child.ObjectID() == "" {
			return ErrObjectNotSaved
		}
		return nil
	}) == nil
}

var errFound = errors.New("found")

func hasDirtyChildren(o *Object) bool {
	seen := map[*Object]struct{}{o: {}}
	var visit func(*Object) error
	visit = func(child *Object) error {
		if _, ok := seen[child]; ok {
			return nil
		}
		seen[child] = struct{}{}
		if child.isDirtySelf() {
			return errFound
		}
		return walk(child.snapshot(), visit)
	}
	return errors.Is(walk(o.snapshot(), visit), errFound)
}

// collectFetched indexes the objects referenced by o whose data is loaded.
func collectFetched(o *Object) map[objectKey]*Object {
	var fetched map[objectKey]*Object
	_ = walk(o.snapshot(), func(child *Object) error {
		if child.ObjectID() != "" && child.IsDataAvailable() {
			if fetched == nil {
				fetched = map[objectKey]*Object{}
			}
			fetched[keyOf(child)] = child
		}
		return nil
	})
	return fetched
}

// replaceFetched swaps bare pointers in v for loaded instances of the same
// object.
func replaceFetched(v any, fetched map[objectKey]*Object) any {
	switch t := v.(type) {
	case *Object:
		if t != nil && !t.IsDataAvailable() {
			if existing, ok := fetched[keyOf(t)]; ok {
				return existing
			}
		}
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = replaceFetched(item, fetched)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = replaceFetched(item, fetched)
		}
		return out
	default:
		return v
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
