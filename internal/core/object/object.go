package object

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/objectsync/internal/core/ops"
	"github.com/zeusync/objectsync/internal/core/state"
	"github.com/zeusync/objectsync/internal/core/tasks"
)

// Entity is implemented by *Object and by every type embedding it.
type Entity interface {
	ops.Reference
	object() *Object
}

// Unwrap returns the *Object behind e.
func Unwrap(e Entity) *Object {
	if e == nil {
		return nil
	}
	return e.object()
}

// Object is a local copy of one server object together with the edits not
// yet confirmed by the server.
//
// The queue always holds at least one operation set. The last one collects
// new edits, earlier ones belong to saves in flight. Estimated data is the
// server data with every queued set applied in order.
type Object struct {
	hub   *Hub
	class *Class
	self  Entity
	tasks *tasks.Queue

	mu        sync.Mutex
	st        atomic.Pointer[state.State]
	queue     []*operationSet
	estimated map[string]any
	dirty     bool
	available atomic.Bool
}

var _ Entity = (*Object)(nil)

func newObject(hub *Hub, className string) *Object {
	o := &Object{
		hub:       hub,
		tasks:     tasks.NewQueue(),
		queue:     []*operationSet{newOperationSet()},
		estimated: map[string]any{},
	}
	o.st.Store(state.New(className))
	if hub != nil {
		o.class, _ = hub.Class(className)
	}
	o.self = o
	if o.class != nil && o.class.Factory != nil {
		if wrapped := o.class.Factory(o); wrapped != nil && wrapped.object() == o {
			o.self = wrapped
		}
	}
	return o
}

func (o *Object) object() *Object { return o }

// Entity returns the registered wrapper of o, or o itself.
func (o *Object) Entity() Entity { return o.self }

func (o *Object) state() *state.State { return o.st.Load() }

// ClassName returns the class the object belongs to.
func (o *Object) ClassName() string { return o.state().ClassName }

// ObjectID returns the server id, or "" until the object is first saved.
func (o *Object) ObjectID() string { return o.state().ObjectID }

// CreatedAt returns the server creation time; zero while unsaved.
func (o *Object) CreatedAt() time.Time { return o.state().CreatedAt }

// UpdatedAt returns the time of the last saved change; zero while unsaved.
func (o *Object) UpdatedAt() time.Time { return o.state().UpdatedAt }

// IsNew reports whether the last save created the object on the server.
func (o *Object) IsNew() bool { return o.state().IsNew }

// IsDataAvailable is false for objects created from a bare id until they
// are fetched.
func (o *Object) IsDataAvailable() bool { return o.available.Load() }

// HasSameID reports whether other denotes the same server object.
func (o *Object) HasSameID(other Entity) bool {
	if other == nil {
		return false
	}
	return ops.SameReference(o, Unwrap(other))
}

// Field maps a declared property name to its field key.
func (o *Object) Field(property string) string {
	if o.class != nil {
		if key, ok := o.class.FieldNames[property]; ok {
			return key
		}
	}
	return property
}

// String renders the object as Class(id), or Class(new) while unsaved.
func (o *Object) String() string {
	id := o.ObjectID()
	if id == "" {
		id = "new"
	}
	return fmt.Sprintf("%s(%s)", o.ClassName(), id)
}

// Get returns the estimated value of key. Lists and maps are copied so the
// caller cannot modify published state.
func (o *Object) Get(key string) (any, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.estimated[key]
	return copyValue(v), ok
}

// Has reports whether key has an estimated value, including nil.
func (o *Object) Has(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.estimated[key]
	return ok
}

// Keys returns the estimated keys in sorted order.
func (o *Object) Keys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return sortedKeys(o.estimated)
}

// GetString returns key as a string.
func (o *Object) GetString(key string) (string, bool) {
	v, _ := o.Get(key)
	s, ok := v.(string)
	return s, ok
}

// GetBool returns key as a bool.
func (o *Object) GetBool(key string) (bool, bool) {
	v, _ := o.Get(key)
	b, ok := v.(bool)
	return b, ok
}

// GetInt64 returns key as an int64. Floats are accepted when they hold an
// integral value in range.
func (o *Object) GetInt64(key string) (int64, bool) {
	v, _ := o.Get(key)
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return int64(n), true
		}
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// GetFloat64 returns key as a float64, converting integers.
func (o *Object) GetFloat64(key string) (float64, bool) {
	v, _ := o.Get(key)
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// GetTime returns key as a time.Time.
func (o *Object) GetTime(key string) (time.Time, bool) {
	v, _ := o.Get(key)
	t, ok := v.(time.Time)
	return t, ok
}

// GetList returns a copy of a list field.
func (o *Object) GetList(key string) ([]any, bool) {
	v, _ := o.Get(key)
	return ops.AsList(v)
}

// GetMap returns a copy of a map field.
func (o *Object) GetMap(key string) (map[string]any, bool) {
	v, _ := o.Get(key)
	m, ok := v.(map[string]any)
	return m, ok
}

// copyValue copies nested lists and maps. Objects and scalars are shared.
func copyValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = copyValue(item)
		}
		return out
	case []byte:
		return append([]byte(nil), t...)
	}
	return v
}

// GetObject returns the object referenced by key.
func (o *Object) GetObject(key string) (Entity, bool) {
	v, _ := o.Get(key)
	child, ok := v.(*Object)
	if !ok {
		return nil, false
	}
	return child.self, true
}

// IsDirty reports unsaved edits on o or on any object it references.
func (o *Object) IsDirty() bool {
	if o.isDirtySelf() {
		return true
	}
	return hasDirtyChildren(o)
}

func (o *Object) isDirtySelf() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dirty || o.currentSet().len() > 0
}

// IsKeyDirty reports whether key has an unsaved edit.
func (o *Object) IsKeyDirty(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.currentSet().ops[key]
	return ok
}

// snapshot returns a shallow copy of the estimated data.
func (o *Object) snapshot() map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]any, len(o.estimated))
	for k, v := range o.estimated {
		out[k] = v
	}
	return out
}
