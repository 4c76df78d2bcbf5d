// Package state holds the immutable snapshot of an object as last known from
// the server.
package state

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zeusync/objectsync/internal/core/ops"
)

// State is a snapshot of server data. A published State is never modified;
// every change produces a new value.
type State struct {
	ClassName  string
	ObjectID   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	IsNew      bool
	ServerData map[string]any
}

// New returns an empty, unsaved state of className.
func New(className string) *State {
	return &State{ClassName: className, ServerData: map[string]any{}}
}

func (s *State) clone() *State {
	c := *s
	c.ServerData = make(map[string]any, len(s.ServerData))
	for k, v := range s.ServerData {
		c.ServerData[k] = v
	}
	return &c
}

// MutatedClone returns a copy of s after fn has modified it.
func (s *State) MutatedClone(fn func(*State)) *State {
	c := s.clone()
	if fn != nil {
		fn(c)
	}
	return c
}

// Apply folds one operation set into a copy of s. Keys resolving to
// ops.DeleteToken are removed. A key whose operation fails keeps its old value
// and the failure is reported in the joined error.
func (s *State) Apply(set map[string]ops.Operation) (*State, error) {
	if len(set) == 0 {
		return s, nil
	}
	c := s.clone()
	var errs []error
	for _, key := range sortedKeys(set) {
		v, err := set[key].Apply(c.ServerData[key], key)
		if err != nil {
			errs = append(errs, fmt.Errorf("apply %s: %w", key, err))
			continue
		}
		if ops.IsDeleteToken(v) {
			delete(c.ServerData, key)
		} else {
			c.ServerData[key] = v
		}
	}
	return c, errors.Join(errs...)
}

// ApplyState overlays other onto a copy of s. Identity fields are copied only
// when set on other.
func (s *State) ApplyState(other *State) *State {
	if other == nil {
		return s
	}
	c := s.clone()
	if other.ObjectID != "" {
		c.ObjectID = other.ObjectID
	}
	if !other.CreatedAt.IsZero() {
		c.CreatedAt = other.CreatedAt
	}
	if !other.UpdatedAt.IsZero() {
		c.UpdatedAt = other.UpdatedAt
	}
	c.IsNew = other.IsNew
	for k, v := range other.ServerData {
		c.ServerData[k] = v
	}
	return c
}

// Get returns the server value of key.
func (s *State) Get(key string) (any, bool) {
	v, ok := s.ServerData[key]
	return v, ok
}

// Keys returns the server keys in sorted order.
func (s *State) Keys() []string {
	return sortedKeys(s.ServerData)
}

// Len returns the number of server keys.
func (s *State) Len() int { return len(s.ServerData) }

func (s *State) String() string {
	return fmt.Sprintf("%s(%s)", s.ClassName, s.ObjectID)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
