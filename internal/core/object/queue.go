package object

import (
	"fmt"
	"sort"

	"github.com/zeusync/objectsync/internal/core/observability/log"
	"github.com/zeusync/objectsync/internal/core/ops"
	"github.com/zeusync/objectsync/internal/core/state"
)

// operationSet holds the pending operations of one save generation. Sets are
// compared by identity.
type operationSet struct {
	ops map[string]ops.Operation
}

func newOperationSet() *operationSet {
	return &operationSet{ops: map[string]ops.Operation{}}
}

func (s *operationSet) len() int { return len(s.ops) }

func (s *operationSet) clone() *operationSet {
	c := newOperationSet()
	for k, op := range s.ops {
		c.ops[k] = op
	}
	return c
}

// currentSet must be called with o.mu held.
func (o *Object) currentSet() *operationSet {
	return o.queue[len(o.queue)-1]
}

func (o *Object) currentOperations() map[string]ops.Operation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentSet().clone().ops
}

// indexOfSet must be called with o.mu held.
func (o *Object) indexOfSet(set *operationSet) int {
	for i, s := range o.queue {
		if s == set {
			return i
		}
	}
	return -1
}

// rebuildEstimatedData must be called with o.mu held.
func (o *Object) rebuildEstimatedData() {
	st := o.state()
	estimated := make(map[string]any, st.Len())
	for k, v := range st.ServerData {
		estimated[k] = v
	}
	for _, set := range o.queue {
		o.applyToEstimated(estimated, set)
	}
	o.estimated = estimated
}

func (o *Object) applyToEstimated(target map[string]any, set *operationSet) {
	keys := make([]string, 0, len(set.ops))
	for k := range set.ops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		v, err := set.ops[key].Apply(target[key], key)
		if err != nil {
			o.hub.log().Warn("Skipping operation that no longer applies",
				log.String("object", o.String()),
				log.String("key", key),
				log.Error(err))
			continue
		}
		if ops.IsDeleteToken(v) {
			delete(target, key)
		} else {
			target[key] = v
		}
	}
}

// startSave moves the current set in flight and opens a fresh one.
func (o *Object) startSave() *operationSet {
	o.mu.Lock()
	defer o.mu.Unlock()
	current := o.currentSet()
	o.queue = append(o.queue, newOperationSet())
	return current
}

// handleSave folds a confirmed set into the server state.
func (o *Object) handleSave(set *operationSet, server *state.State) {
	fetched := collectFetched(o)

	o.mu.Lock()
	defer o.mu.Unlock()

	if i := o.indexOfSet(set); i >= 0 {
		o.queue = append(o.queue[:i], o.queue[i+1:]...)
	}
	next, err := o.state().Apply(set.ops)
	if err != nil {
		o.hub.log().Warn("Saved operations did not apply to server state",
			log.String("object", o.String()),
			log.Error(err))
	}
	o.st.Store(next)
	o.mergeFromServerLocked(server, fetched)
}

// handleFailedSave merges a rejected set into the set that follows it, so a
// later save retries it together with newer edits.
func (o *Object) handleFailedSave(set *operationSet) {
	o.mu.Lock()
	defer o.mu.Unlock()

	i := o.indexOfSet(set)
	if i < 0 {
		return
	}
	o.queue = append(o.queue[:i], o.queue[i+1:]...)
	next := o.queue[i]
	for key, failed := range set.ops {
		newer, ok := next.ops[key]
		if !ok {
			next.ops[key] = failed
			continue
		}
		merged, err := newer.MergeWithPrevious(failed)
		if err != nil {
			// Replay both edits on the value they were made against and
			// pin the outcome.
			merged, err = collapse(o.valueBefore(i, key), key, failed, newer)
		}
		if err != nil {
			o.hub.log().Warn("Dropping failed operation that conflicts with a newer edit",
				log.String("object", o.String()),
				log.String("key", key),
				log.Error(err))
			continue
		}
		next.ops[key] = merged
	}
	o.hub.metricsOrNil().ObserveMergeBack()
	o.rebuildEstimatedData()
}

// valueBefore folds server data and the first n queued sets for key.
func (o *Object) valueBefore(n int, key string) any {
	v := o.state().ServerData[key]
	for _, set := range o.queue[:n] {
		op, ok := set.ops[key]
		if !ok {
			continue
		}
		applied, err := op.Apply(v, key)
		if err != nil {
			continue
		}
		if ops.IsDeleteToken(applied) {
			applied = nil
		}
		v = applied
	}
	return v
}

// collapse applies seq in order to v and returns an operation that writes the
// result outright.
func collapse(v any, key string, seq ...ops.Operation) (ops.Operation, error) {
	for _, op := range seq {
		applied, err := op.Apply(v, key)
		if err != nil {
			return nil, err
		}
		v = applied
	}
	return pin(v)
}

// pin turns a computed value into Set or Delete. Relations cannot be written
// with Set.
func pin(v any) (ops.Operation, error) {
	switch v.(type) {
	case ops.Relation, *ops.Relation:
		return nil, fmt.Errorf("%w: relation values cannot be replaced", ops.ErrInvalidMerge)
	}
	if ops.IsDeleteToken(v) {
		return ops.NewDelete(), nil
	}
	return ops.NewSet(v), nil
}

// mergeFromServer adopts a server state, reusing already fetched child
// instances for pointers to the same object.
func (o *Object) mergeFromServer(server *state.State) {
	fetched := collectFetched(o)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.mergeFromServerLocked(server, fetched)
}

func (o *Object) mergeFromServerLocked(server *state.State, fetched map[objectKey]*Object) {
	if server == nil {
		o.rebuildEstimatedData()
		return
	}
	if len(fetched) > 0 {
		server = server.MutatedClone(func(s *state.State) {
			for k, v := range s.ServerData {
				s.ServerData[k] = replaceFetched(v, fetched)
			}
		})
	}
	if server.ObjectID != "" {
		o.available.Store(true)
	}
	o.dirty = false
	o.st.Store(o.state().ApplyState(server))
	o.rebuildEstimatedData()
}

// MergeFromObject adopts the state and pending edits of other, an instance
// of the same server object.
func (o *Object) MergeFromObject(other Entity) error {
	src := Unwrap(other)
	if src == nil || src == o {
		return nil
	}
	if src.ClassName() != o.ClassName() {
		return ErrClassMismatch
	}

	src.mu.Lock()
	st := src.state()
	current := src.currentSet().clone()
	dirty := src.dirty
	src.mu.Unlock()

	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) > 1 {
		return ErrSaveInFlight
	}
	o.st.Store(st)
	o.queue = []*operationSet{current}
	o.dirty = dirty
	o.available.Store(src.IsDataAvailable())
	o.rebuildEstimatedData()
	return nil
}

// Revert drops every edit that is not in flight.
func (o *Object) Revert() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.currentSet().len() == 0 {
		return
	}
	o.queue[len(o.queue)-1] = newOperationSet()
	o.rebuildEstimatedData()
}

// RevertKey drops the pending edit of a single key.
func (o *Object) RevertKey(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	current := o.currentSet()
	if _, ok := current.ops[key]; !ok {
		return
	}
	delete(current.ops, key)
	o.rebuildEstimatedData()
}
