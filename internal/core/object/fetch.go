package object

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeusync/objectsync/internal/core/controller"
	"github.com/zeusync/objectsync/internal/core/tasks"
)

func (o *Object) ref() controller.ObjectRef {
	return controller.ObjectRef{ClassName: o.ClassName(), ObjectID: o.ObjectID()}
}

// Fetch reloads o from the server. Pending edits stay applied on top.
func (o *Object) Fetch(ctx context.Context) error {
	h := o.hub
	if err := h.checkOpen(); err != nil {
		return err
	}
	return o.tasks.Do(ctx, func(ctx context.Context) error {
		if o.ObjectID() == "" {
			return ErrObjectNotSaved
		}
		session, err := h.sessionToken(ctx)
		if err != nil {
			return fmt.Errorf("session token: %w", err)
		}
		st, err := h.controller.Fetch(ctx, o.ref(), session)
		if err != nil {
			return err
		}
		o.mergeFromServer(st)
		return nil
	})
}

// FetchIfNeeded fetches o only when its data is not available yet.
func (o *Object) FetchIfNeeded(ctx context.Context) error {
	if o.IsDataAvailable() {
		return nil
	}
	return o.Fetch(ctx)
}

// Delete removes o on the server. The object becomes dirty again so a later
// save recreates it.
func (o *Object) Delete(ctx context.Context) error {
	h := o.hub
	if err := h.checkOpen(); err != nil {
		return err
	}
	return o.tasks.Do(ctx, func(ctx context.Context) error {
		if o.ObjectID() == "" {
			return ErrObjectNotSaved
		}
		session, err := h.sessionToken(ctx)
		if err != nil {
			return fmt.Errorf("session token: %w", err)
		}
		if err := h.controller.Delete(ctx, o.ref(), session); err != nil {
			return err
		}
		o.markDirty()
		return nil
	})
}

func (o *Object) markDirty() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dirty = true
}

// FetchAll reloads every object in one batched round trip. Instances of the
// same server object all receive the fetched state.
func (h *Hub) FetchAll(ctx context.Context, entities ...Entity) error {
	return h.fetchAll(ctx, entities, false)
}

// FetchAllIfNeeded fetches only the objects whose data is not available.
func (h *Hub) FetchAllIfNeeded(ctx context.Context, entities ...Entity) error {
	return h.fetchAll(ctx, entities, true)
}

func (h *Hub) fetchAll(ctx context.Context, entities []Entity, onlyMissing bool) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	objects := unwrapAll(entities)
	if len(objects) == 0 {
		return nil
	}

	return h.withTurns(ctx, objects, func(ctx context.Context, session string) error {
		var (
			errs    []error
			primary = map[objectKey]*Object{}
			order   []*Object
			dupes   = map[*Object][]*Object{}
		)
		for _, o := range objects {
			if o.ObjectID() == "" {
				errs = append(errs, fmt.Errorf("%s: %w", o, ErrObjectNotSaved))
				continue
			}
			if onlyMissing && o.IsDataAvailable() {
				continue
			}
			k := keyOf(o)
			if p, ok := primary[k]; ok {
				dupes[p] = append(dupes[p], o)
				continue
			}
			primary[k] = o
			order = append(order, o)
		}
		if len(order) == 0 {
			return errors.Join(errs...)
		}

		refs := make([]controller.ObjectRef, len(order))
		for i, o := range order {
			refs[i] = o.ref()
		}
		for i, res := range h.controller.FetchAll(ctx, refs, session) {
			o := order[i]
			if res.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", o, res.Err))
				continue
			}
			o.mergeFromServer(res.State)
			for _, dup := range dupes[o] {
				dup.mergeFromServer(res.State)
			}
		}
		return errors.Join(errs...)
	})
}

// DeleteAll removes every saved object in batched round trips. Objects
// without an id are skipped.
func (h *Hub) DeleteAll(ctx context.Context, entities ...Entity) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	objects := unwrapAll(entities)
	if len(objects) == 0 {
		return nil
	}

	return h.withTurns(ctx, objects, func(ctx context.Context, session string) error {
		var (
			saved   []*Object
			refs    []controller.ObjectRef
			primary = map[objectKey]*Object{}
			dupes   = map[*Object][]*Object{}
		)
		for _, o := range objects {
			if o.ObjectID() == "" {
				continue
			}
			k := keyOf(o)
			if p, ok := primary[k]; ok {
				dupes[p] = append(dupes[p], o)
				continue
			}
			primary[k] = o
			saved = append(saved, o)
			refs = append(refs, o.ref())
		}
		if len(refs) == 0 {
			return nil
		}

		var errs []error
		for i, err := range h.controller.DeleteAll(ctx, refs, session) {
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", saved[i], err))
				continue
			}
			saved[i].markDirty()
			for _, dup := range dupes[saved[i]] {
				dup.markDirty()
			}
		}
		return errors.Join(errs...)
	})
}

// withTurns runs fn once every object's earlier work has settled.
func (h *Hub) withTurns(ctx context.Context, objects []*Object, fn func(context.Context, string) error) error {
	queues := make([]*tasks.Queue, len(objects))
	for i, o := range objects {
		queues[i] = o.tasks
	}
	turn := tasks.ReserveAll(queues, nil)
	defer turn.Done()
	if err := turn.Wait(ctx); err != nil {
		return err
	}
	session, err := h.sessionToken(ctx)
	if err != nil {
		return fmt.Errorf("session token: %w", err)
	}
	return fn(ctx, session)
}

func unwrapAll(entities []Entity) []*Object {
	objects := make([]*Object, 0, len(entities))
	seen := make(map[*Object]struct{}, len(entities))
	for _, e := range entities {
		o := Unwrap(e)
		if o == nil {
			continue
		}
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		objects = append(objects, o)
	}
	return objects
}
