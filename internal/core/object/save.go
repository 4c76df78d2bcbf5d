package object

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zeusync/objectsync/internal/core/controller"
	"github.com/zeusync/objectsync/internal/core/observability/log"
	"github.com/zeusync/objectsync/internal/core/tasks"
)

// SaveError reports the objects a save could not persist. Objects not listed
// were saved.
type SaveError struct {
	Failures map[*Object]error
}

// Error lists the failures in a stable order.
func (e *SaveError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for o, err := range e.Failures {
		names = append(names, fmt.Sprintf("%s: %v", o, err))
	}
	sort.Strings(names)
	return fmt.Sprintf("save failed for %d object(s): %s", len(e.Failures), strings.Join(names, "; "))
}

// Unwrap exposes every per-object error to errors.Is and errors.As.
func (e *SaveError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		errs = append(errs, err)
	}
	return errs
}

// Save persists o and every dirty object it references.
func (o *Object) Save(ctx context.Context) error {
	return o.hub.SaveAll(ctx, o)
}

// SaveAll persists the given objects and every dirty object they reference.
// Objects are saved in rounds: each round holds the objects whose references
// all have ids, so children are created before their parents.
func (h *Hub) SaveAll(ctx context.Context, entities ...Entity) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	roots := make([]*Object, 0, len(entities))
	for _, e := range entities {
		if o := Unwrap(e); o != nil {
			roots = append(roots, o)
		}
	}

	remaining, err := collectDirty(roots)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		return nil
	}

	session, err := h.sessionToken(ctx)
	if err != nil {
		return fmt.Errorf("session token: %w", err)
	}

	for len(remaining) > 0 {
		var ready, pending []*Object
		for _, o := range remaining {
			if canBeSerialized(o) {
				ready = append(ready, o)
			} else {
				pending = append(pending, o)
			}
		}
		if len(ready) == 0 {
			return fmt.Errorf("%w: %d object(s) left", ErrRelationCycle, len(pending))
		}
		if err := h.saveRound(ctx, ready, session); err != nil {
			return err
		}
		remaining = pending
	}
	return nil
}

func (h *Hub) saveRound(ctx context.Context, ready []*Object, session string) error {
	queues := make([]*tasks.Queue, len(ready))
	for i, o := range ready {
		queues[i] = o.tasks
	}
	turn := tasks.ReserveAll(queues, nil)
	defer turn.Done()
	if err := turn.Wait(ctx); err != nil {
		return err
	}

	var (
		objects []*Object
		sets    []*operationSet
		reqs    []controller.SaveRequest
	)
	for _, o := range ready {
		if !o.isDirtySelf() {
			continue
		}
		set := o.startSave()
		objects = append(objects, o)
		sets = append(sets, set)
		reqs = append(reqs, controller.SaveRequest{
			ClassName:  o.ClassName(),
			ObjectID:   o.ObjectID(),
			Operations: set.ops,
		})
	}
	if len(objects) == 0 {
		return nil
	}

	h.logger.Debug("Saving objects", log.Int("count", len(objects)))
	results := h.controller.SaveAll(ctx, reqs, session)

	failures := map[*Object]error{}
	for i, res := range results {
		o := objects[i]
		err := res.Err
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		h.metrics.ObserveSaved(err)
		if err != nil {
			o.handleFailedSave(sets[i])
			failures[o] = err
			h.logger.Warn("Object save failed",
				log.String("object", o.String()),
				log.Error(err))
			continue
		}
		o.handleSave(sets[i], res.State)
	}
	if len(failures) > 0 {
		return &SaveError{Failures: failures}
	}
	return nil
}
