// Package tasks serializes the mutating work of an object. Work is split in
// turns: a turn may start only when every turn reserved before it on the same
// queue has settled.
package tasks

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Queue is a FIFO of turns for one object.
type Queue struct {
	key  ulid.ULID
	mu   sync.Mutex
	tail *Turn
}

// NewQueue returns an empty queue with a fresh ordering key.
func NewQueue() *Queue {
	return &Queue{key: ulid.Make()}
}

// Key identifies the queue. Multi-queue reservations lock in ascending key
// order.
func (q *Queue) Key() ulid.ULID { return q.key }

// Turn is one reserved slot on one or more queues.
type Turn struct {
	prev    []<-chan struct{}
	settled chan struct{}
	once    sync.Once
}

func newTurn(prev []<-chan struct{}) *Turn {
	return &Turn{prev: prev, settled: make(chan struct{})}
}

// Reserve appends a turn. prepare, when non-nil, runs while the queue is
// locked, so state captured there is ordered like the turns.
func (q *Queue) Reserve(prepare func()) *Turn {
	q.mu.Lock()
	defer q.mu.Unlock()

	var prev []<-chan struct{}
	if q.tail != nil {
		prev = append(prev, q.tail.settled)
	}
	t := newTurn(prev)
	q.tail = t
	if prepare != nil {
		prepare()
	}
	return t
}

// ReserveAll reserves one turn shared by every queue. Queues are locked in key
// order so overlapping reservations cannot deadlock.
func ReserveAll(queues []*Queue, prepare func()) *Turn {
	sorted := make([]*Queue, 0, len(queues))
	seen := make(map[*Queue]struct{}, len(queues))
	for _, q := range queues {
		if _, ok := seen[q]; ok || q == nil {
			continue
		}
		seen[q] = struct{}{}
		sorted = append(sorted, q)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].key.Compare(sorted[j].key) < 0
	})

	for _, q := range sorted {
		q.mu.Lock()
	}
	defer func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			sorted[i].mu.Unlock()
		}
	}()

	var prev []<-chan struct{}
	for _, q := range sorted {
		if q.tail != nil {
			prev = append(prev, q.tail.settled)
		}
	}
	t := newTurn(prev)
	for _, q := range sorted {
		q.tail = t
	}
	if prepare != nil {
		prepare()
	}
	return t
}

// Wait blocks until every predecessor has settled or ctx is done.
func (t *Turn) Wait(ctx context.Context) error {
	for _, p := range t.prev {
		select {
		case <-p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Done settles the turn. Successors are released once the predecessors have
// settled as well, so a turn abandoned early never lets work jump ahead.
func (t *Turn) Done() {
	t.once.Do(func() {
		if t.ready() {
			t.release()
			return
		}
		go func() {
			for _, p := range t.prev {
				<-p
			}
			t.release()
		}()
	})
}

func (t *Turn) ready() bool {
	for _, p := range t.prev {
		select {
		case <-p:
		default:
			return false
		}
	}
	return true
}

func (t *Turn) release() {
	close(t.settled)
}

// Do runs fn in a fresh turn.
func (q *Queue) Do(ctx context.Context, fn func(context.Context) error) error {
	t := q.Reserve(nil)
	defer t.Done()
	if err := t.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}
