package generic

import "sync"

// Pool is a typed sync.Pool. Values are passed through reset, when set,
// before they go back to the pool.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

// NewPool creates a pool filled on demand by generate. reset may be nil.
func NewPool[T any](generate func() T, reset func(T)) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
		reset: reset,
	}
}

// Get takes a value from the pool.
func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put resets value and returns it to the pool.
func (p *Pool[T]) Put(value T) {
	if p.reset != nil {
		p.reset(value)
	}
	p.pool.Put(value)
}

// With borrows a value for the duration of fn.
func (p *Pool[T]) With(fn func(T) error) error {
	v := p.Get()
	defer p.Put(v)
	return fn(v)
}
