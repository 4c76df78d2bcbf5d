package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Settle runs action for every element with at most limit goroutines at a
// time and waits for all of them. Errors do not stop the other actions; they
// are returned by index.
func Settle[T any](ctx context.Context, in []T, limit int, action func(context.Context, int, T) error) []error {
	errs := make([]error, len(in))
	group := errgroup.Group{}
	if limit > 0 {
		group.SetLimit(limit)
	}

	for idx, value := range in {
		idx, value := idx, value
		group.Go(func() error {
			errs[idx] = action(ctx, idx, value)
			return nil
		})
	}

	_ = group.Wait()
	return errs
}

// Map applies fn to every element with at most limit goroutines at a time
// and keeps the input order. A limit below one means unbounded.
func Map[T, R any](in []T, limit int, fn func(int, T) R) []R {
	out := make([]R, len(in))
	group := errgroup.Group{}
	if limit > 0 {
		group.SetLimit(limit)
	}

	for idx, value := range in {
		idx, value := idx, value
		group.Go(func() error {
			out[idx] = fn(idx, value)
			return nil
		})
	}

	_ = group.Wait()
	return out
}
