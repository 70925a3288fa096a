package util

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Parallel calls fn for every input with at most limit calls in flight.
// The first error cancels ctx for the remaining calls, stops scheduling new
// ones and is returned.
func Parallel[T any](ctx context.Context, inputs []T, limit int, fn func(context.Context, T) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for _, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, in)
		})
	}
	return g.Wait()
}
