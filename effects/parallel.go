package effects

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/on-the-ground/effect_ive_todo/effects/fault"
	"github.com/on-the-ground/effect_ive_todo/effects/result"
)

// Unbounded disables the concurrency ceiling of ForEachPar.
const Unbounded = -1

// Pair holds the two outcomes of Zip.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Zip runs two independent effects concurrently.
//
// Neither branch is short-circuited by the other. When both fail with
// fault.ValidationFailed the failures are merged, first branch first;
// otherwise the first non-validation failure in branch order is reported.
func Zip[R, A, B any](ea Effect[R, A], eb Effect[R, B]) Effect[R, Pair[A, B]] {
	return Map2(ea, eb, func(a A, b B) Pair[A, B] { return Pair[A, B]{First: a, Second: b} })
}

// Map2 is Zip followed by a pure combination of both values.
func Map2[R, A, B, C any](ea Effect[R, A], eb Effect[R, B], fn func(A, B) C) Effect[R, C] {
	return Effect[R, C]{run: func(ctx context.Context, rt R) result.Result[C] {
		var (
			ra result.Result[A]
			rb result.Result[B]
		)
		fanOut(ctx, 2, Unbounded, func(ctx context.Context, i int) error {
			if i == 0 {
				ra = runBranch(ctx, ea, rt)
				return ra.Error()
			}
			rb = runBranch(ctx, eb, rt)
			return rb.Error()
		})
		if err := fault.Merge(ra.Error(), rb.Error()); err != nil {
			return result.Err[C](err)
		}
		return result.Ok(fn(ra.Value(), rb.Value()))
	}}
}

// All runs independent effects of one type concurrently and keeps their order.
func All[R, A any](effs ...Effect[R, A]) Effect[R, []A] {
	return ForEachPar(effs, Unbounded, func(eff Effect[R, A]) Effect[R, A] { return eff })
}

// ForEachPar runs fn for every item with at most ceiling branches in flight.
// A ceiling below 1 other than Unbounded is treated as 1.
//
// Every branch runs to completion; results keep item order and failures are
// merged as in Zip.
func ForEachPar[R, T, A any](items []T, ceiling int, fn func(T) Effect[R, A]) Effect[R, []A] {
	return Effect[R, []A]{run: func(ctx context.Context, rt R) result.Result[[]A] {
		values := make([]A, len(items))
		errs := fanOut(ctx, len(items), ceiling, func(ctx context.Context, i int) error {
			ra := runBranch(ctx, fn(items[i]), rt)
			values[i] = ra.Value()
			return ra.Error()
		})
		if err := fault.Merge(errs...); err != nil {
			return result.Err[[]A](err)
		}
		return result.Ok(values)
	}}
}

// fanOut starts n branches under the ceiling and returns their errors by index.
func fanOut(ctx context.Context, n, ceiling int, branch func(context.Context, int) error) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}
	if ceiling != Unbounded && ceiling < 1 {
		ceiling = 1
	}

	var g errgroup.Group
	g.SetLimit(ceiling)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			errs[i] = branch(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// runBranch executes one branch and keeps its panics on the error channel,
// since they happen on a goroutine Run cannot recover.
func runBranch[R, A any](ctx context.Context, eff Effect[R, A], rt R) (res result.Result[A]) {
	defer func() {
		if r := recover(); r != nil {
			res = result.Err[A](fault.FromPanic(r))
		}
	}()
	return eff.exec(ctx, rt)
}
