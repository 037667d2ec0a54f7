package effects

import (
	"context"
	"time"

	"github.com/on-the-ground/effect_ive_todo/effects/fault"
	"github.com/on-the-ground/effect_ive_todo/effects/option"
	"github.com/on-the-ground/effect_ive_todo/effects/result"
	"github.com/on-the-ground/effect_ive_todo/effects/validation"
)

// Bind sequences two steps: next receives the success of eff and only runs
// after it. The first failure ends the chain.
func Bind[R, A, B any](eff Effect[R, A], next func(A) Effect[R, B]) Effect[R, B] {
	return Effect[R, B]{run: func(ctx context.Context, rt R) result.Result[B] {
		ra := eff.exec(ctx, rt)
		if ra.IsErr() {
			return result.Err[B](ra.Error())
		}
		return next(ra.Value()).exec(ctx, rt)
	}}
}

// Map transforms the success of eff with a pure function.
func Map[R, A, B any](eff Effect[R, A], fn func(A) B) Effect[R, B] {
	return Effect[R, B]{run: func(ctx context.Context, rt R) result.Result[B] {
		return result.Map(eff.exec(ctx, rt), fn)
	}}
}

// Then runs first, discards its value, then runs second.
func Then[R, A, B any](first Effect[R, A], second Effect[R, B]) Effect[R, B] {
	return Bind(first, func(A) Effect[R, B] { return second })
}

// Tap runs a follow-up effect on success and keeps the original value.
func Tap[R, A, B any](eff Effect[R, A], follow func(A) Effect[R, B]) Effect[R, A] {
	return Bind(eff, func(a A) Effect[R, A] {
		return Map(follow(a), func(B) A { return a })
	})
}

// OnError runs handler when eff fails, then fails with the original error.
// The handler's own outcome is discarded.
func OnError[R, A, B any](eff Effect[R, A], handler func(error) Effect[R, B]) Effect[R, A] {
	return Effect[R, A]{run: func(ctx context.Context, rt R) result.Result[A] {
		ra := eff.exec(ctx, rt)
		if ra.IsErr() {
			handler(ra.Error()).exec(context.WithoutCancel(ctx), rt)
		}
		return ra
	}}
}

// Recover replaces a failure with the effect returned by handler.
func Recover[R, A any](eff Effect[R, A], handler func(error) Effect[R, A]) Effect[R, A] {
	return Effect[R, A]{run: func(ctx context.Context, rt R) result.Result[A] {
		ra := eff.exec(ctx, rt)
		if ra.IsErr() {
			return handler(ra.Error()).exec(ctx, rt)
		}
		return ra
	}}
}

// Ignore is the explicit "best effort" combinator: any failure except
// cancellation is dropped.
func Ignore[R, A any](eff Effect[R, A]) Effect[R, Unit] {
	return Map(Optional(eff), func(option.Option[A]) Unit { return Unit{} })
}

// Optional turns failure into absence. Cancellation still propagates.
func Optional[R, A any](eff Effect[R, A]) Effect[R, option.Option[A]] {
	return Effect[R, option.Option[A]]{run: func(ctx context.Context, rt R) result.Result[option.Option[A]] {
		ra := eff.exec(ctx, rt)
		if ra.IsErr() {
			if fault.KindOf(ra.Error()) == fault.KindCancelled {
				return result.Err[option.Option[A]](ra.Error())
			}
			return result.Ok(option.None[A]())
		}
		return result.Ok(option.Some(ra.Value()))
	}}
}

// FromResult lifts an already computed Result.
func FromResult[R, A any](r result.Result[A]) Effect[R, A] {
	return Effect[R, A]{run: func(context.Context, R) result.Result[A] { return r }}
}

// FromOption lifts an Option; absence fails with the error built by onNone.
func FromOption[R, A any](o option.Option[A], onNone func() error) Effect[R, A] {
	return FromResult[R](option.ToResultFunc(o, onNone))
}

// FromValidation lifts an accumulated validation; failure carries the complete
// ordered list through toErr.
func FromValidation[R, E, A any](v validation.Validation[E, A], toErr func([]E) error) Effect[R, A] {
	return FromResult[R](validation.ToResult(v, toErr))
}

// ForEach runs fn for every item strictly in order and stops at the first failure.
func ForEach[R, T, A any](items []T, fn func(T) Effect[R, A]) Effect[R, []A] {
	return Effect[R, []A]{run: func(ctx context.Context, rt R) result.Result[[]A] {
		out := make([]A, 0, len(items))
		for _, item := range items {
			ra := fn(item).exec(ctx, rt)
			if ra.IsErr() {
				return result.Err[[]A](ra.Error())
			}
			out = append(out, ra.Value())
		}
		return result.Ok(out)
	}}
}

// Sleep suspends for d, waking early with fault.Cancelled on cancellation.
func Sleep[R any](d time.Duration) Effect[R, Unit] {
	return Suspend[R](func(ctx context.Context) (Unit, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return Unit{}, nil
		case <-ctx.Done():
			return Unit{}, ctx.Err()
		}
	})
}
