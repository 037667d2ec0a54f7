package effects

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_todo/effects/fault"
	"github.com/on-the-ground/effect_ive_todo/effects/result"
)

// Effect describes a computation that needs a runtime R and either fails or
// yields an A. Building and composing an Effect never performs its side
// effects; only Run and RunAsync do.
//
// R is usually a type parameter constrained by the capability fragments the
// computation needs (clock.Has, log.Has, ...), so handing a runtime that lacks
// one of them is a compile error rather than a runtime surprise.
type Effect[R, A any] struct {
	run func(ctx context.Context, rt R) result.Result[A]
}

// Unit is the value of effects that only matter for what they do.
type Unit struct{}

// ErrEmptyEffect is reported when the zero Effect value is executed.
var ErrEmptyEffect = errors.New("effects: zero Effect value executed")

func (eff Effect[R, A]) exec(ctx context.Context, rt R) result.Result[A] {
	if eff.run == nil {
		return result.Err[A](fault.NewUnexpected(ErrEmptyEffect))
	}
	return eff.run(ctx, rt)
}

// Pure lifts a value. It needs no capability and cannot fail.
func Pure[R, A any](a A) Effect[R, A] {
	return Effect[R, A]{run: func(context.Context, R) result.Result[A] {
		return result.Ok(a)
	}}
}

// Fail lifts a failure.
func Fail[R, A any](err error) Effect[R, A] {
	return Effect[R, A]{run: func(context.Context, R) result.Result[A] {
		return result.Err[A](err)
	}}
}

// Suspend wraps exactly one side-effecting call.
//
// The cancellation signal is checked before the call, and handed to the call so
// that it can be observed during it. A panic becomes fault.Unexpected, a
// cancelled context becomes fault.Cancelled, and any other error outside the
// fault taxonomy is wrapped as fault.Unexpected.
func Suspend[R, A any](thunk func(context.Context) (A, error)) Effect[R, A] {
	return Effect[R, A]{run: func(ctx context.Context, _ R) result.Result[A] {
		return guard(ctx, thunk)
	}}
}

// Access reads a capability out of the runtime.
func Access[R, C any](get func(R) C) Effect[R, C] {
	return Effect[R, C]{run: func(_ context.Context, rt R) result.Result[C] {
		return result.Ok(get(rt))
	}}
}

// Use reads a capability and performs one suspended operation on it.
// Capability modules are built from Use and never touch the runtime otherwise.
func Use[R, C, A any](get func(R) C, op func(context.Context, C) (A, error)) Effect[R, A] {
	return Effect[R, A]{run: func(ctx context.Context, rt R) result.Result[A] {
		capability := get(rt)
		return guard(ctx, func(ctx context.Context) (A, error) {
			return op(ctx, capability)
		})
	}}
}

// Defer builds the effect lazily, at execution time.
func Defer[R, A any](build func() Effect[R, A]) Effect[R, A] {
	return Effect[R, A]{run: func(ctx context.Context, rt R) result.Result[A] {
		return build().exec(ctx, rt)
	}}
}

// Isolate runs eff as an execution of its own, with a fresh ExecutionID, so
// capabilities keyed by execution treat it apart from the caller.
func Isolate[R, A any](eff Effect[R, A]) Effect[R, A] {
	return Effect[R, A]{run: func(ctx context.Context, rt R) result.Result[A] {
		return eff.exec(context.WithValue(ctx, executionIDKey{}, uuid.New().String()), rt)
	}}
}

// Run executes eff against rt. It is the single execution entry point: no panic
// escapes it, and every failure it returns belongs to the fault taxonomy.
func Run[R, A any](ctx context.Context, eff Effect[R, A], rt R) (res result.Result[A]) {
	ctx = withExecutionID(ctx)
	defer func() {
		if r := recover(); r != nil {
			res = result.Err[A](fault.FromPanic(r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return result.Err[A](fault.NewCancelled(err))
	}
	res = eff.exec(ctx, rt)
	if res.IsErr() {
		return result.Err[A](classify(ctx, res.Error()))
	}
	return res
}

// RunAsync executes eff on its own goroutine and delivers the result on the
// returned channel, which is closed afterwards.
func RunAsync[R, A any](ctx context.Context, eff Effect[R, A], rt R) <-chan result.Result[A] {
	out := make(chan result.Result[A], 1)
	ctx = withExecutionID(ctx)
	ready := make(chan struct{})
	go func() {
		defer close(out)
		close(ready)
		out <- Run(ctx, eff, rt)
	}()
	<-ready
	return out
}

// Await waits for an asynchronous result, turning cancellation into fault.Cancelled.
func Await[A any](ctx context.Context, ch <-chan result.Result[A]) result.Result[A] {
	select {
	case res, ok := <-ch:
		if !ok {
			return result.Err[A](fault.NewUnexpected(errors.New("effects: result channel closed")))
		}
		return res
	case <-ctx.Done():
		return result.Err[A](fault.NewCancelled(ctx.Err()))
	}
}

type executionIDKey struct{}

// ExecutionID returns the id assigned by Run to the current execution.
func ExecutionID(ctx context.Context) string {
	id, _ := ctx.Value(executionIDKey{}).(string)
	return id
}

func withExecutionID(ctx context.Context) context.Context {
	if ExecutionID(ctx) != "" {
		return ctx
	}
	return context.WithValue(ctx, executionIDKey{}, uuid.New().String())
}

func guard[A any](ctx context.Context, thunk func(context.Context) (A, error)) (res result.Result[A]) {
	if err := ctx.Err(); err != nil {
		return result.Err[A](fault.NewCancelled(err))
	}
	defer func() {
		if r := recover(); r != nil {
			res = result.Err[A](fault.FromPanic(r))
		}
	}()

	a, err := thunk(ctx)
	if err != nil {
		return result.Err[A](classify(ctx, err))
	}
	return result.Ok(a)
}

func classify(ctx context.Context, err error) error {
	if fault.KindOf(err) != fault.KindUnexpected {
		return err
	}
	var unexpected *fault.Unexpected
	if errors.As(err, &unexpected) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fault.NewCancelled(err)
	}
	return fault.NewUnexpected(err)
}
