// Package result models an outcome that is either a value or exactly one error.
package result

import (
	"errors"
	"fmt"
)

// ErrNilFailure replaces a nil error handed to Err, so a failed Result never
// reports success by accident.
var ErrNilFailure = errors.New("result: failure without cause")

// Result is success xor one failure. The first failure in a chain wins.
type Result[A any] struct {
	value A
	err   error
}

// Ok wraps a successful value.
func Ok[A any](a A) Result[A] {
	return Result[A]{value: a}
}

// Err wraps a failure.
func Err[A any](err error) Result[A] {
	if err == nil {
		err = ErrNilFailure
	}
	return Result[A]{err: err}
}

// Of lifts the (value, error) pair returned by ordinary Go functions.
func Of[A any](a A, err error) Result[A] {
	if err != nil {
		return Err[A](err)
	}
	return Ok(a)
}

func (r Result[A]) IsOk() bool  { return r.err == nil }
func (r Result[A]) IsErr() bool { return r.err != nil }

// Value returns the success value, or the zero value on failure.
func (r Result[A]) Value() A { return r.value }

// Error returns the failure, or nil on success.
func (r Result[A]) Error() error { return r.err }

// Unwrap returns the pair in Go's usual shape.
func (r Result[A]) Unwrap() (A, error) {
	return r.value, r.err
}

// OrElse returns the value, or fallback on failure.
func (r Result[A]) OrElse(fallback A) A {
	if r.err != nil {
		return fallback
	}
	return r.value
}

func (r Result[A]) String() string {
	if r.err != nil {
		return fmt.Sprintf("Err(%v)", r.err)
	}
	return fmt.Sprintf("Ok(%v)", r.value)
}

// Map transforms a success value and passes failures through.
func Map[A, B any](r Result[A], fn func(A) B) Result[B] {
	if r.err != nil {
		return Err[B](r.err)
	}
	return Ok(fn(r.value))
}

// Bind chains a step that may fail; it only runs after a success.
func Bind[A, B any](r Result[A], fn func(A) Result[B]) Result[B] {
	if r.err != nil {
		return Err[B](r.err)
	}
	return fn(r.value)
}

// Fold collapses both branches into one value.
func Fold[A, B any](r Result[A], onErr func(error) B, onOk func(A) B) B {
	if r.err != nil {
		return onErr(r.err)
	}
	return onOk(r.value)
}
