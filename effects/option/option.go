// Package option models presence or absence of a value.
//
// Absence is not a failure: lookups that may legitimately find nothing return
// an Option instead of an error. Turning absence into a failure is always an
// explicit step (ToResult, ToResultFunc) where the caller supplies the error.
package option

import (
	"fmt"

	"github.com/on-the-ground/effect_ive_todo/effects/result"
)

// Option holds either one value (Some) or nothing (None).
// The zero value is None.
type Option[A any] struct {
	value A
	ok    bool
}

// Some wraps a present value.
func Some[A any](a A) Option[A] {
	return Option[A]{value: a, ok: true}
}

// None returns an absent value.
func None[A any]() Option[A] {
	return Option[A]{}
}

// Of builds an Option from the comma-ok idiom.
func Of[A any](a A, ok bool) Option[A] {
	if !ok {
		return None[A]()
	}
	return Some(a)
}

// FromPointer returns None for a nil pointer, Some(*p) otherwise.
func FromPointer[A any](p *A) Option[A] {
	if p == nil {
		return None[A]()
	}
	return Some(*p)
}

func (o Option[A]) IsSome() bool { return o.ok }
func (o Option[A]) IsNone() bool { return !o.ok }

// Get returns the value and whether it is present.
func (o Option[A]) Get() (A, bool) {
	return o.value, o.ok
}

// OrElse returns the value or the given fallback.
func (o Option[A]) OrElse(fallback A) A {
	if o.ok {
		return o.value
	}
	return fallback
}

func (o Option[A]) String() string {
	if !o.ok {
		return "None"
	}
	return fmt.Sprintf("Some(%v)", o.value)
}

// Map applies fn to a present value.
func Map[A, B any](o Option[A], fn func(A) B) Option[B] {
	if !o.ok {
		return None[B]()
	}
	return Some(fn(o.value))
}

// Bind chains a lookup that may itself find nothing.
func Bind[A, B any](o Option[A], fn func(A) Option[B]) Option[B] {
	if !o.ok {
		return None[B]()
	}
	return fn(o.value)
}

// ToResult converts absence into the supplied failure.
func ToResult[A any](o Option[A], failure error) result.Result[A] {
	if !o.ok {
		return result.Err[A](failure)
	}
	return result.Ok(o.value)
}

// ToResultFunc is ToResult with a lazily built failure.
func ToResultFunc[A any](o Option[A], onNone func() error) result.Result[A] {
	if !o.ok {
		return result.Err[A](onNone())
	}
	return result.Ok(o.value)
}
