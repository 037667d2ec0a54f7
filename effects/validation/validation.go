// Package validation accumulates failures from independent checks.
//
// Unlike result.Result, combining Validations never short-circuits: every check
// runs and every failure is kept, in the order the checks were composed.
// A Validation is successful only when no check failed.
package validation

import (
	"fmt"

	"github.com/on-the-ground/effect_ive_todo/effects/result"
)

// Validation is success xor a non-empty ordered list of failures.
type Validation[E, A any] struct {
	value  A
	errors []E
}

// Validator checks a value and reports every rule it violates.
type Validator[E, A any] func(A) Validation[E, A]

// Valid wraps a value that passed every check.
func Valid[E, A any](a A) Validation[E, A] {
	return Validation[E, A]{value: a}
}

// Invalid wraps one or more failures. Passing no failure is a programming error.
func Invalid[E, A any](first E, rest ...E) Validation[E, A] {
	errs := make([]E, 0, 1+len(rest))
	errs = append(errs, first)
	errs = append(errs, rest...)
	return Validation[E, A]{errors: errs}
}

func (v Validation[E, A]) IsValid() bool { return len(v.errors) == 0 }

// Value returns the validated value, or the zero value when invalid.
func (v Validation[E, A]) Value() A { return v.value }

// Errors returns a copy of the collected failures in composition order.
func (v Validation[E, A]) Errors() []E {
	if len(v.errors) == 0 {
		return nil
	}
	out := make([]E, len(v.errors))
	copy(out, v.errors)
	return out
}

func (v Validation[E, A]) String() string {
	if v.IsValid() {
		return fmt.Sprintf("Valid(%v)", v.value)
	}
	return fmt.Sprintf("Invalid(%v)", v.errors)
}

// Check builds a single-rule validator from a predicate.
func Check[E, A any](ok func(A) bool, failure E) Validator[E, A] {
	return func(a A) Validation[E, A] {
		if ok(a) {
			return Valid[E](a)
		}
		return Invalid[E, A](failure)
	}
}

// Field focuses validators on one part of a larger value.
func Field[E, A, F any](get func(A) F, validators ...Validator[E, F]) Validator[E, A] {
	return func(a A) Validation[E, A] {
		var errs []E
		f := get(a)
		for _, validate := range validators {
			errs = append(errs, validate(f).errors...)
		}
		return Validation[E, A]{value: a, errors: errs}.settle()
	}
}

// Validate runs every validator against value and collects all failures.
func Validate[E, A any](value A, validators ...Validator[E, A]) Validation[E, A] {
	var errs []E
	for _, validate := range validators {
		errs = append(errs, validate(value).errors...)
	}
	return Validation[E, A]{value: value, errors: errs}.settle()
}

// Map transforms a valid value.
func Map[E, A, B any](v Validation[E, A], fn func(A) B) Validation[E, B] {
	if !v.IsValid() {
		return Validation[E, B]{errors: v.errors}
	}
	return Valid[E](fn(v.value))
}

// Map2 combines two independent validations. Failures of va come before vb's.
func Map2[E, A, B, C any](va Validation[E, A], vb Validation[E, B], fn func(A, B) C) Validation[E, C] {
	errs := concat(va.errors, vb.errors)
	if len(errs) > 0 {
		return Validation[E, C]{errors: errs}
	}
	return Valid[E](fn(va.value, vb.value))
}

// Map3 combines three independent validations in order.
func Map3[E, A, B, C, D any](
	va Validation[E, A],
	vb Validation[E, B],
	vc Validation[E, C],
	fn func(A, B, C) D,
) Validation[E, D] {
	errs := concat(va.errors, vb.errors, vc.errors)
	if len(errs) > 0 {
		return Validation[E, D]{errors: errs}
	}
	return Valid[E](fn(va.value, vb.value, vc.value))
}

// Sequence collects a slice of validations into one.
func Sequence[E, A any](vs []Validation[E, A]) Validation[E, []A] {
	var errs []E
	values := make([]A, 0, len(vs))
	for _, v := range vs {
		errs = append(errs, v.errors...)
		values = append(values, v.value)
	}
	if len(errs) > 0 {
		return Validation[E, []A]{errors: errs}
	}
	return Valid[E](values)
}

// ToResult collapses the accumulator into a single error carrying the full
// ordered failure list.
func ToResult[E, A any](v Validation[E, A], toErr func([]E) error) result.Result[A] {
	if !v.IsValid() {
		return result.Err[A](toErr(v.Errors()))
	}
	return result.Ok(v.value)
}

func (v Validation[E, A]) settle() Validation[E, A] {
	if len(v.errors) > 0 {
		var zero A
		v.value = zero
	}
	return v
}

func concat[E any](lists ...[]E) []E {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	if n == 0 {
		return nil
	}
	out := make([]E, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
