// Package fault defines the closed failure taxonomy carried on the error channel
// of every effect: NotFound, ValidationFailed, Cancelled and Unexpected.
//
// Values are matched with errors.As / errors.Is; nothing in this package
// inspects error strings.
package fault

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/multierr"
)

// ErrCancelled matches every Cancelled failure through errors.Is.
var ErrCancelled = errors.New("cancelled")

// FieldError is one violated rule of one input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (fe FieldError) Error() string {
	return fe.Field + ": " + fe.Reason
}

// NotFound reports that the requested entity is absent.
type NotFound struct {
	Entity string
	ID     any
}

func NewNotFound(entity string, id any) error {
	return &NotFound{Entity: entity, ID: id}
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

// ValidationFailed carries every failed check, in the order the checks ran.
type ValidationFailed struct {
	Failures []FieldError
}

func NewValidationFailed(failures []FieldError) error {
	out := make([]FieldError, len(failures))
	copy(out, failures)
	return &ValidationFailed{Failures: out}
}

func (e *ValidationFailed) Error() string {
	return "validation failed: " + e.combined().Error()
}

// Unwrap exposes each field failure to errors.Is / errors.As.
func (e *ValidationFailed) Unwrap() []error {
	return multierr.Errors(e.combined())
}

func (e *ValidationFailed) combined() error {
	var err error
	for _, f := range e.Failures {
		err = multierr.Append(err, f)
	}
	return err
}

// Cancelled reports that execution stopped because the cancellation signal fired.
type Cancelled struct {
	Cause error
}

// NewCancelled wraps the context error that stopped the execution.
func NewCancelled(cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	return &Cancelled{Cause: cause}
}

func (e *Cancelled) Error() string {
	return fmt.Sprintf("%v: %v", ErrCancelled, e.Cause)
}

func (e *Cancelled) Unwrap() error { return e.Cause }

func (e *Cancelled) Is(target error) bool { return target == ErrCancelled }

// Unexpected wraps any unanticipated fault caught at a suspension boundary.
type Unexpected struct {
	Cause error
	Stack []byte
}

// NewUnexpected wraps cause unless it already belongs to the taxonomy.
func NewUnexpected(cause error) error {
	if cause == nil {
		cause = errors.New("unknown cause")
	}
	if KindOf(cause) != KindUnexpected {
		return cause
	}
	var u *Unexpected
	if errors.As(cause, &u) {
		return cause
	}
	return &Unexpected{Cause: cause}
}

// FromPanic turns a recovered panic value into an Unexpected failure.
func FromPanic(r any) error {
	var cause error
	switch r := r.(type) {
	case error:
		cause = r
	default:
		cause = fmt.Errorf("panic: %v", r)
	}
	return &Unexpected{Cause: cause, Stack: debug.Stack()}
}

func (e *Unexpected) Error() string {
	return fmt.Sprintf("unexpected: %v", e.Cause)
}

func (e *Unexpected) Unwrap() error { return e.Cause }

// Kind names the taxonomy branch of an error.
type Kind string

const (
	KindNone       Kind = ""
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation_failed"
	KindCancelled  Kind = "cancelled"
	KindUnexpected Kind = "unexpected"
)

// KindOf classifies err. Errors outside the taxonomy count as unexpected.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var (
		nf *NotFound
		vf *ValidationFailed
	)
	switch {
	case errors.As(err, &nf):
		return KindNotFound
	case errors.As(err, &vf):
		return KindValidation
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	default:
		return KindUnexpected
	}
}

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// AsValidation extracts the accumulated failures, if err carries them.
func AsValidation(err error) (*ValidationFailed, bool) {
	var vf *ValidationFailed
	if errors.As(err, &vf) {
		return vf, true
	}
	return nil, false
}

// Merge combines the failures of independent branches, given in branch order.
//
// When every failure is a ValidationFailed their field failures are concatenated.
// Otherwise the first failure that is not a ValidationFailed wins.
func Merge(errs ...error) error {
	var (
		fields []FieldError
		failed bool
	)
	for _, err := range errs {
		if err == nil {
			continue
		}
		failed = true
		vf, ok := AsValidation(err)
		if !ok {
			return err
		}
		fields = append(fields, vf.Failures...)
	}
	if !failed {
		return nil
	}
	return &ValidationFailed{Failures: fields}
}
