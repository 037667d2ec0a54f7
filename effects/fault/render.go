package fault

import (
	"errors"
	"fmt"
)

// View is the transport-neutral rendering of a failure.
// NotFound and ValidationFailed keep their structured payload; Cancelled and
// Unexpected never expose their cause.
type View struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Entity  string `json:"entity,omitempty"`
	ID      string `json:"id,omitempty"`

	Failures []FieldError `json:"failures,omitempty"`
}

// Render builds the user-visible view of err. A nil error renders as the zero View.
func Render(err error) View {
	switch KindOf(err) {
	case KindNone:
		return View{}
	case KindNotFound:
		var nf *NotFound
		errors.As(err, &nf)
		return View{
			Kind:    KindNotFound,
			Message: nf.Error(),
			Entity:  nf.Entity,
			ID:      fmt.Sprint(nf.ID),
		}
	case KindValidation:
		vf, _ := AsValidation(err)
		return View{
			Kind:     KindValidation,
			Message:  fmt.Sprintf("%d validation failure(s)", len(vf.Failures)),
			Failures: append([]FieldError(nil), vf.Failures...),
		}
	case KindCancelled:
		return View{Kind: KindCancelled, Message: "request cancelled"}
	default:
		return View{Kind: KindUnexpected, Message: "internal error"}
	}
}

// StatusOf maps err to the status code an HTTP boundary would answer with.
func StatusOf(err error) int {
	switch KindOf(err) {
	case KindNone:
		return 200
	case KindNotFound:
		return 404
	case KindValidation:
		return 422
	case KindCancelled:
		return 499
	default:
		return 500
	}
}
