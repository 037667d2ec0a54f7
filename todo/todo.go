// Package todo is the business service layer: the Todo entity, its pure
// transitions and validation rules, and the use-cases composed from the
// persistence, clock and log capabilities.
package todo

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/on-the-ground/effect_ive_todo/effects/fault"
	"github.com/on-the-ground/effect_ive_todo/effects/validation"
)

// EntityName is the entity reported by fault.NotFound.
const EntityName = "todo"

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

// Todo is an immutable value: transitions return a new Todo with a bumped Version.
type Todo struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	Version     int64      `json:"version"`
}

func (t Todo) EntityID() int64 { return t.ID }

func (t Todo) WithEntityID(id int64) Todo {
	t.ID = id
	return t
}

// Draft is user input for creating or editing a Todo.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type rule = validation.Validator[fault.FieldError, string]

func required(field string) rule {
	return validation.Check(func(s string) bool {
		return strings.TrimSpace(s) != ""
	}, fault.FieldError{Field: field, Reason: "is required"})
}

func maxRunes(field string, n int) rule {
	return validation.Check(func(s string) bool {
		return utf8.RuneCountInString(s) <= n
	}, fault.FieldError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", n)})
}

// Validate runs every rule and reports one failure per violated rule, title
// rules before description rules.
func (d Draft) Validate() validation.Validation[fault.FieldError, Draft] {
	return validation.Validate(d,
		validation.Field(func(d Draft) string { return d.Title },
			required("title"),
			maxRunes("title", MaxTitleLength),
		),
		validation.Field(func(d Draft) string { return d.Description },
			maxRunes("description", MaxDescriptionLength),
		),
	)
}

// Draft returns the editable part of t.
func (t Todo) Draft() Draft {
	return Draft{Title: t.Title, Description: t.Description}
}

// New builds a fresh, not yet persisted Todo.
func New(d Draft, now time.Time) Todo {
	return Todo{
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		CreatedAt:   now,
		Version:     1,
	}
}

// Revise replaces the editable fields.
func Revise(t Todo, d Draft) Todo {
	t.Title = strings.TrimSpace(d.Title)
	t.Description = d.Description
	t.Version++
	return t
}

// Toggle flips completion. Completing stamps now; reopening clears the stamp.
func Toggle(t Todo, now time.Time) Todo {
	t.Completed = !t.Completed
	if t.Completed {
		at := now
		t.CompletedAt = &at
	} else {
		t.CompletedAt = nil
	}
	t.Version++
	return t
}

// Filter selects a subset of todos.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FilterAll:
		return FilterAll, nil
	case FilterActive, FilterCompleted:
		return f, nil
	default:
		return FilterAll, fmt.Errorf("unknown filter %q", s)
	}
}

func (f Filter) Matches(t Todo) bool {
	switch f {
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

// Apply keeps the todos matching f, preserving order.
func Apply(items []Todo, f Filter) []Todo {
	out := make([]Todo, 0, len(items))
	for _, t := range items {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

type Counts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}

func Count(items []Todo) Counts {
	c := Counts{Total: len(items)}
	for _, t := range items {
		if t.Completed {
			c.Completed++
		} else {
			c.Active++
		}
	}
	return c
}
