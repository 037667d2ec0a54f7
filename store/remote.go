package store

import (
	"github.com/on-the-ground/effect_ive_todo/effects"
	"github.com/on-the-ground/effect_ive_todo/todo"
)

// Remote is the server side of the store: one effect per operation, plus the
// runtime they run against.
type Remote[R any] struct {
	Runtime R
	Load    func() effects.Effect[R, []todo.Todo]
	Create  func(todo.Draft) effects.Effect[R, todo.Todo]
	Toggle  func(id int64) effects.Effect[R, todo.Todo]
	Delete  func(id int64) effects.Effect[R, effects.Unit]
}

// ServiceRemote runs the todo use-cases in process against rt.
func ServiceRemote[R todo.ClockedRequirements](rt R) Remote[R] {
	return Remote[R]{
		Runtime: rt,
		Load: func() effects.Effect[R, []todo.Todo] {
			return todo.List[R](todo.FilterAll)
		},
		Create: todo.Create[R],
		Toggle: todo.ToggleCompletion[R],
		Delete: todo.Delete[R],
	}
}
