// Package apptest provides the test runtime: in-memory adapters whose state is
// owned by the runtime value, never by package-level variables.
package apptest

import (
	"time"

	"github.com/on-the-ground/effect_ive_todo/effects/clock"
	"github.com/on-the-ground/effect_ive_todo/effects/log"
	"github.com/on-the-ground/effect_ive_todo/effects/persistence"
	"github.com/on-the-ground/effect_ive_todo/todo"
)

// Epoch is the time the fixed clock starts at.
var Epoch = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

type Runtime struct {
	Repo     *persistence.InMemory[todo.Todo]
	Probe    *persistence.Probe
	Fixed    *clock.Fixed
	Recorder *log.Recorder
}

// New builds a runtime seeded with todos. Seeds without an id get one.
func New(seed ...todo.Todo) *Runtime {
	probe := persistence.NewProbe()
	return &Runtime{
		Repo:     persistence.NewInMemory(todo.EntityName, probe, seed...),
		Probe:    probe,
		Fixed:    clock.NewFixed(Epoch),
		Recorder: log.NewRecorder(),
	}
}

func (rt *Runtime) Todos() persistence.Repository[todo.Todo] { return rt.Repo }
func (rt *Runtime) Clock() clock.IO                           { return rt.Fixed }
func (rt *Runtime) Logger() log.IO                            { return rt.Recorder }

// Seed builds a todo created at Epoch.
func Seed(title string, completed bool) todo.Todo {
	t := todo.New(todo.Draft{Title: title}, Epoch)
	if completed {
		t = todo.Toggle(t, Epoch)
	}
	return t
}
