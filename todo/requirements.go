package todo

import (
	"github.com/on-the-ground/effect_ive_todo/effects/clock"
	"github.com/on-the-ground/effect_ive_todo/effects/log"
	"github.com/on-the-ground/effect_ive_todo/effects/persistence"
)

// HasTodos is the fragment for runtimes that carry the todo repository.
type HasTodos interface {
	Todos() persistence.Repository[Todo]
}

// Requirements is what use-cases that never read the time need.
type Requirements interface {
	HasTodos
	log.Has
}

// ClockedRequirements adds the clock for use-cases that stamp entities.
type ClockedRequirements interface {
	HasTodos
	clock.Has
	log.Has
}

func todos[R HasTodos](rt R) persistence.Repository[Todo] { return rt.Todos() }
