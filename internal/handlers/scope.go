package handlers

import (
	"sync"

	"github.com/google/uuid"
)

// scope ties a dispatcher to its teardown. Close is idempotent and safe to call
// from several goroutines; the dispatcher itself is shared by every sender.
type scope[T any] struct {
	EffectId   string
	dispatcher WorkerDispatcher[T]
	teardown   func()
	once       sync.Once
}

func (s *scope[T]) Close() {
	s.once.Do(func() {
		s.dispatcher.Close()
		s.teardown()
	})
}

func newScope[T any](
	dispatcher WorkerDispatcher[T],
	teardown func(),
) *scope[T] {
	if teardown == nil {
		teardown = func() {}
	}
	return &scope[T]{
		EffectId:   uuid.New().String(),
		dispatcher: dispatcher,
		teardown:   teardown,
	}
}
