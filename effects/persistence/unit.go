package persistence

import (
	"context"
	"sync"

	"github.com/on-the-ground/effect_ive_todo/effects"
)

// Units keeps one unit of work per execution, told apart by
// effects.ExecutionID. Calls made outside any execution share one unit.
//
// The zero value is ready to use.
type Units[S any] struct {
	mu   sync.Mutex
	open map[string]*Unit[S]
}

// Unit is the staged state of one execution. Units are handed out locked;
// the caller unlocks them once done with State.
type Unit[S any] struct {
	mu     sync.Mutex
	State  S
	closed bool
}

func (u *Unit[S]) Unlock() { u.mu.Unlock() }

// Acquire returns the caller's unit, opening one when it has none.
func (us *Units[S]) Acquire(ctx context.Context) *Unit[S] {
	key := effects.ExecutionID(ctx)
	for {
		us.mu.Lock()
		if us.open == nil {
			us.open = map[string]*Unit[S]{}
		}
		u, ok := us.open[key]
		if !ok {
			u = &Unit[S]{}
			us.open[key] = u
		}
		us.mu.Unlock()

		u.mu.Lock()
		if !u.closed {
			return u
		}
		// closed between the map read and the lock
		u.mu.Unlock()
	}
}

// Lookup returns the caller's unit, or nil when it has none open.
func (us *Units[S]) Lookup(ctx context.Context) *Unit[S] {
	key := effects.ExecutionID(ctx)
	us.mu.Lock()
	u := us.open[key]
	us.mu.Unlock()
	if u == nil {
		return nil
	}
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil
	}
	return u
}

// Close detaches the caller's unit and returns it, or nil when it has none.
// Later calls of the same execution start a fresh unit.
func (us *Units[S]) Close(ctx context.Context) *Unit[S] {
	key := effects.ExecutionID(ctx)
	us.mu.Lock()
	u, ok := us.open[key]
	delete(us.open, key)
	us.mu.Unlock()
	if !ok {
		return nil
	}
	u.mu.Lock()
	u.closed = true
	return u
}

// Drop closes u, a unit the caller holds, and unlocks it.
func (us *Units[S]) Drop(ctx context.Context, u *Unit[S]) {
	key := effects.ExecutionID(ctx)
	u.closed = true
	us.mu.Lock()
	if us.open[key] == u {
		delete(us.open, key)
	}
	us.mu.Unlock()
	u.mu.Unlock()
}

// CloseAll detaches every open unit and hands each one's state to fn.
func (us *Units[S]) CloseAll(fn func(S)) {
	us.mu.Lock()
	open := us.open
	us.open = nil
	us.mu.Unlock()
	for _, u := range open {
		u.mu.Lock()
		u.closed = true
		fn(u.State)
		u.mu.Unlock()
	}
}

// Open reports how many executions have a unit open.
func (us *Units[S]) Open() int {
	us.mu.Lock()
	defer us.mu.Unlock()
	return len(us.open)
}
