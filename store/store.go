// Package store is the client mirror of the todo collection: a subscription
// based state container with optimistic mutation, rollback and reconciliation.
//
// Every change to the state goes through one loop goroutine. An operation
// captures the current snapshot, publishes its optimistic result, and runs its
// remote effect in a detached task. The task posts the outcome back to the loop,
// which either reconciles the affected item with the server's copy or rolls the
// change back. Subscribers see every publication, the optimistic one included.
//
// Reconciliation is last-writer-by-version: a server copy only replaces the
// local item when its Version is not lower, so a late confirmation never
// overwrites a newer optimistic change. Rollback restores the captured
// snapshot when nothing was published since the optimistic update; otherwise
// only the affected item is reverted, keeping the other operations' changes.
package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/on-the-ground/effect_ive_todo/effects"
	"github.com/on-the-ground/effect_ive_todo/effects/clock"
	"github.com/on-the-ground/effect_ive_todo/effects/fault"
	"github.com/on-the-ground/effect_ive_todo/effects/option"
	"github.com/on-the-ground/effect_ive_todo/effects/result"
	"github.com/on-the-ground/effect_ive_todo/internal/handlers"
	"github.com/on-the-ground/effect_ive_todo/internal/model"
	"github.com/on-the-ground/effect_ive_todo/todo"
)

type options struct {
	bufferSize    int
	viewCacheSize uint32
	filter        todo.Filter
	clock         clock.IO
}

type Option func(*options)

// WithBufferSize sizes the loop's mailbox.
func WithBufferSize(n int) Option { return func(o *options) { o.bufferSize = n } }

// WithViewCacheSize bounds the memo tables of derived views.
func WithViewCacheSize(n uint32) Option { return func(o *options) { o.viewCacheSize = n } }

func WithFilter(f todo.Filter) Option { return func(o *options) { o.filter = f } }

// WithClock sets the clock stamping optimistic completions.
func WithClock(c clock.IO) Option { return func(o *options) { o.clock = c } }

// message is a state change run on the loop goroutine.
type message struct {
	apply func()
}

func (message) PartitionKey() string { return model.Unpartitioned }

type Store[R any] struct {
	remote Remote[R]
	clock  clock.IO
	views  *views

	remoteCtx    context.Context
	cancelRemote context.CancelFunc
	mailboxCtx   context.Context
	mailbox      handlers.FireAndForgetHandler[message]

	current atomic.Pointer[Snapshot]

	subsMu sync.RWMutex
	subs   map[string]func(Snapshot)

	mu     sync.Mutex
	closed bool
	tasks  sync.WaitGroup

	// owned by the loop
	state   Snapshot
	tempSeq int64
	pending map[int64]int // operations in flight per affected id
}

// New starts the store's loop. Remote effects run under a context derived
// from ctx; cancelling ctx cancels them, and Close stops the store.
func New[R any](ctx context.Context, remote Remote[R], opts ...Option) *Store[R] {
	o := options{bufferSize: 64, viewCacheSize: 64, filter: todo.FilterAll, clock: clock.System{}}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store[R]{
		remote: remote,
		clock:  o.clock,
		views:  newViews(o.viewCacheSize),
		subs:    map[string]func(Snapshot){},
		pending: map[int64]int{},
	}
	s.remoteCtx, s.cancelRemote = context.WithCancel(ctx)
	s.mailboxCtx = context.WithoutCancel(ctx)
	s.mailbox = handlers.NewFireAndForgetHandler(
		s.mailboxCtx,
		model.NewScopeConfig(o.bufferSize, 1),
		func(_ context.Context, m message) { m.apply() },
		nil,
	)

	s.state = Snapshot{Filter: o.filter, views: s.views}
	initial := s.state
	s.current.Store(&initial)
	return s
}

// Snapshot returns the latest published snapshot.
func (s *Store[R]) Snapshot() Snapshot {
	return *s.current.Load()
}

// Subscribe registers fn for every later publication and returns the function
// removing it. fn runs on the store's loop, in publication order, and must not
// wait for store operations.
func (s *Store[R]) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	id := uuid.NewString()
	s.subsMu.Lock()
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

// Close cancels the remote effects still running, lets their outcome reach
// the loop, then stops the loop. Operations issued afterwards fail with
// fault.Cancelled.
func (s *Store[R]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancelRemote()
	s.tasks.Wait()
	s.mailbox.Close()
}

// begin reserves a slot for one operation; it fails once Close started.
func (s *Store[R]) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.tasks.Add(1)
	return true
}

func (s *Store[R]) post(apply func()) {
	s.mailbox.Fire(s.mailboxCtx, message{apply: apply})
}

// publish stamps next with the following revision and broadcasts it. Loop only.
func (s *Store[R]) publish(next Snapshot) Snapshot {
	next.Revision = s.state.Revision + 1
	next.views = s.views
	s.state = next

	published := next
	s.current.Store(&published)

	s.subsMu.RLock()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.RUnlock()
	for _, fn := range subs {
		fn(published)
	}
	return published
}

// operation describes one optimistic mutation. Built on the loop from the
// captured snapshot.
type operation[A any] struct {
	// affected is the item reverted by a partial rollback. None reverts no item.
	affected   option.Option[int64]
	optimistic func(Snapshot) Snapshot
	reconcile  func(Snapshot, A) Snapshot
}

func closedResult[A any]() <-chan result.Result[A] {
	out := make(chan result.Result[A], 1)
	out <- result.Err[A](fault.NewCancelled(context.Canceled))
	close(out)
	return out
}

// submit runs the protocol for one operation and delivers the remote outcome
// once its reconciliation or rollback has been published.
func submit[R, A any](
	s *Store[R],
	remote func() effects.Effect[R, A],
	build func(captured Snapshot) operation[A],
) <-chan result.Result[A] {
	if !s.begin() {
		return closedResult[A]()
	}
	out := make(chan result.Result[A], 1)

	s.post(func() {
		captured := s.state
		op := build(captured)
		affected, tracked := op.affected.Get()
		if tracked {
			s.pending[affected]++
		}
		optimistic := s.publish(op.optimistic(captured))
		eff := remote()

		go func() {
			res := effects.Run(s.remoteCtx, eff, s.remote.Runtime)
			s.post(func() {
				defer s.tasks.Done()
				if tracked {
					s.settle(affected)
				}
				if res.IsErr() {
					s.rollback(captured, optimistic.Revision, op.affected, res.Error())
				} else {
					next := op.reconcile(s.state, res.Value())
					next.Err = nil
					s.publish(next)
				}
				out <- res
				close(out)
			})
		}()
	})
	return out
}

// settle ends one in-flight operation on id. Loop only.
func (s *Store[R]) settle(id int64) {
	if s.pending[id]--; s.pending[id] <= 0 {
		delete(s.pending, id)
	}
}

func (s *Store[R]) inFlight(id int64) bool { return s.pending[id] > 0 }

func (s *Store[R]) rollback(captured Snapshot, optimisticRevision uint64, affected option.Option[int64], err error) {
	next := captured
	if s.state.Revision != optimisticRevision {
		next = s.state
		next.Loading = captured.Loading
		if id, ok := affected.Get(); ok {
			next.Items = reverted(s.state.Items, captured.Items, id)
		}
	}
	next.Err = err
	s.publish(next)
}

// Load takes the server's collection. Items with operations still in flight
// keep their local state, so a load never undoes an optimistic change those
// operations will confirm or roll back themselves.
func (s *Store[R]) Load() <-chan result.Result[[]todo.Todo] {
	return submit(s, s.remote.Load, func(Snapshot) operation[[]todo.Todo] {
		return operation[[]todo.Todo]{
			optimistic: func(snap Snapshot) Snapshot {
				snap.Loading = true
				return snap
			},
			reconcile: func(snap Snapshot, items []todo.Todo) Snapshot {
				snap.Items = merged(snap.Items, items, s.inFlight)
				snap.Loading = false
				return snap
			},
		}
	})
}

// Create shows the new item under a provisional negative id until the server
// assigns the real one.
func (s *Store[R]) Create(d todo.Draft) <-chan result.Result[todo.Todo] {
	return submit(s, func() effects.Effect[R, todo.Todo] { return s.remote.Create(d) },
		func(Snapshot) operation[todo.Todo] {
			s.tempSeq--
			provisional := todo.New(d, s.clock.Now()).WithEntityID(s.tempSeq)
			return operation[todo.Todo]{
				affected: option.Some(provisional.ID),
				optimistic: func(snap Snapshot) Snapshot {
					snap.Items = inserted(snap.Items, len(snap.Items), provisional)
					return snap
				},
				reconcile: func(snap Snapshot, server todo.Todo) Snapshot {
					i := indexOf(snap.Items, provisional.ID)
					switch {
					case indexOf(snap.Items, server.ID) >= 0:
						// a load already brought the server copy in
						snap.Items = newerOrSame(removed(snap.Items, provisional.ID), server)
					case i >= 0:
						snap.Items = replaced(snap.Items, i, server)
					default:
						snap.Items = inserted(snap.Items, len(snap.Items), server)
					}
					return snap
				},
			}
		})
}

// Toggle flips the item locally, then confirms with the server.
func (s *Store[R]) Toggle(id int64) <-chan result.Result[todo.Todo] {
	return submit(s, func() effects.Effect[R, todo.Todo] { return s.remote.Toggle(id) },
		func(Snapshot) operation[todo.Todo] {
			now := s.clock.Now()
			return operation[todo.Todo]{
				affected: option.Some(id),
				optimistic: func(snap Snapshot) Snapshot {
					if i := indexOf(snap.Items, id); i >= 0 {
						snap.Items = replaced(snap.Items, i, todo.Toggle(snap.Items[i], now))
					}
					return snap
				},
				reconcile: func(snap Snapshot, server todo.Todo) Snapshot {
					snap.Items = newerOrSame(snap.Items, server)
					return snap
				},
			}
		})
}

// Delete hides the item locally, then removes it on the server.
func (s *Store[R]) Delete(id int64) <-chan result.Result[effects.Unit] {
	return submit(s, func() effects.Effect[R, effects.Unit] { return s.remote.Delete(id) },
		func(Snapshot) operation[effects.Unit] {
			return operation[effects.Unit]{
				affected: option.Some(id),
				optimistic: func(snap Snapshot) Snapshot {
					snap.Items = removed(snap.Items, id)
					return snap
				},
				reconcile: func(snap Snapshot, _ effects.Unit) Snapshot {
					snap.Items = removed(snap.Items, id)
					return snap
				},
			}
		})
}

// SetFilter changes the filter; it has no remote side. The returned channel
// delivers the snapshot carrying the new filter.
func (s *Store[R]) SetFilter(f todo.Filter) <-chan Snapshot {
	out := make(chan Snapshot, 1)
	if !s.begin() {
		out <- s.Snapshot()
		close(out)
		return out
	}
	s.post(func() {
		defer s.tasks.Done()
		next := s.state
		next.Filter = f
		out <- s.publish(next)
		close(out)
	})
	return out
}
