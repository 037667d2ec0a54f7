package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/on-the-ground/effect_ive_todo/effects/fault"
	"github.com/on-the-ground/effect_ive_todo/effects/option"
)

// Op names one repository operation, for counting and failure injection.
type Op string

const (
	OpFindByID Op = "FindByID"
	OpFindAll  Op = "FindAll"
	OpAdd      Op = "Add"
	OpUpdate   Op = "Update"
	OpRemove   Op = "Remove"
	OpCommit   Op = "Commit"
)

// Probe observes and steers an InMemory repository. It is created by the test
// and handed to the adapter, so every test owns its own counters.
type Probe struct {
	mu        sync.Mutex
	calls     map[Op]int
	inFlight  int
	highWater int
	failures  map[Op]error
	latency   time.Duration
}

func NewProbe() *Probe {
	return &Probe{calls: map[Op]int{}, failures: map[Op]error{}}
}

// FailOn makes every later call of op fail with err.
func (p *Probe) FailOn(op Op, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = err
}

func (p *Probe) ClearFailures() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = map[Op]error{}
}

// SetLatency makes every call take at least d, unless cancelled.
func (p *Probe) SetLatency(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latency = d
}

func (p *Probe) Calls(op Op) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *Probe) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

// HighWatermark is the largest number of calls observed in flight at once.
func (p *Probe) HighWatermark() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.highWater
}

// enter records a call and returns the function ending it. The injected
// failure, or the cancellation seen while waiting out the latency, is returned.
func (p *Probe) enter(ctx context.Context, op Op) (func(), error) {
	p.mu.Lock()
	p.calls[op]++
	p.inFlight++
	if p.inFlight > p.highWater {
		p.highWater = p.inFlight
	}
	latency, failure := p.latency, p.failures[op]
	p.mu.Unlock()

	leave := func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return leave, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return leave, err
	}
	return leave, failure
}

// InMemory is the test adapter: a committed map plus one staging area per
// execution, instrumented by Probe.
type InMemory[T Entity[T]] struct {
	entity string
	probe  *Probe
	units  Units[staging[T]]

	mu        sync.Mutex
	committed map[int64]T
	nextID    int64
}

// staging maps ids to staged values; None stages a removal.
type staging[T any] map[int64]option.Option[T]

// NewInMemory seeds a committed repository. Seeds without an id get one.
func NewInMemory[T Entity[T]](entity string, probe *Probe, seed ...T) *InMemory[T] {
	if probe == nil {
		probe = NewProbe()
	}
	m := &InMemory[T]{
		entity:    entity,
		probe:     probe,
		committed: map[int64]T{},
	}
	for _, item := range seed {
		if item.EntityID() == 0 {
			m.nextID++
			item = item.WithEntityID(m.nextID)
		} else if item.EntityID() > m.nextID {
			m.nextID = item.EntityID()
		}
		m.committed[item.EntityID()] = item
	}
	return m
}

func (m *InMemory[T]) Probe() *Probe { return m.probe }

// lookup sees the staged writes first. Callers hold m.mu.
func (m *InMemory[T]) lookup(staged staging[T], id int64) option.Option[T] {
	if v, ok := staged[id]; ok {
		return v
	}
	v, ok := m.committed[id]
	return option.Of(v, ok)
}

// viewOf returns a copy of the caller's staged writes.
func (m *InMemory[T]) viewOf(ctx context.Context) staging[T] {
	u := m.units.Lookup(ctx)
	if u == nil {
		return nil
	}
	defer u.Unlock()
	out := make(staging[T], len(u.State))
	for id, v := range u.State {
		out[id] = v
	}
	return out
}

func (m *InMemory[T]) FindByID(ctx context.Context, id int64) (option.Option[T], error) {
	leave, err := m.probe.enter(ctx, OpFindByID)
	defer leave()
	if err != nil {
		return option.None[T](), err
	}
	staged := m.viewOf(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(staged, id), nil
}

func (m *InMemory[T]) FindAll(ctx context.Context) ([]T, error) {
	leave, err := m.probe.enter(ctx, OpFindAll)
	defer leave()
	if err != nil {
		return nil, err
	}
	staged := m.viewOf(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.committed)+len(staged))
	seen := map[int64]bool{}
	for id := range m.committed {
		ids, seen[id] = append(ids, id), true
	}
	for id := range staged {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []T
	for _, id := range ids {
		if v, ok := m.lookup(staged, id).Get(); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// stage runs fn against the caller's staging area.
func (m *InMemory[T]) stage(ctx context.Context, fn func(staging[T]) error) error {
	u := m.units.Acquire(ctx)
	if u.State == nil {
		u.State = staging[T]{}
	}
	m.mu.Lock()
	err := fn(u.State)
	m.mu.Unlock()
	if len(u.State) == 0 {
		m.units.Drop(ctx, u)
		return err
	}
	u.Unlock()
	return err
}

func (m *InMemory[T]) Add(ctx context.Context, item T) (T, error) {
	leave, err := m.probe.enter(ctx, OpAdd)
	defer leave()
	if err != nil {
		return item, err
	}
	err = m.stage(ctx, func(staged staging[T]) error {
		if item.EntityID() == 0 {
			m.nextID++
			item = item.WithEntityID(m.nextID)
		} else if item.EntityID() > m.nextID {
			m.nextID = item.EntityID()
		}
		staged[item.EntityID()] = option.Some(item)
		return nil
	})
	return item, err
}

func (m *InMemory[T]) Update(ctx context.Context, item T) (T, error) {
	leave, err := m.probe.enter(ctx, OpUpdate)
	defer leave()
	if err != nil {
		return item, err
	}
	err = m.stage(ctx, func(staged staging[T]) error {
		if m.lookup(staged, item.EntityID()).IsNone() {
			return fault.NewNotFound(m.entity, item.EntityID())
		}
		staged[item.EntityID()] = option.Some(item)
		return nil
	})
	return item, err
}

func (m *InMemory[T]) Remove(ctx context.Context, id int64) error {
	leave, err := m.probe.enter(ctx, OpRemove)
	defer leave()
	if err != nil {
		return err
	}
	return m.stage(ctx, func(staged staging[T]) error {
		if m.lookup(staged, id).IsNone() {
			return fault.NewNotFound(m.entity, id)
		}
		staged[id] = option.None[T]()
		return nil
	})
}

// Commit applies the caller's staged writes. A failing commit drops them,
// like a rolled back transaction.
func (m *InMemory[T]) Commit(ctx context.Context) (int, error) {
	leave, err := m.probe.enter(ctx, OpCommit)
	defer leave()

	u := m.units.Close(ctx)
	if u == nil {
		return 0, err
	}
	defer u.Unlock()
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range u.State {
		if item, ok := v.Get(); ok {
			m.committed[id] = item
		} else {
			delete(m.committed, id)
		}
	}
	return len(u.State), nil
}

// Discard drops the caller's staged writes. It is not probed.
func (m *InMemory[T]) Discard(ctx context.Context) error {
	if u := m.units.Close(ctx); u != nil {
		u.Unlock()
	}
	return nil
}

// Pending reports how many executions hold staged writes.
func (m *InMemory[T]) Pending() int {
	return m.units.Open()
}

// Committed returns the durable entities ordered by id, bypassing the probe.
func (m *InMemory[T]) Committed() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.committed))
	for id := range m.committed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.committed[id])
	}
	return out
}
