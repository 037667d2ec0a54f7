// Package clock is the time capability: a contract, the system adapter, the
// effect module and a settable test adapter.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/rickb777/date/v2/timespan"

	"github.com/on-the-ground/effect_ive_todo/effects"
)

// IO is the clock contract.
type IO interface {
	Now() time.Time
}

// Has is the requirement fragment for runtimes that supply a clock.
type Has interface {
	Clock() IO
}

func of[R Has](rt R) IO { return rt.Clock() }

// Now reads the current time from the runtime's clock.
func Now[R Has]() effects.Effect[R, time.Time] {
	return effects.Use(of[R], func(_ context.Context, c IO) (time.Time, error) {
		return c.Now(), nil
	})
}

// Span measures how long eff takes according to the runtime's clock.
func Span[R Has, A any](eff effects.Effect[R, A]) effects.Effect[R, Timed[A]] {
	return effects.Bind(Now[R](), func(start time.Time) effects.Effect[R, Timed[A]] {
		return effects.Bind(eff, func(a A) effects.Effect[R, Timed[A]] {
			return effects.Map(Now[R](), func(end time.Time) Timed[A] {
				return Timed[A]{Value: a, Span: timespan.BetweenTimes(start, end)}
			})
		})
	})
}

// Timed is a value together with the time span that produced it.
type Timed[A any] struct {
	Value A
	Span  timespan.TimeSpan
}

// System is the production clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed is the test clock: it only moves when told to.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fixed) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
