package effects_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/on-the-ground/effect_ive_todo/effects"
	"github.com/on-the-ground/effect_ive_todo/effects/fault"
)

func invalid(field string) effects.Effect[none, int] {
	return effects.Fail[none, int](fault.NewValidationFailed([]fault.FieldError{{Field: field, Reason: "bad"}}))
}

func TestMap2_MergesValidationInBranchOrder(t *testing.T) {
	slowFirst := effects.Then(effects.Sleep[none](10*time.Millisecond), invalid("first"))

	_, err := run(effects.Map2(slowFirst, invalid("second"), func(a, b int) int { return a + b }))
	vf, ok := fault.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, []fault.FieldError{
		{Field: "first", Reason: "bad"},
		{Field: "second", Reason: "bad"},
	}, vf.Failures)
}

func TestZip_NonValidationFailureWins(t *testing.T) {
	nf := fault.NewNotFound("todo", 1)
	_, err := run(effects.Zip(invalid("a"), effects.Fail[none, int](nf)))
	assert.Same(t, nf, err)
}

func TestZip_BranchesRunConcurrently(t *testing.T) {
	start := time.Now()
	pair, err := run(effects.Zip(
		effects.Then(effects.Sleep[none](50*time.Millisecond), effects.Pure[none]("a")),
		effects.Then(effects.Sleep[none](50*time.Millisecond), effects.Pure[none](1)),
	))
	require.NoError(t, err)
	assert.Equal(t, effects.Pair[string, int]{First: "a", Second: 1}, pair)
	assert.Less(t, time.Since(start), 95*time.Millisecond)
}

func TestForEachPar_HonorsCeiling(t *testing.T) {
	var inFlight, highWater atomic.Int64
	items := make([]int, 40)
	for i := range items {
		items[i] = i
	}

	out, err := run(effects.ForEachPar(items, 3, func(n int) effects.Effect[none, int] {
		return effects.Suspend[none](func(ctx context.Context) (int, error) {
			cur := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := highWater.Load()
				if cur <= old || highWater.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			return n * 2, nil
		})
	}))
	require.NoError(t, err)
	assert.LessOrEqual(t, highWater.Load(), int64(3))
	for i, v := range out {
		if v != i*2 {
			t.Fatalf("result %d out of order: %d", i, v)
		}
	}
}

func TestForEachPar_PanicInBranch(t *testing.T) {
	_, err := run(effects.ForEachPar([]int{1, 2}, effects.Unbounded, func(n int) effects.Effect[none, int] {
		if n == 2 {
			return effects.Suspend[none](func(context.Context) (int, error) { panic("branch") })
		}
		return effects.Pure[none](n)
	}))
	assert.Equal(t, fault.KindUnexpected, fault.KindOf(err))
}

func TestAll_KeepsOrder(t *testing.T) {
	out, err := run(effects.All(
		effects.Then(effects.Sleep[none](5*time.Millisecond), effects.Pure[none](1)),
		effects.Pure[none](2),
	))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, out)

	empty, err := run(effects.All[none, int]())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestForEachPar_CancellationReachesBranches(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := effects.Run(ctx, effects.ForEachPar([]int{1, 2, 3}, 2, func(int) effects.Effect[none, effects.Unit] {
		return effects.Sleep[none](time.Hour)
	}), none{})
	assert.ErrorIs(t, res.Error(), fault.ErrCancelled)
	assert.ErrorIs(t, res.Error(), context.DeadlineExceeded)
}
