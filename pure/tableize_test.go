package pure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/on-the-ground/effect_ive_todo/pure"
)

func identity[T any](v T) T { return v }

func TestMemoize(t *testing.T) {
	count := 0
	fn := pure.Memoize(identity[int], func(i int) int {
		count++
		return i * 2
	}, 2)

	assert.Equal(t, 4, fn(2))
	assert.Equal(t, 4, fn(2)) // cached
	assert.Equal(t, 1, count)
}

func TestMemoize2(t *testing.T) {
	count := 0
	fn := pure.Memoize2(identity[int], func(a, b int) int {
		count++
		return a + b
	}, 2)

	assert.Equal(t, 5, fn(2, 3))
	assert.Equal(t, 5, fn(2, 3))
	assert.Equal(t, 1, count)
	assert.Equal(t, 6, fn(3, 3))
	assert.Equal(t, 2, count)
}

type revision struct {
	rev   int
	items []string // slices are not comparable
}

func TestMemoize_KeyStandsForTheArgument(t *testing.T) {
	count := 0
	fn := pure.Memoize(func(r revision) int { return r.rev }, func(r revision) int {
		count++
		return len(r.items)
	}, 2)

	assert.Equal(t, 3, fn(revision{rev: 1, items: []string{"a", "b", "c"}}))
	assert.Equal(t, 3, fn(revision{rev: 1, items: []string{"a", "b", "c"}}))
	assert.Equal(t, 1, count)

	assert.Equal(t, 1, fn(revision{rev: 2, items: []string{"a"}}))
	assert.Equal(t, 2, count)
}
