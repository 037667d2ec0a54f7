package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/on-the-ground/effect_ive_todo/pure"
	"github.com/on-the-ground/effect_ive_todo/todo"
)

func item(id, version int64) todo.Todo {
	return todo.Todo{ID: id, Title: "t", Version: version}
}

func TestReverted(t *testing.T) {
	captured := []todo.Todo{item(1, 1), item(2, 1), item(3, 1)}

	t.Run("restores a changed item in place", func(t *testing.T) {
		current := []todo.Todo{item(1, 1), item(2, 2), item(3, 5)}
		got := reverted(current, captured, 2)
		assert.Equal(t, []todo.Todo{item(1, 1), item(2, 1), item(3, 5)}, got)
		assert.Equal(t, int64(2), current[1].Version, "input untouched")
	})

	t.Run("reinserts a removed item at its captured position", func(t *testing.T) {
		current := []todo.Todo{item(1, 1), item(3, 1)}
		assert.Equal(t, captured, reverted(current, captured, 2))
	})

	t.Run("drops an item that did not exist", func(t *testing.T) {
		current := append(append([]todo.Todo(nil), captured...), item(-1, 1))
		assert.Equal(t, captured, reverted(current, captured, -1))
	})
}

func TestNewerOrSame(t *testing.T) {
	local := []todo.Todo{item(1, 3)}

	assert.Equal(t, local, newerOrSame(local, item(1, 2)))
	assert.Equal(t, []todo.Todo{item(1, 3)}, newerOrSame(local, item(1, 3)))
	assert.Equal(t, []todo.Todo{item(1, 4)}, newerOrSame(local, item(1, 4)))
	assert.Equal(t, local, newerOrSame(local, item(9, 1)), "gone locally stays gone")
}

func TestMerged(t *testing.T) {
	pending := map[int64]bool{2: true, 3: true, -1: true}
	inFlight := func(id int64) bool { return pending[id] }

	local := []todo.Todo{item(1, 1), item(2, 4), item(-1, 1), item(-2, 1)}
	server := []todo.Todo{item(1, 2), item(2, 3), item(3, 1), item(4, 1)}

	got := merged(local, server, inFlight)
	assert.Equal(t, []todo.Todo{
		item(1, 2),  // settled: server wins
		item(2, 4),  // in flight and newer locally
		item(4, 1),  // 3 is in flight and gone locally
		item(-1, 1), // pending create
	}, got)

	assert.Equal(t, server, merged(local, server, func(int64) bool { return false }))
}

func TestSnapshotViewsAreMemoizedByRevision(t *testing.T) {
	calls := 0
	v := &views{
		visible: pure.Memoize(revisionOf, func(s Snapshot) []todo.Todo {
			return todo.Apply(s.Items, s.Filter)
		}, 8),
		counts: pure.Memoize(revisionOf, func(s Snapshot) todo.Counts {
			calls++
			return todo.Count(s.Items)
		}, 8),
	}

	snap := Snapshot{Revision: 1, Items: []todo.Todo{item(1, 1)}, views: v}
	assert.Equal(t, todo.Counts{Total: 1, Active: 1}, snap.Counts())
	assert.Equal(t, todo.Counts{Total: 1, Active: 1}, snap.Counts())
	assert.Equal(t, 1, calls)

	next := snap
	next.Revision = 2
	next.Counts()
	assert.Equal(t, 2, calls)
}

func TestSnapshotWithoutViewsComputesDirectly(t *testing.T) {
	plain := Snapshot{Items: []todo.Todo{item(1, 1)}, Filter: todo.FilterAll}
	assert.Equal(t, todo.Counts{Total: 1, Active: 1}, plain.Counts())
	assert.Equal(t, plain.Items, plain.Visible())
}

func TestSnapshotMatching(t *testing.T) {
	snap := Snapshot{
		Revision: 4,
		Items: []todo.Todo{
			{ID: 1, Title: "Buy milk"},
			{ID: 2, Title: "buy bread", Completed: true},
			{ID: 3, Title: "Call mom"},
		},
		Filter: todo.FilterActive,
		views:  newViews(8),
	}

	got := snap.Matching("BUY")
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected only the active milk item, got %v", got)
	}
	assert.Len(t, snap.Matching(" "), 2)
	assert.Equal(t, got, Snapshot{Items: snap.Items, Filter: todo.FilterActive}.Matching("buy"))
}
