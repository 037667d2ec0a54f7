package todo_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/on-the-ground/effect_ive_todo/effects"
	"github.com/on-the-ground/effect_ive_todo/effects/clock"
	"github.com/on-the-ground/effect_ive_todo/effects/fault"
	"github.com/on-the-ground/effect_ive_todo/effects/log"
	"github.com/on-the-ground/effect_ive_todo/effects/persistence"
	"github.com/on-the-ground/effect_ive_todo/todo"
	"github.com/on-the-ground/effect_ive_todo/todo/sqlitestore"
)

type adapter struct {
	name string
	open func(t *testing.T) persistence.Repository[todo.Todo]
}

func adapters() []adapter {
	return []adapter{
		{"inmemory", func(*testing.T) persistence.Repository[todo.Todo] {
			return persistence.NewInMemory[todo.Todo](todo.EntityName, nil)
		}},
		{"memdb", func(t *testing.T) persistence.Repository[todo.Todo] {
			repo, err := persistence.NewMemDB[todo.Todo](todo.EntityName)
			require.NoError(t, err)
			return repo
		}},
		{"cached memdb", func(t *testing.T) persistence.Repository[todo.Todo] {
			inner, err := persistence.NewMemDB[todo.Todo](todo.EntityName)
			require.NoError(t, err)
			cached, err := persistence.NewCached[todo.Todo](inner, 16)
			require.NoError(t, err)
			t.Cleanup(cached.Close)
			return cached
		}},
		{"sqlite", func(t *testing.T) persistence.Repository[todo.Todo] {
			store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "todos.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		}},
	}
}

// execution returns the context of a finished execution, to drive adapters
// as that execution would.
func execution(t *testing.T) context.Context {
	t.Helper()
	res := effects.Run(context.Background(), effects.Suspend[struct{}](func(ctx context.Context) (context.Context, error) {
		return ctx, nil
	}), struct{}{})
	require.False(t, res.IsErr())
	return res.Value()
}

func titles(items []todo.Todo) []string {
	out := make([]string, 0, len(items))
	for _, t := range items {
		out = append(out, t.Title)
	}
	return out
}

func TestRepositories_StagedWritesStayWithTheirExecution(t *testing.T) {
	for _, a := range adapters() {
		t.Run(a.name, func(t *testing.T) {
			repo := a.open(t)
			writer, reader := execution(t), execution(t)

			added, err := repo.Add(writer, todo.New(todo.Draft{Title: "staged"}, now))
			require.NoError(t, err)

			own, err := repo.FindByID(writer, added.ID)
			require.NoError(t, err)
			assert.True(t, own.IsSome(), "writer sees its staged insert")

			other, err := repo.FindByID(reader, added.ID)
			require.NoError(t, err)
			assert.True(t, other.IsNone(), "uncommitted insert leaked to another execution")
			all, err := repo.FindAll(reader)
			require.NoError(t, err)
			assert.Empty(t, all)

			n, err := repo.Commit(reader)
			require.NoError(t, err)
			assert.Equal(t, 0, n, "another execution's commit must not publish the insert")

			n, err = repo.Commit(writer)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			all, err = repo.FindAll(reader)
			require.NoError(t, err)
			assert.Equal(t, []string{"staged"}, titles(all))
		})
	}
}

func TestRepositories_CancelledCommitLeavesNothing(t *testing.T) {
	for _, a := range adapters() {
		t.Run(a.name, func(t *testing.T) {
			repo := a.open(t)
			ctx, cancel := context.WithCancel(execution(t))

			_, err := repo.Add(ctx, todo.New(todo.Draft{Title: "ghost"}, now))
			require.NoError(t, err)
			cancel()
			_, err = repo.Commit(ctx)
			require.ErrorIs(t, err, context.Canceled)

			later := execution(t)
			n, err := repo.Commit(later)
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			_, err = repo.Add(later, todo.New(todo.Draft{Title: "real"}, now))
			require.NoError(t, err)
			_, err = repo.Commit(later)
			require.NoError(t, err)

			all, err := repo.FindAll(execution(t))
			require.NoError(t, err)
			assert.Equal(t, []string{"real"}, titles(all))
		})
	}
}

func TestRepositories_DiscardAndFailedWritesReleaseTheUnit(t *testing.T) {
	for _, a := range adapters() {
		t.Run(a.name, func(t *testing.T) {
			repo := a.open(t)
			first, second := execution(t), execution(t)

			_, err := repo.Add(first, todo.New(todo.Draft{Title: "dropped"}, now))
			require.NoError(t, err)
			require.NoError(t, repo.Discard(first))
			require.NoError(t, repo.Discard(first), "discarding twice is harmless")

			assert.True(t, fault.IsNotFound(repo.Remove(first, 999)))

			_, err = repo.Add(second, todo.New(todo.Draft{Title: "kept"}, now))
			require.NoError(t, err)
			n, err := repo.Commit(second)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			all, err := repo.FindAll(first)
			require.NoError(t, err)
			assert.Equal(t, []string{"kept"}, titles(all))
		})
	}
}

type adapterRuntime struct {
	repo  persistence.Repository[todo.Todo]
	clock *clock.Fixed
	log   *log.Recorder
}

func (rt adapterRuntime) Todos() persistence.Repository[todo.Todo] { return rt.repo }
func (rt adapterRuntime) Clock() clock.IO                           { return rt.clock }
func (rt adapterRuntime) Logger() log.IO                            { return rt.log }

// cancelAfterAdd cancels the request as soon as its insert is staged.
type cancelAfterAdd struct {
	persistence.Repository[todo.Todo]
	cancel context.CancelFunc
}

func (c cancelAfterAdd) Add(ctx context.Context, item todo.Todo) (todo.Todo, error) {
	added, err := c.Repository.Add(ctx, item)
	c.cancel()
	return added, err
}

func TestCreate_CancelledBeforeCommitLeavesNoTrace(t *testing.T) {
	for _, a := range adapters() {
		t.Run(a.name, func(t *testing.T) {
			repo := a.open(t)
			rt := adapterRuntime{repo: repo, clock: clock.NewFixed(now), log: log.NewRecorder()}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			interrupted := rt
			interrupted.repo = cancelAfterAdd{Repository: repo, cancel: cancel}

			res := effects.Run(ctx, todo.Create[adapterRuntime](todo.Draft{Title: "ghost"}), interrupted)
			assert.Equal(t, fault.KindCancelled, fault.KindOf(res.Error()))

			created := effects.Run(context.Background(), todo.Create[adapterRuntime](todo.Draft{Title: "real"}), rt)
			require.False(t, created.IsErr(), "%v", created.Error())

			listed := effects.Run(context.Background(), todo.List[adapterRuntime](todo.FilterAll), rt)
			require.False(t, listed.IsErr(), "%v", listed.Error())
			assert.Equal(t, []string{"real"}, titles(listed.Value()))
		})
	}
}
