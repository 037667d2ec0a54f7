package todo

import (
	"time"

	"github.com/on-the-ground/effect_ive_todo/effects"
	"github.com/on-the-ground/effect_ive_todo/effects/clock"
	"github.com/on-the-ground/effect_ive_todo/effects/fault"
	"github.com/on-the-ground/effect_ive_todo/effects/log"
	"github.com/on-the-ground/effect_ive_todo/effects/persistence"
)

// Stage is a step of ToggleCompletion.
type Stage string

const (
	StageStart     Stage = "start"
	StageLoaded    Stage = "loaded"
	StageValidated Stage = "validated"
	StagePersisted Stage = "persisted"
	StageLogged    Stage = "logged"
	StageDone      Stage = "done"
)

// Get fetches one todo or fails with fault.NotFound.
func Get[R Requirements](id int64) effects.Effect[R, Todo] {
	return effects.OnError(
		persistence.Require(todos[R], EntityName, id),
		func(err error) effects.Effect[R, effects.Unit] {
			return log.Warn[R]("todo lookup failed", map[string]any{"id": id, "error": err.Error()})
		},
	)
}

// List returns the todos matching filter, ordered by id.
func List[R Requirements](filter Filter) effects.Effect[R, []Todo] {
	return effects.Map(persistence.FindAll(todos[R]), func(all []Todo) []Todo {
		return Apply(all, filter)
	})
}

// Create validates d, stamps it with the runtime clock and persists it.
func Create[R ClockedRequirements](d Draft) effects.Effect[R, Todo] {
	return effects.Bind(validated[R](d), func(valid Draft) effects.Effect[R, Todo] {
		return effects.Bind(clock.Now[R](), func(now time.Time) effects.Effect[R, Todo] {
			created := committed(persistence.Add(todos[R], New(valid, now)))
			return effects.Tap(created, func(t Todo) effects.Effect[R, effects.Unit] {
				return log.Info[R]("todo created", describe(t))
			})
		})
	})
}

// Edit validates d and replaces the editable fields of todo id.
func Edit[R Requirements](id int64, d Draft) effects.Effect[R, Todo] {
	return effects.Bind(validated[R](d), func(valid Draft) effects.Effect[R, Todo] {
		return effects.Bind(Get[R](id), func(current Todo) effects.Effect[R, Todo] {
			edited := committed(persistence.Update(todos[R], Revise(current, valid)))
			return effects.Tap(edited, func(t Todo) effects.Effect[R, effects.Unit] {
				return log.Info[R]("todo edited", describe(t))
			})
		})
	})
}

// ToggleCompletion flips the completion flag of todo id.
//
// It moves through Start, Loaded, Validated, Persisted, Logged and Done. A
// failure at any step is logged with the last stage reached and ends the run
// with that failure.
func ToggleCompletion[R ClockedRequirements](id int64) effects.Effect[R, Todo] {
	return effects.Defer(func() effects.Effect[R, Todo] {
		stage := StageStart
		reach := func(s Stage) func(Todo) Todo {
			return func(t Todo) Todo {
				stage = s
				return t
			}
		}

		started := log.Info[R]("toggle started", map[string]any{"id": id})
		loaded := effects.Map(effects.Then(started, persistence.Require(todos[R], EntityName, id)), reach(StageLoaded))

		toggled := effects.Bind(loaded, func(current Todo) effects.Effect[R, Todo] {
			return effects.Bind(clock.Now[R](), func(now time.Time) effects.Effect[R, Todo] {
				next := Toggle(current, now)
				return effects.Map(validated[R](next.Draft()), func(Draft) Todo { return next })
			})
		})
		checked := effects.Map(toggled, reach(StageValidated))

		persisted := effects.Map(
			effects.Bind(checked, func(next Todo) effects.Effect[R, Todo] {
				return committed(persistence.Update(todos[R], next))
			}),
			reach(StagePersisted),
		)

		logged := effects.Bind(clock.Span(persisted), func(timed clock.Timed[Todo]) effects.Effect[R, Todo] {
			fields := describe(timed.Value)
			fields["elapsed_ms"] = timed.Span.Duration().Milliseconds()
			return effects.Map(log.Info[R]("todo toggled", fields), func(effects.Unit) Todo {
				return timed.Value
			})
		})
		done := effects.Map(effects.Map(logged, reach(StageLogged)), reach(StageDone))

		return effects.OnError(done, func(err error) effects.Effect[R, effects.Unit] {
			return log.Error[R]("toggle failed", map[string]any{
				"id":    id,
				"stage": string(stage),
				"error": err.Error(),
			})
		})
	})
}

// Delete removes todo id or fails with fault.NotFound.
func Delete[R Requirements](id int64) effects.Effect[R, effects.Unit] {
	removed := discarding(effects.Then(
		persistence.Remove(todos[R], id),
		effects.Map(persistence.Commit(todos[R]), func(int) effects.Unit { return effects.Unit{} }),
	))
	return effects.Then(removed, log.Info[R]("todo deleted", map[string]any{"id": id}))
}

// BulkResult reports which ids a bulk delete removed and which were unknown.
type BulkResult struct {
	Deleted []int64 `json:"deleted"`
	Missing []int64 `json:"missing,omitempty"`
}

// BulkDelete removes ids with at most ceiling deletes in flight. Each delete
// runs isolated as its own unit of work; unknown ids are reported instead of
// failing the batch.
func BulkDelete[R Requirements](ids []int64, ceiling int) effects.Effect[R, BulkResult] {
	each := effects.ForEachPar(ids, ceiling, func(id int64) effects.Effect[R, bool] {
		removed := effects.Isolate(discarding(effects.Then(
			persistence.Remove(todos[R], id),
			effects.Map(persistence.Commit(todos[R]), func(int) bool { return true }),
		)))
		return effects.Recover(removed, func(err error) effects.Effect[R, bool] {
			if fault.IsNotFound(err) {
				return effects.Pure[R](false)
			}
			return effects.Fail[R, bool](err)
		})
	})

	summary := effects.Map(each, func(removed []bool) BulkResult {
		var res BulkResult
		for i, ok := range removed {
			if ok {
				res.Deleted = append(res.Deleted, ids[i])
			} else {
				res.Missing = append(res.Missing, ids[i])
			}
		}
		return res
	})
	return effects.Tap(summary, func(res BulkResult) effects.Effect[R, effects.Unit] {
		return log.Info[R]("bulk delete finished", map[string]any{
			"deleted": len(res.Deleted),
			"missing": len(res.Missing),
		})
	})
}

// ClearCompleted deletes every completed todo.
func ClearCompleted[R Requirements](ceiling int) effects.Effect[R, BulkResult] {
	return effects.Bind(List[R](FilterCompleted), func(done []Todo) effects.Effect[R, BulkResult] {
		ids := make([]int64, 0, len(done))
		for _, t := range done {
			ids = append(ids, t.ID)
		}
		return BulkDelete[R](ids, ceiling)
	})
}

func validated[R any](d Draft) effects.Effect[R, Draft] {
	return effects.FromValidation[R](d.Validate(), fault.NewValidationFailed)
}

// committed commits the unit of work once write succeeded.
func committed[R HasTodos](write effects.Effect[R, Todo]) effects.Effect[R, Todo] {
	return discarding(effects.Tap(write, func(Todo) effects.Effect[R, int] {
		return persistence.Commit(todos[R])
	}))
}

// discarding drops the staged writes of eff when it fails before committing.
func discarding[R HasTodos, A any](eff effects.Effect[R, A]) effects.Effect[R, A] {
	return effects.OnError(eff, func(error) effects.Effect[R, effects.Unit] {
		return persistence.Discard(todos[R])
	})
}

func describe(t Todo) map[string]any {
	return map[string]any{
		"id":        t.ID,
		"version":   t.Version,
		"completed": t.Completed,
	}
}
