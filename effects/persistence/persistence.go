// Package persistence is the storage capability: a generic repository contract
// working as a unit of work, its effect module, a go-memdb adapter, a ristretto
// read-through decorator and a probing in-memory test adapter.
//
// Writes (Add, Update, Remove) are staged per execution. The execution that
// staged them sees them right away, everyone else only after Commit. A Commit
// that fails, cancellation included, drops them, and so does Discard.
package persistence

import (
	"context"

	"github.com/on-the-ground/effect_ive_todo/effects"
	"github.com/on-the-ground/effect_ive_todo/effects/fault"
	"github.com/on-the-ground/effect_ive_todo/effects/option"
)

// Entity is a record with an int64 identity assigned by the repository.
type Entity[T any] interface {
	EntityID() int64
	// WithEntityID returns a copy carrying id.
	WithEntityID(id int64) T
}

// Repository is the persistence contract.
//
// Add assigns the next identity when the entity has none. Update and Remove
// fail with fault.NotFound when the identity is unknown. Commit returns how
// many entities its staged writes changed. Discard drops the caller's staged
// writes; discarding with nothing staged is not an error.
type Repository[T Entity[T]] interface {
	FindByID(ctx context.Context, id int64) (option.Option[T], error)
	FindAll(ctx context.Context) ([]T, error)
	Add(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, item T) (T, error)
	Remove(ctx context.Context, id int64) error
	Commit(ctx context.Context) (int, error)
	Discard(ctx context.Context) error
}

// The modules below take the accessor reading one repository out of a runtime
// instead of a fragment interface, since a runtime may carry several.

func FindByID[R any, T Entity[T]](repo func(R) Repository[T], id int64) effects.Effect[R, option.Option[T]] {
	return effects.Use(repo, func(ctx context.Context, r Repository[T]) (option.Option[T], error) {
		return r.FindByID(ctx, id)
	})
}

func FindAll[R any, T Entity[T]](repo func(R) Repository[T]) effects.Effect[R, []T] {
	return effects.Use(repo, func(ctx context.Context, r Repository[T]) ([]T, error) {
		return r.FindAll(ctx)
	})
}

func Add[R any, T Entity[T]](repo func(R) Repository[T], item T) effects.Effect[R, T] {
	return effects.Use(repo, func(ctx context.Context, r Repository[T]) (T, error) {
		return r.Add(ctx, item)
	})
}

func Update[R any, T Entity[T]](repo func(R) Repository[T], item T) effects.Effect[R, T] {
	return effects.Use(repo, func(ctx context.Context, r Repository[T]) (T, error) {
		return r.Update(ctx, item)
	})
}

func Remove[R any, T Entity[T]](repo func(R) Repository[T], id int64) effects.Effect[R, effects.Unit] {
	return effects.Use(repo, func(ctx context.Context, r Repository[T]) (effects.Unit, error) {
		return effects.Unit{}, r.Remove(ctx, id)
	})
}

func Commit[R any, T Entity[T]](repo func(R) Repository[T]) effects.Effect[R, int] {
	return effects.Use(repo, func(ctx context.Context, r Repository[T]) (int, error) {
		return r.Commit(ctx)
	})
}

func Discard[R any, T Entity[T]](repo func(R) Repository[T]) effects.Effect[R, effects.Unit] {
	return effects.Use(repo, func(ctx context.Context, r Repository[T]) (effects.Unit, error) {
		return effects.Unit{}, r.Discard(ctx)
	})
}

// Require looks id up and turns absence into fault.NotFound{entity, id}.
func Require[R any, T Entity[T]](repo func(R) Repository[T], entity string, id int64) effects.Effect[R, T] {
	return effects.Bind(FindByID(repo, id), func(found option.Option[T]) effects.Effect[R, T] {
		return effects.FromOption[R](found, func() error {
			return fault.NewNotFound(entity, id)
		})
	})
}
