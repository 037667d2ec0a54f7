// Package app assembles the production runtime from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/on-the-ground/effect_ive_todo/config"
	"github.com/on-the-ground/effect_ive_todo/effects/clock"
	"github.com/on-the-ground/effect_ive_todo/effects/log"
	"github.com/on-the-ground/effect_ive_todo/effects/persistence"
	"github.com/on-the-ground/effect_ive_todo/shared/helper"
	"github.com/on-the-ground/effect_ive_todo/todo"
	"github.com/on-the-ground/effect_ive_todo/todo/sqlitestore"
)

const (
	openAttempts = 3
	openBackoff  = 200 * time.Millisecond
)

// Runtime supplies every capability the todo use-cases need.
type Runtime struct {
	todos  persistence.Repository[todo.Todo]
	clock  clock.IO
	logger *log.Zap

	bulkConcurrency int
	closers         []func() error
}

var _ todo.ClockedRequirements = (*Runtime)(nil)

func (rt *Runtime) Todos() persistence.Repository[todo.Todo] { return rt.todos }
func (rt *Runtime) Clock() clock.IO                           { return rt.clock }
func (rt *Runtime) Logger() log.IO                            { return rt.logger }

// BulkConcurrency is the ceiling for BulkDelete and ClearCompleted.
func (rt *Runtime) BulkConcurrency() int { return rt.bulkConcurrency }

// New builds the runtime described by cfg. The caller must Close it.
func New(ctx context.Context, cfg config.Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := log.NewZapFromOptions(ctx, log.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		BufferSize: cfg.Log.BufferSize,
		Workers:    cfg.Log.Workers,
	})
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		clock:           clock.System{},
		logger:          logger,
		bulkConcurrency: cfg.Service.BulkConcurrency,
	}
	rt.closers = append(rt.closers, func() error {
		logger.Close()
		return nil
	})

	repo, err := rt.openRepository(ctx, cfg.Store)
	if err != nil {
		return nil, multierr.Append(err, rt.Close())
	}
	rt.todos = repo
	return rt, nil
}

func (rt *Runtime) openRepository(ctx context.Context, cfg config.Store) (persistence.Repository[todo.Todo], error) {
	var repo persistence.Repository[todo.Todo]
	switch cfg.Driver {
	case config.DriverSQLite:
		var store *sqlitestore.Store
		err := helper.Retry(ctx, openAttempts, openBackoff, func() (err error) {
			store, err = sqlitestore.Open(cfg.Path)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		rt.closers = append(rt.closers, store.Close)
		repo = store
	default:
		store, err := persistence.NewMemDB[todo.Todo](todo.EntityName)
		if err != nil {
			return nil, fmt.Errorf("open memdb store: %w", err)
		}
		repo = store
	}

	if cfg.CacheSize == 0 {
		return repo, nil
	}
	cached, err := persistence.NewCached(repo, cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	rt.closers = append(rt.closers, func() error {
		cached.Close()
		return nil
	})
	return cached, nil
}

// Close releases the adapters in reverse order of creation, flushing the
// logger last, and reports every failure.
func (rt *Runtime) Close() error {
	var err error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, rt.closers[i]())
	}
	rt.closers = nil
	return err
}
