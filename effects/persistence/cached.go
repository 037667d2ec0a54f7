package persistence

import (
	"context"
	"sync"

	ristretto "github.com/dgraph-io/ristretto/v2"

	"github.com/on-the-ground/effect_ive_todo/effects"
	"github.com/on-the-ground/effect_ive_todo/effects/option"
)

// Cached is a read-through decorator: FindByID is served from a ristretto cache
// and falls back to the inner repository on a miss. Only committed values are
// cached: ids with staged writes in any execution bypass the cache until those
// writes are committed or discarded, and every write evicts its entity.
type Cached[T Entity[T]] struct {
	inner Repository[T]
	cache *ristretto.Cache[int64, T]

	mu sync.Mutex
	// staged ids per execution
	staged map[string]map[int64]struct{}
	// bumped whenever an id is written, so a lookup racing a write does not
	// cache what it read before the write
	gen map[int64]uint64
}

// NewCached wraps inner with a cache holding about maxItems entities.
func NewCached[T Entity[T]](inner Repository[T], maxItems int64) (*Cached[T], error) {
	if maxItems <= 0 {
		maxItems = 1024
	}
	cache, err := ristretto.NewCache(&ristretto.Config[int64, T]{
		NumCounters:        maxItems * 10, // number of keys to track frequency of.
		MaxCost:            maxItems,      // every entry costs 1.
		BufferItems:        64,            // number of keys per Get buffer.
		IgnoreInternalCost: true,
		Metrics:            true,
	})
	if err != nil {
		return nil, err
	}
	return &Cached[T]{
		inner:  inner,
		cache:  cache,
		staged: map[string]map[int64]struct{}{},
		gen:    map[int64]uint64{},
	}, nil
}

// stagedAnywhere reports whether some execution has a staged write of id.
// Callers hold c.mu.
func (c *Cached[T]) stagedAnywhere(id int64) bool {
	for _, ids := range c.staged {
		if _, ok := ids[id]; ok {
			return true
		}
	}
	return false
}

func (c *Cached[T]) FindByID(ctx context.Context, id int64) (option.Option[T], error) {
	c.mu.Lock()
	bypass, gen := c.stagedAnywhere(id), c.gen[id]
	c.mu.Unlock()

	if !bypass {
		if v, ok := c.cache.Get(id); ok {
			return option.Some(v), nil
		}
	}
	found, err := c.inner.FindByID(ctx, id)
	if err != nil || bypass {
		return found, err
	}
	if v, ok := found.Get(); ok {
		c.mu.Lock()
		if c.gen[id] == gen && !c.stagedAnywhere(id) {
			c.cache.Set(id, v, 1)
			c.cache.Wait()
		}
		c.mu.Unlock()
	}
	return found, nil
}

func (c *Cached[T]) FindAll(ctx context.Context) ([]T, error) {
	return c.inner.FindAll(ctx)
}

func (c *Cached[T]) Add(ctx context.Context, item T) (T, error) {
	added, err := c.inner.Add(ctx, item)
	if err == nil {
		c.evict(added.EntityID())
		c.track(ctx, added.EntityID())
	}
	return added, err
}

func (c *Cached[T]) Update(ctx context.Context, item T) (T, error) {
	c.evict(item.EntityID())
	updated, err := c.inner.Update(ctx, item)
	if err == nil {
		c.track(ctx, item.EntityID())
	}
	return updated, err
}

func (c *Cached[T]) Remove(ctx context.Context, id int64) error {
	c.evict(id)
	err := c.inner.Remove(ctx, id)
	if err == nil {
		c.track(ctx, id)
	}
	return err
}

func (c *Cached[T]) Commit(ctx context.Context) (int, error) {
	n, err := c.inner.Commit(ctx)
	c.settle(ctx)
	return n, err
}

func (c *Cached[T]) Discard(ctx context.Context) error {
	err := c.inner.Discard(ctx)
	c.settle(ctx)
	return err
}

func (c *Cached[T]) evict(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[id]++
	c.cache.Del(id)
}

// track marks id as staged by the caller's execution.
func (c *Cached[T]) track(ctx context.Context, id int64) {
	key := effects.ExecutionID(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staged[key] == nil {
		c.staged[key] = map[int64]struct{}{}
	}
	c.staged[key][id] = struct{}{}
}

// settle forgets the caller's staged ids once its unit of work ended.
func (c *Cached[T]) settle(ctx context.Context) {
	key := effects.ExecutionID(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.staged[key] {
		c.gen[id]++
		c.cache.Del(id)
	}
	delete(c.staged, key)
}

// Hits reports how many lookups the cache answered.
func (c *Cached[T]) Hits() uint64 {
	return c.cache.Metrics.Hits()
}

// Close stops the cache's goroutines. The inner repository is left open.
func (c *Cached[T]) Close() {
	c.cache.Close()
}
