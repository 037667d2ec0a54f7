package persistence

import (
	"context"
	"fmt"

	memdb "github.com/hashicorp/go-memdb"

	"github.com/on-the-ground/effect_ive_todo/effects/fault"
	"github.com/on-the-ground/effect_ive_todo/effects/option"
)

const idIndex = "id"

// row is what memdb stores; the id field is indexed by reflection.
type row[T any] struct {
	ID    int64
	Value T
}

// Schema returns a memdb schema with one table per name, each indexed by id.
func Schema(tables ...string) *memdb.DBSchema {
	schema := &memdb.DBSchema{Tables: map[string]*memdb.TableSchema{}}
	for _, table := range tables {
		schema.Tables[table] = &memdb.TableSchema{
			Name: table,
			Indexes: map[string]*memdb.IndexSchema{
				idIndex: {
					Name:    idIndex,
					Unique:  true,
					Indexer: &memdb.IntFieldIndex{Field: "ID"},
				},
			},
		}
	}
	return schema
}

// MemDB is the in-process production adapter.
//
// Each execution stages its writes in a memdb write transaction opened by its
// first write; other executions read committed snapshots. memdb admits one
// writer per database, so a second execution's first write waits until the
// first one commits or discards.
type MemDB[T Entity[T]] struct {
	db    *memdb.MemDB
	table string
	units Units[memUnit]
}

type memUnit struct {
	txn   *memdb.Txn
	dirty map[int64]struct{}
}

// NewMemDB opens a fresh database holding a single table.
func NewMemDB[T Entity[T]](table string) (*MemDB[T], error) {
	db, err := memdb.NewMemDB(Schema(table))
	if err != nil {
		return nil, err
	}
	return OnMemDB[T](db, table), nil
}

// OnMemDB binds a repository to a table of an existing database.
func OnMemDB[T Entity[T]](db *memdb.MemDB, table string) *MemDB[T] {
	return &MemDB[T]{db: db, table: table}
}

// read runs fn on the caller's staged transaction, or on a read snapshot.
func (m *MemDB[T]) read(ctx context.Context, fn func(*memdb.Txn) error) error {
	if u := m.units.Lookup(ctx); u != nil {
		defer u.Unlock()
		return fn(u.State.txn)
	}
	txn := m.db.Txn(false)
	defer txn.Abort()
	return fn(txn)
}

// write runs fn on the caller's write transaction, opening it if needed. A
// transaction left without staged writes is aborted so it does not keep the
// writer lock.
func (m *MemDB[T]) write(ctx context.Context, fn func(*memdb.Txn, map[int64]struct{}) error) error {
	u := m.units.Acquire(ctx)
	if u.State.txn == nil {
		u.State = memUnit{txn: m.db.Txn(true), dirty: map[int64]struct{}{}}
	}
	err := fn(u.State.txn, u.State.dirty)
	if len(u.State.dirty) == 0 {
		u.State.txn.Abort()
		m.units.Drop(ctx, u)
		return err
	}
	u.Unlock()
	return err
}

func (m *MemDB[T]) FindByID(ctx context.Context, id int64) (found option.Option[T], err error) {
	if err := ctx.Err(); err != nil {
		return option.None[T](), err
	}
	err = m.read(ctx, func(txn *memdb.Txn) error {
		found, err = m.first(txn, id)
		return err
	})
	return found, err
}

func (m *MemDB[T]) first(txn *memdb.Txn, id int64) (option.Option[T], error) {
	raw, err := txn.First(m.table, idIndex, id)
	if err != nil || raw == nil {
		return option.None[T](), err
	}
	r, ok := raw.(*row[T])
	if !ok {
		return option.None[T](), fmt.Errorf("memdb table %q holds %T", m.table, raw)
	}
	return option.Some(r.Value), nil
}

// FindAll returns every entity ordered by id.
func (m *MemDB[T]) FindAll(ctx context.Context) (out []T, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err = m.read(ctx, func(txn *memdb.Txn) error {
		it, err := txn.Get(m.table, idIndex)
		if err != nil {
			return err
		}
		for raw := it.Next(); raw != nil; raw = it.Next() {
			out = append(out, raw.(*row[T]).Value)
		}
		return nil
	})
	return out, err
}

func (m *MemDB[T]) Add(ctx context.Context, item T) (T, error) {
	if err := ctx.Err(); err != nil {
		return item, err
	}
	err := m.write(ctx, func(txn *memdb.Txn, dirty map[int64]struct{}) error {
		id := item.EntityID()
		if id == 0 {
			last, err := txn.Last(m.table, idIndex)
			if err != nil {
				return err
			}
			id = 1
			if last != nil {
				id = last.(*row[T]).ID + 1
			}
			item = item.WithEntityID(id)
		}
		if err := txn.Insert(m.table, &row[T]{ID: id, Value: item}); err != nil {
			return err
		}
		dirty[id] = struct{}{}
		return nil
	})
	return item, err
}

func (m *MemDB[T]) Update(ctx context.Context, item T) (T, error) {
	if err := ctx.Err(); err != nil {
		return item, err
	}
	err := m.write(ctx, func(txn *memdb.Txn, dirty map[int64]struct{}) error {
		existing, err := m.first(txn, item.EntityID())
		if err != nil {
			return err
		}
		if existing.IsNone() {
			return fault.NewNotFound(m.table, item.EntityID())
		}
		if err := txn.Insert(m.table, &row[T]{ID: item.EntityID(), Value: item}); err != nil {
			return err
		}
		dirty[item.EntityID()] = struct{}{}
		return nil
	})
	return item, err
}

func (m *MemDB[T]) Remove(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.write(ctx, func(txn *memdb.Txn, dirty map[int64]struct{}) error {
		raw, err := txn.First(m.table, idIndex, id)
		if err != nil {
			return err
		}
		if raw == nil {
			return fault.NewNotFound(m.table, id)
		}
		if err := txn.Delete(m.table, raw); err != nil {
			return err
		}
		dirty[id] = struct{}{}
		return nil
	})
}

// Commit makes the caller's staged writes visible. On a cancelled context
// they are aborted instead.
func (m *MemDB[T]) Commit(ctx context.Context) (int, error) {
	u := m.units.Close(ctx)
	if u == nil {
		return 0, ctx.Err()
	}
	defer u.Unlock()
	if err := ctx.Err(); err != nil {
		u.State.txn.Abort()
		return 0, err
	}
	u.State.txn.Commit()
	return len(u.State.dirty), nil
}

// Discard aborts the caller's staged writes.
func (m *MemDB[T]) Discard(ctx context.Context) error {
	if u := m.units.Close(ctx); u != nil {
		defer u.Unlock()
		u.State.txn.Abort()
	}
	return nil
}
