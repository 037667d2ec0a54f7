// Package sqlitestore is the SQLite adapter of the todo repository, built on
// modernc.org/sqlite so it needs no cgo.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/on-the-ground/effect_ive_todo/effects/fault"
	"github.com/on-the-ground/effect_ive_todo/effects/option"
	"github.com/on-the-ground/effect_ive_todo/effects/persistence"
	"github.com/on-the-ground/effect_ive_todo/todo"
)

const schema = `
CREATE TABLE IF NOT EXISTS todos (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	title        TEXT    NOT NULL,
	description  TEXT    NOT NULL DEFAULT '',
	completed    INTEGER NOT NULL DEFAULT 0,
	completed_at TEXT,
	created_at   TEXT    NOT NULL,
	version      INTEGER NOT NULL DEFAULT 1
)`

const columns = `id, title, description, completed, completed_at, created_at, version`

const filePoolSize = 4

// InMemoryPath opens a private database that lives as long as the Store.
const InMemoryPath = ":memory:"

// Store is a persistence.Repository[todo.Todo] over one SQLite file.
//
// Each execution stages its writes in its own transaction, opened by its first
// write and ended by Commit or Discard. File databases run in WAL mode with a
// small pool, so other executions keep reading the last committed state while
// a transaction is open, and a second writer waits out busy_timeout. An
// in-memory database lives on a single connection, so there other executions
// wait for the transaction to end.
type Store struct {
	db    *sql.DB
	path  string
	units persistence.Units[txUnit]
}

type txUnit struct {
	tx    *sql.Tx
	dirty map[int64]struct{}
}

var _ persistence.Repository[todo.Todo] = (*Store)(nil)

// Open creates the database file and its schema when missing.
func Open(path string) (*Store, error) {
	dsn := InMemoryPath
	if path != InMemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == InMemoryPath {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(filePoolSize)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close rolls back every open transaction and closes the database.
func (s *Store) Close() error {
	s.units.CloseAll(func(u txUnit) {
		_ = u.tx.Rollback()
	})
	return s.db.Close()
}

func (s *Store) Path() string { return s.path }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// read runs fn inside the caller's transaction, or on the pool.
func (s *Store) read(ctx context.Context, fn func(querier) error) error {
	if u := s.units.Lookup(ctx); u != nil {
		defer u.Unlock()
		return fn(u.State.tx)
	}
	return fn(s.db)
}

// write runs fn inside the caller's transaction, beginning it if needed. A
// transaction left without staged writes is rolled back so it releases the
// connection.
func (s *Store) write(ctx context.Context, fn func(querier, map[int64]struct{}) error) error {
	u := s.units.Acquire(ctx)
	if u.State.tx == nil {
		// the transaction outlives the call that opened it
		tx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
		if err != nil {
			s.units.Drop(ctx, u)
			return fmt.Errorf("beginning transaction: %w", err)
		}
		u.State = txUnit{tx: tx, dirty: map[int64]struct{}{}}
	}
	err := fn(u.State.tx, u.State.dirty)
	if len(u.State.dirty) == 0 {
		_ = u.State.tx.Rollback()
		s.units.Drop(ctx, u)
		return err
	}
	u.Unlock()
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTodo(row scanner) (todo.Todo, error) {
	var (
		t           todo.Todo
		completed   int
		completedAt sql.NullString
		createdAt   string
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &completed, &completedAt, &createdAt, &t.Version); err != nil {
		return t, err
	}
	t.Completed = completed != 0

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return t, fmt.Errorf("parsing created_at of todo %d: %w", t.ID, err)
	}
	t.CreatedAt = created

	if completedAt.Valid {
		at, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return t, fmt.Errorf("parsing completed_at of todo %d: %w", t.ID, err)
		}
		t.CompletedAt = &at
	}
	return t, nil
}

func encode(t todo.Todo) []any {
	var completedAt sql.NullString
	if t.CompletedAt != nil {
		completedAt = sql.NullString{String: t.CompletedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	completed := 0
	if t.Completed {
		completed = 1
	}
	return []any{t.Title, t.Description, completed, completedAt, t.CreatedAt.UTC().Format(time.RFC3339Nano), t.Version}
}

func (s *Store) FindByID(ctx context.Context, id int64) (option.Option[todo.Todo], error) {
	var t todo.Todo
	err := s.read(ctx, func(q querier) (err error) {
		t, err = scanTodo(q.QueryRowContext(ctx, `SELECT `+columns+` FROM todos WHERE id = ?`, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return option.None[todo.Todo](), nil
	}
	if err != nil {
		return option.None[todo.Todo](), fmt.Errorf("finding todo %d: %w", id, err)
	}
	return option.Some(t), nil
}

func (s *Store) FindAll(ctx context.Context) (out []todo.Todo, err error) {
	err = s.read(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, `SELECT `+columns+` FROM todos ORDER BY id`)
		if err != nil {
			return fmt.Errorf("listing todos: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTodo(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) Add(ctx context.Context, item todo.Todo) (todo.Todo, error) {
	err := s.write(ctx, func(q querier, dirty map[int64]struct{}) error {
		var (
			res sql.Result
			err error
		)
		if item.ID == 0 {
			res, err = q.ExecContext(ctx,
				`INSERT INTO todos (title, description, completed, completed_at, created_at, version) VALUES (?, ?, ?, ?, ?, ?)`,
				encode(item)...)
		} else {
			res, err = q.ExecContext(ctx,
				`INSERT INTO todos (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				append([]any{item.ID}, encode(item)...)...)
		}
		if err != nil {
			return fmt.Errorf("inserting todo: %w", err)
		}
		if item.ID == 0 {
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("reading inserted id: %w", err)
			}
			item = item.WithEntityID(id)
		}
		dirty[item.ID] = struct{}{}
		return nil
	})
	return item, err
}

func (s *Store) Update(ctx context.Context, item todo.Todo) (todo.Todo, error) {
	err := s.write(ctx, func(q querier, dirty map[int64]struct{}) error {
		res, err := q.ExecContext(ctx,
			`UPDATE todos SET title = ?, description = ?, completed = ?, completed_at = ?, created_at = ?, version = ? WHERE id = ?`,
			append(encode(item), item.ID)...)
		if err != nil {
			return fmt.Errorf("updating todo %d: %w", item.ID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fault.NewNotFound(todo.EntityName, item.ID)
		}
		dirty[item.ID] = struct{}{}
		return nil
	})
	return item, err
}

func (s *Store) Remove(ctx context.Context, id int64) error {
	return s.write(ctx, func(q querier, dirty map[int64]struct{}) error {
		res, err := q.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting todo %d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fault.NewNotFound(todo.EntityName, id)
		}
		dirty[id] = struct{}{}
		return nil
	})
}

// Commit commits the caller's transaction. On a cancelled context, or when
// the commit fails, the transaction is rolled back.
func (s *Store) Commit(ctx context.Context) (int, error) {
	u := s.units.Close(ctx)
	if u == nil {
		return 0, ctx.Err()
	}
	defer u.Unlock()
	if err := ctx.Err(); err != nil {
		_ = u.State.tx.Rollback()
		return 0, err
	}
	if err := u.State.tx.Commit(); err != nil {
		_ = u.State.tx.Rollback()
		return 0, fmt.Errorf("committing: %w", err)
	}
	return len(u.State.dirty), nil
}

// Discard rolls back the caller's transaction.
func (s *Store) Discard(ctx context.Context) error {
	u := s.units.Close(ctx)
	if u == nil {
		return nil
	}
	defer u.Unlock()
	if err := u.State.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back: %w", err)
	}
	return nil
}
