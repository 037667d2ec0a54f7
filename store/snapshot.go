package store

import (
	"strings"

	"github.com/on-the-ground/effect_ive_todo/pure"
	"github.com/on-the-ground/effect_ive_todo/todo"
)

// Snapshot is one published state of the store. Snapshots are values: the
// store never changes a snapshot after publishing it, and callers must not
// change Items either.
type Snapshot struct {
	// Revision grows by one with every publication.
	Revision uint64
	Items    []todo.Todo
	Filter   todo.Filter
	Loading  bool
	// Err is the failure of the last remote operation that was rolled back.
	Err error

	views *views
}

// Visible returns the items matching the filter.
func (s Snapshot) Visible() []todo.Todo {
	if s.views == nil {
		return todo.Apply(s.Items, s.Filter)
	}
	return s.views.visible(s)
}

func (s Snapshot) Counts() todo.Counts {
	if s.views == nil {
		return todo.Count(s.Items)
	}
	return s.views.counts(s)
}

// Matching returns the visible items whose title contains query, ignoring case.
func (s Snapshot) Matching(query string) []todo.Todo {
	if s.views == nil {
		return matching(s, query)
	}
	return s.views.matching(s, query)
}

// Find returns the item with id, if present.
func (s Snapshot) Find(id int64) (todo.Todo, bool) {
	if i := indexOf(s.Items, id); i >= 0 {
		return s.Items[i], true
	}
	return todo.Todo{}, false
}

type views struct {
	visible  func(Snapshot) []todo.Todo
	counts   func(Snapshot) todo.Counts
	matching func(Snapshot, string) []todo.Todo
}

// revisionOf keys derived views: within one store a revision names exactly
// one state.
func revisionOf(s Snapshot) uint64 { return s.Revision }

func newViews(size uint32) *views {
	return &views{
		visible: pure.Memoize(revisionOf, func(s Snapshot) []todo.Todo {
			return todo.Apply(s.Items, s.Filter)
		}, size),
		counts: pure.Memoize(revisionOf, func(s Snapshot) todo.Counts {
			return todo.Count(s.Items)
		}, size),
		matching: pure.Memoize2(revisionOf, matching, size),
	}
}

func matching(s Snapshot, query string) []todo.Todo {
	query = strings.ToLower(strings.TrimSpace(query))
	visible := s.Visible()
	if query == "" {
		return visible
	}
	out := make([]todo.Todo, 0, len(visible))
	for _, t := range visible {
		if strings.Contains(strings.ToLower(t.Title), query) {
			out = append(out, t)
		}
	}
	return out
}

func indexOf(items []todo.Todo, id int64) int {
	for i, t := range items {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// The helpers below never modify their input slices.

func replaced(items []todo.Todo, i int, t todo.Todo) []todo.Todo {
	out := append([]todo.Todo(nil), items...)
	out[i] = t
	return out
}

func removed(items []todo.Todo, id int64) []todo.Todo {
	i := indexOf(items, id)
	if i < 0 {
		return items
	}
	out := make([]todo.Todo, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}

func inserted(items []todo.Todo, at int, t todo.Todo) []todo.Todo {
	if at > len(items) {
		at = len(items)
	}
	out := make([]todo.Todo, 0, len(items)+1)
	out = append(out, items[:at]...)
	out = append(out, t)
	return append(out, items[at:]...)
}

// reverted puts the captured state of item id back into current, leaving
// every other item as it is.
func reverted(current, captured []todo.Todo, id int64) []todo.Todo {
	at := indexOf(captured, id)
	if at < 0 {
		return removed(current, id)
	}
	if i := indexOf(current, id); i >= 0 {
		return replaced(current, i, captured[at])
	}
	return inserted(current, at, captured[at])
}

// newerOrSame overwrites the local copy of server unless the local copy
// carries a higher version. Items gone locally stay gone.
func newerOrSame(items []todo.Todo, server todo.Todo) []todo.Todo {
	i := indexOf(items, server.ID)
	if i < 0 || items[i].Version > server.Version {
		return items
	}
	return replaced(items, i, server)
}

// merged lays the local state of in-flight items over the server's collection.
// An in-flight item keeps its local copy unless the server's is at least as
// new, stays hidden when it is gone locally, and provisional items the server
// has not seen yet are kept at the end.
func merged(local, server []todo.Todo, inFlight func(id int64) bool) []todo.Todo {
	out := make([]todo.Todo, 0, len(server))
	for _, srv := range server {
		if !inFlight(srv.ID) {
			out = append(out, srv)
			continue
		}
		i := indexOf(local, srv.ID)
		switch {
		case i < 0:
		case local[i].Version > srv.Version:
			out = append(out, local[i])
		default:
			out = append(out, srv)
		}
	}
	for _, t := range local {
		if t.ID < 0 && inFlight(t.ID) {
			out = append(out, t)
		}
	}
	return out
}
