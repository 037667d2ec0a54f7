package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/on-the-ground/effect_ive_todo/effects/fault"
	"github.com/on-the-ground/effect_ive_todo/effects/result"
	"github.com/on-the-ground/effect_ive_todo/todo"
)

// ErrFailed is returned once a failure has been rendered to the error writer.
var ErrFailed = errors.New("command failed")

// OutputFormatter writes command results in the selected format.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
}

// Emit prints the value of res, or renders its failure as JSON and returns ErrFailed.
func Emit[A any](f *OutputFormatter, res result.Result[A], text func(io.Writer, A)) error {
	if res.IsErr() {
		return f.Failure(res.Error())
	}
	if f.Format == "json" {
		return writeJSON(f.Writer, res.Value())
	}
	text(f.Writer, res.Value())
	return nil
}

// Failure renders err through fault.Render whatever the output format.
func (f *OutputFormatter) Failure(err error) error {
	view := struct {
		fault.View
		Status int `json:"status"`
	}{fault.Render(err), fault.StatusOf(err)}
	if werr := writeJSON(f.ErrWriter, view); werr != nil {
		return errors.Join(err, werr)
	}
	return fmt.Errorf("%w: %s", ErrFailed, view.Kind)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTodo(w io.Writer, t todo.Todo) {
	mark := " "
	if t.Completed {
		mark = "x"
	}
	fmt.Fprintf(w, "[%s] %d %s\n", mark, t.ID, t.Title)
	if t.Description != "" {
		fmt.Fprintf(w, "    %s\n", t.Description)
	}
}

func printTodos(w io.Writer, items []todo.Todo) {
	for _, t := range items {
		printTodo(w, t)
	}
	c := todo.Count(items)
	fmt.Fprintf(w, "%d item(s), %d active, %d completed\n", c.Total, c.Active, c.Completed)
}

func printBulk(w io.Writer, res todo.BulkResult) {
	fmt.Fprintf(w, "deleted %d", len(res.Deleted))
	if len(res.Missing) > 0 {
		fmt.Fprintf(w, ", missing %v", res.Missing)
	}
	fmt.Fprintln(w)
}
