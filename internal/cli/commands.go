package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/on-the-ground/effect_ive_todo/app"
	"github.com/on-the-ground/effect_ive_todo/effects"
	"github.com/on-the-ground/effect_ive_todo/todo"
)

func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
	}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", arg, err)
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// runOne runs a use-case built for the runtime and prints its outcome.
func runOne[A any](
	cmd *cobra.Command,
	opts *RootOptions,
	build func(*app.Runtime) effects.Effect[*app.Runtime, A],
	text func(io.Writer, A),
) error {
	return withRuntime(cmd.Context(), opts, func(rt *app.Runtime) error {
		res := effects.Run(cmd.Context(), build(rt), rt)
		return Emit(formatter(opts, cmd), res, text)
	})
}

func NewAddCommand(opts *RootOptions) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := todo.Draft{Title: args[0], Description: description}
			return runOne(cmd, opts, func(*app.Runtime) effects.Effect[*app.Runtime, todo.Todo] {
				return todo.Create[*app.Runtime](d)
			}, printTodo)
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "longer description")
	return cmd
}

func NewListCommand(opts *RootOptions) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List todos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := todo.ParseFilter(filter)
			if err != nil {
				return err
			}
			return runOne(cmd, opts, func(*app.Runtime) effects.Effect[*app.Runtime, []todo.Todo] {
				return todo.List[*app.Runtime](f)
			}, printTodos)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "all|active|completed")
	return cmd
}

func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runOne(cmd, opts, func(*app.Runtime) effects.Effect[*app.Runtime, todo.Todo] {
				return todo.Get[*app.Runtime](id)
			}, printTodo)
		},
	}
}

// NewEditCommand changes only the fields whose flags are set.
func NewEditCommand(opts *RootOptions) *cobra.Command {
	var title, description string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit the title or description of a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			titleSet := cmd.Flags().Changed("title")
			descriptionSet := cmd.Flags().Changed("description")

			return runOne(cmd, opts, func(*app.Runtime) effects.Effect[*app.Runtime, todo.Todo] {
				return effects.Bind(todo.Get[*app.Runtime](id), func(current todo.Todo) effects.Effect[*app.Runtime, todo.Todo] {
					d := current.Draft()
					if titleSet {
						d.Title = title
					}
					if descriptionSet {
						d.Description = description
					}
					return todo.Edit[*app.Runtime](id, d)
				})
			}, printTodo)
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	return cmd
}

func NewToggleCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip the completion of a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runOne(cmd, opts, func(*app.Runtime) effects.Effect[*app.Runtime, todo.Todo] {
				return todo.ToggleCompletion[*app.Runtime](id)
			}, printTodo)
		},
	}
}

// NewRemoveCommand deletes one todo strictly, or several in bulk, reporting
// the missing ones.
func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Delete todos",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			if len(ids) == 1 {
				return runOne(cmd, opts, func(*app.Runtime) effects.Effect[*app.Runtime, effects.Unit] {
					return todo.Delete[*app.Runtime](ids[0])
				}, func(w io.Writer, _ effects.Unit) {
					fmt.Fprintf(w, "deleted %d\n", ids[0])
				})
			}
			return runOne(cmd, opts, func(rt *app.Runtime) effects.Effect[*app.Runtime, todo.BulkResult] {
				return todo.BulkDelete[*app.Runtime](ids, rt.BulkConcurrency())
			}, printBulk)
		},
	}
}

func NewClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every completed todo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd, opts, func(rt *app.Runtime) effects.Effect[*app.Runtime, todo.BulkResult] {
				return todo.ClearCompleted[*app.Runtime](rt.BulkConcurrency())
			}, printBulk)
		},
	}
}
