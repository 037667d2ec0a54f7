// Package cli is the command line front end of the todo service.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/on-the-ground/effect_ive_todo/app"
	"github.com/on-the-ground/effect_ive_todo/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DBPath     string
	Format     string // "json" | "text"
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the todo CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "todo",
		Short: "Manage todos",
		Long: `A todo list whose use-cases run as effects against a configured runtime.

Without --config or --db, todos are kept in the SQLite file ~/.todo/todos.db,
so they survive between commands. A config file selecting the memdb driver
keeps them for a single command only.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (.toml, .yaml)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "sqlite database file, overrides the configured store")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewToggleCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// DefaultDBPath is where todos are stored when neither a config file nor --db
// is given.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating the default database: %w", err)
	}
	return filepath.Join(home, ".todo", "todos.db"), nil
}

// loadConfig reads the config file and applies the flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return cfg, err
	}
	dbPath := opts.DBPath
	if dbPath == "" && opts.ConfigPath == "" {
		if dbPath, err = DefaultDBPath(); err != nil {
			return cfg, err
		}
	}
	if dbPath != "" {
		cfg.Store.Driver = config.DriverSQLite
		cfg.Store.Path = dbPath
	}
	return cfg, cfg.Validate()
}

// withRuntime builds the runtime for one command and closes it afterwards.
func withRuntime(ctx context.Context, opts *RootOptions, fn func(*app.Runtime) error) (err error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	rt, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); err == nil {
			err = closeErr
		}
	}()
	return fn(rt)
}
