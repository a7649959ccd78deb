package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odb-go/odb"
)

// rootOptions holds the global flags shared by all subcommands.
type rootOptions struct {
	Dir     string
	Engine  string
	Schema  string
	Verbose bool
}

// NewRootCommand creates the odb command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "odb",
		Short:         "Inspect and edit odb databases",
		Long:          "odb opens databases described by a YAML descriptor and reads or edits their stores.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", ".", "directory holding the database files")
	cmd.PersistentFlags().StringVar(&opts.Engine, "engine", "bolt", "storage engine (bolt|pebble|memory)")
	cmd.PersistentFlags().StringVar(&opts.Schema, "schema", "", "path to the YAML database descriptor")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every read and write")

	cmd.AddCommand(newDBsCommand(opts))
	cmd.AddCommand(newDropCommand(opts))
	cmd.AddCommand(newStoresCommand(opts))
	cmd.AddCommand(newCountCommand(opts))
	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newPutCommand(opts))
	cmd.AddCommand(newDelCommand(opts))
	cmd.AddCommand(newExportCommand(opts))

	return cmd
}

// openDatabase loads the descriptor and connects to the database it
// declares. The caller owns the returned handle and must Close it.
func (opts *rootOptions) openDatabase() (*odb.Database, error) {
	if opts.Schema == "" {
		return nil, fmt.Errorf("a database descriptor is required (--schema)")
	}
	cfg, err := odb.LoadConfig(opts.Schema)
	if err != nil {
		return nil, err
	}
	engine, err := odb.ParseEngine(opts.Engine)
	if err != nil {
		return nil, err
	}
	db, err := odb.New(cfg, odb.Options{
		Dir:     opts.Dir,
		Engine:  engine,
		Verbose: opts.Verbose,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Connect(); err != nil {
		return nil, err
	}
	return db, nil
}

func (opts *rootOptions) openStore(name string) (*odb.Database, *odb.Store, error) {
	db, err := opts.openDatabase()
	if err != nil {
		return nil, nil, err
	}
	store, err := db.Use(name)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, store, nil
}
