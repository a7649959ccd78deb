package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odb-go/odb"
)

func newDBsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dbs",
		Short: "List the databases in the directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := odb.Databases(opts.Dir)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newDropCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <db>",
		Short: "Delete a database and all its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return odb.DeleteDatabase(opts.Dir, args[0])
		},
	}
}

func newStoresCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List the stores the descriptor declares",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()
			for _, name := range db.Stores() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
