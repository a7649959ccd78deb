package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odb-go/odb"
)

// parseKey interprets a command-line key argument. JSON syntax wins, so
// numbers and quoted strings come through typed; anything that does not
// parse as JSON is taken as a plain string key.
func parseKey(arg string) any {
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err == nil {
		return v
	}
	return arg
}

func newCountCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count <store>",
		Short: "Count the records in a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := opts.openStore(args[0])
			if err != nil {
				return err
			}
			defer db.Close()
			n, err := store.Count()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func newGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <store> <key>",
		Short: "Print one record as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := opts.openStore(args[0])
			if err != nil {
				return err
			}
			defer db.Close()
			doc, err := store.Get(parseKey(args[1]))
			if err != nil {
				return err
			}
			if doc == nil {
				return fmt.Errorf("no record with key %v in %s", args[1], args[0])
			}
			out, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newPutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <store> <json>",
		Short: "Insert or replace a record, printing its key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc odb.Document
			if err := json.Unmarshal([]byte(args[1]), &doc); err != nil {
				return fmt.Errorf("invalid document: %w", err)
			}
			db, store, err := opts.openStore(args[0])
			if err != nil {
				return err
			}
			defer db.Close()
			key, err := store.Put(doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%v\n", key)
			return nil
		},
	}
}

func newDelCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "del <store> <key>",
		Short: "Delete a record by key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := opts.openStore(args[0])
			if err != nil {
				return err
			}
			defer db.Close()
			return store.Delete(parseKey(args[1]))
		},
	}
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <store>",
		Short: "Dump every record as one JSON object per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := opts.openStore(args[0])
			if err != nil {
				return err
			}
			defer db.Close()
			enc := json.NewEncoder(cmd.OutOrStdout())
			return store.Each(func(doc odb.Document) error {
				return enc.Encode(doc)
			})
		},
	}
}
