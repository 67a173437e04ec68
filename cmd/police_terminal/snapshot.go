package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/police-terminal/internal/observability"
	"github.com/jonathan/police-terminal/internal/store"
	"github.com/jonathan/police-terminal/internal/types"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <panel>",
	Short: "Print the stored snapshot behind a panel",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshot,
}

var snapshotJSON bool

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "Print the records as JSON")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx := background(cmd)

	panel, err := types.ParsePanel(args[0])
	if err != nil {
		return err
	}

	kv, err := store.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = kv.Close() }()

	records, found, err := store.NewSnapshots(kv, logger).Load(ctx, panel.PrimaryDomain())
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(os.Stderr, "No %s snapshot stored\n", panel.PrimaryDomain())
		return nil
	}

	if snapshotJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	observability.NewPrinter(os.Stdout).PrintRecords(panel, records)
	return nil
}
