package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/police-terminal/internal/merge"
	"github.com/jonathan/police-terminal/internal/observability"
	"github.com/jonathan/police-terminal/internal/refresh"
	"github.com/jonathan/police-terminal/internal/render"
	"github.com/jonathan/police-terminal/internal/scanner"
	"github.com/jonathan/police-terminal/internal/sources"
	"github.com/jonathan/police-terminal/internal/store"
	"github.com/jonathan/police-terminal/internal/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one refresh pass and print the resulting records",
	Long: `Collect fragments from the configured host (or the given page and chat
files), scan them, merge the candidates and print the records. With --save
the records replace the stored snapshot.`,
	RunE: runScan,
}

var (
	scanPage  string
	scanChat  string
	scanPanel string
	scanMode  string
	scanSave  bool
	scanHTML  bool
	scanJSON  bool
)

func init() {
	scanCmd.Flags().StringVar(&scanPage, "page", "", "Saved host page to scan (overrides host config)")
	scanCmd.Flags().StringVar(&scanChat, "chat", "", "JSONL chat log to scan (overrides host config)")
	scanCmd.Flags().StringVarP(&scanPanel, "panel", "p", string(types.PanelMap), "Panel to refresh: map, monitor or news")
	scanCmd.Flags().StringVarP(&scanMode, "mode", "m", "update", "Refresh mode: live, update or force")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Store the records as the domain's snapshot")
	scanCmd.Flags().BoolVar(&scanHTML, "html", false, "Print the rendered panel markup")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the run result as JSON")
	rootCmd.AddCommand(scanCmd)
}

// fixedCollector replays fragments that were already collected.
type fixedCollector []types.Fragment

func (f fixedCollector) Collect(context.Context, types.Domain, sources.Scope) []types.Fragment {
	return f
}

// scopeFor maps a refresh mode to the scope and run options the controller
// would use for it.
func scopeFor(mode string) (sources.Scope, refresh.RunOptions, error) {
	switch mode {
	case "live":
		return sources.ScopeLive, refresh.RunOptions{}, nil
	case "update", "":
		return sources.ScopeLatest, refresh.RunOptions{}, nil
	case "force":
		return sources.ScopeFull, refresh.RunOptions{RequireData: true}, nil
	default:
		return 0, refresh.RunOptions{}, fmt.Errorf("invalid mode %q: must be live, update or force", mode)
	}
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx := background(cmd)

	panel, err := types.ParsePanel(scanPanel)
	if err != nil {
		return err
	}
	scope, runOpts, err := scopeFor(scanMode)
	if err != nil {
		return err
	}

	hc := cfg.Host
	if scanPage != "" || scanChat != "" {
		hc.Mode = "file"
		hc.PageFile = scanPage
		hc.ChatLog = scanChat
	}
	conn, err := openHost(ctx, hc, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	fragments := sources.NewAggregator(conn.live, conn.history, logger).Collect(ctx, panel.PrimaryDomain(), scope)

	printer := observability.NewPrinter(os.Stdout)
	if cfg.Verbose {
		printer.PrintFragments(fragments)
		candidates, scanErr := scanner.ScanAll(fragments, panel.Domains()...)
		if scanErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", scanErr)
		}
		printer.PrintCandidates(candidates)
	}

	overlay, err := render.New()
	if err != nil {
		return err
	}
	pipeline := &refresh.Pipeline{
		Collector: fixedCollector(fragments),
		Merger:    merge.New(merge.DefaultOptions()),
		Renderer:  overlay,
		Logger:    logger,
	}
	if scanSave {
		kv, err := store.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer func() { _ = kv.Close() }()
		pipeline.Store = store.NewSnapshots(kv, logger)
	}

	res, err := pipeline.Run(ctx, panel, scope, runOpts)
	if err != nil {
		return err
	}

	if scanJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if res.Skipped {
		fmt.Fprintf(os.Stderr, "No %s data found; snapshot left unchanged\n", panel.PrimaryDomain())
		return nil
	}
	printer.PrintRecords(panel, res.Records)
	if scanHTML {
		html, err := overlay.Panel(panel)
		if err != nil {
			return err
		}
		fmt.Println(html)
	}
	return nil
}
