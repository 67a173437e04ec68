package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/police-terminal/internal/observability"
	"github.com/jonathan/police-terminal/internal/scanner"
	"github.com/jonathan/police-terminal/internal/sources"
	"github.com/jonathan/police-terminal/internal/types"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <domain>",
	Short: "Report how a domain's selectors match the host's current content",
	Long: `Count matches per selector, list every matched element and flag elements
that look like domain data but match no selector. Domains: location,
progress, avatar, statement, news.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiagnose,
}

var (
	diagnoseScope string
	diagnosePage  string
	diagnoseChat  string
	diagnoseJSON  bool
)

func init() {
	diagnoseCmd.Flags().StringVar(&diagnoseScope, "scope", "full", "History scope: live, latest, recent or full")
	diagnoseCmd.Flags().StringVar(&diagnosePage, "page", "", "Saved host page to inspect (overrides host config)")
	diagnoseCmd.Flags().StringVar(&diagnoseChat, "chat", "", "JSONL chat log to inspect (overrides host config)")
	diagnoseCmd.Flags().BoolVar(&diagnoseJSON, "json", false, "Print the report as JSON")
	rootCmd.AddCommand(diagnoseCmd)
}

// parseScope accepts a scope by its name.
func parseScope(name string) (sources.Scope, error) {
	for _, sc := range []sources.Scope{sources.ScopeLive, sources.ScopeLatest, sources.ScopeRecent, sources.ScopeFull} {
		if sc.String() == name {
			return sc, nil
		}
	}
	return 0, fmt.Errorf("invalid scope %q: must be live, latest, recent or full", name)
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	ctx := background(cmd)

	domain, err := types.ParseDomain(args[0])
	if err != nil {
		return err
	}
	scope, err := parseScope(diagnoseScope)
	if err != nil {
		return err
	}

	hc := cfg.Host
	if diagnosePage != "" || diagnoseChat != "" {
		hc.Mode = "file"
		hc.PageFile = diagnosePage
		hc.ChatLog = diagnoseChat
	}
	conn, err := openHost(ctx, hc, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	fragments := sources.NewAggregator(conn.live, conn.history, logger).Collect(ctx, domain, scope)
	report := scanner.Diagnose(fragments, domain)

	if diagnoseJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	observability.NewPrinter(os.Stdout).PrintDiagnostics(report)
	return nil
}
