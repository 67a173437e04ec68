// Package observability provides logging setup and formatted output for
// verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/police-terminal/internal/render"
	"github.com/jonathan/police-terminal/internal/scanner"
	"github.com/jonathan/police-terminal/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

// PrintFragments lists the fragments a collection produced, in scan order.
func (p *Printer) PrintFragments(fragments []types.Fragment) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Collected %d fragments", len(fragments))

	live, history := 0, 0
	for _, f := range fragments {
		if f.Origin == types.OriginLive {
			live++
		} else {
			history++
		}
	}
	fmt.Fprintf(&sb, "\n  live: %d  history: %d", live, history)

	p.printBox("FRAGMENTS", sb.String())
}

// PrintCandidates outputs the first raw scanner hits per domain.
func (p *Printer) PrintCandidates(candidates []types.RawCandidate) {
	if len(candidates) == 0 {
		return
	}

	byDomain := make(map[types.Domain][]types.RawCandidate)
	for _, c := range candidates {
		byDomain[c.Domain] = append(byDomain[c.Domain], c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total candidates: %d\n", len(candidates))
	for _, d := range types.AllDomains {
		list := byDomain[d]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s (%d):\n", d, len(list))
		count := min(len(list), maxItemsToShow)
		for i := 0; i < count; i++ {
			c := list[i]
			fmt.Fprintf(&sb, "  • %s = %s  [%s #%d]\n", c.Name, firstNonEmpty(c.Value, c.Src, c.DataAvatar, c.Text), c.Origin, c.Fragment)
		}
		if len(list) > maxItemsToShow {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(list)-maxItemsToShow)
		}
	}

	p.printBox("RAW CANDIDATES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRecords outputs the merged records of one panel.
func (p *Printer) PrintRecords(panel types.Panel, records []types.PersonRecord) {
	var sb strings.Builder
	if len(records) == 0 {
		sb.WriteString("No records")
	}

	for i, r := range records {
		fmt.Fprintf(&sb, "#%d  %s\n", i+1, r.Name)
		switch {
		case r.Progress != nil:
			fmt.Fprintf(&sb, "    Progress: %s\n", render.FormatProgress(*r.Progress))
		case r.Value != "":
			fmt.Fprintf(&sb, "    Value:    %s\n", r.Value)
		}
		if r.Position != nil {
			fmt.Fprintf(&sb, "    Position: top %.1f%% left %.1f%%\n", r.Position.Top, r.Position.Left)
		}
		if panel == types.PanelMonitor {
			fmt.Fprintf(&sb, "    Says:     %s\n", r.Statement)
		}
		fmt.Fprintf(&sb, "    Avatar:   %s\n", r.Avatar)
		if i < len(records)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox(strings.ToUpper(string(panel))+" RECORDS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDiagnostics outputs a selector diagnostics report.
func (p *Printer) PrintDiagnostics(report scanner.Report) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Matched elements: %d\n", len(report.Matched))

	if len(report.BySelector) > 0 {
		sb.WriteString("\nBy selector:\n")
		for _, sc := range report.BySelector {
			fmt.Fprintf(&sb, "  %-34s %d\n", sc.Selector, sc.Count)
		}
	}

	if len(report.Matched) > 0 {
		sb.WriteString("\nMatched:\n")
		count := min(len(report.Matched), maxItemsToShow)
		for i := 0; i < count; i++ {
			e := report.Matched[i]
			fmt.Fprintf(&sb, "  • %s: %s\n", e.Name, e.Text)
		}
		if len(report.Matched) > maxItemsToShow {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(report.Matched)-maxItemsToShow)
		}
	}

	if len(report.Potential) > 0 {
		sb.WriteString("\nUnmatched but data-like:\n")
		count := min(len(report.Potential), maxItemsToShow)
		for i := 0; i < count; i++ {
			e := report.Potential[i]
			fmt.Fprintf(&sb, "  ⚠️  <%s class=%q> %s\n", e.Tag, e.Class, e.Text)
		}
		if len(report.Potential) > maxItemsToShow {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(report.Potential)-maxItemsToShow)
		}
	}

	for _, e := range report.Errors {
		fmt.Fprintf(&sb, "\n✗ %s", e)
	}

	p.printBox("SELECTOR DIAGNOSTICS: "+strings.ToUpper(string(report.Domain)), strings.TrimSuffix(sb.String(), "\n"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
