package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/japaniel/kindlenotion/pkg/db"
	"github.com/japaniel/kindlenotion/pkg/ingest"
	"github.com/japaniel/kindlenotion/pkg/syncer"
)

var (
	colorGreen  = lipgloss.Color("#00AA00")
	colorYellow = lipgloss.Color("#CCAA00")
	colorRed    = lipgloss.Color("#DD0000")
	colorGray   = lipgloss.Color("#666666")
	colorCyan   = lipgloss.Color("#00AAAA")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	createdStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)
)

func progressPrinter(w io.Writer, kind db.TableKind) func(current, total int) {
	return func(current, total int) {
		fmt.Fprintf(w, "\r%s %d/%d", dimStyle.Render(kind.String()), current, total)
	}
}

func printResult(w io.Writer, res *ingest.Result) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s: %d processed, %d created", res.Kind, res.Processed, res.Created())))
	for _, e := range res.Words {
		line := fmt.Sprintf("  + %s (%s)", e.Stem, e.Category)
		if e.Ignore {
			fmt.Fprintln(w, warnStyle.Render(line))
			continue
		}
		fmt.Fprintln(w, createdStyle.Render(line))
	}
	for _, e := range res.Lookups {
		line := fmt.Sprintf("  + %s -> %s", e.Word, e.Stem)
		if e.NeedsReview {
			fmt.Fprintln(w, warnStyle.Render(line+" [needs review]"))
			continue
		}
		fmt.Fprintln(w, createdStyle.Render(line))
	}
	for _, f := range res.Failures {
		fmt.Fprintln(w, errorStyle.Render("  ! "+f.Error()))
	}
}

func printDiagnostics(w io.Writer, d syncer.Diagnostics) {
	if d.Empty() {
		return
	}
	printList(w, "Definition lookups failed", d.LookupFailures)
	printList(w, "Look-ups with unresolved words", d.JoinFailures)
	printList(w, "Rows rejected by Notion", d.WriteFailures)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%s (%d):", title, len(items))))
	for _, it := range items {
		fmt.Fprintln(w, dimStyle.Render("  - "+it))
	}
}

func printReconcile(w io.Writer, res syncer.ReconcileResult, d syncer.Diagnostics) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Reconciled %d look-ups, %d need review", res.Processed, res.Flagged)))
	if res.Failed > 0 {
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%d look-ups could not be updated", res.Failed)))
	}
	printDiagnostics(w, d)
}
