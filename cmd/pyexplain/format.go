package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/jward/pyexplain"
)

// shortIDLen is the length of the run ID prefix shown in text output.
// history --run accepts the prefix back.
const shortIDLen = 8

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func toCLIEntries(entries []pyexplain.Entry) []CLIEntry {
	return lo.Map(entries, func(e pyexplain.Entry, _ int) CLIEntry {
		return CLIEntry{Kind: e.Kind.String(), Line: e.Line, Col: e.Column, Text: e.Text}
	})
}

func toCLIExplanation(res *pyexplain.Result) CLIExplanation {
	return CLIExplanation{
		Path:    res.Path,
		Hash:    res.Hash,
		RunID:   res.RunID,
		Cached:  res.Cached,
		Lines:   res.Lines,
		Entries: toCLIEntries(res.Entries),
	}
}

func toCLIRun(r *pyexplain.Run) CLIRun {
	return CLIRun{ID: r.ID, Label: r.Label, Hash: r.Hash, Count: r.Count, CreatedAt: r.CreatedAt}
}

// formatLinesText writes one line per explanation.
func formatLinesText(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

// formatIndexText formats an index run as aligned columns.
func formatIndexText(w io.Writer, idx CLIIndex) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tEXPLANATIONS\tCACHED\tRUN")
	for _, f := range idx.Files {
		fmt.Fprintf(tw, "%s\t%d\t%t\t%s\n", f.Path, f.Count, f.Cached, shortID(f.RunID))
	}
	tw.Flush()
}

// formatRunsText formats runs as aligned columns, newest first.
func formatRunsText(w io.Writer, runs []CLIRun, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tEXPLANATIONS\tWHEN")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			shortID(r.ID), r.Label, r.Count, humanize.RelTime(r.CreatedAt, now, "ago", "from now"))
	}
	tw.Flush()
}

// formatRunDetailText writes a run header followed by its explanations
// prefixed with their source position.
func formatRunDetailText(w io.Writer, d CLIRunDetail, now time.Time) {
	fmt.Fprintf(w, "Run %s: %s (%s)\n", d.Run.ID, d.Run.Label,
		humanize.RelTime(d.Run.CreatedAt, now, "ago", "from now"))
	for _, e := range d.Entries {
		fmt.Fprintf(w, "%d:%d\t%s\n", e.Line, e.Col, e.Text)
	}
}

// formatStatsText formats a history summary.
func formatStatsText(w io.Writer, s CLIStats) {
	fmt.Fprintf(w, "Files: %s\n", humanize.Comma(int64(s.Files)))
	fmt.Fprintf(w, "Runs: %s\n", humanize.Comma(int64(s.Runs)))
	fmt.Fprintf(w, "Explanations: %s\n", humanize.Comma(int64(s.Explanations)))
	if len(s.Kinds) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "By kind:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, k := range s.Kinds {
			fmt.Fprintf(tw, "  %s\t%s\n", k.Kind, humanize.Comma(int64(k.Count)))
		}
		tw.Flush()
	}
}

// outputJSON writes result as indented JSON.
func outputJSON(w io.Writer, result CLIResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes a JSON error envelope in json mode and returns err
// so main prints it to stderr.
func outputError(w io.Writer, command string, err error) error {
	if flagFormat == "json" {
		_ = outputJSON(w, CLIResult{Command: command, Error: err.Error()})
	}
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	if lo.Contains(validFormats, format) {
		return nil
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
