package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/jward/pyexplain"
)

var (
	flagLimit  int
	flagRun    string
	flagStats  bool
	flagForget string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs or show one run's explanations",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&flagLimit, "limit", 20, "number of runs to list (0 for all)")
	historyCmd.Flags().StringVar(&flagRun, "run", "", "show the explanations of this run (ID or unique prefix)")
	historyCmd.Flags().BoolVar(&flagStats, "stats", false, "summarize the history database")
	historyCmd.Flags().StringVar(&flagForget, "forget", "", "delete a file's record and runs")
	historyCmd.MarkFlagsMutuallyExclusive("run", "stats", "forget")
}

func runHistory(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	dbPath, err := defaultDBPath()
	if err != nil {
		return outputError(out, "history", err)
	}
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return outputError(out, "history", errors.New("no history database at "+dbPath+": run explain or index first"))
	}

	engine, err := pyexplain.New(dbPath, engineOptions()...)
	if err != nil {
		return outputError(out, "history", err)
	}
	defer engine.Close()
	q := engine.History()
	now := time.Now()

	switch {
	case flagRun != "":
		run, exps, err := q.RunExplanations(flagRun)
		if err != nil {
			return outputError(out, "history", err)
		}
		detail := CLIRunDetail{
			Run: toCLIRun(run),
			Entries: lo.Map(exps, func(x *pyexplain.Explanation, _ int) CLIEntry {
				return CLIEntry{Kind: x.Kind, Line: x.Line, Col: x.Col, Text: x.Text}
			}),
		}
		if flagFormat == "json" {
			return outputJSON(out, CLIResult{Command: "history", Results: detail})
		}
		formatRunDetailText(out, detail, now)

	case flagStats:
		stats, err := q.Stats()
		if err != nil {
			return outputError(out, "history", err)
		}
		s := CLIStats{
			Files:        stats.Files,
			Runs:         stats.Runs,
			Explanations: stats.Explanations,
			Kinds: lo.Map(stats.Kinds, func(k pyexplain.KindCount, _ int) CLIKindCount {
				return CLIKindCount{Kind: k.Kind, Count: k.Count}
			}),
		}
		if flagFormat == "json" {
			return outputJSON(out, CLIResult{Command: "history", Results: s})
		}
		formatStatsText(out, s)

	case flagForget != "":
		path, err := absPath(flagForget)
		if err != nil {
			return outputError(out, "history", err)
		}
		n, err := q.Forget(path)
		if err != nil {
			return outputError(out, "history", err)
		}
		if flagFormat == "json" {
			return outputJSON(out, CLIResult{Command: "history", Results: map[string]any{"forgotten": path, "runs": n}})
		}
		fmt.Fprintf(out, "Forgot %s (%s runs)\n", path, humanize.Comma(int64(n)))

	default:
		runs, err := q.Runs(flagLimit)
		if err != nil {
			return outputError(out, "history", err)
		}
		cliRuns := lo.Map(runs, func(r *pyexplain.Run, _ int) CLIRun { return toCLIRun(r) })
		if flagFormat == "json" {
			return outputJSON(out, CLIResult{Command: "history", Results: cliRuns})
		}
		formatRunsText(out, cliRuns, now)
	}
	return nil
}
