package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/jward/pyexplain"
)

var (
	flagForce      bool
	flagSequential bool
)

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Explain every Python file under a directory into the history database",
	Long:  "Discovers .py and .pyi files (via git ls-files when inside a repository), explains the changed ones, and records a run for each. Unchanged files are served from the database.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete the database and explain everything from scratch")
	indexCmd.Flags().BoolVar(&flagSequential, "sequential", false, "explain files one at a time instead of with a worker pool")
	indexCmd.Flags().StringVar(&flagScript, "script", "", "post-process with a Risor script (path, or builtin:numbered|markdown|calls)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	out := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	// Determine the target directory.
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError(out, "index", err)
	}

	// Resolve repo root and DB path.
	dbPath := resolveDBPath(cfg.DBPath, findRepoRoot(targetDir))
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return outputError(out, "index", fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err))
	}

	// Handle --force: delete the DB file entirely.
	if flagForce {
		for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return outputError(out, "index", fmt.Errorf("removing database for --force: %w", err))
			}
		}
		fmt.Fprintf(stderr, "Cleared database: %s\n", dbPath)
	}

	opts := append(engineOptions(), pyexplain.WithParallel(!flagSequential))
	if flagScript != "" {
		opt, err := scriptOption(flagScript)
		if err != nil {
			return outputError(out, "index", err)
		}
		opts = append(opts, opt)
	}

	engine, err := pyexplain.New(dbPath, opts...)
	if err != nil {
		return outputError(out, "index", fmt.Errorf("creating engine: %w", err))
	}
	defer engine.Close()

	results, explainErr := engine.ExplainDirectory(cmd.Context(), targetDir)
	duration := time.Since(start)

	idx := CLIIndex{
		Root:       targetDir,
		Database:   dbPath,
		DurationMS: duration.Milliseconds(),
		Files: lo.Map(results, func(r *pyexplain.Result, _ int) CLIIndexedFile {
			rel, err := filepath.Rel(targetDir, r.Path)
			if err != nil {
				rel = r.Path
			}
			return CLIIndexedFile{Path: rel, RunID: r.RunID, Cached: r.Cached, Count: len(r.Entries)}
		}),
	}
	errs := joinedErrors(explainErr)
	idx.Errors = lo.Map(errs, func(e error, _ int) string { return e.Error() })

	if flagFormat == "json" {
		if err := outputJSON(out, CLIResult{Command: "index", Results: idx}); err != nil {
			return err
		}
	} else {
		formatIndexText(out, idx)
	}

	// Print timing summary to stderr.
	cached := lo.CountBy(results, func(r *pyexplain.Result) bool { return r.Cached })
	total := lo.SumBy(results, func(r *pyexplain.Result) int { return len(r.Entries) })
	fmt.Fprintf(stderr, "Explained %s in %s: %s files (%s cached), %s explanations\n",
		targetDir,
		duration.Round(time.Millisecond),
		humanize.Comma(int64(len(results))),
		humanize.Comma(int64(cached)),
		humanize.Comma(int64(total)),
	)
	fmt.Fprintf(stderr, "Database: %s\n", dbPath)

	if len(errs) > 0 {
		return fmt.Errorf("%d file(s) failed, first: %w", len(errs), errs[0])
	}
	return nil
}

// joinedErrors flattens an errors.Join result into its parts.
func joinedErrors(err error) []error {
	if err == nil {
		return nil
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}
