package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jward/pyexplain"
	"github.com/jward/pyexplain/internal/config"
	"github.com/jward/pyexplain/scripts"
)

var (
	flagDB       string
	flagFormat   string
	flagConfig   string
	flagLogLevel string
)

// Loaded by the root PersistentPreRunE.
var (
	cfg    config.Config
	logger = zap.NewNop()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "pyexplain",
	Short:         "Plain-English explanations of Python source",
	Long:          "pyexplain parses Python with tree-sitter and describes every function definition, assignment, call, return, if-statement, and for-loop in one sentence each, keeping a SQLite history of runs.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		return setup()
	},
	// No Run; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "history database path (default: db_path from config, relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")

	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(elaborateCmd)
}

// setup loads the config, applies flag overrides, and builds the logger.
func setup() error {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	if flagLogLevel != "" {
		loaded.LogLevel = flagLogLevel
	}
	if flagDB != "" {
		loaded.DBPath = flagDB
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(cfg.Level())
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	logger = l
	return nil
}

// engineOptions returns the options shared by every command.
func engineOptions() []pyexplain.Option {
	return []pyexplain.Option{
		pyexplain.WithLogger(logger),
		pyexplain.WithWorkers(cfg.Workers),
	}
}

// scriptOption maps a --script value to an engine option. "builtin:<name>"
// selects an embedded hook; anything else is a path on disk.
func scriptOption(script string) (pyexplain.Option, error) {
	name, ok := strings.CutPrefix(script, "builtin:")
	if !ok {
		return pyexplain.WithScript(script), nil
	}
	path := "hooks/" + name + ".risor"
	if _, err := fs.Stat(scripts.FS, path); err != nil {
		return nil, fmt.Errorf("unknown builtin script %q", name)
	}
	return pyexplain.WithScriptFS(scripts.FS, path), nil
}

// readSource reads the file named by args, or in when args is empty or
// "-". Returns the label to explain the source under.
func readSource(args []string, in io.Reader) (string, []byte, error) {
	if len(args) == 0 || args[0] == "-" {
		src, err := io.ReadAll(in)
		if err != nil {
			return "", nil, fmt.Errorf("reading stdin: %w", err)
		}
		return pyexplain.StdinLabel, src, nil
	}
	abs, err := absPath(args[0])
	if err != nil {
		return "", nil, err
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", args[0], err)
	}
	return abs, src, nil
}

func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", p, err)
	}
	return abs, nil
}

// resolveTargetDir returns the absolute path of the directory to explain.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the configured database path, joined to repoRoot
// when relative.
func resolveDBPath(dbPath, repoRoot string) string {
	if filepath.IsAbs(dbPath) {
		return dbPath
	}
	return filepath.Join(repoRoot, dbPath)
}

// defaultDBPath resolves the database for commands that do not take a
// directory, against the repo root of the working directory.
func defaultDBPath() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return resolveDBPath(cfg.DBPath, findRepoRoot(wd)), nil
}
