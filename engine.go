package pyexplain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/jward/pyexplain/internal/explain"
	"github.com/jward/pyexplain/internal/runtime"
	"github.com/jward/pyexplain/internal/store"
	"github.com/jward/pyexplain/internal/syntax"
)

// explainerVersion is stored in the history metadata. Bump it whenever an
// explanation template or rendering rule changes so stale cached runs are
// discarded.
const explainerVersion = "1"

const versionKey = "explainer_version"

// ErrNoHistory is returned by history operations on an Engine created
// without a database.
var ErrNoHistory = errors.New("pyexplain: history disabled")

// Engine orchestrates the pyexplain pipeline: file discovery, change
// detection, explaining, optional script post-processing, and history.
type Engine struct {
	store   *store.Store // nil when history is disabled
	runtime *runtime.Runtime
	logger  *zap.Logger

	scriptPath string
	scriptFS   fs.FS

	// useParallel enables the parallel pipeline for ExplainFiles.
	useParallel bool
	// workers caps the worker pool; 0 means NumCPU.
	workers int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the Engine's logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithParallel controls parallel explaining. When true (default),
// ExplainFiles uses a worker pool for parsing and script execution, with
// a single writer committing batches to SQLite. Set to false for serial
// mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers caps the number of parallel workers. n <= 0 means one per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = max(n, 0)
	}
}

// WithScript post-processes every result with the Risor script at path.
// Imports inside the script resolve against the script's directory.
func WithScript(path string) Option {
	return func(e *Engine) {
		e.scriptPath = path
		e.scriptFS = nil
	}
}

// WithScriptFS is like WithScript but loads path, and its imports, from
// fsys. This enables embedding scripts via go:embed.
func WithScriptFS(fsys fs.FS, path string) Option {
	return func(e *Engine) {
		e.scriptPath = path
		e.scriptFS = fsys
	}
}

// New creates an Engine backed by a SQLite database at dbPath. An empty
// dbPath disables history: nothing is cached or recorded and History
// operations return ErrNoHistory.
func New(dbPath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:      zap.NewNop(),
		useParallel: true, // default to parallel explaining
	}
	for _, opt := range opts {
		opt(e)
	}

	if dbPath != "" {
		s, err := store.NewStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("pyexplain: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("pyexplain: migrate: %w", err)
		}
		e.store = s
		if err := e.checkVersion(); err != nil {
			s.Close()
			return nil, err
		}
	}

	// Build the Runtime with the appropriate script source.
	rtOpts := []runtime.RuntimeOption{runtime.WithLogger(e.logger)}
	if e.store != nil {
		rtOpts = append(rtOpts, runtime.WithStore(e.store))
	}
	scriptsDir := ""
	if e.scriptFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptFS))
	} else if e.scriptPath != "" {
		abs, err := filepath.Abs(e.scriptPath)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("pyexplain: script path: %w", err)
		}
		e.scriptPath = abs
		scriptsDir = filepath.Dir(abs)
	}
	e.runtime = runtime.NewRuntime(scriptsDir, rtOpts...)

	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Store returns the underlying Store for direct access, or nil when
// history is disabled.
func (e *Engine) Store() *Store {
	return e.store
}

// checkVersion discards the history when it was built by a different
// explainer version, then records the current one.
func (e *Engine) checkVersion() error {
	stored, err := e.store.GetMetadata(versionKey)
	if err != nil {
		return fmt.Errorf("pyexplain: %w", err)
	}
	if stored == explainerVersion {
		return nil
	}
	if stored != "" {
		e.logger.Info("explainer version changed, clearing history",
			zap.String("old", stored), zap.String("new", explainerVersion))
		if err := e.store.Reset(); err != nil {
			return fmt.Errorf("pyexplain: %w", err)
		}
	}
	if err := e.store.SetMetadata(versionKey, explainerVersion); err != nil {
		return fmt.Errorf("pyexplain: %w", err)
	}
	return nil
}

// Explain explains src under label and records a run. label is normally
// a file path; use StdinLabel (or "") for sources without one. When label
// was last explained with identical content the stored explanations are
// returned and no run is recorded.
func (e *Engine) Explain(ctx context.Context, label string, src []byte) (*Result, error) {
	if label == "" {
		label = StdinLabel
	}
	var w store.RunWriter
	if e.store != nil {
		w = e.store
	}
	res, err := e.explainSource(ctx, w, label, src)
	if err != nil {
		return nil, fmt.Errorf("pyexplain: %s: %w", label, err)
	}
	return res, nil
}

// ExplainFile reads path and explains it.
func (e *Engine) ExplainFile(ctx context.Context, path string) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pyexplain: read %s: %w", path, err)
	}
	return e.Explain(ctx, path, src)
}

// explainSource is the shared serial path: cache lookup, explain, record
// via w, and post-process. w may be nil to skip recording.
func (e *Engine) explainSource(ctx context.Context, w store.RunWriter, label string, src []byte) (*Result, error) {
	hash := store.ContentHash(src)

	if res, err := e.cached(label, hash); err != nil {
		return nil, err
	} else if res != nil {
		return e.finish(ctx, res, src)
	}

	res, err := e.fresh(ctx, label, hash, src)
	if err != nil {
		return nil, err
	}
	if w != nil {
		run := &store.Run{Label: label, Hash: hash}
		if err := w.RecordRun(fileRecord(label, hash, src), run, toStored(res.Entries)); err != nil {
			return nil, err
		}
		res.RunID = run.ID
	}
	return e.finish(ctx, res, src)
}

// cached returns the stored result for label when its file record and
// latest run both carry hash. Returns nil on a miss.
func (e *Engine) cached(label, hash string) (*Result, error) {
	if e.store == nil || label == StdinLabel {
		return nil, nil
	}
	f, err := e.store.FileByPath(label)
	if err != nil {
		return nil, err
	}
	if f == nil || f.Hash != hash {
		return nil, nil
	}
	run, err := e.store.LatestRunForPath(label)
	if err != nil {
		return nil, err
	}
	if run == nil || run.Hash != hash {
		return nil, nil
	}
	stored, err := e.store.ExplanationsByRun(run.ID)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("cache hit", zap.String("path", label), zap.String("hash", hash), zap.Int("count", len(stored)))
	return &Result{
		Path:    label,
		Hash:    hash,
		RunID:   run.ID,
		Entries: fromStored(stored),
		Cached:  true,
	}, nil
}

// fresh runs the explainer over src.
func (e *Engine) fresh(ctx context.Context, label, hash string, src []byte) (*Result, error) {
	log, err := explain.Explain(ctx, src)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("explained", zap.String("path", label), zap.String("hash", hash), zap.Int("count", log.Len()))
	return &Result{Path: label, Hash: hash, Entries: log.Entries()}, nil
}

// finish fills res.Lines, running the configured script if any.
func (e *Engine) finish(ctx context.Context, res *Result, src []byte) (*Result, error) {
	lines := lo.Map(res.Entries, func(en Entry, _ int) string { return en.Text })
	if e.scriptPath == "" {
		res.Lines = lines
		return res, nil
	}

	out, err := e.runtime.Apply(ctx, e.scriptPath, runtime.Input{
		Path:   res.Path,
		Source: src,
		Lines:  lines,
		Kinds:  lo.Map(res.Entries, func(en Entry, _ int) string { return en.Kind.String() }),
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	res.Lines = out
	return res, nil
}

// fileRecord builds the file row for label, or nil for stdin.
func fileRecord(label, hash string, src []byte) *store.File {
	if label == StdinLabel {
		return nil
	}
	return &store.File{
		Path:          label,
		Hash:          hash,
		LineCount:     store.LineCount(src),
		LastExplained: time.Now(),
	}
}

func toStored(entries []Entry) []store.Explanation {
	return lo.Map(entries, func(en Entry, _ int) store.Explanation {
		return store.Explanation{Kind: en.Kind.String(), Line: en.Line, Col: en.Column, Text: en.Text}
	})
}

func fromStored(exps []*store.Explanation) []Entry {
	return lo.Map(exps, func(x *store.Explanation, _ int) Entry {
		kind, _ := explain.ParseKind(x.Kind)
		return Entry{Kind: kind, Line: x.Line, Column: x.Col, Text: x.Text}
	})
}

// ExplainFiles explains the given file paths. When WithParallel is
// enabled, uses a worker pool with batched SQLite writes. Otherwise falls
// back to the serial path.
//
// Paths that are not Python files are skipped. Errors on individual files
// are collected; processing continues and the errors are returned joined.
// Results are in input order and omit failed files.
func (e *Engine) ExplainFiles(ctx context.Context, paths []string) ([]*Result, error) {
	paths = lo.Uniq(lo.Filter(paths, func(p string, _ int) bool { return syntax.IsPythonFile(p) }))
	if e.useParallel {
		return e.explainFilesParallel(ctx, paths)
	}
	return e.explainFilesSerial(ctx, paths)
}

func (e *Engine) explainFilesSerial(ctx context.Context, paths []string) ([]*Result, error) {
	var (
		results []*Result
		errs    []error
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := e.ExplainFile(ctx, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// skipDirs are directory names excluded from the filesystem walk.
var skipDirs = map[string]bool{
	"node_modules":  true,
	"__pycache__":   true,
	"venv":          true,
	"site-packages": true,
}

// ExplainDirectory walks root and explains every Python file.
// If root is inside a git repository, uses git ls-files to respect .gitignore.
// Falls back to filesystem walk (skipping hidden dirs, node_modules,
// __pycache__, venv, site-packages) if git is unavailable.
func (e *Engine) ExplainDirectory(ctx context.Context, root string) ([]*Result, error) {
	paths, err := PythonFiles(root)
	if err != nil {
		return nil, err
	}
	return e.ExplainFiles(ctx, paths)
}

// PythonFiles lists the Python files ExplainDirectory would explain.
func PythonFiles(root string) ([]string, error) {
	paths, err := gitListFiles(root)
	if err != nil {
		// Not a git repo or git not available, fall back to walk.
		return walkListFiles(root)
	}
	return paths, nil
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) Python files under root.
func gitListFiles(root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !syntax.IsPythonFile(line) {
			continue
		}
		paths = append(paths, filepath.Join(root, line))
	}
	return paths, nil
}

// walkListFiles discovers Python files by walking the filesystem.
func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if syntax.IsPythonFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pyexplain: walk directory: %w", err)
	}
	return paths, nil
}
