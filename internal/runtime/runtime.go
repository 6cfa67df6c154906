package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"go.uber.org/zap"

	"github.com/jward/pyexplain/internal/store"
)

// Runtime embeds a Risor VM and exposes explanations, tree-sitter host
// functions, and optional history access to post-processing scripts.
//
// A Runtime holds no per-script state, so one value may run scripts from
// several goroutines at once.
type Runtime struct {
	store      *store.Store // nil when history is disabled
	scriptsDir string
	fsys       fs.FS
	logger     *zap.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithStore exposes the history store to scripts through db_query,
// recent_runs, and kind_counts.
func WithStore(s *store.Store) RuntimeOption {
	return func(r *Runtime) {
		r.store = s
	}
}

// WithLogger sets the logger behind the script log global.
func WithLogger(l *zap.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime that resolves relative script paths and
// imports against scriptsDir.
func NewRuntime(scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		scriptsDir: scriptsDir,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Input is what a post-processing script sees about one explained source.
type Input struct {
	Path   string
	Source []byte
	Lines  []string
	Kinds  []string
}

// Apply runs the script at scriptPath over in and returns the lines the
// script passed to emit, in call order.
func (r *Runtime) Apply(ctx context.Context, scriptPath string, in Input) ([]string, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, src, scriptPath, inputGlobals(in))
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller. Returns the emitted lines.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) ([]string, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) ([]string, error) {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) ([]string, error) {
	sources := newSourceStore()
	defer sources.close()
	out := &emitter{}

	globals := r.buildGlobals(label, sources, out, extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return out.lines, nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on that filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		// "/hooks/upper.risor" -> "hooks/upper.risor"
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) && r.scriptsDir != "" {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// inputGlobals converts an Input into the explanations, kinds, source,
// and path globals.
func inputGlobals(in Input) map[string]any {
	return map[string]any{
		"explanations": stringList(in.Lines),
		"kinds":        stringList(in.Kinds),
		"source":       object.NewString(string(in.Source)),
		"path":         object.NewString(in.Path),
	}
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(label string, sources *sourceStore, out *emitter, extra map[string]any) map[string]any {
	globals := map[string]any{
		"emit":        makeEmitFn(out),
		"explain_src": makeExplainSrcFn(),
		"parse_src":   makeParseSrcFn(sources),
		"node_text":   makeNodeTextFn(sources),
		"node_child":  makeNodeChildFn(),
		"query":       makeQueryFn(sources),
		"log":         mustProxy(&logObject{logger: r.logger.With(zap.String("script", label))}),
	}

	// History access is only available when a store is configured.
	if r.store != nil {
		globals["db_query"] = makeDBQueryFn(r.store)
		globals["recent_runs"] = makeRecentRunsFn(r.store)
		globals["kind_counts"] = makeKindCountsFn(r.store)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func stringList(items []string) *object.List {
	objs := make([]object.Object, len(items))
	for i, s := range items {
		objs[i] = object.NewString(s)
	}
	return object.NewList(objs)
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
