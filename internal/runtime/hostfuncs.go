package runtime

import (
	"context"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/jward/pyexplain/internal/explain"
	"github.com/jward/pyexplain/internal/syntax"
)

// sourceStore tracks the trees parsed during one script run.
// node_text and query need to recover source from a Node, but
// smacker/go-tree-sitter doesn't expose Node.Tree(). Trees are keyed by
// root node pointer (obtained via Root() at parse time and by walking up
// Parent() at lookup time).
type sourceStore struct {
	mu    sync.RWMutex
	trees map[uintptr]*syntax.Tree
}

func newSourceStore() *sourceStore {
	return &sourceStore{trees: make(map[uintptr]*syntax.Tree)}
}

func (s *sourceStore) store(tree *syntax.Tree) {
	key := uintptr(unsafe.Pointer(tree.Root()))
	s.mu.Lock()
	s.trees[key] = tree
	s.mu.Unlock()
}

// close releases every tree parsed during the run.
func (s *sourceStore) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, tree := range s.trees {
		tree.Close()
		delete(s.trees, key)
	}
}

// rootOf walks a node up to its root via Parent().
func rootOf(node *sitter.Node) *sitter.Node {
	for node.Parent() != nil {
		node = node.Parent()
	}
	return node
}

func (s *sourceStore) treeForNode(node *sitter.Node) (*syntax.Tree, bool) {
	key := uintptr(unsafe.Pointer(rootOf(node)))
	s.mu.RLock()
	tree, ok := s.trees[key]
	s.mu.RUnlock()
	return tree, ok
}

// emitter collects the lines a script passes to emit.
type emitter struct {
	mu    sync.Mutex
	lines []string
}

func (e *emitter) add(line string) {
	e.mu.Lock()
	e.lines = append(e.lines, line)
	e.mu.Unlock()
}

// makeEmitFn creates the "emit" host function. Non-string arguments are
// converted with their Risor display form.
//
// emit(line) → nil
func makeEmitFn(out *emitter) *object.Builtin {
	return object.NewBuiltin("emit", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("emit", 1, len(args))
		}
		if s, ok := args[0].(*object.String); ok {
			out.add(s.Value())
		} else {
			out.add(args[0].Inspect())
		}
		return object.Nil
	})
}

// makeExplainSrcFn creates "explain_src", which runs the explainer over
// a Python source string.
//
// explain_src(source) → []string
func makeExplainSrcFn() *object.Builtin {
	return object.NewBuiltin("explain_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("explain_src", 1, len(args))
		}
		srcStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("explain_src: source must be a string, got %s", args[0].Type())
		}
		log, err := explain.Explain(ctx, []byte(srcStr.Value()))
		if err != nil {
			return object.Errorf("explain_src: %v", err)
		}
		return stringList(log.Lines())
	})
}

// makeParseSrcFn creates "parse_src", which parses Python source and
// returns the module node.
//
// parse_src(source) → Node
func makeParseSrcFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse_src", 1, len(args))
		}

		srcStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("parse_src: source must be a string, got %s", args[0].Type())
		}

		tree, err := syntax.Parse(ctx, []byte(srcStr.Value()))
		if err != nil {
			return object.Errorf("parse_src: %v", err)
		}
		ss.store(tree)

		proxy, err := object.NewProxy(tree.Root())
		if err != nil {
			return object.Errorf("parse_src: proxy error: %v", err)
		}
		return proxy
	})
}

func nodeArg(name string, arg object.Object) (*sitter.Node, *object.Error) {
	proxy, ok := arg.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected proxy (Node), got %s", name, arg.Type())
	}
	node, ok := proxy.Interface().(*sitter.Node)
	if !ok {
		return nil, object.Errorf("%s: expected *sitter.Node, got %T", name, proxy.Interface())
	}
	return node, nil
}

// makeNodeTextFn creates the "node_text" host function.
//
// node_text(node) → string
//
// Exists because Risor's proxy system cannot convert strings to []byte
// for node.Content([]byte).
func makeNodeTextFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		tree, found := ss.treeForNode(node)
		if !found {
			return object.Errorf("node_text: no source found for node's tree")
		}
		return object.NewString(tree.Text(node))
	})
}

// makeQueryFn creates the "query" host function.
//
// query(pattern, node) → []map[string]Node
//
// Each map has capture names as keys and proxied Nodes as values.
func makeQueryFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}

		patternStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("query: pattern must be a string, got %s", args[0].Type())
		}
		node, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		tree, found := ss.treeForNode(node)
		if !found {
			return object.Errorf("query: no source found for node's tree")
		}

		q, err := sitter.NewQuery([]byte(patternStr.Value()), syntax.Language())
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, node)

		results := []object.Object{}
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, tree.Source())

			matchMap := make(map[string]object.Object)
			for _, capture := range match.Captures {
				name := q.CaptureNameForId(capture.Index)
				nodeP, err := object.NewProxy(capture.Node)
				if err != nil {
					return object.Errorf("query: proxy error for capture %q: %v", name, err)
				}
				matchMap[name] = nodeP
			}
			results = append(results, object.NewMap(matchMap))
		}
		return object.NewList(results)
	})
}

// makeNodeChildFn creates "node_child", a safe wrapper for ChildByFieldName
// that returns Risor nil instead of a proxied Go nil pointer.
//
// node_child(node, fieldName) → Node or nil
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		fieldStr, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("node_child: field must be a string, got %s", args[1].Type())
		}

		child := node.ChildByFieldName(fieldStr.Value())
		if child == nil {
			return object.Nil
		}
		p, err := object.NewProxy(child)
		if err != nil {
			return object.Errorf("node_child: proxy error: %v", err)
		}
		return p
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *zap.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
