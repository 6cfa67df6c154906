// Package syntax parses Python source with tree-sitter and turns the
// parser's error-tolerant output into a strict parse-or-fail result.
package syntax

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// extensions lists the file extensions treated as Python source.
var extensions = map[string]bool{
	".py":  true,
	".pyi": true,
}

var (
	grammar     *sitter.Language
	grammarOnce sync.Once
)

// Language returns the tree-sitter Python grammar.
// Lazily initialized on first call via sync.Once.
func Language() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = python.GetLanguage()
	})
	return grammar
}

// IsPythonFile reports whether path has a Python source extension.
func IsPythonFile(path string) bool {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// ParseError reports source text that is not valid Python. Line and Column
// are 1-based.
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s (line %d, column %d)", e.Msg, e.Line, e.Column)
}

// Tree is a parsed module together with the source bytes it came from.
// smacker/go-tree-sitter doesn't let a Node recover its source, so the
// bytes travel with the tree.
type Tree struct {
	tree *sitter.Tree
	src  []byte
}

// Root returns the module node.
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// Source returns the bytes the tree was parsed from.
func (t *Tree) Source() []byte {
	return t.src
}

// Text returns the source slice covered by n.
func (t *Tree) Text(n *sitter.Node) string {
	return n.Content(t.src)
}

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() {
	t.tree.Close()
}

// Parse parses src as a Python module. Each call allocates its own parser,
// so Parse is safe to call from multiple goroutines.
//
// tree-sitter always produces a tree and accepts some programs CPython
// rejects. Any ERROR or MISSING node, a Python 2 print/exec statement, or a
// construct CPython refuses (misordered arguments or parameters, a keyword
// used as a name, a bare `:=` statement) is reported as a *ParseError and
// no tree is returned.
func Parse(ctx context.Context, src []byte) (*Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(Language())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("syntax: tree-sitter parse failed: %w", err)
	}

	if perr := findError(tree.RootNode(), src); perr != nil {
		tree.Close()
		return nil, perr
	}
	return &Tree{tree: tree, src: src}, nil
}

// legacyStatements maps Python 2 statement nodes the grammar still accepts
// to the diagnostic CPython gives for them.
var legacyStatements = map[string]string{
	"print_statement": "Missing parentheses in call to 'print'",
	"exec_statement":  "Missing parentheses in call to 'exec'",
}

// hardKeywords can never be used as names. The grammar lexes them as
// identifiers wherever the keyword itself is not valid.
var hardKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true, "elif": true,
	"else": true, "except": true, "finally": true, "for": true,
	"from": true, "global": true, "if": true, "import": true, "in": true,
	"is": true, "lambda": true, "nonlocal": true, "not": true, "or": true,
	"pass": true, "raise": true, "return": true, "try": true,
	"while": true, "with": true, "yield": true,
}

// findError returns the first syntax problem in pre-order, or nil.
func findError(n *sitter.Node, src []byte) *ParseError {
	switch {
	case n.IsMissing():
		return errorAt(n, fmt.Sprintf("expected '%s'", n.Type()))
	case n.Type() == "ERROR":
		return errorAt(n, "invalid syntax")
	}
	if msg, ok := legacyStatements[n.Type()]; ok {
		return errorAt(n, msg)
	}
	if perr := checkNode(n, src); perr != nil {
		return perr
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if perr := findError(n.Child(i), src); perr != nil {
			return perr
		}
	}
	return nil
}

// checkNode applies the rules CPython enforces that the grammar does not.
func checkNode(n *sitter.Node, src []byte) *ParseError {
	switch n.Type() {
	case "identifier", "keyword_identifier":
		if hardKeywords[n.Content(src)] {
			return errorAt(n, "invalid syntax")
		}
	case "argument_list":
		return checkArguments(n, src)
	case "parameters", "lambda_parameters":
		return checkParameters(n)
	case "for_in_clause":
		return checkForIn(n)
	case "if_clause":
		for _, c := range namedChildren(n) {
			if !isDisjunction(c) {
				return errorAt(c, "invalid syntax")
			}
		}
	case "expression_statement":
		return checkWalrus(n)
	case "assignment", "augmented_assignment":
		if right := n.ChildByFieldName("right"); right != nil {
			return checkWalrus(right)
		}
	}
	return nil
}

func checkArguments(n *sitter.Node, src []byte) *ParseError {
	var (
		seenKeyword bool
		seenMapping bool
		names       = map[string]bool{}
	)
	for _, a := range namedChildren(n) {
		switch a.Type() {
		case "keyword_argument":
			var name string
			if nn := a.ChildByFieldName("name"); nn != nil {
				name = nn.Content(src)
			}
			if name != "" && names[name] {
				return errorAt(a, "keyword argument repeated: "+name)
			}
			names[name] = true
			seenKeyword = true
		case "dictionary_splat":
			seenMapping = true
		case "list_splat":
			if seenMapping {
				return errorAt(a, "iterable argument unpacking follows keyword argument unpacking")
			}
		default:
			switch {
			case seenMapping:
				return errorAt(a, "positional argument follows keyword argument unpacking")
			case seenKeyword:
				return errorAt(a, "positional argument follows keyword argument")
			}
		}
	}
	return nil
}

// paramKind classifies a parameter node, looking through type annotations.
func paramKind(p *sitter.Node) string {
	if p.Type() == "typed_parameter" {
		if kids := namedChildren(p); len(kids) > 0 {
			switch kids[0].Type() {
			case "list_splat_pattern", "dictionary_splat_pattern":
				return kids[0].Type()
			}
		}
		return "identifier"
	}
	if p.Type() == "typed_default_parameter" {
		return "default_parameter"
	}
	return p.Type()
}

func checkParameters(n *sitter.Node) *ParseError {
	var (
		seenDefault bool
		seenSlash   bool
		seenMapping bool
		star        *sitter.Node
		bareStar    *sitter.Node
	)
	for _, p := range namedChildren(n) {
		kind := paramKind(p)
		if seenMapping {
			return errorAt(p, "arguments cannot follow var-keyword argument")
		}
		switch kind {
		case "positional_separator":
			switch {
			case star != nil:
				return errorAt(p, "/ must be ahead of *")
			case seenSlash:
				return errorAt(p, "/ may appear only once")
			}
			seenSlash = true
		case "keyword_separator", "list_splat_pattern":
			if star != nil {
				return errorAt(p, "* argument may appear only once")
			}
			star = p
			if kind == "keyword_separator" {
				bareStar = p
			}
		case "dictionary_splat_pattern":
			if bareStar != nil {
				return errorAt(bareStar, "named arguments must follow bare *")
			}
			seenMapping = true
		case "default_parameter":
			seenDefault = true
			bareStar = nil
		default:
			if seenDefault && star == nil {
				return errorAt(p, "non-default argument follows default argument")
			}
			bareStar = nil
		}
	}
	if bareStar != nil {
		return errorAt(bareStar, "named arguments must follow bare *")
	}
	return nil
}

// checkForIn rejects a comprehension iterable that is not a single
// disjunction, such as `for x in a, b` or `for x in lambda: y`.
func checkForIn(n *sitter.Node) *ParseError {
	afterIn := false
	count := 0
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() {
			switch {
			case c.Type() == "in":
				afterIn = true
			case afterIn && c.Type() == ",":
				return forInListError(n, c)
			}
			continue
		}
		if !afterIn || c.Type() == "comment" {
			continue
		}
		if count++; count > 1 {
			return forInListError(n, c)
		}
		if !isDisjunction(c) {
			return errorAt(c, "invalid syntax")
		}
	}
	return nil
}

// forInListError reports a comma in a comprehension iterable. Inside a
// call's bare generator argument the comma separates further arguments.
func forInListError(clause, at *sitter.Node) *ParseError {
	gen := clause.Parent()
	if gen != nil && gen.Type() == "generator_expression" {
		if call := gen.Parent(); call != nil && call.Type() == "call" {
			if args := call.ChildByFieldName("arguments"); args != nil && args.StartByte() == gen.StartByte() {
				return errorAt(gen, "Generator expression must be parenthesized")
			}
		}
	}
	return errorAt(at, "invalid syntax")
}

// isDisjunction reports whether n can stand where CPython expects an
// `or` expression without parentheses.
func isDisjunction(n *sitter.Node) bool {
	switch n.Type() {
	case "lambda", "named_expression", "conditional_expression":
		return false
	}
	return true
}

// checkWalrus rejects an unparenthesized `:=` at statement level or as an
// assigned value.
func checkWalrus(n *sitter.Node) *ParseError {
	targets := []*sitter.Node{n}
	switch n.Type() {
	case "expression_statement", "expression_list":
		targets = namedChildren(n)
	}
	for _, c := range targets {
		if c.Type() != "named_expression" {
			continue
		}
		at := c
		for i := 0; i < int(c.ChildCount()); i++ {
			if tok := c.Child(i); tok.Type() == ":=" {
				at = tok
				break
			}
		}
		return errorAt(at, "invalid syntax")
	}
	return nil
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() != "comment" {
			out = append(out, c)
		}
	}
	return out
}

func errorAt(n *sitter.Node, msg string) *ParseError {
	p := n.StartPoint()
	return &ParseError{
		Line:   int(p.Row) + 1,
		Column: int(p.Column) + 1,
		Msg:    msg,
	}
}
