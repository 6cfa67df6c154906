// Package explain walks a parsed Python module and describes each function
// definition, assignment, call, return, if-statement, and for-loop in one
// English sentence, in pre-order.
package explain

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/pyexplain/internal/render"
	"github.com/jward/pyexplain/internal/syntax"
)

// NoneLiteral is rendered for a return statement without a value.
const NoneLiteral = "None"

// Entry is one explanation together with the construct it describes.
// Line and Column are 1-based and locate the construct's first token.
type Entry struct {
	Kind   Kind
	Line   int
	Column int
	Text   string
}

// Log is the ordered result of one walk. Entries are only ever appended.
type Log struct {
	entries []Entry
}

func (l *Log) add(kind Kind, n *sitter.Node, text string) {
	p := n.StartPoint()
	l.entries = append(l.entries, Entry{
		Kind:   kind,
		Line:   int(p.Row) + 1,
		Column: int(p.Column) + 1,
		Text:   text,
	})
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the entries in traversal order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Lines returns the explanation strings in traversal order.
func (l *Log) Lines() []string {
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Text
	}
	return out
}

// Explain parses src and explains it. A *syntax.ParseError or
// *render.UnrenderableError fails the whole call; no partial log is
// returned.
func Explain(ctx context.Context, src []byte) (*Log, error) {
	tree, err := syntax.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return Tree(tree)
}

// Tree explains an already parsed module.
func Tree(tree *syntax.Tree) (*Log, error) {
	log := &Log{}
	if err := walk(tree.Root(), tree.Source(), log); err != nil {
		return nil, err
	}
	return log, nil
}

// walk appends an entry for n if it is a recognized construct, then visits
// n's children in source order.
func walk(n *sitter.Node, src []byte, log *Log) error {
	kind := classify(n)
	if kind != KindNone {
		text, err := describe(kind, n, src)
		if err != nil {
			return err
		}
		log.add(kind, n, text)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		if err := walk(c, src, log); err != nil {
			return err
		}
	}
	return nil
}

func describe(kind Kind, n *sitter.Node, src []byte) (string, error) {
	switch kind {
	case KindFunctionDef:
		name := n.ChildByFieldName("name").Content(src)
		params := positionalParams(n.ChildByFieldName("parameters"), src)
		return fmt.Sprintf("Defines a function '%s' with parameters %s.", name, render.List(params)), nil

	case KindAssign:
		targets, value, err := assignment(n, src)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Assigns %s to %s.", value, strings.Join(targets, ", ")), nil

	case KindCall:
		fn, err := render.Expr(n.ChildByFieldName("function"), src)
		if err != nil {
			return "", err
		}
		positional, _ := render.CallArgs(n)
		args := make([]string, 0, len(positional))
		for _, a := range positional {
			s, err := render.Expr(a, src)
			if err != nil {
				return "", err
			}
			args = append(args, s)
		}
		return fmt.Sprintf("Calls the function '%s' with arguments %s.", fn, render.List(args)), nil

	case KindReturn:
		value := NoneLiteral
		if v := firstNamed(n); v != nil {
			s, err := render.Expr(v, src)
			if err != nil {
				return "", err
			}
			value = s
		}
		return fmt.Sprintf("Returns %s from the function.", value), nil

	case KindIf:
		test, err := render.Expr(n.ChildByFieldName("condition"), src)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("If statement checking condition: %s.", test), nil

	case KindFor:
		target, err := render.Expr(n.ChildByFieldName("left"), src)
		if err != nil {
			return "", err
		}
		iter, err := render.Expr(n.ChildByFieldName("right"), src)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("For loop iterating over %s with variable '%s'.", iter, target), nil
	}
	return "", fmt.Errorf("explain: no description for kind %s", kind)
}

// positionalParams returns the names of positional-or-keyword parameters.
// Names before a `/` are positional-only and names after `*` or `*args`
// are keyword-only; neither is included.
func positionalParams(params *sitter.Node, src []byte) []string {
	names := []string{}
	if params == nil {
		return names
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "identifier":
			names = append(names, p.Content(src))
		case "default_parameter", "typed_default_parameter":
			if name := p.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
				names = append(names, name.Content(src))
			}
		case "typed_parameter":
			// The annotated element may itself be *args or **kwargs.
			inner := firstNamed(p)
			if inner == nil {
				continue
			}
			switch inner.Type() {
			case "identifier":
				names = append(names, inner.Content(src))
			case "list_splat_pattern", "dictionary_splat_pattern":
				return names
			}
		case "positional_separator":
			names = names[:0]
		case "keyword_separator", "list_splat_pattern", "dictionary_splat_pattern":
			return names
		}
	}
	return names
}

// assignment flattens a chained assignment `a = b = v` into its targets
// and final value.
func assignment(n *sitter.Node, src []byte) ([]string, string, error) {
	var targets []string
	cur := n
	for {
		t, err := render.Expr(cur.ChildByFieldName("left"), src)
		if err != nil {
			return nil, "", err
		}
		targets = append(targets, t)

		right := cur.ChildByFieldName("right")
		if right.Type() == "assignment" && right.ChildByFieldName("right") != nil {
			cur = right
			continue
		}
		value, err := render.Expr(right, src)
		if err != nil {
			return nil, "", err
		}
		return targets, value, nil
	}
}

func firstNamed(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() != "comment" {
			return c
		}
	}
	return nil
}
