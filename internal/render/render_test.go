package render

import (
	"context"
	"errors"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pyexplain/internal/syntax"
)

// parseExpr parses src as a single expression statement and returns the
// expression node.
func parseExpr(t *testing.T, src string) (*sitter.Node, []byte) {
	t.Helper()
	tree, err := syntax.Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	stmt := tree.Root().NamedChild(0)
	require.NotNil(t, stmt)
	require.Equal(t, "expression_statement", stmt.Type())
	return stmt.NamedChild(0), tree.Source()
}

func TestExpr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want string
	}{
		// Names and constants
		{"x", "x"},
		{"True", "True"},
		{"None", "None"},
		{"...", "..."},
		{"42", "42"},
		{"0x10", "16"},
		{"1_000", "1000"},
		{"0b101", "5"},
		{"1.50", "1.5"},
		{"1e3", "1000.0"},
		{"1e20", "1e+20"},
		{"2j", "2j"},

		// Strings
		{`"hi"`, "'hi'"},
		{`'it\'s'`, `"it's"`},
		{`"a" "b"`, "'ab'"},
		{`b"raw"`, "b'raw'"},
		{`r"\d+"`, `'\\d+'`},
		{`"tab\there"`, `'tab\there'`},
		{`f"{x}!"`, `f"{x}!"`},

		// Parentheses are canonicalized
		{"(x)", "x"},
		{"((a + b))", "a + b"},
		{"(a + b) * c", "(a + b) * c"},
		{"a + (b * c)", "a + b * c"},
		{"a - (b - c)", "a - (b - c)"},
		{"(a - b) - c", "a - b - c"},
		{"a ** b ** c", "a ** b ** c"},
		{"(a ** b) ** c", "(a ** b) ** c"},
		{"-x ** 2", "-x ** 2"},
		{"(-x) ** 2", "(-x) ** 2"},
		{"b & c ^ d", "b & c ^ d"},
		{"a ^ b & c", "a ^ b & c"},
		{"a | b & c ^ d", "a | b & c ^ d"},
		{"a & b | c ^ d & e", "a & b | c ^ d & e"},
		{"(a ^ b) & c", "(a ^ b) & c"},
		{"a & (b ^ c)", "a & (b ^ c)"},
		{"a | b ^ c & d << e", "a | b ^ c & d << e"},
		{"not a and b", "not a and b"},
		{"a or b and c", "a or (b and c)"},
		{"a or b or c and d", "a or b or (c and d)"},
		{"a and not b", "a and (not b)"},
		{"a and b and x < y", "a and b and (x < y)"},
		{"(a or b) and c", "(a or b) and c"},
		{"a and b and c", "a and b and c"},
		{"x > 0", "x > 0"},
		{"a < b <= c", "a < b <= c"},
		{"a not in b", "a not in b"},
		{"a is not None", "a is not None"},
		{"a if b else c", "a if b else c"},
		{"(x := f(y))", "(x := f(y))"},

		// Calls, attributes, subscripts
		{"foo.bar(1, 2)", "foo.bar(1, 2)"},
		{"f(a=1, *b)", "f(*b, a=1)"},
		{"f(**kw)", "f(**kw)"},
		{"f(x for x in y)", "f((x for x in y))"},
		{"(a + b).c", "(a + b).c"},
		{"a[0]", "a[0]"},
		{"a[1:3]", "a[1:3]"},
		{"a[::2]", "a[::2]"},
		{"a[:]", "a[:]"},
		{"a[1, 2]", "a[1, 2]"},

		// Collections
		{"(x, y)", "(x, y)"},
		{"(x,)", "(x,)"},
		{"()", "()"},
		{"[1, 2]", "[1, 2]"},
		{"{1, 2}", "{1, 2}"},
		{"{'a': 1, **rest}", "{'a': 1, **rest}"},
		{"{}", "{}"},
		{"[x * 2 for x in xs if x]", "[x * 2 for x in xs if x]"},
		{"{k: v for k, v in items}", "{k: v for k, v in items}"},
		{"[(a, b)]", "[(a, b)]"},

		// Lambdas
		{"lambda: 0", "lambda: 0"},
		{"lambda x, y=2: x + y", "lambda x, y=2: x + y"},
		{"lambda *args, **kw: args", "lambda *args, **kw: args"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()
			n, src := parseExpr(t, tt.src)
			got, err := Expr(n, src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpr_Unrenderable(t *testing.T) {
	t.Parallel()
	n, src := parseExpr(t, `"\N{BULLET}"`)
	_, err := Expr(n, src)
	require.Error(t, err)

	var uerr *UnrenderableError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, "string", uerr.Type)
	assert.Equal(t, 1, uerr.Line)
	assert.Equal(t, 1, uerr.Column)
}

func TestCallArgs(t *testing.T) {
	t.Parallel()
	n, _ := parseExpr(t, "f(a, k=1, *b, **c)")
	positional, keyword := CallArgs(n)
	require.Len(t, positional, 2)
	require.Len(t, keyword, 2)
	assert.Equal(t, "identifier", positional[0].Type())
	assert.Equal(t, "list_splat", positional[1].Type())
	assert.Equal(t, "keyword_argument", keyword[0].Type())
	assert.Equal(t, "dictionary_splat", keyword[1].Type())
}

func TestUnparen(t *testing.T) {
	t.Parallel()
	n, _ := parseExpr(t, "((x))")
	assert.Equal(t, "identifier", Unparen(n).Type())
}
