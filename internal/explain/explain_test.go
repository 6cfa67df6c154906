package explain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pyexplain/internal/syntax"
)

func lines(t *testing.T, src string) []string {
	t.Helper()
	log, err := Explain(context.Background(), []byte(src))
	require.NoError(t, err)
	return log.Lines()
}

func TestExplain_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "function with return",
			src:  "def add(a, b):\n    return a + b\n",
			want: []string{
				"Defines a function 'add' with parameters ['a', 'b'].",
				"Returns a + b from the function.",
			},
		},
		{
			name: "simple assignment",
			src:  "x = 5",
			want: []string{"Assigns 5 to x."},
		},
		{
			name: "call",
			src:  "print(x)",
			want: []string{"Calls the function 'print' with arguments ['x']."},
		},
		{
			name: "if with nested call",
			src:  "if x > 0:\n    print(x)\n",
			want: []string{
				"If statement checking condition: x > 0.",
				"Calls the function 'print' with arguments ['x'].",
			},
		},
		{
			// range(5) is itself a call and gets its own entry between the
			// loop and the body.
			name: "for loop",
			src:  "for i in range(5):\n    print(i)\n",
			want: []string{
				"For loop iterating over range(5) with variable 'i'.",
				"Calls the function 'range' with arguments ['5'].",
				"Calls the function 'print' with arguments ['i'].",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, lines(t, tt.src))
		})
	}
}

func TestExplain_EdgeCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "zero params and bare return",
			src:  "def f():\n    return\n",
			want: []string{
				"Defines a function 'f' with parameters [].",
				"Returns None from the function.",
			},
		},
		{
			name: "chained assignment",
			src:  "a = b = 1",
			want: []string{"Assigns 1 to a, b."},
		},
		{
			name: "call in if test",
			src:  "if foo():\n    pass\n",
			want: []string{
				"If statement checking condition: foo().",
				"Calls the function 'foo' with arguments [].",
			},
		},
		{
			name: "nested calls explained independently",
			src:  "foo(bar(1))",
			want: []string{
				"Calls the function 'foo' with arguments ['bar(1)'].",
				"Calls the function 'bar' with arguments ['1'].",
			},
		},
		{
			name: "call inside assignment value",
			src:  "n = len(items)",
			want: []string{
				"Assigns len(items) to n.",
				"Calls the function 'len' with arguments ['items'].",
			},
		},
		{
			name: "while loop recurses",
			src:  "while True:\n    x = 1\n",
			want: []string{"Assigns 1 to x."},
		},
		{
			name: "class body recurses",
			src:  "class A:\n    def m(self):\n        pass\n",
			want: []string{"Defines a function 'm' with parameters ['self']."},
		},
		{
			name: "string argument repr",
			src:  `print("hi")`,
			want: []string{`Calls the function 'print' with arguments ["'hi'"].`},
		},
		{
			name: "attribute callee and keyword args",
			src:  "obj.method(1, key=2)",
			want: []string{"Calls the function 'obj.method' with arguments ['1']."},
		},
		{
			name: "starred arguments",
			src:  "print(*args, **kwargs)",
			want: []string{"Calls the function 'print' with arguments ['*args']."},
		},
		{
			name: "tuple loop target",
			src:  "for x, y in pairs:\n    pass\n",
			want: []string{"For loop iterating over pairs with variable '(x, y)'."},
		},
		{
			name: "parameter kinds",
			src:  "def f(a, b=1, *args, c, **kw):\n    pass\n",
			want: []string{"Defines a function 'f' with parameters ['a', 'b']."},
		},
		{
			name: "positional-only parameters excluded",
			src:  "def f(a, /, b):\n    pass\n",
			want: []string{"Defines a function 'f' with parameters ['b']."},
		},
		{
			name: "annotated parameters",
			src:  "def f(x: int, y: str = 's') -> None:\n    pass\n",
			want: []string{"Defines a function 'f' with parameters ['x', 'y']."},
		},
		{
			name: "async def not a function definition",
			src:  "async def f():\n    return 1\n",
			want: []string{"Returns 1 from the function."},
		},
		{
			name: "annotated and augmented assignment",
			src:  "x: int = 5\nx += 1\n",
			want: []string{},
		},
		{
			name: "elif is a nested if",
			src:  "if a:\n    pass\nelif b:\n    pass\nelse:\n    pass\n",
			want: []string{
				"If statement checking condition: a.",
				"If statement checking condition: b.",
			},
		},
		{
			name: "tuple return",
			src:  "def f():\n    return a, b\n",
			want: []string{
				"Defines a function 'f' with parameters [].",
				"Returns (a, b) from the function.",
			},
		},
		{
			name: "swap",
			src:  "a, b = b, a",
			want: []string{"Assigns (b, a) to (a, b)."},
		},
		{
			name: "comments ignored",
			src:  "# header\nx = 1  # trailing\n",
			want: []string{"Assigns 1 to x."},
		},
		{
			name: "decorator call precedes definition",
			src:  "@app.route('/')\ndef index():\n    return 'ok'\n",
			want: []string{
				"Calls the function 'app.route' with arguments [\"'/'\"].",
				"Defines a function 'index' with parameters [].",
				"Returns 'ok' from the function.",
			},
		},
		{
			name: "conditional operands in source order",
			src:  "x = f() if g() else h()",
			want: []string{
				"Assigns f() if g() else h() to x.",
				"Calls the function 'f' with arguments [].",
				"Calls the function 'g' with arguments [].",
				"Calls the function 'h' with arguments [].",
			},
		},
		{
			name: "keyword argument before starred in source order",
			src:  "f(x=g(), *h())",
			want: []string{
				"Calls the function 'f' with arguments ['*h()'].",
				"Calls the function 'g' with arguments [].",
				"Calls the function 'h' with arguments [].",
			},
		},
		{
			name: "generator argument",
			src:  "total = sum(x for x in xs)",
			want: []string{
				"Assigns sum((x for x in xs)) to total.",
				"Calls the function 'sum' with arguments ['(x for x in xs)'].",
			},
		},
		{
			name: "empty source",
			src:  "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, lines(t, tt.src))
		})
	}
}

func TestExplain_UnrecognizedProducesNothing(t *testing.T) {
	t.Parallel()
	src := "import os\nfrom sys import path\nclass Empty:\n    pass\nwhile x:\n    break\n"
	assert.Empty(t, lines(t, src))
}

func TestExplain_ParseError(t *testing.T) {
	t.Parallel()
	log, err := Explain(context.Background(), []byte("print((x)\nx = 1\n"))
	require.Error(t, err)
	assert.Nil(t, log)

	var perr *syntax.ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestExplain_Deterministic(t *testing.T) {
	t.Parallel()
	src := "def f(a):\n    for i in a:\n        if i:\n            g(i)\n    return a\n"
	first := lines(t, src)
	second := lines(t, src)
	assert.Equal(t, first, second)
}

func TestExplain_PreOrderAcrossNesting(t *testing.T) {
	t.Parallel()
	src := strings.Join([]string{
		"def outer(x):",
		"    def inner(y):",
		"        return y",
		"    for i in x:",
		"        if i:",
		"            z = inner(i)",
		"    return z",
	}, "\n")

	log, err := Explain(context.Background(), []byte(src))
	require.NoError(t, err)

	kinds := make([]Kind, 0, log.Len())
	for _, e := range log.Entries() {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []Kind{
		KindFunctionDef, KindFunctionDef, KindReturn,
		KindFor, KindIf, KindAssign, KindCall, KindReturn,
	}, kinds)

	// Entries follow source position.
	entries := log.Entries()
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		assert.True(t, prev.Line < cur.Line || (prev.Line == cur.Line && prev.Column <= cur.Column),
			"entry %d (%d:%d) before entry %d (%d:%d)", i-1, prev.Line, prev.Column, i, cur.Line, cur.Column)
	}
}

func TestExplain_EntryPositions(t *testing.T) {
	t.Parallel()
	log, err := Explain(context.Background(), []byte("x = 1\nif x:\n    f(x)\n"))
	require.NoError(t, err)

	entries := log.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, Entry{Kind: KindAssign, Line: 1, Column: 1, Text: "Assigns 1 to x."}, entries[0])
	assert.Equal(t, 2, entries[1].Line)
	assert.Equal(t, KindCall, entries[2].Kind)
	assert.Equal(t, 3, entries[2].Line)
	assert.Equal(t, 5, entries[2].Column)
}

func TestKind_StringRoundTrip(t *testing.T) {
	t.Parallel()
	for _, k := range []Kind{KindNone, KindFunctionDef, KindAssign, KindCall, KindReturn, KindIf, KindFor} {
		got, ok := ParseKind(k.String())
		require.True(t, ok, k.String())
		assert.Equal(t, k, got)
	}
	_, ok := ParseKind("while")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Kind(99).String())
}
