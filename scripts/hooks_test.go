package scripts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pyexplain/internal/runtime"
	"github.com/jward/pyexplain/scripts"
)

func applyHook(t *testing.T, name string, in runtime.Input) []string {
	t.Helper()
	rt := runtime.NewRuntime("", runtime.WithRuntimeFS(scripts.FS))
	out, err := rt.Apply(context.Background(), "hooks/"+name+".risor", in)
	require.NoError(t, err)
	return out
}

var sample = runtime.Input{
	Path:  "demo.py",
	Lines: []string{"Assigns 5 to x.", "Calls the function 'print' with arguments ['x']."},
	Kinds: []string{"assign", "call"},
}

func TestNumbered(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{
		"1. Assigns 5 to x.",
		"2. Calls the function 'print' with arguments ['x'].",
	}, applyHook(t, "numbered", sample))
}

func TestMarkdown(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{
		"## demo.py",
		"",
		"- Assigns 5 to x.",
		"- Calls the function 'print' with arguments ['x'].",
	}, applyHook(t, "markdown", sample))

	assert.Equal(t, []string{"## empty.py", "", "_Nothing to explain._"},
		applyHook(t, "markdown", runtime.Input{Path: "empty.py"}))
}

func TestCalls(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"Calls the function 'print' with arguments ['x']."}, applyHook(t, "calls", sample))
}

func TestEmbeddedHooksPresent(t *testing.T) {
	t.Parallel()
	entries, err := scripts.FS.ReadDir("hooks")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"calls.risor", "markdown.risor", "numbered.risor"}, names)
}
