package pyexplain

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden test format.
type goldenFile struct {
	Explanations []goldenExplanation `json:"explanations"`
	// Error names the expected failure: "parse" or "unrenderable".
	Error string `json:"error,omitempty"`
}

type goldenExplanation struct {
	Kind string `json:"kind"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// TestGolden runs every testdata/python/<case>/ directory holding an
// input.py and a golden.json, once without history and once through a
// fresh database.
func TestGolden(t *testing.T) {
	root := filepath.Join("testdata", "python")
	cases, err := os.ReadDir(root)
	if err != nil {
		t.Skip("no testdata directory found")
	}

	for _, c := range cases {
		if !c.IsDir() {
			continue
		}
		dir := filepath.Join(root, c.Name())
		inputPath := filepath.Join(dir, "input.py")
		goldenPath := filepath.Join(dir, "golden.json")
		if _, err := os.Stat(goldenPath); err != nil {
			continue
		}
		if _, err := os.Stat(inputPath); err != nil {
			continue
		}

		t.Run(c.Name(), func(t *testing.T) {
			t.Run("no-store", func(t *testing.T) {
				e, err := New("")
				require.NoError(t, err)
				defer e.Close()
				runGoldenTest(t, e, inputPath, goldenPath)
			})
			t.Run("store", func(t *testing.T) {
				e, err := New(filepath.Join(t.TempDir(), "golden.db"))
				require.NoError(t, err)
				defer e.Close()
				runGoldenTest(t, e, inputPath, goldenPath)
			})
		})
	}
}

func runGoldenTest(t *testing.T, e *Engine, inputPath, goldenPath string) {
	t.Helper()

	goldenData, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	var golden goldenFile
	require.NoError(t, json.Unmarshal(goldenData, &golden))

	res, err := e.ExplainFile(context.Background(), inputPath)
	switch golden.Error {
	case "":
		require.NoError(t, err)
	case "parse":
		var perr *ParseError
		require.True(t, errors.As(err, &perr), "want ParseError, got %v", err)
		assert.Nil(t, res)
		return
	case "unrenderable":
		var uerr *UnrenderableError
		require.True(t, errors.As(err, &uerr), "want UnrenderableError, got %v", err)
		assert.Nil(t, res)
		return
	default:
		t.Fatalf("unknown golden error %q", golden.Error)
	}

	got := make([]goldenExplanation, 0, len(res.Entries))
	for _, en := range res.Entries {
		got = append(got, goldenExplanation{Kind: en.Kind.String(), Line: en.Line, Text: en.Text})
	}
	want := golden.Explanations
	if want == nil {
		want = []goldenExplanation{}
	}
	assert.Equal(t, want, got)

	// Default output is the entry text.
	texts := make([]string, 0, len(want))
	for _, w := range want {
		texts = append(texts, w.Text)
	}
	assert.Equal(t, texts, res.Lines)

	// The package-level call agrees with the engine.
	src, err := os.ReadFile(inputPath)
	require.NoError(t, err)
	lines, err := Explain(string(src))
	require.NoError(t, err)
	assert.Equal(t, texts, lines)
}
