package pyexplain

import (
	"context"

	"github.com/jward/pyexplain/internal/explain"
)

// Explain parses src and returns one explanation per recognized construct
// in pre-order. On a *ParseError or *UnrenderableError no lines are
// returned.
func Explain(src string) ([]string, error) {
	log, err := explain.Explain(context.Background(), []byte(src))
	if err != nil {
		return nil, err
	}
	return log.Lines(), nil
}

// StdinLabel is the label for sources read from standard input. Runs
// under this label are never linked to a file record or served from cache.
const StdinLabel = "<stdin>"

// Result is the outcome of explaining one source.
type Result struct {
	// Path is the label the source was explained under.
	Path string
	// Hash is the hex SHA-256 of the source.
	Hash string
	// RunID identifies the recorded run. Empty when history is disabled.
	RunID string
	// Entries are the explainer's entries in traversal order.
	Entries []Entry
	// Lines is the output: the entries' text, or the emitted lines of the
	// configured script.
	Lines []string
	// Cached is true when Entries came from the history store.
	Cached bool
}
