// Package pyexplain describes Python source in plain English, one sentence
// per function definition, assignment, call, return, if-statement, and
// for-loop, in source order.
//
// # Usage
//
// The package-level [Explain] function is a pure call with no storage:
//
//	lines, err := pyexplain.Explain("x = 5\nprint(x)\n")
//	// ["Assigns 5 to x.", "Calls the function 'print' with arguments ['x']."]
//
// An [Engine] adds a SQLite history keyed by content hash, batch
// explaining of files and directories, and optional Risor post-processing:
//
//	e, err := pyexplain.New("pyexplain.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	results, err := e.ExplainDirectory(ctx, "path/to/project")
//
//	runs, err := e.History().Runs(10)
//
// # Caching
//
// [Engine.Explain] records one run per call. When a file path was last
// explained with identical content, the stored explanations are returned
// and no new run is recorded ([Result.Cached] is true).
//
// # Scripts
//
// [WithScript] and [WithScriptFS] name a Risor script that receives the
// explanations and replaces the output with whatever it passes to emit.
// See the internal/runtime package for the full set of script globals.
package pyexplain
