package pyexplain

import (
	"github.com/jward/pyexplain/internal/explain"
	"github.com/jward/pyexplain/internal/render"
	"github.com/jward/pyexplain/internal/store"
	"github.com/jward/pyexplain/internal/syntax"
)

// Public type aliases for internal types used in the Engine API.
// These are Go type aliases (=) and need no conversion.

type Store = store.Store
type Entry = explain.Entry
type Kind = explain.Kind
type Run = store.Run
type File = store.File
type Explanation = store.Explanation
type KindCount = store.KindCount

// ParseError reports source that is not valid Python.
type ParseError = syntax.ParseError

// UnrenderableError reports an expression the renderer cannot reproduce.
type UnrenderableError = render.UnrenderableError

// Construct kinds.
const (
	KindFunctionDef = explain.KindFunctionDef
	KindAssign      = explain.KindAssign
	KindCall        = explain.KindCall
	KindReturn      = explain.KindReturn
	KindIf          = explain.KindIf
	KindFor         = explain.KindFor
)
