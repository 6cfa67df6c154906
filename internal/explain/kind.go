package explain

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Kind is the closed set of constructs the walker explains.
type Kind int

const (
	// KindNone marks a node that is not explained; only its children are
	// visited.
	KindNone Kind = iota
	KindFunctionDef
	KindAssign
	KindCall
	KindReturn
	KindIf
	KindFor
)

var kindNames = [...]string{
	KindNone:        "none",
	KindFunctionDef: "function_def",
	KindAssign:      "assign",
	KindCall:        "call",
	KindReturn:      "return",
	KindIf:          "if",
	KindFor:         "for",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return KindNone, false
}

// classify maps a syntax node to the construct it represents. The
// mapping mirrors Python's ast node classes: async variants, annotated
// assignments, and the inner links of a chained assignment are not their
// own constructs.
func classify(n *sitter.Node) Kind {
	switch n.Type() {
	case "function_definition":
		if hasToken(n, "async") {
			return KindNone
		}
		return KindFunctionDef
	case "assignment":
		if n.ChildByFieldName("type") != nil || n.ChildByFieldName("right") == nil {
			return KindNone
		}
		if p := n.Parent(); p != nil && p.Type() == "assignment" {
			return KindNone
		}
		return KindAssign
	case "call":
		return KindCall
	case "return_statement":
		return KindReturn
	case "if_statement", "elif_clause":
		return KindIf
	case "for_statement":
		if hasToken(n, "async") {
			return KindNone
		}
		return KindFor
	default:
		return KindNone
	}
}

func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}
