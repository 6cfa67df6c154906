// Package render reproduces Python expression subtrees as canonical text.
//
// The output follows ast.unparse: redundant parentheses are dropped and
// re-inserted from an operator precedence table, literals are printed as
// their Python repr, and a tuple rendered on its own is always
// parenthesized. Formatting of the original source is not preserved.
package render

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// prec is the binding strength of an expression context. A node is wrapped
// in parentheses when the context requires a stronger binding than the
// node's own precedence.
type prec int

const (
	precNamedExpr prec = iota + 1
	precTuple
	precYield
	precTest
	precOr
	precAnd
	precNot
	precCmp
	precExpr
	precBXor
	precBAnd
	precShift
	precArith
	precTerm
	precFactor
	precPower
	precAwait
	precAtom
)

// precBOr shares a level with precExpr.
const precBOr = precExpr

var binaryPrec = map[string]prec{
	"|":  precBOr,
	"^":  precBXor,
	"&":  precBAnd,
	"<<": precShift,
	">>": precShift,
	"+":  precArith,
	"-":  precArith,
	"*":  precTerm,
	"@":  precTerm,
	"/":  precTerm,
	"%":  precTerm,
	"//": precTerm,
	"**": precPower,
}

// UnrenderableError reports an expression construct the renderer cannot
// reproduce. Line and Column are 1-based.
type UnrenderableError struct {
	Type   string
	Line   int
	Column int
}

func (e *UnrenderableError) Error() string {
	return fmt.Sprintf("cannot render %s expression (line %d, column %d)", e.Type, e.Line, e.Column)
}

// Expr renders the expression rooted at n as a standalone expression.
func Expr(n *sitter.Node, src []byte) (string, error) {
	r := &renderer{src: src}
	return r.expr(n, precTest)
}

type renderer struct {
	src []byte
}

func (r *renderer) unrenderable(n *sitter.Node) error {
	p := n.StartPoint()
	return &UnrenderableError{Type: n.Type(), Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// namedChildren returns n's named children, skipping comments and line
// continuations.
func namedChildren(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "comment", "line_continuation":
			continue
		}
		out = append(out, c)
	}
	return out
}

// hasToken reports whether n has a direct anonymous child of type tok.
func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}

// Unparen strips any enclosing parenthesized_expression wrappers.
func Unparen(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "parenthesized_expression" {
		kids := namedChildren(n)
		if len(kids) != 1 {
			return n
		}
		n = kids[0]
	}
	return n
}

func wrap(s string, ctx, own prec) string {
	if ctx > own {
		return "(" + s + ")"
	}
	return s
}

func (r *renderer) expr(n *sitter.Node, ctx prec) (string, error) {
	switch n.Type() {
	case "parenthesized_expression":
		kids := namedChildren(n)
		if len(kids) != 1 {
			return "", r.unrenderable(n)
		}
		return r.expr(kids[0], ctx)

	case "identifier", "keyword_identifier":
		return n.Content(r.src), nil
	case "true":
		return "True", nil
	case "false":
		return "False", nil
	case "none":
		return "None", nil
	case "ellipsis":
		return "...", nil

	case "integer", "float":
		s, ok := numberLiteral(n.Content(r.src), n.Type() == "float")
		if !ok {
			return "", r.unrenderable(n)
		}
		return s, nil

	case "string":
		return r.literal([]*sitter.Node{n})
	case "concatenated_string":
		return r.literal(namedChildren(n))

	case "attribute":
		return r.attribute(n)
	case "subscript":
		return r.subscript(n)
	case "call":
		return r.call(n)

	case "binary_operator":
		return r.binary(n, ctx)
	case "unary_operator":
		op := n.ChildByFieldName("operator").Type()
		arg, err := r.expr(n.ChildByFieldName("argument"), precFactor)
		if err != nil {
			return "", err
		}
		return wrap(op+arg, ctx, precFactor), nil
	case "not_operator":
		arg, err := r.expr(n.ChildByFieldName("argument"), precNot)
		if err != nil {
			return "", err
		}
		return wrap("not "+arg, ctx, precNot), nil
	case "boolean_operator":
		return r.boolean(n, ctx)
	case "comparison_operator":
		return r.comparison(n, ctx)

	case "conditional_expression":
		return r.conditional(n, ctx)
	case "lambda":
		return r.lambda(n, ctx)
	case "named_expression":
		name, err := r.expr(n.ChildByFieldName("name"), precAtom)
		if err != nil {
			return "", err
		}
		value, err := r.expr(n.ChildByFieldName("value"), precAtom)
		if err != nil {
			return "", err
		}
		return wrap(name+" := "+value, ctx, precNamedExpr), nil
	case "await":
		kids := namedChildren(n)
		if len(kids) != 1 {
			return "", r.unrenderable(n)
		}
		v, err := r.expr(kids[0], precAtom)
		if err != nil {
			return "", err
		}
		return wrap("await "+v, ctx, precAwait), nil
	case "yield":
		return r.yield(n, ctx)

	case "tuple", "expression_list", "pattern_list", "tuple_pattern":
		return r.tuple(n, ctx)
	case "list", "list_pattern":
		items, err := r.items(namedChildren(n), precTest)
		if err != nil {
			return "", err
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	case "set":
		items, err := r.items(namedChildren(n), precTest)
		if err != nil {
			return "", err
		}
		return "{" + strings.Join(items, ", ") + "}", nil
	case "dictionary":
		return r.dictionary(n)
	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		return r.comprehension(n)

	case "list_splat", "list_splat_pattern":
		return r.prefixed("*", n)
	case "dictionary_splat", "dictionary_splat_pattern":
		return r.prefixed("**", n)
	case "keyword_argument":
		value, err := r.expr(n.ChildByFieldName("value"), precTest)
		if err != nil {
			return "", err
		}
		return n.ChildByFieldName("name").Content(r.src) + "=" + value, nil
	case "slice":
		return r.slice(n)
	}
	return "", r.unrenderable(n)
}

func (r *renderer) items(nodes []*sitter.Node, ctx prec) ([]string, error) {
	out := make([]string, 0, len(nodes))
	for _, c := range nodes {
		s, err := r.expr(c, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *renderer) prefixed(prefix string, n *sitter.Node) (string, error) {
	kids := namedChildren(n)
	if len(kids) != 1 {
		return "", r.unrenderable(n)
	}
	v, err := r.expr(kids[0], precExpr)
	if err != nil {
		return "", err
	}
	return prefix + v, nil
}

func (r *renderer) literal(parts []*sitter.Node) (string, error) {
	var (
		lits     []stringLiteral
		value    strings.Builder
		anyF     bool
		anyBytes bool
	)
	for _, p := range parts {
		lit, ok := parseStringLiteral(p.Content(r.src))
		if !ok {
			return "", r.unrenderable(p)
		}
		lits = append(lits, lit)
		anyF = anyF || lit.isF
		anyBytes = anyBytes || lit.isBytes
		value.WriteString(lit.value)
	}

	// f-strings are reproduced from source.
	if anyF {
		texts := make([]string, len(parts))
		for i, p := range parts {
			texts[i] = p.Content(r.src)
		}
		return strings.Join(texts, " "), nil
	}
	if anyBytes {
		return BytesRepr([]byte(value.String())), nil
	}
	if lits[0].prefix == "u" {
		return "u" + Repr(value.String()), nil
	}
	return Repr(value.String()), nil
}

func (r *renderer) attribute(n *sitter.Node) (string, error) {
	object := n.ChildByFieldName("object")
	obj, err := r.expr(object, precAtom)
	if err != nil {
		return "", err
	}
	// 1 .real: an integer needs a space so the dot is not read as a float.
	if inner := Unparen(object); inner.Type() == "integer" && !strings.ContainsAny(obj, "j") {
		obj += " "
	}
	return obj + "." + n.ChildByFieldName("attribute").Content(r.src), nil
}

func (r *renderer) subscript(n *sitter.Node) (string, error) {
	kids := namedChildren(n)
	if len(kids) < 2 {
		return "", r.unrenderable(n)
	}
	value, err := r.expr(kids[0], precAtom)
	if err != nil {
		return "", err
	}
	subs, err := r.items(kids[1:], precTest)
	if err != nil {
		return "", err
	}
	index := strings.Join(subs, ", ")
	if len(subs) == 1 && hasToken(n, ",") {
		index += ","
	}
	return value + "[" + index + "]", nil
}

func (r *renderer) slice(n *sitter.Node) (string, error) {
	var parts [3]string
	idx := 0
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() {
			if c.Type() == ":" {
				idx++
			}
			continue
		}
		if c.Type() == "comment" || idx > 2 {
			continue
		}
		s, err := r.expr(c, precTest)
		if err != nil {
			return "", err
		}
		parts[idx] = s
	}
	out := parts[0] + ":" + parts[1]
	if parts[2] != "" {
		out += ":" + parts[2]
	}
	return out, nil
}

// CallArgs splits a call's argument list into positional arguments (plain
// and *starred) and keyword arguments (name=value and **mapping), each in
// source order. A bare generator argument is the single positional.
func CallArgs(call *sitter.Node) (positional, keyword []*sitter.Node) {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil, nil
	}
	if args.Type() == "generator_expression" {
		return []*sitter.Node{args}, nil
	}
	for _, a := range namedChildren(args) {
		switch a.Type() {
		case "keyword_argument", "dictionary_splat":
			keyword = append(keyword, a)
		default:
			positional = append(positional, a)
		}
	}
	return positional, keyword
}

func (r *renderer) call(n *sitter.Node) (string, error) {
	fn, err := r.expr(n.ChildByFieldName("function"), precAtom)
	if err != nil {
		return "", err
	}
	positional, keyword := CallArgs(n)
	args, err := r.items(append(positional, keyword...), precTest)
	if err != nil {
		return "", err
	}
	return fn + "(" + strings.Join(args, ", ") + ")", nil
}

// binOp is a binary expression regrouped by binaryPrec. Exactly one of
// leaf or op is set.
type binOp struct {
	op          string
	left, right *binOp
	leaf        *sitter.Node
}

// binary renders a chain of unparenthesized binary operators. The grammar
// nests `&` and `^` the wrong way round, so the chain is flattened into
// operands and operators in source order and regrouped by binaryPrec
// before rendering.
func (r *renderer) binary(n *sitter.Node, ctx prec) (string, error) {
	var (
		operands []*sitter.Node
		ops      []string
	)
	if err := r.flattenBinary(n, &operands, &ops); err != nil {
		return "", err
	}
	pos := 0
	tree := regroup(operands, ops, &pos, precBOr)
	return r.grouped(tree, ctx)
}

func (r *renderer) flattenBinary(n *sitter.Node, operands *[]*sitter.Node, ops *[]string) error {
	if n.Type() != "binary_operator" {
		*operands = append(*operands, n)
		return nil
	}
	op := n.ChildByFieldName("operator").Type()
	if _, ok := binaryPrec[op]; !ok {
		return r.unrenderable(n)
	}
	if err := r.flattenBinary(n.ChildByFieldName("left"), operands, ops); err != nil {
		return err
	}
	*ops = append(*ops, op)
	return r.flattenBinary(n.ChildByFieldName("right"), operands, ops)
}

// regroup builds a tree from operands[*pos:] by precedence climbing, taking
// operators that bind at least as tightly as minPrec. `**` is the only
// right-associative operator.
func regroup(operands []*sitter.Node, ops []string, pos *int, minPrec prec) *binOp {
	left := &binOp{leaf: operands[*pos]}
	for *pos < len(ops) {
		op := ops[*pos]
		own := binaryPrec[op]
		if own < minPrec {
			break
		}
		next := own + 1
		if op == "**" {
			next = own
		}
		*pos++
		right := regroup(operands, ops, pos, next)
		left = &binOp{op: op, left: left, right: right}
	}
	return left
}

func (r *renderer) grouped(b *binOp, ctx prec) (string, error) {
	if b.leaf != nil {
		return r.expr(b.leaf, ctx)
	}
	own := binaryPrec[b.op]
	leftPrec, rightPrec := own, own+1
	if b.op == "**" {
		leftPrec, rightPrec = own+1, own
	}
	left, err := r.grouped(b.left, leftPrec)
	if err != nil {
		return "", err
	}
	right, err := r.grouped(b.right, rightPrec)
	if err != nil {
		return "", err
	}
	return wrap(left+" "+b.op+" "+right, ctx, own), nil
}

// boolean flattens a left-nested chain of the same operator into one
// BoolOp, matching how Python's parser groups `a and b and c`. Each
// operand binds one level tighter than the one before it, so
// `a or b and c` renders as `a or (b and c)`.
func (r *renderer) boolean(n *sitter.Node, ctx prec) (string, error) {
	op := n.ChildByFieldName("operator").Type()
	own := precOr
	if op == "and" {
		own = precAnd
	}

	var operands []*sitter.Node
	cur := n
	for cur.Type() == "boolean_operator" && cur.ChildByFieldName("operator").Type() == op {
		operands = append([]*sitter.Node{cur.ChildByFieldName("right")}, operands...)
		cur = cur.ChildByFieldName("left")
	}
	operands = append([]*sitter.Node{cur}, operands...)

	rendered := make([]string, 0, len(operands))
	for i, c := range operands {
		s, err := r.expr(c, min(own+1+prec(i), precAtom))
		if err != nil {
			return "", err
		}
		rendered = append(rendered, s)
	}
	return wrap(strings.Join(rendered, " "+op+" "), ctx, own), nil
}

func (r *renderer) comparison(n *sitter.Node, ctx prec) (string, error) {
	var (
		b  strings.Builder
		op []string
	)
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() {
			op = append(op, c.Type())
			continue
		}
		if c.Type() == "comment" {
			continue
		}
		s, err := r.expr(c, precCmp+1)
		if err != nil {
			return "", err
		}
		if len(op) > 0 {
			b.WriteString(" " + strings.Join(op, " ") + " ")
			op = op[:0]
		}
		b.WriteString(s)
	}
	return wrap(b.String(), ctx, precCmp), nil
}

func (r *renderer) conditional(n *sitter.Node, ctx prec) (string, error) {
	kids := namedChildren(n)
	if len(kids) != 3 {
		return "", r.unrenderable(n)
	}
	body, err := r.expr(kids[0], precTest+1)
	if err != nil {
		return "", err
	}
	test, err := r.expr(kids[1], precTest+1)
	if err != nil {
		return "", err
	}
	orelse, err := r.expr(kids[2], precTest)
	if err != nil {
		return "", err
	}
	return wrap(body+" if "+test+" else "+orelse, ctx, precTest), nil
}

func (r *renderer) lambda(n *sitter.Node, ctx prec) (string, error) {
	head := "lambda"
	if params := n.ChildByFieldName("parameters"); params != nil {
		var rendered []string
		for _, p := range namedChildren(params) {
			s, err := r.parameter(p)
			if err != nil {
				return "", err
			}
			rendered = append(rendered, s)
		}
		if len(rendered) > 0 {
			head += " " + strings.Join(rendered, ", ")
		}
	}
	body, err := r.expr(n.ChildByFieldName("body"), precTest)
	if err != nil {
		return "", err
	}
	return wrap(head+": "+body, ctx, precTest), nil
}

func (r *renderer) parameter(p *sitter.Node) (string, error) {
	switch p.Type() {
	case "identifier":
		return p.Content(r.src), nil
	case "default_parameter":
		value, err := r.expr(p.ChildByFieldName("value"), precTest)
		if err != nil {
			return "", err
		}
		return p.ChildByFieldName("name").Content(r.src) + "=" + value, nil
	case "list_splat_pattern":
		return r.prefixed("*", p)
	case "dictionary_splat_pattern":
		return r.prefixed("**", p)
	case "keyword_separator":
		return "*", nil
	case "positional_separator":
		return "/", nil
	}
	return "", r.unrenderable(p)
}

func (r *renderer) yield(n *sitter.Node, ctx prec) (string, error) {
	kw := "yield"
	if hasToken(n, "from") {
		kw = "yield from"
	}
	kids := namedChildren(n)
	if len(kids) == 0 {
		return wrap(kw, ctx, precYield), nil
	}
	v, err := r.expr(kids[0], precAtom)
	if err != nil {
		return "", err
	}
	return wrap(kw+" "+v, ctx, precYield), nil
}

func (r *renderer) tuple(n *sitter.Node, ctx prec) (string, error) {
	items, err := r.items(namedChildren(n), precTest)
	if err != nil {
		return "", err
	}
	var s string
	switch len(items) {
	case 0:
		return "()", nil
	case 1:
		s = items[0] + ","
	default:
		s = strings.Join(items, ", ")
	}
	return wrap(s, ctx, precTuple), nil
}

func (r *renderer) dictionary(n *sitter.Node) (string, error) {
	var entries []string
	for _, c := range namedChildren(n) {
		var (
			s   string
			err error
		)
		switch c.Type() {
		case "pair":
			s, err = r.pair(c)
		case "dictionary_splat":
			s, err = r.prefixed("**", c)
		default:
			err = r.unrenderable(c)
		}
		if err != nil {
			return "", err
		}
		entries = append(entries, s)
	}
	return "{" + strings.Join(entries, ", ") + "}", nil
}

func (r *renderer) pair(n *sitter.Node) (string, error) {
	key, err := r.expr(n.ChildByFieldName("key"), precTest)
	if err != nil {
		return "", err
	}
	value, err := r.expr(n.ChildByFieldName("value"), precTest)
	if err != nil {
		return "", err
	}
	return key + ": " + value, nil
}

var comprehensionDelims = map[string][2]string{
	"list_comprehension":       {"[", "]"},
	"set_comprehension":        {"{", "}"},
	"dictionary_comprehension": {"{", "}"},
	"generator_expression":     {"(", ")"},
}

func (r *renderer) comprehension(n *sitter.Node) (string, error) {
	delims := comprehensionDelims[n.Type()]
	body := n.ChildByFieldName("body")
	if body == nil {
		return "", r.unrenderable(n)
	}

	var (
		b   strings.Builder
		elt string
		err error
	)
	if body.Type() == "pair" {
		elt, err = r.pair(body)
	} else {
		elt, err = r.expr(body, precTest)
	}
	if err != nil {
		return "", err
	}
	b.WriteString(delims[0] + elt)

	for _, c := range namedChildren(n)[1:] {
		switch c.Type() {
		case "for_in_clause":
			kw := " for "
			if hasToken(c, "async") {
				kw = " async for "
			}
			target, err := r.expr(c.ChildByFieldName("left"), precTuple)
			if err != nil {
				return "", err
			}
			iter, err := r.expr(c.ChildByFieldName("right"), precTest+1)
			if err != nil {
				return "", err
			}
			b.WriteString(kw + target + " in " + iter)
		case "if_clause":
			kids := namedChildren(c)
			if len(kids) != 1 {
				return "", r.unrenderable(c)
			}
			cond, err := r.expr(kids[0], precTest+1)
			if err != nil {
				return "", err
			}
			b.WriteString(" if " + cond)
		default:
			return "", r.unrenderable(c)
		}
	}
	b.WriteString(delims[1])
	return b.String(), nil
}
