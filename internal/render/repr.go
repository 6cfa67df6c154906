package render

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"
)

// Repr returns the Python repr of a str value: single quotes unless the
// value contains a single quote and no double quote, with backslashes, the
// chosen quote, and non-printable characters escaped.
func Repr(s string) string {
	quote := '\''
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	var b strings.Builder
	b.WriteRune(quote)
	for _, ch := range s {
		switch {
		case ch == quote || ch == '\\':
			b.WriteByte('\\')
			b.WriteRune(ch)
		case ch == '\t':
			b.WriteString(`\t`)
		case ch == '\n':
			b.WriteString(`\n`)
		case ch == '\r':
			b.WriteString(`\r`)
		case ch < ' ' || ch == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, ch)
		case ch < 0x7f:
			b.WriteRune(ch)
		case unicode.IsPrint(ch):
			b.WriteRune(ch)
		case ch <= 0xff:
			fmt.Fprintf(&b, `\x%02x`, ch)
		case ch <= 0xffff:
			fmt.Fprintf(&b, `\u%04x`, ch)
		default:
			fmt.Fprintf(&b, `\U%08x`, ch)
		}
	}
	b.WriteRune(quote)
	return b.String()
}

// BytesRepr returns the Python repr of a bytes value.
func BytesRepr(v []byte) string {
	quote := byte('\'')
	if strings.IndexByte(string(v), '\'') >= 0 && strings.IndexByte(string(v), '"') < 0 {
		quote = '"'
	}

	var b strings.Builder
	b.WriteByte('b')
	b.WriteByte(quote)
	for _, c := range v {
		switch {
		case c == quote || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\t':
			b.WriteString(`\t`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c < ' ' || c >= 0x7f:
			fmt.Fprintf(&b, `\x%02x`, c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(quote)
	return b.String()
}

// List renders items as the repr of a Python list of str, e.g. ['a', 'b'].
func List(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = Repr(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// floatRepr formats f the way Python's float repr does: shortest
// round-tripping digits, fixed notation for decimal exponents in [-4, 16),
// scientific otherwise. Infinity overflows to 1e309 as in ast.unparse.
func floatRepr(f float64) string {
	if math.IsInf(f, 0) {
		if f < 0 {
			return "-1e309"
		}
		return "1e309"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err == nil && exp >= -4 && exp < 16 {
		fixed := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.ContainsAny(fixed, ".") {
			fixed += ".0"
		}
		return fixed
	}
	return sci
}

// numberLiteral normalizes an integer or float token the way a Python
// constant prints: integers in decimal, floats via repr, imaginary literals
// as repr(complex) of a pure imaginary.
func numberLiteral(text string, isFloat bool) (string, bool) {
	lower := strings.ToLower(text)
	if strings.HasSuffix(lower, "j") {
		f, err := strconv.ParseFloat(strings.ReplaceAll(lower[:len(lower)-1], "_", ""), 64)
		if err != nil && !math.IsInf(f, 0) {
			return "", false
		}
		return strings.TrimSuffix(floatRepr(f), ".0") + "j", true
	}
	if isFloat {
		f, err := strconv.ParseFloat(strings.ReplaceAll(lower, "_", ""), 64)
		if err != nil && !math.IsInf(f, 0) {
			return "", false
		}
		return floatRepr(f), true
	}

	lower = strings.TrimSuffix(lower, "l")
	n, ok := new(big.Int).SetString(lower, 0)
	if !ok {
		return "", false
	}
	return n.String(), true
}
