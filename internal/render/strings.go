package render

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// stringLiteral is one decoded Python string or bytes literal.
type stringLiteral struct {
	prefix  string // lowercased prefix letters, e.g. "rb"
	value   string // decoded value; raw bytes for bytes literals
	isBytes bool
	isF     bool
}

// splitLiteral separates a literal's prefix, quote, and body.
func splitLiteral(text string) (prefix, body string, ok bool) {
	i := 0
	for i < len(text) && strings.IndexByte("rRbBuUfF", text[i]) >= 0 {
		i++
	}
	prefix = strings.ToLower(text[:i])
	rest := text[i:]

	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(rest) >= 2*len(q) && strings.HasPrefix(rest, q) && strings.HasSuffix(rest, q) {
			return prefix, rest[len(q) : len(rest)-len(q)], true
		}
	}
	return "", "", false
}

// parseStringLiteral decodes a single literal token as CPython's tokenizer
// would. Named unicode escapes (\N{...}) are not supported and report !ok.
func parseStringLiteral(text string) (stringLiteral, bool) {
	prefix, body, ok := splitLiteral(text)
	if !ok {
		return stringLiteral{}, false
	}
	lit := stringLiteral{
		prefix:  prefix,
		isBytes: strings.ContainsRune(prefix, 'b'),
		isF:     strings.ContainsRune(prefix, 'f'),
	}
	if lit.isF {
		lit.value = body
		return lit, true
	}
	if strings.ContainsRune(prefix, 'r') {
		lit.value = body
		return lit, true
	}

	value, ok := unescape(body, lit.isBytes)
	if !ok {
		return stringLiteral{}, false
	}
	lit.value = value
	return lit, true
}

// unescape processes backslash escapes. For bytes literals, \x and octal
// escapes produce raw bytes and \u/\U are left as-is.
func unescape(body string, isBytes bool) (string, bool) {
	if !strings.ContainsRune(body, '\\') {
		return body, true
	}

	var b strings.Builder
	writeCode := func(code rune) {
		if isBytes {
			b.WriteByte(byte(code))
		} else {
			b.WriteRune(code)
		}
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 == len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch esc := body[i]; esc {
		case '\n':
			// line continuation
		case '\\', '\'', '"':
			b.WriteByte(esc)
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(body) && j < i+3 && body[j] >= '0' && body[j] <= '7' {
				j++
			}
			code, _ := strconv.ParseUint(body[i:j], 8, 32)
			writeCode(rune(code))
			i = j - 1
		case 'x':
			if i+3 > len(body) {
				return "", false
			}
			code, err := strconv.ParseUint(body[i+1:i+3], 16, 32)
			if err != nil {
				return "", false
			}
			writeCode(rune(code))
			i += 2
		case 'u', 'U':
			if isBytes {
				b.WriteByte('\\')
				b.WriteByte(esc)
				continue
			}
			width := 4
			if esc == 'U' {
				width = 8
			}
			if i+1+width > len(body) {
				return "", false
			}
			code, err := strconv.ParseUint(body[i+1:i+1+width], 16, 32)
			if err != nil || !utf8.ValidRune(rune(code)) {
				return "", false
			}
			b.WriteRune(rune(code))
			i += width
		case 'N':
			if isBytes {
				b.WriteString(`\N`)
				continue
			}
			return "", false
		default:
			b.WriteByte('\\')
			b.WriteByte(esc)
		}
	}
	return b.String(), true
}
