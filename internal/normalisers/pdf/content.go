package pdf

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// kerningSpace is the TJ adjustment (thousandths of text space) beyond which
// a gap is treated as a word break.
const kerningSpace = -200

// contentToken is one lexical element of a page content stream.
type contentToken struct {
	kind  tokenKind
	text  string  // decoded string, operator or name
	num   float64 // numeric operand
	items []contentToken
}

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokString
	tokNumber
	tokArray
	tokOther
)

// textFromContent extracts the text shown by text operators (Tj, TJ, ', ")
// in a decoded page content stream. Line moves and text object ends become
// newlines. Fonts with custom encodings are not mapped.
func textFromContent(stream []byte) string {
	lx := &lexer{src: stream}
	var out strings.Builder
	var operands []contentToken

	newline := func() {
		s := out.String()
		if s != "" && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
		}
	}

	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			writeLastString(&out, operands)
		case "'", "\"":
			newline()
			writeLastString(&out, operands)
		case "TJ":
			if n := len(operands); n > 0 && operands[n-1].kind == tokArray {
				for _, item := range operands[n-1].items {
					switch item.kind {
					case tokString:
						out.WriteString(item.text)
					case tokNumber:
						if item.num < kerningSpace {
							out.WriteByte(' ')
						}
					}
				}
			}
		case "T*", "ET":
			newline()
		case "Td", "TD":
			if n := len(operands); n >= 2 && operands[n-1].kind == tokNumber && operands[n-1].num != 0 {
				newline()
			} else if out.Len() > 0 {
				out.WriteByte(' ')
			}
		}
		operands = operands[:0]
	}

	return collapseLines(out.String())
}

func writeLastString(out *strings.Builder, operands []contentToken) {
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].kind == tokString {
			out.WriteString(operands[i].text)
			return
		}
	}
}

// collapseLines trims each line, squeezes inner spaces and drops blank lines.
func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

type lexer struct {
	src []byte
	pos int
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isWhite(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isWhite(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

// next returns the next token, or false at the end of the stream.
// A closing ']' is returned as an operator so arrays can be assembled.
func (l *lexer) next() (contentToken, bool) {
	l.skipSpaceAndComments()
	if l.pos >= len(l.src) {
		return contentToken{}, false
	}

	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return contentToken{kind: tokString, text: decodeText(l.literal())}, true
	case c == '<' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '<':
		l.pos += 2
		return contentToken{kind: tokOther, text: "<<"}, true
	case c == '>' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '>':
		l.pos += 2
		return contentToken{kind: tokOther, text: ">>"}, true
	case c == '<':
		l.pos++
		return contentToken{kind: tokString, text: decodeText(l.hex())}, true
	case c == '[':
		l.pos++
		return l.array(), true
	case c == ']':
		l.pos++
		return contentToken{kind: tokOperator, text: "]"}, true
	case c == '/':
		l.pos++
		return contentToken{kind: tokOther, text: "/" + l.word()}, true
	case isDelimiter(c):
		l.pos++
		return contentToken{kind: tokOther, text: string(c)}, true
	}

	w := l.word()
	if f, err := strconv.ParseFloat(w, 64); err == nil {
		return contentToken{kind: tokNumber, num: f}, true
	}
	if w == "BI" {
		l.skipInlineImage()
	}
	return contentToken{kind: tokOperator, text: w}, true
}

func (l *lexer) word() string {
	start := l.pos
	for l.pos < len(l.src) && !isWhite(l.src[l.pos]) && !isDelimiter(l.src[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		// Stray byte; consume it so the lexer always advances.
		l.pos++
	}
	return string(l.src[start:l.pos])
}

func (l *lexer) array() contentToken {
	arr := contentToken{kind: tokArray}
	for {
		tok, ok := l.next()
		if !ok || (tok.kind == tokOperator && tok.text == "]") {
			return arr
		}
		arr.items = append(arr.items, tok)
	}
}

// literal reads a parenthesised string after the opening '('.
func (l *lexer) literal() []byte {
	var buf []byte
	depth := 1
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return buf
			}
		case '\\':
			if l.pos >= len(l.src) {
				return buf
			}
			e := l.src[l.pos]
			l.pos++
			switch e {
			case 'n':
				buf = append(buf, '\n')
			case 'r':
				buf = append(buf, '\r')
			case 't':
				buf = append(buf, '\t')
			case 'b':
				buf = append(buf, '\b')
			case 'f':
				buf = append(buf, '\f')
			case '\r', '\n':
				// Line continuation.
				if e == '\r' && l.pos < len(l.src) && l.src[l.pos] == '\n' {
					l.pos++
				}
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '7'; i++ {
						v = v*8 + int(l.src[l.pos]-'0')
						l.pos++
					}
					buf = append(buf, byte(v))
				} else {
					buf = append(buf, e)
				}
			}
			continue
		}
		buf = append(buf, c)
	}
	return buf
}

// hex reads a hex string after the opening '<'.
func (l *lexer) hex() []byte {
	var digits []byte
	for l.pos < len(l.src) && l.src[l.pos] != '>' {
		if c := l.src[l.pos]; !isWhite(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++ // '>'
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return out
}

// skipInlineImage advances past inline image data up to the EI operator.
func (l *lexer) skipInlineImage() {
	for l.pos+2 <= len(l.src) {
		if l.src[l.pos] == 'E' && l.src[l.pos+1] == 'I' &&
			(l.pos+2 == len(l.src) || isWhite(l.src[l.pos+2])) &&
			(l.pos == 0 || isWhite(l.src[l.pos-1])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.src)
}

// decodeText interprets string bytes as UTF-16BE when they carry a byte
// order mark, otherwise as single-byte Latin-1 text.
func decodeText(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		b = b[2:]
		u := make([]uint16, 0, len(b)/2)
		for i := 0; i+1 < len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(u))
	}

	runes := make([]rune, 0, len(b))
	for _, c := range b {
		if c < 0x20 && c != '\n' && c != '\t' {
			continue
		}
		runes = append(runes, rune(c))
	}
	return string(runes)
}
