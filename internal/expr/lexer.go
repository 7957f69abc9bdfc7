package expr

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// tokenType represents the type of a lexical token
type tokenType int

const (
	tokenEOF tokenType = iota
	tokenInt
	tokenFloat
	tokenString
	tokenName
	tokenOp
)

// token represents a lexical token
type token struct {
	typ   tokenType
	value string
	pos   int
}

// operators lists punctuation longest first so that "**=" wins over "**" and "*"
var operators = []string{
	"**=", "//=",
	"**", "//", "==", "!=", "<=", ">=", "+=", "-=", "*=", "/=", "%=",
	"+", "-", "*", "/", "%", "<", ">", "=", "(", ")", "[", "]", "{", "}", ",", ":", ".",
}

// lexer tokenizes an assignment or expression
type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

func (l *lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *lexer) peekAt(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

// nextToken returns the next token from the input
func (l *lexer) nextToken() (token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return token{typ: tokenEOF, pos: l.pos}, nil
	}

	ch := l.peek()

	if isDigit(ch) || (ch == '.' && isDigit(l.peekAt(1))) {
		return l.readNumber()
	}

	if ch == '"' || ch == '\'' {
		return l.readString(ch)
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	if isIdentStart(r) {
		return l.readIdent(), nil
	}

	for _, op := range operators {
		if strings.HasPrefix(l.input[l.pos:], op) {
			tok := token{typ: tokenOp, value: op, pos: l.pos}
			l.pos += len(op)
			return tok, nil
		}
	}

	return token{}, syntaxError(l.input, l.pos, "unexpected character '%c'", r)
}

// readNumber reads an integer or float literal
func (l *lexer) readNumber() (token, error) {
	start := l.pos
	isFloat := false

	for isDigit(l.peek()) || l.peek() == '_' {
		l.pos++
	}
	if l.peek() == '.' && l.peekAt(1) != '.' {
		isFloat = true
		l.pos++
		for isDigit(l.peek()) || l.peek() == '_' {
			l.pos++
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		next := l.peekAt(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekAt(2))) {
			isFloat = true
			l.pos += 2
			for isDigit(l.peek()) {
				l.pos++
			}
		}
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	if l.pos < len(l.input) && isIdentStart(r) {
		return token{}, syntaxError(l.input, l.pos, "invalid number literal")
	}

	typ := tokenInt
	if isFloat {
		typ = tokenFloat
	}
	return token{typ: typ, value: strings.ReplaceAll(l.input[start:l.pos], "_", ""), pos: start}, nil
}

// readString reads a quoted string literal, decoding the common escapes
func (l *lexer) readString(quote byte) (token, error) {
	start := l.pos
	l.pos++ // skip opening quote

	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == quote {
			l.pos++
			return token{typ: tokenString, value: sb.String(), pos: start}, nil
		}
		if ch == '\\' && l.pos+1 < len(l.input) {
			l.pos++
			switch esc := l.input[l.pos]; esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			case '\\', '\'', '"':
				sb.WriteByte(esc)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(esc)
			}
			l.pos++
			continue
		}
		sb.WriteByte(ch)
		l.pos++
	}

	return token{}, syntaxError(l.input, start, "unterminated string literal")
}

// readIdent reads an identifier or keyword
func (l *lexer) readIdent() token {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !isIdentChar(r) {
			break
		}
		l.pos += size
	}
	return token{typ: tokenName, value: l.input[start:l.pos], pos: start}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// isIdentStart returns true if r can start an identifier
func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

// isIdentChar returns true if r can be part of an identifier
func isIdentChar(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
