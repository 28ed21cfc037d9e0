package coderun

import (
	"fmt"
	"strings"
)

// Lexer turns source text into a stream of tokens with one token of
// lookahead owned by the parser. A Lexer is reusable: Read resets it.
type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
	line         int
	column       int
	lineStart    bool
	prev         TokenType
}

func NewLexer() *Lexer {
	return &Lexer{}
}

// Read resets the lexer to the start of source.
func (l *Lexer) Read(source string) {
	l.input = source
	l.position = 0
	l.readPosition = 0
	l.line = 1
	l.column = 0
	l.lineStart = true
	l.prev = ""
	l.readChar()
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) eof() bool {
	return l.position >= len(l.input)
}

// blankAhead reports whether the rest of the current line holds nothing
// but whitespace or a comment.
func (l *Lexer) blankAhead() bool {
	i := l.position
	for i < len(l.input) && (l.input[i] == ' ' || l.input[i] == '\t' || l.input[i] == '\r') {
		i++
	}
	if i >= len(l.input) || l.input[i] == '\n' {
		return true
	}
	return l.input[i] == '/' && i+1 < len(l.input) && l.input[i+1] == '/'
}

func (l *Lexer) skipLine() {
	for !l.eof() && l.ch != '\n' {
		l.readChar()
	}
	if !l.eof() {
		l.readChar()
	}
}

// NextToken returns the next token. At end of input it keeps returning
// TOKEN_EOP.
func (l *Lexer) NextToken() Token {
	tok := l.next()
	l.prev = tok.Type
	return tok
}

func (l *Lexer) next() Token {
	for {
		if l.lineStart {
			if l.eof() {
				break
			}
			if l.blankAhead() {
				l.skipLine()
				continue
			}
			if tok, ok := l.readIndent(); ok {
				return tok
			}
			l.lineStart = false
		}
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for !l.eof() && l.ch != '\n' {
				l.readChar()
			}
		}
		break
	}

	line, col := l.line, l.column
	newToken := func(t TokenType, lit string) Token {
		return Token{Type: t, Literal: lit, Line: line, Column: col}
	}

	if l.eof() {
		return newToken(TOKEN_EOP, "end of program")
	}

	var tok Token
	switch l.ch {
	case '\n':
		tok = newToken(TOKEN_EOL, "end of line")
		l.lineStart = true
	case '+':
		tok = newToken(TOKEN_PLUS, "+")
	case '-':
		if endsExpression(l.prev) {
			tok = newToken(TOKEN_MINUS, "-")
		} else {
			tok = newToken(TOKEN_SIGN, "-")
		}
	case '*':
		tok = newToken(TOKEN_MULTIPLY, "*")
	case '/':
		tok = newToken(TOKEN_DIVIDE, "/")
	case '%':
		tok = newToken(TOKEN_MOD, "%")
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = newToken(TOKEN_EQ, "==")
		} else {
			tok = newToken(TOKEN_ASSIGN, "=")
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = newToken(TOKEN_NEQ, "!=")
		} else {
			tok = newToken(TOKEN_NOT, "!")
		}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok = newToken(TOKEN_LTE, "<=")
		} else {
			tok = newToken(TOKEN_LT, "<")
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = newToken(TOKEN_GTE, ">=")
		} else {
			tok = newToken(TOKEN_GT, ">")
		}
	case '&':
		if l.peekChar() == '&' {
			l.readChar()
			tok = newToken(TOKEN_AND, "&&")
		} else {
			tok = newToken(TOKEN_ERROR, "expected '&&' but found '&'")
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok = newToken(TOKEN_OR, "||")
		} else {
			tok = newToken(TOKEN_ERROR, "expected '||' but found '|'")
		}
	case ':':
		tok = newToken(TOKEN_COLON, ":")
	case ';':
		tok = newToken(TOKEN_SEMICOLON, ";")
	case ',':
		tok = newToken(TOKEN_COMMA, ",")
	case '(':
		tok = newToken(TOKEN_LPAREN, "(")
	case ')':
		tok = newToken(TOKEN_RPAREN, ")")
	case '[':
		tok = newToken(TOKEN_LBRACKET, "[")
	case ']':
		tok = newToken(TOKEN_RBRACKET, "]")
	case '"':
		lit, ok := l.readString()
		if !ok {
			return newToken(TOKEN_ERROR, "missing closing '\"'")
		}
		tok = newToken(TOKEN_STRING, lit)
	default:
		if isDigit(l.ch) {
			return newToken(TOKEN_NUMBER, l.readNumber())
		}
		if isLetter(l.ch) {
			ident := l.readIdentifier()
			return newToken(lookupIdent(ident), ident)
		}
		tok = newToken(TOKEN_ERROR, fmt.Sprintf("unknown character '%c'", l.ch))
	}

	l.readChar()
	return tok
}

// readIndent consumes one indentation unit at the start of a line: four
// spaces or one tab. Shorter runs of spaces are dropped.
func (l *Lexer) readIndent() (Token, bool) {
	line, col := l.line, l.column
	spaces := 0
	for l.ch == ' ' {
		spaces++
		l.readChar()
		if spaces == 4 {
			return Token{Type: TOKEN_TAB, Literal: "tab", Line: line, Column: col}, true
		}
	}
	if l.ch == '\t' {
		l.readChar()
		return Token{Type: TOKEN_TAB, Literal: "tab", Line: line, Column: col}, true
	}
	for l.ch == '\r' {
		l.readChar()
	}
	return Token{}, false
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

func (l *Lexer) readNumber() string {
	position := l.position
	for isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readString reads a quoted string. It leaves l.ch on the closing quote.
func (l *Lexer) readString() (string, bool) {
	var out strings.Builder
	for {
		l.readChar()
		if l.eof() {
			return out.String(), false
		}
		if l.ch == '"' {
			return out.String(), true
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				out.WriteByte('\n')
			case 'r':
				out.WriteByte('\r')
			case 't':
				out.WriteByte('\t')
			case '"':
				out.WriteByte('"')
			case '\\':
				out.WriteByte('\\')
			case 0:
				return out.String(), false
			default:
				out.WriteByte('\\')
				out.WriteByte(l.ch)
			}
			continue
		}
		out.WriteByte(l.ch)
	}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
