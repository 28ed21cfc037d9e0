package coderun

import (
	"testing"
)

func lexAll(source string) []Token {
	l := NewLexer()
	l.Read(source)
	var out []Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Type == TOKEN_EOP {
			return out
		}
	}
}

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestLexerTokenSequences(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []TokenType
	}{
		{
			name:   "assignment",
			source: "x = 3 + 4 * 2",
			want:   []TokenType{TOKEN_IDENT, TOKEN_ASSIGN, TOKEN_NUMBER, TOKEN_PLUS, TOKEN_NUMBER, TOKEN_MULTIPLY, TOKEN_NUMBER, TOKEN_EOP},
		},
		{
			name:   "two character operators",
			source: "a == b != c <= d >= e && f || g",
			want: []TokenType{TOKEN_IDENT, TOKEN_EQ, TOKEN_IDENT, TOKEN_NEQ, TOKEN_IDENT, TOKEN_LTE, TOKEN_IDENT,
				TOKEN_GTE, TOKEN_IDENT, TOKEN_AND, TOKEN_IDENT, TOKEN_OR, TOKEN_IDENT, TOKEN_EOP},
		},
		{
			name:   "sign after operator",
			source: "x = -1 - -2",
			want:   []TokenType{TOKEN_IDENT, TOKEN_ASSIGN, TOKEN_SIGN, TOKEN_NUMBER, TOKEN_MINUS, TOKEN_SIGN, TOKEN_NUMBER, TOKEN_EOP},
		},
		{
			name:   "minus after closing delimiters",
			source: "(a)-b[0]-1",
			want: []TokenType{TOKEN_LPAREN, TOKEN_IDENT, TOKEN_RPAREN, TOKEN_MINUS, TOKEN_IDENT, TOKEN_LBRACKET,
				TOKEN_NUMBER, TOKEN_RBRACKET, TOKEN_MINUS, TOKEN_NUMBER, TOKEN_EOP},
		},
		{
			name:   "keywords",
			source: "if true:\nloop false:\nelse",
			want: []TokenType{TOKEN_IF, TOKEN_TRUE, TOKEN_COLON, TOKEN_EOL, TOKEN_LOOP, TOKEN_FALSE, TOKEN_COLON,
				TOKEN_EOL, TOKEN_ELSE, TOKEN_EOP},
		},
		{
			name:   "four spaces and tabs indent",
			source: "a\n    b\n\t\tc\n  d",
			want: []TokenType{TOKEN_IDENT, TOKEN_EOL, TOKEN_TAB, TOKEN_IDENT, TOKEN_EOL, TOKEN_TAB, TOKEN_TAB,
				TOKEN_IDENT, TOKEN_EOL, TOKEN_IDENT, TOKEN_EOP},
		},
		{
			name:   "carriage returns and blank lines",
			source: "a\r\n\r\n    \n// note\nb",
			want:   []TokenType{TOKEN_IDENT, TOKEN_EOL, TOKEN_IDENT, TOKEN_EOP},
		},
		{
			name:   "trailing comment",
			source: "f(1) // call\ng()",
			want: []TokenType{TOKEN_IDENT, TOKEN_LPAREN, TOKEN_NUMBER, TOKEN_RPAREN, TOKEN_EOL, TOKEN_IDENT,
				TOKEN_LPAREN, TOKEN_RPAREN, TOKEN_EOP},
		},
		{
			name:   "lone ampersand",
			source: "a & b",
			want:   []TokenType{TOKEN_IDENT, TOKEN_ERROR, TOKEN_IDENT, TOKEN_EOP},
		},
		{
			name:   "unknown character",
			source: "a @",
			want:   []TokenType{TOKEN_IDENT, TOKEN_ERROR, TOKEN_EOP},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenTypes(lexAll(tt.source))
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("token %d: expected %s, got %s (all: %v)", i, tt.want[i], got[i], got)
				}
			}
		})
	}
}

func TestLexerLiterals(t *testing.T) {
	tokens := lexAll(`n = 12.5 + 7; s = "a\"b\n"`)
	if tokens[2].Literal != "12.5" {
		t.Fatalf("expected number literal 12.5, got %q", tokens[2].Literal)
	}
	if tokens[4].Literal != "7" {
		t.Fatalf("expected number literal 7, got %q", tokens[4].Literal)
	}
	if tokens[8].Type != TOKEN_STRING || tokens[8].Literal != "a\"b\n" {
		t.Fatalf("unexpected string token %v", tokens[8])
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	tokens := lexAll(`s = "abc`)
	if tokens[2].Type != TOKEN_ERROR {
		t.Fatalf("expected error token, got %v", tokens[2])
	}
	if tokens[2].Literal != "missing closing '\"'" {
		t.Fatalf("unexpected error literal %q", tokens[2].Literal)
	}
}

func TestLexerEndOfProgramRepeats(t *testing.T) {
	l := NewLexer()
	l.Read("x")
	l.NextToken()
	for i := 0; i < 3; i++ {
		if tok := l.NextToken(); tok.Type != TOKEN_EOP {
			t.Fatalf("expected EOP on call %d, got %v", i, tok)
		}
	}
}

func TestLexerReadResets(t *testing.T) {
	l := NewLexer()
	l.Read("a = 1")
	l.NextToken()
	l.Read("-2")
	if tok := l.NextToken(); tok.Type != TOKEN_SIGN {
		t.Fatalf("expected SIGN at start of new source, got %v", tok)
	}
}

func TestLexerPositions(t *testing.T) {
	tokens := lexAll("a = 1\n\tb = 2")
	b := tokens[5]
	if b.Type != TOKEN_IDENT || b.Line != 2 || b.Column != 2 {
		t.Fatalf("expected b at 2:2, got %v at %d:%d", b, b.Line, b.Column)
	}
}
