package coderun

import "fmt"

// TokenType identifies the lexical class of a token.
type TokenType string

const (
	// End markers
	TOKEN_EOL   TokenType = "EOL"
	TOKEN_EOP   TokenType = "EOP"
	TOKEN_TAB   TokenType = "TAB"
	TOKEN_ERROR TokenType = "ERROR"

	// Literals
	TOKEN_NUMBER TokenType = "NUMBER"
	TOKEN_STRING TokenType = "STRING"
	TOKEN_IDENT  TokenType = "IDENT"
	TOKEN_TRUE   TokenType = "TRUE"
	TOKEN_FALSE  TokenType = "FALSE"

	// Operators
	TOKEN_ASSIGN   TokenType = "="
	TOKEN_PLUS     TokenType = "+"
	TOKEN_MINUS    TokenType = "-"
	TOKEN_SIGN     TokenType = "SIGN"
	TOKEN_MULTIPLY TokenType = "*"
	TOKEN_DIVIDE   TokenType = "/"
	TOKEN_MOD      TokenType = "%"
	TOKEN_AND      TokenType = "&&"
	TOKEN_OR       TokenType = "||"
	TOKEN_EQ       TokenType = "=="
	TOKEN_NEQ      TokenType = "!="
	TOKEN_NOT      TokenType = "!"
	TOKEN_GT       TokenType = ">"
	TOKEN_LT       TokenType = "<"
	TOKEN_GTE      TokenType = ">="
	TOKEN_LTE      TokenType = "<="

	// Delimiters
	TOKEN_COLON     TokenType = ":"
	TOKEN_SEMICOLON TokenType = ";"
	TOKEN_COMMA     TokenType = ","
	TOKEN_LPAREN    TokenType = "("
	TOKEN_RPAREN    TokenType = ")"
	TOKEN_LBRACKET  TokenType = "["
	TOKEN_RBRACKET  TokenType = "]"

	// Keywords
	TOKEN_IF   TokenType = "IF"
	TOKEN_ELSE TokenType = "ELSE"
	TOKEN_LOOP TokenType = "LOOP"
)

// Token is a single lexeme. Line and Column are 1-based.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

var keywords = map[string]TokenType{
	"if":    TOKEN_IF,
	"else":  TOKEN_ELSE,
	"loop":  TOKEN_LOOP,
	"true":  TOKEN_TRUE,
	"false": TOKEN_FALSE,
}

func lookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TOKEN_IDENT
}

// Expression priorities. Higher binds tighter; groups and index
// brackets are handled by the parser as special cases.
const (
	priorityNone    = 0
	priorityValue   = 1
	priorityAssign  = 2
	priorityLogical = 3
	priorityCompare = 4
	prioritySum     = 5
	priorityProduct = 6
	priorityUnary   = 7
	priorityGroup   = 8
	priorityIndex   = 9
	priorityClose   = 10
)

func priority(t TokenType) int {
	switch t {
	case TOKEN_NUMBER, TOKEN_STRING, TOKEN_IDENT, TOKEN_TRUE, TOKEN_FALSE:
		return priorityValue
	case TOKEN_ASSIGN:
		return priorityAssign
	case TOKEN_AND, TOKEN_OR:
		return priorityLogical
	case TOKEN_EQ, TOKEN_NEQ, TOKEN_GT, TOKEN_LT, TOKEN_GTE, TOKEN_LTE:
		return priorityCompare
	case TOKEN_PLUS, TOKEN_MINUS:
		return prioritySum
	case TOKEN_MULTIPLY, TOKEN_DIVIDE, TOKEN_MOD:
		return priorityProduct
	case TOKEN_NOT, TOKEN_SIGN:
		return priorityUnary
	case TOKEN_LPAREN:
		return priorityGroup
	case TOKEN_LBRACKET:
		return priorityIndex
	case TOKEN_RPAREN, TOKEN_RBRACKET:
		return priorityClose
	default:
		return priorityNone
	}
}

// endsExpression reports whether a token of type t can be the last token
// of an expression. A '-' following such a token is binary subtraction.
func endsExpression(t TokenType) bool {
	switch t {
	case TOKEN_NUMBER, TOKEN_STRING, TOKEN_IDENT, TOKEN_TRUE, TOKEN_FALSE, TOKEN_RPAREN, TOKEN_RBRACKET:
		return true
	}
	return false
}
