package coderun

import (
	"strings"
)

// Parser builds a Program from a token stream. Blocks are delimited by
// indentation: a block is the run of lines indented deeper than the line
// that opened it. The first diagnostic stops the parse.
type Parser struct {
	l         *Lexer
	diag      *Diagnostics
	arena     *Arena
	curToken  Token
	peekToken Token

	// indent is the indentation of the line whose first token is in
	// peekToken.
	indent int
	depth  int

	// MaxDepth caps the nesting of groups and index brackets inside one
	// expression. Zero means unlimited.
	MaxDepth int
}

// NewParser reads the first token from l, which must already hold the
// source.
func NewParser(l *Lexer, diag *Diagnostics) *Parser {
	p := &Parser{
		l:        l,
		diag:     diag,
		arena:    &Arena{},
		MaxDepth: GetRuntimeConfig().MaxExpressionDepth,
	}
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	return false
}

func (p *Parser) errorf(tok Token, code ErrorCode, format string, args ...any) {
	p.diag.ReportAt(tok.Line, code, format, args...)
}

func (p *Parser) failed() bool {
	return p.diag.HasError()
}

// readIndent consumes the indentation tokens at the start of a line.
func (p *Parser) readIndent() int {
	n := 0
	for p.peekTokenIs(TOKEN_TAB) {
		p.nextToken()
		n++
	}
	return n
}

// ParseProgram parses the whole token stream. It returns nil when a
// diagnostic was reported.
func (p *Parser) ParseProgram() *Program {
	program := &Program{
		Body:  &BlockStatement{Token: p.peekToken},
		Arena: p.arena,
	}
	p.indent = p.readIndent()
	for !p.peekTokenIs(TOKEN_EOP) {
		if p.indent != 0 {
			p.errorf(p.peekToken, ErrCodeInvalid, "unexpected indentation before '%s'", p.peekToken.Literal)
			return nil
		}
		p.nextToken()
		stmt := p.parseStatement(0)
		if stmt == nil || p.failed() {
			return nil
		}
		program.Body.Statements = append(program.Body.Statements, stmt)
	}
	return program
}

// parseStatement parses the statement starting at curToken on a line
// indented layer times. On return the indentation of the next statement
// is in p.indent.
func (p *Parser) parseStatement(layer int) Statement {
	switch p.curToken.Type {
	case TOKEN_IDENT:
		return p.parseIdentifierStatement(layer)
	case TOKEN_IF:
		return p.parseIfStatement(layer)
	case TOKEN_LOOP:
		return p.parseLoopStatement(layer)
	case TOKEN_ERROR:
		p.errorf(p.curToken, ErrCodeInvalid, "%s", p.curToken.Literal)
	default:
		p.errorf(p.curToken, ErrCodeInvalid, "unexpected '%s' at start of statement", p.curToken.Literal)
	}
	return nil
}

// endStatement consumes the separator after a simple statement.
func (p *Parser) endStatement(layer int) bool {
	switch p.peekToken.Type {
	case TOKEN_SEMICOLON:
		p.nextToken()
		if p.peekTokenIs(TOKEN_EOL) {
			p.nextToken()
			p.indent = p.readIndent()
		} else {
			p.indent = layer
		}
	case TOKEN_EOL:
		p.nextToken()
		p.indent = p.readIndent()
	case TOKEN_EOP:
		p.indent = 0
	case TOKEN_ERROR:
		p.errorf(p.peekToken, ErrCodeInvalid, "%s", p.peekToken.Literal)
		return false
	default:
		p.errorf(p.peekToken, ErrCodeInvalid, "unexpected '%s' after '%s'", p.peekToken.Literal, p.curToken.Literal)
		return false
	}
	return true
}

func (p *Parser) parseIdentifierStatement(layer int) Statement {
	tok := p.curToken
	name := tok.Literal
	p.diag.Trace(name)

	var stmt Statement
	switch p.peekToken.Type {
	case TOKEN_ASSIGN:
		p.nextToken()
		assign := &AssignStatement{Token: tok, Name: name, Index: NoExpr, Value: NoExpr}
		if !p.parseAssignValue(assign) {
			return nil
		}
		stmt = assign
	case TOKEN_LBRACKET:
		p.nextToken()
		assign := &AssignStatement{Token: tok, Name: name, Value: NoExpr}
		assign.Index = p.parseNested(TOKEN_RBRACKET)
		if p.failed() {
			return nil
		}
		if !p.expectPeek(TOKEN_ASSIGN) {
			p.errorf(p.peekToken, ErrCodeMissing, "expected '=' after '%s[...]'", name)
			return nil
		}
		if !p.parseAssignValue(assign) {
			return nil
		}
		stmt = assign
	case TOKEN_LPAREN:
		p.nextToken()
		args := p.parseArrayLiteral(TOKEN_RPAREN)
		if args == nil {
			return nil
		}
		stmt = &CallStatement{Token: tok, Name: name, Arguments: args}
	default:
		p.errorf(p.peekToken, ErrCodeInvalid, "expected '=', '[' or '(' after '%s' but found '%s'", name, p.peekToken.Literal)
		return nil
	}

	if !p.endStatement(layer) {
		return nil
	}
	p.diag.Untrace()
	return stmt
}

// parseAssignValue parses the right hand side of an assignment with
// curToken on '='.
func (p *Parser) parseAssignValue(assign *AssignStatement) bool {
	if p.expectPeek(TOKEN_LBRACKET) {
		assign.Array = p.parseArrayLiteral(TOKEN_RBRACKET)
		return assign.Array != nil
	}
	assign.Value = p.parseExpression(TOKEN_EOL, TOKEN_SEMICOLON, TOKEN_EOP)
	return !p.failed()
}

func (p *Parser) parseIfStatement(layer int) Statement {
	tok := p.curToken
	p.diag.Trace("if")

	condition := p.parseExpression(TOKEN_COLON)
	if p.failed() {
		return nil
	}
	p.nextToken()
	if !p.expectPeek(TOKEN_EOL) {
		p.errorf(p.peekToken, ErrCodeMissingBlock, "expected an indented block after 'if'")
		return nil
	}
	consequence := p.parseBlockStatement(layer)
	if consequence == nil {
		return nil
	}
	stmt := &IfStatement{Token: tok, Condition: condition, Consequence: consequence}

	if p.indent == layer && p.peekTokenIs(TOKEN_ELSE) {
		p.nextToken()
		p.diag.Trace("else")
		if p.expectPeek(TOKEN_IF) {
			alt := p.parseIfStatement(layer)
			if alt == nil {
				return nil
			}
			stmt.Alternative = alt
		} else {
			if !p.expectPeek(TOKEN_COLON) {
				p.errorf(p.peekToken, ErrCodeMissing, "expected ':' after 'else'")
				return nil
			}
			if !p.expectPeek(TOKEN_EOL) {
				p.errorf(p.peekToken, ErrCodeMissingBlock, "expected an indented block after 'else'")
				return nil
			}
			alt := p.parseBlockStatement(layer)
			if alt == nil {
				return nil
			}
			stmt.Alternative = alt
		}
		p.diag.Untrace()
	}

	p.diag.Untrace()
	return stmt
}

func (p *Parser) parseLoopStatement(layer int) Statement {
	tok := p.curToken
	p.diag.Trace("loop")

	condition := p.parseExpression(TOKEN_COLON)
	if p.failed() {
		return nil
	}
	p.nextToken()
	if !p.expectPeek(TOKEN_EOL) {
		p.errorf(p.peekToken, ErrCodeMissingBlock, "expected an indented block after 'loop'")
		return nil
	}
	body := p.parseBlockStatement(layer)
	if body == nil {
		return nil
	}

	p.diag.Untrace()
	return &LoopStatement{Token: tok, Condition: condition, Body: body}
}

// parseBlockStatement parses the lines indented deeper than layer that
// follow curToken, which is the end of the opening line.
func (p *Parser) parseBlockStatement(layer int) *BlockStatement {
	block := &BlockStatement{Token: p.curToken}
	depth := p.readIndent()
	p.indent = depth
	if depth <= layer || p.peekTokenIs(TOKEN_EOP) {
		p.errorf(p.peekToken, ErrCodeMissingBlock, "expected an indented block")
		return nil
	}

	for p.indent == depth && !p.peekTokenIs(TOKEN_EOP) {
		p.nextToken()
		stmt := p.parseStatement(depth)
		if stmt == nil || p.failed() {
			return nil
		}
		block.Statements = append(block.Statements, stmt)
	}

	if p.indent > depth && !p.peekTokenIs(TOKEN_EOP) {
		p.errorf(p.peekToken, ErrCodeInvalid, "unexpected indentation before '%s'", p.peekToken.Literal)
		return nil
	}
	return block
}

// parseArrayLiteral parses a comma separated list with curToken on the
// opening delimiter. On return curToken is end.
func (p *Parser) parseArrayLiteral(end TokenType) *ArrayLiteral {
	lit := &ArrayLiteral{}
	if p.expectPeek(end) {
		return lit
	}
	for {
		el := p.parseExpression(TOKEN_COMMA, end)
		if p.failed() {
			return nil
		}
		lit.Elements = append(lit.Elements, el)
		p.nextToken()
		if p.curTokenIs(end) {
			return lit
		}
	}
}

// parseNested parses a bracketed sub-expression with curToken on the
// opening bracket. On return curToken is end.
func (p *Parser) parseNested(end TokenType) ExprID {
	p.depth++
	defer func() { p.depth-- }()
	if p.MaxDepth > 0 && p.depth > p.MaxDepth {
		p.errorf(p.curToken, ErrCodeInvalid, "expression nesting exceeds %d levels", p.MaxDepth)
		return NoExpr
	}
	id := p.parseExpression(end)
	if p.failed() {
		return NoExpr
	}
	p.nextToken()
	return id
}

// parseExpression consumes tokens until peekToken is one of ends and
// returns the root of the expression tree. Operands and operators are
// inserted by priority; verifyState rejects illegal neighbours.
func (p *Parser) parseExpression(ends ...TokenType) ExprID {
	root := NoExpr
	state := priorityAssign
	prev := p.curToken

	for !p.peekIn(ends) {
		switch p.peekToken.Type {
		case TOKEN_EOL, TOKEN_EOP, TOKEN_SEMICOLON, TOKEN_COLON:
			p.errorf(p.peekToken, ErrCodeMissing, "expected %s but found %s", describe(ends), describe([]TokenType{p.peekToken.Type}))
			return NoExpr
		case TOKEN_ERROR:
			p.errorf(p.peekToken, ErrCodeInvalid, "%s", p.peekToken.Literal)
			return NoExpr
		}
		p.nextToken()
		tok := p.curToken
		pr := priority(tok.Type)
		if pr == priorityNone || pr == priorityClose || pr == priorityAssign {
			p.errorf(tok, ErrCodeInvalid, "unexpected '%s' in expression", tok.Literal)
			return NoExpr
		}
		if !verifyState(state, pr) {
			p.errorf(tok, ErrCodeInvalid, "'%s' cannot be followed by '%s'", prev.Literal, tok.Literal)
			return NoExpr
		}

		var id ExprID
		switch pr {
		case priorityGroup:
			id = p.parseNested(TOKEN_RPAREN)
			if p.failed() {
				return NoExpr
			}
			if id == NoExpr {
				p.errorf(tok, ErrCodeMissing, "expected an expression inside '()'")
				return NoExpr
			}
			p.arena.Node(id).Priority = priorityClose
			state = priorityClose
		case priorityIndex:
			if prev.Type != TOKEN_IDENT {
				p.errorf(tok, ErrCodeInvalid, "'%s' cannot be indexed", prev.Literal)
				return NoExpr
			}
			id = p.parseNested(TOKEN_RBRACKET)
			if p.failed() {
				return NoExpr
			}
			if id == NoExpr {
				p.errorf(tok, ErrCodeMissing, "expected an index inside '[]'")
				return NoExpr
			}
			p.arena.Node(id).Priority = priorityNone
			state = priorityClose
		default:
			id = p.arena.New(tok, pr)
			state = pr
		}
		root = p.insertExpression(root, id)
		prev = p.curToken
	}

	if root == NoExpr {
		p.errorf(p.peekToken, ErrCodeMissing, "expected an expression before %s", describe([]TokenType{p.peekToken.Type}))
		return NoExpr
	}
	if state != priorityValue && state != priorityClose {
		p.errorf(prev, ErrCodeMissing, "expected a value after '%s'", prev.Literal)
		return NoExpr
	}
	return root
}

func (p *Parser) peekIn(ends []TokenType) bool {
	for _, t := range ends {
		if p.peekTokenIs(t) {
			return true
		}
	}
	return false
}

// insertExpression places node id into the tree rooted at root and
// returns the new root. Index expressions (priority zero) attach as the
// right child of the rightmost operand and unary operators always
// descend the right spine.
func (p *Parser) insertExpression(root, id ExprID) ExprID {
	if root == NoExpr {
		return id
	}
	node := p.arena.Node(root)
	n := p.arena.Node(id)

	if n.Priority == priorityNone {
		if node.Priority == priorityValue {
			node.Right = id
		} else {
			node.Right = p.insertExpression(node.Right, id)
		}
		return root
	}
	if n.Priority == priorityUnary {
		node.Right = p.insertExpression(node.Right, id)
		return root
	}
	if node.Priority == priorityValue || (n.Priority != priorityValue && node.Priority >= n.Priority) {
		n.Left = root
		return id
	}
	node.Right = p.insertExpression(node.Right, id)
	return root
}

// verifyState reports whether a token of priority next may follow one
// of priority prev.
func verifyState(prev, next int) bool {
	prev, next = collapse(prev), collapse(next)
	switch prev {
	case priorityValue, priorityClose:
		return next == priorityLogical || next == priorityIndex || next == priorityClose
	case priorityAssign, priorityLogical, priorityUnary, priorityGroup, priorityIndex:
		return next == priorityValue || next == priorityUnary || next == priorityGroup
	}
	return false
}

// collapse folds the binary operator priorities into one state.
func collapse(pr int) int {
	if pr >= priorityLogical && pr <= priorityProduct {
		return priorityLogical
	}
	return pr
}

func describe(types []TokenType) string {
	names := make([]string, len(types))
	for i, t := range types {
		switch t {
		case TOKEN_EOL:
			names[i] = "end of line"
		case TOKEN_EOP:
			names[i] = "end of program"
		default:
			names[i] = "'" + strings.ToLower(string(t)) + "'"
		}
	}
	return strings.Join(names, " or ")
}
