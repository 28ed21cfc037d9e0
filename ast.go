package coderun

import (
	"bytes"
	"strconv"
	"strings"
)

// ExprID addresses an expression node inside an Arena.
type ExprID int

const NoExpr ExprID = -1

// ExprNode is one node of a binary expression tree. Leaves are literals
// or identifiers; an identifier's Right child is its index expression.
// Unary operators only set Right.
type ExprNode struct {
	Token    Token
	Priority int
	Left     ExprID
	Right    ExprID
}

// Arena owns every expression node of one program.
type Arena struct {
	nodes []ExprNode
}

func (a *Arena) New(tok Token, priority int) ExprID {
	a.nodes = append(a.nodes, ExprNode{Token: tok, Priority: priority, Left: NoExpr, Right: NoExpr})
	return ExprID(len(a.nodes) - 1)
}

func (a *Arena) Node(id ExprID) *ExprNode {
	return &a.nodes[id]
}

func (a *Arena) Len() int {
	return len(a.nodes)
}

func (a *Arena) String(id ExprID) string {
	var out bytes.Buffer
	a.write(&out, id)
	return out.String()
}

func (a *Arena) write(out *bytes.Buffer, id ExprID) {
	if id == NoExpr {
		return
	}
	n := a.Node(id)
	switch {
	case n.Token.Type == TOKEN_IDENT:
		out.WriteString(n.Token.Literal)
		if n.Right != NoExpr {
			out.WriteString("[")
			a.write(out, n.Right)
			out.WriteString("]")
		}
	case n.Token.Type == TOKEN_STRING:
		out.WriteString(strconv.Quote(n.Token.Literal))
	case n.Left == NoExpr && n.Right == NoExpr:
		out.WriteString(n.Token.Literal)
	case n.Left == NoExpr:
		out.WriteString("(")
		out.WriteString(n.Token.Literal)
		a.write(out, n.Right)
		out.WriteString(")")
	default:
		out.WriteString("(")
		a.write(out, n.Left)
		out.WriteString(" " + n.Token.Literal + " ")
		a.write(out, n.Right)
		out.WriteString(")")
	}
}

// ArrayLiteral is a comma separated list of expressions, as written in
// call arguments and array assignments.
type ArrayLiteral struct {
	Elements []ExprID
}

type Statement interface {
	statementNode()
	Pos() Token
}

type BlockStatement struct {
	Token      Token
	Statements []Statement
}

func (bs *BlockStatement) statementNode() {}
func (bs *BlockStatement) Pos() Token     { return bs.Token }

// AssignStatement is `name = value`, `name[index] = value` or
// `name = [a, b]`. Index is NoExpr for plain assignment and exactly one
// of Value and Array is set.
type AssignStatement struct {
	Token Token
	Name  string
	Index ExprID
	Value ExprID
	Array *ArrayLiteral
}

func (as *AssignStatement) statementNode() {}
func (as *AssignStatement) Pos() Token     { return as.Token }

// IfStatement's Alternative is nil, a *BlockStatement or an *IfStatement.
type IfStatement struct {
	Token       Token
	Condition   ExprID
	Consequence *BlockStatement
	Alternative Statement
}

func (is *IfStatement) statementNode() {}
func (is *IfStatement) Pos() Token     { return is.Token }

type LoopStatement struct {
	Token     Token
	Condition ExprID
	Body      *BlockStatement
}

func (ls *LoopStatement) statementNode() {}
func (ls *LoopStatement) Pos() Token     { return ls.Token }

type CallStatement struct {
	Token     Token
	Name      string
	Arguments *ArrayLiteral
}

func (cs *CallStatement) statementNode() {}
func (cs *CallStatement) Pos() Token     { return cs.Token }

// Program is one compiled source unit. It is not modified after parsing.
type Program struct {
	Body  *BlockStatement
	Arena *Arena
}

func (p *Program) String() string {
	var out bytes.Buffer
	p.writeBlock(&out, p.Body, 0)
	return out.String()
}

func (p *Program) writeBlock(out *bytes.Buffer, block *BlockStatement, depth int) {
	for _, stmt := range block.Statements {
		out.WriteString(strings.Repeat("\t", depth))
		p.writeStatement(out, stmt, depth)
	}
}

func (p *Program) writeStatement(out *bytes.Buffer, stmt Statement, depth int) {
	switch s := stmt.(type) {
	case *AssignStatement:
		out.WriteString(s.Name)
		if s.Index != NoExpr {
			out.WriteString("[" + p.Arena.String(s.Index) + "]")
		}
		out.WriteString(" = ")
		if s.Array != nil {
			out.WriteString("[" + p.writeList(s.Array) + "]")
		} else {
			out.WriteString(p.Arena.String(s.Value))
		}
		out.WriteString("\n")
	case *CallStatement:
		out.WriteString(s.Name + "(" + p.writeList(s.Arguments) + ")\n")
	case *IfStatement:
		out.WriteString("if " + p.Arena.String(s.Condition) + ":\n")
		p.writeBlock(out, s.Consequence, depth+1)
		switch alt := s.Alternative.(type) {
		case *BlockStatement:
			out.WriteString(strings.Repeat("\t", depth) + "else:\n")
			p.writeBlock(out, alt, depth+1)
		case *IfStatement:
			out.WriteString(strings.Repeat("\t", depth) + "else ")
			p.writeStatement(out, alt, depth)
		}
	case *LoopStatement:
		out.WriteString("loop " + p.Arena.String(s.Condition) + ":\n")
		p.writeBlock(out, s.Body, depth+1)
	case *BlockStatement:
		p.writeBlock(out, s, depth)
	}
}

func (p *Program) writeList(lit *ArrayLiteral) string {
	if lit == nil {
		return ""
	}
	parts := make([]string, len(lit.Elements))
	for i, el := range lit.Elements {
		parts[i] = p.Arena.String(el)
	}
	return strings.Join(parts, ", ")
}
