// Package formula parses and evaluates the arithmetic used by symbolic
// point definitions. The grammar admits numbers, names, the four binary
// operators, unary sign and parentheses. Nothing else parses.
package formula

import (
	"fmt"
	"strconv"
)

// Node is an element of a parsed expression tree.
type Node interface {
	Pos() int
	String() string
	node()
}

// NumberLiteral is a numeric constant.
type NumberLiteral struct {
	Position int
	Value    float64
	Raw      string
}

// Identifier is a named reference resolved at evaluation time.
type Identifier struct {
	Position int
	Name     string
}

// BinaryExpr is one of + - * /.
type BinaryExpr struct {
	Position int
	Op       string
	Left     Node
	Right    Node
}

// UnaryExpr is a leading + or -.
type UnaryExpr struct {
	Position int
	Op       string
	Operand  Node
}

// ParenExpr is a parenthesized subexpression.
type ParenExpr struct {
	Position int
	Inner    Node
}

func (n *NumberLiteral) Pos() int { return n.Position }
func (n *Identifier) Pos() int    { return n.Position }
func (n *BinaryExpr) Pos() int    { return n.Position }
func (n *UnaryExpr) Pos() int     { return n.Position }
func (n *ParenExpr) Pos() int     { return n.Position }

func (*NumberLiteral) node() {}
func (*Identifier) node()    {}
func (*BinaryExpr) node()    {}
func (*UnaryExpr) node()     {}
func (*ParenExpr) node()     {}

func (n *NumberLiteral) String() string {
	if n.Raw != "" {
		return n.Raw
	}
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

func (n *Identifier) String() string { return n.Name }

func (n *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", n.Left, n.Op, n.Right)
}

func (n *UnaryExpr) String() string { return n.Op + n.Operand.String() }

func (n *ParenExpr) String() string { return "(" + n.Inner.String() + ")" }

// Walk calls fn for n and each of its descendants, depth first.
func Walk(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	fn(n)
	switch v := n.(type) {
	case *BinaryExpr:
		Walk(v.Left, fn)
		Walk(v.Right, fn)
	case *UnaryExpr:
		Walk(v.Operand, fn)
	case *ParenExpr:
		Walk(v.Inner, fn)
	}
}

// ParseError reports a lexing or parsing failure.
type ParseError struct {
	Position int
	Column   int
	Message  string
	Hint     string
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse error at col %d: %s", e.Column, e.Message)
	if e.Hint != "" {
		msg += " (hint: " + e.Hint + ")"
	}
	return msg
}
