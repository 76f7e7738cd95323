package formula

import (
	"fmt"
	"strconv"
)

// Grammar, lowest precedence first:
//
//	Expr           → Addition
//	Addition       → Multiplication ( ('+'|'-') Multiplication )*
//	Multiplication → Unary ( ('*'|'/') Unary )*
//	Unary          → ('+'|'-') Unary | Primary
//	Primary        → Number | Identifier | '(' Expr ')'

// maxDepth bounds nesting so hostile input cannot exhaust the stack.
const maxDepth = 64

// Parser turns tokens into an expression tree.
type Parser struct {
	tokens []Token
	pos    int
	depth  int
}

func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse parses the complete token stream.
func (p *Parser) Parse() (Node, error) {
	if p.peek().Type == TokenEOF {
		return nil, p.errorf(p.peek(), "empty formula")
	}
	n, err := p.parseAddition()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, p.errorf(tok, "unexpected %s %q after expression", tok.Type, tok.Value)
	}
	return n, nil
}

// ParseExpr lexes and parses a formula.
func ParseExpr(input string) (Node, error) {
	tokens, err := NewLexer(input).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(typ TokenType) (Token, error) {
	tok := p.peek()
	if tok.Type != typ {
		return tok, p.errorf(tok, "expected %s, got %s %q", typ, tok.Type, tok.Value)
	}
	return p.advance(), nil
}

func (p *Parser) errorf(tok Token, format string, args ...interface{}) *ParseError {
	return &ParseError{
		Position: tok.Position,
		Column:   tok.Column,
		Message:  fmt.Sprintf(format, args...),
	}
}

func (p *Parser) parseAddition() (Node, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Type != TokenPlus && tok.Type != TokenMinus {
			return left, nil
		}
		op := p.advance()
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Position: op.Position, Op: op.Value, Left: left, Right: right}
	}
}

func (p *Parser) parseMultiplication() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Type != TokenStar && tok.Type != TokenSlash {
			return left, nil
		}
		op := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Position: op.Position, Op: op.Value, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (Node, error) {
	tok := p.peek()
	if tok.Type != TokenPlus && tok.Type != TokenMinus {
		return p.parsePrimary()
	}

	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return nil, p.errorf(tok, "expression nested too deeply")
	}

	op := p.advance()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &UnaryExpr{Position: op.Position, Op: op.Value, Operand: operand}, nil
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.peek()
	switch tok.Type {
	case TokenNumber:
		p.advance()
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid number %q", tok.Value)
		}
		return &NumberLiteral{Position: tok.Position, Value: v, Raw: tok.Value}, nil

	case TokenIdentifier:
		p.advance()
		if p.peek().Type == TokenLParen {
			err := p.errorf(tok, "function call %s(...) is not allowed", tok.Value)
			err.Hint = "formulas may only combine names and numbers"
			return nil, err
		}
		return &Identifier{Position: tok.Position, Name: tok.Value}, nil

	case TokenLParen:
		p.depth++
		defer func() { p.depth-- }()
		if p.depth > maxDepth {
			return nil, p.errorf(tok, "expression nested too deeply")
		}
		p.advance()
		inner, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return &ParenExpr{Position: tok.Position, Inner: inner}, nil

	case TokenEOF:
		return nil, p.errorf(tok, "unexpected end of formula")
	}
	return nil, p.errorf(tok, "unexpected %s %q", tok.Type, tok.Value)
}
