package formula

import (
	"fmt"
	"unicode"
)

// TokenType enumerates the token kinds produced by the lexer.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenIdentifier
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenLParen
	TokenRParen
)

var tokenTypeNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenNumber:     "NUMBER",
	TokenIdentifier: "IDENT",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenStar:       "*",
	TokenSlash:      "/",
	TokenLParen:     "(",
	TokenRParen:     ")",
}

func (t TokenType) String() string {
	if name, ok := tokenTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", int(t))
}

// Token is a single lexical token.
type Token struct {
	Type     TokenType
	Value    string
	Position int // rune offset
	Column   int // 1-based
}

// Lexer tokenizes a formula.
type Lexer struct {
	input []rune
	pos   int
}

func NewLexer(input string) *Lexer {
	return &Lexer{input: []rune(input)}
}

// Tokenize returns every token up to and including EOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekAt(offset int) rune {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *Lexer) token(typ TokenType, value string, start int) Token {
	return Token{Type: typ, Value: value, Position: start, Column: start + 1}
}

func (l *Lexer) nextToken() (Token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.input) {
		return l.token(TokenEOF, "", start), nil
	}

	ch := l.peek()
	switch ch {
	case '+':
		l.pos++
		return l.token(TokenPlus, "+", start), nil
	case '-', '−':
		l.pos++
		return l.token(TokenMinus, "-", start), nil
	case '*', '×':
		l.pos++
		return l.token(TokenStar, "*", start), nil
	case '/', '÷':
		l.pos++
		return l.token(TokenSlash, "/", start), nil
	case '(':
		l.pos++
		return l.token(TokenLParen, "(", start), nil
	case ')':
		l.pos++
		return l.token(TokenRParen, ")", start), nil
	}

	if unicode.IsDigit(ch) || (ch == '.' && unicode.IsDigit(l.peekAt(1))) {
		return l.readNumber(start)
	}
	if unicode.IsLetter(ch) || ch == '_' {
		for l.pos < len(l.input) && (unicode.IsLetter(l.input[l.pos]) || unicode.IsDigit(l.input[l.pos]) || l.input[l.pos] == '_') {
			l.pos++
		}
		return l.token(TokenIdentifier, string(l.input[start:l.pos]), start), nil
	}

	err := &ParseError{
		Position: start,
		Column:   start + 1,
		Message:  fmt.Sprintf("unexpected character %q", ch),
	}
	switch ch {
	case '.':
		err.Hint = "member access is not allowed"
	case '[', ']', '{', '}', ',', '=', '<', '>', '!', '&', '|', '%', '^', '"', '\'':
		err.Hint = "only + - * / and parentheses are allowed"
	}
	return Token{}, err
}

func (l *Lexer) readNumber(start int) (Token, error) {
	seenDot := false
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '.' {
			if seenDot {
				break
			}
			seenDot = true
		} else if !unicode.IsDigit(ch) {
			break
		}
		l.pos++
	}
	// A number glued to letters, as in 2x or 1e5, is rejected rather
	// than read as an implicit product.
	if l.pos < len(l.input) && (unicode.IsLetter(l.input[l.pos]) || l.input[l.pos] == '_' || l.input[l.pos] == '.') {
		return Token{}, &ParseError{
			Position: l.pos,
			Column:   l.pos + 1,
			Message:  fmt.Sprintf("malformed number %q", string(l.input[start:l.pos+1])),
		}
	}
	return l.token(TokenNumber, string(l.input[start:l.pos]), start), nil
}
