package formula

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnknownName is returned when a reference has no binding at all.
	ErrUnknownName = errors.New("unknown name")
	// ErrUnavailable is returned when a reference is known but has no value.
	ErrUnavailable = errors.New("reference unavailable")
	// ErrDisallowedNode is returned for any node outside the grammar.
	ErrDisallowedNode = errors.New("disallowed expression node")
	// ErrDivisionByZero is returned when a divisor evaluates to zero.
	ErrDivisionByZero = errors.New("division by zero")
)

// Lookup resolves a name to its value. It returns an error wrapping
// ErrUnknownName or ErrUnavailable when the name cannot be used.
type Lookup func(name string) (float64, error)

// Expression is a parsed formula.
type Expression struct {
	Source string
	Root   Node
}

// Compile parses source into an Expression.
func Compile(source string) (*Expression, error) {
	root, err := ParseExpr(source)
	if err != nil {
		return nil, err
	}
	return &Expression{Source: source, Root: root}, nil
}

// References returns the distinct names used, in order of first use.
func (e *Expression) References() []string {
	var refs []string
	seen := make(map[string]bool)
	Walk(e.Root, func(n Node) {
		if id, ok := n.(*Identifier); ok && !seen[id.Name] {
			seen[id.Name] = true
			refs = append(refs, id.Name)
		}
	})
	return refs
}

// Eval evaluates the expression.
func (e *Expression) Eval(lookup Lookup) (float64, error) {
	return Eval(e.Root, lookup)
}

// Eval evaluates n. Results that are not finite are reported as errors.
func Eval(n Node, lookup Lookup) (float64, error) {
	v, err := eval(n, lookup)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("formula result is not finite: %v", v)
	}
	return v, nil
}

func eval(n Node, lookup Lookup) (float64, error) {
	switch v := n.(type) {
	case *NumberLiteral:
		return v.Value, nil

	case *Identifier:
		if lookup == nil {
			return 0, fmt.Errorf("%w: %s", ErrUnknownName, v.Name)
		}
		return lookup(v.Name)

	case *ParenExpr:
		return eval(v.Inner, lookup)

	case *UnaryExpr:
		x, err := eval(v.Operand, lookup)
		if err != nil {
			return 0, err
		}
		switch v.Op {
		case "+":
			return x, nil
		case "-":
			return -x, nil
		}
		return 0, fmt.Errorf("%w: unary %q", ErrDisallowedNode, v.Op)

	case *BinaryExpr:
		l, err := eval(v.Left, lookup)
		if err != nil {
			return 0, err
		}
		r, err := eval(v.Right, lookup)
		if err != nil {
			return 0, err
		}
		switch v.Op {
		case "+":
			return l + r, nil
		case "-":
			return l - r, nil
		case "*":
			return l * r, nil
		case "/":
			if r == 0 {
				return 0, ErrDivisionByZero
			}
			return l / r, nil
		}
		return 0, fmt.Errorf("%w: operator %q", ErrDisallowedNode, v.Op)
	}
	return 0, fmt.Errorf("%w: %T", ErrDisallowedNode, n)
}
