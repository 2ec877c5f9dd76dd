package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EvalAmount evaluates an amount entry such as "12.34" or "12+8" and returns
// the result in cents, rounded half-up. Input is restricted to digits and the
// characters + - * / ( ) . before any evaluation happens; everything else is
// rejected, as is any result that is not a positive finite number.
func EvalAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if !strings.ContainsAny(s, "+-*/()") {
		// Plain decimal entry, including the comma separator form.
		cents, err := ParseDecimalToCents(s)
		if err != nil {
			return Money{}, err
		}
		return Money{Cents: cents}, nil
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '+' || r == '-' || r == '*' || r == '/' || r == '(' || r == ')' || r == '.':
		case r == ' ' || r == '\t':
		default:
			return Money{}, fmt.Errorf("%w: character %q not allowed", ErrInvalidAmount, r)
		}
	}

	p := &exprParser{input: strings.Map(dropSpace, s)}
	v, err := p.parseExpr()
	if err != nil {
		return Money{}, err
	}
	if p.pos != len(p.input) {
		return Money{}, fmt.Errorf("%w: unexpected %q", ErrInvalidAmount, p.input[p.pos:])
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return Money{}, ErrInvalidAmount
	}
	cents := int64(math.Floor(v*100 + 0.5))
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

func dropSpace(r rune) rune {
	if r == ' ' || r == '\t' {
		return -1
	}
	return r
}

// exprParser is a minimal recursive-descent parser for the restricted
// arithmetic grammar: expr = term {(+|-) term}, term = factor {(*|/) factor},
// factor = number | (expr) | -factor.
type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += rhs
		case '-':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	v, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case '/':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("%w: division by zero", ErrInvalidAmount)
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.parseFactor()
		return -v, err
	case '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrInvalidAmount)
		}
		p.pos++
		return v, nil
	}
	start := p.pos
	dots := 0
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' {
			dots++
			p.pos++
			continue
		}
		break
	}
	if p.pos == start || dots > 1 {
		return 0, fmt.Errorf("%w: malformed number near position %d", ErrInvalidAmount, start)
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, p.input[start:p.pos])
	}
	return v, nil
}
