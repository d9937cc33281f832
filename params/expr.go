package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Eval evaluates a restricted arithmetic expression. The grammar covers
// numbers, named references (bare or dotted), the operators + - * / ^,
// unary minus, parentheses, and the functions exp, ln, sqrt, abs, min and
// max. Unknown names make evaluation fail, which the resolution loop treats
// as a not-yet-satisfied dependency.
func Eval(expr string, lookup func(string) (float64, bool)) (float64, error) {
	p := &exprParser{input: expr, lookup: lookup}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("params: trailing input at %q", p.input[p.pos:])
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("params: expression %q is not finite", expr)
	}
	return v, nil
}

type exprParser struct {
	input  string
	pos    int
	lookup func(string) (float64, bool)
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// parseExpr handles addition and subtraction.
func (p *exprParser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
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

// parseTerm handles multiplication and division.
func (p *exprParser) parseTerm() (float64, error) {
	v, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case '/':
			p.pos++
			rhs, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("params: division by zero")
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

// parsePower handles the right-associative ^ operator.
func (p *exprParser) parsePower() (float64, error) {
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.peek() == '^' {
		p.pos++
		rhs, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		return math.Pow(v, rhs), nil
	}
	return v, nil
}

func (p *exprParser) parseUnary() (float64, error) {
	p.skipSpace()
	if p.peek() == '-' {
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	}
	if p.peek() == '+' {
		p.pos++
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (float64, error) {
	p.skipSpace()

	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("params: missing closing parenthesis")
		}
		p.pos++
		return v, nil

	case c >= '0' && c <= '9', c == '.':
		return p.parseNumber()

	case isNameByte(c):
		return p.parseNameOrCall()

	default:
		return 0, fmt.Errorf("params: unexpected character %q", c)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		if (c == '+' || c == '-') && p.pos > start {
			prev := p.input[p.pos-1]
			if prev == 'e' || prev == 'E' {
				p.pos++
				continue
			}
		}
		break
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("params: bad number %q", p.input[start:p.pos])
	}
	return v, nil
}

func (p *exprParser) parseNameOrCall() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && isNameByte(p.input[p.pos]) {
		p.pos++
	}
	name := p.input[start:p.pos]

	p.skipSpace()
	if p.peek() == '(' {
		return p.parseCall(name)
	}

	v, ok := p.lookup(name)
	if !ok {
		return 0, fmt.Errorf("params: unknown name %q", name)
	}
	return v, nil
}

func (p *exprParser) parseCall(name string) (float64, error) {
	p.pos++ // consume '('

	args := make([]float64, 0, 2)
	p.skipSpace()
	if p.peek() != ')' {
		for {
			v, err := p.parseExpr()
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			p.skipSpace()
			if p.peek() == ',' {
				p.pos++
				continue
			}
			break
		}
	}
	p.skipSpace()
	if p.peek() != ')' {
		return 0, fmt.Errorf("params: missing closing parenthesis in call to %s", name)
	}
	p.pos++

	switch strings.ToLower(name) {
	case "exp":
		if len(args) != 1 {
			return 0, fmt.Errorf("params: exp takes one argument")
		}
		return math.Exp(args[0]), nil
	case "ln":
		if len(args) != 1 {
			return 0, fmt.Errorf("params: ln takes one argument")
		}
		return math.Log(args[0]), nil
	case "sqrt":
		if len(args) != 1 {
			return 0, fmt.Errorf("params: sqrt takes one argument")
		}
		return math.Sqrt(args[0]), nil
	case "abs":
		if len(args) != 1 {
			return 0, fmt.Errorf("params: abs takes one argument")
		}
		return math.Abs(args[0]), nil
	case "min":
		if len(args) < 2 {
			return 0, fmt.Errorf("params: min takes at least two arguments")
		}
		v := args[0]
		for _, a := range args[1:] {
			v = math.Min(v, a)
		}
		return v, nil
	case "max":
		if len(args) < 2 {
			return 0, fmt.Errorf("params: max takes at least two arguments")
		}
		v := args[0]
		for _, a := range args[1:] {
			v = math.Max(v, a)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("params: unknown function %q", name)
	}
}

func isNameByte(c byte) bool {
	return c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
