// Package expr evaluates the restricted expression language used by custom
// and vendor field calculations. The grammar is closed: {Field} references,
// numeric and quoted string literals, the arithmetic operators + - * / %,
// parentheses, and a fixed function allowlist. Expressions are parsed into
// an AST and walked; there is no dynamic code execution.
package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrParse wraps any syntax error in an expression.
var ErrParse = errors.New("expression parse error")

// ErrEval wraps any evaluation error (unknown function, bad operand types).
var ErrEval = errors.New("expression evaluation error")

// Eval parses and evaluates an expression against a field value map.
// The result is a float64 or a string.
func Eval(expression string, fields map[string]interface{}) (interface{}, error) {
	node, err := Parse(expression)
	if err != nil {
		return nil, err
	}
	return node.Eval(fields)
}

// Interpolate substitutes {Field} tokens in a plain text template. Unlike
// Eval, the text outside tokens is kept verbatim; used for TEXT-typed vendor
// expressions like "{St_Name} {St_PosTyp}".
func Interpolate(template string, fields map[string]interface{}) string {
	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:open])
		name := rest[open+1 : open+end]
		if v, ok := fields[name]; ok && v != nil {
			fmt.Fprintf(&b, "%v", v)
		}
		rest = rest[open+end+1:]
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Node is an AST node.
type Node interface {
	Eval(fields map[string]interface{}) (interface{}, error)
}

type numberNode float64

func (n numberNode) Eval(map[string]interface{}) (interface{}, error) { return float64(n), nil }

type stringNode string

func (n stringNode) Eval(map[string]interface{}) (interface{}, error) { return string(n), nil }

type fieldNode string

func (n fieldNode) Eval(fields map[string]interface{}) (interface{}, error) {
	v, ok := fields[string(n)]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: unknown field {%s}", ErrEval, string(n))
	}
	return v, nil
}

type binaryNode struct {
	op          byte
	left, right Node
}

func (n binaryNode) Eval(fields map[string]interface{}) (interface{}, error) {
	lv, err := n.left.Eval(fields)
	if err != nil {
		return nil, err
	}
	rv, err := n.right.Eval(fields)
	if err != nil {
		return nil, err
	}

	// string concatenation is the one non-numeric operation
	if n.op == '+' {
		if ls, ok := lv.(string); ok {
			return ls + toString(rv), nil
		}
		if rs, ok := rv.(string); ok {
			return toString(lv) + rs, nil
		}
	}

	lf, lok := toFloat(lv)
	rf, rok := toFloat(rv)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: operator %q requires numeric operands", ErrEval, n.op)
	}

	switch n.op {
	case '+':
		return lf + rf, nil
	case '-':
		return lf - rf, nil
	case '*':
		return lf * rf, nil
	case '/':
		if rf == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrEval)
		}
		return lf / rf, nil
	case '%':
		if rf == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrEval)
		}
		return math.Mod(lf, rf), nil
	default:
		return nil, fmt.Errorf("%w: unknown operator %q", ErrEval, n.op)
	}
}

type callNode struct {
	name string
	args []Node
}

func (n callNode) Eval(fields map[string]interface{}) (interface{}, error) {
	args := make([]interface{}, len(n.args))
	for i, a := range n.args {
		v, err := a.Eval(fields)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	fn, ok := functions[strings.ToLower(n.name)]
	if !ok {
		return nil, fmt.Errorf("%w: function %q is not allowed", ErrEval, n.name)
	}
	return fn(args)
}

type exprFunc func(args []interface{}) (interface{}, error)

// functions is the fixed allowlist of callable functions.
var functions = map[string]exprFunc{
	"abs":   numeric1(math.Abs),
	"floor": numeric1(math.Floor),
	"ceil":  numeric1(math.Ceil),
	"sqrt":  numeric1(math.Sqrt),
	"round": numeric1(math.Round),
	"pow":   numeric2(math.Pow),
	"min":   numeric2(math.Min),
	"max":   numeric2(math.Max),
	"upper": string1(strings.ToUpper),
	"lower": string1(strings.ToLower),
	"trim":  string1(strings.TrimSpace),
	"concat": func(args []interface{}) (interface{}, error) {
		var b strings.Builder
		for _, a := range args {
			b.WriteString(toString(a))
		}
		return b.String(), nil
	},
}

func numeric1(fn func(float64) float64) exprFunc {
	return func(args []interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: expected 1 argument", ErrEval)
		}
		f, ok := toFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("%w: expected numeric argument", ErrEval)
		}
		return fn(f), nil
	}
}

func numeric2(fn func(float64, float64) float64) exprFunc {
	return func(args []interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: expected 2 arguments", ErrEval)
		}
		a, aok := toFloat(args[0])
		b, bok := toFloat(args[1])
		if !aok || !bok {
			return nil, fmt.Errorf("%w: expected numeric arguments", ErrEval)
		}
		return fn(a, b), nil
	}
}

func string1(fn func(string) string) exprFunc {
	return func(args []interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: expected 1 argument", ErrEval)
		}
		return fn(toString(args[0])), nil
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	if f, ok := v.(float64); ok && f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprintf("%v", v)
}

// Parse compiles an expression into an AST.
func Parse(expression string) (Node, error) {
	p := &parser{input: expression}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("%w: unexpected %q at position %d", ErrParse, p.input[p.pos], p.pos)
	}
	return node, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// parseExpr := term (('+' | '-') term)*
func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

// parseTerm := factor (('*' | '/' | '%') factor)*
func (p *parser) parseTerm() (Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '*' && op != '/' && op != '%' {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

// parseFactor := number | string | '{' field '}' | ident '(' args ')' |
// '(' expr ')' | '-' factor
func (p *parser) parseFactor() (Node, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrParse)
	}

	c := p.input[p.pos]
	switch {
	case c == '-':
		p.pos++
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: '-', left: numberNode(0), right: inner}, nil

	case c == '(':
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, fmt.Errorf("%w: missing closing parenthesis", ErrParse)
		}
		p.pos++
		return inner, nil

	case c == '{':
		end := strings.IndexByte(p.input[p.pos:], '}')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated field reference", ErrParse)
		}
		name := p.input[p.pos+1 : p.pos+end]
		p.pos += end + 1
		if name == "" {
			return nil, fmt.Errorf("%w: empty field reference", ErrParse)
		}
		return fieldNode(name), nil

	case c == '\'' || c == '"':
		quote := c
		end := strings.IndexByte(p.input[p.pos+1:], quote)
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated string literal", ErrParse)
		}
		s := p.input[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return stringNode(s), nil

	case c >= '0' && c <= '9' || c == '.':
		start := p.pos
		for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
			p.pos++
		}
		f, err := strconv.ParseFloat(p.input[start:p.pos], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrParse, p.input[start:p.pos])
		}
		return numberNode(f), nil

	case isIdentStart(c):
		start := p.pos
		for p.pos < len(p.input) && isIdentChar(p.input[p.pos]) {
			p.pos++
		}
		name := p.input[start:p.pos]
		p.skipSpace()
		if p.peek() != '(' {
			return nil, fmt.Errorf("%w: bare identifier %q (field references use {%s})", ErrParse, name, name)
		}
		p.pos++
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return callNode{name: name, args: args}, nil

	default:
		return nil, fmt.Errorf("%w: unexpected %q at position %d", ErrParse, c, p.pos)
	}
}

func (p *parser) parseArgs() ([]Node, error) {
	var args []Node
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
		return args, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return args, nil
		default:
			return nil, fmt.Errorf("%w: expected ',' or ')' in argument list", ErrParse)
		}
	}
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
