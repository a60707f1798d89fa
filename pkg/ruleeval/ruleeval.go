// Package ruleeval evaluates boolean rule expressions over a map of named
// values. Rules come from editorial tables and are untrusted: the evaluator
// supports only arithmetic, comparisons and boolean logic. There are no
// function calls, no attribute access, no assignments and no loops, so a
// rule can neither touch process state nor fail to terminate.
//
// Grammar (lowest precedence first):
//
//	expr    = or
//	or      = and { "or" and }
//	and     = not { "and" not }
//	not     = "not" not | cmp
//	cmp     = sum [ ("==" | "!=" | "<" | "<=" | ">" | ">=") sum ]
//	sum     = term { ("+" | "-") term }
//	term    = unary { ("*" | "/" | "%") unary }
//	unary   = "-" unary | primary
//	primary = NUMBER | STRING | "true" | "false" | IDENT | "(" expr ")"
//
// Numbers are float64. Identifiers resolve against the variable map;
// an unknown identifier is an evaluation error, not a silent false.
package ruleeval

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrSyntax reports a malformed expression.
	ErrSyntax = errors.New("syntax error")

	// ErrUnknownIdent reports an identifier missing from the variable map.
	ErrUnknownIdent = errors.New("unknown identifier")

	// ErrType reports an operation applied to incompatible values.
	ErrType = errors.New("type error")

	// ErrDivisionByZero reports division or modulo by zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrNotBoolean reports a rule whose result is not a boolean.
	ErrNotBoolean = errors.New("rule did not evaluate to a boolean")
)

// EvalError wraps any failure of a specific rule, keeping the offending
// expression for diagnostics.
type EvalError struct {
	Expr  string
	Cause error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluating rule %q: %v", e.Expr, e.Cause)
}

func (e *EvalError) Unwrap() error { return e.Cause }

// ══════════════════════════════════════════════════════════════════════════════
// PUBLIC API
// ══════════════════════════════════════════════════════════════════════════════

// Vars is the evaluation namespace: identifier -> value.
// Supported value types are numbers (int, int64, float64), strings and bools.
type Vars map[string]any

// Rule is a parsed, reusable expression.
type Rule struct {
	src  string
	root node
}

// Parse compiles an expression. The returned Rule is immutable and safe
// for concurrent use.
func Parse(src string) (*Rule, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, &EvalError{Expr: src, Cause: err}
	}
	p := &parser{src: src, toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return nil, &EvalError{Expr: src, Cause: err}
	}
	if p.pos != len(p.toks) {
		return nil, &EvalError{
			Expr:  src,
			Cause: fmt.Errorf("%w: unexpected %q", ErrSyntax, p.toks[p.pos].text),
		}
	}
	return &Rule{src: src, root: root}, nil
}

// Eval evaluates the rule against vars. The result must be a boolean.
func (r *Rule) Eval(vars Vars) (bool, error) {
	v, err := r.root.eval(vars)
	if err != nil {
		return false, &EvalError{Expr: r.src, Cause: err}
	}
	b, ok := v.(bool)
	if !ok {
		return false, &EvalError{
			Expr:  r.src,
			Cause: fmt.Errorf("%w: got %T", ErrNotBoolean, v),
		}
	}
	return b, nil
}

// String returns the original expression source.
func (r *Rule) String() string { return r.src }

// Eval is a convenience for one-shot evaluation: parse then evaluate.
func Eval(src string, vars Vars) (bool, error) {
	r, err := Parse(src)
	if err != nil {
		return false, err
	}
	return r.Eval(vars)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEXER
// ══════════════════════════════════════════════════════════════════════════════

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokIdent
	tokOp    // == != < <= > >= + - * / %
	tokParen // ( )
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func lex(src string) ([]token, error) {
	var toks []token
	runes := []rune(src)
	i := 0

	for i < len(runes) {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++

		case r == '(' || r == ')':
			toks = append(toks, token{kind: tokParen, text: string(r)})
			i++

		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("%w: unterminated string", ErrSyntax)
			}
			toks = append(toks, token{kind: tokString, text: string(runes[i+1 : j])})
			i = j + 1

		case unicode.IsDigit(r) || (r == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			text := string(runes[i:j])
			num, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q", ErrSyntax, text)
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: num})
			i = j

		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: string(runes[i:j])})
			i = j

		case strings.ContainsRune("=!<>+-*/%", r):
			if i+1 < len(runes) && runes[i+1] == '=' &&
				(r == '=' || r == '!' || r == '<' || r == '>') {
				toks = append(toks, token{kind: tokOp, text: string(runes[i : i+2])})
				i += 2
				break
			}
			if r == '=' || r == '!' {
				return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, string(r))
			}
			toks = append(toks, token{kind: tokOp, text: string(r)})
			i++

		default:
			return nil, fmt.Errorf("%w: unexpected character %q", ErrSyntax, string(r))
		}
	}

	return toks, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PARSER (recursive descent)
// ══════════════════════════════════════════════════════════════════════════════

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) matchIdent(word string) bool {
	t, ok := p.peek()
	if ok && t.kind == tokIdent && t.text == word {
		p.pos++
		return true
	}
	return false
}

func (p *parser) matchOp(ops ...string) (string, bool) {
	t, ok := p.peek()
	if !ok || t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseExpr() (node, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.matchIdent("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicNode{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.matchIdent("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &logicNode{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.matchIdent("not") {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{inner: inner}, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if op, ok := p.matchOp("==", "!=", "<=", ">=", "<", ">"); ok {
		right, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		return &cmpNode{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseSum() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &arithNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp("*", "/", "%")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &arithNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if _, ok := p.matchOp("-"); ok {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negNode{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	}

	switch t.kind {
	case tokNumber:
		p.pos++
		return &numberNode{value: t.num}, nil

	case tokString:
		p.pos++
		return &stringNode{value: t.text}, nil

	case tokIdent:
		p.pos++
		switch t.text {
		case "true", "True":
			return &boolNode{value: true}, nil
		case "false", "False":
			return &boolNode{value: false}, nil
		case "and", "or", "not":
			return nil, fmt.Errorf("%w: unexpected keyword %q", ErrSyntax, t.text)
		}
		return &identNode{name: t.text}, nil

	case tokParen:
		if t.text != "(" {
			return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, t.text)
		}
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != tokParen || closing.text != ")" {
			return nil, fmt.Errorf("%w: missing closing parenthesis", ErrSyntax)
		}
		p.pos++
		return inner, nil

	default:
		return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, t.text)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATOR (tree walk)
// ══════════════════════════════════════════════════════════════════════════════

type node interface {
	eval(vars Vars) (any, error)
}

type numberNode struct{ value float64 }

func (n *numberNode) eval(Vars) (any, error) { return n.value, nil }

type stringNode struct{ value string }

func (n *stringNode) eval(Vars) (any, error) { return n.value, nil }

type boolNode struct{ value bool }

func (n *boolNode) eval(Vars) (any, error) { return n.value, nil }

type identNode struct{ name string }

func (n *identNode) eval(vars Vars) (any, error) {
	v, ok := vars[n.name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIdent, n.name)
	}
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float64, string, bool:
		return t, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value type %T for %q", ErrType, v, n.name)
	}
}

type negNode struct{ inner node }

func (n *negNode) eval(vars Vars) (any, error) {
	v, err := n.inner.eval(vars)
	if err != nil {
		return nil, err
	}
	f, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("%w: cannot negate %T", ErrType, v)
	}
	return -f, nil
}

type notNode struct{ inner node }

func (n *notNode) eval(vars Vars) (any, error) {
	v, err := n.inner.eval(vars)
	if err != nil {
		return nil, err
	}
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: 'not' requires a boolean, got %T", ErrType, v)
	}
	return !b, nil
}

type logicNode struct {
	op          string
	left, right node
}

// eval short-circuits: the right side is untouched when the left side
// already decides the result.
func (n *logicNode) eval(vars Vars) (any, error) {
	lv, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}
	lb, ok := lv.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: %q requires booleans, got %T", ErrType, n.op, lv)
	}

	if n.op == "or" && lb {
		return true, nil
	}
	if n.op == "and" && !lb {
		return false, nil
	}

	rv, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}
	rb, ok := rv.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: %q requires booleans, got %T", ErrType, n.op, rv)
	}
	return rb, nil
}

type cmpNode struct {
	op          string
	left, right node
}

func (n *cmpNode) eval(vars Vars) (any, error) {
	lv, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}
	rv, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}

	if lf, lok := lv.(float64); lok {
		rf, rok := rv.(float64)
		if !rok {
			return nil, fmt.Errorf("%w: cannot compare number with %T", ErrType, rv)
		}
		return compareNumbers(n.op, lf, rf)
	}

	if ls, lok := lv.(string); lok {
		rs, rok := rv.(string)
		if !rok {
			return nil, fmt.Errorf("%w: cannot compare string with %T", ErrType, rv)
		}
		return compareStrings(n.op, ls, rs)
	}

	if lb, lok := lv.(bool); lok {
		rb, rok := rv.(bool)
		if !rok {
			return nil, fmt.Errorf("%w: cannot compare bool with %T", ErrType, rv)
		}
		switch n.op {
		case "==":
			return lb == rb, nil
		case "!=":
			return lb != rb, nil
		default:
			return nil, fmt.Errorf("%w: %q is not defined for booleans", ErrType, n.op)
		}
	}

	return nil, fmt.Errorf("%w: cannot compare %T", ErrType, lv)
}

func compareNumbers(op string, l, r float64) (bool, error) {
	switch op {
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	}
	return false, fmt.Errorf("%w: unknown comparison %q", ErrSyntax, op)
}

func compareStrings(op string, l, r string) (bool, error) {
	switch op {
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	}
	return false, fmt.Errorf("%w: unknown comparison %q", ErrSyntax, op)
}

type arithNode struct {
	op          string
	left, right node
}

func (n *arithNode) eval(vars Vars) (any, error) {
	lv, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}
	rv, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}

	lf, lok := lv.(float64)
	rf, rok := rv.(float64)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: %q requires numbers, got %T and %T", ErrType, n.op, lv, rv)
	}

	switch n.op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, ErrDivisionByZero
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, ErrDivisionByZero
		}
		return math.Mod(lf, rf), nil
	}
	return nil, fmt.Errorf("%w: unknown operator %q", ErrSyntax, n.op)
}
