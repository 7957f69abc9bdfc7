package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// maxDepth bounds recursion on deeply nested input
const maxDepth = 200

// keywords are reserved words that never resolve as identifiers. Those without a
// grammar rule of their own are rejected when they appear.
var keywords = map[string]bool{
	"True": true, "False": true, "None": true,
	"and": true, "or": true, "not": true, "if": true, "else": true, "in": true, "is": true,
	"as": true, "assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "except": true, "finally": true,
	"for": true, "from": true, "global": true, "import": true, "lambda": true, "nonlocal": true,
	"pass": true, "raise": true, "return": true, "try": true, "while": true, "with": true, "yield": true,
}

// IsKeyword reports whether name is a reserved word
func IsKeyword(name string) bool {
	return keywords[name]
}

var augOps = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "//=": "//", "%=": "%", "**=": "**",
}

// parser parses a single statement into an AST
type parser struct {
	src     string
	lexer   *lexer
	current token
	depth   int
}

func newParser(input string) (*parser, error) {
	p := &parser{src: input, lexer: newLexer(input)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lexer.nextToken()
	if err != nil {
		return err
	}
	p.current = tok
	return nil
}

func (p *parser) isOp(op string) bool {
	return p.current.typ == tokenOp && p.current.value == op
}

func (p *parser) isKeyword(kw string) bool {
	return p.current.typ == tokenName && p.current.value == kw
}

func (p *parser) expectOp(op string) error {
	if !p.isOp(op) {
		return p.errorf("expected '%s', got %s", op, p.describe())
	}
	return p.advance()
}

func (p *parser) describe() string {
	if p.current.typ == tokenEOF {
		return "end of input"
	}
	return fmt.Sprintf("'%s'", p.current.value)
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return syntaxError(p.src, p.current.pos, format, args...)
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return p.errorf("expression nested too deeply")
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

// Parse parses a single statement: "name = expr", "name op= expr" or a bare expression
func Parse(src string) (Statement, error) {
	if strings.TrimSpace(src) == "" {
		return nil, syntaxError(src, -1, "empty expression")
	}

	p, err := newParser(src)
	if err != nil {
		return nil, err
	}

	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	if p.current.typ != tokenEOF {
		return nil, p.errorf("unexpected token %s after statement", p.describe())
	}
	return stmt, nil
}

// ParseExpr parses a right-hand side expression
func ParseExpr(src string) (Node, error) {
	if strings.TrimSpace(src) == "" {
		return nil, syntaxError(src, -1, "empty expression")
	}

	p, err := newParser(src)
	if err != nil {
		return nil, err
	}

	node, err := p.parseTestList()
	if err != nil {
		return nil, err
	}

	if p.current.typ != tokenEOF {
		return nil, p.errorf("unexpected token %s after expression", p.describe())
	}
	return node, nil
}

func (p *parser) parseStatement() (Statement, error) {
	start := p.current.pos
	left, err := p.parseTestList()
	if err != nil {
		return nil, err
	}

	if p.isOp("=") {
		target, ok := left.(Name)
		if !ok {
			return nil, syntaxError(p.src, start, "cannot assign to %s", Format(left))
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		value, err := p.parseTestList()
		if err != nil {
			return nil, err
		}
		if p.isOp("=") {
			return nil, p.errorf("chained assignment is not allowed")
		}
		return Assign{Target: target.ID, Value: value}, nil
	}

	if p.current.typ == tokenOp {
		if op, ok := augOps[p.current.value]; ok {
			target, ok := left.(Name)
			if !ok {
				return nil, syntaxError(p.src, start, "cannot assign to %s", Format(left))
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			value, err := p.parseTestList()
			if err != nil {
				return nil, err
			}
			return AugAssign{Target: target.ID, Op: op, Value: value}, nil
		}
	}

	return ExprStmt{Value: left}, nil
}

// parseTestList parses one expression or an unparenthesized tuple
func (p *parser) parseTestList() (Node, error) {
	first, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if !p.isOp(",") {
		return first, nil
	}

	elems := []Node{first}
	for p.isOp(",") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if !p.startsExpr() {
			break
		}
		next, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		elems = append(elems, next)
	}
	return TupleExpr{Elems: elems}, nil
}

// startsExpr reports whether the current token can begin an expression
func (p *parser) startsExpr() bool {
	switch p.current.typ {
	case tokenInt, tokenFloat, tokenString:
		return true
	case tokenName:
		return !keywords[p.current.value] || p.current.value == "not" ||
			p.current.value == "True" || p.current.value == "False" || p.current.value == "None"
	case tokenOp:
		switch p.current.value {
		case "(", "[", "{", "-", "+":
			return true
		}
	}
	return false
}

// parseTest parses a conditional expression: body if test else orelse
func (p *parser) parseTest() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	body, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("if") {
		return body, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	test, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("else") {
		return nil, p.errorf("expected 'else', got %s", p.describe())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	orElse, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	return Conditional{Test: test, Body: body, OrElse: orElse}, nil
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BoolOp{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = BoolOp{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Node, error) {
	if !p.isKeyword("not") {
		return p.parseComparison()
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if err := p.advance(); err != nil {
		return nil, err
	}
	operand, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return Unary{Op: "not", Operand: operand}, nil
}

// compOp returns the comparison operator at the current position, consuming it
func (p *parser) compOp() (string, bool, error) {
	switch {
	case p.current.typ == tokenOp:
		switch p.current.value {
		case "==", "!=", "<", "<=", ">", ">=":
			op := p.current.value
			return op, true, p.advance()
		}
	case p.isKeyword("in"):
		return "in", true, p.advance()
	case p.isKeyword("not"):
		if err := p.advance(); err != nil {
			return "", false, err
		}
		if !p.isKeyword("in") {
			return "", false, p.errorf("expected 'in' after 'not', got %s", p.describe())
		}
		return "not in", true, p.advance()
	case p.isKeyword("is"):
		if err := p.advance(); err != nil {
			return "", false, err
		}
		if p.isKeyword("not") {
			return "is not", true, p.advance()
		}
		return "is", true, nil
	}
	return "", false, nil
}

func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseArith()
	if err != nil {
		return nil, err
	}

	var ops []string
	var comparators []Node
	for {
		op, ok, err := p.compOp()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		right, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		comparators = append(comparators, right)
	}

	if len(ops) == 0 {
		return left, nil
	}
	return Compare{Left: left, Ops: ops, Comparators: comparators}, nil
}

func (p *parser) parseArith() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.current.value
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("//") || p.isOp("%") {
		op := p.current.value
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseFactor() (Node, error) {
	if !p.isOp("-") && !p.isOp("+") {
		return p.parsePower()
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	op := p.current.value
	if err := p.advance(); err != nil {
		return nil, err
	}
	operand, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	return Unary{Op: op, Operand: operand}, nil
}

// parsePower parses base ** exponent; the exponent may carry a unary sign
func (p *parser) parsePower() (Node, error) {
	base, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if !p.isOp("**") {
		return base, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	exp, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	return Binary{Op: "**", Left: base, Right: exp}, nil
}

func (p *parser) parsePostfix() (Node, error) {
	node, err := p.parseAtom()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.isOp("["):
			if err := p.advance(); err != nil {
				return nil, err
			}
			node, err = p.parseSubscript(node)
			if err != nil {
				return nil, err
			}
		case p.isOp("."):
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.current.typ != tokenName || keywords[p.current.value] {
				return nil, p.errorf("expected attribute name after '.', got %s", p.describe())
			}
			node = Attribute{Target: node, Name: p.current.value}
			if err := p.advance(); err != nil {
				return nil, err
			}
		case p.isOp("("):
			return nil, p.errorf("function calls are not allowed")
		default:
			return node, nil
		}
	}
}

// parseSubscript parses the inside of target[...] after the opening bracket
func (p *parser) parseSubscript(target Node) (Node, error) {
	var lo Node
	if !p.isOp(":") {
		index, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		if p.isOp("]") {
			return Subscript{Target: target, Index: index}, p.advance()
		}
		lo = index
	}

	if err := p.expectOp(":"); err != nil {
		return nil, err
	}

	var hi Node
	if !p.isOp("]") {
		var err error
		hi, err = p.parseTest()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return Slice{Target: target, Lo: lo, Hi: hi}, nil
}

func (p *parser) parseAtom() (Node, error) {
	tok := p.current

	switch tok.typ {
	case tokenInt:
		i, err := strconv.ParseInt(tok.value, 10, 64)
		if err != nil {
			return nil, p.errorf("integer literal %s out of range", tok.value)
		}
		return Literal{Value: Int(i)}, p.advance()

	case tokenFloat:
		f, err := strconv.ParseFloat(tok.value, 64)
		if err != nil {
			return nil, p.errorf("invalid float literal %s", tok.value)
		}
		return Literal{Value: Float(f)}, p.advance()

	case tokenString:
		// adjacent literals concatenate
		var sb strings.Builder
		for p.current.typ == tokenString {
			sb.WriteString(p.current.value)
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		return Literal{Value: String(sb.String())}, nil

	case tokenName:
		switch tok.value {
		case "True":
			return Literal{Value: Bool(true)}, p.advance()
		case "False":
			return Literal{Value: Bool(false)}, p.advance()
		case "None":
			return Literal{Value: None()}, p.advance()
		}
		if keywords[tok.value] {
			return nil, p.errorf("'%s' is not allowed here", tok.value)
		}
		return Name{ID: tok.value}, p.advance()

	case tokenOp:
		switch tok.value {
		case "(":
			return p.parseParen()
		case "[":
			return p.parseList()
		case "{":
			return p.parseBrace()
		}
	}

	return nil, p.errorf("expected operand, got %s", p.describe())
}

// parseParen parses (), (x), (x,) and (x, y, ...)
func (p *parser) parseParen() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.isOp(")") {
		return TupleExpr{}, p.advance()
	}

	first, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if p.isOp(")") {
		return first, p.advance()
	}

	elems := []Node{first}
	for p.isOp(",") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.isOp(")") {
			break
		}
		next, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		elems = append(elems, next)
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return TupleExpr{Elems: elems}, nil
}

func (p *parser) parseList() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if err := p.advance(); err != nil {
		return nil, err
	}
	elems, err := p.parseElems("]")
	if err != nil {
		return nil, err
	}
	return ListExpr{Elems: elems}, nil
}

// parseElems parses a comma separated sequence up to and including the closing token
func (p *parser) parseElems(closing string) ([]Node, error) {
	var elems []Node
	for !p.isOp(closing) {
		elem, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		if !p.isOp(",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.expectOp(closing); err != nil {
		return nil, err
	}
	return elems, nil
}

// parseBrace parses {} as an empty dict, {k: v, ...} as a dict and {a, b} as a set
func (p *parser) parseBrace() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.isOp("}") {
		return DictExpr{}, p.advance()
	}

	first, err := p.parseTest()
	if err != nil {
		return nil, err
	}

	if !p.isOp(":") {
		elems := []Node{first}
		if p.isOp(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			rest, err := p.parseElems("}")
			if err != nil {
				return nil, err
			}
			return SetExpr{Elems: append(elems, rest...)}, nil
		}
		if err := p.expectOp("}"); err != nil {
			return nil, err
		}
		return SetExpr{Elems: elems}, nil
	}

	dict := DictExpr{}
	key := first
	for {
		if err := p.expectOp(":"); err != nil {
			return nil, err
		}
		value, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		dict.Keys = append(dict.Keys, key)
		dict.Values = append(dict.Values, value)

		if !p.isOp(",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.isOp("}") {
			break
		}
		key, err = p.parseTest()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return dict, nil
}

// Format renders a node back to source form
func Format(node Node) string {
	switch n := node.(type) {
	case Literal:
		return n.Value.Repr()
	case Name:
		return n.ID
	case Unary:
		if n.Op == "not" {
			return "not " + Format(n.Operand)
		}
		return n.Op + Format(n.Operand)
	case Binary:
		return fmt.Sprintf("(%s %s %s)", Format(n.Left), n.Op, Format(n.Right))
	case BoolOp:
		return fmt.Sprintf("(%s %s %s)", Format(n.Left), n.Op, Format(n.Right))
	case Compare:
		var sb strings.Builder
		sb.WriteString(Format(n.Left))
		for idx, op := range n.Ops {
			sb.WriteString(" " + op + " " + Format(n.Comparators[idx]))
		}
		return sb.String()
	case Conditional:
		return fmt.Sprintf("(%s if %s else %s)", Format(n.Body), Format(n.Test), Format(n.OrElse))
	case Subscript:
		return fmt.Sprintf("%s[%s]", Format(n.Target), Format(n.Index))
	case Slice:
		lo, hi := "", ""
		if n.Lo != nil {
			lo = Format(n.Lo)
		}
		if n.Hi != nil {
			hi = Format(n.Hi)
		}
		return fmt.Sprintf("%s[%s:%s]", Format(n.Target), lo, hi)
	case Attribute:
		return Format(n.Target) + "." + n.Name
	case ListExpr:
		return "[" + formatList(n.Elems) + "]"
	case TupleExpr:
		if len(n.Elems) == 1 {
			return "(" + Format(n.Elems[0]) + ",)"
		}
		return "(" + formatList(n.Elems) + ")"
	case SetExpr:
		return "{" + formatList(n.Elems) + "}"
	case DictExpr:
		parts := make([]string, len(n.Keys))
		for idx := range n.Keys {
			parts[idx] = Format(n.Keys[idx]) + ": " + Format(n.Values[idx])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "<unknown>"
	}
}

func formatList(nodes []Node) string {
	parts := make([]string, len(nodes))
	for idx, n := range nodes {
		parts[idx] = Format(n)
	}
	return strings.Join(parts, ", ")
}
