package expr

import (
	"math"
	"strings"
)

// Scope is a read-only view of bound names
type Scope interface {
	Lookup(name string) (Value, bool)
}

// Env is a mutable set of bindings that statements write into
type Env interface {
	Scope
	Bind(name string, v Value)
}

// Vars is a plain map-backed Env
type Vars map[string]Value

// Lookup returns the value bound to name
func (v Vars) Lookup(name string) (Value, bool) {
	val, ok := v[name]
	return val, ok
}

// Bind binds name to val
func (v Vars) Bind(name string, val Value) {
	v[name] = val
}

// Eval parses and evaluates a right-hand side expression against scope
func Eval(src string, scope Scope) (Value, error) {
	node, err := ParseExpr(src)
	if err != nil {
		return Value{}, err
	}
	val, err := EvalNode(node, scope)
	if err != nil {
		return Value{}, withSource(src, err)
	}
	return val, nil
}

// Exec parses and executes a single statement against env. Assignments bind their
// target; a bare expression is evaluated and discarded. It returns the bound name,
// or "" for a bare expression.
func Exec(src string, env Env) (string, error) {
	stmt, err := Parse(src)
	if err != nil {
		return "", err
	}
	name, err := ExecStatement(stmt, env)
	if err != nil {
		return "", withSource(src, err)
	}
	return name, nil
}

// ExecStatement executes an already parsed statement against env
func ExecStatement(stmt Statement, env Env) (string, error) {
	switch s := stmt.(type) {
	case Assign:
		val, err := EvalNode(s.Value, env)
		if err != nil {
			return "", err
		}
		env.Bind(s.Target, val)
		return s.Target, nil

	case AugAssign:
		current, ok := env.Lookup(s.Target)
		if !ok {
			return "", evalErrorf("name '%s' is not bound", s.Target)
		}
		rhs, err := EvalNode(s.Value, env)
		if err != nil {
			return "", err
		}
		val, err := binary(s.Op, current, rhs)
		if err != nil {
			return "", err
		}
		env.Bind(s.Target, val)
		return s.Target, nil

	case ExprStmt:
		_, err := EvalNode(s.Value, env)
		return "", err

	default:
		return "", evalErrorf("unsupported statement")
	}
}

// EvalNode evaluates an AST node against scope
func EvalNode(node Node, scope Scope) (Value, error) {
	switch n := node.(type) {
	case Literal:
		return n.Value, nil

	case Name:
		return resolveName(n.ID, scope), nil

	case Unary:
		operand, err := EvalNode(n.Operand, scope)
		if err != nil {
			return Value{}, err
		}
		return unary(n.Op, operand)

	case Binary:
		left, err := EvalNode(n.Left, scope)
		if err != nil {
			return Value{}, err
		}
		right, err := EvalNode(n.Right, scope)
		if err != nil {
			return Value{}, err
		}
		return binary(n.Op, left, right)

	case BoolOp:
		left, err := EvalNode(n.Left, scope)
		if err != nil {
			return Value{}, err
		}
		// and/or short-circuit and yield an operand, not a coerced bool
		if n.Op == "and" && !left.Truthy() {
			return left, nil
		}
		if n.Op == "or" && left.Truthy() {
			return left, nil
		}
		return EvalNode(n.Right, scope)

	case Compare:
		return evalCompare(n, scope)

	case Conditional:
		test, err := EvalNode(n.Test, scope)
		if err != nil {
			return Value{}, err
		}
		if test.Truthy() {
			return EvalNode(n.Body, scope)
		}
		return EvalNode(n.OrElse, scope)

	case Subscript:
		target, err := EvalNode(n.Target, scope)
		if err != nil {
			return Value{}, err
		}
		index, err := EvalNode(n.Index, scope)
		if err != nil {
			return Value{}, err
		}
		return subscript(target, index)

	case Slice:
		return evalSlice(n, scope)

	case Attribute:
		target, err := EvalNode(n.Target, scope)
		if err != nil {
			return Value{}, err
		}
		return attribute(target, n.Name)

	case ListExpr:
		items, err := evalAll(n.Elems, scope)
		if err != nil {
			return Value{}, err
		}
		return List(items...), nil

	case TupleExpr:
		items, err := evalAll(n.Elems, scope)
		if err != nil {
			return Value{}, err
		}
		return Tuple(items...), nil

	case SetExpr:
		items, err := evalAll(n.Elems, scope)
		if err != nil {
			return Value{}, err
		}
		for _, it := range items {
			if !hashable(it) {
				return Value{}, evalErrorf("unhashable type: '%s'", it.Kind())
			}
		}
		return Set(items...), nil

	case DictExpr:
		keys, err := evalAll(n.Keys, scope)
		if err != nil {
			return Value{}, err
		}
		for _, k := range keys {
			if !hashable(k) {
				return Value{}, evalErrorf("unhashable type: '%s'", k.Kind())
			}
		}
		values, err := evalAll(n.Values, scope)
		if err != nil {
			return Value{}, err
		}
		return Dict(keys, values), nil

	default:
		return Value{}, evalErrorf("unsupported expression")
	}
}

// resolveName looks name up in scope; an unbound name is a symbolic constant
// and evaluates to a string spelled like the name itself.
func resolveName(name string, scope Scope) Value {
	if scope != nil {
		if val, ok := scope.Lookup(name); ok {
			return val
		}
	}
	return String(name)
}

func evalAll(nodes []Node, scope Scope) ([]Value, error) {
	out := make([]Value, 0, len(nodes))
	for _, n := range nodes {
		val, err := EvalNode(n, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

func hashable(v Value) bool {
	switch v.Kind() {
	case KindList, KindSet, KindDict:
		return false
	case KindTuple:
		for _, it := range v.items {
			if !hashable(it) {
				return false
			}
		}
	}
	return true
}

func evalCompare(n Compare, scope Scope) (Value, error) {
	left, err := EvalNode(n.Left, scope)
	if err != nil {
		return Value{}, err
	}
	for idx, op := range n.Ops {
		right, err := EvalNode(n.Comparators[idx], scope)
		if err != nil {
			return Value{}, err
		}
		ok, err := compare(op, left, right)
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return Bool(false), nil
		}
		left = right
	}
	return Bool(true), nil
}

func evalSlice(n Slice, scope Scope) (Value, error) {
	target, err := EvalNode(n.Target, scope)
	if err != nil {
		return Value{}, err
	}

	length := target.Len()
	lo, hi := 0, length
	if n.Lo != nil {
		v, err := EvalNode(n.Lo, scope)
		if err != nil {
			return Value{}, err
		}
		if lo, err = sliceBound(v, length, 0); err != nil {
			return Value{}, err
		}
	}
	if n.Hi != nil {
		v, err := EvalNode(n.Hi, scope)
		if err != nil {
			return Value{}, err
		}
		if hi, err = sliceBound(v, length, length); err != nil {
			return Value{}, err
		}
	}
	if hi < lo {
		hi = lo
	}

	switch target.Kind() {
	case KindString:
		return String(string([]rune(target.s)[lo:hi])), nil
	case KindList:
		return List(target.items[lo:hi]...), nil
	case KindTuple:
		return Tuple(target.items[lo:hi]...), nil
	}
	return Value{}, evalErrorf("'%s' object is not sliceable", target.Kind())
}

// sliceBound clamps a slice index into [0, length]; None selects def
func sliceBound(v Value, length, def int) (int, error) {
	if v.Kind() == KindNone {
		return def, nil
	}
	if v.Kind() != KindInt && v.Kind() != KindBool {
		return 0, evalErrorf("slice indices must be integers")
	}
	idx := int(toInt(v))
	if idx < 0 {
		idx += length
	}
	if idx < 0 {
		idx = 0
	}
	if idx > length {
		idx = length
	}
	return idx, nil
}

func unary(op string, v Value) (Value, error) {
	switch op {
	case "not":
		return Bool(!v.Truthy()), nil
	case "-":
		switch v.Kind() {
		case KindInt, KindBool:
			n, ok := subInt(0, toInt(v))
			if !ok {
				return Value{}, errIntegerOverflow()
			}
			return Int(n), nil
		case KindFloat:
			return Float(-v.f), nil
		}
	case "+":
		switch v.Kind() {
		case KindInt, KindBool:
			return Int(toInt(v)), nil
		case KindFloat:
			return v, nil
		}
	}
	return Value{}, evalErrorf("bad operand type for unary %s: '%s'", op, v.Kind())
}

func binary(op string, a, b Value) (Value, error) {
	if isNumeric(a.Kind()) && isNumeric(b.Kind()) {
		return arith(op, a, b)
	}

	switch op {
	case "+":
		if a.Kind() == b.Kind() {
			switch a.Kind() {
			case KindString:
				return String(a.s + b.s), nil
			case KindList:
				return List(append(a.Items(), b.items...)...), nil
			case KindTuple:
				return Tuple(append(a.Items(), b.items...)...), nil
			}
		}
	case "*":
		if seq, n, ok := repetition(a, b); ok {
			return repeat(seq, n)
		}
	}
	return Value{}, evalErrorf("unsupported operand type(s) for %s: '%s' and '%s'", op, a.Kind(), b.Kind())
}

// repetition matches sequence * int in either order
func repetition(a, b Value) (Value, int64, bool) {
	isSeq := func(v Value) bool {
		return v.Kind() == KindString || v.Kind() == KindList || v.Kind() == KindTuple
	}
	isCount := func(v Value) bool {
		return v.Kind() == KindInt || v.Kind() == KindBool
	}
	if isSeq(a) && isCount(b) {
		return a, toInt(b), true
	}
	if isCount(a) && isSeq(b) {
		return b, toInt(a), true
	}
	return Value{}, 0, false
}

// maxSequenceLen bounds the bytes of a repeated string or the items of a
// repeated list or tuple
const maxSequenceLen = 1 << 20

func repeat(seq Value, n int64) (Value, error) {
	if n < 0 {
		n = 0
	}
	length := len(seq.items)
	if seq.Kind() == KindString {
		length = len(seq.s)
	}
	if length > 0 && n > int64(maxSequenceLen/length) {
		return Value{}, evalErrorf("repeated sequence is too long")
	}

	switch seq.Kind() {
	case KindString:
		return String(strings.Repeat(seq.s, int(n))), nil
	case KindList, KindTuple:
		items := make([]Value, 0, length*int(n))
		for i := int64(0); i < n; i++ {
			items = append(items, seq.items...)
		}
		if seq.Kind() == KindList {
			return List(items...), nil
		}
		return Tuple(items...), nil
	}
	return seq, nil
}

// arith applies an arithmetic operator to two numbers; bools count as 0/1
func arith(op string, a, b Value) (Value, error) {
	useFloat := a.Kind() == KindFloat || b.Kind() == KindFloat

	if op == "/" {
		if toFloat(b) == 0 {
			return Value{}, evalErrorf("division by zero")
		}
		return Float(toFloat(a) / toFloat(b)), nil
	}

	if useFloat {
		x, y := toFloat(a), toFloat(b)
		switch op {
		case "+":
			return Float(x + y), nil
		case "-":
			return Float(x - y), nil
		case "*":
			return Float(x * y), nil
		case "//":
			if y == 0 {
				return Value{}, evalErrorf("float floor division by zero")
			}
			return Float(math.Floor(x / y)), nil
		case "%":
			if y == 0 {
				return Value{}, evalErrorf("float modulo by zero")
			}
			return Float(x - y*math.Floor(x/y)), nil
		case "**":
			if x == 0 && y < 0 {
				return Value{}, evalErrorf("zero cannot be raised to a negative power")
			}
			return Float(math.Pow(x, y)), nil
		}
		return Value{}, evalErrorf("unsupported operator %s", op)
	}

	x, y := toInt(a), toInt(b)
	var (
		n  int64
		ok = true
	)
	switch op {
	case "+":
		n, ok = addInt(x, y)
	case "-":
		n, ok = subInt(x, y)
	case "*":
		n, ok = mulInt(x, y)
	case "//":
		if y == 0 {
			return Value{}, evalErrorf("integer division by zero")
		}
		if x == math.MinInt64 && y == -1 {
			return Value{}, errIntegerOverflow()
		}
		return Int(floorDiv(x, y)), nil
	case "%":
		if y == 0 {
			return Value{}, evalErrorf("integer modulo by zero")
		}
		return Int(x - y*floorDiv(x, y)), nil
	case "**":
		if y < 0 {
			if x == 0 {
				return Value{}, evalErrorf("zero cannot be raised to a negative power")
			}
			return Float(math.Pow(float64(x), float64(y))), nil
		}
		n, ok = intPow(x, y)
	default:
		return Value{}, evalErrorf("unsupported operator %s", op)
	}
	if !ok {
		return Value{}, errIntegerOverflow()
	}
	return Int(n), nil
}

// Ints are 64-bit; results that do not fit are rejected rather than wrapped
func errIntegerOverflow() error {
	return evalErrorf("integer overflow")
}

func addInt(x, y int64) (int64, bool) {
	sum := x + y
	return sum, (x >= 0) != (y >= 0) || (sum >= 0) == (x >= 0)
}

func subInt(x, y int64) (int64, bool) {
	diff := x - y
	return diff, (x >= 0) == (y >= 0) || (diff >= 0) == (x >= 0)
}

func mulInt(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, true
	}
	if (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
		return 0, false
	}
	product := x * y
	return product, product/y == x
}

func floorDiv(x, y int64) int64 {
	q := x / y
	if (x%y != 0) && ((x < 0) != (y < 0)) {
		q--
	}
	return q
}

func intPow(base, exp int64) (int64, bool) {
	result := int64(1)
	for exp > 0 {
		var ok bool
		if exp&1 == 1 {
			if result, ok = mulInt(result, base); !ok {
				return 0, false
			}
		}
		exp >>= 1
		if exp > 0 {
			if base, ok = mulInt(base, base); !ok {
				return 0, false
			}
		}
	}
	return result, true
}

func compare(op string, a, b Value) (bool, error) {
	switch op {
	case "==":
		return a.Equal(b), nil
	case "!=":
		return !a.Equal(b), nil
	case "is":
		return identical(a, b), nil
	case "is not":
		return !identical(a, b), nil
	case "in":
		return contains(b, a)
	case "not in":
		found, err := contains(b, a)
		return !found, err
	}

	c, err := order(a, b)
	if err != nil {
		return false, evalErrorf("'%s' not supported between instances of '%s' and '%s'", op, a.Kind(), b.Kind())
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, evalErrorf("unsupported comparison %s", op)
}

// identical approximates identity for immutable values: same kind and equal
func identical(a, b Value) bool {
	return a.Kind() == b.Kind() && a.Equal(b)
}

// order returns -1, 0 or 1 for orderable pairs
func order(a, b Value) (int, error) {
	if isNumeric(a.Kind()) && isNumeric(b.Kind()) {
		x, y := toFloat(a), toFloat(b)
		if a.Kind() != KindFloat && b.Kind() != KindFloat {
			xi, yi := toInt(a), toInt(b)
			switch {
			case xi < yi:
				return -1, nil
			case xi > yi:
				return 1, nil
			}
			return 0, nil
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	}

	if a.Kind() != b.Kind() {
		return 0, evalErrorf("unorderable")
	}

	switch a.Kind() {
	case KindString:
		return strings.Compare(a.s, b.s), nil
	case KindList, KindTuple:
		for idx := 0; idx < len(a.items) && idx < len(b.items); idx++ {
			if a.items[idx].Equal(b.items[idx]) {
				continue
			}
			return order(a.items[idx], b.items[idx])
		}
		switch {
		case len(a.items) < len(b.items):
			return -1, nil
		case len(a.items) > len(b.items):
			return 1, nil
		}
		return 0, nil
	}
	return 0, evalErrorf("unorderable")
}

func contains(container, item Value) (bool, error) {
	switch container.Kind() {
	case KindString:
		s, ok := item.AsString()
		if !ok {
			return false, evalErrorf("'in <string>' requires string as left operand, not %s", item.Kind())
		}
		return strings.Contains(container.s, s), nil
	case KindList, KindTuple, KindSet:
		return containsValue(container.items, item), nil
	case KindDict:
		return containsValue(container.keys, item), nil
	}
	return false, evalErrorf("argument of type '%s' is not iterable", container.Kind())
}

func subscript(target, index Value) (Value, error) {
	switch target.Kind() {
	case KindDict:
		pos := indexOf(target.keys, index)
		if pos < 0 {
			return Value{}, evalErrorf("key %s not found", index.Repr())
		}
		return target.items[pos], nil

	case KindList, KindTuple, KindString:
		if index.Kind() != KindInt && index.Kind() != KindBool {
			return Value{}, evalErrorf("%s indices must be integers, not %s", target.Kind(), index.Kind())
		}
		length := target.Len()
		idx := int(toInt(index))
		if idx < 0 {
			idx += length
		}
		if idx < 0 || idx >= length {
			return Value{}, evalErrorf("%s index out of range", target.Kind())
		}
		if target.Kind() == KindString {
			return String(string([]rune(target.s)[idx])), nil
		}
		return target.items[idx], nil
	}
	return Value{}, evalErrorf("'%s' object is not subscriptable", target.Kind())
}

// attribute reads a string-keyed field of a dict
func attribute(target Value, name string) (Value, error) {
	if target.Kind() == KindDict {
		if pos := indexOf(target.keys, String(name)); pos >= 0 {
			return target.items[pos], nil
		}
	}
	return Value{}, evalErrorf("'%s' object has no attribute '%s'", target.Kind(), name)
}
