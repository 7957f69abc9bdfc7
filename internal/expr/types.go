package expr

// Node represents an expression in the AST. Only the node types declared in
// this file exist, so the whitelist is enforced by the parser's construction.
type Node interface {
	isNode()
}

// Statement is a parsed top-level fragment: an assignment or a bare expression
type Statement interface {
	isStatement()
}

// Literal is a constant value (number, string, True, False, None)
type Literal struct {
	Value Value
}

func (Literal) isNode() {}

// Name is a bare identifier. Unbound names evaluate to a string equal to the name.
type Name struct {
	ID string
}

func (Name) isNode() {}

// Unary is a prefix operation: "not", "-" or "+"
type Unary struct {
	Op      string
	Operand Node
}

func (Unary) isNode() {}

// Binary is an arithmetic operation: + - * / // % **
type Binary struct {
	Op    string
	Left  Node
	Right Node
}

func (Binary) isNode() {}

// BoolOp is a short-circuit "and" / "or"
type BoolOp struct {
	Op    string
	Left  Node
	Right Node
}

func (BoolOp) isNode() {}

// Compare is a possibly chained comparison: a < b <= c
type Compare struct {
	Left        Node
	Ops         []string
	Comparators []Node
}

func (Compare) isNode() {}

// Conditional is "Body if Test else OrElse"
type Conditional struct {
	Test   Node
	Body   Node
	OrElse Node
}

func (Conditional) isNode() {}

// Subscript is target[index]
type Subscript struct {
	Target Node
	Index  Node
}

func (Subscript) isNode() {}

// Slice is target[lo:hi]; Lo and Hi may be nil
type Slice struct {
	Target Node
	Lo     Node
	Hi     Node
}

func (Slice) isNode() {}

// Attribute is target.name
type Attribute struct {
	Target Node
	Name   string
}

func (Attribute) isNode() {}

// ListExpr is [a, b, ...]
type ListExpr struct {
	Elems []Node
}

func (ListExpr) isNode() {}

// TupleExpr is (a, b, ...) or a bare a, b
type TupleExpr struct {
	Elems []Node
}

func (TupleExpr) isNode() {}

// SetExpr is {a, b, ...}
type SetExpr struct {
	Elems []Node
}

func (SetExpr) isNode() {}

// DictExpr is {k: v, ...}
type DictExpr struct {
	Keys   []Node
	Values []Node
}

func (DictExpr) isNode() {}

// Assign binds Target to Value
type Assign struct {
	Target string
	Value  Node
}

func (Assign) isStatement() {}

// AugAssign is Target op= Value; Op is the arithmetic operator without "="
type AugAssign struct {
	Target string
	Op     string
	Value  Node
}

func (AugAssign) isStatement() {}

// ExprStmt is a bare expression evaluated for nothing
type ExprStmt struct {
	Value Node
}

func (ExprStmt) isStatement() {}
