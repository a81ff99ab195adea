package compiler

// ---------------------------------------------------------------------------
// AST: abstract syntax tree for script source
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Position
	node() // marker method
}

type base struct {
	P Position
}

func (b base) Pos() Position { return b.P }
func (base) node()           {}

// Program is a parsed source file.
type Program struct {
	Body   []Node
	Locals []string // top-level local variables in first-assignment order
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

// IntLiteral represents an integer literal.
type IntLiteral struct {
	base
	Value int64
}

// FloatLiteral represents a floating-point literal.
type FloatLiteral struct {
	base
	Value float64
}

// StringLiteral represents a string literal.
type StringLiteral struct {
	base
	Value string
}

// SymbolLiteral represents :name.
type SymbolLiteral struct {
	base
	Name string
}

// ArrayLiteral represents [a, b, c].
type ArrayLiteral struct {
	base
	Elems []Node
}

// NilLiteral, TrueLiteral, FalseLiteral and SelfNode are the pseudo-variables.
type (
	NilLiteral   struct{ base }
	TrueLiteral  struct{ base }
	FalseLiteral struct{ base }
	SelfNode     struct{ base }
)

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

// LocalVar reads a local variable or parameter.
type LocalVar struct {
	base
	Name string
}

// IvarRef reads @name on self.
type IvarRef struct {
	base
	Name string
}

// GlobalRef reads $name.
type GlobalRef struct {
	base
	Name string
}

// ConstRef reads a constant.
type ConstRef struct {
	base
	Name string
}

// Assign stores Value into Target, which is a LocalVar, IvarRef, GlobalRef,
// ConstRef or IndexExpr.
type Assign struct {
	base
	Target Node
	Value  Node
}

// ---------------------------------------------------------------------------
// Calls and operators
// ---------------------------------------------------------------------------

// Call sends Name to Recv. A nil Recv sends to self.
type Call struct {
	base
	Recv Node
	Name string
	Args []Node
}

// IndexExpr represents recv[index].
type IndexExpr struct {
	base
	Recv  Node
	Index Node
}

// BinaryOp is an arithmetic or comparison operator.
type BinaryOp struct {
	base
	Op    string
	Left  Node
	Right Node
}

// NotExpr is !expr or not expr.
type NotExpr struct {
	base
	Expr Node
}

// NegExpr is unary minus on a non-literal.
type NegExpr struct {
	base
	Expr Node
}

// AndExpr is && or and.
type AndExpr struct {
	base
	Left, Right Node
}

// OrExpr is || or or.
type OrExpr struct {
	base
	Left, Right Node
}

// ---------------------------------------------------------------------------
// Control flow and definitions
// ---------------------------------------------------------------------------

// IfExpr covers if, elsif chains and unless (with Then and Else swapped by
// the parser). A nil Else evaluates to nil.
type IfExpr struct {
	base
	Cond Node
	Then []Node
	Else []Node
}

// WhileExpr loops while Cond is truthy, or until it is when Until is set.
// The loop evaluates to nil.
type WhileExpr struct {
	base
	Cond  Node
	Body  []Node
	Until bool
}

// ReturnExpr returns from the enclosing method or unit. Value may be nil.
type ReturnExpr struct {
	base
	Value Node
}

// DefExpr defines a method on the target class and evaluates to its name.
type DefExpr struct {
	base
	Name   string
	Params []string
	Locals []string // params first, then body locals
	Body   []Node
}

// SeqExpr evaluates Body in order and yields the last value, as in
// (a; b).
type SeqExpr struct {
	base
	Body []Node
}
