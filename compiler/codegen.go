package compiler

import (
	"errors"
	"fmt"

	"github.com/chazu/rite/vm"
)

// ---------------------------------------------------------------------------
// Codegen: compile an AST to register bytecode
// ---------------------------------------------------------------------------

// fastOps maps operators with a dedicated arithmetic instruction.
var fastOps = map[string]vm.Opcode{
	"+":  vm.OpAdd,
	"-":  vm.OpSub,
	"*":  vm.OpMul,
	"/":  vm.OpDiv,
	"==": vm.OpEQ,
	"<":  vm.OpLT,
	"<=": vm.OpLE,
	">":  vm.OpGT,
	">=": vm.OpGE,
}

// Compiler turns a parsed program into a batch of units. The first unit is
// the top-level body; method bodies follow their defining unit.
type Compiler struct {
	filename string
	noDebug  bool
	units    []*vm.Irep
	errors   ErrorList
}

// NewCompiler creates a compiler. filename is recorded as debug info unless
// noDebug is set.
func NewCompiler(filename string, noDebug bool) *Compiler {
	return &Compiler{filename: filename, noDebug: noDebug}
}

// Errors returns accumulated compilation errors.
func (c *Compiler) Errors() ErrorList {
	return c.errors
}

func (c *Compiler) errorAt(pos Position, format string, args ...any) {
	if len(c.errors) >= maxErrors {
		return
	}
	c.errors = append(c.errors, &SyntaxError{Filename: c.filename, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// CompileProgram generates the units for prog. The units are not yet part
// of any code table; their Idx fields are positions within the batch.
func (c *Compiler) CompileProgram(prog *Program) ([]*vm.Irep, error) {
	c.units = nil
	top := c.newUnit(prog.Locals)
	dst := top.push(Position{Line: 1})
	top.compileBody(prog.Body, dst)
	top.b.Emit(vm.MkOpA(vm.OpStop, 0))
	top.pop()
	top.finish()

	if err := c.errors.Err(); err != nil {
		return nil, err
	}
	return c.units, nil
}

// ---------------------------------------------------------------------------
// Unit generation
// ---------------------------------------------------------------------------

// unitGen generates one unit. Register 0 holds self, locals follow, and
// temporaries are allocated stack-wise above the locals.
type unitGen struct {
	c      *Compiler
	irep   *vm.Irep
	b      *vm.Builder
	locals map[string]int
	sp     int
	nregs  int
	syms   map[string]int
	pool   map[vm.Literal]int
}

func (c *Compiler) newUnit(locals []string) *unitGen {
	u := &unitGen{
		c:      c,
		irep:   &vm.Irep{Idx: len(c.units), NLocals: len(locals) + 1},
		b:      vm.NewBuilder(),
		locals: make(map[string]int, len(locals)),
		syms:   make(map[string]int),
		pool:   make(map[vm.Literal]int),
	}
	for i, name := range locals {
		u.locals[name] = i + 1
	}
	u.sp = u.irep.NLocals
	u.nregs = u.sp
	c.units = append(c.units, u.irep)
	return u
}

func (u *unitGen) finish() {
	var jr *vm.JumpRangeError
	if errors.As(u.b.Err(), &jr) {
		u.c.errorAt(Position{Line: int(u.b.Lines()[jr.Pos]), Column: 1}, "branch too long")
	}
	u.irep.NRegs = u.nregs
	u.irep.Iseq = u.b.Iseq()
	if !u.c.noDebug {
		u.irep.Filename = u.c.filename
		u.irep.Lines = u.b.Lines()
	}
}

// push allocates a temporary register.
func (u *unitGen) push(pos Position) int {
	r := u.sp
	if r >= vm.MaxArgA {
		u.c.errorAt(pos, "expression too complex (register limit exceeded)")
		return vm.MaxArgA - 1
	}
	u.sp++
	u.nregs = max(u.nregs, u.sp)
	return r
}

func (u *unitGen) pop() {
	if u.sp > u.irep.NLocals {
		u.sp--
	}
}

func (u *unitGen) popTo(sp int) { u.sp = sp }

func (u *unitGen) sym(pos Position, name string, limit int) int {
	if i, ok := u.syms[name]; ok {
		if i > limit {
			u.c.errorAt(pos, "too many symbols in one scope")
			return 0
		}
		return i
	}
	i := len(u.irep.Syms)
	if i > limit {
		u.c.errorAt(pos, "too many symbols in one scope")
		return 0
	}
	u.syms[name] = i
	u.irep.Syms = append(u.irep.Syms, name)
	return i
}

func (u *unitGen) literal(pos Position, lit vm.Literal) int {
	if i, ok := u.pool[lit]; ok {
		return i
	}
	i := len(u.irep.Pool)
	if i > vm.MaxArgBx {
		u.c.errorAt(pos, "too many literals in one scope")
		return 0
	}
	u.pool[lit] = i
	u.irep.Pool = append(u.irep.Pool, lit)
	return i
}

func (u *unitGen) move(dst, src int) {
	if dst != src {
		u.b.Emit(vm.MkOpAB(vm.OpMove, dst, src))
	}
}

// compileBody compiles a statement list, leaving the last value in dst.
func (u *unitGen) compileBody(body []Node, dst int) {
	if len(body) == 0 {
		u.b.Emit(vm.MkOpA(vm.OpLoadNil, dst))
		return
	}
	for i, n := range body {
		if i == len(body)-1 {
			u.compile(n, dst)
			return
		}
		t := u.push(n.Pos())
		u.compile(n, t)
		u.pop()
	}
}

// compile generates code leaving the value of n in dst. Subexpressions use
// fresh temporaries, so dst is written only by the final instruction.
func (u *unitGen) compile(n Node, dst int) {
	pos := n.Pos()
	u.b.SetLine(pos.Line)
	sp := u.sp
	defer u.popTo(sp)

	switch n := n.(type) {
	case *IntLiteral:
		if n.Value >= -vm.MaxArgSBx && n.Value <= vm.MaxArgSBx {
			u.b.Emit(vm.MkOpAsBx(vm.OpLoadI, dst, int(n.Value)))
		} else {
			u.b.Emit(vm.MkOpABx(vm.OpLoadL, dst, u.literal(pos, vm.Literal{Kind: vm.LitInt, Int: n.Value})))
		}
	case *FloatLiteral:
		u.b.Emit(vm.MkOpABx(vm.OpLoadL, dst, u.literal(pos, vm.Literal{Kind: vm.LitFloat, Float: n.Value})))
	case *StringLiteral:
		u.b.Emit(vm.MkOpABx(vm.OpString, dst, u.literal(pos, vm.Literal{Kind: vm.LitString, Str: n.Value})))
	case *SymbolLiteral:
		u.b.Emit(vm.MkOpABx(vm.OpLoadSym, dst, u.sym(pos, n.Name, vm.MaxArgBx)))
	case *ArrayLiteral:
		u.compileArray(n, dst)
	case *NilLiteral:
		u.b.Emit(vm.MkOpA(vm.OpLoadNil, dst))
	case *TrueLiteral:
		u.b.Emit(vm.MkOpA(vm.OpLoadT, dst))
	case *FalseLiteral:
		u.b.Emit(vm.MkOpA(vm.OpLoadF, dst))
	case *SelfNode:
		u.b.Emit(vm.MkOpA(vm.OpLoadSelf, dst))

	case *LocalVar:
		r, ok := u.locals[n.Name]
		if !ok {
			u.c.errorAt(pos, "undefined local variable '%s'", n.Name)
			return
		}
		u.move(dst, r)
	case *IvarRef:
		u.b.Emit(vm.MkOpABx(vm.OpGetIV, dst, u.sym(pos, n.Name, vm.MaxArgBx)))
	case *GlobalRef:
		u.b.Emit(vm.MkOpABx(vm.OpGetGlobal, dst, u.sym(pos, n.Name, vm.MaxArgBx)))
	case *ConstRef:
		u.b.Emit(vm.MkOpABx(vm.OpGetConst, dst, u.sym(pos, n.Name, vm.MaxArgBx)))
	case *Assign:
		u.compileAssign(n, dst)

	case *Call:
		u.compileCall(n, dst)
	case *IndexExpr:
		t := u.push(pos)
		u.compile(n.Recv, t)
		u.compile(n.Index, u.push(pos))
		u.b.SetLine(pos.Line)
		u.emitSend(pos, t, "[]", 1)
		u.move(dst, t)
	case *BinaryOp:
		u.compileBinary(n, dst)
	case *NotExpr:
		u.compileUnary(pos, n.Expr, "!", dst)
	case *NegExpr:
		u.compileUnary(pos, n.Expr, "-@", dst)
	case *AndExpr:
		u.compileLogical(pos, n.Left, n.Right, vm.OpJmpNot, dst)
	case *OrExpr:
		u.compileLogical(pos, n.Left, n.Right, vm.OpJmpIf, dst)

	case *IfExpr:
		u.compileIf(n, dst)
	case *WhileExpr:
		u.compileWhile(n, dst)
	case *ReturnExpr:
		t := u.push(pos)
		if n.Value != nil {
			u.compile(n.Value, t)
		} else {
			u.b.Emit(vm.MkOpA(vm.OpLoadNil, t))
		}
		u.b.SetLine(pos.Line)
		u.b.Emit(vm.MkOpAB(vm.OpReturn, t, vm.RReturn))
	case *DefExpr:
		u.compileDef(n, dst)
	case *SeqExpr:
		u.compileBody(n.Body, dst)

	default:
		u.c.errorAt(pos, "cannot compile %T", n)
	}
}

func (u *unitGen) compileArray(n *ArrayLiteral, dst int) {
	if len(n.Elems) > vm.MaxArgC {
		u.c.errorAt(n.Pos(), "too many elements in array literal")
		return
	}
	first := u.sp
	for _, e := range n.Elems {
		u.compile(e, u.push(e.Pos()))
	}
	u.b.SetLine(n.Pos().Line)
	u.b.Emit(vm.MkOpABC(vm.OpArray, dst, first, len(n.Elems)))
}

func (u *unitGen) compileAssign(n *Assign, dst int) {
	pos := n.Pos()
	switch target := n.Target.(type) {
	case *LocalVar:
		r, ok := u.locals[target.Name]
		if !ok {
			u.c.errorAt(pos, "undefined local variable '%s'", target.Name)
			return
		}
		t := u.push(pos)
		u.compile(n.Value, t)
		u.move(r, t)
		u.move(dst, t)
	case *IvarRef:
		u.compile(n.Value, dst)
		u.b.Emit(vm.MkOpABx(vm.OpSetIV, dst, u.sym(pos, target.Name, vm.MaxArgBx)))
	case *GlobalRef:
		u.compile(n.Value, dst)
		u.b.Emit(vm.MkOpABx(vm.OpSetGlobal, dst, u.sym(pos, target.Name, vm.MaxArgBx)))
	case *ConstRef:
		u.compile(n.Value, dst)
		u.b.Emit(vm.MkOpABx(vm.OpSetConst, dst, u.sym(pos, target.Name, vm.MaxArgBx)))
	case *IndexExpr:
		t := u.push(pos)
		u.compile(target.Recv, t)
		u.compile(target.Index, u.push(pos))
		v := u.push(pos)
		u.compile(n.Value, v)
		u.b.SetLine(pos.Line)
		u.emitSend(pos, t, "[]=", 2)
		u.move(dst, v)
	default:
		u.c.errorAt(pos, "cannot assign to %T", target)
	}
}

// compileCall places the receiver and arguments in consecutive registers
// and sends.
func (u *unitGen) compileCall(n *Call, dst int) {
	pos := n.Pos()
	if len(n.Args) > vm.MaxArgC {
		u.c.errorAt(pos, "too many arguments")
		return
	}
	t := u.push(pos)
	if n.Recv == nil {
		u.b.Emit(vm.MkOpA(vm.OpLoadSelf, t))
	} else {
		u.compile(n.Recv, t)
	}
	for _, arg := range n.Args {
		u.compile(arg, u.push(arg.Pos()))
	}
	u.b.SetLine(pos.Line)
	u.emitSend(pos, t, n.Name, len(n.Args))
	u.move(dst, t)
}

func (u *unitGen) emitSend(pos Position, a int, name string, argc int) {
	u.b.Emit(vm.MkOpABC(vm.OpSend, a, u.sym(pos, name, vm.MaxArgB), argc))
}

func (u *unitGen) compileBinary(n *BinaryOp, dst int) {
	pos := n.Pos()
	t := u.push(pos)
	u.compile(n.Left, t)
	u.compile(n.Right, u.push(pos))
	u.b.SetLine(pos.Line)
	if op, ok := fastOps[n.Op]; ok {
		u.b.Emit(vm.MkOpABC(op, t, u.sym(pos, n.Op, vm.MaxArgB), 1))
	} else {
		u.emitSend(pos, t, n.Op, 1)
	}
	u.move(dst, t)
}

func (u *unitGen) compileUnary(pos Position, operand Node, name string, dst int) {
	t := u.push(pos)
	u.compile(operand, t)
	u.b.SetLine(pos.Line)
	u.emitSend(pos, t, name, 0)
	u.move(dst, t)
}

// compileLogical short-circuits: the right side runs only when jump does
// not skip it.
func (u *unitGen) compileLogical(pos Position, left, right Node, jump vm.Opcode, dst int) {
	t := u.push(pos)
	done := u.b.NewLabel()
	u.compile(left, t)
	u.b.EmitJump(jump, t, done)
	u.compile(right, t)
	u.b.Mark(done)
	u.move(dst, t)
}

func (u *unitGen) compileIf(n *IfExpr, dst int) {
	cond := u.push(n.Pos())
	u.compile(n.Cond, cond)
	u.pop()

	elseLabel := u.b.NewLabel()
	done := u.b.NewLabel()
	u.b.EmitJump(vm.OpJmpNot, cond, elseLabel)
	u.compileBody(n.Then, dst)
	u.b.EmitJump(vm.OpJmp, 0, done)
	u.b.Mark(elseLabel)
	u.compileBody(n.Else, dst)
	u.b.Mark(done)
}

func (u *unitGen) compileWhile(n *WhileExpr, dst int) {
	top := u.b.NewLabel()
	done := u.b.NewLabel()
	u.b.Mark(top)

	cond := u.push(n.Pos())
	u.compile(n.Cond, cond)
	if n.Until {
		u.b.EmitJump(vm.OpJmpIf, cond, done)
	} else {
		u.b.EmitJump(vm.OpJmpNot, cond, done)
	}
	u.compileBody(n.Body, cond)
	u.b.EmitJump(vm.OpJmp, 0, top)
	u.pop()

	u.b.Mark(done)
	u.b.SetLine(n.Pos().Line)
	u.b.Emit(vm.MkOpA(vm.OpLoadNil, dst))
}

// compileDef generates the method body as a child unit and defines it on
// the target class:
//
//	TCLASS t; LAMBDA t+1 child; METHOD t :name; LOADSYM dst :name
func (u *unitGen) compileDef(n *DefExpr, dst int) {
	pos := n.Pos()
	if len(n.Params) > vm.MaxArgC {
		u.c.errorAt(pos, "too many parameters")
		return
	}

	child := u.c.newUnit(n.Locals)
	child.b.SetLine(pos.Line)
	child.b.Emit(vm.MkOpAx(vm.OpEnter, len(n.Params)))
	ret := child.push(pos)
	child.compileBody(n.Body, ret)
	child.b.Emit(vm.MkOpAB(vm.OpReturn, ret, vm.RNormal))
	child.finish()

	rel := child.irep.Idx - u.irep.Idx
	if rel > vm.MaxArgBz {
		u.c.errorAt(pos, "too many nested definitions")
		return
	}
	sym := u.sym(pos, n.Name, vm.MaxArgB)
	t := u.push(pos)
	u.push(pos)
	u.b.SetLine(pos.Line)
	u.b.Emit(vm.MkOpA(vm.OpTClass, t))
	u.b.Emit(vm.MkOpAbc(vm.OpLambda, t+1, rel, 0))
	u.b.Emit(vm.MkOpAB(vm.OpMethod, t, sym))
	u.b.Emit(vm.MkOpABx(vm.OpLoadSym, dst, sym))
}
