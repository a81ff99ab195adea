package vm

import "fmt"

// ---------------------------------------------------------------------------
// Instruction encoding
// ---------------------------------------------------------------------------

// Code is one fixed-width 32-bit instruction. The low 7 bits hold the
// opcode; the remaining 25 bits hold operands in one of these layouts:
//
//	A:9  B:9  C:7  op:7
//	A:9  Bx:16     op:7    (sBx is Bx biased by MaxArgSBx)
//	Ax:25          op:7
//	A:9  b:14 c:2  op:7
type Code uint32

// Operand limits.
const (
	MaxArgA   = 0x1ff
	MaxArgB   = 0x1ff
	MaxArgC   = 0x7f
	MaxArgBx  = 0xffff
	MaxArgSBx = MaxArgBx >> 1
	MaxArgAx  = 0x1ffffff
	MaxArgBz  = 0x3fff
	MaxArgCz  = 0x3
)

// Opcode returns the instruction's opcode.
func (i Code) Opcode() Opcode { return Opcode(i & 0x7f) }

// A returns the A operand.
func (i Code) A() int { return int((i >> 23) & 0x1ff) }

// B returns the B operand.
func (i Code) B() int { return int((i >> 14) & 0x1ff) }

// C returns the C operand.
func (i Code) C() int { return int((i >> 7) & 0x7f) }

// Bx returns the 16-bit unsigned operand.
func (i Code) Bx() int { return int((i >> 7) & 0xffff) }

// SBx returns the 16-bit signed operand.
func (i Code) SBx() int { return i.Bx() - MaxArgSBx }

// Ax returns the 25-bit operand.
func (i Code) Ax() int { return int((i >> 7) & 0x1ffffff) }

// Bz returns the 14-bit b operand of the A:b:c layout.
func (i Code) Bz() int { return int((i >> 9) & 0x3fff) }

// Cz returns the 2-bit c operand of the A:b:c layout.
func (i Code) Cz() int { return int((i >> 7) & 0x3) }

// MkOp builds an instruction with no operands.
func MkOp(op Opcode) Code { return Code(op) & 0x7f }

// MkOpA builds an A-format instruction.
func MkOpA(op Opcode, a int) Code {
	return MkOp(op) | Code(a&0x1ff)<<23
}

// MkOpAB builds an AB-format instruction.
func MkOpAB(op Opcode, a, b int) Code {
	return MkOpA(op, a) | Code(b&0x1ff)<<14
}

// MkOpABC builds an ABC-format instruction.
func MkOpABC(op Opcode, a, b, c int) Code {
	return MkOpAB(op, a, b) | Code(c&0x7f)<<7
}

// MkOpABx builds an ABx-format instruction.
func MkOpABx(op Opcode, a, bx int) Code {
	return MkOpA(op, a) | Code(bx&0xffff)<<7
}

// MkOpAsBx builds an AsBx-format instruction.
func MkOpAsBx(op Opcode, a, sbx int) Code {
	return MkOpABx(op, a, sbx+MaxArgSBx)
}

// MkOpAx builds an Ax-format instruction.
func MkOpAx(op Opcode, ax int) Code {
	return MkOp(op) | Code(ax&0x1ffffff)<<7
}

// MkOpAbc builds an A:b:c-format instruction.
func MkOpAbc(op Opcode, a, b, c int) Code {
	return MkOpA(op, a) | Code(b&0x3fff)<<9 | Code(c&0x3)<<7
}

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode is the 7-bit operation selector of an instruction.
type Opcode uint8

// Loads and moves
const (
	OpNop      Opcode = iota // no operation
	OpMove                   // R(A) := R(B)
	OpLoadL                  // R(A) := Pool(Bx)
	OpLoadI                  // R(A) := sBx
	OpLoadSym                // R(A) := Syms(Bx)
	OpLoadNil                // R(A) := nil
	OpLoadSelf               // R(A) := self
	OpLoadT                  // R(A) := true
	OpLoadF                  // R(A) := false
)

// Variables
const (
	OpGetGlobal Opcode = iota + 0x10 // R(A) := $Syms(Bx)
	OpSetGlobal                      // $Syms(Bx) := R(A)
	OpGetIV                          // R(A) := self.@Syms(Bx)
	OpSetIV                          // self.@Syms(Bx) := R(A)
	OpGetConst                       // R(A) := constget(Syms(Bx))
	OpSetConst                       // constset(Syms(Bx), R(A))
)

// Control flow
const (
	OpJmp     Opcode = iota + 0x20 // pc += sBx
	OpJmpIf                        // if R(A) then pc += sBx
	OpJmpNot                       // if !R(A) then pc += sBx
	OpSend                         // R(A) := R(A).Syms(B)(R(A+1),...,R(A+C))
	OpEnter                        // check Ax required arguments
	OpReturn                       // return R(A) with kind B
)

// Arithmetic and comparison. Operands are R(A) and R(A+1); B names the
// method to fall back to, C is always 1.
const (
	OpAdd Opcode = iota + 0x30
	OpSub
	OpMul
	OpDiv
	OpEQ
	OpLT
	OpLE
	OpGT
	OpGE
)

// Construction and definition
const (
	OpArray  Opcode = iota + 0x40 // R(A) := [R(B),...,R(B+C-1)]
	OpString                      // R(A) := str_dup(Pool(Bx))
	OpLambda                      // R(A) := proc(SEQ[idx+b])
	OpMethod                      // R(A).newmethod(Syms(B), R(A+1))
	OpTClass                      // R(A) := target_class
	OpStop                        // stop execution
)

// Return kinds carried in the B operand of OpReturn.
const (
	RNormal = 0
	RBreak  = 1
	RReturn = 2
)

// Operand layouts.
type Format uint8

const (
	FmtZ Format = iota
	FmtA
	FmtAB
	FmtABC
	FmtABx
	FmtAsBx
	FmtsBx
	FmtAx
	FmtAbc
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name   string
	Format Format
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNop:      {"NOP", FmtZ},
	OpMove:     {"MOVE", FmtAB},
	OpLoadL:    {"LOADL", FmtABx},
	OpLoadI:    {"LOADI", FmtAsBx},
	OpLoadSym:  {"LOADSYM", FmtABx},
	OpLoadNil:  {"LOADNIL", FmtA},
	OpLoadSelf: {"LOADSELF", FmtA},
	OpLoadT:    {"LOADT", FmtA},
	OpLoadF:    {"LOADF", FmtA},

	OpGetGlobal: {"GETGLOBAL", FmtABx},
	OpSetGlobal: {"SETGLOBAL", FmtABx},
	OpGetIV:     {"GETIV", FmtABx},
	OpSetIV:     {"SETIV", FmtABx},
	OpGetConst:  {"GETCONST", FmtABx},
	OpSetConst:  {"SETCONST", FmtABx},

	OpJmp:    {"JMP", FmtsBx},
	OpJmpIf:  {"JMPIF", FmtAsBx},
	OpJmpNot: {"JMPNOT", FmtAsBx},
	OpSend:   {"SEND", FmtABC},
	OpEnter:  {"ENTER", FmtAx},
	OpReturn: {"RETURN", FmtAB},

	OpAdd: {"ADD", FmtABC},
	OpSub: {"SUB", FmtABC},
	OpMul: {"MUL", FmtABC},
	OpDiv: {"DIV", FmtABC},
	OpEQ:  {"EQ", FmtABC},
	OpLT:  {"LT", FmtABC},
	OpLE:  {"LE", FmtABC},
	OpGT:  {"GT", FmtABC},
	OpGE:  {"GE", FmtABC},

	OpArray:  {"ARRAY", FmtABC},
	OpString: {"STRING", FmtABx},
	OpLambda: {"LAMBDA", FmtAbc},
	OpMethod: {"METHOD", FmtAB},
	OpTClass: {"TCLASS", FmtA},
	OpStop:   {"STOP", FmtZ},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", uint8(op)), Format: FmtZ}
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Info().Name
}

// IsJump reports whether the instruction's sBx operand is a branch offset.
func (op Opcode) IsJump() bool {
	return op == OpJmp || op == OpJmpIf || op == OpJmpNot
}

// ---------------------------------------------------------------------------
// Builder: helper for constructing instruction sequences
// ---------------------------------------------------------------------------

// Builder accumulates instructions and their source lines.
type Builder struct {
	iseq  []Code
	lines []uint16
	line  uint16
	err   *JumpRangeError
}

// JumpRangeError reports a branch whose offset does not fit in sBx.
type JumpRangeError struct {
	Pos    int // position of the branch instruction
	Offset int
}

func (e *JumpRangeError) Error() string {
	return fmt.Sprintf("branch at %d: offset %d out of range", e.Pos, e.Offset)
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{iseq: make([]Code, 0, 32), lines: make([]uint16, 0, 32)}
}

// SetLine sets the source line recorded for subsequent instructions.
func (b *Builder) SetLine(line int) {
	if line > 0xffff {
		line = 0xffff
	}
	if line >= 0 {
		b.line = uint16(line)
	}
}

// Emit appends an instruction and returns its position.
func (b *Builder) Emit(c Code) int {
	b.iseq = append(b.iseq, c)
	b.lines = append(b.lines, b.line)
	return len(b.iseq) - 1
}

// Len returns the number of instructions emitted so far.
func (b *Builder) Len() int { return len(b.iseq) }

// Last returns the most recent instruction, or OpNop when empty.
func (b *Builder) Last() Code {
	if len(b.iseq) == 0 {
		return MkOp(OpNop)
	}
	return b.iseq[len(b.iseq)-1]
}

// Iseq returns the instructions.
func (b *Builder) Iseq() []Code { return b.iseq }

// Lines returns the per-instruction source lines.
func (b *Builder) Lines() []uint16 { return b.lines }

// Label is a branch target that may be referenced before it is placed.
type Label struct {
	resolved bool
	position int
	refs     []int
}

// NewLabel creates an unresolved label.
func (b *Builder) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position and patches pending jumps.
func (b *Builder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.iseq)
	for _, ref := range label.refs {
		b.patchJump(ref, label.position)
	}
	label.refs = nil
}

// EmitJump emits a branch to label. a is ignored for OpJmp.
func (b *Builder) EmitJump(op Opcode, a int, label *Label) int {
	pos := b.Emit(MkOpAsBx(op, a, 0))
	if label.resolved {
		b.patchJump(pos, label.position)
	} else {
		label.refs = append(label.refs, pos)
	}
	return pos
}

func (b *Builder) patchJump(pos, target int) {
	off := target - pos
	if off < -MaxArgSBx || off > MaxArgSBx+1 {
		if b.err == nil {
			b.err = &JumpRangeError{Pos: pos, Offset: off}
		}
		return
	}
	old := b.iseq[pos]
	b.iseq[pos] = MkOpAsBx(old.Opcode(), old.A(), off)
}

// Err returns the first branch that could not be encoded, or nil. The
// sequence must not be used when Err is non-nil.
func (b *Builder) Err() error {
	if b.err == nil {
		return nil
	}
	return b.err
}
