package vm

// ---------------------------------------------------------------------------
// Irep: one compiled unit
// ---------------------------------------------------------------------------

// LiteralKind tags a pool entry.
type LiteralKind uint8

const (
	LitString LiteralKind = iota
	LitInt
	LitFloat
)

// Literal is a constant-pool entry.
type Literal struct {
	Kind  LiteralKind
	Int   int64
	Float float64
	Str   string
}

// Value materializes the literal. Strings are copied on every load so the
// pool entry cannot be mutated through a register.
func (l Literal) Value(s *State) Value {
	switch l.Kind {
	case LitInt:
		return FromInt(l.Int)
	case LitFloat:
		return FromFloat(l.Float)
	default:
		return s.NewString(l.Str)
	}
}

// Irep is the internal representation of one compiled unit: a top-level
// script body or a method body. Child units referenced by OpLambda are
// addressed relative to Idx and always sit after their parent in the code
// table.
type Irep struct {
	Idx     int // absolute index in the owning code table
	NLocals int // locals including self in register 0
	NRegs   int // registers needed, at least NLocals

	Iseq []Code
	Pool []Literal
	Syms []string

	// Debug info. Lines is nil or parallel to Iseq.
	Filename string
	Lines    []uint16
}

// Arity returns the number of required arguments declared by a leading
// OpEnter, or 0 when the unit takes none.
func (ir *Irep) Arity() int {
	if len(ir.Iseq) > 0 && ir.Iseq[0].Opcode() == OpEnter {
		return ir.Iseq[0].Ax()
	}
	return 0
}

// LineAt returns the source line of instruction pc, or 0 when unknown.
func (ir *Irep) LineAt(pc int) int {
	if pc < 0 || pc >= len(ir.Lines) {
		return 0
	}
	return int(ir.Lines[pc])
}

// HasDebugInfo reports whether the unit carries filename or line data.
func (ir *Irep) HasDebugInfo() bool {
	return ir.Filename != "" || len(ir.Lines) > 0
}

// StripDebugInfo drops filename and line data.
func (ir *Irep) StripDebugInfo() {
	ir.Filename = ""
	ir.Lines = nil
}

// Children returns the relative offsets of the units this one references
// through OpLambda.
func (ir *Irep) Children() []int {
	var out []int
	for _, c := range ir.Iseq {
		if c.Opcode() == OpLambda {
			out = append(out, c.Bz())
		}
	}
	return out
}

// Clone returns a deep copy placed at index idx.
func (ir *Irep) Clone(idx int) *Irep {
	cp := &Irep{
		Idx:      idx,
		NLocals:  ir.NLocals,
		NRegs:    ir.NRegs,
		Iseq:     append([]Code(nil), ir.Iseq...),
		Pool:     append([]Literal(nil), ir.Pool...),
		Syms:     append([]string(nil), ir.Syms...),
		Filename: ir.Filename,
	}
	if ir.Lines != nil {
		cp.Lines = append([]uint16(nil), ir.Lines...)
	}
	return cp
}
