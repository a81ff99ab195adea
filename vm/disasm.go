package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction renders instruction pc of ir, resolving symbol and
// pool operands.
func DisassembleInstruction(ir *Irep, pc int) string {
	c := ir.Iseq[pc]
	op := c.Opcode()
	name := op.Info().Name
	symName := func(k int) string {
		if k < len(ir.Syms) {
			return ":" + ir.Syms[k]
		}
		return fmt.Sprintf("sym#%d", k)
	}
	prefix := fmt.Sprintf("%04d ", pc)
	if line := ir.LineAt(pc); line > 0 {
		prefix = fmt.Sprintf("%04d %4d ", pc, line)
	}

	var args string
	switch op {
	case OpLoadL, OpString:
		lit := "?"
		if k := c.Bx(); k < len(ir.Pool) {
			l := ir.Pool[k]
			switch l.Kind {
			case LitInt:
				lit = fmt.Sprint(l.Int)
			case LitFloat:
				lit = formatFloat(l.Float)
			default:
				lit = QuoteString(l.Str)
			}
		}
		args = fmt.Sprintf("R%d\tL(%d)\t; %s", c.A(), c.Bx(), lit)
	case OpLoadSym, OpGetGlobal, OpSetGlobal, OpGetIV, OpSetIV, OpGetConst, OpSetConst:
		args = fmt.Sprintf("R%d\t%s", c.A(), symName(c.Bx()))
	case OpSend:
		args = fmt.Sprintf("R%d\t%s\t%d", c.A(), symName(c.B()), c.C())
	case OpAdd, OpSub, OpMul, OpDiv, OpEQ, OpLT, OpLE, OpGT, OpGE:
		args = fmt.Sprintf("R%d\t%s\t%d", c.A(), symName(c.B()), c.C())
	case OpMethod:
		args = fmt.Sprintf("R%d\t%s", c.A(), symName(c.B()))
	case OpJmp:
		args = fmt.Sprintf("%d\t; -> %04d", c.SBx(), pc+c.SBx())
	case OpJmpIf, OpJmpNot:
		args = fmt.Sprintf("R%d\t%d\t; -> %04d", c.A(), c.SBx(), pc+c.SBx())
	case OpLambda:
		args = fmt.Sprintf("R%d\tI(%+d)\t%d", c.A(), c.Bz(), c.Cz())
	case OpReturn:
		kind := [...]string{"normal", "break", "return"}
		k := "?"
		if c.B() < len(kind) {
			k = kind[c.B()]
		}
		args = fmt.Sprintf("R%d\t%s", c.A(), k)
	default:
		switch op.Info().Format {
		case FmtA:
			args = fmt.Sprintf("R%d", c.A())
		case FmtAB:
			args = fmt.Sprintf("R%d\tR%d", c.A(), c.B())
		case FmtABC:
			args = fmt.Sprintf("R%d\tR%d\t%d", c.A(), c.B(), c.C())
		case FmtABx:
			args = fmt.Sprintf("R%d\t%d", c.A(), c.Bx())
		case FmtAsBx:
			args = fmt.Sprintf("R%d\t%d", c.A(), c.SBx())
		case FmtAx:
			args = fmt.Sprintf("%d", c.Ax())
		}
	}
	if args == "" {
		return prefix + name
	}
	return prefix + fmt.Sprintf("%-9s", name) + " " + args
}

// Disassemble renders a whole unit with a short header.
func Disassemble(ir *Irep) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "irep %d nregs=%d nlocals=%d pools=%d syms=%d", ir.Idx, ir.NRegs, ir.NLocals, len(ir.Pool), len(ir.Syms))
	if ir.Filename != "" {
		fmt.Fprintf(&sb, " file=%s", ir.Filename)
	}
	for pc := range ir.Iseq {
		sb.WriteString("\n")
		sb.WriteString(DisassembleInstruction(ir, pc))
	}
	return sb.String()
}
