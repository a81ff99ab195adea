package vm

import (
	"errors"
	"testing"
)

func TestInstructionFields(t *testing.T) {
	tests := []struct {
		name  string
		code  Code
		op    Opcode
		check func(Code) bool
	}{
		{"A", MkOpA(OpLoadNil, MaxArgA), OpLoadNil, func(c Code) bool { return c.A() == MaxArgA }},
		{"AB", MkOpAB(OpMove, 3, 511), OpMove, func(c Code) bool { return c.A() == 3 && c.B() == 511 }},
		{"ABC", MkOpABC(OpSend, 7, 300, 127), OpSend, func(c Code) bool {
			return c.A() == 7 && c.B() == 300 && c.C() == 127
		}},
		{"ABx", MkOpABx(OpLoadL, 1, MaxArgBx), OpLoadL, func(c Code) bool { return c.A() == 1 && c.Bx() == MaxArgBx }},
		{"AsBx negative", MkOpAsBx(OpJmpNot, 2, -5), OpJmpNot, func(c Code) bool { return c.A() == 2 && c.SBx() == -5 }},
		{"AsBx max", MkOpAsBx(OpLoadI, 0, MaxArgSBx), OpLoadI, func(c Code) bool { return c.SBx() == MaxArgSBx }},
		{"Ax", MkOpAx(OpEnter, MaxArgAx), OpEnter, func(c Code) bool { return c.Ax() == MaxArgAx }},
		{"Abc", MkOpAbc(OpLambda, 4, MaxArgBz, 2), OpLambda, func(c Code) bool {
			return c.A() == 4 && c.Bz() == MaxArgBz && c.Cz() == 2
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.code.Opcode() != tc.op {
				t.Errorf("opcode = %s, want %s", tc.code.Opcode(), tc.op)
			}
			if !tc.check(tc.code) {
				t.Errorf("operands decoded wrong from %#08x", uint32(tc.code))
			}
		})
	}
}

func TestReturnEncodingMatchesKnownValues(t *testing.T) {
	c := MkOpAB(OpReturn, 0, RNormal)
	if c.Opcode() != OpReturn || c.A() != 0 || c.B() != RNormal {
		t.Errorf("RETURN R0 normal decoded as %s A=%d B=%d", c.Opcode(), c.A(), c.B())
	}
	if MkOpA(OpStop, 0) != MkOp(OpStop) {
		t.Error("STOP with zero operand should equal the bare opcode")
	}
}

func TestOpcodeInfo(t *testing.T) {
	if OpSend.String() != "SEND" {
		t.Errorf("OpSend.String() = %q", OpSend.String())
	}
	if Opcode(0x7f).Valid() {
		t.Error("0x7f should not be a valid opcode")
	}
	if got := Opcode(0x7f).String(); got != "UNKNOWN_7F" {
		t.Errorf("unknown opcode name = %q", got)
	}
}

func TestBuilderForwardAndBackwardJumps(t *testing.T) {
	b := NewBuilder()
	b.SetLine(3)
	top := b.NewLabel()
	b.Mark(top)
	b.Emit(MkOpA(OpLoadT, 1))
	end := b.NewLabel()
	fwd := b.EmitJump(OpJmpNot, 1, end)
	b.Emit(MkOp(OpNop))
	back := b.EmitJump(OpJmp, 0, top)
	b.Mark(end)
	b.Emit(MkOp(OpStop))

	iseq := b.Iseq()
	if got := fwd + iseq[fwd].SBx(); got != 4 {
		t.Errorf("forward jump lands at %d, want 4", got)
	}
	if iseq[fwd].A() != 1 {
		t.Errorf("forward jump lost its register: A=%d", iseq[fwd].A())
	}
	if got := back + iseq[back].SBx(); got != 0 {
		t.Errorf("backward jump lands at %d, want 0", got)
	}
	if len(b.Lines()) != len(iseq) || b.Lines()[0] != 3 {
		t.Errorf("lines = %v", b.Lines())
	}
}

func TestBuilderJumpOutOfRange(t *testing.T) {
	b := NewBuilder()
	end := b.NewLabel()
	b.EmitJump(OpJmp, 0, end)
	for range MaxArgSBx {
		b.Emit(MkOp(OpNop))
	}
	b.Mark(end)
	if err := b.Err(); err != nil {
		t.Fatalf("longest forward jump rejected: %v", err)
	}
	if got := b.Iseq()[0].SBx(); got != MaxArgSBx+1 {
		t.Errorf("offset = %d, want %d", got, MaxArgSBx+1)
	}

	b = NewBuilder()
	end = b.NewLabel()
	b.EmitJump(OpJmpNot, 1, end)
	for range MaxArgSBx + 1 {
		b.Emit(MkOp(OpNop))
	}
	b.Mark(end)
	var jr *JumpRangeError
	if !errors.As(b.Err(), &jr) || jr.Pos != 0 || jr.Offset != MaxArgSBx+2 {
		t.Errorf("forward overflow: Err = %v", b.Err())
	}

	b = NewBuilder()
	top := b.NewLabel()
	b.Mark(top)
	for range MaxArgSBx + 1 {
		b.Emit(MkOp(OpNop))
	}
	b.EmitJump(OpJmp, 0, top)
	if !errors.As(b.Err(), &jr) || jr.Offset != -(MaxArgSBx + 1) {
		t.Errorf("backward overflow: Err = %v", b.Err())
	}
}
