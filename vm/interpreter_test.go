package vm

import (
	"math"
	"testing"
)

// binop builds a unit computing R1 op R2 from two literals.
func binop(op Opcode, sel string, a, b Literal) *Irep {
	return &Irep{
		NLocals: 1,
		NRegs:   3,
		Iseq: []Code{
			MkOpABx(OpLoadL, 1, 0),
			MkOpABx(OpLoadL, 2, 1),
			MkOpABC(op, 1, 0, 1),
			MkOpAB(OpReturn, 1, RNormal),
		},
		Pool: []Literal{a, b},
		Syms: []string{sel},
	}
}

func intLit(i int64) Literal     { return Literal{Kind: LitInt, Int: i} }
func floatLit(f float64) Literal { return Literal{Kind: LitFloat, Float: f} }
func strLit(s string) Literal    { return Literal{Kind: LitString, Str: s} }

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		unit *Irep
		want Value
	}{
		{"int add", binop(OpAdd, "+", intLit(2), intLit(3)), FromInt(5)},
		{"mixed add", binop(OpAdd, "+", intLit(1), floatLit(0.5)), FromFloat(1.5)},
		{"overflow to float", binop(OpAdd, "+", intLit(math.MaxInt64), intLit(1)), FromFloat(float64(math.MaxInt64) + 1)},
		{"mul overflow", binop(OpMul, "*", intLit(math.MaxInt64), intLit(2)), FromFloat(float64(math.MaxInt64) * 2)},
		{"floored division", binop(OpDiv, "/", intLit(-7), intLit(2)), FromInt(-4)},
		{"exact division", binop(OpDiv, "/", intLit(9), intLit(3)), FromInt(3)},
		{"float division", binop(OpDiv, "/", floatLit(1), intLit(4)), FromFloat(0.25)},
		{"lt", binop(OpLT, "<", intLit(1), intLit(2)), True},
		{"ge", binop(OpGE, ">=", floatLit(1), intLit(2)), False},
		{"mixed eq", binop(OpEQ, "==", intLit(2), floatLit(2)), True},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := openState(t)
			v, err := runUnit(t, s, appendUnits(t, s, tc.unit))
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if v != tc.want {
				t.Errorf("got %v, want %v", v, tc.want)
			}
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	s := openState(t)
	_, err := runUnit(t, s, appendUnits(t, s, binop(OpDiv, "/", intLit(1), intLit(0))))
	exc, ok := AsException(err)
	if !ok || exc.Class() != s.ZeroDivisionErrorClass || exc.Message != "divided by 0" {
		t.Errorf("error = %v, want ZeroDivisionError", err)
	}
}

func TestArithmeticFallsBackToSend(t *testing.T) {
	s := openState(t)
	v, err := runUnit(t, s, appendUnits(t, s, binop(OpAdd, "+", strLit("ab"), strLit("cd"))))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if str := v.AsString(); str == nil || str.String() != "abcd" {
		t.Errorf("string + = %v", v)
	}

	v, err = runUnit(t, s, appendUnits(t, s, binop(OpEQ, "==", strLit("x"), strLit("x"))))
	if err != nil || v != True {
		t.Errorf("string == = %v, %v", v, err)
	}
}

func TestStringLiteralsAreCopied(t *testing.T) {
	s := openState(t)
	ir := &Irep{
		NLocals: 1,
		NRegs:   3,
		Iseq: []Code{
			MkOpABx(OpString, 1, 0),
			MkOpABx(OpString, 2, 0),
			MkOpAB(OpReturn, 1, RNormal),
		},
		Pool: []Literal{strLit("lit")},
	}
	idx := appendUnits(t, s, ir)
	a, _ := runUnit(t, s, idx)
	b, _ := runUnit(t, s, idx)
	if a == b {
		t.Error("two evaluations of a string literal share one object")
	}
}

func TestConditionalJumps(t *testing.T) {
	s := openState(t)
	// R1 = nil; if R1 then R2 = 1 else R2 = 2
	ir := &Irep{
		NLocals: 1,
		NRegs:   3,
		Iseq: []Code{
			MkOpA(OpLoadNil, 1),
			MkOpAsBx(OpJmpNot, 1, 3),
			MkOpAsBx(OpLoadI, 2, 1),
			MkOpAsBx(OpJmp, 0, 2),
			MkOpAsBx(OpLoadI, 2, 2),
			MkOpAB(OpReturn, 2, RNormal),
		},
	}
	v, err := runUnit(t, s, appendUnits(t, s, ir))
	if err != nil || v.Int() != 2 {
		t.Errorf("got %v, %v; want 2", v, err)
	}
}

func TestGlobalsConstantsAndIvars(t *testing.T) {
	s := openState(t)
	ir := &Irep{
		NLocals: 1,
		NRegs:   3,
		Iseq: []Code{
			MkOpAsBx(OpLoadI, 1, 10),
			MkOpABx(OpSetGlobal, 1, 0),
			MkOpABx(OpSetConst, 1, 1),
			MkOpABx(OpSetIV, 1, 2),
			MkOpABx(OpGetConst, 2, 1),
			MkOpABx(OpGetIV, 1, 2),
			MkOpABC(OpAdd, 1, 3, 1),
			MkOpAB(OpReturn, 1, RNormal),
		},
		Syms: []string{"$g", "LIMIT", "@count", "+"},
	}
	v, err := runUnit(t, s, appendUnits(t, s, ir))
	if err != nil || v.Int() != 20 {
		t.Fatalf("got %v, %v; want 20", v, err)
	}
	if s.Globals["$g"].Int() != 10 {
		t.Error("global not set")
	}
	if c, ok := s.ObjectClass.ConstGet("LIMIT"); !ok || c.Int() != 10 {
		t.Error("constant not set on Object")
	}
	if s.TopSelf.AsObject().IvarGet("@count").Int() != 10 {
		t.Error("ivar not set on main")
	}
}

func TestUninitializedConstant(t *testing.T) {
	s := openState(t)
	ir := &Irep{
		NLocals: 1,
		NRegs:   2,
		Iseq: []Code{
			MkOpABx(OpGetConst, 1, 0),
			MkOpAB(OpReturn, 1, RNormal),
		},
		Syms:     []string{"Missing"},
		Filename: "c.rb",
		Lines:    []uint16{3, 3},
	}
	_, err := runUnit(t, s, appendUnits(t, s, ir))
	exc, ok := AsException(err)
	if !ok || exc.Class() != s.NameErrorClass || exc.Message != "uninitialized constant Missing" {
		t.Fatalf("error = %v", err)
	}
	if len(exc.Backtrace) != 1 || exc.Backtrace[0] != "c.rb:3" {
		t.Errorf("backtrace = %v", exc.Backtrace)
	}
}
