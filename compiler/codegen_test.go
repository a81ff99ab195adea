package compiler

import (
	"slices"
	"strings"
	"testing"

	"github.com/chazu/rite/vm"
)

func compileSource(t *testing.T, src string, ctx *Context) []*vm.Irep {
	t.Helper()
	units, err := Compile(src, ctx)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	return units
}

func TestCompileTopLevelEndsWithStop(t *testing.T) {
	units := compileSource(t, "1 + 1", nil)
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	top := units[0]
	if last := top.Iseq[len(top.Iseq)-1]; last != vm.MkOpA(vm.OpStop, 0) {
		t.Errorf("last instruction = %s, want STOP", vm.DisassembleInstruction(top, len(top.Iseq)-1))
	}
	if top.Filename != DefaultFilename {
		t.Errorf("filename = %q, want %q", top.Filename, DefaultFilename)
	}
	if len(top.Lines) != len(top.Iseq) {
		t.Errorf("lines = %d entries for %d instructions", len(top.Lines), len(top.Iseq))
	}
	if top.NRegs <= top.NLocals {
		t.Errorf("NRegs = %d, NLocals = %d; no temporaries", top.NRegs, top.NLocals)
	}
}

func TestCompileUsesArithmeticInstructions(t *testing.T) {
	units := compileSource(t, "a = 2\na * 3 + 1 < 10", nil)
	var ops []vm.Opcode
	for _, c := range units[0].Iseq {
		ops = append(ops, c.Opcode())
	}
	for _, want := range []vm.Opcode{vm.OpMul, vm.OpAdd, vm.OpLT} {
		if !slices.Contains(ops, want) {
			t.Errorf("no %s in %v", want, ops)
		}
	}
	if slices.Contains(ops, vm.OpSend) {
		t.Errorf("arithmetic compiled to SEND: %v", ops)
	}
}

func TestCompileLiteralSelection(t *testing.T) {
	units := compileSource(t, "[32767, -32767, 40000, 1.5, 'str', 'str']", nil)
	top := units[0]

	loadI, loadL := 0, 0
	for _, c := range top.Iseq {
		switch c.Opcode() {
		case vm.OpLoadI:
			loadI++
		case vm.OpLoadL:
			loadL++
		}
	}
	if loadI != 2 || loadL != 2 {
		t.Errorf("LOADI = %d, LOADL = %d; want 2 and 2", loadI, loadL)
	}
	// identical string literals share a pool entry
	if len(top.Pool) != 3 {
		t.Errorf("pool = %v, want 3 entries", top.Pool)
	}
}

func TestCompileMethodUnits(t *testing.T) {
	units := compileSource(t, "def a; end\ndef b(x, y)\n  def c; end\nend", nil)
	if len(units) != 4 {
		t.Fatalf("got %d units, want 4", len(units))
	}

	if got := units[0].Children(); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("top children = %v, want [1 2]", got)
	}
	if got := units[2].Children(); !slices.Equal(got, []int{1}) {
		t.Errorf("b children = %v, want [1]", got)
	}

	for i, u := range units[1:] {
		first, last := u.Iseq[0], u.Iseq[len(u.Iseq)-1]
		if first.Opcode() != vm.OpEnter {
			t.Errorf("unit %d starts with %s, want ENTER", i+1, first.Opcode())
		}
		if last.Opcode() != vm.OpReturn || last.B() != vm.RNormal {
			t.Errorf("unit %d ends with %s, want RETURN normal", i+1, vm.DisassembleInstruction(u, len(u.Iseq)-1))
		}
	}
	if units[2].Arity() != 2 || units[2].NLocals != 3 {
		t.Errorf("b: arity %d, NLocals %d; want 2 and 3", units[2].Arity(), units[2].NLocals)
	}
}

func TestCompileExplicitReturn(t *testing.T) {
	units := compileSource(t, "def f\n  return 1\nend", nil)
	found := false
	for _, c := range units[1].Iseq {
		if c.Opcode() == vm.OpReturn && c.B() == vm.RReturn {
			found = true
		}
	}
	if !found {
		t.Errorf("no RETURN with return kind in\n%s", vm.Disassemble(units[1]))
	}
}

func TestCompileNoDebug(t *testing.T) {
	units := compileSource(t, "def f; 1; end", &Context{Filename: "x.rb", NoDebug: true})
	for i, u := range units {
		if u.HasDebugInfo() {
			t.Errorf("unit %d carries debug info: %q %v", i, u.Filename, u.Lines)
		}
	}
}

func TestCompileRecordsLines(t *testing.T) {
	units := compileSource(t, "a = 1\n\nputs a", &Context{Filename: "lines.rb"})
	top := units[0]
	if top.Filename != "lines.rb" {
		t.Errorf("filename = %q", top.Filename)
	}
	for pc, c := range top.Iseq {
		if c.Opcode() == vm.OpSend && top.LineAt(pc) != 3 {
			t.Errorf("SEND at pc %d has line %d, want 3", pc, top.LineAt(pc))
		}
	}
}

func TestCompileLimits(t *testing.T) {
	src := "foo(" + strings.Repeat("1, ", vm.MaxArgC+1) + ")"
	_, err := Compile(src, &Context{Filename: "t.rb"})
	if err == nil || err.Error() != "t.rb:1:1: too many arguments" {
		t.Errorf("error = %v, want too many arguments", err)
	}
}

func TestCompileLongBranch(t *testing.T) {
	// each assignment is two instructions
	body := strings.Repeat("$hit = 1\n", 10000)
	top := compileSource(t, "if false\n"+body+"end", nil)[0]
	var setgv []int
	jmp := -1
	for pc, c := range top.Iseq {
		switch c.Opcode() {
		case vm.OpJmpNot:
			jmp = pc
		case vm.OpSetGlobal:
			setgv = append(setgv, pc)
		}
	}
	if jmp < 0 {
		t.Fatal("no JMPNOT")
	}
	target := jmp + top.Iseq[jmp].SBx()
	if target <= setgv[len(setgv)-1] || top.Iseq[target-1].Opcode() != vm.OpJmp {
		t.Errorf("JMPNOT at %d lands at %d, inside the body", jmp, target)
	}
}

func TestCompileBranchTooLong(t *testing.T) {
	body := strings.Repeat("$hit = 1\n", 20000)
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"if", "if false\n" + body + "end", "t.rb:1:1: branch too long"},
		{"while", "x = 0\nwhile x < 1\n" + body + "x = 1\nend", "branch too long"},
		{"method", "def m\n  if false\n" + body + "  end\nend", "t.rb:2:1: branch too long"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.src, &Context{Filename: "t.rb"})
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %v, want %q", err, tc.want)
			}
		})
	}
}
