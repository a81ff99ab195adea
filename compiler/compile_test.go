package compiler

import (
	"bytes"
	"slices"
	"testing"

	"github.com/chazu/rite/vm"
)

func openState(t *testing.T) (*vm.State, *bytes.Buffer) {
	t.Helper()
	s, err := vm.Open(Prelude())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(s.Close)
	var out bytes.Buffer
	s.Stdout = &out
	return s, &out
}

func inspect(t *testing.T, s *vm.State, v vm.Value) string {
	t.Helper()
	str, err := s.Inspect(v)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	return str
}

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

func TestEval(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"addition", "1 + 1", "2"},
		{"locals", "x = 3; x * x", "9"},
		{"integer division", "10 / 3", "3"},
		{"modulo", "7 % 3", "1"},
		{"float", "1.5 * 2", "3.0"},
		{"large literal", "100000 + 1", "100001"},
		{"negation", "x = 3; -x", "-3"},
		{"equality", "1 == 1", "true"},
		{"inequality", "1 != 2", "true"},
		{"not", "!nil", "true"},
		{"string concat", "'a' + 'b'", `"ab"`},
		{"method on literal", "'abc'.upcase", `"ABC"`},
		{"array", "[1, 'two', :three]", `[1, "two", :three]`},
		{"array size", "[1, 2, 3].size", "3"},
		{"index assignment", "a = [1, 2]\na[1] = 5\na[1]", "5"},
		{"if", "if 1 < 2 then :yes else :no end", ":yes"},
		{"if without else", "if false then 1 end", "nil"},
		{"elsif", "x = 2\nif x == 1\n  :one\nelsif x == 2\n  :two\nelse\n  :many\nend", ":two"},
		{"unless", "unless nil then 1 else 2 end", "1"},
		{"or", "x = nil; x || 4", "4"},
		{"and short circuit", "false && raise('boom')", "false"},
		{"keyword or", "nil or :fallback", ":fallback"},
		{"while", "i = 0; s = 0\nwhile i < 5 do s = s + i; i = i + 1 end\ns", "10"},
		{"while value", "i = 0\nwhile i < 1 do i = i + 1 end", "nil"},
		{"until modifier", "n = 0\nn = n + 1 until n == 3\nn", "3"},
		{"def", "def sq(x)\n  x * x\nend\nsq(7)", "49"},
		{"def value", "def m; end", ":m"},
		{"recursion", "def fact(n)\n  if n <= 1 then 1 else n * fact(n - 1) end\nend\nfact(10)", "3628800"},
		{"early return", "def sign(x)\n  return :neg if x < 0\n  :pos\nend\n[sign(-1), sign(1)]", "[:neg, :pos]"},
		{"ivar", "@a = 5; @a", "5"},
		{"global", "$x = 2; $x + 1", "3"},
		{"constant", "K = 4; K * 2", "8"},
		{"sequence", "x = 5\ny = (x = x + 1; x * 2)\n[x, y]", "[6, 12]"},
		{"assign from and", "y = 1; x = 2; x = y && x; x", "2"},
		{"self", "self", "main"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := openState(t)
			v, err := Eval(s, tc.src, nil)
			if err != nil {
				t.Fatalf("Eval(%q): %v", tc.src, err)
			}
			if got := inspect(t, s, v); got != tc.want {
				t.Errorf("Eval(%q) = %s, want %s", tc.src, got, tc.want)
			}
		})
	}
}

func TestPreludeMethods(t *testing.T) {
	s, out := openState(t)
	v, err := Eval(s, "p 5", nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.IsInt() || v.Int() != 5 {
		t.Errorf("p returned %v, want 5", v)
	}
	if out.String() != "5\n" {
		t.Errorf("output = %q, want %q", out.String(), "5\n")
	}

	_, err = Eval(s, "fail 'nope'", nil)
	exc, ok := vm.AsException(err)
	if !ok || exc.Class() != s.RuntimeErrorClass || exc.Message != "nope" {
		t.Errorf("fail raised %v", err)
	}
}

func TestPreludeOccupiesCodeTable(t *testing.T) {
	s, _ := openState(t)
	if s.Codes.Len() == 0 {
		t.Error("prelude appended no units")
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoadReturnsUnitCount(t *testing.T) {
	s, out := openState(t)
	before := s.Codes.Len()

	n, err := Load(s, "def a; end\ndef b; end\nputs 1", &Context{NoExec: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 3 {
		t.Errorf("Load appended %d units, want 3", n)
	}
	if s.Codes.Len() != before+3 {
		t.Errorf("code table grew from %d to %d", before, s.Codes.Len())
	}
	if out.Len() != 0 {
		t.Errorf("NoExec ran the code: output %q", out.String())
	}
	if s.ObjectClass.HasOwnMethod("a") {
		t.Error("NoExec defined methods")
	}
}

func TestLoadExecutes(t *testing.T) {
	s, out := openState(t)
	if _, err := Load(s, "def greet(n)\n  puts 'hi ' + n\nend\ngreet 'bob'", nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.String() != "hi bob\n" {
		t.Errorf("output = %q", out.String())
	}
	if !s.ObjectClass.HasOwnMethod("greet") {
		t.Error("greet not defined on Object")
	}
}

func TestLoadSyntaxError(t *testing.T) {
	s, _ := openState(t)
	before := s.Codes.Len()

	n, err := Load(s, "1 +", &Context{Filename: "bad.rb"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if n != 0 || s.Codes.Len() != before {
		t.Errorf("syntax error appended units: n = %d, len %d -> %d", n, before, s.Codes.Len())
	}
	exc, ok := vm.AsException(err)
	if !ok || exc.Class() != s.SyntaxErrorClass {
		t.Fatalf("error = %v, want SyntaxError", err)
	}
	if s.Exc != exc {
		t.Error("SyntaxError not recorded on the state")
	}
	if want := "bad.rb:1:4: unexpected end-of-input"; exc.Message != want {
		t.Errorf("message = %q, want %q", exc.Message, want)
	}
}

func TestRuntimeErrorBacktrace(t *testing.T) {
	s, _ := openState(t)
	_, err := Eval(s, "def bad\n  nope\nend\nbad", &Context{Filename: "t.rb"})
	exc, ok := vm.AsException(err)
	if !ok || exc.Class() != s.NoMethodErrorClass {
		t.Fatalf("error = %v, want NoMethodError", err)
	}
	if exc.Message != "undefined method 'nope' for main" {
		t.Errorf("message = %q", exc.Message)
	}
	if want := []string{"t.rb:2", "t.rb:4"}; !slices.Equal(exc.Backtrace, want) {
		t.Errorf("backtrace = %v, want %v", exc.Backtrace, want)
	}
}

func TestArgumentCountChecked(t *testing.T) {
	s, _ := openState(t)
	_, err := Eval(s, "def one(a); a; end\none(1, 2)", nil)
	exc, ok := vm.AsException(err)
	if !ok || exc.Class() != s.ArgumentErrorClass {
		t.Fatalf("error = %v, want ArgumentError", err)
	}
	if exc.Message != "wrong number of arguments (given 2, expected 1)" {
		t.Errorf("message = %q", exc.Message)
	}
}

func TestLoadOnClosedState(t *testing.T) {
	s, err := vm.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close()
	if _, err := Load(s, "1", nil); err == nil {
		t.Error("Load on a closed state succeeded")
	}
}
