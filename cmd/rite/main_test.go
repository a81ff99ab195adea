package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	// -config points at an empty directory so no stray rite.toml is picked up
	args = append([]string{"-config", t.TempDir()}, args...)
	code := run(args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunEval(t *testing.T) {
	code, out, errOut := runCLI(t, "", "-e", "puts 1 + 1")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "2\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestRunSourceFile(t *testing.T) {
	dir := t.TempDir()
	lib := writeFile(t, dir, "lib.rb", "def greet(n)\n  'hello ' + n\nend")
	app := writeFile(t, dir, "app.rb", "puts greet('world')")

	code, out, errOut := runCLI(t, "", lib, app)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "hello world\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestCompileThenRun(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "prog.rb", "x = 6\nputs x * 7")
	bin := filepath.Join(dir, "prog.bin")

	if code, _, errOut := runCLI(t, "", "-c", "-z", "-o", bin, src); code != 0 {
		t.Fatalf("compile exit %d: %s", code, errOut)
	}
	code, out, errOut := runCLI(t, "", bin)
	if code != 0 {
		t.Fatalf("run exit %d: %s", code, errOut)
	}
	if out != "42\n" {
		t.Errorf("stdout = %q", out)
	}

	// default output name
	if code, _, errOut := runCLI(t, "", "-c", src); code != 0 {
		t.Fatalf("compile exit %d: %s", code, errOut)
	}
	if _, err := os.Stat(filepath.Join(dir, "prog.mrb")); err != nil {
		t.Errorf("prog.mrb not written: %v", err)
	}
}

func TestRunReportsLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"syntax error", []string{"-e", "1 +"}, "can't load file -- -e"},
		{"missing file", []string{"/nonexistent/x.rb"}, "can't open file -- /nonexistent/x.rb"},
		{"missing bytecode", []string{"/nonexistent/x.mrb"}, "can't open file -- /nonexistent/x.mrb"},
		{"runtime error", []string{"-e", "fail 'bad'"}, "bad (RuntimeError)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, "", tc.args...)
			if code != 1 {
				t.Errorf("exit %d, want 1", code)
			}
			if !strings.Contains(errOut, tc.want) {
				t.Errorf("stderr = %q, want %q", errOut, tc.want)
			}
		})
	}
}

func TestRunStdin(t *testing.T) {
	code, out, errOut := runCLI(t, "puts :piped\n")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "piped\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestDisassemble(t *testing.T) {
	code, out, errOut := runCLI(t, "", "-d", "-e", "def m; 1; end")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	for _, want := range []string{"irep", "METHOD", "ENTER", "STOP", "file=-e"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly lacks %s:\n%s", want, out)
		}
	}
}

func TestREPL(t *testing.T) {
	input := "$x = 4\ndef sq(n)\n  n * n\nend\nsq($x)\n:units\n:bogus\nexit\n"
	code, out, errOut := runCLI(t, input, "-i")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	for _, want := range []string{"=> 4", "=> :sq", "=> 16", "units", "Unknown command :bogus"} {
		if !strings.Contains(out, want) {
			t.Errorf("REPL output lacks %q:\n%s", want, out)
		}
	}
}

func TestFlagErrors(t *testing.T) {
	if code, _, _ := runCLI(t, "", "-o", "x.mrb", "a.rb"); code != 2 {
		t.Errorf("-o without -c: exit %d, want 2", code)
	}
	if code, _, _ := runCLI(t, "", "-c"); code != 2 {
		t.Errorf("-c without files: exit %d, want 2", code)
	}
}

func TestUsage(t *testing.T) {
	code, _, errOut := runCLI(t, "", "-h")
	if code != 0 {
		t.Errorf("-h: exit %d, want 0", code)
	}
	if !strings.Contains(errOut, "0 = notices, 1 = info, 2 = debug") {
		t.Errorf("usage lacks verbosity levels:\n%s", errOut)
	}
}
