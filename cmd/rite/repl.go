package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/rite/compiler"
	"github.com/chazu/rite/require"
	"github.com/chazu/rite/vm"
)

// runREPL reads lines from in until EOF or "exit". Input that ends in the
// middle of a construct keeps accumulating until it parses.
func runREPL(loader *require.Loader, s *vm.State, in io.Reader, out io.Writer) {
	fmt.Fprintln(out, "rite REPL (type 'exit' to quit, ':help' for commands)")

	scanner := bufio.NewScanner(in)
	var lineBuffer strings.Builder

	for {
		if lineBuffer.Len() == 0 {
			fmt.Fprint(out, ">> ")
		} else {
			fmt.Fprint(out, ".. ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if lineBuffer.Len() == 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "exit" || trimmed == "quit" {
				break
			}
			if strings.HasPrefix(trimmed, ":") {
				handleREPLCommand(loader, s, trimmed, out)
				continue
			}
		}

		if lineBuffer.Len() > 0 {
			lineBuffer.WriteString("\n")
		}
		lineBuffer.WriteString(line)

		input := lineBuffer.String()
		if strings.TrimSpace(input) == "" {
			lineBuffer.Reset()
			continue
		}
		if incomplete(input) && line != "" {
			continue
		}
		lineBuffer.Reset()
		evalAndPrint(s, input, out)
	}
	fmt.Fprintln(out)
}

// incomplete reports whether src stops in the middle of a construct.
func incomplete(src string) bool {
	_, err := compiler.NewParser(src, "(repl)").ParseProgram()
	return err != nil && strings.Contains(err.Error(), "end-of-input")
}

func evalAndPrint(s *vm.State, input string, out io.Writer) {
	v, err := compiler.Eval(s, input, &compiler.Context{Filename: "(repl)"})
	if err != nil {
		reportError(out, err)
		return
	}
	str, err := s.Inspect(v)
	if err != nil {
		reportError(out, err)
		return
	}
	fmt.Fprintf(out, "=> %s\n", str)
}

func handleREPLCommand(loader *require.Loader, s *vm.State, line string, out io.Writer) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case ":help", ":h":
		fmt.Fprintln(out, "Commands:")
		fmt.Fprintln(out, "  :load <file>   Load a source or bytecode file")
		fmt.Fprintln(out, "  :units         Show the number of units in the code table")
		fmt.Fprintln(out, "  :dis <n>       Disassemble unit n")
		fmt.Fprintln(out, "  :help          Show this help")
	case ":load", ":l":
		if arg == "" {
			fmt.Fprintln(out, "Usage: :load <file>")
			return
		}
		if err := runPath(loader, s, arg); err != nil {
			reportError(out, err)
			return
		}
		fmt.Fprintf(out, "Loaded %s\n", arg)
	case ":units":
		fmt.Fprintf(out, "%d units\n", s.Codes.Len())
	case ":dis":
		var idx int
		if _, err := fmt.Sscanf(arg, "%d", &idx); err != nil {
			fmt.Fprintln(out, "Usage: :dis <unit index>")
			return
		}
		ir := s.Codes.At(idx)
		if ir == nil {
			fmt.Fprintf(out, "No unit %d\n", idx)
			return
		}
		fmt.Fprintln(out, vm.Disassemble(ir))
	default:
		fmt.Fprintf(out, "Unknown command %s (try :help)\n", cmd)
	}
}
