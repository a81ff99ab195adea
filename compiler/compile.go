package compiler

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/rite/vm"
)

// DefaultFilename is recorded for source that has no path.
const DefaultFilename = "-"

var log = commonlog.GetLogger("rite.compiler")

// Context controls a single compilation.
type Context struct {
	// Filename is used in error messages and recorded as debug info.
	Filename string
	// NoExec appends the compiled units without running them.
	NoExec bool
	// NoDebug omits filename and line information from the units.
	NoDebug bool
}

func (ctx *Context) filename() string {
	if ctx == nil || ctx.Filename == "" {
		return DefaultFilename
	}
	return ctx.Filename
}

// Compile parses and generates src without touching any interpreter. The
// first returned unit is the top-level body.
func Compile(src string, ctx *Context) ([]*vm.Irep, error) {
	filename := ctx.filename()
	p := NewParser(src, filename)
	prog, err := p.ParseProgram()
	if err != nil {
		return nil, err
	}
	c := NewCompiler(filename, ctx != nil && ctx.NoDebug)
	return c.CompileProgram(prog)
}

// Load compiles src into the code table of s and returns how many units
// were appended. Unless ctx.NoExec is set the top-level unit is then run.
//
// A syntax error appends nothing; it is recorded on s as a SyntaxError
// exception and returned.
func Load(s *vm.State, src string, ctx *Context) (int, error) {
	n, _, err := load(s, src, ctx)
	return n, err
}

// Eval compiles and runs src, returning the value of its last statement.
func Eval(s *vm.State, src string, ctx *Context) (vm.Value, error) {
	var exec Context
	if ctx != nil {
		exec = *ctx
	}
	exec.NoExec = false
	_, v, err := load(s, src, &exec)
	return v, err
}

func load(s *vm.State, src string, ctx *Context) (int, vm.Value, error) {
	if s.Closed() {
		return 0, vm.Nil, fmt.Errorf("compiler: state is closed")
	}
	units, err := Compile(src, ctx)
	if err != nil {
		return 0, vm.Nil, s.RaiseWithCause(s.SyntaxErrorClass, err.Error(), err)
	}
	first, err := s.Codes.Append(units...)
	if err != nil {
		return 0, vm.Nil, fmt.Errorf("compiler: %w", err)
	}
	log.Debugf("%s: appended %d units at %d", ctx.filename(), len(units), first)

	if ctx != nil && ctx.NoExec {
		return len(units), vm.Nil, nil
	}
	p, err := s.LoadProc(first)
	if err != nil {
		return len(units), vm.Nil, err
	}
	v, err := s.Run(p, s.TopSelf)
	return len(units), v, err
}
