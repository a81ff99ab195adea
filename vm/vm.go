package vm

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
)

// DefaultMaxCallDepth bounds nested method calls before SystemStackError.
const DefaultMaxCallDepth = 512

// ---------------------------------------------------------------------------
// State: one interpreter instance
// ---------------------------------------------------------------------------

// State is a single interpreter: its code table, class hierarchy, globals
// and pending exception. A State is not safe for concurrent use; callers
// that share one across goroutines serialize access (see require.Worker).
type State struct {
	Codes   CodeTable
	Globals map[string]Value

	// Core classes
	BasicObjectClass *RClass
	ObjectClass      *RClass
	ModuleClass      *RClass
	ClassClass       *RClass
	KernelModule     *RClass
	NilClass         *RClass
	TrueClass        *RClass
	FalseClass       *RClass
	IntegerClass     *RClass
	FloatClass       *RClass
	StringClass      *RClass
	SymbolClass      *RClass
	ArrayClass       *RClass
	ProcClass        *RClass

	// Exception hierarchy
	ExceptionClass           *RClass
	ScriptErrorClass         *RClass
	LoadErrorClass           *RClass
	NotImplementedErrorClass *RClass
	SyntaxErrorClass         *RClass
	StandardErrorClass       *RClass
	RuntimeErrorClass        *RClass
	ArgumentErrorClass       *RClass
	TypeErrorClass           *RClass
	NameErrorClass           *RClass
	NoMethodErrorClass       *RClass
	ZeroDivisionErrorClass   *RClass
	SystemStackErrorClass    *RClass
	SystemCallErrorClass     *RClass
	FrozenErrorClass         *RClass

	// TopSelf is the receiver of top-level code ("main").
	TopSelf Value

	// Exc is the pending exception recorded by the most recent failure, or
	// nil. Successful operations do not clear it.
	Exc *RException

	Stdout       io.Writer
	MaxCallDepth int

	arena  []any
	depth  int
	gems   []Gem
	closed bool
	log    commonlog.Logger
}

// Open creates an interpreter with the core classes and then initializes
// each gem in order. If a gem fails, the gems already initialized are
// finalized and the error is returned.
func Open(gems ...Gem) (*State, error) {
	s := &State{
		Globals:      make(map[string]Value),
		Stdout:       os.Stdout,
		MaxCallDepth: DefaultMaxCallDepth,
		log:          commonlog.GetLogger("rite.vm"),
	}
	s.bootstrap()

	for _, g := range gems {
		if g.Init != nil {
			if err := g.Init(s); err != nil {
				s.Close()
				return nil, fmt.Errorf("gem %s: %w", g.Name, err)
			}
		}
		s.gems = append(s.gems, g)
		s.log.Debugf("gem %s initialized", g.Name)
	}
	return s, nil
}

// Close finalizes gems in reverse order and releases the interpreter.
// Closing twice is a no-op.
func (s *State) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for i := len(s.gems) - 1; i >= 0; i-- {
		if fin := s.gems[i].Final; fin != nil {
			fin(s)
		}
	}
	s.gems = nil
	s.arena = nil
	s.Globals = nil
}

// Closed reports whether Close has been called.
func (s *State) Closed() bool { return s.closed }

func (s *State) defineClass(name string, super *RClass) *RClass {
	c := newClass(name, super)
	c.c = s.ClassClass
	if s.ObjectClass != nil {
		s.ObjectClass.ConstSet(name, ClassValue(c))
	}
	return c
}

func (s *State) bootstrap() {
	s.BasicObjectClass = newClass("BasicObject", nil)
	s.ObjectClass = newClass("Object", s.BasicObjectClass)
	s.ModuleClass = newClass("Module", s.ObjectClass)
	s.ClassClass = newClass("Class", s.ModuleClass)
	for _, c := range []*RClass{s.BasicObjectClass, s.ObjectClass, s.ModuleClass, s.ClassClass} {
		c.c = s.ClassClass
		s.ObjectClass.ConstSet(c.Name, ClassValue(c))
	}

	s.KernelModule = s.defineClass("Kernel", nil)
	s.KernelModule.IsModule = true
	s.KernelModule.c = s.ModuleClass
	s.ObjectClass.Include(s.KernelModule)

	s.NilClass = s.defineClass("NilClass", s.ObjectClass)
	s.TrueClass = s.defineClass("TrueClass", s.ObjectClass)
	s.FalseClass = s.defineClass("FalseClass", s.ObjectClass)
	s.IntegerClass = s.defineClass("Integer", s.ObjectClass)
	s.FloatClass = s.defineClass("Float", s.ObjectClass)
	s.StringClass = s.defineClass("String", s.ObjectClass)
	s.SymbolClass = s.defineClass("Symbol", s.ObjectClass)
	s.ArrayClass = s.defineClass("Array", s.ObjectClass)
	s.ProcClass = s.defineClass("Proc", s.ObjectClass)

	s.ExceptionClass = s.defineClass("Exception", s.ObjectClass)
	s.ScriptErrorClass = s.defineClass("ScriptError", s.ExceptionClass)
	s.LoadErrorClass = s.defineClass("LoadError", s.ScriptErrorClass)
	s.NotImplementedErrorClass = s.defineClass("NotImplementedError", s.ScriptErrorClass)
	s.SyntaxErrorClass = s.defineClass("SyntaxError", s.ScriptErrorClass)
	s.StandardErrorClass = s.defineClass("StandardError", s.ExceptionClass)
	s.RuntimeErrorClass = s.defineClass("RuntimeError", s.StandardErrorClass)
	s.ArgumentErrorClass = s.defineClass("ArgumentError", s.StandardErrorClass)
	s.TypeErrorClass = s.defineClass("TypeError", s.StandardErrorClass)
	s.NameErrorClass = s.defineClass("NameError", s.StandardErrorClass)
	s.NoMethodErrorClass = s.defineClass("NoMethodError", s.NameErrorClass)
	s.ZeroDivisionErrorClass = s.defineClass("ZeroDivisionError", s.StandardErrorClass)
	s.SystemStackErrorClass = s.defineClass("SystemStackError", s.ExceptionClass)
	s.SystemCallErrorClass = s.defineClass("SystemCallError", s.StandardErrorClass)
	s.FrozenErrorClass = s.defineClass("FrozenError", s.RuntimeErrorClass)

	s.TopSelf = s.NewObject(s.ObjectClass)

	s.registerObjectPrimitives()
	s.registerBooleanPrimitives()
	s.registerIntegerPrimitives()
	s.registerFloatPrimitives()
	s.registerStringPrimitives()
	s.registerSymbolPrimitives()
	s.registerArrayPrimitives()

	// bootstrap allocations live as long as the state
	s.arena = s.arena[:0]
}

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// ErrStop is returned when execution reaches OpStop. Run treats it as
// normal completion; Yield passes it through, so a unit that still ends in
// OpStop halts the caller that invoked it as a nested proc.
var ErrStop = errors.New("vm: stop")

// Run executes p as a top-level unit with self as the receiver.
func (s *State) Run(p *RProc, self Value) (Value, error) {
	target := p.TargetClass
	if target == nil {
		target = s.ObjectClass
	}
	v, err := s.invoke(p, self, nil, target)
	if errors.Is(err, ErrStop) {
		return v, nil
	}
	return v, err
}

// Yield invokes p with args, self and the class that receives method
// definitions made by p.
func (s *State) Yield(p *RProc, args []Value, self Value, target *RClass) (Value, error) {
	return s.invoke(p, self, args, target)
}

// Funcall sends name to self.
func (s *State) Funcall(self Value, name string, args ...Value) (Value, error) {
	return s.send(self, name, args)
}

// LoadProc wraps unit idx of the code table in a proc targeting Object.
func (s *State) LoadProc(idx int) (*RProc, error) {
	irep := s.Codes.abs(idx)
	if irep == nil {
		return nil, fmt.Errorf("vm: no unit at index %d", idx)
	}
	return s.NewProc(irep, s.ObjectClass), nil
}

// Logger returns the interpreter's logger.
func (s *State) Logger() commonlog.Logger { return s.log }
