package vm

import (
	"errors"
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// invoke runs p with self and args. Method definitions made by the body go
// to target.
func (s *State) invoke(p *RProc, self Value, args []Value, target *RClass) (Value, error) {
	if s.closed {
		return Nil, errors.New("vm: state is closed")
	}
	if p.fn != nil {
		v, err := p.fn(s, self, args)
		return v, s.toException(err)
	}
	if p.Irep == nil {
		return Nil, s.Raise(s.TypeErrorClass, "proc has no body")
	}
	if s.depth >= s.MaxCallDepth {
		return Nil, s.Raise(s.SystemStackErrorClass, "stack level too deep")
	}
	s.depth++
	defer func() { s.depth-- }()
	if target == nil {
		target = s.ObjectClass
	}
	return s.execute(p.Irep, self, args, target)
}

// frameError attaches the current source position to an escaping exception.
func frameError(irep *Irep, pc int, err error) error {
	if e, ok := AsException(err); ok && irep.HasDebugInfo() {
		file := irep.Filename
		if file == "" {
			file = "(unknown)"
		}
		e.Backtrace = append(e.Backtrace, fmt.Sprintf("%s:%d", file, irep.LineAt(pc)))
	}
	return err
}

func (s *State) execute(irep *Irep, self Value, args []Value, target *RClass) (result Value, err error) {
	nregs := max(irep.NRegs, irep.NLocals, len(args)+1, 1)
	regs := make([]Value, nregs)
	regs[0] = self
	copy(regs[1:], args)

	iseq := irep.Iseq
	pc := 0
	defer func() {
		if err != nil && !errors.Is(err, ErrStop) {
			err = frameError(irep, pc, err)
		}
	}()

	for pc < len(iseq) {
		i := iseq[pc]
		switch op := i.Opcode(); op {
		case OpNop:

		case OpMove:
			regs[i.A()] = regs[i.B()]

		case OpLoadL:
			regs[i.A()] = irep.Pool[i.Bx()].Value(s)

		case OpLoadI:
			regs[i.A()] = FromInt(int64(i.SBx()))

		case OpLoadSym:
			regs[i.A()] = FromSymbol(irep.Syms[i.Bx()])

		case OpLoadNil:
			regs[i.A()] = Nil

		case OpLoadSelf:
			regs[i.A()] = self

		case OpLoadT:
			regs[i.A()] = True

		case OpLoadF:
			regs[i.A()] = False

		// --- Variables ---

		case OpGetGlobal:
			if v, ok := s.Globals[irep.Syms[i.Bx()]]; ok {
				regs[i.A()] = v
			} else {
				regs[i.A()] = Nil
			}

		case OpSetGlobal:
			s.Globals[irep.Syms[i.Bx()]] = regs[i.A()]

		case OpGetIV:
			if o := self.AsObject(); o != nil {
				regs[i.A()] = o.IvarGet(irep.Syms[i.Bx()])
			} else {
				regs[i.A()] = Nil
			}

		case OpSetIV:
			o := self.AsObject()
			if o == nil {
				return Nil, s.Raisef(s.FrozenErrorClass, "can't modify frozen %s", s.ClassOf(self).Name)
			}
			o.IvarSet(irep.Syms[i.Bx()], regs[i.A()])

		case OpGetConst:
			name := irep.Syms[i.Bx()]
			v, ok := target.ConstGet(name)
			if !ok {
				v, ok = s.ObjectClass.ConstGet(name)
			}
			if !ok {
				return Nil, s.Raisef(s.NameErrorClass, "uninitialized constant %s", name)
			}
			regs[i.A()] = v

		case OpSetConst:
			target.ConstSet(irep.Syms[i.Bx()], regs[i.A()])

		// --- Control flow ---

		case OpJmp:
			pc += i.SBx()
			continue

		case OpJmpIf:
			if regs[i.A()].Truthy() {
				pc += i.SBx()
				continue
			}

		case OpJmpNot:
			if !regs[i.A()].Truthy() {
				pc += i.SBx()
				continue
			}

		case OpSend:
			a, argc := i.A(), i.C()
			callArgs := make([]Value, argc)
			copy(callArgs, regs[a+1:a+1+argc])
			v, err := s.send(regs[a], irep.Syms[i.B()], callArgs)
			if err != nil {
				return Nil, err
			}
			regs[a] = v

		case OpEnter:
			if want := i.Ax(); len(args) != want {
				return Nil, s.Raisef(s.ArgumentErrorClass,
					"wrong number of arguments (given %d, expected %d)", len(args), want)
			}

		case OpReturn:
			return regs[i.A()], nil

		// --- Arithmetic ---

		case OpAdd, OpSub, OpMul, OpDiv, OpEQ, OpLT, OpLE, OpGT, OpGE:
			a := i.A()
			v, ok, err := s.arith(op, regs[a], regs[a+1])
			if err != nil {
				return Nil, err
			}
			if !ok {
				v, err = s.send(regs[a], irep.Syms[i.B()], []Value{regs[a+1]})
				if err != nil {
					return Nil, err
				}
			}
			regs[a] = v

		// --- Construction ---

		case OpArray:
			b, n := i.B(), i.C()
			regs[i.A()] = s.NewArray(regs[b : b+n]...)

		case OpString:
			regs[i.A()] = s.NewString(irep.Pool[i.Bx()].Str)

		case OpLambda:
			child := s.Codes.abs(irep.Idx + i.Bz())
			if child == nil {
				return Nil, s.Raisef(s.RuntimeErrorClass, "no unit at relative index %d", i.Bz())
			}
			regs[i.A()] = ProcValue(s.NewProc(child, target))

		case OpMethod:
			a := i.A()
			cls := regs[a].AsClass()
			body := regs[a+1].AsProc()
			if cls == nil || body == nil {
				return Nil, s.Raise(s.TypeErrorClass, "method definition needs a class and a proc")
			}
			cls.DefineProcMethod(irep.Syms[i.B()], body)

		case OpTClass:
			regs[i.A()] = ClassValue(target)

		case OpStop:
			v := Nil
			if irep.NLocals < len(regs) {
				v = regs[irep.NLocals]
			}
			return v, ErrStop

		default:
			return Nil, s.Raisef(s.RuntimeErrorClass, "unknown opcode %d", uint8(op))
		}
		pc++
	}
	return Nil, nil
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

func (s *State) send(self Value, name string, args []Value) (Value, error) {
	m := s.ClassOf(self).LookupMethod(name)
	if m == nil {
		return Nil, s.Raisef(s.NoMethodErrorClass, "undefined method '%s' for %s", name, s.describe(self))
	}
	if m.Fn != nil {
		if m.Arity >= 0 && len(args) != m.Arity {
			return Nil, s.Raisef(s.ArgumentErrorClass,
				"wrong number of arguments (given %d, expected %d)", len(args), m.Arity)
		}
		v, err := m.Fn(s, self, args)
		return v, s.toException(err)
	}
	return s.invoke(m.Proc, self, args, m.Proc.TargetClass)
}

// RespondTo reports whether v has a method called name.
func (s *State) RespondTo(v Value, name string) bool {
	return s.ClassOf(v).LookupMethod(name) != nil
}

// describe names a receiver in error messages.
func (s *State) describe(v Value) string {
	switch {
	case v == s.TopSelf:
		return "main"
	case v.IsNil():
		return "nil"
	case v.tt == TypeTrue:
		return "true"
	case v.tt == TypeFalse:
		return "false"
	case v.tt == TypeClass:
		return v.AsClass().Name
	}
	return "an instance of " + s.ClassOf(v).Name
}

// ---------------------------------------------------------------------------
// Numeric fast paths
// ---------------------------------------------------------------------------

// arith applies op to two numeric operands. ok is false when either operand
// is not numeric, in which case the caller falls back to a method send.
func (s *State) arith(op Opcode, a, b Value) (Value, bool, error) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return Nil, false, nil
	}
	if a.IsInt() && b.IsInt() {
		v, err := s.intArith(op, a.i, b.i)
		return v, true, err
	}
	x, y := a.ToFloat(), b.ToFloat()
	switch op {
	case OpAdd:
		return FromFloat(x + y), true, nil
	case OpSub:
		return FromFloat(x - y), true, nil
	case OpMul:
		return FromFloat(x * y), true, nil
	case OpDiv:
		return FromFloat(x / y), true, nil
	case OpEQ:
		return FromBool(x == y), true, nil
	case OpLT:
		return FromBool(x < y), true, nil
	case OpLE:
		return FromBool(x <= y), true, nil
	case OpGT:
		return FromBool(x > y), true, nil
	case OpGE:
		return FromBool(x >= y), true, nil
	}
	return Nil, false, nil
}

// intArith is integer arithmetic that overflows into floats and floors
// division.
func (s *State) intArith(op Opcode, x, y int64) (Value, error) {
	switch op {
	case OpAdd:
		r := x + y
		if (y > 0 && r < x) || (y < 0 && r > x) {
			return FromFloat(float64(x) + float64(y)), nil
		}
		return FromInt(r), nil
	case OpSub:
		r := x - y
		if (y > 0 && r > x) || (y < 0 && r < x) {
			return FromFloat(float64(x) - float64(y)), nil
		}
		return FromInt(r), nil
	case OpMul:
		if x == 0 || y == 0 {
			return FromInt(0), nil
		}
		r := x * y
		if r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
			return FromFloat(float64(x) * float64(y)), nil
		}
		return FromInt(r), nil
	case OpDiv:
		if y == 0 {
			return Nil, s.Raise(s.ZeroDivisionErrorClass, "divided by 0")
		}
		if x == math.MinInt64 && y == -1 {
			return FromFloat(-float64(x)), nil
		}
		q := x / y
		if x%y != 0 && (x < 0) != (y < 0) {
			q--
		}
		return FromInt(q), nil
	case OpEQ:
		return FromBool(x == y), nil
	case OpLT:
		return FromBool(x < y), nil
	case OpLE:
		return FromBool(x <= y), nil
	case OpGT:
		return FromBool(x > y), nil
	case OpGE:
		return FromBool(x >= y), nil
	}
	return Nil, fmt.Errorf("vm: not an arithmetic opcode: %s", op)
}
