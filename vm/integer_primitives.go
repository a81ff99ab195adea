package vm

import (
	"math"
	"strconv"
)

// ---------------------------------------------------------------------------
// Numeric primitives shared by Integer and Float
// ---------------------------------------------------------------------------

var arithSelectors = map[string]Opcode{
	"+":  OpAdd,
	"-":  OpSub,
	"*":  OpMul,
	"/":  OpDiv,
	"==": OpEQ,
	"<":  OpLT,
	"<=": OpLE,
	">":  OpGT,
	">=": OpGE,
}

func (s *State) defineArith(c *RClass) {
	for sel, op := range arithSelectors {
		c.DefineMethod(sel, func(s *State, self Value, args []Value) (Value, error) {
			v, ok, err := s.arith(op, self, args[0])
			if err != nil {
				return Nil, err
			}
			if !ok {
				if op == OpEQ {
					return False, nil
				}
				return Nil, s.Raisef(s.TypeErrorClass, "%s can't be coerced into %s",
					s.ClassOf(args[0]).Name, s.ClassOf(self).Name)
			}
			return v, nil
		}, 1)
	}
}

// ---------------------------------------------------------------------------
// Integer primitives
// ---------------------------------------------------------------------------

func (s *State) registerIntegerPrimitives() {
	c := s.IntegerClass
	s.defineArith(c)

	c.DefineMethod("%", func(s *State, self Value, args []Value) (Value, error) {
		if args[0].IsFloat() {
			return FromFloat(floatMod(self.ToFloat(), args[0].f)), nil
		}
		if !args[0].IsInt() {
			return Nil, s.Raisef(s.TypeErrorClass, "%s can't be coerced into Integer", s.ClassOf(args[0]).Name)
		}
		x, y := self.i, args[0].i
		if y == 0 {
			return Nil, s.Raise(s.ZeroDivisionErrorClass, "divided by 0")
		}
		m := x % y
		if m != 0 && (m < 0) != (y < 0) {
			m += y
		}
		return FromInt(m), nil
	}, 1)

	c.DefineMethod("-@", func(s *State, self Value, args []Value) (Value, error) {
		if self.i == math.MinInt64 {
			return FromFloat(-float64(self.i)), nil
		}
		return FromInt(-self.i), nil
	}, 0)

	c.DefineMethod("abs", func(s *State, self Value, args []Value) (Value, error) {
		if self.i < 0 {
			return s.send(self, "-@", nil)
		}
		return self, nil
	}, 0)

	toS := func(s *State, self Value, args []Value) (Value, error) {
		return s.NewString(strconv.FormatInt(self.i, 10)), nil
	}
	c.DefineMethod("to_s", toS, 0)
	c.DefineMethod("inspect", toS, 0)

	c.DefineMethod("to_i", func(s *State, self Value, args []Value) (Value, error) {
		return self, nil
	}, 0)
	c.DefineMethod("to_f", func(s *State, self Value, args []Value) (Value, error) {
		return FromFloat(float64(self.i)), nil
	}, 0)

	c.DefineMethod("zero?", func(s *State, self Value, args []Value) (Value, error) {
		return FromBool(self.i == 0), nil
	}, 0)
	c.DefineMethod("even?", func(s *State, self Value, args []Value) (Value, error) {
		return FromBool(self.i%2 == 0), nil
	}, 0)
	c.DefineMethod("odd?", func(s *State, self Value, args []Value) (Value, error) {
		return FromBool(self.i%2 != 0), nil
	}, 0)
}
