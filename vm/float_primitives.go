package vm

import "math"

// ---------------------------------------------------------------------------
// Float primitives
// ---------------------------------------------------------------------------

func floatMod(x, y float64) float64 {
	m := math.Mod(x, y)
	if m != 0 && (m < 0) != (y < 0) {
		m += y
	}
	return m
}

// floatToInt truncates f, raising for values outside the integer range.
func (s *State) floatToInt(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return Nil, s.Raisef(s.ArgumentErrorClass, "%s out of integer range", formatFloat(f))
	}
	return FromInt(int64(f)), nil
}

func (s *State) registerFloatPrimitives() {
	c := s.FloatClass
	s.defineArith(c)

	c.DefineMethod("%", func(s *State, self Value, args []Value) (Value, error) {
		if !args[0].IsNumeric() {
			return Nil, s.Raisef(s.TypeErrorClass, "%s can't be coerced into Float", s.ClassOf(args[0]).Name)
		}
		return FromFloat(floatMod(self.f, args[0].ToFloat())), nil
	}, 1)

	c.DefineMethod("-@", func(s *State, self Value, args []Value) (Value, error) {
		return FromFloat(-self.f), nil
	}, 0)

	toS := func(s *State, self Value, args []Value) (Value, error) {
		return s.NewString(formatFloat(self.f)), nil
	}
	c.DefineMethod("to_s", toS, 0)
	c.DefineMethod("inspect", toS, 0)

	c.DefineMethod("to_f", func(s *State, self Value, args []Value) (Value, error) {
		return self, nil
	}, 0)
	c.DefineMethod("to_i", func(s *State, self Value, args []Value) (Value, error) {
		return s.floatToInt(self.f)
	}, 0)
	c.DefineMethod("floor", func(s *State, self Value, args []Value) (Value, error) {
		return s.floatToInt(math.Floor(self.f))
	}, 0)
	c.DefineMethod("ceil", func(s *State, self Value, args []Value) (Value, error) {
		return s.floatToInt(math.Ceil(self.f))
	}, 0)
	c.DefineMethod("round", func(s *State, self Value, args []Value) (Value, error) {
		return s.floatToInt(math.Round(self.f))
	}, 0)
	c.DefineMethod("nan?", func(s *State, self Value, args []Value) (Value, error) {
		return FromBool(math.IsNaN(self.f)), nil
	}, 0)
}
