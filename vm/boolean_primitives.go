package vm

// ---------------------------------------------------------------------------
// nil, true and false
// ---------------------------------------------------------------------------

func (s *State) registerBooleanPrimitives() {
	constString := func(str string) Func {
		return func(s *State, self Value, args []Value) (Value, error) {
			return s.NewString(str), nil
		}
	}

	s.NilClass.DefineMethod("to_s", constString(""), 0)
	s.NilClass.DefineMethod("inspect", constString("nil"), 0)
	s.NilClass.DefineMethod("to_a", func(s *State, self Value, args []Value) (Value, error) {
		return s.NewArray(), nil
	}, 0)

	s.TrueClass.DefineMethod("to_s", constString("true"), 0)
	s.TrueClass.DefineMethod("inspect", constString("true"), 0)
	s.FalseClass.DefineMethod("to_s", constString("false"), 0)
	s.FalseClass.DefineMethod("inspect", constString("false"), 0)

	for _, c := range []*RClass{s.NilClass, s.TrueClass, s.FalseClass} {
		c.DefineMethod("&", func(s *State, self Value, args []Value) (Value, error) {
			return FromBool(self.Truthy() && args[0].Truthy()), nil
		}, 1)
		c.DefineMethod("|", func(s *State, self Value, args []Value) (Value, error) {
			return FromBool(self.Truthy() || args[0].Truthy()), nil
		}, 1)
	}
}
