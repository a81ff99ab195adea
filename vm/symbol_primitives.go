package vm

// ---------------------------------------------------------------------------
// Symbol and Proc primitives
// ---------------------------------------------------------------------------

func (s *State) registerSymbolPrimitives() {
	c := s.SymbolClass

	c.DefineMethod("to_s", func(s *State, self Value, args []Value) (Value, error) {
		return s.NewString(self.sym), nil
	}, 0)
	c.DefineMethod("to_sym", func(s *State, self Value, args []Value) (Value, error) {
		return self, nil
	}, 0)
	c.DefineMethod("inspect", func(s *State, self Value, args []Value) (Value, error) {
		return s.NewString(":" + self.sym), nil
	}, 0)

	p := s.ProcClass
	p.DefineMethod("call", func(s *State, self Value, args []Value) (Value, error) {
		proc := self.AsProc()
		return s.Yield(proc, args, s.TopSelf, proc.TargetClass)
	}, -1)
	p.DefineMethod("arity", func(s *State, self Value, args []Value) (Value, error) {
		proc := self.AsProc()
		if proc.Irep == nil {
			return FromInt(-1), nil
		}
		return FromInt(int64(proc.Irep.Arity())), nil
	}, 0)
}
