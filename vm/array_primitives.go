package vm

import "strings"

// ---------------------------------------------------------------------------
// Array primitives
// ---------------------------------------------------------------------------

func (s *State) registerArrayPrimitives() {
	c := s.ArrayClass

	size := func(s *State, self Value, args []Value) (Value, error) {
		return FromInt(int64(self.AsArray().Len())), nil
	}
	c.DefineMethod("size", size, 0)
	c.DefineMethod("length", size, 0)

	c.DefineMethod("[]", func(s *State, self Value, args []Value) (Value, error) {
		if !args[0].IsInt() {
			return Nil, s.Raisef(s.TypeErrorClass, "no implicit conversion of %s into Integer", s.ClassOf(args[0]).Name)
		}
		return self.AsArray().At(int(args[0].i)), nil
	}, 1)

	c.DefineMethod("[]=", func(s *State, self Value, args []Value) (Value, error) {
		if !args[0].IsInt() {
			return Nil, s.Raisef(s.TypeErrorClass, "no implicit conversion of %s into Integer", s.ClassOf(args[0]).Name)
		}
		a := self.AsArray()
		i := int(args[0].i)
		if i < 0 {
			i += len(a.elems)
			if i < 0 {
				return Nil, s.Raisef(s.ArgumentErrorClass, "index %d too small for array", args[0].i)
			}
		}
		for len(a.elems) <= i {
			a.elems = append(a.elems, Nil)
		}
		a.elems[i] = args[1]
		return args[1], nil
	}, 2)

	push := func(s *State, self Value, args []Value) (Value, error) {
		a := self.AsArray()
		a.elems = append(a.elems, args...)
		return self, nil
	}
	c.DefineMethod("push", push, -1)
	c.DefineMethod("<<", push, 1)

	c.DefineMethod("pop", func(s *State, self Value, args []Value) (Value, error) {
		a := self.AsArray()
		if len(a.elems) == 0 {
			return Nil, nil
		}
		v := a.elems[len(a.elems)-1]
		a.elems = a.elems[:len(a.elems)-1]
		return v, nil
	}, 0)

	c.DefineMethod("first", func(s *State, self Value, args []Value) (Value, error) {
		return self.AsArray().At(0), nil
	}, 0)
	c.DefineMethod("last", func(s *State, self Value, args []Value) (Value, error) {
		return self.AsArray().At(-1), nil
	}, 0)
	c.DefineMethod("empty?", func(s *State, self Value, args []Value) (Value, error) {
		return FromBool(self.AsArray().Len() == 0), nil
	}, 0)

	c.DefineMethod("+", func(s *State, self Value, args []Value) (Value, error) {
		o := args[0].AsArray()
		if o == nil {
			return Nil, s.Raisef(s.TypeErrorClass, "no implicit conversion of %s into Array", s.ClassOf(args[0]).Name)
		}
		return s.NewArray(append(append([]Value(nil), self.AsArray().elems...), o.elems...)...), nil
	}, 1)

	c.DefineMethod("==", func(s *State, self Value, args []Value) (Value, error) {
		a, b := self.AsArray(), args[0].AsArray()
		if b == nil || len(a.elems) != len(b.elems) {
			return False, nil
		}
		for i := range a.elems {
			eq, err := s.Equal(a.elems[i], b.elems[i])
			if err != nil || !eq {
				return False, err
			}
		}
		return True, nil
	}, 1)

	c.DefineMethod("join", func(s *State, self Value, args []Value) (Value, error) {
		sep := ""
		if len(args) > 0 {
			str, err := s.ToS(args[0])
			if err != nil {
				return Nil, err
			}
			sep = str
		}
		parts := make([]string, 0, self.AsArray().Len())
		for _, e := range self.AsArray().elems {
			str, err := s.ToS(e)
			if err != nil {
				return Nil, err
			}
			parts = append(parts, str)
		}
		return s.NewString(strings.Join(parts, sep)), nil
	}, -1)

	inspect := func(s *State, self Value, args []Value) (Value, error) {
		parts := make([]string, 0, self.AsArray().Len())
		for _, e := range self.AsArray().elems {
			str, err := s.Inspect(e)
			if err != nil {
				return Nil, err
			}
			parts = append(parts, str)
		}
		return s.NewString("[" + strings.Join(parts, ", ") + "]"), nil
	}
	c.DefineMethod("inspect", inspect, 0)
	c.DefineMethod("to_s", inspect, 0)
}
