package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Conversions used by the primitives
// ---------------------------------------------------------------------------

// ToS converts v to a Go string through its to_s method.
func (s *State) ToS(v Value) (string, error) {
	if str := v.AsString(); str != nil {
		return str.str, nil
	}
	r, err := s.send(v, "to_s", nil)
	if err != nil {
		return "", err
	}
	if str := r.AsString(); str != nil {
		return str.str, nil
	}
	return r.String(), nil
}

// Inspect converts v to a Go string through its inspect method.
func (s *State) Inspect(v Value) (string, error) {
	r, err := s.send(v, "inspect", nil)
	if err != nil {
		return "", err
	}
	if str := r.AsString(); str != nil {
		return str.str, nil
	}
	return r.String(), nil
}

// Equal compares two values with ==.
func (s *State) Equal(a, b Value) (bool, error) {
	if a == b {
		return true, nil
	}
	r, err := s.send(a, "==", []Value{b})
	if err != nil {
		return false, err
	}
	return r.Truthy(), nil
}

func (s *State) writeLine(line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	_, err := fmt.Fprint(s.Stdout, line)
	return err
}

// ---------------------------------------------------------------------------
// Object and Kernel primitives
// ---------------------------------------------------------------------------

func (s *State) registerObjectPrimitives() {
	k := s.KernelModule
	o := s.ObjectClass

	k.DefineMethod("puts", func(s *State, self Value, args []Value) (Value, error) {
		if len(args) == 0 {
			return Nil, s.writeLine("")
		}
		for _, a := range args {
			if arr := a.AsArray(); arr != nil {
				for _, e := range arr.elems {
					str, err := s.ToS(e)
					if err != nil {
						return Nil, err
					}
					if err := s.writeLine(str); err != nil {
						return Nil, err
					}
				}
				continue
			}
			str, err := s.ToS(a)
			if err != nil {
				return Nil, err
			}
			if err := s.writeLine(str); err != nil {
				return Nil, err
			}
		}
		return Nil, nil
	}, -1)

	k.DefineMethod("print", func(s *State, self Value, args []Value) (Value, error) {
		for _, a := range args {
			str, err := s.ToS(a)
			if err != nil {
				return Nil, err
			}
			if _, err := fmt.Fprint(s.Stdout, str); err != nil {
				return Nil, err
			}
		}
		return Nil, nil
	}, -1)

	k.DefineMethod("raise", func(s *State, self Value, args []Value) (Value, error) {
		switch len(args) {
		case 0:
			return Nil, s.Raise(s.RuntimeErrorClass, "unhandled exception")
		case 1:
			a := args[0]
			if e := a.AsException(); e != nil {
				return Nil, s.RaiseException(e)
			}
			if c := a.AsClass(); c != nil && c.IsSubclassOf(s.ExceptionClass) {
				return Nil, s.Raise(c, c.Name)
			}
			msg, err := s.ToS(a)
			if err != nil {
				return Nil, err
			}
			return Nil, s.Raise(s.RuntimeErrorClass, msg)
		case 2:
			c := args[0].AsClass()
			if c == nil || !c.IsSubclassOf(s.ExceptionClass) {
				return Nil, s.Raise(s.TypeErrorClass, "exception class/object expected")
			}
			msg, err := s.ToS(args[1])
			if err != nil {
				return Nil, err
			}
			return Nil, s.Raise(c, msg)
		}
		return Nil, s.Raisef(s.ArgumentErrorClass, "wrong number of arguments (given %d, expected 0..2)", len(args))
	}, -1)

	o.DefineMethod("class", func(s *State, self Value, args []Value) (Value, error) {
		return ClassValue(s.ClassOf(self)), nil
	}, 0)

	o.DefineMethod("==", func(s *State, self Value, args []Value) (Value, error) {
		return FromBool(self == args[0]), nil
	}, 1)

	o.DefineMethod("!=", func(s *State, self Value, args []Value) (Value, error) {
		eq, err := s.Equal(self, args[0])
		return FromBool(!eq), err
	}, 1)

	o.DefineMethod("!", func(s *State, self Value, args []Value) (Value, error) {
		return FromBool(!self.Truthy()), nil
	}, 0)

	o.DefineMethod("nil?", func(s *State, self Value, args []Value) (Value, error) {
		return FromBool(self.IsNil()), nil
	}, 0)

	o.DefineMethod("to_s", func(s *State, self Value, args []Value) (Value, error) {
		if self == s.TopSelf {
			return s.NewString("main"), nil
		}
		return s.NewString(fmt.Sprintf("#<%s>", s.ClassOf(self).Name)), nil
	}, 0)

	o.DefineMethod("inspect", func(s *State, self Value, args []Value) (Value, error) {
		return s.send(self, "to_s", nil)
	}, 0)

	o.DefineMethod("respond_to?", func(s *State, self Value, args []Value) (Value, error) {
		name, err := symbolOrString(s, args[0])
		if err != nil {
			return Nil, err
		}
		return FromBool(s.RespondTo(self, name)), nil
	}, 1)

	isA := func(s *State, self Value, args []Value) (Value, error) {
		c := args[0].AsClass()
		if c == nil {
			return Nil, s.Raise(s.TypeErrorClass, "class or module required")
		}
		return FromBool(s.IsKindOf(self, c)), nil
	}
	o.DefineMethod("is_a?", isA, 1)
	o.DefineMethod("kind_of?", isA, 1)

	o.DefineMethod("instance_variable_get", func(s *State, self Value, args []Value) (Value, error) {
		name, err := symbolOrString(s, args[0])
		if err != nil {
			return Nil, err
		}
		if obj := self.AsObject(); obj != nil {
			return obj.IvarGet(name), nil
		}
		return Nil, nil
	}, 1)

	o.DefineMethod("instance_variable_set", func(s *State, self Value, args []Value) (Value, error) {
		name, err := symbolOrString(s, args[0])
		if err != nil {
			return Nil, err
		}
		obj := self.AsObject()
		if obj == nil {
			return Nil, s.Raisef(s.FrozenErrorClass, "can't modify frozen %s", s.ClassOf(self).Name)
		}
		obj.IvarSet(name, args[1])
		return args[1], nil
	}, 2)

	o.DefineMethod("send", func(s *State, self Value, args []Value) (Value, error) {
		if len(args) == 0 {
			return Nil, s.Raise(s.ArgumentErrorClass, "no method name given")
		}
		name, err := symbolOrString(s, args[0])
		if err != nil {
			return Nil, err
		}
		return s.send(self, name, args[1:])
	}, -1)

	s.registerClassPrimitives()
	s.registerExceptionPrimitives()
}

func symbolOrString(s *State, v Value) (string, error) {
	if v.IsSymbol() {
		return v.sym, nil
	}
	if str := v.AsString(); str != nil {
		return str.str, nil
	}
	return "", s.Raisef(s.TypeErrorClass, "%s is not a symbol nor a string", v)
}

// ---------------------------------------------------------------------------
// Class primitives
// ---------------------------------------------------------------------------

func (s *State) registerClassPrimitives() {
	m := s.ModuleClass

	m.DefineMethod("new", func(s *State, self Value, args []Value) (Value, error) {
		c := self.AsClass()
		if c == nil || c.IsModule {
			return Nil, s.Raisef(s.NoMethodErrorClass, "undefined method 'new' for %s", s.describe(self))
		}
		if c.IsSubclassOf(s.ExceptionClass) {
			msg := c.Name
			if len(args) > 0 {
				var err error
				if msg, err = s.ToS(args[0]); err != nil {
					return Nil, err
				}
			}
			return ExceptionValue(s.NewException(c, msg)), nil
		}
		if !s.allocatable(c) {
			return Nil, s.Raisef(s.NoMethodErrorClass, "undefined method 'new' for %s", c.Name)
		}
		obj := s.NewObject(c)
		if c.LookupMethod("initialize") != nil {
			if _, err := s.send(obj, "initialize", args); err != nil {
				return Nil, err
			}
		}
		return obj, nil
	}, -1)

	name := func(s *State, self Value, args []Value) (Value, error) {
		return s.NewString(self.AsClass().Name), nil
	}
	m.DefineMethod("name", name, 0)
	m.DefineMethod("to_s", name, 0)
	m.DefineMethod("inspect", name, 0)

	m.DefineMethod("superclass", func(s *State, self Value, args []Value) (Value, error) {
		return ClassValue(self.AsClass().Super), nil
	}, 0)

	m.DefineMethod("method_defined?", func(s *State, self Value, args []Value) (Value, error) {
		n, err := symbolOrString(s, args[0])
		if err != nil {
			return Nil, err
		}
		return FromBool(self.AsClass().LookupMethod(n) != nil), nil
	}, 1)

	m.DefineMethod("===", func(s *State, self Value, args []Value) (Value, error) {
		return FromBool(s.IsKindOf(args[0], self.AsClass())), nil
	}, 1)
}

// allocatable reports whether Class#new may create plain objects of c.
// Builtin value classes have dedicated constructors.
func (s *State) allocatable(c *RClass) bool {
	for _, b := range []*RClass{s.NilClass, s.TrueClass, s.FalseClass, s.IntegerClass,
		s.FloatClass, s.StringClass, s.SymbolClass, s.ArrayClass, s.ProcClass, s.ModuleClass} {
		if c.IsSubclassOf(b) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Exception primitives
// ---------------------------------------------------------------------------

func (s *State) registerExceptionPrimitives() {
	e := s.ExceptionClass

	message := func(s *State, self Value, args []Value) (Value, error) {
		return s.NewString(self.AsException().Message), nil
	}
	e.DefineMethod("message", message, 0)
	e.DefineMethod("to_s", message, 0)

	e.DefineMethod("inspect", func(s *State, self Value, args []Value) (Value, error) {
		exc := self.AsException()
		if exc.Message == "" {
			return s.NewString(exc.c.Name), nil
		}
		return s.NewString(fmt.Sprintf("%s (%s)", exc.Message, exc.c.Name)), nil
	}, 0)

	e.DefineMethod("backtrace", func(s *State, self Value, args []Value) (Value, error) {
		exc := self.AsException()
		if exc.Backtrace == nil {
			return Nil, nil
		}
		lines := make([]Value, len(exc.Backtrace))
		for i, l := range exc.Backtrace {
			lines[i] = s.NewString(l)
		}
		return s.NewArray(lines...), nil
	}, 0)

	e.DefineMethod("full_message", func(s *State, self Value, args []Value) (Value, error) {
		return s.NewString(self.AsException().FullMessage()), nil
	}, 0)
}
