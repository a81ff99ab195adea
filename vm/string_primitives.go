package vm

import (
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// String primitives
// ---------------------------------------------------------------------------

// QuoteString renders a string literal the way inspect shows it.
func QuoteString(str string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range str {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case 0x1b:
			sb.WriteString(`\e`)
		default:
			if r < 0x20 || r == 0x7f {
				sb.WriteString(`\x`)
				sb.WriteString(strconv.FormatInt(int64(r)+0x100, 16)[1:])
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func (s *State) registerStringPrimitives() {
	c := s.StringClass

	str := func(v Value) string { return v.AsString().str }
	argString := func(s *State, v Value) (string, error) {
		if a := v.AsString(); a != nil {
			return a.str, nil
		}
		return "", s.Raisef(s.TypeErrorClass, "no implicit conversion of %s into String", s.ClassOf(v).Name)
	}

	c.DefineMethod("+", func(s *State, self Value, args []Value) (Value, error) {
		other, err := argString(s, args[0])
		if err != nil {
			return Nil, err
		}
		return s.NewString(str(self) + other), nil
	}, 1)

	c.DefineMethod("*", func(s *State, self Value, args []Value) (Value, error) {
		if !args[0].IsInt() {
			return Nil, s.Raisef(s.TypeErrorClass, "no implicit conversion of %s into Integer", s.ClassOf(args[0]).Name)
		}
		if args[0].i < 0 {
			return Nil, s.Raise(s.ArgumentErrorClass, "negative argument")
		}
		return s.NewString(strings.Repeat(str(self), int(args[0].i))), nil
	}, 1)

	c.DefineMethod("<<", func(s *State, self Value, args []Value) (Value, error) {
		other, err := s.ToS(args[0])
		if err != nil {
			return Nil, err
		}
		self.AsString().str += other
		return self, nil
	}, 1)

	c.DefineMethod("==", func(s *State, self Value, args []Value) (Value, error) {
		o := args[0].AsString()
		return FromBool(o != nil && o.str == str(self)), nil
	}, 1)

	for _, cmp := range []struct {
		sel string
		fn  func(int) bool
	}{
		{"<", func(r int) bool { return r < 0 }},
		{"<=", func(r int) bool { return r <= 0 }},
		{">", func(r int) bool { return r > 0 }},
		{">=", func(r int) bool { return r >= 0 }},
	} {
		c.DefineMethod(cmp.sel, func(s *State, self Value, args []Value) (Value, error) {
			other, err := argString(s, args[0])
			if err != nil {
				return Nil, err
			}
			return FromBool(cmp.fn(strings.Compare(str(self), other))), nil
		}, 1)
	}

	size := func(s *State, self Value, args []Value) (Value, error) {
		return FromInt(int64(len(str(self)))), nil
	}
	c.DefineMethod("size", size, 0)
	c.DefineMethod("length", size, 0)

	c.DefineMethod("to_s", func(s *State, self Value, args []Value) (Value, error) {
		return self, nil
	}, 0)
	c.DefineMethod("inspect", func(s *State, self Value, args []Value) (Value, error) {
		return s.NewString(QuoteString(str(self))), nil
	}, 0)
	c.DefineMethod("to_sym", func(s *State, self Value, args []Value) (Value, error) {
		return FromSymbol(str(self)), nil
	}, 0)
	c.DefineMethod("to_i", func(s *State, self Value, args []Value) (Value, error) {
		n, _ := strconv.ParseInt(leadingInt(str(self)), 10, 64)
		return FromInt(n), nil
	}, 0)

	c.DefineMethod("upcase", func(s *State, self Value, args []Value) (Value, error) {
		return s.NewString(strings.ToUpper(str(self))), nil
	}, 0)
	c.DefineMethod("downcase", func(s *State, self Value, args []Value) (Value, error) {
		return s.NewString(strings.ToLower(str(self))), nil
	}, 0)
	c.DefineMethod("reverse", func(s *State, self Value, args []Value) (Value, error) {
		b := []byte(str(self))
		for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
			b[i], b[j] = b[j], b[i]
		}
		return s.NewString(string(b)), nil
	}, 0)
	c.DefineMethod("empty?", func(s *State, self Value, args []Value) (Value, error) {
		return FromBool(str(self) == ""), nil
	}, 0)
	c.DefineMethod("include?", func(s *State, self Value, args []Value) (Value, error) {
		other, err := argString(s, args[0])
		if err != nil {
			return Nil, err
		}
		return FromBool(strings.Contains(str(self), other)), nil
	}, 1)
}

// leadingInt returns the optional sign and digits at the start of str.
func leadingInt(str string) string {
	str = strings.TrimLeft(str, " \t\n")
	end := 0
	if end < len(str) && (str[end] == '-' || str[end] == '+') {
		end++
	}
	for end < len(str) && str[end] >= '0' && str[end] <= '9' {
		end++
	}
	return str[:end]
}
