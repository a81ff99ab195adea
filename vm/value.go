package vm

import (
	"math"
	"strconv"
)

// ValueType identifies what a Value carries.
type ValueType uint8

const (
	TypeNil ValueType = iota
	TypeFalse
	TypeTrue
	TypeInteger
	TypeFloat
	TypeSymbol
	TypeString
	TypeArray
	TypeObject
	TypeClass
	TypeProc
	TypeException
)

var typeNames = [...]string{
	TypeNil:       "nil",
	TypeFalse:     "false",
	TypeTrue:      "true",
	TypeInteger:   "integer",
	TypeFloat:     "float",
	TypeSymbol:    "symbol",
	TypeString:    "string",
	TypeArray:     "array",
	TypeObject:    "object",
	TypeClass:     "class",
	TypeProc:      "proc",
	TypeException: "exception",
}

func (t ValueType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "ValueType(" + strconv.Itoa(int(t)) + ")"
}

// Value is a tagged interpreter value. Immediates (nil, booleans, integers,
// floats, symbols) live inline; everything else points at a heap object.
//
// Values are comparable with ==: immediates compare by content, heap values
// by identity.
type Value struct {
	tt  ValueType
	i   int64
	f   float64
	sym string
	ref any
}

// Pre-defined immediates
var (
	Nil   = Value{tt: TypeNil}
	True  = Value{tt: TypeTrue}
	False = Value{tt: TypeFalse}
)

// FromInt returns an integer value.
func FromInt(i int64) Value {
	return Value{tt: TypeInteger, i: i}
}

// FromFloat returns a float value.
func FromFloat(f float64) Value {
	return Value{tt: TypeFloat, f: f}
}

// FromBool returns True or False.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// FromSymbol returns the symbol with the given name.
func FromSymbol(name string) Value {
	return Value{tt: TypeSymbol, sym: name}
}

// ClassValue wraps a class.
func ClassValue(c *RClass) Value {
	if c == nil {
		return Nil
	}
	return Value{tt: TypeClass, ref: c}
}

// ProcValue wraps a proc.
func ProcValue(p *RProc) Value {
	if p == nil {
		return Nil
	}
	return Value{tt: TypeProc, ref: p}
}

// ExceptionValue wraps an exception.
func ExceptionValue(e *RException) Value {
	if e == nil {
		return Nil
	}
	return Value{tt: TypeException, ref: e}
}

func stringValue(s *RString) Value { return Value{tt: TypeString, ref: s} }
func arrayValue(a *RArray) Value   { return Value{tt: TypeArray, ref: a} }
func objectValue(o *RObject) Value { return Value{tt: TypeObject, ref: o} }

// Type returns the value's type tag.
func (v Value) Type() ValueType { return v.tt }

// IsNil reports whether v is nil.
func (v Value) IsNil() bool { return v.tt == TypeNil }

// Truthy reports whether v counts as true in a condition. Only nil and
// false are falsy.
func (v Value) Truthy() bool { return v.tt != TypeNil && v.tt != TypeFalse }

// IsInt reports whether v is an integer.
func (v Value) IsInt() bool { return v.tt == TypeInteger }

// Int returns the integer payload (0 for non-integers).
func (v Value) Int() int64 { return v.i }

// IsFloat reports whether v is a float.
func (v Value) IsFloat() bool { return v.tt == TypeFloat }

// Float returns the float payload (0 for non-floats).
func (v Value) Float() float64 { return v.f }

// IsNumeric reports whether v is an integer or a float.
func (v Value) IsNumeric() bool { return v.tt == TypeInteger || v.tt == TypeFloat }

// ToFloat converts a numeric value to float64.
func (v Value) ToFloat() float64 {
	if v.tt == TypeInteger {
		return float64(v.i)
	}
	return v.f
}

// IsSymbol reports whether v is a symbol.
func (v Value) IsSymbol() bool { return v.tt == TypeSymbol }

// Symbol returns the symbol name ("" for non-symbols).
func (v Value) Symbol() string { return v.sym }

// AsString returns the string object, or nil.
func (v Value) AsString() *RString {
	s, _ := v.ref.(*RString)
	return s
}

// AsArray returns the array object, or nil.
func (v Value) AsArray() *RArray {
	a, _ := v.ref.(*RArray)
	return a
}

// AsObject returns the plain object, or nil.
func (v Value) AsObject() *RObject {
	o, _ := v.ref.(*RObject)
	return o
}

// AsClass returns the class, or nil.
func (v Value) AsClass() *RClass {
	c, _ := v.ref.(*RClass)
	return c
}

// AsProc returns the proc, or nil.
func (v Value) AsProc() *RProc {
	p, _ := v.ref.(*RProc)
	return p
}

// AsException returns the exception, or nil.
func (v Value) AsException() *RException {
	e, _ := v.ref.(*RException)
	return e
}

// String renders a debugging representation that does not dispatch into the
// interpreter.
func (v Value) String() string {
	switch v.tt {
	case TypeNil:
		return "nil"
	case TypeTrue:
		return "true"
	case TypeFalse:
		return "false"
	case TypeInteger:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return formatFloat(v.f)
	case TypeSymbol:
		return ":" + v.sym
	case TypeString:
		return strconv.Quote(v.AsString().str)
	case TypeClass:
		return v.AsClass().Name
	case TypeException:
		return v.AsException().Error()
	default:
		return "#<" + v.tt.String() + ">"
	}
}

// formatFloat prints floats the way the language does: integral values keep
// a trailing ".0".
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.IsNaN(f):
		return "NaN"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'n' || c == 'I' {
			return s
		}
	}
	return s + ".0"
}
