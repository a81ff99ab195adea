package vm

// ---------------------------------------------------------------------------
// Heap objects
// ---------------------------------------------------------------------------

// RBasic is the header shared by every heap object: its class.
type RBasic struct {
	c *RClass
}

// Class returns the object's class.
func (b *RBasic) Class() *RClass { return b.c }

// RObject is a plain instance with instance variables.
type RObject struct {
	RBasic
	ivars map[string]Value
}

// IvarGet returns the named instance variable, or nil.
func (o *RObject) IvarGet(name string) Value {
	if v, ok := o.ivars[name]; ok {
		return v
	}
	return Nil
}

// IvarSet assigns an instance variable.
func (o *RObject) IvarSet(name string, v Value) {
	if o.ivars == nil {
		o.ivars = make(map[string]Value)
	}
	o.ivars[name] = v
}

// RString is a mutable byte string.
type RString struct {
	RBasic
	str string
}

// String returns the contents.
func (s *RString) String() string { return s.str }

// RArray is an ordered list of values.
type RArray struct {
	RBasic
	elems []Value
}

// Len returns the number of elements.
func (a *RArray) Len() int { return len(a.elems) }

// At returns element i, or nil when out of range. Negative indices count
// from the end.
func (a *RArray) At(i int) Value {
	if i < 0 {
		i += len(a.elems)
	}
	if i < 0 || i >= len(a.elems) {
		return Nil
	}
	return a.elems[i]
}

// Elems returns the backing slice. Callers must not retain it across
// mutations.
func (a *RArray) Elems() []Value { return a.elems }

// RProc is a callable: a compiled unit bound to the class that receives
// any methods it defines, or a Go function.
type RProc struct {
	RBasic
	Irep        *Irep
	TargetClass *RClass
	fn          Func
}

// IsNative reports whether the proc wraps a Go function.
func (p *RProc) IsNative() bool { return p.fn != nil }

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

// NewObject allocates a plain instance of c.
func (s *State) NewObject(c *RClass) Value {
	o := &RObject{RBasic: RBasic{c: c}}
	s.protect(o)
	return objectValue(o)
}

// NewString allocates a string.
func (s *State) NewString(str string) Value {
	r := &RString{RBasic: RBasic{c: s.StringClass}, str: str}
	s.protect(r)
	return stringValue(r)
}

// NewArray allocates an array holding a copy of elems.
func (s *State) NewArray(elems ...Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	a := &RArray{RBasic: RBasic{c: s.ArrayClass}, elems: cp}
	s.protect(a)
	return arrayValue(a)
}

// NewProc wraps irep in a proc whose method definitions go to target.
func (s *State) NewProc(irep *Irep, target *RClass) *RProc {
	p := &RProc{RBasic: RBasic{c: s.ProcClass}, Irep: irep, TargetClass: target}
	s.protect(p)
	return p
}

// NewNativeProc wraps a Go function in a proc.
func (s *State) NewNativeProc(fn Func) *RProc {
	p := &RProc{RBasic: RBasic{c: s.ProcClass}, fn: fn}
	s.protect(p)
	return p
}

// ClassOf returns the class of any value.
func (s *State) ClassOf(v Value) *RClass {
	switch v.tt {
	case TypeNil:
		return s.NilClass
	case TypeTrue:
		return s.TrueClass
	case TypeFalse:
		return s.FalseClass
	case TypeInteger:
		return s.IntegerClass
	case TypeFloat:
		return s.FloatClass
	case TypeSymbol:
		return s.SymbolClass
	case TypeClass:
		if v.AsClass().IsModule {
			return s.ModuleClass
		}
		return s.ClassClass
	}
	switch r := v.ref.(type) {
	case *RObject:
		return r.c
	case *RString:
		return r.c
	case *RArray:
		return r.c
	case *RProc:
		return r.c
	case *RException:
		return r.c
	}
	return s.ObjectClass
}

// IsKindOf reports whether v is an instance of c or one of its subclasses.
func (s *State) IsKindOf(v Value, c *RClass) bool {
	return s.ClassOf(v).IsSubclassOf(c)
}
