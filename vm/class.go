package vm

// ---------------------------------------------------------------------------
// RClass: classes and modules
// ---------------------------------------------------------------------------

// Func is the signature of a method implemented in Go. A non-nil error
// aborts the current call; use State.Raise to produce one.
type Func func(s *State, self Value, args []Value) (Value, error)

// Method is an entry in a class's method table. Exactly one of Proc and Fn
// is set.
type Method struct {
	Name  string
	Proc  *RProc
	Fn    Func
	Arity int // -1 accepts any number of arguments
	Owner *RClass
}

// RClass is a class or a module. Modules have no superclass of their own
// and are spliced into lookup by Include.
type RClass struct {
	RBasic
	Name     string
	Super    *RClass
	IsModule bool

	includes []*RClass
	mt       map[string]*Method
	consts   map[string]Value
}

func newClass(name string, super *RClass) *RClass {
	return &RClass{
		Name:   name,
		Super:  super,
		mt:     make(map[string]*Method),
		consts: make(map[string]Value),
	}
}

// IsSubclassOf returns true if c is other, inherits from it, or includes it.
func (c *RClass) IsSubclassOf(other *RClass) bool {
	for cur := c; cur != nil; cur = cur.Super {
		if cur == other {
			return true
		}
		for _, m := range cur.includes {
			if m == other {
				return true
			}
		}
	}
	return false
}

// Include mixes module m into c. Including the same module twice is a no-op.
func (c *RClass) Include(m *RClass) {
	for _, existing := range c.includes {
		if existing == m {
			return
		}
	}
	c.includes = append(c.includes, m)
}

// DefineMethod installs a Go method.
func (c *RClass) DefineMethod(name string, fn Func, arity int) {
	c.mt[name] = &Method{Name: name, Fn: fn, Arity: arity, Owner: c}
}

// DefineProcMethod installs a method whose body is a proc.
func (c *RClass) DefineProcMethod(name string, p *RProc) {
	arity := -1
	if p.Irep != nil {
		arity = p.Irep.Arity()
	}
	c.mt[name] = &Method{Name: name, Proc: p, Arity: arity, Owner: c}
}

// LookupMethod finds name by walking the class chain. Each class is checked
// before the modules it includes, most recently included first.
func (c *RClass) LookupMethod(name string) *Method {
	for cur := c; cur != nil; cur = cur.Super {
		if m, ok := cur.mt[name]; ok {
			return m
		}
		for i := len(cur.includes) - 1; i >= 0; i-- {
			if m, ok := cur.includes[i].mt[name]; ok {
				return m
			}
		}
	}
	return nil
}

// HasOwnMethod reports whether c itself defines name.
func (c *RClass) HasOwnMethod(name string) bool {
	_, ok := c.mt[name]
	return ok
}

// MethodNames returns the names defined directly on c.
func (c *RClass) MethodNames() []string {
	names := make([]string, 0, len(c.mt))
	for n := range c.mt {
		names = append(names, n)
	}
	return names
}

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

// ConstGet looks name up in c and its ancestors.
func (c *RClass) ConstGet(name string) (Value, bool) {
	for cur := c; cur != nil; cur = cur.Super {
		if v, ok := cur.consts[name]; ok {
			return v, true
		}
	}
	return Nil, false
}

// ConstSet binds a constant on c.
func (c *RClass) ConstSet(name string, v Value) {
	c.consts[name] = v
}
