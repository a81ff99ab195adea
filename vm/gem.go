package vm

// Gem is an extension installed into a State when it is opened. Init runs
// in the order gems are given to Open; Final runs in reverse on Close.
type Gem struct {
	Name  string
	Init  func(s *State) error
	Final func(s *State)
}

// DefineKernelMethod installs fn as a Kernel method, callable without a
// receiver from any code.
func (s *State) DefineKernelMethod(name string, fn Func, arity int) {
	s.KernelModule.DefineMethod(name, fn, arity)
}

// DefineGlobalConst binds a constant on Object.
func (s *State) DefineGlobalConst(name string, v Value) {
	s.ObjectClass.ConstSet(name, v)
}
