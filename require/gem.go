package require

import (
	"github.com/chazu/rite/compiler"
	"github.com/chazu/rite/vm"
)

// Gem installs the Kernel methods _load_rb_str(code [, path]) and
// _load_mrb_file(path), both backed by l.
func Gem(l *Loader) vm.Gem {
	return vm.Gem{
		Name: "require",
		Init: func(s *vm.State) error {
			s.DefineKernelMethod("_load_rb_str", l.loadRbStr, -1)
			s.DefineKernelMethod("_load_mrb_file", l.loadMrbFile, 1)
			return nil
		},
	}
}

func (l *Loader) loadRbStr(s *vm.State, self vm.Value, args []vm.Value) (vm.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return vm.Nil, s.Raisef(s.ArgumentErrorClass,
			"wrong number of arguments (given %d, expected 1..2)", len(args))
	}
	code, err := stringArg(s, args[0])
	if err != nil {
		return vm.Nil, err
	}
	path := compiler.DefaultFilename
	if len(args) == 2 && args[1].Type() == vm.TypeString {
		path = args[1].AsString().String()
	}
	ok, err := l.LoadSource(s, code, path)
	return vm.FromBool(ok), err
}

func (l *Loader) loadMrbFile(s *vm.State, self vm.Value, args []vm.Value) (vm.Value, error) {
	path, err := stringArg(s, args[0])
	if err != nil {
		return vm.Nil, err
	}
	ok, err := l.LoadFile(s, path)
	return vm.FromBool(ok), err
}

func stringArg(s *vm.State, v vm.Value) (string, error) {
	if v.Type() != vm.TypeString {
		return "", s.Raisef(s.TypeErrorClass, "%s cannot be converted to String", s.ClassOf(v).Name)
	}
	return v.AsString().String(), nil
}
