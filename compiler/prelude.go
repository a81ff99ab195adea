package compiler

import "github.com/chazu/rite/vm"

const preludeSource = `def p(obj)
  puts obj.inspect
  obj
end

def fail(msg)
  raise msg
end
`

// Prelude returns a gem that compiles and runs the script-level prelude.
// Every interpreter opened with it already holds units in its code table.
func Prelude() vm.Gem {
	return vm.Gem{
		Name: "prelude",
		Init: func(s *vm.State) error {
			_, err := Load(s, preludeSource, &Context{Filename: "(prelude)"})
			return err
		},
	}
}
