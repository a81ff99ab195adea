package require

import "github.com/chazu/rite/vm"

// ReplaceStopWithReturn rewrites a unit ending in STOP so that it ends in
// LOADNIL R0; RETURN R0 instead, which returns nil to whoever invoked it.
// Units that do not end in STOP are left alone, so applying it twice is
// harmless. It reports whether the unit was changed.
//
// The rewritten sequence is built in a new slice and swapped in, so a
// reader holding the old slice never sees a half-written tail.
func ReplaceStopWithReturn(irep *vm.Irep) bool {
	n := len(irep.Iseq)
	if n == 0 || irep.Iseq[n-1].Opcode() != vm.OpStop {
		return false
	}

	iseq := make([]vm.Code, n+1)
	copy(iseq, irep.Iseq)
	iseq[n-1] = vm.MkOpA(vm.OpLoadNil, 0)
	iseq[n] = vm.MkOpAB(vm.OpReturn, 0, vm.RNormal)

	if len(irep.Lines) == n {
		lines := make([]uint16, n+1)
		copy(lines, irep.Lines)
		lines[n] = lines[n-1]
		irep.Lines = lines
	}
	irep.Iseq = iseq
	return true
}
