package vm

// ---------------------------------------------------------------------------
// GC arena
// ---------------------------------------------------------------------------

// The arena holds every object allocated since the last restore point so
// that values produced by Go code stay reachable until the caller decides
// they no longer need protecting. Objects that escape into the interpreter
// (registers, globals, method tables) are reachable on their own.

// protect records a fresh allocation in the arena.
func (s *State) protect(obj any) {
	if s.closed {
		return
	}
	s.arena = append(s.arena, obj)
}

// ArenaSave returns a restore point for the arena.
func (s *State) ArenaSave() int {
	return len(s.arena)
}

// ArenaRestore releases every arena entry made after idx.
func (s *State) ArenaRestore(idx int) {
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.arena) {
		return
	}
	clear(s.arena[idx:])
	s.arena = s.arena[:idx]
}

// ArenaLen returns the number of protected allocations.
func (s *State) ArenaLen() int {
	return len(s.arena)
}
