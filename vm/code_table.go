package vm

import (
	"errors"
	"sync"
)

// ErrTableNarrowed is returned by Append while a narrowed view is active.
var ErrTableNarrowed = errors.New("code table is narrowed")

// CodeTable is an interpreter's append-only list of compiled units. Indices
// handed out by Append stay valid for the life of the table.
//
// A table can be temporarily narrowed to a contiguous window so that code
// which addresses units by index (the serializer) sees only that window.
type CodeTable struct {
	mu    sync.RWMutex
	ireps []*Irep

	base, n  int
	narrowed bool
}

// Len returns the number of visible units.
func (t *CodeTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.narrowed {
		return t.n
	}
	return len(t.ireps)
}

// At returns visible unit i, or nil when out of range.
func (t *CodeTable) At(i int) *Irep {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.narrowed {
		if i < 0 || i >= t.n {
			return nil
		}
		i += t.base
	}
	if i < 0 || i >= len(t.ireps) {
		return nil
	}
	return t.ireps[i]
}

// abs returns unit i ignoring any narrowing.
func (t *CodeTable) abs(i int) *Irep {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.ireps) {
		return nil
	}
	return t.ireps[i]
}

// Append adds units to the end of the table, assigning each its index, and
// returns the index of the first.
func (t *CodeTable) Append(units ...*Irep) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.narrowed {
		return -1, ErrTableNarrowed
	}
	first := len(t.ireps)
	for i, u := range units {
		u.Idx = first + i
	}
	t.ireps = append(t.ireps, units...)
	return first, nil
}

// Narrow restricts the visible window to [from, from+n) and returns a
// function that restores the full view. Narrowing nests: the window is
// interpreted relative to the current view.
func (t *CodeTable) Narrow(from, n int) (restore func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prevBase, prevN, prevNarrowed := t.base, t.n, t.narrowed
	total := len(t.ireps)
	if t.narrowed {
		from += t.base
		total = t.base + t.n
	}
	if from < 0 {
		from = 0
	}
	if from > total {
		from = total
	}
	if n < 0 || from+n > total {
		n = total - from
	}
	t.base, t.n, t.narrowed = from, n, true
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.base, t.n, t.narrowed = prevBase, prevN, prevNarrowed
	}
}
