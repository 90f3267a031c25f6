package shadercache

import "github.com/gogpu/shaderjit/runtimeinfo"

// arena owns compiled programs and hands out generation-checked handles.
// Freed slots are reused with a bumped generation so old handles go stale.
type arena struct {
	slots []arenaSlot
	free  []uint32
}

type arenaSlot struct {
	gen  uint32
	prog *Program
}

func (a *arena) insert(p *Program) runtimeinfo.ProgramHandle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, arenaSlot{})
	}
	s := &a.slots[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.prog = p
	return runtimeinfo.ProgramHandle{Index: idx, Gen: s.gen}
}

func (a *arena) get(h runtimeinfo.ProgramHandle) (*Program, bool) {
	if !h.Valid() || int(h.Index) >= len(a.slots) {
		return nil, false
	}
	s := a.slots[h.Index]
	if s.gen != h.Gen || s.prog == nil {
		return nil, false
	}
	return s.prog, true
}

func (a *arena) remove(h runtimeinfo.ProgramHandle) {
	if _, ok := a.get(h); !ok {
		return
	}
	a.slots[h.Index].prog = nil
	a.free = append(a.free, h.Index)
}

func (a *arena) len() int {
	return len(a.slots) - len(a.free)
}

func (a *arena) clear() {
	for i := range a.slots {
		if a.slots[i].prog != nil {
			a.slots[i].prog = nil
			a.free = append(a.free, uint32(i))
		}
	}
}
