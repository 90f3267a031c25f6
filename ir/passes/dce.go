package passes

import "github.com/gogpu/shaderjit/ir"

// DeadCodeElimination removes instructions whose results are never observed.
// Liveness is computed over the whole program: instructions with side
// effects and terminators are roots, and everything they transitively read
// stays.
func DeadCodeElimination(p *ir.Program) {
	p.Compact()
	live := make(map[*ir.Inst]bool)
	var work []*ir.Inst
	mark := func(inst *ir.Inst) {
		if inst != nil && !live[inst] {
			live[inst] = true
			work = append(work, inst)
		}
	}
	p.Walk(func(inst *ir.Inst) {
		if inst.Op.HasSideEffects() {
			mark(inst)
		}
	})
	for len(work) > 0 {
		inst := work[len(work)-1]
		work = work[:len(work)-1]
		for _, a := range inst.Args {
			mark(a.Inst())
		}
	}
	p.Walk(func(inst *ir.Inst) {
		if !live[inst] {
			inst.Invalidate()
		}
	})
	p.Compact()
}
