package passes

import (
	"github.com/gogpu/shaderjit/ir"
	"github.com/gogpu/shaderjit/runtimeinfo"
	"github.com/gogpu/shaderjit/stage"
)

// LowerSharedMemToRegisters forwards shared memory stores at constant
// offsets to later loads in the same block when no barrier separates them.
// When the workgroup has a single invocation and every load was forwarded,
// shared memory is not observable by anyone else, so the stores and
// barriers are dropped too. Non-compute programs are left alone.
func LowerSharedMemToRegisters(p *ir.Program, key runtimeinfo.Key) {
	comp, ok := key.Compute()
	if !ok || key.Stage() != stage.Compute || len(p.Blocks) == 0 {
		return
	}

	remaining := 0
	for _, b := range p.Blocks {
		slots := make(map[uint32]ir.Value)
		for _, inst := range b.Insts {
			switch inst.Op {
			case ir.OpStoreShared:
				off := inst.Arg(0).Resolve()
				if !off.IsImmediate() {
					clear(slots)
					continue
				}
				slots[off.U32()] = inst.Arg(1)
			case ir.OpLoadShared:
				off := inst.Arg(0).Resolve()
				if off.IsImmediate() {
					if v, ok := slots[off.U32()]; ok {
						inst.ReplaceUsesWith(v)
						continue
					}
				}
				remaining++
			case ir.OpBarrier:
				clear(slots)
			}
		}
	}

	if remaining == 0 && comp.Invocations() == 1 {
		p.Walk(func(inst *ir.Inst) {
			if inst.Op == ir.OpStoreShared || inst.Op == ir.OpBarrier {
				inst.Invalidate()
			}
		})
	}
	p.Compact()
}
