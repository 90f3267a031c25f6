package passes

import (
	"slices"

	"github.com/gogpu/shaderjit/ir"
)

// ssaBuilder performs on-demand SSA construction over a complete CFG.
// Blocks are filled in program order and sealed once all their
// predecessors are filled; reads in unsealed blocks create incomplete phis
// that get their operands on sealing.
type ssaBuilder struct {
	defs       map[*ir.Block]map[uint32]ir.Value
	filled     map[*ir.Block]bool
	sealed     map[*ir.Block]bool
	incomplete map[*ir.Block]map[uint32]*ir.Inst
}

// SsaRewrite replaces register reads and writes with SSA values, inserting
// phis where definitions merge. Registers read before any write are zero.
func SsaRewrite(p *ir.Program) {
	if len(p.Blocks) == 0 {
		return
	}
	s := &ssaBuilder{
		defs:       make(map[*ir.Block]map[uint32]ir.Value),
		filled:     make(map[*ir.Block]bool),
		sealed:     make(map[*ir.Block]bool),
		incomplete: make(map[*ir.Block]map[uint32]*ir.Inst),
	}
	s.sealReady(p)
	for _, b := range p.Blocks {
		for _, inst := range slices.Clone(b.Insts) {
			switch inst.Op {
			case ir.OpSetRegister:
				s.write(inst.Imm, b, inst.Arg(0))
				inst.Invalidate()
			case ir.OpGetRegister:
				inst.ReplaceUsesWith(s.read(inst.Imm, b))
			}
		}
		s.filled[b] = true
		s.sealReady(p)
	}
	p.Compact()
}

func (s *ssaBuilder) sealReady(p *ir.Program) {
	for _, b := range p.Blocks {
		if s.sealed[b] {
			continue
		}
		ready := true
		for _, pr := range b.Preds {
			if !s.filled[pr] {
				ready = false
				break
			}
		}
		if ready {
			s.seal(b)
		}
	}
}

func (s *ssaBuilder) seal(b *ir.Block) {
	s.sealed[b] = true
	pending := s.incomplete[b]
	delete(s.incomplete, b)
	regs := make([]uint32, 0, len(pending))
	for reg := range pending {
		regs = append(regs, reg)
	}
	slices.Sort(regs)
	for _, reg := range regs {
		s.addPhiOperands(reg, pending[reg])
	}
}

func (s *ssaBuilder) write(reg uint32, b *ir.Block, v ir.Value) {
	m := s.defs[b]
	if m == nil {
		m = make(map[uint32]ir.Value)
		s.defs[b] = m
	}
	m[reg] = v
}

func (s *ssaBuilder) read(reg uint32, b *ir.Block) ir.Value {
	if v, ok := s.defs[b][reg]; ok {
		return v
	}
	var v ir.Value
	switch {
	case !s.sealed[b]:
		phi := newPhi(b)
		if s.incomplete[b] == nil {
			s.incomplete[b] = make(map[uint32]*ir.Inst)
		}
		s.incomplete[b][reg] = phi
		v = ir.InstValue(phi)
	case len(b.Preds) == 0:
		v = ir.U32(0)
	case len(b.Preds) == 1:
		v = s.read(reg, b.Preds[0])
	default:
		phi := newPhi(b)
		s.write(reg, b, ir.InstValue(phi))
		v = s.addPhiOperands(reg, phi)
	}
	s.write(reg, b, v)
	return v
}

func newPhi(b *ir.Block) *ir.Inst {
	phi := &ir.Inst{Op: ir.OpPhi, Resource: -1}
	b.Prepend(phi)
	return phi
}

func (s *ssaBuilder) addPhiOperands(reg uint32, phi *ir.Inst) ir.Value {
	for _, pr := range phi.Block.Preds {
		phi.Args = append(phi.Args, s.read(reg, pr))
	}
	return tryRemoveTrivialPhi(phi)
}

// tryRemoveTrivialPhi collapses a phi whose operands are all the same value
// or the phi itself.
func tryRemoveTrivialPhi(phi *ir.Inst) ir.Value {
	self := ir.InstValue(phi)
	var same ir.Value
	for _, a := range phi.Args {
		a = a.Resolve()
		if a == same || a == self {
			continue
		}
		if !same.IsEmpty() {
			return self
		}
		same = a
	}
	if same.IsEmpty() {
		same = ir.U32(0)
	}
	phi.ReplaceUsesWith(same)
	return same
}
