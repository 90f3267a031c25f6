package passes

import (
	"github.com/gogpu/shaderjit/ir"
)

// IdentityRemoval forwards identity chains into their users and drops the
// identities.
func IdentityRemoval(p *ir.Program) {
	p.Compact()
}

// maxFoldRounds bounds constant propagation over loops.
const maxFoldRounds = 8

// ConstantPropagation folds instructions whose operands are all immediates
// and collapses phis whose incoming values agree.
func ConstantPropagation(p *ir.Program) {
	for range maxFoldRounds {
		changed := false
		p.Walk(func(inst *ir.Inst) {
			for i, a := range inst.Args {
				inst.Args[i] = a.Resolve()
			}
			if v, ok := fold(inst); ok {
				inst.ReplaceUsesWith(v)
				changed = true
			}
		})
		if !changed {
			break
		}
	}
	p.Compact()
}

func fold(inst *ir.Inst) (ir.Value, bool) {
	switch inst.Op {
	case ir.OpPhi:
		return foldPhi(inst)
	case ir.OpSelect:
		if c := inst.Arg(0); c.IsImmediate() {
			if c.U1() {
				return inst.Arg(1), true
			}
			return inst.Arg(2), true
		}
		if inst.Arg(1) == inst.Arg(2) && !inst.Arg(1).IsEmpty() {
			return inst.Arg(1), true
		}
		return ir.Value{}, false
	}

	if len(inst.Args) != 2 {
		return ir.Value{}, false
	}
	a, b := inst.Args[0], inst.Args[1]
	if !a.IsImmediate() || !b.IsImmediate() {
		return foldAlgebraic(inst.Op, a, b)
	}
	x, y := a.U32(), b.U32()
	switch inst.Op {
	case ir.OpIAdd:
		return ir.U32(x + y), true
	case ir.OpISub:
		return ir.U32(x - y), true
	case ir.OpIMul:
		return ir.U32(x * y), true
	case ir.OpShiftLeft:
		return ir.U32(x << (y & 31)), true
	case ir.OpShiftRight:
		return ir.U32(x >> (y & 31)), true
	case ir.OpBitwiseAnd:
		return ir.U32(x & y), true
	case ir.OpBitwiseOr:
		return ir.U32(x | y), true
	case ir.OpBitwiseXor:
		return ir.U32(x ^ y), true
	case ir.OpFAdd:
		return ir.F32(a.F32() + b.F32()), true
	case ir.OpFSub:
		return ir.F32(a.F32() - b.F32()), true
	case ir.OpFMul:
		return ir.F32(a.F32() * b.F32()), true
	case ir.OpIEqual:
		return ir.U1(x == y), true
	case ir.OpINotEqual:
		return ir.U1(x != y), true
	case ir.OpILessThan:
		return ir.U1(x < y), true
	}
	return ir.Value{}, false
}

// foldAlgebraic simplifies integer ops with one identity or absorbing operand.
func foldAlgebraic(op ir.Opcode, a, b ir.Value) (ir.Value, bool) {
	isU32 := func(v ir.Value, x uint32) bool { return v.IsImmediate() && !v.IsF32() && v.U32() == x }
	switch op {
	case ir.OpIAdd, ir.OpBitwiseOr, ir.OpBitwiseXor:
		if isU32(b, 0) {
			return a, true
		}
		if isU32(a, 0) {
			return b, true
		}
	case ir.OpISub, ir.OpShiftLeft, ir.OpShiftRight:
		if isU32(b, 0) {
			return a, true
		}
	case ir.OpIMul:
		if isU32(b, 1) {
			return a, true
		}
		if isU32(a, 1) {
			return b, true
		}
		if isU32(a, 0) || isU32(b, 0) {
			return ir.U32(0), true
		}
	case ir.OpBitwiseAnd:
		if isU32(a, 0) || isU32(b, 0) {
			return ir.U32(0), true
		}
	}
	return ir.Value{}, false
}

func foldPhi(phi *ir.Inst) (ir.Value, bool) {
	self := ir.InstValue(phi)
	var same ir.Value
	for _, a := range phi.Args {
		if a == self || a == same {
			continue
		}
		if !same.IsEmpty() {
			return ir.Value{}, false
		}
		same = a
	}
	if same.IsEmpty() {
		return ir.Value{}, false
	}
	return same, true
}
