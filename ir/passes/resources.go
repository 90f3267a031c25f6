package passes

import (
	"fmt"

	"github.com/gogpu/shaderjit/amdgpu"
	"github.com/gogpu/shaderjit/ir"
	"github.com/gogpu/shaderjit/runtimeinfo"
)

// psDefaultValues are the constants a default pixel shader input reads.
var psDefaultValues = [4][4]float32{
	{0, 0, 0, 0},
	{0, 0, 0, 1},
	{1, 1, 1, 0},
	{1, 1, 1, 1},
}

// ResourceTracking specializes p for key and records the resources the
// specialized variant still uses. Fragment inputs configured as defaults
// become constants, disabled workgroup id components become zero and
// auxiliary vertex exports without a consumer in the output maps are
// dropped. Image and buffer operands are traced to their user data sharp
// and assigned bindings in first use order.
func ResourceTracking(p *ir.Program, key runtimeinfo.Key) error {
	if len(p.Blocks) == 0 {
		return nil
	}
	specialize(p, key)
	DeadCodeElimination(p)

	p.Info.Images = p.Info.Images[:0]
	p.Info.Buffers = p.Info.Buffers[:0]
	var err error
	p.Walk(func(inst *ir.Inst) {
		if err != nil {
			return
		}
		switch {
		case inst.Op.IsImage():
			err = trackImage(p, inst)
		case inst.Op.IsBuffer():
			err = trackBuffer(p, inst)
		}
	})
	return err
}

func specialize(p *ir.Program, key runtimeinfo.Key) {
	frag, isFrag := key.Fragment()
	comp, isComp := key.Compute()
	vert, isVert := key.Vertex()

	p.Walk(func(inst *ir.Inst) {
		switch {
		case isFrag && inst.Op == ir.OpGetAttribute:
			attr, c := inst.Arg(0), inst.Arg(1)
			if !attr.IsImmediate() || !c.IsImmediate() || attr.U32() < ir.AttrParam0 {
				return
			}
			idx := attr.U32() - ir.AttrParam0
			if idx >= uint32(len(frag.Inputs)) || !frag.Inputs[idx].IsDefault {
				return
			}
			def := frag.Inputs[idx].DefaultValue & 3
			inst.ReplaceUsesWith(ir.F32(psDefaultValues[def][c.U32()&3]))

		case isComp && inst.Op == ir.OpWorkgroupID:
			c := inst.Arg(0)
			if c.IsImmediate() && c.U32() < 3 && !comp.TgidEnable[c.U32()] {
				inst.ReplaceUsesWith(ir.U32(0))
			}

		case isVert && inst.Op == ir.OpSetAttribute:
			attr, c := inst.Arg(0), inst.Arg(1)
			if !attr.IsImmediate() || !c.IsImmediate() {
				return
			}
			a := attr.U32()
			if a <= ir.AttrPosition0 || a > ir.AttrPosition0+runtimeinfo.MaxVsOutputMaps {
				return
			}
			m := int(a - ir.AttrPosition0 - 1)
			if m >= len(vert.Outputs) || vert.Outputs[m][c.U32()&3] == runtimeinfo.VsOutputNone {
				inst.Invalidate()
			}
		}
	})
}

// traceSharp follows a descriptor operand back to its user data dword.
func traceSharp(v ir.Value) (uint32, bool) {
	v = v.Resolve()
	inst := v.Inst()
	if inst == nil || inst.Op != ir.OpGetUserData {
		return 0, false
	}
	idx := inst.Arg(0)
	if !idx.IsImmediate() {
		return 0, false
	}
	return idx.U32(), true
}

func trackImage(p *ir.Program, inst *ir.Inst) error {
	sharp, ok := traceSharp(inst.Arg(0))
	if !ok {
		return fmt.Errorf("%w: %v", ErrUntrackedResource, inst.Op)
	}
	storage := inst.Op.IsStorage()
	depth := inst.Op == ir.OpImageSampleDref
	for i := range p.Info.Images {
		r := &p.Info.Images[i]
		if r.SharpIndex == sharp && r.IsStorage == storage {
			r.IsDepth = r.IsDepth || depth
			inst.Resource = i
			return nil
		}
	}
	inst.Resource = len(p.Info.Images)
	p.Info.Images = append(p.Info.Images, ir.ImageResource{
		Binding:    uint32(len(p.Info.Images)),
		SharpIndex: sharp,
		Type:       amdgpu.ImageType(inst.Imm),
		IsStorage:  storage,
		IsDepth:    depth,
	})
	return nil
}

func trackBuffer(p *ir.Program, inst *ir.Inst) error {
	sharp, ok := traceSharp(inst.Arg(0))
	if !ok {
		return fmt.Errorf("%w: %v", ErrUntrackedResource, inst.Op)
	}
	written := inst.Op.IsStorage()
	for i := range p.Info.Buffers {
		r := &p.Info.Buffers[i]
		if r.SharpIndex == sharp {
			r.IsWritten = r.IsWritten || written
			inst.Resource = i
			return nil
		}
	}
	inst.Resource = len(p.Info.Buffers)
	p.Info.Buffers = append(p.Info.Buffers, ir.BufferResource{
		Binding:    uint32(len(p.Info.Buffers)),
		SharpIndex: sharp,
		IsWritten:  written,
	})
	return nil
}
