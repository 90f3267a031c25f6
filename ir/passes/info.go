package passes

import (
	"fmt"

	"github.com/gogpu/shaderjit/ir"
	"github.com/gogpu/shaderjit/runtimeinfo"
	"github.com/gogpu/shaderjit/stage"
)

// RecordHeader copies the key header into p.Info and resolves the backend
// entry point stage for the logical stage.
func RecordHeader(p *ir.Program, key runtimeinfo.Key) {
	h := key.Header()
	info := &p.Info
	info.Logical = h.Logical
	info.EntryPoint, info.HasEntryPoint = h.Logical.BackendStage()
	info.NumUserData = h.NumUserData
	info.NumInputVGPRs = h.NumInputVGPRs
	info.NumAllocatedVGPRs = h.NumAllocatedVGPRs
}

// CollectShaderInfo walks the finished program and fills the counts and
// usage flags of p.Info. Resources recorded by ResourceTracking are kept.
func CollectShaderInfo(p *ir.Program, key runtimeinfo.Key) {
	info := &p.Info
	info.Stage = p.Stage
	info.NumBlocks = len(p.Blocks)
	info.NumInsts = 0
	info.UserDataMask = 0
	info.LoadedAttributes = 0
	info.StoredAttributes = 0
	info.UsesDiscard = false
	info.UsesSharedMemory = false
	info.UsesWorkgroupID = false
	info.SharedMemorySize = 0

	p.Walk(func(inst *ir.Inst) {
		info.NumInsts++
		switch inst.Op {
		case ir.OpGetUserData:
			if idx := inst.Arg(0); idx.IsImmediate() && idx.U32() < 64 {
				info.UserDataMask |= 1 << idx.U32()
			}
		case ir.OpGetAttribute:
			info.LoadedAttributes |= attrBit(inst.Arg(0))
		case ir.OpSetAttribute:
			info.StoredAttributes |= attrBit(inst.Arg(0))
		case ir.OpDiscard:
			info.UsesDiscard = true
		case ir.OpLoadShared, ir.OpStoreShared:
			info.UsesSharedMemory = true
		case ir.OpWorkgroupID:
			info.UsesWorkgroupID = true
		}
	})

	if c, ok := key.Compute(); ok && info.UsesSharedMemory {
		info.SharedMemorySize = c.SharedMemorySize
	}
}

func attrBit(v ir.Value) uint64 {
	if v.IsImmediate() && v.U32() < ir.NumAttributes {
		return 1 << v.U32()
	}
	return 0
}

// MergeCopyShader appends the geometry copy program referenced by key to p
// and marks key as merged. Programs of other stages, and geometry keys
// without a copy program, are left alone.
func MergeCopyShader(p *ir.Program, key *runtimeinfo.Key, programs Programs) error {
	if key == nil || key.Stage() != stage.Geometry {
		return nil
	}
	g, _ := key.Geometry()
	if !g.CopyShader.Valid() || g.CopyMerged {
		return nil
	}
	if programs == nil {
		return fmt.Errorf("%w: %+v", ErrStaleCopyShader, g.CopyShader)
	}
	cp, ok := programs.IR(g.CopyShader)
	if !ok {
		return fmt.Errorf("%w: %+v", ErrStaleCopyShader, g.CopyShader)
	}

	blocks := ir.CloneBlocks(cp.Blocks)
	imgBase, bufBase := len(p.Info.Images), len(p.Info.Buffers)
	for _, b := range blocks {
		for _, inst := range b.Insts {
			switch {
			case inst.Resource < 0:
			case inst.Op.IsImage():
				inst.Resource += imgBase
			case inst.Op.IsBuffer():
				inst.Resource += bufBase
			}
		}
	}
	for _, r := range cp.Info.Images {
		r.Binding += uint32(imgBase)
		p.Info.Images = append(p.Info.Images, r)
	}
	for _, r := range cp.Info.Buffers {
		r.Binding += uint32(bufBase)
		p.Info.Buffers = append(p.Info.Buffers, r)
	}

	if n := len(p.Blocks); n > 0 && len(blocks) > 0 {
		last := p.Blocks[n-1]
		if k := len(last.Insts); k > 0 && last.Insts[k-1].Op == ir.OpReturn {
			last.Insts[k-1].Op = ir.OpBranch
		}
		ir.Link(last, blocks[0])
	}
	p.AppendBlocks(blocks)

	p.Info.NumBlocks = len(p.Blocks)
	p.Info.NumInsts = p.NumInsts()
	p.Info.StoredAttributes |= cp.Info.StoredAttributes
	p.Info.UserDataMask |= cp.Info.UserDataMask
	p.Info.CopyShaderMerged = true
	*key = key.WithCopyMerged()
	return nil
}
