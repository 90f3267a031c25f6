package runtimeinfo

import (
	"github.com/gogpu/shaderjit/amdgpu"
	"github.com/gogpu/shaderjit/stage"
)

// Profile describes host capabilities that change how state is specialized.
type Profile struct {
	// SupportsDepthClipControl is set when the host can clip depth in
	// [-1, 1] natively, so no remapping epilogue is needed.
	SupportsDepthClipControl bool
}

// Builder builds specialization keys for a host profile.
type Builder struct {
	Profile Profile
}

// BuildKey builds a key for hw with the zero Profile.
func BuildKey(hw stage.HardwareStage, regs *amdgpu.Registers) Key {
	return Builder{}.BuildKey(hw, regs)
}

// BuildKey extracts the registers that belong to hw. Registers of other
// stages are never read.
func (b Builder) BuildKey(hw stage.HardwareStage, regs *amdgpu.Registers) Key {
	h := defaultHeader(hw)
	if hw.Valid() {
		prog := regs.Program(hw)
		h.NumUserData = prog.NumUserData
		h.NumInputVGPRs = prog.NumInputVGPRs
		h.NumAllocatedVGPRs = prog.NumAllocatedVGPRs
	}

	var p Payload
	switch hw {
	case stage.Vertex:
		p = b.vertexInfo(regs)
	case stage.Fragment:
		p = fragmentInfo(regs)
	case stage.Compute:
		p = computeInfo(regs)
	case stage.Geometry:
		p = geometryInfo(regs)
	}
	return newKey(hw, h, p)
}

func (b Builder) vertexInfo(regs *amdgpu.Registers) VertexInfo {
	var info VertexInfo
	ctl := regs.VsOutput

	add := func(m OutputMap) {
		if m != (OutputMap{}) {
			info.Outputs = append(info.Outputs, m)
		}
	}

	var misc OutputMap
	if ctl.UsePointSize {
		misc[0] = VsOutputPointSprite
	}
	if ctl.UseEdgeFlag {
		misc[1] = VsOutputEdgeFlag
	}
	if ctl.UseRenderTarget {
		misc[2] = VsOutputGsMrtIndex
	}
	if ctl.UseViewport {
		misc[3] = VsOutputGsVpIndex
	}
	add(misc)
	add(distanceMap(ctl, 0))
	add(distanceMap(ctl, 4))

	info.EmulateDepthNegativeOneToOne = regs.ClipSpaceNegativeOneToOne && !b.Profile.SupportsDepthClipControl
	return info
}

// distanceMap builds the clip/cull export vector for distances first..first+3.
// A clip distance wins over a cull distance on the same component.
func distanceMap(ctl amdgpu.VsOutputControl, first uint) OutputMap {
	var m OutputMap
	for i := range uint(4) {
		bit := uint8(1) << (first + i)
		switch {
		case ctl.ClipDistanceEnable&bit != 0:
			m[i] = VsOutputClipDist0 + VsOutput(first+i)
		case ctl.CullDistanceEnable&bit != 0:
			m[i] = VsOutputCullDist0 + VsOutput(first+i)
		}
	}
	return m
}

func fragmentInfo(regs *amdgpu.Registers) FragmentInfo {
	var info FragmentInfo
	n := min(regs.NumInterp, amdgpu.MaxPsInputs)
	for i := range n {
		in := regs.PsInputs[i]
		info.Inputs = append(info.Inputs, PsInput{
			ParamIndex:   in.InputOffset,
			IsDefault:    in.UseDefault,
			IsFlat:       in.FlatShade,
			DefaultValue: in.DefaultValue,
		})
	}
	for i, cb := range regs.ColorBuffers {
		if cb.Enabled {
			info.MrtSwizzles[i] = swizzleOf(cb.Swap)
		}
	}
	return info
}

func swizzleOf(s amdgpu.ComponentSwap) MrtSwizzle {
	switch s {
	case amdgpu.SwapAlternate:
		return MrtAlt
	case amdgpu.SwapStandardReverse:
		return MrtReverse
	case amdgpu.SwapAlternateReverse:
		return MrtReverseAlt
	default:
		return MrtIdentity
	}
}

func computeInfo(regs *amdgpu.Registers) ComputeInfo {
	return ComputeInfo{
		SharedMemorySize: regs.SharedMemorySize(),
		WorkgroupSize:    regs.NumThreads,
		TgidEnable:       regs.TgidEnable,
	}
}

func geometryInfo(regs *amdgpu.Registers) GeometryInfo {
	return GeometryInfo{
		OutPrimitive: regs.GsOutPrimType,
		Mode:         regs.GsMode,
		CutMode:      regs.GsCutMode,
	}
}
