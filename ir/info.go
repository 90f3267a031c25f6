package ir

import (
	"fmt"

	naga "github.com/gogpu/naga/ir"

	"github.com/gogpu/shaderjit/amdgpu"
	"github.com/gogpu/shaderjit/stage"
)

// Attribute numbering used by OpGetAttribute and OpSetAttribute.
const (
	// AttrRenderTarget0 is the first color export of a fragment shader.
	AttrRenderTarget0 = 0

	// AttrPosition0 is the vertex position export. AttrPosition1..3 are the
	// auxiliary export vectors described by the vertex output maps.
	AttrPosition0 = 12

	// AttrParam0 is the first vertex parameter export / fragment input.
	AttrParam0 = 32

	// NumAttributes bounds attribute numbers.
	NumAttributes = 64
)

// ImageResource describes one image binding used by a program.
type ImageResource struct {
	// Binding is the slot relative to the stage's first image binding.
	Binding uint32

	// SharpIndex is the dword index of the T# in flattened user data.
	SharpIndex uint32

	// Type is the dimensionality the instructions expect.
	Type amdgpu.ImageType

	IsStorage bool
	IsDepth   bool
}

// GetSharp reads the live T# for the resource.
func (r ImageResource) GetSharp(userData []uint32) amdgpu.TSharp {
	return amdgpu.ReadTSharp(userData, r.SharpIndex)
}

// BufferResource describes one buffer binding used by a program.
type BufferResource struct {
	Binding    uint32
	SharpIndex uint32
	IsWritten  bool
}

// GetSharp reads the live V# for the resource.
func (r BufferResource) GetSharp(userData []uint32) amdgpu.VSharp {
	return amdgpu.ReadVSharp(userData, r.SharpIndex)
}

// Info is the metadata collected about a finished program.
type Info struct {
	Stage stage.HardwareStage

	// Logical is the guest stage the program was compiled for.
	Logical stage.LogicalStage

	// EntryPoint is the backend entry point stage. It is only meaningful
	// when HasEntryPoint is set; geometry and tessellation programs have none.
	EntryPoint    naga.ShaderStage
	HasEntryPoint bool

	// Register counts from the hardware program state.
	NumUserData       uint32
	NumInputVGPRs     uint32
	NumAllocatedVGPRs uint32

	Images  []ImageResource
	Buffers []BufferResource

	NumBlocks int
	NumInsts  int

	// UserDataMask has bit i set when user data dword i is read.
	UserDataMask uint64

	// LoadedAttributes and StoredAttributes have bit i set per attribute.
	LoadedAttributes uint64
	StoredAttributes uint64

	UsesDiscard      bool
	UsesSharedMemory bool
	UsesWorkgroupID  bool

	// SharedMemorySize is the shared memory the program needs in bytes.
	SharedMemorySize uint32

	// CopyShaderMerged is set when a geometry copy program was merged in.
	CopyShaderMerged bool
}

// HasResources reports whether any image or buffer is bound.
func (i *Info) HasResources() bool {
	return len(i.Images) > 0 || len(i.Buffers) > 0
}

// EntryPointName returns the backend entry point stage name, or "none".
func (i *Info) EntryPointName() string {
	if !i.HasEntryPoint {
		return "none"
	}
	switch i.EntryPoint {
	case naga.StageVertex:
		return "vertex"
	case naga.StageFragment:
		return "fragment"
	case naga.StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("stage(%d)", i.EntryPoint)
	}
}
