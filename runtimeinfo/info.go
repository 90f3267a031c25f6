// Package runtimeinfo defines the specialization key: the per-stage subset of
// hardware state that changes how a shader must be translated.
//
// A Key carries exactly one stage payload (VertexInfo, FragmentInfo,
// ComputeInfo or GeometryInfo) selected by its hardware stage. Equality and
// fingerprints only ever look at that payload, so state belonging to other
// stages can never cause a spurious cache hit or miss.
package runtimeinfo

import (
	"slices"

	"github.com/gogpu/shaderjit/amdgpu"
	"github.com/gogpu/shaderjit/stage"
)

// MaxVsOutputMaps is the number of auxiliary vertex export vectors.
const MaxVsOutputMaps = 3

// VsOutput names one component of an auxiliary vertex export.
type VsOutput uint8

// Vertex output semantics.
const (
	VsOutputNone VsOutput = iota
	VsOutputPointSprite
	VsOutputEdgeFlag
	VsOutputKillFlag
	VsOutputGsCutFlag
	VsOutputGsMrtIndex
	VsOutputGsVpIndex
	VsOutputCullDist0
	VsOutputCullDist1
	VsOutputCullDist2
	VsOutputCullDist3
	VsOutputCullDist4
	VsOutputCullDist5
	VsOutputCullDist6
	VsOutputCullDist7
	VsOutputClipDist0
	VsOutputClipDist1
	VsOutputClipDist2
	VsOutputClipDist3
	VsOutputClipDist4
	VsOutputClipDist5
	VsOutputClipDist6
	VsOutputClipDist7
)

// IsClipDistance reports whether o is one of the clip distance outputs.
func (o VsOutput) IsClipDistance() bool {
	return o >= VsOutputClipDist0 && o <= VsOutputClipDist7
}

// IsCullDistance reports whether o is one of the cull distance outputs.
func (o VsOutput) IsCullDistance() bool {
	return o >= VsOutputCullDist0 && o <= VsOutputCullDist7
}

// OutputMap describes the four components of one auxiliary export vector.
type OutputMap [4]VsOutput

// MrtSwizzle is the channel order a fragment shader must write a render target in.
type MrtSwizzle uint8

// Render target swizzles.
const (
	MrtIdentity MrtSwizzle = iota
	MrtAlt
	MrtReverse
	MrtReverseAlt
)

// PsInput describes one pixel shader interpolant.
type PsInput struct {
	ParamIndex   uint8
	IsDefault    bool
	IsFlat       bool
	DefaultValue uint8
}

// ProgramHandle references a compiled program owned by the program arena.
// The zero value is the invalid handle.
type ProgramHandle struct {
	Index uint32
	Gen   uint32
}

// Valid reports whether h was issued by an arena.
func (h ProgramHandle) Valid() bool {
	return h.Gen != 0
}

// Payload is the stage specific part of a Key.
type Payload interface {
	// Stage returns the hardware stage the payload belongs to.
	Stage() stage.HardwareStage

	equal(Payload) bool
	clone() Payload
}

// VertexInfo is the vertex stage payload.
type VertexInfo struct {
	Outputs                      []OutputMap
	EmulateDepthNegativeOneToOne bool
}

// Stage implements Payload.
func (VertexInfo) Stage() stage.HardwareStage { return stage.Vertex }

func (v VertexInfo) equal(p Payload) bool {
	o, ok := p.(VertexInfo)
	return ok && v.EmulateDepthNegativeOneToOne == o.EmulateDepthNegativeOneToOne &&
		slices.Equal(v.Outputs, o.Outputs)
}

func (v VertexInfo) clone() Payload {
	v.Outputs = cloneOrNil(v.Outputs)
	return v
}

// FragmentInfo is the fragment stage payload.
type FragmentInfo struct {
	Inputs      []PsInput
	MrtSwizzles [amdgpu.MaxColorBuffers]MrtSwizzle
}

// Stage implements Payload.
func (FragmentInfo) Stage() stage.HardwareStage { return stage.Fragment }

func (f FragmentInfo) equal(p Payload) bool {
	o, ok := p.(FragmentInfo)
	return ok && f.MrtSwizzles == o.MrtSwizzles && slices.Equal(f.Inputs, o.Inputs)
}

func (f FragmentInfo) clone() Payload {
	f.Inputs = cloneOrNil(f.Inputs)
	return f
}

// ComputeInfo is the compute stage payload.
type ComputeInfo struct {
	SharedMemorySize uint32
	WorkgroupSize    [3]uint32
	TgidEnable       [3]bool
}

// Stage implements Payload.
func (ComputeInfo) Stage() stage.HardwareStage { return stage.Compute }

func (c ComputeInfo) equal(p Payload) bool {
	o, ok := p.(ComputeInfo)
	return ok && c == o
}

func (c ComputeInfo) clone() Payload { return c }

// Invocations returns the number of invocations in one workgroup.
func (c ComputeInfo) Invocations() uint32 {
	return c.WorkgroupSize[0] * c.WorkgroupSize[1] * c.WorkgroupSize[2]
}

// GeometryInfo is the geometry stage payload.
type GeometryInfo struct {
	OutPrimitive amdgpu.PrimitiveType
	Mode         amdgpu.GsMode
	CutMode      amdgpu.GsCutMode

	// CopyShader is the compiled copy program that moves GS ring output
	// to the rasterizer. Compared by handle.
	CopyShader ProgramHandle

	// CopyMerged is set on the key of a compiled program once the copy
	// program has been merged into it.
	CopyMerged bool
}

// Stage implements Payload.
func (GeometryInfo) Stage() stage.HardwareStage { return stage.Geometry }

func (g GeometryInfo) equal(p Payload) bool {
	o, ok := p.(GeometryInfo)
	return ok && g == o
}

func (g GeometryInfo) clone() Payload { return g }

// cloneOrNil copies s, normalizing empty slices to nil so equal payloads
// encode identically.
func cloneOrNil[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return slices.Clone(s)
}

// payloadFor returns the zero payload of a hardware stage, or nil for
// stages without one.
func payloadFor(s stage.HardwareStage) Payload {
	switch s {
	case stage.Vertex:
		return VertexInfo{}
	case stage.Fragment:
		return FragmentInfo{}
	case stage.Compute:
		return ComputeInfo{}
	case stage.Geometry:
		return GeometryInfo{}
	default:
		return nil
	}
}
