// Package amdgpu models the slice of emulated GPU register state the shader
// core reads: per-stage shader program registers, fixed-function state that
// affects translation, and the flattened user data holding resource sharps.
package amdgpu

import "github.com/gogpu/shaderjit/stage"

// MaxColorBuffers is the number of color render targets.
const MaxColorBuffers = 8

// MaxPsInputs is the number of pixel shader input interpolants.
const MaxPsInputs = 32

// PrimitiveType is the geometry shader output primitive.
type PrimitiveType uint32

// Geometry output primitive types.
const (
	PrimPointList PrimitiveType = iota
	PrimLineStrip
	PrimTriangleStrip
)

// GsMode selects the geometry shader scenario.
type GsMode uint32

// Geometry shader modes.
const (
	GsModeOff GsMode = iota
	GsModeScenarioA
	GsModeScenarioB
	GsModeScenarioG
	GsModeScenarioC
)

// GsCutMode is the maximum vertex count the cut logic supports.
type GsCutMode uint32

// Geometry cut modes.
const (
	GsCut1024 GsCutMode = iota
	GsCut512
	GsCut256
	GsCut128
)

// ComponentSwap is the color buffer channel swap mode.
type ComponentSwap uint8

// Component swap modes.
const (
	SwapStandard ComponentSwap = iota
	SwapAlternate
	SwapStandardReverse
	SwapAlternateReverse
)

// VsOutputControl is the subset of PA_CL_VS_OUT_CNTL that decides which
// auxiliary vertex outputs a shader writes.
type VsOutputControl struct {
	ClipDistanceEnable uint8 // bit i enables clip distance i
	CullDistanceEnable uint8 // bit i enables cull distance i
	UsePointSize       bool
	UseEdgeFlag        bool
	UseRenderTarget    bool
	UseViewport        bool
}

// PsInputControl is one SPI_PS_INPUT_CNTL entry.
type PsInputControl struct {
	InputOffset  uint8
	UseDefault   bool
	DefaultValue uint8
	FlatShade    bool
}

// ColorBuffer is the per-render-target state the shader core cares about.
type ColorBuffer struct {
	Enabled bool
	Swap    ComponentSwap
}

// ShaderProgram holds the per-stage program registers.
type ShaderProgram struct {
	// Address is the GPU address of the program code.
	Address uint64

	// NumUserData is the number of user data SGPRs loaded.
	NumUserData uint32

	// NumInputVGPRs is the number of VGPRs initialized by hardware.
	NumInputVGPRs uint32

	// NumAllocatedVGPRs is the VGPR allocation granule count times 4.
	NumAllocatedVGPRs uint32

	// UserData is the flattened user data buffer: the user data SGPRs
	// followed by any sharps copied out of shader resource tables.
	UserData []uint32
}

// Registers is a snapshot of live register state.
type Registers struct {
	// Programs holds the per hardware stage program registers.
	Programs [stage.NumHardwareStages]ShaderProgram

	// VsOutput is PA_CL_VS_OUT_CNTL.
	VsOutput VsOutputControl

	// ClipSpaceNegativeOneToOne is DX_CLIP_SPACE_DEF inverted: depth is in [-1, 1].
	ClipSpaceNegativeOneToOne bool

	// NumInterp is the number of active PS inputs.
	NumInterp uint32

	// PsInputs is SPI_PS_INPUT_CNTL_0..31.
	PsInputs [MaxPsInputs]PsInputControl

	// ColorBuffers holds CB_COLORn state.
	ColorBuffers [MaxColorBuffers]ColorBuffer

	// NumThreads is COMPUTE_NUM_THREAD_X/Y/Z.
	NumThreads [3]uint32

	// LdsDwords is the compute LDS allocation in dwords.
	LdsDwords uint32

	// TgidEnable is COMPUTE_PGM_RSRC2.tgid_x/y/z_en.
	TgidEnable [3]bool

	// GsOutPrimType is VGT_GS_OUT_PRIM_TYPE.
	GsOutPrimType PrimitiveType

	// GsMode is VGT_GS_MODE.mode.
	GsMode GsMode

	// GsCutMode is VGT_GS_MODE.cut_mode.
	GsCutMode GsCutMode
}

// Program returns the program registers of a hardware stage.
func (r *Registers) Program(s stage.HardwareStage) *ShaderProgram {
	return &r.Programs[s]
}

// UserData returns the flattened user data of a hardware stage.
func (r *Registers) UserData(s stage.HardwareStage) []uint32 {
	return r.Programs[s].UserData
}

// SharedMemorySize returns the compute LDS size in bytes.
func (r *Registers) SharedMemorySize() uint32 {
	return r.LdsDwords * 4
}
