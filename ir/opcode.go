package ir

// Opcode identifies an IR operation.
type Opcode uint16

// Opcodes.
const (
	OpNop Opcode = iota
	OpIdentity
	OpPhi

	// Registers exist only before SSA rewrite. Inst.Imm holds the register.
	OpGetRegister
	OpSetRegister

	// OpGetUserData reads the flattened user data dword Args[0].
	OpGetUserData

	OpIAdd
	OpISub
	OpIMul
	OpShiftLeft
	OpShiftRight
	OpBitwiseAnd
	OpBitwiseOr
	OpBitwiseXor
	OpFAdd
	OpFSub
	OpFMul
	OpIEqual
	OpINotEqual
	OpILessThan
	OpSelect

	// Attribute access: Args[0] is the attribute, Args[1] the component.
	// OpSetAttribute stores Args[2].
	OpGetAttribute
	OpSetAttribute

	// OpWorkgroupID returns component Args[0] of the workgroup id.
	OpWorkgroupID
	OpLocalInvocationID

	// Shared memory access at byte offset Args[0]. OpStoreShared stores Args[1].
	OpLoadShared
	OpStoreShared
	OpBarrier

	// Image operations: Args[0] is the descriptor, Args[1] the coordinates.
	// Inst.Imm holds the declared amdgpu.ImageType. OpImageWrite stores Args[2].
	OpImageSample
	OpImageSampleDref
	OpImageFetch
	OpImageRead
	OpImageWrite

	// Buffer operations: Args[0] is the descriptor, Args[1] the byte offset.
	// OpBufferStore stores Args[2].
	OpBufferLoad
	OpBufferStore

	OpDiscard
	OpEmitVertex
	OpEndPrimitive

	OpBranch
	OpBranchConditional
	OpReturn

	numOpcodes
)

type opFlags uint8

const (
	flagSideEffect opFlags = 1 << iota
	flagTerminator
	flagImage
	flagBuffer
	flagStorage
)

var opTable = [numOpcodes]struct {
	name  string
	flags opFlags
}{
	OpNop:               {"Nop", 0},
	OpIdentity:          {"Identity", 0},
	OpPhi:               {"Phi", 0},
	OpGetRegister:       {"GetRegister", 0},
	OpSetRegister:       {"SetRegister", flagSideEffect},
	OpGetUserData:       {"GetUserData", 0},
	OpIAdd:              {"IAdd", 0},
	OpISub:              {"ISub", 0},
	OpIMul:              {"IMul", 0},
	OpShiftLeft:         {"ShiftLeft", 0},
	OpShiftRight:        {"ShiftRight", 0},
	OpBitwiseAnd:        {"BitwiseAnd", 0},
	OpBitwiseOr:         {"BitwiseOr", 0},
	OpBitwiseXor:        {"BitwiseXor", 0},
	OpFAdd:              {"FAdd", 0},
	OpFSub:              {"FSub", 0},
	OpFMul:              {"FMul", 0},
	OpIEqual:            {"IEqual", 0},
	OpINotEqual:         {"INotEqual", 0},
	OpILessThan:         {"ILessThan", 0},
	OpSelect:            {"Select", 0},
	OpGetAttribute:      {"GetAttribute", 0},
	OpSetAttribute:      {"SetAttribute", flagSideEffect},
	OpWorkgroupID:       {"WorkgroupID", 0},
	OpLocalInvocationID: {"LocalInvocationID", 0},
	OpLoadShared:        {"LoadShared", 0},
	OpStoreShared:       {"StoreShared", flagSideEffect},
	OpBarrier:           {"Barrier", flagSideEffect},
	OpImageSample:       {"ImageSample", flagImage},
	OpImageSampleDref:   {"ImageSampleDref", flagImage},
	OpImageFetch:        {"ImageFetch", flagImage},
	OpImageRead:         {"ImageRead", flagImage | flagStorage},
	OpImageWrite:        {"ImageWrite", flagImage | flagStorage | flagSideEffect},
	OpBufferLoad:        {"BufferLoad", flagBuffer},
	OpBufferStore:       {"BufferStore", flagBuffer | flagStorage | flagSideEffect},
	OpDiscard:           {"Discard", flagSideEffect},
	OpEmitVertex:        {"EmitVertex", flagSideEffect},
	OpEndPrimitive:      {"EndPrimitive", flagSideEffect},
	OpBranch:            {"Branch", flagTerminator},
	OpBranchConditional: {"BranchConditional", flagTerminator},
	OpReturn:            {"Return", flagTerminator},
}

// String returns the opcode mnemonic.
func (op Opcode) String() string {
	if op < numOpcodes {
		return opTable[op].name
	}
	return "Unknown"
}

// HasSideEffects reports whether an instruction must be kept even when its
// result is unused.
func (op Opcode) HasSideEffects() bool {
	return op < numOpcodes && opTable[op].flags&(flagSideEffect|flagTerminator) != 0
}

// IsTerminator reports whether op ends a block.
func (op Opcode) IsTerminator() bool {
	return op < numOpcodes && opTable[op].flags&flagTerminator != 0
}

// IsImage reports whether op accesses an image resource.
func (op Opcode) IsImage() bool {
	return op < numOpcodes && opTable[op].flags&flagImage != 0
}

// IsBuffer reports whether op accesses a buffer resource.
func (op Opcode) IsBuffer() bool {
	return op < numOpcodes && opTable[op].flags&flagBuffer != 0
}

// IsStorage reports whether op reads or writes its resource as storage.
func (op Opcode) IsStorage() bool {
	return op < numOpcodes && opTable[op].flags&flagStorage != 0
}
