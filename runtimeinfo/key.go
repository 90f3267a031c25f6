package runtimeinfo

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/gogpu/shaderjit/stage"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("runtimeinfo: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Header holds per-compilation values that travel with a key but never take
// part in equality.
type Header struct {
	Logical           stage.LogicalStage
	NumUserData       uint32
	NumInputVGPRs     uint32
	NumAllocatedVGPRs uint32
}

// Key is an immutable specialization key. Construct it with BuildKey or one
// of the New functions; the zero Key is not a usable key.
type Key struct {
	stage   stage.HardwareStage
	header  Header
	payload Payload
	fp      string
}

// fingerprint is the canonical encoding input of a key.
type fingerprint struct {
	_       struct{} `cbor:",toarray"`
	Stage   stage.HardwareStage
	Payload Payload
}

func newKey(s stage.HardwareStage, h Header, p Payload) Key {
	k := Key{stage: s, header: h, payload: p}
	b, err := cborEncMode.Marshal(fingerprint{Stage: s, Payload: p})
	if err != nil {
		// Payload types are plain data; encoding cannot fail for them.
		b = fmt.Appendf(nil, "%d:%#v", s, p)
	}
	k.fp = string(b)
	return k
}

// NewStage returns a key for s with the default payload of that stage.
func NewStage(s stage.HardwareStage) Key {
	return newKey(s, defaultHeader(s), payloadFor(s))
}

// NewVertex returns a vertex stage key.
func NewVertex(info VertexInfo) Key {
	return newKey(stage.Vertex, defaultHeader(stage.Vertex), info.clone())
}

// NewFragment returns a fragment stage key.
func NewFragment(info FragmentInfo) Key {
	return newKey(stage.Fragment, defaultHeader(stage.Fragment), info.clone())
}

// NewCompute returns a compute stage key.
func NewCompute(info ComputeInfo) Key {
	return newKey(stage.Compute, defaultHeader(stage.Compute), info)
}

// NewGeometry returns a geometry stage key.
func NewGeometry(info GeometryInfo) Key {
	return newKey(stage.Geometry, defaultHeader(stage.Geometry), info)
}

func defaultHeader(s stage.HardwareStage) Header {
	var h Header
	switch s {
	case stage.Fragment:
		h.Logical = stage.FS
	case stage.Geometry:
		h.Logical = stage.GS
	case stage.Hull:
		h.Logical = stage.TCS
	case stage.Compute:
		h.Logical = stage.CS
	default:
		h.Logical = stage.VS
	}
	return h
}

// Stage returns the hardware stage tag.
func (k Key) Stage() stage.HardwareStage { return k.stage }

// Header returns the key header.
func (k Key) Header() Header { return k.header }

// WithHeader returns a copy of k with a different header. Equality is unaffected.
func (k Key) WithHeader(h Header) Key {
	k.header = h
	return k
}

// Payload returns a copy of the stage payload, or nil for stages without one.
func (k Key) Payload() Payload {
	if k.payload == nil {
		return nil
	}
	return k.payload.clone()
}

// Vertex returns the vertex payload.
func (k Key) Vertex() (VertexInfo, bool) {
	v, ok := k.payload.(VertexInfo)
	if ok {
		v = v.clone().(VertexInfo)
	}
	return v, ok
}

// Fragment returns the fragment payload.
func (k Key) Fragment() (FragmentInfo, bool) {
	f, ok := k.payload.(FragmentInfo)
	if ok {
		f = f.clone().(FragmentInfo)
	}
	return f, ok
}

// Compute returns the compute payload.
func (k Key) Compute() (ComputeInfo, bool) {
	c, ok := k.payload.(ComputeInfo)
	return c, ok
}

// Geometry returns the geometry payload.
func (k Key) Geometry() (GeometryInfo, bool) {
	g, ok := k.payload.(GeometryInfo)
	return g, ok
}

// WithCopyShader returns a geometry key referencing the copy program h.
// Keys of other stages are returned unchanged.
func (k Key) WithCopyShader(h ProgramHandle) Key {
	g, ok := k.payload.(GeometryInfo)
	if !ok {
		return k
	}
	g.CopyShader = h
	return newKey(k.stage, k.header, g)
}

// WithCopyMerged returns a geometry key marked as carrying a merged copy program.
func (k Key) WithCopyMerged() Key {
	g, ok := k.payload.(GeometryInfo)
	if !ok {
		return k
	}
	g.CopyMerged = true
	return newKey(k.stage, k.header, g)
}

// Equal reports whether two keys specialize a shader identically.
// Only the payload of the shared stage tag is compared. Stages without a
// payload are equal whenever their tags match.
func (k Key) Equal(o Key) bool {
	if k.stage != o.stage {
		return false
	}
	switch {
	case k.payload == nil && o.payload == nil:
		return true
	case k.payload == nil || o.payload == nil:
		return false
	default:
		return k.payload.equal(o.payload)
	}
}

// Fingerprint returns a canonical encoding of exactly the data Equal
// compares. Equal keys have equal fingerprints.
func (k Key) Fingerprint() string {
	if k.fp == "" {
		return newKey(k.stage, k.header, k.payload).fp
	}
	return k.fp
}

// String returns a short description for logs.
func (k Key) String() string {
	return fmt.Sprintf("%s%+v", k.stage, k.payload)
}
