// Package stage defines the hardware and logical shader stage taxonomies and
// the mapping between them.
//
// A logical stage is the role a shader plays in the pipeline (vertex shader,
// geometry shader, ...). The hardware stage is the physical slot that runs it.
// The same logical stage lands on different hardware slots depending on which
// other logical stages are active: a vertex shader runs on the Local slot when
// tessellation is enabled, on the Export slot when a geometry shader follows
// it, and on the Vertex slot otherwise.
package stage

import (
	"strings"

	"github.com/gogpu/naga/ir"
)

// HardwareStage identifies a physical pipeline stage slot.
type HardwareStage uint32

// Hardware stages.
const (
	Fragment HardwareStage = iota
	Vertex
	Geometry
	Export
	Hull
	Local
	Compute
)

// NumHardwareStages is the number of hardware stage slots.
const NumHardwareStages = 7

// String returns the hardware stage name.
func (s HardwareStage) String() string {
	switch s {
	case Fragment:
		return "fs"
	case Vertex:
		return "vs"
	case Geometry:
		return "gs"
	case Export:
		return "es"
	case Hull:
		return "hs"
	case Local:
		return "ls"
	case Compute:
		return "cs"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the known hardware stages.
func (s HardwareStage) Valid() bool {
	return s < NumHardwareStages
}

// LogicalStage identifies the software role of a shader.
type LogicalStage uint32

// Logical stages.
const (
	VS LogicalStage = iota
	TCS
	TES
	GS
	GSCopy
	FS
	CS
)

// NumLogicalStages is the number of logical stages.
const NumLogicalStages = 7

// String returns the logical stage name.
func (s LogicalStage) String() string {
	switch s {
	case VS:
		return "VS"
	case TCS:
		return "TCS"
	case TES:
		return "TES"
	case GS:
		return "GS"
	case GSCopy:
		return "GSCopy"
	case FS:
		return "FS"
	case CS:
		return "CS"
	default:
		return "Unknown"
	}
}

// BackendStage returns the naga entry point stage used when the backend
// generator emits this logical stage as a standalone entry point.
// Tessellation and geometry stages have no direct naga equivalent.
func (s LogicalStage) BackendStage() (ir.ShaderStage, bool) {
	switch s {
	case VS, GSCopy:
		return ir.StageVertex, true
	case FS:
		return ir.StageFragment, true
	case CS:
		return ir.StageCompute, true
	default:
		return 0, false
	}
}

// ActiveSet is a bitset of active logical stages.
type ActiveSet uint32

// NewActiveSet returns a set containing the given stages.
func NewActiveSet(stages ...LogicalStage) ActiveSet {
	var s ActiveSet
	for _, st := range stages {
		s = s.With(st)
	}
	return s
}

// With returns a copy of the set with st added.
func (a ActiveSet) With(st LogicalStage) ActiveSet {
	return a | 1<<st
}

// Has reports whether st is in the set.
func (a ActiveSet) Has(st LogicalStage) bool {
	return a&(1<<st) != 0
}

// Stages returns the members of the set in logical stage order.
func (a ActiveSet) Stages() []LogicalStage {
	out := make([]LogicalStage, 0, NumLogicalStages)
	for st := VS; st < NumLogicalStages; st++ {
		if a.Has(st) {
			out = append(out, st)
		}
	}
	return out
}

// String returns the set as "{VS,GS,...}".
func (a ActiveSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, st := range a.Stages() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(st.String())
	}
	b.WriteByte('}')
	return b.String()
}
