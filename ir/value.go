package ir

import (
	"fmt"
	"math"
)

type valueKind uint8

const (
	kindEmpty valueKind = iota
	kindInst
	kindU1
	kindU32
	kindF32
)

// Value is an instruction operand: either the result of an instruction or
// an immediate. Values are comparable.
type Value struct {
	inst *Inst
	kind valueKind
	imm  uint32
}

// InstValue returns the result of inst as a value.
func InstValue(inst *Inst) Value {
	return Value{inst: inst, kind: kindInst}
}

// U1 returns a boolean immediate.
func U1(b bool) Value {
	v := Value{kind: kindU1}
	if b {
		v.imm = 1
	}
	return v
}

// U32 returns an integer immediate.
func U32(x uint32) Value {
	return Value{kind: kindU32, imm: x}
}

// F32 returns a float immediate.
func F32(f float32) Value {
	return Value{kind: kindF32, imm: math.Float32bits(f)}
}

// IsEmpty reports whether v is the zero Value.
func (v Value) IsEmpty() bool { return v.kind == kindEmpty }

// IsImmediate reports whether v is a constant.
func (v Value) IsImmediate() bool { return v.kind >= kindU1 }

// Inst returns the defining instruction, or nil for immediates.
func (v Value) Inst() *Inst { return v.inst }

// U1 returns the boolean immediate.
func (v Value) U1() bool { return v.imm != 0 }

// U32 returns the raw 32-bit immediate.
func (v Value) U32() uint32 { return v.imm }

// F32 returns the immediate as a float.
func (v Value) F32() float32 { return math.Float32frombits(v.imm) }

// IsF32 reports whether v is a float immediate.
func (v Value) IsF32() bool { return v.kind == kindF32 }

// Resolve follows identity chains to the underlying value.
func (v Value) Resolve() Value {
	for v.kind == kindInst && v.inst.Op == OpIdentity {
		v = v.inst.Args[0]
	}
	return v
}

func (v Value) format(ids map[*Inst]int) string {
	switch v.kind {
	case kindInst:
		if id, ok := ids[v.inst]; ok {
			return fmt.Sprintf("%%%d", id)
		}
		return "%?"
	case kindU1:
		return fmt.Sprintf("%t", v.U1())
	case kindU32:
		return fmt.Sprintf("%#x", v.imm)
	case kindF32:
		return fmt.Sprintf("%gf", v.F32())
	default:
		return "<empty>"
	}
}
