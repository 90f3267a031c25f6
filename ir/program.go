// Package ir is the intermediate representation the shader recompiler
// optimizes: a list of basic blocks holding instructions in SSA form, plus
// the metadata collected about the program.
package ir

import (
	"github.com/gogpu/shaderjit/stage"
)

// Inst is a single IR instruction. Its result is referenced by InstValue.
type Inst struct {
	Op   Opcode
	Args []Value

	// Imm is an opcode specific immediate: the register number of register
	// ops, the declared image type of image ops.
	Imm uint32

	// Resource is the index into Info.Images or Info.Buffers assigned by
	// resource tracking, or -1.
	Resource int

	// Block is the block the instruction lives in.
	Block *Block
}

// Arg returns argument i, or an empty value when out of range.
func (i *Inst) Arg(n int) Value {
	if n < len(i.Args) {
		return i.Args[n]
	}
	return Value{}
}

// ReplaceUsesWith turns i into an identity of v. Users pick up v when
// identities are removed.
func (i *Inst) ReplaceUsesWith(v Value) {
	i.Op = OpIdentity
	i.Args = []Value{v}
	i.Resource = -1
}

// Invalidate turns i into a Nop with no operands.
func (i *Inst) Invalidate() {
	i.Op = OpNop
	i.Args = nil
	i.Resource = -1
}

// Block is a basic block.
type Block struct {
	ID    int
	Insts []*Inst
	Preds []*Block
	Succs []*Block
}

// Append appends a new instruction to b and returns it.
func (b *Block) Append(op Opcode, args ...Value) *Inst {
	inst := &Inst{Op: op, Args: args, Resource: -1, Block: b}
	b.Insts = append(b.Insts, inst)
	return inst
}

// AppendImm appends an instruction that carries an opcode immediate.
func (b *Block) AppendImm(op Opcode, imm uint32, args ...Value) *Inst {
	inst := b.Append(op, args...)
	inst.Imm = imm
	return inst
}

// Prepend inserts inst at the start of b.
func (b *Block) Prepend(inst *Inst) {
	inst.Block = b
	b.Insts = append([]*Inst{inst}, b.Insts...)
}

// Link adds a control flow edge from -> to.
func Link(from, to *Block) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

// Program is a shader program under optimization.
type Program struct {
	// Blocks is in reverse post order; Blocks[0] is the entry.
	Blocks []*Block

	// Stage is the hardware stage the program was captured from.
	Stage stage.HardwareStage

	// Hash identifies the native shader code.
	Hash uint64

	// PermIndex distinguishes specializations of the same hash.
	PermIndex uint32

	Info Info
}

// NewProgram returns an empty program.
func NewProgram(s stage.HardwareStage, hash uint64) *Program {
	return &Program{Stage: s, Hash: hash, Info: Info{Stage: s}}
}

// NewBlock appends an empty block to p.
func (p *Program) NewBlock() *Block {
	b := &Block{ID: len(p.Blocks)}
	p.Blocks = append(p.Blocks, b)
	return b
}

// NumInsts returns the instruction count over all blocks.
func (p *Program) NumInsts() int {
	n := 0
	for _, b := range p.Blocks {
		n += len(b.Insts)
	}
	return n
}

// Walk calls fn for every instruction in block order.
func (p *Program) Walk(fn func(*Inst)) {
	for _, b := range p.Blocks {
		for _, inst := range b.Insts {
			fn(inst)
		}
	}
}

// Compact resolves identity chains in all operands and drops identities
// and nops.
func (p *Program) Compact() {
	p.Walk(func(inst *Inst) {
		for j, a := range inst.Args {
			inst.Args[j] = a.Resolve()
		}
	})
	for _, b := range p.Blocks {
		kept := b.Insts[:0]
		for _, inst := range b.Insts {
			if inst.Op != OpIdentity && inst.Op != OpNop {
				kept = append(kept, inst)
			}
		}
		clear(b.Insts[len(kept):])
		b.Insts = kept
	}
}

// CloneBlocks deep copies blocks and the edges between them. Operands that
// refer to instructions outside blocks keep pointing at the originals.
func CloneBlocks(blocks []*Block) []*Block {
	bmap := make(map[*Block]*Block, len(blocks))
	imap := make(map[*Inst]*Inst)
	out := make([]*Block, len(blocks))
	for i, b := range blocks {
		nb := &Block{ID: b.ID, Insts: make([]*Inst, len(b.Insts))}
		for j, inst := range b.Insts {
			ni := *inst
			ni.Block = nb
			nb.Insts[j] = &ni
			imap[inst] = &ni
		}
		bmap[b] = nb
		out[i] = nb
	}
	for i, b := range blocks {
		nb := out[i]
		for _, s := range b.Succs {
			if ns, ok := bmap[s]; ok {
				nb.Succs = append(nb.Succs, ns)
			}
		}
		for _, pr := range b.Preds {
			if np, ok := bmap[pr]; ok {
				nb.Preds = append(nb.Preds, np)
			}
		}
		for _, ni := range nb.Insts {
			args := make([]Value, len(ni.Args))
			for j, a := range ni.Args {
				if c, ok := imap[a.inst]; ok && a.kind == kindInst {
					a.inst = c
				}
				args[j] = a
			}
			ni.Args = args
		}
	}
	return out
}

// AppendBlocks appends blocks to p, renumbering their IDs.
func (p *Program) AppendBlocks(blocks []*Block) {
	for _, b := range blocks {
		b.ID = len(p.Blocks)
		p.Blocks = append(p.Blocks, b)
	}
}
