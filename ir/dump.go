package ir

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// WriteTo writes a text listing of p. Instruction results are numbered in
// block order.
func (p *Program) WriteTo(w io.Writer) (int64, error) {
	ids := make(map[*Inst]int)
	p.Walk(func(inst *Inst) { ids[inst] = len(ids) })

	cw := &countWriter{w: bufio.NewWriter(w)}
	fmt.Fprintf(cw, "; %s 0x%016x perm %d logical %s entry %s\n",
		p.Stage, p.Hash, p.PermIndex, p.Info.Logical, p.Info.EntryPointName())
	for _, b := range p.Blocks {
		fmt.Fprintf(cw, "block%d:", b.ID)
		if len(b.Preds) > 0 {
			cw.str(" ; preds")
			for _, pr := range b.Preds {
				fmt.Fprintf(cw, " block%d", pr.ID)
			}
		}
		cw.str("\n")
		for _, inst := range b.Insts {
			fmt.Fprintf(cw, "    %%%d = %s", ids[inst], inst.Op)
			if inst.Imm != 0 || inst.Op == OpGetRegister || inst.Op == OpSetRegister {
				fmt.Fprintf(cw, " #%d", inst.Imm)
			}
			for i, a := range inst.Args {
				if i > 0 {
					cw.str(",")
				}
				cw.str(" ")
				cw.str(a.format(ids))
			}
			if inst.Resource >= 0 {
				fmt.Fprintf(cw, " ; res %d", inst.Resource)
			}
			cw.str("\n")
		}
		if len(b.Succs) > 0 {
			cw.str("    ; succs")
			for _, s := range b.Succs {
				fmt.Fprintf(cw, " block%d", s.ID)
			}
			cw.str("\n")
		}
	}
	if cw.err != nil {
		return cw.n, cw.err
	}
	return cw.n, cw.w.Flush()
}

// String returns the text listing of p.
func (p *Program) String() string {
	var sb strings.Builder
	_, _ = p.WriteTo(&sb)
	return sb.String()
}

type countWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countWriter) Write(b []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(b)
	c.n += int64(n)
	c.err = err
	return n, err
}

func (c *countWriter) str(s string) {
	_, _ = c.Write([]byte(s))
}
