// Package passes implements the fixed optimization pipeline that turns a
// decoded shader program into its specialized, finalized form.
//
// The order is fixed: SSA rewrite, identity removal, constant propagation,
// dead code elimination, resource tracking, shared memory lowering, shader
// info collection and copy shader merge. Every pass accepts a program with
// no blocks and leaves it unchanged.
package passes

import (
	"errors"
	"fmt"

	"github.com/gogpu/shaderjit/ir"
	"github.com/gogpu/shaderjit/runtimeinfo"
)

var (
	// ErrStaleCopyShader is returned when a geometry key references a copy
	// program that is no longer cached.
	ErrStaleCopyShader = errors.New("passes: stale copy shader handle")

	// ErrUntrackedResource is returned when a resource operand cannot be
	// traced back to user data.
	ErrUntrackedResource = errors.New("passes: resource descriptor not traceable to user data")
)

// Programs resolves program handles to compiled IR.
type Programs interface {
	IR(h runtimeinfo.ProgramHandle) (*ir.Program, bool)
}

// DumpFunc receives the program after each phase.
type DumpFunc func(phase string, p *ir.Program)

// Context parameterizes a pipeline run.
type Context struct {
	// Key is the specialization key. MergeCopyShader updates it.
	Key *runtimeinfo.Key

	// Programs resolves geometry copy programs. May be nil when no
	// geometry program is compiled.
	Programs Programs

	// Dump is called with "pre_ssa" and then the name of every pass.
	Dump DumpFunc
}

type pass struct {
	name string
	run  func(p *ir.Program, ctx *Context) error
}

var pipeline = [...]pass{
	{"ssa_rewrite", func(p *ir.Program, _ *Context) error { SsaRewrite(p); return nil }},
	{"identity_removal", func(p *ir.Program, _ *Context) error { IdentityRemoval(p); return nil }},
	{"constant_propagation", func(p *ir.Program, _ *Context) error { ConstantPropagation(p); return nil }},
	{"dead_code_elimination", func(p *ir.Program, _ *Context) error { DeadCodeElimination(p); return nil }},
	{"resource_tracking", func(p *ir.Program, ctx *Context) error { return ResourceTracking(p, *ctx.Key) }},
	{"lower_shared_mem", func(p *ir.Program, ctx *Context) error { LowerSharedMemToRegisters(p, *ctx.Key); return nil }},
	{"collect_shader_info", func(p *ir.Program, ctx *Context) error { CollectShaderInfo(p, *ctx.Key); return nil }},
	{"merge_copy_shader", func(p *ir.Program, ctx *Context) error { return MergeCopyShader(p, ctx.Key, ctx.Programs) }},
}

// Phases returns the dump phase names in order.
func Phases() []string {
	out := []string{"pre_ssa"}
	for _, ps := range pipeline {
		out = append(out, ps.name)
	}
	return out
}

// Run runs the whole pipeline over p.
func Run(p *ir.Program, ctx Context) error {
	if ctx.Key == nil {
		k := runtimeinfo.NewStage(p.Stage)
		ctx.Key = &k
	}
	RecordHeader(p, *ctx.Key)
	if ctx.Dump != nil {
		ctx.Dump("pre_ssa", p)
	}
	for _, ps := range pipeline {
		if err := ps.run(p, &ctx); err != nil {
			return fmt.Errorf("%s: %w", ps.name, err)
		}
		if ctx.Dump != nil {
			ctx.Dump(ps.name, p)
		}
	}
	return nil
}
