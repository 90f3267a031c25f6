package passes

import (
	"errors"
	"slices"
	"strings"
	"testing"

	naga "github.com/gogpu/naga/ir"

	"github.com/gogpu/shaderjit/amdgpu"
	"github.com/gogpu/shaderjit/ir"
	"github.com/gogpu/shaderjit/runtimeinfo"
	"github.com/gogpu/shaderjit/stage"
)

func TestRunEmptyProgram(t *testing.T) {
	for s := stage.Fragment; s < stage.NumHardwareStages; s++ {
		t.Run(s.String(), func(t *testing.T) {
			p := ir.NewProgram(s, 0x1234)
			key := runtimeinfo.NewStage(s)
			if err := Run(p, Context{Key: &key}); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(p.Blocks) != 0 || p.NumInsts() != 0 {
				t.Errorf("program not empty: %d blocks", len(p.Blocks))
			}
			if p.Info.HasResources() {
				t.Errorf("empty program collected resources: %+v", p.Info)
			}
		})
	}
}

func TestRunEmptyBlock(t *testing.T) {
	p := ir.NewProgram(stage.Compute, 1)
	p.NewBlock()
	key := runtimeinfo.NewCompute(runtimeinfo.ComputeInfo{WorkgroupSize: [3]uint32{1, 1, 1}})
	if err := Run(p, Context{Key: &key}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if p.Info.NumBlocks != 1 || p.Info.NumInsts != 0 {
		t.Errorf("NumBlocks = %d, NumInsts = %d", p.Info.NumBlocks, p.Info.NumInsts)
	}
}

func TestDeadCodeElimination(t *testing.T) {
	p := ir.NewProgram(stage.Vertex, 1)
	b := p.NewBlock()
	dead := b.Append(ir.OpIAdd, ir.InstValue(b.Append(ir.OpGetUserData, ir.U32(0))), ir.U32(1))
	live := b.Append(ir.OpIMul, ir.InstValue(b.Append(ir.OpGetUserData, ir.U32(1))), ir.U32(3))
	b.Append(ir.OpSetAttribute, ir.U32(ir.AttrParam0), ir.U32(0), ir.InstValue(live))
	b.Append(ir.OpReturn)

	DeadCodeElimination(p)

	if slices.Contains(b.Insts, dead) {
		t.Error("unobserved instruction survived")
	}
	if !slices.Contains(b.Insts, live) {
		t.Error("instruction feeding an output was removed")
	}
	if len(b.Insts) != 4 {
		t.Errorf("len(Insts) = %d, want 4", len(b.Insts))
	}
}

func TestConstantPropagation(t *testing.T) {
	p := ir.NewProgram(stage.Vertex, 1)
	b := p.NewBlock()
	x := b.Append(ir.OpIAdd, ir.U32(2), ir.U32(3))
	y := b.Append(ir.OpIMul, ir.InstValue(x), ir.U32(4))
	cond := b.Append(ir.OpILessThan, ir.InstValue(y), ir.U32(100))
	sel := b.Append(ir.OpSelect, ir.InstValue(cond), ir.F32(1.5), ir.F32(2.5))
	out := b.Append(ir.OpSetAttribute, ir.U32(ir.AttrParam0), ir.U32(0), ir.InstValue(y))
	out2 := b.Append(ir.OpSetAttribute, ir.U32(ir.AttrParam0), ir.U32(1), ir.InstValue(sel))

	ConstantPropagation(p)

	if got := out.Args[2]; got != ir.U32(20) {
		t.Errorf("folded value = %v, want 20", got.U32())
	}
	if got := out2.Args[2]; got != ir.F32(1.5) {
		t.Errorf("select = %v, want 1.5", got.F32())
	}
	if len(b.Insts) != 2 {
		t.Errorf("len(Insts) = %d, want 2", len(b.Insts))
	}
}

func TestConstantPropagationAlgebraic(t *testing.T) {
	p := ir.NewProgram(stage.Vertex, 1)
	b := p.NewBlock()
	ud := b.Append(ir.OpGetUserData, ir.U32(0))
	add := b.Append(ir.OpIAdd, ir.InstValue(ud), ir.U32(0))
	mul := b.Append(ir.OpIMul, ir.InstValue(ud), ir.U32(0))
	out := b.Append(ir.OpSetAttribute, ir.U32(ir.AttrParam0), ir.U32(0), ir.InstValue(add))
	out2 := b.Append(ir.OpSetAttribute, ir.U32(ir.AttrParam0), ir.U32(1), ir.InstValue(mul))

	ConstantPropagation(p)

	if out.Args[2] != ir.InstValue(ud) {
		t.Error("x + 0 not simplified to x")
	}
	if out2.Args[2] != ir.U32(0) {
		t.Error("x * 0 not simplified to 0")
	}
}

func TestSsaRewriteDiamond(t *testing.T) {
	p := ir.NewProgram(stage.Vertex, 1)
	b0, b1, b2, b3 := p.NewBlock(), p.NewBlock(), p.NewBlock(), p.NewBlock()
	ir.Link(b0, b1)
	ir.Link(b0, b2)
	ir.Link(b1, b3)
	ir.Link(b2, b3)

	b0.AppendImm(ir.OpSetRegister, 1, ir.U32(5))
	b0.Append(ir.OpBranchConditional, ir.InstValue(b0.Append(ir.OpGetUserData, ir.U32(0))))
	b1.AppendImm(ir.OpSetRegister, 1, ir.U32(7))
	b1.Append(ir.OpBranch)
	b2.Append(ir.OpBranch)
	r := b3.AppendImm(ir.OpGetRegister, 1)
	out := b3.Append(ir.OpSetAttribute, ir.U32(ir.AttrParam0), ir.U32(0), ir.InstValue(r))
	b3.Append(ir.OpReturn)

	SsaRewrite(p)

	phi := b3.Insts[0]
	if phi.Op != ir.OpPhi {
		t.Fatalf("first instruction of merge block = %v, want Phi", phi.Op)
	}
	if len(phi.Args) != 2 || phi.Args[0] != ir.U32(7) || phi.Args[1] != ir.U32(5) {
		t.Errorf("phi args = %v, want [7 5]", phi.Args)
	}
	if out.Args[2] != ir.InstValue(phi) {
		t.Error("register read not replaced by phi")
	}
	p.Walk(func(inst *ir.Inst) {
		if inst.Op == ir.OpGetRegister || inst.Op == ir.OpSetRegister {
			t.Errorf("register op %v survived", inst.Op)
		}
	})
}

func TestSsaRewriteLoopTrivialPhi(t *testing.T) {
	p := ir.NewProgram(stage.Vertex, 1)
	b0, b1, b2, b3 := p.NewBlock(), p.NewBlock(), p.NewBlock(), p.NewBlock()
	ir.Link(b0, b1)
	ir.Link(b1, b2)
	ir.Link(b1, b3)
	ir.Link(b2, b1)

	b0.AppendImm(ir.OpSetRegister, 0, ir.U32(9))
	b0.Append(ir.OpBranch)
	r := b1.AppendImm(ir.OpGetRegister, 0)
	out := b1.Append(ir.OpSetAttribute, ir.U32(ir.AttrParam0), ir.U32(0), ir.InstValue(r))
	b1.Append(ir.OpBranchConditional, ir.U1(true))
	b2.AppendImm(ir.OpSetRegister, 0, ir.U32(9))
	b2.Append(ir.OpBranch)
	b3.Append(ir.OpReturn)

	SsaRewrite(p)

	if out.Args[2] != ir.U32(9) {
		t.Errorf("loop carried value = %v, want 9", out.Args[2])
	}
	for _, inst := range b1.Insts {
		if inst.Op == ir.OpPhi {
			t.Error("trivial phi survived")
		}
	}
}

func TestSsaRewriteUndefinedRegister(t *testing.T) {
	p := ir.NewProgram(stage.Vertex, 1)
	b := p.NewBlock()
	r := b.AppendImm(ir.OpGetRegister, 3)
	out := b.Append(ir.OpSetAttribute, ir.U32(ir.AttrParam0), ir.U32(0), ir.InstValue(r))

	SsaRewrite(p)

	if out.Args[2] != ir.U32(0) {
		t.Errorf("undefined register read = %v, want 0", out.Args[2])
	}
}

func sampleProgram(s stage.HardwareStage) (*ir.Program, *ir.Block) {
	p := ir.NewProgram(s, 0xfeed)
	b := p.NewBlock()
	return p, b
}

func TestResourceTracking(t *testing.T) {
	p, b := sampleProgram(stage.Fragment)
	tex0 := b.Append(ir.OpGetUserData, ir.U32(4))
	tex1 := b.Append(ir.OpGetUserData, ir.U32(12))
	coord := b.Append(ir.OpGetAttribute, ir.U32(ir.AttrParam0), ir.U32(0))
	s0 := b.AppendImm(ir.OpImageSample, uint32(amdgpu.ImageColor2D), ir.InstValue(tex0), ir.InstValue(coord))
	s1 := b.AppendImm(ir.OpImageSampleDref, uint32(amdgpu.ImageColor2D), ir.InstValue(tex0), ir.InstValue(coord))
	w := b.AppendImm(ir.OpImageWrite, uint32(amdgpu.ImageColor3D), ir.InstValue(tex1), ir.InstValue(coord), ir.InstValue(s1))
	b.Append(ir.OpSetAttribute, ir.U32(ir.AttrRenderTarget0), ir.U32(0), ir.InstValue(s0))
	b.Append(ir.OpReturn)

	if err := ResourceTracking(p, runtimeinfo.NewStage(stage.Fragment)); err != nil {
		t.Fatalf("ResourceTracking() error = %v", err)
	}

	want := []ir.ImageResource{
		{Binding: 0, SharpIndex: 4, Type: amdgpu.ImageColor2D, IsDepth: true},
		{Binding: 1, SharpIndex: 12, Type: amdgpu.ImageColor3D, IsStorage: true},
	}
	if !slices.Equal(p.Info.Images, want) {
		t.Errorf("Images = %+v, want %+v", p.Info.Images, want)
	}
	if s0.Resource != 0 || s1.Resource != 0 || w.Resource != 1 {
		t.Errorf("resources = %d %d %d, want 0 0 1", s0.Resource, s1.Resource, w.Resource)
	}
}

func TestResourceTrackingDropsDeadResources(t *testing.T) {
	p, b := sampleProgram(stage.Fragment)
	tex := b.Append(ir.OpGetUserData, ir.U32(0))
	b.AppendImm(ir.OpImageSample, uint32(amdgpu.ImageColor2D), ir.InstValue(tex), ir.F32(0))
	b.Append(ir.OpReturn)

	if err := ResourceTracking(p, runtimeinfo.NewStage(stage.Fragment)); err != nil {
		t.Fatal(err)
	}
	if len(p.Info.Images) != 0 {
		t.Errorf("unused sample recorded as resource: %+v", p.Info.Images)
	}
}

func TestResourceTrackingUntraceable(t *testing.T) {
	p, b := sampleProgram(stage.Compute)
	addr := b.Append(ir.OpIAdd, ir.InstValue(b.Append(ir.OpGetUserData, ir.U32(0))), ir.U32(4))
	b.Append(ir.OpBufferStore, ir.InstValue(addr), ir.U32(0), ir.U32(1))

	err := ResourceTracking(p, runtimeinfo.NewStage(stage.Compute))
	if !errors.Is(err, ErrUntrackedResource) {
		t.Errorf("error = %v, want ErrUntrackedResource", err)
	}
}

func TestResourceTrackingSpecializesFragmentDefaults(t *testing.T) {
	p, b := sampleProgram(stage.Fragment)
	in := b.Append(ir.OpGetAttribute, ir.U32(ir.AttrParam0+1), ir.U32(3))
	out := b.Append(ir.OpSetAttribute, ir.U32(ir.AttrRenderTarget0), ir.U32(0), ir.InstValue(in))

	key := runtimeinfo.NewFragment(runtimeinfo.FragmentInfo{Inputs: []runtimeinfo.PsInput{
		{ParamIndex: 0},
		{ParamIndex: 1, IsDefault: true, DefaultValue: 1},
	}})
	if err := ResourceTracking(p, key); err != nil {
		t.Fatal(err)
	}
	if out.Args[2] != ir.F32(1) {
		t.Errorf("default input = %v, want constant 1.0", out.Args[2])
	}
}

func TestResourceTrackingDisabledWorkgroupID(t *testing.T) {
	p, b := sampleProgram(stage.Compute)
	x := b.Append(ir.OpWorkgroupID, ir.U32(0))
	y := b.Append(ir.OpWorkgroupID, ir.U32(1))
	ox := b.Append(ir.OpStoreShared, ir.U32(0), ir.InstValue(x))
	oy := b.Append(ir.OpStoreShared, ir.U32(4), ir.InstValue(y))

	key := runtimeinfo.NewCompute(runtimeinfo.ComputeInfo{TgidEnable: [3]bool{true, false, false}})
	if err := ResourceTracking(p, key); err != nil {
		t.Fatal(err)
	}
	if ox.Args[1] != ir.InstValue(x) {
		t.Error("enabled workgroup id component was replaced")
	}
	if oy.Args[1] != ir.U32(0) {
		t.Error("disabled workgroup id component not replaced by zero")
	}
}

func TestResourceTrackingVertexOutputs(t *testing.T) {
	p, b := sampleProgram(stage.Vertex)
	v := b.Append(ir.OpGetUserData, ir.U32(0))
	pos := b.Append(ir.OpSetAttribute, ir.U32(ir.AttrPosition0), ir.U32(0), ir.InstValue(v))
	psize := b.Append(ir.OpSetAttribute, ir.U32(ir.AttrPosition0+1), ir.U32(0), ir.InstValue(v))
	clip := b.Append(ir.OpSetAttribute, ir.U32(ir.AttrPosition0+2), ir.U32(0), ir.InstValue(v))

	key := runtimeinfo.NewVertex(runtimeinfo.VertexInfo{Outputs: []runtimeinfo.OutputMap{
		{runtimeinfo.VsOutputPointSprite},
	}})
	if err := ResourceTracking(p, key); err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(b.Insts, pos) || !slices.Contains(b.Insts, psize) {
		t.Error("consumed export was dropped")
	}
	if slices.Contains(b.Insts, clip) {
		t.Error("export without an output map entry survived")
	}
}

func sharedMemProgram() (*ir.Program, *ir.Inst) {
	p, b := sampleProgram(stage.Compute)
	v := b.Append(ir.OpGetUserData, ir.U32(0))
	b.Append(ir.OpStoreShared, ir.U32(16), ir.InstValue(v))
	ld := b.Append(ir.OpLoadShared, ir.U32(16))
	tex := b.Append(ir.OpGetUserData, ir.U32(4))
	out := b.AppendImm(ir.OpImageWrite, uint32(amdgpu.ImageColor2D), ir.InstValue(tex), ir.U32(0), ir.InstValue(ld))
	b.Append(ir.OpReturn)
	return p, out
}

func TestLowerSharedMemSingleInvocation(t *testing.T) {
	p, out := sharedMemProgram()
	key := runtimeinfo.NewCompute(runtimeinfo.ComputeInfo{SharedMemorySize: 64, WorkgroupSize: [3]uint32{1, 1, 1}})

	LowerSharedMemToRegisters(p, key)
	CollectShaderInfo(p, key)

	if got := out.Args[2].Inst(); got == nil || got.Op != ir.OpGetUserData {
		t.Error("load not forwarded from store")
	}
	if p.Info.UsesSharedMemory || p.Info.SharedMemorySize != 0 {
		t.Errorf("shared memory still used: size %d", p.Info.SharedMemorySize)
	}
}

func TestLowerSharedMemKeepsStoresForWideGroups(t *testing.T) {
	p, out := sharedMemProgram()
	key := runtimeinfo.NewCompute(runtimeinfo.ComputeInfo{SharedMemorySize: 64, WorkgroupSize: [3]uint32{64, 1, 1}})

	LowerSharedMemToRegisters(p, key)
	CollectShaderInfo(p, key)

	if out.Args[2].Inst().Op != ir.OpGetUserData {
		t.Error("load not forwarded from store")
	}
	if !p.Info.UsesSharedMemory || p.Info.SharedMemorySize != 64 {
		t.Errorf("UsesSharedMemory = %v, SharedMemorySize = %d", p.Info.UsesSharedMemory, p.Info.SharedMemorySize)
	}
}

func TestLowerSharedMemBarrier(t *testing.T) {
	p, b := sampleProgram(stage.Compute)
	b.Append(ir.OpStoreShared, ir.U32(0), ir.U32(1))
	b.Append(ir.OpBarrier)
	ld := b.Append(ir.OpLoadShared, ir.U32(0))

	LowerSharedMemToRegisters(p, runtimeinfo.NewCompute(runtimeinfo.ComputeInfo{WorkgroupSize: [3]uint32{1, 1, 1}}))

	if ld.Op != ir.OpLoadShared {
		t.Error("load forwarded across a barrier")
	}
}

func TestLowerSharedMemIgnoresOtherStages(t *testing.T) {
	p, b := sampleProgram(stage.Fragment)
	b.Append(ir.OpStoreShared, ir.U32(0), ir.U32(1))
	ld := b.Append(ir.OpLoadShared, ir.U32(0))

	LowerSharedMemToRegisters(p, runtimeinfo.NewStage(stage.Fragment))

	if ld.Op != ir.OpLoadShared {
		t.Error("fragment program was lowered")
	}
}

type fakePrograms map[runtimeinfo.ProgramHandle]*ir.Program

func (f fakePrograms) IR(h runtimeinfo.ProgramHandle) (*ir.Program, bool) {
	p, ok := f[h]
	return p, ok
}

func copyProgram() *ir.Program {
	p, b := sampleProgram(stage.Vertex)
	ring := b.Append(ir.OpGetUserData, ir.U32(8))
	v := b.Append(ir.OpBufferLoad, ir.InstValue(ring), ir.U32(0))
	b.Append(ir.OpSetAttribute, ir.U32(ir.AttrPosition0), ir.U32(0), ir.InstValue(v))
	b.Append(ir.OpReturn)
	key := runtimeinfo.NewStage(stage.Vertex)
	if err := Run(p, Context{Key: &key}); err != nil {
		panic(err)
	}
	return p
}

func TestMergeCopyShader(t *testing.T) {
	h := runtimeinfo.ProgramHandle{Index: 0, Gen: 1}
	cp := copyProgram()
	progs := fakePrograms{h: cp}

	p, b := sampleProgram(stage.Geometry)
	b.Append(ir.OpEmitVertex)
	b.Append(ir.OpReturn)

	key := runtimeinfo.NewGeometry(runtimeinfo.GeometryInfo{}).WithCopyShader(h)
	if err := Run(p, Context{Key: &key, Programs: progs}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(p.Blocks) != 2 {
		t.Fatalf("len(Blocks) = %d, want 2", len(p.Blocks))
	}
	if p.Blocks[0].Succs[0] != p.Blocks[1] {
		t.Error("host program not linked to copy program")
	}
	if g, _ := key.Geometry(); !g.CopyMerged {
		t.Error("key not marked as merged")
	}
	if !p.Info.CopyShaderMerged || len(p.Info.Buffers) != 1 {
		t.Errorf("info = %+v", p.Info)
	}
	if cp.Blocks[0] == p.Blocks[1] {
		t.Error("copy program blocks shared instead of cloned")
	}
}

func TestMergeCopyShaderStale(t *testing.T) {
	p, b := sampleProgram(stage.Geometry)
	b.Append(ir.OpReturn)
	key := runtimeinfo.NewGeometry(runtimeinfo.GeometryInfo{}).WithCopyShader(runtimeinfo.ProgramHandle{Gen: 3})

	err := Run(p, Context{Key: &key, Programs: fakePrograms{}})
	if !errors.Is(err, ErrStaleCopyShader) {
		t.Errorf("error = %v, want ErrStaleCopyShader", err)
	}
}

func TestMergeCopyShaderOtherStages(t *testing.T) {
	p, _ := sampleProgram(stage.Vertex)
	key := runtimeinfo.NewStage(stage.Vertex)
	if err := MergeCopyShader(p, &key, nil); err != nil {
		t.Errorf("MergeCopyShader() error = %v", err)
	}
}

func TestRunDumpsEveryPhase(t *testing.T) {
	p, b := sampleProgram(stage.Fragment)
	b.Append(ir.OpReturn)

	var phases []string
	err := Run(p, Context{Dump: func(phase string, _ *ir.Program) { phases = append(phases, phase) }})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(phases, Phases()) {
		t.Errorf("phases = %v, want %v", phases, Phases())
	}
	if len(phases) != 9 || phases[0] != "pre_ssa" {
		t.Errorf("unexpected phase list %v", phases)
	}
}

func TestRunRecordsEntryPoint(t *testing.T) {
	tests := []struct {
		hw       stage.HardwareStage
		logical  stage.LogicalStage
		want     naga.ShaderStage
		hasEntry bool
		header   string
	}{
		{stage.Vertex, stage.VS, naga.StageVertex, true, "logical VS entry vertex"},
		{stage.Vertex, stage.GSCopy, naga.StageVertex, true, "logical GSCopy entry vertex"},
		{stage.Fragment, stage.FS, naga.StageFragment, true, "logical FS entry fragment"},
		{stage.Compute, stage.CS, naga.StageCompute, true, "logical CS entry compute"},
		{stage.Geometry, stage.GS, 0, false, "logical GS entry none"},
		{stage.Export, stage.VS, naga.StageVertex, true, "logical VS entry vertex"},
	}
	for _, tt := range tests {
		t.Run(tt.logical.String(), func(t *testing.T) {
			key := runtimeinfo.NewStage(tt.hw)
			h := key.Header()
			h.Logical = tt.logical
			h.NumUserData = 12
			key = key.WithHeader(h)

			p := ir.NewProgram(tt.hw, 0)
			var pre string
			dump := func(phase string, p *ir.Program) {
				if phase == "pre_ssa" {
					pre = p.String()
				}
			}
			if err := Run(p, Context{Key: &key, Dump: dump}); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			info := p.Info
			if info.Logical != tt.logical || info.HasEntryPoint != tt.hasEntry || info.EntryPoint != tt.want {
				t.Errorf("Info = %v/%v/%v, want %v/%v/%v", info.Logical, info.HasEntryPoint, info.EntryPoint, tt.logical, tt.hasEntry, tt.want)
			}
			if info.NumUserData != 12 {
				t.Errorf("NumUserData = %d, want 12", info.NumUserData)
			}
			if first, _, _ := strings.Cut(pre, "\n"); !strings.HasSuffix(first, tt.header) {
				t.Errorf("dump header = %q, want suffix %q", first, tt.header)
			}
		})
	}
}
