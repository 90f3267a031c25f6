package shaderjit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	naga "github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"
	"github.com/zeebo/xxh3"

	"github.com/gogpu/shaderjit/amdgpu"
	"github.com/gogpu/shaderjit/ir"
	"github.com/gogpu/shaderjit/ir/passes"
	"github.com/gogpu/shaderjit/runtimeinfo"
	"github.com/gogpu/shaderjit/shadercache"
	"github.com/gogpu/shaderjit/stage"
	"github.com/gogpu/shaderjit/texcache"
)

// vertexSource exports one user data value as the position.
func vertexSource() shadercache.Source {
	return shadercache.SourceFunc(func() (*ir.Program, error) {
		p := ir.NewProgram(stage.Vertex, 0)
		b := p.NewBlock()
		v := b.Append(ir.OpGetUserData, ir.U32(0))
		b.Append(ir.OpSetAttribute, ir.U32(ir.AttrPosition0), ir.U32(0), ir.InstValue(v))
		b.Append(ir.OpReturn)
		return p, nil
	})
}

// fragmentSource samples the image whose T# starts at user data dword 0.
func fragmentSource() shadercache.Source {
	return shadercache.SourceFunc(func() (*ir.Program, error) {
		p := ir.NewProgram(stage.Fragment, 0)
		b := p.NewBlock()
		tex := b.Append(ir.OpGetUserData, ir.U32(0))
		uv := b.Append(ir.OpGetAttribute, ir.U32(ir.AttrParam0), ir.U32(0))
		c := b.AppendImm(ir.OpImageSample, uint32(amdgpu.ImageColor2D), ir.InstValue(tex), ir.InstValue(uv))
		b.Append(ir.OpSetAttribute, ir.U32(ir.AttrRenderTarget0), ir.U32(0), ir.InstValue(c))
		b.Append(ir.OpReturn)
		return p, nil
	})
}

func geometrySource() shadercache.Source {
	return shadercache.SourceFunc(func() (*ir.Program, error) {
		p := ir.NewProgram(stage.Geometry, 0)
		b := p.NewBlock()
		b.Append(ir.OpEmitVertex)
		b.Append(ir.OpReturn)
		return p, nil
	})
}

type nullAllocator struct{}

func (nullAllocator) AllocateImage(texcache.ImageInfo) (hal.Texture, error) { return nil, nil }
func (nullAllocator) AllocateView(hal.Texture, texcache.ImageInfo, texcache.ViewInfo) (hal.TextureView, error) {
	return nil, nil
}
func (nullAllocator) ReleaseImage(hal.Texture)    {}
func (nullAllocator) ReleaseView(hal.TextureView) {}

func newRecompiler(t *testing.T, opts ...Option) *Recompiler {
	t.Helper()
	r, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func TestHashCode(t *testing.T) {
	if got, want := HashCode([]uint32{0x04030201}), xxh3.Hash([]byte{1, 2, 3, 4}); got != want {
		t.Errorf("HashCode() = %#x, want %#x", got, want)
	}
	a := HashCode([]uint32{1, 2, 3})
	if a != HashCode([]uint32{1, 2, 3}) {
		t.Error("HashCode is not deterministic")
	}
	if a == HashCode([]uint32{1, 2, 4}) {
		t.Error("different code hashed equal")
	}
}

func TestCompileRetargetsStage(t *testing.T) {
	r := newRecompiler(t)
	active := stage.NewActiveSet(stage.VS, stage.GS, stage.GSCopy, stage.FS)

	p, err := r.Compile(active, StageSource{Stage: stage.VS, Hash: 1, Source: vertexSource()}, &amdgpu.Registers{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if p.IR.Stage != stage.Export || p.Key.Stage() != stage.Export {
		t.Errorf("stage = %v / key %v, want %v", p.IR.Stage, p.Key.Stage(), stage.Export)
	}
}

func TestCompileInvalidCombination(t *testing.T) {
	r := newRecompiler(t)
	active := stage.NewActiveSet(stage.VS, stage.GSCopy, stage.FS)

	_, err := r.Compile(active, StageSource{Stage: stage.GSCopy, Hash: 1, Source: vertexSource()}, &amdgpu.Registers{})
	if !errors.Is(err, stage.ErrInvalidStageCombination) {
		t.Errorf("error = %v, want ErrInvalidStageCombination", err)
	}
	if r.Stats().Compiles != 0 {
		t.Error("invalid combination reached the compiler")
	}
}

func TestCompilePipeline(t *testing.T) {
	r := newRecompiler(t, WithWorkers(2))
	active := stage.NewActiveSet(stage.VS, stage.FS)
	srcs := []StageSource{
		{Stage: stage.VS, Hash: 0x10, Source: vertexSource()},
		{Stage: stage.FS, Hash: 0x20, Source: fragmentSource()},
	}

	progs, err := r.CompilePipeline(active, srcs, &amdgpu.Registers{})
	if err != nil {
		t.Fatalf("CompilePipeline() error = %v", err)
	}
	if len(progs) != 2 || progs[stage.VS].IR.Stage != stage.Vertex || progs[stage.FS].IR.Stage != stage.Fragment {
		t.Fatalf("progs = %v", progs)
	}

	again, err := r.CompilePipeline(active, srcs, &amdgpu.Registers{})
	if err != nil {
		t.Fatal(err)
	}
	for st, p := range progs {
		if again[st] != p {
			t.Errorf("%v recompiled on identical state", st)
		}
	}
	if got := r.Stats().Compiles; got != 2 {
		t.Errorf("Compiles = %d, want 2", got)
	}
}

func TestCompilePipelineGeometry(t *testing.T) {
	r := newRecompiler(t)
	active := stage.NewActiveSet(stage.VS, stage.GS, stage.GSCopy, stage.FS)
	regs := &amdgpu.Registers{GsMode: amdgpu.GsModeScenarioG}

	progs, err := r.CompilePipeline(active, []StageSource{
		{Stage: stage.VS, Hash: 1, Source: vertexSource()},
		{Stage: stage.GS, Hash: 2, Source: geometrySource()},
		{Stage: stage.GSCopy, Hash: 3, Source: vertexSource()},
		{Stage: stage.FS, Hash: 4, Source: fragmentSource()},
	}, regs)
	if err != nil {
		t.Fatalf("CompilePipeline() error = %v", err)
	}

	gs := progs[stage.GS]
	if !gs.Info().CopyShaderMerged {
		t.Error("copy shader not merged into the geometry program")
	}
	g, ok := gs.Key.Geometry()
	if !ok || !g.CopyMerged || g.CopyShader != progs[stage.GSCopy].Handle {
		t.Errorf("geometry key = %+v", g)
	}

	tests := []struct {
		logical  stage.LogicalStage
		entry    naga.ShaderStage
		hasEntry bool
	}{
		{stage.VS, naga.StageVertex, true},
		{stage.GS, 0, false},
		{stage.GSCopy, naga.StageVertex, true},
		{stage.FS, naga.StageFragment, true},
	}
	for _, tt := range tests {
		info := progs[tt.logical].Info()
		if info.Logical != tt.logical || info.HasEntryPoint != tt.hasEntry || info.EntryPoint != tt.entry {
			t.Errorf("%s: Info = %v/%v/%v, want %v/%v/%v", tt.logical, info.Logical, info.HasEntryPoint, info.EntryPoint, tt.logical, tt.hasEntry, tt.entry)
		}
	}
}

func TestCompilePipelineMissingCopyShader(t *testing.T) {
	r := newRecompiler(t)
	active := stage.NewActiveSet(stage.VS, stage.GS, stage.GSCopy)

	_, err := r.CompilePipeline(active, []StageSource{
		{Stage: stage.VS, Hash: 1, Source: vertexSource()},
		{Stage: stage.GS, Hash: 2, Source: geometrySource()},
	}, &amdgpu.Registers{})
	if !errors.Is(err, ErrMissingCopyShader) {
		t.Errorf("error = %v, want ErrMissingCopyShader", err)
	}
}

func TestCompilePipelineFailure(t *testing.T) {
	r := newRecompiler(t)
	bad := errors.New("bad code")
	_, err := r.CompilePipeline(stage.NewActiveSet(stage.VS, stage.FS), []StageSource{
		{Stage: stage.VS, Hash: 1, Source: vertexSource()},
		{Stage: stage.FS, Hash: 2, Source: shadercache.SourceFunc(func() (*ir.Program, error) { return nil, bad })},
	}, &amdgpu.Registers{})
	if !errors.Is(err, bad) || !errors.Is(err, shadercache.ErrCompileFailed) {
		t.Errorf("error = %v, want compile failure", err)
	}
}

func TestBindTextures(t *testing.T) {
	textures := texcache.New(nullAllocator{})
	r := newRecompiler(t, WithTextureCache(textures))

	regs := &amdgpu.Registers{}
	sharp := amdgpu.EncodeTSharp(0x100000, amdgpu.Format8_8_8_8, amdgpu.NumberUnorm, amdgpu.ImageColor2D, 256, 256, 1)
	regs.Programs[stage.Fragment].UserData = sharp.Raw[:]

	fs, err := r.Compile(stage.NewActiveSet(stage.VS, stage.FS), StageSource{Stage: stage.FS, Hash: 9, Source: fragmentSource()}, regs)
	if err != nil {
		t.Fatal(err)
	}
	if len(fs.Info().Images) != 1 {
		t.Fatalf("Images = %+v, want one sampled image", fs.Info().Images)
	}

	ctx := amdgpu.WithSequence(context.Background(), amdgpu.SequenceNum{Queue: amdgpu.QueueDCB})
	writes, err := r.BindTextures(ctx, fs, regs, 2)
	if err != nil {
		t.Fatalf("BindTextures() error = %v", err)
	}
	if len(writes) != 1 || writes[0].IsNull() || writes[0].Binding != 2 {
		t.Errorf("writes = %+v", writes)
	}
	if textures.Len() != 1 {
		t.Errorf("texture cache holds %d images, want 1", textures.Len())
	}
}

func TestBindTexturesNoCache(t *testing.T) {
	r := newRecompiler(t)
	p, err := r.Compile(stage.NewActiveSet(stage.FS), StageSource{Stage: stage.FS, Hash: 1, Source: fragmentSource()}, &amdgpu.Registers{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.BindTextures(context.Background(), p, &amdgpu.Registers{}, 0); !errors.Is(err, ErrNoTextureCache) {
		t.Errorf("error = %v, want ErrNoTextureCache", err)
	}
}

type fakeDevice struct{}

func (fakeDevice) CreateTexture(*hal.TextureDescriptor) (hal.Texture, error) { return nil, nil }
func (fakeDevice) DestroyTexture(hal.Texture)                                {}
func (fakeDevice) CreateTextureView(hal.Texture, *hal.TextureViewDescriptor) (hal.TextureView, error) {
	return nil, nil
}
func (fakeDevice) DestroyTextureView(hal.TextureView) {}

type fakeProvider struct{}

func (fakeProvider) Device() gpucontext.Device             { return nil }
func (fakeProvider) Queue() gpucontext.Queue               { return nil }
func (fakeProvider) Adapter() gpucontext.Adapter           { return nil }
func (fakeProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }
func (fakeProvider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{} }

type halProvider struct{ fakeProvider }

func (halProvider) HalDevice() any { return fakeDevice{} }

func TestNewWithDeviceProvider(t *testing.T) {
	r := newRecompiler(t, WithDeviceProvider(halProvider{}))
	if r.Textures() == nil {
		t.Error("no texture cache created from the provider")
	}

	if _, err := New(WithDeviceProvider(fakeProvider{})); !errors.Is(err, texcache.ErrNoHALDevice) {
		t.Errorf("error = %v, want ErrNoHALDevice", err)
	}
}

func TestDumps(t *testing.T) {
	dir := t.TempDir()
	r := newRecompiler(t, WithDumpDir(dir))

	p, err := r.Compile(stage.NewActiveSet(stage.VS), StageSource{Stage: stage.VS, Hash: 0xbeef, Source: vertexSource()}, &amdgpu.Registers{})
	if err != nil {
		t.Fatal(err)
	}
	for _, phase := range passes.Phases() {
		name := DumpFileName(p.IR, phase)
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing dump %s: %v", name, err)
		}
	}
	if got, want := DumpFileName(p.IR, "pre_ssa"), "vs_0x000000000000beef_0.pre_ssa.ir.txt"; got != want {
		t.Errorf("DumpFileName() = %q, want %q", got, want)
	}
}

func TestWarm(t *testing.T) {
	r := newRecompiler(t, WithWorkers(2))
	progs, err := r.Warm([]shadercache.Request{
		{Hash: 1, Key: runtimeinfo.NewStage(stage.Vertex), Source: vertexSource()},
		{Hash: 2, Key: runtimeinfo.NewStage(stage.Fragment), Source: fragmentSource()},
	})
	if err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	if r.Stats().Len != 2 || progs[0] == nil || progs[1] == nil {
		t.Errorf("Warm() = %v, Len = %d", progs, r.Stats().Len)
	}
}

func TestPrefetch(t *testing.T) {
	r := newRecompiler(t, WithWorkers(3))
	if got := r.pool.Workers(); got != 3 {
		t.Errorf("pool workers = %d, want 3", got)
	}
	r.Prefetch([]shadercache.Request{
		{Hash: 1, Key: runtimeinfo.NewStage(stage.Vertex), Source: vertexSource()},
		{Hash: 2, Key: runtimeinfo.NewStage(stage.Fragment), Source: fragmentSource()},
	})
	r.pool.Close()

	if got := r.Stats().Len; got != 2 {
		t.Errorf("Len = %d after Prefetch, want 2", got)
	}
}

func TestCacheCapacityOption(t *testing.T) {
	r := newRecompiler(t, WithCacheCapacity(1))
	active := stage.NewActiveSet(stage.VS)
	for h := range uint64(3) {
		if _, err := r.Compile(active, StageSource{Stage: stage.VS, Hash: h, Source: vertexSource()}, &amdgpu.Registers{}); err != nil {
			t.Fatal(err)
		}
	}
	if st := r.Stats(); st.Len != 1 || st.Evictions != 2 {
		t.Errorf("Stats() = %+v", st)
	}
}
