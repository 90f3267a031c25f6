package shaderjit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/shaderjit/amdgpu"
	"github.com/gogpu/shaderjit/binder"
	"github.com/gogpu/shaderjit/internal/parallel"
	"github.com/gogpu/shaderjit/ir"
	"github.com/gogpu/shaderjit/runtimeinfo"
	"github.com/gogpu/shaderjit/shadercache"
	"github.com/gogpu/shaderjit/stage"
	"github.com/gogpu/shaderjit/texcache"
)

var (
	// ErrNoTextureCache is returned by BindTextures when the recompiler was
	// created without a texture cache or device provider.
	ErrNoTextureCache = errors.New("shaderjit: no texture cache configured")

	// ErrMissingCopyShader is returned by CompilePipeline when a geometry
	// shader is given without its copy shader.
	ErrMissingCopyShader = errors.New("shaderjit: geometry shader without copy shader")
)

// StageSource is one guest shader of a pipeline.
type StageSource struct {
	Stage stage.LogicalStage

	// Hash identifies the guest code, see HashCode.
	Hash uint64

	Source shadercache.Source
}

// Recompiler specializes guest shaders against live register state and
// binds their images.
//
// Compile, CompilePipeline and Warm are safe for concurrent use. BindTextures
// is meant to run on the single submission goroutine.
type Recompiler struct {
	cache    *shadercache.Cache
	pool     *parallel.WorkerPool
	builder  runtimeinfo.Builder
	dumpDir  string
	textures binder.TextureCache

	// owned is the texture cache created from a device provider.
	owned *texcache.Cache
}

// New creates a Recompiler.
func New(opts ...Option) (*Recompiler, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		SetLogger(o.logger)
	}

	r := &Recompiler{
		builder:  runtimeinfo.Builder{Profile: o.profile},
		dumpDir:  o.dumpDir,
		textures: o.textures,
	}
	if r.textures == nil && o.provider != nil {
		alloc, err := texcache.HALAllocatorFromProvider(o.provider)
		if err != nil {
			return nil, fmt.Errorf("shaderjit: texture cache: %w", err)
		}
		r.owned = texcache.New(alloc)
		r.textures = r.owned
	}

	var dump func(string, *ir.Program)
	if r.dumpDir != "" {
		if err := os.MkdirAll(r.dumpDir, 0o755); err != nil {
			return nil, fmt.Errorf("shaderjit: dump dir: %w", err)
		}
		dump = r.dump
	}
	r.cache = shadercache.New(shadercache.Options{Capacity: o.capacity, Dump: dump})
	r.pool = parallel.NewWorkerPool(o.workers)

	Logger().Info("shaderjit: recompiler created",
		slog.Int("capacity", o.capacity),
		slog.Int("workers", r.pool.Workers()),
		slog.Bool("depthClipControl", o.profile.SupportsDepthClipControl),
		slog.Bool("textures", r.textures != nil))
	return r, nil
}

// Close stops the worker pool and releases images owned by the recompiler.
func (r *Recompiler) Close() {
	r.pool.Close()
	if r.owned != nil {
		r.owned.Close()
	}
}

// Cache returns the program cache.
func (r *Recompiler) Cache() *shadercache.Cache { return r.cache }

// Textures returns the texture cache used by BindTextures, or nil.
func (r *Recompiler) Textures() binder.TextureCache { return r.textures }

// Stats returns program cache statistics.
func (r *Recompiler) Stats() shadercache.Stats { return r.cache.Stats() }

// Compile returns the program for one stage of the active pipeline,
// specialized for regs.
func (r *Recompiler) Compile(active stage.ActiveSet, src StageSource, regs *amdgpu.Registers) (*shadercache.Program, error) {
	return r.compile(active, src, regs, runtimeinfo.ProgramHandle{})
}

func (r *Recompiler) compile(active stage.ActiveSet, src StageSource, regs *amdgpu.Registers, copyShader runtimeinfo.ProgramHandle) (*shadercache.Program, error) {
	hw, err := stage.ResolveHardwareStage(active, src.Stage)
	if err != nil {
		return nil, err
	}
	key := r.builder.BuildKey(hw, regs)
	h := key.Header()
	h.Logical = src.Stage
	key = key.WithHeader(h)
	if hw == stage.Geometry && copyShader.Valid() {
		key = key.WithCopyShader(copyShader)
	}
	return r.cache.GetOrCompile(src.Hash, key, retarget{src: src.Source, stage: hw})
}

// CompilePipeline compiles every stage of a pipeline. The geometry copy
// shader is compiled first and merged into the geometry shader; the other
// stages compile concurrently. Any failure fails the whole pipeline.
func (r *Recompiler) CompilePipeline(active stage.ActiveSet, srcs []StageSource, regs *amdgpu.Registers) (map[stage.LogicalStage]*shadercache.Program, error) {
	progs := make(map[stage.LogicalStage]*shadercache.Program, len(srcs))

	var copyShader runtimeinfo.ProgramHandle
	hasGS := false
	rest := make([]StageSource, 0, len(srcs))
	for _, src := range srcs {
		switch src.Stage {
		case stage.GSCopy:
			p, err := r.compile(active, src, regs, runtimeinfo.ProgramHandle{})
			if err != nil {
				return nil, err
			}
			progs[stage.GSCopy] = p
			copyShader = p.Handle
			continue
		case stage.GS:
			hasGS = true
		}
		rest = append(rest, src)
	}
	if hasGS && !copyShader.Valid() {
		return nil, ErrMissingCopyShader
	}

	results := make([]*shadercache.Program, len(rest))
	var g errgroup.Group
	g.SetLimit(r.pool.Workers())
	for i, src := range rest {
		g.Go(func() error {
			p, err := r.compile(active, src, regs, copyShader)
			if err != nil {
				return fmt.Errorf("%s: %w", src.Stage, err)
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, src := range rest {
		progs[src.Stage] = results[i]
	}
	return progs, nil
}

// Warm compiles reqs on the worker pool ahead of use.
func (r *Recompiler) Warm(reqs []shadercache.Request) ([]*shadercache.Program, error) {
	return r.cache.Warm(r.pool, reqs)
}

// Prefetch queues reqs on the worker pool and returns immediately. Later
// Compile calls for the same programs hit the cache or join the compile in
// flight.
func (r *Recompiler) Prefetch(reqs []shadercache.Request) {
	r.cache.Prefetch(r.pool, reqs)
}

// BindTextures builds the image descriptor writes for prog against the
// texture cache. Attach the submission sequence number to ctx with
// amdgpu.WithSequence to have it reported in warnings.
func (r *Recompiler) BindTextures(ctx context.Context, prog *shadercache.Program, regs *amdgpu.Registers, firstBinding uint32) ([]binder.DescriptorWrite, error) {
	if r.textures == nil {
		return nil, ErrNoTextureCache
	}
	return binder.BuildDescriptorWrites(ctx, prog.Info(), regs, r.textures, firstBinding)
}

// DumpFileName names the dump of a program after a pipeline phase.
func DumpFileName(p *ir.Program, phase string) string {
	return fmt.Sprintf("%s_0x%016x_%d.%s.ir.txt", p.Stage, p.Hash, p.PermIndex, phase)
}

func (r *Recompiler) dump(phase string, p *ir.Program) {
	path := filepath.Join(r.dumpDir, DumpFileName(p, phase))
	f, err := os.Create(path)
	if err == nil {
		_, err = p.WriteTo(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		Logger().Warn("shaderjit: IR dump failed", slog.String("path", path), slog.Any("error", err))
	}
}

// retarget decodes a program for the hardware stage it was resolved to.
type retarget struct {
	src   shadercache.Source
	stage stage.HardwareStage
}

func (t retarget) Decode() (*ir.Program, error) {
	p, err := t.src.Decode()
	if err == nil && p != nil {
		p.Stage = t.stage
	}
	return p, err
}
