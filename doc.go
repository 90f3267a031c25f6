// Package shaderjit is the shader specialization core of a console GPU
// emulator.
//
// # Overview
//
// Guest shaders are compiled once per combination of code and the slice of
// hardware register state that changes how they translate. The pieces are:
//
//   - stage: logical shader roles and the hardware stage each one runs on
//   - runtimeinfo: specialization keys built from register state
//   - ir and ir/passes: the shader IR and its optimization pipeline
//   - shadercache: the concurrent program cache with single-flight compiles
//   - texcache and binder: host images and descriptor writes for a draw
//
// The Recompiler ties them together.
//
// # Quick Start
//
//	r, err := shaderjit.New(shaderjit.WithDeviceProvider(provider))
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	active := stage.NewActiveSet(stage.VS, stage.FS)
//	progs, err := r.CompilePipeline(active, []shaderjit.StageSource{
//	    {Stage: stage.VS, Hash: shaderjit.HashCode(vsCode), Source: vsDecoder},
//	    {Stage: stage.FS, Hash: shaderjit.HashCode(fsCode), Source: fsDecoder},
//	}, regs)
//	if err != nil {
//	    return err
//	}
//
//	ctx = amdgpu.WithSequence(ctx, seq)
//	writes, err := r.BindTextures(ctx, progs[stage.FS], regs, 0)
//
// # Configuration
//
// Options can be given directly or loaded from a TOML file with the config
// package.
//
// # Logging
//
// Nothing is logged by default. See SetLogger.
package shaderjit
