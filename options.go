package shaderjit

import (
	"log/slog"
	"runtime"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/shaderjit/binder"
	"github.com/gogpu/shaderjit/runtimeinfo"
)

// Option configures a Recompiler during creation.
//
// Example:
//
//	r, err := shaderjit.New(
//	    shaderjit.WithCacheCapacity(4096),
//	    shaderjit.WithDeviceProvider(provider),
//	)
type Option func(*options)

// options holds optional configuration for Recompiler creation.
type options struct {
	capacity int
	workers  int
	profile  runtimeinfo.Profile
	dumpDir  string
	logger   *slog.Logger
	textures binder.TextureCache
	provider gpucontext.DeviceProvider
}

func defaultOptions() options {
	return options{
		capacity: 0, // unbounded
		workers:  runtime.GOMAXPROCS(0),
	}
}

// WithCacheCapacity bounds the number of cached programs. Least recently
// used programs are evicted past the bound. 0 means unbounded.
func WithCacheCapacity(n int) Option {
	return func(o *options) {
		o.capacity = max(n, 0)
	}
}

// WithWorkers sets the number of goroutines used for pipeline and warm-up
// compiles. Values below 1 use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = runtime.GOMAXPROCS(0)
		}
		o.workers = n
	}
}

// WithProfile describes the capabilities of the host backend.
func WithProfile(p runtimeinfo.Profile) Option {
	return func(o *options) {
		o.profile = p
	}
}

// WithDumpDir enables per-phase IR dumps into dir.
func WithDumpDir(dir string) Option {
	return func(o *options) {
		o.dumpDir = dir
	}
}

// WithLogger sets the package logger when the Recompiler is created.
// See SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTextureCache sets the texture cache used by BindTextures.
// It takes precedence over WithDeviceProvider.
func WithTextureCache(c binder.TextureCache) Option {
	return func(o *options) {
		o.textures = c
	}
}

// WithDeviceProvider backs BindTextures with a texture cache allocating on
// the provider's HAL device.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}
