package shaderjit

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/shaderjit/binder"
	"github.com/gogpu/shaderjit/shadercache"
	"github.com/gogpu/shaderjit/texcache"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for shaderjit and its sub-packages.
// By default nothing is logged. Pass nil to restore silent logging.
//
// Log levels used:
//   - [slog.LevelDebug]: compiles, cache hits and evictions, image rebinds
//   - [slog.LevelInfo]: recompiler lifecycle
//   - [slog.LevelWarn]: failed compiles, metadata reads, dump write errors
//
// Example:
//
//	shaderjit.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	shadercache.SetLogger(l)
	texcache.SetLogger(l)
	binder.SetLogger(l)
}

// Logger returns the current logger. It is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
