// Package shadercache caches compiled shader programs by (code hash,
// specialization key).
//
// Lookups are O(1): the key's canonical fingerprint and the code hash form
// the map key. Concurrent requests for the same entry share one compile;
// requests for different entries compile independently. Failed compiles
// are never cached. Bounded caches evict least recently used programs, and
// handles to evicted programs go stale.
package shadercache

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/gogpu/shaderjit/internal/cache"
	"github.com/gogpu/shaderjit/ir"
	"github.com/gogpu/shaderjit/ir/passes"
	"github.com/gogpu/shaderjit/runtimeinfo"
)

// ErrCompileFailed wraps every error produced while compiling a program.
var ErrCompileFailed = errors.New("shadercache: compile failed")

// Source produces a fresh decoded program. Decode is called once per compile
// and the returned program is owned by the cache afterwards.
type Source interface {
	Decode() (*ir.Program, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (*ir.Program, error)

// Decode implements Source.
func (f SourceFunc) Decode() (*ir.Program, error) { return f() }

// Compiler optimizes a decoded program for a key. It may update the key.
type Compiler interface {
	Compile(p *ir.Program, key *runtimeinfo.Key) error
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(p *ir.Program, key *runtimeinfo.Key) error

// Compile implements Compiler.
func (f CompilerFunc) Compile(p *ir.Program, key *runtimeinfo.Key) error { return f(p, key) }

// Program is a cached compilation result. It is shared by every caller that
// hits the same entry and must be treated as read-only.
type Program struct {
	Handle runtimeinfo.ProgramHandle
	Hash   uint64

	// Key is the specialization key after compilation.
	Key runtimeinfo.Key

	IR *ir.Program
}

// Info returns the collected program metadata.
func (p *Program) Info() *ir.Info {
	return &p.IR.Info
}

type entryKey struct {
	hash uint64
	fp   string
}

func (k entryKey) String() string {
	return strconv.FormatUint(k.hash, 16) + ":" + k.fp
}

// Options configures a Cache.
type Options struct {
	// Capacity bounds the number of cached programs. 0 means unbounded.
	Capacity int

	// Compiler replaces the optimization pipeline. Nil uses passes.Run.
	Compiler Compiler

	// Dump receives the program after each pipeline phase.
	Dump passes.DumpFunc
}

// Cache is a concurrent compiled program cache.
type Cache struct {
	mu      sync.Mutex
	entries *cache.LRU[entryKey, *Program]
	arena   arena
	perms   map[uint64]uint32

	group    singleflight.Group
	compiler Compiler
	dump     passes.DumpFunc

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	failures  atomic.Uint64
	compiles  atomic.Uint64
}

// New creates a cache.
func New(opts Options) *Cache {
	c := &Cache{
		perms:    make(map[uint64]uint32),
		compiler: opts.Compiler,
		dump:     opts.Dump,
	}
	c.entries = cache.NewLRU(opts.Capacity, c.onEvict)
	return c
}

// onEvict runs under c.mu.
func (c *Cache) onEvict(k entryKey, p *Program) {
	c.arena.remove(p.Handle)
	c.evictions.Add(1)
	logger().Debug("shadercache: evicted program",
		slog.String("hash", fmt.Sprintf("%#016x", k.hash)),
		slog.Uint64("perm", uint64(p.IR.PermIndex)))
}

// GetOrCompile returns the program cached for (hash, key), compiling it from
// src on a miss. Concurrent callers with the same (hash, key) wait for a
// single compile and receive the same *Program. Errors match ErrCompileFailed.
func (c *Cache) GetOrCompile(hash uint64, key runtimeinfo.Key, src Source) (*Program, error) {
	k := entryKey{hash: hash, fp: key.Fingerprint()}
	if p, ok := c.lookup(k); ok {
		c.hits.Add(1)
		return p, nil
	}

	v, err, shared := c.group.Do(k.String(), func() (any, error) {
		// Another flight may have published while we were acquiring the group.
		if p, ok := c.lookup(k); ok {
			c.hits.Add(1)
			return p, nil
		}
		c.misses.Add(1)
		return c.compile(k, key, src)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger().Debug("shadercache: joined in-flight compile", slog.String("key", key.String()))
	}
	return v.(*Program), nil
}

func (c *Cache) lookup(k entryKey) (*Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(k)
}

func (c *Cache) compile(k entryKey, key runtimeinfo.Key, src Source) (*Program, error) {
	c.compiles.Add(1)
	prog, err := src.Decode()
	if err == nil && prog == nil {
		err = errors.New("decoder returned no program")
	}
	if err == nil {
		prog.Hash = k.hash
		prog.PermIndex = c.nextPerm(k.hash)
		err = c.runCompiler(prog, &key)
	}
	if err != nil {
		c.failures.Add(1)
		logger().Warn("shadercache: compile failed",
			slog.String("hash", fmt.Sprintf("%#016x", k.hash)),
			slog.String("stage", key.Stage().String()),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: %s %#016x: %w", ErrCompileFailed, key.Stage(), k.hash, err)
	}

	p := &Program{Hash: k.hash, Key: key, IR: prog}
	c.mu.Lock()
	p.Handle = c.arena.insert(p)
	c.entries.Add(k, p)
	c.mu.Unlock()

	logger().Debug("shadercache: compiled program",
		slog.String("hash", fmt.Sprintf("%#016x", k.hash)),
		slog.String("stage", key.Stage().String()),
		slog.Int("perm", int(prog.PermIndex)),
		slog.Int("insts", prog.Info.NumInsts))
	return p, nil
}

func (c *Cache) runCompiler(prog *ir.Program, key *runtimeinfo.Key) error {
	if c.compiler != nil {
		return c.compiler.Compile(prog, key)
	}
	return passes.Run(prog, passes.Context{Key: key, Programs: c, Dump: c.dump})
}

// nextPerm numbers specializations of one code hash in compile order.
func (c *Cache) nextPerm(hash uint64) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.perms[hash]
	c.perms[hash] = n + 1
	return n
}

// Program resolves an arena handle.
func (c *Cache) Program(h runtimeinfo.ProgramHandle) (*Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.arena.get(h)
}

// IR resolves an arena handle to its program IR. It implements passes.Programs.
func (c *Cache) IR(h runtimeinfo.ProgramHandle) (*ir.Program, bool) {
	p, ok := c.Program(h)
	if !ok {
		return nil, false
	}
	return p.IR, true
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Clear drops every cached program. Outstanding handles go stale.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Clear()
	c.arena.clear()
}

// Stats contains cache statistics.
type Stats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Failures  uint64

	// Compiles counts pipeline invocations, failed ones included.
	Compiles uint64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns a snapshot of the cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	n, capacity := c.entries.Len(), c.entries.Capacity()
	c.mu.Unlock()
	return Stats{
		Len:       n,
		Capacity:  capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Failures:  c.failures.Load(),
		Compiles:  c.compiles.Load(),
	}
}
