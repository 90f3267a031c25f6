package shadercache

import (
	"github.com/gogpu/shaderjit/internal/parallel"
	"github.com/gogpu/shaderjit/runtimeinfo"
)

// Request names one program to compile ahead of use.
type Request struct {
	Hash   uint64
	Key    runtimeinfo.Key
	Source Source
}

// Warm compiles reqs on pool and returns their programs in request order.
// Failed requests leave a nil entry; their errors are joined.
func (c *Cache) Warm(pool *parallel.WorkerPool, reqs []Request) ([]*Program, error) {
	out := make([]*Program, len(reqs))
	work := make([]func() error, len(reqs))
	for i, r := range reqs {
		work[i] = func() error {
			p, err := c.GetOrCompile(r.Hash, r.Key, r.Source)
			out[i] = p
			return err
		}
	}
	err := pool.Run(work)
	return out, err
}

// Prefetch queues reqs on pool and returns without waiting. Results land in
// the cache; failures are logged by GetOrCompile. Prefetching on a closed
// pool does nothing.
func (c *Cache) Prefetch(pool *parallel.WorkerPool, reqs []Request) {
	for _, r := range reqs {
		pool.Submit(func() {
			_, _ = c.GetOrCompile(r.Hash, r.Key, r.Source)
		})
	}
}
