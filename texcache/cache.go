package texcache

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gogpu/wgpu/hal"
)

// ErrAllocationFailed is returned when backing storage cannot be created.
var ErrAllocationFailed = errors.New("texcache: allocation failed")

// Allocator creates and releases host textures.
type Allocator interface {
	AllocateImage(info ImageInfo) (hal.Texture, error)
	AllocateView(tex hal.Texture, image ImageInfo, view ViewInfo) (hal.TextureView, error)
	ReleaseImage(tex hal.Texture)
	ReleaseView(view hal.TextureView)
}

type addrRange struct {
	start, end uint64
}

// Cache maps guest addresses to host images. It is safe for concurrent use.
type Cache struct {
	mu     sync.Mutex
	alloc  Allocator
	images map[uint64]*Image
	nextID ImageID

	// meta is sorted by start and non-overlapping.
	meta []addrRange
}

// New creates a cache backed by alloc.
func New(alloc Allocator) *Cache {
	return &Cache{
		alloc:  alloc,
		images: make(map[uint64]*Image),
		nextID: 1,
	}
}

// FindOrCreateImage returns the image at info.Address, creating it or
// re-materializing it to match info.
func (c *Cache) FindOrCreateImage(info ImageInfo) (*Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, ok := c.images[info.Address]
	if ok && img.info == info {
		return img, nil
	}

	tex, err := c.alloc.AllocateImage(info)
	if err != nil {
		return nil, fmt.Errorf("%w: image %#x %dx%d: %w", ErrAllocationFailed, info.Address, info.Width, info.Height, err)
	}

	if ok {
		c.releaseLocked(img)
		img.info = info
		img.backing = tex
		img.gen++
		if img.Has(FlagBound) {
			img.SetFlags(FlagNeedsRebind)
		}
		logger().Debug("texcache: re-materialized image",
			slog.Uint64("id", uint64(img.id)),
			slog.String("addr", fmt.Sprintf("%#x", info.Address)),
			slog.Bool("rebind", img.Has(FlagNeedsRebind)))
		return img, nil
	}

	img = &Image{
		id:      c.nextID,
		info:    info,
		backing: tex,
		views:   make(map[ViewInfo]*ImageView),
	}
	c.nextID++
	c.images[info.Address] = img
	logger().Debug("texcache: created image",
		slog.Uint64("id", uint64(img.id)),
		slog.String("addr", fmt.Sprintf("%#x", info.Address)),
		slog.Int("width", int(info.Width)),
		slog.Int("height", int(info.Height)))
	return img, nil
}

// FindOrCreateView returns a view of img matching view.
func (c *Cache) FindOrCreateView(img *Image, view ViewInfo) (*ImageView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := img.views[view]; ok {
		return v, nil
	}
	backing, err := c.alloc.AllocateView(img.backing, img.info, view)
	if err != nil {
		return nil, fmt.Errorf("%w: view of image %d: %w", ErrAllocationFailed, img.id, err)
	}
	v := &ImageView{image: img, info: view, gen: img.gen, backing: backing}
	img.views[view] = v
	return v, nil
}

// Len returns the number of images.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}

// RegisterMetadata marks [addr, addr+size) as compression metadata storage.
func (c *Cache) RegisterMetadata(addr, size uint64) {
	if size == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	r := addrRange{start: addr, end: addr + size}
	out := c.meta[:0:0]
	for _, m := range c.meta {
		if m.end < r.start || m.start > r.end {
			out = append(out, m)
			continue
		}
		r.start = min(r.start, m.start)
		r.end = max(r.end, m.end)
	}
	out = append(out, r)
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	c.meta = out
}

// IsMetadataAddress reports whether addr lies in registered metadata storage.
func (c *Cache) IsMetadataAddress(addr uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := sort.Search(len(c.meta), func(i int) bool { return c.meta[i].end > addr })
	return i < len(c.meta) && c.meta[i].start <= addr
}

// InvalidateMemory flags images overlapping [addr, addr+size) for rebind
// after guest writes. Images not currently bound are left alone.
func (c *Cache) InvalidateMemory(addr, size uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for base, img := range c.images {
		if base < addr+size && addr < base+imageSpan(img.info) && img.Has(FlagBound) {
			img.SetFlags(FlagNeedsRebind)
			n++
		}
	}
	return n
}

// imageSpan approximates the guest footprint of an image at 4 bytes per texel.
func imageSpan(info ImageInfo) uint64 {
	return uint64(info.Width) * uint64(info.Height) * uint64(max(info.Depth, 1)) * uint64(max(info.ArrayLayers, 1)) * 4
}

// Close releases every image and view.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, img := range c.images {
		c.releaseLocked(img)
	}
	clear(c.images)
}

// releaseLocked frees the backing texture and all views of img.
func (c *Cache) releaseLocked(img *Image) {
	for k, v := range img.views {
		c.alloc.ReleaseView(v.backing)
		delete(img.views, k)
	}
	c.alloc.ReleaseImage(img.backing)
	img.backing = nil
}
