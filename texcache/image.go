// Package texcache tracks the host images backing emulated GPU memory.
//
// Images are keyed by guest address. A lookup at a known address with a
// different shape re-materializes the image in place: its backing texture and
// views are replaced, and if the image is currently bound it is flagged
// NeedsRebind so the binder re-resolves views it already handed out.
package texcache

import (
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shaderjit/amdgpu"
)

// ImageID identifies an image for the lifetime of the cache. Zero is null.
type ImageID uint32

// Flags are per-image state bits shared between the cache and the binder.
type Flags uint32

// Image flags.
const (
	// FlagBound marks an image discovered by the current binding pass.
	FlagBound Flags = 1 << iota

	// FlagNeedsRebind marks views handed out earlier as stale.
	FlagNeedsRebind
)

// Layout is the access layout an image was last bound for.
type Layout uint32

// Image layouts.
const (
	LayoutUndefined Layout = iota
	LayoutShaderReadOnly
	LayoutGeneral
	LayoutDepthReadOnly
)

// String returns the layout name.
func (l Layout) String() string {
	switch l {
	case LayoutShaderReadOnly:
		return "shader-read-only"
	case LayoutGeneral:
		return "general"
	case LayoutDepthReadOnly:
		return "depth-read-only"
	default:
		return "undefined"
	}
}

// ImageInfo is the shape of an image.
type ImageInfo struct {
	Address     uint64
	Format      gputypes.TextureFormat
	Type        amdgpu.ImageType
	Width       uint32
	Height      uint32
	Depth       uint32
	MipLevels   uint32
	ArrayLayers uint32
	IsDepth     bool
	IsStorage   bool
}

// fallbackFormat backs guest formats the host cannot express directly.
const fallbackFormat = gputypes.TextureFormatRGBA8Unorm

// ImageInfoFromSharp derives the image shape a T# describes.
func ImageInfoFromSharp(t amdgpu.TSharp, isDepth, isStorage bool) ImageInfo {
	info := ImageInfo{
		Address:     t.Address(),
		Format:      amdgpu.TextureFormat(t.DataFormat(), t.NumberFormat()),
		Type:        t.Type(),
		Width:       t.Width(),
		Height:      t.Height(),
		Depth:       1,
		MipLevels:   max(t.LastLevel()+1, 1),
		ArrayLayers: 1,
		IsDepth:     isDepth,
		IsStorage:   isStorage,
	}
	switch {
	case isDepth:
		info.Format = amdgpu.DepthFormat
	case info.Format == gputypes.TextureFormatUndefined:
		info.Format = fallbackFormat
	}
	if t.Type() == amdgpu.ImageColor3D {
		info.Depth = t.Depth()
	}
	if t.Type().IsArray() {
		info.ArrayLayers = max(t.LastArray()+1, 1)
	}
	return info
}

// ViewInfo selects the subresources and interpretation of a view.
type ViewInfo struct {
	Format     gputypes.TextureFormat
	Dimension  gputypes.TextureViewDimension
	BaseLevel  uint32
	LevelCount uint32
	BaseLayer  uint32
	LayerCount uint32
	IsStorage  bool
}

// ViewInfoFromSharp derives the view a T# selects on an image of info.
func ViewInfoFromSharp(t amdgpu.TSharp, info ImageInfo) ViewInfo {
	base := t.BaseLevel()
	last := max(t.LastLevel(), base)
	v := ViewInfo{
		Format:     info.Format,
		Dimension:  t.Type().ViewDimension(),
		BaseLevel:  base,
		LevelCount: last - base + 1,
		BaseLayer:  0,
		LayerCount: 1,
		IsStorage:  info.IsStorage,
	}
	if t.Type().IsArray() {
		v.BaseLayer = t.BaseArray()
		v.LayerCount = max(info.ArrayLayers-v.BaseLayer, 1)
	}
	if info.IsStorage {
		// Storage views address a single level.
		v.LevelCount = 1
	}
	return v
}

// Image is a cached host image.
type Image struct {
	id      ImageID
	info    ImageInfo
	flags   atomic.Uint32
	layout  atomic.Uint32
	backing hal.Texture
	views   map[ViewInfo]*ImageView
	gen     uint32
}

// ID returns the image identifier.
func (img *Image) ID() ImageID { return img.id }

// Info returns the current image shape. Guarded by the owning cache.
func (img *Image) Info() ImageInfo { return img.info }

// Generation counts re-materializations of the image.
func (img *Image) Generation() uint32 { return img.gen }

// Flags returns the current flag bits.
func (img *Image) Flags() Flags { return Flags(img.flags.Load()) }

// Has reports whether all bits in f are set.
func (img *Image) Has(f Flags) bool { return img.Flags()&f == f }

// SetFlags sets the bits in f.
func (img *Image) SetFlags(f Flags) { img.flags.Or(uint32(f)) }

// ClearFlags clears the bits in f.
func (img *Image) ClearFlags(f Flags) { img.flags.And(^uint32(f)) }

// Layout returns the layout the image was last bound for.
func (img *Image) Layout() Layout { return Layout(img.layout.Load()) }

// SetLayout records the layout the image is bound for.
func (img *Image) SetLayout(l Layout) { img.layout.Store(uint32(l)) }

// ImageView is a view of an image.
type ImageView struct {
	image   *Image
	info    ViewInfo
	gen     uint32
	backing hal.TextureView
}

// Image returns the viewed image.
func (v *ImageView) Image() *Image { return v.image }

// Info returns the view parameters.
func (v *ImageView) Info() ViewInfo { return v.info }

// Generation is the image generation the view was created for.
func (v *ImageView) Generation() uint32 { return v.gen }

// Backing returns the host texture view.
func (v *ImageView) Backing() hal.TextureView { return v.backing }
