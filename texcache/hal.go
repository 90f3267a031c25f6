package texcache

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrNoHALDevice is returned when a device provider does not expose a HAL
// device with texture support.
var ErrNoHALDevice = errors.New("texcache: provider has no HAL texture device")

// TextureDevice is the part of hal.Device the allocator uses.
type TextureDevice interface {
	CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error)
	DestroyTexture(tex hal.Texture)
	CreateTextureView(tex hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error)
	DestroyTextureView(view hal.TextureView)
}

// HALAllocator allocates images on a wgpu HAL device.
type HALAllocator struct {
	device TextureDevice
}

// NewHALAllocator returns an allocator for device.
func NewHALAllocator(device TextureDevice) *HALAllocator {
	return &HALAllocator{device: device}
}

// HALAllocatorFromProvider extracts the HAL device from a gpucontext
// provider. The provider must expose HalDevice() returning a device with
// texture support.
func HALAllocatorFromProvider(provider gpucontext.DeviceProvider) (*HALAllocator, error) {
	type halProvider interface {
		HalDevice() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALDevice
	}
	device, ok := hp.HalDevice().(TextureDevice)
	if !ok || device == nil {
		return nil, ErrNoHALDevice
	}
	return NewHALAllocator(device), nil
}

// TextureDescriptor maps an image shape onto a HAL texture descriptor.
func TextureDescriptor(info ImageInfo) *hal.TextureDescriptor {
	dim := info.Type.TextureDimension()
	layers := max(info.ArrayLayers, 1)
	if dim == gputypes.TextureDimension3D {
		layers = max(info.Depth, 1)
	}

	usage := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc
	switch {
	case info.IsDepth:
		usage |= gputypes.TextureUsageRenderAttachment
	case info.IsStorage:
		usage |= gputypes.TextureUsageStorageBinding
	}

	return &hal.TextureDescriptor{
		Label: fmt.Sprintf("guest image %#x", info.Address),
		Size: hal.Extent3D{
			Width:              max(info.Width, 1),
			Height:             max(info.Height, 1),
			DepthOrArrayLayers: layers,
		},
		MipLevelCount: max(info.MipLevels, 1),
		SampleCount:   1,
		Dimension:     dim,
		Format:        info.Format,
		Usage:         usage,
	}
}

// TextureViewDescriptor maps a view onto a HAL texture view descriptor.
func TextureViewDescriptor(image ImageInfo, view ViewInfo) *hal.TextureViewDescriptor {
	return &hal.TextureViewDescriptor{
		Label:           fmt.Sprintf("guest view %#x", image.Address),
		Format:          view.Format,
		Dimension:       view.Dimension,
		Aspect:          gputypes.TextureAspectAll,
		BaseMipLevel:    view.BaseLevel,
		MipLevelCount:   view.LevelCount,
		BaseArrayLayer:  view.BaseLayer,
		ArrayLayerCount: view.LayerCount,
	}
}

// AllocateImage implements Allocator.
func (a *HALAllocator) AllocateImage(info ImageInfo) (hal.Texture, error) {
	if info.Format == gputypes.TextureFormatUndefined {
		return nil, fmt.Errorf("undefined format for image %#x", info.Address)
	}
	return a.device.CreateTexture(TextureDescriptor(info))
}

// AllocateView implements Allocator.
func (a *HALAllocator) AllocateView(tex hal.Texture, image ImageInfo, view ViewInfo) (hal.TextureView, error) {
	return a.device.CreateTextureView(tex, TextureViewDescriptor(image, view))
}

// ReleaseImage implements Allocator.
func (a *HALAllocator) ReleaseImage(tex hal.Texture) {
	a.device.DestroyTexture(tex)
}

// ReleaseView implements Allocator.
func (a *HALAllocator) ReleaseView(view hal.TextureView) {
	a.device.DestroyTextureView(view)
}
