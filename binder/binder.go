// Package binder turns the image usage of a compiled program into descriptor
// writes against the live texture cache.
//
// Binding runs in two strictly ordered phases over all slots of a stage.
// Discovery finds or creates every image and marks it Bound. Looking up a
// later slot can re-materialize an image an earlier slot already found, so
// resolution runs only after discovery has finished for every slot and
// re-resolves images flagged NeedsRebind before creating their views.
package binder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/shaderjit/amdgpu"
	"github.com/gogpu/shaderjit/ir"
	"github.com/gogpu/shaderjit/texcache"
)

var (
	// ErrResourceUnavailable means an image could not be materialized. The
	// draw must be skipped.
	ErrResourceUnavailable = errors.New("binder: resource unavailable")

	// ErrAnomalousMetadataAccess is logged when a shader samples compression
	// metadata. The bind proceeds.
	ErrAnomalousMetadataAccess = errors.New("binder: anomalous metadata access")
)

// TextureCache is the texture cache the binder resolves images against.
// *texcache.Cache implements it.
type TextureCache interface {
	FindOrCreateImage(info texcache.ImageInfo) (*texcache.Image, error)
	FindOrCreateView(img *texcache.Image, view texcache.ViewInfo) (*texcache.ImageView, error)
	IsMetadataAddress(addr uint64) bool
}

// DescriptorType is the kind of image descriptor written.
type DescriptorType uint8

// Descriptor types.
const (
	DescriptorSampledImage DescriptorType = iota
	DescriptorStorageImage
)

// String returns the descriptor type name.
func (t DescriptorType) String() string {
	if t == DescriptorStorageImage {
		return "storage-image"
	}
	return "sampled-image"
}

// DescriptorWrite is one image descriptor to write.
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType

	// View is nil for a null image.
	View *texcache.ImageView

	Layout texcache.Layout
}

// IsNull reports whether the write binds the null image.
func (w DescriptorWrite) IsNull() bool {
	return w.View == nil
}

// binding is a slot found in discovery.
type binding struct {
	res   ir.ImageResource
	sharp amdgpu.TSharp
	image *texcache.Image
}

// BuildDescriptorWrites returns one write per image slot of info, in slot
// order. Slot bindings are offset by firstBinding. The submission sequence
// number is taken from ctx when present.
//
// On error no writes are returned and the Bound flag is cleared from every
// image discovered so far.
func BuildDescriptorWrites(ctx context.Context, info *ir.Info, regs *amdgpu.Registers, cache TextureCache, firstBinding uint32) ([]DescriptorWrite, error) {
	if len(info.Images) == 0 {
		return nil, nil
	}
	userData := regs.UserData(info.Stage)

	bound := make([]binding, 0, len(info.Images))
	fail := func(slot int, err error) ([]DescriptorWrite, error) {
		for _, b := range bound {
			if b.image != nil {
				b.image.ClearFlags(texcache.FlagBound)
			}
		}
		return nil, fmt.Errorf("%w: %s image slot %d: %w", ErrResourceUnavailable, info.Stage, slot, err)
	}

	for i, res := range info.Images {
		sharp := res.GetSharp(userData)
		b := binding{res: res, sharp: sharp}
		if cache.IsMetadataAddress(sharp.Address()) {
			warnMetadata(ctx, info.Stage.String(), i, sharp.Address())
		}
		if !sharp.Valid() {
			bound = append(bound, b)
			continue
		}
		img, err := cache.FindOrCreateImage(texcache.ImageInfoFromSharp(sharp, res.IsDepth, res.IsStorage))
		if err != nil {
			return fail(i, err)
		}
		img.SetFlags(texcache.FlagBound)
		b.image = img
		bound = append(bound, b)
	}

	writes := make([]DescriptorWrite, len(bound))
	for i, b := range bound {
		w := DescriptorWrite{Binding: firstBinding + b.res.Binding, Type: DescriptorSampledImage}
		if b.res.IsStorage {
			w.Type = DescriptorStorageImage
		}
		if b.image == nil {
			writes[i] = w
			continue
		}

		img := b.image
		if img.Has(texcache.FlagNeedsRebind) {
			logger().Debug("binder: rebinding image",
				slog.Uint64("id", uint64(img.ID())),
				slog.Int("slot", i),
				slog.Uint64("generation", uint64(img.Generation())))
		}
		view, err := cache.FindOrCreateView(img, texcache.ViewInfoFromSharp(b.sharp, img.Info()))
		if err != nil {
			return fail(i, err)
		}

		w.View = view
		w.Layout = layoutFor(b.res)
		img.SetLayout(w.Layout)
		img.ClearFlags(texcache.FlagNeedsRebind | texcache.FlagBound)
		writes[i] = w
	}
	return writes, nil
}

func layoutFor(res ir.ImageResource) texcache.Layout {
	switch {
	case res.IsStorage:
		return texcache.LayoutGeneral
	case res.IsDepth:
		return texcache.LayoutDepthReadOnly
	default:
		return texcache.LayoutShaderReadOnly
	}
}

func warnMetadata(ctx context.Context, stage string, slot int, addr uint64) {
	attrs := []slog.Attr{
		slog.String("stage", stage),
		slog.Int("slot", slot),
		slog.String("addr", fmt.Sprintf("%#x", addr)),
		slog.Any("error", ErrAnomalousMetadataAccess),
	}
	if seq, ok := amdgpu.SequenceFrom(ctx); ok {
		attrs = append(attrs, slog.Any("seq", seq))
	}
	logger().LogAttrs(ctx, slog.LevelWarn, "binder: shader reads compression metadata", attrs...)
}
