package amdgpu

import "github.com/gogpu/gputypes"

// TextureFormat maps a data/number format pair onto a host texture format.
// Unsupported combinations map to TextureFormatUndefined.
func TextureFormat(dfmt DataFormat, nfmt NumberFormat) gputypes.TextureFormat {
	switch dfmt {
	case Format8:
		if nfmt == NumberUnorm {
			return gputypes.TextureFormatR8Unorm
		}
	case Format8_8_8_8:
		switch nfmt {
		case NumberUnorm:
			return gputypes.TextureFormatRGBA8Unorm
		case NumberSrgb:
			return gputypes.TextureFormatRGBA8UnormSrgb
		}
	case Format32:
		if nfmt == NumberFloat {
			return gputypes.TextureFormatR32Float
		}
	case Format32_32:
		if nfmt == NumberFloat {
			return gputypes.TextureFormatRG32Float
		}
	case Format32_32_32_32:
		if nfmt == NumberFloat {
			return gputypes.TextureFormatRGBA32Float
		}
	}
	return gputypes.TextureFormatUndefined
}

// DepthFormat is the host format used for images sampled as depth.
const DepthFormat = gputypes.TextureFormatDepth24PlusStencil8

// TextureDimension returns the host texture dimension of an image type.
func (t ImageType) TextureDimension() gputypes.TextureDimension {
	switch t {
	case ImageColor1D, ImageColor1DArray:
		return gputypes.TextureDimension1D
	case ImageColor3D:
		return gputypes.TextureDimension3D
	default:
		return gputypes.TextureDimension2D
	}
}

// ViewDimension returns the host view dimension of an image type.
func (t ImageType) ViewDimension() gputypes.TextureViewDimension {
	switch t {
	case ImageColor1D:
		return gputypes.TextureViewDimension1D
	case ImageColor3D:
		return gputypes.TextureViewDimension3D
	case ImageCube:
		return gputypes.TextureViewDimensionCube
	case ImageColor1DArray, ImageColor2DArray, ImageColor2DMsaaArr:
		return gputypes.TextureViewDimension2DArray
	default:
		return gputypes.TextureViewDimension2D
	}
}

// IsArray reports whether the image type has array layers.
func (t ImageType) IsArray() bool {
	return t == ImageColor1DArray || t == ImageColor2DArray || t == ImageColor2DMsaaArr || t == ImageCube
}
