package amdgpu

// DataFormat is the GCN resource data format field.
type DataFormat uint32

// Data formats.
const (
	FormatInvalid DataFormat = iota
	Format8
	Format16
	Format8_8
	Format32
	Format16_16
	Format10_11_11
	Format11_11_10
	Format10_10_10_2
	Format2_10_10_10
	Format8_8_8_8
	Format32_32
	Format16_16_16_16
	Format32_32_32
	Format32_32_32_32
)

// NumberFormat is the GCN resource number format field.
type NumberFormat uint32

// Number formats.
const (
	NumberUnorm NumberFormat = iota
	NumberSnorm
	NumberUscaled
	NumberSscaled
	NumberUint
	NumberSint
	NumberSnormNz
	NumberFloat
	_
	NumberSrgb
)

// ImageType is the T# resource type field.
type ImageType uint32

// Image types. Values below Color1D denote buffers.
const (
	ImageInvalid        ImageType = 0
	ImageColor1D        ImageType = 8
	ImageColor2D        ImageType = 9
	ImageColor3D        ImageType = 10
	ImageCube           ImageType = 11
	ImageColor1DArray   ImageType = 12
	ImageColor2DArray   ImageType = 13
	ImageColor2DMsaa    ImageType = 14
	ImageColor2DMsaaArr ImageType = 15
)

// TSharpDwords is the size of an image resource descriptor.
const TSharpDwords = 8

// VSharpDwords is the size of a buffer resource descriptor.
const VSharpDwords = 4

// TSharp is a decoded image resource descriptor.
type TSharp struct {
	Raw [TSharpDwords]uint32
}

// ReadTSharp reads a T# from flattened user data at a dword index.
// Reads past the end of user data yield zero dwords, which decode as an
// invalid format.
func ReadTSharp(userData []uint32, index uint32) TSharp {
	var t TSharp
	for i := range t.Raw {
		if idx := int(index) + i; idx < len(userData) {
			t.Raw[i] = userData[idx]
		}
	}
	return t
}

// EncodeTSharp builds a T# from its fields. Used by register providers and tests.
func EncodeTSharp(addr uint64, dfmt DataFormat, nfmt NumberFormat, typ ImageType, width, height, depth uint32) TSharp {
	var t TSharp
	base := addr >> 8
	t.Raw[0] = uint32(base)
	t.Raw[1] = uint32(base>>32)&0x3f | uint32(dfmt&0x3f)<<20 | uint32(nfmt&0xf)<<26
	t.Raw[2] = (width-1)&0x3fff | ((height-1)&0x3fff)<<14
	t.Raw[3] = uint32(typ&0xf) << 28
	t.Raw[4] = (depth - 1) & 0x1fff
	return t
}

// Address returns the GPU address of the image data.
func (t TSharp) Address() uint64 {
	base := uint64(t.Raw[0]) | uint64(t.Raw[1]&0x3f)<<32
	return base << 8
}

// DataFormat returns the data format.
func (t TSharp) DataFormat() DataFormat {
	return DataFormat(t.Raw[1] >> 20 & 0x3f)
}

// NumberFormat returns the number format.
func (t TSharp) NumberFormat() NumberFormat {
	return NumberFormat(t.Raw[1] >> 26 & 0xf)
}

// Width returns the image width in texels.
func (t TSharp) Width() uint32 {
	return t.Raw[2]&0x3fff + 1
}

// Height returns the image height in texels.
func (t TSharp) Height() uint32 {
	return t.Raw[2]>>14&0x3fff + 1
}

// Depth returns the depth of 3D images.
func (t TSharp) Depth() uint32 {
	return t.Raw[4]&0x1fff + 1
}

// Type returns the resource type.
func (t TSharp) Type() ImageType {
	return ImageType(t.Raw[3] >> 28)
}

// BaseLevel returns the first mip level.
func (t TSharp) BaseLevel() uint32 {
	return t.Raw[3] >> 12 & 0xf
}

// LastLevel returns the last mip level.
func (t TSharp) LastLevel() uint32 {
	return t.Raw[3] >> 16 & 0xf
}

// BaseArray returns the first array layer.
func (t TSharp) BaseArray() uint32 {
	return t.Raw[5] & 0x1fff
}

// LastArray returns the last array layer.
func (t TSharp) LastArray() uint32 {
	return t.Raw[5] >> 13 & 0x1fff
}

// Valid reports whether the sharp denotes a usable image.
func (t TSharp) Valid() bool {
	return t.DataFormat() != FormatInvalid
}

// VSharp is a decoded buffer resource descriptor.
type VSharp struct {
	Raw [VSharpDwords]uint32
}

// ReadVSharp reads a V# from flattened user data at a dword index.
func ReadVSharp(userData []uint32, index uint32) VSharp {
	var v VSharp
	for i := range v.Raw {
		if idx := int(index) + i; idx < len(userData) {
			v.Raw[i] = userData[idx]
		}
	}
	return v
}

// Address returns the buffer base address.
func (v VSharp) Address() uint64 {
	return uint64(v.Raw[0]) | uint64(v.Raw[1]&0xfff)<<32
}

// Stride returns the record stride in bytes.
func (v VSharp) Stride() uint32 {
	return v.Raw[1] >> 16 & 0x3fff
}

// NumRecords returns the number of records.
func (v VSharp) NumRecords() uint32 {
	return v.Raw[2]
}

// Size returns the addressable buffer size in bytes.
func (v VSharp) Size() uint64 {
	if s := v.Stride(); s != 0 {
		return uint64(s) * uint64(v.NumRecords())
	}
	return uint64(v.NumRecords())
}
