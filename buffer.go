package gonitf

import (
	"fmt"
	"image"
	"math"
)

// PixelBuffer holds decoded samples for a rectangle of pixels.
// Data is stored band-interleaved-by-pixel in the one backing slice that
// matches Type:
// index = (y-Rect.Min.Y) * Width * Bands + (x-Rect.Min.X) * Bands + band
type PixelBuffer struct {
	Type  SampleType
	Rect  image.Rectangle
	Bands int

	Pix8  []uint8
	Pix16 []uint16
	Pix32 []float32
	Pix64 []float64
}

// NewPixelBuffer allocates a zeroed buffer covering rect.
func NewPixelBuffer(t SampleType, rect image.Rectangle, bands int) (*PixelBuffer, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("%w: empty buffer bounds %v", ErrInvalidRegion, rect)
	}
	if bands <= 0 {
		return nil, fmt.Errorf("%w: %d bands", ErrInvalidBandSelection, bands)
	}

	n := rect.Dx() * rect.Dy() * bands
	b := &PixelBuffer{Type: t, Rect: rect, Bands: bands}
	switch t {
	case SampleUint8:
		b.Pix8 = make([]uint8, n)
	case SampleUint16:
		b.Pix16 = make([]uint16, n)
	case SampleFloat32:
		b.Pix32 = make([]float32, n)
	case SampleFloat64:
		b.Pix64 = make([]float64, n)
	default:
		return nil, fmt.Errorf("%w: sample type %v", ErrUnsupportedFormat, t)
	}
	return b, nil
}

// Width returns the buffer width in pixels
func (b *PixelBuffer) Width() int { return b.Rect.Dx() }

// Height returns the buffer height in pixels
func (b *PixelBuffer) Height() int { return b.Rect.Dy() }

// Len returns the number of samples held by the buffer.
func (b *PixelBuffer) Len() int {
	switch b.Type {
	case SampleUint8:
		return len(b.Pix8)
	case SampleUint16:
		return len(b.Pix16)
	case SampleFloat32:
		return len(b.Pix32)
	case SampleFloat64:
		return len(b.Pix64)
	}
	return 0
}

// Index returns the flat index of (band, x, y), or -1 when out of bounds.
func (b *PixelBuffer) Index(band, x, y int) int {
	if band < 0 || band >= b.Bands || !image.Pt(x, y).In(b.Rect) {
		return -1
	}
	return (y-b.Rect.Min.Y)*b.Rect.Dx()*b.Bands + (x-b.Rect.Min.X)*b.Bands + band
}

// Sample returns the value at band, x, y as a float64, or 0 outside the buffer.
func (b *PixelBuffer) Sample(band, x, y int) float64 {
	i := b.Index(band, x, y)
	if i < 0 {
		return 0
	}
	switch b.Type {
	case SampleUint8:
		return float64(b.Pix8[i])
	case SampleUint16:
		return float64(b.Pix16[i])
	case SampleFloat32:
		return float64(b.Pix32[i])
	case SampleFloat64:
		return b.Pix64[i]
	}
	return 0
}

// Bits returns the raw bit pattern of the sample at band, x, y.
// Integer samples are returned as is, floats as their IEEE-754 bits.
func (b *PixelBuffer) Bits(band, x, y int) uint64 {
	i := b.Index(band, x, y)
	if i < 0 {
		return 0
	}
	switch b.Type {
	case SampleUint8:
		return uint64(b.Pix8[i])
	case SampleUint16:
		return uint64(b.Pix16[i])
	case SampleFloat32:
		return uint64(math.Float32bits(b.Pix32[i]))
	case SampleFloat64:
		return math.Float64bits(b.Pix64[i])
	}
	return 0
}

// set stores an assembled bit pattern. Writes outside the buffer are dropped.
func (b *PixelBuffer) set(band, x, y int, bits uint64) bool {
	i := b.Index(band, x, y)
	if i < 0 {
		return false
	}
	switch b.Type {
	case SampleUint8:
		b.Pix8[i] = uint8(bits)
	case SampleUint16:
		b.Pix16[i] = uint16(bits)
	case SampleFloat32:
		b.Pix32[i] = math.Float32frombits(uint32(bits))
	case SampleFloat64:
		b.Pix64[i] = math.Float64frombits(bits)
	}
	return true
}

// GetBand returns a newly allocated row-major copy of one band as float64.
func (b *PixelBuffer) GetBand(band int) []float64 {
	if band < 0 || band >= b.Bands {
		return nil
	}
	out := make([]float64, 0, b.Rect.Dx()*b.Rect.Dy())
	for y := b.Rect.Min.Y; y < b.Rect.Max.Y; y++ {
		for x := b.Rect.Min.X; x < b.Rect.Max.X; x++ {
			out = append(out, b.Sample(band, x, y))
		}
	}
	return out
}
