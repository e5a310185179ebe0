package gonitf

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ValueType is the pixel value type of an image segment
type ValueType uint8

const (
	ValueInteger       ValueType = iota // INT: unsigned integer
	ValueSignedInteger                  // SI: two's complement integer
	ValueReal                           // R: IEEE floating point
	ValueBilevel                        // B: one bit per pixel
	ValueComplex                        // C: complex pairs
)

// ParseValueType maps a header pixel value type code to a ValueType
func ParseValueType(code string) (ValueType, error) {
	switch strings.TrimSpace(code) {
	case "INT":
		return ValueInteger, nil
	case "SI":
		return ValueSignedInteger, nil
	case "R":
		return ValueReal, nil
	case "B":
		return ValueBilevel, nil
	case "C":
		return ValueComplex, nil
	default:
		return 0, fmt.Errorf("%w: pixel value type %q", ErrUnsupportedFormat, code)
	}
}

func (v ValueType) String() string {
	switch v {
	case ValueInteger:
		return "INT"
	case ValueSignedInteger:
		return "SI"
	case ValueReal:
		return "R"
	case ValueBilevel:
		return "B"
	case ValueComplex:
		return "C"
	default:
		return fmt.Sprintf("ValueType(%d)", uint8(v))
	}
}

// Justification describes the byte order of multi-byte samples
type Justification uint8

const (
	JustifyNormal   Justification = iota // big-endian samples
	JustifyReversed                      // little-endian samples
)

// ParseJustification maps the header pixel justification code; "R" means
// the bytes of each sample are reversed.
func ParseJustification(code string) Justification {
	if strings.TrimSpace(code) == "R" {
		return JustifyReversed
	}
	return JustifyNormal
}

// ByteOrder returns the byte order samples must be decoded with.
func (j Justification) ByteOrder() binary.ByteOrder {
	if j == JustifyReversed {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// ImageDescriptor holds the metadata of one image segment needed to decode it.
type ImageDescriptor struct {
	Width          int
	Height         int
	BitsPerPixel   int
	ValueType      ValueType
	Bands          int
	Justification  Justification
	Representation string // IREP, e.g. MONO, RGB, MULTI
}

// Validate checks the descriptor invariants.
func (d ImageDescriptor) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: image size %dx%d", ErrInvalidRegion, d.Width, d.Height)
	}
	if d.Bands <= 0 {
		return fmt.Errorf("%w: band count %d", ErrInvalidBandSelection, d.Bands)
	}
	_, err := d.Format()
	return err
}

// IsRGB reports whether the segment declares an RGB representation.
func (d ImageDescriptor) IsRGB() bool {
	return strings.TrimSpace(d.Representation) == "RGB"
}

// Formats returns the candidate pixel formats of the segment, richest first.
func (d ImageDescriptor) Formats() ([]PixelFormat, error) {
	return ResolveFormats(d.BitsPerPixel, d.ValueType, d.Bands, d.IsRGB())
}

// Format returns the per-band pixel format the engine decodes into.
func (d ImageDescriptor) Format() (PixelFormat, error) {
	formats, err := d.Formats()
	if err != nil {
		return PixelFormat{}, err
	}
	return formats[len(formats)-1], nil
}

// SampleType is the in-memory representation of one decoded sample.
type SampleType uint8

const (
	SampleUint8 SampleType = iota
	SampleUint16
	SampleFloat32
	SampleFloat64
)

// Size returns the size of one sample in bytes
func (t SampleType) Size() int {
	switch t {
	case SampleUint8:
		return 1
	case SampleUint16:
		return 2
	case SampleFloat32:
		return 4
	case SampleFloat64:
		return 8
	default:
		return 0
	}
}

func (t SampleType) String() string {
	switch t {
	case SampleUint8:
		return "uint8"
	case SampleUint16:
		return "uint16"
	case SampleFloat32:
		return "float32"
	case SampleFloat64:
		return "float64"
	default:
		return fmt.Sprintf("SampleType(%d)", uint8(t))
	}
}

// PixelFormat is a resolved decoding target. Interleaved is set for the
// 8-bit three band RGB candidate.
type PixelFormat struct {
	Sample      SampleType
	Bands       int
	Interleaved bool
}

// ResolveFormats maps bits per pixel and value type to the supported pixel
// formats. When an interleaved RGB candidate exists it comes first; the
// per-band format is always last.
func ResolveFormats(bitsPerPixel int, vt ValueType, bands int, rgb bool) ([]PixelFormat, error) {
	var st SampleType
	switch {
	case bitsPerPixel == 8:
		st = SampleUint8
	case bitsPerPixel == 16:
		st = SampleUint16
	case bitsPerPixel == 32 && vt == ValueReal:
		st = SampleFloat32
	case bitsPerPixel == 64 && vt == ValueReal:
		st = SampleFloat64
	default:
		return nil, fmt.Errorf("%w: %d bits per pixel with value type %s", ErrUnsupportedFormat, bitsPerPixel, vt)
	}

	formats := make([]PixelFormat, 0, 2)
	if st == SampleUint8 && bands == 3 && rgb {
		formats = append(formats, PixelFormat{Sample: st, Bands: bands, Interleaved: true})
	}
	formats = append(formats, PixelFormat{Sample: st, Bands: bands})
	return formats, nil
}
