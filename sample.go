package gonitf

import (
	"encoding/binary"
	"fmt"
)

// assemble reinterprets the sample at raw[off:] as t in the given byte order
// and returns its bit pattern, the form PixelBuffer.set stores.
func assemble(raw []byte, off int, t SampleType, order binary.ByteOrder) uint64 {
	switch t {
	case SampleUint8:
		return uint64(raw[off])
	case SampleUint16:
		return uint64(order.Uint16(raw[off : off+2]))
	case SampleFloat32:
		return uint64(order.Uint32(raw[off : off+4]))
	case SampleFloat64:
		return order.Uint64(raw[off : off+8])
	}
	return 0
}

// decodeBand bulk-decodes a whole band straight into the backing slice of
// dst. It requires a single band buffer whose sample count matches raw.
func decodeBand(raw []byte, dst *PixelBuffer, order binary.ByteOrder) error {
	if dst.Bands != 1 || len(raw) != dst.Len()*dst.Type.Size() {
		return fmt.Errorf("%w: %d raw bytes for %d samples of %v", ErrInvalidRegion, len(raw), dst.Len(), dst.Type)
	}

	var err error
	switch dst.Type {
	case SampleUint8:
		copy(dst.Pix8, raw)
	case SampleUint16:
		_, err = binary.Decode(raw, order, dst.Pix16)
	case SampleFloat32:
		_, err = binary.Decode(raw, order, dst.Pix32)
	case SampleFloat64:
		_, err = binary.Decode(raw, order, dst.Pix64)
	}
	return err
}
