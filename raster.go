package gonitf

import (
	"encoding/binary"
	"fmt"
	"image"
)

// Source is the data source the engine reads image segments from.
type Source interface {
	// Descriptor returns the metadata of a segment, or ErrNoSuchSegment.
	Descriptor(segment int) (ImageDescriptor, error)
	// ReadWindow fills dst[i] with band w.Bands[i] as NumRows*NumCols
	// row-major raw samples, already downsampled by w.DownSampler.
	ReadWindow(segment int, w WindowRequest, dst [][]byte) error
}

// ReadRequest selects what part of a segment to read and where the samples go.
type ReadRequest struct {
	Region     image.Rectangle // source pixels; empty means the whole image
	DestOffset image.Point     // destination position of the region origin
	SubsampleX int             // 0 means 1
	SubsampleY int             // 0 means 1
	Bands      []int           // source bands in output order; nil means all
}

// readPlan is a ReadRequest resolved against a segment descriptor.
type readPlan struct {
	desc   ImageDescriptor
	format PixelFormat
	order  binary.ByteOrder

	region     image.Rectangle
	offset     image.Point
	subX, subY int
	bands      []int

	destW, destH int
}

func newReadPlan(d ImageDescriptor, req ReadRequest) (*readPlan, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	format, err := d.Format()
	if err != nil {
		return nil, err
	}

	p := &readPlan{
		desc:   d,
		format: format,
		order:  d.Justification.ByteOrder(),
		region: req.Region,
		offset: req.DestOffset,
		subX:   req.SubsampleX,
		subY:   req.SubsampleY,
		bands:  req.Bands,
	}
	if p.region == (image.Rectangle{}) {
		p.region = image.Rect(0, 0, d.Width, d.Height)
	}
	if p.subX == 0 {
		p.subX = 1
	}
	if p.subY == 0 {
		p.subY = 1
	}
	if p.subX < 0 || p.subY < 0 {
		return nil, fmt.Errorf("%w: subsampling %dx%d", ErrInvalidRegion, p.subX, p.subY)
	}
	if err := checkRegion(d, p.region); err != nil {
		return nil, err
	}
	if p.bands == nil {
		p.bands = make([]int, d.Bands)
		for i := range p.bands {
			p.bands[i] = i
		}
	}
	if err := checkBands(d, p.bands); err != nil {
		return nil, err
	}

	p.destW = ceilDiv(p.region.Dx(), p.subX)
	p.destH = ceilDiv(p.region.Dy(), p.subY)
	return p, nil
}

// destRect is the rectangle the subsampled region maps to.
func (p *readPlan) destRect() image.Rectangle {
	return image.Rect(0, 0, p.destW, p.destH).Add(p.offset)
}

// coversImage reports whether the fast path applies: the whole image, at
// most subsampled, lands unclipped at the destination origin.
func (p *readPlan) coversImage(dst *PixelBuffer) bool {
	return p.destH*p.subY == p.desc.Height &&
		p.destW*p.subX == p.desc.Width &&
		p.region.Min == image.Point{} &&
		p.offset == image.Point{} &&
		dst.Rect == image.Rect(0, 0, p.destW, p.destH) &&
		dst.Bands == len(p.bands)
}

// DestinationBounds returns the bounds Read would allocate for req.
func DestinationBounds(d ImageDescriptor, req ReadRequest) (image.Rectangle, error) {
	p, err := newReadPlan(d, req)
	if err != nil {
		return image.Rectangle{}, err
	}
	return p.destRect(), nil
}

// Read decodes the requested part of a segment into a newly allocated
// buffer whose bounds are the subsampled region moved to DestOffset.
func Read(src Source, segment int, req ReadRequest) (*PixelBuffer, error) {
	d, err := src.Descriptor(segment)
	if err != nil {
		return nil, err
	}
	p, err := newReadPlan(d, req)
	if err != nil {
		return nil, err
	}

	dst, err := NewPixelBuffer(p.format.Sample, p.destRect(), len(p.bands))
	if err != nil {
		return nil, err
	}
	if err := p.run(src, segment, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// ReadInto decodes the requested part of a segment into dst. Samples that
// map outside dst.Rect are dropped without error.
func ReadInto(src Source, segment int, req ReadRequest, dst *PixelBuffer) error {
	d, err := src.Descriptor(segment)
	if err != nil {
		return err
	}
	p, err := newReadPlan(d, req)
	if err != nil {
		return err
	}
	if dst.Type != p.format.Sample {
		return fmt.Errorf("%w: destination holds %v samples, segment decodes to %v", ErrUnsupportedFormat, dst.Type, p.format.Sample)
	}
	if dst.Bands < len(p.bands) {
		return fmt.Errorf("%w: destination has %d bands, %d requested", ErrInvalidBandSelection, dst.Bands, len(p.bands))
	}
	return p.run(src, segment, dst)
}

func (p *readPlan) run(src Source, segment int, dst *PixelBuffer) error {
	if p.coversImage(dst) {
		return p.readFull(src, segment, dst)
	}
	return p.readStreaming(src, segment, dst)
}

// readFull reads the entire (subsampled) image with a single window request.
func (p *readPlan) readFull(src Source, segment int, dst *PixelBuffer) error {
	w, err := BuildWindow(p.desc, image.Rect(0, 0, p.desc.Width, p.desc.Height), p.bands, p.subX, p.subY)
	if err != nil {
		return err
	}

	t := p.format.Sample
	size := t.Size()
	raw := make([][]byte, len(w.Bands))
	for i := range raw {
		raw[i] = make([]byte, w.NumCols*w.NumRows*size)
	}
	if err := src.ReadWindow(segment, w, raw); err != nil {
		return &SourceReadError{Segment: segment, Row: -1, Err: err}
	}

	// one band maps element to element onto the backing slice
	if len(raw) == 1 {
		return decodeBand(raw[0], dst, p.order)
	}

	off := 0
	for y := 0; y < w.NumRows; y++ {
		for x := 0; x < w.NumCols; x++ {
			for i, band := range raw {
				dst.set(i, x, y, assemble(band, off, t, p.order))
			}
			off += size
		}
	}
	return nil
}

// readStreaming reads the region one source row at a time and writes the
// retained samples through the destination's bounds check.
func (p *readPlan) readStreaming(src Source, segment int, dst *PixelBuffer) error {
	w, err := BuildWindow(p.desc, p.region, p.bands, p.subX, p.subY)
	if err != nil {
		return err
	}
	w.NumRows = 1

	t := p.format.Sample
	size := t.Size()
	rowBytes := w.NumCols * size
	raw := make([][]byte, len(w.Bands))
	for i := range raw {
		raw[i] = make([]byte, rowBytes)
	}

	bounds := dst.Rect
	for srcY := 0; srcY < p.region.Dy(); srcY++ {
		if srcY%p.subY != 0 {
			continue
		}

		dstY := p.offset.Y + srcY/p.subY
		if dstY < bounds.Min.Y {
			continue
		}
		if dstY >= bounds.Max.Y {
			break
		}

		w.StartRow = p.region.Min.Y + srcY
		if err := src.ReadWindow(segment, w, raw); err != nil {
			return &SourceReadError{Segment: segment, Row: srcY, Err: err}
		}

		for off, dstX := 0, p.offset.X; off < rowBytes; off, dstX = off+size, dstX+1 {
			if dstX < bounds.Min.X {
				continue
			}
			if dstX >= bounds.Max.X {
				break
			}
			for i, band := range raw {
				dst.set(i, dstX, dstY, assemble(band, off, t, p.order))
			}
		}
	}
	return nil
}
