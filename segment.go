package gonitf

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
)

// Mode is the interleave mode of uncompressed segment data
type Mode byte

const (
	ModeBlock      Mode = 'B' // band interleaved by block
	ModePixel      Mode = 'P' // band interleaved by pixel
	ModeRow        Mode = 'R' // band interleaved by row
	ModeSequential Mode = 'S' // band sequential
)

func (m Mode) String() string {
	return string(m)
}

// Segment describes where and how the pixels of one image segment are laid
// out in its container. The values come from the segment's subheader.
type Segment struct {
	ImageDescriptor

	Offset          int64 // first byte of the image data in the container
	Mode            Mode
	BlocksPerRow    int
	BlocksPerColumn int
	BlockWidth      int // pixels per block horizontally; 0 means the image width
	BlockHeight     int // pixels per block vertically; 0 means the image height

	// Corners are the upper-left, upper-right, lower-right and lower-left
	// image corners, when the segment is georeferenced.
	Corners *[4]orb.Point
}

// segmentReader serves window requests from the raw data of one segment.
type segmentReader struct {
	r    io.ReaderAt
	seg  Segment
	size int // bytes per sample

	bw, bh      int
	bpr, bpc    int
	blockPixels int64
	numBlocks   int64
}

// newSegmentReader validates the layout of seg against a container of
// dataSize bytes (negative when unknown).
func newSegmentReader(r io.ReaderAt, dataSize int64, seg Segment) (*segmentReader, error) {
	d := seg.ImageDescriptor
	if err := d.Validate(); err != nil {
		return nil, err
	}
	format, err := d.Format()
	if err != nil {
		return nil, err
	}

	switch seg.Mode {
	case ModeBlock, ModePixel, ModeRow, ModeSequential:
	default:
		return nil, fmt.Errorf("%w: interleave mode %q", ErrInvalidLayout, byte(seg.Mode))
	}

	sr := &segmentReader{
		r:    r,
		seg:  seg,
		size: format.Sample.Size(),
		bw:   seg.BlockWidth,
		bh:   seg.BlockHeight,
		bpr:  seg.BlocksPerRow,
		bpc:  seg.BlocksPerColumn,
	}
	if sr.bw == 0 {
		sr.bw = d.Width
		if sr.bpr == 0 {
			sr.bpr = 1
		}
	}
	if sr.bh == 0 {
		sr.bh = d.Height
		if sr.bpc == 0 {
			sr.bpc = 1
		}
	}
	if sr.bw < 0 || sr.bh < 0 || sr.bpr <= 0 || sr.bpc <= 0 {
		return nil, fmt.Errorf("%w: %dx%d blocks of %dx%d pixels", ErrInvalidLayout, sr.bpr, sr.bpc, sr.bw, sr.bh)
	}
	if sr.bpr*sr.bw < d.Width || sr.bpc*sr.bh < d.Height {
		return nil, fmt.Errorf("%w: %dx%d blocks of %dx%d pixels do not cover %dx%d image",
			ErrInvalidLayout, sr.bpr, sr.bpc, sr.bw, sr.bh, d.Width, d.Height)
	}

	sr.blockPixels = int64(sr.bw) * int64(sr.bh)
	sr.numBlocks = int64(sr.bpr) * int64(sr.bpc)

	if seg.Offset < 0 {
		return nil, fmt.Errorf("%w: negative data offset %d", ErrInvalidLayout, seg.Offset)
	}
	total := sr.numBlocks * sr.blockPixels * int64(d.Bands) * int64(sr.size)
	if dataSize >= 0 && seg.Offset+total > dataSize {
		return nil, fmt.Errorf("%w: image data [%d,%d) exceeds container size %d",
			ErrInvalidLayout, seg.Offset, seg.Offset+total, dataSize)
	}

	return sr, nil
}

// span returns the byte offset (relative to the segment data) of pixel 0 of
// row ly in block blk for band, and the distance between adjacent pixels.
func (sr *segmentReader) span(blk int64, ly, band int) (int64, int64) {
	bands := int64(sr.seg.Bands)
	b := int64(band)
	bw := int64(sr.bw)
	size := int64(sr.size)

	switch sr.seg.Mode {
	case ModePixel:
		return (blk*sr.blockPixels*bands + int64(ly)*bw*bands + b) * size, bands * size
	case ModeRow:
		return (blk*sr.blockPixels*bands + (int64(ly)*bands+b)*bw) * size, size
	case ModeSequential:
		return ((b*sr.numBlocks+blk)*sr.blockPixels + int64(ly)*bw) * size, size
	default: // ModeBlock
		return ((blk*bands+b)*sr.blockPixels + int64(ly)*bw) * size, size
	}
}

// readWindow fills dst with the window's samples, one slice per band.
func (sr *segmentReader) readWindow(w WindowRequest, dst [][]byte) error {
	d := sr.seg.ImageDescriptor
	if len(dst) != len(w.Bands) {
		return fmt.Errorf("%d destination buffers for %d bands", len(dst), len(w.Bands))
	}
	if w.NumRows <= 0 || w.NumCols <= 0 {
		return fmt.Errorf("empty window %dx%d", w.NumCols, w.NumRows)
	}

	rowBytes := w.NumCols * sr.size
	for i, b := range w.Bands {
		if b < 0 || b >= d.Bands {
			return fmt.Errorf("band %d out of range [0,%d)", b, d.Bands)
		}
		if len(dst[i]) < w.NumRows*rowBytes {
			return fmt.Errorf("buffer for band %d holds %d bytes, window needs %d", b, len(dst[i]), w.NumRows*rowBytes)
		}
	}

	cols := make([]int, w.NumCols)
	for c := range cols {
		cols[c] = w.SourceCol(c)
		if cols[c] < 0 || cols[c] >= d.Width {
			return fmt.Errorf("window column %d maps outside image width %d", cols[c], d.Width)
		}
	}

	for r := 0; r < w.NumRows; r++ {
		sy := w.SourceRow(r)
		if sy < 0 || sy >= d.Height {
			return fmt.Errorf("window row %d maps outside image height %d", sy, d.Height)
		}
		by, ly := sy/sr.bh, sy%sr.bh

		for i, b := range w.Bands {
			out := dst[i][r*rowBytes : (r+1)*rowBytes]
			if err := sr.readRow(out, cols, by, ly, b); err != nil {
				return fmt.Errorf("row %d band %d: %w", sy, b, err)
			}
		}
	}
	return nil
}

// readRow copies the samples of cols from block row by, local row ly and
// one band into out. Consecutive columns in the same block share one read.
func (sr *segmentReader) readRow(out []byte, cols []int, by, ly, band int) error {
	for c := 0; c < len(cols); {
		bx := cols[c] / sr.bw
		lo, hi := cols[c]%sr.bw, cols[c]%sr.bw
		end := c + 1
		for end < len(cols) && cols[end]/sr.bw == bx {
			lx := cols[end] % sr.bw
			lo, hi = min(lo, lx), max(hi, lx)
			end++
		}

		blk := int64(by)*int64(sr.bpr) + int64(bx)
		base, step := sr.span(blk, ly, band)
		n := int64(hi-lo)*step + int64(sr.size)

		buf := getBuffer(int(n))
		if err := readFullAt(sr.r, buf, sr.seg.Offset+base+int64(lo)*step); err != nil {
			putBuffer(buf)
			return err
		}
		for k := c; k < end; k++ {
			src := int64(cols[k]%sr.bw-lo) * step
			copy(out[k*sr.size:(k+1)*sr.size], buf[src:src+int64(sr.size)])
		}
		putBuffer(buf)

		c = end
	}
	return nil
}

// readFullAt reads exactly len(buf) bytes at off; a short read is an error.
func readFullAt(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("read %d of %d bytes at offset %d: %w", n, len(buf), off, err)
}
