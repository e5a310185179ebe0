package gonitf

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/exp/mmap"
)

var errFileClosed = errors.New("file closed")

// File is a container of image segments backed by an io.ReaderAt. It
// implements Source; a reader for each segment is built on first use and
// shared by later reads.
type File struct {
	r        io.ReaderAt
	size     int64
	closer   io.Closer
	closed   atomic.Bool
	segments []Segment
	readers  *registry[*segmentReader]
}

// NewFile wraps r, which holds size bytes (negative when unknown), with the
// layouts of its image segments.
func NewFile(r io.ReaderAt, size int64, segments []Segment) *File {
	return &File{
		r:        r,
		size:     size,
		segments: append([]Segment(nil), segments...),
		readers:  newRegistry[*segmentReader](),
	}
}

// OpenFile memory-maps the container at path.
func OpenFile(path string, segments []Segment) (*File, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	f := NewFile(m, int64(m.Len()), segments)
	f.closer = m
	return f, nil
}

// OpenURL reads the container at url with HTTP range requests.
func OpenURL(url string, client *fasthttp.Client, segments []Segment) (*File, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("not an http(s) URL: %s", url)
	}
	if client == nil {
		client = &fasthttp.Client{
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
	}
	rr := NewHTTPRangeReader(url, client)
	return NewFile(rr, rr.Size(), segments), nil
}

// Open opens a container from a file path or an http(s) URL.
func Open(pathOrURL string, client *fasthttp.Client, segments []Segment) (*File, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return OpenURL(pathOrURL, client, segments)
	}
	return OpenFile(pathOrURL, segments)
}

// Close releases the segment readers and the underlying file, if any.
func (f *File) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	f.readers.reset()
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// NumSegments returns the number of image segments
func (f *File) NumSegments() int {
	return len(f.segments)
}

// Segment returns the layout of segment i.
func (f *File) Segment(i int) (Segment, error) {
	if i < 0 || i >= len(f.segments) {
		return Segment{}, fmt.Errorf("%w: index %d of %d", ErrNoSuchSegment, i, len(f.segments))
	}
	return f.segments[i], nil
}

// Descriptor implements Source.
func (f *File) Descriptor(segment int) (ImageDescriptor, error) {
	seg, err := f.Segment(segment)
	if err != nil {
		return ImageDescriptor{}, err
	}
	return seg.ImageDescriptor, nil
}

// ReadWindow implements Source.
func (f *File) ReadWindow(segment int, w WindowRequest, dst [][]byte) error {
	if f.closed.Load() {
		return errFileClosed
	}
	sr, err := f.reader(segment)
	if err != nil {
		return err
	}
	return sr.readWindow(w, dst)
}

// reader returns the memoized reader of a segment.
func (f *File) reader(segment int) (*segmentReader, error) {
	return f.readers.get(segment, func(i int) (*segmentReader, error) {
		seg, err := f.Segment(i)
		if err != nil {
			return nil, err
		}
		return newSegmentReader(f.r, f.size, seg)
	})
}

// ReadRaster reads part of a segment into a new buffer.
func (f *File) ReadRaster(segment int, req ReadRequest) (*PixelBuffer, error) {
	return Read(f, segment, req)
}

// ReadRasterInto reads part of a segment into dst.
func (f *File) ReadRasterInto(segment int, req ReadRequest, dst *PixelBuffer) error {
	return ReadInto(f, segment, req, dst)
}
