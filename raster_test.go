package gonitf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
	"testing"
)

// memSource serves windows from per-band row-major planes held in memory
type memSource struct {
	desc   ImageDescriptor
	size   int
	planes [][]byte

	failRow int   // source row that fails to read, -1 for none
	rows    []int // source rows delivered, in request order
	calls   int
}

// testValue is the sample stored at (band, x, y) by newMemSource and the
// segment encoders. Floats carry a fraction so truncation shows up.
func testValue(t SampleType, band, x, y int) float64 {
	v := float64((band*37 + y*11 + x*3) % 200)
	if t == SampleFloat32 || t == SampleFloat64 {
		v += 0.25
	}
	return v
}

func putSample(buf []byte, t SampleType, order binary.ByteOrder, v float64) {
	switch t {
	case SampleUint8:
		buf[0] = uint8(v)
	case SampleUint16:
		order.PutUint16(buf, uint16(v))
	case SampleFloat32:
		order.PutUint32(buf, math.Float32bits(float32(v)))
	case SampleFloat64:
		order.PutUint64(buf, math.Float64bits(v))
	}
}

func testDescriptor(width, height, bands, bits int, vt ValueType) ImageDescriptor {
	return ImageDescriptor{
		Width:          width,
		Height:         height,
		BitsPerPixel:   bits,
		ValueType:      vt,
		Bands:          bands,
		Representation: "MULTI",
	}
}

func newMemSource(t testing.TB, d ImageDescriptor) *memSource {
	t.Helper()
	format, err := d.Format()
	if err != nil {
		t.Fatalf("Failed to resolve format: %v", err)
	}
	size := format.Sample.Size()
	order := d.Justification.ByteOrder()

	s := &memSource{desc: d, size: size, failRow: -1}
	s.planes = make([][]byte, d.Bands)
	for b := range s.planes {
		plane := make([]byte, d.Width*d.Height*size)
		for y := 0; y < d.Height; y++ {
			for x := 0; x < d.Width; x++ {
				off := (y*d.Width + x) * size
				putSample(plane[off:off+size], format.Sample, order, testValue(format.Sample, b, x, y))
			}
		}
		s.planes[b] = plane
	}
	return s
}

func (s *memSource) Descriptor(segment int) (ImageDescriptor, error) {
	if segment != 0 {
		return ImageDescriptor{}, fmt.Errorf("%w: %d", ErrNoSuchSegment, segment)
	}
	return s.desc, nil
}

func (s *memSource) ReadWindow(segment int, w WindowRequest, dst [][]byte) error {
	if segment != 0 {
		return fmt.Errorf("%w: %d", ErrNoSuchSegment, segment)
	}
	s.calls++
	for r := 0; r < w.NumRows; r++ {
		sy := w.SourceRow(r)
		if sy == s.failRow {
			return fmt.Errorf("injected failure at row %d", sy)
		}
		s.rows = append(s.rows, sy)
		for i, b := range w.Bands {
			for c := 0; c < w.NumCols; c++ {
				sx := w.SourceCol(c)
				from := (sy*s.desc.Width + sx) * s.size
				to := (r*w.NumCols + c) * s.size
				copy(dst[i][to:to+s.size], s.planes[b][from:from+s.size])
			}
		}
	}
	return nil
}

var sampleCases = []struct {
	bits int
	vt   ValueType
	want SampleType
}{
	{8, ValueInteger, SampleUint8},
	{16, ValueInteger, SampleUint16},
	{32, ValueReal, SampleFloat32},
	{64, ValueReal, SampleFloat64},
}

func TestReadRoundTrip8Bit(t *testing.T) {
	src := newMemSource(t, testDescriptor(3, 2, 1, 8, ValueInteger))

	buf, err := Read(src, 0, ReadRequest{})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if buf.Type != SampleUint8 {
		t.Fatalf("Expected uint8 samples, got %v", buf.Type)
	}
	if buf.Rect != image.Rect(0, 0, 3, 2) {
		t.Errorf("Expected bounds (0,0)-(3,2), got %v", buf.Rect)
	}
	if string(buf.Pix8) != string(src.planes[0]) {
		t.Errorf("Expected samples %v, got %v", src.planes[0], buf.Pix8)
	}
	if src.calls != 1 {
		t.Errorf("Expected a single window read, got %d", src.calls)
	}
}

func TestReadFastAndStreamingAgree(t *testing.T) {
	for _, tc := range sampleCases {
		for bands := 1; bands <= 4; bands++ {
			t.Run(fmt.Sprintf("%v/%dbands", tc.want, bands), func(t *testing.T) {
				d := testDescriptor(5, 4, bands, tc.bits, tc.vt)
				src := newMemSource(t, d)

				fast, err := Read(src, 0, ReadRequest{})
				if err != nil {
					t.Fatalf("Read failed: %v", err)
				}
				if fast.Type != tc.want {
					t.Fatalf("Expected %v samples, got %v", tc.want, fast.Type)
				}

				p, err := newReadPlan(d, ReadRequest{})
				if err != nil {
					t.Fatalf("newReadPlan failed: %v", err)
				}
				streamed, err := NewPixelBuffer(tc.want, fast.Rect, bands)
				if err != nil {
					t.Fatalf("NewPixelBuffer failed: %v", err)
				}
				if err := p.readStreaming(src, 0, streamed); err != nil {
					t.Fatalf("readStreaming failed: %v", err)
				}

				// Regions pieced together at their own offsets rebuild the image
				pieced, _ := NewPixelBuffer(tc.want, fast.Rect, bands)
				for _, r := range []image.Rectangle{
					image.Rect(0, 0, 5, 1),
					image.Rect(0, 1, 2, 4),
					image.Rect(2, 1, 5, 4),
				} {
					if err := ReadInto(src, 0, ReadRequest{Region: r, DestOffset: r.Min}, pieced); err != nil {
						t.Fatalf("ReadInto %v failed: %v", r, err)
					}
				}

				for b := 0; b < bands; b++ {
					for y := 0; y < d.Height; y++ {
						for x := 0; x < d.Width; x++ {
							want := testValue(tc.want, b, x, y)
							if got := fast.Sample(b, x, y); got != want {
								t.Fatalf("fast (%d,%d) band %d: expected %v, got %v", x, y, b, want, got)
							}
							if fast.Bits(b, x, y) != streamed.Bits(b, x, y) {
								t.Fatalf("streaming (%d,%d) band %d: expected %v, got %v", x, y, b, want, streamed.Sample(b, x, y))
							}
							if fast.Bits(b, x, y) != pieced.Bits(b, x, y) {
								t.Fatalf("region (%d,%d) band %d: expected %v, got %v", x, y, b, want, pieced.Sample(b, x, y))
							}
						}
					}
				}
			})
		}
	}
}

func TestReadJustification(t *testing.T) {
	tests := []struct {
		just Justification
		want uint64
	}{
		{JustifyReversed, 0x0201},
		{JustifyNormal, 0x0102},
	}

	for _, tc := range tests {
		d := testDescriptor(1, 1, 1, 16, ValueInteger)
		d.Justification = tc.just
		src := &memSource{desc: d, size: 2, failRow: -1, planes: [][]byte{{0x01, 0x02}}}

		buf, err := Read(src, 0, ReadRequest{})
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if got := buf.Bits(0, 0, 0); got != tc.want {
			t.Errorf("Justification %d: expected %#04x, got %#04x", tc.just, tc.want, got)
		}
	}
}

func TestReadSubsampled(t *testing.T) {
	d := testDescriptor(4, 4, 1, 8, ValueInteger)
	src := &memSource{desc: d, size: 1, failRow: -1, planes: [][]byte{make([]byte, 16)}}
	for i := range src.planes[0] {
		src.planes[0][i] = byte(i)
	}

	buf, err := Read(src, 0, ReadRequest{SubsampleX: 2, SubsampleY: 2})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if buf.Width() != 2 || buf.Height() != 2 {
		t.Fatalf("Expected 2x2 buffer, got %dx%d", buf.Width(), buf.Height())
	}
	want := []uint8{0, 2, 8, 10}
	if string(buf.Pix8) != string(want) {
		t.Errorf("Expected %v, got %v", want, buf.Pix8)
	}
}

func TestReadSubsampledUneven(t *testing.T) {
	d := testDescriptor(5, 5, 2, 16, ValueInteger)
	src := newMemSource(t, d)

	buf, err := Read(src, 0, ReadRequest{SubsampleX: 2, SubsampleY: 2})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if buf.Rect != image.Rect(0, 0, 3, 3) {
		t.Fatalf("Expected 3x3 buffer, got %v", buf.Rect)
	}

	for b := 0; b < 2; b++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 3; x++ {
				want := testValue(SampleUint16, b, 2*x, 2*y)
				if got := buf.Sample(b, x, y); got != want {
					t.Errorf("(%d,%d) band %d: expected %v, got %v", x, y, b, want, got)
				}
			}
		}
	}

	// Only the retained rows are read
	wantRows := []int{0, 2, 4}
	if fmt.Sprint(src.rows) != fmt.Sprint(wantRows) {
		t.Errorf("Expected rows %v to be read, got %v", wantRows, src.rows)
	}
}

func TestReadRegionAndOffset(t *testing.T) {
	d := testDescriptor(6, 5, 1, 8, ValueInteger)
	src := newMemSource(t, d)

	req := ReadRequest{Region: image.Rect(1, 2, 4, 5), DestOffset: image.Pt(10, 20)}
	buf, err := Read(src, 0, req)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if buf.Rect != image.Rect(10, 20, 13, 23) {
		t.Fatalf("Expected bounds (10,20)-(13,23), got %v", buf.Rect)
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			want := testValue(SampleUint8, 0, 1+x, 2+y)
			if got := buf.Sample(0, 10+x, 20+y); got != want {
				t.Errorf("(%d,%d): expected %v, got %v", 10+x, 20+y, want, got)
			}
		}
	}

	bounds, err := DestinationBounds(d, req)
	if err != nil {
		t.Fatalf("DestinationBounds failed: %v", err)
	}
	if bounds != buf.Rect {
		t.Errorf("Expected DestinationBounds %v, got %v", buf.Rect, bounds)
	}
}

func TestReadIntoClips(t *testing.T) {
	d := testDescriptor(4, 4, 1, 8, ValueInteger)
	src := newMemSource(t, d)

	dst, err := NewPixelBuffer(SampleUint8, image.Rect(0, 0, 2, 2), 1)
	if err != nil {
		t.Fatalf("NewPixelBuffer failed: %v", err)
	}
	if err := ReadInto(src, 0, ReadRequest{}, dst); err != nil {
		t.Fatalf("ReadInto failed: %v", err)
	}

	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if got, want := dst.Sample(0, x, y), testValue(SampleUint8, 0, x, y); got != want {
				t.Errorf("(%d,%d): expected %v, got %v", x, y, want, got)
			}
		}
	}
	if len(src.rows) != 2 {
		t.Errorf("Expected rows below the buffer to be skipped, read %v", src.rows)
	}

	// A negative offset drops the leading rows and columns instead
	src.rows = nil
	shifted, _ := NewPixelBuffer(SampleUint8, image.Rect(0, 0, 2, 2), 1)
	if err := ReadInto(src, 0, ReadRequest{DestOffset: image.Pt(-1, -1)}, shifted); err != nil {
		t.Fatalf("ReadInto failed: %v", err)
	}
	if got, want := shifted.Sample(0, 0, 0), testValue(SampleUint8, 0, 1, 1); got != want {
		t.Errorf("Expected source (1,1) at (0,0), got %v want %v", got, want)
	}
	if fmt.Sprint(src.rows) != "[1 2]" {
		t.Errorf("Expected rows [1 2] to be read, got %v", src.rows)
	}
}

func TestReadIntoLeavesOtherSamples(t *testing.T) {
	d := testDescriptor(2, 2, 1, 8, ValueInteger)
	src := newMemSource(t, d)

	dst, _ := NewPixelBuffer(SampleUint8, image.Rect(0, 0, 4, 4), 1)
	for i := range dst.Pix8 {
		dst.Pix8[i] = 0xEE
	}
	if err := ReadInto(src, 0, ReadRequest{DestOffset: image.Pt(1, 1)}, dst); err != nil {
		t.Fatalf("ReadInto failed: %v", err)
	}

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			inside := x >= 1 && x < 3 && y >= 1 && y < 3
			got := dst.Sample(0, x, y)
			if inside && got != testValue(SampleUint8, 0, x-1, y-1) {
				t.Errorf("(%d,%d): expected source sample, got %v", x, y, got)
			}
			if !inside && got != 0xEE {
				t.Errorf("(%d,%d): expected untouched sample, got %v", x, y, got)
			}
		}
	}
}

func TestReadBandSelection(t *testing.T) {
	d := testDescriptor(3, 3, 3, 8, ValueInteger)
	src := newMemSource(t, d)

	buf, err := Read(src, 0, ReadRequest{Bands: []int{2, 0}})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if buf.Bands != 2 {
		t.Fatalf("Expected 2 bands, got %d", buf.Bands)
	}

	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			if got, want := buf.Sample(0, x, y), testValue(SampleUint8, 2, x, y); got != want {
				t.Errorf("Band 0 at (%d,%d): expected %v, got %v", x, y, want, got)
			}
			if got, want := buf.Sample(1, x, y), testValue(SampleUint8, 0, x, y); got != want {
				t.Errorf("Band 1 at (%d,%d): expected %v, got %v", x, y, want, got)
			}
		}
	}
}

func TestReadIdempotent(t *testing.T) {
	src := newMemSource(t, testDescriptor(7, 3, 2, 32, ValueReal))
	req := ReadRequest{Region: image.Rect(1, 0, 6, 3), SubsampleX: 2}

	first, err := Read(src, 0, req)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	second, err := Read(src, 0, req)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if first.Rect != second.Rect || len(first.Pix32) != len(second.Pix32) {
		t.Fatalf("Expected identical buffers, got %v and %v", first.Rect, second.Rect)
	}
	for i := range first.Pix32 {
		if first.Pix32[i] != second.Pix32[i] {
			t.Fatalf("Sample %d differs: %v vs %v", i, first.Pix32[i], second.Pix32[i])
		}
	}
}

func TestReadRejects(t *testing.T) {
	tests := []struct {
		name string
		desc ImageDescriptor
		req  ReadRequest
		want error
	}{
		{"12 bit", testDescriptor(4, 4, 1, 12, ValueInteger), ReadRequest{}, ErrUnsupportedFormat},
		{"32 bit integer", testDescriptor(4, 4, 1, 32, ValueInteger), ReadRequest{}, ErrUnsupportedFormat},
		{"region past width", testDescriptor(4, 4, 1, 8, ValueInteger), ReadRequest{Region: image.Rect(2, 0, 5, 4)}, ErrInvalidRegion},
		{"negative region", testDescriptor(4, 4, 1, 8, ValueInteger), ReadRequest{Region: image.Rect(-1, 0, 2, 2)}, ErrInvalidRegion},
		{"negative subsample", testDescriptor(4, 4, 1, 8, ValueInteger), ReadRequest{SubsampleX: -2}, ErrInvalidRegion},
		{"band out of range", testDescriptor(4, 4, 2, 8, ValueInteger), ReadRequest{Bands: []int{2}}, ErrInvalidBandSelection},
		{"duplicate band", testDescriptor(4, 4, 2, 8, ValueInteger), ReadRequest{Bands: []int{1, 1}}, ErrInvalidBandSelection},
		{"empty band list", testDescriptor(4, 4, 2, 8, ValueInteger), ReadRequest{Bands: []int{}}, ErrInvalidBandSelection},
		{"zero width", testDescriptor(0, 4, 1, 8, ValueInteger), ReadRequest{}, ErrInvalidRegion},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := &memSource{desc: tc.desc, size: 1, failRow: -1}
			buf, err := Read(src, 0, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Expected %v, got %v", tc.want, err)
			}
			if buf != nil {
				t.Error("Expected no buffer on failure")
			}
			if src.calls != 0 {
				t.Errorf("Expected no window reads, got %d", src.calls)
			}
		})
	}
}

func TestReadSourceFailure(t *testing.T) {
	d := testDescriptor(4, 6, 1, 8, ValueInteger)

	// Streaming: the error names the failing row relative to the region
	src := newMemSource(t, d)
	src.failRow = 3
	buf, err := Read(src, 0, ReadRequest{Region: image.Rect(0, 1, 4, 6)})
	if !errors.Is(err, ErrSourceRead) {
		t.Fatalf("Expected ErrSourceRead, got %v", err)
	}
	if buf != nil {
		t.Error("Expected no buffer on failure")
	}
	var readErr *SourceReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("Expected *SourceReadError, got %T", err)
	}
	if readErr.Row != 2 || readErr.Segment != 0 {
		t.Errorf("Expected segment 0 row 2, got segment %d row %d", readErr.Segment, readErr.Row)
	}

	// Whole image: one request, no row
	src = newMemSource(t, d)
	src.failRow = 3
	_, err = Read(src, 0, ReadRequest{})
	if !errors.As(err, &readErr) {
		t.Fatalf("Expected *SourceReadError, got %v", err)
	}
	if readErr.Row != -1 {
		t.Errorf("Expected row -1 for a whole image read, got %d", readErr.Row)
	}
}

func TestReadUnknownSegment(t *testing.T) {
	src := newMemSource(t, testDescriptor(2, 2, 1, 8, ValueInteger))
	if _, err := Read(src, 1, ReadRequest{}); !errors.Is(err, ErrNoSuchSegment) {
		t.Errorf("Expected ErrNoSuchSegment, got %v", err)
	}
}

func TestReadIntoMismatch(t *testing.T) {
	src := newMemSource(t, testDescriptor(2, 2, 2, 16, ValueInteger))

	wrongType, _ := NewPixelBuffer(SampleUint8, image.Rect(0, 0, 2, 2), 2)
	if err := ReadInto(src, 0, ReadRequest{}, wrongType); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}

	oneBand, _ := NewPixelBuffer(SampleUint16, image.Rect(0, 0, 2, 2), 1)
	if err := ReadInto(src, 0, ReadRequest{}, oneBand); !errors.Is(err, ErrInvalidBandSelection) {
		t.Errorf("Expected ErrInvalidBandSelection, got %v", err)
	}

	// Extra destination bands are left alone
	wide, _ := NewPixelBuffer(SampleUint16, image.Rect(0, 0, 2, 2), 3)
	if err := ReadInto(src, 0, ReadRequest{}, wide); err != nil {
		t.Fatalf("ReadInto failed: %v", err)
	}
	if got, want := wide.Sample(1, 1, 1), testValue(SampleUint16, 1, 1, 1); got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if got := wide.Sample(2, 1, 1); got != 0 {
		t.Errorf("Expected untouched third band, got %v", got)
	}
	if src.calls != 2 {
		t.Errorf("Expected row by row reads into a wider buffer, got %d calls", src.calls)
	}
}
