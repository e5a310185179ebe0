package gonitf

import (
	"fmt"
	"image"
)

// DownSampler maps window output positions to source offsets relative to the
// window start. A data source applies it while filling a WindowRequest.
type DownSampler interface {
	SourceRow(i int) int
	SourceCol(i int) int
}

// PixelSkip keeps every RowSkip-th row and ColSkip-th column and discards
// the rest.
type PixelSkip struct {
	RowSkip int
	ColSkip int
}

func (p PixelSkip) SourceRow(i int) int { return i * p.RowSkip }
func (p PixelSkip) SourceCol(i int) int { return i * p.ColSkip }

// NeedsDownsample reports whether subsampling has to be delegated to the source.
func NeedsDownsample(subX, subY int) bool {
	return subX != 1 || subY != 1
}

// WindowRequest is the shape of a read issued to a Source.
type WindowRequest struct {
	Bands       []int // source band indices, in output order
	StartRow    int
	StartCol    int
	NumRows     int // rows delivered, after downsampling
	NumCols     int // columns delivered, after downsampling
	DownSampler DownSampler
}

// SourceRow returns the image row delivered as output row i.
func (w WindowRequest) SourceRow(i int) int {
	if w.DownSampler == nil {
		return w.StartRow + i
	}
	return w.StartRow + w.DownSampler.SourceRow(i)
}

// SourceCol returns the image column delivered as output column i.
func (w WindowRequest) SourceCol(i int) int {
	if w.DownSampler == nil {
		return w.StartCol + i
	}
	return w.StartCol + w.DownSampler.SourceCol(i)
}

// BuildWindow translates a source region, band selection and subsampling
// factors into a WindowRequest covering the whole region.
func BuildWindow(d ImageDescriptor, region image.Rectangle, bands []int, subX, subY int) (WindowRequest, error) {
	if subX <= 0 || subY <= 0 {
		return WindowRequest{}, fmt.Errorf("%w: subsampling %dx%d", ErrInvalidRegion, subX, subY)
	}
	if err := checkRegion(d, region); err != nil {
		return WindowRequest{}, err
	}
	if err := checkBands(d, bands); err != nil {
		return WindowRequest{}, err
	}

	w := WindowRequest{
		Bands:    append([]int(nil), bands...),
		StartRow: region.Min.Y,
		StartCol: region.Min.X,
		NumRows:  ceilDiv(region.Dy(), subY),
		NumCols:  ceilDiv(region.Dx(), subX),
	}
	if NeedsDownsample(subX, subY) {
		w.DownSampler = PixelSkip{RowSkip: subY, ColSkip: subX}
	}
	return w, nil
}

// checkRegion requires a non-empty region inside the image.
func checkRegion(d ImageDescriptor, region image.Rectangle) error {
	if region.Empty() {
		return fmt.Errorf("%w: empty region %v", ErrInvalidRegion, region)
	}
	if !region.In(image.Rect(0, 0, d.Width, d.Height)) {
		return fmt.Errorf("%w: region %v outside image %dx%d", ErrInvalidRegion, region, d.Width, d.Height)
	}
	return nil
}

// checkBands requires a non-empty list of distinct in-range band indices.
func checkBands(d ImageDescriptor, bands []int) error {
	if len(bands) == 0 {
		return fmt.Errorf("%w: no bands selected", ErrInvalidBandSelection)
	}
	if len(bands) > d.Bands {
		return fmt.Errorf("%w: %d bands selected from %d", ErrInvalidBandSelection, len(bands), d.Bands)
	}
	seen := make([]bool, d.Bands)
	for _, b := range bands {
		if b < 0 || b >= d.Bands {
			return fmt.Errorf("%w: band %d out of range [0,%d)", ErrInvalidBandSelection, b, d.Bands)
		}
		if seen[b] {
			return fmt.Errorf("%w: band %d selected twice", ErrInvalidBandSelection, b)
		}
		seen[b] = true
	}
	return nil
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
