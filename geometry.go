package gonitf

import (
	"fmt"
	"image"
	"math"

	"github.com/paulmach/orb"
)

// Georeferenced reports whether the segment carries corner coordinates.
func (s Segment) Georeferenced() bool {
	return s.Corners != nil
}

// Polygon returns the image footprint through its four corners.
func (s Segment) Polygon() orb.Polygon {
	if s.Corners == nil {
		return orb.Polygon{}
	}
	c := s.Corners
	return orb.Polygon{orb.Ring{c[0], c[1], c[2], c[3], c[0]}}
}

// Bound returns the geographic bounding box of the image
func (s Segment) Bound() orb.Bound {
	if s.Corners == nil {
		return orb.Bound{}
	}
	return orb.MultiPoint(s.Corners[:]).Bound()
}

// PointFromPixel converts pixel coordinates to a geographic point by
// bilinear interpolation between the corners. (0,0) is the upper-left
// corner of the first pixel and (Width,Height) the lower-right corner of
// the last one.
func (s Segment) PointFromPixel(x, y float64) orb.Point {
	if s.Corners == nil || s.Width == 0 || s.Height == 0 {
		return orb.Point{}
	}
	c := s.Corners
	u := x / float64(s.Width)
	v := y / float64(s.Height)

	top := lerp(c[0], c[1], u)
	bottom := lerp(c[3], c[2], u)
	return lerp(top, bottom, v)
}

// PixelFromPoint converts a geographic point to pixel coordinates within
// the image bounding box. Y grows downwards, away from the northern edge.
func (s Segment) PixelFromPoint(p orb.Point) (float64, float64) {
	b := s.Bound()
	geoWidth := b.Max[0] - b.Min[0]
	geoHeight := b.Max[1] - b.Min[1]

	if geoWidth == 0 || geoHeight == 0 {
		return 0, 0
	}

	pixelX := (p[0] - b.Min[0]) / geoWidth * float64(s.Width)
	pixelY := (b.Max[1] - p[1]) / geoHeight * float64(s.Height) // Y is inverted
	return pixelX, pixelY
}

// RegionFromBound converts a geographic box into the source region that
// covers it, clamped to the image.
func (s Segment) RegionFromBound(bound orb.Bound) (image.Rectangle, error) {
	if s.Corners == nil {
		return image.Rectangle{}, fmt.Errorf("%w: segment is not georeferenced", ErrInvalidRegion)
	}

	minX, minY := s.PixelFromPoint(orb.Point{bound.Min[0], bound.Max[1]})
	maxX, maxY := s.PixelFromPoint(orb.Point{bound.Max[0], bound.Min[1]})

	r := image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)),
	).Intersect(image.Rect(0, 0, s.Width, s.Height))
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: bound %v does not overlap the image", ErrInvalidRegion, bound)
	}
	return r, nil
}

func lerp(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
}
