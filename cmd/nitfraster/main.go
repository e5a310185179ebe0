package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/tingold/gonitf"
	"golang.org/x/image/tiff"
)

func main() {
	var (
		input     = flag.String("in", "", "Container file path or http(s) URL")
		offset    = flag.Int64("offset", 0, "Byte offset of the segment's image data")
		width     = flag.Int("width", 0, "Image width in pixels (NCOLS)")
		height    = flag.Int("height", 0, "Image height in pixels (NROWS)")
		bits      = flag.Int("bits", 8, "Bits per pixel (NBPP)")
		pvtype    = flag.String("pvtype", "INT", "Pixel value type (INT, SI, R, B, C)")
		bands     = flag.Int("bands", 1, "Number of bands")
		irep      = flag.String("irep", "MONO", "Image representation (MONO, RGB, MULTI, ...)")
		pjust     = flag.String("pjust", "R", "Pixel justification (R or L)")
		mode      = flag.String("mode", "B", "Interleave mode (B, P, R, S)")
		bpr       = flag.Int("bpr", 1, "Blocks per row (NBPR)")
		bpc       = flag.Int("bpc", 1, "Blocks per column (NBPC)")
		bw        = flag.Int("bw", 0, "Pixels per block horizontally (NPPBH), 0 for the image width")
		bh        = flag.Int("bh", 0, "Pixels per block vertically (NPPBV), 0 for the image height")
		corners   = flag.String("corners", "", "Corner coordinates x,y of upper-left, upper-right, lower-right, lower-left")
		region    = flag.String("region", "", "Source region x,y,w,h (default: whole image)")
		bbox      = flag.String("bbox", "", "Geographic region minx,miny,maxx,maxy (requires -corners)")
		subsample = flag.Int("subsample", 1, "Keep every n-th row and column")
		selection = flag.String("select", "", "Comma separated band indices (default: all)")
		output    = flag.String("out", "", "Output PNG or TIFF file (optional, defaults to input filename with .png extension)")
	)
	flag.Parse()

	if *input == "" {
		log.Fatal("Input is required. Use -in flag.")
	}
	if *width <= 0 || *height <= 0 {
		log.Fatal("Image size is required. Use -width and -height flags.")
	}

	vt, err := gonitf.ParseValueType(*pvtype)
	if err != nil {
		log.Fatalf("Invalid pixel value type: %v", err)
	}
	if len(*mode) != 1 {
		log.Fatalf("Invalid interleave mode %q", *mode)
	}

	seg := gonitf.Segment{
		ImageDescriptor: gonitf.ImageDescriptor{
			Width:          *width,
			Height:         *height,
			BitsPerPixel:   *bits,
			ValueType:      vt,
			Bands:          *bands,
			Justification:  gonitf.ParseJustification(*pjust),
			Representation: *irep,
		},
		Offset:          *offset,
		Mode:            gonitf.Mode((*mode)[0]),
		BlocksPerRow:    *bpr,
		BlocksPerColumn: *bpc,
		BlockWidth:      *bw,
		BlockHeight:     *bh,
	}

	if *corners != "" {
		vals, err := parseFloats(*corners)
		if err != nil || len(vals) != 8 {
			log.Fatalf("Invalid corners %q: want 8 comma separated numbers", *corners)
		}
		var c [4]orb.Point
		for i := range c {
			c[i] = orb.Point{vals[2*i], vals[2*i+1]}
		}
		seg.Corners = &c
		b := seg.Bound()
		log.Printf("Bounds: Min=[%.6f, %.6f], Max=[%.6f, %.6f]", b.Min[0], b.Min[1], b.Max[0], b.Max[1])
	}

	formats, err := seg.Formats()
	if err != nil {
		log.Fatalf("Cannot decode segment: %v", err)
	}

	req := gonitf.ReadRequest{SubsampleX: *subsample, SubsampleY: *subsample}
	if *region != "" {
		vals, err := parseInts(*region)
		if err != nil || len(vals) != 4 {
			log.Fatalf("Invalid region %q: want x,y,w,h", *region)
		}
		req.Region = image.Rect(vals[0], vals[1], vals[0]+vals[2], vals[1]+vals[3])
	}
	if *bbox != "" {
		vals, err := parseFloats(*bbox)
		if err != nil || len(vals) != 4 {
			log.Fatalf("Invalid bbox %q: want minx,miny,maxx,maxy", *bbox)
		}
		req.Region, err = seg.RegionFromBound(orb.Bound{
			Min: orb.Point{vals[0], vals[1]},
			Max: orb.Point{vals[2], vals[3]},
		})
		if err != nil {
			log.Fatalf("Invalid bbox: %v", err)
		}
		log.Printf("Region for bbox: %v", req.Region)
	}
	if *selection != "" {
		req.Bands, err = parseInts(*selection)
		if err != nil {
			log.Fatalf("Invalid band selection %q: %v", *selection, err)
		}
	}

	f, err := gonitf.Open(*input, nil, []gonitf.Segment{seg})
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer f.Close()

	buf, err := f.ReadRaster(0, req)
	if err != nil {
		log.Fatalf("Failed to read raster: %v", err)
	}
	log.Printf("Read %dx%d pixels, %d bands of %v", buf.Width(), buf.Height(), buf.Bands, buf.Type)

	// The interleaved RGB candidate only applies when all three bands are read in order
	format := formats[0]
	if format.Interleaved && req.Bands != nil && !isIdentity(req.Bands) {
		format = formats[len(formats)-1]
	}

	img, err := toImage(buf, format)
	if err != nil {
		log.Fatalf("Failed to convert raster: %v", err)
	}

	outPath := *output
	if outPath == "" {
		ext := filepath.Ext(*input)
		outPath = strings.TrimSuffix(filepath.Base(*input), ext) + ".png"
	}
	if err := writeImage(outPath, img); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
	log.Printf("Wrote %s", outPath)
}

// toImage maps a decoded buffer onto a displayable image. Only 8-bit
// grayscale, 8-bit RGB and 16-bit grayscale are rendered; other bands than
// the first are ignored for non-RGB buffers.
func toImage(buf *gonitf.PixelBuffer, format gonitf.PixelFormat) (image.Image, error) {
	w, h := buf.Width(), buf.Height()
	origin := buf.Rect.Min

	switch {
	case buf.Type == gonitf.SampleUint8 && format.Interleaved && buf.Bands == 3:
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetRGBA(x, y, color.RGBA{
					R: uint8(buf.Bits(0, origin.X+x, origin.Y+y)),
					G: uint8(buf.Bits(1, origin.X+x, origin.Y+y)),
					B: uint8(buf.Bits(2, origin.X+x, origin.Y+y)),
					A: 255,
				})
			}
		}
		return img, nil

	case buf.Type == gonitf.SampleUint8:
		img := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetGray(x, y, color.Gray{Y: uint8(buf.Bits(0, origin.X+x, origin.Y+y))})
			}
		}
		return img, nil

	case buf.Type == gonitf.SampleUint16:
		img := image.NewGray16(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetGray16(x, y, color.Gray16{Y: uint16(buf.Bits(0, origin.X+x, origin.Y+y))})
			}
		}
		return img, nil

	default:
		return nil, fmt.Errorf("cannot render %v samples", buf.Type)
	}
}

// writeImage encodes img as PNG or TIFF depending on the file extension
func writeImage(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return png.Encode(file, img)
	}
}

func parseInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	vals := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func isIdentity(bands []int) bool {
	for i, b := range bands {
		if b != i {
			return false
		}
	}
	return true
}
